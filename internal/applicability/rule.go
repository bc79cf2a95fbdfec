package applicability

import (
	"bytes"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"

	"control-advisor/internal/profile"
)

type Kind string

const (
	KindAlways  Kind = "always"
	KindProfile Kind = "maturityProfile"
	KindFlag    Kind = "flag"
	// KindUnknown получается только при мягком чтении из БД.
	KindUnknown Kind = "unknown"
)

// Flag: организационный признак, на который ссылаются правила.
type Flag string

const (
	FlagRegulated      Flag = "regulated"
	FlagInventoryHeavy Flag = "inventoryHeavy"
	FlagDataIntensive  Flag = "dataIntensive"
	FlagHighRisk       Flag = "high_risk"
)

func (f Flag) Valid() bool {
	switch f {
	case FlagRegulated, FlagInventoryHeavy, FlagDataIntensive, FlagHighRisk:
		return true
	}
	return false
}

// Flags: контекст организации, владеющей процессом.
type Flags struct {
	Regulated      bool `json:"regulated"`
	InventoryHeavy bool `json:"inventoryHeavy"`
	DataIntensive  bool `json:"dataIntensive"`
	HighRiskImpact bool `json:"highRiskImpact"`
}

func (f Flags) Asserted(flag Flag) bool {
	switch flag {
	case FlagRegulated:
		return f.Regulated
	case FlagInventoryHeavy:
		return f.InventoryHeavy
	case FlagDataIntensive:
		return f.DataIntensive
	case FlagHighRisk:
		return f.HighRiskImpact
	}
	return false
}

// Rule: правило применимости стандартного контроля. Ровно один вариант:
// Always, ForProfile или ForFlag.
type Rule struct {
	kind Kind
	tags profile.Set
	flag Flag
	raw  []byte
}

func Always() Rule { return Rule{kind: KindAlways} }

func ForProfile(tags ...profile.Tag) Rule {
	return Rule{kind: KindProfile, tags: profile.NewSet(tags...)}
}

func ForFlag(f Flag) Rule { return Rule{kind: KindFlag, flag: f} }

// Kind нулевого Rule: KindUnknown.
func (r Rule) Kind() Kind {
	if r.kind == "" {
		return KindUnknown
	}
	return r.kind
}

func (r Rule) Tags() profile.Set { return r.tags }

func (r Rule) Flag() Flag { return r.flag }

// Raw: исходный JSON для нераспознанного правила.
func (r Rule) Raw() string { return string(r.raw) }

var errRuleShape = errors.New("applicability rule must have exactly one key")

// ParseRule: строгий разбор, используется при импорте каталога.
func ParseRule(data []byte) (Rule, error) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(data, &obj); err != nil {
		return Rule{}, fmt.Errorf("applicability rule: %w", err)
	}
	if len(obj) != 1 {
		return Rule{}, errRuleShape
	}

	for key, val := range obj {
		switch {
		case key == string(KindAlways):
			if err := requireTrue(key, val); err != nil {
				return Rule{}, err
			}
			return Always(), nil

		case key == string(KindProfile):
			var tags profile.Set
			if err := json.Unmarshal(val, &tags); err != nil {
				return Rule{}, fmt.Errorf("maturityProfile: %w", err)
			}
			if tags.Len() == 0 {
				return Rule{}, errors.New("maturityProfile must list at least one tag")
			}
			return Rule{kind: KindProfile, tags: tags}, nil

		case Flag(key).Valid():
			if err := requireTrue(key, val); err != nil {
				return Rule{}, err
			}
			return ForFlag(Flag(key)), nil

		default:
			return Rule{}, fmt.Errorf("unknown applicability rule %q", key)
		}
	}
	return Rule{}, errRuleShape
}

func requireTrue(key string, val json.RawMessage) error {
	var b bool
	if err := json.Unmarshal(val, &b); err != nil || !b {
		return fmt.Errorf("%s rule must be true", key)
	}
	return nil
}

// Lenient никогда не падает: то, что не разобралось, становится
// KindUnknown и дальше считается применимым.
func Lenient(data []byte) Rule {
	r, err := ParseRule(data)
	if err != nil {
		return Rule{kind: KindUnknown, raw: bytes.Clone(data)}
	}
	return r
}

func (r Rule) MarshalJSON() ([]byte, error) {
	switch r.Kind() {
	case KindAlways:
		return []byte(`{"always":true}`), nil
	case KindProfile:
		return json.Marshal(map[string]profile.Set{string(KindProfile): r.tags})
	case KindFlag:
		return json.Marshal(map[string]bool{string(r.flag): true})
	default:
		if json.Valid(r.raw) {
			return bytes.Clone(r.raw), nil
		}
		return []byte("null"), nil
	}
}

func (r *Rule) UnmarshalJSON(data []byte) error {
	parsed, err := ParseRule(data)
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

func (r Rule) Value() (driver.Value, error) {
	if r.Kind() == KindUnknown && len(r.raw) > 0 {
		return string(r.raw), nil
	}
	b, err := r.MarshalJSON()
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan мягкий: старые или битые записи не ломают чтение каталога.
func (r *Rule) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*r = Rule{kind: KindUnknown}
	case []byte:
		*r = Lenient(v)
	case string:
		*r = Lenient([]byte(v))
	default:
		return fmt.Errorf("cannot scan %T into applicability rule", src)
	}
	return nil
}
