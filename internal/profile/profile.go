package profile

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
)

// Tag: метка профиля зрелости из закрытого словаря.
type Tag string

const (
	// уровень автоматизации
	Manual     Tag = "manual"
	ERPEnabled Tag = "erp-enabled"
	Automated  Tag = "automated"

	// структура процесса
	Centralized   Tag = "centralized"
	Decentralized Tag = "decentralized"

	// критичность отказа
	HighRisk Tag = "high-risk"
)

var vocabulary = map[Tag]struct{}{
	Manual: {}, ERPEnabled: {}, Automated: {},
	Centralized: {}, Decentralized: {},
	HighRisk: {},
}

func (t Tag) Valid() bool {
	_, ok := vocabulary[t]
	return ok
}

func ParseTag(s string) (Tag, error) {
	t := Tag(strings.TrimSpace(s))
	if !t.Valid() {
		return "", fmt.Errorf("unknown profile tag %q", s)
	}
	return t, nil
}

// Set: упорядоченное множество меток без повторов.
type Set struct {
	tags []Tag
}

func NewSet(tags ...Tag) Set {
	var s Set
	for _, t := range tags {
		s.add(t)
	}
	return s
}

func (s *Set) add(t Tag) {
	if s.Contains(t) {
		return
	}
	s.tags = append(s.tags, t)
}

func (s Set) Contains(t Tag) bool {
	for _, have := range s.tags {
		if have == t {
			return true
		}
	}
	return false
}

// Intersects: есть ли хотя бы одна общая метка.
func (s Set) Intersects(other Set) bool {
	for _, t := range other.tags {
		if s.Contains(t) {
			return true
		}
	}
	return false
}

// Tags возвращает копию в порядке добавления.
func (s Set) Tags() []Tag {
	out := make([]Tag, len(s.tags))
	copy(out, s.tags)
	return out
}

func (s Set) Len() int { return len(s.tags) }

func (s Set) String() string {
	parts := make([]string, len(s.tags))
	for i, t := range s.tags {
		parts[i] = string(t)
	}
	return strings.Join(parts, ",")
}

// ParseSet разбирает форму "erp-enabled,centralized" из пути запроса.
func ParseSet(s string) (Set, error) {
	var out Set
	for _, part := range strings.Split(s, ",") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		t, err := ParseTag(part)
		if err != nil {
			return Set{}, err
		}
		out.add(t)
	}
	return out, nil
}

func (s Set) MarshalJSON() ([]byte, error) {
	if s.tags == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(s.tags)
}

func (s *Set) UnmarshalJSON(data []byte) error {
	var raw []string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("profile must be a list of tags: %w", err)
	}
	parsed := Set{}
	for _, r := range raw {
		t, err := ParseTag(r)
		if err != nil {
			return err
		}
		parsed.add(t)
	}
	*s = parsed
	return nil
}

// Value хранит профиль JSON-массивом.
func (s Set) Value() (driver.Value, error) {
	b, err := s.MarshalJSON()
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan понимает и JSON-массив, и старую строку через запятую.
func (s *Set) Scan(src any) error {
	var str string
	switch v := src.(type) {
	case nil:
		*s = Set{}
		return nil
	case []byte:
		str = string(v)
	case string:
		str = v
	default:
		return fmt.Errorf("cannot scan %T into profile set", src)
	}

	str = strings.TrimSpace(str)
	if strings.HasPrefix(str, "[") {
		return s.UnmarshalJSON([]byte(str))
	}
	parsed, err := ParseSet(str)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}
