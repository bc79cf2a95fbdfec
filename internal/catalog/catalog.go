// Package catalog читает YAML-каталоги стандартных контролей и загружает их в хранилище.
package catalog

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"

	"github.com/xeipuuv/gojsonschema"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"control-advisor/internal/applicability"
	"control-advisor/internal/apperr"
	"control-advisor/internal/models"
)

//go:embed schema.json
var schema string

//go:embed default.yaml
var defaultCatalog []byte

type entry struct {
	Code          string             `json:"code"`
	Name          string             `json:"name"`
	Objective     string             `json:"objective"`
	ControlType   models.ControlType `json:"controlType"`
	DomainTag     models.DomainTag   `json:"domainTag"`
	Frequency     string             `json:"frequency"`
	Evidence      string             `json:"evidence"`
	Applicability json.RawMessage    `json:"applicability"`
}

type document struct {
	Controls []entry `json:"controls"`
}

// Parse проверяет документ по схеме и строго разбирает правила применимости.
// Все найденные проблемы возвращаются разом в Fields ошибки валидации.
func Parse(data []byte) ([]models.StandardControl, error) {
	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, apperr.Invalid("catalog is not valid YAML", err.Error())
	}
	if raw == nil {
		return nil, apperr.Validation("catalog is empty")
	}

	doc, err := json.Marshal(raw)
	if err != nil {
		return nil, apperr.Invalid("catalog cannot be represented as JSON", err.Error())
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(schema),
		gojsonschema.NewBytesLoader(doc),
	)
	if err != nil {
		return nil, fmt.Errorf("schema validation error: %w", err)
	}
	if !result.Valid() {
		problems := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			problems = append(problems, e.String())
		}
		return nil, apperr.Invalid("catalog does not match schema", problems...)
	}

	var parsed document
	dec := json.NewDecoder(bytes.NewReader(doc))
	if err := dec.Decode(&parsed); err != nil {
		return nil, apperr.Invalid("catalog cannot be decoded", err.Error())
	}

	var problems []string
	seen := make(map[string]bool, len(parsed.Controls))
	controls := make([]models.StandardControl, 0, len(parsed.Controls))
	for i, e := range parsed.Controls {
		if seen[e.Code] {
			problems = append(problems, fmt.Sprintf("controls.%d: duplicate code %s", i, e.Code))
			continue
		}
		seen[e.Code] = true

		rule, err := applicability.ParseRule(e.Applicability)
		if err != nil {
			problems = append(problems, fmt.Sprintf("controls.%d (%s): %v", i, e.Code, err))
			continue
		}

		controls = append(controls, models.StandardControl{
			Code:          e.Code,
			Name:          e.Name,
			Objective:     e.Objective,
			ControlType:   e.ControlType,
			DomainTag:     e.DomainTag,
			Frequency:     e.Frequency,
			Evidence:      e.Evidence,
			Applicability: rule,
		})
	}
	if len(problems) > 0 {
		return nil, apperr.Invalid("catalog has invalid controls", problems...)
	}
	return controls, nil
}

func ParseFile(path string) ([]models.StandardControl, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return Parse(data)
}

// Default: встроенный каталог.
func Default() []models.StandardControl {
	controls, err := Parse(defaultCatalog)
	if err != nil {
		panic(fmt.Sprintf("embedded catalog is invalid: %v", err))
	}
	return controls
}

// Load читает каталог из файла или, если путь пустой, берёт встроенный.
func Load(path string) ([]models.StandardControl, error) {
	if path == "" {
		return Default(), nil
	}
	return ParseFile(path)
}

type Store interface {
	InTx(ctx context.Context, fn func(ctx context.Context) error) error
	UpsertStandardControl(ctx context.Context, c *models.StandardControl) error
	CountStandardControls(ctx context.Context) (int, error)
}

// Import upsert-ит контроли по коду одной транзакцией и возвращает сохранённые записи.
func Import(ctx context.Context, store Store, controls []models.StandardControl) ([]models.StandardControl, error) {
	saved := make([]models.StandardControl, 0, len(controls))
	err := store.InTx(ctx, func(ctx context.Context) error {
		for _, c := range controls {
			c := c
			if err := store.UpsertStandardControl(ctx, &c); err != nil {
				return fmt.Errorf("upsert %s: %w", c.Code, err)
			}
			saved = append(saved, c)
		}
		return nil
	})
	if err != nil {
		return nil, apperr.Storage(err, "failed to import catalog")
	}
	return saved, nil
}

// Seed загружает каталог только в пустое хранилище.
func Seed(ctx context.Context, store Store, controls []models.StandardControl, log *zap.Logger) error {
	n, err := store.CountStandardControls(ctx)
	if err != nil {
		return apperr.Storage(err, "failed to count standard controls")
	}
	if n > 0 {
		log.Debug("catalog already present, skipping seed", zap.Int("controls", n))
		return nil
	}

	if _, err := Import(ctx, store, controls); err != nil {
		return err
	}
	log.Info("catalog seeded", zap.Int("controls", len(controls)))
	return nil
}
