package models

import "gorm.io/datatypes"

// Process: бизнес-процесс, для которого оценивается зрелость контролей.
type Process struct {
	Base
	OrganizationID *string       `gorm:"type:varchar(36);index" json:"organizationId,omitempty"`
	Organization   *Organization `json:"organization,omitempty"`

	Name    string                      `gorm:"size:255;not null" json:"name"`
	Scope   string                      `gorm:"type:text" json:"scope"`
	Owner   string                      `gorm:"size:255" json:"owner"`
	Systems datatypes.JSONSlice[string] `json:"systems"`
}

type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

func (l RiskLevel) Valid() bool {
	switch l {
	case RiskLow, RiskMedium, RiskHigh:
		return true
	}
	return false
}

// Risk: риск процесса; по нему ведутся выбор зрелости и срезы анализа разрывов.
type Risk struct {
	Base
	ProcessID string    `gorm:"type:varchar(36);not null;index" json:"processId"`
	Title     string    `gorm:"size:255;not null" json:"title"`
	Level     RiskLevel `gorm:"type:varchar(16);not null" json:"level"`
	Notes     string    `gorm:"type:text" json:"notes"`
}
