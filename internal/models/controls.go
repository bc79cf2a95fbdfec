package models

import "control-advisor/internal/applicability"

type ControlType string

const (
	ControlPreventive ControlType = "preventive"
	ControlDetective  ControlType = "detective"
	ControlCorrective ControlType = "corrective"
)

func (t ControlType) Valid() bool {
	switch t {
	case ControlPreventive, ControlDetective, ControlCorrective:
		return true
	}
	return false
}

type DomainTag string

const (
	DomainOps        DomainTag = "ops"
	DomainReporting  DomainTag = "reporting"
	DomainFinancial  DomainTag = "financial"
	DomainCompliance DomainTag = "compliance"
)

func (d DomainTag) Valid() bool {
	switch d {
	case DomainOps, DomainReporting, DomainFinancial, DomainCompliance:
		return true
	}
	return false
}

// StandardControl: запись каталога стандартных контролей. Для ядра только чтение.
type StandardControl struct {
	Base
	Code          string             `gorm:"size:32;uniqueIndex;not null" json:"code"`
	Name          string             `gorm:"size:255;not null" json:"name"`
	Objective     string             `gorm:"type:text" json:"objective"`
	ControlType   ControlType        `gorm:"type:varchar(20);not null" json:"controlType"`
	DomainTag     DomainTag          `gorm:"type:varchar(20);not null" json:"domainTag"`
	Frequency     string             `gorm:"size:64" json:"frequency"`
	Evidence      string             `gorm:"size:255" json:"evidence"`
	Applicability applicability.Rule `gorm:"type:text;not null" json:"applicability"`
}

type CoverageStatus string

const (
	CoverageExists   CoverageStatus = "exists"
	CoveragePartial  CoverageStatus = "partial"
	CoverageNotExist CoverageStatus = "not_exist"
)

func (s CoverageStatus) Valid() bool {
	switch s {
	case CoverageExists, CoveragePartial, CoverageNotExist:
		return true
	}
	return false
}

// AsIsControl: контроль, который у процесса есть сейчас.
type AsIsControl struct {
	Base
	ProcessID          string         `gorm:"type:varchar(36);not null;index" json:"processId"`
	Name               string         `gorm:"size:255;not null" json:"name"`
	Description        string         `gorm:"type:text" json:"description"`
	Status             CoverageStatus `gorm:"type:varchar(20);not null" json:"status"`
	MappedStdControlID *string        `gorm:"type:varchar(36);index" json:"mappedStdControlId,omitempty"`
}

type GapType string

const (
	GapMissing       GapType = "missing"
	GapWeakDesign    GapType = "weak_design"
	GapWeakOperation GapType = "weak_operation"
	GapNoOwner       GapType = "no_owner"
	GapNoEvidence    GapType = "no_evidence"
)

// Gap: применимый стандартный контроль, не закрытый для пары (процесс, риск).
// Одна запись на (процесс, риск, стандартный контроль).
type Gap struct {
	Base
	ProcessID                string  `gorm:"type:varchar(36);not null;uniqueIndex:idx_gap_identity,priority:1" json:"processId"`
	RiskID                   string  `gorm:"size:64;not null;uniqueIndex:idx_gap_identity,priority:2" json:"riskId"`
	StdControlID             string  `gorm:"type:varchar(36);not null;uniqueIndex:idx_gap_identity,priority:3" json:"stdControlId"`
	GapType                  GapType `gorm:"type:varchar(20);not null" json:"gapType"`
	RecommendedToBeControlID *string `gorm:"type:varchar(36)" json:"recommendedToBeControlId,omitempty"`

	StdControl             *StandardControl `gorm:"foreignKey:StdControlID" json:"stdControl,omitempty"`
	RecommendedToBeControl *ToBeControl     `gorm:"foreignKey:RecommendedToBeControlID" json:"recommendedToBeControl,omitempty"`
}

type ImplementationStatus string

const (
	StatusPlanned    ImplementationStatus = "planned"
	StatusInProgress ImplementationStatus = "in_progress"
	StatusLive       ImplementationStatus = "live"
)

func (s ImplementationStatus) Valid() bool {
	switch s {
	case StatusPlanned, StatusInProgress, StatusLive:
		return true
	}
	return false
}

// ToBeControl: рекомендуемый целевой контроль, закрывающий разрыв.
type ToBeControl struct {
	Base
	ProcessID    string `gorm:"type:varchar(36);not null;index" json:"processId"`
	RiskID       string `gorm:"size:64;not null;index" json:"riskId"`
	GapID        string `gorm:"type:varchar(36);not null;index" json:"gapId"`
	StdControlID string `gorm:"type:varchar(36);not null" json:"stdControlId"`

	Name                   string               `gorm:"size:255;not null" json:"name"`
	Objective              string               `gorm:"type:text" json:"objective"`
	OwnerRole              string               `gorm:"size:100" json:"ownerRole"`
	Frequency              string               `gorm:"size:64" json:"frequency"`
	EvidenceType           string               `gorm:"size:255" json:"evidenceType"`
	ControlType            ControlType          `gorm:"type:varchar(20);not null" json:"controlType"`
	DomainTag              DomainTag            `gorm:"type:varchar(20);not null" json:"domainTag"`
	ImplementationGuidance string               `gorm:"type:text" json:"implementationGuidance"`
	Status                 ImplementationStatus `gorm:"type:varchar(20);not null" json:"status"`
}

type ControlSource string

const (
	SourceAISuggested ControlSource = "ai_suggested"
	SourceManual      ControlSource = "manual"
)

// RiskControl: конкретный контроль, привязанный к риску после принятия рекомендации.
type RiskControl struct {
	Base
	RiskID        string               `gorm:"size:64;not null;index" json:"riskId"`
	TemplateID    string               `gorm:"size:64;not null" json:"templateId"`
	Name          string               `gorm:"size:255;not null" json:"name"`
	Description   string               `gorm:"type:text" json:"description"`
	ControlType   ControlType          `gorm:"type:varchar(20);not null" json:"controlType"`
	MaturityLevel int                  `gorm:"not null" json:"maturityLevel"`
	Owner         string               `gorm:"size:255" json:"owner"`
	Frequency     string               `gorm:"size:64" json:"frequency"`
	Evidence      string               `gorm:"size:255" json:"evidence"`
	Status        ImplementationStatus `gorm:"type:varchar(20);not null" json:"status"`
	Source        ControlSource        `gorm:"type:varchar(20);not null" json:"source"`
}
