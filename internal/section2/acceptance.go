package section2

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"control-advisor/internal/apperr"
	"control-advisor/internal/models"
)

const (
	DefaultAcceptedControlType   = models.ControlDetective
	DefaultAcceptedMaturityLevel = 3
)

// Customizations: поля, которыми пользователь переопределяет рекомендацию.
type Customizations struct {
	Name          string             `json:"name"`
	Description   string             `json:"description"`
	ControlType   models.ControlType `json:"controlType"`
	MaturityLevel *int               `json:"maturityLevel"`
	Owner         string             `json:"owner"`
	Frequency     string             `json:"frequency"`
	Evidence      string             `json:"evidence"`
}

type AcceptInput struct {
	RiskID         string         `json:"riskId"`
	TemplateID     string         `json:"templateId"`
	Customizations Customizations `json:"customizations"`
}

// AcceptSuggestedControl превращает принятую рекомендацию в контроль риска.
// Никакого сопоставления с каталогом здесь нет.
func (s *Service) AcceptSuggestedControl(ctx context.Context, in AcceptInput) (*models.RiskControl, error) {
	in.RiskID = strings.TrimSpace(in.RiskID)
	in.TemplateID = strings.TrimSpace(in.TemplateID)

	var v apperr.Fields
	v.Require("riskId", in.RiskID != "")
	v.Require("templateId", in.TemplateID != "")
	if err := v.Err(); err != nil {
		return nil, err
	}

	cust := in.Customizations
	if cust.ControlType != "" && !cust.ControlType.Valid() {
		return nil, apperr.Validation("controlType must be preventive, detective or corrective", "customizations.controlType")
	}

	control := &models.RiskControl{
		RiskID:        in.RiskID,
		TemplateID:    in.TemplateID,
		Name:          orDefault(cust.Name, "Suggested control "+in.TemplateID),
		Description:   cust.Description,
		ControlType:   DefaultAcceptedControlType,
		MaturityLevel: DefaultAcceptedMaturityLevel,
		Owner:         cust.Owner,
		Frequency:     cust.Frequency,
		Evidence:      cust.Evidence,
		Status:        models.StatusPlanned,
		Source:        models.SourceAISuggested,
	}
	if cust.ControlType != "" {
		control.ControlType = cust.ControlType
	}
	if cust.MaturityLevel != nil {
		control.MaturityLevel = *cust.MaturityLevel
	}

	if err := s.store.CreateRiskControl(ctx, control); err != nil {
		return nil, apperr.Storage(err, "failed to create risk control")
	}

	s.metrics.IncControlsAccepted()
	s.log.Info("suggested control accepted",
		zap.String("risk_id", control.RiskID),
		zap.String("template_id", control.TemplateID),
		zap.String("control_id", control.ID))
	return control, nil
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return strings.TrimSpace(v)
}
