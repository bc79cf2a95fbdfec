package section2

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"control-advisor/internal/apperr"
	"control-advisor/internal/models"
)

type SelectionInput struct {
	RiskID        string   `json:"riskId"`
	SelectedLevel *int     `json:"selectedLevel"`
	TargetLevel   *int     `json:"targetLevel"`
	CurrentScore  *float64 `json:"currentScore"`
	TargetScore   *float64 `json:"targetScore"`
}

// UpsertMaturitySelection создаёт или целиком перезаписывает выбор по риску.
// Пропущенные оценки становятся пустыми: слияния полей нет.
func (s *Service) UpsertMaturitySelection(ctx context.Context, in SelectionInput) (*models.MaturitySelection, error) {
	in.RiskID = strings.TrimSpace(in.RiskID)

	var v apperr.Fields
	v.Require("riskId", in.RiskID != "")
	v.Require("selectedLevel", in.SelectedLevel != nil)
	v.Require("targetLevel", in.TargetLevel != nil)
	if err := v.Err(); err != nil {
		return nil, err
	}

	saved, err := s.store.UpsertMaturitySelection(ctx, &models.MaturitySelection{
		RiskID:        in.RiskID,
		SelectedLevel: *in.SelectedLevel,
		TargetLevel:   *in.TargetLevel,
		CurrentScore:  in.CurrentScore,
		TargetScore:   in.TargetScore,
	})
	if err != nil {
		return nil, apperr.Storage(err, "failed to save maturity selection")
	}

	s.log.Info("maturity selection saved",
		zap.String("risk_id", saved.RiskID),
		zap.Int("selected_level", saved.SelectedLevel),
		zap.Int("target_level", saved.TargetLevel))
	return saved, nil
}

func (s *Service) GetMaturitySelection(ctx context.Context, riskID string) (*models.MaturitySelection, error) {
	sel, err := s.store.FindMaturitySelection(ctx, strings.TrimSpace(riskID))
	if err != nil {
		if errors.Is(err, apperr.ErrRecordNotFound) {
			return nil, apperr.NotFound("maturity selection not found")
		}
		return nil, apperr.Storage(err, "failed to load maturity selection")
	}
	return sel, nil
}
