package gaps

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"control-advisor/internal/apperr"
	"control-advisor/internal/models"
)

const DefaultOwnerRole = "Process Owner"

type SynthesisResult struct {
	Controls []models.ToBeControl `json:"controls"`
	Count    int                  `json:"count"`
	// Skipped: разрывы, у которых рекомендация уже есть.
	Skipped int `json:"skipped"`
}

// GenerateToBeControls создаёт по целевому контролю на каждый разрыв пары
// (процесс, риск), у которого ещё нет рекомендации, и связывает их.
// Вся пачка идёт одной транзакцией.
func (s *Service) GenerateToBeControls(ctx context.Context, processID, riskID string) (*SynthesisResult, error) {
	processID = strings.TrimSpace(processID)
	riskID = strings.TrimSpace(riskID)

	var v apperr.Fields
	v.Require("processId", processID != "")
	v.Require("riskId", riskID != "")
	if err := v.Err(); err != nil {
		return nil, err
	}

	result := &SynthesisResult{Controls: []models.ToBeControl{}}

	err := s.store.InTx(ctx, func(ctx context.Context) error {
		gaps, err := s.store.ListGaps(ctx, processID, riskID)
		if err != nil {
			return apperr.Storage(err, "failed to load gaps")
		}

		for _, gap := range gaps {
			if gap.RecommendedToBeControlID != nil {
				result.Skipped++
				continue
			}
			if gap.StdControl == nil {
				s.log.Warn("gap references unknown standard control",
					zap.String("gap_id", gap.ID),
					zap.String("std_control_id", gap.StdControlID))
				continue
			}

			control := synthesize(gap)
			if err := s.store.CreateToBeControl(ctx, &control); err != nil {
				return apperr.Storage(err, "failed to create to-be control")
			}
			if err := s.store.LinkGapRecommendation(ctx, gap.ID, control.ID); err != nil {
				return apperr.Storage(err, "failed to link gap recommendation")
			}
			result.Controls = append(result.Controls, control)
		}
		return nil
	})
	if err != nil {
		return nil, apperr.Wrap(err, "to-be synthesis failed")
	}

	result.Count = len(result.Controls)
	s.metrics.AddToBeGenerated(result.Count)
	s.log.Info("to-be controls generated",
		zap.String("process_id", processID),
		zap.String("risk_id", riskID),
		zap.Int("created", result.Count),
		zap.Int("skipped", result.Skipped))
	return result, nil
}

// synthesize копирует атрибуты стандартного контроля; типы контроля и домена
// обязаны совпадать с исходными.
func synthesize(gap models.Gap) models.ToBeControl {
	std := gap.StdControl
	return models.ToBeControl{
		ProcessID:              gap.ProcessID,
		RiskID:                 gap.RiskID,
		GapID:                  gap.ID,
		StdControlID:           std.ID,
		Name:                   std.Name,
		Objective:              std.Objective,
		OwnerRole:              DefaultOwnerRole,
		Frequency:              std.Frequency,
		EvidenceType:           std.Evidence,
		ControlType:            std.ControlType,
		DomainTag:              std.DomainTag,
		ImplementationGuidance: fmt.Sprintf("Implement %s to address %s gap", std.Name, gap.GapType),
		Status:                 models.StatusPlanned,
	}
}

func (s *Service) ListToBeControls(ctx context.Context, processID string) ([]models.ToBeControl, error) {
	controls, err := s.store.ListToBeControls(ctx, processID)
	if err != nil {
		return nil, apperr.Storage(err, "failed to load to-be controls")
	}
	return controls, nil
}

// UpdateToBeStatus: смена статуса внедрения владельцем контроля.
func (s *Service) UpdateToBeStatus(ctx context.Context, id string, status models.ImplementationStatus) (*models.ToBeControl, error) {
	if !status.Valid() {
		return nil, apperr.Validation("status must be planned, in_progress or live", "status")
	}

	if err := s.store.UpdateToBeStatus(ctx, id, status); err != nil {
		if errors.Is(err, apperr.ErrRecordNotFound) {
			return nil, apperr.NotFound("to-be control not found")
		}
		return nil, apperr.Storage(err, "failed to update to-be control")
	}

	control, err := s.store.FindToBeControl(ctx, id)
	if err != nil {
		return nil, apperr.Storage(err, "failed to load to-be control")
	}
	return control, nil
}
