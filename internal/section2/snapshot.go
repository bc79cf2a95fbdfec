package section2

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"

	"go.uber.org/zap"
	"gorm.io/datatypes"

	"control-advisor/internal/apperr"
	"control-advisor/internal/models"
)

// Заглушки вместо настоящей модели оценки. Поля, получившие их, попадают
// в DefaultedFields среза.
const (
	DefaultCurrentScoreOffset = 0.2
	DefaultTargetScoreOffset  = 0.5
	DefaultEffortEstimate     = "medium"
	DefaultTimelineEstimate   = "6-12 months"
)

type SnapshotInput struct {
	RiskID            string          `json:"riskId"`
	CurrentLevel      *int            `json:"currentLevel"`
	TargetLevel       *int            `json:"targetLevel"`
	CurrentScore      *float64        `json:"currentScore"`
	TargetScore       *float64        `json:"targetScore"`
	MissingControls   json.RawMessage `json:"missingControls"`
	SuggestedControls json.RawMessage `json:"suggestedControls"`
	GapCount          *int            `json:"gapCount"`
	EffortEstimate    *string         `json:"effortEstimate"`
	TimelineEstimate  *string         `json:"timelineEstimate"`
}

// UpsertGapAnalysisSnapshot сохраняет сводку анализа по риску, подставляя
// заглушки для не переданных расчётных полей.
func (s *Service) UpsertGapAnalysisSnapshot(ctx context.Context, in SnapshotInput) (*models.GapAnalysisSnapshot, error) {
	in.RiskID = strings.TrimSpace(in.RiskID)

	var v apperr.Fields
	v.Require("riskId", in.RiskID != "")
	v.Require("currentLevel", in.CurrentLevel != nil)
	v.Require("targetLevel", in.TargetLevel != nil)
	if err := v.Err(); err != nil {
		return nil, err
	}

	missing, err := jsonList("missingControls", in.MissingControls)
	if err != nil {
		return nil, err
	}
	suggested, err := jsonList("suggestedControls", in.SuggestedControls)
	if err != nil {
		return nil, err
	}

	snap := &models.GapAnalysisSnapshot{
		RiskID:            in.RiskID,
		CurrentLevel:      *in.CurrentLevel,
		TargetLevel:       *in.TargetLevel,
		MissingControls:   missing,
		SuggestedControls: suggested,
		DefaultedFields:   []string{},
	}

	if in.CurrentScore != nil {
		snap.CurrentScore = *in.CurrentScore
	} else {
		snap.CurrentScore = float64(snap.CurrentLevel) + DefaultCurrentScoreOffset
		snap.DefaultedFields = append(snap.DefaultedFields, "currentScore")
	}
	if in.TargetScore != nil {
		snap.TargetScore = *in.TargetScore
	} else {
		snap.TargetScore = float64(snap.TargetLevel) + DefaultTargetScoreOffset
		snap.DefaultedFields = append(snap.DefaultedFields, "targetScore")
	}
	if in.GapCount != nil {
		snap.GapCount = *in.GapCount
	} else {
		snap.DefaultedFields = append(snap.DefaultedFields, "gapCount")
	}
	if in.EffortEstimate != nil && *in.EffortEstimate != "" {
		snap.EffortEstimate = *in.EffortEstimate
	} else {
		snap.EffortEstimate = DefaultEffortEstimate
		snap.DefaultedFields = append(snap.DefaultedFields, "effortEstimate")
	}
	if in.TimelineEstimate != nil && *in.TimelineEstimate != "" {
		snap.TimelineEstimate = *in.TimelineEstimate
	} else {
		snap.TimelineEstimate = DefaultTimelineEstimate
		snap.DefaultedFields = append(snap.DefaultedFields, "timelineEstimate")
	}

	saved, err := s.store.UpsertGapAnalysisSnapshot(ctx, snap)
	if err != nil {
		return nil, apperr.Storage(err, "failed to save gap analysis snapshot")
	}

	s.log.Info("gap analysis snapshot saved",
		zap.String("risk_id", saved.RiskID),
		zap.Int("gap_count", saved.GapCount),
		zap.Strings("defaulted", saved.DefaultedFields))
	return saved, nil
}

func (s *Service) GetGapAnalysisSnapshot(ctx context.Context, riskID string) (*models.GapAnalysisSnapshot, error) {
	snap, err := s.store.FindGapAnalysisSnapshot(ctx, strings.TrimSpace(riskID))
	if err != nil {
		if errors.Is(err, apperr.ErrRecordNotFound) {
			return nil, apperr.NotFound("gap analysis snapshot not found")
		}
		return nil, apperr.Storage(err, "failed to load gap analysis snapshot")
	}
	return snap, nil
}

// jsonList принимает только JSON-массив; пустое значение: пустой список.
func jsonList(field string, raw json.RawMessage) (datatypes.JSON, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return datatypes.JSON("[]"), nil
	}
	if trimmed[0] != '[' || !json.Valid(trimmed) {
		return nil, apperr.Validation("must be a JSON list", field)
	}
	return datatypes.JSON(bytes.Clone(trimmed)), nil
}
