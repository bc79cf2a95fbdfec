package section2

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"control-advisor/internal/apperr"
	"control-advisor/internal/memstore"
	"control-advisor/internal/metrics"
	"control-advisor/internal/models"
)

func intPtr(v int) *int           { return &v }
func floatPtr(v float64) *float64 { return &v }
func strPtr(v string) *string     { return &v }

func TestUpsertMaturitySelection(t *testing.T) {
	ctx := context.Background()

	t.Run("second upsert overwrites the single row", func(t *testing.T) {
		store := memstore.New()
		svc := New(store)

		first, err := svc.UpsertMaturitySelection(ctx, SelectionInput{
			RiskID: "r1", SelectedLevel: intPtr(2), TargetLevel: intPtr(4), CurrentScore: floatPtr(2.1),
		})
		require.NoError(t, err)

		second, err := svc.UpsertMaturitySelection(ctx, SelectionInput{
			RiskID: "r1", SelectedLevel: intPtr(2), TargetLevel: intPtr(5),
		})
		require.NoError(t, err)

		assert.Equal(t, first.ID, second.ID)
		assert.Equal(t, 1, store.CountMaturitySelections("r1"))

		got, err := svc.GetMaturitySelection(ctx, "r1")
		require.NoError(t, err)
		assert.Equal(t, 5, got.TargetLevel)
		assert.Nil(t, got.CurrentScore, "omitted score is cleared, not merged")
	})

	t.Run("required fields", func(t *testing.T) {
		_, err := New(memstore.New()).UpsertMaturitySelection(ctx, SelectionInput{RiskID: "r1"})

		var appErr *apperr.Error
		require.True(t, errors.As(err, &appErr))
		assert.Equal(t, apperr.KindValidation, appErr.Kind)
		assert.Equal(t, []string{"selectedLevel", "targetLevel"}, appErr.Fields)
	})

	t.Run("absent selection is not found", func(t *testing.T) {
		_, err := New(memstore.New()).GetMaturitySelection(ctx, "nope")
		assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
	})
}

func TestUpsertGapAnalysisSnapshot(t *testing.T) {
	ctx := context.Background()

	t.Run("omitted computed fields get labelled placeholders", func(t *testing.T) {
		svc := New(memstore.New())

		snap, err := svc.UpsertGapAnalysisSnapshot(ctx, SnapshotInput{
			RiskID: "r1", CurrentLevel: intPtr(2), TargetLevel: intPtr(4),
		})
		require.NoError(t, err)

		assert.InDelta(t, 2.2, snap.CurrentScore, 1e-9)
		assert.InDelta(t, 4.5, snap.TargetScore, 1e-9)
		assert.Equal(t, 0, snap.GapCount)
		assert.Equal(t, DefaultEffortEstimate, snap.EffortEstimate)
		assert.Equal(t, DefaultTimelineEstimate, snap.TimelineEstimate)
		assert.JSONEq(t, `[]`, string(snap.MissingControls))
		assert.ElementsMatch(t,
			[]string{"currentScore", "targetScore", "gapCount", "effortEstimate", "timelineEstimate"},
			[]string(snap.DefaultedFields))
	})

	t.Run("provided values are kept and not labelled", func(t *testing.T) {
		svc := New(memstore.New())

		snap, err := svc.UpsertGapAnalysisSnapshot(ctx, SnapshotInput{
			RiskID:            "r1",
			CurrentLevel:      intPtr(1),
			TargetLevel:       intPtr(3),
			CurrentScore:      floatPtr(1.7),
			TargetScore:       floatPtr(3.0),
			MissingControls:   json.RawMessage(`["C-1","C-2"]`),
			SuggestedControls: json.RawMessage(`[{"templateId":"tmpl-7"}]`),
			GapCount:          intPtr(2),
			EffortEstimate:    strPtr("high"),
			TimelineEstimate:  strPtr("3 months"),
		})
		require.NoError(t, err)

		assert.Equal(t, 1.7, snap.CurrentScore)
		assert.Equal(t, 2, snap.GapCount)
		assert.Equal(t, "high", snap.EffortEstimate)
		assert.JSONEq(t, `["C-1","C-2"]`, string(snap.MissingControls))
		assert.Empty(t, snap.DefaultedFields)
	})

	t.Run("upsert keeps one snapshot per risk", func(t *testing.T) {
		svc := New(memstore.New())

		first, err := svc.UpsertGapAnalysisSnapshot(ctx, SnapshotInput{RiskID: "r1", CurrentLevel: intPtr(1), TargetLevel: intPtr(2)})
		require.NoError(t, err)
		second, err := svc.UpsertGapAnalysisSnapshot(ctx, SnapshotInput{RiskID: "r1", CurrentLevel: intPtr(3), TargetLevel: intPtr(4)})
		require.NoError(t, err)
		assert.Equal(t, first.ID, second.ID)

		got, err := svc.GetGapAnalysisSnapshot(ctx, "r1")
		require.NoError(t, err)
		assert.Equal(t, 3, got.CurrentLevel)
	})

	t.Run("lists must be JSON arrays", func(t *testing.T) {
		_, err := New(memstore.New()).UpsertGapAnalysisSnapshot(ctx, SnapshotInput{
			RiskID: "r1", CurrentLevel: intPtr(1), TargetLevel: intPtr(2),
			MissingControls: json.RawMessage(`"C-1,C-2"`),
		})

		var appErr *apperr.Error
		require.True(t, errors.As(err, &appErr))
		assert.Equal(t, []string{"missingControls"}, appErr.Fields)
	})

	t.Run("required fields", func(t *testing.T) {
		_, err := New(memstore.New()).UpsertGapAnalysisSnapshot(ctx, SnapshotInput{})

		var appErr *apperr.Error
		require.True(t, errors.As(err, &appErr))
		assert.Equal(t, []string{"riskId", "currentLevel", "targetLevel"}, appErr.Fields)
	})

	t.Run("absent snapshot is not found", func(t *testing.T) {
		_, err := New(memstore.New()).GetGapAnalysisSnapshot(ctx, "r1")
		assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
	})
}

func TestAcceptSuggestedControl(t *testing.T) {
	ctx := context.Background()

	t.Run("defaults", func(t *testing.T) {
		store := memstore.New()
		m := metrics.New()

		control, err := New(store, WithMetrics(m)).AcceptSuggestedControl(ctx, AcceptInput{RiskID: "r1", TemplateID: "tmpl-7"})
		require.NoError(t, err)

		assert.Equal(t, models.SourceAISuggested, control.Source)
		assert.Equal(t, models.StatusPlanned, control.Status)
		assert.Equal(t, models.ControlDetective, control.ControlType)
		assert.Equal(t, DefaultAcceptedMaturityLevel, control.MaturityLevel)
		assert.Equal(t, "Suggested control tmpl-7", control.Name)

		all, err := store.ListRiskControls(ctx, "r1")
		require.NoError(t, err)
		assert.Len(t, all, 1)
		assert.Equal(t, 1.0, testutil.ToFloat64(m.ControlsAccepted))
	})

	t.Run("customizations override defaults", func(t *testing.T) {
		control, err := New(memstore.New()).AcceptSuggestedControl(ctx, AcceptInput{
			RiskID:     "r1",
			TemplateID: "tmpl-7",
			Customizations: Customizations{
				Name:          "Three-way match",
				ControlType:   models.ControlPreventive,
				MaturityLevel: intPtr(4),
				Owner:         "AP lead",
			},
		})
		require.NoError(t, err)

		assert.Equal(t, "Three-way match", control.Name)
		assert.Equal(t, models.ControlPreventive, control.ControlType)
		assert.Equal(t, 4, control.MaturityLevel)
		assert.Equal(t, "AP lead", control.Owner)
		assert.Equal(t, models.SourceAISuggested, control.Source)
	})

	t.Run("invalid control type", func(t *testing.T) {
		_, err := New(memstore.New()).AcceptSuggestedControl(ctx, AcceptInput{
			RiskID: "r1", TemplateID: "t", Customizations: Customizations{ControlType: "reactive"},
		})
		assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
	})

	t.Run("required fields", func(t *testing.T) {
		_, err := New(memstore.New()).AcceptSuggestedControl(ctx, AcceptInput{})

		var appErr *apperr.Error
		require.True(t, errors.As(err, &appErr))
		assert.Equal(t, []string{"riskId", "templateId"}, appErr.Fields)
	})
}
