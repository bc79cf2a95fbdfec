package gaps

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"control-advisor/internal/apperr"
	"control-advisor/internal/memstore"
	"control-advisor/internal/metrics"
	"control-advisor/internal/models"
)

// detectedFixture: сценарий, где открыт ровно один разрыв, по C.
func detectedFixture(t *testing.T) (*fixture, *Service) {
	t.Helper()
	f := newFixture(t)
	f.assess(t)
	f.cover(t, "A", models.CoverageExists)

	svc := New(f.store)
	res, err := svc.DetectGaps(f.ctx, f.process.ID, "r1")
	require.NoError(t, err)
	require.Equal(t, 1, res.Count)
	return f, svc
}

func TestGenerateToBeControls(t *testing.T) {
	t.Run("one gap yields one linked control copied from the catalog", func(t *testing.T) {
		f, svc := detectedFixture(t)
		std := f.std["C"]

		res, err := svc.GenerateToBeControls(f.ctx, f.process.ID, "r1")
		require.NoError(t, err)
		require.Equal(t, 1, res.Count)

		tb := res.Controls[0]
		assert.Equal(t, std.ControlType, tb.ControlType)
		assert.Equal(t, std.DomainTag, tb.DomainTag)
		assert.Equal(t, std.ID, tb.StdControlID)
		assert.Equal(t, std.Name, tb.Name)
		assert.Equal(t, std.Objective, tb.Objective)
		assert.Equal(t, std.Frequency, tb.Frequency)
		assert.Equal(t, std.Evidence, tb.EvidenceType)
		assert.Equal(t, DefaultOwnerRole, tb.OwnerRole)
		assert.Equal(t, "Implement Control C to address missing gap", tb.ImplementationGuidance)
		assert.Equal(t, models.StatusPlanned, tb.Status)

		gaps, err := f.store.ListGapsByProcess(f.ctx, f.process.ID)
		require.NoError(t, err)
		require.Len(t, gaps, 1)
		require.NotNil(t, gaps[0].RecommendedToBeControlID)
		assert.Equal(t, tb.ID, *gaps[0].RecommendedToBeControlID)
		assert.Equal(t, tb.GapID, gaps[0].ID)
		require.NotNil(t, gaps[0].RecommendedToBeControl)
		assert.Equal(t, tb.ID, gaps[0].RecommendedToBeControl.ID)
	})

	t.Run("linked gaps are skipped on rerun", func(t *testing.T) {
		f, svc := detectedFixture(t)

		_, err := svc.GenerateToBeControls(f.ctx, f.process.ID, "r1")
		require.NoError(t, err)
		again, err := svc.GenerateToBeControls(f.ctx, f.process.ID, "r1")
		require.NoError(t, err)

		assert.Equal(t, 0, again.Count)
		assert.Equal(t, 1, again.Skipped)
		assert.Empty(t, again.Controls)

		all, err := svc.ListToBeControls(f.ctx, f.process.ID)
		require.NoError(t, err)
		assert.Len(t, all, 1)
	})

	t.Run("gaps with an unknown standard control are left alone", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.store.FindOrCreateGap(f.ctx, &models.Gap{
			ProcessID: f.process.ID, RiskID: "r1", StdControlID: "gone", GapType: models.GapMissing,
		})
		require.NoError(t, err)

		res, err := New(f.store).GenerateToBeControls(f.ctx, f.process.ID, "r1")
		require.NoError(t, err)
		assert.Equal(t, 0, res.Count)
		assert.Equal(t, 0, res.Skipped)
	})

	t.Run("no gaps means nothing to do", func(t *testing.T) {
		f := newFixture(t)
		m := metrics.New()

		res, err := New(f.store, WithMetrics(m)).GenerateToBeControls(f.ctx, f.process.ID, "r1")
		require.NoError(t, err)
		assert.Equal(t, 0, res.Count)
		assert.NotNil(t, res.Controls)
		assert.Equal(t, 0.0, testutil.ToFloat64(m.ToBeGenerated))
	})

	t.Run("missing ids", func(t *testing.T) {
		f := newFixture(t)
		_, err := New(f.store).GenerateToBeControls(f.ctx, "", "r1")
		assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
	})
}

// failingLinkStore роняет привязку рекомендации к разрыву.
type failingLinkStore struct {
	*memstore.Store
	mock.Mock
}

func (s *failingLinkStore) LinkGapRecommendation(ctx context.Context, gapID, toBeControlID string) error {
	return s.Called(gapID).Error(0)
}

func TestGenerateToBeControlsRollsBackOnLinkFailure(t *testing.T) {
	f, _ := detectedFixture(t)
	gaps, err := f.store.ListGaps(f.ctx, f.process.ID, "r1")
	require.NoError(t, err)
	require.Len(t, gaps, 1)

	store := &failingLinkStore{Store: f.store}
	store.On("LinkGapRecommendation", gaps[0].ID).Return(errors.New("connection reset"))

	_, err = New(store).GenerateToBeControls(f.ctx, f.process.ID, "r1")
	require.Error(t, err)
	assert.Equal(t, apperr.KindStorage, apperr.KindOf(err))

	controls, err := f.store.ListToBeControls(f.ctx, f.process.ID)
	require.NoError(t, err)
	assert.Empty(t, controls)
	store.AssertExpectations(t)
}

func TestUpdateToBeStatus(t *testing.T) {
	f, svc := detectedFixture(t)
	res, err := svc.GenerateToBeControls(f.ctx, f.process.ID, "r1")
	require.NoError(t, err)
	id := res.Controls[0].ID

	t.Run("valid transition", func(t *testing.T) {
		updated, err := svc.UpdateToBeStatus(f.ctx, id, models.StatusLive)
		require.NoError(t, err)
		assert.Equal(t, models.StatusLive, updated.Status)
	})

	t.Run("unknown status", func(t *testing.T) {
		_, err := svc.UpdateToBeStatus(f.ctx, id, "done")
		assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
	})

	t.Run("unknown control", func(t *testing.T) {
		_, err := svc.UpdateToBeStatus(f.ctx, "missing", models.StatusInProgress)
		assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
	})
}
