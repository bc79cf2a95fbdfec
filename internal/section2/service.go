package section2

import (
	"context"

	"go.uber.org/zap"

	"control-advisor/internal/metrics"
	"control-advisor/internal/models"
)

// Store: хранилище выбора зрелости, срезов анализа и принятых контролей.
// Upsert-методы атомарно вставляют или перезаписывают строку по riskId и
// возвращают сохранённую версию.
type Store interface {
	UpsertMaturitySelection(ctx context.Context, sel *models.MaturitySelection) (*models.MaturitySelection, error)
	FindMaturitySelection(ctx context.Context, riskID string) (*models.MaturitySelection, error)
	UpsertGapAnalysisSnapshot(ctx context.Context, snap *models.GapAnalysisSnapshot) (*models.GapAnalysisSnapshot, error)
	FindGapAnalysisSnapshot(ctx context.Context, riskID string) (*models.GapAnalysisSnapshot, error)
	CreateRiskControl(ctx context.Context, c *models.RiskControl) error
}

type Service struct {
	store   Store
	log     *zap.Logger
	metrics *metrics.Metrics
}

type Option func(*Service)

func WithLogger(log *zap.Logger) Option {
	return func(s *Service) {
		s.log = log
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func New(store Store, opts ...Option) *Service {
	s := &Service{store: store, log: zap.NewNop()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}
