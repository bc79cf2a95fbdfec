package gaps

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"control-advisor/internal/applicability"
	"control-advisor/internal/metrics"
	"control-advisor/internal/models"
)

// Store: всё, что детектору и синтезатору нужно от хранилища.
type Store interface {
	// InTx выполняет fn в одной транзакции; вложенные вызовы её переиспользуют.
	InTx(ctx context.Context, fn func(ctx context.Context) error) error

	LatestAssessment(ctx context.Context, processID string) (*models.MaturityAssessment, error)
	OrganizationFlags(ctx context.Context, processID string) (applicability.Flags, error)
	ListStandardControls(ctx context.Context) ([]models.StandardControl, error)
	ListAsIsControls(ctx context.Context, processID string) ([]models.AsIsControl, error)

	// FindOrCreateGap вставляет разрыв или заполняет gap уже существующей
	// записью с тем же (процесс, риск, стандартный контроль).
	FindOrCreateGap(ctx context.Context, gap *models.Gap) (created bool, err error)
	ListGaps(ctx context.Context, processID, riskID string) ([]models.Gap, error)
	ListGapsByProcess(ctx context.Context, processID string) ([]models.Gap, error)
	LinkGapRecommendation(ctx context.Context, gapID, toBeControlID string) error

	CreateToBeControl(ctx context.Context, c *models.ToBeControl) error
	FindToBeControl(ctx context.Context, id string) (*models.ToBeControl, error)
	ListToBeControls(ctx context.Context, processID string) ([]models.ToBeControl, error)
	UpdateToBeStatus(ctx context.Context, id string, status models.ImplementationStatus) error
}

// PartialPolicy: как трактовать as-is контроль со статусом partial.
type PartialPolicy string

const (
	// PartialAsMissing: partial не закрывает разрыв, тип разрыва missing.
	PartialAsMissing PartialPolicy = "missing"
	// PartialAsWeakOperation: разрыв создаётся с типом weak_operation.
	PartialAsWeakOperation PartialPolicy = "weak_operation"
	// PartialAsCovered: partial закрывает разрыв.
	PartialAsCovered PartialPolicy = "covered"
)

func ParsePartialPolicy(s string) (PartialPolicy, error) {
	switch p := PartialPolicy(s); p {
	case PartialAsMissing, PartialAsWeakOperation, PartialAsCovered:
		return p, nil
	}
	return "", fmt.Errorf("unknown partial coverage policy %q", s)
}

type Service struct {
	store   Store
	log     *zap.Logger
	metrics *metrics.Metrics
	partial PartialPolicy
	flight  singleflight.Group
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

func WithPartialPolicy(p PartialPolicy) Option {
	return func(s *Service) {
		s.partial = p
	}
}

func New(store Store, opts ...Option) *Service {
	s := &Service{store: store, log: zap.NewNop(), partial: PartialAsMissing}
	for _, opt := range opts {
		opt(s)
	}
	return s
}
