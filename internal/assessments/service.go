package assessments

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"control-advisor/internal/apperr"
	"control-advisor/internal/models"
	"control-advisor/internal/profile"
)

type Store interface {
	InTx(ctx context.Context, fn func(ctx context.Context) error) error
	CountAssessments(ctx context.Context, processID string) (int, error)
	CreateAssessment(ctx context.Context, a *models.MaturityAssessment) error
	// ListAssessments: от новых к старым.
	ListAssessments(ctx context.Context, processID string) ([]models.MaturityAssessment, error)
}

// Service принимает анкеты зрелости и сохраняет их вместе с выведенным профилем.
type Service struct {
	store Store
	log   *zap.Logger
}

func New(store Store, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{store: store, log: log}
}

func (s *Service) Submit(ctx context.Context, processID string, answers profile.Answers) (*models.MaturityAssessment, error) {
	processID = strings.TrimSpace(processID)

	var v apperr.Fields
	v.Require("processId", processID != "")
	v.Require("answers", answers != nil)
	if err := v.Err(); err != nil {
		return nil, err
	}

	assessment := &models.MaturityAssessment{
		ProcessID: processID,
		Answers:   map[string]any(answers),
		Profile:   profile.Derive(answers),
	}

	err := s.store.InTx(ctx, func(ctx context.Context) error {
		n, err := s.store.CountAssessments(ctx, processID)
		if err != nil {
			return err
		}
		assessment.Version = n + 1
		return s.store.CreateAssessment(ctx, assessment)
	})
	if errors.Is(err, apperr.ErrDuplicate) {
		// параллельная отправка заняла ту же версию
		return nil, apperr.Conflict("maturity assessment was submitted concurrently, retry")
	}
	if err != nil {
		return nil, apperr.Storage(err, "failed to save maturity assessment")
	}

	s.log.Info("maturity assessment submitted",
		zap.String("process_id", processID),
		zap.Int("version", assessment.Version),
		zap.Stringer("profile", assessment.Profile))
	return assessment, nil
}

func (s *Service) List(ctx context.Context, processID string) ([]models.MaturityAssessment, error) {
	list, err := s.store.ListAssessments(ctx, strings.TrimSpace(processID))
	if err != nil {
		return nil, apperr.Storage(err, "failed to load maturity assessments")
	}
	return list, nil
}
