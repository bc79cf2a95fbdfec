package gaps

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"control-advisor/internal/applicability"
	"control-advisor/internal/apperr"
	"control-advisor/internal/models"
	"control-advisor/internal/profile"
)

// DetectResult: разрывы по всем непокрытым применимым контролям.
// Created: сколько из них записано именно этим запуском.
type DetectResult struct {
	Gaps    []models.Gap `json:"gaps"`
	Count   int          `json:"count"`
	Created int          `json:"created"`
}

// FilterApplicable оставляет записи каталога, чьё правило применимо.
func FilterApplicable(catalog []models.StandardControl, p profile.Set, flags applicability.Flags) []models.StandardControl {
	out := make([]models.StandardControl, 0, len(catalog))
	for _, entry := range catalog {
		if applicability.Applies(entry.Applicability, p, flags) {
			out = append(out, entry)
		}
	}
	return out
}

// Applicable: FilterApplicable с предупреждением о нераспознанных правилах.
func (s *Service) Applicable(catalog []models.StandardControl, p profile.Set, flags applicability.Flags) []models.StandardControl {
	for _, entry := range catalog {
		if entry.Applicability.Kind() == applicability.KindUnknown {
			s.log.Warn("unrecognized applicability rule treated as applicable",
				zap.String("std_control_id", entry.ID),
				zap.String("code", entry.Code),
				zap.String("rule", entry.Applicability.Raw()))
		}
	}
	return FilterApplicable(catalog, p, flags)
}

// DetectGaps находит применимые стандартные контроли, не покрытые as-is
// контролями процесса, и фиксирует по ним разрывы. Повторный запуск без
// изменения покрытия возвращает тот же набор.
func (s *Service) DetectGaps(ctx context.Context, processID, riskID string) (*DetectResult, error) {
	processID = strings.TrimSpace(processID)
	riskID = strings.TrimSpace(riskID)

	var v apperr.Fields
	v.Require("processId", processID != "")
	v.Require("riskId", riskID != "")
	if err := v.Err(); err != nil {
		return nil, err
	}

	// параллельные запуски для одной пары склеиваются в один;
	// отмена одного вызывающего общую работу не прерывает
	shared := context.WithoutCancel(ctx)
	res, err, _ := s.flight.Do(processID+"\x00"+riskID, func() (any, error) {
		return s.detect(shared, processID, riskID)
	})
	if err != nil {
		s.metrics.ObserveGapRun(string(apperr.KindOf(err)))
		return nil, err
	}

	out := res.(*DetectResult)
	s.metrics.ObserveGapRun("ok")
	return out, nil
}

func (s *Service) detect(ctx context.Context, processID, riskID string) (*DetectResult, error) {
	result := &DetectResult{Gaps: []models.Gap{}}

	err := s.store.InTx(ctx, func(ctx context.Context) error {
		assessment, err := s.store.LatestAssessment(ctx, processID)
		if err != nil {
			if errors.Is(err, apperr.ErrRecordNotFound) {
				return apperr.Precondition("maturity assessment is required before gap analysis")
			}
			return apperr.Storage(err, "failed to load maturity assessment")
		}

		flags, err := s.orgFlags(ctx, processID)
		if err != nil {
			return err
		}

		catalog, err := s.store.ListStandardControls(ctx)
		if err != nil {
			return apperr.Storage(err, "failed to load standard controls")
		}
		applicable := s.Applicable(catalog, assessment.Profile, flags)

		asIs, err := s.store.ListAsIsControls(ctx, processID)
		if err != nil {
			return apperr.Storage(err, "failed to load as-is controls")
		}
		coverage := coverageByStdControl(asIs)

		for _, entry := range applicable {
			gapType, open := s.classify(coverage[entry.ID])
			if !open {
				continue
			}

			gap := &models.Gap{
				ProcessID:    processID,
				RiskID:       riskID,
				StdControlID: entry.ID,
				GapType:      gapType,
			}
			created, err := s.store.FindOrCreateGap(ctx, gap)
			if err != nil {
				return apperr.Storage(err, "failed to record gap")
			}
			if created {
				result.Created++
			}
			result.Gaps = append(result.Gaps, *gap)
		}
		return nil
	})
	if err != nil {
		return nil, apperr.Wrap(err, "gap analysis failed")
	}

	result.Count = len(result.Gaps)
	s.metrics.AddGapsDetected(result.Created)
	s.log.Info("gap analysis completed",
		zap.String("process_id", processID),
		zap.String("risk_id", riskID),
		zap.Int("gaps", result.Count),
		zap.Int("created", result.Created))
	return result, nil
}

// orgFlags: неизвестный процесс или процесс без организации: все признаки false.
func (s *Service) orgFlags(ctx context.Context, processID string) (applicability.Flags, error) {
	flags, err := s.store.OrganizationFlags(ctx, processID)
	if err != nil {
		if errors.Is(err, apperr.ErrRecordNotFound) {
			s.log.Debug("no organization context for process", zap.String("process_id", processID))
			return applicability.Flags{}, nil
		}
		return applicability.Flags{}, apperr.Storage(err, "failed to load organization flags")
	}
	return flags, nil
}

// coverageByStdControl: лучший статус среди as-is контролей, сопоставленных
// каждому стандартному контролю.
func coverageByStdControl(asIs []models.AsIsControl) map[string]models.CoverageStatus {
	rank := map[models.CoverageStatus]int{
		models.CoverageNotExist: 1,
		models.CoveragePartial:  2,
		models.CoverageExists:   3,
	}

	out := make(map[string]models.CoverageStatus)
	for _, c := range asIs {
		if c.MappedStdControlID == nil || *c.MappedStdControlID == "" {
			continue
		}
		id := *c.MappedStdControlID
		if rank[c.Status] > rank[out[id]] {
			out[id] = c.Status
		}
	}
	return out
}

// classify возвращает тип разрыва и признак того, что разрыв открыт.
func (s *Service) classify(status models.CoverageStatus) (models.GapType, bool) {
	switch status {
	case models.CoverageExists:
		return "", false
	case models.CoveragePartial:
		switch s.partial {
		case PartialAsCovered:
			return "", false
		case PartialAsWeakOperation:
			return models.GapWeakOperation, true
		}
	}
	return models.GapMissing, true
}

// ListGapsByProcess: разрывы процесса со связанными стандартными и целевыми контролями.
func (s *Service) ListGapsByProcess(ctx context.Context, processID string) ([]models.Gap, error) {
	gaps, err := s.store.ListGapsByProcess(ctx, processID)
	if err != nil {
		return nil, apperr.Storage(err, "failed to load gaps")
	}
	return gaps, nil
}
