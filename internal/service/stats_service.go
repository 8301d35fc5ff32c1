package service

import (
	"context"

	"github.com/mosaichq/license-api/internal/domain/license"
	"github.com/mosaichq/license-api/internal/domain/trial"
	"github.com/mosaichq/license-api/internal/handler/dto"
	"github.com/mosaichq/license-api/internal/metrics"
	"go.uber.org/zap"
)

type StatsService struct {
	licenses license.Repository
	trials   trial.Repository
	logger   *zap.Logger
}

func NewStatsService(licenses license.Repository, trials trial.Repository, logger *zap.Logger) *StatsService {
	return &StatsService{
		licenses: licenses,
		trials:   trials,
		logger:   logger.Named("StatsService"),
	}
}

func (s *StatsService) Summary(ctx context.Context) (*dto.DashboardSummaryResponse, error) {
	statusCounts, err := s.licenses.CountByStatus(ctx)
	if err != nil {
		return nil, err
	}

	planCounts, err := s.licenses.CountByPlan(ctx)
	if err != nil {
		return nil, err
	}

	trialCount, err := s.trials.Count(ctx)
	if err != nil {
		return nil, err
	}

	var total int64
	for _, count := range statusCounts {
		total += count
	}

	return &dto.DashboardSummaryResponse{
		TotalLicenses:        total,
		StatusCounts:         statusCounts,
		PlanCounts:           planCounts,
		TrialDevicesConsumed: trialCount,
	}, nil
}

// RefreshGauges recomputes the prometheus license gauges. Invoked by the
// periodic stats task, never from a request path.
func (s *StatsService) RefreshGauges(ctx context.Context) error {
	statusCounts, err := s.licenses.CountByStatus(ctx)
	if err != nil {
		return err
	}

	for _, status := range []license.Status{license.StatusActive, license.StatusSuspended, license.StatusCanceled} {
		metrics.LicensesByStatus.WithLabelValues(string(status)).Set(float64(statusCounts[status]))
	}

	trialCount, err := s.trials.Count(ctx)
	if err != nil {
		return err
	}
	metrics.TrialDevicesConsumed.Set(float64(trialCount))

	s.logger.Debug("License gauges refreshed")
	return nil
}
