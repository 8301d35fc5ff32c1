package tasks

import (
	"context"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/mosaichq/license-api/internal/service"
	"go.uber.org/zap"
)

// StatsRefreshHandler recomputes the license gauges exposed on /metrics.
// Request paths never write gauges themselves; this periodic task is the
// single writer.
type StatsRefreshHandler struct {
	stats  *service.StatsService
	logger *zap.Logger
}

func NewStatsRefreshHandler(stats *service.StatsService, logger *zap.Logger) *StatsRefreshHandler {
	return &StatsRefreshHandler{
		stats:  stats,
		logger: logger.Named("StatsRefreshHandler"),
	}
}

func (h *StatsRefreshHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	if t.Type() != TypeStatsRefresh {
		return fmt.Errorf("unexpected task type: %s", t.Type())
	}

	h.logger.Debug("Refreshing license stats gauges...")

	if err := h.stats.RefreshGauges(ctx); err != nil {
		h.logger.Error("Failed to refresh license stats gauges", zap.Error(err))
		return fmt.Errorf("stats refresh failed: %w", err)
	}

	return nil
}
