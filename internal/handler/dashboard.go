package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mosaichq/license-api/internal/service"
	"go.uber.org/zap"
)

type DashboardHandler struct {
	stats  *service.StatsService
	logger *zap.Logger
}

func NewDashboardHandler(stats *service.StatsService, logger *zap.Logger) *DashboardHandler {
	return &DashboardHandler{
		stats:  stats,
		logger: logger.Named("DashboardHandler"),
	}
}

func (h *DashboardHandler) GetSummary(c *gin.Context) {
	summary, err := h.stats.Summary(c.Request.Context())
	if err != nil {
		h.logger.Error("Failed to get dashboard summary from service", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve dashboard summary"})
		return
	}

	c.JSON(http.StatusOK, summary)
}
