package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mosaichq/license-api/internal/metrics"
	"github.com/mosaichq/license-api/internal/service"
	"github.com/stripe/stripe-go/v82/webhook"
	"go.uber.org/zap"
)

// Stripe recommends capping webhook bodies well below this; 64 KiB covers
// every event type this service handles.
const maxWebhookBodyBytes = int64(65536)

type WebhookHandler struct {
	reconciler    *service.ReconcileService
	signingSecret string
	logger        *zap.Logger
}

func NewWebhookHandler(reconciler *service.ReconcileService, signingSecret string, logger *zap.Logger) *WebhookHandler {
	return &WebhookHandler{
		reconciler:    reconciler,
		signingSecret: signingSecret,
		logger:        logger.Named("WebhookHandler"),
	}
}

// HandleStripe verifies the event signature over the exact bytes received,
// then hands the event to the reconciler. Signature failures get a generic
// 400; only a genuine persistence failure returns 5xx so Stripe retries.
func (h *WebhookHandler) HandleStripe(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBodyBytes)
	payload, err := io.ReadAll(c.Request.Body)
	if err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			h.logger.Warn("Webhook payload exceeds size cap", zap.Int64("limit", maxBytesErr.Limit))
			c.JSON(http.StatusBadRequest, gin.H{"error": "request body too large"})
			return
		}
		h.logger.Error("Failed to read webhook payload", zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "could not read request body"})
		return
	}

	// The endpoint's pinned Stripe API version moves independently of the
	// SDK's, so only the signature and timestamp decide authenticity here.
	signatureHeader := c.GetHeader("Stripe-Signature")
	event, err := webhook.ConstructEventWithOptions(payload, signatureHeader, h.signingSecret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		// No detail in the response; a verbose error here is a signature
		// oracle.
		h.logger.Warn("Webhook signature verification failed", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid signature"})
		return
	}

	metrics.WebhookEventsTotal.WithLabelValues(string(event.Type)).Inc()

	if err := h.reconciler.ProcessEvent(c.Request.Context(), event); err != nil {
		h.logger.Error("Failed to process webhook event",
			zap.String("type", string(event.Type)),
			zap.String("event_id", event.ID),
			zap.Error(err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "event processing failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"received": true})
}
