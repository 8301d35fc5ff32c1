package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/mosaichq/license-api/internal/domain/license"
	"github.com/mosaichq/license-api/internal/handler/dto"
	"github.com/mosaichq/license-api/internal/ierr"
	"github.com/mosaichq/license-api/internal/service"
	"go.uber.org/zap"
)

type LicenseHandler struct {
	issuance *service.IssuanceService
	verify   *service.VerifyService
	licenses license.Repository
	logger   *zap.Logger
}

func NewLicenseHandler(issuance *service.IssuanceService, verify *service.VerifyService, licenses license.Repository, logger *zap.Logger) *LicenseHandler {
	return &LicenseHandler{
		issuance: issuance,
		verify:   verify,
		licenses: licenses,
		logger:   logger.Named("LicenseHandler"),
	}
}

// Verify answers whether a presented key grants access. Every outcome is a
// structured verdict; a lookup miss is a 200 with valid=false, never an
// error.
func (h *LicenseHandler) Verify(c *gin.Context) {
	var req dto.VerifyLicenseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("Failed to bind verify request body", zap.Error(err))
		c.JSON(http.StatusBadRequest, dto.VerifyLicenseResponse{Valid: false, Reason: service.ReasonNoKey})
		return
	}

	if req.LicenseKey == "" {
		c.JSON(http.StatusBadRequest, dto.VerifyLicenseResponse{Valid: false, Reason: service.ReasonNoKey})
		return
	}

	verdict, err := h.verify.Verify(c.Request.Context(), req.LicenseKey, req.Device)
	if err != nil {
		h.logger.Error("Verification failed", zap.Error(err))
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, dto.VerifyLicenseResponse{
		Valid:  verdict.Valid,
		Status: string(verdict.Status),
		Reason: verdict.Reason,
	})
}

// ManualIssue creates a license outside the billing flow. The admin-token
// middleware has already authenticated the caller. This is the only
// response that ever carries the plain key for this license.
func (h *LicenseHandler) ManualIssue(c *gin.Context) {
	var req dto.ManualIssueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("Failed to bind manual issue request", zap.Error(err))
		_ = c.Error(err)
		return
	}

	result, err := h.issuance.Issue(c.Request.Context(), service.IssueParams{
		Email:     req.Email,
		Plan:      req.Plan,
		SessionID: "manual_" + uuid.NewString(),
		Actor:     license.ActorManual,
	})
	if err != nil {
		h.logger.Error("Manual issuance failed", zap.Error(err))
		_ = c.Error(err)
		return
	}

	h.logger.Info("License issued manually",
		zap.String("id", result.License.ID.String()),
		zap.String("plan", req.Plan),
	)

	c.JSON(http.StatusOK, dto.ManualIssueResponse{
		LicenseKey: result.PlainKey,
		Plan:       result.License.Plan,
		Status:     string(result.License.Status),
		RecordID:   result.License.ID.String(),
	})
}

// Claim returns the stored key for a completed checkout session so the
// post-checkout page can display it. Returns 404 while the webhook that
// issues the license has not landed yet; the page retries.
func (h *LicenseHandler) Claim(c *gin.Context) {
	var req dto.ClaimLicenseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("Failed to bind claim request", zap.Error(err))
		_ = c.Error(err)
		return
	}

	lic, err := h.licenses.FindBySessionID(c.Request.Context(), req.SessionID)
	if err != nil {
		if errors.Is(err, ierr.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "license not ready, retry shortly"})
			return
		}

		h.logger.Error("Claim lookup failed", zap.String("session_id", req.SessionID), zap.Error(err))
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, dto.NewClaimLicenseResponse(lic))
}
