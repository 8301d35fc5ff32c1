package dto

import (
	"github.com/mosaichq/license-api/internal/domain/license"
)

type VerifyLicenseRequest struct {
	LicenseKey string `json:"license_key"`
	Device     string `json:"device"`
}

type VerifyLicenseResponse struct {
	Valid  bool   `json:"valid"`
	Status string `json:"status,omitempty"`
	Reason string `json:"reason,omitempty"`
}

type ManualIssueRequest struct {
	Email string `json:"email" binding:"required,email"`
	Plan  string `json:"plan" binding:"required"`
}

type ManualIssueResponse struct {
	LicenseKey string `json:"license_key"`
	Plan       string `json:"plan"`
	Status     string `json:"status"`
	RecordID   string `json:"record_id"`
}

type ClaimLicenseRequest struct {
	SessionID string `json:"session_id" binding:"required"`
}

type ClaimLicenseResponse struct {
	LicenseKey string `json:"license_key,omitempty"`
	Plan       string `json:"plan"`
	Status     string `json:"status"`
}

func NewClaimLicenseResponse(lic *license.License) *ClaimLicenseResponse {
	resp := &ClaimLicenseResponse{
		Plan:   lic.Plan,
		Status: string(lic.Status),
	}
	if lic.PlainKey.Valid {
		resp.LicenseKey = lic.PlainKey.String
	}
	return resp
}
