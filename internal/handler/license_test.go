package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/mosaichq/license-api/internal/domain/license"
	"github.com/mosaichq/license-api/internal/handler/dto"
	"github.com/mosaichq/license-api/internal/handler/middleware"
	"github.com/mosaichq/license-api/internal/keycodec"
	"github.com/mosaichq/license-api/internal/service"
	"github.com/mosaichq/license-api/internal/storage/memstorage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testAdminToken = "test-admin-token"

type licenseFixture struct {
	router   *gin.Engine
	issuance *service.IssuanceService
	licenses *memstorage.LicenseRepository
}

func newLicenseFixture(t *testing.T) *licenseFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)
	logger := zap.NewNop()

	codec, err := keycodec.New("test-hmac-secret")
	require.NoError(t, err)

	customers := memstorage.NewCustomerRepository()
	licenses := memstorage.NewLicenseRepository()
	trials := memstorage.NewTrialUsageRepository()

	issuance := service.NewIssuanceService(customers, licenses, codec, logger)
	verify := service.NewVerifyService(licenses, trials, codec, logger)
	licenseHandler := NewLicenseHandler(issuance, verify, licenses, logger)

	router := gin.New()
	router.Use(middleware.ErrorHandlerMiddleware(logger))
	v1 := router.Group("/api/v1")
	v1.POST("/licenses/verify", licenseHandler.Verify)
	v1.POST("/licenses/claim", licenseHandler.Claim)
	v1.POST("/licenses/issue", middleware.AdminTokenMiddleware(testAdminToken, logger), licenseHandler.ManualIssue)

	return &licenseFixture{router: router, issuance: issuance, licenses: licenses}
}

func (f *licenseFixture) post(path string, body interface{}, headers map[string]string) *httptest.ResponseRecorder {
	raw, err := json.Marshal(body)
	if err != nil {
		panic(err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func (f *licenseFixture) issue(t *testing.T, plan, sessionID string) string {
	t.Helper()
	result, err := f.issuance.Issue(context.Background(), service.IssueParams{
		Email:     "buyer@example.com",
		Plan:      plan,
		SessionID: sessionID,
		Actor:     license.ActorManual,
	})
	require.NoError(t, err)
	require.True(t, result.Created)
	return result.PlainKey
}

func decodeVerify(t *testing.T, w *httptest.ResponseRecorder) dto.VerifyLicenseResponse {
	t.Helper()
	var resp dto.VerifyLicenseResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestVerify_EmptyKey(t *testing.T) {
	f := newLicenseFixture(t)

	w := f.post("/api/v1/licenses/verify", dto.VerifyLicenseRequest{}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	resp := decodeVerify(t, w)
	assert.False(t, resp.Valid)
	assert.Equal(t, service.ReasonNoKey, resp.Reason)
}

func TestVerify_UnknownKey(t *testing.T) {
	f := newLicenseFixture(t)

	w := f.post("/api/v1/licenses/verify", dto.VerifyLicenseRequest{LicenseKey: "AAAAAAAA-BBBBBBBB-CCCCCCCC"}, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	resp := decodeVerify(t, w)
	assert.False(t, resp.Valid)
	assert.Equal(t, service.ReasonNotFound, resp.Reason)
}

func TestVerify_ActiveKey(t *testing.T) {
	f := newLicenseFixture(t)
	key := f.issue(t, "pro-monthly", "manual_test_1")

	w := f.post("/api/v1/licenses/verify", dto.VerifyLicenseRequest{LicenseKey: key}, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	resp := decodeVerify(t, w)
	assert.True(t, resp.Valid)
	assert.Equal(t, string(license.StatusActive), resp.Status)
}

func TestVerify_TrialSingleUsePerDevice(t *testing.T) {
	f := newLicenseFixture(t)
	key := f.issue(t, "trial-monthly", "manual_trial_1")

	w := f.post("/api/v1/licenses/verify", dto.VerifyLicenseRequest{LicenseKey: key, Device: "device-a"}, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, decodeVerify(t, w).Valid)

	// The pair is consumed: the same device is denied on re-verification.
	w = f.post("/api/v1/licenses/verify", dto.VerifyLicenseRequest{LicenseKey: key, Device: "device-a"}, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	resp := decodeVerify(t, w)
	assert.False(t, resp.Valid)
	assert.Equal(t, service.ReasonTrialAlreadyUsed, resp.Reason)
}

func TestManualIssue_RequiresAdminToken(t *testing.T) {
	f := newLicenseFixture(t)
	body := dto.ManualIssueRequest{Email: "vip@example.com", Plan: "pro-monthly"}

	w := f.post("/api/v1/licenses/issue", body, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = f.post("/api/v1/licenses/issue", body, map[string]string{"X-Admin-Token": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestManualIssue_ReturnsKeyOnce(t *testing.T) {
	f := newLicenseFixture(t)

	w := f.post("/api/v1/licenses/issue",
		dto.ManualIssueRequest{Email: "vip@example.com", Plan: "pro-monthly"},
		map[string]string{"X-Admin-Token": testAdminToken})
	require.Equal(t, http.StatusOK, w.Code)

	var resp dto.ManualIssueResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.LicenseKey)
	assert.Equal(t, "pro-monthly", resp.Plan)
	assert.Equal(t, string(license.StatusActive), resp.Status)
	assert.NotEmpty(t, resp.RecordID)
}

func TestManualIssue_ValidatesBody(t *testing.T) {
	f := newLicenseFixture(t)
	headers := map[string]string{"X-Admin-Token": testAdminToken}

	w := f.post("/api/v1/licenses/issue", dto.ManualIssueRequest{Plan: "pro-monthly"}, headers)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = f.post("/api/v1/licenses/issue", dto.ManualIssueRequest{Email: "not-an-email", Plan: "pro-monthly"}, headers)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = f.post("/api/v1/licenses/issue", dto.ManualIssueRequest{Email: "vip@example.com"}, headers)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestClaim_NotReadyYet(t *testing.T) {
	f := newLicenseFixture(t)

	w := f.post("/api/v1/licenses/claim", dto.ClaimLicenseRequest{SessionID: "cs_pending"}, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestClaim_ReturnsIssuedKey(t *testing.T) {
	f := newLicenseFixture(t)
	key := f.issue(t, "pro-monthly", "cs_test_1")

	w := f.post("/api/v1/licenses/claim", dto.ClaimLicenseRequest{SessionID: "cs_test_1"}, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp dto.ClaimLicenseResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, key, resp.LicenseKey)
	assert.Equal(t, string(license.StatusActive), resp.Status)
}
