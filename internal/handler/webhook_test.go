package handler

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/mosaichq/license-api/internal/domain/license"
	"github.com/mosaichq/license-api/internal/ierr"
	"github.com/mosaichq/license-api/internal/keycodec"
	"github.com/mosaichq/license-api/internal/service"
	"github.com/mosaichq/license-api/internal/storage/memstorage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testSigningSecret = "whsec_test_secret"

type webhookFixture struct {
	router   *gin.Engine
	licenses *memstorage.LicenseRepository
}

func newWebhookFixture(t *testing.T, licenses license.Repository) *webhookFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	codec, err := keycodec.New("test-hmac-secret")
	require.NoError(t, err)

	customers := memstorage.NewCustomerRepository()
	memLicenses := memstorage.NewLicenseRepository()
	if licenses == nil {
		licenses = memLicenses
	}

	issuance := service.NewIssuanceService(customers, licenses, codec, zap.NewNop())
	reconciler := service.NewReconcileService(issuance, customers, licenses, zap.NewNop())
	webhookHandler := NewWebhookHandler(reconciler, testSigningSecret, zap.NewNop())

	router := gin.New()
	router.POST("/api/v1/webhooks/stripe", webhookHandler.HandleStripe)

	return &webhookFixture{router: router, licenses: memLicenses}
}

// signPayload produces a Stripe-Signature header the same way Stripe's SDK
// does: v1 is HMAC-SHA256 over "<timestamp>.<payload>".
func signPayload(payload []byte, secret string, ts time.Time) string {
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.%s", ts.Unix(), payload)
	return fmt.Sprintf("t=%d,v1=%s", ts.Unix(), hex.EncodeToString(mac.Sum(nil)))
}

func checkoutCompletedPayload(t *testing.T, sessionID string) []byte {
	t.Helper()
	payload, err := json.Marshal(map[string]interface{}{
		"id":   "evt_test_1",
		"type": "checkout.session.completed",
		"data": map[string]interface{}{
			"object": map[string]interface{}{
				"id":       sessionID,
				"mode":     "subscription",
				"customer": "cus_1",
				"customer_details": map[string]interface{}{
					"email": "buyer@example.com",
				},
			},
		},
	})
	require.NoError(t, err)
	return payload
}

func (f *webhookFixture) post(payload []byte, signature string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/stripe", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	if signature != "" {
		req.Header.Set("Stripe-Signature", signature)
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func TestHandleStripe_ValidEventIssuesLicense(t *testing.T) {
	f := newWebhookFixture(t, nil)

	payload := checkoutCompletedPayload(t, "cs_test_1")
	w := f.post(payload, signPayload(payload, testSigningSecret, time.Now()))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"received": true}`, w.Body.String())

	lic, err := f.licenses.FindBySessionID(context.Background(), "cs_test_1")
	require.NoError(t, err)
	assert.Equal(t, license.StatusActive, lic.Status)
}

func TestHandleStripe_MissingSignatureRejected(t *testing.T) {
	f := newWebhookFixture(t, nil)

	w := f.post(checkoutCompletedPayload(t, "cs_test_1"), "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleStripe_WrongSecretRejected(t *testing.T) {
	f := newWebhookFixture(t, nil)

	payload := checkoutCompletedPayload(t, "cs_test_1")
	w := f.post(payload, signPayload(payload, "whsec_wrong", time.Now()))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"error": "invalid signature"}`, w.Body.String())
}

func TestHandleStripe_StaleTimestampRejected(t *testing.T) {
	f := newWebhookFixture(t, nil)

	payload := checkoutCompletedPayload(t, "cs_test_1")
	w := f.post(payload, signPayload(payload, testSigningSecret, time.Now().Add(-time.Hour)))

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleStripe_TamperedPayloadRejected(t *testing.T) {
	f := newWebhookFixture(t, nil)

	payload := checkoutCompletedPayload(t, "cs_test_1")
	signature := signPayload(payload, testSigningSecret, time.Now())
	tampered := bytes.Replace(payload, []byte("cus_1"), []byte("cus_2"), 1)

	w := f.post(tampered, signature)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

// Stripe sends events at the version the webhook endpoint is pinned to,
// which trails the SDK's own pin. A correctly signed event from an older
// version train must still process.
func TestHandleStripe_OlderAPIVersionAccepted(t *testing.T) {
	f := newWebhookFixture(t, nil)

	payload, err := json.Marshal(map[string]interface{}{
		"id":          "evt_test_1",
		"type":        "checkout.session.completed",
		"api_version": "2024-10-28.acacia",
		"data": map[string]interface{}{
			"object": map[string]interface{}{
				"id":       "cs_test_1",
				"mode":     "subscription",
				"customer": "cus_1",
			},
		},
	})
	require.NoError(t, err)

	w := f.post(payload, signPayload(payload, testSigningSecret, time.Now()))
	assert.Equal(t, http.StatusOK, w.Code)

	lic, err := f.licenses.FindBySessionID(context.Background(), "cs_test_1")
	require.NoError(t, err)
	assert.Equal(t, license.StatusActive, lic.Status)
}

func TestHandleStripe_OversizedBodyRejected(t *testing.T) {
	f := newWebhookFixture(t, nil)

	payload := bytes.Repeat([]byte("a"), int(maxWebhookBodyBytes)+1)
	w := f.post(payload, signPayload(payload, testSigningSecret, time.Now()))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"error": "request body too large"}`, w.Body.String())
}

func TestHandleStripe_UnknownEventAcked(t *testing.T) {
	f := newWebhookFixture(t, nil)

	payload, err := json.Marshal(map[string]interface{}{
		"id":   "evt_test_2",
		"type": "charge.refunded",
		"data": map[string]interface{}{"object": map[string]interface{}{}},
	})
	require.NoError(t, err)

	w := f.post(payload, signPayload(payload, testSigningSecret, time.Now()))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"received": true}`, w.Body.String())
}

type failingCreateLicenseRepo struct {
	*memstorage.LicenseRepository
}

func (r *failingCreateLicenseRepo) Create(ctx context.Context, lic *license.License) (uuid.UUID, error) {
	return uuid.Nil, fmt.Errorf("%w: storage offline", ierr.ErrPersistence)
}

// A persistence failure must surface as 5xx so Stripe re-delivers the event.
func TestHandleStripe_PersistenceFailureReturns500(t *testing.T) {
	f := newWebhookFixture(t, &failingCreateLicenseRepo{memstorage.NewLicenseRepository()})

	payload := checkoutCompletedPayload(t, "cs_test_1")
	w := f.post(payload, signPayload(payload, testSigningSecret, time.Now()))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
}
