package service

import (
	"context"
	"testing"

	"github.com/mosaichq/license-api/internal/domain/license"
	"github.com/mosaichq/license-api/internal/storage/memstorage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type verifyFixture struct {
	issuance *IssuanceService
	verify   *VerifyService
	licenses *memstorage.LicenseRepository
}

func newVerifyFixture(t *testing.T) *verifyFixture {
	t.Helper()
	codec := newTestCodec(t)
	customers := memstorage.NewCustomerRepository()
	licenses := memstorage.NewLicenseRepository()
	trials := memstorage.NewTrialUsageRepository()

	return &verifyFixture{
		issuance: NewIssuanceService(customers, licenses, codec, zap.NewNop()),
		verify:   NewVerifyService(licenses, trials, codec, zap.NewNop()),
		licenses: licenses,
	}
}

func (f *verifyFixture) issue(t *testing.T, plan, sessionID string) string {
	t.Helper()
	result, err := f.issuance.Issue(context.Background(), IssueParams{
		StripeCustomerID: "cus_1",
		Plan:             plan,
		SessionID:        sessionID,
		Actor:            license.ActorStripe,
	})
	require.NoError(t, err)
	return result.PlainKey
}

func TestVerify_MissingKey(t *testing.T) {
	f := newVerifyFixture(t)

	verdict, err := f.verify.Verify(context.Background(), "", "")
	require.NoError(t, err)
	assert.False(t, verdict.Valid)
	assert.Equal(t, ReasonNoKey, verdict.Reason)
}

func TestVerify_UnknownKey(t *testing.T) {
	f := newVerifyFixture(t)

	verdict, err := f.verify.Verify(context.Background(), "AAAAAAAA-BBBBBBBB-CCCCCCCC", "")
	require.NoError(t, err, "a lookup miss is a negative verdict, not an error")
	assert.False(t, verdict.Valid)
	assert.Equal(t, ReasonNotFound, verdict.Reason)
}

func TestVerify_ActiveLicense(t *testing.T) {
	f := newVerifyFixture(t)
	key := f.issue(t, "pro-monthly", "cs_test_1")

	verdict, err := f.verify.Verify(context.Background(), key, "")
	require.NoError(t, err)
	assert.True(t, verdict.Valid)
	assert.Equal(t, license.StatusActive, verdict.Status)
	assert.Empty(t, verdict.Reason)
}

func TestVerify_SuspendedLicense(t *testing.T) {
	f := newVerifyFixture(t)
	key := f.issue(t, "pro-monthly", "cs_test_1")

	require.NoError(t, f.licenses.UpdateStatusBySession(context.Background(), "cs_test_1", license.StatusSuspended))

	verdict, err := f.verify.Verify(context.Background(), key, "")
	require.NoError(t, err)
	assert.False(t, verdict.Valid)
	assert.Equal(t, license.StatusSuspended, verdict.Status)
}

func TestVerify_CanceledLicenseDeniedImmediately(t *testing.T) {
	f := newVerifyFixture(t)
	key := f.issue(t, "pro-monthly", "cs_test_1")

	require.NoError(t, f.licenses.UpdateStatusBySession(context.Background(), "cs_test_1", license.StatusCanceled))

	verdict, err := f.verify.Verify(context.Background(), key, "")
	require.NoError(t, err)
	assert.False(t, verdict.Valid)
	assert.Equal(t, ReasonCanceled, verdict.Reason)
	assert.Equal(t, license.StatusCanceled, verdict.Status)
}

func TestVerify_TrialSingleUsePerDevice(t *testing.T) {
	f := newVerifyFixture(t)
	key := f.issue(t, "trial-monthly", "cs_test_1")
	ctx := context.Background()

	first, err := f.verify.Verify(ctx, key, "device-a")
	require.NoError(t, err)
	assert.True(t, first.Valid)

	second, err := f.verify.Verify(ctx, key, "device-a")
	require.NoError(t, err)
	assert.False(t, second.Valid)
	assert.Equal(t, ReasonTrialAlreadyUsed, second.Reason)

	// A different device gets its own first use.
	other, err := f.verify.Verify(ctx, key, "device-b")
	require.NoError(t, err)
	assert.True(t, other.Valid)
}

func TestVerify_TrialDenialPersistsAcrossStatusChanges(t *testing.T) {
	f := newVerifyFixture(t)
	key := f.issue(t, "trial", "cs_test_1")
	ctx := context.Background()

	_, err := f.verify.Verify(ctx, key, "device-a")
	require.NoError(t, err)

	// Even after the license is re-asserted active, the consumed pair
	// stays consumed.
	require.NoError(t, f.licenses.UpdateStatusBySession(ctx, "cs_test_1", license.StatusActive))

	verdict, err := f.verify.Verify(ctx, key, "device-a")
	require.NoError(t, err)
	assert.False(t, verdict.Valid)
	assert.Equal(t, ReasonTrialAlreadyUsed, verdict.Reason)
}

func TestVerify_TrialWithoutDeviceSkipsConsumption(t *testing.T) {
	f := newVerifyFixture(t)
	key := f.issue(t, "trial-monthly", "cs_test_1")
	ctx := context.Background()

	// No device id supplied: no pair is consumed.
	verdict, err := f.verify.Verify(ctx, key, "")
	require.NoError(t, err)
	assert.True(t, verdict.Valid)

	// The first device use afterwards still succeeds.
	verdict, err = f.verify.Verify(ctx, key, "device-a")
	require.NoError(t, err)
	assert.True(t, verdict.Valid)
}

func TestVerify_NonTrialIgnoresDevice(t *testing.T) {
	f := newVerifyFixture(t)
	key := f.issue(t, "pro-monthly", "cs_test_1")
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		verdict, err := f.verify.Verify(ctx, key, "device-a")
		require.NoError(t, err)
		assert.True(t, verdict.Valid, "paid licenses are not device-bound")
	}
}
