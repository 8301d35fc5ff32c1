package service

import (
	"context"
	"testing"
	"time"

	"github.com/mosaichq/license-api/internal/config"
	"github.com/mosaichq/license-api/internal/ierr"
	"github.com/mosaichq/license-api/internal/storage/memstorage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newAuthFixture(t *testing.T) *AuthService {
	t.Helper()
	users, err := memstorage.NewUserRepositoryMock("admin", "correct horse battery staple")
	require.NoError(t, err)

	svc, err := NewAuthService(users, &config.JWTConfig{
		Secret:   "test-jwt-secret",
		TokenTTL: time.Hour,
	}, zap.NewNop())
	require.NoError(t, err)
	return svc
}

func TestNewAuthService_RequiresSecret(t *testing.T) {
	users, err := memstorage.NewUserRepositoryMock("admin", "pw")
	require.NoError(t, err)

	_, err = NewAuthService(users, &config.JWTConfig{TokenTTL: time.Hour}, zap.NewNop())
	assert.ErrorIs(t, err, ierr.ErrConfiguration)
}

func TestLogin_IssuesValidatableToken(t *testing.T) {
	svc := newAuthFixture(t)

	token, err := svc.Login(context.Background(), "admin", "correct horse battery staple")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "admin", claims.Username)
	assert.Equal(t, "admin", claims.Role)
	assert.NotEmpty(t, claims.Subject)
}

func TestLogin_RejectsWrongPassword(t *testing.T) {
	svc := newAuthFixture(t)

	_, err := svc.Login(context.Background(), "admin", "wrong")
	assert.ErrorIs(t, err, ierr.ErrInvalidCredentials)
}

func TestLogin_RejectsUnknownUser(t *testing.T) {
	svc := newAuthFixture(t)

	_, err := svc.Login(context.Background(), "nobody", "whatever")
	assert.ErrorIs(t, err, ierr.ErrInvalidCredentials)
}

func TestValidateToken_RejectsGarbage(t *testing.T) {
	svc := newAuthFixture(t)

	_, err := svc.ValidateToken("not.a.jwt")
	assert.ErrorIs(t, err, ierr.ErrInvalidToken)
}

func TestValidateToken_RejectsForeignSignature(t *testing.T) {
	svc := newAuthFixture(t)

	other, err := memstorage.NewUserRepositoryMock("admin", "pw")
	require.NoError(t, err)
	foreign, err := NewAuthService(other, &config.JWTConfig{
		Secret:   "a-different-secret",
		TokenTTL: time.Hour,
	}, zap.NewNop())
	require.NoError(t, err)

	token, err := foreign.Login(context.Background(), "admin", "pw")
	require.NoError(t, err)

	_, err = svc.ValidateToken(token)
	assert.ErrorIs(t, err, ierr.ErrInvalidToken)
}
