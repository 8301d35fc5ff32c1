package service

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/mosaichq/license-api/internal/config"
	"github.com/mosaichq/license-api/internal/domain/user"
	"github.com/mosaichq/license-api/internal/ierr"
	"github.com/mosaichq/license-api/internal/storage/memstorage"
	"go.uber.org/zap"
)

type Claims struct {
	Username string `json:"username"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

// AuthService issues and validates the HS256 tokens guarding the dashboard
// surface.
type AuthService struct {
	users  user.Repository
	cfg    *config.JWTConfig
	logger *zap.Logger
}

func NewAuthService(users user.Repository, cfg *config.JWTConfig, logger *zap.Logger) (*AuthService, error) {
	if cfg.Secret == "" {
		return nil, fmt.Errorf("%w: jwt secret is empty", ierr.ErrConfiguration)
	}
	return &AuthService{
		users:  users,
		cfg:    cfg,
		logger: logger.Named("AuthService"),
	}, nil
}

func (s *AuthService) Login(ctx context.Context, username, password string) (string, error) {
	u, err := s.users.FindByUsername(ctx, username)
	if err != nil {
		s.logger.Info("Login attempt for unknown user", zap.String("username", username))
		return "", ierr.ErrInvalidCredentials
	}

	if !memstorage.CheckPassword(u.PasswordHash, password) {
		s.logger.Info("Login attempt with wrong password", zap.String("username", username))
		return "", ierr.ErrInvalidCredentials
	}

	now := time.Now()
	claims := Claims{
		Username: u.Username,
		Role:     u.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.cfg.TokenTTL)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.cfg.Secret))
	if err != nil {
		s.logger.Error("Failed to sign access token", zap.Error(err))
		return "", fmt.Errorf("failed to sign token: %w", err)
	}

	s.logger.Info("User logged in", zap.String("username", u.Username))
	return signed, nil
}

func (s *AuthService) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(s.cfg.Secret), nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ierr.ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ierr.ErrInvalidToken
	}

	return claims, nil
}
