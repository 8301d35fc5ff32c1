package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/mosaichq/license-api/internal/domain/customer"
	"github.com/mosaichq/license-api/internal/domain/license"
	"github.com/mosaichq/license-api/internal/ierr"
	"github.com/mosaichq/license-api/internal/keycodec"
	"github.com/mosaichq/license-api/internal/metrics"
	"go.uber.org/zap"
)

// IssuanceService creates at most one license per originating session id,
// however many times the triggering event is delivered. The session_id
// uniqueness constraint in the store is the authority; this service only
// arranges to lose races gracefully.
type IssuanceService struct {
	customers customer.Repository
	licenses  license.Repository
	codec     *keycodec.Codec
	logger    *zap.Logger
}

func NewIssuanceService(customers customer.Repository, licenses license.Repository, codec *keycodec.Codec, logger *zap.Logger) *IssuanceService {
	return &IssuanceService{
		customers: customers,
		licenses:  licenses,
		codec:     codec,
		logger:    logger.Named("IssuanceService"),
	}
}

type IssueParams struct {
	// StripeCustomerID is empty for manual and CLI issuance.
	StripeCustomerID string
	Email            string
	Plan             string
	// SessionID is the idempotency key: the checkout session id for Stripe
	// purchases, a synthetic "manual_..."/"cli_..." id otherwise.
	SessionID string
	Actor     license.Actor
}

type IssueResult struct {
	License *license.License
	// PlainKey is set only when this call actually created the license.
	// Duplicate deliveries never re-disclose the key.
	PlainKey string
	Created  bool
}

func (s *IssuanceService) Issue(ctx context.Context, p IssueParams) (*IssueResult, error) {
	if p.SessionID == "" {
		return nil, fmt.Errorf("%w: session id is required for issuance", ierr.ErrValidation)
	}
	if p.Plan == "" {
		return nil, fmt.Errorf("%w: plan is required for issuance", ierr.ErrValidation)
	}

	var customerID uuid.NullUUID
	if p.StripeCustomerID != "" {
		id, err := s.resolveCustomer(ctx, p.StripeCustomerID, p.Email)
		if err != nil {
			return nil, err
		}
		customerID = uuid.NullUUID{UUID: id, Valid: true}
	}

	existing, err := s.licenses.FindBySessionID(ctx, p.SessionID)
	if err == nil {
		return s.reassert(ctx, existing)
	}
	if !errors.Is(err, ierr.ErrNotFound) {
		return nil, err
	}

	plainKey, err := s.codec.Generate()
	if err != nil {
		s.logger.Error("Failed to generate license key", zap.Error(err))
		return nil, err
	}

	newLicense := &license.License{
		CustomerID:     customerID,
		Plan:           p.Plan,
		Status:         license.StatusActive,
		KeyFingerprint: s.codec.Fingerprint(plainKey),
		PlainKey:       sql.NullString{String: plainKey, Valid: true},
		SessionID:      p.SessionID,
		IssuedBy:       p.Actor,
	}
	if p.Email != "" {
		newLicense.Email = sql.NullString{String: p.Email, Valid: true}
	}

	insertedID, err := s.licenses.Create(ctx, newLicense)
	if err != nil {
		if errors.Is(err, ierr.ErrConflict) {
			// A concurrent delivery of the same event won the insert.
			s.logger.Info("License already issued by a concurrent delivery", zap.String("session_id", p.SessionID))
			winner, findErr := s.licenses.FindBySessionID(ctx, p.SessionID)
			if findErr != nil {
				return nil, findErr
			}
			return s.reassert(ctx, winner)
		}
		return nil, err
	}

	created, err := s.licenses.FindBySessionID(ctx, p.SessionID)
	if err != nil {
		s.logger.Error("Failed to re-read created license", zap.String("id", insertedID.String()), zap.Error(err))
		return nil, err
	}

	metrics.LicensesIssuedTotal.WithLabelValues(string(p.Actor)).Inc()
	s.logger.Info("License issued",
		zap.String("id", created.ID.String()),
		zap.String("session_id", p.SessionID),
		zap.String("plan", p.Plan),
		zap.String("actor", string(p.Actor)),
	)

	return &IssueResult{License: created, PlainKey: plainKey, Created: true}, nil
}

// reassert handles duplicate delivery: the purchase event speaks for an
// active subscription, so the existing license is set back to active, but
// the key stays undisclosed.
func (s *IssuanceService) reassert(ctx context.Context, existing *license.License) (*IssueResult, error) {
	if existing.Status != license.StatusActive {
		if err := s.licenses.UpdateStatusBySession(ctx, existing.SessionID, license.StatusActive); err != nil {
			return nil, err
		}
		existing.Status = license.StatusActive
	}

	s.logger.Debug("Duplicate issuance delivery reconciled", zap.String("session_id", existing.SessionID))
	return &IssueResult{License: existing, Created: false}, nil
}

func (s *IssuanceService) resolveCustomer(ctx context.Context, stripeCustomerID, email string) (uuid.UUID, error) {
	existing, err := s.customers.FindByStripeID(ctx, stripeCustomerID)
	if err == nil {
		return existing.ID, nil
	}
	if !errors.Is(err, ierr.ErrNotFound) {
		return uuid.Nil, err
	}

	newCustomer := &customer.Customer{StripeCustomerID: stripeCustomerID}
	if email != "" {
		newCustomer.Email = sql.NullString{String: email, Valid: true}
	}

	id, err := s.customers.Create(ctx, newCustomer)
	if err != nil {
		if errors.Is(err, ierr.ErrConflict) {
			winner, findErr := s.customers.FindByStripeID(ctx, stripeCustomerID)
			if findErr != nil {
				return uuid.Nil, findErr
			}
			return winner.ID, nil
		}
		return uuid.Nil, err
	}

	return id, nil
}
