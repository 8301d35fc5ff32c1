package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mosaichq/license-api/internal/domain/customer"
	"github.com/mosaichq/license-api/internal/domain/license"
	"github.com/mosaichq/license-api/internal/ierr"
	"github.com/stripe/stripe-go/v82"
	"go.uber.org/zap"
)

const defaultPlan = "pro-monthly"

// ReconcileService is the single entry point for authenticated Stripe
// events. Purchase completions route to issuance, lifecycle events to the
// bulk status update; both sides are idempotent, so re-delivered events are
// harmless. Unknown event types are acknowledged and skipped so new Stripe
// event types never put the webhook into a retry loop.
type ReconcileService struct {
	issuance  *IssuanceService
	customers customer.Repository
	licenses  license.Repository
	logger    *zap.Logger
}

func NewReconcileService(issuance *IssuanceService, customers customer.Repository, licenses license.Repository, logger *zap.Logger) *ReconcileService {
	return &ReconcileService{
		issuance:  issuance,
		customers: customers,
		licenses:  licenses,
		logger:    logger.Named("ReconcileService"),
	}
}

func (s *ReconcileService) ProcessEvent(ctx context.Context, event stripe.Event) error {
	s.logger.Info("Processing Stripe event", zap.String("type", string(event.Type)), zap.String("event_id", event.ID))

	switch event.Type {
	case "checkout.session.completed":
		return s.handleCheckoutCompleted(ctx, event)
	case "invoice.paid":
		return s.handleInvoiceEvent(ctx, event, license.StatusActive)
	case "invoice.payment_failed":
		return s.handleInvoiceEvent(ctx, event, license.StatusSuspended)
	case "customer.subscription.updated":
		return s.handleSubscriptionUpdated(ctx, event)
	case "customer.subscription.deleted":
		return s.handleSubscriptionDeleted(ctx, event)
	default:
		s.logger.Debug("Ignoring unhandled Stripe event type", zap.String("type", string(event.Type)))
		return nil
	}
}

func (s *ReconcileService) handleCheckoutCompleted(ctx context.Context, event stripe.Event) error {
	var session stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
		return fmt.Errorf("%w: cannot unmarshal checkout session: %v", ierr.ErrValidation, err)
	}

	// One-off payments do not carry a subscription to keep a license in
	// sync with.
	if session.Mode != stripe.CheckoutSessionModeSubscription {
		s.logger.Info("Skipping non-subscription checkout session",
			zap.String("session_id", session.ID),
			zap.String("mode", string(session.Mode)),
		)
		return nil
	}

	var stripeCustomerID string
	if session.Customer != nil {
		stripeCustomerID = session.Customer.ID
	}
	if stripeCustomerID == "" {
		return fmt.Errorf("%w: checkout session %s has no customer", ierr.ErrValidation, session.ID)
	}

	email := session.CustomerEmail
	if session.CustomerDetails != nil && session.CustomerDetails.Email != "" {
		email = session.CustomerDetails.Email
	}

	plan := defaultPlan
	if p, ok := session.Metadata["plan"]; ok && p != "" {
		plan = p
	}

	_, err := s.issuance.Issue(ctx, IssueParams{
		StripeCustomerID: stripeCustomerID,
		Email:            email,
		Plan:             plan,
		SessionID:        session.ID,
		Actor:            license.ActorStripe,
	})
	return err
}

func (s *ReconcileService) handleInvoiceEvent(ctx context.Context, event stripe.Event, status license.Status) error {
	var invoice stripe.Invoice
	if err := json.Unmarshal(event.Data.Raw, &invoice); err != nil {
		return fmt.Errorf("%w: cannot unmarshal invoice: %v", ierr.ErrValidation, err)
	}

	if invoice.Customer == nil || invoice.Customer.ID == "" {
		s.logger.Warn("Invoice event without customer, skipping", zap.String("event_id", event.ID))
		return nil
	}

	return s.applyToCustomer(ctx, invoice.Customer.ID, status)
}

func (s *ReconcileService) handleSubscriptionUpdated(ctx context.Context, event stripe.Event) error {
	var sub stripe.Subscription
	if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
		return fmt.Errorf("%w: cannot unmarshal subscription: %v", ierr.ErrValidation, err)
	}

	if sub.Customer == nil || sub.Customer.ID == "" {
		s.logger.Warn("Subscription event without customer, skipping", zap.String("event_id", event.ID))
		return nil
	}

	return s.applyToCustomer(ctx, sub.Customer.ID, license.StatusForSubscription(string(sub.Status)))
}

func (s *ReconcileService) handleSubscriptionDeleted(ctx context.Context, event stripe.Event) error {
	var sub stripe.Subscription
	if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
		return fmt.Errorf("%w: cannot unmarshal subscription: %v", ierr.ErrValidation, err)
	}

	if sub.Customer == nil || sub.Customer.ID == "" {
		s.logger.Warn("Subscription event without customer, skipping", zap.String("event_id", event.ID))
		return nil
	}

	return s.applyToCustomer(ctx, sub.Customer.ID, license.StatusCanceled)
}

// applyToCustomer bulk-updates every license the customer owns. An unknown
// customer is a no-op, not an error: the event may predate the first
// issuance, or belong to another product on the same Stripe account.
func (s *ReconcileService) applyToCustomer(ctx context.Context, stripeCustomerID string, status license.Status) error {
	cust, err := s.customers.FindByStripeID(ctx, stripeCustomerID)
	if err != nil {
		if errors.Is(err, ierr.ErrNotFound) {
			s.logger.Info("Lifecycle event for unknown customer, ignoring", zap.String("stripe_customer_id", stripeCustomerID))
			return nil
		}
		return err
	}

	rows, err := s.licenses.UpdateStatusByCustomer(ctx, cust.ID, status)
	if err != nil {
		return err
	}

	s.logger.Info("Reconciled license status",
		zap.String("stripe_customer_id", stripeCustomerID),
		zap.String("status", string(status)),
		zap.Int64("licenses", rows),
	)
	return nil
}
