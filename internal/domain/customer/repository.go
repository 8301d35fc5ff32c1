package customer

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	// Create inserts a new customer. A duplicate Stripe customer id returns
	// ierr.ErrConflict; the caller re-reads and proceeds with the winner.
	Create(ctx context.Context, cust *Customer) (uuid.UUID, error)
	FindByStripeID(ctx context.Context, stripeCustomerID string) (*Customer, error)
}
