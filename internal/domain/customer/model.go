package customer

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// Customer bridges a Stripe customer id to internal records. Created lazily
// on the first purchase event for that Stripe customer; never deleted, and
// the Stripe id never changes once set.
type Customer struct {
	ID               uuid.UUID      `db:"id"`
	StripeCustomerID string         `db:"stripe_customer_id"`
	Email            sql.NullString `db:"email"`
	CreatedAt        time.Time      `db:"created_at"`
}
