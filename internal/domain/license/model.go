package license

import (
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusActive    Status = "active"
	StatusSuspended Status = "suspended"
	StatusCanceled  Status = "canceled"
)

// Actor identifies which path issued a license.
type Actor string

const (
	ActorStripe Actor = "stripe"
	ActorManual Actor = "manual"
	ActorCLI    Actor = "cli"
)

type License struct {
	ID             uuid.UUID      `db:"id"`
	CustomerID     uuid.NullUUID  `db:"customer_id"`
	Plan           string         `db:"plan"`
	Status         Status         `db:"status"`
	KeyFingerprint string         `db:"key_fingerprint"`
	// PlainKey is write-once at issuance and exists only so the
	// post-checkout claim endpoint can show the key again.
	PlainKey  sql.NullString `db:"plain_key"`
	SessionID string         `db:"session_id"`
	Email     sql.NullString `db:"email"`
	IssuedBy  Actor          `db:"issued_by"`
	CreatedAt time.Time      `db:"created_at"`
	UpdatedAt time.Time      `db:"updated_at"`
}

// IsTrialPlan reports whether the plan tag is a trial variant, e.g. "trial"
// or "trial-monthly". Trial licenses are bound to a single device on first
// verification.
func (l *License) IsTrialPlan() bool {
	return strings.Contains(l.Plan, "trial")
}
