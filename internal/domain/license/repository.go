package license

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	// Create inserts a new license. A duplicate session id or fingerprint
	// returns ierr.ErrConflict so concurrent duplicate deliveries can fall
	// back to the already-issued row.
	Create(ctx context.Context, lic *License) (uuid.UUID, error)
	FindBySessionID(ctx context.Context, sessionID string) (*License, error)
	FindByFingerprint(ctx context.Context, fingerprint string) (*License, error)

	// UpdateStatusBySession re-asserts the status of the license issued for
	// a given checkout session.
	UpdateStatusBySession(ctx context.Context, sessionID string, status Status) error

	// UpdateStatusByCustomer applies a status to every license owned by the
	// customer. Canceled licenses are sticky: they are skipped unless the
	// incoming status is itself canceled. Returns the number of rows
	// touched.
	UpdateStatusByCustomer(ctx context.Context, customerID uuid.UUID, status Status) (int64, error)

	CountByStatus(ctx context.Context) (map[Status]int64, error)
	CountByPlan(ctx context.Context) (map[string]int64, error)
}
