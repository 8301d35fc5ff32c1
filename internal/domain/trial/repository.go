package trial

import "context"

type Repository interface {
	// Record inserts the first-use row for a (fingerprint, device) pair.
	// A pair that already exists returns ierr.ErrConflict; the store's
	// uniqueness constraint is what resolves concurrent first uses, and the
	// loser treats the conflict as "already used".
	Record(ctx context.Context, licenseFingerprint, deviceID string) error
	Count(ctx context.Context) (int64, error)
}
