package trial

import "time"

// Usage records that a (license fingerprint, device) pair has consumed a
// trial. Rows are never mutated or deleted; the table is a permanent abuse
// record.
type Usage struct {
	LicenseFingerprint string    `db:"license_fingerprint"`
	DeviceID           string    `db:"device_id"`
	UsedAt             time.Time `db:"used_at"`
}
