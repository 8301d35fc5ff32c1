package memstorage

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/mosaichq/license-api/internal/domain/trial"
	"github.com/mosaichq/license-api/internal/ierr"
)

type TrialUsageRepository struct {
	mu    sync.RWMutex
	pairs map[string]trial.Usage
}

func NewTrialUsageRepository() *TrialUsageRepository {
	return &TrialUsageRepository{
		pairs: make(map[string]trial.Usage),
	}
}

var _ trial.Repository = (*TrialUsageRepository)(nil)

func pairKey(licenseFingerprint, deviceID string) string {
	return licenseFingerprint + "\x00" + deviceID
}

func (r *TrialUsageRepository) Record(ctx context.Context, licenseFingerprint, deviceID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := pairKey(licenseFingerprint, deviceID)
	if _, exists := r.pairs[key]; exists {
		return fmt.Errorf("%w: trial already consumed on this device", ierr.ErrConflict)
	}

	r.pairs[key] = trial.Usage{
		LicenseFingerprint: licenseFingerprint,
		DeviceID:           deviceID,
		UsedAt:             time.Now().UTC(),
	}
	return nil
}

func (r *TrialUsageRepository) Count(ctx context.Context) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return int64(len(r.pairs)), nil
}
