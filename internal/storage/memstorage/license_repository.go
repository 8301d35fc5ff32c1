package memstorage

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mosaichq/license-api/internal/domain/license"
	"github.com/mosaichq/license-api/internal/ierr"
)

// LicenseRepository is an in-memory license.Repository mirroring the
// database's uniqueness constraints on session_id and key_fingerprint and
// its sticky-cancel bulk update.
type LicenseRepository struct {
	mu        sync.RWMutex
	byID      map[uuid.UUID]*license.License
	bySession map[string]uuid.UUID
	byFinger  map[string]uuid.UUID
}

func NewLicenseRepository() *LicenseRepository {
	return &LicenseRepository{
		byID:      make(map[uuid.UUID]*license.License),
		bySession: make(map[string]uuid.UUID),
		byFinger:  make(map[string]uuid.UUID),
	}
}

var _ license.Repository = (*LicenseRepository)(nil)

func (r *LicenseRepository) Create(ctx context.Context, lic *license.License) (uuid.UUID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.bySession[lic.SessionID]; exists {
		return uuid.Nil, fmt.Errorf("%w: license for session %s", ierr.ErrConflict, lic.SessionID)
	}
	if _, exists := r.byFinger[lic.KeyFingerprint]; exists {
		return uuid.Nil, fmt.Errorf("%w: license fingerprint", ierr.ErrConflict)
	}

	stored := *lic
	stored.ID = uuid.New()
	now := time.Now().UTC()
	stored.CreatedAt = now
	stored.UpdatedAt = now

	r.byID[stored.ID] = &stored
	r.bySession[stored.SessionID] = stored.ID
	r.byFinger[stored.KeyFingerprint] = stored.ID

	return stored.ID, nil
}

func (r *LicenseRepository) FindBySessionID(ctx context.Context, sessionID string) (*license.License, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.bySession[sessionID]
	if !ok {
		return nil, fmt.Errorf("%w: license for session %s", ierr.ErrNotFound, sessionID)
	}

	licCopy := *r.byID[id]
	return &licCopy, nil
}

func (r *LicenseRepository) FindByFingerprint(ctx context.Context, fingerprint string) (*license.License, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byFinger[fingerprint]
	if !ok {
		return nil, fmt.Errorf("license: %w", ierr.ErrNotFound)
	}

	licCopy := *r.byID[id]
	return &licCopy, nil
}

func (r *LicenseRepository) UpdateStatusBySession(ctx context.Context, sessionID string, status license.Status) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	id, ok := r.bySession[sessionID]
	if !ok {
		return fmt.Errorf("%w: license for session %s", ierr.ErrNotFound, sessionID)
	}

	r.byID[id].Status = status
	r.byID[id].UpdatedAt = time.Now().UTC()
	return nil
}

func (r *LicenseRepository) UpdateStatusByCustomer(ctx context.Context, customerID uuid.UUID, status license.Status) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var touched int64
	for _, lic := range r.byID {
		if !lic.CustomerID.Valid || lic.CustomerID.UUID != customerID {
			continue
		}
		// Canceled stays canceled unless the event itself cancels.
		if lic.Status == license.StatusCanceled && status != license.StatusCanceled {
			continue
		}
		lic.Status = status
		lic.UpdatedAt = time.Now().UTC()
		touched++
	}

	return touched, nil
}

func (r *LicenseRepository) CountByStatus(ctx context.Context) (map[license.Status]int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	counts := make(map[license.Status]int64)
	for _, lic := range r.byID {
		counts[lic.Status]++
	}
	return counts, nil
}

func (r *LicenseRepository) CountByPlan(ctx context.Context) (map[string]int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	counts := make(map[string]int64)
	for _, lic := range r.byID {
		counts[lic.Plan]++
	}
	return counts, nil
}
