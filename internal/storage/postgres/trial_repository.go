package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mosaichq/license-api/internal/domain/trial"
	"github.com/mosaichq/license-api/internal/ierr"
	"go.uber.org/zap"
)

type TrialUsageRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewTrialUsageRepository(db *pgxpool.Pool, logger *zap.Logger) *TrialUsageRepository {
	return &TrialUsageRepository{
		db:     db,
		logger: logger.Named("TrialUsageRepository"),
	}
}

var _ trial.Repository = (*TrialUsageRepository)(nil)

func (r *TrialUsageRepository) Record(ctx context.Context, licenseFingerprint, deviceID string) error {
	query := `
        INSERT INTO license_device_usage (license_fingerprint, device_id)
        VALUES ($1, $2)
    `
	_, err := r.db.Exec(ctx, query, licenseFingerprint, deviceID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode {
			return fmt.Errorf("%w: trial already consumed on this device", ierr.ErrConflict)
		}

		r.logger.Error("Failed to record trial device usage", zap.String("device_id", deviceID), zap.Error(err))
		return fmt.Errorf("%w: record trial usage: %v", ierr.ErrPersistence, err)
	}

	r.logger.Info("Trial consumption recorded", zap.String("device_id", deviceID))
	return nil
}

func (r *TrialUsageRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.QueryRow(ctx, `SELECT count(*) FROM license_device_usage`).Scan(&count)
	if err != nil {
		r.logger.Error("Failed to count trial device usage", zap.Error(err))
		return 0, fmt.Errorf("%w: count trial usage: %v", ierr.ErrPersistence, err)
	}
	return count, nil
}
