package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mosaichq/license-api/internal/domain/license"
	"github.com/mosaichq/license-api/internal/ierr"
	"go.uber.org/zap"
)

type LicenseRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewLicenseRepository(db *pgxpool.Pool, logger *zap.Logger) *LicenseRepository {
	return &LicenseRepository{
		db:     db,
		logger: logger.Named("LicenseRepository"),
	}
}

var _ license.Repository = (*LicenseRepository)(nil)

func (r *LicenseRepository) Create(ctx context.Context, lic *license.License) (uuid.UUID, error) {
	query := `
        INSERT INTO licenses (
            customer_id, plan, status, key_fingerprint, plain_key,
            session_id, email, issued_by
        ) VALUES (
            $1, $2, $3, $4, $5, $6, $7, $8
        ) RETURNING id
    `
	var insertedID uuid.UUID

	err := r.db.QueryRow(ctx, query,
		lic.CustomerID,
		lic.Plan,
		lic.Status,
		lic.KeyFingerprint,
		lic.PlainKey,
		lic.SessionID,
		lic.Email,
		lic.IssuedBy,
	).Scan(&insertedID)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode {
			r.logger.Warn("Attempted to create license violating a uniqueness constraint",
				zap.String("session_id", lic.SessionID),
				zap.String("constraint", pgErr.ConstraintName),
			)
			return uuid.Nil, fmt.Errorf("%w: license for session %s", ierr.ErrConflict, lic.SessionID)
		}

		r.logger.Error("Failed to create license in database", zap.Error(err))
		return uuid.Nil, fmt.Errorf("%w: create license: %v", ierr.ErrPersistence, err)
	}

	r.logger.Info("License created",
		zap.String("id", insertedID.String()),
		zap.String("session_id", lic.SessionID),
		zap.String("issued_by", string(lic.IssuedBy)),
	)
	return insertedID, nil
}

func (r *LicenseRepository) FindBySessionID(ctx context.Context, sessionID string) (*license.License, error) {
	query := selectLicense + ` WHERE session_id = $1`
	row := r.db.QueryRow(ctx, query, sessionID)
	return r.scanLicense(row)
}

func (r *LicenseRepository) FindByFingerprint(ctx context.Context, fingerprint string) (*license.License, error) {
	query := selectLicense + ` WHERE key_fingerprint = $1`
	row := r.db.QueryRow(ctx, query, fingerprint)
	return r.scanLicense(row)
}

func (r *LicenseRepository) UpdateStatusBySession(ctx context.Context, sessionID string, status license.Status) error {
	query := `
        UPDATE licenses SET status = $1, updated_at = now()
        WHERE session_id = $2
    `
	cmdTag, err := r.db.Exec(ctx, query, status, sessionID)
	if err != nil {
		r.logger.Error("Failed to update license status by session", zap.String("session_id", sessionID), zap.Error(err))
		return fmt.Errorf("%w: update status by session: %v", ierr.ErrPersistence, err)
	}

	if cmdTag.RowsAffected() == 0 {
		return fmt.Errorf("%w: license for session %s", ierr.ErrNotFound, sessionID)
	}

	return nil
}

// UpdateStatusByCustomer skips rows already canceled unless the incoming
// status is itself canceled: cancellation is sticky and only a new purchase
// re-grants access.
func (r *LicenseRepository) UpdateStatusByCustomer(ctx context.Context, customerID uuid.UUID, status license.Status) (int64, error) {
	query := `
        UPDATE licenses SET status = $1, updated_at = now()
        WHERE customer_id = $2
          AND ($1 = 'canceled' OR status <> 'canceled')
    `
	cmdTag, err := r.db.Exec(ctx, query, status, customerID)
	if err != nil {
		r.logger.Error("Failed to bulk update license status",
			zap.String("customer_id", customerID.String()),
			zap.String("status", string(status)),
			zap.Error(err),
		)
		return 0, fmt.Errorf("%w: update status by customer: %v", ierr.ErrPersistence, err)
	}

	r.logger.Info("License status applied to customer",
		zap.String("customer_id", customerID.String()),
		zap.String("status", string(status)),
		zap.Int64("rows", cmdTag.RowsAffected()),
	)
	return cmdTag.RowsAffected(), nil
}

func (r *LicenseRepository) CountByStatus(ctx context.Context) (map[license.Status]int64, error) {
	raw, err := r.countGrouped(ctx, `SELECT status, count(*) FROM licenses GROUP BY status`)
	if err != nil {
		return nil, err
	}

	counts := make(map[license.Status]int64, len(raw))
	for key, count := range raw {
		counts[license.Status(key)] = count
	}
	return counts, nil
}

func (r *LicenseRepository) CountByPlan(ctx context.Context) (map[string]int64, error) {
	return r.countGrouped(ctx, `SELECT plan, count(*) FROM licenses GROUP BY plan`)
}

func (r *LicenseRepository) countGrouped(ctx context.Context, query string) (map[string]int64, error) {
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		r.logger.Error("Failed to query grouped license counts", zap.Error(err))
		return nil, fmt.Errorf("%w: count licenses: %v", ierr.ErrPersistence, err)
	}
	defer rows.Close()

	counts := make(map[string]int64)
	for rows.Next() {
		var key string
		var count int64
		if err := rows.Scan(&key, &count); err != nil {
			return nil, fmt.Errorf("%w: scan count row: %v", ierr.ErrPersistence, err)
		}
		counts[key] = count
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate count rows: %v", ierr.ErrPersistence, err)
	}
	return counts, nil
}

const selectLicense = `
        SELECT
            id, customer_id, plan, status, key_fingerprint, plain_key,
            session_id, email, issued_by, created_at, updated_at
        FROM licenses`

func (r *LicenseRepository) scanLicense(row pgx.Row) (*license.License, error) {
	var lic license.License
	err := row.Scan(
		&lic.ID,
		&lic.CustomerID,
		&lic.Plan,
		&lic.Status,
		&lic.KeyFingerprint,
		&lic.PlainKey,
		&lic.SessionID,
		&lic.Email,
		&lic.IssuedBy,
		&lic.CreatedAt,
		&lic.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("license: %w", ierr.ErrNotFound)
		}

		r.logger.Error("Failed to scan license row", zap.Error(err))
		return nil, fmt.Errorf("%w: scan license: %v", ierr.ErrPersistence, err)
	}

	return &lic, nil
}
