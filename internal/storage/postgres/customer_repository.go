package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mosaichq/license-api/internal/domain/customer"
	"github.com/mosaichq/license-api/internal/ierr"
	"go.uber.org/zap"
)

const uniqueViolationCode = "23505"

type CustomerRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewCustomerRepository(db *pgxpool.Pool, logger *zap.Logger) *CustomerRepository {
	return &CustomerRepository{
		db:     db,
		logger: logger.Named("CustomerRepository"),
	}
}

var _ customer.Repository = (*CustomerRepository)(nil)

func (r *CustomerRepository) Create(ctx context.Context, cust *customer.Customer) (uuid.UUID, error) {
	query := `
        INSERT INTO customers (stripe_customer_id, email)
        VALUES ($1, $2)
        RETURNING id
    `
	var insertedID uuid.UUID

	err := r.db.QueryRow(ctx, query, cust.StripeCustomerID, cust.Email).Scan(&insertedID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode {
			r.logger.Debug("Customer already exists for Stripe id",
				zap.String("stripe_customer_id", cust.StripeCustomerID),
				zap.String("constraint", pgErr.ConstraintName),
			)
			return uuid.Nil, fmt.Errorf("%w: customer %s", ierr.ErrConflict, cust.StripeCustomerID)
		}

		r.logger.Error("Failed to create customer in database", zap.Error(err))
		return uuid.Nil, fmt.Errorf("%w: create customer: %v", ierr.ErrPersistence, err)
	}

	r.logger.Info("Customer created", zap.String("id", insertedID.String()), zap.String("stripe_customer_id", cust.StripeCustomerID))
	return insertedID, nil
}

func (r *CustomerRepository) FindByStripeID(ctx context.Context, stripeCustomerID string) (*customer.Customer, error) {
	query := `
        SELECT id, stripe_customer_id, email, created_at
        FROM customers
        WHERE stripe_customer_id = $1
    `

	var cust customer.Customer
	err := r.db.QueryRow(ctx, query, stripeCustomerID).Scan(
		&cust.ID,
		&cust.StripeCustomerID,
		&cust.Email,
		&cust.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: customer %s", ierr.ErrNotFound, stripeCustomerID)
		}

		r.logger.Error("Failed to scan customer row", zap.Error(err))
		return nil, fmt.Errorf("%w: find customer: %v", ierr.ErrPersistence, err)
	}

	return &cust, nil
}
