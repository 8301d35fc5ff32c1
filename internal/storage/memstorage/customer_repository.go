package memstorage

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mosaichq/license-api/internal/domain/customer"
	"github.com/mosaichq/license-api/internal/ierr"
)

// CustomerRepository is an in-memory customer.Repository enforcing the same
// uniqueness the database does. Used by the service tests.
type CustomerRepository struct {
	mu         sync.RWMutex
	byStripeID map[string]*customer.Customer
}

func NewCustomerRepository() *CustomerRepository {
	return &CustomerRepository{
		byStripeID: make(map[string]*customer.Customer),
	}
}

var _ customer.Repository = (*CustomerRepository)(nil)

func (r *CustomerRepository) Create(ctx context.Context, cust *customer.Customer) (uuid.UUID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byStripeID[cust.StripeCustomerID]; exists {
		return uuid.Nil, fmt.Errorf("%w: customer %s", ierr.ErrConflict, cust.StripeCustomerID)
	}

	stored := *cust
	stored.ID = uuid.New()
	stored.CreatedAt = time.Now().UTC()
	r.byStripeID[stored.StripeCustomerID] = &stored

	return stored.ID, nil
}

func (r *CustomerRepository) FindByStripeID(ctx context.Context, stripeCustomerID string) (*customer.Customer, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	cust, ok := r.byStripeID[stripeCustomerID]
	if !ok {
		return nil, fmt.Errorf("%w: customer %s", ierr.ErrNotFound, stripeCustomerID)
	}

	custCopy := *cust
	return &custCopy, nil
}
