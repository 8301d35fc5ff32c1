package memstorage

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/mosaichq/license-api/internal/domain/user"
	"github.com/mosaichq/license-api/internal/ierr"
	"golang.org/x/crypto/bcrypt"
)

// UserRepositoryMock holds the single configured admin account used by the
// dashboard login. There is no user management in this service.
type UserRepositoryMock struct {
	mu    sync.RWMutex
	users map[string]*user.User
}

func NewUserRepositoryMock(adminUsername, adminPassword string) (*UserRepositoryMock, error) {
	repo := &UserRepositoryMock{
		users: make(map[string]*user.User),
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(adminPassword), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	adminUser := &user.User{
		ID:           uuid.New(),
		Username:     adminUsername,
		PasswordHash: string(hashedPassword),
		Role:         "admin",
	}
	repo.users[strings.ToLower(adminUser.Username)] = adminUser

	return repo, nil
}

var _ user.Repository = (*UserRepositoryMock)(nil)

func (r *UserRepositoryMock) FindByUsername(ctx context.Context, username string) (*user.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.users[strings.ToLower(username)]
	if !ok {
		return nil, ierr.ErrUserNotFound
	}

	userCopy := *u
	return &userCopy, nil
}

func CheckPassword(hashedPassword, password string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password))
	return err == nil
}
