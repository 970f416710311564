package repository

import (
	"context"
	"sync"

	autherrors "slotbook/internal/auth/errors"
	"slotbook/pkg/model"
)

// MemoryUserRepository is the process-local counterpart of the mongo user
// repository.
type MemoryUserRepository struct {
	mu      sync.RWMutex
	byID    map[string]*model.User
	byEmail map[string]*model.User
}

func NewMemoryUserRepository() *MemoryUserRepository {
	return &MemoryUserRepository{
		byID:    make(map[string]*model.User),
		byEmail: make(map[string]*model.User),
	}
}

func cloneUser(u *model.User) *model.User {
	if u == nil {
		return nil
	}
	clone := *u
	return &clone
}

func (r *MemoryUserRepository) Insert(ctx context.Context, user *model.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byEmail[user.Email]; exists {
		return autherrors.ErrDuplicateEmail
	}
	stored := cloneUser(user)
	r.byID[user.ID] = stored
	r.byEmail[user.Email] = stored
	return nil
}

func (r *MemoryUserRepository) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	user, ok := r.byEmail[email]
	if !ok {
		return nil, autherrors.ErrUserNotFound
	}
	return cloneUser(user), nil
}

func (r *MemoryUserRepository) FindByID(ctx context.Context, id string) (*model.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	user, ok := r.byID[id]
	if !ok {
		return nil, autherrors.ErrUserNotFound
	}
	return cloneUser(user), nil
}
