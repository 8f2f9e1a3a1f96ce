package repository

import (
	"context"
	"strings"
	"sync"

	"github.com/telecomx/user-service/internal/domain"
)

// memoryUserRepository keeps users in process memory. It backs the degraded
// mode used when no datastore is configured, and tests.
type memoryUserRepository struct {
	mu    sync.RWMutex
	order []string
	users map[string]domain.User
}

// NewMemoryUserRepository returns an in-memory implementation.
func NewMemoryUserRepository() UserRepository {
	return &memoryUserRepository{users: make(map[string]domain.User)}
}

func (r *memoryUserRepository) FindActiveByNameOrEmail(ctx context.Context, name, email, excludeUserID string) (*domain.User, error) {
	if name == "" && email == "" {
		return nil, domain.ErrUserNotFound
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, id := range r.order {
		u := r.users[id]
		if u.Deleted || (excludeUserID != "" && u.UserID == excludeUserID) {
			continue
		}
		if (name != "" && u.Name == name) || (email != "" && u.Email == email) {
			return &u, nil
		}
	}
	return nil, domain.ErrUserNotFound
}

func (r *memoryUserRepository) FindByUserID(ctx context.Context, userID string) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.users[userID]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return &u, nil
}

func (r *memoryUserRepository) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, id := range r.order {
		u := r.users[id]
		if !u.Deleted && u.Email == email {
			return &u, nil
		}
	}
	return nil, domain.ErrUserNotFound
}

func (r *memoryUserRepository) Search(ctx context.Context, filter UserFilter) ([]domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	q := strings.ToLower(filter.Query)
	out := make([]domain.User, 0)
	skipped := 0
	for _, id := range r.order {
		u := r.users[id]
		if u.Deleted {
			continue
		}
		if q != "" && !strings.Contains(strings.ToLower(u.Name), q) && !strings.Contains(strings.ToLower(u.Email), q) {
			continue
		}
		if skipped < filter.Offset {
			skipped++
			continue
		}
		if filter.Limit > 0 && len(out) >= filter.Limit {
			break
		}
		out = append(out, u)
	}
	return out, nil
}

func (r *memoryUserRepository) Save(ctx context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !user.Deleted {
		for _, other := range r.users {
			if other.Deleted || other.UserID == user.UserID {
				continue
			}
			if other.Name == user.Name || other.Email == user.Email {
				return domain.ErrDuplicateUser
			}
		}
	}
	if _, exists := r.users[user.UserID]; !exists {
		r.order = append(r.order, user.UserID)
	}
	r.users[user.UserID] = *user
	return nil
}

type memoryCounterRepository struct {
	mu   sync.Mutex
	seqs map[string]int64
}

// NewMemoryCounterRepository returns a process-local counter store.
func NewMemoryCounterRepository() CounterRepository {
	return &memoryCounterRepository{seqs: make(map[string]int64)}
}

func (r *memoryCounterRepository) Increment(ctx context.Context, name string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seqs[name]++
	return r.seqs[name], nil
}
