package repository

import (
	"context"

	"github.com/telecomx/user-service/internal/domain"
)

// UserRepository defines persistence access for users. Lookups that find
// nothing return domain.ErrUserNotFound.
type UserRepository interface {
	// FindActiveByNameOrEmail returns a non-deleted user holding name or email.
	// Empty arguments are ignored; a non-empty excludeUserID skips that user.
	FindActiveByNameOrEmail(ctx context.Context, name, email, excludeUserID string) (*domain.User, error)
	// FindByUserID does not filter deleted users.
	FindByUserID(ctx context.Context, userID string) (*domain.User, error)
	FindByEmail(ctx context.Context, email string) (*domain.User, error)
	Search(ctx context.Context, filter UserFilter) ([]domain.User, error)
	Save(ctx context.Context, user *domain.User) error
}

// CounterRepository owns named monotonically increasing sequences.
type CounterRepository interface {
	// Increment atomically bumps the named sequence, creating it on first
	// use, and returns the new value.
	Increment(ctx context.Context, name string) (int64, error)
}

// UserFilter describes list parameters.
type UserFilter struct {
	Query  string
	Offset int
	Limit  int
}
