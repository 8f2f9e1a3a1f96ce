package repository

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/telecomx/user-service/internal/domain"
)

func seedUsers(t *testing.T, repo UserRepository, users ...domain.User) {
	t.Helper()
	for i := range users {
		require.NoError(t, repo.Save(context.Background(), &users[i]))
	}
}

func TestMemoryUserRepository_FindActiveByNameOrEmail(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryUserRepository()
	seedUsers(t, repo,
		domain.User{UserID: "1", Name: "A", Email: "a@x.com"},
		domain.User{UserID: "2", Name: "B", Email: "b@x.com", Deleted: true},
	)

	got, err := repo.FindActiveByNameOrEmail(ctx, "A", "", "")
	require.NoError(t, err)
	assert.Equal(t, "1", got.UserID)

	got, err = repo.FindActiveByNameOrEmail(ctx, "", "a@x.com", "")
	require.NoError(t, err)
	assert.Equal(t, "1", got.UserID)

	_, err = repo.FindActiveByNameOrEmail(ctx, "A", "a@x.com", "1")
	assert.ErrorIs(t, err, domain.ErrUserNotFound, "self is excluded")

	_, err = repo.FindActiveByNameOrEmail(ctx, "B", "b@x.com", "")
	assert.ErrorIs(t, err, domain.ErrUserNotFound, "deleted users do not count")

	_, err = repo.FindActiveByNameOrEmail(ctx, "", "", "")
	assert.ErrorIs(t, err, domain.ErrUserNotFound)
}

func TestMemoryUserRepository_FindByUserIDIncludesDeleted(t *testing.T) {
	repo := NewMemoryUserRepository()
	seedUsers(t, repo, domain.User{UserID: "9", Name: "Z", Email: "z@x.com", Deleted: true})

	got, err := repo.FindByUserID(context.Background(), "9")
	require.NoError(t, err)
	assert.True(t, got.Deleted)

	_, err = repo.FindByUserID(context.Background(), "10")
	assert.ErrorIs(t, err, domain.ErrUserNotFound)
}

func TestMemoryUserRepository_FindByEmailSkipsDeleted(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryUserRepository()
	seedUsers(t, repo,
		domain.User{UserID: "1", Name: "A", Email: "a@x.com", Deleted: true},
		domain.User{UserID: "2", Name: "A2", Email: "a@x.com"},
	)

	got, err := repo.FindByEmail(ctx, "a@x.com")
	require.NoError(t, err)
	assert.Equal(t, "2", got.UserID)
}

func TestMemoryUserRepository_Search(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryUserRepository()
	seedUsers(t, repo,
		domain.User{UserID: "1", Name: "Alice", Email: "alice@x.com"},
		domain.User{UserID: "2", Name: "Bob", Email: "bob@x.com"},
		domain.User{UserID: "3", Name: "Carol", Email: "carol@ALICE.org"},
		domain.User{UserID: "4", Name: "Dave", Email: "dave@x.com", Deleted: true},
	)

	tests := []struct {
		name   string
		filter UserFilter
		want   []string
	}{
		{"all active in insertion order", UserFilter{Limit: 50}, []string{"1", "2", "3"}},
		{"case insensitive on name or email", UserFilter{Query: "alice", Limit: 50}, []string{"1", "3"}},
		{"offset", UserFilter{Offset: 1, Limit: 50}, []string{"2", "3"}},
		{"limit", UserFilter{Limit: 2}, []string{"1", "2"}},
		{"offset past end", UserFilter{Offset: 10, Limit: 50}, []string{}},
		{"deleted never match", UserFilter{Query: "dave", Limit: 50}, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			users, err := repo.Search(ctx, tt.filter)
			require.NoError(t, err)
			ids := make([]string, 0, len(users))
			for _, u := range users {
				ids = append(ids, u.UserID)
			}
			assert.Equal(t, tt.want, ids)
		})
	}
}

func TestMemoryUserRepository_SaveRejectsActiveDuplicates(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryUserRepository()
	seedUsers(t, repo, domain.User{UserID: "1", Name: "A", Email: "a@x.com"})

	err := repo.Save(ctx, &domain.User{UserID: "2", Name: "B", Email: "a@x.com"})
	assert.ErrorIs(t, err, domain.ErrDuplicateUser)

	deleted, err := repo.FindByUserID(ctx, "1")
	require.NoError(t, err)
	deleted.Deleted = true
	require.NoError(t, repo.Save(ctx, deleted))

	assert.NoError(t, repo.Save(ctx, &domain.User{UserID: "2", Name: "B", Email: "a@x.com"}))
}

func TestMemoryCounterRepository_ConcurrentIncrementsAreUnique(t *testing.T) {
	repo := NewMemoryCounterRepository()

	const n = 100
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		seen = make(map[int64]bool, n)
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := repo.Increment(context.Background(), "userId")
			assert.NoError(t, err)
			mu.Lock()
			defer mu.Unlock()
			assert.False(t, seen[v], fmt.Sprintf("duplicate value %d", v))
			seen[v] = true
		}()
	}
	wg.Wait()

	assert.Len(t, seen, n)
}
