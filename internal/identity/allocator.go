// Package identity issues user identifiers.
package identity

import (
	"context"
	"fmt"
	"strconv"

	"github.com/telecomx/user-service/internal/repository"
)

// UserIDSequence is the counter name backing user identifiers.
const UserIDSequence = "userId"

// Allocator produces unique, monotonically increasing identifiers. All
// coordination happens in the counter store's atomic increment.
type Allocator struct {
	counters repository.CounterRepository
	sequence string
}

// NewAllocator returns an allocator over the userId sequence.
func NewAllocator(counters repository.CounterRepository) *Allocator {
	return &Allocator{counters: counters, sequence: UserIDSequence}
}

// NextID increments the sequence and returns its new value in base 10.
func (a *Allocator) NextID(ctx context.Context) (string, error) {
	seq, err := a.counters.Increment(ctx, a.sequence)
	if err != nil {
		return "", fmt.Errorf("allocate %s: %w", a.sequence, err)
	}
	return strconv.FormatInt(seq, 10), nil
}
