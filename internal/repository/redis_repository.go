package repository

import (
	"context"

	"github.com/redis/go-redis/v9"
)

const redisCounterPrefix = "counter:"

type redisCounterRepository struct {
	client redis.Cmdable
}

// NewRedisCounterRepository returns a counter store backed by INCR, which
// creates the key on first use.
func NewRedisCounterRepository(client redis.Cmdable) CounterRepository {
	return &redisCounterRepository{client: client}
}

func (r *redisCounterRepository) Increment(ctx context.Context, name string) (int64, error) {
	return r.client.Incr(ctx, redisCounterPrefix+name).Result()
}
