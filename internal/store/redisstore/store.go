package redisstore

import (
	"context"

	"github.com/redis/go-redis/v9"
)

const pendingKey = "escalations:pending"

// Store mirrors escalated tickets into redis for the agent-facing tools.
type Store struct {
	rdb *redis.Client
}

func New(addr, password string, db int) *Store {
	return &Store{
		rdb: redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: password,
			DB:       db,
		}),
	}
}

func (s *Store) Close() error { return s.rdb.Close() }

func (s *Store) PushPendingTicket(ctx context.Context, payload []byte) error {
	return s.rdb.RPush(ctx, pendingKey, payload).Err()
}

func (s *Store) PendingCount(ctx context.Context) (int64, error) {
	return s.rdb.LLen(ctx, pendingKey).Result()
}

func (s *Store) PendingTickets(ctx context.Context) ([]string, error) {
	return s.rdb.LRange(ctx, pendingKey, 0, -1).Result()
}
