package store

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/andresvel/commerce-sync/internal/redisx"
)

// Redis keeps each document in a single Redis key (GET/SET of the whole
// document, no per-record structure).
type Redis struct {
	rdb *redis.Client
}

func NewRedis(rdb *redis.Client) *Redis {
	return &Redis{rdb: rdb}
}

func (r *Redis) Read(ctx context.Context, key string) ([]byte, error) {
	b, err := r.rdb.Get(ctx, redisx.DocKey(key)).Bytes()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return b, nil
}

func (r *Redis) Write(ctx context.Context, key string, doc []byte) error {
	if err := r.rdb.Set(ctx, redisx.DocKey(key), doc, 0).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrWrite, err)
	}
	return nil
}
