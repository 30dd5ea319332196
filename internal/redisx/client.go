package redisx

import (
	"time"

	"github.com/redis/go-redis/v9"
)

// New returns a client with read/write timeouts applied, so a stuck Redis
// surfaces as a store error instead of a hung request.
func New(addr string) *redis.Client {
	r := redis.NewClient(&redis.Options{Addr: addr})
	return r.WithTimeout(2 * time.Second)
}
