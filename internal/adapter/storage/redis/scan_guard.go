package redis

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// ScanGuard implements ports.ScanGuard using Redis SET NX. It makes QR
// presentation single-shot across service instances: the first claim of a
// nonce wins, every later claim of the same nonce loses, until the TTL
// passes and the token is long expired anyway.
type ScanGuard struct {
	client *goredis.Client
	prefix string
}

// NewScanGuard creates a new Redis-backed scan guard.
func NewScanGuard(client *goredis.Client) *ScanGuard {
	return &ScanGuard{
		client: client,
		prefix: "qrscan:",
	}
}

// CheckAndSet atomically claims a nonce. Returns true if the nonce was
// unclaimed (this presentation wins), false if already claimed.
func (s *ScanGuard) CheckAndSet(ctx context.Context, nonce string, ttl time.Duration) (bool, error) {
	if ttl <= 0 {
		ttl = time.Second
	}
	key := s.prefix + nonce
	result, err := s.client.SetArgs(ctx, key, 1, goredis.SetArgs{
		Mode: "NX",
		TTL:  ttl,
	}).Result()
	if err != nil {
		if err == goredis.Nil {
			// Key already exists — nonce was already presented
			return false, nil
		}
		return false, fmt.Errorf("redis scan guard: %w", err)
	}
	return result == "OK", nil
}

// Release drops an existing claim so the nonce can be presented again.
// Deleting an absent key is not an error.
func (s *ScanGuard) Release(ctx context.Context, nonce string) error {
	if err := s.client.Del(ctx, s.prefix+nonce).Err(); err != nil {
		return fmt.Errorf("redis scan guard release: %w", err)
	}
	return nil
}
