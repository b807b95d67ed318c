// Package idempotency keeps the first response of a keyed request in Redis so
// that client retries replay it instead of posting money twice.
package idempotency

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	keyPrefix     = "idem:"
	pendingMarker = "pending"
	// pendingTTL bounds how long a crashed request can block its key.
	pendingTTL = time.Minute
)

var ErrInProgress = errors.New("request with this idempotency key is still in progress")

// Response is the stored outcome of the first request.
type Response struct {
	Status      int    `json:"status"`
	ContentType string `json:"contentType"`
	Body        []byte `json:"body"`
}

type Store struct {
	client redis.Cmdable
	ttl    time.Duration
}

// NewStore returns nil when client is nil, which callers treat as "disabled".
func NewStore(client redis.Cmdable, ttl time.Duration) *Store {
	if client == nil {
		return nil
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Store{client: client, ttl: ttl}
}

// Connect parses a redis:// URL and pings the server.
func Connect(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return client, nil
}

func Key(userID, key string) string {
	return keyPrefix + userID + ":" + key
}

// Reserve claims key for a new request. It returns the stored response when
// the key already completed, ErrInProgress while another request holds it,
// and (nil, nil) when the caller now owns the key.
func (s *Store) Reserve(ctx context.Context, key string) (*Response, error) {
	if s == nil {
		return nil, nil
	}
	claimed, err := s.client.SetNX(ctx, key, pendingMarker, pendingTTL).Result()
	if err != nil {
		return nil, fmt.Errorf("redis setnx: %w", err)
	}
	if claimed {
		return nil, nil
	}
	raw, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		// Expired between SETNX and GET; try once more.
		return s.Reserve(ctx, key)
	}
	if err != nil {
		return nil, fmt.Errorf("redis get: %w", err)
	}
	if string(raw) == pendingMarker {
		return nil, ErrInProgress
	}
	var stored Response
	if err := json.Unmarshal(raw, &stored); err != nil {
		return nil, fmt.Errorf("decode stored response: %w", err)
	}
	return &stored, nil
}

func (s *Store) Save(ctx context.Context, key string, resp Response) error {
	if s == nil {
		return nil
	}
	raw, err := json.Marshal(resp)
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, key, raw, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Release drops a reservation so the request can be retried.
func (s *Store) Release(ctx context.Context, key string) error {
	if s == nil {
		return nil
	}
	if err := s.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("redis delete: %w", err)
	}
	return nil
}
