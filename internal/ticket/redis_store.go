package ticket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mobilierdefrance/sav-ai-platform/pkg/logging"
)

const redisKeyPrefix = "sav:pending:"

// RedisStore is a pending store backed by Redis, for deployments where
// validation may land on a different instance than the one that triaged the
// claim. Entries expire after the TTL: an unvalidated claim is abandoned.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
	logger *logging.Logger

	// Guards read-modify-write cycles within this process. Cross-instance
	// updates to the same ticket are not expected: a validation link is
	// only sent to one customer.
	mu sync.Mutex
}

// NewRedisStore creates a Redis-backed pending store. A non-positive ttl
// defaults to 72 hours, matching the validation window quoted to customers.
func NewRedisStore(client *redis.Client, ttl time.Duration, logger *logging.Logger) *RedisStore {
	if client == nil {
		panic("ticket: redis client is required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	if ttl <= 0 {
		ttl = 72 * time.Hour
	}
	return &RedisStore{client: client, ttl: ttl, logger: logger}
}

func (s *RedisStore) Put(ctx context.Context, t *Ticket) error {
	payload, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("ticket: marshal pending %s: %w", t.ID, err)
	}
	if err := s.client.Set(ctx, redisKeyPrefix+t.ID, payload, s.ttl).Err(); err != nil {
		return fmt.Errorf("ticket: store pending %s: %w", t.ID, err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, id string) (*Ticket, error) {
	payload, err := s.client.Get(ctx, redisKeyPrefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("ticket: load pending %s: %w", id, err)
	}

	var t Ticket
	if err := json.Unmarshal(payload, &t); err != nil {
		return nil, fmt.Errorf("ticket: decode pending %s: %w", id, err)
	}
	return &t, nil
}

func (s *RedisStore) Update(ctx context.Context, id string, fn func(*Ticket) error) (*Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := fn(t); err != nil {
		return nil, err
	}
	if err := s.Put(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

func (s *RedisStore) Delete(ctx context.Context, id string) error {
	if err := s.client.Del(ctx, redisKeyPrefix+id).Err(); err != nil {
		return fmt.Errorf("ticket: delete pending %s: %w", id, err)
	}
	return nil
}
