package wizard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/grantdesk/grantdesk/internal/shared"
)

// Store keeps wizard state between requests.
type Store interface {
	Save(ctx context.Context, st *State) error
	Load(ctx context.Context, id string) (*State, error)
	Delete(ctx context.Context, id string) error
}

// RedisStore persists states as JSON with a sliding TTL.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore builds a store; ttl usually matches the session TTL.
func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

func (s *RedisStore) key(id string) string {
	return "grantdesk:wizard:" + id
}

// Save writes the state and refreshes its expiry.
func (s *RedisStore) Save(ctx context.Context, st *State) error {
	payload, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("wizard: encode state: %w", err)
	}
	if err := s.client.Set(ctx, s.key(st.ID), payload, s.ttl).Err(); err != nil {
		return fmt.Errorf("wizard: save state: %w", err)
	}
	return nil
}

// Load returns shared.ErrNotFound once the state expired or was closed.
func (s *RedisStore) Load(ctx context.Context, id string) (*State, error) {
	raw, err := s.client.Get(ctx, s.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, shared.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("wizard: load state: %w", err)
	}
	var st State
	if err := json.Unmarshal(raw, &st); err != nil {
		return nil, fmt.Errorf("wizard: decode state: %w", err)
	}
	if st.StepData == nil {
		st.StepData = map[string]Draft{}
	}
	if st.Committed == nil {
		st.Committed = map[int]bool{}
	}
	return &st, nil
}

// Delete removes the state.
func (s *RedisStore) Delete(ctx context.Context, id string) error {
	return s.client.Del(ctx, s.key(id)).Err()
}
