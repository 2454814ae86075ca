package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"ai-helpdesk-be/pkg/store"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "helpdesk:session:"

func key(id string) string {
	return keyPrefix + id
}

// SessionRepository stores JSON-encoded sessions in Redis.
// Idle expiry is delegated to Redis key TTLs; the eviction hook is never called
// because expirations are not observed.
type SessionRepository struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewSessionRepository(rdb *redis.Client, ttl time.Duration) *SessionRepository {
	return &SessionRepository{rdb: rdb, ttl: ttl}
}

func (r *SessionRepository) OnEvicted(func(id string)) {}

func (r *SessionRepository) Get(ctx context.Context, id string) (*store.Session, bool, error) {
	data, err := r.rdb.Get(ctx, key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get: %w", err)
	}

	var s store.Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, false, fmt.Errorf("decode session: %w", err)
	}
	if s.Messages == nil {
		s.Messages = []store.Message{}
	}
	return &s, true, nil
}

func (r *SessionRepository) Save(ctx context.Context, session *store.Session) error {
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	if err := r.rdb.Set(ctx, key(session.ID), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

func (r *SessionRepository) Delete(ctx context.Context, id string) (bool, error) {
	n, err := r.rdb.Del(ctx, key(id)).Result()
	if err != nil {
		return false, fmt.Errorf("redis del: %w", err)
	}
	return n > 0, nil
}

// Count de-duplicates keys: SCAN may return a key more than once
func (r *SessionRepository) Count(ctx context.Context) (int, error) {
	keys, err := scanKeys(ctx, r.rdb.Scan(ctx, 0, keyPrefix+"*", 100).Iterator())
	if err != nil {
		return 0, err
	}
	return len(keys), nil
}

type keyIterator interface {
	Next(ctx context.Context) bool
	Val() string
	Err() error
}

func scanKeys(ctx context.Context, iter keyIterator) (map[string]struct{}, error) {
	keys := make(map[string]struct{})
	for iter.Next(ctx) {
		keys[iter.Val()] = struct{}{}
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("redis scan: %w", err)
	}
	return keys, nil
}
