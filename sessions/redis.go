package sessions

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	keyPrefix        = "session:"
	maxUpdateRetries = 5
	scanBatch        = 100
)

// RedisStore keeps sessions as JSON values with a sliding TTL. Updates use
// WATCH/MULTI so concurrent writers to one session never interleave.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

func key(id string) string {
	return keyPrefix + id
}

func (r *RedisStore) Create(ctx context.Context, s *Session) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %v", err)
	}
	ok, err := r.client.SetNX(ctx, key(s.ID), data, r.ttl).Result()
	if err != nil {
		return fmt.Errorf("%w: failed to store in Redis: %v", ErrStore, err)
	}
	if !ok {
		return fmt.Errorf("session %s already exists", s.ID)
	}
	return nil
}

func (r *RedisStore) Get(ctx context.Context, id string) (*Session, error) {
	return r.load(ctx, r.client, id)
}

type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func (r *RedisStore) load(ctx context.Context, c getter, id string) (*Session, error) {
	data, err := c.Get(ctx, key(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: redis error getting session %s: %v", ErrStore, id, err)
	}

	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session %s: %v", id, err)
	}
	return &s, nil
}

func (r *RedisStore) Update(ctx context.Context, id string, fn func(s *Session) error) (*Session, error) {
	var updated *Session
	var fnErr error

	txf := func(tx *redis.Tx) error {
		s, err := r.load(ctx, tx, id)
		if err != nil {
			fnErr = err
			return err
		}
		if err := fn(s); err != nil {
			fnErr = err
			return err
		}
		data, err := json.Marshal(s)
		if err != nil {
			return fmt.Errorf("failed to marshal session: %v", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key(id), data, r.ttl)
			return nil
		})
		if err == nil {
			updated = s
		}
		return err
	}

	for i := 0; i < maxUpdateRetries; i++ {
		fnErr = nil
		err := r.client.Watch(ctx, txf, key(id))
		if err == nil {
			return updated, nil
		}
		if fnErr != nil {
			return nil, fnErr
		}
		if !errors.Is(err, redis.TxFailedErr) {
			return nil, fmt.Errorf("%w: %v", ErrStore, err)
		}
		log.Printf("Session %s changed during update, retrying (%d/%d)", id, i+1, maxUpdateRetries)
	}
	return nil, ErrConflict
}

func (r *RedisStore) Delete(ctx context.Context, id string) error {
	return r.client.Del(ctx, key(id)).Err()
}

// Scan walks the session keys with SCAN, so it never blocks the server the
// way KEYS would. Sessions that expire mid-scan are skipped.
func (r *RedisStore) Scan(ctx context.Context, fn func(s *Session) error) error {
	iter := r.client.Scan(ctx, 0, keyPrefix+"*", scanBatch).Iterator()
	for iter.Next(ctx) {
		s, err := r.load(ctx, r.client, strings.TrimPrefix(iter.Val(), keyPrefix))
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return err
		}
		if err := fn(s); err != nil {
			return err
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("%w: scanning sessions: %v", ErrStore, err)
	}
	return nil
}
