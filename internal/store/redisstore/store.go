package redisstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/suPer8Hu/mood-chat/internal/chat"
)

const keyPrefix = "mood:transcript:"

// Store keeps each session transcript in a Redis list. Lists expire after ttl
// of inactivity.
type Store struct {
	rdb        *redis.Client
	maxEntries int
	ttl        time.Duration
}

func New(addr, password string, db int, maxEntries int, ttl time.Duration) (*Store, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:        addr,
		Password:    password,
		DB:          db,
		DialTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return NewWithClient(rdb, maxEntries, ttl), nil
}

func NewWithClient(rdb *redis.Client, maxEntries int, ttl time.Duration) *Store {
	if maxEntries < 0 {
		maxEntries = 0
	}
	return &Store{rdb: rdb, maxEntries: maxEntries, ttl: ttl}
}

func (s *Store) Close() error { return s.rdb.Close() }

func (s *Store) Append(ctx context.Context, sessionID string, e chat.Entry) error {
	b, err := json.Marshal(e)
	if err != nil {
		return err
	}
	key := keyPrefix + sessionID

	pipe := s.rdb.TxPipeline()
	pipe.RPush(ctx, key, b)
	if s.maxEntries > 0 {
		pipe.LTrim(ctx, key, int64(-s.maxEntries), -1)
	}
	if s.ttl > 0 {
		pipe.Expire(ctx, key, s.ttl)
	}
	_, err = pipe.Exec(ctx)
	return err
}

func (s *Store) All(ctx context.Context, sessionID string) ([]chat.Entry, error) {
	raw, err := s.rdb.LRange(ctx, keyPrefix+sessionID, 0, -1).Result()
	if err != nil {
		return nil, err
	}
	out := make([]chat.Entry, 0, len(raw))
	for _, r := range raw {
		var e chat.Entry
		if err := json.Unmarshal([]byte(r), &e); err != nil {
			return nil, fmt.Errorf("decode transcript entry: %w", err)
		}
		out = append(out, e)
	}
	return out, nil
}

func (s *Store) Clear(ctx context.Context, sessionID string) error {
	return s.rdb.Del(ctx, keyPrefix+sessionID).Err()
}
