package drafts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"questionnaire_editor/editor"
)

const redisKeyPrefix = "editor:draft:"

// RedisStore keeps each draft under its own key. Keys expire after ttl, so
// Purge has nothing to do.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

func (s *RedisStore) Save(ctx context.Context, d editor.Draft) error {
	raw, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("encoding draft %s: %w", d.SessionID, err)
	}
	if err := s.client.Set(ctx, redisKeyPrefix+d.SessionID, raw, s.ttl).Err(); err != nil {
		return fmt.Errorf("saving draft %s: %w", d.SessionID, err)
	}
	return nil
}

func (s *RedisStore) Load(ctx context.Context, sessionID string) (editor.Draft, error) {
	raw, err := s.client.Get(ctx, redisKeyPrefix+sessionID).Bytes()
	if errors.Is(err, redis.Nil) {
		return editor.Draft{}, editor.ErrDraftNotFound
	}
	if err != nil {
		return editor.Draft{}, fmt.Errorf("loading draft %s: %w", sessionID, err)
	}

	var d editor.Draft
	if err := json.Unmarshal(raw, &d); err != nil {
		return editor.Draft{}, fmt.Errorf("decoding draft %s: %w", sessionID, err)
	}
	return d, nil
}

func (s *RedisStore) Delete(ctx context.Context, sessionID string) error {
	if err := s.client.Del(ctx, redisKeyPrefix+sessionID).Err(); err != nil {
		return fmt.Errorf("deleting draft %s: %w", sessionID, err)
	}
	return nil
}

func (s *RedisStore) Purge(context.Context, time.Time) (int64, error) {
	return 0, nil
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
