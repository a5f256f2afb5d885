package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/kodbank/backend/internal/models"
)

// RedisTokenStore keeps sessions in Redis with a TTL matching the token
// expiry, so expired sessions disappear on their own.
type RedisTokenStore struct {
	rdb    *redis.Client
	prefix string
	now    func() time.Time
}

func NewRedisTokenStore(rdb *redis.Client, prefix string) *RedisTokenStore {
	return &RedisTokenStore{rdb: rdb, prefix: prefix, now: time.Now}
}

func (s *RedisTokenStore) key(token string) string {
	return s.prefix + "session:" + token
}

func (s *RedisTokenStore) Save(ctx context.Context, session models.Session) error {
	ttl := session.ExpiresAt.Sub(s.now())
	if ttl <= 0 {
		return errors.New("session already expired")
	}

	data, err := json.Marshal(session)
	if err != nil {
		return err
	}

	ok, err := s.rdb.SetNX(ctx, s.key(session.Token), data, ttl).Result()
	if err != nil {
		return fmt.Errorf("store session: %w", err)
	}
	if !ok {
		return ErrAlreadyExists
	}
	return nil
}

func (s *RedisTokenStore) Get(ctx context.Context, token string) (models.Session, error) {
	data, err := s.rdb.Get(ctx, s.key(token)).Bytes()
	if errors.Is(err, redis.Nil) {
		return models.Session{}, ErrNotFound
	}
	if err != nil {
		return models.Session{}, fmt.Errorf("load session: %w", err)
	}

	var session models.Session
	if err := json.Unmarshal(data, &session); err != nil {
		return models.Session{}, fmt.Errorf("decode session: %w", err)
	}
	if session.Expired(s.now()) {
		return models.Session{}, ErrNotFound
	}
	return session, nil
}

func (s *RedisTokenStore) Delete(ctx context.Context, token string) error {
	if err := s.rdb.Del(ctx, s.key(token)).Err(); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}
