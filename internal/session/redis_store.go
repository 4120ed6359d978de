package session

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/vaidashi/storefront-orders/internal/models"
	"github.com/vaidashi/storefront-orders/pkg/logger"
)

const keyPrefix = "session:"

// RedisStore keeps each session as a hash that Redis expires on its own
type RedisStore struct {
	rdb    *redis.Client
	ttl    time.Duration
	logger logger.Logger
}

// NewRedisStore creates a session store on top of rdb
func NewRedisStore(rdb *redis.Client, ttl time.Duration, logger logger.Logger) *RedisStore {
	return &RedisStore{rdb: rdb, ttl: ttl, logger: logger}
}

func (s *RedisStore) Create(ctx context.Context, userID models.DocumentID) (*Session, error) {
	now := time.Now().UTC()
	sess := &Session{
		Token:     newToken(),
		UserID:    userID,
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
	}
	key := keyPrefix + sess.Token

	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, map[string]interface{}{
			"user_id":    sess.UserID.String(),
			"created_at": sess.CreatedAt.UnixMilli(),
		})
		pipe.Expire(ctx, key, s.ttl)
		return nil
	})

	if err != nil {
		s.logger.Error("Failed to store session", "error", err, "userID", userID)
		return nil, fmt.Errorf("store session: %w", err)
	}

	return sess, nil
}

func (s *RedisStore) Get(ctx context.Context, token string) (*Session, error) {
	key := keyPrefix + token

	fields, err := s.rdb.HGetAll(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("load session: %w", err)
	}

	if len(fields) == 0 || fields["user_id"] == "" {
		return nil, ErrNotFound
	}

	ttl, err := s.rdb.TTL(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("load session ttl: %w", err)
	}

	created, _ := strconv.ParseInt(fields["created_at"], 10, 64)

	return &Session{
		Token:     token,
		UserID:    models.DocumentID(fields["user_id"]),
		CreatedAt: time.UnixMilli(created).UTC(),
		ExpiresAt: time.Now().UTC().Add(ttl),
	}, nil
}

func (s *RedisStore) Delete(ctx context.Context, token string) error {
	if err := s.rdb.Del(ctx, keyPrefix+token).Err(); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}
