package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/goban/core/internal/domain/entities"
	"github.com/goban/core/internal/infrastructure/config"
	"github.com/goban/core/internal/ports"
)

// RedisStore keeps login sessions in Redis so several API replicas can
// share a QR login.
type RedisStore struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewRedisClient connects to Redis and pings it once.
func NewRedisClient(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	cli := redis.NewClient(&redis.Options{
		Addr:     cfg.GetAddr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := cli.Ping(ctx).Err(); err != nil {
		_ = cli.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return cli, nil
}

// NewRedisStore creates a Redis-backed session store
func NewRedisStore(rdb *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{rdb: rdb, ttl: ttl}
}

var _ ports.LoginSessionStore = (*RedisStore)(nil)

func (s *RedisStore) key(key string) string { return "goban:qrlogin:" + key }

func (s *RedisStore) Save(ctx context.Context, session *entities.LoginSession) error {
	payload, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("encode login session: %w", err)
	}

	// Updates keep the window that started when the QR code was issued.
	ttl := s.ttl - time.Since(session.CreatedAt)
	if ttl <= 0 {
		return s.Delete(ctx, session.Key)
	}

	if err := s.rdb.Set(ctx, s.key(session.Key), payload, ttl).Err(); err != nil {
		return fmt.Errorf("save login session: %w", err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, key string) (*entities.LoginSession, error) {
	payload, err := s.rdb.Get(ctx, s.key(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, entities.ErrSessionNotFound
		}
		return nil, fmt.Errorf("get login session: %w", err)
	}

	var session entities.LoginSession
	if err := json.Unmarshal(payload, &session); err != nil {
		return nil, fmt.Errorf("decode login session: %w", err)
	}

	return &session, nil
}

func (s *RedisStore) Delete(ctx context.Context, key string) error {
	if err := s.rdb.Del(ctx, s.key(key)).Err(); err != nil {
		return fmt.Errorf("delete login session: %w", err)
	}
	return nil
}
