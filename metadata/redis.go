package metadata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisPrefix = "metadata:"

type RedisConfig struct {
	Addr     string `json:"addr"`
	Password string `json:"password"`
	DB       int    `json:"db"`
	// TTL of stored documents, empty keeps them forever.
	TTL string `json:"ttl"`
}

// RedisStore keeps documents as JSON strings under metadata:<key>.
type RedisStore struct {
	rdb redis.Cmdable
	ttl time.Duration
}

// NewRedisClient opens a client for cfg and checks it with PING.
func NewRedisClient(ctx context.Context, cfg RedisConfig) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping %s: %w", cfg.Addr, err)
	}
	return rdb, nil
}

func NewRedisStore(rdb redis.Cmdable, ttl time.Duration) *RedisStore {
	return &RedisStore{rdb: rdb, ttl: ttl}
}

func (s *RedisStore) Put(ctx context.Context, key string, m *Metadata) error {
	b, err := json.Marshal(m)
	if err != nil {
		return err
	}
	if err = s.rdb.Set(ctx, redisPrefix+key, b, s.ttl).Err(); err != nil {
		return fmt.Errorf("put metadata %s: %w", key, err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, key string) (*Metadata, error) {
	b, err := s.rdb.Get(ctx, redisPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	} else if err != nil {
		return nil, fmt.Errorf("get metadata %s: %w", key, err)
	}
	var m Metadata
	if err = json.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("decode metadata %s: %w", key, err)
	}
	return &m, nil
}
