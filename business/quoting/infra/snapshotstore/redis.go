package snapshotstore

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/fd1az/swap-quoter/business/quoting/domain"
	"github.com/fd1az/swap-quoter/internal/apperror"
)

const keyPrefix = "quoter:snapshot:"

// RedisConfig holds connection parameters.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// Redis stores snapshots as JSON with a server-side TTL, so several hosts
// can share recent rounds.
type Redis struct {
	rdb *redis.Client
}

// NewRedis connects and pings.
func NewRedis(ctx context.Context, cfg RedisConfig) (*Redis, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, apperror.External(apperror.CodeCacheFailure, "redis ping "+cfg.Addr, err)
	}
	return &Redis{rdb: rdb}, nil
}

func snapshotKey(requestKey string) string { return keyPrefix + requestKey }

// Get implements app.SnapshotStore.
func (r *Redis) Get(ctx context.Context, key string) (*domain.AggregationSnapshot, bool, error) {
	raw, err := r.rdb.Get(ctx, snapshotKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, apperror.External(apperror.CodeCacheFailure, "redis get", err)
	}

	var snap domain.AggregationSnapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil, false, apperror.Internal(apperror.CodeCacheFailure, "decode snapshot", err)
	}
	return &snap, true, nil
}

// Put implements app.SnapshotStore.
func (r *Redis) Put(ctx context.Context, snap *domain.AggregationSnapshot, ttl time.Duration) error {
	raw, err := json.Marshal(snap)
	if err != nil {
		return apperror.Internal(apperror.CodeCacheFailure, "encode snapshot", err)
	}
	if err := r.rdb.Set(ctx, snapshotKey(snap.RequestKey), raw, ttl).Err(); err != nil {
		return apperror.External(apperror.CodeCacheFailure, "redis set", err)
	}
	return nil
}

// Ping checks the connection. It backs the readiness check.
func (r *Redis) Ping(ctx context.Context) error {
	return r.rdb.Ping(ctx).Err()
}

// Close closes the connection pool.
func (r *Redis) Close() error {
	return r.rdb.Close()
}
