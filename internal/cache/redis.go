// Package cache keeps idempotent HTTP responses in Redis.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"salesledger/internal/config"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
)

// ErrInFlight is returned by Lock while another request holds the same key.
var ErrInFlight = errors.New("request with this idempotency key is in flight")

const (
	responseTTL = 24 * time.Hour
	lockTTL     = 30 * time.Second
)

// Response is a stored reply replayed for repeated keys.
type Response struct {
	Status int    `json:"status"`
	Body   []byte `json:"body"`
}

// Store is what the idempotency middleware needs.
type Store interface {
	Get(ctx context.Context, key string) (*Response, bool, error)
	Save(ctx context.Context, key string, resp Response) error
	Lock(ctx context.Context, key string) (release func(), err error)
}

type redisStore struct {
	rdb    *redis.Client
	locker *redislock.Client
}

// NewRedisStore connects and pings Redis.
func NewRedisStore(ctx context.Context, cfg config.RedisConfig) (Store, *redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: 100,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, nil, fmt.Errorf("failed to connect redis at %s: %w", cfg.Address, err)
	}
	return &redisStore{rdb: rdb, locker: redislock.New(rdb)}, rdb, nil
}

func responseKey(key string) string { return "idem:resp:" + key }
func lockKey(key string) string     { return "idem:lock:" + key }

func (s *redisStore) Get(ctx context.Context, key string) (*Response, bool, error) {
	val, err := s.rdb.Get(ctx, responseKey(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, err
	}
	var resp Response
	if err := json.Unmarshal(val, &resp); err != nil {
		return nil, false, err
	}
	return &resp, true, nil
}

func (s *redisStore) Save(ctx context.Context, key string, resp Response) error {
	val, err := json.Marshal(resp)
	if err != nil {
		return err
	}
	return s.rdb.Set(ctx, responseKey(key), val, responseTTL).Err()
}

func (s *redisStore) Lock(ctx context.Context, key string) (func(), error) {
	lock, err := s.locker.Obtain(ctx, lockKey(key), lockTTL, nil)
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, ErrInFlight
	}
	if err != nil {
		return nil, err
	}
	return func() {
		// the request context may already be done
		_ = lock.Release(context.Background())
	}, nil
}
