// Package cache implements a small TTL-bounded cache fronting the state
// store's read-mostly snapshots (NetworkState, ReferralSnapshot), grounded
// on the teacher's data/cache/cache.go Cache interface and its optional
// Redis adapter.
package cache

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache is a byte-oriented TTL cache. Callers (internal/engine) serialize
// NetworkState/ReferralSnapshot to JSON before calling Set, and deserialize
// after Get, through JSONSet/JSONGet.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, val []byte, ttl time.Duration)
}

// Memory is an in-process Cache, used when no Redis endpoint is
// configured.
type Memory struct {
	mu sync.Mutex
	m  map[string]entry
}

type entry struct {
	b   []byte
	exp time.Time
}

func NewMemory() *Memory {
	return &Memory{m: make(map[string]entry)}
}

func (c *Memory) Get(_ context.Context, key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.m[key]
	if !ok || (!e.exp.IsZero() && time.Now().After(e.exp)) {
		return nil, false
	}
	return e.b, true
}

func (c *Memory) Set(_ context.Context, key string, val []byte, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e := entry{b: append([]byte(nil), val...)}
	if ttl > 0 {
		e.exp = time.Now().Add(ttl)
	}
	c.m[key] = e
}

// RedisConfig configures the Redis-backed Cache.
type RedisConfig struct {
	Addr         string        `yaml:"addr" env:"REDIS_ADDR"`
	Password     string        `yaml:"password" env:"REDIS_PASSWORD"`
	DB           int           `yaml:"db" env:"REDIS_DB"`
	DialTimeout  time.Duration `yaml:"dial_timeout"`
	OpTimeout    time.Duration `yaml:"op_timeout"`
}

func DefaultRedisConfig() RedisConfig {
	return RedisConfig{DB: 0, DialTimeout: 2 * time.Second, OpTimeout: 500 * time.Millisecond}
}

// Redis adapts go-redis/v9 to the Cache interface.
type Redis struct {
	client *redis.Client
	opTimeout time.Duration
}

func NewRedis(cfg RedisConfig) *Redis {
	client := redis.NewClient(&redis.Options{
		Addr:        cfg.Addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: cfg.DialTimeout,
	})
	return &Redis{client: client, opTimeout: cfg.OpTimeout}
}

func (r *Redis) Get(ctx context.Context, key string) ([]byte, bool) {
	ctx, cancel := context.WithTimeout(ctx, r.opTimeout)
	defer cancel()
	v, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		return nil, false
	}
	return v, true
}

func (r *Redis) Set(ctx context.Context, key string, val []byte, ttl time.Duration) {
	ctx, cancel := context.WithTimeout(ctx, r.opTimeout)
	defer cancel()
	_ = r.client.Set(ctx, key, val, ttl).Err()
}

// Close releases the underlying connection pool.
func (r *Redis) Close() error { return r.client.Close() }

// NetworkStateTTL and ReferralSnapshotTTL are the staleness bounds spec
// §4.7 allows ("at-most 5 min stale" / "<= 1h stale acceptable").
const (
	NetworkStateTTL      = 5 * time.Minute
	ReferralSnapshotTTL  = 1 * time.Hour
)

// JSONGet/JSONSet are small helpers so callers don't each re-derive
// the marshal/unmarshal boilerplate.
func JSONSet(ctx context.Context, c Cache, key string, v interface{}, ttl time.Duration) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	c.Set(ctx, key, b, ttl)
	return nil
}

func JSONGet(ctx context.Context, c Cache, key string, out interface{}) bool {
	b, ok := c.Get(ctx, key)
	if !ok {
		return false
	}
	if err := json.Unmarshal(b, out); err != nil {
		return false
	}
	return true
}
