package click

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/swiftlink/swiftlink/internal/errx"
)

// DefaultKeyPrefix namespaces counter keys in redis.
const DefaultKeyPrefix = "clicks:"

// RedisAccumulator implements Accumulator on redis. INCR gives the
// commutative, lost-update-free increment; MGET serves bulk reads.
type RedisAccumulator struct {
	client    *redis.Client
	keyPrefix string
}

// RedisConfig holds connection settings for the accumulator.
type RedisConfig struct {
	Addr         string
	Password     string
	DB           int
	PoolSize     int
	MinIdleConns int
	KeyPrefix    string // defaults to DefaultKeyPrefix
}

// NewRedisAccumulator connects to redis and verifies the connection.
func NewRedisAccumulator(ctx context.Context, cfg RedisConfig) (*RedisAccumulator, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}

	return &RedisAccumulator{
		client:    client,
		keyPrefix: prefix,
	}, nil
}

func (a *RedisAccumulator) key(code string) string {
	return a.keyPrefix + code
}

func (a *RedisAccumulator) Increment(ctx context.Context, code string) error {
	const op = "click.redis.Increment"

	if err := a.client.Incr(ctx, a.key(code)).Err(); err != nil {
		return errx.E(op, errx.Unavailable, err)
	}
	return nil
}

func (a *RedisAccumulator) Counts(ctx context.Context, codes []string) (map[string]int64, error) {
	const op = "click.redis.Counts"

	out := make(map[string]int64, len(codes))
	if len(codes) == 0 {
		return out, nil
	}

	keys := make([]string, len(codes))
	for i, code := range codes {
		keys[i] = a.key(code)
	}

	values, err := a.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, errx.E(op, errx.Unavailable, err)
	}

	for i, code := range codes {
		out[code] = 0
		raw, ok := values[i].(string)
		if !ok {
			continue // nil: no counter yet, lazy zero
		}
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, errx.E(op, errx.Internal, fmt.Errorf("counter %q holds non-integer value: %w", code, err))
		}
		out[code] = n
	}

	return out, nil
}

func (a *RedisAccumulator) Seed(ctx context.Context, code string) error {
	const op = "click.redis.Seed"

	// SETNX keeps seeding idempotent: a counter already incremented by a
	// racing redirect is left untouched.
	if err := a.client.SetNX(ctx, a.key(code), 0, 0).Err(); err != nil {
		return errx.E(op, errx.Unavailable, err)
	}
	return nil
}

func (a *RedisAccumulator) Remove(ctx context.Context, code string) error {
	const op = "click.redis.Remove"

	if err := a.client.Del(ctx, a.key(code)).Err(); err != nil {
		return errx.E(op, errx.Unavailable, err)
	}
	return nil
}

func (a *RedisAccumulator) Codes(ctx context.Context) ([]string, error) {
	const op = "click.redis.Codes"

	var codes []string
	var cursor uint64

	for {
		batch, next, err := a.client.Scan(ctx, cursor, a.keyPrefix+"*", 100).Result()
		if err != nil {
			return nil, errx.E(op, errx.Unavailable, err)
		}
		for _, key := range batch {
			codes = append(codes, key[len(a.keyPrefix):])
		}
		if next == 0 {
			break
		}
		cursor = next
	}

	return codes, nil
}

// HealthCheck verifies the redis connection.
func (a *RedisAccumulator) HealthCheck(ctx context.Context) error {
	if err := a.client.Ping(ctx).Err(); err != nil {
		return errors.New("redis unreachable: " + err.Error())
	}
	return nil
}

// Close releases the redis client.
func (a *RedisAccumulator) Close() error {
	return a.client.Close()
}
