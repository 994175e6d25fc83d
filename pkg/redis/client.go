package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/angelmondragon/ghanadude-checkout/pkg/config"
	"github.com/angelmondragon/ghanadude-checkout/pkg/logger"
)

const (
	keyNamespace      = "gd"
	idempotencyPrefix = "idempotency"
	rateLimitPrefix   = "rate_limit"
)

var errNotInitialized = errors.New("redis client not initialized")

// ErrWatchConflict is returned by Update when the key changed between the
// read and the write.
var ErrWatchConflict = errors.New("redis key changed concurrently")

// deleteIfOwner removes KEYS[1] only while it still holds ARGV[1].
var deleteIfOwner = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// windowHit bumps KEYS[1] and arms its expiry (ARGV[1] ms) on the first hit.
var windowHit = redis.NewScript(`
local n = redis.call("INCR", KEYS[1])
if n == 1 and tonumber(ARGV[1]) > 0 then
	redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return n
`)

// Client carries cart snapshots, idempotency records, rate limit windows and
// the retention worker lock.
type Client struct {
	rdb *redis.Client
}

type Pinger interface {
	Ping(context.Context) error
}

// IdempotencyStore is the slice of Client the idempotency middleware needs.
type IdempotencyStore interface {
	Get(context.Context, string) (string, error)
	Set(context.Context, string, any, time.Duration) error
	SetNX(context.Context, string, any, time.Duration) (bool, error)
	IdempotencyKey(scope, id string) string
	Del(context.Context, ...string) error
}

// New dials redis with the configured pool and fails unless PING answers.
func New(ctx context.Context, cfg config.RedisConfig, logg *logger.Logger) (*Client, error) {
	opts, err := optionsFromConfig(cfg)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis %s: %w", opts.Addr, err)
	}
	if logg != nil {
		logg.Info(logg.WithFields(ctx, map[string]any{"addr": opts.Addr, "db": opts.DB}), "redis connection established")
	}
	return &Client{rdb: rdb}, nil
}

func Wrap(rdb *redis.Client) *Client {
	return &Client{rdb: rdb}
}

func optionsFromConfig(cfg config.RedisConfig) (*redis.Options, error) {
	opts := &redis.Options{Addr: cfg.Address, Password: cfg.Password, DB: cfg.DB}
	switch {
	case cfg.URL != "":
		parsed, err := redis.ParseURL(cfg.URL)
		if err != nil {
			return nil, fmt.Errorf("parsing redis url: %w", err)
		}
		opts = parsed
		if opts.DB == 0 {
			opts.DB = cfg.DB
		}
	case cfg.Address == "":
		return nil, errors.New("redis url or address is required")
	}

	// values carried by the url win over env defaults
	setIfZero(&opts.PoolSize, cfg.PoolSize)
	setIfZero(&opts.MinIdleConns, cfg.MinIdleConns)
	setIfZero(&opts.DialTimeout, cfg.DialTimeout)
	setIfZero(&opts.ReadTimeout, cfg.ReadTimeout)
	setIfZero(&opts.WriteTimeout, cfg.WriteTimeout)
	return opts, nil
}

func setIfZero[T int | time.Duration](dst *T, v T) {
	if *dst == 0 {
		*dst = v
	}
}

func (c *Client) client() (*redis.Client, error) {
	if c == nil || c.rdb == nil {
		return nil, errNotInitialized
	}
	return c.rdb, nil
}

func (c *Client) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	rdb, err := c.client()
	if err != nil {
		return err
	}
	return rdb.Set(ctx, key, value, ttl).Err()
}

// Get returns redis.Nil when key is absent.
func (c *Client) Get(ctx context.Context, key string) (string, error) {
	rdb, err := c.client()
	if err != nil {
		return "", err
	}
	return rdb.Get(ctx, key).Result()
}

func (c *Client) SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error) {
	rdb, err := c.client()
	if err != nil {
		return false, err
	}
	return rdb.SetNX(ctx, key, value, ttl).Result()
}

func (c *Client) Del(ctx context.Context, keys ...string) error {
	rdb, err := c.client()
	if err != nil {
		return err
	}
	return rdb.Del(ctx, keys...).Err()
}

// DeleteIfEquals removes key only when it still holds value, reporting
// whether it did. Lock owners use it so a lapsed holder cannot free a lock
// someone else has since taken.
func (c *Client) DeleteIfEquals(ctx context.Context, key, value string) (bool, error) {
	rdb, err := c.client()
	if err != nil {
		return false, err
	}
	n, err := deleteIfOwner.Run(ctx, rdb, []string{key}, value).Int64()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// Update reads key under WATCH and writes whatever fn returns in MULTI/EXEC.
// found is false when the key is absent. Errors from fn abort the write and
// are returned as is.
func (c *Client) Update(ctx context.Context, key string, ttl time.Duration, fn func(current string, found bool) (string, error)) error {
	rdb, err := c.client()
	if err != nil {
		return err
	}
	err = rdb.Watch(ctx, func(tx *redis.Tx) error {
		current, getErr := tx.Get(ctx, key).Result()
		found := true
		switch {
		case errors.Is(getErr, redis.Nil):
			found = false
		case getErr != nil:
			return getErr
		}
		next, err := fn(current, found)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, next, ttl)
			return nil
		})
		return err
	}, key)
	if errors.Is(err, redis.TxFailedErr) {
		return ErrWatchConflict
	}
	return err
}

// FixedWindowAllow counts a hit against scope and reports whether it is
// within limit for the current window. The counter and its expiry are set
// in one script so a crash cannot leave a window without a TTL.
func (c *Client) FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error) {
	rdb, err := c.client()
	if err != nil {
		return false, 0, err
	}
	key := c.RateLimitKey(scope)

	count, err := windowHit.Run(ctx, rdb, []string{key}, window.Milliseconds()).Int64()
	if err != nil {
		return false, 0, fmt.Errorf("rate limit %s: %w", scope, err)
	}
	return count <= limit, count, nil
}

func (c *Client) IdempotencyKey(scope, id string) string {
	return buildKey(idempotencyPrefix, scope, id)
}

func (c *Client) RateLimitKey(scope string) string {
	return buildKey(rateLimitPrefix, scope)
}

func (c *Client) Ping(ctx context.Context) error {
	rdb, err := c.client()
	if err != nil {
		return err
	}
	return rdb.Ping(ctx).Err()
}

// Close is a no-op on an unset client.
func (c *Client) Close() error {
	if c == nil || c.rdb == nil {
		return nil
	}
	return c.rdb.Close()
}

func buildKey(parts ...string) string {
	clean := []string{keyNamespace}
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			clean = append(clean, part)
		}
	}
	return strings.Join(clean, ":")
}
