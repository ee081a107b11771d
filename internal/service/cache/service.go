package cache

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/kapu/blockext-go/internal/util"
	"github.com/kapu/blockext-go/pkg/errors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	keyPrefix   = "blockext:"
	pingTimeout = 5 * time.Second
)

type CacheConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

func (c CacheConfig) addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// CacheService is a JSON value store over Redis. Every failure comes back
// as *errors.CacheError tagged with the command and key.
type CacheService struct {
	client redis.UniversalClient
	logger *zap.Logger
}

func NewCacheService(cfg CacheConfig, logger *zap.Logger) (*CacheService, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.addr(),
		Password:     cfg.Password,
		DB:           cfg.DB,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
	})

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.NewCacheError("failed to connect to Redis", "ping", "", err)
	}

	svc := newCacheService(client, logger)
	svc.logger.Info("Redis connected", zap.String("addr", cfg.addr()), zap.Int("db", cfg.DB))
	return svc, nil
}

func newCacheService(client redis.UniversalClient, logger *zap.Logger) *CacheService {
	return &CacheService{client: client, logger: util.OrNop(logger)}
}

func (c *CacheService) fail(op, key string, err error) error {
	c.logger.Error("Cache command failed", zap.String("op", op), zap.String("key", key), zap.Error(err))
	return errors.NewCacheError(op+" failed", op, key, err)
}

// Get decodes the JSON value at key into dest. A missing key reports
// found=false without error.
func (c *CacheService) Get(ctx context.Context, key string, dest any) (bool, error) {
	raw, err := c.client.Get(ctx, key).Bytes()
	switch {
	case stderrors.Is(err, redis.Nil):
		return false, nil
	case err != nil:
		return false, c.fail("get", key, err)
	}

	if dest == nil {
		return true, nil
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return false, c.fail("get", key, fmt.Errorf("decode: %w", err))
	}
	return true, nil
}

// Set stores value as JSON. A non-positive ttl keeps the key forever.
func (c *CacheService) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	return c.Tx(ctx, "set", key, func(p redis.Pipeliner) error {
		return setJSON(ctx, p, key, value, ttl)
	})
}

// Tx runs fn inside MULTI/EXEC so related writes land together.
func (c *CacheService) Tx(ctx context.Context, op, key string, fn func(redis.Pipeliner) error) error {
	if _, err := c.client.TxPipelined(ctx, fn); err != nil {
		var cacheErr *errors.CacheError
		if stderrors.As(err, &cacheErr) {
			return err
		}
		return c.fail(op, key, err)
	}
	return nil
}

func (c *CacheService) Close() error {
	return c.client.Close()
}

func setJSON(ctx context.Context, p redis.Pipeliner, key string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return errors.NewCacheError("marshal failed", "set", key, err)
	}
	p.Set(ctx, key, data, max(ttl, 0))
	return nil
}
