package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"speed-enforcement-api/config"

	"github.com/redis/go-redis/v9"
)

const (
	pingAttempts = 10
	pingBackoff  = 2 * time.Second

	// cacheKeyPrefix namespaces this service's keys; the dashboard
	// shares the redis instance.
	cacheKeyPrefix = "enforcement"

	// ListCacheTTL suits the hot cursor lists (fines, readings): long
	// enough to absorb dashboard polling, short enough that a fresh
	// fine shows up within seconds.
	ListCacheTTL = 5 * time.Second
	// CatalogCacheTTL suits the radar catalog, which changes only when
	// a new unit auto-registers.
	CatalogCacheTTL = 60 * time.Second
)

// ErrCacheMiss is returned by Get when the key is absent or redis is
// down; callers fall through to postgres either way.
var ErrCacheMiss = errors.New("cache miss")

// Key builds a namespaced cache key: Key("fines", "list", ...) ->
// "enforcement:fines:list:...".
func Key(parts ...string) string {
	return cacheKeyPrefix + ":" + strings.Join(parts, ":")
}

type CacheService struct {
	client *redis.Client
}

func NewCacheService(cfg config.RedisConfig) (*CacheService, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	// Retry the ping (redis may come up after us)
	var lastErr error
	for i := 0; i < pingAttempts; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		lastErr = client.Ping(ctx).Err()
		cancel()
		if lastErr == nil {
			return &CacheService{client: client}, nil
		}
		log.Printf("Redis ping attempt %d/%d failed: %v", i+1, pingAttempts, lastErr)
		time.Sleep(pingBackoff)
	}

	return &CacheService{client: nil}, fmt.Errorf("redis ping failed after %d attempts: %w", pingAttempts, lastErr)
}

func (s *CacheService) Client() *redis.Client {
	return s.client
}

func (s *CacheService) Available() bool {
	return s.client != nil
}

// Get unmarshals a cached response into dest. ErrCacheMiss means go
// to the database; any other error is a real redis failure.
func (s *CacheService) Get(ctx context.Context, key string, dest interface{}) error {
	if s.client == nil {
		return ErrCacheMiss
	}
	val, err := s.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return ErrCacheMiss
	}
	if err != nil {
		return err
	}
	return json.Unmarshal([]byte(val), dest)
}

func (s *CacheService) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if s.client == nil {
		return nil
	}
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, key, data, ttl).Err()
}

func (s *CacheService) Delete(ctx context.Context, key string) error {
	if s.client == nil {
		return nil
	}
	return s.client.Del(ctx, key).Err()
}

func (s *CacheService) Publish(ctx context.Context, channel string, message interface{}) error {
	if s.client == nil {
		return nil
	}
	data, err := json.Marshal(message)
	if err != nil {
		return err
	}
	return s.client.Publish(ctx, channel, data).Err()
}

func (s *CacheService) Subscribe(ctx context.Context, channel string) *redis.PubSub {
	if s.client == nil {
		return nil
	}
	return s.client.Subscribe(ctx, channel)
}

func (s *CacheService) Close() error {
	if s.client == nil {
		return nil
	}
	return s.client.Close()
}
