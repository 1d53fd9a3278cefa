// Package redis backs the session store with a Redis server so state
// survives process restarts and can be shared between instances.
package redis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/grocerly/storefront/log"
	"github.com/grocerly/storefront/storage"
)

// Store persists records in Redis. It satisfies storage.Store.
type Store struct {
	client redis.UniversalClient
	config *Config
	ttl    time.Duration
	logger *log.Logger
}

// New connects and pings the server before returning.
func New(cfg *Config, opts ...Option) (*Store, error) {
	if cfg == nil {
		return nil, ErrInvalidConfig
	}
	if err := cfg.ApplyDefaults(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	storeOpts := applyOptions(opts)
	logger := storeOpts.logger
	if logger == nil {
		logger = log.G
	}

	s := &Store{
		config: cfg,
		ttl:    storeOpts.ttl,
		logger: logger,
		client: redis.NewUniversalClient(buildUniversalOptions(cfg)),
	}

	var success bool
	defer func() {
		if !success {
			s.client.Close()
		}
	}()

	if err := s.client.Ping(context.Background()).Err(); err != nil {
		return nil, err
	}

	success = true
	s.logger.Debug().Str("mode", s.mode()).Interface("addrs", cfg.Addrs).Msg("redis store created")
	return s, nil
}

func buildUniversalOptions(cfg *Config) *redis.UniversalOptions {
	return &redis.UniversalOptions{
		Addrs:      cfg.Addrs,
		MasterName: cfg.MasterName,
		Username:   cfg.Username,
		Password:   cfg.Password,
		DB:         cfg.DB,

		DialTimeout:  time.Duration(cfg.DialTimeout) * time.Millisecond,
		ReadTimeout:  time.Duration(cfg.ReadTimeout) * time.Millisecond,
		WriteTimeout: time.Duration(cfg.WriteTimeout) * time.Millisecond,

		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
	}
}

func (s *Store) key(key string) string {
	return s.config.KeyPrefix + key
}

// Get returns the record for key, or storage.ErrNotFound.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	value, err := s.client.Get(ctx, s.key(key)).Bytes()
	if err == redis.Nil {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return value, nil
}

// Set stores value under key, applying the configured TTL if any.
func (s *Store) Set(ctx context.Context, key string, value []byte) error {
	return s.client.Set(ctx, s.key(key), value, s.ttl).Err()
}

// Delete removes key. Deleting an absent key is not an error.
func (s *Store) Delete(ctx context.Context, key string) error {
	return s.client.Del(ctx, s.key(key)).Err()
}

// Ping tests the connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close releases the connection pool.
func (s *Store) Close() error {
	err := s.client.Close()
	s.logger.Debug().Msg("redis store closed")
	return err
}

func (s *Store) mode() string {
	switch {
	case s.config.IsSentinel():
		return "sentinel"
	case s.config.IsCluster():
		return "cluster"
	default:
		return "single"
	}
}
