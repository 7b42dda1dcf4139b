package kv

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/aiasylum/sanctuary/pkg/logging"
)

// maxUpdateRetries bounds the WATCH/EXEC retry loop in RedisStore.Update.
// Contention on a single asylum record is expected to be low; sixteen rounds
// is far beyond what concurrent artifact appends produce in practice.
const maxUpdateRetries = 16

// RedisStore implements Store on a redis connection.
type RedisStore struct {
	client *redis.Client
	logger *logging.ColoredLogger
}

// NewRedisStore connects to redis using a URL of the form
// redis://[:password@]host:port[/db] (rediss:// enables TLS) and verifies the
// connection with a ping.
func NewRedisStore(ctx context.Context, redisURL string, logger *logging.ColoredLogger) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	opts.MaxRetries = 3

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}

	return &RedisStore{client: client, logger: logger}, nil
}

// Close releases the underlying connection pool.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) Get(ctx context.Context, key string) (string, error) {
	val, err := s.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrKeyNotFound
	}
	return val, err
}

func (s *RedisStore) Set(ctx context.Context, key, value string) error {
	return s.client.Set(ctx, key, value, 0).Err()
}

func (s *RedisStore) Incr(ctx context.Context, key string) (int64, error) {
	return s.client.Incr(ctx, key).Result()
}

func (s *RedisStore) Expire(ctx context.Context, key string, ttl time.Duration) error {
	return s.client.Expire(ctx, key, ttl).Err()
}

func (s *RedisStore) Keys(ctx context.Context, pattern string) ([]string, error) {
	return s.client.Keys(ctx, pattern).Result()
}

// Update runs fn inside a WATCH/MULTI transaction. When a concurrent writer
// modifies the key between the read and EXEC, redis fails the transaction and
// the read-apply-write cycle is retried with the fresh value.
func (s *RedisStore) Update(ctx context.Context, key string, fn UpdateFunc) error {
	txf := func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, key).Result()
		found := true
		if errors.Is(err, redis.Nil) {
			current, found = "", false
		} else if err != nil {
			return err
		}

		next, err := fn(current, found)
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, next, 0)
			return nil
		})
		return err
	}

	for i := 0; i < maxUpdateRetries; i++ {
		err := s.client.Watch(ctx, txf, key)
		if err == nil {
			return nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			s.logger.ComponentDebug(logging.ComponentKV, "update conflict, retrying",
				zap.String("key", key), zap.Int("attempt", i+1))
			continue
		}
		return err
	}
	return ErrUpdateConflict
}
