package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"commerce/navigation/internal/domain"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

const (
	redisKeyPrefix     = "navigation:tree:"
	redisGenerationKey = "navigation:tree:generation"
	redisScanBatch     = 500
)

// RedisStore shares built trees between service instances. Trees are kept
// as JSON under a generation-scoped key.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{
		client: client,
		ttl:    ttl,
	}
}

func (s *RedisStore) Generation(ctx context.Context) (uint64, error) {
	val, err := s.client.Get(ctx, redisGenerationKey).Uint64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read cache generation: %w", err)
	}
	return val, nil
}

func (s *RedisStore) Get(ctx context.Context, key string) (domain.Tree, bool, error) {
	generation, err := s.Generation(ctx)
	if err != nil {
		return domain.Tree{}, false, err
	}

	data, err := s.client.Get(ctx, s.entryKey(generation, key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.Tree{}, false, nil
	}
	if err != nil {
		return domain.Tree{}, false, fmt.Errorf("failed to read cached tree: %w", err)
	}

	var tree domain.Tree
	if err := json.Unmarshal(data, &tree); err != nil {
		return domain.Tree{}, false, fmt.Errorf("failed to decode cached tree: %w", err)
	}
	return tree, true, nil
}

// Set writes under the namespace of generation. A stale generation lands
// in a namespace nobody reads anymore.
func (s *RedisStore) Set(ctx context.Context, key string, generation uint64, tree domain.Tree) error {
	data, err := json.Marshal(tree)
	if err != nil {
		return fmt.Errorf("failed to encode tree: %w", err)
	}

	if err := s.client.Set(ctx, s.entryKey(generation, key), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to store tree: %w", err)
	}
	return nil
}

func (s *RedisStore) Invalidate(ctx context.Context) error {
	previous, err := s.Generation(ctx)
	if err != nil {
		return err
	}

	if err := s.client.Incr(ctx, redisGenerationKey).Err(); err != nil {
		return fmt.Errorf("failed to advance cache generation: %w", err)
	}

	if err := s.purge(ctx, previous); err != nil {
		log.Warnf("⚠️ Failed to purge trees of generation %d: %v", previous, err)
	}
	return nil
}

func (s *RedisStore) purge(ctx context.Context, generation uint64) error {
	pattern := redisKeyPrefix + strconv.FormatUint(generation, 10) + ":*"
	var cursor uint64
	for {
		keys, next, err := s.client.Scan(ctx, cursor, pattern, redisScanBatch).Result()
		if err != nil {
			return err
		}
		if len(keys) > 0 {
			if err := s.client.Unlink(ctx, keys...).Err(); err != nil {
				return err
			}
		}
		cursor = next
		if cursor == 0 {
			return nil
		}
	}
}

func (s *RedisStore) entryKey(generation uint64, key string) string {
	return redisKeyPrefix + strconv.FormatUint(generation, 10) + ":" + key
}
