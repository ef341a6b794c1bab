package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"commerce/navigation/internal/domain"

	"github.com/redis/go-redis/v9"
)

// RedisSelectionStore remembers the last navigation selection of each
// visitor session.
type RedisSelectionStore struct {
	redisClient *redis.Client
	keyPrefix   string
	ttl         time.Duration
}

func NewRedisSelectionStore(redisClient *redis.Client, ttl time.Duration) *RedisSelectionStore {
	return &RedisSelectionStore{
		redisClient: redisClient,
		keyPrefix:   "navigation:selection:",
		ttl:         ttl,
	}
}

func (s *RedisSelectionStore) Load(ctx context.Context, sessionID string) (*domain.Params, error) {
	val, err := s.redisClient.Get(ctx, s.keyPrefix+sessionID).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil // Nothing selected yet
		}
		return nil, fmt.Errorf("failed to get selection for session %s: %w", sessionID, err)
	}

	var params domain.Params
	if err := json.Unmarshal(val, &params); err != nil {
		return nil, fmt.Errorf("failed to parse selection for session %s: %w", sessionID, err)
	}

	return &params, nil
}

func (s *RedisSelectionStore) Save(ctx context.Context, sessionID string, params domain.Params) error {
	data, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("failed to encode selection for session %s: %w", sessionID, err)
	}

	if err := s.redisClient.Set(ctx, s.keyPrefix+sessionID, data, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set selection for session %s: %w", sessionID, err)
	}
	return nil
}
