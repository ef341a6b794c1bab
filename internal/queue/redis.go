package queue

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"commerce/navigation/internal/config"
	"commerce/navigation/internal/domain/event"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

const readBlock = 5 * time.Second

// Queue carries catalog change events between the systems editing the
// catalog and the navigation cache.
type Queue interface {
	Publish(ctx context.Context, e event.Event) (string, error) // Returns message ID
	Read(ctx context.Context, consumer string) (*redis.XMessage, error)
	Ack(ctx context.Context, msgID string) error
	AutoClaim(ctx context.Context, consumer string, minIdleTime time.Duration) ([]redis.XMessage, error)
	EnsureStream(ctx context.Context) error
}

type RedisQueue struct {
	redisClient *redis.Client
	stream      string
	groupName   string
}

func NewRedisQueue(ctx context.Context, redisClient *redis.Client, cfg config.RedisConfig) (*RedisQueue, error) {
	q := &RedisQueue{
		redisClient: redisClient,
		stream:      cfg.Stream,
		groupName:   cfg.ConsumerGroup,
	}

	// The consumer group has to exist before workers start reading
	if err := q.EnsureStream(ctx); err != nil {
		return nil, fmt.Errorf("failed to ensure stream exists: %w", err)
	}

	return q, nil
}

func (q *RedisQueue) Publish(ctx context.Context, e event.Event) (string, error) {
	eventType := e.EventType()

	value, err := e.EventValue()
	if err != nil {
		return "", fmt.Errorf("failed to serialize event: %w", err)
	}

	messageID, err := q.redisClient.XAdd(ctx, &redis.XAddArgs{
		Stream: q.stream,
		Values: map[string]interface{}{
			"event_type": eventType,
			"event_data": string(value),
		},
	}).Result()
	if err != nil {
		return "", fmt.Errorf("failed to add event to Redis stream %s: %w", q.stream, err)
	}

	log.Debugf("Published %s to stream %s with message ID: %s", eventType, q.stream, messageID)
	return messageID, nil
}

func (q *RedisQueue) Read(ctx context.Context, consumer string) (*redis.XMessage, error) {
	result, err := q.redisClient.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    q.groupName,
		Consumer: consumer,
		Streams:  []string{q.stream, ">"},
		Count:    1,
		Block:    readBlock,
	}).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil // No new messages
		}
		return nil, fmt.Errorf("failed to read from Redis stream %s: %w", q.stream, err)
	}

	if len(result) == 0 || len(result[0].Messages) == 0 {
		return nil, nil
	}

	return &result[0].Messages[0], nil
}

func (q *RedisQueue) Ack(ctx context.Context, msgID string) error {
	return q.redisClient.XAck(ctx, q.stream, q.groupName, msgID).Err()
}

func (q *RedisQueue) AutoClaim(ctx context.Context, consumer string, minIdleTime time.Duration) ([]redis.XMessage, error) {
	result, _, err := q.redisClient.XAutoClaim(ctx, &redis.XAutoClaimArgs{
		Stream:   q.stream,
		Group:    q.groupName,
		Consumer: consumer,
		MinIdle:  minIdleTime,
		Start:    "0-0",
		Count:    10,
	}).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("failed to claim messages from Redis stream %s: %w", q.stream, err)
	}

	return result, nil
}

// EnsureStream creates the change stream and its consumer group.
func (q *RedisQueue) EnsureStream(ctx context.Context) error {
	err := q.redisClient.XGroupCreateMkStream(ctx, q.stream, q.groupName, "$").Err()
	if err != nil && strings.HasPrefix(err.Error(), "BUSYGROUP") {
		log.Infof("Group %s already exists for stream %s", q.groupName, q.stream)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to create consumer group %s: %w", q.groupName, err)
	}

	log.Infof("✅ Stream %s and consumer group %s ready", q.stream, q.groupName)
	return nil
}
