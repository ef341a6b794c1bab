package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"commerce/navigation/internal/domain/event"
	"commerce/navigation/internal/queue"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

// readErrorBackoff is how long a worker waits after a failed stream read.
const readErrorBackoff = time.Second

// errMalformed marks stream messages that can never be processed.
var errMalformed = errors.New("malformed change event")

// Invalidator drops cached navigation trees.
type Invalidator interface {
	Invalidate(ctx context.Context) error
}

// Service turns catalog change events into cache invalidations.
type Service struct {
	queue       queue.Queue
	cache       Invalidator
	workers     int
	minIdleTime time.Duration
	readBackoff time.Duration
	instance    string
}

func NewService(queue queue.Queue, cache Invalidator, workers int, minIdleTime int) *Service {
	if workers <= 0 {
		workers = 1
	}
	return &Service{
		queue:       queue,
		cache:       cache,
		workers:     workers,
		minIdleTime: time.Duration(minIdleTime) * time.Second,
		readBackoff: readErrorBackoff,
		instance:    uuid.NewString()[:8],
	}
}

// Publish validates e and appends it to the change stream.
func (s *Service) Publish(ctx context.Context, e event.Event) (string, error) {
	if err := e.Validate(); err != nil {
		return "", fmt.Errorf("invalid %s: %w", e.EventType(), err)
	}
	return s.queue.Publish(ctx, e)
}

// RunWorkers consumes the change stream until ctx is done.
func (s *Service) RunWorkers(ctx context.Context) error {
	var wg sync.WaitGroup

	// Auto-claimer for messages left pending by dead consumers
	if s.minIdleTime > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.autoClaim(ctx)
		}()
	}

	for i := 0; i < s.workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			s.work(ctx, workerID)
		}(i + 1)
	}

	wg.Wait()
	return nil
}

func (s *Service) autoClaim(ctx context.Context) {
	ticker := time.NewTicker(s.minIdleTime)
	defer ticker.Stop()

	consumer := fmt.Sprintf("autoclaimer-%s", s.instance)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			claimed, err := s.queue.AutoClaim(ctx, consumer, s.minIdleTime)
			if err != nil {
				log.Errorf("❌ Failed to auto-claim change events: %v", err)
				continue
			}
			if len(claimed) > 0 {
				log.Infof("🔄 Auto-claimed %d change events", len(claimed))
			}
			for _, msg := range claimed {
				if err := s.processMessage(ctx, &msg); err != nil {
					log.Errorf("❌ Failed to process auto-claimed message %s: %v", msg.ID, err)
				}
			}
		}
	}
}

func (s *Service) work(ctx context.Context, workerID int) {
	consumer := fmt.Sprintf("%s-worker-%d", s.instance, workerID)
	log.Infof("🚀 Starting invalidation worker %d as consumer %s", workerID, consumer)

	for {
		select {
		case <-ctx.Done():
			log.Infof("🛑 Invalidation worker %d stopping", workerID)
			return
		default:
			msg, err := s.queue.Read(ctx, consumer)
			if err != nil {
				if ctx.Err() != nil {
					continue
				}
				log.Errorf("❌ Failed to read change event, retrying in %s: %v", s.readBackoff, err)
				select {
				case <-ctx.Done():
				case <-time.After(s.readBackoff):
				}
				continue
			}

			if msg != nil {
				if err := s.processMessage(ctx, msg); err != nil {
					log.Errorf("❌ Failed to process message %s: %v", msg.ID, err)
				}
			}
		}
	}
}

func (s *Service) processMessage(ctx context.Context, msg *redis.XMessage) error {
	e, err := decodeMessage(msg)
	if err == nil {
		err = e.Validate()
	}
	if err != nil {
		// acked so it is not claimed again forever
		log.Warnf("🗑️ Dropping change event %s: %v", msg.ID, err)
		if ackErr := s.queue.Ack(ctx, msg.ID); ackErr != nil {
			return fmt.Errorf("failed to ack message %s: %w", msg.ID, ackErr)
		}
		return nil
	}

	if err := s.cache.Invalidate(ctx); err != nil {
		return fmt.Errorf("failed to invalidate after %s: %w", e.EventType(), err)
	}
	log.Infof("✅ Processed %s (message %s)", e.EventType(), msg.ID)

	if err := s.queue.Ack(ctx, msg.ID); err != nil {
		return fmt.Errorf("failed to ack message %s: %w", msg.ID, err)
	}

	return nil
}

func decodeMessage(msg *redis.XMessage) (event.Event, error) {
	eventType, ok := msg.Values["event_type"].(string)
	if !ok {
		return nil, fmt.Errorf("%w: no event type in message %s", errMalformed, msg.ID)
	}

	data, ok := msg.Values["event_data"].(string)
	if !ok {
		return nil, fmt.Errorf("%w: no event data in message %s", errMalformed, msg.ID)
	}

	e, err := event.Decode(eventType, []byte(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errMalformed, err)
	}
	return e, nil
}
