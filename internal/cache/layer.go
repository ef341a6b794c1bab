package cache

import (
	"context"
	"fmt"
	"time"

	"commerce/navigation/internal/domain"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

// Outcome describes how GetOrBuild produced its tree.
type Outcome string

const (
	OutcomeHit    Outcome = "hit"
	OutcomeMiss   Outcome = "miss"
	OutcomeShared Outcome = "shared"
	OutcomeBypass Outcome = "bypass"
)

// BuildFunc produces a tree on a cache miss.
type BuildFunc func(ctx context.Context) (domain.Tree, error)

const defaultBuildTimeout = 30 * time.Second

// Layer memoizes tree builds by key. Concurrent misses on the same key
// share one build; failed builds are never stored.
type Layer struct {
	store        Store
	flight       singleflight.Group
	buildTimeout time.Duration
}

type LayerOption func(*Layer)

// WithBuildTimeout bounds a shared build. Non-positive values keep the default.
func WithBuildTimeout(d time.Duration) LayerOption {
	return func(l *Layer) {
		if d > 0 {
			l.buildTimeout = d
		}
	}
}

func NewLayer(store Store, options ...LayerOption) *Layer {
	l := &Layer{store: store, buildTimeout: defaultBuildTimeout}
	for _, option := range options {
		option(l)
	}
	return l
}

// GetOrBuild returns the stored tree for key or builds and stores it.
// With bypass set the store is neither read nor written.
//
// A shared build is detached from the caller that started it and bounded
// by the layer's build timeout. Each caller stops waiting when its own ctx
// is done.
//
// Trees handed out are shared; callers must Clone before mutating.
func (l *Layer) GetOrBuild(ctx context.Context, key string, bypass bool, build BuildFunc) (domain.Tree, Outcome, error) {
	if bypass {
		cacheRequests.WithLabelValues(string(OutcomeBypass)).Inc()
		tree, err := timedBuild(ctx, build)
		return tree, OutcomeBypass, err
	}

	if tree, ok := l.lookup(ctx, key); ok {
		cacheRequests.WithLabelValues(string(OutcomeHit)).Inc()
		return tree, OutcomeHit, nil
	}

	ch := l.flight.DoChan(key, func() (any, error) {
		buildCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), l.buildTimeout)
		defer cancel()

		generation, genErr := l.store.Generation(buildCtx)
		if genErr != nil {
			storeErrors.WithLabelValues("generation").Inc()
			log.Warnf("⚠️ Cache generation unavailable, tree for %s will not be stored: %v", key, genErr)
		}

		// another flight may have stored it since our lookup
		if tree, ok := l.lookup(buildCtx, key); ok {
			return tree, nil
		}

		tree, err := timedBuild(buildCtx, build)
		if err != nil {
			return nil, err
		}

		if genErr == nil {
			if err := l.store.Set(buildCtx, key, generation, tree); err != nil {
				storeErrors.WithLabelValues("set").Inc()
				log.Warnf("⚠️ Failed to store tree %s: %v", key, err)
			}
		}
		return tree, nil
	})

	select {
	case <-ctx.Done():
		cacheRequests.WithLabelValues(string(OutcomeMiss)).Inc()
		return domain.Tree{}, OutcomeMiss, ctx.Err()
	case res := <-ch:
		outcome := OutcomeMiss
		if res.Shared {
			outcome = OutcomeShared
		}
		cacheRequests.WithLabelValues(string(outcome)).Inc()

		if res.Err != nil {
			return domain.Tree{}, outcome, res.Err
		}
		return res.Val.(domain.Tree), outcome, nil
	}
}

// Invalidate discards every stored tree. Builds still in flight finish
// for their waiters but are not stored.
func (l *Layer) Invalidate(ctx context.Context) error {
	if err := l.store.Invalidate(ctx); err != nil {
		storeErrors.WithLabelValues("invalidate").Inc()
		return fmt.Errorf("failed to invalidate navigation cache: %w", err)
	}
	cacheInvalidations.Inc()
	log.Info("🧹 Navigation cache invalidated")
	return nil
}

func (l *Layer) lookup(ctx context.Context, key string) (domain.Tree, bool) {
	tree, ok, err := l.store.Get(ctx, key)
	if err != nil {
		storeErrors.WithLabelValues("get").Inc()
		log.Warnf("⚠️ Cache lookup for %s failed, rebuilding: %v", key, err)
		return domain.Tree{}, false
	}
	return tree, ok
}

func timedBuild(ctx context.Context, build BuildFunc) (domain.Tree, error) {
	start := time.Now()
	tree, err := build(ctx)
	treeBuildDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		treeBuilds.WithLabelValues("error").Inc()
		return domain.Tree{}, err
	}
	treeBuilds.WithLabelValues("ok").Inc()
	return tree, nil
}
