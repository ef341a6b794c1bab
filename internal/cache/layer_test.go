package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"commerce/navigation/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testTree(buildID string) domain.Tree {
	return domain.Tree{
		BuildID: buildID,
		Nodes:   []*domain.Node{{ID: 10, Title: "Shoes", BuildID: buildID}},
	}
}

func countingBuild(calls *atomic.Int32, buildID string) BuildFunc {
	return func(context.Context) (domain.Tree, error) {
		calls.Add(1)
		return testTree(buildID), nil
	}
}

type brokenStore struct {
	getErr, genErr, setErr error
	sets                   int
}

func (s *brokenStore) Generation(context.Context) (uint64, error) { return 0, s.genErr }

func (s *brokenStore) Get(context.Context, string) (domain.Tree, bool, error) {
	return domain.Tree{}, false, s.getErr
}

func (s *brokenStore) Set(context.Context, string, uint64, domain.Tree) error {
	s.sets++
	return s.setErr
}

func (s *brokenStore) Invalidate(context.Context) error { return errors.New("read-only replica") }

func TestLayer_MissThenHit(t *testing.T) {
	layer := NewLayer(NewMemoryStore(0))
	ctx := context.Background()
	var calls atomic.Int32

	tree, outcome, err := layer.GetOrBuild(ctx, "k", false, countingBuild(&calls, "a"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeMiss, outcome)
	assert.Equal(t, "a", tree.BuildID)

	tree, outcome, err = layer.GetOrBuild(ctx, "k", false, countingBuild(&calls, "b"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeHit, outcome)
	assert.Equal(t, "a", tree.BuildID)
	assert.Equal(t, int32(1), calls.Load())
}

func TestLayer_BypassSkipsStore(t *testing.T) {
	store := NewMemoryStore(0)
	layer := NewLayer(store)
	var calls atomic.Int32

	for i := 0; i < 2; i++ {
		_, outcome, err := layer.GetOrBuild(context.Background(), "k", true, countingBuild(&calls, "a"))
		require.NoError(t, err)
		assert.Equal(t, OutcomeBypass, outcome)
	}

	assert.Equal(t, int32(2), calls.Load())
	assert.Zero(t, store.Len())
}

func TestLayer_ConcurrentMissesBuildOnce(t *testing.T) {
	layer := NewLayer(NewMemoryStore(0))
	release := make(chan struct{})
	var calls atomic.Int32
	build := func(context.Context) (domain.Tree, error) {
		calls.Add(1)
		<-release
		return testTree("shared"), nil
	}

	const callers = 8
	var wg sync.WaitGroup
	trees := make([]domain.Tree, callers)
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			trees[i], _, errs[i] = layer.GetOrBuild(context.Background(), "k", false, build)
		}(i)
	}

	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, "shared", trees[i].BuildID)
	}
}

func TestLayer_CancelledCallerDoesNotFailWaiters(t *testing.T) {
	store := NewMemoryStore(0)
	layer := NewLayer(store)
	started := make(chan struct{})
	release := make(chan struct{})
	var calls atomic.Int32
	build := func(ctx context.Context) (domain.Tree, error) {
		calls.Add(1)
		close(started)
		<-release
		if err := ctx.Err(); err != nil {
			return domain.Tree{}, err
		}
		return testTree("shared"), nil
	}

	leaderCtx, cancel := context.WithCancel(context.Background())
	leaderErr := make(chan error, 1)
	go func() {
		_, _, err := layer.GetOrBuild(leaderCtx, "k", false, build)
		leaderErr <- err
	}()
	<-started

	type result struct {
		tree domain.Tree
		err  error
	}
	waiter := make(chan result, 1)
	go func() {
		tree, _, err := layer.GetOrBuild(context.Background(), "k", false, build)
		waiter <- result{tree, err}
	}()
	time.Sleep(50 * time.Millisecond)

	cancel()
	select {
	case err := <-leaderErr:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("cancelled caller kept waiting for the build")
	}

	close(release)
	got := <-waiter
	require.NoError(t, got.err)
	assert.Equal(t, "shared", got.tree.BuildID)
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, 1, store.Len())
}

func TestLayer_BuildTimeout(t *testing.T) {
	layer := NewLayer(NewMemoryStore(0), WithBuildTimeout(20*time.Millisecond))

	_, _, err := layer.GetOrBuild(context.Background(), "k", false, func(ctx context.Context) (domain.Tree, error) {
		<-ctx.Done()
		return domain.Tree{}, ctx.Err()
	})

	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestLayer_FailedBuildIsNotStored(t *testing.T) {
	store := NewMemoryStore(0)
	layer := NewLayer(store)
	boom := errors.New("catalog unavailable")

	_, _, err := layer.GetOrBuild(context.Background(), "k", false, func(context.Context) (domain.Tree, error) {
		return domain.Tree{}, boom
	})

	assert.ErrorIs(t, err, boom)
	assert.Zero(t, store.Len())

	var calls atomic.Int32
	_, outcome, err := layer.GetOrBuild(context.Background(), "k", false, countingBuild(&calls, "a"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeMiss, outcome)
	assert.Equal(t, int32(1), calls.Load())
}

func TestLayer_InvalidationDuringBuildDropsResult(t *testing.T) {
	store := NewMemoryStore(0)
	layer := NewLayer(store)
	ctx := context.Background()

	tree, _, err := layer.GetOrBuild(ctx, "k", false, func(ctx context.Context) (domain.Tree, error) {
		require.NoError(t, layer.Invalidate(ctx))
		return testTree("stale"), nil
	})

	require.NoError(t, err)
	assert.Equal(t, "stale", tree.BuildID, "waiters still get the tree")
	assert.Zero(t, store.Len())
}

func TestLayer_StoreErrorsDegradeToMiss(t *testing.T) {
	store := &brokenStore{getErr: errors.New("timeout")}
	layer := NewLayer(store)
	var calls atomic.Int32

	tree, outcome, err := layer.GetOrBuild(context.Background(), "k", false, countingBuild(&calls, "a"))

	require.NoError(t, err)
	assert.Equal(t, OutcomeMiss, outcome)
	assert.Equal(t, "a", tree.BuildID)
	assert.Equal(t, 1, store.sets)
}

func TestLayer_UnknownGenerationSkipsSet(t *testing.T) {
	store := &brokenStore{genErr: errors.New("timeout"), setErr: errors.New("unused")}
	layer := NewLayer(store)
	var calls atomic.Int32

	_, _, err := layer.GetOrBuild(context.Background(), "k", false, countingBuild(&calls, "a"))

	require.NoError(t, err)
	assert.Zero(t, store.sets)
}

func TestLayer_InvalidateError(t *testing.T) {
	err := NewLayer(&brokenStore{}).Invalidate(context.Background())

	assert.ErrorContains(t, err, "read-only replica")
}

func TestMemoryStore_StaleGenerationIsIgnored(t *testing.T) {
	store := NewMemoryStore(0)
	ctx := context.Background()

	generation, err := store.Generation(ctx)
	require.NoError(t, err)
	require.NoError(t, store.Set(ctx, "k", generation, testTree("a")))
	require.NoError(t, store.Invalidate(ctx))

	_, ok, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Set(ctx, "k", generation, testTree("b")))
	assert.Zero(t, store.Len())

	next, err := store.Generation(ctx)
	require.NoError(t, err)
	assert.Equal(t, generation+1, next)
}

func TestMemoryStore_TTL(t *testing.T) {
	store := NewMemoryStore(time.Minute)
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "k", 0, testTree("a")))

	now = now.Add(30 * time.Second)
	_, ok, _ := store.Get(ctx, "k")
	assert.True(t, ok)

	now = now.Add(time.Minute)
	_, ok, _ = store.Get(ctx, "k")
	assert.False(t, ok)
	assert.Zero(t, store.Len())
}

func TestRedisStore_EntryKeyIsGenerationScoped(t *testing.T) {
	store := NewRedisStore(nil, 0)

	assert.Equal(t, "navigation:tree:3:nav:abc", store.entryKey(3, "nav:abc"))
	assert.NotEqual(t, store.entryKey(3, "nav:abc"), store.entryKey(4, "nav:abc"))
}
