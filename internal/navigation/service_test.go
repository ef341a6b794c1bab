package navigation

import (
	"context"
	"errors"
	"sync"
	"testing"

	"commerce/navigation/internal/cache"
	"commerce/navigation/internal/domain"
	"commerce/navigation/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memorySelections struct {
	mu   sync.Mutex
	byID map[string]domain.Params
}

func (m *memorySelections) Load(_ context.Context, session string) (*domain.Params, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.byID[session]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (m *memorySelections) Save(_ context.Context, session string, params domain.Params) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.byID == nil {
		m.byID = make(map[string]domain.Params)
	}
	m.byID[session] = params
	return nil
}

func newTestService(catalog *testutil.Catalog, opts Options, options ...ServiceOption) (*Service, *cache.MemoryStore) {
	store := cache.NewMemoryStore(0)
	return NewService(catalog, cache.NewLayer(store), opts, options...), store
}

func TestService_RootScenario(t *testing.T) {
	svc, _ := newTestService(shopCatalog(), shopOptions())

	tree, err := svc.Navigation(context.Background(), Request{CategoryID: 10})
	require.NoError(t, err)

	assert.Equal(t, domain.StateCur, findNode(t, tree, 10).ItemState)
	shirts := findNode(t, tree, 11)
	assert.Equal(t, domain.StateNo, shirts.ItemState)
	assert.Equal(t, []int64{12, 13}, ids(shirts.Children))
}

func TestService_SelectsNestedCategory(t *testing.T) {
	svc, _ := newTestService(shopCatalog(), shopOptions())

	tree, err := svc.Navigation(context.Background(), Request{CategoryID: 13})
	require.NoError(t, err)

	assert.Equal(t, domain.StateAct, findNode(t, tree, 11).ItemState)
	assert.Equal(t, domain.StateCur, findNode(t, tree, 11, 13).ItemState)
	assert.Equal(t, 1, countCurrent(tree))
	assert.Equal(t, []int64{12, 13}, ids(findNode(t, tree, 11).SubMenu()))
	assert.Empty(t, findNode(t, tree, 10).SubMenu())
}

func TestService_CachesTrees(t *testing.T) {
	catalog := shopCatalog()
	svc, store := newTestService(catalog, shopOptions())
	ctx := context.Background()

	first, err := svc.Navigation(ctx, Request{CategoryID: 12})
	require.NoError(t, err)
	calls := catalog.Calls()

	second, err := svc.Navigation(ctx, Request{CategoryID: 12})
	require.NoError(t, err)

	assert.Equal(t, calls, catalog.Calls())
	assert.Equal(t, first, second)
	assert.Equal(t, 1, store.Len())

	// another selection reuses the same tree and leaves the first result alone
	other, err := svc.Navigation(ctx, Request{CategoryID: 10})
	require.NoError(t, err)
	assert.Equal(t, first.BuildID, other.BuildID)
	assert.Equal(t, domain.StateCur, findNode(t, first, 11, 12).ItemState)
	assert.Equal(t, domain.StateNo, findNode(t, other, 11, 12).ItemState)
}

func TestService_NoCacheBypassesStore(t *testing.T) {
	catalog := shopCatalog()
	svc, store := newTestService(catalog, shopOptions())
	ctx := context.Background()

	_, err := svc.Navigation(ctx, Request{Visitor: domain.VisitorContext{NoCache: true}})
	require.NoError(t, err)
	calls := catalog.Calls()
	assert.Zero(t, store.Len())

	_, err = svc.Navigation(ctx, Request{Visitor: domain.VisitorContext{NoCache: true}})
	require.NoError(t, err)
	assert.Equal(t, 2*calls, catalog.Calls())
}

func TestService_GroupRootsUseSeparateEntries(t *testing.T) {
	opts := shopOptions()
	opts.GroupRootsEnabled = true
	opts.GroupRoots = []GroupRoot{{Groups: []string{"wholesale"}, CategoryID: 11}}
	svc, store := newTestService(shopCatalog(), opts)
	ctx := context.Background()

	wholesale, err := svc.Navigation(ctx, Request{Visitor: domain.VisitorContext{Groups: []string{"wholesale"}}})
	require.NoError(t, err)
	retail, err := svc.Navigation(ctx, Request{})
	require.NoError(t, err)

	assert.Equal(t, []int64{12, 13}, ids(wholesale.Nodes))
	assert.Equal(t, []int64{10, 11, 20}, ids(retail.Nodes))
	assert.Equal(t, 2, store.Len())

	// the retail entry is not disturbed by another wholesale request
	_, err = svc.Navigation(ctx, Request{Visitor: domain.VisitorContext{Groups: []string{"wholesale", "wholesale"}}})
	require.NoError(t, err)
	assert.Equal(t, 2, store.Len())
}

func TestService_GroupRootSelection(t *testing.T) {
	opts := shopOptions()
	opts.GroupRootsEnabled = true
	opts.GroupRoots = []GroupRoot{{Groups: []string{"wholesale"}, CategoryID: 11}}
	svc, _ := newTestService(shopCatalog(), opts)

	tree, err := svc.Navigation(context.Background(), Request{
		Visitor: domain.VisitorContext{Groups: []string{"wholesale"}},
		Path:    "14,12,11,5",
	})
	require.NoError(t, err)

	// the deep link reaches above the visitor's root and is trimmed to it
	assert.Equal(t, domain.StateAct, findNode(t, tree, 12).ItemState)
	assert.Equal(t, domain.StateCur, findNode(t, tree, 12, 14).ItemState)
}

func TestService_ConfigurationError(t *testing.T) {
	opts := shopOptions()
	opts.RootCategory = 0
	catalog := shopCatalog()
	svc, _ := newTestService(catalog, opts)

	tree, err := svc.Navigation(context.Background(), Request{CategoryID: 10})
	require.NoError(t, err)

	assert.Len(t, tree.Nodes, 5)
	for _, n := range tree.Nodes {
		assert.Equal(t, domain.NodeError, n.Kind)
	}
	assert.Zero(t, catalog.Calls())

	opts = shopOptions()
	opts.DisplayPage = 0
	opts.ErrorNodes = 3
	svc, _ = newTestService(catalog, opts)
	tree, err = svc.Navigation(context.Background(), Request{})
	require.NoError(t, err)
	assert.Len(t, tree.Nodes, 3)
}

func TestService_EntryLevel(t *testing.T) {
	opts := shopOptions()
	opts.EntryLevel = 1
	svc, _ := newTestService(shopCatalog(), opts)

	tree, err := svc.Navigation(context.Background(), Request{CategoryID: 12})
	require.NoError(t, err)

	assert.Equal(t, []int64{12, 13}, ids(tree.Nodes))
	assert.Equal(t, 0, tree.Nodes[0].Depth)
	assert.Equal(t, domain.StateCur, tree.Nodes[0].ItemState)

	entries, err := svc.Rootline(context.Background(), Request{CategoryID: 12})
	require.NoError(t, err)
	assert.Equal(t, []int64{12}, rootlineIDs(entries))
	assert.Equal(t, 0, entries[0].Depth)
}

func TestService_DeepLinkSkipsResolution(t *testing.T) {
	catalog := shopCatalog()
	svc, _ := newTestService(catalog, shopOptions())
	ctx := context.Background()

	_, err := svc.Navigation(ctx, Request{})
	require.NoError(t, err)
	calls := catalog.Calls()

	tree, err := svc.Navigation(ctx, Request{Path: "12,11"})
	require.NoError(t, err)

	assert.Equal(t, calls, catalog.Calls())
	assert.Equal(t, domain.StateAct, findNode(t, tree, 11).ItemState)
	assert.Equal(t, domain.StateCur, findNode(t, tree, 11, 12).ItemState)
}

func TestService_ProductSelectsMasterCategory(t *testing.T) {
	opts := shopOptions()
	opts.MaxLevel = 3
	opts.ShowProducts = true
	svc, _ := newTestService(shopCatalog(), opts)

	tree, err := svc.Navigation(context.Background(), Request{ProductID: 102})
	require.NoError(t, err)

	tee := findNode(t, tree, 11, 13)
	assert.Equal(t, domain.StateAct, tee.ItemState)
	assert.Equal(t, domain.StateCur, tee.ProductLeaf(102).ItemState)
	assert.Equal(t, 1, countCurrent(tree))
}

func TestService_ManufacturerSelection(t *testing.T) {
	catalog := shopCatalog().SetManufacturer(100, 7, "Acme")
	opts := shopOptions()
	opts.MaxLevel = 3
	opts.ManufacturerCats = []int64{12}
	svc, _ := newTestService(catalog, opts)

	tree, err := svc.Navigation(context.Background(), Request{CategoryID: 12, Manufacturer: 7})
	require.NoError(t, err)

	assert.Equal(t, domain.StateAct, findNode(t, tree, 11, 12).ItemState)
	assert.Equal(t, domain.StateCur, findNode(t, tree, 11, 12, domain.ManufacturerNodeID(7)).ItemState)
}

func TestService_UnreachableCategorySelectsNothing(t *testing.T) {
	catalog := shopCatalog().AddCategory(99, "Elsewhere", 98)
	svc, _ := newTestService(catalog, shopOptions())

	tree, err := svc.Navigation(context.Background(), Request{CategoryID: 99})
	require.NoError(t, err)

	assert.Zero(t, countCurrent(tree))
}

func TestService_NoActSelectsNothing(t *testing.T) {
	opts := shopOptions()
	opts.NoAct = true
	svc, _ := newTestService(shopCatalog(), opts)

	tree, err := svc.Navigation(context.Background(), Request{CategoryID: 12})
	require.NoError(t, err)

	tree.Walk(func(n *domain.Node) bool {
		assert.Equal(t, domain.StateNo, n.ItemState)
		return true
	})
}

func TestService_BackingStoreFailure(t *testing.T) {
	catalog := shopCatalog()
	catalog.Err = errors.New("database is down")
	svc, store := newTestService(catalog, shopOptions())

	_, err := svc.Navigation(context.Background(), Request{})

	assert.ErrorIs(t, err, catalog.Err)
	assert.Zero(t, store.Len())
}

func TestService_RemembersSessionSelection(t *testing.T) {
	selections := &memorySelections{}
	svc, _ := newTestService(shopCatalog(), shopOptions(), WithSelectionStore(selections))
	ctx := context.Background()
	visitor := domain.VisitorContext{SessionID: "abc"}

	_, err := svc.Navigation(ctx, Request{Visitor: visitor, CategoryID: 13})
	require.NoError(t, err)

	tree, err := svc.Navigation(ctx, Request{Visitor: visitor})
	require.NoError(t, err)
	assert.Equal(t, domain.StateCur, findNode(t, tree, 11, 13).ItemState)

	tree, err = svc.Navigation(ctx, Request{Visitor: domain.VisitorContext{SessionID: "other"}})
	require.NoError(t, err)
	assert.Zero(t, countCurrent(tree))
}

func TestService_Invalidate(t *testing.T) {
	catalog := shopCatalog()
	svc, store := newTestService(catalog, shopOptions())
	ctx := context.Background()

	before, err := svc.Navigation(ctx, Request{})
	require.NoError(t, err)
	require.NoError(t, svc.Invalidate(ctx))
	assert.Zero(t, store.Len())

	catalog.AddCategory(21, "New", 5)
	after, err := svc.Navigation(ctx, Request{})
	require.NoError(t, err)

	assert.NotEqual(t, before.BuildID, after.BuildID)
	assert.Equal(t, []int64{10, 11, 20, 21}, ids(after.Nodes))
}

func TestErrorTree(t *testing.T) {
	tree := ErrorTree(0)

	require.Len(t, tree.Nodes, 5)
	assert.Equal(t, domain.Leaf, tree.Nodes[0].LeafKind)
	assert.Equal(t, domain.StateNo, tree.Nodes[4].ItemState)
	assert.Len(t, ErrorTree(2).Nodes, 2)
}
