package navigation

import (
	"context"
	"testing"

	"commerce/navigation/internal/domain"
	"commerce/navigation/internal/testutil"

	"github.com/stretchr/testify/require"
)

// shopCatalog is the catalog most tests run against:
//
//	5 (root)
//	├── 10 Shoes
//	├── 11 Shirts
//	│   ├── 12 Polo        products 100, 101
//	│   │   └── 14 Kids    product 103
//	│   └── 13 Tee         product 102
//	└── 20 Empty
func shopCatalog() *testutil.Catalog {
	return testutil.NewCatalog().
		AddCategory(10, "Shoes", 5).
		AddCategory(11, "Shirts", 5).
		AddCategory(20, "Empty", 5).
		AddCategory(12, "Polo", 11).
		AddCategory(13, "Tee", 11).
		AddCategory(14, "Kids", 12).
		AddProduct(100, "Red Polo", 12).
		AddProduct(101, "Blue Polo", 12).
		AddProduct(102, "Plain Tee", 13).
		AddProduct(103, "Mini Polo", 14)
}

func shopOptions() Options {
	return Options{
		RootCategory: 5,
		DisplayPage:  1,
		MaxLevel:     2,
	}.withDefaults()
}

func buildTree(t *testing.T, catalog *testutil.Catalog, opts Options) domain.Tree {
	t.Helper()

	tree, err := NewBuilder(catalog, opts).Build(context.Background(), BuildRequest{
		RootID:   opts.RootCategory,
		MaxDepth: opts.BuildDepth(),
	})
	require.NoError(t, err)
	return tree
}

func ids(nodes []*domain.Node) []int64 {
	out := make([]int64, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, n.ID)
	}
	return out
}

func findNode(t *testing.T, tree domain.Tree, path ...int64) *domain.Node {
	t.Helper()

	nodes := tree.Nodes
	var node *domain.Node
	for _, id := range path {
		node = domain.FindNode(nodes, id)
		require.NotNil(t, node, "node %d missing on path %v", id, path)
		nodes = node.Children
	}
	return node
}
