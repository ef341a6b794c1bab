package navigation

import (
	"commerce/navigation/internal/domain"
)

// SliceEntryLevels returns a copy of the subtree found levels steps down
// along path, with every depth reduced by levels, together with the part
// of path left below it. A path shorter than levels yields an empty tree.
func SliceEntryLevels(tree domain.Tree, path []int64, levels int) (domain.Tree, []int64) {
	return sliceEntryLevels(tree.Clone(), path, levels)
}

// sliceEntryLevels works in place on a tree owned by the caller.
func sliceEntryLevels(tree domain.Tree, path []int64, levels int) (domain.Tree, []int64) {
	if levels <= 0 {
		return tree, path
	}

	nodes := tree.Nodes
	for i := 0; i < levels; i++ {
		if i >= len(path) {
			return domain.Tree{BuildID: tree.BuildID, Nodes: []*domain.Node{}}, nil
		}
		node := domain.FindNode(nodes, path[i])
		if node == nil {
			return domain.Tree{BuildID: tree.BuildID, Nodes: []*domain.Node{}}, nil
		}
		nodes = node.Children
	}

	if nodes == nil {
		nodes = []*domain.Node{}
	}
	for _, n := range nodes {
		n.ParentID = 0
	}
	out := domain.Tree{BuildID: tree.BuildID, Nodes: nodes}
	out.Walk(func(n *domain.Node) bool {
		n.Depth -= levels
		n.Params.Depth -= levels
		return true
	})

	return out, append([]int64(nil), path[levels:]...)
}
