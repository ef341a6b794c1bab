package navigation

import (
	"commerce/navigation/internal/domain"
)

var (
	activeStates        = []domain.ItemState{domain.StateAct, domain.StateNo}
	activeIfSubStates   = []domain.ItemState{domain.StateActIfSub, domain.StateAct, domain.StateIfSub, domain.StateNo}
	currentStates       = []domain.ItemState{domain.StateCur, domain.StateAct, domain.StateNo}
	currentIfSubStates  = []domain.ItemState{domain.StateCurIfSub, domain.StateCur, domain.StateActIfSub, domain.StateAct, domain.StateIfSub, domain.StateNo}
	currentProductState = []domain.ItemState{domain.StateCur, domain.StateAct, domain.StateNo}
)

// Selection is the part of the tree a visitor has chosen.
type Selection struct {
	// Path holds node ids root-first, starting below the configured root.
	Path []int64
	// Category is the chosen category, or a manufacturer node id when a
	// manufacturer was chosen. Zero makes the last path element current.
	Category int64
	// Product is the selected product leaf, if any.
	Product int64
	// Depth limits how many path levels are resolved.
	Depth int
}

// Resolve returns a copy of tree with item states set along sel.Path.
// Path nodes with children are expanded. Nodes off the path, and path
// nodes beyond sel.Depth, keep NO.
func Resolve(tree domain.Tree, sel Selection) domain.Tree {
	out := tree.Clone()
	resolveStates(out.Nodes, sel)
	return out
}

// Clear returns a copy of tree where every state-bearing node carries the
// highest-priority candidate state its level enables, or NO. Nodes from a
// different build than the tree are dropped.
func Clear(tree domain.Tree, states LevelStates) domain.Tree {
	out := tree.Clone()
	out.Nodes = clearStates(out.Nodes, out.BuildID, states)
	return out
}

// resolveStates assigns natural states in place. nodes must be owned by
// the caller.
func resolveStates(nodes []*domain.Node, sel Selection) {
	depth := sel.Depth
	if depth > len(sel.Path) {
		depth = len(sel.Path)
	}

	// Products directly below the root have no category on the path.
	if len(sel.Path) == 0 && sel.Product > 0 {
		for _, n := range nodes {
			if n.Kind == domain.NodeProduct && n.ID == sel.Product {
				markCurrentProduct(n)
			}
		}
		return
	}

	level := nodes
	for i := 0; i < depth; i++ {
		node := domain.FindNode(level, sel.Path[i])
		if node == nil {
			return
		}

		// the active branch always shows its submenu
		if node.HasChildren() {
			node.Expanded = true
		}

		terminal := node.ID == sel.Category || (sel.Category == 0 && i == len(sel.Path)-1)
		if terminal && node.Kind != domain.NodeProduct {
			markCurrent(node, sel.Product)
		} else {
			markActive(node)
		}

		level = node.Children
	}
}

func markActive(n *domain.Node) {
	n.ItemState = domain.StateAct
	if n.HasChildren() {
		n.CandidateStates = candidates(activeIfSubStates)
	} else {
		n.CandidateStates = candidates(activeStates)
	}
}

// markCurrent makes n the current node unless a selected product below it
// takes that role.
func markCurrent(n *domain.Node, product int64) {
	if product > 0 {
		if leaf := n.ProductLeaf(product); leaf != nil {
			markCurrentProduct(leaf)
			markActive(n)
			return
		}
	}

	n.ItemState = domain.StateCur
	if n.HasChildren() {
		n.CandidateStates = candidates(currentIfSubStates)
	} else {
		n.CandidateStates = candidates(currentStates)
	}
}

func markCurrentProduct(n *domain.Node) {
	n.ItemState = domain.StateCur
	n.CandidateStates = candidates(currentProductState)
}

func clearStates(nodes []*domain.Node, buildID string, states LevelStates) []*domain.Node {
	kept := nodes[:0]
	for _, n := range nodes {
		if buildID != "" && n.BuildID != buildID {
			continue
		}
		if n.ItemState != domain.StateNo && len(n.CandidateStates) > 0 {
			n.ItemState = states.ForDepth(n.Depth).Pick(n.CandidateStates)
		}
		if len(n.Children) > 0 {
			n.Children = clearStates(n.Children, buildID, states)
		}
		kept = append(kept, n)
	}
	return kept
}

func candidates(states []domain.ItemState) []domain.ItemState {
	return append([]domain.ItemState(nil), states...)
}
