package domain

import (
	"strconv"
	"strings"
)

// ManufacturerNodeBase is the start of the id namespace reserved for
// manufacturer pseudo-nodes. Category and product ids stay below it.
const ManufacturerNodeBase int64 = 1 << 62

// ManufacturerNodeID returns the pseudo-node id for a manufacturer.
func ManufacturerNodeID(manufacturerID int64) int64 {
	return ManufacturerNodeBase + manufacturerID
}

// IsManufacturerNodeID reports whether id lies in the manufacturer namespace.
func IsManufacturerNodeID(id int64) bool {
	return id >= ManufacturerNodeBase
}

type NodeKind string

const (
	NodeCategory     NodeKind = "category"
	NodeProduct      NodeKind = "product"
	NodeManufacturer NodeKind = "manufacturer"
	NodeError        NodeKind = "error"
)

// LeafKind classifies a node by its relations.
type LeafKind int

const (
	NonLeaf LeafKind = iota
	Leaf
	// InvalidLeaf marks a node whose id or relation table could not be
	// resolved. It is terminal and never has children.
	InvalidLeaf
)

func (k LeafKind) String() string {
	switch k {
	case NonLeaf:
		return "non-leaf"
	case Leaf:
		return "leaf"
	case InvalidLeaf:
		return "invalid"
	default:
		return "unknown"
	}
}

// ProductChild tells whether product leaves hang below a category.
type ProductChild int

const (
	NoProductChild ProductChild = iota
	// HasProductRelation: product relations, no sub-category relations.
	HasProductRelation
	// HasProductRelationWithOwnChildren: product relations next to sub-categories.
	HasProductRelationWithOwnChildren
)

// Params is the bag of values a renderer needs to build a deep link to a node.
type Params struct {
	Path           string `json:"path,omitempty"`
	CategoryID     int64  `json:"category_id,omitempty"`
	ProductID      int64  `json:"product_id,omitempty"`
	ManufacturerID int64  `json:"manufacturer_id,omitempty"`
	Depth          int    `json:"depth"`
}

// Node is one element of a navigation tree. A node exclusively owns its
// children.
type Node struct {
	ID              int64             `json:"id"`
	Kind            NodeKind          `json:"kind"`
	ParentID        int64             `json:"parent_id"`
	Title           string            `json:"title"`
	NavTitle        string            `json:"nav_title"`
	Hidden          bool              `json:"hidden,omitempty"`
	Fields          map[string]string `json:"fields,omitempty"`
	Depth           int               `json:"depth"`
	LeafKind        LeafKind          `json:"leaf"`
	ProductChild    ProductChild      `json:"has_product_child"`
	Path            []int64           `json:"path"`
	Children        []*Node           `json:"children,omitempty"`
	ItemState       ItemState         `json:"item_state"`
	CandidateStates []ItemState       `json:"item_states_list,omitempty"`
	Synthetic       bool              `json:"synthetic,omitempty"`
	ManufacturerID  int64             `json:"manufacturer_id,omitempty"`
	Expanded        bool              `json:"expanded,omitempty"`
	Params          Params            `json:"params"`
	BuildID         string            `json:"build_id"`
}

// HasChildren reports whether the node currently holds any children.
func (n *Node) HasChildren() bool {
	return len(n.Children) > 0
}

// SubMenu is the exposed children view used by renderers that do not walk
// Children on their own. It is empty unless the node was expanded.
func (n *Node) SubMenu() []*Node {
	if !n.Expanded {
		return nil
	}
	return n.Children
}

// Child looks up a direct child by id. Category and manufacturer nodes win
// over product nodes sharing the same id.
func (n *Node) Child(id int64) *Node {
	return FindNode(n.Children, id)
}

// ProductLeaf looks up a direct product child by id.
func (n *Node) ProductLeaf(id int64) *Node {
	for _, c := range n.Children {
		if c.Kind == NodeProduct && c.ID == id {
			return c
		}
	}
	return nil
}

// Clone returns a deep copy of the node and its subtree.
func (n *Node) Clone() *Node {
	if n == nil {
		return nil
	}
	c := *n
	if n.Path != nil {
		c.Path = append([]int64(nil), n.Path...)
	}
	if n.CandidateStates != nil {
		c.CandidateStates = append([]ItemState(nil), n.CandidateStates...)
	}
	if n.Fields != nil {
		c.Fields = make(map[string]string, len(n.Fields))
		for k, v := range n.Fields {
			c.Fields[k] = v
		}
	}
	if n.Children != nil {
		c.Children = make([]*Node, len(n.Children))
		for i, child := range n.Children {
			c.Children[i] = child.Clone()
		}
	}
	return &c
}

// Tree is the result of one build for one root: the root-level nodes in
// their display order.
type Tree struct {
	BuildID string  `json:"build_id"`
	Nodes   []*Node `json:"nodes"`
}

// Get returns the root-level node with the given id.
func (t Tree) Get(id int64) *Node {
	return FindNode(t.Nodes, id)
}

// Len returns the number of root-level nodes.
func (t Tree) Len() int {
	return len(t.Nodes)
}

// Clone returns a deep copy of the tree. State resolution always works on a
// clone so the cached tree stays untouched.
func (t Tree) Clone() Tree {
	c := Tree{BuildID: t.BuildID}
	if t.Nodes != nil {
		c.Nodes = make([]*Node, len(t.Nodes))
		for i, n := range t.Nodes {
			c.Nodes[i] = n.Clone()
		}
	}
	return c
}

// Walk visits every node depth-first, parents before children. Returning
// false from fn stops the descent below that node.
func (t Tree) Walk(fn func(n *Node) bool) {
	walk(t.Nodes, fn)
}

func walk(nodes []*Node, fn func(n *Node) bool) {
	for _, n := range nodes {
		if fn(n) {
			walk(n.Children, fn)
		}
	}
}

// FindNode looks up id among nodes, preferring category and manufacturer
// nodes over products with the same id.
func FindNode(nodes []*Node, id int64) *Node {
	var product *Node
	for _, n := range nodes {
		if n.ID != id {
			continue
		}
		if n.Kind != NodeProduct {
			return n
		}
		if product == nil {
			product = n
		}
	}
	return product
}

// FormatPath encodes a root-first path in the leaf-first comma form used
// by deep links ("12,5" is node 12 below node 5).
func FormatPath(path []int64) string {
	parts := make([]string, len(path))
	for i, id := range path {
		parts[len(path)-1-i] = strconv.FormatInt(id, 10)
	}
	return strings.Join(parts, ",")
}
