package navigation

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"commerce/navigation/internal/domain"
	"commerce/navigation/internal/repository"

	log "github.com/sirupsen/logrus"
)

// ErrResolutionMiss is returned when no ancestor chain from the configured
// root to a target can be established.
var ErrResolutionMiss = errors.New("navigation path not resolvable")

// FindPath searches tree depth-first for a category or manufacturer node
// and returns its root-first path.
func FindPath(tree domain.Tree, target int64) ([]int64, bool) {
	return findPath(tree.Nodes, target)
}

func findPath(nodes []*domain.Node, target int64) ([]int64, bool) {
	for _, n := range nodes {
		if n.ID == target && n.Kind != domain.NodeProduct {
			return append([]int64(nil), n.Path...), true
		}
	}
	for _, n := range nodes {
		if len(n.Children) == 0 {
			continue
		}
		if path, ok := findPath(n.Children, target); ok {
			return path, true
		}
	}
	return nil, false
}

// PathResolver computes selection paths, falling back to the backing store
// when the target is not part of the built tree.
type PathResolver struct {
	relations   repository.RelationProvider
	maxAncestry int
}

func NewPathResolver(relations repository.RelationProvider, maxAncestry int) *PathResolver {
	if maxAncestry <= 0 {
		maxAncestry = defaultMaxAncestry
	}
	return &PathResolver{
		relations:   relations,
		maxAncestry: maxAncestry,
	}
}

// Resolve returns the root-first path from below root down to target.
// The tree is searched first; if target is absent (for instance pruned
// by hidden empty categories) the parent relations are walked instead.
func (p *PathResolver) Resolve(ctx context.Context, tree domain.Tree, target, root int64) ([]int64, error) {
	if path, ok := FindPath(tree, target); ok {
		return path, nil
	}

	log.Debugf("Category %d not found in navigation tree, walking parent relations", target)
	return p.WalkParents(ctx, target, root)
}

// WalkParents follows the first parent relation of each category upwards
// until root is reached. The walk is bounded by the configured ancestry
// limit and fails with ErrResolutionMiss when root is never met.
func (p *PathResolver) WalkParents(ctx context.Context, target, root int64) ([]int64, error) {
	if target <= 0 {
		return nil, ErrResolutionMiss
	}
	if target == root {
		return []int64{}, nil
	}

	chain := []int64{target}
	visited := map[int64]struct{}{target: {}}
	current := target

	for step := 0; step < p.maxAncestry; step++ {
		parents, err := p.relations.ParentsOf(ctx, current, domain.RelationCategoryParent)
		if err != nil {
			return nil, fmt.Errorf("failed to load parents of category %d: %w", current, err)
		}
		if len(parents) == 0 || parents[0].ParentID == 0 {
			break
		}

		parent := parents[0].ParentID
		if parent == root {
			return reverse(chain), nil
		}
		if _, ok := visited[parent]; ok {
			break
		}
		visited[parent] = struct{}{}

		chain = append(chain, parent)
		current = parent
	}

	return nil, fmt.Errorf("category %d is not below root %d: %w", target, root, ErrResolutionMiss)
}

// MasterCategory returns the first category a product is related to.
func (p *PathResolver) MasterCategory(ctx context.Context, productID int64) (int64, error) {
	parents, err := p.relations.ParentsOf(ctx, productID, domain.RelationProductCategory)
	if err != nil {
		return 0, fmt.Errorf("failed to load categories of product %d: %w", productID, err)
	}
	if len(parents) == 0 {
		return 0, fmt.Errorf("product %d has no category: %w", productID, repository.ErrNotFound)
	}
	return parents[0].ParentID, nil
}

// TrimToAncestor drops leading path elements until the path starts with
// ancestor. The match is exact and the scan is bounded by the path length.
func TrimToAncestor(path []int64, ancestor int64) ([]int64, error) {
	for i, id := range path {
		if id == ancestor {
			return append([]int64(nil), path[i:]...), nil
		}
	}
	return nil, fmt.Errorf("%d is not on path %v: %w", ancestor, path, ErrResolutionMiss)
}

// ParseDeepLinkPath decodes the leaf-first deep-link form ("12,5" is 12
// below 5) into a root-first path. Blank and zero elements are skipped.
func ParseDeepLinkPath(raw string) ([]int64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}

	parts := strings.Split(raw, ",")
	path := make([]int64, 0, len(parts))
	for i := len(parts) - 1; i >= 0; i-- {
		part := strings.TrimSpace(parts[i])
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid path element %q: %w", part, err)
		}
		if id == 0 {
			continue
		}
		path = append(path, id)
	}

	return path, nil
}

// stripRoot removes the configured root and zero ids from a path.
func stripRoot(path []int64, root int64) []int64 {
	out := make([]int64, 0, len(path))
	for _, id := range path {
		if id != root && id > 0 {
			out = append(out, id)
		}
	}
	return out
}

func reverse(ids []int64) []int64 {
	out := make([]int64, len(ids))
	for i, id := range ids {
		out[len(ids)-1-i] = id
	}
	return out
}
