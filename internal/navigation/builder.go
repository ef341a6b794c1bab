package navigation

import (
	"context"
	"errors"
	"fmt"

	"commerce/navigation/internal/domain"
	"commerce/navigation/internal/repository"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// BuildRequest describes one tree build.
type BuildRequest struct {
	RootID   int64
	MaxDepth int
	Language string
	Groups   []string
}

// Builder assembles navigation trees from the catalog. A Builder is safe
// for concurrent use; every Build works on its own state.
type Builder struct {
	catalog repository.Catalog
	opts    Options
	sorter  SortOrderStrategy
	filter  AllowedArticleFilter
}

type BuilderOption func(*Builder)

// WithSortOrder replaces the default sorting-column order.
func WithSortOrder(s SortOrderStrategy) BuilderOption {
	return func(b *Builder) {
		if s != nil {
			b.sorter = s
		}
	}
}

// WithArticleFilter restricts which products become leaves.
func WithArticleFilter(f AllowedArticleFilter) BuilderOption {
	return func(b *Builder) {
		if f != nil {
			b.filter = f
		}
	}
}

func NewBuilder(catalog repository.Catalog, opts Options, options ...BuilderOption) *Builder {
	b := &Builder{
		catalog: catalog,
		opts:    opts.withDefaults(),
		sorter:  defaultSortOrder{},
		filter:  allowAllArticles{},
	}
	for _, o := range options {
		o(b)
	}
	return b
}

// Build assembles the tree below req.RootID. No node of the result has a
// depth of req.MaxDepth or more. The build either completes or returns an
// error; partial trees are never returned.
func (b *Builder) Build(ctx context.Context, req BuildRequest) (domain.Tree, error) {
	run := &buildRun{
		Builder:  b,
		req:      req,
		id:       uuid.NewString(),
		seen:     map[int64]struct{}{req.RootID: {}},
		products: make(map[int64]*domain.DataRow),
	}

	nodes, err := run.categoryLevel(ctx, req.RootID, 0, nil, req.MaxDepth)
	if err != nil {
		return domain.Tree{}, err
	}

	// A root holding only products renders its products directly.
	if len(nodes) == 0 && b.opts.ShowProducts && req.MaxDepth > 0 {
		relations, err := run.relations(ctx, req.RootID, domain.RelationProductCategory, 0, nil)
		if err != nil {
			return domain.Tree{}, err
		}
		nodes, err = run.productLeaves(ctx, req.RootID, req.RootID, relations, 0, nil, 0)
		if err != nil {
			return domain.Tree{}, err
		}
	}

	tree := domain.Tree{BuildID: run.id, Nodes: nodes}
	if b.opts.SortAllItems == SortAlphabetic {
		SortAlphabetically(tree.Nodes)
	}

	log.WithFields(log.Fields{
		"root":     req.RootID,
		"build_id": run.id,
		"nodes":    len(tree.Nodes),
	}).Debug("Built navigation tree")

	return tree, nil
}

// buildRun is the request-local state of a single Build.
type buildRun struct {
	*Builder
	req      BuildRequest
	id       string
	seen     map[int64]struct{}
	products map[int64]*domain.DataRow
}

func (r *buildRun) categoryLevel(ctx context.Context, parentID int64, depth int, parentPath []int64, budget int) ([]*domain.Node, error) {
	if budget <= 0 {
		return nil, nil
	}

	relations, err := r.relations(ctx, parentID, domain.RelationCategoryParent, depth, parentPath)
	if err != nil {
		return nil, err
	}

	return r.categoryNodes(ctx, parentID, relations, depth, parentPath, budget)
}

func (r *buildRun) categoryNodes(ctx context.Context, parentID int64, relations []domain.RelationRow, depth int, parentPath []int64, budget int) ([]*domain.Node, error) {
	if budget <= 0 {
		return nil, nil
	}

	nodes := make([]*domain.Node, 0, len(relations))
	for _, rel := range relations {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		// First relation wins for categories with several parents.
		if _, ok := r.seen[rel.ChildID]; ok {
			continue
		}

		row, err := r.catalog.Lookup(ctx, rel.ChildID, domain.TableCategories, r.req.Language)
		if err != nil {
			return nil, fmt.Errorf("failed to load category %d: %w", rel.ChildID, err)
		}
		if row == nil || row.Deleted {
			continue
		}

		if r.opts.HideEmptyCategories {
			hasProducts, err := r.catalog.HasDescendantProducts(ctx, row.ID)
			if err != nil {
				return nil, fmt.Errorf("failed to check products below category %d: %w", row.ID, err)
			}
			if !hasProducts {
				continue
			}
		}

		r.seen[row.ID] = struct{}{}

		node, err := r.categoryNode(ctx, row, parentID, depth, parentPath, budget)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, node)
	}

	return nodes, nil
}

func (r *buildRun) categoryNode(ctx context.Context, row *domain.DataRow, parentID int64, depth int, parentPath []int64, budget int) (*domain.Node, error) {
	path := appendPath(parentPath, row.ID)
	node := &domain.Node{
		ID:        row.ID,
		Kind:      domain.NodeCategory,
		ParentID:  nodeParent(parentID, depth),
		Title:     sanitize(row.Title),
		NavTitle:  sanitize(row.NavTitle),
		Hidden:    row.Hidden,
		Fields:    sanitizeFields(row.Fields, r.opts.AdditionalFields),
		Depth:     depth,
		Path:      path,
		ItemState: domain.StateNo,
		BuildID:   r.id,
		Params: domain.Params{
			Path:       domain.FormatPath(path),
			CategoryID: row.ID,
			Depth:      depth,
		},
	}

	subRelations, productRelations, err := r.classify(ctx, node)
	if err != nil {
		return nil, err
	}
	if node.LeafKind == domain.InvalidLeaf {
		log.Warnf("Category %d has an unresolvable relation, rendering it as a dead end", row.ID)
		return node, nil
	}

	childBudget := budget - 1

	if r.opts.ShowsManufacturers(row.ID) && childBudget > 0 {
		manufacturers, err := r.manufacturerNodes(ctx, node, productRelations, childBudget)
		if err != nil {
			return nil, err
		}
		node.Children = append(node.Children, manufacturers...)
	}

	if node.LeafKind == domain.NonLeaf {
		subs, err := r.categoryNodes(ctx, row.ID, subRelations, depth+1, path, childBudget)
		if err != nil {
			return nil, err
		}
		node.Children = append(node.Children, subs...)

		if node.ProductChild != domain.NoProductChild && r.opts.ShowProducts && childBudget > 0 {
			leaves, err := r.productLeaves(ctx, row.ID, row.ID, productRelations, depth+1, path, 0)
			if err != nil {
				return nil, err
			}
			node.Children = append(node.Children, leaves...)
		}

		node.Expanded = r.opts.expands(depth + 1)
	}

	return node, nil
}

// classify sets LeafKind and ProductChild on node and returns the child
// relations it fetched so the recursion does not query them again.
func (r *buildRun) classify(ctx context.Context, node *domain.Node) ([]domain.RelationRow, []domain.RelationRow, error) {
	if node.ID <= 0 {
		node.LeafKind = domain.InvalidLeaf
		return nil, nil, nil
	}

	subs, err := r.relations(ctx, node.ID, domain.RelationCategoryParent, node.Depth+1, node.Path)
	if err != nil {
		if errors.Is(err, repository.ErrInvalidRelation) {
			node.LeafKind = domain.InvalidLeaf
			return nil, nil, nil
		}
		return nil, nil, err
	}

	products, err := r.relations(ctx, node.ID, domain.RelationProductCategory, node.Depth+1, node.Path)
	if err != nil {
		if errors.Is(err, repository.ErrInvalidRelation) {
			node.LeafKind = domain.InvalidLeaf
			return nil, nil, nil
		}
		return nil, nil, err
	}

	switch {
	case len(products) > 0 && len(subs) > 0:
		node.ProductChild = domain.HasProductRelationWithOwnChildren
	case len(products) > 0:
		node.ProductChild = domain.HasProductRelation
	default:
		node.ProductChild = domain.NoProductChild
	}

	if len(subs) > 0 || len(products) > 0 {
		node.LeafKind = domain.NonLeaf
	} else {
		node.LeafKind = domain.Leaf
	}

	return subs, products, nil
}

// productLeaves turns product relations into leaf nodes below parentID.
// A non-zero manufacturerID keeps only that manufacturer's products.
func (r *buildRun) productLeaves(ctx context.Context, parentID, categoryID int64, relations []domain.RelationRow, depth int, parentPath []int64, manufacturerID int64) ([]*domain.Node, error) {
	leaves := make([]*domain.Node, 0, len(relations))
	for _, rel := range relations {
		row, err := r.product(ctx, rel.ChildID)
		if err != nil {
			return nil, err
		}
		if row == nil {
			continue
		}
		if manufacturerID != 0 && row.ManufacturerID != manufacturerID {
			continue
		}

		path := appendPath(parentPath, row.ID)
		leaves = append(leaves, &domain.Node{
			ID:             row.ID,
			Kind:           domain.NodeProduct,
			ParentID:       nodeParent(parentID, depth),
			Title:          sanitize(row.Title),
			NavTitle:       sanitize(row.NavTitle),
			Hidden:         row.Hidden,
			Fields:         sanitizeFields(row.Fields, r.opts.AdditionalFields),
			Depth:          depth,
			LeafKind:       domain.Leaf,
			Path:           path,
			ItemState:      domain.StateNo,
			ManufacturerID: row.ManufacturerID,
			BuildID:        r.id,
			Params: domain.Params{
				Path:           domain.FormatPath(path),
				CategoryID:     categoryID,
				ProductID:      row.ID,
				ManufacturerID: manufacturerID,
				Depth:          depth,
			},
		})
	}

	return leaves, nil
}

// product loads a product row once per build and applies the article
// filter. It returns nil for deleted, missing or filtered products.
func (r *buildRun) product(ctx context.Context, id int64) (*domain.DataRow, error) {
	if row, ok := r.products[id]; ok {
		return row, nil
	}

	row, err := r.catalog.Lookup(ctx, id, domain.TableProducts, r.req.Language)
	if err != nil {
		return nil, fmt.Errorf("failed to load product %d: %w", id, err)
	}
	if row != nil && row.Deleted {
		row = nil
	}
	if row != nil {
		allowed, err := r.filter.Allowed(ctx, r.req.Groups, row)
		if err != nil {
			return nil, fmt.Errorf("failed to filter product %d: %w", id, err)
		}
		if !allowed {
			row = nil
		}
	}

	r.products[id] = row
	return row, nil
}

// relations fetches child relations in the order the sort strategy asks
// for. ErrInvalidRelation is returned unwrapped so classify can spot it.
func (r *buildRun) relations(ctx context.Context, parentID int64, kind domain.RelationKind, depth int, path []int64) ([]domain.RelationRow, error) {
	sort := r.sorter.SortSpec(parentID, kind, depth, path)
	rows, err := r.catalog.ChildrenOf(ctx, parentID, kind, sort)
	if err != nil {
		if errors.Is(err, repository.ErrInvalidRelation) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to load %s relations of %d: %w", kind, parentID, err)
	}
	return rows, nil
}

// nodeParent is the ParentID stored on a node; root-level nodes have none.
func nodeParent(parentID int64, depth int) int64 {
	if depth == 0 {
		return 0
	}
	return parentID
}

func appendPath(path []int64, id int64) []int64 {
	out := make([]int64, len(path), len(path)+1)
	copy(out, path)
	return append(out, id)
}
