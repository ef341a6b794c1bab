package navigation

import (
	"context"

	"commerce/navigation/internal/domain"
)

// manufacturerNodes groups the products directly related to category by
// manufacturer, one synthetic node per distinct manufacturer in relation
// order. Products without a manufacturer are not grouped.
func (r *buildRun) manufacturerNodes(ctx context.Context, category *domain.Node, productRelations []domain.RelationRow, budget int) ([]*domain.Node, error) {
	if budget <= 0 || len(productRelations) == 0 {
		return nil, nil
	}

	var order []int64
	titles := make(map[int64]string)
	for _, rel := range productRelations {
		row, err := r.product(ctx, rel.ChildID)
		if err != nil {
			return nil, err
		}
		if row == nil || row.ManufacturerID == 0 {
			continue
		}
		if _, ok := titles[row.ManufacturerID]; ok {
			continue
		}
		titles[row.ManufacturerID] = row.ManufacturerTitle
		order = append(order, row.ManufacturerID)
	}

	depth := category.Depth + 1
	nodes := make([]*domain.Node, 0, len(order))
	for _, manufacturerID := range order {
		id := domain.ManufacturerNodeID(manufacturerID)
		path := appendPath(category.Path, id)
		title := sanitize(titles[manufacturerID])

		node := &domain.Node{
			ID:             id,
			Kind:           domain.NodeManufacturer,
			ParentID:       category.ID,
			Title:          title,
			NavTitle:       title,
			Depth:          depth,
			LeafKind:       domain.Leaf,
			ProductChild:   domain.HasProductRelation,
			Path:           path,
			ItemState:      domain.StateNo,
			Synthetic:      true,
			ManufacturerID: manufacturerID,
			BuildID:        r.id,
			Params: domain.Params{
				Path:           domain.FormatPath(path),
				CategoryID:     category.ID,
				ManufacturerID: manufacturerID,
				Depth:          depth,
			},
		}

		if r.opts.ShowProducts && budget-1 > 0 {
			leaves, err := r.productLeaves(ctx, id, category.ID, productRelations, depth+1, path, manufacturerID)
			if err != nil {
				return nil, err
			}
			if len(leaves) > 0 {
				node.Children = leaves
				node.LeafKind = domain.NonLeaf
				node.Expanded = r.opts.expands(depth + 1)
			}
		}

		nodes = append(nodes, node)
	}

	return nodes, nil
}
