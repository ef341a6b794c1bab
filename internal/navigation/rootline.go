package navigation

import (
	"context"
	"fmt"

	"commerce/navigation/internal/domain"
	"commerce/navigation/internal/repository"

	log "github.com/sirupsen/logrus"
)

// RootlineBuilder renders the breadcrumb from the display root to the
// selected category, and to the selected product below it.
type RootlineBuilder struct {
	catalog repository.Catalog
	opts    Options
}

func NewRootlineBuilder(catalog repository.Catalog, opts Options) *RootlineBuilder {
	return &RootlineBuilder{
		catalog: catalog,
		opts:    opts.withDefaults(),
	}
}

// Build returns the breadcrumb entries root-first. The display root itself
// is not part of the rootline unless it is the selected category.
func (b *RootlineBuilder) Build(ctx context.Context, categoryID, productID int64, lang string) ([]domain.RootlineEntry, error) {
	if categoryID <= 0 {
		return nil, nil
	}

	rows, err := b.ancestors(ctx, categoryID, lang)
	if err != nil {
		return nil, err
	}

	showProduct := b.opts.ShowProducts && productID > 0
	entries := make([]domain.RootlineEntry, 0, len(rows)+1)
	var path []int64
	for i, row := range rows {
		path = appendPath(path, row.ID)
		entry := domain.RootlineEntry{
			ID:        row.ID,
			Kind:      domain.NodeCategory,
			Title:     sanitize(row.Title),
			NavTitle:  sanitize(row.NavTitle),
			ItemState: domain.StateNo,
			Depth:     i,
			Params: domain.Params{
				Path:       domain.FormatPath(path),
				CategoryID: row.ID,
				Depth:      i,
			},
		}
		if row.ID == categoryID && !showProduct {
			entry.ItemState = domain.StateCur
			entry.CandidateStates = []domain.ItemState{domain.StateCur, domain.StateNo}
		}
		entries = append(entries, entry)
	}

	if showProduct {
		product, err := b.catalog.Lookup(ctx, productID, domain.TableProducts, lang)
		if err != nil {
			return nil, fmt.Errorf("failed to load product %d: %w", productID, err)
		}
		if product != nil && !product.Deleted {
			depth := len(entries)
			entries = append(entries, domain.RootlineEntry{
				ID:              product.ID,
				Kind:            domain.NodeProduct,
				Title:           sanitize(product.Title),
				NavTitle:        sanitize(product.Title),
				ItemState:       domain.StateCur,
				CandidateStates: []domain.ItemState{domain.StateCur, domain.StateNo},
				Depth:           depth,
				Params: domain.Params{
					Path:       domain.FormatPath(appendPath(path, product.ID)),
					CategoryID: categoryID,
					ProductID:  product.ID,
					Depth:      depth,
				},
			})
		}
	}

	return entries, nil
}

// ancestors loads categoryID and its first-parent chain up to, but not
// including, the display root. The display root is returned when it is
// categoryID itself. A chain that never meets the display root yields no
// rows. Rows are returned root-first.
func (b *RootlineBuilder) ancestors(ctx context.Context, categoryID int64, lang string) ([]*domain.DataRow, error) {
	var rows []*domain.DataRow
	visited := make(map[int64]struct{})
	current := categoryID
	reached := false

	for step := 0; current > 0 && step < b.opts.MaxAncestry; step++ {
		if _, ok := visited[current]; ok {
			break
		}
		visited[current] = struct{}{}

		row, err := b.catalog.Lookup(ctx, current, domain.TableCategories, lang)
		if err != nil {
			return nil, fmt.Errorf("failed to load category %d: %w", current, err)
		}
		if row == nil || row.Deleted {
			break
		}
		rows = append(rows, row)
		if current == b.opts.RootCategory {
			reached = true
			break
		}

		parents, err := b.catalog.ParentsOf(ctx, current, domain.RelationCategoryParent)
		if err != nil {
			return nil, fmt.Errorf("failed to load parents of category %d: %w", current, err)
		}
		if len(parents) == 0 {
			break
		}
		if parents[0].ParentID == b.opts.RootCategory {
			reached = true
			break
		}
		current = parents[0].ParentID
	}

	if !reached {
		log.Debugf("Category %d is not below display root %d, empty rootline", categoryID, b.opts.RootCategory)
		return nil, nil
	}

	for i, j := 0, len(rows)-1; i < j; i, j = i+1, j-1 {
		rows[i], rows[j] = rows[j], rows[i]
	}
	return rows, nil
}

// SliceRootline drops the first levels entries and shifts the remaining
// depths accordingly.
func SliceRootline(entries []domain.RootlineEntry, levels int) []domain.RootlineEntry {
	if levels <= 0 {
		return entries
	}
	if levels >= len(entries) {
		return []domain.RootlineEntry{}
	}
	out := make([]domain.RootlineEntry, len(entries)-levels)
	copy(out, entries[levels:])
	for i := range out {
		out[i].Depth -= levels
		out[i].Params.Depth -= levels
	}
	return out
}
