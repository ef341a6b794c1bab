// Package testutil provides an in-memory catalog for tests.
package testutil

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"

	"commerce/navigation/internal/domain"
	"commerce/navigation/internal/repository"
)

// Catalog is an in-memory repository.Catalog. Relations are ordered by
// insertion unless a sort spec asks otherwise.
type Catalog struct {
	mu         sync.RWMutex
	categories map[int64]*domain.DataRow
	products   map[int64]*domain.DataRow
	relations  map[domain.RelationKind][]domain.RelationRow
	overlays   map[string]map[int64]string
	invalid    map[int64]bool

	// Err, when set, fails every call.
	Err error

	calls atomic.Int64
}

func NewCatalog() *Catalog {
	return &Catalog{
		categories: make(map[int64]*domain.DataRow),
		products:   make(map[int64]*domain.DataRow),
		relations:  make(map[domain.RelationKind][]domain.RelationRow),
		overlays:   make(map[string]map[int64]string),
		invalid:    make(map[int64]bool),
	}
}

// AddCategory adds a category below each of parents, in order.
func (c *Catalog) AddCategory(id int64, title string, parents ...int64) *Catalog {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.categories[id] = &domain.DataRow{ID: id, Title: title}
	for _, parent := range parents {
		c.relate(domain.RelationCategoryParent, id, parent)
	}
	return c
}

// AddProduct adds a product related to each of categories, in order.
func (c *Catalog) AddProduct(id int64, title string, categories ...int64) *Catalog {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.products[id] = &domain.DataRow{ID: id, Title: title}
	for _, category := range categories {
		c.relate(domain.RelationProductCategory, id, category)
	}
	return c
}

// SetManufacturer assigns a manufacturer to a product.
func (c *Catalog) SetManufacturer(productID, manufacturerID int64, title string) *Catalog {
	c.mu.Lock()
	defer c.mu.Unlock()

	if row, ok := c.products[productID]; ok {
		row.ManufacturerID = manufacturerID
		row.ManufacturerTitle = title
	}
	return c
}

// Delete marks a category or product row as deleted.
func (c *Catalog) Delete(table domain.Table, id int64) *Catalog {
	c.mu.Lock()
	defer c.mu.Unlock()

	if row := c.rows(table)[id]; row != nil {
		row.Deleted = true
	}
	return c
}

// Translate sets the overlay title of a row for lang.
func (c *Catalog) Translate(lang string, id int64, title string) *Catalog {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.overlays[lang] == nil {
		c.overlays[lang] = make(map[int64]string)
	}
	c.overlays[lang][id] = title
	return c
}

// BreakRelations makes every relation query below parent fail with
// repository.ErrInvalidRelation.
func (c *Catalog) BreakRelations(parent int64) *Catalog {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.invalid[parent] = true
	return c
}

// SetField sets an additional field on a row.
func (c *Catalog) SetField(table domain.Table, id int64, name, value string) *Catalog {
	c.mu.Lock()
	defer c.mu.Unlock()

	if row := c.rows(table)[id]; row != nil {
		if row.Fields == nil {
			row.Fields = make(map[string]string)
		}
		row.Fields[name] = value
	}
	return c
}

// Calls returns the number of catalog calls made so far.
func (c *Catalog) Calls() int {
	return int(c.calls.Load())
}

func (c *Catalog) Lookup(_ context.Context, id int64, table domain.Table, lang string) (*domain.DataRow, error) {
	c.calls.Add(1)
	if c.Err != nil {
		return nil, c.Err
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	rows := c.rows(table)
	if rows == nil {
		return nil, repository.ErrInvalidRelation
	}
	row, ok := rows[id]
	if !ok {
		return nil, nil
	}

	out := *row
	if title, ok := c.overlays[lang][id]; ok && lang != "" {
		out.Title = title
	}
	if row.Fields != nil {
		out.Fields = make(map[string]string, len(row.Fields))
		for k, v := range row.Fields {
			out.Fields[k] = v
		}
	}
	return &out, nil
}

func (c *Catalog) ChildrenOf(_ context.Context, parentID int64, kind domain.RelationKind, spec domain.SortSpec) ([]domain.RelationRow, error) {
	c.calls.Add(1)
	if c.Err != nil {
		return nil, c.Err
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	if !kind.Valid() || c.invalid[parentID] {
		return nil, repository.ErrInvalidRelation
	}

	children := c.rows(kind.ChildTable())
	var out []domain.RelationRow
	for _, rel := range c.relations[kind] {
		if rel.ParentID != parentID {
			continue
		}
		if row := children[rel.ChildID]; row == nil || row.Deleted {
			continue
		}
		out = append(out, rel)
	}

	less := func(a, b domain.RelationRow) bool { return a.Sorting < b.Sorting }
	switch spec.Field {
	case "title":
		less = func(a, b domain.RelationRow) bool { return children[a.ChildID].Title < children[b.ChildID].Title }
	case "uid":
		less = func(a, b domain.RelationRow) bool { return a.ChildID < b.ChildID }
	}
	sort.SliceStable(out, func(i, j int) bool {
		if spec.Descending {
			return less(out[j], out[i])
		}
		return less(out[i], out[j])
	})

	return out, nil
}

func (c *Catalog) ParentsOf(_ context.Context, childID int64, kind domain.RelationKind) ([]domain.RelationRow, error) {
	c.calls.Add(1)
	if c.Err != nil {
		return nil, c.Err
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	if !kind.Valid() {
		return nil, repository.ErrInvalidRelation
	}

	var out []domain.RelationRow
	for _, rel := range c.relations[kind] {
		if rel.ChildID == childID {
			out = append(out, rel)
		}
	}
	return out, nil
}

func (c *Catalog) HasDescendantProducts(_ context.Context, categoryID int64) (bool, error) {
	c.calls.Add(1)
	if c.Err != nil {
		return false, c.Err
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	visited := make(map[int64]bool)
	stack := []int64{categoryID}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if visited[id] {
			continue
		}
		visited[id] = true

		for _, rel := range c.relations[domain.RelationProductCategory] {
			if rel.ParentID == id {
				if p := c.products[rel.ChildID]; p != nil && !p.Deleted {
					return true, nil
				}
			}
		}
		for _, rel := range c.relations[domain.RelationCategoryParent] {
			if rel.ParentID == id {
				stack = append(stack, rel.ChildID)
			}
		}
	}
	return false, nil
}

func (c *Catalog) relate(kind domain.RelationKind, child, parent int64) {
	sorting := 0
	for _, rel := range c.relations[kind] {
		if rel.ParentID == parent {
			sorting++
		}
	}
	c.relations[kind] = append(c.relations[kind], domain.RelationRow{ChildID: child, ParentID: parent, Sorting: sorting})
}

func (c *Catalog) rows(table domain.Table) map[int64]*domain.DataRow {
	switch table {
	case domain.TableCategories:
		return c.categories
	case domain.TableProducts:
		return c.products
	default:
		return nil
	}
}

var _ repository.Catalog = (*Catalog)(nil)
