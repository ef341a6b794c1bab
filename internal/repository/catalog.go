package repository

import (
	"context"
	"errors"

	"commerce/navigation/internal/domain"
)

var (
	// ErrInvalidRelation is returned when a relation kind or its backing
	// table does not exist.
	ErrInvalidRelation = errors.New("invalid relation")
	// ErrNotFound is returned when a referenced record does not exist.
	ErrNotFound = errors.New("not found")
)

// DataRowProvider resolves single catalog rows.
type DataRowProvider interface {
	// Lookup returns the row with the locale overlay for lang applied, or
	// nil when the row does not exist.
	Lookup(ctx context.Context, id int64, table domain.Table, lang string) (*domain.DataRow, error)
}

// RelationProvider lists relation rows in both directions.
type RelationProvider interface {
	// ChildrenOf returns the relations whose parent is parentID, ordered by
	// sort. Relations pointing at deleted child rows are left out.
	ChildrenOf(ctx context.Context, parentID int64, kind domain.RelationKind, sort domain.SortSpec) ([]domain.RelationRow, error)
	// ParentsOf returns the relations whose child is childID, ordered by
	// the relation's own sorting column.
	ParentsOf(ctx context.Context, childID int64, kind domain.RelationKind) ([]domain.RelationRow, error)
}

// Catalog is everything the navigation core reads from the backing store.
type Catalog interface {
	DataRowProvider
	RelationProvider
	// HasDescendantProducts reports whether any category below categoryID,
	// or categoryID itself, has a product relation.
	HasDescendantProducts(ctx context.Context, categoryID int64) (bool, error)
}
