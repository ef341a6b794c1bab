package navigation

import (
	"context"

	"commerce/navigation/internal/domain"
)

// SortOrderStrategy decides how the child relations of a parent are ordered.
type SortOrderStrategy interface {
	SortSpec(parentID int64, kind domain.RelationKind, depth int, path []int64) domain.SortSpec
}

// AllowedArticleFilter decides whether a product row may appear in the menu
// of a visitor belonging to groups.
type AllowedArticleFilter interface {
	Allowed(ctx context.Context, groups []string, product *domain.DataRow) (bool, error)
}

type defaultSortOrder struct{}

func (defaultSortOrder) SortSpec(int64, domain.RelationKind, int, []int64) domain.SortSpec {
	return domain.DefaultSort
}

// FixedSortOrder applies the same sort spec to every level.
type FixedSortOrder domain.SortSpec

func (f FixedSortOrder) SortSpec(int64, domain.RelationKind, int, []int64) domain.SortSpec {
	return domain.SortSpec(f)
}

type allowAllArticles struct{}

func (allowAllArticles) Allowed(context.Context, []string, *domain.DataRow) (bool, error) {
	return true, nil
}
