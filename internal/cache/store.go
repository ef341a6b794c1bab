package cache

import (
	"context"

	"commerce/navigation/internal/domain"
)

// Store persists built trees. Entries are namespaced by a generation
// counter: Invalidate advances it, and a Set carrying an older generation
// must not become visible.
type Store interface {
	Generation(ctx context.Context) (uint64, error)
	Get(ctx context.Context, key string) (domain.Tree, bool, error)
	Set(ctx context.Context, key string, generation uint64, tree domain.Tree) error
	Invalidate(ctx context.Context) error
}
