package navigation

import (
	"context"
	"errors"
	"fmt"

	"commerce/navigation/internal/cache"
	"commerce/navigation/internal/domain"
	"commerce/navigation/internal/repository"

	log "github.com/sirupsen/logrus"
)

const errorNodeTitle = "Navigation configuration error"

// Request carries the parameters of one navigation render.
type Request struct {
	Visitor      domain.VisitorContext
	CategoryID   int64
	ProductID    int64
	Manufacturer int64
	// Path is a deep link in leaf-first comma form. When set it is used
	// as the selection path as is.
	Path  string
	Depth int
}

func (r Request) hasSelection() bool {
	return r.CategoryID > 0 || r.ProductID > 0 || r.Path != ""
}

// SelectionStore remembers the last selection of a visitor session.
type SelectionStore interface {
	Load(ctx context.Context, sessionID string) (*domain.Params, error)
	Save(ctx context.Context, sessionID string, params domain.Params) error
}

// Service renders navigation trees and rootlines for requests. It owns the
// build, cache and state passes; callers only see finished trees.
type Service struct {
	opts       Options
	layer      *cache.Layer
	builder    *Builder
	resolver   *PathResolver
	rootline   *RootlineBuilder
	selections SelectionStore
}

type ServiceOption func(*Service)

// WithSelectionStore makes the service fall back to the last selection of
// a session when a request carries none.
func WithSelectionStore(store SelectionStore) ServiceOption {
	return func(s *Service) {
		s.selections = store
	}
}

// WithBuilderOptions configures the tree builder.
func WithBuilderOptions(options ...BuilderOption) ServiceOption {
	return func(s *Service) {
		s.builder = NewBuilder(s.builder.catalog, s.opts, options...)
	}
}

func NewService(catalog repository.Catalog, layer *cache.Layer, opts Options, options ...ServiceOption) *Service {
	opts = opts.withDefaults()
	s := &Service{
		opts:     opts,
		layer:    layer,
		builder:  NewBuilder(catalog, opts),
		resolver: NewPathResolver(catalog, opts.MaxAncestry),
		rootline: NewRootlineBuilder(catalog, opts),
	}
	for _, o := range options {
		o(s)
	}
	return s
}

// Options returns the resolved menu configuration.
func (s *Service) Options() Options {
	return s.opts
}

// Navigation returns the state-resolved tree for req. A misconfigured
// menu yields the placeholder tree and no error; backing-store failures
// are returned.
func (s *Service) Navigation(ctx context.Context, req Request) (domain.Tree, error) {
	if err := s.checkConfig(); err != nil {
		log.Warnf("⚠️ %v, rendering placeholder navigation", err)
		return ErrorTree(s.opts.ErrorNodes), nil
	}

	root := s.rootCategory(req.Visitor)
	tree, outcome, err := s.tree(ctx, root, req.Visitor)
	if err != nil {
		return domain.Tree{}, err
	}

	req = s.remember(ctx, req)
	sel, err := s.selection(ctx, tree, root, req)
	if err != nil {
		return domain.Tree{}, err
	}

	out := tree.Clone()
	out, sel.Path = sliceEntryLevels(out, sel.Path, s.opts.EntryLevel)
	sel.Depth -= s.opts.EntryLevel
	if sel.Depth < 0 {
		sel.Depth = 0
	}

	resolveStates(out.Nodes, sel)
	out.Nodes = clearStates(out.Nodes, out.BuildID, s.opts.States)

	log.WithFields(log.Fields{
		"root":     root,
		"outcome":  outcome,
		"category": sel.Category,
		"product":  sel.Product,
		"path":     sel.Path,
	}).Debug("Rendered navigation")

	return out, nil
}

// Rootline returns the breadcrumb of the requested category, or of the
// master category of the requested product.
func (s *Service) Rootline(ctx context.Context, req Request) ([]domain.RootlineEntry, error) {
	if err := s.checkConfig(); err != nil {
		log.Warnf("⚠️ %v, rendering empty rootline", err)
		return []domain.RootlineEntry{}, nil
	}

	categoryID := req.CategoryID
	if categoryID <= 0 && req.ProductID > 0 {
		master, err := s.resolver.MasterCategory(ctx, req.ProductID)
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			return nil, err
		}
		categoryID = master
	}

	entries, err := s.rootline.Build(ctx, categoryID, req.ProductID, req.Visitor.Language)
	if err != nil {
		return nil, err
	}
	return SliceRootline(entries, s.opts.EntryLevel), nil
}

// Invalidate drops every cached tree.
func (s *Service) Invalidate(ctx context.Context) error {
	return s.layer.Invalidate(ctx)
}

// ErrorTree is the placeholder rendered instead of a misconfigured menu.
func ErrorTree(n int) domain.Tree {
	if n <= 0 {
		n = defaultErrorNodes
	}
	nodes := make([]*domain.Node, n)
	for i := range nodes {
		nodes[i] = &domain.Node{
			ID:        int64(i + 1),
			Kind:      domain.NodeError,
			Title:     errorNodeTitle,
			NavTitle:  errorNodeTitle,
			LeafKind:  domain.Leaf,
			Path:      []int64{},
			ItemState: domain.StateNo,
		}
	}
	return domain.Tree{Nodes: nodes}
}

func (s *Service) checkConfig() error {
	if s.opts.RootCategory <= 0 {
		return errors.New("no navigation root category configured")
	}
	if s.opts.DisplayPage <= 0 {
		return errors.New("no navigation display page configured")
	}
	return nil
}

// rootCategory picks the first group root matching the visitor, or the
// configured root.
func (s *Service) rootCategory(v domain.VisitorContext) int64 {
	if !s.opts.GroupRootsEnabled || !v.HasGroups() {
		return s.opts.RootCategory
	}
	for _, gr := range s.opts.GroupRoots {
		if gr.CategoryID <= 0 {
			continue
		}
		for _, g := range gr.Groups {
			if v.InGroup(g) {
				return gr.CategoryID
			}
		}
	}
	return s.opts.RootCategory
}

func (s *Service) tree(ctx context.Context, root int64, v domain.VisitorContext) (domain.Tree, cache.Outcome, error) {
	groups := v.NormalizedGroups()
	key, err := cache.Key(cache.KeyParts{
		Config:   s.opts,
		Root:     root,
		Groups:   groups,
		Host:     v.Host,
		Language: v.Language,
	})
	if err != nil {
		return domain.Tree{}, "", err
	}

	tree, outcome, err := s.layer.GetOrBuild(ctx, key, v.NoCache, func(ctx context.Context) (domain.Tree, error) {
		return s.builder.Build(ctx, BuildRequest{
			RootID:   root,
			MaxDepth: s.opts.BuildDepth(),
			Language: v.Language,
			Groups:   groups,
		})
	})
	if err != nil {
		return domain.Tree{}, outcome, fmt.Errorf("failed to build navigation for root %d: %w", root, err)
	}
	return tree, outcome, nil
}

// remember restores the session's last selection for a request without
// one, and records the selection of any other request.
func (s *Service) remember(ctx context.Context, req Request) Request {
	session := req.Visitor.SessionID
	if s.selections == nil || session == "" {
		return req
	}

	if req.hasSelection() {
		params := domain.Params{
			Path:           req.Path,
			CategoryID:     req.CategoryID,
			ProductID:      req.ProductID,
			ManufacturerID: req.Manufacturer,
			Depth:          req.Depth,
		}
		if err := s.selections.Save(ctx, session, params); err != nil {
			log.Warnf("⚠️ Failed to remember selection of session %s: %v", session, err)
		}
		return req
	}

	stored, err := s.selections.Load(ctx, session)
	if err != nil {
		log.Warnf("⚠️ Failed to load selection of session %s: %v", session, err)
		return req
	}
	if stored == nil {
		return req
	}

	req.Path = stored.Path
	req.CategoryID = stored.CategoryID
	req.ProductID = stored.ProductID
	req.Manufacturer = stored.ManufacturerID
	req.Depth = stored.Depth
	return req
}

// selection turns request parameters into a state selection. A target
// that cannot be placed below root yields an empty selection.
func (s *Service) selection(ctx context.Context, tree domain.Tree, root int64, req Request) (Selection, error) {
	if s.opts.NoAct || !req.hasSelection() {
		return Selection{}, nil
	}

	chosen := req.CategoryID
	if chosen <= 0 && req.ProductID > 0 {
		master, err := s.resolver.MasterCategory(ctx, req.ProductID)
		switch {
		case errors.Is(err, repository.ErrNotFound):
			log.Debugf("Product %d has no category, nothing to select", req.ProductID)
		case err != nil:
			return Selection{}, err
		default:
			chosen = master
		}
	}

	var path []int64
	if req.Path != "" {
		parsed, err := ParseDeepLinkPath(req.Path)
		if err != nil {
			log.Debugf("Ignoring deep link %q: %v", req.Path, err)
		}
		path = stripRoot(parsed, root)
	}
	if len(path) == 0 && chosen > 0 {
		resolved, err := s.resolver.Resolve(ctx, tree, chosen, root)
		if errors.Is(err, ErrResolutionMiss) {
			log.Debugf("Category %d is not below root %d, nothing to select", chosen, root)
			return Selection{}, nil
		}
		if err != nil {
			return Selection{}, err
		}
		path = stripRoot(resolved, root)
	}

	if s.opts.GroupRootsEnabled && req.Visitor.HasGroups() && len(path) > 0 {
		trimmed, err := s.trimToTree(tree, path)
		if err != nil {
			log.Debugf("Selection %v does not reach the visitor's root level", path)
			return Selection{}, nil
		}
		path = trimmed
	}

	if req.Manufacturer > 0 && len(path) > 0 {
		manufacturer := domain.ManufacturerNodeID(req.Manufacturer)
		if path[len(path)-1] != manufacturer {
			path = append(path, manufacturer)
		}
		chosen = manufacturer
	}

	// a deep link selects its last element
	if req.Path != "" && req.CategoryID <= 0 && req.Manufacturer <= 0 {
		chosen = 0
	}

	depth := req.Depth
	if depth <= 0 {
		depth = len(path)
	}

	sel := Selection{Path: path, Category: chosen, Depth: depth}
	if s.opts.ShowProducts {
		sel.Product = req.ProductID
	}
	return sel, nil
}

// trimToTree cuts path so that it starts at a root-level node of tree.
func (s *Service) trimToTree(tree domain.Tree, path []int64) ([]int64, error) {
	for _, id := range path {
		if tree.Get(id) != nil {
			return TrimToAncestor(path, id)
		}
	}
	return nil, ErrResolutionMiss
}
