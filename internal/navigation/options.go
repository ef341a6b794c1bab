package navigation

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"commerce/navigation/internal/config"
	"commerce/navigation/internal/domain"
)

const (
	SortNone       = ""
	SortAlphabetic = "alphabetic"

	defaultErrorNodes  = 5
	defaultMaxAncestry = 64
)

// GroupRoot maps visitor groups to a root category.
type GroupRoot struct {
	Groups     []string `json:"groups"`
	CategoryID int64    `json:"category_id"`
}

// Options is the resolved configuration of one navigation menu. Every
// serialized field takes part in the cache key; States only drive the
// clear pass that runs after the cache.
type Options struct {
	RootCategory        int64       `json:"root_category"`
	DisplayPage         int64       `json:"display_page"`
	MaxLevel            int         `json:"max_level"`
	EntryLevel          int         `json:"entry_level"`
	ExpandAll           int         `json:"expand_all"`
	ShowProducts        bool        `json:"show_products"`
	HideEmptyCategories bool        `json:"hide_empty_categories"`
	ManufacturerAll     bool        `json:"manufacturer_all"`
	ManufacturerCats    []int64     `json:"manufacturer_cats"`
	NoAct               bool        `json:"no_act"`
	SortAllItems        string      `json:"sort_all_items"`
	ErrorNodes          int         `json:"error_nodes"`
	MaxAncestry         int         `json:"max_ancestry"`
	AdditionalFields    []string    `json:"additional_fields"`
	GroupRootsEnabled   bool        `json:"group_roots_enabled"`
	GroupRoots          []GroupRoot `json:"group_roots"`
	States              LevelStates `json:"-"`
}

// OptionsFromConfig validates and converts the navigation section of the
// configuration.
func OptionsFromConfig(cfg config.NavigationConfig) (Options, error) {
	opts := Options{
		RootCategory:        cfg.Category,
		DisplayPage:         cfg.OverridePid,
		MaxLevel:            cfg.MaxLevel,
		EntryLevel:          cfg.EntryLevel,
		ExpandAll:           cfg.ExpandAll,
		ShowProducts:        cfg.ShowProducts,
		HideEmptyCategories: cfg.HideEmptyCategories,
		NoAct:               cfg.NoAct,
		SortAllItems:        strings.ToLower(strings.TrimSpace(cfg.SortAllItems)),
		ErrorNodes:          cfg.ErrorNodes,
		MaxAncestry:         cfg.MaxAncestry,
		AdditionalFields:    cfg.AdditionalFields,
		GroupRootsEnabled:   cfg.GroupOptions.Enabled,
	}

	if opts.SortAllItems != SortNone && opts.SortAllItems != SortAlphabetic {
		return Options{}, fmt.Errorf("unsupported sort_all_items %q", cfg.SortAllItems)
	}
	if opts.EntryLevel < 0 {
		return Options{}, fmt.Errorf("entry_level must not be negative, got %d", opts.EntryLevel)
	}

	for i, raw := range cfg.DisplayManuForCat {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		if i == 0 && strings.EqualFold(raw, "all") {
			opts.ManufacturerAll = true
			continue
		}
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return Options{}, fmt.Errorf("invalid display_manu_for_cat entry %q: %w", raw, err)
		}
		opts.ManufacturerCats = append(opts.ManufacturerCats, id)
	}

	for _, opt := range cfg.GroupOptions.Options {
		opts.GroupRoots = append(opts.GroupRoots, GroupRoot{Groups: opt.Groups, CategoryID: opt.CategoryUID})
	}

	states, err := levelStatesFromConfig(cfg.States)
	if err != nil {
		return Options{}, err
	}
	opts.States = states

	return opts.withDefaults(), nil
}

func (o Options) withDefaults() Options {
	if o.ErrorNodes <= 0 {
		o.ErrorNodes = defaultErrorNodes
	}
	if o.MaxAncestry <= 0 {
		o.MaxAncestry = defaultMaxAncestry
	}
	if o.States.Default == nil {
		o.States = DefaultLevelStates()
	}
	return o
}

// BuildDepth is the level budget handed to the builder.
func (o Options) BuildDepth() int {
	if o.MaxLevel <= 0 {
		return math.MaxInt
	}
	return o.MaxLevel
}

// ShowsManufacturers reports whether categoryID groups its products by manufacturer.
func (o Options) ShowsManufacturers(categoryID int64) bool {
	if o.ManufacturerAll {
		return true
	}
	for _, id := range o.ManufacturerCats {
		if id == categoryID {
			return true
		}
	}
	return false
}

// expands reports whether the expand-all threshold opens a node on the
// given 1-based level.
func (o Options) expands(level int) bool {
	return o.ExpandAll > 0 || (o.ExpandAll < 0 && -o.ExpandAll >= level)
}

// LevelStates is the per-level allow-list of item states a menu renders.
type LevelStates struct {
	Default domain.StateSet
	Levels  map[int]domain.StateSet
}

// DefaultLevelStates enables CUR, ACT and IFSUB on every level.
func DefaultLevelStates() LevelStates {
	return LevelStates{
		Default: domain.NewStateSet(domain.StateCur, domain.StateAct, domain.StateIfSub, domain.StateNo),
	}
}

// ForDepth returns the allow-list of the given 0-based depth.
func (l LevelStates) ForDepth(depth int) domain.StateSet {
	if set, ok := l.Levels[depth]; ok {
		return set
	}
	return l.Default
}

func levelStatesFromConfig(cfg config.StatesConfig) (LevelStates, error) {
	if len(cfg.Default) == 0 && len(cfg.Levels) == 0 {
		return DefaultLevelStates(), nil
	}

	states := DefaultLevelStates()
	if len(cfg.Default) > 0 {
		set, err := domain.ParseStateSet(cfg.Default)
		if err != nil {
			return LevelStates{}, fmt.Errorf("invalid default states: %w", err)
		}
		states.Default = set
	}

	for _, level := range cfg.Levels {
		set, err := domain.ParseStateSet(level.States)
		if err != nil {
			return LevelStates{}, fmt.Errorf("invalid states for level %d: %w", level.Depth, err)
		}
		if states.Levels == nil {
			states.Levels = make(map[int]domain.StateSet)
		}
		states.Levels[level.Depth] = set
	}

	return states, nil
}
