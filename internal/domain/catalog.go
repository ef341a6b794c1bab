package domain

// Table names a catalog entity table.
type Table string

const (
	TableCategories Table = "categories"
	TableProducts   Table = "products"
)

func (t Table) String() string {
	return string(t)
}

// RelationKind names a parent/child relation table.
type RelationKind string

const (
	// RelationCategoryParent links a category (child) to its parent category.
	RelationCategoryParent RelationKind = "category_parent"
	// RelationProductCategory links a product (child) to a category.
	RelationProductCategory RelationKind = "product_category"
)

func (k RelationKind) String() string {
	return string(k)
}

// Valid reports whether k is one of the known relation kinds.
func (k RelationKind) Valid() bool {
	return k == RelationCategoryParent || k == RelationProductCategory
}

// ChildTable is the entity table the child side of a relation points at.
func (k RelationKind) ChildTable() Table {
	if k == RelationProductCategory {
		return TableProducts
	}
	return TableCategories
}

// DataRow is a single category or product record with the locale overlay
// already applied.
type DataRow struct {
	ID                int64             `json:"uid"`
	PID               int64             `json:"pid"`
	Title             string            `json:"title"`
	NavTitle          string            `json:"navtitle"`
	Hidden            bool              `json:"hidden"`
	Deleted           bool              `json:"deleted"`
	ManufacturerID    int64             `json:"manufacturer_uid,omitempty"`
	ManufacturerTitle string            `json:"manufacturer_title,omitempty"`
	Fields            map[string]string `json:"fields,omitempty"`
}

// RelationRow is one row of a relation table. ChildID is the local side,
// ParentID the foreign side.
type RelationRow struct {
	ChildID  int64 `json:"uid_local"`
	ParentID int64 `json:"uid_foreign"`
	Sorting  int   `json:"sorting"`
}

// SortSpec orders child relations by a column of the child table.
type SortSpec struct {
	Field      string `json:"field"`
	Descending bool   `json:"descending,omitempty"`
}

// DefaultSort orders by the backing store's sort key, ascending.
var DefaultSort = SortSpec{Field: "sorting"}
