package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"commerce/navigation/internal/config"
	"commerce/navigation/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// pgUndefinedTable is the SQLSTATE postgres reports for a missing table.
const pgUndefinedTable = "42P01"

// sortFields are the child table columns relations may be ordered by.
var sortFields = map[string]struct{}{
	"sorting": {},
	"title":   {},
	"uid":     {},
	"crdate":  {},
	"tstamp":  {},
}

type postgresCatalog struct {
	db               *pgxpool.Pool
	tables           config.TablesConfig
	additionalFields []string
}

// NewPostgresCatalog returns a Catalog reading the commerce tables through db.
// additionalFields are extra columns copied into DataRow.Fields.
func NewPostgresCatalog(db *pgxpool.Pool, tables config.TablesConfig, additionalFields []string) Catalog {
	return &postgresCatalog{
		db:               db,
		tables:           tables,
		additionalFields: additionalFields,
	}
}

func (r *postgresCatalog) Lookup(ctx context.Context, id int64, table domain.Table, lang string) (*domain.DataRow, error) {
	if id <= 0 {
		return nil, nil
	}

	query, err := r.lookupQuery(table)
	if err != nil {
		return nil, err
	}

	row := &domain.DataRow{}
	var manufacturerTitle string
	extras := make([]string, len(r.additionalFields))

	dest := []any{&row.ID, &row.PID, &row.Title, &row.NavTitle, &row.Hidden, &row.Deleted, &row.ManufacturerID, &manufacturerTitle}
	for i := range extras {
		dest = append(dest, &extras[i])
	}

	err = r.db.QueryRow(ctx, query, id, lang).Scan(dest...)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to look up %s row %d: %w", table, id, mapError(err))
	}

	row.ManufacturerTitle = manufacturerTitle
	if len(extras) > 0 {
		row.Fields = make(map[string]string, len(extras))
		for i, field := range r.additionalFields {
			row.Fields[field] = extras[i]
		}
	}

	return row, nil
}

func (r *postgresCatalog) lookupQuery(table domain.Table) (string, error) {
	var name string
	switch table {
	case domain.TableCategories:
		name = r.tables.Categories
	case domain.TableProducts:
		name = r.tables.Products
	default:
		return "", fmt.Errorf("unknown table %q: %w", table, ErrInvalidRelation)
	}
	t := ident(name)

	manufacturer := "0::bigint, ''::text"
	join := ""
	if table == domain.TableProducts {
		manufacturer = "COALESCE(t.manufacturer_uid, 0), COALESCE(m.title, '')"
		join = fmt.Sprintf(" LEFT JOIN %s m ON m.uid = t.manufacturer_uid", ident(r.tables.Manufacturers))
	}

	var extra strings.Builder
	for _, field := range r.additionalFields {
		col := ident(field)
		fmt.Fprintf(&extra, ", COALESCE(o.%s, t.%s, '')::text", col, col)
	}

	query := fmt.Sprintf(`
	SELECT t.uid, t.pid, COALESCE(o.title, t.title), COALESCE(o.navtitle, t.navtitle, ''),
		t.hidden, t.deleted, %s%s
	FROM %s t
	LEFT JOIN %s o ON o.l18n_parent = t.uid AND o.language = $2 AND $2 <> '' AND o.deleted = false%s
	WHERE t.uid = $1`, manufacturer, extra.String(), t, t, join)

	return query, nil
}

func (r *postgresCatalog) ChildrenOf(ctx context.Context, parentID int64, kind domain.RelationKind, sort domain.SortSpec) ([]domain.RelationRow, error) {
	mm, child, err := r.relationTables(kind)
	if err != nil {
		return nil, err
	}

	field := sort.Field
	if _, ok := sortFields[field]; !ok {
		field = domain.DefaultSort.Field
	}
	direction := "ASC"
	if sort.Descending {
		direction = "DESC"
	}

	query := fmt.Sprintf(`
	SELECT mm.uid_local, mm.uid_foreign, mm.sorting
	FROM %s mm
	JOIN %s t ON t.uid = mm.uid_local
	WHERE t.deleted = false AND mm.uid_local <> 0 AND mm.uid_foreign = $1
	ORDER BY t.%s %s, mm.sorting ASC`, mm, child, ident(field), direction)

	return r.queryRelations(ctx, query, parentID, kind)
}

func (r *postgresCatalog) ParentsOf(ctx context.Context, childID int64, kind domain.RelationKind) ([]domain.RelationRow, error) {
	mm, _, err := r.relationTables(kind)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`
	SELECT uid_local, uid_foreign, sorting
	FROM %s
	WHERE uid_local = $1
	ORDER BY sorting ASC, uid_foreign ASC`, mm)

	return r.queryRelations(ctx, query, childID, kind)
}

func (r *postgresCatalog) queryRelations(ctx context.Context, query string, id int64, kind domain.RelationKind) ([]domain.RelationRow, error) {
	rows, err := r.db.Query(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s relations of %d: %w", kind, id, mapError(err))
	}

	relations, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.RelationRow, error) {
		var rel domain.RelationRow
		err := row.Scan(&rel.ChildID, &rel.ParentID, &rel.Sorting)
		return rel, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read %s relations of %d: %w", kind, id, mapError(err))
	}

	return relations, nil
}

func (r *postgresCatalog) HasDescendantProducts(ctx context.Context, categoryID int64) (bool, error) {
	query := fmt.Sprintf(`
	WITH RECURSIVE subtree(uid) AS (
		SELECT $1::bigint
		UNION
		SELECT mm.uid_local FROM %s mm JOIN subtree s ON mm.uid_foreign = s.uid
	)
	SELECT EXISTS (
		SELECT 1 FROM %s pm
		JOIN %s p ON p.uid = pm.uid_local
		WHERE p.deleted = false AND pm.uid_foreign IN (SELECT uid FROM subtree)
	)`, ident(r.tables.CategoryRelations), ident(r.tables.ProductRelations), ident(r.tables.Products))

	var exists bool
	if err := r.db.QueryRow(ctx, query, categoryID).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check products below category %d: %w", categoryID, mapError(err))
	}

	return exists, nil
}

func (r *postgresCatalog) relationTables(kind domain.RelationKind) (mm string, child string, err error) {
	switch kind {
	case domain.RelationCategoryParent:
		return ident(r.tables.CategoryRelations), ident(r.tables.Categories), nil
	case domain.RelationProductCategory:
		return ident(r.tables.ProductRelations), ident(r.tables.Products), nil
	default:
		return "", "", fmt.Errorf("unknown relation kind %q: %w", kind, ErrInvalidRelation)
	}
}

func ident(name string) string {
	return pgx.Identifier{name}.Sanitize()
}

// mapError translates postgres errors into repository sentinels.
func mapError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUndefinedTable {
		return fmt.Errorf("%s: %w", pgErr.Message, ErrInvalidRelation)
	}
	return err
}
