package repository

import (
	"context"
	"errors"
	"testing"

	"commerce/navigation/internal/config"
	"commerce/navigation/internal/domain"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testTables() config.TablesConfig {
	return config.TablesConfig{
		Categories:        "tx_commerce_categories",
		Products:          "tx_commerce_products",
		Manufacturers:     "tx_commerce_manufacturer",
		CategoryRelations: "tx_commerce_categories_parent_category_mm",
		ProductRelations:  "tx_commerce_products_categories_mm",
	}
}

func TestLookupQuery(t *testing.T) {
	r := &postgresCatalog{tables: testTables(), additionalFields: []string{"badge"}}

	query, err := r.lookupQuery(domain.TableProducts)
	require.NoError(t, err)
	assert.Contains(t, query, `FROM "tx_commerce_products" t`)
	assert.Contains(t, query, `LEFT JOIN "tx_commerce_manufacturer" m`)
	assert.Contains(t, query, "COALESCE(t.manufacturer_uid, 0)")
	assert.Contains(t, query, `COALESCE(o."badge", t."badge", '')::text`)

	query, err = r.lookupQuery(domain.TableCategories)
	require.NoError(t, err)
	assert.NotContains(t, query, "manufacturer")

	_, err = r.lookupQuery(domain.Table("pages"))
	assert.ErrorIs(t, err, ErrInvalidRelation)
}

func TestRelationTables(t *testing.T) {
	r := &postgresCatalog{tables: testTables()}

	mm, child, err := r.relationTables(domain.RelationProductCategory)
	require.NoError(t, err)
	assert.Equal(t, `"tx_commerce_products_categories_mm"`, mm)
	assert.Equal(t, `"tx_commerce_products"`, child)

	_, _, err = r.relationTables(domain.RelationKind("tags"))
	assert.ErrorIs(t, err, ErrInvalidRelation)
}

func TestInvalidInputSkipsDatabase(t *testing.T) {
	r := &postgresCatalog{tables: testTables()}
	ctx := context.Background()

	row, err := r.Lookup(ctx, 0, domain.TableCategories, "")
	require.NoError(t, err)
	assert.Nil(t, row)

	_, err = r.ChildrenOf(ctx, 5, domain.RelationKind("tags"), domain.DefaultSort)
	assert.ErrorIs(t, err, ErrInvalidRelation)

	_, err = r.ParentsOf(ctx, 5, domain.RelationKind("tags"))
	assert.ErrorIs(t, err, ErrInvalidRelation)
}

func TestMapError(t *testing.T) {
	missing := &pgconn.PgError{Code: pgUndefinedTable, Message: `relation "x" does not exist`}
	assert.ErrorIs(t, mapError(missing), ErrInvalidRelation)

	other := &pgconn.PgError{Code: "23505"}
	assert.Same(t, other, mapError(other))

	plain := errors.New("connection reset")
	assert.Equal(t, plain, mapError(plain))
}
