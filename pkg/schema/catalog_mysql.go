package schema

import (
	"context"

	"github.com/leapstack-labs/dbkit/pkg/core"
)

// The five MySQL catalog queries, scoped to the current database.
const (
	mysqlTablesQuery = `
		SELECT table_schema, table_name
		FROM information_schema.tables
		WHERE table_schema = DATABASE() AND table_type = 'BASE TABLE'
		ORDER BY table_name`

	mysqlColumnsQuery = `
		SELECT table_schema, table_name, column_name, data_type,
		       is_nullable, column_default, ordinal_position
		FROM information_schema.columns
		WHERE table_schema = DATABASE()
		ORDER BY table_name, ordinal_position`

	mysqlPrimaryKeysQuery = `
		SELECT table_schema, table_name, constraint_name, column_name, ordinal_position
		FROM information_schema.key_column_usage
		WHERE table_schema = DATABASE() AND constraint_name = 'PRIMARY'
		ORDER BY table_name, ordinal_position`

	mysqlForeignKeysQuery = `
		SELECT kcu.table_schema, kcu.table_name, kcu.constraint_name,
		       kcu.column_name, kcu.referenced_table_schema AS referenced_schema,
		       kcu.referenced_table_name AS referenced_table,
		       kcu.referenced_column_name AS referenced_column,
		       rc.delete_rule, rc.update_rule, kcu.ordinal_position
		FROM information_schema.key_column_usage kcu
		JOIN information_schema.referential_constraints rc
		  ON rc.constraint_schema = kcu.table_schema
		 AND rc.constraint_name = kcu.constraint_name
		WHERE kcu.table_schema = DATABASE()
		  AND kcu.referenced_table_name IS NOT NULL
		ORDER BY kcu.table_name, kcu.constraint_name, kcu.ordinal_position`

	mysqlIndexesQuery = `
		SELECT table_schema, table_name, index_name, non_unique, column_name, seq_in_index
		FROM information_schema.statistics
		WHERE table_schema = DATABASE() AND index_name <> 'PRIMARY'
		ORDER BY table_name, index_name, seq_in_index`
)

func (i *Inspector) loadMySQL(ctx context.Context) (*catalogData, error) {
	raw := newCatalogData()

	tables, err := i.mgr.Execute(ctx, &core.BuiltQuery{SQL: mysqlTablesQuery, Vendor: core.MySQL})
	if err != nil {
		return nil, err
	}
	for _, row := range tables.Rows {
		raw.tables = append(raw.tables, tableRef{schema: str(row, "table_schema"), name: str(row, "table_name")})
	}

	columns, err := i.mgr.Execute(ctx, &core.BuiltQuery{SQL: mysqlColumnsQuery, Vendor: core.MySQL})
	if err != nil {
		return nil, err
	}
	for _, row := range columns.Rows {
		key := tableKey{schema: str(row, "table_schema"), name: str(row, "table_name")}
		raw.columns[key] = append(raw.columns[key], core.SchemaColumn{
			Name:     str(row, "column_name"),
			Type:     str(row, "data_type"),
			Nullable: str(row, "is_nullable") == "YES",
			Default:  str(row, "column_default"),
			Position: int(num(row, "ordinal_position")),
		})
	}

	pks, err := i.mgr.Execute(ctx, &core.BuiltQuery{SQL: mysqlPrimaryKeysQuery, Vendor: core.MySQL})
	if err != nil {
		return nil, err
	}
	collectPrimaryKeys(raw, pks.Rows)

	fks, err := i.mgr.Execute(ctx, &core.BuiltQuery{SQL: mysqlForeignKeysQuery, Vendor: core.MySQL})
	if err != nil {
		return nil, err
	}
	collectForeignKeys(raw, fks.Rows)

	indexes, err := i.mgr.Execute(ctx, &core.BuiltQuery{SQL: mysqlIndexesQuery, Vendor: core.MySQL})
	if err != nil {
		return nil, err
	}
	for _, row := range indexes.Rows {
		key := tableKey{schema: str(row, "table_schema"), name: str(row, "table_name")}
		// non_unique is 0 for unique indexes.
		addIndexColumn(raw, key, str(row, "index_name"), str(row, "column_name"), num(row, "non_unique") == 0)
	}

	return raw, nil
}
