package schema

import (
	"context"

	"github.com/leapstack-labs/dbkit/pkg/core"
)

// The five PostgreSQL catalog queries. User schemas only; the pg_catalog
// and information_schema namespaces are never part of a snapshot.
const (
	pgTablesQuery = `
		SELECT table_schema, table_name
		FROM information_schema.tables
		WHERE table_type = 'BASE TABLE'
		  AND table_schema NOT IN ('pg_catalog', 'information_schema')
		ORDER BY table_schema, table_name`

	pgColumnsQuery = `
		SELECT table_schema, table_name, column_name, data_type,
		       is_nullable, column_default, ordinal_position
		FROM information_schema.columns
		WHERE table_schema NOT IN ('pg_catalog', 'information_schema')
		ORDER BY table_schema, table_name, ordinal_position`

	pgPrimaryKeysQuery = `
		SELECT tc.table_schema, tc.table_name, tc.constraint_name,
		       kcu.column_name, kcu.ordinal_position
		FROM information_schema.table_constraints tc
		JOIN information_schema.key_column_usage kcu
		  ON kcu.constraint_schema = tc.constraint_schema
		 AND kcu.constraint_name = tc.constraint_name
		WHERE tc.constraint_type = 'PRIMARY KEY'
		  AND tc.table_schema NOT IN ('pg_catalog', 'information_schema')
		ORDER BY tc.table_schema, tc.table_name, kcu.ordinal_position`

	pgForeignKeysQuery = `
		SELECT tc.table_schema, tc.table_name, tc.constraint_name,
		       kcu.column_name, ccu.table_schema AS referenced_schema,
		       ccu.table_name AS referenced_table, ccu.column_name AS referenced_column,
		       rc.delete_rule, rc.update_rule, kcu.ordinal_position
		FROM information_schema.table_constraints tc
		JOIN information_schema.key_column_usage kcu
		  ON kcu.constraint_schema = tc.constraint_schema
		 AND kcu.constraint_name = tc.constraint_name
		JOIN information_schema.constraint_column_usage ccu
		  ON ccu.constraint_schema = tc.constraint_schema
		 AND ccu.constraint_name = tc.constraint_name
		JOIN information_schema.referential_constraints rc
		  ON rc.constraint_schema = tc.constraint_schema
		 AND rc.constraint_name = tc.constraint_name
		WHERE tc.constraint_type = 'FOREIGN KEY'
		ORDER BY tc.table_schema, tc.table_name, tc.constraint_name, kcu.ordinal_position`

	pgIndexesQuery = `
		SELECT n.nspname AS table_schema, t.relname AS table_name,
		       i.relname AS index_name, ix.indisunique AS is_unique,
		       a.attname AS column_name
		FROM pg_index ix
		JOIN pg_class t ON t.oid = ix.indrelid
		JOIN pg_class i ON i.oid = ix.indexrelid
		JOIN pg_namespace n ON n.oid = t.relnamespace
		JOIN pg_attribute a ON a.attrelid = t.oid AND a.attnum = ANY(ix.indkey)
		WHERE NOT ix.indisprimary
		  AND n.nspname NOT IN ('pg_catalog', 'information_schema')
		ORDER BY n.nspname, t.relname, i.relname, a.attnum`
)

func (i *Inspector) loadPostgres(ctx context.Context) (*catalogData, error) {
	raw := newCatalogData()

	tables, err := i.mgr.Execute(ctx, &core.BuiltQuery{SQL: pgTablesQuery, Vendor: core.PostgreSQL})
	if err != nil {
		return nil, err
	}
	for _, row := range tables.Rows {
		raw.tables = append(raw.tables, tableRef{schema: str(row, "table_schema"), name: str(row, "table_name")})
	}

	columns, err := i.mgr.Execute(ctx, &core.BuiltQuery{SQL: pgColumnsQuery, Vendor: core.PostgreSQL})
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

	pks, err := i.mgr.Execute(ctx, &core.BuiltQuery{SQL: pgPrimaryKeysQuery, Vendor: core.PostgreSQL})
	if err != nil {
		return nil, err
	}
	collectPrimaryKeys(raw, pks.Rows)

	fks, err := i.mgr.Execute(ctx, &core.BuiltQuery{SQL: pgForeignKeysQuery, Vendor: core.PostgreSQL})
	if err != nil {
		return nil, err
	}
	collectForeignKeys(raw, fks.Rows)

	indexes, err := i.mgr.Execute(ctx, &core.BuiltQuery{SQL: pgIndexesQuery, Vendor: core.PostgreSQL})
	if err != nil {
		return nil, err
	}
	for _, row := range indexes.Rows {
		key := tableKey{schema: str(row, "table_schema"), name: str(row, "table_name")}
		addIndexColumn(raw, key, str(row, "index_name"), str(row, "column_name"), isTruthy(row["is_unique"]))
	}

	return raw, nil
}

// collectPrimaryKeys folds ordered PK rows into one PrimaryKey per table.
func collectPrimaryKeys(raw *catalogData, rows []core.Row) {
	for _, row := range rows {
		key := tableKey{schema: str(row, "table_schema"), name: str(row, "table_name")}
		pk := raw.pks[key]
		if pk == nil {
			pk = &core.PrimaryKey{Name: str(row, "constraint_name")}
			raw.pks[key] = pk
		}
		pk.Columns = append(pk.Columns, str(row, "column_name"))
	}
}

// collectForeignKeys folds ordered FK rows into one ForeignKey per
// constraint name.
func collectForeignKeys(raw *catalogData, rows []core.Row) {
	for _, row := range rows {
		key := tableKey{schema: str(row, "table_schema"), name: str(row, "table_name")}
		name := str(row, "constraint_name")

		fks := raw.fks[key]
		var fk *core.ForeignKey
		for idx := range fks {
			if fks[idx].Name == name {
				fk = &fks[idx]
				break
			}
		}
		if fk == nil {
			raw.fks[key] = append(fks, core.ForeignKey{
				Name:             name,
				ReferencedSchema: str(row, "referenced_schema"),
				ReferencedTable:  str(row, "referenced_table"),
				OnDelete:         str(row, "delete_rule"),
				OnUpdate:         str(row, "update_rule"),
			})
			fk = &raw.fks[key][len(raw.fks[key])-1]
		}
		fk.Columns = append(fk.Columns, str(row, "column_name"))
		fk.ReferencedColumns = append(fk.ReferencedColumns, str(row, "referenced_column"))
	}
}

// addIndexColumn appends a column to an index, creating the index entry
// on first sight.
func addIndexColumn(raw *catalogData, key tableKey, indexName, column string, unique bool) {
	indexes := raw.indexes[key]
	for idx := range indexes {
		if indexes[idx].Name == indexName {
			indexes[idx].Columns = append(indexes[idx].Columns, column)
			return
		}
	}
	raw.indexes[key] = append(indexes, core.Index{Name: indexName, Columns: []string{column}, Unique: unique})
}

// isTruthy interprets the boolean-ish values drivers return for flag
// columns (bool, int64, "t"/"true"/"1").
func isTruthy(v any) bool {
	switch b := v.(type) {
	case bool:
		return b
	case int64:
		return b != 0
	case string:
		return b == "t" || b == "true" || b == "1" || b == "YES"
	case []byte:
		return isTruthy(string(b))
	default:
		return false
	}
}
