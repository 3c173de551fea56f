package schema

import (
	"context"
	"fmt"

	"github.com/leapstack-labs/dbkit/pkg/core"
	"github.com/leapstack-labs/dbkit/pkg/dialect"
)

// SQLite has no information_schema; one sqlite_master query lists the
// tables and PRAGMA calls fill in the rest per table. Table names fed
// into the PRAGMAs come from sqlite_master itself and are still
// validated and quoted before interpolation.
const sqliteTablesQuery = `
	SELECT name FROM sqlite_master
	WHERE type = 'table' AND name NOT LIKE 'sqlite_%'
	ORDER BY name`

func (i *Inspector) loadSQLite(ctx context.Context) (*catalogData, error) {
	raw := newCatalogData()
	d := i.mgr.Dialect()

	tables, err := i.mgr.Execute(ctx, &core.BuiltQuery{SQL: sqliteTablesQuery, Vendor: core.SQLite})
	if err != nil {
		return nil, err
	}
	for _, row := range tables.Rows {
		name := str(row, "name")
		if err := dialect.ValidateIdentifier(name, "table"); err != nil {
			// Tables with exotic names are skipped rather than failing
			// the whole inspection.
			continue
		}
		raw.tables = append(raw.tables, tableRef{schema: d.DefaultSchema, name: name})
		if err := i.loadSQLiteTable(ctx, raw, name); err != nil {
			return nil, err
		}
	}

	return raw, nil
}

func (i *Inspector) loadSQLiteTable(ctx context.Context, raw *catalogData, table string) error {
	d := i.mgr.Dialect()
	key := tableKey{schema: d.DefaultSchema, name: table}
	quoted := d.QuoteIdentifier(table)

	info, err := i.mgr.Execute(ctx, &core.BuiltQuery{
		SQL: fmt.Sprintf("PRAGMA table_info(%s)", quoted), Vendor: core.SQLite,
	})
	if err != nil {
		return err
	}
	var pkCols []string
	for _, row := range info.Rows {
		raw.columns[key] = append(raw.columns[key], core.SchemaColumn{
			Name:     str(row, "name"),
			Type:     str(row, "type"),
			Nullable: num(row, "notnull") == 0,
			Default:  str(row, "dflt_value"),
			Position: int(num(row, "cid")) + 1,
		})
		if num(row, "pk") > 0 {
			pkCols = append(pkCols, str(row, "name"))
		}
	}
	if len(pkCols) > 0 {
		raw.pks[key] = &core.PrimaryKey{Columns: pkCols}
	}

	fkList, err := i.mgr.Execute(ctx, &core.BuiltQuery{
		SQL: fmt.Sprintf("PRAGMA foreign_key_list(%s)", quoted), Vendor: core.SQLite,
	})
	if err != nil {
		return err
	}
	for _, row := range fkList.Rows {
		fkName := fmt.Sprintf("fk_%s_%d", table, num(row, "id"))
		fks := raw.fks[key]
		var fk *core.ForeignKey
		for idx := range fks {
			if fks[idx].Name == fkName {
				fk = &fks[idx]
				break
			}
		}
		if fk == nil {
			raw.fks[key] = append(fks, core.ForeignKey{
				Name:            fkName,
				ReferencedTable: str(row, "table"),
				OnDelete:        str(row, "on_delete"),
				OnUpdate:        str(row, "on_update"),
			})
			fk = &raw.fks[key][len(raw.fks[key])-1]
		}
		fk.Columns = append(fk.Columns, str(row, "from"))
		fk.ReferencedColumns = append(fk.ReferencedColumns, str(row, "to"))
	}

	idxList, err := i.mgr.Execute(ctx, &core.BuiltQuery{
		SQL: fmt.Sprintf("PRAGMA index_list(%s)", quoted), Vendor: core.SQLite,
	})
	if err != nil {
		return err
	}
	for _, row := range idxList.Rows {
		idxName := str(row, "name")
		if str(row, "origin") == "pk" {
			continue
		}
		if err := dialect.ValidateIdentifier(idxName, "index"); err != nil {
			continue
		}
		idxInfo, err := i.mgr.Execute(ctx, &core.BuiltQuery{
			SQL: fmt.Sprintf("PRAGMA index_info(%s)", d.QuoteIdentifier(idxName)), Vendor: core.SQLite,
		})
		if err != nil {
			return err
		}
		for _, colRow := range idxInfo.Rows {
			addIndexColumn(raw, key, idxName, str(colRow, "name"), num(row, "unique") != 0)
		}
	}

	return nil
}
