package core

// SchemaColumn describes one column of an inspected table.
type SchemaColumn struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Nullable bool   `json:"nullable"`
	Default  string `json:"default,omitempty"`
	Position int    `json:"position"`
}

// PrimaryKey describes a table's primary key constraint.
type PrimaryKey struct {
	Name    string   `json:"name,omitempty"`
	Columns []string `json:"columns"`
}

// ForeignKey describes a referential constraint.
type ForeignKey struct {
	Name              string   `json:"name"`
	Columns           []string `json:"columns"`
	ReferencedSchema  string   `json:"referencedSchema,omitempty"`
	ReferencedTable   string   `json:"referencedTable"`
	ReferencedColumns []string `json:"referencedColumns"`
	OnDelete          string   `json:"onDelete,omitempty"`
	OnUpdate          string   `json:"onUpdate,omitempty"`
}

// Index describes a secondary index.
type Index struct {
	Name    string   `json:"name"`
	Columns []string `json:"columns"`
	Unique  bool     `json:"unique"`
}

// SchemaTable is the normalized description of one table.
type SchemaTable struct {
	Schema      string         `json:"schema,omitempty"`
	Name        string         `json:"name"`
	Columns     []SchemaColumn `json:"columns"`
	PrimaryKey  *PrimaryKey    `json:"primaryKey,omitempty"`
	ForeignKeys []ForeignKey   `json:"foreignKeys,omitempty"`
	Indexes     []Index        `json:"indexes,omitempty"`
}

// SchemaSnapshot is a vendor-tagged, JSON-serializable description of the
// inspected tables at a point in time.
type SchemaSnapshot struct {
	Vendor Vendor        `json:"vendor"`
	Tables []SchemaTable `json:"tables"`
}
