package sqlbuild

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/dbkit/pkg/core"
)

func TestSanitize(t *testing.T) {
	tests := []struct {
		name     string
		input    core.QueryInput
		wantSQL  string
		wantArgs []any
		wantErr  string
	}{
		{
			name:    "plain select passes",
			input:   core.QueryInput{Vendor: core.PostgreSQL, SQL: "SELECT * FROM users"},
			wantSQL: "SELECT * FROM users",
		},
		{
			name:    "trailing semicolon stripped",
			input:   core.QueryInput{Vendor: core.PostgreSQL, SQL: "SELECT 1;  "},
			wantSQL: "SELECT 1",
		},
		{
			name: "positional args pass through",
			input: core.QueryInput{
				Vendor: core.PostgreSQL,
				SQL:    "SELECT * FROM users WHERE id = $1",
				Args:   []any{7},
			},
			wantSQL:  "SELECT * FROM users WHERE id = $1",
			wantArgs: []any{7},
		},
		{
			name:    "empty statement rejected",
			input:   core.QueryInput{Vendor: core.PostgreSQL, SQL: "   "},
			wantErr: "must not be empty",
		},
		{
			name:    "stacked statements rejected",
			input:   core.QueryInput{Vendor: core.PostgreSQL, SQL: "SELECT 1; DROP TABLE users"},
			wantErr: "multi-statement",
		},
		{
			name:    "semicolon inside string literal allowed",
			input:   core.QueryInput{Vendor: core.PostgreSQL, SQL: "SELECT 'a;b' FROM t"},
			wantSQL: "SELECT 'a;b' FROM t",
		},
		{
			name:    "semicolon inside line comment allowed",
			input:   core.QueryInput{Vendor: core.PostgreSQL, SQL: "SELECT 1 -- trailing; note\nFROM t"},
			wantSQL: "SELECT 1 -- trailing; note\nFROM t",
		},
		{
			name:    "semicolon inside block comment allowed",
			input:   core.QueryInput{Vendor: core.PostgreSQL, SQL: "SELECT /* a;b */ 1"},
			wantSQL: "SELECT /* a;b */ 1",
		},
		{
			name:    "doubled quote escape does not end the literal",
			input:   core.QueryInput{Vendor: core.PostgreSQL, SQL: "SELECT 'it''s; fine'"},
			wantSQL: "SELECT 'it''s; fine'",
		},
		{
			name:    "create rejected",
			input:   core.QueryInput{Vendor: core.PostgreSQL, SQL: "CREATE TABLE t (id INT)"},
			wantErr: "CREATE statements are not allowed",
		},
		{
			name:    "drop rejected case-insensitively",
			input:   core.QueryInput{Vendor: core.PostgreSQL, SQL: "drop table users"},
			wantErr: "DROP statements are not allowed",
		},
		{
			name:    "alter rejected",
			input:   core.QueryInput{Vendor: core.MySQL, SQL: "ALTER TABLE t ADD c INT"},
			wantErr: "ALTER statements are not allowed",
		},
		{
			name:    "truncate rejected",
			input:   core.QueryInput{Vendor: core.PostgreSQL, SQL: "TRUNCATE users"},
			wantErr: "TRUNCATE statements are not allowed",
		},
		{
			name: "mixed positional and named rejected",
			input: core.QueryInput{
				Vendor:    core.PostgreSQL,
				SQL:       "SELECT * FROM users WHERE id = $1 AND name = :name",
				Args:      []any{1},
				NamedArgs: map[string]any{"name": "ada"},
			},
			wantErr: "mutually exclusive",
		},
		{
			name: "named params expanded postgres",
			input: core.QueryInput{
				Vendor:    core.PostgreSQL,
				SQL:       "SELECT * FROM users WHERE name = :name AND age > :age",
				NamedArgs: map[string]any{"name": "ada", "age": 21},
			},
			wantSQL:  "SELECT * FROM users WHERE name = $1 AND age > $2",
			wantArgs: []any{"ada", 21},
		},
		{
			name: "named params expanded mysql",
			input: core.QueryInput{
				Vendor:    core.MySQL,
				SQL:       "SELECT * FROM users WHERE name = :name",
				NamedArgs: map[string]any{"name": "ada"},
			},
			wantSQL:  "SELECT * FROM users WHERE name = ?",
			wantArgs: []any{"ada"},
		},
		{
			name: "repeated named param binds each occurrence",
			input: core.QueryInput{
				Vendor:    core.PostgreSQL,
				SQL:       "SELECT * FROM t WHERE a = :v OR b = :v",
				NamedArgs: map[string]any{"v": 3},
			},
			wantSQL:  "SELECT * FROM t WHERE a = $1 OR b = $2",
			wantArgs: []any{3, 3},
		},
		{
			name: "postgres cast untouched",
			input: core.QueryInput{
				Vendor:    core.PostgreSQL,
				SQL:       "SELECT id::text FROM users WHERE name = :name",
				NamedArgs: map[string]any{"name": "ada"},
			},
			wantSQL:  "SELECT id::text FROM users WHERE name = $1",
			wantArgs: []any{"ada"},
		},
		{
			name: "named marker in string literal untouched",
			input: core.QueryInput{
				Vendor:    core.PostgreSQL,
				SQL:       "SELECT ':name' FROM users WHERE name = :name",
				NamedArgs: map[string]any{"name": "ada"},
			},
			wantSQL:  "SELECT ':name' FROM users WHERE name = $1",
			wantArgs: []any{"ada"},
		},
		{
			// Markers inside comments are neither expanded nor looked up,
			// matching how the single-statement scan treats comments.
			name: "named marker in line comment untouched",
			input: core.QueryInput{
				Vendor:    core.PostgreSQL,
				SQL:       "SELECT * FROM users -- filter by :unbound\nWHERE name = :name",
				NamedArgs: map[string]any{"name": "ada"},
			},
			wantSQL:  "SELECT * FROM users -- filter by :unbound\nWHERE name = $1",
			wantArgs: []any{"ada"},
		},
		{
			name: "named marker in block comment untouched",
			input: core.QueryInput{
				Vendor:    core.PostgreSQL,
				SQL:       "SELECT * FROM users /* :unbound */ WHERE name = :name",
				NamedArgs: map[string]any{"name": "ada"},
			},
			wantSQL:  "SELECT * FROM users /* :unbound */ WHERE name = $1",
			wantArgs: []any{"ada"},
		},
		{
			name: "missing named param rejected",
			input: core.QueryInput{
				Vendor:    core.PostgreSQL,
				SQL:       "SELECT * FROM users WHERE name = :name",
				NamedArgs: map[string]any{"other": 1},
			},
			wantErr: "no value for named parameter :name",
		},
		{
			name:    "unknown vendor rejected",
			input:   core.QueryInput{Vendor: core.Vendor("hana"), SQL: "SELECT 1"},
			wantErr: "unknown vendor",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Sanitize(tt.input)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantSQL, got.SQL)
			assert.Equal(t, tt.wantArgs, got.Args)
		})
	}
}

func TestRawSkipsChecks(t *testing.T) {
	got := Raw(core.SQLite, "CREATE TABLE t (id INTEGER PRIMARY KEY)")
	assert.Equal(t, "CREATE TABLE t (id INTEGER PRIMARY KEY)", got.SQL)
	assert.Equal(t, core.SQLite, got.Vendor)
}
