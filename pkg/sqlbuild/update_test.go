package sqlbuild

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/dbkit/pkg/core"
)

func TestBuildUpdate(t *testing.T) {
	tests := []struct {
		name     string
		input    UpdateInput
		wantSQL  string
		wantArgs []any
		wantErr  string
	}{
		{
			name: "set and where postgres",
			input: UpdateInput{
				Vendor: core.PostgreSQL,
				Table:  "users",
				Data:   core.Row{"name": "ada", "email": "ada@example.com"},
				Where: []core.WhereCondition{
					{Column: "id", Operator: core.OpEq, Value: 7},
				},
			},
			wantSQL:  `UPDATE "users" SET "email" = $1, "name" = $2 WHERE "id" = $3`,
			wantArgs: []any{"ada@example.com", "ada", 7},
		},
		{
			name: "mysql placeholders",
			input: UpdateInput{
				Vendor: core.MySQL,
				Table:  "users",
				Data:   core.Row{"status": "archived"},
				Where: []core.WhereCondition{
					{Column: "last_seen", Operator: core.OpLt, Value: "2024-01-01"},
				},
			},
			wantSQL:  "UPDATE `users` SET `status` = ? WHERE `last_seen` < ?",
			wantArgs: []any{"archived", "2024-01-01"},
		},
		{
			name: "optimistic lock appended as equality",
			input: UpdateInput{
				Vendor: core.PostgreSQL,
				Table:  "documents",
				Data:   core.Row{"body": "v2"},
				Where: []core.WhereCondition{
					{Column: "id", Operator: core.OpEq, Value: 1},
				},
				OptimisticLock: &OptimisticLock{Column: "version", Version: 4},
			},
			wantSQL:  `UPDATE "documents" SET "body" = $1 WHERE "id" = $2 AND "version" = $3`,
			wantArgs: []any{"v2", 1, 4},
		},
		{
			name: "returning postgres",
			input: UpdateInput{
				Vendor: core.PostgreSQL,
				Table:  "users",
				Data:   core.Row{"name": "ada"},
				Where: []core.WhereCondition{
					{Column: "id", Operator: core.OpEq, Value: 1},
				},
				Returning: []string{"updated_at"},
			},
			wantSQL:  `UPDATE "users" SET "name" = $1 WHERE "id" = $2 RETURNING "updated_at"`,
			wantArgs: []any{"ada", 1},
		},
		{
			name: "no data rejected",
			input: UpdateInput{
				Vendor: core.PostgreSQL,
				Table:  "users",
				Where: []core.WhereCondition{
					{Column: "id", Operator: core.OpEq, Value: 1},
				},
			},
			wantErr: "at least one column",
		},
		{
			name: "no where rejected",
			input: UpdateInput{
				Vendor: core.PostgreSQL,
				Table:  "users",
				Data:   core.Row{"name": "ada"},
			},
			wantErr: "at least one condition",
		},
		{
			name: "returning rejected for mysql",
			input: UpdateInput{
				Vendor: core.MySQL,
				Table:  "users",
				Data:   core.Row{"name": "ada"},
				Where: []core.WhereCondition{
					{Column: "id", Operator: core.OpEq, Value: 1},
				},
				Returning: []string{"id"},
			},
			wantErr: "does not support RETURNING",
		},
		{
			name: "bad lock column rejected",
			input: UpdateInput{
				Vendor: core.PostgreSQL,
				Table:  "users",
				Data:   core.Row{"name": "ada"},
				Where: []core.WhereCondition{
					{Column: "id", Operator: core.OpEq, Value: 1},
				},
				OptimisticLock: &OptimisticLock{Column: "ver sion", Version: 1},
			},
			wantErr: "invalid identifier",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := BuildUpdate(tt.input)
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

func TestBuildUpdateDoesNotMutateWhere(t *testing.T) {
	where := []core.WhereCondition{
		{Column: "id", Operator: core.OpEq, Value: 1},
	}
	_, err := BuildUpdate(UpdateInput{
		Vendor:         core.PostgreSQL,
		Table:          "users",
		Data:           core.Row{"name": "ada"},
		Where:          where,
		OptimisticLock: &OptimisticLock{Column: "version", Version: 2},
	})
	require.NoError(t, err)
	assert.Len(t, where, 1)
}
