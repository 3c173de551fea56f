package conn

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/dbkit/pkg/core"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr string
	}{
		{
			name: "valid postgres",
			cfg: Config{
				Vendor:   core.PostgreSQL,
				Postgres: &PostgresConfig{Database: "app"},
			},
		},
		{
			name: "valid postgres conn string",
			cfg: Config{
				Vendor:   core.PostgreSQL,
				Postgres: &PostgresConfig{ConnString: "host=db dbname=app"},
			},
		},
		{
			name: "valid mysql",
			cfg: Config{
				Vendor: core.MySQL,
				MySQL:  &MySQLConfig{Database: "app"},
			},
		},
		{
			name: "valid sqlite",
			cfg: Config{
				Vendor: core.SQLite,
				SQLite: &SQLiteConfig{URL: ":memory:"},
			},
		},
		{
			name:    "unknown vendor",
			cfg:     Config{Vendor: core.Vendor("oracle")},
			wantErr: "unknown vendor",
		},
		{
			name:    "no payload",
			cfg:     Config{Vendor: core.PostgreSQL},
			wantErr: "exactly one vendor payload",
		},
		{
			name: "two payloads",
			cfg: Config{
				Vendor:   core.PostgreSQL,
				Postgres: &PostgresConfig{Database: "app"},
				SQLite:   &SQLiteConfig{URL: ":memory:"},
			},
			wantErr: "exactly one vendor payload",
		},
		{
			name: "payload vendor mismatch",
			cfg: Config{
				Vendor: core.MySQL,
				SQLite: &SQLiteConfig{URL: ":memory:"},
			},
			wantErr: "mysql payload is missing",
		},
		{
			name: "postgres without database",
			cfg: Config{
				Vendor:   core.PostgreSQL,
				Postgres: &PostgresConfig{Host: "db"},
			},
			wantErr: "connection string or a database name",
		},
		{
			name: "mysql without database",
			cfg: Config{
				Vendor: core.MySQL,
				MySQL:  &MySQLConfig{Host: "db"},
			},
			wantErr: "database name",
		},
		{
			name: "sqlite without url",
			cfg: Config{
				Vendor: core.SQLite,
				SQLite: &SQLiteConfig{},
			},
			wantErr: "requires a url",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestPostgresDSN(t *testing.T) {
	tests := []struct {
		name string
		cfg  PostgresConfig
		want string
	}{
		{
			name: "conn string wins",
			cfg:  PostgresConfig{ConnString: "host=prod dbname=app", Host: "ignored"},
			want: "host=prod dbname=app",
		},
		{
			name: "defaults applied",
			cfg:  PostgresConfig{Database: "app"},
			want: "host=localhost port=5432 dbname=app sslmode=disable",
		},
		{
			name: "full discrete config",
			cfg: PostgresConfig{
				Host:           "db.internal",
				Port:           5433,
				Database:       "app",
				User:           "svc",
				Password:       "s3cret",
				SSLMode:        "require",
				ConnectTimeout: 5 * time.Second,
			},
			want: "host=db.internal port=5433 dbname=app sslmode=require user=svc password=s3cret connect_timeout=5",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.cfg.dsn())
		})
	}
}

func TestMySQLDSN(t *testing.T) {
	cfg := MySQLConfig{
		Host:     "db.internal",
		Port:     3307,
		Database: "app",
		User:     "svc",
		Password: "s3cret",
	}
	dsn, err := cfg.dsn()
	require.NoError(t, err)
	assert.Contains(t, dsn, "svc:s3cret@tcp(db.internal:3307)/app")
	assert.Contains(t, dsn, "parseTime=true")
}

func TestMySQLDSNDefaults(t *testing.T) {
	cfg := MySQLConfig{Database: "app"}
	dsn, err := cfg.dsn()
	require.NoError(t, err)
	assert.Contains(t, dsn, "tcp(localhost:3306)/app")
}

func TestSQLiteDSN(t *testing.T) {
	mem := SQLiteConfig{URL: ":memory:"}
	assert.Equal(t, ":memory:", mem.dsn())

	file := SQLiteConfig{URL: "/var/data/app.db"}
	assert.Equal(t, "/var/data/app.db?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)", file.dsn())
}
