// Package config loads dbkit configuration: named connection profiles
// from dbkit.yaml, environment overrides, and CLI flags.
package config

import (
	"fmt"
	"time"

	"github.com/leapstack-labs/dbkit/pkg/conn"
	"github.com/leapstack-labs/dbkit/pkg/core"
)

// Config is the resolved CLI configuration.
type Config struct {
	// DefaultConnection names the profile used when --conn is not given.
	DefaultConnection string `koanf:"default_connection"`

	Connections map[string]Profile `koanf:"connections"`

	// SchemaCacheTTL bounds how long inspected schemas are cached.
	SchemaCacheTTL time.Duration `koanf:"schema_cache_ttl"`

	// MigrationsDir is where the migrate command looks for SQL files.
	MigrationsDir string `koanf:"migrations_dir"`

	Verbose bool `koanf:"verbose"`
}

// Profile is one named connection in the config file. The vendor decides
// which of the remaining fields apply.
type Profile struct {
	Vendor string `koanf:"vendor"`

	// PostgreSQL: either a full connection string or discrete fields.
	ConnString string `koanf:"conn_string"`

	// SQLite: file path or :memory:.
	URL string `koanf:"url"`

	// Network vendors.
	Host     string `koanf:"host"`
	Port     int    `koanf:"port"`
	Database string `koanf:"database"`
	User     string `koanf:"user"`
	Password string `koanf:"password"`
	SSLMode  string `koanf:"sslmode"` // postgres
	TLS      string `koanf:"tls"`     // mysql

	ConnectTimeout time.Duration `koanf:"connect_timeout"`

	Pool PoolProfile `koanf:"pool"`
}

// PoolProfile tunes pool sizing for one profile.
type PoolProfile struct {
	MaxOpenConns    int           `koanf:"max_open_conns"`
	MaxIdleConns    int           `koanf:"max_idle_conns"`
	ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `koanf:"conn_max_idle_time"`
}

// ConnConfig converts a profile into the typed connection configuration,
// enforcing the vendor/payload shape at this boundary.
func (p Profile) ConnConfig() (conn.Config, error) {
	vendor, err := core.ParseVendor(p.Vendor)
	if err != nil {
		return conn.Config{}, err
	}

	cfg := conn.Config{
		Vendor: vendor,
		Pool: conn.PoolConfig{
			MaxOpenConns:    p.Pool.MaxOpenConns,
			MaxIdleConns:    p.Pool.MaxIdleConns,
			ConnMaxLifetime: p.Pool.ConnMaxLifetime,
			ConnMaxIdleTime: p.Pool.ConnMaxIdleTime,
		},
	}

	switch vendor {
	case core.PostgreSQL:
		cfg.Postgres = &conn.PostgresConfig{
			ConnString:     p.ConnString,
			Host:           p.Host,
			Port:           p.Port,
			Database:       p.Database,
			User:           p.User,
			Password:       p.Password,
			SSLMode:        p.SSLMode,
			ConnectTimeout: p.ConnectTimeout,
		}
	case core.MySQL:
		cfg.MySQL = &conn.MySQLConfig{
			Host:           p.Host,
			Port:           p.Port,
			Database:       p.Database,
			User:           p.User,
			Password:       p.Password,
			TLS:            p.TLS,
			ConnectTimeout: p.ConnectTimeout,
		}
	case core.SQLite:
		cfg.SQLite = &conn.SQLiteConfig{URL: p.URL}
	}

	if err := cfg.Validate(); err != nil {
		return conn.Config{}, fmt.Errorf("profile %q: %w", p.Vendor, err)
	}
	return cfg, nil
}

// Resolve returns the profile for name, falling back to the default
// connection when name is empty.
func (c *Config) Resolve(name string) (Profile, error) {
	if name == "" {
		name = c.DefaultConnection
	}
	if name == "" {
		if len(c.Connections) == 1 {
			for _, p := range c.Connections {
				return p, nil
			}
		}
		return Profile{}, fmt.Errorf("no connection named; set default_connection or pass --conn")
	}
	p, ok := c.Connections[name]
	if !ok {
		return Profile{}, fmt.Errorf("unknown connection %q", name)
	}
	return p, nil
}
