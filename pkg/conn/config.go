package conn

import (
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/leapstack-labs/dbkit/pkg/core"
)

// PostgresConfig configures a PostgreSQL connection. When ConnString is
// set it is used verbatim and the discrete fields are ignored.
type PostgresConfig struct {
	ConnString string

	Host           string
	Port           int
	Database       string
	User           string
	Password       string
	SSLMode        string // disable, require, verify-ca, verify-full
	ConnectTimeout time.Duration
}

// MySQLConfig configures a MySQL connection. The driver connects via a
// DSN string assembled by go-sql-driver's own formatter, per MySQL
// driver convention.
type MySQLConfig struct {
	Host           string
	Port           int
	Database       string
	User           string
	Password       string
	TLS            string // e.g. "true", "skip-verify", or a registered config name
	ConnectTimeout time.Duration
}

// SQLiteConfig configures a SQLite database. URL is a file path or
// ":memory:".
type SQLiteConfig struct {
	URL string
}

// PoolConfig tunes the connection pool shared by all vendors. Zero
// values keep the driver defaults; SQLite is always capped at one open
// connection regardless of MaxOpenConns.
type PoolConfig struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// Config is the discriminated connection configuration: exactly the
// payload matching Vendor must be set. The shape is enforced at manager
// construction, not at use.
type Config struct {
	Vendor   core.Vendor
	Postgres *PostgresConfig
	MySQL    *MySQLConfig
	SQLite   *SQLiteConfig
	Pool     PoolConfig
}

// Validate checks that the payload shape matches the declared vendor.
func (c Config) Validate() error {
	if !c.Vendor.Valid() {
		return fmt.Errorf("unknown vendor %q", string(c.Vendor))
	}

	set := 0
	if c.Postgres != nil {
		set++
	}
	if c.MySQL != nil {
		set++
	}
	if c.SQLite != nil {
		set++
	}
	if set != 1 {
		return fmt.Errorf("exactly one vendor payload must be set, got %d", set)
	}

	switch c.Vendor {
	case core.PostgreSQL:
		if c.Postgres == nil {
			return fmt.Errorf("vendor is postgresql but the postgres payload is missing")
		}
		if c.Postgres.ConnString == "" && c.Postgres.Database == "" {
			return fmt.Errorf("postgres config requires a connection string or a database name")
		}
	case core.MySQL:
		if c.MySQL == nil {
			return fmt.Errorf("vendor is mysql but the mysql payload is missing")
		}
		if c.MySQL.Database == "" {
			return fmt.Errorf("mysql config requires a database name")
		}
	case core.SQLite:
		if c.SQLite == nil {
			return fmt.Errorf("vendor is sqlite but the sqlite payload is missing")
		}
		if c.SQLite.URL == "" {
			return fmt.Errorf("sqlite config requires a url (file path or :memory:)")
		}
	}
	return nil
}

// dsn assembles the driver-specific connection string.
func (c Config) dsn() (string, error) {
	switch c.Vendor {
	case core.PostgreSQL:
		return c.Postgres.dsn(), nil
	case core.MySQL:
		return c.MySQL.dsn()
	case core.SQLite:
		return c.SQLite.dsn(), nil
	default:
		return "", fmt.Errorf("unknown vendor %q", string(c.Vendor))
	}
}

func (p *PostgresConfig) dsn() string {
	if p.ConnString != "" {
		return p.ConnString
	}

	host := p.Host
	if host == "" {
		host = "localhost"
	}
	port := p.Port
	if port == 0 {
		port = 5432
	}
	sslmode := p.SSLMode
	if sslmode == "" {
		sslmode = "disable"
	}

	dsn := fmt.Sprintf("host=%s port=%d dbname=%s sslmode=%s", host, port, p.Database, sslmode)
	if p.User != "" {
		dsn += " user=" + p.User
	}
	if p.Password != "" {
		dsn += " password=" + p.Password
	}
	if p.ConnectTimeout > 0 {
		dsn += fmt.Sprintf(" connect_timeout=%d", int(p.ConnectTimeout.Seconds()))
	}
	return dsn
}

func (m *MySQLConfig) dsn() (string, error) {
	host := m.Host
	if host == "" {
		host = "localhost"
	}
	port := m.Port
	if port == 0 {
		port = 3306
	}

	cfg := mysql.NewConfig()
	cfg.Net = "tcp"
	cfg.Addr = net.JoinHostPort(host, strconv.Itoa(port))
	cfg.DBName = m.Database
	cfg.User = m.User
	cfg.Passwd = m.Password
	cfg.ParseTime = true
	if m.TLS != "" {
		cfg.TLSConfig = m.TLS
	}
	if m.ConnectTimeout > 0 {
		cfg.Timeout = m.ConnectTimeout
	}
	return cfg.FormatDSN(), nil
}

func (s *SQLiteConfig) dsn() string {
	if s.URL == ":memory:" {
		return ":memory:"
	}
	// Foreign keys are opt-in per connection in SQLite; a busy timeout
	// keeps the single-connection pool from failing fast under contention.
	return s.URL + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
}
