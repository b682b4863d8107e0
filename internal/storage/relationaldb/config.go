package relationaldb

import (
	"fmt"
	"net/url"
	"time"
)

// Supported driver names. DriverPostgres and DriverPGX speak to the same
// server through lib/pq and pgx respectively.
const (
	DriverPostgres = "postgres"
	DriverPGX      = "pgx"
	DriverSQLite   = "sqlite"
)

// Config contains database configuration settings
type Config struct {
	// Database connection settings
	Driver           string `json:"driver" yaml:"driver" mapstructure:"driver"`
	ConnectionString string `json:"connection_string" yaml:"connection_string" mapstructure:"connection_string"`
	Host             string `json:"host" yaml:"host" mapstructure:"host"`
	Port             int    `json:"port" yaml:"port" mapstructure:"port"`
	Database         string `json:"database" yaml:"database" mapstructure:"database"`
	Username         string `json:"username" yaml:"username" mapstructure:"username"`
	Password         string `json:"password" yaml:"password" mapstructure:"password"`
	SSLMode          string `json:"ssl_mode" yaml:"ssl_mode" mapstructure:"ssl_mode"`

	// Connection pool settings
	MaxOpenConns    int           `json:"max_open_conns" yaml:"max_open_conns" mapstructure:"max_open_conns"`
	MaxIdleConns    int           `json:"max_idle_conns" yaml:"max_idle_conns" mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `json:"conn_max_lifetime" yaml:"conn_max_lifetime" mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `json:"conn_max_idle_time" yaml:"conn_max_idle_time" mapstructure:"conn_max_idle_time"`

	// DefaultTimeout bounds connection setup and pings. Statement timeouts
	// belong to the caller's context.
	DefaultTimeout time.Duration `json:"default_timeout" yaml:"default_timeout" mapstructure:"default_timeout"`

	// SQLite settings
	EnableWALMode     bool `json:"enable_wal_mode" yaml:"enable_wal_mode" mapstructure:"enable_wal_mode"`
	EnableForeignKeys bool `json:"enable_foreign_keys" yaml:"enable_foreign_keys" mapstructure:"enable_foreign_keys"`
}

// NewConfig creates a new Config with sensible defaults
func NewConfig() *Config {
	return &Config{
		Driver:          DriverPostgres,
		Host:            "localhost",
		Port:            5432,
		Database:        "ledger",
		Username:        "ledger",
		SSLMode:         "prefer",
		MaxOpenConns:    25,
		MaxIdleConns:    5,
		ConnMaxLifetime: time.Hour,
		ConnMaxIdleTime: time.Minute * 15,
		DefaultTimeout:  time.Second * 30,
		EnableWALMode:   true,
	}
}

// PostgresConfig creates a PostgreSQL-specific configuration
func PostgresConfig() *Config {
	config := NewConfig()
	config.Driver = DriverPostgres
	config.Port = 5432
	config.SSLMode = "prefer"
	return config
}

// SQLiteConfig creates a SQLite-specific configuration for the database file
// at dbPath. Statements are prepared on pooled connections next to the one
// holding a transaction, so the pool keeps several connections.
func SQLiteConfig(dbPath string) *Config {
	config := NewConfig()
	config.Driver = DriverSQLite
	config.Database = dbPath
	config.MaxOpenConns = 4
	config.MaxIdleConns = 4
	config.ConnMaxLifetime = 0
	config.ConnMaxIdleTime = 0
	return config
}

// IsPostgres reports whether the driver talks to a PostgreSQL server.
func (c *Config) IsPostgres() bool {
	return c.Driver == DriverPostgres || c.Driver == DriverPGX
}

// Validate checks the configuration for common errors
func (c *Config) Validate() error {
	// Validate driver
	switch c.Driver {
	case "postgres", "postgresql":
		c.Driver = DriverPostgres
	case "pgx":
		c.Driver = DriverPGX
	case "sqlite3", "sqlite":
		c.Driver = DriverSQLite
	default:
		return fmt.Errorf("%w: %s", ErrInvalidDriver, c.Driver)
	}

	// Validate required fields based on driver
	if c.IsPostgres() && c.ConnectionString == "" {
		if c.Host == "" {
			return ErrMissingHost
		}
		if c.Port <= 0 || c.Port > 65535 {
			return ErrInvalidPort
		}
		if c.Database == "" {
			return ErrMissingDatabase
		}
		if c.Username == "" {
			return ErrMissingUsername
		}
		// Validate SSL mode
		switch c.SSLMode {
		case "disable", "allow", "prefer", "require", "verify-ca", "verify-full":
			// Valid SSL modes
		default:
			return fmt.Errorf("invalid SSL mode: %s", c.SSLMode)
		}
	} else if c.Driver == DriverSQLite {
		if c.Database == "" && c.ConnectionString == "" {
			return ErrMissingDatabase
		}
	}

	// Validate connection pool settings
	if c.MaxOpenConns < 0 {
		return ErrInvalidMaxOpenConns
	}
	if c.MaxIdleConns < 0 {
		return ErrInvalidMaxIdleConns
	}
	if c.MaxIdleConns > c.MaxOpenConns && c.MaxOpenConns > 0 {
		return ErrMaxIdleExceedsMaxOpen
	}

	// Validate timeouts
	if c.DefaultTimeout <= 0 {
		return ErrInvalidTimeout
	}
	if c.ConnMaxLifetime < 0 {
		return ErrInvalidConnMaxLifetime
	}
	if c.ConnMaxIdleTime < 0 {
		return ErrInvalidConnMaxIdleTime
	}

	return nil
}

// BuildConnectionString builds a connection string from the config
func (c *Config) BuildConnectionString() (string, error) {
	if c.ConnectionString != "" {
		return c.ConnectionString, nil
	}

	switch c.Driver {
	case DriverPostgres, DriverPGX:
		return c.buildPostgresConnectionString()
	case DriverSQLite:
		return c.buildSQLiteConnectionString()
	default:
		return "", fmt.Errorf("unsupported driver for connection string building: %s", c.Driver)
	}
}

// buildPostgresConnectionString builds a PostgreSQL URL accepted by both
// lib/pq and pgx.
func (c *Config) buildPostgresConnectionString() (string, error) {
	params := url.Values{}
	params.Set("sslmode", c.SSLMode)
	params.Set("connect_timeout", fmt.Sprintf("%d", int(c.DefaultTimeout.Seconds())))
	params.Set("application_name", "ledgerapply")

	u := url.URL{
		Scheme:   "postgres",
		Host:     c.Host,
		Path:     "/" + c.Database,
		RawQuery: params.Encode(),
	}
	if c.Port != 0 && c.Port != 5432 {
		u.Host = fmt.Sprintf("%s:%d", c.Host, c.Port)
	}
	if c.Username != "" {
		if c.Password != "" {
			u.User = url.UserPassword(c.Username, c.Password)
		} else {
			u.User = url.User(c.Username)
		}
	}

	return u.String(), nil
}

// buildSQLiteConnectionString builds a modernc SQLite DSN; pragmas are
// passed as repeated _pragma parameters.
func (c *Config) buildSQLiteConnectionString() (string, error) {
	params := url.Values{}
	if c.EnableWALMode {
		params.Add("_pragma", "journal_mode(WAL)")
	}
	if c.EnableForeignKeys {
		params.Add("_pragma", "foreign_keys(1)")
	}
	params.Add("_pragma", "synchronous(NORMAL)")
	params.Add("_pragma", fmt.Sprintf("busy_timeout(%d)", c.DefaultTimeout.Milliseconds()))

	return "file:" + c.Database + "?" + params.Encode(), nil
}

// Clone creates a deep copy of the configuration
func (c *Config) Clone() *Config {
	clone := *c
	return &clone
}

// WithConnectionString returns a new config with the specified connection string
func (c *Config) WithConnectionString(connStr string) *Config {
	clone := c.Clone()
	clone.ConnectionString = connStr
	return clone
}

// WithDriver returns a new config with the specified driver
func (c *Config) WithDriver(driver string) *Config {
	clone := c.Clone()
	clone.Driver = driver
	return clone
}

// WithDatabase returns a new config with the specified database name
func (c *Config) WithDatabase(database string) *Config {
	clone := c.Clone()
	clone.Database = database
	return clone
}

// WithCredentials returns a new config with the specified credentials
func (c *Config) WithCredentials(username, password string) *Config {
	clone := c.Clone()
	clone.Username = username
	clone.Password = password
	return clone
}

// WithPoolSettings returns a new config with the specified connection pool settings
func (c *Config) WithPoolSettings(maxOpen, maxIdle int, maxLifetime, maxIdleTime time.Duration) *Config {
	clone := c.Clone()
	clone.MaxOpenConns = maxOpen
	clone.MaxIdleConns = maxIdle
	clone.ConnMaxLifetime = maxLifetime
	clone.ConnMaxIdleTime = maxIdleTime
	return clone
}

// String returns a string representation of the config (with password redacted)
func (c *Config) String() string {
	clone := c.Clone()
	if clone.Password != "" {
		clone.Password = "***"
	}

	connStr, _ := clone.BuildConnectionString()
	if clone.ConnectionString != "" {
		connStr = "<explicit>"
	}
	return fmt.Sprintf("Config{Driver: %s, Host: %s, Port: %d, Database: %s, Connection: %s}",
		clone.Driver, clone.Host, clone.Port, clone.Database, connStr)
}
