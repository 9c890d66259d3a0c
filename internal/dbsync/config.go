package dbsync

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Supported drivers.
const (
	DriverMySQL    = "mysql"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Drivers lists the supported driver names.
var Drivers = []string{DriverMySQL, DriverPostgres, DriverSQLite}

// ConnConfig describes how to reach the target database. It is a value
// type: copy it and override fields to target another server or database.
type ConnConfig struct {
	Driver   string
	Host     string
	Port     int
	User     string
	Password string
	Database string
	Charset  string

	// DataDir holds one file per database for the sqlite driver.
	DataDir string
}

// DefaultConnConfig mirrors the settings the tool ships with.
func DefaultConnConfig() ConnConfig {
	return ConnConfig{
		Driver:   DriverMySQL,
		Host:     "127.0.0.1",
		Port:     3306,
		User:     "root",
		Password: "0000",
		Database: "soloDB",
		Charset:  "utf8",
		DataDir:  "data",
	}
}

// WithDatabase returns a copy of c targeting another database.
func (c ConnConfig) WithDatabase(name string) ConnConfig {
	c.Database = name
	return c
}

// Addr returns host:port.
func (c ConnConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// SQLitePath returns the database file used by the sqlite driver.
func (c ConnConfig) SQLitePath() string {
	return filepath.Join(c.DataDir, c.Database+".db")
}

// Validate checks the fields required by the configured driver.
func (c ConnConfig) Validate() error {
	var errs []string
	switch c.Driver {
	case DriverMySQL, DriverPostgres:
		if c.Host == "" {
			errs = append(errs, "host is required")
		}
		if c.Port <= 0 || c.Port > 65535 {
			errs = append(errs, fmt.Sprintf("port %d out of range", c.Port))
		}
		if c.User == "" {
			errs = append(errs, "user is required")
		}
	case DriverSQLite:
		if c.DataDir == "" {
			errs = append(errs, "data dir is required")
		}
	default:
		errs = append(errs, fmt.Sprintf("unsupported driver %q", c.Driver))
	}
	if c.Database == "" {
		errs = append(errs, "database is required")
	}
	if len(errs) > 0 {
		return fmt.Errorf("connection config: %s", strings.Join(errs, "; "))
	}
	return nil
}

// String returns a representation safe for logs.
func (c ConnConfig) String() string {
	pw := ""
	if c.Password != "" {
		pw = "****"
	}
	if c.Driver == DriverSQLite {
		return fmt.Sprintf("%s(%s)", c.Driver, c.SQLitePath())
	}
	return fmt.Sprintf("%s://%s:%s@%s/%s", c.Driver, c.User, pw, c.Addr(), c.Database)
}
