package dbsync

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/mattn/go-sqlite3"

	"github.com/JonMunkholm/PreChart2DB/internal/dataset"
)

// Dialect captures what differs between database servers.
type Dialect interface {
	Name() string
	// Open returns a pool for cfg.Database, or for the server without a
	// database selected when withDatabase is false.
	Open(cfg ConnConfig, withDatabase bool) (*sql.DB, error)
	// EnsureDatabase creates cfg.Database if it does not exist.
	EnsureDatabase(ctx context.Context, cfg ConnConfig) error
	Quote(ident string) string
	ColumnType(kind dataset.Kind) string
	IdentityType() string
	Placeholder(n int) string
	MaxParams() int
	IsMissingTable(err error) bool
}

// DialectFor returns the dialect for a driver name.
func DialectFor(driver string) (Dialect, error) {
	switch strings.ToLower(driver) {
	case DriverMySQL, "":
		return mysqlDialect{}, nil
	case DriverPostgres, "postgresql", "pgx":
		return postgresDialect{}, nil
	case DriverSQLite, "sqlite3":
		return sqliteDialect{}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnsupportedDriver, driver)
}

// Shared type names. Only the identity column and datetime differ.
var commonTypes = map[dataset.Kind]string{
	dataset.KindInt:      "BIGINT",
	dataset.KindFloat:    "DOUBLE",
	dataset.KindDatetime: "DATETIME",
	dataset.KindBool:     "BOOLEAN",
	dataset.KindString:   "VARCHAR(255)",
}

func columnType(overrides map[dataset.Kind]string, kind dataset.Kind) string {
	if t, ok := overrides[kind]; ok {
		return t
	}
	if t, ok := commonTypes[kind]; ok {
		return t
	}
	return commonTypes[dataset.KindString]
}

// ----------------------------------------------------------------------------
// MySQL
// ----------------------------------------------------------------------------

type mysqlDialect struct{}

func (mysqlDialect) Name() string { return DriverMySQL }

func (mysqlDialect) Open(cfg ConnConfig, withDatabase bool) (*sql.DB, error) {
	mc := mysql.NewConfig()
	mc.User = cfg.User
	mc.Passwd = cfg.Password
	mc.Net = "tcp"
	mc.Addr = cfg.Addr()
	if withDatabase {
		mc.DBName = cfg.Database
	}
	if cfg.Charset != "" {
		mc.Params = map[string]string{"charset": cfg.Charset}
	}
	mc.ParseTime = true
	mc.Loc = time.UTC
	mc.Timeout = 10 * time.Second

	connector, err := mysql.NewConnector(mc)
	if err != nil {
		return nil, err
	}
	return sql.OpenDB(connector), nil
}

func (d mysqlDialect) EnsureDatabase(ctx context.Context, cfg ConnConfig) error {
	db, err := d.Open(cfg, false)
	if err != nil {
		return err
	}
	defer db.Close()
	_, err = db.ExecContext(ctx, "CREATE DATABASE IF NOT EXISTS "+d.Quote(cfg.Database))
	return err
}

func (mysqlDialect) Quote(ident string) string {
	return "`" + strings.ReplaceAll(ident, "`", "``") + "`"
}

func (mysqlDialect) ColumnType(kind dataset.Kind) string { return columnType(nil, kind) }

func (mysqlDialect) IdentityType() string { return "INT AUTO_INCREMENT PRIMARY KEY" }

func (mysqlDialect) Placeholder(int) string { return "?" }

func (mysqlDialect) MaxParams() int { return 65535 }

func (mysqlDialect) IsMissingTable(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == 1146
}

// ----------------------------------------------------------------------------
// PostgreSQL
// ----------------------------------------------------------------------------

type postgresDialect struct{}

// maintenanceDB is connected to when no database is selected.
const maintenanceDB = "postgres"

func (postgresDialect) Name() string { return DriverPostgres }

func (postgresDialect) Open(cfg ConnConfig, withDatabase bool) (*sql.DB, error) {
	database := maintenanceDB
	if withDatabase {
		database = cfg.Database
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(cfg.User, cfg.Password),
		Host:     cfg.Addr(),
		Path:     "/" + database,
		RawQuery: "sslmode=prefer&connect_timeout=10",
	}
	pc, err := pgx.ParseConfig(u.String())
	if err != nil {
		return nil, err
	}
	return stdlib.OpenDB(*pc), nil
}

func (d postgresDialect) EnsureDatabase(ctx context.Context, cfg ConnConfig) error {
	db, err := d.Open(cfg, false)
	if err != nil {
		return err
	}
	defer db.Close()

	var exists bool
	err = db.QueryRowContext(ctx,
		"SELECT EXISTS (SELECT 1 FROM pg_database WHERE datname = $1)", cfg.Database).Scan(&exists)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	_, err = db.ExecContext(ctx, "CREATE DATABASE "+d.Quote(cfg.Database))
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "42P04" {
		// Created concurrently.
		return nil
	}
	return err
}

func (postgresDialect) Quote(ident string) string {
	return pgx.Identifier{ident}.Sanitize()
}

var postgresTypes = map[dataset.Kind]string{
	dataset.KindFloat:    "DOUBLE PRECISION",
	dataset.KindDatetime: "TIMESTAMP",
}

func (postgresDialect) ColumnType(kind dataset.Kind) string { return columnType(postgresTypes, kind) }

func (postgresDialect) IdentityType() string {
	return "INTEGER GENERATED BY DEFAULT AS IDENTITY PRIMARY KEY"
}

func (postgresDialect) Placeholder(n int) string { return fmt.Sprintf("$%d", n) }

func (postgresDialect) MaxParams() int { return 65535 }

func (postgresDialect) IsMissingTable(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "42P01"
}

// ----------------------------------------------------------------------------
// SQLite
// ----------------------------------------------------------------------------

type sqliteDialect struct{}

func (sqliteDialect) Name() string { return DriverSQLite }

// Open opens the database file read-write. The file must already exist,
// which mirrors selecting a database that was never created.
func (sqliteDialect) Open(cfg ConnConfig, _ bool) (*sql.DB, error) {
	return openSQLite(cfg, "rw")
}

// EnsureDatabase creates the data directory and the database file.
func (sqliteDialect) EnsureDatabase(ctx context.Context, cfg ConnConfig) error {
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return err
	}
	db, err := openSQLite(cfg, "rwc")
	if err != nil {
		return err
	}
	defer db.Close()
	return db.PingContext(ctx)
}

func openSQLite(cfg ConnConfig, mode string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?mode=%s&_loc=UTC", cfg.SQLitePath(), mode))
	if err != nil {
		return nil, err
	}
	// One writer; avoids "database is locked" between pooled connections.
	db.SetMaxOpenConns(1)
	return db, nil
}

func (sqliteDialect) Quote(ident string) string {
	return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"`
}

func (sqliteDialect) ColumnType(kind dataset.Kind) string { return columnType(nil, kind) }

func (sqliteDialect) IdentityType() string { return "INTEGER PRIMARY KEY AUTOINCREMENT" }

func (sqliteDialect) Placeholder(int) string { return "?" }

func (sqliteDialect) MaxParams() int { return 32766 }

func (sqliteDialect) IsMissingTable(err error) bool {
	var se sqlite3.Error
	if errors.As(err, &se) {
		return strings.Contains(se.Error(), "no such table")
	}
	return err != nil && strings.Contains(err.Error(), "no such table")
}
