// Package dbsync writes dataset tables into a relational database.
//
// A Manager derives a table schema from a dataset and either recreates the
// table (Overwrite) or adds the rows that are not already stored (Append).
// Every operation opens its own connection and closes it before returning.
package dbsync

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/JonMunkholm/PreChart2DB/internal/dataset"
	"github.com/JonMunkholm/PreChart2DB/internal/report"
)

var (
	// ErrConnection wraps every failure to reach or select the database.
	ErrConnection = errors.New("database connection failed")
	// ErrNoColumns is returned when no column survives sanitization.
	ErrNoColumns = errors.New("no columns to create the table from")
	// ErrColumnCollision is returned when two columns share a sanitized name.
	ErrColumnCollision = errors.New("column name collision")
	// ErrTableNotFound is returned by Append when the table does not exist.
	ErrTableNotFound = errors.New("table does not exist")
	// ErrUnsupportedDriver is returned for unknown driver names.
	ErrUnsupportedDriver = errors.New("unsupported database driver")
)

// DefaultBatchSize is the number of rows per INSERT statement.
const DefaultBatchSize = 500

// Result is the outcome of a write operation.
type Result struct {
	Success bool
	Message string
	// Table is the sanitized table name.
	Table string

	Total    int
	Inserted int
	Skipped  int

	// Err is set when Success is false.
	Err error
}

// Option configures a Manager.
type Option func(*Manager)

// WithBatchSize sets how many rows are sent per INSERT statement.
func WithBatchSize(n int) Option {
	return func(m *Manager) {
		if n > 0 {
			m.batchSize = n
		}
	}
}

// WithIdentityColumn names the auto-incrementing key column.
func WithIdentityColumn(name string) Option {
	return func(m *Manager) {
		m.identity = name
	}
}

// Manager writes tables to the database described by its ConnConfig.
// It holds no connection between calls.
type Manager struct {
	cfg       ConnConfig
	dialect   Dialect
	reporter  report.Reporter
	batchSize int
	identity  string
}

// New returns a Manager for cfg. Status messages go to r.
func New(cfg ConnConfig, r report.Reporter, opts ...Option) (*Manager, error) {
	d, err := DialectFor(cfg.Driver)
	if err != nil {
		return nil, err
	}
	if r == nil {
		r = report.Discard
	}
	m := &Manager{
		cfg:       cfg,
		dialect:   d,
		reporter:  r,
		batchSize: DefaultBatchSize,
		identity:  DefaultIdentityColumn,
	}
	for _, opt := range opts {
		opt(m)
	}
	safe := SanitizeColumnName(m.identity)
	if safe == "" {
		return nil, fmt.Errorf("invalid identity column name %q", m.identity)
	}
	m.identity = safe
	return m, nil
}

// Config returns the connection settings.
func (m *Manager) Config() ConnConfig { return m.cfg }

// Dialect returns the SQL dialect in use.
func (m *Manager) Dialect() Dialect { return m.dialect }

func (m *Manager) report(format string, args ...any) {
	m.reporter.Report(fmt.Sprintf(format, args...))
}

// Conn is an open connection to the target database.
type Conn struct {
	db       *sql.DB
	Database string
}

// DB returns the underlying pool.
func (c *Conn) DB() *sql.DB { return c.db }

// Close releases the connection.
func (c *Conn) Close() error {
	if c == nil || c.db == nil {
		return nil
	}
	return c.db.Close()
}

// Connect opens a connection to the configured database. With
// createDatabase, the database is created first when absent. Failures are
// reported and returned wrapping ErrConnection.
func (m *Manager) Connect(ctx context.Context, createDatabase bool) (*Conn, error) {
	name := m.cfg.Database
	fail := func(err error) (*Conn, error) {
		m.report("Database connection failed: %v", err)
		return nil, fmt.Errorf("%w: %w", ErrConnection, err)
	}

	if err := m.cfg.Validate(); err != nil {
		return fail(err)
	}

	if createDatabase {
		m.report("Checking whether database '%s' exists and creating it if needed...", name)
		if err := m.dialect.EnsureDatabase(ctx, m.cfg); err != nil {
			return fail(err)
		}
		m.report("Database '%s' checked or created.", name)
	}

	db, err := m.dialect.Open(m.cfg, true)
	if err != nil {
		return fail(err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return fail(err)
	}

	m.report("Connected to database '%s'.", name)
	return &Conn{db: db, Database: name}, nil
}

// Ping checks that the configured database is reachable.
func (m *Manager) Ping(ctx context.Context) error {
	conn, err := m.Connect(ctx, false)
	if err != nil {
		return err
	}
	return conn.Close()
}

// DeriveSchema maps t to a relational table named name.
func (m *Manager) DeriveSchema(t *dataset.Table, name string) (Schema, error) {
	return deriveSchema(m.dialect, t, name, m.identity)
}

// CreateTableSQL renders the CREATE TABLE statement for s.
func (m *Manager) CreateTableSQL(s Schema) string {
	return createTableSQL(m.dialect, s)
}

// Overwrite drops and recreates the table from t's schema, then inserts
// every row of t in one transaction.
func (m *Manager) Overwrite(ctx context.Context, t *dataset.Table, name string) Result {
	res := Result{Table: SanitizeTableName(name), Total: t.NumRows()}
	fail := func(err error) Result {
		m.report("Overwrite failed: %v", err)
		res.Message = fmt.Sprintf("Error during overwrite: %v", err)
		res.Err = err
		return res
	}

	schema, err := m.DeriveSchema(t, name)
	if err != nil {
		return fail(err)
	}
	if skipped := skippedColumns(t); len(skipped) > 0 {
		m.report("Skipping columns with no usable name: %s", strings.Join(skipped, ", "))
	}

	conn, err := m.Connect(ctx, true)
	if err != nil {
		res.Message = "Cannot connect to the database."
		res.Err = err
		return res
	}
	defer conn.Close()

	tx, err := conn.db.BeginTx(ctx, nil)
	if err != nil {
		return fail(err)
	}
	defer tx.Rollback()

	m.report("Recreating table '%s' to update its schema.", schema.Table)
	if _, err := tx.ExecContext(ctx, dropTableSQL(m.dialect, schema.Table)); err != nil {
		return fail(err)
	}
	create := createTableSQL(m.dialect, schema)
	m.report("Running create table query: %s", create)
	if _, err := tx.ExecContext(ctx, create); err != nil {
		return fail(err)
	}

	rows := make([]int, t.NumRows())
	for i := range rows {
		rows[i] = i
	}
	if err := m.insertRows(ctx, tx, schema, t, rows); err != nil {
		return fail(err)
	}
	if err := tx.Commit(); err != nil {
		return fail(err)
	}

	res.Success = true
	res.Inserted = len(rows)
	res.Message = fmt.Sprintf("Table '%s' overwritten successfully. %s", schema.Table, countsMessage(res))
	m.report("%s", res.Message)
	return res
}

// Append inserts the rows of t that are not already in the table. A row is
// a duplicate when every data column matches an existing row. The database
// is never created; a missing table fails with ErrTableNotFound.
func (m *Manager) Append(ctx context.Context, t *dataset.Table, name string) Result {
	res := Result{Table: SanitizeTableName(name), Total: t.NumRows()}
	fail := func(err error) Result {
		m.report("Append failed: %v", err)
		res.Message = fmt.Sprintf("Error while appending data: %v", err)
		res.Err = err
		return res
	}

	schema, err := m.DeriveSchema(t, name)
	if err != nil {
		return fail(err)
	}

	conn, err := m.Connect(ctx, false)
	if err != nil {
		res.Message = "Cannot connect to the database. The database may need to be created first."
		res.Err = err
		return res
	}
	defer conn.Close()

	tx, err := conn.db.BeginTx(ctx, nil)
	if err != nil {
		return fail(err)
	}
	defer tx.Rollback()

	m.report("Reading existing rows from table '%s' to skip duplicates...", schema.Table)
	existing, err := m.existingKeys(ctx, tx, schema)
	if err != nil {
		if m.dialect.IsMissingTable(err) {
			res.Message = fmt.Sprintf("Table '%s' does not exist. Run overwrite first to create it.", schema.Table)
			res.Err = fmt.Errorf("%w: %s: %w", ErrTableNotFound, schema.Table, err)
			m.report("%s", res.Message)
			return res
		}
		return fail(err)
	}
	m.report("Read %d existing rows.", len(existing))

	cols := schema.DataColumns()
	var rows []int
	for i := 0; i < t.NumRows(); i++ {
		if _, dup := existing[rowKey(t, cols, i)]; !dup {
			rows = append(rows, i)
		}
	}
	res.Inserted = len(rows)
	res.Skipped = res.Total - res.Inserted

	if res.Total == 0 {
		res.Success = true
		res.Message = "The file has no rows to append."
		m.report("%s", res.Message)
		return res
	}
	if len(rows) == 0 {
		res.Success = true
		res.Message = fmt.Sprintf("All %d rows of the file already exist in the database. %s", res.Total, countsMessage(res))
		m.report("No new rows to add. (%d skipped as duplicates)", res.Skipped)
		return res
	}

	m.report("Inserting %d new rows into table '%s'. (%d skipped as duplicates)", res.Inserted, schema.Table, res.Skipped)
	if err := m.insertRows(ctx, tx, schema, t, rows); err != nil {
		res.Inserted, res.Skipped = 0, 0
		return fail(err)
	}
	if err := tx.Commit(); err != nil {
		res.Inserted, res.Skipped = 0, 0
		return fail(err)
	}

	res.Success = true
	res.Message = fmt.Sprintf("Of %d rows in the file, %s", res.Total, countsMessage(res))
	m.report("%s", res.Message)
	return res
}

func countsMessage(res Result) string {
	return fmt.Sprintf("%d rows inserted, %d skipped", res.Inserted, res.Skipped)
}

// existingKeys reads every stored row and returns the set of row keys,
// converting each value into the kind of the matching dataset column.
func (m *Manager) existingKeys(ctx context.Context, tx *sql.Tx, s Schema) (map[string]struct{}, error) {
	cols := s.DataColumns()
	rows, err := tx.QueryContext(ctx, selectSQL(m.dialect, s.Table, cols))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	keys := make(map[string]struct{})
	raw := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range raw {
		ptrs[i] = &raw[i]
	}
	values := make([]dataset.Value, len(cols))
	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		for i, c := range cols {
			values[i] = dataset.FromDB(c.Kind, raw[i])
		}
		keys[dataset.RowKey(values)] = struct{}{}
	}
	return keys, rows.Err()
}

// rowKey builds the comparison key of row i over the schema's data columns.
func rowKey(t *dataset.Table, cols []ColumnDef, i int) string {
	all := t.Columns()
	values := make([]dataset.Value, len(cols))
	for j, c := range cols {
		values[j] = all[c.SourceIndex].Values[i]
	}
	return dataset.RowKey(values)
}

// insertRows inserts the given rows of t in batches bounded by the batch
// size and the dialect's parameter limit.
func (m *Manager) insertRows(ctx context.Context, tx *sql.Tx, s Schema, t *dataset.Table, rows []int) error {
	cols := s.DataColumns()
	perBatch := min(m.batchSize, max(1, m.dialect.MaxParams()/len(cols)))
	all := t.Columns()

	for start := 0; start < len(rows); start += perBatch {
		if err := ctx.Err(); err != nil {
			return err
		}
		end := min(start+perBatch, len(rows))
		batch := rows[start:end]

		args := make([]any, 0, len(batch)*len(cols))
		for _, r := range batch {
			for _, c := range cols {
				args = append(args, all[c.SourceIndex].Values[r].Interface())
			}
		}
		if _, err := tx.ExecContext(ctx, insertSQL(m.dialect, s.Table, cols, len(batch)), args...); err != nil {
			return fmt.Errorf("insert rows %d-%d: %w", start+1, end, err)
		}
	}
	return nil
}
