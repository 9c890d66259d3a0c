package core

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/JonMunkholm/PreChart2DB/internal/config"
	"github.com/JonMunkholm/PreChart2DB/internal/dataset"
	"github.com/JonMunkholm/PreChart2DB/internal/dbsync"
	"github.com/JonMunkholm/PreChart2DB/internal/importer"
	"github.com/JonMunkholm/PreChart2DB/internal/logging"
	"github.com/JonMunkholm/PreChart2DB/internal/report"
)

var (
	// ErrNoTable is returned when an operation needs a loaded file.
	ErrNoTable = errors.New("no file loaded")

	// ErrNotConfirmed is returned by ConfirmOverwrite without a pending
	// RequestOverwrite.
	ErrNotConfirmed = errors.New("overwrite not confirmed")
)

// DefaultWriteTimeout bounds one overwrite or append.
const DefaultWriteTimeout = 10 * time.Minute

// Write modes, used in logs.
const (
	ModeOverwrite = "overwrite"
	ModeAppend    = "append"
)

// Service runs the user-facing operations on sessions. Front-ends hold one
// Service; all methods are safe for concurrent use.
type Service struct {
	sessions *SessionStore
	limiter  *WriteLimiter
	audit    *AuditLog

	maxFileSize int64
	timeout     time.Duration
	managerOpts []dbsync.Option
}

// NewService creates a Service from the loaded configuration.
func NewService(cfg *config.Config) *Service {
	timeout := cfg.Database.Timeout
	if timeout <= 0 {
		timeout = DefaultWriteTimeout
	}
	return &Service{
		sessions:    NewSessionStore(cfg.Database.Conn(), cfg.Session.IdleTimeout),
		limiter:     NewWriteLimiter(cfg.Upload.MaxConcurrent, cfg.Upload.MaxWaitTime),
		audit:       NewAuditLog(DefaultAuditLimit),
		maxFileSize: cfg.Upload.MaxFileSize,
		timeout:     timeout,
		managerOpts: cfg.Database.ManagerOptions(),
	}
}

// Sessions returns the session store.
func (s *Service) Sessions() *SessionStore { return s.sessions }

// Limiter returns the write limiter.
func (s *Service) Limiter() *WriteLimiter { return s.limiter }

// Audit returns the audit log of edits and writes.
func (s *Service) Audit() *AuditLog { return s.audit }

// reporter sends status messages to the session log and the structured log.
func (s *Service) reporter(ctx context.Context, sess *Session) report.Reporter {
	logger := logging.FromContext(logging.WithSession(ctx, sess.ID))
	return report.Multi(sess.Log, report.NewSlog(logger))
}

// LoadFile reads src into the session. On failure the previously loaded
// table stays in place.
func (s *Service) LoadFile(ctx context.Context, sess *Session, src importer.Source, opts importer.Options) error {
	im := importer.New(s.reporter(ctx, sess))
	im.MaxFileSize = s.maxFileSize

	t, err := im.Load(ctx, src, opts)
	if err != nil {
		return err
	}

	err = sess.update(func(st *State) error {
		st.Table = t
		st.FileName = src.Name
		st.TableName = src.Stem()
		st.LoadOptions = opts
		st.OverwritePending = false
		st.LastResult = nil
		return nil
	})
	s.audit.Record(ctx, sess.ID, AuditLogParams{
		Action:       ActionLoad,
		File:         src.Name,
		Table:        src.Stem(),
		RowsAffected: t.NumRows(),
	})
	return err
}

// withTable runs fn on the loaded table with the session locked.
func withTable(sess *Session, fn func(st *State) error) error {
	return sess.update(func(st *State) error {
		if st.Table == nil {
			return ErrNoTable
		}
		return fn(st)
	})
}

// EditCell parses raw as the column's kind and stores it.
func (s *Service) EditCell(ctx context.Context, sess *Session, row, col int, raw string) error {
	var p AuditLogParams
	err := withTable(sess, func(st *State) error {
		old, err := st.Table.Cell(row, col)
		if err != nil {
			return err
		}
		if err := st.Table.SetCell(row, col, raw); err != nil {
			return err
		}
		p = AuditLogParams{
			Action:       ActionCellEdit,
			File:         st.FileName,
			Table:        st.TableName,
			RowKey:       strconv.Itoa(row),
			ColumnName:   st.Table.Columns()[col].Name,
			OldValue:     old.String(),
			NewValue:     raw,
			RowsAffected: 1,
		}
		return nil
	})
	if err == nil {
		s.audit.Record(ctx, sess.ID, p)
	}
	return err
}

// AddRow appends a row given as raw text, one entry per column.
func (s *Service) AddRow(ctx context.Context, sess *Session, raw []string) error {
	var p AuditLogParams
	err := withTable(sess, func(st *State) error {
		if err := st.Table.AppendRow(raw); err != nil {
			return err
		}
		p = AuditLogParams{
			Action:       ActionRowAdd,
			File:         st.FileName,
			Table:        st.TableName,
			RowKey:       strconv.Itoa(st.Table.NumRows() - 1),
			RowData:      rowData(st.Table, st.Table.NumRows()-1),
			RowsAffected: 1,
		}
		return nil
	})
	if err == nil {
		s.audit.Record(ctx, sess.ID, p)
	}
	return err
}

// DeleteRow removes row i.
func (s *Service) DeleteRow(ctx context.Context, sess *Session, i int) error {
	var p AuditLogParams
	err := withTable(sess, func(st *State) error {
		if i < 0 || i >= st.Table.NumRows() {
			return fmt.Errorf("%w: %d", dataset.ErrRowRange, i)
		}
		data := rowData(st.Table, i)
		if err := st.Table.DeleteRow(i); err != nil {
			return err
		}
		p = AuditLogParams{
			Action:       ActionRowDelete,
			File:         st.FileName,
			Table:        st.TableName,
			RowKey:       strconv.Itoa(i),
			RowData:      data,
			RowsAffected: 1,
		}
		return nil
	})
	if err == nil {
		s.audit.Record(ctx, sess.ID, p)
	}
	return err
}

// ConvertColumn changes the kind of column col, reparsing its values.
func (s *Service) ConvertColumn(ctx context.Context, sess *Session, col int, kind dataset.Kind) error {
	var p AuditLogParams
	err := withTable(sess, func(st *State) error {
		if col < 0 || col >= st.Table.NumCols() {
			return fmt.Errorf("%w: %d", dataset.ErrColumnRange, col)
		}
		c := st.Table.Columns()[col]
		from := c.Kind
		if err := st.Table.ConvertColumn(col, kind); err != nil {
			return err
		}
		p = AuditLogParams{
			Action:       ActionColumnConvert,
			File:         st.FileName,
			Table:        st.TableName,
			ColumnName:   c.Name,
			OldValue:     from.String(),
			NewValue:     kind.String(),
			RowsAffected: st.Table.NumRows(),
		}
		return nil
	})
	if err == nil {
		sess.Log.Report(fmt.Sprintf("Column %d converted to %s.", col, kind))
		s.audit.Record(ctx, sess.ID, p)
	}
	return err
}

// rowData maps column names to the display values of row i.
func rowData(t *dataset.Table, i int) map[string]any {
	data := make(map[string]any, t.NumCols())
	for j, v := range t.Row(i) {
		data[t.Columns()[j].Name] = v.Interface()
	}
	return data
}

// SetTableName sets the target table name. Sanitizing happens on write.
func (s *Service) SetTableName(sess *Session, name string) {
	_ = sess.update(func(st *State) error {
		st.TableName = strings.TrimSpace(name)
		return nil
	})
}

// UpdateConnection replaces the session's connection settings.
func (s *Service) UpdateConnection(sess *Session, conn dbsync.ConnConfig) error {
	if err := conn.Validate(); err != nil {
		return err
	}
	_ = sess.update(func(st *State) error {
		st.Conn = conn
		return nil
	})
	sess.Log.Report(fmt.Sprintf("Connection settings updated: %s", conn))
	return nil
}

// TestConnection connects to the session's database without creating it.
func (s *Service) TestConnection(ctx context.Context, sess *Session) error {
	conn := sess.Snapshot().Conn
	mgr, err := dbsync.New(conn, s.reporter(ctx, sess), s.managerOpts...)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return mgr.Ping(ctx)
}

// RequestOverwrite arms ConfirmOverwrite. Overwrite drops the table, so
// front-ends ask twice.
func (s *Service) RequestOverwrite(sess *Session) error {
	var name string
	err := sess.update(func(st *State) error {
		if st.Table == nil {
			return ErrNoTable
		}
		st.OverwritePending = true
		name = st.TableName
		return nil
	})
	if err != nil {
		return err
	}
	sess.Log.Report(fmt.Sprintf("Table '%s' will be dropped and recreated. Confirm to continue.",
		dbsync.SanitizeTableName(name)))
	return nil
}

// CancelOverwrite disarms a pending overwrite.
func (s *Service) CancelOverwrite(sess *Session) {
	_ = sess.update(func(st *State) error {
		st.OverwritePending = false
		return nil
	})
	sess.Log.Report("Overwrite cancelled.")
}

// ConfirmOverwrite runs the overwrite armed by RequestOverwrite.
func (s *Service) ConfirmOverwrite(ctx context.Context, sess *Session) dbsync.Result {
	pending := false
	_ = sess.update(func(st *State) error {
		pending = st.OverwritePending
		st.OverwritePending = false
		return nil
	})
	if !pending {
		res := dbsync.Result{Message: "Overwrite was not requested. Press overwrite first.", Err: ErrNotConfirmed}
		sess.Log.Report(res.Message)
		return res
	}
	return s.write(ctx, sess, ModeOverwrite)
}

// Overwrite runs an overwrite without the confirmation step. The CLI uses
// it; interactive front-ends use RequestOverwrite and ConfirmOverwrite.
func (s *Service) Overwrite(ctx context.Context, sess *Session) dbsync.Result {
	return s.write(ctx, sess, ModeOverwrite)
}

// Append adds the rows of the loaded table that the database lacks.
func (s *Service) Append(ctx context.Context, sess *Session) dbsync.Result {
	return s.write(ctx, sess, ModeAppend)
}

// write runs one database write on a copy of the session's table, so the
// session stays usable while the write runs.
func (s *Service) write(ctx context.Context, sess *Session, mode string) dbsync.Result {
	var (
		t    *dataset.Table
		name string
		conn dbsync.ConnConfig
	)
	sess.View(func(st State) {
		if st.Table != nil {
			t = st.Table.Clone()
		}
		name = st.TableName
		conn = st.Conn
	})

	ctx = logging.WithSession(ctx, sess.ID)
	rep := s.reporter(ctx, sess)
	fail := func(err error) dbsync.Result {
		res := dbsync.Result{Table: dbsync.SanitizeTableName(name), Message: FormatUserError(err), Err: err}
		rep.Report(res.Message)
		return res
	}

	if t == nil {
		return fail(ErrNoTable)
	}

	mgr, err := dbsync.New(conn, rep, s.managerOpts...)
	if err != nil {
		return fail(err)
	}

	target := conn.String() + "/" + dbsync.SanitizeTableName(name)
	release, err := s.limiter.Acquire(ctx, target)
	if err != nil {
		return fail(err)
	}
	defer release()

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	attrs := append([]any{"table", name, "mode", mode, "rows", t.NumRows()}, RequestInfoFromContext(ctx).logAttrs()...)
	logger := logging.WithFields(ctx, attrs...)
	logger.Info("database write started", "target", conn.String())
	start := time.Now()

	var res dbsync.Result
	if mode == ModeOverwrite {
		res = mgr.Overwrite(ctx, t, name)
	} else {
		res = mgr.Append(ctx, t, name)
	}

	logger.Info("database write finished",
		"success", res.Success,
		"inserted", res.Inserted,
		"skipped", res.Skipped,
		"duration", time.Since(start),
	)
	if res.Err != nil {
		logger.Warn("database write failed", "error", res.Err)
	}

	_ = sess.update(func(st *State) error {
		st.LastResult = &res
		return nil
	})

	action := ActionAppend
	if mode == ModeOverwrite {
		action = ActionOverwrite
	}
	p := AuditLogParams{
		Action:       action,
		Table:        res.Table,
		Target:       conn.String(),
		RowsAffected: res.Inserted,
		Failed:       !res.Success,
	}
	if res.Err != nil {
		p.Reason = res.Err.Error()
	}
	s.audit.Record(ctx, sess.ID, p)
	return res
}
