package web

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/a-h/templ"
	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/PreChart2DB/internal/analysis"
	"github.com/JonMunkholm/PreChart2DB/internal/core"
	"github.com/JonMunkholm/PreChart2DB/internal/dataset"
	"github.com/JonMunkholm/PreChart2DB/internal/dbsync"
	"github.com/JonMunkholm/PreChart2DB/internal/importer"
	"github.com/JonMunkholm/PreChart2DB/internal/web/templates"
)

const (
	// multipartMemory is how much of an upload is kept in memory before
	// spilling to a temp file.
	multipartMemory = 32 << 20

	// formOverhead allows for multipart headers and the option fields.
	formOverhead = 1 << 20

	// auditPageSize is the default number of audit entries shown.
	auditPageSize = 50
)

// parseIntParam parses an integer query parameter with a default value.
func parseIntParam(r *http.Request, name string, defaultVal int) int {
	val := r.URL.Query().Get(name)
	if val == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(val)
	if err != nil || i < 1 {
		return defaultVal
	}
	return i
}

// pathIndex parses a non-negative index URL parameter.
func pathIndex(r *http.Request, name string) (int, error) {
	raw := chi.URLParam(r, name)
	i, err := strconv.Atoi(raw)
	if err != nil || i < 0 {
		return 0, fmt.Errorf("%w: invalid %s %q", errBadRequest, name, raw)
	}
	return i, nil
}

// rowValues collects the c0..c{n-1} form fields.
func rowValues(r *http.Request, n int) []string {
	values := make([]string, n)
	for j := range values {
		values[j] = r.PostFormValue("c" + strconv.Itoa(j))
	}
	return values
}

// render renders c into a buffer first so a failed render does not send a
// half-written page.
func render(w http.ResponseWriter, r *http.Request, c templ.Component) error {
	var buf bytes.Buffer
	if err := c.Render(r.Context(), &buf); err != nil {
		return err
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, err := w.Write(buf.Bytes())
	return err
}

// handleDashboard renders the data page.
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r)
	data := templates.DashboardData{
		Meta:     s.meta(),
		Flash:    s.flashes.pop(sess.ID),
		Page:     parseIntParam(r, "page", 1),
		Messages: sess.Log.Messages(),
	}

	// The table is only valid while the session is locked, so the page is
	// rendered inside View.
	var buf bytes.Buffer
	var err error
	sess.View(func(st core.State) {
		data.FileName = st.FileName
		data.TableName = st.TableName
		data.Table = st.Table
		data.LoadOptions = st.LoadOptions
		data.Target = st.Conn.String()
		data.OverwritePending = st.OverwritePending
		data.LastResult = st.LastResult
		if st.Table != nil {
			data.Summary = analysis.Summarize(st.Table)
		}
		err = templates.Dashboard(data).Render(r.Context(), &buf)
	})
	if err != nil {
		s.respondError(w, r, err, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(buf.Bytes())
}

// handleUpload loads the posted file into the session.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r)
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.Upload.MaxFileSize+formOverhead)

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) || strings.Contains(err.Error(), "request body too large") {
			err = importer.ErrFileTooLarge
		} else {
			err = fmt.Errorf("%w: invalid upload form", errBadRequest)
		}
		s.redirectWith(w, r, "/", err, "")
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		s.redirectWith(w, r, "/", fmt.Errorf("%w: no file provided", errBadRequest), "")
		return
	}
	defer file.Close()

	opts := importer.Options{
		Delimiter: r.FormValue("delimiter"),
		Encoding:  r.FormValue("encoding"),
		Sheet:     strings.TrimSpace(r.FormValue("sheet")),
	}
	err = s.service.LoadFile(r.Context(), sess, importer.FromReader(header.Filename, file), opts)
	s.redirectWith(w, r, "/", err, sess.Log.Last())
}

// handleRenameTable sets the target table name.
func (s *Server) handleRenameTable(w http.ResponseWriter, r *http.Request) {
	s.service.SetTableName(sessionFrom(r), r.PostFormValue("name"))
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// handleAddRow appends a row from the c0..cN form fields.
func (s *Server) handleAddRow(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r)
	n := 0
	sess.View(func(st core.State) {
		if st.Table != nil {
			n = st.Table.NumCols()
		}
	})
	err := s.service.AddRow(r.Context(), sess, rowValues(r, n))
	s.redirectWith(w, r, "/", err, "Row added.")
}

// handleSaveRow stores the changed cells of one grid row.
func (s *Server) handleSaveRow(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r)
	row, err := pathIndex(r, "row")
	if err != nil {
		s.redirectWith(w, r, "/", err, "")
		return
	}

	var current []string
	sess.View(func(st core.State) {
		if st.Table == nil || row >= st.Table.NumRows() {
			return
		}
		for _, v := range st.Table.Row(row) {
			current = append(current, v.String())
		}
	})
	if current == nil {
		// Let the service report the missing table or row.
		s.redirectWith(w, r, "/", s.service.EditCell(r.Context(), sess, row, 0, ""), "")
		return
	}

	back := fmt.Sprintf("/?page=%d", row/templates.DefaultPageSize+1)
	if err := r.ParseForm(); err != nil {
		s.redirectWith(w, r, back, fmt.Errorf("%w: %w", errBadRequest, err), "")
		return
	}
	for j := range current {
		// Cells missing from the form are left alone.
		field, ok := r.PostForm["c"+strconv.Itoa(j)]
		if !ok || len(field) == 0 {
			continue
		}
		raw := field[0]
		if raw == current[j] {
			continue
		}
		if err := s.service.EditCell(r.Context(), sess, row, j, raw); err != nil {
			s.redirectWith(w, r, back, err, "")
			return
		}
	}
	s.redirectWith(w, r, back, nil, fmt.Sprintf("Row %d saved.", row))
}

// handleDeleteRow removes one row.
func (s *Server) handleDeleteRow(w http.ResponseWriter, r *http.Request) {
	row, err := pathIndex(r, "row")
	if err == nil {
		err = s.service.DeleteRow(r.Context(), sessionFrom(r), row)
	}
	s.redirectWith(w, r, "/", err, fmt.Sprintf("Row %d deleted.", row))
}

// handleConvertColumn changes a column's kind.
func (s *Server) handleConvertColumn(w http.ResponseWriter, r *http.Request) {
	col, err := pathIndex(r, "col")
	if err != nil {
		s.redirectWith(w, r, "/", err, "")
		return
	}
	kind, err := dataset.ParseKind(r.PostFormValue("kind"))
	if err != nil {
		s.redirectWith(w, r, "/", fmt.Errorf("%w: %w", errBadRequest, err), "")
		return
	}
	sess := sessionFrom(r)
	err = s.service.ConvertColumn(r.Context(), sess, col, kind)
	s.redirectWith(w, r, "/", err, sess.Log.Last())
}

// cellEdit is the body of POST /api/table/cell.
type cellEdit struct {
	Row   int    `json:"row"`
	Col   int    `json:"col"`
	Value string `json:"value"`
}

// handleEditCell edits one cell through the JSON API.
func (s *Server) handleEditCell(w http.ResponseWriter, r *http.Request) {
	var edit cellEdit
	if err := decodeJSON(r, &edit); err != nil {
		s.respondError(w, r, err, http.StatusBadRequest)
		return
	}

	sess := sessionFrom(r)
	if err := s.service.EditCell(r.Context(), sess, edit.Row, edit.Col, edit.Value); err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}

	var stored string
	sess.View(func(st core.State) {
		if v, err := st.Table.Cell(edit.Row, edit.Col); err == nil {
			stored = v.String()
		}
	})
	writeJSON(w, http.StatusOK, map[string]any{"row": edit.Row, "col": edit.Col, "value": stored})
}

// handleAnalysis renders summary statistics and charts for one column.
func (s *Server) handleAnalysis(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r)
	vis := s.cfg.Visualization
	data := templates.AnalysisData{Meta: s.meta(), Flash: s.flashes.pop(sess.ID)}

	sess.View(func(st core.State) {
		t := st.Table
		if t == nil {
			return
		}
		data.FileName = st.FileName
		data.Summary = analysis.Summarize(t)
		data.Head = analysis.Head(t, vis.HeadRows)
		data.Columns = t.ColumnNames()

		data.Selected = r.URL.Query().Get("column")
		if data.Selected == "" && len(data.Columns) > 0 {
			data.Selected = data.Columns[0]
		}
		col, ok := t.Column(data.Selected)
		if !ok {
			if data.Selected != "" {
				data.Flash = &templates.Flash{Message: fmt.Sprintf("Column %q not found", data.Selected), Code: "TBL003"}
			}
			data.Selected = ""
			return
		}
		fillColumnAnalysis(&data, col, vis.TopN, vis.UniqueLimit, vis.HistogramBins)
	})

	if err := render(w, r, templates.Analysis(data)); err != nil {
		s.respondError(w, r, err, http.StatusInternalServerError)
	}
}

func fillColumnAnalysis(data *templates.AnalysisData, col *dataset.Column, topN, uniqueLimit, bins int) {
	data.Description = analysis.Describe(col)
	data.Counts = analysis.ValueCounts(col, topN)

	for _, c := range analysis.ValueCounts(col, 0) {
		if c.Missing {
			continue
		}
		if len(data.Unique) < uniqueLimit {
			data.Unique = append(data.Unique, c)
		}
		data.UniqueTotal++
	}

	if col.Kind.IsNumeric() {
		data.Histogram, _ = analysis.Histogram(col, bins)
		if box, ok, err := analysis.Box(col); err == nil && ok {
			data.Box = &box
		}
	}
}

// handleSettings renders the connection form.
func (s *Server) handleSettings(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r)
	data := templates.SettingsData{
		Meta:     s.meta(),
		Flash:    s.flashes.pop(sess.ID),
		Conn:     sess.Snapshot().Conn,
		Messages: sess.Log.Messages(),
	}
	if err := render(w, r, templates.Settings(data)); err != nil {
		s.respondError(w, r, err, http.StatusInternalServerError)
	}
}

// handleUpdateSettings replaces the session's connection settings. An
// empty password keeps the current one.
func (s *Server) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r)
	conn := sess.Snapshot().Conn

	conn.Driver = strings.TrimSpace(r.PostFormValue("driver"))
	conn.Host = strings.TrimSpace(r.PostFormValue("host"))
	conn.User = strings.TrimSpace(r.PostFormValue("user"))
	conn.Database = strings.TrimSpace(r.PostFormValue("database"))
	conn.Charset = strings.TrimSpace(r.PostFormValue("charset"))
	conn.DataDir = strings.TrimSpace(r.PostFormValue("data_dir"))
	if pw := r.PostFormValue("password"); pw != "" {
		conn.Password = pw
	}
	if raw := strings.TrimSpace(r.PostFormValue("port")); raw != "" {
		port, err := strconv.Atoi(raw)
		if err != nil {
			s.redirectWith(w, r, "/settings", fmt.Errorf("%w: invalid port %q", errBadRequest, raw), "")
			return
		}
		conn.Port = port
	}

	if err := s.service.UpdateConnection(sess, conn); err != nil {
		s.redirectWith(w, r, "/settings", fmt.Errorf("%w: %w", errBadRequest, err), "")
		return
	}
	s.redirectWith(w, r, "/settings", nil, "Connection settings saved.")
}

// handleTestConnection pings the session's database.
func (s *Server) handleTestConnection(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r)
	err := s.service.TestConnection(r.Context(), sess)
	s.redirectWith(w, r, "/settings", err, sess.Log.Last())
}

// handleRequestOverwrite asks for confirmation before an overwrite.
func (s *Server) handleRequestOverwrite(w http.ResponseWriter, r *http.Request) {
	err := s.service.RequestOverwrite(sessionFrom(r))
	s.redirectWith(w, r, "/", err, "")
}

// handleCancelOverwrite disarms a pending overwrite.
func (s *Server) handleCancelOverwrite(w http.ResponseWriter, r *http.Request) {
	s.service.CancelOverwrite(sessionFrom(r))
	s.redirectWith(w, r, "/", nil, "Overwrite cancelled.")
}

// handleConfirmOverwrite runs the pending overwrite.
func (s *Server) handleConfirmOverwrite(w http.ResponseWriter, r *http.Request) {
	s.respondResult(w, r, s.service.ConfirmOverwrite(r.Context(), sessionFrom(r)))
}

// handleAppend appends the rows the database lacks.
func (s *Server) handleAppend(w http.ResponseWriter, r *http.Request) {
	s.respondResult(w, r, s.service.Append(r.Context(), sessionFrom(r)))
}

// resultResponse is the JSON form of a write result.
type resultResponse struct {
	Success  bool   `json:"success"`
	Message  string `json:"message"`
	Table    string `json:"table"`
	Total    int    `json:"total"`
	Inserted int    `json:"inserted"`
	Skipped  int    `json:"skipped"`
	Code     string `json:"code,omitempty"`
}

// respondResult reports a write result as JSON or as a flash notice.
func (s *Server) respondResult(w http.ResponseWriter, r *http.Request, res dbsync.Result) {
	code := core.MapError(res.Err).Code
	if wantsJSON(r) {
		status := http.StatusOK
		if !res.Success {
			status = statusFor(res.Err)
		}
		writeJSON(w, status, resultResponse{
			Success:  res.Success,
			Message:  res.Message,
			Table:    res.Table,
			Total:    res.Total,
			Inserted: res.Inserted,
			Skipped:  res.Skipped,
			Code:     code,
		})
		return
	}

	flash := &templates.Flash{Message: res.Message, OK: res.Success}
	if !res.Success {
		flash.Code = code
		flash.Action = core.MapError(res.Err).Action
	}
	s.flashes.set(sessionFrom(r).ID, flash)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

type columnJSON struct {
	Name string `json:"name"`
	Kind string `json:"kind"`
}

type tableJSON struct {
	File    string       `json:"file"`
	Table   string       `json:"table"`
	Columns []columnJSON `json:"columns"`
	Rows    [][]any      `json:"rows"`
}

// handleExportTable returns the session's table as JSON. Missing values
// are null.
func (s *Server) handleExportTable(w http.ResponseWriter, r *http.Request) {
	var out *tableJSON
	sessionFrom(r).View(func(st core.State) {
		if st.Table == nil {
			return
		}
		out = &tableJSON{File: st.FileName, Table: dbsync.SanitizeTableName(st.TableName)}
		for _, c := range st.Table.Columns() {
			out.Columns = append(out.Columns, columnJSON{Name: c.Name, Kind: c.Kind.String()})
		}
		out.Rows = make([][]any, st.Table.NumRows())
		for i := range out.Rows {
			row := st.Table.Row(i)
			cells := make([]any, len(row))
			for j, v := range row {
				cells[j] = v.Interface()
			}
			out.Rows[i] = cells
		}
	})
	if out == nil {
		s.respondError(w, r, core.ErrNoTable, http.StatusConflict)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// handleStatus returns the session's status log and the write limiter state.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"messages": sessionFrom(r).Log.Messages(),
		"writes":   s.service.Limiter().Status(),
		"sessions": s.service.Sessions().Len(),
	})
}

// handleStatusPage renders the status log.
func (s *Server) handleStatusPage(w http.ResponseWriter, r *http.Request) {
	st := s.service.Limiter().Status()
	data := templates.StatusData{
		Meta:          s.meta(),
		Active:        st.Active,
		MaxConcurrent: st.MaxConcurrent,
		Targets:       st.Targets,
		Messages:      sessionFrom(r).Log.Messages(),
		Audit: s.service.Audit().Entries(core.AuditFilter{
			SessionID: sessionFrom(r).ID,
			Limit:     auditPageSize,
		}),
	}
	if err := render(w, r, templates.Status(data)); err != nil {
		s.respondError(w, r, err, http.StatusInternalServerError)
	}
}

// handleAudit returns the session's audit entries, newest first. The
// action and limit query parameters narrow the list.
func (s *Server) handleAudit(w http.ResponseWriter, r *http.Request) {
	entries := s.service.Audit().Entries(core.AuditFilter{
		SessionID: sessionFrom(r).ID,
		Action:    core.AuditAction(r.URL.Query().Get("action")),
		Limit:     parseIntParam(r, "limit", auditPageSize),
	})
	if entries == nil {
		entries = []core.AuditEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
