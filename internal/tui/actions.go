package tui

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/JonMunkholm/PreChart2DB/internal/analysis"
	"github.com/JonMunkholm/PreChart2DB/internal/core"
	"github.com/JonMunkholm/PreChart2DB/internal/dataset"
	"github.com/JonMunkholm/PreChart2DB/internal/dbsync"
	"github.com/JonMunkholm/PreChart2DB/internal/importer"
)

/* ----------------------------------------
	LOADING
---------------------------------------- */

func (m *Model) loadFile(path string) tea.Cmd {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil
	}
	m.busy = true
	m.setStatus("Loading "+path, false)

	svc, sess, opts := m.service, m.sess, m.opts
	return func() tea.Msg {
		if err := svc.LoadFile(context.Background(), sess, importer.FromPath(path), opts); err != nil {
			return ErrMsg{Err: err}
		}
		return DoneMsg(sess.Log.Last())
	}
}

func (m *Model) setDelimiter(v string) tea.Cmd {
	if v == "tab" || v == `\t` {
		v = "\t"
	}
	if !slices.Contains(importer.Delimiters, v) {
		m.setStatus(fmt.Sprintf("Unsupported delimiter %q", v), true)
		return nil
	}
	m.opts.Delimiter = v
	m.setStatus(fmt.Sprintf("Delimiter set to %q", v), false)
	return nil
}

func (m *Model) setEncoding(v string) tea.Cmd {
	v = strings.ToLower(strings.TrimSpace(v))
	if !slices.Contains(importer.Encodings, v) {
		m.setStatus(fmt.Sprintf("Unsupported encoding %q", v), true)
		return nil
	}
	m.opts.Encoding = v
	m.setStatus("Encoding set to "+v, false)
	return nil
}

func (m *Model) setSheet(v string) tea.Cmd {
	m.opts.Sheet = strings.TrimSpace(v)
	if m.opts.Sheet == "" {
		m.setStatus("Using the first sheet", false)
	} else {
		m.setStatus("Sheet set to "+m.opts.Sheet, false)
	}
	return nil
}

/* ----------------------------------------
	EDITING
---------------------------------------- */

// columnIndex resolves a column given by index or by name.
func (m *Model) columnIndex(ref string) (int, error) {
	ref = strings.TrimSpace(ref)
	if i, err := strconv.Atoi(ref); err == nil {
		return i, nil
	}
	idx := -1
	m.sess.View(func(st core.State) {
		if st.Table != nil {
			idx = st.Table.ColumnIndex(ref)
		}
	})
	if idx < 0 {
		if !m.sess.HasTable() {
			return 0, core.ErrNoTable
		}
		return 0, fmt.Errorf("%w: %q", dataset.ErrColumnRange, ref)
	}
	return idx, nil
}

func parseRow(s string) (int, error) {
	i, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("%w: %q", dataset.ErrRowRange, s)
	}
	return i, nil
}

// parseEdit splits "row, column, value". The value may contain commas.
func parseEdit(s string) (row int, col, value string, err error) {
	parts := strings.SplitN(s, ",", 3)
	if len(parts) != 3 {
		return 0, "", "", fmt.Errorf("expected row, column, value: %q", s)
	}
	row, err = parseRow(parts[0])
	return row, strings.TrimSpace(parts[1]), strings.TrimSpace(parts[2]), err
}

func (m *Model) editCell(input string) tea.Cmd {
	row, ref, value, err := parseEdit(input)
	if err != nil {
		m.setStatus(err.Error(), true)
		return nil
	}
	col, err := m.columnIndex(ref)
	if err == nil {
		err = m.service.EditCell(context.Background(), m.sess, row, col, value)
	}
	if err != nil {
		m.fail(err)
		return nil
	}
	m.setStatus(fmt.Sprintf("Cell (%d, %d) updated", row, col), false)
	return nil
}

func (m *Model) addRow(input string) tea.Cmd {
	values := strings.Split(input, ",")
	for i := range values {
		values[i] = strings.TrimSpace(values[i])
	}
	if err := m.service.AddRow(context.Background(), m.sess, values); err != nil {
		m.fail(err)
		return nil
	}
	m.setStatus("Row added", false)
	return nil
}

func (m *Model) deleteRow(input string) tea.Cmd {
	row, err := parseRow(input)
	if err == nil {
		err = m.service.DeleteRow(context.Background(), m.sess, row)
	}
	if err != nil {
		m.fail(err)
		return nil
	}
	m.setStatus(fmt.Sprintf("Row %d deleted", row), false)
	return nil
}

func (m *Model) convertColumn(input string) tea.Cmd {
	fields := strings.Fields(input)
	if len(fields) < 2 {
		m.setStatus("expected column and kind, e.g. price float", true)
		return nil
	}
	kind, err := dataset.ParseKind(fields[len(fields)-1])
	if err != nil {
		m.setStatus(err.Error(), true)
		return nil
	}
	col, err := m.columnIndex(strings.Join(fields[:len(fields)-1], " "))
	if err == nil {
		err = m.service.ConvertColumn(context.Background(), m.sess, col, kind)
	}
	if err != nil {
		m.fail(err)
		return nil
	}
	m.setStatus(m.sess.Log.Last(), false)
	return nil
}

func (m *Model) renameTable(name string) tea.Cmd {
	m.service.SetTableName(m.sess, name)
	m.setStatus("Target table: "+dbsync.SanitizeTableName(name), false)
	return nil
}

/* ----------------------------------------
	VIEWING
---------------------------------------- */

func (m *Model) showTable() tea.Cmd {
	if !m.sess.HasTable() {
		m.fail(core.ErrNoTable)
		return nil
	}
	m.mode = modeGrid
	m.scroll = 0
	return nil
}

func (m *Model) showSummary() tea.Cmd {
	var lines []string
	m.sess.View(func(st core.State) {
		if st.Table == nil {
			return
		}
		s := analysis.Summarize(st.Table)
		lines = append(lines,
			fmt.Sprintf("Rows: %d   Columns: %d   Missing values: %d", s.Rows, s.Columns, s.Missing),
			"",
		)
		for _, c := range s.Info {
			lines = append(lines, fmt.Sprintf("  %-24s %-9s non-null %-8d missing %d", c.Name, c.Kind, c.NonNull, c.Missing))
		}
		lines = append(lines, "")
		lines = append(lines, renderGrid(st.Table, 0, m.cfg.Visualization.HeadRows)...)
	})
	if lines == nil {
		m.fail(core.ErrNoTable)
		return nil
	}
	m.show("Summary", lines)
	return nil
}

func (m *Model) describeColumn(ref string) tea.Cmd {
	col, err := m.columnIndex(ref)
	if err != nil {
		m.fail(err)
		return nil
	}

	vis := m.cfg.Visualization
	var lines []string
	m.sess.View(func(st core.State) {
		if st.Table == nil || col < 0 || col >= st.Table.NumCols() {
			return
		}
		c := st.Table.Columns()[col]
		for _, s := range analysis.Describe(c).Stats {
			lines = append(lines, fmt.Sprintf("  %-8s %s", s.Label, s.Value))
		}

		lines = append(lines, "", fmt.Sprintf("Top values (%d unique)", analysis.UniqueCount(c)))
		for _, vc := range analysis.ValueCounts(c, vis.TopN) {
			lines = append(lines, fmt.Sprintf("  %-24s %d", vc.Value, vc.Count))
		}

		if box, ok, err := analysis.Box(c); err == nil && ok {
			lines = append(lines, "",
				fmt.Sprintf("Box: min %g  q1 %g  median %g  q3 %g  max %g", box.Min, box.Q1, box.Median, box.Q3, box.Max))
		}
		if bins, err := analysis.Histogram(c, vis.HistogramBins); err == nil {
			lines = append(lines, "", "Histogram")
			lines = append(lines, histogramLines(bins, 40)...)
		}
	})
	if lines == nil {
		m.fail(fmt.Errorf("%w: %q", dataset.ErrColumnRange, ref))
		return nil
	}
	m.show("Column "+strings.TrimSpace(ref), lines)
	return nil
}

// histogramLines draws bins as horizontal bars at most width cells long.
func histogramLines(bins []analysis.Bin, width int) []string {
	peak := 0
	for _, b := range bins {
		peak = max(peak, b.Count)
	}
	lines := make([]string, 0, len(bins))
	for _, b := range bins {
		n := 0
		if peak > 0 {
			n = b.Count * width / peak
		}
		lines = append(lines, fmt.Sprintf("  %10.4g to %-10.4g %s %d", b.Lower, b.Upper, strings.Repeat("█", n), b.Count))
	}
	return lines
}

func (m *Model) showStatusLog() tea.Cmd {
	msgs := m.sess.Log.Messages()
	if len(msgs) == 0 {
		msgs = []string{"(no messages yet)"}
	}
	m.show("Status log", msgs)
	return nil
}

/* ----------------------------------------
	DATABASE
---------------------------------------- */

func (m *Model) showConnection() tea.Cmd {
	c := m.sess.Snapshot().Conn
	m.show("Connection", []string{
		"  Driver:    " + c.Driver,
		"  Target:    " + c.String(),
		"  User:      " + c.User,
		"  Database:  " + c.Database,
		"  Charset:   " + c.Charset,
	})
	return nil
}

func (m *Model) testConnection() tea.Cmd {
	m.busy = true
	m.setStatus("Connecting...", false)
	svc, sess := m.service, m.sess
	return func() tea.Msg {
		if err := svc.TestConnection(context.Background(), sess); err != nil {
			return ErrMsg{Err: err}
		}
		return DoneMsg(sess.Log.Last())
	}
}

func (m *Model) requestOverwrite() tea.Cmd {
	if err := m.service.RequestOverwrite(m.sess); err != nil {
		m.fail(err)
		return nil
	}
	st := m.sess.Snapshot()
	label := fmt.Sprintf("Type yes to drop and recreate '%s' on %s:", st.TableName, st.Conn)
	cmd := m.ask(label, "", (*Model).confirmOverwrite)
	m.onCancel = func(m *Model) {
		m.service.CancelOverwrite(m.sess)
		m.setStatus(m.sess.Log.Last(), false)
	}
	return cmd
}

func (m *Model) confirmOverwrite(answer string) tea.Cmd {
	if !strings.EqualFold(strings.TrimSpace(answer), "yes") {
		m.service.CancelOverwrite(m.sess)
		m.setStatus(m.sess.Log.Last(), false)
		return nil
	}
	m.busy = true
	m.setStatus("Overwriting...", false)
	svc, sess := m.service, m.sess
	return func() tea.Msg {
		return resultMsg(svc.ConfirmOverwrite(context.Background(), sess))
	}
}

func (m *Model) appendRows() tea.Cmd {
	m.busy = true
	m.setStatus("Appending...", false)
	svc, sess := m.service, m.sess
	return func() tea.Msg {
		return resultMsg(svc.Append(context.Background(), sess))
	}
}
