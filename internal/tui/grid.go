package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/JonMunkholm/PreChart2DB/internal/dataset"
)

// maxCellWidth caps a grid column; longer values are cut with an ellipsis.
const maxCellWidth = 30

// renderGrid renders rows [offset, offset+limit) of t as text lines: a
// header with column kinds, a separator, then one line per row prefixed
// with its index.
func renderGrid(t *dataset.Table, offset, limit int) []string {
	if t == nil || t.NumCols() == 0 {
		return []string{styleMuted.Render("(empty table)")}
	}
	end := min(offset+limit, t.NumRows())
	if offset < 0 || offset > end {
		offset = 0
	}

	header := make([]string, t.NumCols())
	for j, c := range t.Columns() {
		header[j] = fmt.Sprintf("%s:%s", c.Name, c.Kind)
	}
	rows := make([][]string, 0, end-offset)
	for i := offset; i < end; i++ {
		cells := make([]string, t.NumCols())
		for j, v := range t.Row(i) {
			if v.IsMissing() {
				cells[j] = "∅"
			} else {
				cells[j] = v.String()
			}
		}
		rows = append(rows, cells)
	}

	widths := columnWidths(header, rows)
	indexWidth := len(fmt.Sprint(max(end-1, 0)))

	lines := make([]string, 0, len(rows)+2)
	lines = append(lines, strings.Repeat(" ", indexWidth)+"  "+renderCells(header, widths, true))

	sep := make([]string, len(widths))
	for j, w := range widths {
		sep[j] = strings.Repeat("─", w)
	}
	lines = append(lines, strings.Repeat(" ", indexWidth)+"  "+
		lipgloss.NewStyle().Foreground(colorBorder).Render(strings.Join(sep, "─┼─")))

	for k, cells := range rows {
		idx := fmt.Sprintf("%*d", indexWidth, offset+k)
		lines = append(lines, styleMuted.Render(idx)+"  "+renderCells(cells, widths, false))
	}
	return lines
}

func columnWidths(header []string, rows [][]string) []int {
	widths := make([]int, len(header))
	for j, h := range header {
		widths[j] = lipgloss.Width(h)
	}
	for _, row := range rows {
		for j, cell := range row {
			if w := lipgloss.Width(cell); w > widths[j] {
				widths[j] = w
			}
		}
	}
	for j := range widths {
		widths[j] = max(1, min(widths[j], maxCellWidth))
	}
	return widths
}

func renderCells(cells []string, widths []int, header bool) string {
	parts := make([]string, len(cells))
	for j, cell := range cells {
		display := truncate(cell, widths[j])
		if pad := widths[j] - lipgloss.Width(display); pad > 0 {
			display += strings.Repeat(" ", pad)
		}
		if header {
			display = styleHeader.Render(display)
		}
		parts[j] = display
	}
	return strings.Join(parts, " │ ")
}

func truncate(s string, width int) string {
	if lipgloss.Width(s) <= width {
		return s
	}
	runes := []rune(s)
	for len(runes) > 0 && lipgloss.Width(string(runes)) >= width {
		runes = runes[:len(runes)-1]
	}
	return string(runes) + "…"
}
