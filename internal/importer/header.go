package importer

import (
	"fmt"
	"strings"
)

// normalizeHeader fills blank header cells and makes names unique.
//
// Blank cells become "Unnamed: N" (N is the zero-based position). A repeated
// name gets ".1", ".2", ... appended, skipping suffixes already taken.
func normalizeHeader(header []string) []string {
	out := make([]string, len(header))
	seen := make(map[string]int, len(header))
	taken := make(map[string]bool, len(header))

	for i, h := range header {
		name := strings.TrimSpace(h)
		if name == "" {
			name = fmt.Sprintf("Unnamed: %d", i)
		}
		taken[name] = true
		out[i] = name
	}

	final := make(map[string]bool, len(header))
	for i, name := range out {
		if !final[name] {
			final[name] = true
			seen[name] = 0
			continue
		}
		n := seen[name]
		var candidate string
		for {
			n++
			candidate = fmt.Sprintf("%s.%d", name, n)
			if !taken[candidate] && !final[candidate] {
				break
			}
		}
		seen[name] = n
		final[candidate] = true
		out[i] = candidate
	}
	return out
}

// widenHeader extends header with "Unnamed: N" names up to width.
func widenHeader(header []string, width int) []string {
	for i := len(header); i < width; i++ {
		header = append(header, fmt.Sprintf("Unnamed: %d", i))
	}
	return header
}

// isBlankRow reports whether every cell of row is empty after trimming.
func isBlankRow(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
