// Package analysis computes the descriptive statistics shown next to a
// loaded table: overall summary, per-column describe, value counts and
// histograms.
package analysis

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/JonMunkholm/PreChart2DB/internal/dataset"
)

// ErrNotNumeric is returned by numeric-only operations on other kinds.
var ErrNotNumeric = errors.New("column is not numeric")

// ColumnInfo is the per-column line of a summary.
type ColumnInfo struct {
	Name    string
	Kind    dataset.Kind
	NonNull int
	Missing int
}

// Summary describes a whole table.
type Summary struct {
	Rows    int
	Columns int
	Missing int
	Info    []ColumnInfo
}

// Summarize returns row, column and missing-value counts for t.
func Summarize(t *dataset.Table) Summary {
	s := Summary{Rows: t.NumRows(), Columns: t.NumCols()}
	for _, c := range t.Columns() {
		missing := c.MissingCount()
		s.Missing += missing
		s.Info = append(s.Info, ColumnInfo{
			Name:    c.Name,
			Kind:    c.Kind,
			NonNull: len(c.Values) - missing,
			Missing: missing,
		})
	}
	return s
}

// Stat is one labelled describe value.
type Stat struct {
	Label string
	Value string
}

// Description is the result of Describe.
type Description struct {
	Column  string
	Numeric bool
	Stats   []Stat
}

// Describe summarizes one column. Numeric columns get count, mean, std,
// min, quartiles and max; other columns get count, unique, top and freq.
func Describe(col *dataset.Column) Description {
	d := Description{Column: col.Name, Numeric: col.Kind.IsNumeric()}
	if d.Numeric {
		d.Stats = describeNumeric(numbers(col))
	} else {
		d.Stats = describeOther(col)
	}
	return d
}

func numbers(col *dataset.Column) []float64 {
	out := make([]float64, 0, len(col.Values))
	for _, v := range col.Values {
		if f, ok := v.Float64(); ok {
			out = append(out, f)
		}
	}
	return out
}

func describeNumeric(xs []float64) []Stat {
	stats := []Stat{{"count", fmt.Sprint(len(xs))}}
	if len(xs) == 0 {
		for _, label := range []string{"mean", "std", "min", "25%", "50%", "75%", "max"} {
			stats = append(stats, Stat{label, "NaN"})
		}
		return stats
	}

	sorted := append([]float64(nil), xs...)
	sort.Float64s(sorted)

	return append(stats,
		Stat{"mean", formatFloat(Mean(xs))},
		Stat{"std", formatFloat(StdDev(xs))},
		Stat{"min", formatFloat(sorted[0])},
		Stat{"25%", formatFloat(quantile(sorted, 0.25))},
		Stat{"50%", formatFloat(quantile(sorted, 0.50))},
		Stat{"75%", formatFloat(quantile(sorted, 0.75))},
		Stat{"max", formatFloat(sorted[len(sorted)-1])},
	)
}

func describeOther(col *dataset.Column) []Stat {
	counts := ValueCounts(col, 0)
	present := 0
	var top *Count
	for i := range counts {
		if counts[i].Missing {
			continue
		}
		present += counts[i].Count
		if top == nil {
			top = &counts[i]
		}
	}

	stats := []Stat{{"count", fmt.Sprint(present)}}
	unique := len(counts)
	if present < len(col.Values) {
		unique--
	}
	stats = append(stats, Stat{"unique", fmt.Sprint(unique)})
	if top != nil {
		stats = append(stats, Stat{"top", top.Value}, Stat{"freq", fmt.Sprint(top.Count)})
	}
	return stats
}

// Mean returns the arithmetic mean of xs, NaN when empty.
func Mean(xs []float64) float64 {
	if len(xs) == 0 {
		return math.NaN()
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// StdDev returns the sample standard deviation, NaN with fewer than two values.
func StdDev(xs []float64) float64 {
	if len(xs) < 2 {
		return math.NaN()
	}
	m := Mean(xs)
	var ss float64
	for _, x := range xs {
		ss += (x - m) * (x - m)
	}
	return math.Sqrt(ss / float64(len(xs)-1))
}

// quantile interpolates linearly between closest ranks of sorted.
func quantile(sorted []float64, q float64) float64 {
	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	return sorted[lo] + (sorted[hi]-sorted[lo])*(pos-float64(lo))
}

func formatFloat(f float64) string {
	if math.IsNaN(f) {
		return "NaN"
	}
	return fmt.Sprintf("%.6g", f)
}

// Count is one entry of ValueCounts.
type Count struct {
	Value   string
	Missing bool
	Count   int
}

// MissingLabel is how missing values are displayed in value counts.
const MissingLabel = "(missing)"

// ValueCounts returns value frequencies, most frequent first, ties broken by
// value. Missing values are counted as their own entry. A positive limit
// keeps only the first limit entries.
func ValueCounts(col *dataset.Column, limit int) []Count {
	index := make(map[string]int)
	var counts []Count
	for _, v := range col.Values {
		key := v.Key()
		i, ok := index[key]
		if !ok {
			i = len(counts)
			index[key] = i
			c := Count{Value: v.String(), Missing: v.IsMissing()}
			if c.Missing {
				c.Value = MissingLabel
			}
			counts = append(counts, c)
		}
		counts[i].Count++
	}

	sort.SliceStable(counts, func(a, b int) bool {
		if counts[a].Count != counts[b].Count {
			return counts[a].Count > counts[b].Count
		}
		return counts[a].Value < counts[b].Value
	})
	if limit > 0 && len(counts) > limit {
		counts = counts[:limit]
	}
	return counts
}

// UniqueCount returns the number of distinct present values.
func UniqueCount(col *dataset.Column) int {
	seen := make(map[string]struct{})
	for _, v := range col.Values {
		if !v.IsMissing() {
			seen[v.Key()] = struct{}{}
		}
	}
	return len(seen)
}

// Bin is one histogram bucket covering [Lower, Upper). The last bin also
// includes Upper.
type Bin struct {
	Lower float64
	Upper float64
	Count int
}

// DefaultBins is the histogram bucket count used when none is given.
const DefaultBins = 10

// Histogram buckets the numeric values of col into bins equal-width bins.
func Histogram(col *dataset.Column, bins int) ([]Bin, error) {
	if !col.Kind.IsNumeric() {
		return nil, fmt.Errorf("histogram of %q: %w", col.Name, ErrNotNumeric)
	}
	if bins <= 0 {
		bins = DefaultBins
	}
	xs := numbers(col)
	if len(xs) == 0 {
		return nil, nil
	}

	lo, hi := xs[0], xs[0]
	for _, x := range xs[1:] {
		lo = math.Min(lo, x)
		hi = math.Max(hi, x)
	}
	if lo == hi {
		// All values equal: one bin centered on the value.
		return []Bin{{Lower: lo - 0.5, Upper: hi + 0.5, Count: len(xs)}}, nil
	}

	width := (hi - lo) / float64(bins)
	out := make([]Bin, bins)
	for i := range out {
		out[i].Lower = lo + float64(i)*width
		out[i].Upper = lo + float64(i+1)*width
	}
	out[bins-1].Upper = hi
	for _, x := range xs {
		i := int((x - lo) / width)
		if i >= bins {
			i = bins - 1
		}
		out[i].Count++
	}
	return out, nil
}

// BoxStats are the five numbers of a box plot.
type BoxStats struct {
	Min, Q1, Median, Q3, Max float64
}

// Box returns box plot statistics for a numeric column.
func Box(col *dataset.Column) (BoxStats, bool, error) {
	if !col.Kind.IsNumeric() {
		return BoxStats{}, false, fmt.Errorf("box plot of %q: %w", col.Name, ErrNotNumeric)
	}
	xs := numbers(col)
	if len(xs) == 0 {
		return BoxStats{}, false, nil
	}
	sort.Float64s(xs)
	return BoxStats{
		Min:    xs[0],
		Q1:     quantile(xs, 0.25),
		Median: quantile(xs, 0.5),
		Q3:     quantile(xs, 0.75),
		Max:    xs[len(xs)-1],
	}, true, nil
}

// Head returns up to n leading rows of t as display strings.
func Head(t *dataset.Table, n int) [][]string {
	n = min(n, t.NumRows())
	out := make([][]string, n)
	for r := 0; r < n; r++ {
		row := t.Row(r)
		cells := make([]string, len(row))
		for c, v := range row {
			cells[c] = v.String()
		}
		out[r] = cells
	}
	return out
}
