package analysis

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/PreChart2DB/internal/dataset"
)

func stats(d Description) map[string]string {
	out := make(map[string]string, len(d.Stats))
	for _, s := range d.Stats {
		out[s.Label] = s.Value
	}
	return out
}

func TestSummarize(t *testing.T) {
	tbl := dataset.New()
	require.NoError(t, tbl.AddColumn(dataset.ColumnFromText("a", []string{"1", "", "3"})))
	require.NoError(t, tbl.AddColumn(dataset.ColumnFromText("b", []string{"x", "", ""})))

	s := Summarize(tbl)
	assert.Equal(t, 3, s.Rows)
	assert.Equal(t, 2, s.Columns)
	assert.Equal(t, 3, s.Missing)
	assert.Equal(t, ColumnInfo{Name: "b", Kind: dataset.KindString, NonNull: 1, Missing: 2}, s.Info[1])
}

func TestDescribe_Numeric(t *testing.T) {
	col := dataset.ColumnFromText("n", []string{"1", "2", "3", "4", ""})
	d := Describe(col)
	require.True(t, d.Numeric)

	got := stats(d)
	assert.Equal(t, "4", got["count"])
	assert.Equal(t, "2.5", got["mean"])
	assert.Equal(t, "1.29099", got["std"])
	assert.Equal(t, "1", got["min"])
	assert.Equal(t, "1.75", got["25%"])
	assert.Equal(t, "2.5", got["50%"])
	assert.Equal(t, "3.25", got["75%"])
	assert.Equal(t, "4", got["max"])
}

func TestDescribe_Text(t *testing.T) {
	col := dataset.ColumnFromText("city", []string{"Seoul", "Busan", "Seoul", ""})
	got := stats(Describe(col))

	assert.Equal(t, "3", got["count"])
	assert.Equal(t, "2", got["unique"])
	assert.Equal(t, "Seoul", got["top"])
	assert.Equal(t, "2", got["freq"])
}

func TestDescribe_EmptyNumeric(t *testing.T) {
	col := &dataset.Column{Name: "n", Kind: dataset.KindInt, Values: []dataset.Value{dataset.Missing()}}
	got := stats(Describe(col))
	assert.Equal(t, "0", got["count"])
	assert.Equal(t, "NaN", got["mean"])
}

func TestValueCounts(t *testing.T) {
	col := dataset.ColumnFromText("c", []string{"b", "a", "", "b", "a", "c", ""})

	all := ValueCounts(col, 0)
	require.Len(t, all, 4)
	assert.Equal(t, []Count{
		{Value: MissingLabel, Missing: true, Count: 2},
		{Value: "a", Count: 2},
		{Value: "b", Count: 2},
		{Value: "c", Count: 1},
	}, all)

	assert.Len(t, ValueCounts(col, 2), 2)
	assert.Equal(t, 3, UniqueCount(col))
}

func TestHistogram(t *testing.T) {
	col := dataset.ColumnFromText("x", []string{"0", "1", "2", "3", "4", "10"})

	bins, err := Histogram(col, 5)
	require.NoError(t, err)
	require.Len(t, bins, 5)
	assert.Equal(t, 0.0, bins[0].Lower)
	assert.Equal(t, 10.0, bins[4].Upper)
	assert.Equal(t, 2, bins[0].Count)
	assert.Equal(t, 2, bins[1].Count)
	assert.Equal(t, 1, bins[4].Count, "the maximum falls in the last bin")

	total := 0
	for _, b := range bins {
		total += b.Count
	}
	assert.Equal(t, 6, total)

	same, err := Histogram(dataset.ColumnFromText("s", []string{"7", "7"}), 0)
	require.NoError(t, err)
	require.Len(t, same, 1)
	assert.Equal(t, 2, same[0].Count)

	_, err = Histogram(dataset.ColumnFromText("t", []string{"a"}), 3)
	assert.True(t, errors.Is(err, ErrNotNumeric))
}

func TestBox(t *testing.T) {
	b, ok, err := Box(dataset.ColumnFromText("x", []string{"5", "1", "3"}))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, BoxStats{Min: 1, Q1: 2, Median: 3, Q3: 4, Max: 5}, b)
}

func TestStdDev(t *testing.T) {
	assert.True(t, math.IsNaN(StdDev([]float64{1})))
	assert.InDelta(t, 1.0, StdDev([]float64{1, 2, 3}), 1e-12)
}

func TestHead(t *testing.T) {
	tbl := dataset.New()
	require.NoError(t, tbl.AddColumn(dataset.ColumnFromText("a", []string{"1", "2", "3"})))
	assert.Equal(t, [][]string{{"1"}, {"2"}}, Head(tbl, 2))
	assert.Len(t, Head(tbl, 10), 3)
}
