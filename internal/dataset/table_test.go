package dataset

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPeople(t *testing.T) *Table {
	t.Helper()
	tbl := New()
	require.NoError(t, tbl.AddColumn(ColumnFromText("id", []string{"1", "2"})))
	require.NoError(t, tbl.AddColumn(ColumnFromText("name", []string{"Alice", "Bob"})))
	return tbl
}

func TestTable_AddColumnEnforcesLength(t *testing.T) {
	tbl := newPeople(t)

	err := tbl.AddColumn(ColumnFromText("age", []string{"30"}))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrLengthMismatch))
	assert.Equal(t, 2, tbl.NumCols())
	assert.Equal(t, 2, tbl.NumRows())
}

func TestTable_SetCell(t *testing.T) {
	tbl := newPeople(t)

	require.NoError(t, tbl.SetCell(0, 0, "10"))
	v, err := tbl.Cell(0, 0)
	require.NoError(t, err)
	i, ok := v.Int64()
	require.True(t, ok)
	assert.Equal(t, int64(10), i)

	err = tbl.SetCell(0, 0, "ten")
	assert.True(t, errors.Is(err, ErrInvalidValue))

	require.NoError(t, tbl.SetCell(1, 1, ""))
	v, _ = tbl.Cell(1, 1)
	assert.True(t, v.IsMissing())

	assert.True(t, errors.Is(tbl.SetCell(5, 0, "1"), ErrRowRange))
	assert.True(t, errors.Is(tbl.SetCell(0, 9, "1"), ErrColumnRange))
}

func TestTable_AppendAndDeleteRow(t *testing.T) {
	tbl := newPeople(t)

	require.NoError(t, tbl.AppendRow([]string{"3"}))
	assert.Equal(t, 3, tbl.NumRows())
	v, _ := tbl.Cell(2, 1)
	assert.True(t, v.IsMissing(), "short rows are padded with missing values")

	// A bad cell leaves every column untouched.
	require.Error(t, tbl.AppendRow([]string{"x", "Eve"}))
	for _, c := range tbl.Columns() {
		assert.Len(t, c.Values, 3)
	}

	require.NoError(t, tbl.DeleteRow(0))
	assert.Equal(t, 2, tbl.NumRows())
	v, _ = tbl.Cell(0, 1)
	assert.Equal(t, "Bob", v.String())

	assert.True(t, errors.Is(tbl.DeleteRow(7), ErrRowRange))
}

func TestTable_ConvertColumn(t *testing.T) {
	tbl := New()
	require.NoError(t, tbl.AddColumn(ColumnFromText("active", []string{"yes", "no", ""})))
	require.NoError(t, tbl.AddColumn(ColumnFromText("joined", []string{"2024-01-02", "oops", ""})))

	require.NoError(t, tbl.ConvertColumn(0, KindBool))
	col := tbl.Columns()[0]
	assert.Equal(t, KindBool, col.Kind)
	assert.Equal(t, "true", col.Values[0].String())
	assert.True(t, col.Values[2].IsMissing())

	err := tbl.ConvertColumn(1, KindDatetime)
	require.Error(t, err)
	assert.Equal(t, KindString, tbl.Columns()[1].Kind, "failed conversion leaves the column untouched")
	assert.Equal(t, "oops", tbl.Columns()[1].Values[1].String())
}

func TestTable_RowKeyAndClone(t *testing.T) {
	tbl := newPeople(t)
	clone := tbl.Clone()

	require.NoError(t, clone.SetCell(0, 1, "Zed"))
	assert.NotEqual(t, tbl.RowKey(0), clone.RowKey(0))
	assert.Equal(t, tbl.RowKey(1), clone.RowKey(1))
	assert.Equal(t, RowKey([]Value{Int(2), Text("Bob")}), tbl.RowKey(1))
}

func TestTable_MissingCount(t *testing.T) {
	tbl := New()
	require.NoError(t, tbl.AddColumn(ColumnFromText("a", []string{"1", "", "3"})))
	require.NoError(t, tbl.AddColumn(ColumnFromText("b", []string{"", "", "x"})))
	assert.Equal(t, 3, tbl.MissingCount())
	assert.Equal(t, 2, tbl.Columns()[1].MissingCount())
}
