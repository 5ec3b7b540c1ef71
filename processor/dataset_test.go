package processor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTabDelimited(t *testing.T) {
	data := []byte("Provider\tSKU\tUnits\nAPPLE\tcom.example.app\t3\nAPPLE\t\t1\n")

	ds, err := ParseTabDelimited(data)
	require.NoError(t, err)

	assert.Equal(t, []string{"Provider", "SKU", "Units"}, ds.Columns)
	require.Len(t, ds.Rows, 2)
	assert.Equal(t, "com.example.app", ds.Rows[0][1])
	assert.Nil(t, ds.Rows[1][1], "empty fields decode as null")
}

func TestParseTabDelimitedRaggedTrailer(t *testing.T) {
	// Some report files end with a short summary line; missing fields pad
	// out as nulls.
	data := []byte("Provider\tSKU\tUnits\nAPPLE\tcom.example.app\t3\nTotal\n")

	ds, err := ParseTabDelimited(data)
	require.NoError(t, err)
	require.Len(t, ds.Rows, 2)
	assert.Equal(t, "Total", ds.Rows[1][0])
	assert.Nil(t, ds.Rows[1][1])
	assert.Nil(t, ds.Rows[1][2])
}

func TestParseTabDelimitedEmpty(t *testing.T) {
	_, err := ParseTabDelimited([]byte(""))
	require.Error(t, err)
}

func TestDatasetReorder(t *testing.T) {
	ds := &Dataset{
		Columns: []string{"b", "a"},
		Rows:    [][]interface{}{{"1b", "1a"}, {"2b", "2a"}},
	}

	require.NoError(t, ds.Reorder([]string{"a", "b"}))
	assert.Equal(t, []string{"a", "b"}, ds.Columns)
	assert.Equal(t, []interface{}{"1a", "1b"}, ds.Rows[0])
	assert.Equal(t, []interface{}{"2a", "2b"}, ds.Rows[1])

	assert.Error(t, ds.Reorder([]string{"a", "missing"}))
	assert.Error(t, ds.Reorder([]string{"a"}))
}

func TestDatasetAppend(t *testing.T) {
	a := &Dataset{Columns: []string{"x", "y"}, Rows: [][]interface{}{{"1", "2"}}}
	b := &Dataset{Columns: []string{"x", "y"}, Rows: [][]interface{}{{"3", "4"}}}
	c := &Dataset{Columns: []string{"y", "x"}, Rows: nil}

	require.NoError(t, a.Append(b))
	assert.Len(t, a.Rows, 2)

	assert.Error(t, a.Append(c), "positional column mismatch must be rejected")
}
