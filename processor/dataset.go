package processor

import (
	"bytes"
	"encoding/csv"
	"fmt"
)

// Dataset is an in-memory tabular dataset. Cell values are raw strings as
// decoded from a report file, or typed nullable values (guregu/null, with
// shopspring decimals for monetary columns) once the dataset has been
// conformed to a schema. A nil cell is always treated as null.
type Dataset struct {
	Columns []string
	Rows    [][]interface{}
}

// ParseTabDelimited decodes one tab-delimited report file with a header row.
// The App Store API pads some files with ragged trailer lines, so records
// shorter than the header are right-padded with nulls and longer ones are an
// error.
func ParseTabDelimited(data []byte) (*Dataset, error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.Comma = '\t'
	r.LazyQuotes = true
	r.FieldsPerRecord = -1

	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("error decoding tab-delimited data: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("report file has no header row")
	}

	header := records[0]
	ds := &Dataset{Columns: append([]string(nil), header...)}
	for i, record := range records[1:] {
		if len(record) > len(header) {
			return nil, fmt.Errorf("row %d has %d fields, header has %d", i+1, len(record), len(header))
		}
		row := make([]interface{}, len(header))
		for j := range header {
			if j < len(record) && record[j] != "" {
				row[j] = record[j]
			}
		}
		ds.Rows = append(ds.Rows, row)
	}
	return ds, nil
}

// ColumnIndex returns the position of the named column, or -1.
func (d *Dataset) ColumnIndex(name string) int {
	for i, c := range d.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// HasColumn reports whether the named column exists.
func (d *Dataset) HasColumn(name string) bool {
	return d.ColumnIndex(name) >= 0
}

// RenameColumn renames a column in place. Missing columns are ignored.
func (d *Dataset) RenameColumn(from, to string) {
	if i := d.ColumnIndex(from); i >= 0 {
		d.Columns[i] = to
	}
}

// AddColumn appends a column whose every cell is value.
func (d *Dataset) AddColumn(name string, value interface{}) {
	d.Columns = append(d.Columns, name)
	for i := range d.Rows {
		d.Rows[i] = append(d.Rows[i], value)
	}
}

// Reorder rearranges the dataset columns into the given order. Every name
// must already be present.
func (d *Dataset) Reorder(names []string) error {
	if len(names) != len(d.Columns) {
		return fmt.Errorf("reorder expects %d columns, got %d", len(d.Columns), len(names))
	}
	indexes := make([]int, len(names))
	for i, name := range names {
		idx := d.ColumnIndex(name)
		if idx < 0 {
			return fmt.Errorf("reorder references unknown column %q", name)
		}
		indexes[i] = idx
	}

	d.Columns = append([]string(nil), names...)
	for r, row := range d.Rows {
		next := make([]interface{}, len(indexes))
		for i, idx := range indexes {
			next[i] = row[idx]
		}
		d.Rows[r] = next
	}
	return nil
}

// Append adds the rows of other to d. Column sets must match positionally.
func (d *Dataset) Append(other *Dataset) error {
	if len(other.Columns) != len(d.Columns) {
		return fmt.Errorf("cannot append dataset with %d columns to one with %d", len(other.Columns), len(d.Columns))
	}
	for i, c := range d.Columns {
		if other.Columns[i] != c {
			return fmt.Errorf("column mismatch at position %d: %q vs %q", i, c, other.Columns[i])
		}
	}
	d.Rows = append(d.Rows, other.Rows...)
	return nil
}
