package ingest

import (
	"strings"
)

// KeyColumn is the canonical reconciled-key column every loaded table
// carries after key resolution.
const KeyColumn = "episodio_cmbd"

// Source identifies one of the four spreadsheet exports.
type Source string

const (
	// SourceGRD is the activity/stay statistics export (GRD).
	SourceGRD Source = "grd"
	// SourceAdmissions is the admission-detail / case-management export.
	SourceAdmissions Source = "admissions"
	// SourceBeds is the bed/room assignment export.
	SourceBeds Source = "beds"
	// SourceSocial is the social-risk score export.
	SourceSocial Source = "social"
)

// RequiredSources lists every export the pipeline needs.
var RequiredSources = []Source{SourceGRD, SourceAdmissions, SourceBeds, SourceSocial}

// Table is an in-memory spreadsheet: ordered columns and string cells.
// Cell values keep whatever the export contained; typed interpretation
// happens in the mapper.
type Table struct {
	Columns []string
	Rows    [][]string

	index map[string]int
}

// NewTable builds a table and its column index. Duplicate column names
// keep the first position, matching how the exports are read.
func NewTable(columns []string, rows [][]string) *Table {
	t := &Table{Columns: columns, Rows: rows, index: make(map[string]int, len(columns))}
	for i, c := range columns {
		if _, ok := t.index[c]; !ok {
			t.index[c] = i
		}
	}
	return t
}

// HasColumn reports whether the table has a column with that exact name.
func (t *Table) HasColumn(name string) bool {
	_, ok := t.index[name]
	return ok
}

// Get returns the trimmed cell at (row, column). The second return is
// false when the column does not exist or the cell is blank, "nan" or
// "None" — the null markers the exports actually contain.
func (t *Table) Get(row int, column string) (string, bool) {
	i, ok := t.index[column]
	if !ok || row < 0 || row >= len(t.Rows) {
		return "", false
	}
	cells := t.Rows[row]
	if i >= len(cells) {
		return "", false
	}
	v := strings.TrimSpace(cells[i])
	if v == "" || strings.EqualFold(v, "nan") || v == "None" {
		return "", false
	}
	return v, true
}

// Key returns the reconciled episode key of a row.
func (t *Table) Key(row int) (string, bool) {
	return t.Get(row, KeyColumn)
}

// Len returns the row count.
func (t *Table) Len() int {
	return len(t.Rows)
}

// AppendColumn adds a column with the given values. Rows are aligned
// to the header first: spreadsheet readers trim trailing empty cells,
// so a short row would otherwise put the new value at the wrong index.
func (t *Table) AppendColumn(name string, values []string) {
	width := len(t.Columns)
	t.Columns = append(t.Columns, name)
	if _, ok := t.index[name]; !ok {
		t.index[name] = width
	}
	for i := range t.Rows {
		row := t.Rows[i]
		if len(row) > width {
			// Cells beyond the header have no column and are unreachable.
			row = row[:width]
		}
		for len(row) < width {
			row = append(row, "")
		}
		v := ""
		if i < len(values) {
			v = values[i]
		}
		t.Rows[i] = append(row, v)
	}
}
