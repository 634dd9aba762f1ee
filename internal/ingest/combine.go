package ingest

import (
	"fmt"
	"strings"
)

// sourceSuffix disambiguates column names that collide with the
// admissions base during the join.
var sourceSuffix = map[Source]string{
	SourceGRD:    "_grd",
	SourceBeds:   "_beds",
	SourceSocial: "_social",
}

// joinOrder is the order secondary sources are merged onto the base.
var joinOrder = []Source{SourceGRD, SourceBeds, SourceSocial}

// Normalize trims whitespace from every cell and drops rows that are
// entirely blank. It mutates the table in place and returns it.
func Normalize(t *Table) *Table {
	kept := t.Rows[:0]
	for _, row := range t.Rows {
		blank := true
		for i, cell := range row {
			row[i] = strings.TrimSpace(cell)
			if row[i] != "" {
				blank = false
			}
		}
		if !blank {
			kept = append(kept, row)
		}
	}
	t.Rows = kept
	return t
}

// Combine left-joins the grd, beds and social tables onto the
// admissions base by episode key. Every admissions row survives;
// rows in secondary sources with no matching admission are ignored.
// Colliding column names are suffixed per source. When a secondary
// source holds several rows for one episode the first one wins.
func Combine(tables map[Source]*Table) (*Table, error) {
	base, ok := tables[SourceAdmissions]
	if !ok || base.Len() == 0 {
		return nil, fmt.Errorf("admissions source is missing or empty")
	}
	for _, src := range joinOrder {
		t, ok := tables[src]
		if !ok || t.Len() == 0 {
			return nil, fmt.Errorf("source %s is missing or empty", src)
		}
	}

	out := &Table{
		Columns: append([]string(nil), base.Columns...),
		Rows:    make([][]string, base.Len()),
		index:   make(map[string]int, len(base.Columns)),
	}
	for i, c := range out.Columns {
		out.index[c] = i
	}
	for i, row := range base.Rows {
		out.Rows[i] = append([]string(nil), row...)
	}

	for _, src := range joinOrder {
		joinSource(out, tables[src], sourceSuffix[src])
	}
	return out, nil
}

func joinSource(out *Table, t *Table, suffix string) {
	// First secondary row per episode wins.
	byKey := make(map[string]int, t.Len())
	for i := range t.Rows {
		k, ok := t.Key(i)
		if !ok {
			continue
		}
		if _, seen := byKey[k]; !seen {
			byKey[k] = i
		}
	}

	for _, col := range t.Columns {
		if col == KeyColumn {
			continue
		}
		name := col
		if out.HasColumn(name) {
			name = col + suffix
		}
		values := make([]string, out.Len())
		for i := range out.Rows {
			k, ok := out.Key(i)
			if !ok {
				continue
			}
			ri, ok := byKey[k]
			if !ok {
				continue
			}
			if v, ok := t.Get(ri, col); ok {
				values[i] = v
			}
		}
		out.AppendColumn(name, values)
	}
}
