package ingest

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/hospitalops/admission-api/pkg/logger"
)

// ErrNoKeyColumn is returned when a source has no resolvable episode
// key column. This is fatal for the whole load: the pipeline cannot
// reconcile without all four sources keyed.
var ErrNoKeyColumn = fmt.Errorf("no episode key column")

// keyAliases lists the known episode-key column names per source, in
// resolution order. Sources without exact aliases fall straight through
// to the substring search.
var keyAliases = map[Source][]string{
	SourceAdmissions: {"Episodio:"},
	SourceSocial:     {"CÓDIGO EPISODIO CMBD"},
	SourceGRD:        nil,
	SourceBeds:       nil,
}

// Format tells the loader how to parse a source stream.
type Format int

const (
	FormatXLSX Format = iota
	FormatCSV
)

// File is one raw source stream plus its format.
type File struct {
	Reader io.Reader
	Format Format
}

// Loader reads the raw exports into Tables, resolves each source's
// episode key column and drops rows without a usable key.
type Loader struct {
	log *logger.Logger
}

func NewLoader(log *logger.Logger) *Loader {
	return &Loader{log: log}
}

// Load reads every required source. It fails when any source is
// missing, unreadable or lacks a recognizable key column; sources are
// read independently so diagnostics name the offending one.
func (l *Loader) Load(files map[Source]File) (map[Source]*Table, error) {
	tables := make(map[Source]*Table, len(RequiredSources))
	for _, src := range RequiredSources {
		f, ok := files[src]
		if !ok {
			return nil, fmt.Errorf("source %s: file missing", src)
		}
		t, err := l.loadOne(src, f)
		if err != nil {
			return nil, fmt.Errorf("source %s: %w", src, err)
		}
		tables[src] = t
	}
	return tables, nil
}

func (l *Loader) loadOne(src Source, f File) (*Table, error) {
	var (
		rows [][]string
		err  error
	)
	switch f.Format {
	case FormatCSV:
		rows, err = readCSV(f.Reader)
	default:
		rows, err = readXLSX(f.Reader)
	}
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("empty file")
	}

	header := make([]string, len(rows[0]))
	for i, c := range rows[0] {
		header[i] = strings.TrimSpace(c)
	}
	t := NewTable(header, rows[1:])

	keyCol, err := resolveKeyColumn(src, header)
	if err != nil {
		return nil, err
	}
	l.log.Debug("resolved episode key column", "source", src, "column", keyCol)

	// Materialize the canonical key column, then drop rows without a
	// usable key.
	keys := make([]string, t.Len())
	for i := range t.Rows {
		if v, ok := t.Get(i, keyCol); ok {
			keys[i] = v
		}
	}
	t.AppendColumn(KeyColumn, keys)

	kept := t.Rows[:0]
	dropped := 0
	for i := range t.Rows {
		if keys[i] == "" {
			dropped++
			continue
		}
		kept = append(kept, t.Rows[i])
	}
	t.Rows = kept
	if dropped > 0 {
		l.log.Warn("dropped rows without episode key", "source", src, "dropped", dropped, "kept", t.Len())
	}
	l.log.Info("source loaded", "source", src, "rows", t.Len(), "columns", len(t.Columns))
	return t, nil
}

// resolveKeyColumn tries the source's exact aliases first, then any
// column whose name contains "episodio" case-insensitively.
func resolveKeyColumn(src Source, header []string) (string, error) {
	for _, alias := range keyAliases[src] {
		for _, c := range header {
			if c == alias {
				return c, nil
			}
		}
	}
	for _, c := range header {
		if strings.Contains(strings.ToLower(c), "episodio") {
			return c, nil
		}
	}
	return "", ErrNoKeyColumn
}

func readXLSX(r io.Reader) ([][]string, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("workbook has no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %q: %w", sheets[0], err)
	}
	return rows, nil
}

func readCSV(r io.Reader) ([][]string, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	rows, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read csv: %w", err)
	}
	return rows, nil
}
