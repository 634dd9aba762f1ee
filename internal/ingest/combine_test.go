package ingest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func keyed(columns []string, rows [][]string) *Table {
	t := NewTable(columns, rows)
	keys := make([]string, t.Len())
	for i := range rows {
		keys[i] = rows[i][0]
	}
	t.AppendColumn(KeyColumn, keys)
	return t
}

func TestNormalize(t *testing.T) {
	tbl := NewTable(
		[]string{"a", "b"},
		[][]string{
			{" 1 ", " x "},
			{"", "  "},
			{"2", "y"},
		},
	)
	Normalize(tbl)

	require.Equal(t, 2, tbl.Len())
	assert.Equal(t, []string{"1", "x"}, tbl.Rows[0])
	assert.Equal(t, []string{"2", "y"}, tbl.Rows[1])
}

func TestCombineLeftJoin(t *testing.T) {
	tables := map[Source]*Table{
		SourceAdmissions: keyed(
			[]string{"Episodio:", "Nombre", "Servicio"},
			[][]string{
				{"1001", "Ana", "Medicina"},
				{"1002", "Berta", "UCI"},
			},
		),
		SourceGRD: keyed(
			[]string{"episodio", "Peso GRD", "Servicio"},
			[][]string{{"1001", "1.25", "MED"}},
		),
		SourceBeds: keyed(
			[]string{"episodio", "Cama"},
			[][]string{
				{"1001", "302-A"},
				{"9999", "101-B"},
			},
		),
		SourceSocial: keyed(
			[]string{"CÓDIGO EPISODIO CMBD", "Puntaje Social"},
			[][]string{{"1002", "7"}},
		),
	}

	out, err := Combine(tables)
	require.NoError(t, err)
	require.Equal(t, 2, out.Len())

	// Matched grd and bed data lands on the right admission row.
	v, ok := out.Get(0, "Peso GRD")
	assert.True(t, ok)
	assert.Equal(t, "1.25", v)
	v, ok = out.Get(0, "Cama")
	assert.True(t, ok)
	assert.Equal(t, "302-A", v)

	// Colliding column names get the source suffix.
	v, ok = out.Get(0, "Servicio")
	assert.True(t, ok)
	assert.Equal(t, "Medicina", v)
	v, ok = out.Get(0, "Servicio_grd")
	assert.True(t, ok)
	assert.Equal(t, "MED", v)

	// Social data only on its episode; unmatched cells stay absent.
	_, ok = out.Get(0, "Puntaje Social")
	assert.False(t, ok)
	v, ok = out.Get(1, "Puntaje Social")
	assert.True(t, ok)
	assert.Equal(t, "7", v)
	_, ok = out.Get(1, "Peso GRD")
	assert.False(t, ok)

	// Secondary rows without a matching admission are dropped.
	for i := 0; i < out.Len(); i++ {
		v, _ := out.Get(i, "Cama")
		assert.NotEqual(t, "101-B", v)
	}
}

func TestCombineFirstSecondaryRowWins(t *testing.T) {
	tables := map[Source]*Table{
		SourceAdmissions: keyed(
			[]string{"Episodio:"},
			[][]string{{"1001"}},
		),
		SourceGRD: keyed(
			[]string{"episodio", "Peso GRD"},
			[][]string{
				{"1001", "1.1"},
				{"1001", "2.2"},
			},
		),
		SourceBeds: keyed(
			[]string{"episodio", "Cama"},
			[][]string{{"1001", "302-A"}},
		),
		SourceSocial: keyed(
			[]string{"episodio", "Puntaje"},
			[][]string{{"1001", "5"}},
		),
	}

	out, err := Combine(tables)
	require.NoError(t, err)

	v, ok := out.Get(0, "Peso GRD")
	assert.True(t, ok)
	assert.Equal(t, "1.1", v)
}

func TestCombineMissingSource(t *testing.T) {
	tables := map[Source]*Table{
		SourceAdmissions: keyed([]string{"Episodio:"}, [][]string{{"1001"}}),
		SourceGRD:        keyed([]string{"episodio"}, [][]string{{"1001"}}),
		SourceBeds:       keyed([]string{"episodio"}, [][]string{{"1001"}}),
	}

	_, err := Combine(tables)
	require.Error(t, err)
	assert.Contains(t, err.Error(), string(SourceSocial))
}

func TestCombineEmptyAdmissions(t *testing.T) {
	tables := map[Source]*Table{
		SourceAdmissions: keyed([]string{"Episodio:"}, nil),
		SourceGRD:        keyed([]string{"episodio"}, [][]string{{"1"}}),
		SourceBeds:       keyed([]string{"episodio"}, [][]string{{"1"}}),
		SourceSocial:     keyed([]string{"episodio"}, [][]string{{"1"}}),
	}

	_, err := Combine(tables)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "admissions")
}
