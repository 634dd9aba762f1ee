package mapper

import (
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hospitalops/admission-api/internal/ingest"
	"github.com/hospitalops/admission-api/internal/model"
	"github.com/hospitalops/admission-api/pkg/logger"
)

func testLogger() *logger.Logger {
	return logger.NewLogger(&logger.Config{Level: logger.ErrorLevel, Output: io.Discard})
}

// combined builds a table from rows of column→value, appending the
// canonical key column from the per-row "key" entry.
func combined(rows []map[string]string) *ingest.Table {
	colSet := map[string]bool{}
	var columns []string
	for _, r := range rows {
		for c := range r {
			if c == "key" || colSet[c] {
				continue
			}
			colSet[c] = true
			columns = append(columns, c)
		}
	}
	data := make([][]string, len(rows))
	keys := make([]string, len(rows))
	for i, r := range rows {
		row := make([]string, len(columns))
		for j, c := range columns {
			row[j] = r[c]
		}
		data[i] = row
		keys[i] = r["key"]
	}
	t := ingest.NewTable(columns, data)
	t.AppendColumn(ingest.KeyColumn, keys)
	return t
}

func TestMapPatientsDedupAndPayers(t *testing.T) {
	m := NewMapper(testLogger())

	out := m.MapAll(combined([]map[string]string{
		{
			"key": "1001", "RUT": "12345678-5", "Nombre": "Ana Rojas",
			"Sexo  (Desc)": "Femenino", "Fecha de Nacimiento": "1950-06-01",
			"Convenio": "Isapre Colmena Golden Cross SA", "Nombre de la aseguradora": "Colmena",
			"score_social": "7",
		},
		// Same patient, second episode: first occurrence wins.
		{
			"key": "1002", "RUT": "12.345.678-5", "Nombre": "Ana R.",
			"Sexo  (Desc)": "F",
		},
		// No payer data at all.
		{
			"key": "1003", "RUT": "9876543-k", "Nombre": "Benito Soto",
			"Sexo  (Desc)": "Masculino",
		},
	}))

	require.Len(t, out.Patients, 2)

	ana := out.Patients[0]
	assert.Equal(t, "12.345.678-5", ana.RUT)
	assert.Equal(t, "Ana Rojas", ana.Name)
	assert.Equal(t, model.SexFemale, ana.Sex)
	require.NotNil(t, ana.BirthDate)
	assert.Equal(t, 1950, ana.BirthDate.Year())
	// Payer text is truncated to the column width.
	assert.Equal(t, "Isapre Colmena Golde", ana.Payer1)
	assert.Len(t, ana.Payer1, model.MaxPayerLen)
	require.NotNil(t, ana.Payer2)
	assert.Equal(t, "Colmena", *ana.Payer2)
	require.NotNil(t, ana.SocialScore)
	assert.Equal(t, 7, *ana.SocialScore)

	benito := out.Patients[1]
	assert.Equal(t, "9.876.543-k", benito.RUT)
	assert.Equal(t, "OTRO", benito.Payer1)
	assert.Nil(t, benito.Payer2)
}

func TestMapBedsRoomSynthesis(t *testing.T) {
	m := NewMapper(testLogger())

	out := m.MapAll(combined([]map[string]string{
		{"key": "1001", "RUT": "12345678-5", "Nombre": "Ana", "Cama": "302-A", "HABITACION": "302"},
		{"key": "1002", "RUT": "11111111-1", "Nombre": "Berta", "Cama": "101-B"},
		// Duplicate bed, ignored.
		{"key": "1003", "RUT": "22222222-2", "Nombre": "Carla", "Cama": "302-A", "HABITACION": "302"},
	}))

	require.Len(t, out.Beds, 2)
	assert.Equal(t, BedRecord{Code: "302-A", Room: "302"}, out.Beds[0])
	assert.Equal(t, BedRecord{Code: "101-B", Room: "HAB-101-B"}, out.Beds[1])
}

func TestMapEpisodes(t *testing.T) {
	m := NewMapper(testLogger())

	out := m.MapAll(combined([]map[string]string{
		{
			"key": "1001", "RUT": "12345678-5", "Nombre": "Ana",
			"Fecha Ingreso completa":         "26/10/2024 15:30",
			"Fecha alta":                     "30/10/2024",
			"Tipo Actividad":                 "Hospitalización",
			"Estancia Norma GRD":             "4,5",
			"Cama":                           "302-A",
			"Servicio Ingreso (Código)":      "URG",
			"Servicio Egreso (Código)":       "MED",
			"Conjunto de Servicios Traslado": "[UCI] [MED]",
			"Fecha       (tr1)":              "27/10/2024",
			"Fecha       (tr2)":              "28/10/2024",
		},
		// Open episode: no discharge in the admission-detail columns.
		{
			"key": "1002.0", "RUT": "11111111-1", "Nombre": "Berta",
			"Fecha Ingreso completa": "01/11/2024",
		},
		// Non-numeric key is dropped.
		{"key": "SIN-CODIGO", "RUT": "22222222-2", "Nombre": "Carla"},
		// Missing patient identifier is dropped.
		{"key": "1004", "Nombre": "Diego"},
	}))

	require.Len(t, out.Episodes, 2)

	ep := out.Episodes[0]
	assert.Equal(t, int64(1001), ep.Code)
	assert.Equal(t, "12.345.678-5", ep.RUT)
	require.NotNil(t, ep.AdmittedAt)
	require.NotNil(t, ep.DischargedAt)
	assert.Equal(t, "302-A", ep.BedCode)
	require.NotNil(t, ep.NormDays)
	assert.Equal(t, 4.5, *ep.NormDays)

	// INGRESO, two ordered TRASLADO visits, EGRESO.
	require.Len(t, ep.Visits, 4)
	assert.Equal(t, model.VisitRoleAdmission, ep.Visits[0].Role)
	assert.Equal(t, "URG", ep.Visits[0].ServiceCode)
	assert.Equal(t, model.VisitRoleTransfer, ep.Visits[1].Role)
	assert.Equal(t, "UCI", ep.Visits[1].ServiceCode)
	require.NotNil(t, ep.Visits[1].TransferOrder)
	assert.Equal(t, 1, *ep.Visits[1].TransferOrder)
	require.NotNil(t, ep.Visits[1].Date)
	assert.Equal(t, 27, ep.Visits[1].Date.Day())
	assert.Equal(t, "MED", ep.Visits[2].ServiceCode)
	require.NotNil(t, ep.Visits[2].TransferOrder)
	assert.Equal(t, 2, *ep.Visits[2].TransferOrder)
	assert.Equal(t, model.VisitRoleDischarge, ep.Visits[3].Role)

	// Float-rendered key coerces to an int code and stays open.
	open := out.Episodes[1]
	assert.Equal(t, int64(1002), open.Code)
	assert.Nil(t, open.DischargedAt)
}

func TestMapCasesAndTransfersSplit(t *testing.T) {
	m := NewMapper(testLogger())

	out := m.MapAll(combined([]map[string]string{
		{
			"key": "1001", "RUT": "12345678-5", "Nombre": "Ana",
			"¿Qué gestión se solicito?": "Homecare UCCC",
			"Fecha admisión":            "26/10/2024",
			"Informe":                   "evaluación inicial",
		},
		{
			"key": "1002", "RUT": "11111111-1", "Nombre": "Berta",
			"¿Qué gestión se solicito?": "Transferencia",
			"Estado":                    "Aceptado",
			"Tipo de Traslado":          "Media complejidad",
			"Centro de Destinatario":    "Hospital Base",
			"Fecha admisión":            "27/10/2024",
		},
		// No management request on this row.
		{"key": "1003", "RUT": "22222222-2", "Nombre": "Carla"},
	}))

	require.Len(t, out.Cases, 1)
	c := out.Cases[0]
	assert.Equal(t, int64(1001), c.EpisodeCode)
	assert.Equal(t, model.CaseTypeHomecareUCCC, c.Type)
	assert.Equal(t, model.CaseStatusStarted, c.Status)
	assert.Equal(t, "evaluación inicial", c.Report)
	assert.Equal(t, 26, c.StartedAt.Day())

	require.Len(t, out.Transfers, 1)
	tr := out.Transfers[0]
	assert.Equal(t, int64(1002), tr.EpisodeCode)
	assert.Equal(t, model.TransferStatusAccepted, tr.Status)
	require.NotNil(t, tr.DestinationCenter)
	assert.Equal(t, "Hospital Base", *tr.DestinationCenter)
	require.NotNil(t, tr.RequestedAt)
}

func TestMapCaseSynthesizedReportAndFallbackDate(t *testing.T) {
	m := NewMapper(testLogger())
	out := m.MapAll(combined([]map[string]string{
		{
			"key": "1001", "RUT": "12345678-5", "Nombre": "Ana",
			"¿Qué gestión se solicito?": "Cobertura",
		},
	}))

	require.Len(t, out.Cases, 1)
	c := out.Cases[0]
	assert.Equal(t, model.CaseTypeCoverage, c.Type)
	assert.True(t, strings.Contains(c.Report, "Cobertura"))
	assert.False(t, c.StartedAt.IsZero())
}
