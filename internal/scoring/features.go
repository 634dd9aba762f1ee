package scoring

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/hospitalops/admission-api/internal/ingest"
)

// Feature column names, matching the contract the training side
// exports.
const (
	featAge            = "edad"
	featSex            = "sexo"
	featAdmissionType  = "tipo_ingreso"
	featPayer          = "prevision"
	featEntryService   = "serv_ingreso"
	featDiagnosis      = "diagnostico_principal"
	featDxCount        = "n_diagnosticos"
	featMainProcedure  = "procedimiento_principal"
	featSecProcCount   = "n_procedimientos_sec"
	featServiceCount   = "n_servicios"
	featNormStay       = "estancia_norma_grd"
	featGRDWeight      = "peso_grd_medio"
	featSeverity       = "ir_gravedad"
	featMortality      = "ir_mortalidad"
	featGRDType        = "ir_tipo_grd"
	featGRDCode        = "ir_grd_codigo"
)

// featureColumns is the full ordered set the builder produces.
var featureColumns = []string{
	featAge, featSex, featAdmissionType, featPayer, featEntryService,
	featDiagnosis, featDxCount, featMainProcedure, featSecProcCount,
	featServiceCount, featNormStay, featGRDWeight, featSeverity,
	featMortality, featGRDType, featGRDCode,
}

// categoricalColumns go through the artifact's fitted encoders.
var categoricalColumns = map[string]bool{
	featPayer:        true,
	featEntryService: true,
	featDiagnosis:    true,
	featGRDCode:      true,
}

// Source column names in the stay-statistics export. The uneven
// spacing is exactly what the export produces.
var (
	ageColumns = []string{"Edad en años", "Edad en Años", "edad", "Edad"}

	colSex          = "Sexo  (Desc)"
	colAdmissionTyp = "Tipo Ingreso (Descripción)"
	colPayer        = "Prevision (Cód)"
	colEntryService = "Servicio Ingreso (Código)"
	colDiagnosis    = "Diagnóstico   Principal"
	colDxSet        = "Conjunto Dx"
	colMainProc     = "Proced 01 Principal    (cod)"
	colSecProcSet   = "Conjunto Procedimientos Secundarios"
	colServiceSet   = "Conjunto de Servicios Traslado"
	colNormStay     = "Estancia Norma GRD"
	colGRDWeight    = "Peso GRD Medio (Todos)"
	colSeverity     = "IR Gravedad  (desc)"
	colMortality    = "IR Mortalidad  (desc)"
	colGRDType      = "IR Tipo GRD"
	colGRDCode      = "IR GRD (Código)"
)

var bracketItem = regexp.MustCompile(`\[(.*?)\]`)

// Row is one episode's feature vector before encoding: numeric values
// plus the raw categorical strings.
type Row struct {
	Episode     int64
	Numeric     map[string]float64
	Categorical map[string]string
}

// Frame is the built feature matrix for one stay-statistics table.
type Frame struct {
	Columns []string
	Rows    []Row
}

// Builder derives the model's feature vector from the stay-statistics
// table. Cell-level gaps become NaN (or the column's sentinel); only a
// missing age column is fatal, since a frame without age cannot have
// come from the right export.
type Builder struct{}

func NewBuilder() *Builder { return &Builder{} }

func (b *Builder) Build(t *ingest.Table) (*Frame, error) {
	ageCol := ""
	for _, c := range ageColumns {
		if t.HasColumn(c) {
			ageCol = c
			break
		}
	}
	if ageCol == "" {
		return nil, fmt.Errorf("stay-statistics table has no age column")
	}

	frame := &Frame{Columns: featureColumns, Rows: make([]Row, 0, t.Len())}
	for i := 0; i < t.Len(); i++ {
		key, ok := t.Key(i)
		if !ok {
			continue
		}
		code, err := strconv.ParseInt(strings.TrimSuffix(key, ".0"), 10, 64)
		if err != nil {
			continue
		}

		row := Row{
			Episode:     code,
			Numeric:     make(map[string]float64, len(featureColumns)),
			Categorical: make(map[string]string, len(categoricalColumns)),
		}

		row.Numeric[featAge] = numericCell(t, i, ageCol)
		row.Numeric[featSex] = mapSexFeature(cell(t, i, colSex))
		row.Numeric[featAdmissionType] = mapAdmissionType(cell(t, i, colAdmissionTyp))

		row.Categorical[featPayer] = cell(t, i, colPayer)
		row.Categorical[featEntryService] = cell(t, i, colEntryService)
		row.Categorical[featDiagnosis] = cell(t, i, colDiagnosis)
		row.Categorical[featGRDCode] = cell(t, i, colGRDCode)

		row.Numeric[featDxCount] = float64(bracketCount(cell(t, i, colDxSet)))
		row.Numeric[featSecProcCount] = float64(bracketCount(cell(t, i, colSecProcSet)))
		row.Numeric[featServiceCount] = float64(bracketCount(cell(t, i, colServiceSet)))

		row.Numeric[featMainProcedure] = intCell(t, i, colMainProc, -1)
		row.Numeric[featNormStay] = numericCell(t, i, colNormStay)
		row.Numeric[featGRDWeight] = numericCell(t, i, colGRDWeight)

		row.Numeric[featSeverity] = mapSeverity(cell(t, i, colSeverity))
		row.Numeric[featMortality] = mapSeverity(cell(t, i, colMortality))
		row.Numeric[featGRDType] = mapGRDType(cell(t, i, colGRDType))

		frame.Rows = append(frame.Rows, row)
	}
	return frame, nil
}

func cell(t *ingest.Table, row int, col string) string {
	v, _ := t.Get(row, col)
	return v
}

func numericCell(t *ingest.Table, row int, col string) float64 {
	v, ok := t.Get(row, col)
	if !ok {
		return math.NaN()
	}
	f, err := strconv.ParseFloat(strings.ReplaceAll(v, ",", "."), 64)
	if err != nil {
		return math.NaN()
	}
	return f
}

func intCell(t *ingest.Table, row int, col string, sentinel float64) float64 {
	v, ok := t.Get(row, col)
	if !ok {
		return sentinel
	}
	f, err := strconv.ParseFloat(strings.ReplaceAll(v, ",", "."), 64)
	if err != nil {
		return sentinel
	}
	return float64(int64(f))
}

func bracketCount(s string) int {
	if s == "" {
		return 0
	}
	return len(bracketItem.FindAllString(s, -1))
}

// mapSexFeature encodes female as 0 and male as 1; anything else is a
// gap.
func mapSexFeature(raw string) float64 {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "MUJER", "FEMENINO", "F":
		return 0
	case "HOMBRE", "MASCULINO", "M":
		return 1
	default:
		return math.NaN()
	}
}

func mapAdmissionType(raw string) float64 {
	switch strings.TrimSpace(raw) {
	case "Obstétrica":
		return 0
	case "Programado":
		return 1
	case "Urgente":
		return 2
	default:
		return math.NaN()
	}
}

// mapSeverity encodes the ordinal severity/mortality descriptions.
// "SIN DATO" and unknown values are gaps, not zeroes.
func mapSeverity(raw string) float64 {
	switch strings.TrimRight(strings.ToUpper(strings.TrimSpace(raw)), ".") {
	case "SIN GRAVEDAD":
		return 0
	case "MENOR":
		return 1
	case "MODERADA":
		return 2
	case "MAYOR":
		return 3
	default:
		return math.NaN()
	}
}

func mapGRDType(raw string) float64 {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "M":
		return 0
	case "N":
		return 1
	case "O":
		return 2
	case "Q":
		return 3
	case "X":
		return 4
	default:
		return -1
	}
}
