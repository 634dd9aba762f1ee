package mapper

import (
	"github.com/hospitalops/admission-api/internal/ingest"
)

// field identifies one logical value the mapper extracts from the
// combined table.
type field string

const (
	fieldRUT             field = "rut"
	fieldName            field = "name"
	fieldSex             field = "sex"
	fieldBirthDate       field = "birth_date"
	fieldPayerPlan       field = "payer_plan"
	fieldInsurer         field = "insurer"
	fieldSocialScore     field = "social_score"
	fieldBedCode         field = "bed_code"
	fieldRoom            field = "room"
	fieldAdmittedAt      field = "admitted_at"
	fieldDischargedAt    field = "discharged_at"
	fieldActivityType    field = "activity_type"
	fieldOutlierFlag     field = "outlier_flag"
	fieldSpecialty       field = "specialty"
	fieldPreSurgical     field = "pre_surgical_days"
	fieldPostSurgical    field = "post_surgical_days"
	fieldNormDays        field = "norm_days"
	fieldServiceAdmit    field = "service_admission"
	fieldServiceEgress   field = "service_discharge"
	fieldTransferSet     field = "transfer_service_set"
	fieldCaseType        field = "case_type"
	fieldCaseDate        field = "case_date"
	fieldCaseReport      field = "case_report"
	fieldCaseUser        field = "case_user"
	fieldTransferStatus  field = "transfer_status"
	fieldTransferType    field = "transfer_type"
	fieldTransferReason  field = "transfer_reason"
	fieldDestCenter      field = "destination_center"
	fieldRejectReason    field = "rejection_reason"
	fieldCancelReason    field = "cancellation_reason"
	fieldRequestType     field = "request_type"
)

// aliases maps each field to the column names it may appear under in
// the combined table, in resolution order. Suffixed variants cover the
// names a column takes after a join collision. The discharge timestamp
// deliberately has no suffixed aliases: discharge is sourced from the
// admission-detail export only, so an open episode stays open until
// that export closes it.
var aliases = map[field][]string{
	fieldRUT:  {"RUT", "rut", "RUT_PACIENTE", "rut_paciente"},
	fieldName: {"Nombre", "nombre", "NOMBRE_PACIENTE", "nombre_paciente", "Nombre del Paciente"},
	fieldSex:  {"Sexo  (Desc)", "Sexo  (Desc)_grd", "Sexo (Desc)"},

	fieldBirthDate:   {"Fecha de Nacimiento"},
	fieldPayerPlan:   {"Convenio"},
	fieldInsurer:     {"Nombre de la aseguradora"},
	fieldSocialScore: {"score_social", "score_social_social"},

	fieldBedCode: {"Cama", "cama", "CAMA", "CAMA_beds", "Cama_beds"},
	fieldRoom:    {"Habitacion", "habitacion", "HABITACION", "HABITACION_beds"},

	fieldAdmittedAt:   {"Fecha Ingreso completa", "Fecha Ingreso completa_grd"},
	fieldDischargedAt: {"Fecha alta"},

	fieldActivityType: {"Tipo Actividad", "Tipo Actividad_grd"},
	fieldOutlierFlag:  {"Estancia Inlier / Outlier", "Estancia Inlier / Outlier_grd"},
	fieldSpecialty:    {"Especialidad médica de la intervención (des)", "Especialidad médica de la intervención (des)_grd"},
	fieldPreSurgical:  {"Estancias Prequirurgicas Int  -Episodio-", "Estancias Prequirurgicas Int  -Episodio-_grd"},
	fieldPostSurgical: {"Estancias Postquirurgicas Int  -Episodio-", "Estancias Postquirurgicas Int  -Episodio-_grd"},
	fieldNormDays:     {"Estancia Norma GRD", "Estancia Norma GRD_grd"},

	fieldServiceAdmit:  {"Servicio Ingreso (Código)", "Servicio Ingreso (Código)_grd"},
	fieldServiceEgress: {"Servicio Egreso (Código)", "Servicio Egreso (Código)_grd"},
	fieldTransferSet:   {"Conjunto de Servicios Traslado", "Conjunto de Servicios Traslado_grd"},

	fieldCaseType:   {"¿Qué gestión se solicito?"},
	fieldCaseDate:   {"Fecha admisión"},
	fieldCaseReport: {"Informe"},
	fieldCaseUser:   {"Usuario Responsable", "usuario_responsable", "Email Usuario"},

	fieldTransferStatus: {"Estado"},
	fieldTransferType:   {"Tipo de Traslado"},
	fieldTransferReason: {"Motivo de traslado"},
	fieldDestCenter:     {"Centro de Destinatario"},
	fieldRejectReason:   {"Motivo de Rechazo"},
	fieldCancelReason:   {"Motivo de Cancelación"},
	fieldRequestType:    {"Tipo de Solicitud"},
}

// lookup returns the first present value for a field on a row.
func lookup(t *ingest.Table, row int, f field) (string, bool) {
	for _, name := range aliases[f] {
		if v, ok := t.Get(row, name); ok {
			return v, true
		}
	}
	return "", false
}
