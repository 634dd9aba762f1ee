package mapper

import (
	"strings"

	"github.com/hospitalops/admission-api/internal/model"
)

// MapSex folds the descriptive sex values of the stay-statistics
// export onto the stored codes. Anything unrecognized is Other.
func MapSex(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "m", "masculino", "hombre", "male":
		return model.SexMale
	case "f", "femenino", "mujer", "female":
		return model.SexFemale
	default:
		return model.SexOther
	}
}

// caseTypeVocab in match order. Longer names come before their prefixes
// so the substring pass cannot shadow them.
var caseTypeVocab = []struct {
	key  string
	code string
}{
	{"homecare uccc", model.CaseTypeHomecareUCCC},
	{"homecare", model.CaseTypeHomecare},
	{"traslado", model.CaseTypeTransfer},
	{"activación beneficio isapre", model.CaseTypeIsapreBenefit},
	{"autorización procedimiento", model.CaseTypeAuthorization},
	{"autorizacion", model.CaseTypeAuthorization},
	{"cobertura", model.CaseTypeCoverage},
	{"corte cuentas", model.CaseTypeBillingCutoff},
	{"cuidados paliativos", model.CaseTypePalliativeIntake},
	{"ambulatorio", model.CaseTypeAmbulatoryHandoff},
	{"gestion_clinica", model.CaseTypeClinical},
	{"clinica", model.CaseTypeClinical},
}

// MapCaseType resolves a free-text management type to its stored code:
// exact match first, then substring, defaulting to the clinical code.
func MapCaseType(raw string) string {
	s := strings.ToLower(strings.TrimSpace(raw))
	if s == "" {
		return model.CaseTypeClinical
	}
	for _, v := range caseTypeVocab {
		if s == v.key {
			return v.code
		}
	}
	for _, v := range caseTypeVocab {
		if strings.Contains(s, v.key) {
			return v.code
		}
	}
	return model.CaseTypeClinical
}

var caseStatusVocab = []struct {
	key  string
	code string
}{
	{"INICIADA", model.CaseStatusStarted},
	{"EN_PROGRESO", model.CaseStatusInProgress},
	{"PROGRESO", model.CaseStatusInProgress},
	{"COMPLETADA", model.CaseStatusCompleted},
	{"COMPLETA", model.CaseStatusCompleted},
	{"CANCELADA", model.CaseStatusCancelled},
	{"CANCEL", model.CaseStatusCancelled},
}

// MapCaseStatus resolves a case status the same way, defaulting to
// started.
func MapCaseStatus(raw string) string {
	s := strings.ToUpper(strings.TrimSpace(raw))
	if s == "" {
		return model.CaseStatusStarted
	}
	for _, v := range caseStatusVocab {
		if s == v.key {
			return v.code
		}
	}
	for _, v := range caseStatusVocab {
		if strings.Contains(s, v.key) {
			return v.code
		}
	}
	return model.CaseStatusStarted
}

// MapTransferStatus uppercases known transfer statuses, defaulting to
// pending.
func MapTransferStatus(raw string) string {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case model.TransferStatusAccepted:
		return model.TransferStatusAccepted
	case model.TransferStatusRejected:
		return model.TransferStatusRejected
	case model.TransferStatusCancelled:
		return model.TransferStatusCancelled
	case model.TransferStatusCompleted:
		return model.TransferStatusCompleted
	default:
		return model.TransferStatusPending
	}
}
