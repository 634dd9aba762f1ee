package mapper

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/hospitalops/admission-api/internal/ingest"
	"github.com/hospitalops/admission-api/internal/model"
	"github.com/hospitalops/admission-api/pkg/logger"
)

// PatientRecord is a patient as extracted from one combined row group.
type PatientRecord struct {
	RUT         string
	Name        string
	Sex         string
	BirthDate   *time.Time
	Payer1      string
	Payer2      *string
	Plan        *string
	SocialScore *int
}

// BedRecord is a bed extracted from the bed-assignment columns.
type BedRecord struct {
	Code string
	Room string
}

// VisitRecord describes one service touch of an episode.
type VisitRecord struct {
	ServiceCode   string
	Date          *time.Time
	Role          string
	TransferOrder *int
}

// EpisodeRecord is an episode plus its service-visit descriptors.
type EpisodeRecord struct {
	Code             int64
	RUT              string
	PatientName      string
	AdmittedAt       *time.Time
	DischargedAt     *time.Time
	ActivityType     string
	OutlierFlag      *string
	Specialty        *string
	PreSurgicalDays  *float64
	PostSurgicalDays *float64
	NormDays         *float64
	BedCode          string
	Visits           []VisitRecord
}

// CaseRecordInput is a non-transfer management row.
type CaseRecordInput struct {
	EpisodeCode int64
	Type        string
	Status      string
	StartedAt   time.Time
	Report      string
	UserEmail   string
}

// TransferRecord is a transfer-type management row with its sub-fields.
type TransferRecord struct {
	EpisodeCode        int64
	Status             string
	TransferType       *string
	TransferReason     *string
	DestinationCenter  *string
	RejectionReason    *string
	CancellationReason *string
	RequestType        *string
	RequestedAt        *time.Time
}

// Mapped holds every entity extracted from one combined table, in the
// order the importer persists them.
type Mapped struct {
	Patients  []PatientRecord
	Beds      []BedRecord
	Episodes  []EpisodeRecord
	Cases     []CaseRecordInput
	Transfers []TransferRecord
}

// Mapper turns the combined table into typed entity records. It never
// touches storage; rows it cannot interpret are skipped with a warning
// and the importer accounts for them through the episode counts.
type Mapper struct {
	log *logger.Logger
	now func() time.Time
}

func NewMapper(log *logger.Logger) *Mapper {
	return &Mapper{log: log, now: time.Now}
}

// MapAll extracts patients, beds, episodes, case records and transfers
// from the combined table, de-duplicating on natural keys with the
// first occurrence winning.
func (m *Mapper) MapAll(t *ingest.Table) *Mapped {
	out := &Mapped{
		Patients:  m.mapPatients(t),
		Beds:      m.mapBeds(t),
		Episodes:  m.mapEpisodes(t),
		Cases:     m.mapCases(t),
		Transfers: m.mapTransfers(t),
	}
	m.log.Info("mapping complete",
		"patients", len(out.Patients),
		"beds", len(out.Beds),
		"episodes", len(out.Episodes),
		"cases", len(out.Cases),
		"transfers", len(out.Transfers),
	)
	return out
}

func (m *Mapper) mapPatients(t *ingest.Table) []PatientRecord {
	seen := make(map[string]bool)
	var patients []PatientRecord

	for i := 0; i < t.Len(); i++ {
		raw, ok := lookup(t, i, fieldRUT)
		if !ok {
			continue
		}
		rut := NormalizeRUT(raw)
		if rut == "" || seen[rut] {
			continue
		}
		seen[rut] = true

		name, _ := lookup(t, i, fieldName)
		if name == "" {
			m.log.Warn("patient without name skipped", "rut", rut)
			continue
		}

		p := PatientRecord{
			RUT:  rut,
			Name: name,
		}
		sexRaw, _ := lookup(t, i, fieldSex)
		p.Sex = MapSex(sexRaw)

		if v, ok := lookup(t, i, fieldBirthDate); ok {
			if ts, ok := ParseDate(v); ok {
				p.BirthDate = &ts
			}
		}

		plan, hasPlan := lookup(t, i, fieldPayerPlan)
		insurer, hasInsurer := lookup(t, i, fieldInsurer)
		switch {
		case hasPlan:
			p.Payer1 = truncate(plan, model.MaxPayerLen)
			if hasInsurer {
				p2 := truncate(insurer, model.MaxPayerLen)
				p.Payer2 = &p2
			}
			p.Plan = &plan
		case hasInsurer:
			p.Payer1 = truncate(insurer, model.MaxPayerLen)
		default:
			p.Payer1 = "OTRO"
		}

		if v, ok := lookup(t, i, fieldSocialScore); ok {
			if n, ok := toInt(v); ok {
				score := int(n)
				p.SocialScore = &score
			}
		}

		patients = append(patients, p)
	}
	return patients
}

func (m *Mapper) mapBeds(t *ingest.Table) []BedRecord {
	seen := make(map[string]bool)
	var beds []BedRecord

	for i := 0; i < t.Len(); i++ {
		code, ok := lookup(t, i, fieldBedCode)
		if !ok {
			continue
		}
		room, _ := lookup(t, i, fieldRoom)
		if room == "" {
			room = "HAB-" + code
		}
		key := code + "|" + room
		if seen[key] {
			continue
		}
		seen[key] = true
		beds = append(beds, BedRecord{Code: code, Room: room})
	}
	return beds
}

func (m *Mapper) mapEpisodes(t *ingest.Table) []EpisodeRecord {
	seen := make(map[int64]bool)
	var episodes []EpisodeRecord

	for i := 0; i < t.Len(); i++ {
		key, ok := t.Key(i)
		if !ok {
			continue
		}
		code, ok := toInt(key)
		if !ok {
			m.log.Warn("episode key is not numeric", "key", key)
			continue
		}
		if seen[code] {
			continue
		}

		rutRaw, ok := lookup(t, i, fieldRUT)
		if !ok {
			m.log.Warn("episode without patient identifier", "episode", code)
			continue
		}
		seen[code] = true

		ep := EpisodeRecord{Code: code, RUT: NormalizeRUT(rutRaw)}
		ep.PatientName, _ = lookup(t, i, fieldName)

		if v, ok := lookup(t, i, fieldAdmittedAt); ok {
			if ts, ok := ParseDate(v); ok {
				ep.AdmittedAt = &ts
			}
		}
		// Discharge comes from the admission-detail export alone. No
		// value there means the episode is still open, whatever the
		// stay-statistics export says.
		if v, ok := lookup(t, i, fieldDischargedAt); ok {
			if ts, ok := ParseDate(v); ok {
				ep.DischargedAt = &ts
			}
		}

		ep.ActivityType, _ = lookup(t, i, fieldActivityType)
		ep.OutlierFlag = optional(t, i, fieldOutlierFlag)
		ep.Specialty = optional(t, i, fieldSpecialty)
		ep.PreSurgicalDays = optionalFloat(t, i, fieldPreSurgical)
		ep.PostSurgicalDays = optionalFloat(t, i, fieldPostSurgical)
		ep.NormDays = optionalFloat(t, i, fieldNormDays)
		ep.BedCode, _ = lookup(t, i, fieldBedCode)

		ep.Visits = m.mapVisits(t, i, ep)
		episodes = append(episodes, ep)
	}
	return episodes
}

var transferSetPattern = regexp.MustCompile(`\[([^\]]+)\]`)

// transferDateColumn is the per-index date column next to the
// bracket-delimited transfer set. The odd spacing is the export's.
func transferDateColumn(n int) string {
	return fmt.Sprintf("Fecha       (tr%d)", n)
}

func (m *Mapper) mapVisits(t *ingest.Table, row int, ep EpisodeRecord) []VisitRecord {
	var visits []VisitRecord

	if code, ok := lookup(t, row, fieldServiceAdmit); ok {
		visits = append(visits, VisitRecord{
			ServiceCode: code,
			Date:        ep.AdmittedAt,
			Role:        model.VisitRoleAdmission,
		})
	}

	if set, ok := lookup(t, row, fieldTransferSet); ok {
		for n, match := range transferSetPattern.FindAllStringSubmatch(set, -1) {
			v := VisitRecord{
				ServiceCode: strings.TrimSpace(match[1]),
				Role:        model.VisitRoleTransfer,
			}
			order := n + 1
			v.TransferOrder = &order
			if raw, ok := t.Get(row, transferDateColumn(order)); ok {
				if ts, ok := ParseDate(raw); ok {
					v.Date = &ts
				}
			}
			visits = append(visits, v)
		}
	}

	if code, ok := lookup(t, row, fieldServiceEgress); ok {
		visits = append(visits, VisitRecord{
			ServiceCode: code,
			Date:        ep.DischargedAt,
			Role:        model.VisitRoleDischarge,
		})
	}
	return visits
}

// isTransfer reports whether a management row is a transfer request,
// which is modeled separately from plain case records.
func isTransfer(raw string) bool {
	return strings.EqualFold(strings.TrimSpace(raw), "transferencia")
}

func (m *Mapper) mapCases(t *ingest.Table) []CaseRecordInput {
	var cases []CaseRecordInput

	for i := 0; i < t.Len(); i++ {
		raw, ok := lookup(t, i, fieldCaseType)
		if !ok || isTransfer(raw) {
			continue
		}
		key, ok := t.Key(i)
		if !ok {
			continue
		}
		code, ok := toInt(key)
		if !ok {
			continue
		}

		c := CaseRecordInput{
			EpisodeCode: code,
			Type:        MapCaseType(raw),
			Status:      model.CaseStatusStarted,
		}
		if v, ok := lookup(t, i, fieldCaseDate); ok {
			if ts, ok := ParseDate(v); ok {
				c.StartedAt = ts
			}
		}
		if c.StartedAt.IsZero() {
			c.StartedAt = m.now()
		}
		if v, ok := lookup(t, i, fieldCaseReport); ok {
			c.Report = v
		} else {
			c.Report = fmt.Sprintf("Gestión de tipo %s", raw)
		}
		c.UserEmail, _ = lookup(t, i, fieldCaseUser)

		cases = append(cases, c)
	}
	return cases
}

func (m *Mapper) mapTransfers(t *ingest.Table) []TransferRecord {
	var transfers []TransferRecord

	for i := 0; i < t.Len(); i++ {
		raw, ok := lookup(t, i, fieldCaseType)
		if !ok || !isTransfer(raw) {
			continue
		}
		key, ok := t.Key(i)
		if !ok {
			continue
		}
		code, ok := toInt(key)
		if !ok {
			continue
		}

		tr := TransferRecord{EpisodeCode: code}
		statusRaw, _ := lookup(t, i, fieldTransferStatus)
		tr.Status = MapTransferStatus(statusRaw)
		tr.TransferType = optional(t, i, fieldTransferType)
		tr.TransferReason = optional(t, i, fieldTransferReason)
		tr.DestinationCenter = optional(t, i, fieldDestCenter)
		tr.RejectionReason = optional(t, i, fieldRejectReason)
		tr.CancellationReason = optional(t, i, fieldCancelReason)
		tr.RequestType = optional(t, i, fieldRequestType)
		if v, ok := lookup(t, i, fieldCaseDate); ok {
			if ts, ok := ParseDate(v); ok {
				tr.RequestedAt = &ts
			}
		}

		transfers = append(transfers, tr)
	}
	return transfers
}

// toInt coerces the numeric strings the exports produce, including
// float renderings like "1001.0".
func toInt(s string) (int64, bool) {
	s = strings.TrimSpace(s)
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n, true
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return int64(f), true
	}
	return 0, false
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max])
}

func optional(t *ingest.Table, row int, f field) *string {
	if v, ok := lookup(t, row, f); ok {
		return &v
	}
	return nil
}

func optionalFloat(t *ingest.Table, row int, f field) *float64 {
	v, ok := lookup(t, row, f)
	if !ok {
		return nil
	}
	n, err := strconv.ParseFloat(strings.ReplaceAll(v, ",", "."), 64)
	if err != nil {
		return nil
	}
	return &n
}
