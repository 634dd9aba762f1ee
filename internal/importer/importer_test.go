package importer

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hospitalops/admission-api/internal/mapper"
	"github.com/hospitalops/admission-api/internal/model"
	"github.com/hospitalops/admission-api/internal/repository"
	"github.com/hospitalops/admission-api/pkg/logger"
)

// In-memory repositories backing the importer tests.

type memPatients struct {
	byID  map[uuid.UUID]*model.Patient
	byRUT map[string]*model.Patient
}

func newMemPatients() *memPatients {
	return &memPatients{byID: map[uuid.UUID]*model.Patient{}, byRUT: map[string]*model.Patient{}}
}

func (m *memPatients) Create(_ context.Context, p *model.Patient) error {
	p.ID = uuid.New()
	m.byID[p.ID] = p
	m.byRUT[p.RUT] = p
	return nil
}

func (m *memPatients) Get(_ context.Context, id uuid.UUID) (*model.Patient, error) {
	if p, ok := m.byID[id]; ok {
		return p, nil
	}
	return nil, repository.ErrNotFound
}

func (m *memPatients) GetByRUT(_ context.Context, rut string) (*model.Patient, error) {
	if p, ok := m.byRUT[rut]; ok {
		return p, nil
	}
	return nil, repository.ErrNotFound
}

func (m *memPatients) FindByName(_ context.Context, name string) (*model.Patient, error) {
	for _, p := range m.byID {
		if strings.Contains(strings.ToLower(p.Name), strings.ToLower(name)) {
			return p, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *memPatients) Update(_ context.Context, p *model.Patient) error {
	m.byID[p.ID] = p
	m.byRUT[p.RUT] = p
	return nil
}

type memBeds struct {
	byCode map[string]*model.Bed
}

func newMemBeds() *memBeds { return &memBeds{byCode: map[string]*model.Bed{}} }

func (m *memBeds) Create(_ context.Context, b *model.Bed) error {
	b.ID = uuid.New()
	m.byCode[b.Code] = b
	return nil
}

func (m *memBeds) GetByCode(_ context.Context, code string) (*model.Bed, error) {
	if b, ok := m.byCode[code]; ok {
		return b, nil
	}
	return nil, repository.ErrNotFound
}

func (m *memBeds) Update(_ context.Context, b *model.Bed) error {
	m.byCode[b.Code] = b
	return nil
}

type memEpisodes struct {
	byCode map[int64]*model.Episode
}

func newMemEpisodes() *memEpisodes { return &memEpisodes{byCode: map[int64]*model.Episode{}} }

func (m *memEpisodes) openOnBed(bedID uuid.UUID, except uuid.UUID) bool {
	for _, e := range m.byCode {
		if e.BedID != nil && *e.BedID == bedID && e.DischargedAt == nil && e.ID != except {
			return true
		}
	}
	return false
}

func (m *memEpisodes) Create(_ context.Context, e *model.Episode) error {
	if e.BedID != nil && e.DischargedAt == nil && m.openOnBed(*e.BedID, e.ID) {
		return repository.ErrBedOccupied
	}
	e.ID = uuid.New()
	m.byCode[e.Code] = e
	return nil
}

func (m *memEpisodes) Get(_ context.Context, id uuid.UUID) (*model.Episode, error) {
	for _, e := range m.byCode {
		if e.ID == id {
			return e, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *memEpisodes) GetByCode(_ context.Context, code int64) (*model.Episode, error) {
	if e, ok := m.byCode[code]; ok {
		return e, nil
	}
	return nil, repository.ErrNotFound
}

func (m *memEpisodes) Update(_ context.Context, e *model.Episode) error {
	if e.BedID != nil && e.DischargedAt == nil && m.openOnBed(*e.BedID, e.ID) {
		return repository.ErrBedOccupied
	}
	m.byCode[e.Code] = e
	return nil
}

func (m *memEpisodes) UpdatePrediction(_ context.Context, code int64, label int, probability float64) (bool, error) {
	e, ok := m.byCode[code]
	if !ok {
		return false, nil
	}
	e.PredictedExtension = &label
	e.ExtensionProbability = &probability
	return true, nil
}

type memServices struct {
	byCode map[string]*model.Service
}

func (m *memServices) GetByCode(_ context.Context, code string) (*model.Service, error) {
	if s, ok := m.byCode[code]; ok {
		return s, nil
	}
	return nil, repository.ErrNotFound
}

func (m *memServices) List(_ context.Context) ([]*model.Service, error) {
	var out []*model.Service
	for _, s := range m.byCode {
		out = append(out, s)
	}
	return out, nil
}

type memVisits struct {
	visits   []*model.ServiceVisit
	services *memServices
}

func (m *memVisits) Create(_ context.Context, v *model.ServiceVisit) error {
	v.ID = uuid.New()
	m.visits = append(m.visits, v)
	return nil
}

func (m *memVisits) Exists(_ context.Context, episodeID uuid.UUID, serviceCode, role string) (bool, error) {
	for _, v := range m.visits {
		if v.EpisodeID != episodeID || v.Role != role {
			continue
		}
		for _, s := range m.services.byCode {
			if s.ID == v.ServiceID && s.Code == serviceCode {
				return true, nil
			}
		}
	}
	return false, nil
}

func (m *memVisits) ListByEpisode(_ context.Context, episodeID uuid.UUID) ([]*model.ServiceVisit, error) {
	var out []*model.ServiceVisit
	for _, v := range m.visits {
		if v.EpisodeID == episodeID {
			out = append(out, v)
		}
	}
	return out, nil
}

type memCases struct {
	records []*model.CaseRecord
}

func (m *memCases) Create(_ context.Context, c *model.CaseRecord) error {
	c.ID = uuid.New()
	m.records = append(m.records, c)
	return nil
}

func (m *memCases) ListByEpisode(_ context.Context, episodeID uuid.UUID) ([]*model.CaseRecord, error) {
	var out []*model.CaseRecord
	for _, c := range m.records {
		if c.EpisodeID == episodeID {
			out = append(out, c)
		}
	}
	return out, nil
}

type memUsers struct {
	byEmail map[string]*model.User
}

func (m *memUsers) GetByEmail(_ context.Context, email string) (*model.User, error) {
	if u, ok := m.byEmail[email]; ok {
		return u, nil
	}
	return nil, repository.ErrNotFound
}

type fixture struct {
	importer *Importer
	patients *memPatients
	beds     *memBeds
	episodes *memEpisodes
	services *memServices
	visits   *memVisits
	cases    *memCases
	users    *memUsers
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		patients: newMemPatients(),
		beds:     newMemBeds(),
		episodes: newMemEpisodes(),
		services: &memServices{byCode: map[string]*model.Service{}},
		cases:    &memCases{},
		users:    &memUsers{byEmail: map[string]*model.User{}},
	}
	f.visits = &memVisits{services: f.services}
	for _, code := range []string{"URG", "UCI", "MED"} {
		f.services.byCode[code] = &model.Service{Base: model.Base{ID: uuid.New()}, Code: code}
	}
	log := logger.NewLogger(&logger.Config{Level: logger.ErrorLevel, Output: io.Discard})
	f.importer = NewImporter(
		f.patients, f.beds, f.episodes, f.services, f.visits, f.cases, f.users,
		cache.New(time.Minute, time.Minute), log, 50,
	)
	return f
}

func ts(s string) *time.Time {
	v, _ := time.Parse("2006-01-02", s)
	return &v
}

func TestImportPatientCreateThenFillGaps(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	rep := f.importer.ImportAll(ctx, &mapper.Mapped{
		Patients: []mapper.PatientRecord{{RUT: "12.345.678-5", Name: "A. Rojas", Sex: model.SexOther, Payer1: "OTRO"}},
	}, nil)
	assert.Equal(t, 1, rep.Details["patients"].Created)

	score := 7
	rep = f.importer.ImportAll(ctx, &mapper.Mapped{
		Patients: []mapper.PatientRecord{{
			RUT: "12.345.678-5", Name: "Ana Rojas", Sex: model.SexFemale,
			BirthDate: ts("1950-06-01"), Payer1: "Fonasa", SocialScore: &score,
		}},
	}, nil)
	assert.Equal(t, 1, rep.Details["patients"].Updated)

	p, err := f.patients.GetByRUT(ctx, "12.345.678-5")
	require.NoError(t, err)
	assert.Equal(t, "Ana Rojas", p.Name)
	assert.Equal(t, model.SexFemale, p.Sex)
	require.NotNil(t, p.BirthDate)
	require.NotNil(t, p.Payer1)
	assert.Equal(t, "Fonasa", *p.Payer1)
	require.NotNil(t, p.SocialScore)
	assert.Equal(t, 7, *p.SocialScore)

	// A third run with worse data changes nothing.
	rep = f.importer.ImportAll(ctx, &mapper.Mapped{
		Patients: []mapper.PatientRecord{{
			RUT: "12.345.678-5", Name: "Ana Rojas", Sex: model.SexOther, Payer1: "OTRO",
		}},
	}, nil)
	assert.Equal(t, 0, rep.Details["patients"].Updated)
	assert.Equal(t, 0, rep.Details["patients"].Created)
}

func TestImportPatientSexNeverOverwritten(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.importer.ImportAll(ctx, &mapper.Mapped{
		Patients: []mapper.PatientRecord{{RUT: "1.111.111-1", Name: "B", Sex: model.SexMale, Payer1: "OTRO"}},
	}, nil)
	f.importer.ImportAll(ctx, &mapper.Mapped{
		Patients: []mapper.PatientRecord{{RUT: "1.111.111-1", Name: "B", Sex: model.SexFemale, Payer1: "OTRO"}},
	}, nil)

	p, _ := f.patients.GetByRUT(ctx, "1.111.111-1")
	assert.Equal(t, model.SexMale, p.Sex)
}

func TestImportPatientInvalidRUTRejected(t *testing.T) {
	f := newFixture(t)

	rep := f.importer.ImportAll(context.Background(), &mapper.Mapped{
		Patients: []mapper.PatientRecord{{RUT: "", Name: "Nadie", Sex: model.SexOther, Payer1: "OTRO"}},
	}, nil)
	assert.Equal(t, 1, rep.Details["patients"].Errors)
	assert.Equal(t, 0, rep.Details["patients"].Created)
	assert.NotEmpty(t, rep.Errors)
}

func TestImportEpisodeResolutionAndVisits(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	order := 1
	rep := f.importer.ImportAll(ctx, &mapper.Mapped{
		Patients: []mapper.PatientRecord{{RUT: "12.345.678-5", Name: "Ana Rojas", Sex: model.SexFemale, Payer1: "OTRO"}},
		Beds:     []mapper.BedRecord{{Code: "302-A", Room: "302"}},
		Episodes: []mapper.EpisodeRecord{{
			Code: 1001, RUT: "12.345.678-5", AdmittedAt: ts("2024-10-26"),
			BedCode: "302-A",
			Visits: []mapper.VisitRecord{
				{ServiceCode: "URG", Role: model.VisitRoleAdmission, Date: ts("2024-10-26")},
				{ServiceCode: "UCI", Role: model.VisitRoleTransfer, TransferOrder: &order},
				{ServiceCode: "NOPE", Role: model.VisitRoleTransfer},
			},
		}},
	}, nil)

	assert.Equal(t, 1, rep.Details["episodes"].Created)
	ep, err := f.episodes.GetByCode(ctx, 1001)
	require.NoError(t, err)
	require.NotNil(t, ep.BedID)

	// Unknown service code skipped, the two known ones attached.
	vs, _ := f.visits.ListByEpisode(ctx, ep.ID)
	assert.Len(t, vs, 2)

	// Re-running attaches nothing new and counts no episode change.
	rep = f.importer.ImportAll(ctx, &mapper.Mapped{
		Episodes: []mapper.EpisodeRecord{{
			Code: 1001, RUT: "12.345.678-5", BedCode: "302-A",
			Visits: []mapper.VisitRecord{
				{ServiceCode: "URG", Role: model.VisitRoleAdmission},
			},
		}},
	}, nil)
	assert.Equal(t, 0, rep.Details["episodes"].Created)
	assert.Equal(t, 0, rep.Details["episodes"].Updated)
	vs, _ = f.visits.ListByEpisode(ctx, ep.ID)
	assert.Len(t, vs, 2)
}

func TestImportEpisodeWithoutPatientFails(t *testing.T) {
	f := newFixture(t)

	rep := f.importer.ImportAll(context.Background(), &mapper.Mapped{
		Episodes: []mapper.EpisodeRecord{{Code: 404, RUT: "9.999.999-9"}},
	}, nil)
	assert.Equal(t, 1, rep.Details["episodes"].Errors)
}

func TestImportEpisodeFuzzyNameFallback(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.importer.ImportAll(ctx, &mapper.Mapped{
		Patients: []mapper.PatientRecord{{RUT: "12.345.678-5", Name: "Ana María Rojas", Sex: model.SexFemale, Payer1: "OTRO"}},
	}, nil)

	// RUT in the episode row is garbage but the name still matches.
	rep := f.importer.ImportAll(ctx, &mapper.Mapped{
		Episodes: []mapper.EpisodeRecord{{Code: 1002, RUT: "0-0", PatientName: "Ana María"}},
	}, nil)
	assert.Equal(t, 1, rep.Details["episodes"].Created)
}

func TestImportEpisodeOccupiedBed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	base := &mapper.Mapped{
		Patients: []mapper.PatientRecord{
			{RUT: "1.111.111-1", Name: "Uno", Sex: model.SexMale, Payer1: "OTRO"},
			{RUT: "2.222.222-2", Name: "Dos", Sex: model.SexFemale, Payer1: "OTRO"},
		},
		Beds: []mapper.BedRecord{{Code: "101-A", Room: "101"}},
		Episodes: []mapper.EpisodeRecord{
			{Code: 1, RUT: "1.111.111-1", BedCode: "101-A", AdmittedAt: ts("2024-10-01")},
			// Second open episode on the same bed must fail its row.
			{Code: 2, RUT: "2.222.222-2", BedCode: "101-A", AdmittedAt: ts("2024-10-02")},
		},
	}
	rep := f.importer.ImportAll(ctx, base, nil)

	assert.Equal(t, 1, rep.Details["episodes"].Created)
	assert.Equal(t, 1, rep.Details["episodes"].Errors)

	first, err := f.episodes.GetByCode(ctx, 1)
	require.NoError(t, err)
	assert.NotNil(t, first.BedID)
}

func TestImportCaseAndTransfer(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.users.byEmail["cm@clinic.cl"] = &model.User{Base: model.Base{ID: uuid.New()}, Email: "cm@clinic.cl"}

	dest := "Hospital Base"
	started := ts("2024-10-26")
	rep := f.importer.ImportAll(ctx, &mapper.Mapped{
		Patients: []mapper.PatientRecord{{RUT: "12.345.678-5", Name: "Ana", Sex: model.SexFemale, Payer1: "OTRO"}},
		Episodes: []mapper.EpisodeRecord{{Code: 1001, RUT: "12.345.678-5", AdmittedAt: started}},
		Cases: []mapper.CaseRecordInput{
			{EpisodeCode: 1001, Type: model.CaseTypeHomecare, Status: model.CaseStatusStarted, StartedAt: *started, Report: "eval", UserEmail: "cm@clinic.cl"},
			{EpisodeCode: 9999, Type: model.CaseTypeCoverage, Status: model.CaseStatusStarted, StartedAt: *started},
		},
		Transfers: []mapper.TransferRecord{
			{EpisodeCode: 1001, Status: model.TransferStatusAccepted, DestinationCenter: &dest, RequestedAt: started},
		},
	}, nil)

	assert.Equal(t, 1, rep.Details["case_records"].Created)
	assert.Equal(t, 1, rep.Details["case_records"].Errors)
	assert.Equal(t, 1, rep.Details["transfers"].Created)

	ep, _ := f.episodes.GetByCode(ctx, 1001)
	records, _ := f.cases.ListByEpisode(ctx, ep.ID)
	require.Len(t, records, 2)

	plain := records[0]
	assert.Equal(t, model.CaseTypeHomecare, plain.Type)
	require.NotNil(t, plain.UserID)

	tr := records[1]
	assert.Equal(t, model.CaseTypeTransfer, tr.Type)
	require.NotNil(t, tr.TransferStatus)
	assert.Equal(t, model.TransferStatusAccepted, *tr.TransferStatus)
	require.NotNil(t, tr.DestinationCenter)
	assert.Equal(t, "Hospital Base", *tr.DestinationCenter)
}

func TestReportCapsErrors(t *testing.T) {
	f := newFixture(t)

	var cases []mapper.CaseRecordInput
	for i := 0; i < 80; i++ {
		cases = append(cases, mapper.CaseRecordInput{
			EpisodeCode: int64(10000 + i), Type: model.CaseTypeClinical,
			Status: model.CaseStatusStarted, StartedAt: time.Now(),
		})
	}
	rep := f.importer.ImportAll(context.Background(), &mapper.Mapped{Cases: cases}, nil)

	assert.Equal(t, 80, rep.Details["case_records"].Errors)
	assert.Len(t, rep.Errors, 50)
}

func TestProgressCallback(t *testing.T) {
	f := newFixture(t)
	var last int

	f.importer.ImportAll(context.Background(), &mapper.Mapped{
		Patients: []mapper.PatientRecord{
			{RUT: "1.111.111-1", Name: "Uno", Sex: model.SexMale, Payer1: "OTRO"},
			{RUT: "2.222.222-2", Name: "Dos", Sex: model.SexFemale, Payer1: "OTRO"},
		},
		Beds: []mapper.BedRecord{{Code: "101-A", Room: "101"}},
	}, func(n int) { last = n })
	assert.Equal(t, 3, last)
}
