package importer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/patrickmn/go-cache"

	"github.com/hospitalops/admission-api/internal/mapper"
	"github.com/hospitalops/admission-api/internal/model"
	"github.com/hospitalops/admission-api/internal/repository"
	"github.com/hospitalops/admission-api/pkg/logger"
)

// Importer persists mapped entities with get-or-create semantics.
// Rows are isolated from each other: a failing row increments the
// entity's error counter and the run continues. There is deliberately
// no enclosing transaction; re-running the same files converges to the
// same state instead of rolling back work already done.
type Importer struct {
	patients repository.PatientRepository
	beds     repository.BedRepository
	episodes repository.EpisodeRepository
	services repository.ServiceRepository
	visits   repository.ServiceVisitRepository
	cases    repository.CaseRecordRepository
	users    repository.UserRepository

	serviceCache *cache.Cache
	validate     *validator.Validate
	log          *logger.Logger
	maxErrors    int
	now          func() time.Time
}

func NewImporter(
	patients repository.PatientRepository,
	beds repository.BedRepository,
	episodes repository.EpisodeRepository,
	services repository.ServiceRepository,
	visits repository.ServiceVisitRepository,
	cases repository.CaseRecordRepository,
	users repository.UserRepository,
	serviceCache *cache.Cache,
	log *logger.Logger,
	maxErrors int,
) *Importer {
	return &Importer{
		patients:     patients,
		beds:         beds,
		episodes:     episodes,
		services:     services,
		visits:       visits,
		cases:        cases,
		users:        users,
		serviceCache: serviceCache,
		validate:     validator.New(),
		log:          log,
		maxErrors:    maxErrors,
		now:          time.Now,
	}
}

// ImportAll persists everything in dependency order: patients, beds,
// episodes (with their service visits), then case records and
// transfers, which need the episodes in place. progress, when non-nil,
// receives the cumulative processed-row count after every row.
func (i *Importer) ImportAll(ctx context.Context, mapped *mapper.Mapped, progress func(processed int)) *model.ImportReport {
	ictx := NewImportContext()
	res := newResults()
	processed := 0
	tick := func() {
		processed++
		if progress != nil {
			progress(processed)
		}
	}

	for _, p := range mapped.Patients {
		i.importPatient(ctx, res, p)
		tick()
	}
	for _, b := range mapped.Beds {
		i.importBed(ctx, ictx, res, b)
		tick()
	}
	for _, e := range mapped.Episodes {
		i.importEpisode(ctx, ictx, res, e)
		tick()
	}
	for _, c := range mapped.Cases {
		i.importCase(ctx, res, c)
		tick()
	}
	for _, tr := range mapped.Transfers {
		i.importTransfer(ctx, res, tr)
		tick()
	}

	report := res.report(i.maxErrors)
	i.log.Info("import finished",
		"processed", report.Summary.TotalProcessed,
		"success", report.Summary.TotalSuccess,
		"errors", report.Summary.TotalErrors,
	)
	return report
}

func (i *Importer) importPatient(ctx context.Context, res *results, rec mapper.PatientRecord) {
	existing, err := i.patients.GetByRUT(ctx, rec.RUT)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		p := &model.Patient{
			RUT:         rec.RUT,
			Name:        rec.Name,
			Sex:         rec.Sex,
			BirthDate:   rec.BirthDate,
			Plan:        rec.Plan,
			SocialScore: rec.SocialScore,
		}
		payer1 := rec.Payer1
		p.Payer1 = &payer1
		p.Payer2 = rec.Payer2

		if err := i.validate.Struct(p); err != nil {
			res.failed(entityPatients,
				fmt.Sprintf("invalid patient %s: %v", rec.RUT, err),
				fmt.Sprintf("patient data: %+v", rec))
			return
		}
		if err := i.patients.Create(ctx, p); err != nil {
			res.failed(entityPatients,
				fmt.Sprintf("failed to create patient %s: %v", rec.RUT, err),
				fmt.Sprintf("patient data: %+v", rec))
			return
		}
		res.created(entityPatients)

	case err != nil:
		res.failed(entityPatients, fmt.Sprintf("failed to look up patient %s: %v", rec.RUT, err))

	default:
		if i.fillPatientGaps(existing, rec) {
			if err := i.patients.Update(ctx, existing); err != nil {
				res.failed(entityPatients,
					fmt.Sprintf("failed to update patient %s: %v", rec.RUT, err))
				return
			}
			res.updated(entityPatients)
		}
	}
}

// fillPatientGaps applies the update policy for re-imported patients:
// the name is refreshed whenever the incoming one is non-empty and
// different, sex is only corrected away from Other, and every other
// field is filled only while still absent.
func (i *Importer) fillPatientGaps(p *model.Patient, rec mapper.PatientRecord) bool {
	changed := false

	if rec.Name != "" && rec.Name != p.Name {
		p.Name = rec.Name
		changed = true
	}
	if p.Sex == model.SexOther && rec.Sex != model.SexOther {
		p.Sex = rec.Sex
		changed = true
	}
	if p.BirthDate == nil && rec.BirthDate != nil {
		p.BirthDate = rec.BirthDate
		changed = true
	}
	if rec.Payer1 != "" && rec.Payer1 != "OTRO" && (p.Payer1 == nil || *p.Payer1 == "OTRO" || *p.Payer1 == "") {
		payer := rec.Payer1
		p.Payer1 = &payer
		changed = true
	}
	if p.Payer2 == nil && rec.Payer2 != nil {
		p.Payer2 = rec.Payer2
		changed = true
	}
	if p.Plan == nil && rec.Plan != nil {
		p.Plan = rec.Plan
		changed = true
	}
	if p.SocialScore == nil && rec.SocialScore != nil {
		p.SocialScore = rec.SocialScore
		changed = true
	}
	return changed
}

func (i *Importer) importBed(ctx context.Context, ictx *ImportContext, res *results, rec mapper.BedRecord) {
	existing, err := i.beds.GetByCode(ctx, rec.Code)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		b := &model.Bed{Code: rec.Code, Room: rec.Room}
		if err := i.beds.Create(ctx, b); err != nil {
			res.failed(entityBeds, fmt.Sprintf("failed to create bed %s: %v", rec.Code, err))
			return
		}
		res.created(entityBeds)
		ictx.bedByCode[rec.Code] = b

	case err != nil:
		res.failed(entityBeds, fmt.Sprintf("failed to look up bed %s: %v", rec.Code, err))

	default:
		if rec.Room != "" && rec.Room != existing.Room {
			existing.Room = rec.Room
			if err := i.beds.Update(ctx, existing); err != nil {
				res.failed(entityBeds, fmt.Sprintf("failed to update bed %s: %v", rec.Code, err))
				return
			}
			res.updated(entityBeds)
		}
		ictx.bedByCode[rec.Code] = existing
	}
}

func (i *Importer) importEpisode(ctx context.Context, ictx *ImportContext, res *results, rec mapper.EpisodeRecord) {
	patient := i.resolvePatient(ctx, ictx, rec)
	if patient == nil {
		res.failed(entityEpisodes,
			fmt.Sprintf("no patient found for episode %d", rec.Code),
			fmt.Sprintf("episode data: %+v", rec))
		return
	}

	bed := i.resolveBed(ctx, ictx, rec.BedCode)

	existing, err := i.episodes.GetByCode(ctx, rec.Code)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		ep := &model.Episode{
			Code:             rec.Code,
			PatientID:        patient.ID,
			AdmittedAt:       valueOrNow(rec.AdmittedAt, i.now),
			DischargedAt:     rec.DischargedAt,
			ActivityType:     rec.ActivityType,
			OutlierFlag:      rec.OutlierFlag,
			Specialty:        rec.Specialty,
			PreSurgicalDays:  rec.PreSurgicalDays,
			PostSurgicalDays: rec.PostSurgicalDays,
			NormDays:         rec.NormDays,
		}
		if bed != nil {
			ep.BedID = &bed.ID
		}
		if err := i.episodes.Create(ctx, ep); err != nil {
			res.failed(entityEpisodes,
				fmt.Sprintf("failed to create episode %d: %v", rec.Code, err),
				fmt.Sprintf("episode data: %+v", rec))
			return
		}
		res.created(entityEpisodes)
		ictx.episodePatient[rec.Code] = patient
		i.attachVisits(ctx, res, ep, rec.Visits)

	case err != nil:
		res.failed(entityEpisodes, fmt.Sprintf("failed to look up episode %d: %v", rec.Code, err))

	default:
		changed := false
		if existing.BedID == nil && bed != nil {
			existing.BedID = &bed.ID
			changed = true
		}
		if existing.DischargedAt == nil && rec.DischargedAt != nil {
			existing.DischargedAt = rec.DischargedAt
			changed = true
		}
		if changed {
			if err := i.episodes.Update(ctx, existing); err != nil {
				res.failed(entityEpisodes,
					fmt.Sprintf("failed to update episode %d: %v", rec.Code, err))
				return
			}
			res.updated(entityEpisodes)
		}
		ictx.episodePatient[rec.Code] = patient
		i.attachVisits(ctx, res, existing, rec.Visits)
	}
}

// resolvePatient walks the lookup chain: run cache, the episode's
// already-stored patient, RUT, then a fuzzy name match as last resort.
func (i *Importer) resolvePatient(ctx context.Context, ictx *ImportContext, rec mapper.EpisodeRecord) *model.Patient {
	if p, ok := ictx.episodePatient[rec.Code]; ok {
		return p
	}
	if ep, err := i.episodes.GetByCode(ctx, rec.Code); err == nil {
		if p, err := i.patients.Get(ctx, ep.PatientID); err == nil {
			return p
		}
	}
	if rec.RUT != "" {
		if p, err := i.patients.GetByRUT(ctx, rec.RUT); err == nil {
			return p
		}
	}
	if rec.PatientName != "" {
		if p, err := i.patients.FindByName(ctx, rec.PatientName); err == nil {
			return p
		}
	}
	return nil
}

// resolveBed is best effort; an unknown bed code leaves the episode
// without a bed rather than failing the row.
func (i *Importer) resolveBed(ctx context.Context, ictx *ImportContext, code string) *model.Bed {
	if code == "" {
		return nil
	}
	if b, ok := ictx.bedByCode[code]; ok {
		return b
	}
	b, err := i.beds.GetByCode(ctx, code)
	if err != nil {
		i.log.Warn("bed not found for episode", "code", code)
		return nil
	}
	ictx.bedByCode[code] = b
	return b
}

func (i *Importer) attachVisits(ctx context.Context, res *results, ep *model.Episode, visits []mapper.VisitRecord) {
	attached := 0
	for _, v := range visits {
		if v.ServiceCode == "" {
			continue
		}
		exists, err := i.visits.Exists(ctx, ep.ID, v.ServiceCode, v.Role)
		if err != nil {
			i.log.Error(err, "failed to check service visit", "episode", ep.Code, "service", v.ServiceCode)
			continue
		}
		if exists {
			continue
		}
		svc := i.lookupService(ctx, v.ServiceCode)
		if svc == nil {
			i.log.Warn("service not found", "code", v.ServiceCode, "episode", ep.Code)
			continue
		}
		visit := &model.ServiceVisit{
			EpisodeID:     ep.ID,
			ServiceID:     svc.ID,
			Date:          v.Date,
			Role:          v.Role,
			TransferOrder: v.TransferOrder,
		}
		if err := i.visits.Create(ctx, visit); err != nil {
			i.log.Error(err, "failed to attach service visit", "episode", ep.Code, "service", v.ServiceCode)
			continue
		}
		attached++
	}
	if attached > 0 {
		i.log.Debug("service visits attached", "episode", ep.Code, "count", attached)
	}
}

// lookupService resolves a service code through the run-spanning
// reference cache; services change rarely enough that the cache TTL
// covers many runs.
func (i *Importer) lookupService(ctx context.Context, code string) *model.Service {
	if v, ok := i.serviceCache.Get(code); ok {
		return v.(*model.Service)
	}
	svc, err := i.services.GetByCode(ctx, code)
	if err != nil {
		return nil
	}
	i.serviceCache.Set(code, svc, cache.DefaultExpiration)
	return svc
}

func (i *Importer) importCase(ctx context.Context, res *results, rec mapper.CaseRecordInput) {
	ep, err := i.episodes.GetByCode(ctx, rec.EpisodeCode)
	if err != nil {
		res.failed(entityCases,
			fmt.Sprintf("no episode %d found for case record", rec.EpisodeCode))
		return
	}

	c := &model.CaseRecord{
		EpisodeID: ep.ID,
		Type:      rec.Type,
		Status:    rec.Status,
		StartedAt: rec.StartedAt,
	}
	if rec.Report != "" {
		report := rec.Report
		c.Report = &report
	}
	// A completed case always carries an end timestamp.
	if c.Status == model.CaseStatusCompleted && c.EndedAt == nil {
		end := i.now()
		c.EndedAt = &end
	}
	if rec.UserEmail != "" {
		// Unknown users are fine, the record is simply unattributed.
		if u, err := i.users.GetByEmail(ctx, rec.UserEmail); err == nil {
			c.UserID = &u.ID
		}
	}

	if err := i.validate.Struct(c); err != nil {
		res.failed(entityCases,
			fmt.Sprintf("invalid case record for episode %d: %v", rec.EpisodeCode, err))
		return
	}
	if err := i.cases.Create(ctx, c); err != nil {
		res.failed(entityCases,
			fmt.Sprintf("failed to create case record for episode %d: %v", rec.EpisodeCode, err))
		return
	}
	res.created(entityCases)
}

func (i *Importer) importTransfer(ctx context.Context, res *results, rec mapper.TransferRecord) {
	ep, err := i.episodes.GetByCode(ctx, rec.EpisodeCode)
	if err != nil {
		res.failed(entityTransfers,
			fmt.Sprintf("no episode %d found for transfer", rec.EpisodeCode))
		return
	}

	status := rec.Status
	c := &model.CaseRecord{
		EpisodeID:          ep.ID,
		Type:               model.CaseTypeTransfer,
		Status:             model.CaseStatusStarted,
		StartedAt:          valueOrNow(rec.RequestedAt, i.now),
		TransferStatus:     &status,
		TransferType:       rec.TransferType,
		TransferReason:     rec.TransferReason,
		DestinationCenter:  rec.DestinationCenter,
		RejectionReason:    rec.RejectionReason,
		CancellationReason: rec.CancellationReason,
	}
	if err := i.cases.Create(ctx, c); err != nil {
		res.failed(entityTransfers,
			fmt.Sprintf("failed to create transfer for episode %d: %v", rec.EpisodeCode, err))
		return
	}
	res.created(entityTransfers)
}

func valueOrNow(ts *time.Time, now func() time.Time) time.Time {
	if ts != nil {
		return *ts
	}
	return now()
}
