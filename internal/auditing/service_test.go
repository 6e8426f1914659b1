package auditing

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/rpattn/auditdesk/internal/auth"
	"github.com/rpattn/auditdesk/internal/domain"
	"github.com/rpattn/auditdesk/internal/questionnaire"
	"github.com/rpattn/auditdesk/internal/repository/memstore"
)

func contextAs(role domain.Role) context.Context {
	return auth.ContextWithSession(context.Background(), auth.Session{UserID: uuid.New(), Role: role})
}

type fixture struct {
	store    *memstore.Store
	svc      *Service
	tree     domain.QuestionnaireTree
	surface  domain.Question
	lighting domain.Question
	facility domain.Facility
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memstore.New()
	ctx := contextAs(domain.RoleAdmin)

	qs := questionnaire.NewService(store)
	version, err := qs.CreateVersion(ctx, "Baseline", "")
	if err != nil {
		t.Fatalf("create version: %v", err)
	}
	section, err := qs.AddSection(ctx, version.ID, "Playing surface", "")
	if err != nil {
		t.Fatalf("add section: %v", err)
	}
	surface, err := qs.AddQuestion(ctx, section.ID, questionnaire.QuestionInput{
		Label:   "Surface type",
		Type:    domain.QuestionTypeList,
		Options: []string{"Grass", "Synthetic"},
	})
	if err != nil {
		t.Fatalf("add question: %v", err)
	}
	lighting, err := qs.AddQuestion(ctx, section.ID, questionnaire.QuestionInput{
		Label: "Lighting lux",
		Type:  domain.QuestionTypeNumber,
	})
	if err != nil {
		t.Fatalf("add question: %v", err)
	}
	if _, err := qs.Publish(ctx, version.ID); err != nil {
		t.Fatalf("publish: %v", err)
	}
	tree, err := questionnaire.LoadPublishedTree(ctx, store)
	if err != nil {
		t.Fatalf("load tree: %v", err)
	}

	svc := NewService(store)
	facility, err := svc.CreateFacility(ctx, domain.FacilityForm{
		domain.FieldVenueName: "Oval A",
		domain.FieldPostcode:  "3000",
	})
	if err != nil {
		t.Fatalf("create facility: %v", err)
	}
	return &fixture{store: store, svc: svc, tree: tree, surface: surface, lighting: lighting, facility: facility}
}

func TestCreateFacilityLogsCreation(t *testing.T) {
	f := newFixture(t)
	logs := f.store.AllChangeLogs()
	if len(logs) != 1 {
		t.Fatalf("expected one change log, got %d", len(logs))
	}
	if logs[0].FieldName != domain.ChangeFieldCreated || domain.StringOrEmpty(logs[0].NewValue) != "Oval A" || logs[0].OldValue != nil {
		t.Fatalf("unexpected creation log %+v", logs[0])
	}
}

func TestCreateFacilityRequiresVenueName(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.CreateFacility(contextAs(domain.RoleAuditor), domain.FacilityForm{domain.FieldVenueName: "  "})
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestSaveLogsOnlyChangedFacilityFields(t *testing.T) {
	f := newFixture(t)
	ctx := contextAs(domain.RoleAuditor)
	before := f.store.ChangeLogCount()

	form := domain.FormOf(f.facility)
	form[domain.FieldPostcode] = "3001"
	res, err := f.svc.Save(ctx, SaveRequest{FacilityID: f.facility.ID, Facility: form})
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if res.FacilityChanges != 1 || res.Facility.Postcode != "3001" {
		t.Fatalf("unexpected result %+v", res)
	}

	logs := f.store.AllChangeLogs()[before:]
	if len(logs) != 1 {
		t.Fatalf("expected exactly one new log, got %d", len(logs))
	}
	log := logs[0]
	if log.FieldName != "postcode" || domain.StringOrEmpty(log.OldValue) != "3000" || domain.StringOrEmpty(log.NewValue) != "3001" {
		t.Fatalf("unexpected log %+v", log)
	}
	if log.EntityType != domain.ChangeEntityFacility {
		t.Fatalf("unexpected entity type %s", log.EntityType)
	}
}

func TestSaveLogsNullTransitions(t *testing.T) {
	f := newFixture(t)
	ctx := contextAs(domain.RoleAuditor)

	form := domain.FormOf(f.facility)
	form[domain.FieldState] = "VIC"
	form[domain.FieldPostcode] = ""
	before := f.store.ChangeLogCount()
	if _, err := f.svc.Save(ctx, SaveRequest{FacilityID: f.facility.ID, Facility: form}); err != nil {
		t.Fatalf("save: %v", err)
	}

	byField := map[string]domain.ChangeLog{}
	for _, l := range f.store.AllChangeLogs()[before:] {
		byField[l.FieldName] = l
	}
	if l := byField["state"]; l.OldValue != nil || domain.StringOrEmpty(l.NewValue) != "VIC" {
		t.Fatalf("expected null -> VIC, got %+v", l)
	}
	if l := byField["postcode"]; domain.StringOrEmpty(l.OldValue) != "3000" || l.NewValue != nil {
		t.Fatalf("expected 3000 -> null, got %+v", l)
	}
}

func TestSaveAnswersIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := contextAs(domain.RoleAuditor)
	answers := map[uuid.UUID]string{f.surface.ID: "Grass", f.lighting.ID: "250"}

	first, err := f.svc.Save(ctx, SaveRequest{FacilityID: f.facility.ID, Answers: answers})
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if !first.AuditCreated || first.AnswerChanges != 2 {
		t.Fatalf("unexpected first result %+v", first)
	}
	logsAfterFirst := f.store.ChangeLogCount()

	second, err := f.svc.Save(ctx, SaveRequest{FacilityID: f.facility.ID, Answers: answers})
	if err != nil {
		t.Fatalf("save again: %v", err)
	}
	if second.AuditCreated || second.AnswerChanges != 0 {
		t.Fatalf("unexpected second result %+v", second)
	}
	if f.store.ChangeLogCount() != logsAfterFirst {
		t.Fatalf("identical save must not write change logs")
	}
	if f.store.AuditCount() != 1 || f.store.AnswerCount() != 2 {
		t.Fatalf("expected 1 audit and 2 answers, got %d and %d", f.store.AuditCount(), f.store.AnswerCount())
	}

	third, err := f.svc.Save(ctx, SaveRequest{FacilityID: f.facility.ID, Answers: map[uuid.UUID]string{f.surface.ID: "Synthetic"}})
	if err != nil {
		t.Fatalf("save change: %v", err)
	}
	if third.AuditCreated || third.AnswerChanges != 1 || third.Audit.ID != first.Audit.ID {
		t.Fatalf("expected an update of the same audit, got %+v", third)
	}
	logs := f.store.AllChangeLogs()
	last := logs[len(logs)-1]
	if last.FieldName != f.surface.QuestionKey || domain.StringOrEmpty(last.OldValue) != "Grass" || domain.StringOrEmpty(last.NewValue) != "Synthetic" {
		t.Fatalf("unexpected answer log %+v", last)
	}
	if last.AuditID == nil || *last.AuditID != first.Audit.ID {
		t.Fatalf("answer log must reference the audit")
	}
}

func TestSaveWithoutChangesCreatesNoAudit(t *testing.T) {
	f := newFixture(t)
	ctx := contextAs(domain.RoleAuditor)

	res, err := f.svc.Save(ctx, SaveRequest{FacilityID: f.facility.ID, Answers: map[uuid.UUID]string{f.surface.ID: ""}})
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if res.Audit != nil || f.store.AuditCount() != 0 {
		t.Fatalf("blank answers against no audit must not create one")
	}
}

func TestSaveRejectsInvalidAnswers(t *testing.T) {
	f := newFixture(t)
	ctx := contextAs(domain.RoleAuditor)

	cases := []map[uuid.UUID]string{
		{f.surface.ID: "Clay"},
		{f.lighting.ID: "bright"},
		{uuid.New(): "x"},
	}
	for _, answers := range cases {
		if _, err := f.svc.Save(ctx, SaveRequest{FacilityID: f.facility.ID, Answers: answers}); !errors.Is(err, domain.ErrValidation) {
			t.Fatalf("expected validation error for %v, got %v", answers, err)
		}
	}
	if f.store.AuditCount() != 0 {
		t.Fatalf("rejected saves must not create audits")
	}
}

func TestSaveStaleRevisionConflicts(t *testing.T) {
	f := newFixture(t)
	ctx := contextAs(domain.RoleAuditor)
	stale := f.facility.Revision

	form := domain.FormOf(f.facility)
	form[domain.FieldTownSuburb] = "Carlton"
	if _, err := f.svc.Save(ctx, SaveRequest{FacilityID: f.facility.ID, ExpectedRevision: &stale, Facility: form}); err != nil {
		t.Fatalf("save: %v", err)
	}

	form[domain.FieldTownSuburb] = "Fitzroy"
	_, err := f.svc.Save(ctx, SaveRequest{FacilityID: f.facility.ID, ExpectedRevision: &stale, Facility: form})
	if !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected conflict for stale revision, got %v", err)
	}
}

func TestSaveStopsAtFirstFailedUnit(t *testing.T) {
	f := newFixture(t)
	ctx := contextAs(domain.RoleAuditor)
	f.store.Fail("audits.UpsertAnswer", errors.New("connection reset"))

	form := domain.FormOf(f.facility)
	form[domain.FieldPostcode] = "3002"
	before := f.store.ChangeLogCount()
	_, err := f.svc.Save(ctx, SaveRequest{
		FacilityID: f.facility.ID,
		Facility:   form,
		Answers:    map[uuid.UUID]string{f.surface.ID: "Grass"},
	})
	if !errors.Is(err, domain.ErrStore) {
		t.Fatalf("expected store error, got %v", err)
	}

	// The facility unit committed before the answer unit failed.
	stored, err := f.store.Facilities().GetByID(ctx, f.facility.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if stored.Postcode != "3002" {
		t.Fatalf("facility update should have committed, postcode %q", stored.Postcode)
	}
	if f.store.ChangeLogCount() != before+1 {
		t.Fatalf("only the facility log should remain, got %d new", f.store.ChangeLogCount()-before)
	}
	if f.store.AuditCount() != 0 {
		t.Fatalf("the audit created in the failed unit must be rolled back")
	}
}

func TestSoftDeleteFacility(t *testing.T) {
	f := newFixture(t)

	if err := f.svc.SoftDeleteFacility(contextAs(domain.RoleAdmin), f.facility.ID); !errors.Is(err, domain.ErrPermission) {
		t.Fatalf("admins must not delete facilities, got %v", err)
	}
	ctx := contextAs(domain.RoleSuperAdmin)
	if err := f.svc.SoftDeleteFacility(ctx, f.facility.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	logs := f.store.AllChangeLogs()
	last := logs[len(logs)-1]
	if last.FieldName != domain.ChangeFieldDeleted || domain.StringOrEmpty(last.OldValue) != "Oval A" {
		t.Fatalf("unexpected delete log %+v", last)
	}
	if _, err := f.svc.GetFacilityDetail(ctx, f.facility.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("deleted facility must not load, got %v", err)
	}
	if _, err := f.svc.Save(ctx, SaveRequest{FacilityID: f.facility.ID, Facility: domain.FacilityForm{domain.FieldVenueName: "B"}}); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("deleted facility must not save, got %v", err)
	}
}

func TestFacilityDetailHidesChangeLogsFromAuditors(t *testing.T) {
	f := newFixture(t)
	if _, err := f.svc.Save(contextAs(domain.RoleAuditor), SaveRequest{FacilityID: f.facility.ID, Answers: map[uuid.UUID]string{f.lighting.ID: "300"}}); err != nil {
		t.Fatalf("save: %v", err)
	}

	detail, err := f.svc.GetFacilityDetail(contextAs(domain.RoleAuditor), f.facility.ID)
	if err != nil {
		t.Fatalf("detail: %v", err)
	}
	if detail.ChangeLogs != nil {
		t.Fatalf("auditors must not see change logs")
	}
	if len(detail.Audits) != 1 || detail.Questionnaire == nil {
		t.Fatalf("unexpected detail %+v", detail)
	}
	if detail.LatestAnswers[f.lighting.ID] != "300" {
		t.Fatalf("expected latest answer 300, got %q", detail.LatestAnswers[f.lighting.ID])
	}

	admin, err := f.svc.GetFacilityDetail(contextAs(domain.RoleAdmin), f.facility.ID)
	if err != nil {
		t.Fatalf("detail: %v", err)
	}
	if len(admin.ChangeLogs) != 2 {
		t.Fatalf("expected creation and answer logs, got %d", len(admin.ChangeLogs))
	}
}

func TestEnsureAuditReusesLatestAudit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	actor := uuid.New()

	first, err := f.svc.Engine().EnsureAudit(ctx, f.store, actor, f.facility.ID, f.tree)
	if err != nil {
		t.Fatalf("ensure audit: %v", err)
	}
	second, err := f.svc.Engine().EnsureAudit(ctx, f.store, actor, f.facility.ID, f.tree)
	if err != nil {
		t.Fatalf("ensure audit again: %v", err)
	}
	if first.ID != second.ID || f.store.AuditCount() != 1 {
		t.Fatalf("expected one reused audit, got %s and %s (%d audits)", first.ID, second.ID, f.store.AuditCount())
	}
	if first.QuestionnaireVersionID != f.tree.ID || f.store.AnswerCount() != 0 {
		t.Fatalf("unexpected audit %+v", first)
	}
}
