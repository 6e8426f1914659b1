package ingestion

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/rpattn/auditdesk/internal/auth"
	"github.com/rpattn/auditdesk/internal/domain"
	"github.com/rpattn/auditdesk/internal/questionnaire"
	"github.com/rpattn/auditdesk/internal/repository/memstore"
	"github.com/xuri/excelize/v2"
)

func adminContext() context.Context {
	return auth.ContextWithSession(context.Background(), auth.Session{UserID: uuid.New(), Role: domain.RoleAdmin})
}

type importFixture struct {
	store   *memstore.Store
	service *Service
	surface domain.Question
	lights  domain.Question
}

// newImportFixture publishes a questionnaire with a list question "surface" and a
// number question "lights".
func newImportFixture(t *testing.T) *importFixture {
	t.Helper()
	store := memstore.New()
	ctx := adminContext()

	qs := questionnaire.NewService(store)
	version, err := qs.CreateVersion(ctx, "Baseline", "")
	if err != nil {
		t.Fatalf("create version: %v", err)
	}
	section, err := qs.AddSection(ctx, version.ID, "General", "")
	if err != nil {
		t.Fatalf("add section: %v", err)
	}
	surface, err := qs.AddQuestion(ctx, section.ID, questionnaire.QuestionInput{Label: "Surface", Type: domain.QuestionTypeList, Options: []string{"Grass", "Synthetic"}})
	if err != nil {
		t.Fatalf("add question: %v", err)
	}
	lights, err := qs.AddQuestion(ctx, section.ID, questionnaire.QuestionInput{Label: "Lights", Type: domain.QuestionTypeNumber})
	if err != nil {
		t.Fatalf("add question: %v", err)
	}
	if _, err := qs.Publish(ctx, version.ID); err != nil {
		t.Fatalf("publish: %v", err)
	}
	return &importFixture{store: store, service: NewService(store, nil), surface: surface, lights: lights}
}

func (f *importFixture) seedFacility(t *testing.T, name string) domain.Facility {
	t.Helper()
	created, err := f.store.Facilities().Create(context.Background(), domain.Facility{ID: uuid.New(), VenueName: name, Postcode: "2000"})
	if err != nil {
		t.Fatalf("seed facility: %v", err)
	}
	return created
}

func (f *importFixture) importCSV(t *testing.T, data string) Result {
	t.Helper()
	result, err := f.service.Import(adminContext(), Request{FileName: "upload.csv", Data: strings.NewReader(data)})
	if err != nil {
		t.Fatalf("import returned error: %v", err)
	}
	return result
}

func TestImportRowsAreIndependent(t *testing.T) {
	f := newImportFixture(t)
	existing := f.seedFacility(t, "Old name")

	data := "facility_id,venue_name\n" +
		",A\n" +
		",\n" +
		existing.ID.String() + ",B\n"
	result := f.importCSV(t, data)

	if result.Created != 1 || result.Updated != 1 {
		t.Fatalf("unexpected counts %+v", result)
	}
	if len(result.Errors) != 1 || result.Errors[0].Row != 3 || result.Errors[0].Message != "venue_name is required" {
		t.Fatalf("unexpected errors %+v", result.Errors)
	}

	updated, err := f.store.Facilities().GetByID(context.Background(), existing.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if updated.VenueName != "B" {
		t.Fatalf("expected venue B, got %q", updated.VenueName)
	}
	if updated.Postcode != "" {
		t.Fatalf("absent postcode column must clear the field, got %q", updated.Postcode)
	}
}

func TestImportSkipsEmptyLinesWhenNumberingRows(t *testing.T) {
	f := newImportFixture(t)
	data := "\ufeffvenue_name,postcode\n\nA,3000\n\n,3001\n"

	result := f.importCSV(t, data)
	if result.Created != 1 {
		t.Fatalf("expected one created facility, got %+v", result)
	}
	if len(result.Errors) != 1 || result.Errors[0].Row != 3 {
		t.Fatalf("expected row 3 error, got %+v", result.Errors)
	}
}

func TestImportWritesAnswersAndSkipsUnknownKeys(t *testing.T) {
	f := newImportFixture(t)
	data := "facility_id,venue_name,q__surface,q__lights,q__not_a_question\n" +
		",Oval, Grass ,,ignored\n"

	result := f.importCSV(t, data)
	if result.Created != 1 || len(result.Errors) != 0 {
		t.Fatalf("unexpected result %+v", result)
	}
	if f.store.AuditCount() != 1 || f.store.AnswerCount() != 1 {
		t.Fatalf("expected one audit with one answer, got %d audits %d answers", f.store.AuditCount(), f.store.AnswerCount())
	}

	facilities, err := f.store.Facilities().List(context.Background())
	if err != nil || len(facilities) != 1 {
		t.Fatalf("list: %v (%d)", err, len(facilities))
	}
	answers, err := f.store.Audits().LatestAnswersByFacility(context.Background(), nil, nil)
	if err != nil {
		t.Fatalf("latest answers: %v", err)
	}
	if got := answers[facilities[0].ID][f.surface.QuestionKey]; got != "Grass" {
		t.Fatalf("expected trimmed answer Grass, got %q", got)
	}
}

func TestImportReusesLatestAuditForVersion(t *testing.T) {
	f := newImportFixture(t)
	existing := f.seedFacility(t, "Oval")
	id := existing.ID.String()

	f.importCSV(t, "facility_id,venue_name,q__lights\n"+id+",Oval,100\n")
	f.importCSV(t, "facility_id,venue_name,q__lights\n"+id+",Oval,200\n")

	if f.store.AuditCount() != 1 || f.store.AnswerCount() != 1 {
		t.Fatalf("expected the second import to update the same audit, got %d audits %d answers", f.store.AuditCount(), f.store.AnswerCount())
	}
	logs := f.store.AllChangeLogs()
	last := logs[len(logs)-1]
	if last.FieldName != f.lights.QuestionKey || domain.StringOrEmpty(last.OldValue) != "100" || domain.StringOrEmpty(last.NewValue) != "200" {
		t.Fatalf("unexpected answer log %+v", last)
	}
}

func TestImportStoresAnswersWithoutTypeChecks(t *testing.T) {
	f := newImportFixture(t)
	result := f.importCSV(t, "venue_name,q__surface,q__lights\nA,grass,N/A\nPark,Grass,5\n")

	if result.Created != 2 || len(result.Errors) != 0 {
		t.Fatalf("both rows should import cleanly, got %+v", result)
	}
	if len(result.Warnings) != 1 || result.Warnings[0].Row != 2 {
		t.Fatalf("expected a row 2 warning, got %+v", result.Warnings)
	}
	if f.store.AuditCount() != 2 || f.store.AnswerCount() != 4 {
		t.Fatalf("expected 2 audits and 4 answers, got %d and %d", f.store.AuditCount(), f.store.AnswerCount())
	}

	facilities, err := f.store.Facilities().List(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	answers, err := f.store.Audits().LatestAnswersByFacility(context.Background(), nil, nil)
	if err != nil {
		t.Fatalf("latest answers: %v", err)
	}
	for _, fac := range facilities {
		if fac.VenueName != "A" {
			continue
		}
		got := answers[fac.ID]
		if got[f.surface.QuestionKey] != "grass" || got[f.lights.QuestionKey] != "N/A" {
			t.Fatalf("answers should be stored as given, got %v", got)
		}
	}
}

func TestImportCreatesAuditForBlankAnswerCells(t *testing.T) {
	f := newImportFixture(t)
	result := f.importCSV(t, "facility_id,venue_name,q__surface,q__lights\n,B,,\n")

	if result.Created != 1 || len(result.Errors) != 0 {
		t.Fatalf("unexpected result %+v", result)
	}
	if f.store.AuditCount() != 1 || f.store.AnswerCount() != 0 {
		t.Fatalf("expected one empty audit, got %d audits %d answers", f.store.AuditCount(), f.store.AnswerCount())
	}

	f.importCSV(t, "venue_name,postcode\nC,3000\n")
	if f.store.AuditCount() != 1 {
		t.Fatalf("a file without answer columns must not create audits, got %d", f.store.AuditCount())
	}
}

func TestImportContinuesAfterStoreFailure(t *testing.T) {
	f := newImportFixture(t)
	missing := uuid.New().String()

	result := f.importCSV(t, "facility_id,venue_name\n"+missing+",Ghost\nnot-an-id,Broken\n,Fresh\n")
	if result.Created != 1 || result.Updated != 0 {
		t.Fatalf("unexpected counts %+v", result)
	}
	if len(result.Errors) != 2 || result.Errors[0].Row != 2 || result.Errors[1].Row != 3 {
		t.Fatalf("unexpected errors %+v", result.Errors)
	}

	f.store.Fail("facilities.Create", errors.New("disk full"))
	result = f.importCSV(t, "venue_name\nA\nB\n")
	if result.Created != 0 || len(result.Errors) != 2 {
		t.Fatalf("expected every row to fail independently, got %+v", result)
	}
}

func TestImportParseFailure(t *testing.T) {
	f := newImportFixture(t)

	result, err := f.service.Import(adminContext(), Request{FileName: "bad.csv", Data: strings.NewReader("venue_name\n\"unterminated\n")})
	if !errors.Is(err, domain.ErrParse) {
		t.Fatalf("expected parse error, got %v", err)
	}
	if result.Created != 0 || result.Updated != 0 || len(result.Errors) != 1 {
		t.Fatalf("unexpected result %+v", result)
	}
	if result.Errors[0].Row != 0 || result.Errors[0].Message != ParseFailureMessage {
		t.Fatalf("unexpected parse row error %+v", result.Errors[0])
	}
}

func TestImportRequiresExportPermission(t *testing.T) {
	f := newImportFixture(t)
	ctx := auth.ContextWithSession(context.Background(), auth.Session{UserID: uuid.New(), Role: domain.RoleAuditor})

	if _, err := f.service.Import(ctx, Request{FileName: "a.csv", Data: strings.NewReader("venue_name\nA\n")}); !errors.Is(err, domain.ErrPermission) {
		t.Fatalf("expected permission error, got %v", err)
	}
}

func TestImportXLSX(t *testing.T) {
	f := newImportFixture(t)

	book := excelize.NewFile()
	sheet := book.GetSheetName(0)
	rows := [][]any{
		{"facility_id", "venue_name", "latitude", "longitude", "q__surface"},
		{"", "Stadium", "-37.8", "144.9", "Synthetic"},
	}
	for i, row := range rows {
		ref, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			t.Fatalf("cell name: %v", err)
		}
		if err := book.SetSheetRow(sheet, ref, &row); err != nil {
			t.Fatalf("set row: %v", err)
		}
	}
	var buf bytes.Buffer
	if err := book.Write(&buf); err != nil {
		t.Fatalf("write workbook: %v", err)
	}

	result, err := f.service.Import(adminContext(), Request{FileName: "upload.xlsx", Data: &buf})
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if result.Created != 1 || len(result.Errors) != 0 {
		t.Fatalf("unexpected result %+v", result)
	}
	facilities, err := f.store.Facilities().List(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if !facilities[0].HasLocation() {
		t.Fatalf("coordinates should be imported")
	}
	if f.store.AnswerCount() != 1 {
		t.Fatalf("expected one answer, got %d", f.store.AnswerCount())
	}
}

func TestParseTableRejectsUnknownExtension(t *testing.T) {
	if _, err := parseTable("data.pdf", []byte("x")); !errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("expected unsupported format, got %v", err)
	}
}

func TestImportDryRunRollsBack(t *testing.T) {
	f := newImportFixture(t)
	before := f.store.ChangeLogCount()

	result, err := f.service.Import(adminContext(), Request{
		FileName: "upload.csv",
		Data:     strings.NewReader("venue_name,q__surface\nA,Grass\n,\nB,Clay\n"),
		DryRun:   true,
	})
	if err != nil {
		t.Fatalf("dry run: %v", err)
	}
	if result.Created != 2 || len(result.Errors) != 2 {
		t.Fatalf("unexpected dry run result %+v", result)
	}
	if got := f.store.ChangeLogCount(); got != before {
		t.Fatalf("dry run wrote %d change logs", got-before)
	}
	if f.store.AnswerCount() != 0 || f.store.AuditCount() != 0 {
		t.Fatal("dry run left answers behind")
	}
}
