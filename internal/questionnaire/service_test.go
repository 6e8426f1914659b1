package questionnaire

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rpattn/auditdesk/internal/auth"
	"github.com/rpattn/auditdesk/internal/domain"
	"github.com/rpattn/auditdesk/internal/repository/memstore"
)

func adminContext() context.Context {
	return auth.ContextWithSession(context.Background(), auth.Session{UserID: uuid.New(), Role: domain.RoleAdmin})
}

func newTestService(t *testing.T) (*Service, *memstore.Store) {
	t.Helper()
	store := memstore.New()
	clock := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)
	svc := NewService(store, WithClock(func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}))
	return svc, store
}

func countPublished(t *testing.T, svc *Service, ctx context.Context) int {
	t.Helper()
	versions, err := svc.ListVersions(ctx)
	if err != nil {
		t.Fatalf("list versions: %v", err)
	}
	n := 0
	for _, v := range versions {
		if v.Status == domain.QuestionnaireStatusPublished {
			n++
		}
	}
	return n
}

func TestCreateVersionNumbersAndValidation(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := adminContext()

	if _, err := svc.CreateVersion(ctx, "  ", ""); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error for blank name, got %v", err)
	}

	first, err := svc.CreateVersion(ctx, "Initial", "")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	second, err := svc.CreateVersion(ctx, "Second", "")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if first.VersionNumber != 1 || second.VersionNumber != 2 {
		t.Fatalf("unexpected version numbers %d, %d", first.VersionNumber, second.VersionNumber)
	}
	if first.Status != domain.QuestionnaireStatusDraft {
		t.Fatalf("new versions must be drafts")
	}
}

func TestAuditorCannotConfigure(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := auth.ContextWithSession(context.Background(), auth.Session{UserID: uuid.New(), Role: domain.RoleAuditor})

	if _, err := svc.CreateVersion(ctx, "Nope", ""); !errors.Is(err, domain.ErrPermission) {
		t.Fatalf("expected permission error, got %v", err)
	}
}

func TestPublishKeepsAtMostOnePublished(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := adminContext()

	if countPublished(t, svc, ctx) != 0 {
		t.Fatalf("expected nothing published initially")
	}

	var ids []uuid.UUID
	for _, name := range []string{"v1", "v2", "v3"} {
		v, err := svc.CreateVersion(ctx, name, "")
		if err != nil {
			t.Fatalf("create: %v", err)
		}
		ids = append(ids, v.ID)
	}

	for i, id := range ids {
		published, err := svc.Publish(ctx, id)
		if err != nil {
			t.Fatalf("publish %d: %v", i, err)
		}
		if published.PublishedAt == nil || published.PublishedBy == nil {
			t.Fatalf("expected published_at and published_by to be set")
		}
		if got := countPublished(t, svc, ctx); got != 1 {
			t.Fatalf("after publish %d expected exactly one published, got %d", i, got)
		}
	}

	// Re-publishing an archived version is rejected and leaves state intact.
	if _, err := svc.Publish(ctx, ids[0]); !errors.Is(err, domain.ErrInvalidState) {
		t.Fatalf("expected invalid state for archived version, got %v", err)
	}
	if got := countPublished(t, svc, ctx); got != 1 {
		t.Fatalf("expected exactly one published, got %d", got)
	}

	tree, err := svc.PublishedTree(ctx)
	if err != nil || tree.ID != ids[2] {
		t.Fatalf("expected v3 published, got %v (%v)", tree.ID, err)
	}
}

func TestPublishRollsBackWhenMarkFails(t *testing.T) {
	svc, store := newTestService(t)
	ctx := adminContext()

	v1, _ := svc.CreateVersion(ctx, "v1", "")
	v2, _ := svc.CreateVersion(ctx, "v2", "")
	if _, err := svc.Publish(ctx, v1.ID); err != nil {
		t.Fatalf("publish v1: %v", err)
	}

	store.Fail("questionnaires.MarkPublished", errors.New("connection lost"))
	if _, err := svc.Publish(ctx, v2.ID); !errors.Is(err, domain.ErrStore) {
		t.Fatalf("expected store error, got %v", err)
	}
	store.Fail("questionnaires.MarkPublished", nil)

	tree, err := svc.PublishedTree(ctx)
	if err != nil || tree.ID != v1.ID {
		t.Fatalf("expected v1 to remain published after rollback, got %v (%v)", tree.ID, err)
	}
}

func TestDraftOnlyMutations(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := adminContext()

	v, _ := svc.CreateVersion(ctx, "v1", "")
	section, err := svc.AddSection(ctx, v.ID, "General", "")
	if err != nil {
		t.Fatalf("add section: %v", err)
	}
	question, err := svc.AddQuestion(ctx, section.ID, QuestionInput{Label: "Surface", Type: domain.QuestionTypeString})
	if err != nil {
		t.Fatalf("add question: %v", err)
	}
	if _, err := svc.Publish(ctx, v.ID); err != nil {
		t.Fatalf("publish: %v", err)
	}

	if _, err := svc.AddSection(ctx, v.ID, "Late", ""); !errors.Is(err, domain.ErrInvalidState) {
		t.Fatalf("expected invalid state adding to published, got %v", err)
	}
	if _, err := svc.EditSection(ctx, section.ID, "Renamed", ""); !errors.Is(err, domain.ErrInvalidState) {
		t.Fatalf("expected invalid state editing published section, got %v", err)
	}
	if err := svc.DeleteSection(ctx, section.ID); !errors.Is(err, domain.ErrInvalidState) {
		t.Fatalf("expected invalid state deleting published section, got %v", err)
	}
	if _, err := svc.AddQuestion(ctx, section.ID, QuestionInput{Label: "Other", Type: domain.QuestionTypeString}); !errors.Is(err, domain.ErrInvalidState) {
		t.Fatalf("expected invalid state adding question, got %v", err)
	}
	if _, err := svc.EditQuestion(ctx, question.ID, QuestionInput{Label: "Other", Type: domain.QuestionTypeString}); !errors.Is(err, domain.ErrInvalidState) {
		t.Fatalf("expected invalid state editing question, got %v", err)
	}

	retired, err := svc.RetireQuestion(ctx, question.ID)
	if err != nil {
		t.Fatalf("retire on published should succeed: %v", err)
	}
	if !retired.IsRetired || retired.RetiredAt == nil {
		t.Fatalf("expected question retired")
	}
}

func TestRetirementIsMonotonic(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := adminContext()

	v, _ := svc.CreateVersion(ctx, "v1", "")
	section, _ := svc.AddSection(ctx, v.ID, "General", "")
	question, _ := svc.AddQuestion(ctx, section.ID, QuestionInput{Label: "Surface", Type: domain.QuestionTypeString})

	first, err := svc.RetireQuestion(ctx, question.ID)
	if err != nil {
		t.Fatalf("retire: %v", err)
	}
	second, err := svc.RetireQuestion(ctx, question.ID)
	if err != nil {
		t.Fatalf("second retire: %v", err)
	}
	if !second.IsRetired || !second.RetiredAt.Equal(*first.RetiredAt) {
		t.Fatalf("retiring twice must keep the original retired_at")
	}

	// Editing cannot be used to bring a retired question back.
	if _, err := svc.EditQuestion(ctx, question.ID, QuestionInput{Label: "Surface", Type: domain.QuestionTypeString}); !errors.Is(err, domain.ErrInvalidState) {
		t.Fatalf("expected retired question to be immutable, got %v", err)
	}
}

func TestQuestionKeyImmutableAndUnique(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := adminContext()

	v, _ := svc.CreateVersion(ctx, "v1", "")
	section, _ := svc.AddSection(ctx, v.ID, "General", "")
	question, err := svc.AddQuestion(ctx, section.ID, QuestionInput{Label: "Surface Type", Type: domain.QuestionTypeRadio, Options: []string{"Grass", " ", "Turf"}})
	if err != nil {
		t.Fatalf("add question: %v", err)
	}
	if question.QuestionKey != "surface_type" {
		t.Fatalf("unexpected key %q", question.QuestionKey)
	}
	if len(question.Options) != 2 {
		t.Fatalf("expected blank options dropped, got %v", question.Options)
	}

	edited, err := svc.EditQuestion(ctx, question.ID, QuestionInput{Label: "Playing surface", Type: domain.QuestionTypeRadio, Options: []string{"Grass"}})
	if err != nil {
		t.Fatalf("edit: %v", err)
	}
	if edited.QuestionKey != "surface_type" || edited.Label != "Playing surface" {
		t.Fatalf("key must not change on edit: %+v", edited)
	}

	if _, err := svc.AddQuestion(ctx, section.ID, QuestionInput{Label: "Surface type!", Type: domain.QuestionTypeString}); !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected conflict for duplicate key, got %v", err)
	}

	if _, err := svc.AddQuestion(ctx, section.ID, QuestionInput{Label: "Amenities", Type: domain.QuestionTypeCheckbox}); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error for checkbox without options, got %v", err)
	}
}

func TestMoveSectionSwapsAndStopsAtBoundaries(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := adminContext()

	v, _ := svc.CreateVersion(ctx, "v1", "")
	a, _ := svc.AddSection(ctx, v.ID, "A", "")
	b, _ := svc.AddSection(ctx, v.ID, "B", "")
	c, _ := svc.AddSection(ctx, v.ID, "C", "")
	if a.SortOrder != 0 || b.SortOrder != 1 || c.SortOrder != 2 {
		t.Fatalf("unexpected append order %d %d %d", a.SortOrder, b.SortOrder, c.SortOrder)
	}

	names := func(sections []domain.Section) string {
		out := ""
		for _, s := range sections {
			out += s.Name
		}
		return out
	}

	got, err := svc.MoveSection(ctx, c.ID, DirectionUp)
	if err != nil {
		t.Fatalf("move: %v", err)
	}
	if names(got) != "ACB" {
		t.Fatalf("expected ACB, got %s", names(got))
	}

	got, err = svc.MoveSection(ctx, a.ID, DirectionUp)
	if err != nil || names(got) != "ACB" {
		t.Fatalf("moving the first section up should be a no-op, got %s (%v)", names(got), err)
	}
	got, err = svc.MoveSection(ctx, b.ID, DirectionDown)
	if err != nil || names(got) != "ACB" {
		t.Fatalf("moving the last section down should be a no-op, got %s (%v)", names(got), err)
	}
}

func TestDeleteSectionRemovesQuestionsAndAppendsAfterGap(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := adminContext()

	v, _ := svc.CreateVersion(ctx, "v1", "")
	a, _ := svc.AddSection(ctx, v.ID, "A", "")
	_, _ = svc.AddSection(ctx, v.ID, "B", "")
	if _, err := svc.AddQuestion(ctx, a.ID, QuestionInput{Label: "Lights", Type: domain.QuestionTypeString}); err != nil {
		t.Fatalf("add question: %v", err)
	}

	if err := svc.DeleteSection(ctx, a.ID); err != nil {
		t.Fatalf("delete section: %v", err)
	}
	tree, err := svc.Tree(ctx, v.ID)
	if err != nil {
		t.Fatalf("tree: %v", err)
	}
	if len(tree.AllQuestions()) != 0 {
		t.Fatalf("expected questions removed with their section")
	}

	c, err := svc.AddSection(ctx, v.ID, "C", "")
	if err != nil {
		t.Fatalf("add after delete: %v", err)
	}
	if c.SortOrder != 2 {
		t.Fatalf("expected new section after the last existing one, got %d", c.SortOrder)
	}
}
