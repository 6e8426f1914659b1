package memstore

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/rpattn/auditdesk/internal/domain"
	"github.com/rpattn/auditdesk/internal/repository"
)

func TestWithinTxRollsBackOnError(t *testing.T) {
	ctx := context.Background()
	store := New()

	boom := errors.New("boom")
	err := store.WithinTx(ctx, func(tx repository.Store) error {
		if _, err := tx.Facilities().Create(ctx, domain.Facility{VenueName: "Oval"}); err != nil {
			t.Fatalf("create: %v", err)
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}

	list, err := store.Facilities().List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 0 {
		t.Fatalf("expected rollback to discard facility, got %d", len(list))
	}
}

func TestFailInjection(t *testing.T) {
	ctx := context.Background()
	store := New()
	store.Fail("facilities.Create", errors.New("disk full"))

	_, err := store.Facilities().Create(ctx, domain.Facility{VenueName: "Oval"})
	if !errors.Is(err, domain.ErrStore) {
		t.Fatalf("expected store error, got %v", err)
	}

	store.Fail("facilities.Create", nil)
	if _, err := store.Facilities().Create(ctx, domain.Facility{VenueName: "Oval"}); err != nil {
		t.Fatalf("expected failure to clear: %v", err)
	}
}

func TestUpsertAnswerKeepsOneRowPerPair(t *testing.T) {
	ctx := context.Background()
	store := New()

	facility, _ := store.Facilities().Create(ctx, domain.Facility{VenueName: "Oval"})
	version, _ := store.Questionnaires().CreateVersion(ctx, domain.QuestionnaireVersion{Name: "v1"})
	section, _ := store.Questionnaires().CreateSection(ctx, domain.Section{QuestionnaireVersionID: version.ID, Name: "S"})
	question, _ := store.Questionnaires().CreateQuestion(ctx, domain.Question{
		SectionID: section.ID, QuestionnaireVersionID: version.ID, QuestionKey: "surface", Label: "Surface", Type: domain.QuestionTypeString,
	})
	audit, err := store.Audits().Create(ctx, domain.Audit{FacilityID: facility.ID, QuestionnaireVersionID: version.ID})
	if err != nil {
		t.Fatalf("create audit: %v", err)
	}

	for _, value := range []string{"Grass", "Turf"} {
		if _, err := store.Audits().UpsertAnswer(ctx, domain.AuditAnswer{AuditID: audit.ID, QuestionID: question.ID, Value: value}); err != nil {
			t.Fatalf("upsert: %v", err)
		}
	}
	if store.AnswerCount() != 1 {
		t.Fatalf("expected one answer row, got %d", store.AnswerCount())
	}

	latest, err := store.Audits().LatestAnswersByFacility(ctx, []uuid.UUID{facility.ID}, nil)
	if err != nil {
		t.Fatalf("latest answers: %v", err)
	}
	if latest[facility.ID]["surface"] != "Turf" {
		t.Fatalf("unexpected latest answers: %v", latest)
	}
}

func TestMarkPublishedEnforcesSinglePublished(t *testing.T) {
	ctx := context.Background()
	store := New()
	actor := uuid.New()

	v1, _ := store.Questionnaires().CreateVersion(ctx, domain.QuestionnaireVersion{Name: "v1"})
	v2, _ := store.Questionnaires().CreateVersion(ctx, domain.QuestionnaireVersion{Name: "v2"})
	if v2.VersionNumber != 2 {
		t.Fatalf("expected version number 2, got %d", v2.VersionNumber)
	}

	if _, err := store.Questionnaires().MarkPublished(ctx, v1.ID, actor, v1.CreatedAt); err != nil {
		t.Fatalf("publish v1: %v", err)
	}
	if _, err := store.Questionnaires().MarkPublished(ctx, v2.ID, actor, v2.CreatedAt); !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected conflict while another version is published, got %v", err)
	}
	if _, err := store.Questionnaires().MarkPublished(ctx, v1.ID, actor, v1.CreatedAt); !errors.Is(err, domain.ErrInvalidState) {
		t.Fatalf("expected invalid state re-publishing, got %v", err)
	}
}

func TestDeleteIdentityCascades(t *testing.T) {
	ctx := context.Background()
	store := New()

	identity, err := store.Identities().Create(ctx, domain.Identity{Email: "A@Example.com", PasswordHash: "x"})
	if err != nil {
		t.Fatalf("create identity: %v", err)
	}
	if _, err := store.Identities().Create(ctx, domain.Identity{Email: "a@example.com"}); !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected case-insensitive email conflict, got %v", err)
	}
	if _, err := store.Profiles().Create(ctx, domain.Profile{ID: identity.ID, Email: identity.Email, Role: domain.RoleAuditor}); err != nil {
		t.Fatalf("create profile: %v", err)
	}
	if err := store.Identities().Delete(ctx, identity.ID); err != nil {
		t.Fatalf("delete identity: %v", err)
	}
	if _, err := store.Profiles().GetByID(ctx, identity.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected profile to cascade, got %v", err)
	}
}
