package mapview

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/rpattn/auditdesk/internal/auditing"
	"github.com/rpattn/auditdesk/internal/auth"
	"github.com/rpattn/auditdesk/internal/domain"
	"github.com/rpattn/auditdesk/internal/questionnaire"
	"github.com/rpattn/auditdesk/internal/repository/memstore"
)

func contextAs(role domain.Role) context.Context {
	return auth.ContextWithSession(context.Background(), auth.Session{UserID: uuid.New(), Role: role})
}

func TestMarkersUseLatestAnswersAndSkipUnlocated(t *testing.T) {
	store := memstore.New()
	ctx := contextAs(domain.RoleAdmin)

	qs := questionnaire.NewService(store)
	version, err := qs.CreateVersion(ctx, "v1", "")
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	section, err := qs.AddSection(ctx, version.ID, "General", "")
	if err != nil {
		t.Fatalf("section: %v", err)
	}
	surface, err := qs.AddQuestion(ctx, section.ID, questionnaire.QuestionInput{Label: "Surface", Type: domain.QuestionTypeString})
	if err != nil {
		t.Fatalf("question: %v", err)
	}
	if _, err := qs.Publish(ctx, version.ID); err != nil {
		t.Fatalf("publish: %v", err)
	}

	audits := auditing.NewService(store)
	located, err := audits.CreateFacility(ctx, domain.FacilityForm{
		domain.FieldVenueName: "Oval",
		domain.FieldLatitude:  "-37.8",
		domain.FieldLongitude: "144.9",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := audits.CreateFacility(ctx, domain.FacilityForm{domain.FieldVenueName: "Nowhere"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := audits.Save(ctx, auditing.SaveRequest{FacilityID: located.ID, Answers: map[uuid.UUID]string{surface.ID: "Grass"}}); err != nil {
		t.Fatalf("save: %v", err)
	}

	svc := NewService(store, nil)
	if _, err := svc.SaveTooltip(ctx, domain.TooltipConfig{
		FieldRef:     domain.FieldRef{Source: domain.FieldSourceQuestion, Key: surface.QuestionKey},
		DisplayLabel: "Surface",
		IsActive:     true,
	}); err != nil {
		t.Fatalf("save tooltip: %v", err)
	}

	lctx := WithAnswerLoader(ctx, NewAnswerLoader(store.Audits()))
	markers, err := svc.Markers(lctx, Query{})
	if err != nil {
		t.Fatalf("markers: %v", err)
	}
	if len(markers) != 1 || markers[0].FacilityID != located.ID {
		t.Fatalf("expected one located marker, got %+v", markers)
	}
	if len(markers[0].Tooltip) != 1 || markers[0].Tooltip[0].Value != "Grass" {
		t.Fatalf("unexpected tooltip %+v", markers[0].Tooltip)
	}

	surfaceRef := domain.FieldRef{Source: domain.FieldSourceQuestion, Key: surface.QuestionKey}
	filtered := Query{Filters: map[domain.FieldRef]string{surfaceRef: "grass"}}
	views, err := svc.ListFacilities(lctx, filtered)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(views) != 2 {
		t.Fatalf("an unconfigured filter must not narrow the list, got %d", len(views))
	}

	if _, err := svc.SaveFilter(ctx, domain.FilterConfig{FieldRef: surfaceRef, DisplayLabel: "Surface", IsActive: true}); err != nil {
		t.Fatalf("save filter: %v", err)
	}
	views, err = svc.ListFacilities(lctx, filtered)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(views) != 1 || views[0].VenueName != "Oval" {
		t.Fatalf("unexpected filtered list %+v", views)
	}
}

func TestConfigValidation(t *testing.T) {
	store := memstore.New()
	svc := NewService(store, nil)
	admin := contextAs(domain.RoleAdmin)

	if _, err := svc.SaveFilter(contextAs(domain.RoleAuditor), domain.FilterConfig{}); !errors.Is(err, domain.ErrPermission) {
		t.Fatalf("expected permission error, got %v", err)
	}

	bad := []domain.FilterConfig{
		{FieldRef: domain.FieldRef{Source: domain.FieldSourceFacility, Key: "state"}},
		{FieldRef: domain.FieldRef{Source: domain.FieldSourceFacility, Key: "colour"}, DisplayLabel: "Colour"},
		{FieldRef: domain.FieldRef{Source: "audit", Key: "x"}, DisplayLabel: "X"},
		{FieldRef: domain.FieldRef{Source: domain.FieldSourceFacility, Key: "state"}, DisplayLabel: "State", FilterType: "slider"},
	}
	for _, cfg := range bad {
		if _, err := svc.SaveFilter(admin, cfg); !errors.Is(err, domain.ErrValidation) {
			t.Fatalf("expected validation error for %+v, got %v", cfg, err)
		}
	}

	saved, err := svc.SaveFilter(admin, domain.FilterConfig{
		FieldRef:     domain.FieldRef{Source: " Facility ", Key: "state"},
		DisplayLabel: " State ",
		IsActive:     true,
	})
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if saved.Source != domain.FieldSourceFacility || saved.DisplayLabel != "State" || saved.FilterType != domain.FilterTypeText {
		t.Fatalf("unexpected normalised config %+v", saved)
	}

	saved.IsActive = false
	if _, err := svc.SaveFilter(admin, saved); err != nil {
		t.Fatalf("update: %v", err)
	}
	active, err := svc.ListFilters(admin, true)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(active) != 0 {
		t.Fatalf("inactive filters must not be listed, got %d", len(active))
	}
	if err := svc.DeleteFilter(admin, saved.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
}
