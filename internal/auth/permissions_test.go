package auth

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/rpattn/auditdesk/internal/domain"
)

func TestRoleHelpers(t *testing.T) {
	cases := []struct {
		name string
		fn   func(domain.Role) bool
		want map[domain.Role]bool
	}{
		{"manage users", CanManageUsers, map[domain.Role]bool{domain.RoleAuditor: false, domain.RoleAdmin: true, domain.RoleSuperAdmin: true}},
		{"manage all users", CanManageAllUsers, map[domain.Role]bool{domain.RoleAuditor: false, domain.RoleAdmin: false, domain.RoleSuperAdmin: true}},
		{"configure questionnaire", CanConfigureQuestionnaire, map[domain.Role]bool{domain.RoleAuditor: false, domain.RoleAdmin: true, domain.RoleSuperAdmin: true}},
		{"export", CanExportData, map[domain.Role]bool{domain.RoleAuditor: false, domain.RoleAdmin: true, domain.RoleSuperAdmin: true}},
		{"delete facilities", CanDeleteFacilities, map[domain.Role]bool{domain.RoleAuditor: false, domain.RoleAdmin: false, domain.RoleSuperAdmin: true}},
		{"view change logs", CanViewChangeLogs, map[domain.Role]bool{domain.RoleAuditor: false, domain.RoleAdmin: true, domain.RoleSuperAdmin: true}},
	}
	for _, tc := range cases {
		for role, want := range tc.want {
			if got := tc.fn(role); got != want {
				t.Fatalf("%s(%s) = %v, want %v", tc.name, role, got, want)
			}
		}
	}
}

func TestCanAssignRole(t *testing.T) {
	if CanAssignRole(domain.RoleAdmin, domain.RoleAdmin) {
		t.Fatalf("admins must not create admins")
	}
	if !CanAssignRole(domain.RoleAdmin, domain.RoleAuditor) {
		t.Fatalf("admins may create auditors")
	}
	if !CanAssignRole(domain.RoleSuperAdmin, domain.RoleSuperAdmin) {
		t.Fatalf("super admins may assign any role")
	}
	if CanAssignRole(domain.RoleAuditor, domain.RoleAuditor) {
		t.Fatalf("auditors cannot manage users")
	}
}

func TestRequire(t *testing.T) {
	if _, err := Require(context.Background(), "op", CanExportData); domain.KindOf(err) != domain.ErrPermission {
		t.Fatalf("anonymous context should be denied, got %v", err)
	}

	ctx := ContextWithSession(context.Background(), Session{UserID: uuid.New(), Role: domain.RoleAuditor})
	if _, err := Require(ctx, "op", CanExportData); domain.KindOf(err) != domain.ErrPermission {
		t.Fatalf("auditor should be denied export, got %v", err)
	}

	ctx = ContextWithSession(context.Background(), Session{UserID: uuid.New(), Role: domain.RoleAdmin})
	session, err := Require(ctx, "op", CanExportData)
	if err != nil || session.Role != domain.RoleAdmin {
		t.Fatalf("admin should be allowed: %v", err)
	}
}
