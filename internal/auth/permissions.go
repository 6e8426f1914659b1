package auth

import (
	"context"

	"github.com/rpattn/auditdesk/internal/domain"
)

func CanManageUsers(role domain.Role) bool { return role.IsAdmin() }

func CanManageAllUsers(role domain.Role) bool { return role == domain.RoleSuperAdmin }

func CanConfigureQuestionnaire(role domain.Role) bool { return role.IsAdmin() }

func CanExportData(role domain.Role) bool { return role.IsAdmin() }

func CanDeleteFacilities(role domain.Role) bool { return role == domain.RoleSuperAdmin }

func CanViewChangeLogs(role domain.Role) bool { return role.IsAdmin() }

// CanAssignRole reports whether actor may create or promote a user to target.
// Admins may only hand out the auditor role.
func CanAssignRole(actor, target domain.Role) bool {
	if CanManageAllUsers(actor) {
		return true
	}
	return CanManageUsers(actor) && target == domain.RoleAuditor
}

// Require resolves the session and checks allowed against its role.
func Require(ctx context.Context, op string, allowed func(domain.Role) bool) (Session, error) {
	session, err := RequireSession(ctx, op)
	if err != nil {
		return Session{}, err
	}
	if !allowed(session.Role) {
		return Session{}, domain.PermissionError(op, "your role does not allow this action")
	}
	return session, nil
}
