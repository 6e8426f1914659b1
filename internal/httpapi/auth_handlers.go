package httpapi

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/rpattn/auditdesk/internal/auth"
	"github.com/rpattn/auditdesk/internal/domain"
	"github.com/rpattn/auditdesk/internal/httpapi/render"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (a *api) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := render.Decode(r, &req); err != nil {
		render.Error(w, r, err)
		return
	}
	result, err := a.Users.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		render.Error(w, r, err)
		return
	}
	render.JSON(w, http.StatusOK, result)
}

func (a *api) logout(w http.ResponseWriter, r *http.Request) {
	session, err := auth.RequireSession(r.Context(), "auth.logout")
	if err != nil {
		render.Error(w, r, err)
		return
	}
	if err := a.Users.Logout(r.Context(), session.Token); err != nil {
		render.Error(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type meResponse struct {
	ID       uuid.UUID   `json:"id"`
	Email    string      `json:"email"`
	FullName string      `json:"full_name"`
	Role     domain.Role `json:"role"`

	CanManageUsers            bool `json:"can_manage_users"`
	CanConfigureQuestionnaire bool `json:"can_configure_questionnaire"`
	CanExportData             bool `json:"can_export_data"`
	CanDeleteFacilities       bool `json:"can_delete_facilities"`
	CanViewChangeLogs         bool `json:"can_view_change_logs"`
}

func (a *api) me(w http.ResponseWriter, r *http.Request) {
	session, err := auth.RequireSession(r.Context(), "auth.me")
	if err != nil {
		render.Error(w, r, err)
		return
	}
	render.JSON(w, http.StatusOK, meResponse{
		ID:                        session.UserID,
		Email:                     session.Email,
		FullName:                  session.FullName,
		Role:                      session.Role,
		CanManageUsers:            auth.CanManageUsers(session.Role),
		CanConfigureQuestionnaire: auth.CanConfigureQuestionnaire(session.Role),
		CanExportData:             auth.CanExportData(session.Role),
		CanDeleteFacilities:       auth.CanDeleteFacilities(session.Role),
		CanViewChangeLogs:         auth.CanViewChangeLogs(session.Role),
	})
}
