package httpapi

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/rpattn/auditdesk/internal/auditing"
	"github.com/rpattn/auditdesk/internal/domain"
	"github.com/rpattn/auditdesk/internal/httpapi/render"
	"github.com/rpattn/auditdesk/internal/mapview"
)

type saveFacilityRequest struct {
	ExpectedRevision *int64               `json:"expected_revision"`
	Facility         domain.FacilityForm  `json:"facility"`
	QuestionnaireID  *uuid.UUID           `json:"questionnaire_id"`
	Answers          map[uuid.UUID]string `json:"answers"`
}

func (a *api) listFacilities(w http.ResponseWriter, r *http.Request) {
	q, err := mapview.ParseQuery(r.URL.Query())
	if err != nil {
		render.Error(w, r, err)
		return
	}
	views, err := a.MapView.ListFacilities(r.Context(), q)
	if err != nil {
		render.Error(w, r, err)
		return
	}
	render.JSON(w, http.StatusOK, views)
}

func (a *api) markers(w http.ResponseWriter, r *http.Request) {
	q, err := mapview.ParseQuery(r.URL.Query())
	if err != nil {
		render.Error(w, r, err)
		return
	}
	markers, err := a.MapView.Markers(r.Context(), q)
	if err != nil {
		render.Error(w, r, err)
		return
	}
	render.JSON(w, http.StatusOK, markers)
}

func (a *api) createFacility(w http.ResponseWriter, r *http.Request) {
	var form domain.FacilityForm
	if err := render.Decode(r, &form); err != nil {
		render.Error(w, r, err)
		return
	}
	facility, err := a.Auditing.CreateFacility(r.Context(), form)
	if err != nil {
		render.ErrorDetail(w, r, err)
		return
	}
	render.JSON(w, http.StatusCreated, facility)
}

func (a *api) facilityDetail(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "auditing.detail")
	if err != nil {
		render.Error(w, r, err)
		return
	}
	detail, err := a.Auditing.GetFacilityDetail(r.Context(), id)
	if err != nil {
		render.Error(w, r, err)
		return
	}
	render.JSON(w, http.StatusOK, detail)
}

func (a *api) saveFacility(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "auditing.save")
	if err != nil {
		render.Error(w, r, err)
		return
	}
	var req saveFacilityRequest
	if err := render.Decode(r, &req); err != nil {
		render.Error(w, r, err)
		return
	}
	result, err := a.Auditing.Save(r.Context(), auditing.SaveRequest{
		FacilityID:       id,
		ExpectedRevision: req.ExpectedRevision,
		Facility:         req.Facility,
		VersionID:        req.QuestionnaireID,
		Answers:          req.Answers,
	})
	if err != nil {
		render.Error(w, r, err)
		return
	}
	render.JSON(w, http.StatusOK, result)
}

func (a *api) deleteFacility(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "auditing.soft_delete")
	if err != nil {
		render.Error(w, r, err)
		return
	}
	if err := a.Auditing.SoftDeleteFacility(r.Context(), id); err != nil {
		render.Error(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *api) changeLogs(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "auditing.change_logs")
	if err != nil {
		render.Error(w, r, err)
		return
	}
	logs, err := a.Auditing.ListChangeLogs(r.Context(), id, queryInt(r, "limit"))
	if err != nil {
		render.Error(w, r, err)
		return
	}
	render.JSON(w, http.StatusOK, logs)
}
