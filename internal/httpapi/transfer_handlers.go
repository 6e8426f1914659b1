package httpapi

import (
	"net/http"

	"github.com/rpattn/auditdesk/internal/httpapi/render"
	"github.com/rpattn/auditdesk/internal/ingestion"
)

type errorReportRequest struct {
	Errors []ingestion.RowError `json:"errors"`
}

func (a *api) facilityTemplate(w http.ResponseWriter, r *http.Request) {
	file, err := a.Export.FacilityTemplate(r.Context())
	if err != nil {
		render.Error(w, r, err)
		return
	}
	writeFile(w, file)
}

func (a *api) auditTemplate(w http.ResponseWriter, r *http.Request) {
	const op = "export.audit_template"
	versionID, err := optionalID(r, op, "questionnaireId")
	if err != nil {
		render.Error(w, r, err)
		return
	}
	format, err := queryFormat(r)
	if err != nil {
		render.Error(w, r, err)
		return
	}
	file, err := a.Export.AuditTemplate(r.Context(), versionID, format)
	if err != nil {
		render.Error(w, r, err)
		return
	}
	writeFile(w, file)
}

func (a *api) exportFacilities(w http.ResponseWriter, r *http.Request) {
	const op = "export.facilities"
	versionID, err := optionalID(r, op, "questionnaireId")
	if err != nil {
		render.Error(w, r, err)
		return
	}
	format, err := queryFormat(r)
	if err != nil {
		render.Error(w, r, err)
		return
	}
	file, err := a.Export.Facilities(r.Context(), versionID, format)
	if err != nil {
		render.Error(w, r, err)
		return
	}
	writeFile(w, file)
}

func (a *api) errorReport(w http.ResponseWriter, r *http.Request) {
	var req errorReportRequest
	if err := render.Decode(r, &req); err != nil {
		render.Error(w, r, err)
		return
	}
	file, err := a.Export.ErrorReport(r.Context(), req.Errors)
	if err != nil {
		render.Error(w, r, err)
		return
	}
	writeFile(w, file)
}
