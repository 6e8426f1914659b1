package ingestion

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/rpattn/auditdesk/internal/domain"
	"github.com/rpattn/auditdesk/internal/httpapi/render"
)

// Handler exposes the bulk facility import as a multipart POST endpoint.
type Handler struct {
	service  *Service
	maxBytes int64
}

// NewHTTPHandler wraps the service. maxBytes caps the request body; zero means 32 MiB.
func NewHTTPHandler(service *Service, maxBytes int64) http.Handler {
	if maxBytes <= 0 {
		maxBytes = 32 << 20
	}
	return &Handler{service: service, maxBytes: maxBytes}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "ingestion.http"
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes)
	if err := r.ParseMultipartForm(h.maxBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			render.Error(w, r, domain.ValidationError(op, "upload exceeds %d bytes", h.maxBytes))
			return
		}
		render.Error(w, r, domain.ParseError(op, err))
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		render.Error(w, r, domain.ValidationError(op, "file is required"))
		return
	}
	defer file.Close()

	req := Request{FileName: header.Filename, Data: file}
	if dry, err := strconv.ParseBool(r.FormValue("dryRun")); err == nil {
		req.DryRun = dry
	}
	if raw := strings.TrimSpace(r.FormValue("questionnaireId")); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			render.Error(w, r, domain.ValidationError(op, "questionnaireId %q is not a valid id", raw))
			return
		}
		req.VersionID = &id
	}

	result, err := h.service.Import(r.Context(), req)
	if err != nil {
		if domain.KindOf(err) == domain.ErrParse {
			// the row 0 entry carries the message the client shows
			render.ErrorWith(w, r, err, result)
			return
		}
		render.Error(w, r, err)
		return
	}
	render.JSON(w, http.StatusOK, result)
}
