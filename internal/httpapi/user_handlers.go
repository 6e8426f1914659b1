package httpapi

import (
	"errors"
	"mime"
	"net/http"
	"strings"

	"github.com/rpattn/auditdesk/internal/domain"
	"github.com/rpattn/auditdesk/internal/httpapi/render"
	"github.com/rpattn/auditdesk/internal/users"
)

func (a *api) listUsers(w http.ResponseWriter, r *http.Request) {
	profiles, err := a.Users.List(r.Context())
	if err != nil {
		render.Error(w, r, err)
		return
	}
	render.JSON(w, http.StatusOK, profiles)
}

func (a *api) createUser(w http.ResponseWriter, r *http.Request) {
	var req users.NewUser
	if err := render.Decode(r, &req); err != nil {
		render.Error(w, r, err)
		return
	}
	profile, err := a.Users.CreateUser(r.Context(), req)
	if err != nil {
		render.Error(w, r, err)
		return
	}
	render.JSON(w, http.StatusCreated, profile)
}

func (a *api) updateUser(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "users.update")
	if err != nil {
		render.Error(w, r, err)
		return
	}
	var req users.UserUpdate
	if err := render.Decode(r, &req); err != nil {
		render.Error(w, r, err)
		return
	}
	profile, err := a.Users.Update(r.Context(), id, req)
	if err != nil {
		render.Error(w, r, err)
		return
	}
	render.JSON(w, http.StatusOK, profile)
}

func (a *api) deleteUser(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "users.delete")
	if err != nil {
		render.Error(w, r, err)
		return
	}
	if err := a.Users.Delete(r.Context(), id); err != nil {
		render.Error(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// bulkUsers accepts the CSV either as a multipart "file" field or as the raw body.
func (a *api) bulkUsers(w http.ResponseWriter, r *http.Request) {
	const op = "users.bulk_http"
	maxBytes := a.MaxUploadBytes
	if maxBytes <= 0 {
		maxBytes = 32 << 20
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)

	body := r.Body
	if isMultipart(r) {
		if err := r.ParseMultipartForm(maxBytes); err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				render.Error(w, r, domain.ValidationError(op, "upload exceeds %d bytes", maxBytes))
				return
			}
			render.Error(w, r, domain.ParseError(op, err))
			return
		}
		defer r.MultipartForm.RemoveAll()
		file, _, err := r.FormFile("file")
		if err != nil {
			render.Error(w, r, domain.ValidationError(op, "file is required"))
			return
		}
		defer file.Close()
		body = file
	}

	result, err := a.Users.BulkImport(r.Context(), body)
	if err != nil {
		if domain.KindOf(err) == domain.ErrParse {
			render.ErrorWith(w, r, err, result)
			return
		}
		render.Error(w, r, err)
		return
	}
	render.JSON(w, http.StatusOK, result)
}

func isMultipart(r *http.Request) bool {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && strings.HasPrefix(mediaType, "multipart/")
}
