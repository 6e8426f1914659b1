package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rpattn/auditdesk/internal/domain"
	"github.com/rpattn/auditdesk/internal/httpapi/render"
)

// bodyWithPathID decodes dst and, on PUT, takes the id from the path.
func bodyWithPathID(r *http.Request, op string, dst any) (uuid.UUID, error) {
	if err := render.Decode(r, dst); err != nil {
		return uuid.Nil, err
	}
	if chi.URLParam(r, "id") == "" {
		return uuid.Nil, nil
	}
	return pathID(r, op)
}

func (a *api) listTooltips(w http.ResponseWriter, r *http.Request) {
	configs, err := a.MapView.ListTooltips(r.Context(), queryBool(r, "active"))
	if err != nil {
		render.Error(w, r, err)
		return
	}
	render.JSON(w, http.StatusOK, configs)
}

func (a *api) saveTooltip(w http.ResponseWriter, r *http.Request) {
	var cfg domain.TooltipConfig
	id, err := bodyWithPathID(r, "mapview.save_tooltip", &cfg)
	if err != nil {
		render.Error(w, r, err)
		return
	}
	cfg.ID = id
	saved, err := a.MapView.SaveTooltip(r.Context(), cfg)
	if err != nil {
		render.Error(w, r, err)
		return
	}
	status := http.StatusOK
	if id == uuid.Nil {
		status = http.StatusCreated
	}
	render.JSON(w, status, saved)
}

func (a *api) deleteTooltip(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "mapview.delete_tooltip")
	if err != nil {
		render.Error(w, r, err)
		return
	}
	if err := a.MapView.DeleteTooltip(r.Context(), id); err != nil {
		render.Error(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *api) listFilters(w http.ResponseWriter, r *http.Request) {
	configs, err := a.MapView.ListFilters(r.Context(), queryBool(r, "active"))
	if err != nil {
		render.Error(w, r, err)
		return
	}
	render.JSON(w, http.StatusOK, configs)
}

func (a *api) saveFilter(w http.ResponseWriter, r *http.Request) {
	var cfg domain.FilterConfig
	id, err := bodyWithPathID(r, "mapview.save_filter", &cfg)
	if err != nil {
		render.Error(w, r, err)
		return
	}
	cfg.ID = id
	saved, err := a.MapView.SaveFilter(r.Context(), cfg)
	if err != nil {
		render.Error(w, r, err)
		return
	}
	status := http.StatusOK
	if id == uuid.Nil {
		status = http.StatusCreated
	}
	render.JSON(w, status, saved)
}

func (a *api) deleteFilter(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "mapview.delete_filter")
	if err != nil {
		render.Error(w, r, err)
		return
	}
	if err := a.MapView.DeleteFilter(r.Context(), id); err != nil {
		render.Error(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
