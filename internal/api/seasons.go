package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/neexbeast/destinations/internal/destination"
)

type seasonResource struct {
	destination.Season
	Links Links `json:"_links"`
}

type seasonList struct {
	Data  []seasonResource `json:"data"`
	Links Links            `json:"_links"`
}

func newSeasonResource(base string, s destination.Season) seasonResource {
	return seasonResource{Season: s, Links: seasonLinks(base, s)}
}

// ListSeasons handles GET /seasons, optionally narrowed by ?city_id.
func (h *Handlers) ListSeasons(w http.ResponseWriter, r *http.Request) {
	base := BaseURL(r)
	self := base + "/seasons"

	cityID := r.URL.Query().Get("city_id")
	if cityID != "" {
		id, err := destination.ParseID("city_id", cityID)
		if err != nil {
			h.writeError(w, r, "season", err)
			return
		}
		cityID = id
		self += "?city_id=" + id
	}

	h.writeSeasons(w, r, cityID, self)
}

func (h *Handlers) writeSeasons(w http.ResponseWriter, r *http.Request, cityID, self string) {
	seasons, err := h.repo.ListSeasons(r.Context(), cityID)
	if err != nil {
		h.writeError(w, r, "season", err)
		return
	}

	base := BaseURL(r)
	data := make([]seasonResource, 0, len(seasons))
	for _, s := range seasons {
		data = append(data, newSeasonResource(base, s))
	}

	writeJSON(w, http.StatusOK, seasonList{
		Data:  data,
		Links: Links{"self": {Href: self}},
	})
}

// GetSeason handles GET /seasons/{id}.
func (h *Handlers) GetSeason(w http.ResponseWriter, r *http.Request) {
	id, err := destination.ParseID("id", chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, "season", err)
		return
	}

	season, err := h.repo.GetSeason(r.Context(), id)
	if err != nil {
		h.writeError(w, r, "season", err)
		return
	}
	if season == nil {
		h.writeError(w, r, "season", destination.ErrNotFound)
		return
	}

	etag, err := Fingerprint(season)
	if err != nil {
		h.writeError(w, r, "season", err)
		return
	}
	setCacheHeaders(w, etag)
	if notModified(r, etag) {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	writeJSON(w, http.StatusOK, newSeasonResource(BaseURL(r), *season))
}

// CreateSeason handles POST /seasons. The referenced city must exist.
func (h *Handlers) CreateSeason(w http.ResponseWriter, r *http.Request) {
	var in destination.SeasonInput
	if err := decodeJSON(w, r, &in); err != nil {
		h.writeError(w, r, "season", err)
		return
	}
	in.Normalize()
	if err := in.Validate(); err != nil {
		h.writeError(w, r, "season", err)
		return
	}

	season, err := h.repo.CreateSeason(r.Context(), in)
	if err != nil {
		h.writeError(w, r, "season", err)
		return
	}

	h.log.Info("season created", "season_id", season.ID, "city_id", season.CityID, "season_name", season.SeasonName)

	base := BaseURL(r)
	if etag, err := Fingerprint(season); err == nil {
		w.Header().Set("ETag", etag)
	}
	w.Header().Set("Location", base+"/seasons/"+season.ID)
	writeJSON(w, http.StatusCreated, newSeasonResource(base, *season))
}

// UpdateSeason handles PUT /seasons/{id} with the same If-Match contract as
// UpdateCity.
func (h *Handlers) UpdateSeason(w http.ResponseWriter, r *http.Request) {
	id, err := destination.ParseID("id", chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, "season", err)
		return
	}

	var patch destination.SeasonPatch
	if err := decodeJSON(w, r, &patch); err != nil {
		h.writeError(w, r, "season", err)
		return
	}
	patch.Normalize()
	if err := patch.Validate(); err != nil {
		h.writeError(w, r, "season", err)
		return
	}

	season, err := h.repo.UpdateSeason(r.Context(), id, patch, ifMatch[destination.Season](r))
	if err != nil {
		h.writeError(w, r, "season", err)
		return
	}

	etag, err := Fingerprint(season)
	if err != nil {
		h.writeError(w, r, "season", err)
		return
	}

	w.Header().Set("ETag", etag)
	writeJSON(w, http.StatusOK, newSeasonResource(BaseURL(r), *season))
}

// DeleteSeason handles DELETE /seasons/{id}.
func (h *Handlers) DeleteSeason(w http.ResponseWriter, r *http.Request) {
	id, err := destination.ParseID("id", chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, "season", err)
		return
	}

	if err := h.repo.DeleteSeason(r.Context(), id); err != nil {
		h.writeError(w, r, "season", err)
		return
	}

	h.log.Info("season deleted", "season_id", id)
	w.WriteHeader(http.StatusNoContent)
}
