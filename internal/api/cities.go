package api

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/neexbeast/destinations/internal/destination"
)

type cityResource struct {
	destination.City
	Links Links `json:"_links"`
}

type cityList struct {
	Data       []cityResource `json:"data"`
	Pagination Pagination     `json:"pagination"`
	Links      Links          `json:"_links"`
}

// cityPage is the state a collection ETag is computed from. Links are left
// out so the tag does not depend on the host the client used.
type cityPage struct {
	Items []destination.City `json:"items"`
	Total int                `json:"total"`
	Page  int                `json:"page"`
	Limit int                `json:"limit"`
}

func newCityResource(base string, c destination.City) cityResource {
	return cityResource{City: c, Links: cityLinks(base, c)}
}

// ListCities handles GET /cities.
func (h *Handlers) ListCities(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, limit := PageParams(q)
	filter := destination.CityFilter{
		CountryCode: strings.TrimSpace(q.Get("country_code")),
		Currency:    strings.TrimSpace(q.Get("currency")),
		Search:      strings.TrimSpace(q.Get("search")),
		Page:        page,
		Limit:       limit,
	}

	cities, total, err := h.repo.ListCities(r.Context(), filter)
	if err != nil {
		h.writeError(w, r, "city", err)
		return
	}

	etag, err := Fingerprint(cityPage{Items: cities, Total: total, Page: page, Limit: limit})
	if err != nil {
		h.writeError(w, r, "city", err)
		return
	}
	setCacheHeaders(w, etag)
	if notModified(r, etag) {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	base := BaseURL(r)
	data := make([]cityResource, 0, len(cities))
	for _, c := range cities {
		data = append(data, newCityResource(base, c))
	}

	pagination := NewPagination(page, limit, total)
	filters := url.Values{
		"country_code": {filter.CountryCode},
		"currency":     {filter.Currency},
		"search":       {filter.Search},
	}

	writeJSON(w, http.StatusOK, cityList{
		Data:       data,
		Pagination: pagination,
		Links:      PageLinks(base, "/cities", filters, pagination),
	})
}

// GetCity handles GET /cities/{id}.
// Cache hit → return. DB hit → cache + return. Neither → 404.
func (h *Handlers) GetCity(w http.ResponseWriter, r *http.Request) {
	id, err := destination.ParseID("id", chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, "city", err)
		return
	}

	city, err := h.cachedCity(r.Context(), id)
	if err != nil {
		h.writeError(w, r, "city", err)
		return
	}
	if city == nil {
		h.writeError(w, r, "city", destination.ErrNotFound)
		return
	}

	etag, err := Fingerprint(city)
	if err != nil {
		h.writeError(w, r, "city", err)
		return
	}
	setCacheHeaders(w, etag)
	if notModified(r, etag) {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	writeJSON(w, http.StatusOK, newCityResource(BaseURL(r), *city))
}

// CreateCity handles POST /cities.
func (h *Handlers) CreateCity(w http.ResponseWriter, r *http.Request) {
	var in destination.CityInput
	if err := decodeJSON(w, r, &in); err != nil {
		h.writeError(w, r, "city", err)
		return
	}
	in.Normalize()
	if err := in.Validate(); err != nil {
		h.writeError(w, r, "city", err)
		return
	}

	city, err := h.repo.CreateCity(r.Context(), in)
	if err != nil {
		h.writeError(w, r, "city", err)
		return
	}

	h.log.Info("city created", "city_id", city.ID, "name", city.Name, "country_code", city.CountryCode)

	base := BaseURL(r)
	if etag, err := Fingerprint(city); err == nil {
		w.Header().Set("ETag", etag)
	}
	w.Header().Set("Location", base+"/cities/"+city.ID)
	writeJSON(w, http.StatusCreated, newCityResource(base, *city))
}

// UpdateCity handles PUT /cities/{id}. Only supplied fields change. With an
// If-Match header the update is applied only if the tag still names the
// stored city; the comparison happens under the row lock.
func (h *Handlers) UpdateCity(w http.ResponseWriter, r *http.Request) {
	id, err := destination.ParseID("id", chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, "city", err)
		return
	}

	var patch destination.CityPatch
	if err := decodeJSON(w, r, &patch); err != nil {
		h.writeError(w, r, "city", err)
		return
	}
	patch.Normalize()
	if err := patch.Validate(); err != nil {
		h.writeError(w, r, "city", err)
		return
	}

	city, err := h.repo.UpdateCity(r.Context(), id, patch, ifMatch[destination.City](r))
	if err != nil {
		h.writeError(w, r, "city", err)
		return
	}
	h.evictCity(r.Context(), id)

	etag, err := Fingerprint(city)
	if err != nil {
		h.writeError(w, r, "city", err)
		return
	}

	w.Header().Set("ETag", etag)
	writeJSON(w, http.StatusOK, newCityResource(BaseURL(r), *city))
}

// DeleteCity handles DELETE /cities/{id}. Seasons of the city go with it.
func (h *Handlers) DeleteCity(w http.ResponseWriter, r *http.Request) {
	id, err := destination.ParseID("id", chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, "city", err)
		return
	}

	if err := h.repo.DeleteCity(r.Context(), id); err != nil {
		h.writeError(w, r, "city", err)
		return
	}
	h.evictCity(r.Context(), id)

	h.log.Info("city deleted", "city_id", id)
	w.WriteHeader(http.StatusNoContent)
}

// ListCitySeasons handles GET /cities/{id}/seasons.
func (h *Handlers) ListCitySeasons(w http.ResponseWriter, r *http.Request) {
	id, err := destination.ParseID("id", chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, "city", err)
		return
	}

	city, err := h.cachedCity(r.Context(), id)
	if err != nil {
		h.writeError(w, r, "city", err)
		return
	}
	if city == nil {
		h.writeError(w, r, "city", destination.ErrNotFound)
		return
	}

	h.writeSeasons(w, r, id, BaseURL(r)+"/cities/"+id+"/seasons")
}
