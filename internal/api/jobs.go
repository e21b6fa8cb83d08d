package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/neexbeast/destinations/internal/destination"
	"github.com/neexbeast/destinations/internal/jobs"
)

const jobTypeBatchImport = "batch_import_cities"

// Outcome statuses of one batch item.
const (
	ItemCreated = "created"
	ItemFailed  = "failed"
)

// ImportOutcome records what happened to one element of a batch import.
type ImportOutcome struct {
	Index  int    `json:"index"`
	ID     string `json:"id,omitempty"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

type batchRequest struct {
	Cities json.RawMessage `json:"cities"`
}

type batchAccepted struct {
	Message string `json:"message"`
	JobID   string `json:"job_id"`
	Status  string `json:"status"`
	Links   Links  `json:"_links"`
}

type jobResponse struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Result    any       `json:"result,omitempty"`
	Error     string    `json:"error,omitempty"`
	Links     Links     `json:"_links"`
}

// BatchImportCities handles POST /cities/batch. The payload is checked for
// shape only; each city is validated and stored by a background job whose id
// is returned immediately.
func (h *Handlers) BatchImportCities(w http.ResponseWriter, r *http.Request) {
	var req batchRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, r, "job", err)
		return
	}

	if !isJSONArray(req.Cities) {
		h.writeError(w, r, "job", destination.NewValidationError("cities", "must be a non-empty array"))
		return
	}
	var items []json.RawMessage
	if err := json.Unmarshal(req.Cities, &items); err != nil {
		h.writeError(w, r, "job", destination.NewValidationError("cities", "must be a non-empty array"))
		return
	}
	if len(items) == 0 {
		h.writeError(w, r, "job", destination.NewValidationError("cities", "must be a non-empty array"))
		return
	}
	if len(items) > h.batchMaxItems {
		h.writeError(w, r, "job", destination.NewValidationError("cities",
			"must contain at most "+strconv.Itoa(h.batchMaxItems)+" items"))
		return
	}

	job := h.tracker.Create(jobTypeBatchImport, map[string]any{"cities": items})

	if err := h.runner.Submit(job.ID, h.importCities(items)); err != nil {
		h.tracker.UpdateStatus(job.ID, jobs.StatusFailed, nil, err.Error())
		h.log.Error("batch import not scheduled", "job_id", job.ID, "err", err)
		writeJSON(w, http.StatusServiceUnavailable, errorBody{Error: "job queue unavailable, retry later"})
		return
	}

	h.log.Info("batch import accepted", "job_id", job.ID, "items", len(items))

	href := jobHref(BaseURL(r), job.ID)
	w.Header().Set("Location", href)
	writeJSON(w, http.StatusAccepted, batchAccepted{
		Message: "Batch import accepted and is being processed",
		JobID:   job.ID,
		Status:  string(job.Status),
		Links:   Links{"job_status": {Href: href}},
	})
}

// importCities returns the job body for a batch. Items are stored one after
// another; a bad item is recorded and skipped, while a cancelled context
// fails the whole job.
func (h *Handlers) importCities(items []json.RawMessage) jobs.Work {
	return func(ctx context.Context) (any, error) {
		outcomes := make([]ImportOutcome, 0, len(items))
		for i, raw := range items {
			if err := ctx.Err(); err != nil {
				return nil, fmt.Errorf("batch import stopped after %d of %d items: %w", i, len(items), err)
			}
			outcomes = append(outcomes, h.importCity(ctx, i, raw))
		}
		return outcomes, nil
	}
}

func (h *Handlers) importCity(ctx context.Context, index int, raw json.RawMessage) ImportOutcome {
	failed := func(msg string) ImportOutcome {
		return ImportOutcome{Index: index, Status: ItemFailed, Error: msg}
	}

	var in destination.CityInput
	if err := decodeLenient(raw, &in); err != nil {
		return failed("invalid city data: " + err.Error())
	}
	in.Normalize()
	if err := in.Validate(); err != nil {
		return failed(err.Error())
	}

	city, err := h.repo.CreateCity(ctx, in)
	if err != nil {
		var verr *destination.ValidationError
		switch {
		case errors.Is(err, destination.ErrConflict):
			return failed("city " + in.Name + " already exists in " + in.CountryCode)
		case errors.As(err, &verr):
			return failed(verr.Error())
		default:
			h.log.Error("batch item failed", "index", index, "err", err)
			return failed("failed to store city")
		}
	}
	return ImportOutcome{Index: index, ID: city.ID, Status: ItemCreated}
}

// GetJob handles GET /jobs/{id}. result is shown only once a job completed
// and error only once it failed.
func (h *Handlers) GetJob(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(chi.URLParam(r, "id"))

	job, ok := h.tracker.Get(id)
	if !ok {
		h.writeError(w, r, "job", destination.ErrNotFound)
		return
	}

	resp := jobResponse{
		ID:        job.ID,
		Type:      job.Type,
		Status:    string(job.Status),
		CreatedAt: job.CreatedAt,
		UpdatedAt: job.UpdatedAt,
		Links:     Links{"self": {Href: jobHref(BaseURL(r), job.ID)}},
	}
	switch job.Status {
	case jobs.StatusCompleted:
		resp.Result = job.Result
	case jobs.StatusFailed:
		resp.Error = job.Error
	}

	writeJSON(w, http.StatusOK, resp)
}
