package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/neexbeast/destinations/internal/destination"
)

const (
	serviceName  = "ms-destinations"
	maxBodyBytes = 1 << 20
)

var errBodyTooLarge = errors.New("request body too large")

// Handlers holds the dependencies for all HTTP handlers.
type Handlers struct {
	repo          Repo
	cache         CityCache
	tracker       JobTracker
	runner        JobRunner
	batchMaxItems int
	log           *slog.Logger
}

// NewHandlers constructs Handlers with all required dependencies.
func NewHandlers(repo Repo, cache CityCache, tracker JobTracker, runner JobRunner, batchMaxItems int, log *slog.Logger) *Handlers {
	if batchMaxItems < 1 {
		batchMaxItems = 1000
	}
	return &Handlers{
		repo:          repo,
		cache:         cache,
		tracker:       tracker,
		runner:        runner,
		batchMaxItems: batchMaxItems,
		log:           log,
	}
}

type errorBody struct {
	Error   string                   `json:"error"`
	Details []destination.FieldError `json:"details,omitempty"`
}

// writeJSON encodes v as JSON and writes it with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError translates a domain error into a status code and JSON body.
// Anything outside the taxonomy is logged and reported as a generic 500.
func (h *Handlers) writeError(w http.ResponseWriter, r *http.Request, resource string, err error) {
	var verr *destination.ValidationError
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "validation failed", Details: verr.Fields})
	case errors.Is(err, errBodyTooLarge):
		writeJSON(w, http.StatusRequestEntityTooLarge, errorBody{Error: "request body exceeds 1 MiB"})
	case errors.Is(err, destination.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody{Error: resource + " not found"})
	case errors.Is(err, destination.ErrConflict):
		writeJSON(w, http.StatusConflict, errorBody{Error: resource + " already exists"})
	case errors.Is(err, destination.ErrPreconditionFailed):
		writeJSON(w, http.StatusPreconditionFailed, errorBody{Error: "precondition failed: " + resource + " has been modified"})
	default:
		h.log.Error("request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"request_id", middleware.GetReqID(r.Context()),
			"err", err,
		)
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal server error"})
	}
}

// decodeJSON reads a single JSON object from the request body into dst.
// Unknown fields, trailing data and oversized bodies are rejected.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	return decodeStrict(r.Body, dst)
}

func decodeStrict(body io.Reader, dst any) error {
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		return bodyError(err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return destination.NewValidationError("body", "must contain a single JSON object")
	}
	return nil
}

// decodeLenient decodes one JSON object, ignoring keys dst does not declare.
func decodeLenient(raw []byte, dst any) error {
	if err := json.Unmarshal(raw, dst); err != nil {
		return bodyError(err)
	}
	return nil
}

func bodyError(err error) error {
	var (
		maxErr    *http.MaxBytesError
		syntaxErr *json.SyntaxError
		typeErr   *json.UnmarshalTypeError
	)
	switch {
	case errors.As(err, &maxErr):
		return errBodyTooLarge
	case errors.Is(err, io.EOF):
		return destination.NewValidationError("body", "is required")
	case errors.As(err, &syntaxErr), errors.Is(err, io.ErrUnexpectedEOF):
		return destination.NewValidationError("body", "is not valid JSON")
	case errors.As(err, &typeErr):
		field := typeErr.Field
		if field == "" {
			return destination.NewValidationError("body", "must be a JSON object")
		}
		return destination.NewValidationError(field, "must be a "+jsonKind(typeErr.Type.Kind().String()))
	default:
		if name, ok := strings.CutPrefix(err.Error(), "json: unknown field "); ok {
			return destination.NewValidationError(strings.Trim(name, `"`), "is not a recognised field")
		}
		return destination.NewValidationError("body", "is not valid JSON")
	}
}

func jsonKind(goKind string) string {
	switch goKind {
	case "string":
		return "string"
	case "int", "int8", "int16", "int32", "int64", "uint", "uint8", "uint16", "uint32", "uint64", "float32", "float64":
		return "number"
	case "bool":
		return "boolean"
	case "slice", "array":
		return "array"
	default:
		return "object"
	}
}

// isJSONArray reports whether raw holds a JSON array.
func isJSONArray(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && trimmed[0] == '['
}

// cachedCity returns a city from Redis when present, otherwise from Postgres,
// repopulating the cache on a database hit. Cache failures never fail the read.
// The cache version is read before the database so that a write committed in
// between invalidates the repopulation.
func (h *Handlers) cachedCity(ctx context.Context, id string) (*destination.City, error) {
	cached, err := h.cache.Get(ctx, id)
	if err != nil {
		h.log.Warn("cache get failed", "city_id", id, "err", err)
	}
	if cached != nil {
		return cached, nil
	}

	version, verErr := h.cache.Version(ctx, id)
	if verErr != nil {
		h.log.Warn("cache version failed", "city_id", id, "err", verErr)
	}

	city, err := h.repo.GetCity(ctx, id)
	if err != nil {
		return nil, err
	}
	if city == nil || verErr != nil {
		return city, nil
	}

	stored, err := h.cache.Set(ctx, city, version)
	switch {
	case err != nil:
		h.log.Warn("cache set failed after db hit", "city_id", id, "err", err)
	case !stored:
		h.log.Debug("cache set skipped, city changed during read", "city_id", id)
	}
	return city, nil
}

func (h *Handlers) evictCity(ctx context.Context, id string) {
	if err := h.cache.Delete(ctx, id); err != nil {
		h.log.Warn("cache delete failed", "city_id", id, "err", err)
	}
}

type dbPinger interface {
	Ping(ctx context.Context) error
}

type redisPinger interface {
	Ping(ctx context.Context) error
}

// HealthHandlerFunc returns an http.HandlerFunc that checks db and redis connectivity.
// Both ok gives 200; any failure gives 503 with status "degraded".
func HealthHandlerFunc(db dbPinger, redis redisPinger, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()

		status := http.StatusOK
		dbStatus := "ok"
		redisStatus := "ok"

		if err := db.Ping(ctx); err != nil {
			log.Error("health check: db ping failed", "err", err)
			dbStatus = "error"
			status = http.StatusServiceUnavailable
		}

		if err := redis.Ping(ctx); err != nil {
			log.Error("health check: redis ping failed", "err", err)
			redisStatus = "error"
			status = http.StatusServiceUnavailable
		}

		overall := "ok"
		if status != http.StatusOK {
			overall = "degraded"
		}

		writeJSON(w, status, map[string]string{
			"status":  overall,
			"service": serviceName,
			"db":      dbStatus,
			"redis":   redisStatus,
		})
	}
}
