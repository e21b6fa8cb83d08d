package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
)

// NewRouter builds and returns the Chi router with all routes configured.
// Rate limiting is applied globally: ratePerMinute requests per minute per IP.
func NewRouter(handlers *Handlers, db dbPinger, redisClient redisPinger, ratePerMinute int, log *slog.Logger) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger(log))
	r.Use(middleware.Recoverer)
	r.Use(httprate.LimitByIP(ratePerMinute, time.Minute))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, errorBody{Error: "not found"})
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, errorBody{Error: "method not allowed"})
	})

	health := HealthHandlerFunc(db, redisClient, log)
	r.Get("/health", health)
	r.Get("/healthz", health)

	r.Route("/cities", func(r chi.Router) {
		r.Get("/", handlers.ListCities)
		r.Post("/", handlers.CreateCity)
		r.Post("/batch", handlers.BatchImportCities)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", handlers.GetCity)
			r.Put("/", handlers.UpdateCity)
			r.Delete("/", handlers.DeleteCity)
			r.Get("/seasons", handlers.ListCitySeasons)
		})
	})

	r.Route("/seasons", func(r chi.Router) {
		r.Get("/", handlers.ListSeasons)
		r.Post("/", handlers.CreateSeason)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", handlers.GetSeason)
			r.Put("/", handlers.UpdateSeason)
			r.Delete("/", handlers.DeleteSeason)
		})
	})

	r.Get("/jobs/{id}", handlers.GetJob)

	return r
}

// Ensure chi.Mux implements http.Handler.
var _ http.Handler = (*chi.Mux)(nil)
