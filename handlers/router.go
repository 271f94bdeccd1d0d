package handlers

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"buildbank/config"
	"buildbank/logger"
	"buildbank/metrics"
	"buildbank/middleware"
)

// NewRouter wires the API routes, middleware and CORS.
func NewRouter(h *Handlers, cfg config.HTTPConfig, m *metrics.Metrics, log *logger.Logger) http.Handler {
	r := mux.NewRouter()

	r.Use(middleware.Logging(log))
	r.Use(middleware.RateLimit(cfg.RateLimit))
	r.Use(middleware.APIKey(cfg.APIKey, cfg.RequireAPIKey))

	r.HandleFunc("/health", h.HealthCheck).Methods("GET")
	r.Handle("/metrics", m.Handler()).Methods("GET")

	apiV1 := r.PathPrefix("/api/v1").Subrouter()
	apiV1.HandleFunc("/runs", h.StartRun).Methods("POST")
	apiV1.HandleFunc("/runs/status", h.RunStatus).Methods("GET")
	apiV1.HandleFunc("/runs/current", h.CancelRun).Methods("DELETE")
	apiV1.HandleFunc("/materials/{id}/prices", h.GetPriceHistory).Methods("GET")
	apiV1.HandleFunc("/materials/{id}/prices/latest", h.GetLatestPrices).Methods("GET")
	apiV1.HandleFunc("/settings/last-price-update", h.GetLastPriceUpdate).Methods("GET")
	apiV1.HandleFunc("/settings/{key}", h.GetSetting).Methods("GET")
	apiV1.HandleFunc("/settings/{key}", h.PutSetting).Methods("PUT")

	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:3000"}
	}
	c := cors.New(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type", "X-API-Key"},
		AllowCredentials: true,
	})
	return c.Handler(r)
}
