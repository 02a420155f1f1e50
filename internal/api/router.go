package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/halverson/satcom-planner/internal/config"
	"github.com/halverson/satcom-planner/internal/coverage"
	"github.com/halverson/satcom-planner/internal/eta"
	"github.com/halverson/satcom-planner/internal/flightstate"
	"github.com/halverson/satcom-planner/internal/metrics"
	"github.com/halverson/satcom-planner/internal/mission"
	"github.com/halverson/satcom-planner/internal/simulation"
	"github.com/halverson/satcom-planner/internal/storage/sqlite"
	"github.com/halverson/satcom-planner/internal/telemetry"
	"github.com/halverson/satcom-planner/internal/websocket"
	"github.com/halverson/satcom-planner/pkg/logger"
)

// Router wires the HTTP routes to the handlers.
type Router struct {
	handler *Handler
	config  *config.Config
	logger  *logger.Logger
}

// NewRouter creates the main application router.
func NewRouter(store *sqlite.Store, builder *mission.Builder, flightManager *flightstate.Manager, etaCalculator *eta.Calculator, telemetryService *telemetry.Service, simulationService *simulation.Service, coverageData *coverage.Dataset, cfg *config.Config, log *logger.Logger, wsServer *websocket.Server) *Router {
	return &Router{
		handler: NewHandler(store, builder, flightManager, etaCalculator, telemetryService, simulationService, coverageData, cfg, log, wsServer),
		config:  cfg,
		logger:  log.Named("api-router"),
	}
}

// Routes builds and returns the HTTP handler for all servers.
func (rt *Router) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(metrics.Middleware)
	r.Use(rt.corsMiddleware)

	h := rt.handler

	r.Get("/health", h.GetHealth)
	r.Handle("/metrics", metrics.Handler())
	r.Get("/ws", h.wsServer.HandleConnection)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/status", h.GetStatus)
		r.Get("/config", h.GetConfig)

		r.Route("/missions", func(r chi.Router) {
			r.Get("/", h.ListMissions)
			r.Post("/", h.CreateMission)
			r.Get("/{id}", h.GetMission)
			r.Post("/{id}/activate", h.ActivateMission)
			r.Get("/{id}/timeline", h.BuildTimeline)
		})

		r.Route("/routes", func(r chi.Router) {
			r.Post("/", h.UploadRoute)
			r.Get("/{id}", h.GetRoute)
		})

		r.Route("/pois", func(r chi.Router) {
			r.Get("/", h.ListPOIs)
			r.Post("/", h.CreatePOI)
		})

		r.Route("/flight", func(r chi.Router) {
			r.Get("/status", h.GetFlightStatus)
			r.Get("/eta", h.GetPOIETAs)
			r.Post("/depart", h.TriggerDeparture)
			r.Post("/arrive", h.TriggerArrival)
			r.Post("/phase", h.SetFlightPhase)
		})

		r.Get("/telemetry/status", h.GetTelemetryStatus)
	})

	return r
}

// corsMiddleware applies the configured CORS policy.
func (rt *Router) corsMiddleware(next http.Handler) http.Handler {
	allowed := rt.config.Server.CORSAllowedOrigins

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" {
			for _, a := range allowed {
				if a == "*" || a == origin {
					w.Header().Set("Access-Control-Allow-Origin", a)
					w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
					w.Header().Set("Access-Control-Allow-Headers", "Accept, Content-Type")
					break
				}
			}
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
