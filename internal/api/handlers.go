package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/halverson/satcom-planner/internal/config"
	"github.com/halverson/satcom-planner/internal/coverage"
	"github.com/halverson/satcom-planner/internal/eta"
	"github.com/halverson/satcom-planner/internal/flightstate"
	"github.com/halverson/satcom-planner/internal/metrics"
	"github.com/halverson/satcom-planner/internal/mission"
	"github.com/halverson/satcom-planner/internal/route"
	"github.com/halverson/satcom-planner/internal/simulation"
	"github.com/halverson/satcom-planner/internal/storage/sqlite"
	"github.com/halverson/satcom-planner/internal/telemetry"
	"github.com/halverson/satcom-planner/internal/websocket"
	"github.com/halverson/satcom-planner/pkg/logger"
)

// Handler contains the API handlers
type Handler struct {
	store             *sqlite.Store
	builder           *mission.Builder
	flightManager     *flightstate.Manager
	etaCalculator     *eta.Calculator
	telemetryService  *telemetry.Service
	simulationService *simulation.Service
	coverageData      *coverage.Dataset
	config            *config.Config
	logger            *logger.Logger
	wsServer          *websocket.Server
}

// NewHandler creates a new API handler. simulationService may be nil when
// simulation is disabled.
func NewHandler(store *sqlite.Store, builder *mission.Builder, flightManager *flightstate.Manager, etaCalculator *eta.Calculator, telemetryService *telemetry.Service, simulationService *simulation.Service, coverageData *coverage.Dataset, config *config.Config, logger *logger.Logger, wsServer *websocket.Server) *Handler {
	return &Handler{
		store:             store,
		builder:           builder,
		flightManager:     flightManager,
		etaCalculator:     etaCalculator,
		telemetryService:  telemetryService,
		simulationService: simulationService,
		coverageData:      coverageData,
		config:            config,
		logger:            logger.Named("api-handler"),
		wsServer:          wsServer,
	}
}

// GetHealth returns the health status of the API
func (h *Handler) GetHealth(w http.ResponseWriter, r *http.Request) {
	lastFetch, fetchOK := h.telemetryService.Status()

	response := map[string]interface{}{
		"status":             "ok",
		"telemetry_last":     lastFetch,
		"telemetry_ok":       fetchOK,
		"coverage_available": h.coverageData.LoadError() == nil,
	}

	WriteJSON(w, http.StatusOK, response)
}

// GetStatus returns a combined operational snapshot for the operator UI.
func (h *Handler) GetStatus(w http.ResponseWriter, r *http.Request) {
	status := h.flightManager.Status()
	lastFetch, fetchOK := h.telemetryService.Status()

	response := map[string]interface{}{
		"flight":          status,
		"telemetry_last":  lastFetch,
		"telemetry_ok":    fetchOK,
		"satellite_count": len(h.config.Satcom.Satellites),
	}

	active, err := h.store.GetActiveMission()
	if err != nil {
		h.logger.Error("Failed to load active mission", logger.Error(err))
	} else if active != nil {
		response["active_mission"] = map[string]interface{}{
			"id":       active.ID,
			"name":     active.Name,
			"route_id": active.RouteID,
		}
	}

	WriteJSON(w, http.StatusOK, response)
}

// GetConfig returns the public configuration
func (h *Handler) GetConfig(w http.ResponseWriter, r *http.Request) {
	// Create a sanitized config with only public values
	publicConfig := map[string]interface{}{
		"satcom": map[string]interface{}{
			"satellites":                h.config.Satcom.Satellites,
			"min_elevation_deg":         h.config.Satcom.MinElevationDeg,
			"sample_interval_seconds":   h.config.Satcom.SampleIntervalSecs,
			"takeoff_buffer_minutes":    h.config.Satcom.TakeoffBufferMins,
			"landing_buffer_minutes":    h.config.Satcom.LandingBufferMins,
			"transition_window_minutes": h.config.Satcom.TransitionWindowMins,
		},
		"flight_state": map[string]interface{}{
			"departure_speed_kts":        h.config.FlightState.DepartureSpeedKts,
			"departure_persistence_secs": h.config.FlightState.DeparturePersistenceSec,
			"arrival_radius_m":           h.config.FlightState.ArrivalRadiusM,
			"arrival_dwell_secs":         h.config.FlightState.ArrivalDwellSec,
		},
		"telemetry": map[string]interface{}{
			"fetch_interval_seconds": h.config.Telemetry.FetchIntervalSecs,
		},
		"simulation": map[string]interface{}{
			"enabled": h.config.Simulation.Enabled,
		},
	}

	WriteJSON(w, http.StatusOK, publicConfig)
}

// missionRequest is the payload for creating or updating a mission.
type missionRequest struct {
	ID                string                 `json:"id"`
	Name              string                 `json:"name"`
	RouteID           string                 `json:"route_id"`
	InitialXSatellite string                 `json:"initial_x_satellite"`
	Transitions       []mission.Transition   `json:"transitions,omitempty"`
	Outages           []mission.Outage       `json:"outages,omitempty"`
	RefuelWindows     []mission.RefuelWindow `json:"refuel_windows,omitempty"`
}

// CreateMission stores a mission configuration.
func (h *Handler) CreateMission(w http.ResponseWriter, r *http.Request) {
	var req missionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid mission payload: "+err.Error())
		return
	}
	if req.ID == "" {
		writeError(w, http.StatusBadRequest, "mission id is required")
		return
	}
	if req.RouteID != "" {
		rt, err := h.store.GetRoute(req.RouteID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to check route")
			return
		}
		if rt == nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("route %s not found", req.RouteID))
			return
		}
	}

	rec := &sqlite.MissionRecord{
		ID:      req.ID,
		Name:    req.Name,
		RouteID: req.RouteID,
		Config: &mission.Config{
			ID:                req.ID,
			Name:              req.Name,
			InitialXSatellite: req.InitialXSatellite,
			Transitions:       req.Transitions,
			Outages:           req.Outages,
			RefuelWindows:     req.RefuelWindows,
		},
	}
	if err := h.store.SaveMission(rec); err != nil {
		h.logger.Error("Failed to save mission", logger.Error(err), logger.String("mission_id", req.ID))
		writeError(w, http.StatusInternalServerError, "failed to save mission")
		return
	}

	h.logger.Info("Mission saved", logger.String("mission_id", req.ID))
	WriteJSON(w, http.StatusCreated, rec)
}

// ListMissions returns all stored missions.
func (h *Handler) ListMissions(w http.ResponseWriter, r *http.Request) {
	missions, err := h.store.ListMissions()
	if err != nil {
		h.logger.Error("Failed to list missions", logger.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list missions")
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"missions": missions,
		"count":    len(missions),
	})
}

// GetMission returns one mission by id.
func (h *Handler) GetMission(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	rec, err := h.store.GetMission(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load mission")
		return
	}
	if rec == nil {
		writeError(w, http.StatusNotFound, fmt.Sprintf("mission %s not found", id))
		return
	}
	WriteJSON(w, http.StatusOK, rec)
}

// ActivateMission marks one mission active and resets the flight state and
// ETA tracking for its route. When simulation is enabled the mission's route
// is loaded into the replay.
func (h *Handler) ActivateMission(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	rec, err := h.store.GetMission(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load mission")
		return
	}
	if rec == nil {
		writeError(w, http.StatusNotFound, fmt.Sprintf("mission %s not found", id))
		return
	}

	if err := h.store.SetActiveMission(id); err != nil {
		h.logger.Error("Failed to activate mission", logger.Error(err), logger.String("mission_id", id))
		writeError(w, http.StatusInternalServerError, "failed to activate mission")
		return
	}

	h.flightManager.UpdateRouteContext(rec.RouteID, true)
	h.etaCalculator.Reset()

	if h.simulationService != nil && rec.RouteID != "" {
		rt, err := h.store.GetRoute(rec.RouteID)
		if err == nil && rt != nil {
			if err := h.simulationService.LoadRoute(rt, h.config.Simulation.StartFromStart); err != nil {
				h.logger.Warn("Failed to load route into simulation", logger.Error(err))
			}
		}
	}

	h.logger.Info("Mission activated", logger.String("mission_id", id))
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"mission_id": id,
		"active":     true,
	})
}

// BuildTimeline builds the communication timeline for one mission on demand.
// Pass ?cached=true to return the most recent stored build instead.
func (h *Handler) BuildTimeline(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if r.URL.Query().Get("cached") == "true" {
		timeline, err := h.store.LatestTimeline(id)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to load stored timeline")
			return
		}
		if timeline == nil {
			writeError(w, http.StatusNotFound, fmt.Sprintf("no stored timeline for mission %s", id))
			return
		}
		WriteJSON(w, http.StatusOK, timeline)
		return
	}

	rec, err := h.store.GetMission(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load mission")
		return
	}
	if rec == nil {
		writeError(w, http.StatusNotFound, fmt.Sprintf("mission %s not found", id))
		return
	}
	if rec.RouteID == "" {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("mission %s has no route", id))
		return
	}

	rt, err := h.store.GetRoute(rec.RouteID)
	if err != nil || rt == nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to load route %s", rec.RouteID))
		return
	}
	pois, err := h.store.ListPOIs(rec.RouteID)
	if err != nil {
		h.logger.Warn("Failed to load POIs for build", logger.Error(err))
		pois = nil
	}

	buildCfg := h.buildConfig(rec)

	start := time.Now()
	timeline, summary, err := h.builder.Build(buildCfg, rt, h.coverageData, pois)
	metrics.ObserveBuild(time.Since(start), sampleCount(summary, buildCfg.SampleInterval), err)
	if err != nil {
		h.logger.Error("Timeline build failed", logger.Error(err), logger.String("mission_id", id))
		writeError(w, http.StatusUnprocessableEntity, "timeline build failed: "+err.Error())
		return
	}

	if err := h.store.SaveTimeline(timeline); err != nil {
		// The build result is still valid; persistence failure is not fatal.
		h.logger.Error("Failed to persist timeline", logger.Error(err), logger.String("mission_id", id))
	}
	h.wsServer.BroadcastTimelineUpdated(id)

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"timeline": timeline,
		"summary":  summary,
	})
}

// buildConfig merges the stored mission config with the pointing constraints
// and sampling cadence from the server configuration.
func (h *Handler) buildConfig(rec *sqlite.MissionRecord) *mission.Config {
	cfg := mission.Config{ID: rec.ID, Name: rec.Name}
	if rec.Config != nil {
		cfg = *rec.Config
		cfg.ID = rec.ID
		cfg.Name = rec.Name
	}
	cfg.Constraints = h.config.Satcom.Constraints()
	cfg.SampleInterval = h.config.Satcom.SampleInterval()
	return &cfg
}

func sampleCount(summary *mission.Summary, interval time.Duration) int {
	if summary == nil || interval <= 0 {
		return 0
	}
	return int(summary.Duration/interval) + 1
}

// UploadRoute stores a route definition.
func (h *Handler) UploadRoute(w http.ResponseWriter, r *http.Request) {
	var rt route.Route
	if err := json.NewDecoder(r.Body).Decode(&rt); err != nil {
		writeError(w, http.StatusBadRequest, "invalid route payload: "+err.Error())
		return
	}
	if rt.ID == "" {
		writeError(w, http.StatusBadRequest, "route id is required")
		return
	}
	if len(rt.Points) == 0 {
		writeError(w, http.StatusBadRequest, "route has no points")
		return
	}
	for i := range rt.Points {
		rt.Points[i].Sequence = i
	}

	if err := h.store.SaveRoute(&rt); err != nil {
		h.logger.Error("Failed to save route", logger.Error(err), logger.String("route_id", rt.ID))
		writeError(w, http.StatusInternalServerError, "failed to save route")
		return
	}

	h.logger.Info("Route saved",
		logger.String("route_id", rt.ID),
		logger.Int("points", len(rt.Points)),
		logger.Int("waypoints", len(rt.Waypoints)))
	WriteJSON(w, http.StatusCreated, map[string]interface{}{
		"route_id": rt.ID,
		"points":   len(rt.Points),
	})
}

// GetRoute returns one stored route by id.
func (h *Handler) GetRoute(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	rt, err := h.store.GetRoute(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load route")
		return
	}
	if rt == nil {
		writeError(w, http.StatusNotFound, fmt.Sprintf("route %s not found", id))
		return
	}
	WriteJSON(w, http.StatusOK, rt)
}

// CreatePOI stores a point of interest.
func (h *Handler) CreatePOI(w http.ResponseWriter, r *http.Request) {
	var poi route.POI
	if err := json.NewDecoder(r.Body).Decode(&poi); err != nil {
		writeError(w, http.StatusBadRequest, "invalid POI payload: "+err.Error())
		return
	}
	if poi.ID == "" {
		writeError(w, http.StatusBadRequest, "POI id is required")
		return
	}

	if err := h.store.SavePOI(&poi); err != nil {
		h.logger.Error("Failed to save POI", logger.Error(err), logger.String("poi_id", poi.ID))
		writeError(w, http.StatusInternalServerError, "failed to save POI")
		return
	}
	WriteJSON(w, http.StatusCreated, poi)
}

// ListPOIs returns points of interest, optionally filtered by route.
func (h *Handler) ListPOIs(w http.ResponseWriter, r *http.Request) {
	routeID := r.URL.Query().Get("route_id")
	pois, err := h.store.ListPOIs(routeID)
	if err != nil {
		h.logger.Error("Failed to list POIs", logger.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list POIs")
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"pois":  pois,
		"count": len(pois),
	})
}

// GetFlightStatus returns the current flight phase snapshot.
func (h *Handler) GetFlightStatus(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, h.flightManager.Status())
}

// TriggerDeparture forces the departure transition.
func (h *Handler) TriggerDeparture(w http.ResponseWriter, r *http.Request) {
	h.flightManager.TriggerDeparture()
	WriteJSON(w, http.StatusOK, h.flightManager.Status())
}

// TriggerArrival forces the arrival transition.
func (h *Handler) TriggerArrival(w http.ResponseWriter, r *http.Request) {
	h.flightManager.TriggerArrival()
	WriteJSON(w, http.StatusOK, h.flightManager.Status())
}

// SetFlightPhase moves the flight to an explicit phase.
func (h *Handler) SetFlightPhase(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Phase string `json:"phase"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid phase payload: "+err.Error())
		return
	}
	if err := h.flightManager.TransitionPhase(flightstate.Phase(req.Phase)); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	WriteJSON(w, http.StatusOK, h.flightManager.Status())
}

// GetPOIETAs computes ETA metrics for the active mission's POIs from the
// latest telemetry position.
func (h *Handler) GetPOIETAs(w http.ResponseWriter, r *http.Request) {
	active, err := h.store.GetActiveMission()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load active mission")
		return
	}
	if active == nil || active.RouteID == "" {
		writeError(w, http.StatusNotFound, "no active mission with a route")
		return
	}

	rt, err := h.store.GetRoute(active.RouteID)
	if err != nil || rt == nil {
		writeError(w, http.StatusInternalServerError, "failed to load active route")
		return
	}
	pois, err := h.store.ListPOIs(active.RouteID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load POIs")
		return
	}

	tick := h.telemetryService.Latest()
	status := h.flightManager.Status()

	var lat, lon, speed float64
	if tick != nil {
		lat, lon, speed = tick.Lat, tick.Lon, tick.SpeedKts
	} else if len(rt.Points) > 0 {
		// No telemetry yet; evaluate from the route origin.
		lat, lon = rt.Points[0].Lat, rt.Points[0].Lon
	}

	results := h.etaCalculator.CalculatePOIMetrics(lat, lon, pois, speed, rt, status.ETAMode, status.Phase)
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"mode":  status.ETAMode,
		"phase": status.Phase,
		"pois":  results,
	})
}

// GetTelemetryStatus returns the latest tick and fetch health.
func (h *Handler) GetTelemetryStatus(w http.ResponseWriter, r *http.Request) {
	lastFetch, fetchOK := h.telemetryService.Status()

	response := map[string]interface{}{
		"last_fetch": lastFetch,
		"fetch_ok":   fetchOK,
	}
	if tick := h.telemetryService.Latest(); tick != nil {
		response["latest"] = tick
	}
	if h.simulationService != nil {
		progressM, totalM := h.simulationService.Progress()
		response["simulation"] = map[string]interface{}{
			"progress_m": progressM,
			"total_m":    totalM,
		}
	}

	WriteJSON(w, http.StatusOK, response)
}

// WriteJSON writes a JSON response
func WriteJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// writeError writes a JSON error response
func writeError(w http.ResponseWriter, status int, message string) {
	WriteJSON(w, status, map[string]string{"error": message})
}
