package simulation

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/halverson/satcom-planner/internal/geometry"
	"github.com/halverson/satcom-planner/internal/route"
	"github.com/halverson/satcom-planner/internal/telemetry"
	"github.com/halverson/satcom-planner/pkg/logger"
)

// Service replays the active route as synthetic telemetry for ground
// testing. It implements the telemetry source interface, so the tick service
// can't tell it apart from a live aircraft feed.
type Service struct {
	mu     sync.Mutex
	logger *logger.Logger

	speedKts   float64
	timeFactor float64

	route       *route.Route
	cumDist     []float64 // cumulative distance to each point, meters
	totalDist   float64
	progressM   float64
	lastAdvance time.Time
}

// NewService creates a simulation service. timeFactor scales simulated time
// against wall time (2.0 flies the route twice as fast).
func NewService(speedKts, timeFactor float64, log *logger.Logger) *Service {
	if timeFactor <= 0 {
		timeFactor = 1.0
	}
	return &Service{
		logger:     log.Named("simulation"),
		speedKts:   speedKts,
		timeFactor: timeFactor,
	}
}

// LoadRoute installs the route to replay. fromStart restarts the replay at
// the first point; otherwise progress is preserved across reloads of the
// same route.
func (s *Service) LoadRoute(r *route.Route, fromStart bool) error {
	if r == nil || len(r.Points) < 2 {
		return fmt.Errorf("simulation requires a route with at least two points")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sameRoute := s.route != nil && s.route.ID == r.ID
	s.route = r
	s.cumDist = make([]float64, len(r.Points))
	for i := 1; i < len(r.Points); i++ {
		s.cumDist[i] = s.cumDist[i-1] + geometry.Haversine(
			r.Points[i-1].Lat, r.Points[i-1].Lon,
			r.Points[i].Lat, r.Points[i].Lon)
	}
	s.totalDist = s.cumDist[len(s.cumDist)-1]
	if fromStart || !sameRoute {
		s.progressM = 0
	}
	s.lastAdvance = time.Now().UTC()

	s.logger.Info("Simulation route loaded",
		logger.String("route_id", r.ID),
		logger.Float64("total_km", s.totalDist/1000),
		logger.Bool("from_start", fromStart || !sameRoute))
	return nil
}

// Fetch advances the replay by the elapsed wall time and returns the
// resulting synthetic tick.
func (s *Service) Fetch(ctx context.Context) (*telemetry.Tick, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.route == nil {
		return nil, fmt.Errorf("no route loaded for simulation")
	}

	now := time.Now().UTC()
	elapsed := now.Sub(s.lastAdvance).Seconds() * s.timeFactor
	s.lastAdvance = now
	s.progressM += elapsed * s.speedKts * geometry.KnotsToMs
	if s.progressM > s.totalDist {
		s.progressM = s.totalDist
	}

	lat, lon, altFt, heading := s.positionLocked()
	speed := s.speedKts
	if s.progressM >= s.totalDist {
		// Parked at the destination so arrival dwell can trigger.
		speed = 0
	}

	return &telemetry.Tick{
		Time:       now,
		Lat:        lat,
		Lon:        lon,
		AltitudeFt: altFt,
		HeadingDeg: heading,
		SpeedKts:   speed,
	}, nil
}

// positionLocked interpolates the replay position; the caller holds the lock.
func (s *Service) positionLocked() (lat, lon, altFt, heading float64) {
	points := s.route.Points
	last := len(points) - 1

	if s.progressM <= 0 {
		p0, p1 := points[0], points[1]
		return p0.Lat, p0.Lon, p0.AltitudeFt, geometry.Bearing(p0.Lat, p0.Lon, p1.Lat, p1.Lon)
	}
	if s.progressM >= s.totalDist {
		pPrev, pEnd := points[last-1], points[last]
		return pEnd.Lat, pEnd.Lon, pEnd.AltitudeFt, geometry.Bearing(pPrev.Lat, pPrev.Lon, pEnd.Lat, pEnd.Lon)
	}

	seg := 1
	for seg < last && s.cumDist[seg] < s.progressM {
		seg++
	}
	p0, p1 := points[seg-1], points[seg]
	segLen := s.cumDist[seg] - s.cumDist[seg-1]
	frac := 0.0
	if segLen > 0 {
		frac = (s.progressM - s.cumDist[seg-1]) / segLen
	}
	lat, lon = geometry.Interpolate(p0.Lat, p0.Lon, p1.Lat, p1.Lon, frac)
	altFt = p0.AltitudeFt + (p1.AltitudeFt-p0.AltitudeFt)*frac
	heading = geometry.Bearing(p0.Lat, p0.Lon, p1.Lat, p1.Lon)
	return lat, lon, altFt, heading
}

// Progress reports the replayed distance and route total in meters.
func (s *Service) Progress() (progressM, totalM float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.progressM, s.totalDist
}
