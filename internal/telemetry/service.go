package telemetry

import (
	"context"
	"sync"
	"time"

	"github.com/halverson/satcom-planner/internal/flightstate"
	"github.com/halverson/satcom-planner/internal/geometry"
	"github.com/halverson/satcom-planner/internal/websocket"
	"github.com/halverson/satcom-planner/pkg/logger"
)

// Source produces telemetry ticks. Implemented by the HTTP client and the
// simulation service.
type Source interface {
	Fetch(ctx context.Context) (*Tick, error)
}

// Broadcaster pushes telemetry to connected operator UIs.
type Broadcaster interface {
	Broadcast(message *websocket.Message)
}

// DestinationResolver returns the active route's destination, when one is
// loaded.
type DestinationResolver func() (lat, lon float64, ok bool)

// Service polls the telemetry source on a fixed interval and drives the
// flight state manager's departure and arrival detection. Failed fetches are
// logged and skipped; the loop keeps going.
type Service struct {
	source      Source
	manager     *flightstate.Manager
	broadcaster Broadcaster
	interval    time.Duration
	logger      *logger.Logger

	destination DestinationResolver

	mu        sync.RWMutex
	latest    *Tick
	lastFetch time.Time
	fetchOK   bool

	cancel context.CancelFunc
	done   chan struct{}
}

// NewService creates the telemetry tick service. broadcaster may be nil.
func NewService(source Source, manager *flightstate.Manager, broadcaster Broadcaster, interval time.Duration, log *logger.Logger) *Service {
	return &Service{
		source:      source,
		manager:     manager,
		broadcaster: broadcaster,
		interval:    interval,
		logger:      log.Named("telemetry"),
	}
}

// SetDestinationResolver installs the active-route destination lookup used
// for arrival detection.
func (s *Service) SetDestinationResolver(fn DestinationResolver) {
	s.mu.Lock()
	s.destination = fn
	s.mu.Unlock()
}

// Start launches the polling loop.
func (s *Service) Start(ctx context.Context) error {
	loopCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})

	s.logger.Info("Starting telemetry service",
		logger.Duration("interval", s.interval))

	go s.fetchLoop(loopCtx)
	return nil
}

// Stop terminates the polling loop and waits for it to exit.
func (s *Service) Stop() {
	if s.cancel != nil {
		s.cancel()
		<-s.done
	}
}

func (s *Service) fetchLoop(ctx context.Context) {
	defer close(s.done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	// Fetch once immediately so state is live before the first tick.
	if err := s.fetchAndProcess(ctx); err != nil {
		s.logger.Warn("Initial telemetry fetch failed", logger.Error(err))
	}

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Telemetry service stopped")
			return
		case <-ticker.C:
			if err := s.fetchAndProcess(ctx); err != nil {
				s.logger.Warn("Telemetry fetch failed", logger.Error(err))
				s.setFetchStatus(false)
			}
		}
	}
}

func (s *Service) fetchAndProcess(ctx context.Context) error {
	tick, err := s.source.Fetch(ctx)
	if err != nil {
		return err
	}

	s.manager.CheckDeparture(tick.SpeedKts, tick.Time)

	s.mu.RLock()
	resolver := s.destination
	s.mu.RUnlock()
	if resolver != nil {
		if destLat, destLon, ok := resolver(); ok {
			dist := geometry.Haversine(tick.Lat, tick.Lon, destLat, destLon)
			s.manager.CheckArrival(dist, tick.Time)
		}
	}

	s.mu.Lock()
	s.latest = tick
	s.lastFetch = time.Now().UTC()
	s.fetchOK = true
	s.mu.Unlock()

	if s.broadcaster != nil {
		s.broadcaster.Broadcast(&websocket.Message{
			Type: websocket.MessageTypeTelemetry,
			Data: map[string]any{
				"time":        tick.Time,
				"lat":         tick.Lat,
				"lon":         tick.Lon,
				"altitude_ft": tick.AltitudeFt,
				"heading_deg": tick.HeadingDeg,
				"speed_kts":   tick.SpeedKts,
			},
		})
	}
	return nil
}

// Latest returns the most recent tick, or nil when none has arrived yet.
func (s *Service) Latest() *Tick {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.latest == nil {
		return nil
	}
	t := *s.latest
	return &t
}

// Status reports the last fetch time and whether it succeeded.
func (s *Service) Status() (time.Time, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastFetch, s.fetchOK
}

func (s *Service) setFetchStatus(ok bool) {
	s.mu.Lock()
	s.fetchOK = ok
	s.mu.Unlock()
}
