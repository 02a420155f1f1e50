package flightstate

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/halverson/satcom-planner/pkg/logger"
)

// Phase is the coarse flight phase driving ETA mode selection.
type Phase string

const (
	PhasePreDeparture Phase = "pre_departure"
	PhaseInFlight     Phase = "in_flight"
	PhasePostArrival  Phase = "post_arrival"
)

func (p Phase) valid() bool {
	switch p {
	case PhasePreDeparture, PhaseInFlight, PhasePostArrival:
		return true
	}
	return false
}

// ETAMode selects which ETA calculation the planner runs.
type ETAMode string

const (
	ModeAnticipated ETAMode = "anticipated" // planned timestamps, pre-departure
	ModeEstimated   ETAMode = "estimated"   // live position and speed
)

// Config holds the detection thresholds. Zero values take the defaults.
type Config struct {
	DepartureSpeedKts    float64       // default 50
	DeparturePersistence time.Duration // default 10s
	ArrivalRadiusM       float64       // default 100
	ArrivalDwell         time.Duration // default 60s
}

func (c Config) withDefaults() Config {
	if c.DepartureSpeedKts <= 0 {
		c.DepartureSpeedKts = 50
	}
	if c.DeparturePersistence <= 0 {
		c.DeparturePersistence = 10 * time.Second
	}
	if c.ArrivalRadiusM <= 0 {
		c.ArrivalRadiusM = 100
	}
	if c.ArrivalDwell <= 0 {
		c.ArrivalDwell = 60 * time.Second
	}
	return c
}

// PhaseChange describes one phase transition for broadcast to listeners.
type PhaseChange struct {
	From    Phase     `json:"from"`
	To      Phase     `json:"to"`
	At      time.Time `json:"at"`
	Trigger string    `json:"trigger"` // "auto" or "manual"
}

// Status is an immutable snapshot of the manager state. Since fields are
// recomputed against the caller's clock on every call.
type Status struct {
	Phase            Phase          `json:"phase"`
	ETAMode          ETAMode        `json:"eta_mode"`
	RouteID          string         `json:"route_id,omitempty"`
	DepartureTime    *time.Time     `json:"departure_time,omitempty"`
	ArrivalTime      *time.Time     `json:"arrival_time,omitempty"`
	SincePhaseChange time.Duration  `json:"since_phase_change"`
	UpdatedAt        time.Time      `json:"updated_at"`
}

// Manager tracks the flight phase from telemetry ticks. One shared instance
// serves the telemetry service, the API and the ETA calculator; every method
// takes the single mutex. Automatic detection only moves the phase forward;
// TransitionPhase moves it anywhere.
type Manager struct {
	mu     sync.Mutex
	cfg    Config
	logger *logger.Logger

	phase          Phase
	phaseChangedAt time.Time
	routeID        string
	departureTime  *time.Time
	arrivalTime    *time.Time

	fastSince  *time.Time // departure persistence anchor
	closeSince *time.Time // arrival dwell anchor

	onChange func(PhaseChange)
}

// NewManager creates a flight state manager starting in pre-departure.
func NewManager(cfg Config, log *logger.Logger) *Manager {
	return &Manager{
		cfg:            cfg.withDefaults(),
		logger:         log.Named("flightstate"),
		phase:          PhasePreDeparture,
		phaseChangedAt: time.Now().UTC(),
	}
}

// SetPhaseChangeCallback installs a listener invoked after every phase change.
// The callback runs outside the lock.
func (m *Manager) SetPhaseChangeCallback(fn func(PhaseChange)) {
	m.mu.Lock()
	m.onChange = fn
	m.mu.Unlock()
}

// CheckDeparture feeds one telemetry speed reading. Departure fires once the
// speed stays above the threshold for the full persistence window; any dip
// below it resets the window. Returns true when this reading caused the
// transition.
func (m *Manager) CheckDeparture(speedKts float64, at time.Time) bool {
	if math.IsNaN(speedKts) || math.IsInf(speedKts, 0) {
		m.logger.Warn("Telemetry tick skipped, speed not finite")
		return false
	}

	m.mu.Lock()
	if m.phase != PhasePreDeparture {
		m.mu.Unlock()
		return false
	}

	if speedKts < m.cfg.DepartureSpeedKts {
		m.fastSince = nil
		m.mu.Unlock()
		return false
	}

	if m.fastSince == nil {
		t := at
		m.fastSince = &t
		m.mu.Unlock()
		return false
	}
	if at.Sub(*m.fastSince) < m.cfg.DeparturePersistence {
		m.mu.Unlock()
		return false
	}

	change := m.setPhaseLocked(PhaseInFlight, at, "auto")
	m.mu.Unlock()
	m.notify(change)
	return true
}

// CheckArrival feeds one distance-to-destination reading. Arrival fires once
// the aircraft dwells inside the arrival radius for the full dwell window;
// leaving the radius resets it.
func (m *Manager) CheckArrival(distanceM float64, at time.Time) bool {
	if math.IsNaN(distanceM) || math.IsInf(distanceM, 0) || distanceM < 0 {
		m.logger.Warn("Telemetry tick skipped, distance invalid",
			logger.Float64("distance_m", distanceM))
		return false
	}

	m.mu.Lock()
	if m.phase != PhaseInFlight {
		m.mu.Unlock()
		return false
	}

	if distanceM > m.cfg.ArrivalRadiusM {
		m.closeSince = nil
		m.mu.Unlock()
		return false
	}

	if m.closeSince == nil {
		t := at
		m.closeSince = &t
		m.mu.Unlock()
		return false
	}
	if at.Sub(*m.closeSince) < m.cfg.ArrivalDwell {
		m.mu.Unlock()
		return false
	}

	change := m.setPhaseLocked(PhasePostArrival, at, "auto")
	m.mu.Unlock()
	m.notify(change)
	return true
}

// TriggerDeparture forces the departure transition.
func (m *Manager) TriggerDeparture() {
	m.mu.Lock()
	change := m.setPhaseLocked(PhaseInFlight, time.Now().UTC(), "manual")
	m.mu.Unlock()
	m.notify(change)
}

// TriggerArrival forces the arrival transition.
func (m *Manager) TriggerArrival() {
	m.mu.Lock()
	change := m.setPhaseLocked(PhasePostArrival, time.Now().UTC(), "manual")
	m.mu.Unlock()
	m.notify(change)
}

// TransitionPhase moves to an arbitrary phase, including backwards. Moving
// back to pre-departure clears the recorded times and detection anchors.
func (m *Manager) TransitionPhase(to Phase) error {
	if !to.valid() {
		return fmt.Errorf("unknown flight phase %q", to)
	}
	m.mu.Lock()
	change := m.setPhaseLocked(to, time.Now().UTC(), "manual")
	m.mu.Unlock()
	m.notify(change)
	return nil
}

// UpdateRouteContext records the active route. A route identity change resets
// the manager to pre-departure unless autoReset is false.
func (m *Manager) UpdateRouteContext(routeID string, autoReset bool) {
	m.mu.Lock()
	if routeID == m.routeID {
		m.mu.Unlock()
		return
	}
	m.routeID = routeID

	var change PhaseChange
	reset := autoReset && m.phase != PhasePreDeparture
	if reset {
		change = m.setPhaseLocked(PhasePreDeparture, time.Now().UTC(), "auto")
	}
	m.mu.Unlock()

	m.logger.Info("Route context updated",
		logger.String("route_id", routeID),
		logger.Bool("reset", reset))
	if reset {
		m.notify(change)
	}
}

// Status returns a snapshot with the since field computed against now.
func (m *Manager) Status() Status {
	return m.statusAt(time.Now().UTC())
}

func (m *Manager) statusAt(now time.Time) Status {
	m.mu.Lock()
	defer m.mu.Unlock()

	mode := ModeEstimated
	if m.phase == PhasePreDeparture {
		mode = ModeAnticipated
	}
	return Status{
		Phase:            m.phase,
		ETAMode:          mode,
		RouteID:          m.routeID,
		DepartureTime:    copyTime(m.departureTime),
		ArrivalTime:      copyTime(m.arrivalTime),
		SincePhaseChange: now.Sub(m.phaseChangedAt),
		UpdatedAt:        now,
	}
}

// setPhaseLocked applies the transition; the caller holds the mutex.
func (m *Manager) setPhaseLocked(to Phase, at time.Time, trigger string) PhaseChange {
	change := PhaseChange{From: m.phase, To: to, At: at, Trigger: trigger}
	if to == m.phase {
		return change
	}
	m.phase = to
	m.phaseChangedAt = at
	m.fastSince = nil
	m.closeSince = nil

	switch to {
	case PhaseInFlight:
		if m.departureTime == nil {
			t := at
			m.departureTime = &t
		}
	case PhasePostArrival:
		if m.arrivalTime == nil {
			t := at
			m.arrivalTime = &t
		}
	case PhasePreDeparture:
		m.departureTime = nil
		m.arrivalTime = nil
	}
	return change
}

func (m *Manager) notify(change PhaseChange) {
	if change.From == change.To {
		return
	}
	m.logger.Info("Flight phase changed",
		logger.String("from", string(change.From)),
		logger.String("to", string(change.To)),
		logger.String("trigger", change.Trigger))

	m.mu.Lock()
	fn := m.onChange
	m.mu.Unlock()
	if fn != nil {
		fn(change)
	}
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}
