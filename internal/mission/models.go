package mission

import (
	"time"

	"github.com/halverson/satcom-planner/internal/route"
)

// Transport identifies one of the three satellite communication links.
type Transport string

const (
	TransportX  Transport = "X"  // fixed geostationary link
	TransportKa Transport = "Ka" // three-satellite GEO constellation
	TransportKu Transport = "Ku" // always-on LEO constellation
)

// AllTransports lists every modeled transport in display order.
var AllTransports = []Transport{TransportX, TransportKa, TransportKu}

// TransportState is the availability of a single transport over an interval.
type TransportState string

const (
	StateAvailable TransportState = "available"
	StateDegraded  TransportState = "degraded"
	StateOffline   TransportState = "offline" // reserved for manual outages
)

// SegmentStatus is the aggregate communication status over an interval,
// derived from the count of non-available transports.
type SegmentStatus string

const (
	StatusNominal  SegmentStatus = "nominal"
	StatusDegraded SegmentStatus = "degraded"
	StatusCritical SegmentStatus = "critical"
)

// Severity grades an event for operator display.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeveritySafety  Severity = "safety"
)

// EventType tags a mission event. Adverse types open a condition on their
// transports; the matching clear type closes it.
type EventType string

const (
	EventAzimuthViolation EventType = "azimuth_violation"
	EventAzimuthClear     EventType = "azimuth_clear"
	EventTransitionStart  EventType = "transition_start"
	EventTransitionEnd    EventType = "transition_end"
	EventCoverageExit     EventType = "coverage_exit"
	EventCoverageEntry    EventType = "coverage_entry"
	EventOutageStart      EventType = "outage_start"
	EventOutageEnd        EventType = "outage_end"
	EventBufferStart      EventType = "buffer_start" // takeoff/landing safety buffer
	EventBufferEnd        EventType = "buffer_end"
	EventRefuelStart      EventType = "refuel_start" // informational markers
	EventRefuelEnd        EventType = "refuel_end"
)

// Event is a single mission communication event. Events are immutable once
// appended; their total order is timestamp ascending with insertion order
// breaking ties (Seq).
type Event struct {
	Timestamp   time.Time `json:"timestamp"`
	Type        EventType `json:"type"`
	Transport   Transport `json:"transport"`
	Affected    []Transport `json:"affected,omitempty"`
	Severity    Severity  `json:"severity"`
	Reason      string    `json:"reason"`
	SatelliteID string    `json:"satellite_id,omitempty"`

	// AftConflict marks an azimuth violation caused by the expected
	// simultaneous X/Ku aft-sector geometry rather than a fault. Carried as
	// a first-class flag so reporting never sniffs reason strings.
	AftConflict bool `json:"aft_conflict,omitempty"`

	Seq int `json:"-"` // insertion order, breaks timestamp ties
}

// affects reports whether the event references the given transport.
func (e Event) affects(t Transport) bool {
	if e.Transport == t {
		return true
	}
	for _, a := range e.Affected {
		if a == t {
			return true
		}
	}
	return false
}

// condKey identifies the open condition an adverse event starts, so the
// matching clear event can close exactly that condition.
func (e Event) condKey() string {
	return string(e.Type) + "|" + string(e.Transport) + "|" + e.SatelliteID + "|" + e.Reason
}

// ConstraintConfig is the immutable per-build pointing constraint set.
// Azimuth ranges are degrees relative to heading when the sample heading is
// known, absolute otherwise. The refueling exclusion wraps through 0.
type ConstraintConfig struct {
	MinElevationDeg float64

	NormalAzimuthMin float64
	NormalAzimuthMax float64

	RefuelAzimuthMin float64 // > RefuelAzimuthMax: the arc wraps through 0
	RefuelAzimuthMax float64

	// Aft sector shared by the X and Ku antennas. An azimuth violation whose
	// relative azimuth falls in this sector is flagged as an aft conflict,
	// and the Ku transport picks up a mirrored blockage event.
	AftAzimuthMin float64
	AftAzimuthMax float64

	TakeoffBuffer    time.Duration
	LandingBuffer    time.Duration
	TransitionWindow time.Duration // half-width of the degrade window around a satellite switch
}

// SatelliteAssignment is one entry of the time-ordered X satellite schedule.
type SatelliteAssignment struct {
	From        time.Time `json:"from"`
	SatelliteID string    `json:"satellite_id"`
}

// Transition is a scheduled X satellite switch.
type Transition struct {
	At          time.Time `json:"at"`
	SatelliteID string    `json:"satellite_id"` // satellite being switched to
}

// Outage is a manually declared Ka/Ku outage window.
type Outage struct {
	Transport Transport `json:"transport"`
	Start     time.Time `json:"start"`
	End       time.Time `json:"end"`
	Reason    string    `json:"reason"`
}

// RefuelWindow names the waypoint pair bounding an air-to-air refueling
// segment. Resolution to absolute times happens against the route.
type RefuelWindow struct {
	StartWaypoint string `json:"start_waypoint"`
	EndWaypoint   string `json:"end_waypoint"`
}

// TimeRange is a resolved half-open [Start, End) interval.
type TimeRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Contains reports whether t falls inside the range.
func (r TimeRange) Contains(t time.Time) bool {
	return !t.Before(r.Start) && t.Before(r.End)
}

// Config is the mission configuration a timeline build consumes.
type Config struct {
	ID   string `json:"id"`
	Name string `json:"name"`

	InitialXSatellite string         `json:"initial_x_satellite"`
	Transitions       []Transition   `json:"transitions,omitempty"`
	Outages           []Outage       `json:"outages,omitempty"`
	RefuelWindows     []RefuelWindow `json:"refuel_windows,omitempty"`

	WindowOverride *route.Window `json:"-"`
	SampleInterval time.Duration `json:"-"`

	Constraints ConstraintConfig `json:"-"`
}

// Segment is a half-open [Start, End) interval of constant aggregate status.
// Segments for one mission tile the window exactly, no gaps, no overlaps.
type Segment struct {
	Start    time.Time                    `json:"start"`
	End      time.Time                    `json:"end"`
	Status   SegmentStatus                `json:"status"`
	States   map[Transport]TransportState `json:"states"`
	Reasons  []string                     `json:"reasons,omitempty"`
	Impacted []Transport                  `json:"impacted,omitempty"`

	// AftConflictOnly is set when the segment was downgraded to nominal
	// because its only degradation was the expected X/Ku aft geometry.
	// Reasons are preserved for audit.
	AftConflictOnly bool `json:"aft_conflict_only,omitempty"`
}

// Duration returns the segment length.
func (s Segment) Duration() time.Duration { return s.End.Sub(s.Start) }

// Statistics aggregates a built timeline.
type Statistics struct {
	SecondsByStatus      map[SegmentStatus]float64 `json:"seconds_by_status"`
	NextNonNominalInSecs float64                   `json:"next_non_nominal_in_secs"` // -1 when none
}

// Timeline is the operator-facing mission communication timeline.
type Timeline struct {
	MissionID  string       `json:"mission_id"`
	Start      time.Time    `json:"start"`
	End        time.Time    `json:"end"`
	Segments   []Segment    `json:"segments"`
	Events     []Event      `json:"events"`
	Advisories []string     `json:"advisories,omitempty"`
	Stats      Statistics   `json:"stats"`
	BuiltAt    time.Time    `json:"built_at"`
}

// Summary is the compact build result returned alongside a timeline.
type Summary struct {
	MissionID    string        `json:"mission_id"`
	Duration     time.Duration `json:"duration"`
	SegmentCount int           `json:"segment_count"`
	EventCount   int           `json:"event_count"`
	POICount     int           `json:"poi_count"`
	Stats        Statistics    `json:"stats"`
}

// SatelliteCatalog resolves satellite ids to fixed sub-satellite longitudes.
type SatelliteCatalog interface {
	Longitude(id string) (float64, bool)
}
