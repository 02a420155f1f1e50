package mission

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/halverson/satcom-planner/internal/coverage"
	"github.com/halverson/satcom-planner/internal/geometry"
	"github.com/halverson/satcom-planner/internal/route"
	"github.com/halverson/satcom-planner/pkg/logger"
)

// Engine accumulates typed mission events from geometry, coverage analysis
// and mission configuration. One engine serves one build.
type Engine struct {
	window      route.Window
	constraints ConstraintConfig
	catalog     SatelliteCatalog
	logger      *logger.Logger

	events []Event
	seq    int

	schedule      []SatelliteAssignment
	refuelRanges  []TimeRange
	unknownSatLog map[string]bool
}

// NewEngine creates a rule engine for one mission window.
func NewEngine(window route.Window, constraints ConstraintConfig, catalog SatelliteCatalog, log *logger.Logger) *Engine {
	return &Engine{
		window:        window,
		constraints:   constraints,
		catalog:       catalog,
		logger:        log.Named("rules"),
		unknownSatLog: make(map[string]bool),
	}
}

func (e *Engine) append(ev Event) {
	ev.Seq = e.seq
	e.seq++
	e.events = append(e.events, ev)
}

// clampToWindow pins a timestamp inside the mission window.
func (e *Engine) clampToWindow(t time.Time) time.Time {
	if t.Before(e.window.Start) {
		return e.window.Start
	}
	if t.After(e.window.End) {
		return e.window.End
	}
	return t
}

// SetSchedule installs the time-ordered X satellite assignment schedule,
// derived from the initial assignment plus scheduled transitions.
func (e *Engine) SetSchedule(initial string, transitions []Transition) {
	e.schedule = []SatelliteAssignment{{From: e.window.Start, SatelliteID: initial}}
	sorted := make([]Transition, len(transitions))
	copy(sorted, transitions)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].At.Before(sorted[j].At) })
	for _, tr := range sorted {
		e.schedule = append(e.schedule, SatelliteAssignment{From: tr.At, SatelliteID: tr.SatelliteID})
	}
}

// assignedSatellite resolves the X satellite active at time t. The schedule
// and the sample sweep are both time-ordered, so a monotonic cursor gives
// merge-join resolution without re-scanning.
type scheduleCursor struct {
	schedule []SatelliteAssignment
	pos      int
}

func (c *scheduleCursor) at(t time.Time) string {
	for c.pos+1 < len(c.schedule) && !t.Before(c.schedule[c.pos+1].From) {
		c.pos++
	}
	if len(c.schedule) == 0 {
		return ""
	}
	return c.schedule[c.pos].SatelliteID
}

// AddSafetyBuffers emits the takeoff and landing safety windows: a
// safety-severity event at the buffer start covering all three transports,
// and an info clearing event at the buffer end.
func (e *Engine) AddSafetyBuffers() {
	buffers := []struct {
		center time.Time
		half   time.Duration
		label  string
	}{
		{e.window.Start, e.constraints.TakeoffBuffer, "takeoff"},
		{e.window.End, e.constraints.LandingBuffer, "landing"},
	}

	for _, b := range buffers {
		if b.half <= 0 {
			continue
		}
		start := e.clampToWindow(b.center.Add(-b.half))
		end := e.clampToWindow(b.center.Add(b.half))
		reason := fmt.Sprintf("%s safety buffer", b.label)

		e.append(Event{
			Timestamp: start,
			Type:      EventBufferStart,
			Transport: TransportX,
			Affected:  AllTransports,
			Severity:  SeveritySafety,
			Reason:    reason,
		})
		e.append(Event{
			Timestamp: end,
			Type:      EventBufferEnd,
			Transport: TransportX,
			Affected:  AllTransports,
			Severity:  SeverityInfo,
			Reason:    reason + " cleared",
		})
	}
}

// ResolveRefuelWindows maps waypoint-pair refueling windows onto absolute
// time ranges using the waypoints' arrival times. Windows that can't be
// resolved are skipped with a warning; the build keeps going.
func (e *Engine) ResolveRefuelWindows(r *route.Route, windows []RefuelWindow) {
	for _, w := range windows {
		start, okStart := r.WaypointByName(w.StartWaypoint)
		end, okEnd := r.WaypointByName(w.EndWaypoint)
		if !okStart || !okEnd || start.ArrivalTime == nil || end.ArrivalTime == nil {
			e.logger.Warn("Refueling window skipped, waypoints unresolved",
				logger.String("start_waypoint", w.StartWaypoint),
				logger.String("end_waypoint", w.EndWaypoint))
			continue
		}
		rng := TimeRange{
			Start: e.clampToWindow(*start.ArrivalTime),
			End:   e.clampToWindow(*end.ArrivalTime),
		}
		if !rng.End.After(rng.Start) {
			e.logger.Warn("Refueling window skipped, empty range",
				logger.String("start_waypoint", w.StartWaypoint),
				logger.Time("start", rng.Start),
				logger.Time("end", rng.End))
			continue
		}
		e.refuelRanges = append(e.refuelRanges, rng)

		e.append(Event{
			Timestamp: rng.Start,
			Type:      EventRefuelStart,
			Transport: TransportX,
			Severity:  SeverityInfo,
			Reason:    fmt.Sprintf("refueling window %s-%s, aft exclusion active", w.StartWaypoint, w.EndWaypoint),
		})
		e.append(Event{
			Timestamp: rng.End,
			Type:      EventRefuelEnd,
			Transport: TransportX,
			Severity:  SeverityInfo,
			Reason:    fmt.Sprintf("refueling window %s-%s ended", w.StartWaypoint, w.EndWaypoint),
		})
	}
}

// inRefuelWindow reports whether t falls inside a resolved refueling window.
func (e *Engine) inRefuelWindow(t time.Time) bool {
	for _, r := range e.refuelRanges {
		if r.Contains(t) {
			return true
		}
	}
	return false
}

// AddTransitions emits the degrade window around each scheduled X satellite
// switch: TransitionWindow on either side of the switch time.
func (e *Engine) AddTransitions(transitions []Transition) {
	for _, tr := range transitions {
		if _, ok := e.catalog.Longitude(tr.SatelliteID); !ok {
			e.logUnknownSatellite(tr.SatelliteID)
			continue
		}
		start := e.clampToWindow(tr.At.Add(-e.constraints.TransitionWindow))
		end := e.clampToWindow(tr.At.Add(e.constraints.TransitionWindow))

		e.append(Event{
			Timestamp:   start,
			Type:        EventTransitionStart,
			Transport:   TransportX,
			Severity:    SeverityWarning,
			Reason:      fmt.Sprintf("X-band transition to %s", tr.SatelliteID),
			SatelliteID: tr.SatelliteID,
		})
		e.append(Event{
			Timestamp:   end,
			Type:        EventTransitionEnd,
			Transport:   TransportX,
			Severity:    SeverityInfo,
			Reason:      fmt.Sprintf("X-band transition to %s complete", tr.SatelliteID),
			SatelliteID: tr.SatelliteID,
		})
	}
}

// AddOutages emits explicit manual outage windows for the Ka/Ku transports.
func (e *Engine) AddOutages(outages []Outage) {
	for _, o := range outages {
		if o.Transport != TransportKa && o.Transport != TransportKu {
			e.logger.Warn("Manual outage on unsupported transport skipped",
				logger.String("transport", string(o.Transport)))
			continue
		}
		start := e.clampToWindow(o.Start)
		end := e.clampToWindow(o.End)
		if !end.After(start) {
			continue
		}
		e.append(Event{
			Timestamp: start,
			Type:      EventOutageStart,
			Transport: o.Transport,
			Severity:  SeverityWarning,
			Reason:    o.Reason,
		})
		e.append(Event{
			Timestamp: end,
			Type:      EventOutageEnd,
			Transport: o.Transport,
			Severity:  SeverityInfo,
			Reason:    o.Reason + " ended",
		})
	}
}

// AddCoverageAnalysis turns constellation gaps and handoffs into Ka events.
// Gaps degrade Ka for their duration; handoffs get a transition-style buffer
// centered on the swap midpoint.
func (e *Engine) AddCoverageAnalysis(analysis coverage.Analysis) {
	for _, gap := range analysis.Gaps {
		e.append(Event{
			Timestamp: e.clampToWindow(gap.Start),
			Type:      EventCoverageExit,
			Transport: TransportKa,
			Severity:  SeverityWarning,
			Reason:    "Ka constellation coverage gap",
		})
		e.append(Event{
			Timestamp: e.clampToWindow(gap.End),
			Type:      EventCoverageEntry,
			Transport: TransportKa,
			Severity:  SeverityInfo,
			Reason:    "Ka constellation coverage restored",
		})
	}

	for _, swap := range analysis.Swaps {
		start := e.clampToWindow(swap.Midpoint.Add(-e.constraints.TransitionWindow))
		end := e.clampToWindow(swap.Midpoint.Add(e.constraints.TransitionWindow))
		e.append(Event{
			Timestamp:   start,
			Type:        EventTransitionStart,
			Transport:   TransportKa,
			Severity:    SeverityWarning,
			Reason:      fmt.Sprintf("Ka handoff %s to %s", swap.FromSat, swap.ToSat),
			SatelliteID: swap.ToSat,
		})
		e.append(Event{
			Timestamp:   end,
			Type:        EventTransitionEnd,
			Transport:   TransportKa,
			Severity:    SeverityInfo,
			Reason:      fmt.Sprintf("Ka handoff to %s complete", swap.ToSat),
			SatelliteID: swap.ToSat,
		})
	}
}

// violationState tracks one transport's open violation during the sweep.
type violationState struct {
	open   bool
	reason geometry.ViolationReason
	satID  string
	aft    bool
}

// SweepAzimuthViolations evaluates every route sample against the assigned
// X satellite's pointing constraints. Only state changes are recorded: one
// warning on entering violation, one clearing event on leaving, and a closing
// event at mission end for violations still open. Elevation-floor violations
// take priority over azimuth-range ones. Samples inside a refueling window
// use the refueling exclusion arc instead of the normal one.
//
// An azimuth violation whose relative azimuth falls in the shared aft sector
// is flagged AftConflict and mirrored onto the Ku transport, whose aft
// antenna is blocked by the same geometry.
func (e *Engine) SweepAzimuthViolations(samples []route.Sample) {
	cursor := &scheduleCursor{schedule: e.schedule}
	var xState, kuState violationState

	for _, s := range samples {
		satID := cursor.at(s.Time)
		satLon, ok := e.catalog.Longitude(satID)
		if !ok {
			e.logUnknownSatellite(satID)
			continue
		}

		azMin, azMax := e.constraints.NormalAzimuthMin, e.constraints.NormalAzimuthMax
		if e.inRefuelWindow(s.Time) {
			azMin, azMax = e.constraints.RefuelAzimuthMin, e.constraints.RefuelAzimuthMax
		}

		heading := math.NaN()
		if s.HeadingValid {
			heading = s.Heading
		}

		eval, err := geometry.Evaluate(
			s.Lat, s.Lon, s.AltitudeFt*geometry.FeetToM, heading,
			satLon, e.constraints.MinElevationDeg, azMin, azMax, s.Time)
		if err != nil {
			e.logger.Warn("Sample skipped, geometry evaluation failed",
				logger.Time("sample", s.Time),
				logger.Error(err))
			continue
		}

		aft := eval.Reason == geometry.ViolationAzimuth &&
			geometry.InAzimuthRange(eval.RelativeAzimuth, e.constraints.AftAzimuthMin, e.constraints.AftAzimuthMax)

		e.stepViolation(&xState, TransportX, s.Time, satID, eval.Violated(), eval.Reason, aft)

		// Ku aft blockage mirrors the X aft geometry.
		kuBlocked := aft
		e.stepViolation(&kuState, TransportKu, s.Time, "", kuBlocked, geometry.ViolationAzimuth, kuBlocked)
	}

	// Close anything still open at mission end.
	for _, st := range []struct {
		state     *violationState
		transport Transport
	}{{&xState, TransportX}, {&kuState, TransportKu}} {
		if st.state.open {
			e.append(Event{
				Timestamp:   e.window.End,
				Type:        EventAzimuthClear,
				Transport:   st.transport,
				Severity:    SeverityInfo,
				Reason:      violationReasonText(st.state.reason) + " cleared at mission end",
				SatelliteID: st.state.satID,
				AftConflict: st.state.aft,
			})
			st.state.open = false
		}
	}
}

// stepViolation records a violation state change for one transport.
func (e *Engine) stepViolation(st *violationState, transport Transport, at time.Time, satID string, violated bool, reason geometry.ViolationReason, aft bool) {
	switch {
	case violated && !st.open:
		st.open = true
		st.reason = reason
		st.satID = satID
		st.aft = aft
		e.append(Event{
			Timestamp:   at,
			Type:        EventAzimuthViolation,
			Transport:   transport,
			Severity:    SeverityWarning,
			Reason:      violationReasonText(reason),
			SatelliteID: satID,
			AftConflict: aft,
		})
	case !violated && st.open:
		e.append(Event{
			Timestamp:   at,
			Type:        EventAzimuthClear,
			Transport:   transport,
			Severity:    SeverityInfo,
			Reason:      violationReasonText(st.reason) + " cleared",
			SatelliteID: st.satID,
			AftConflict: st.aft,
		})
		st.open = false
	}
}

func violationReasonText(r geometry.ViolationReason) string {
	switch r {
	case geometry.ViolationElevation:
		return "satellite elevation below minimum"
	case geometry.ViolationAzimuth:
		return "antenna azimuth in exclusion zone"
	default:
		return "pointing violation"
	}
}

func (e *Engine) logUnknownSatellite(id string) {
	if id == "" || e.unknownSatLog[id] {
		return
	}
	e.unknownSatLog[id] = true
	e.logger.Warn("Unknown satellite id, related events skipped",
		logger.String("satellite_id", id))
}

// SortedEvents returns the accumulated events in ascending timestamp order.
// The sort is stable: events sharing a timestamp keep insertion order.
func (e *Engine) SortedEvents() []Event {
	sorted := make([]Event, len(e.events))
	copy(sorted, e.events)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Timestamp.Equal(sorted[j].Timestamp) {
			return sorted[i].Seq < sorted[j].Seq
		}
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	})
	return sorted
}

// Advisories pairs each transition start with the next transition end that
// shares its satellite id and renders a sentence for each pair. Starts with
// no matching end are silently skipped.
func Advisories(events []Event) []string {
	var advisories []string
	used := make([]bool, len(events))

	for i, ev := range events {
		if ev.Type != EventTransitionStart {
			continue
		}
		for j := i + 1; j < len(events); j++ {
			if used[j] || events[j].Type != EventTransitionEnd || events[j].SatelliteID != ev.SatelliteID {
				continue
			}
			used[j] = true
			advisories = append(advisories, fmt.Sprintf(
				"%s service degraded %s to %s while transitioning to %s",
				ev.Transport,
				ev.Timestamp.UTC().Format("15:04Z"),
				events[j].Timestamp.UTC().Format("15:04Z"),
				ev.SatelliteID))
			break
		}
	}
	return advisories
}
