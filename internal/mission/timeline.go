package mission

import (
	"sort"
	"strings"
	"time"

	"github.com/halverson/satcom-planner/internal/route"
)

// openerFor maps a clearing event type to the adverse type it closes.
var openerFor = map[EventType]EventType{
	EventBufferEnd:      EventBufferStart,
	EventAzimuthClear:   EventAzimuthViolation,
	EventTransitionEnd:  EventTransitionStart,
	EventCoverageEntry:  EventCoverageExit,
	EventOutageEnd:      EventOutageStart,
}

// adverseTypes are the event types that open a condition on their transports.
var adverseTypes = map[EventType]bool{
	EventBufferStart:      true,
	EventAzimuthViolation: true,
	EventTransitionStart:  true,
	EventCoverageExit:     true,
	EventOutageStart:      true,
}

// openKey identifies a condition instance so the matching clear closes
// exactly the condition its opener started.
func openKey(t EventType, transport Transport, satID string) string {
	return string(t) + "|" + string(transport) + "|" + satID
}

// conditionSet tracks the open adverse conditions for one transport.
type conditionSet struct {
	open map[string][]Event
}

func newConditionSet() *conditionSet {
	return &conditionSet{open: make(map[string][]Event)}
}

func (c *conditionSet) apply(ev Event) {
	if adverseTypes[ev.Type] {
		key := openKey(ev.Type, ev.Transport, ev.SatelliteID)
		c.open[key] = append(c.open[key], ev)
		return
	}
	if opener, ok := openerFor[ev.Type]; ok {
		key := openKey(opener, ev.Transport, ev.SatelliteID)
		if stack := c.open[key]; len(stack) > 0 {
			if len(stack) == 1 {
				delete(c.open, key)
			} else {
				c.open[key] = stack[:len(stack)-1]
			}
		}
	}
}

// state derives the transport's availability from its open conditions.
// Offline is reserved for manual outages; anything else adverse degrades.
func (c *conditionSet) state() TransportState {
	if len(c.open) == 0 {
		return StateAvailable
	}
	for key := range c.open {
		if strings.HasPrefix(key, string(EventOutageStart)) {
			return StateOffline
		}
	}
	return StateDegraded
}

// openEvents returns the open condition events in a stable order.
func (c *conditionSet) openEvents() []Event {
	var events []Event
	for _, stack := range c.open {
		events = append(events, stack...)
	}
	sort.Slice(events, func(i, j int) bool { return events[i].Seq < events[j].Seq })
	return events
}

// AssembleTimeline sweeps the sorted event stream into a gapless partition of
// the mission window with a derived aggregate status per segment. Segments
// degraded solely by the simultaneous X/Ku aft-azimuth geometry are
// downgraded to nominal for reporting, reasons preserved.
func AssembleTimeline(window route.Window, events []Event) []Segment {
	// Segment boundaries: window bounds plus every event time inside them.
	boundarySet := map[time.Time]bool{window.Start: true, window.End: true}
	for _, ev := range events {
		if !ev.Timestamp.Before(window.Start) && !ev.Timestamp.After(window.End) {
			boundarySet[ev.Timestamp] = true
		}
	}
	boundaries := make([]time.Time, 0, len(boundarySet))
	for t := range boundarySet {
		boundaries = append(boundaries, t)
	}
	sort.Slice(boundaries, func(i, j int) bool { return boundaries[i].Before(boundaries[j]) })

	conditions := map[Transport]*conditionSet{}
	for _, t := range AllTransports {
		conditions[t] = newConditionSet()
	}

	var segments []Segment
	evIdx := 0
	for i := 0; i+1 < len(boundaries); i++ {
		segStart, segEnd := boundaries[i], boundaries[i+1]

		// Apply every event at or before this segment's start.
		for evIdx < len(events) && !events[evIdx].Timestamp.After(segStart) {
			ev := events[evIdx]
			for _, t := range AllTransports {
				if ev.affects(t) {
					conditions[t].apply(ev)
				}
			}
			evIdx++
		}

		segments = append(segments, buildSegment(segStart, segEnd, conditions))
	}

	return mergeEqualSegments(segments)
}

func buildSegment(start, end time.Time, conditions map[Transport]*conditionSet) Segment {
	seg := Segment{
		Start:  start,
		End:    end,
		States: make(map[Transport]TransportState, len(AllTransports)),
	}

	aftOnly := true
	seenReason := map[string]bool{}
	for _, t := range AllTransports {
		cs := conditions[t]
		state := cs.state()
		seg.States[t] = state
		if state == StateAvailable {
			continue
		}
		seg.Impacted = append(seg.Impacted, t)
		for _, ev := range cs.openEvents() {
			if !seenReason[ev.Reason] {
				seenReason[ev.Reason] = true
				seg.Reasons = append(seg.Reasons, ev.Reason)
			}
			if !ev.AftConflict {
				aftOnly = false
			}
		}
	}

	switch len(seg.Impacted) {
	case 0:
		seg.Status = StatusNominal
	case 1:
		seg.Status = StatusDegraded
	default:
		seg.Status = StatusCritical
	}

	// The expected simultaneous X/Ku aft-sector geometry is not a fault:
	// report nominal, keep the reasons for audit.
	if seg.Status != StatusNominal && aftOnly && impactedIsXKu(seg.Impacted) {
		seg.Status = StatusNominal
		seg.AftConflictOnly = true
	}

	return seg
}

func impactedIsXKu(impacted []Transport) bool {
	if len(impacted) != 2 {
		return false
	}
	hasX, hasKu := false, false
	for _, t := range impacted {
		switch t {
		case TransportX:
			hasX = true
		case TransportKu:
			hasKu = true
		}
	}
	return hasX && hasKu
}

// mergeEqualSegments collapses adjacent segments with identical derived
// state, keeping the partition maximal.
func mergeEqualSegments(segments []Segment) []Segment {
	if len(segments) == 0 {
		return segments
	}
	merged := []Segment{segments[0]}
	for _, seg := range segments[1:] {
		last := &merged[len(merged)-1]
		if segmentsEqual(*last, seg) {
			last.End = seg.End
			continue
		}
		merged = append(merged, seg)
	}
	return merged
}

func segmentsEqual(a, b Segment) bool {
	if a.Status != b.Status || a.AftConflictOnly != b.AftConflictOnly {
		return false
	}
	for _, t := range AllTransports {
		if a.States[t] != b.States[t] {
			return false
		}
	}
	if len(a.Reasons) != len(b.Reasons) {
		return false
	}
	for i := range a.Reasons {
		if a.Reasons[i] != b.Reasons[i] {
			return false
		}
	}
	return true
}

// AttachStatistics sums seconds per aggregate status and computes the
// countdown to the next non-nominal segment relative to now (-1 when the
// remainder of the mission is nominal).
func AttachStatistics(segments []Segment, now time.Time) Statistics {
	stats := Statistics{
		SecondsByStatus:      map[SegmentStatus]float64{},
		NextNonNominalInSecs: -1,
	}

	for _, seg := range segments {
		stats.SecondsByStatus[seg.Status] += seg.Duration().Seconds()
	}

	for _, seg := range segments {
		if seg.Status == StatusNominal {
			continue
		}
		if !seg.End.After(now) {
			continue // already passed
		}
		if !seg.Start.After(now) {
			stats.NextNonNominalInSecs = 0
		} else {
			stats.NextNonNominalInSecs = seg.Start.Sub(now).Seconds()
		}
		break
	}

	return stats
}
