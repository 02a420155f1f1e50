package route

import (
	"errors"
	"fmt"
	"time"

	"github.com/halverson/satcom-planner/internal/geometry"
	"github.com/halverson/satcom-planner/pkg/logger"
)

// DefaultSampleInterval is the cadence of generated route samples.
const DefaultSampleInterval = 60 * time.Second

// sampleCountWarnThreshold is where per-sample geometry evaluation starts to
// dominate build cost.
const sampleCountWarnThreshold = 2000

// ErrNoTiming is returned when a route carries no usable timestamps and no
// window override was supplied.
var ErrNoTiming = errors.New("route has no timing information and no mission window override was supplied")

// ErrEmptyRoute is returned for a route with no points. Fatal for a build.
var ErrEmptyRoute = errors.New("route has no points")

// Window is an absolute mission time window.
type Window struct {
	Start time.Time
	End   time.Time
}

// Duration returns the window length.
func (w Window) Duration() time.Duration { return w.End.Sub(w.Start) }

// Projector maps a route onto an absolute time axis. Construction resolves
// the mission window and assigns a timestamp to every route point, after
// which position lookups and sampling are pure reads.
type Projector struct {
	route      *Route
	window     Window
	pointTimes []time.Time
	logger     *logger.Logger
}

// NewProjector builds a projector for the route. The window is derived from
// the route's known timestamps; override, when non-nil, takes their place.
func NewProjector(r *Route, override *Window, log *logger.Logger) (*Projector, error) {
	if r == nil || len(r.Points) == 0 {
		return nil, ErrEmptyRoute
	}

	window, err := resolveWindow(r, override)
	if err != nil {
		return nil, err
	}
	if !window.End.After(window.Start) {
		return nil, fmt.Errorf("mission window end %v is not after start %v", window.End, window.Start)
	}

	p := &Projector{
		route:  r,
		window: window,
		logger: log.Named("projector"),
	}
	p.pointTimes = p.assignPointTimes()
	return p, nil
}

// resolveWindow picks the mission window, preferring an explicit override,
// then the route's timing profile, then first/last point timestamps.
func resolveWindow(r *Route, override *Window) (Window, error) {
	if override != nil {
		return *override, nil
	}
	if r.Timing.DepartureTime != nil && r.Timing.ArrivalTime != nil {
		return Window{Start: *r.Timing.DepartureTime, End: *r.Timing.ArrivalTime}, nil
	}

	first := r.Points[0].ArrivalTime
	last := r.Points[len(r.Points)-1].ArrivalTime
	if first != nil && last != nil {
		return Window{Start: *first, End: *last}, nil
	}
	return Window{}, ErrNoTiming
}

// assignPointTimes gives every route point an absolute timestamp. Points with
// their own arrival time act as anchors; between anchors, time is distributed
// across segments proportionally to planned per-segment travel time where a
// planned speed exists, else proportionally to segment distance.
func (p *Projector) assignPointTimes() []time.Time {
	points := p.route.Points
	times := make([]time.Time, len(points))

	// Anchor indices: window start, any timestamped interior point, window end.
	type anchor struct {
		idx int
		t   time.Time
	}
	anchors := []anchor{{0, p.window.Start}}
	for i := 1; i < len(points)-1; i++ {
		if ts := points[i].ArrivalTime; ts != nil && ts.After(anchors[len(anchors)-1].t) && ts.Before(p.window.End) {
			anchors = append(anchors, anchor{i, *ts})
		}
	}
	anchors = append(anchors, anchor{len(points) - 1, p.window.End})

	for a := 0; a+1 < len(anchors); a++ {
		lo, hi := anchors[a], anchors[a+1]
		times[lo.idx] = lo.t
		times[hi.idx] = hi.t
		if hi.idx <= lo.idx+1 {
			continue
		}

		// Weight each segment by planned travel time when a speed is known,
		// else by raw distance.
		weights := make([]float64, hi.idx-lo.idx)
		var total float64
		for s := lo.idx; s < hi.idx; s++ {
			dist := geometry.Haversine(points[s].Lat, points[s].Lon, points[s+1].Lat, points[s+1].Lon)
			w := dist
			if spd := points[s].PlannedSpeedKts; spd != nil && *spd > 0 {
				w = dist / (*spd * geometry.KnotsToMs)
			}
			weights[s-lo.idx] = w
			total += w
		}

		span := hi.t.Sub(lo.t)
		var acc float64
		for s := lo.idx; s < hi.idx; s++ {
			acc += weights[s-lo.idx]
			frac := 1.0
			if total > 0 {
				frac = acc / total
			}
			times[s+1] = lo.t.Add(time.Duration(float64(span) * frac))
		}
	}

	return times
}

// Window returns the resolved mission window.
func (p *Projector) Window() Window { return p.window }

// PositionAt returns the interpolated position and altitude at time t.
// Before the window it pins to the first point, after it to the last.
// Longitude interpolation is antimeridian safe.
func (p *Projector) PositionAt(t time.Time) (lat, lon, altFt float64) {
	points := p.route.Points
	if !t.After(p.pointTimes[0]) {
		first := points[0]
		return first.Lat, first.Lon, first.AltitudeFt
	}
	last := points[len(points)-1]
	if !t.Before(p.pointTimes[len(points)-1]) {
		return last.Lat, last.Lon, last.AltitudeFt
	}

	// Locate the containing segment.
	seg := 0
	for seg+1 < len(points) && p.pointTimes[seg+1].Before(t) {
		seg++
	}

	segSpan := p.pointTimes[seg+1].Sub(p.pointTimes[seg])
	frac := 0.0
	if segSpan > 0 {
		frac = float64(t.Sub(p.pointTimes[seg])) / float64(segSpan)
	}

	a, b := points[seg], points[seg+1]
	lat, lon = geometry.Interpolate(a.Lat, a.Lon, b.Lat, b.Lon, frac)
	altFt = a.AltitudeFt + (b.AltitudeFt-a.AltitudeFt)*frac
	return lat, lon, altFt
}

// GenerateSamples produces uniformly spaced samples across the mission
// window, including one exactly at mission end. Heading is derived from the
// bearing to the next sample position. lookup may be nil when coverage isn't
// needed.
func (p *Projector) GenerateSamples(interval time.Duration, lookup CoverageLookup) []Sample {
	if interval <= 0 {
		interval = DefaultSampleInterval
	}

	count := int(p.window.Duration()/interval) + 1
	if count > sampleCountWarnThreshold {
		p.logger.Warn("Large sample count, build cost is dominated by per-sample geometry",
			logger.Int("samples", count),
			logger.Duration("interval", interval),
			logger.Duration("window", p.window.Duration()))
	}

	var samples []Sample
	for t := p.window.Start; t.Before(p.window.End); t = t.Add(interval) {
		samples = append(samples, p.sampleAt(t, lookup))
	}
	samples = append(samples, p.sampleAt(p.window.End, lookup))

	// Heading at each sample points towards the next one; the final sample
	// inherits its predecessor's heading.
	for i := 0; i < len(samples); i++ {
		if i+1 < len(samples) {
			next := samples[i+1]
			if next.Lat != samples[i].Lat || next.Lon != samples[i].Lon {
				samples[i].Heading = geometry.Bearing(samples[i].Lat, samples[i].Lon, next.Lat, next.Lon)
				samples[i].HeadingValid = true
			}
		} else if i > 0 && samples[i-1].HeadingValid {
			samples[i].Heading = samples[i-1].Heading
			samples[i].HeadingValid = true
		}
	}

	return samples
}

func (p *Projector) sampleAt(t time.Time, lookup CoverageLookup) Sample {
	lat, lon, alt := p.PositionAt(t)
	s := Sample{Time: t, Lat: lat, Lon: lon, AltitudeFt: alt}
	if lookup != nil {
		s.Covering = lookup.CoveringSatellites(lat, lon)
	}
	return s
}
