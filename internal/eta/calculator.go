package eta

import (
	"sync"
	"time"

	"github.com/halverson/satcom-planner/internal/flightstate"
	"github.com/halverson/satcom-planner/internal/geometry"
	"github.com/halverson/satcom-planner/internal/route"
	"github.com/halverson/satcom-planner/pkg/logger"
)

// Unknown is the ETA sentinel returned when no speed is available.
const Unknown float64 = -1

// Config holds the calculator tunables. Zero values take the defaults.
type Config struct {
	DefaultSpeedKts      float64 // fallback ground speed, default 450
	PassedThresholdM     float64 // POIs inside this radius count as passed, default 500
	ProjectionToleranceM float64 // max projection-to-route distance, default 1000
}

func (c Config) withDefaults() Config {
	if c.DefaultSpeedKts <= 0 {
		c.DefaultSpeedKts = 450
	}
	if c.PassedThresholdM <= 0 {
		c.PassedThresholdM = 500
	}
	if c.ProjectionToleranceM <= 0 {
		c.ProjectionToleranceM = 1000
	}
	return c
}

// Metrics is the per-POI result row. Every input POI gets exactly one row;
// per-POI failures fall back to a direct-distance estimate rather than
// dropping the row.
type Metrics struct {
	POIID          string            `json:"poi_id"`
	Name           string            `json:"name"`
	DistanceM      float64           `json:"distance_m"`
	ETASeconds     float64           `json:"eta_seconds"` // -1 when unknown
	ETAType        string            `json:"eta_type"`    // "anticipated" or "estimated"
	ETATime        *time.Time        `json:"eta_time,omitempty"`
	Passed         bool              `json:"passed"`
	FlightPhase    flightstate.Phase `json:"flight_phase"`
	IsPreDeparture bool              `json:"is_pre_departure"`
}

// ETA converts a distance and ground speed to seconds. Speed at or below
// zero yields the unknown sentinel, never a division blowup.
func ETA(distanceM, speedKts float64) float64 {
	if speedKts <= 0 {
		return Unknown
	}
	return distanceM / (speedKts * geometry.KnotsToMs)
}

// Calculator computes POI distance and ETA rows against the active route.
// The passed set is monotonic for the calculator's lifetime: once a POI is
// marked passed it stays passed even if later telemetry jitters away.
type Calculator struct {
	cfg    Config
	logger *logger.Logger

	mu     sync.Mutex
	passed map[string]bool

	now func() time.Time
}

// NewCalculator creates a POI metrics calculator.
func NewCalculator(cfg Config, log *logger.Logger) *Calculator {
	return &Calculator{
		cfg:    cfg.withDefaults(),
		logger: log.Named("eta"),
		passed: make(map[string]bool),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Reset clears the monotonic passed set, for route changes.
func (c *Calculator) Reset() {
	c.mu.Lock()
	c.passed = make(map[string]bool)
	c.mu.Unlock()
}

// CalculatePOIMetrics computes one metrics row per POI from the current
// aircraft position and speed. mode selects the anticipated (planned
// timestamps) or estimated (live speed walk) calculation; a POI that can't be
// resolved in the requested mode falls back to a direct great-circle
// estimate at the default speed.
func (c *Calculator) CalculatePOIMetrics(lat, lon float64, pois []route.POI, speedKts float64, r *route.Route, mode flightstate.ETAMode, phase flightstate.Phase) []Metrics {
	results := make([]Metrics, 0, len(pois))
	currentIdx := nearestPointIndex(r, lat, lon)

	for _, poi := range pois {
		m := c.calculateOne(lat, lon, poi, speedKts, r, currentIdx, mode)
		m.FlightPhase = phase
		m.IsPreDeparture = phase == flightstate.PhasePreDeparture
		results = append(results, m)
	}
	return results
}

func (c *Calculator) calculateOne(lat, lon float64, poi route.POI, speedKts float64, r *route.Route, currentIdx int, mode flightstate.ETAMode) Metrics {
	targetLat, targetLon := poi.Lat, poi.Lon
	if poi.Projection != nil {
		targetLat, targetLon = poi.Projection.Lat, poi.Projection.Lon
	}

	direct := geometry.Haversine(lat, lon, targetLat, targetLon)
	m := Metrics{
		POIID:     poi.ID,
		Name:      poi.Name,
		DistanceM: direct,
		ETAType:   string(flightstate.ModeEstimated),
	}

	if c.markPassed(poi.ID, direct) {
		m.Passed = true
		m.ETASeconds = 0
		return m
	}

	targetIdx := -1
	if r != nil && len(r.Points) > 0 {
		targetIdx = nearestPointIndex(r, targetLat, targetLon)
		if targetIdx >= 0 {
			p := r.Points[targetIdx]
			if geometry.Haversine(targetLat, targetLon, p.Lat, p.Lon) > c.cfg.ProjectionToleranceM {
				targetIdx = -1 // POI too far off route to walk along it
			}
		}
	}

	if mode == flightstate.ModeAnticipated {
		if at := anticipatedArrival(r, targetIdx, targetLat, targetLon); at != nil {
			m.ETAType = string(flightstate.ModeAnticipated)
			m.ETATime = at
			m.ETASeconds = at.Sub(c.now()).Seconds()
			if m.ETASeconds < 0 {
				m.ETASeconds = 0
			}
			return m
		}
		// No planned timestamps for this POI: fall through to the live
		// estimate at the default speed.
		c.logger.Debug("No planned arrival for POI, using fallback estimate",
			logger.String("poi_id", poi.ID))
		m.ETASeconds = ETA(direct, c.cfg.DefaultSpeedKts)
		return m
	}

	if targetIdx < 0 || currentIdx < 0 || targetIdx <= currentIdx {
		// Off-route target or one already behind us: direct estimate.
		m.ETASeconds = ETA(direct, firstPositive(speedKts, c.cfg.DefaultSpeedKts))
		return m
	}

	dist, secs := c.walkRoute(lat, lon, r, currentIdx, targetIdx, targetLat, targetLon, speedKts)
	m.DistanceM = dist
	m.ETASeconds = secs
	return m
}

// walkRoute accumulates distance and time along the remaining route segments
// from the aircraft to the target. The current segment blends live and
// planned speed; later segments use their planned speed, falling back to the
// live speed, then the default.
func (c *Calculator) walkRoute(lat, lon float64, r *route.Route, currentIdx, targetIdx int, targetLat, targetLon, speedKts float64) (distM, etaSecs float64) {
	type leg struct {
		dist  float64
		speed float64
	}
	var legs []leg

	currentSpeed := blend(speedKts, plannedSpeed(r, currentIdx))
	legs = append(legs, leg{
		dist:  geometry.Haversine(lat, lon, r.Points[currentIdx+1].Lat, r.Points[currentIdx+1].Lon),
		speed: currentSpeed,
	})
	for i := currentIdx + 1; i < targetIdx; i++ {
		legs = append(legs, leg{
			dist:  geometry.Haversine(r.Points[i].Lat, r.Points[i].Lon, r.Points[i+1].Lat, r.Points[i+1].Lon),
			speed: firstPositive(plannedSpeed(r, i), speedKts, c.cfg.DefaultSpeedKts),
		})
	}
	legs = append(legs, leg{
		dist:  geometry.Haversine(r.Points[targetIdx].Lat, r.Points[targetIdx].Lon, targetLat, targetLon),
		speed: firstPositive(plannedSpeed(r, targetIdx), speedKts, c.cfg.DefaultSpeedKts),
	})

	unknown := false
	for _, l := range legs {
		distM += l.dist
		s := ETA(l.dist, l.speed)
		if s == Unknown {
			unknown = true
			continue
		}
		etaSecs += s
	}
	if unknown {
		return distM, Unknown
	}
	return distM, etaSecs
}

// markPassed records and reports the monotonic passed state for a POI.
func (c *Calculator) markPassed(id string, directM float64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.passed[id] {
		return true
	}
	if directM <= c.cfg.PassedThresholdM {
		c.passed[id] = true
		return true
	}
	return false
}

// anticipatedArrival resolves the planned arrival time at the target: the
// target point's own timestamp when present, otherwise a distance-weighted
// interpolation between the nearest timestamped points around it.
func anticipatedArrival(r *route.Route, targetIdx int, targetLat, targetLon float64) *time.Time {
	if r == nil || targetIdx < 0 {
		return nil
	}
	if at := r.Points[targetIdx].ArrivalTime; at != nil {
		t := *at
		return &t
	}

	prev, next := -1, -1
	for i := targetIdx - 1; i >= 0; i-- {
		if r.Points[i].ArrivalTime != nil {
			prev = i
			break
		}
	}
	for i := targetIdx + 1; i < len(r.Points); i++ {
		if r.Points[i].ArrivalTime != nil {
			next = i
			break
		}
	}
	if prev < 0 || next < 0 {
		return nil
	}

	before := pathDistance(r, prev, targetIdx)
	total := before + pathDistance(r, targetIdx, next)
	if total <= 0 {
		t := *r.Points[prev].ArrivalTime
		return &t
	}
	span := r.Points[next].ArrivalTime.Sub(*r.Points[prev].ArrivalTime)
	t := r.Points[prev].ArrivalTime.Add(time.Duration(float64(span) * (before / total)))
	return &t
}

func pathDistance(r *route.Route, from, to int) float64 {
	var d float64
	for i := from; i < to; i++ {
		d += geometry.Haversine(r.Points[i].Lat, r.Points[i].Lon, r.Points[i+1].Lat, r.Points[i+1].Lon)
	}
	return d
}

func nearestPointIndex(r *route.Route, lat, lon float64) int {
	if r == nil || len(r.Points) == 0 {
		return -1
	}
	best, bestDist := 0, geometry.Haversine(lat, lon, r.Points[0].Lat, r.Points[0].Lon)
	for i := 1; i < len(r.Points); i++ {
		d := geometry.Haversine(lat, lon, r.Points[i].Lat, r.Points[i].Lon)
		if d < bestDist {
			best, bestDist = i, d
		}
	}
	return best
}

func plannedSpeed(r *route.Route, idx int) float64 {
	if idx < 0 || idx >= len(r.Points) || r.Points[idx].PlannedSpeedKts == nil {
		return 0
	}
	return *r.Points[idx].PlannedSpeedKts
}

// blend averages the live and planned speeds when both are known.
func blend(live, planned float64) float64 {
	switch {
	case live > 0 && planned > 0:
		return (live + planned) / 2
	case live > 0:
		return live
	default:
		return planned
	}
}

// firstPositive returns the first value above zero, or 0 when none is.
func firstPositive(vals ...float64) float64 {
	for _, v := range vals {
		if v > 0 {
			return v
		}
	}
	return 0
}
