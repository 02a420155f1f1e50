package eta

import (
	"math"
	"testing"
	"time"

	"github.com/halverson/satcom-planner/internal/flightstate"
	"github.com/halverson/satcom-planner/internal/geometry"
	"github.com/halverson/satcom-planner/internal/route"
	"github.com/halverson/satcom-planner/pkg/logger"
)

func newTestCalculator() *Calculator {
	return NewCalculator(Config{}, logger.NewNop())
}

func speedPtr(v float64) *float64 { return &v }

// equatorRoute runs eastward along the equator, one point per degree.
func equatorRoute() *route.Route {
	return &route.Route{
		ID: "rt-eq",
		Points: []route.RoutePoint{
			{Lat: 0, Lon: 0, Sequence: 0, PlannedSpeedKts: speedPtr(100)},
			{Lat: 0, Lon: 1, Sequence: 1, PlannedSpeedKts: speedPtr(200)},
			{Lat: 0, Lon: 2, Sequence: 2},
		},
	}
}

func TestETAUnknownForNonPositiveSpeed(t *testing.T) {
	if got := ETA(100000, 0); got != Unknown {
		t.Errorf("ETA(dist, 0) = %v, want unknown sentinel", got)
	}
	if got := ETA(100000, -30); got != Unknown {
		t.Errorf("ETA(dist, -30) = %v, want unknown sentinel", got)
	}
}

func TestETAConvertsKnots(t *testing.T) {
	// 100 kn is 51.4444 m/s.
	got := ETA(51.4444*60, 100)
	if math.Abs(got-60) > 0.01 {
		t.Errorf("ETA = %v s, want 60", got)
	}
}

func TestWalkBlendsCurrentSegmentSpeed(t *testing.T) {
	c := newTestCalculator()
	r := equatorRoute()
	pois := []route.POI{{ID: "p1", Name: "end", Lat: 0, Lon: 2}}

	// Live 100 kn, planned 100 kn on the current segment: blended 100.
	// Second segment planned 200 kn.
	results := c.CalculatePOIMetrics(0, 0, pois, 100, r, flightstate.ModeEstimated, flightstate.PhaseInFlight)
	if len(results) != 1 {
		t.Fatalf("results = %d, want 1", len(results))
	}
	m := results[0]

	d0 := geometry.Haversine(0, 0, 0, 1)
	d1 := geometry.Haversine(0, 1, 0, 2)
	wantDist := d0 + d1
	wantETA := ETA(d0, 100) + ETA(d1, 200)

	if math.Abs(m.DistanceM-wantDist) > 1 {
		t.Errorf("distance = %v, want %v", m.DistanceM, wantDist)
	}
	if math.Abs(m.ETASeconds-wantETA) > 1 {
		t.Errorf("eta = %v, want %v", m.ETASeconds, wantETA)
	}
	if m.ETAType != "estimated" {
		t.Errorf("eta type = %s, want estimated", m.ETAType)
	}
}

func TestNoSpeedAnywhereIsUnknown(t *testing.T) {
	c := newTestCalculator()
	r := &route.Route{
		ID: "rt-plain",
		Points: []route.RoutePoint{
			{Lat: 0, Lon: 0, Sequence: 0},
			{Lat: 0, Lon: 1, Sequence: 1},
		},
	}
	pois := []route.POI{{ID: "p1", Name: "end", Lat: 0, Lon: 1}}

	results := c.CalculatePOIMetrics(0, 0, pois, 0, r, flightstate.ModeEstimated, flightstate.PhaseInFlight)
	if got := results[0].ETASeconds; got != Unknown {
		t.Errorf("eta with no speed = %v, want unknown sentinel", got)
	}
}

func TestPassedIsMonotonic(t *testing.T) {
	c := newTestCalculator()
	r := equatorRoute()
	pois := []route.POI{{ID: "p1", Name: "origin", Lat: 0, Lon: 0}}

	// On top of the POI: passed.
	results := c.CalculatePOIMetrics(0, 0.001, pois, 100, r, flightstate.ModeEstimated, flightstate.PhaseInFlight)
	if !results[0].Passed {
		t.Fatal("POI inside passed threshold not marked passed")
	}

	// Far away afterwards: still passed.
	results = c.CalculatePOIMetrics(0, 1.5, pois, 100, r, flightstate.ModeEstimated, flightstate.PhaseInFlight)
	if !results[0].Passed {
		t.Error("passed flag regressed after moving away")
	}
	if results[0].ETASeconds != 0 {
		t.Errorf("passed POI eta = %v, want 0", results[0].ETASeconds)
	}
}

func TestResetClearsPassedSet(t *testing.T) {
	c := newTestCalculator()
	pois := []route.POI{{ID: "p1", Name: "origin", Lat: 0, Lon: 0}}
	c.CalculatePOIMetrics(0, 0.001, pois, 100, nil, flightstate.ModeEstimated, flightstate.PhaseInFlight)
	c.Reset()
	results := c.CalculatePOIMetrics(0, 1.5, pois, 100, nil, flightstate.ModeEstimated, flightstate.PhaseInFlight)
	if results[0].Passed {
		t.Error("passed flag survived Reset")
	}
}

func TestOffRoutePOIFallsBackToDirect(t *testing.T) {
	c := newTestCalculator()
	r := equatorRoute()
	// 1 degree north of the route: beyond the projection tolerance.
	pois := []route.POI{{ID: "p1", Name: "offside", Lat: 1, Lon: 1}}

	results := c.CalculatePOIMetrics(0, 0, pois, 100, r, flightstate.ModeEstimated, flightstate.PhaseInFlight)
	m := results[0]
	direct := geometry.Haversine(0, 0, 1, 1)
	if math.Abs(m.DistanceM-direct) > 1 {
		t.Errorf("distance = %v, want direct %v", m.DistanceM, direct)
	}
	if math.Abs(m.ETASeconds-ETA(direct, 100)) > 1 {
		t.Errorf("eta = %v, want direct estimate %v", m.ETASeconds, ETA(direct, 100))
	}
}

func TestProjectedPOIWalksToProjection(t *testing.T) {
	c := newTestCalculator()
	r := equatorRoute()
	// Off-route POI with a precomputed projection onto the route.
	pois := []route.POI{{
		ID: "p1", Name: "sensor site", Lat: 1, Lon: 2,
		Projection: &route.Projection{Lat: 0, Lon: 2},
	}}

	results := c.CalculatePOIMetrics(0, 0, pois, 100, r, flightstate.ModeEstimated, flightstate.PhaseInFlight)
	wantDist := geometry.Haversine(0, 0, 0, 1) + geometry.Haversine(0, 1, 0, 2)
	if math.Abs(results[0].DistanceM-wantDist) > 1 {
		t.Errorf("distance = %v, want along-route %v", results[0].DistanceM, wantDist)
	}
}

func TestAnticipatedUsesPlannedTimestamps(t *testing.T) {
	c := newTestCalculator()
	now := time.Date(2025, time.June, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	dep := now.Add(-10 * time.Minute)
	arr := now.Add(50 * time.Minute)
	r := &route.Route{
		ID: "rt-timed",
		Points: []route.RoutePoint{
			{Lat: 0, Lon: 0, Sequence: 0, ArrivalTime: &dep},
			{Lat: 0, Lon: 1, Sequence: 1},
			{Lat: 0, Lon: 2, Sequence: 2, ArrivalTime: &arr},
		},
	}
	// POI at the untimed midpoint: arrival interpolated halfway, 20 minutes out.
	pois := []route.POI{{ID: "p1", Name: "mid", Lat: 0, Lon: 1}}

	results := c.CalculatePOIMetrics(0, 0, pois, 0, r, flightstate.ModeAnticipated, flightstate.PhasePreDeparture)
	m := results[0]
	if m.ETAType != "anticipated" {
		t.Fatalf("eta type = %s, want anticipated", m.ETAType)
	}
	if m.ETATime == nil {
		t.Fatal("anticipated result missing eta time")
	}
	if math.Abs(m.ETASeconds-20*60) > 1 {
		t.Errorf("eta = %v s, want 1200", m.ETASeconds)
	}
	if !m.IsPreDeparture {
		t.Error("pre-departure flag not set")
	}
}

func TestAnticipatedWithoutTimestampsFallsBack(t *testing.T) {
	c := newTestCalculator()
	r := equatorRoute() // no arrival times anywhere
	pois := []route.POI{{ID: "p1", Name: "end", Lat: 0, Lon: 2}}

	results := c.CalculatePOIMetrics(0, 0, pois, 0, r, flightstate.ModeAnticipated, flightstate.PhasePreDeparture)
	m := results[0]
	if m.ETAType != "estimated" {
		t.Errorf("eta type = %s, want estimated fallback", m.ETAType)
	}
	if m.ETASeconds == Unknown {
		t.Error("fallback estimate should use the default speed, not unknown")
	}
}

func TestEveryPOIGetsARow(t *testing.T) {
	c := newTestCalculator()
	pois := []route.POI{
		{ID: "p1", Name: "a", Lat: 10, Lon: 10},
		{ID: "p2", Name: "b", Lat: -45, Lon: 170},
	}
	results := c.CalculatePOIMetrics(0, 0, pois, 100, nil, flightstate.ModeEstimated, flightstate.PhaseInFlight)
	if len(results) != len(pois) {
		t.Fatalf("results = %d, want %d", len(results), len(pois))
	}
}
