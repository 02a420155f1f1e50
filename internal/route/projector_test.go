package route

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/halverson/satcom-planner/pkg/logger"
)

func timePtr(t time.Time) *time.Time { return &t }

func simpleRoute(start, end time.Time) *Route {
	return &Route{
		ID: "rt-1",
		Points: []RoutePoint{
			{Lat: 40, Lon: -80, AltitudeFt: 0, Sequence: 0, ArrivalTime: timePtr(start)},
			{Lat: 42, Lon: -70, AltitudeFt: 30000, Sequence: 1},
			{Lat: 44, Lon: -60, AltitudeFt: 0, Sequence: 2, ArrivalTime: timePtr(end)},
		},
	}
}

func TestProjectorRequiresTiming(t *testing.T) {
	r := &Route{
		ID: "rt-2",
		Points: []RoutePoint{
			{Lat: 40, Lon: -80, Sequence: 0},
			{Lat: 44, Lon: -60, Sequence: 1},
		},
	}
	_, err := NewProjector(r, nil, logger.NewNop())
	if !errors.Is(err, ErrNoTiming) {
		t.Fatalf("NewProjector err = %v, want ErrNoTiming", err)
	}

	// An override makes the same route usable.
	start := time.Date(2025, time.June, 1, 12, 0, 0, 0, time.UTC)
	p, err := NewProjector(r, &Window{Start: start, End: start.Add(time.Hour)}, logger.NewNop())
	if err != nil {
		t.Fatalf("NewProjector with override: %v", err)
	}
	if p.Window().Duration() != time.Hour {
		t.Errorf("window duration = %v, want 1h", p.Window().Duration())
	}
}

func TestProjectorRejectsEmptyRoute(t *testing.T) {
	if _, err := NewProjector(&Route{ID: "x"}, nil, logger.NewNop()); !errors.Is(err, ErrEmptyRoute) {
		t.Fatalf("err = %v, want ErrEmptyRoute", err)
	}
}

func TestPositionAtPinsOutsideWindow(t *testing.T) {
	start := time.Date(2025, time.June, 1, 12, 0, 0, 0, time.UTC)
	end := start.Add(2 * time.Hour)
	p, err := NewProjector(simpleRoute(start, end), nil, logger.NewNop())
	if err != nil {
		t.Fatalf("NewProjector: %v", err)
	}

	lat, lon, _ := p.PositionAt(start.Add(-time.Hour))
	if lat != 40 || lon != -80 {
		t.Errorf("position before window = (%v, %v), want (40, -80)", lat, lon)
	}
	lat, lon, _ = p.PositionAt(end.Add(time.Hour))
	if lat != 44 || lon != -60 {
		t.Errorf("position after window = (%v, %v), want (44, -60)", lat, lon)
	}
}

func TestPositionAtInterpolates(t *testing.T) {
	start := time.Date(2025, time.June, 1, 12, 0, 0, 0, time.UTC)
	end := start.Add(2 * time.Hour)
	p, err := NewProjector(simpleRoute(start, end), nil, logger.NewNop())
	if err != nil {
		t.Fatalf("NewProjector: %v", err)
	}

	lat, lon, alt := p.PositionAt(start.Add(time.Hour))
	if lat <= 40 || lat >= 44 {
		t.Errorf("midpoint lat = %v, want inside (40, 44)", lat)
	}
	if lon <= -80 || lon >= -60 {
		t.Errorf("midpoint lon = %v, want inside (-80, -60)", lon)
	}
	if alt <= 0 {
		t.Errorf("midpoint altitude = %v, want positive", alt)
	}
}

func TestPositionAtAntimeridian(t *testing.T) {
	start := time.Date(2025, time.June, 1, 12, 0, 0, 0, time.UTC)
	end := start.Add(time.Hour)
	r := &Route{
		ID: "rt-idl",
		Points: []RoutePoint{
			{Lat: 10, Lon: 170, Sequence: 0, ArrivalTime: timePtr(start)},
			{Lat: 10, Lon: -170, Sequence: 1, ArrivalTime: timePtr(end)},
		},
	}
	p, err := NewProjector(r, nil, logger.NewNop())
	if err != nil {
		t.Fatalf("NewProjector: %v", err)
	}

	_, lon, _ := p.PositionAt(start.Add(30 * time.Minute))
	if math.Abs(math.Abs(lon)-180) > 1e-6 {
		t.Errorf("antimeridian midpoint lon = %v, want +/-180", lon)
	}
}

func TestGenerateSamplesCadenceAndBounds(t *testing.T) {
	start := time.Date(2025, time.June, 1, 12, 0, 0, 0, time.UTC)
	end := start.Add(2 * time.Hour)
	p, err := NewProjector(simpleRoute(start, end), nil, logger.NewNop())
	if err != nil {
		t.Fatalf("NewProjector: %v", err)
	}

	samples := p.GenerateSamples(DefaultSampleInterval, nil)
	// 2h at 60s cadence plus the closing sample at mission end.
	if len(samples) != 121 {
		t.Fatalf("got %d samples, want 121", len(samples))
	}
	if !samples[0].Time.Equal(start) {
		t.Errorf("first sample at %v, want %v", samples[0].Time, start)
	}
	if !samples[len(samples)-1].Time.Equal(end) {
		t.Errorf("last sample at %v, want %v", samples[len(samples)-1].Time, end)
	}
	for _, s := range samples[:len(samples)-1] {
		if !s.HeadingValid {
			t.Fatalf("sample at %v has no heading", s.Time)
		}
	}
}

type fixedLookup struct{ ids []string }

func (f fixedLookup) CoveringSatellites(lat, lon float64) []string { return f.ids }

func TestGenerateSamplesAttachesCoverage(t *testing.T) {
	start := time.Date(2025, time.June, 1, 12, 0, 0, 0, time.UTC)
	p, err := NewProjector(simpleRoute(start, start.Add(10*time.Minute)), nil, logger.NewNop())
	if err != nil {
		t.Fatalf("NewProjector: %v", err)
	}

	samples := p.GenerateSamples(time.Minute, fixedLookup{ids: []string{"AOR"}})
	for _, s := range samples {
		if len(s.Covering) != 1 || s.Covering[0] != "AOR" {
			t.Fatalf("sample covering = %v, want [AOR]", s.Covering)
		}
	}
}

func TestPlannedSpeedSkewsSegmentTiming(t *testing.T) {
	start := time.Date(2025, time.June, 1, 12, 0, 0, 0, time.UTC)
	end := start.Add(2 * time.Hour)
	slow, fast := 100.0, 500.0
	// Two equal-length segments, first slow, second fast: the midpoint in
	// distance is reached well past the midpoint in time.
	r := &Route{
		ID: "rt-speeds",
		Points: []RoutePoint{
			{Lat: 0, Lon: 0, Sequence: 0, ArrivalTime: timePtr(start), PlannedSpeedKts: &slow},
			{Lat: 0, Lon: 5, Sequence: 1, PlannedSpeedKts: &fast},
			{Lat: 0, Lon: 10, Sequence: 2, ArrivalTime: timePtr(end)},
		},
	}
	p, err := NewProjector(r, nil, logger.NewNop())
	if err != nil {
		t.Fatalf("NewProjector: %v", err)
	}

	_, lonAtHalf, _ := p.PositionAt(start.Add(time.Hour))
	if lonAtHalf >= 5 {
		t.Errorf("lon at half time = %v, want < 5 (slow first segment)", lonAtHalf)
	}
}
