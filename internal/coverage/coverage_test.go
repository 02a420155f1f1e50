package coverage

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/halverson/satcom-planner/internal/route"
	"github.com/halverson/satcom-planner/pkg/logger"
)

const testGeoJSON = `{
  "type": "FeatureCollection",
  "features": [
    {
      "type": "Feature",
      "properties": {"satellite_id": "AOR"},
      "geometry": {
        "type": "Polygon",
        "coordinates": [[[-60, -40], [-60, 40], [-10, 40], [-10, -40], [-60, -40]]]
      }
    },
    {
      "type": "Feature",
      "properties": {"satellite_id": "POR"},
      "geometry": {
        "type": "MultiPolygon",
        "coordinates": [
          [[[150, -40], [150, 40], [180, 40], [180, -40], [150, -40]]],
          [[[-180, -40], [-180, 40], [-140, 40], [-140, -40], [-180, -40]]]
        ]
      }
    }
  ]
}`

func writeDataset(t *testing.T, content string) *Dataset {
	t.Helper()
	path := filepath.Join(t.TempDir(), "footprints.geojson")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write dataset: %v", err)
	}
	return NewDataset(path, logger.NewNop())
}

func TestCoveringSatellites(t *testing.T) {
	ds := writeDataset(t, testGeoJSON)

	got := ds.CoveringSatellites(10, -30)
	if len(got) != 1 || got[0] != "AOR" {
		t.Fatalf("CoveringSatellites(10, -30) = %v, want [AOR]", got)
	}

	if got := ds.CoveringSatellites(10, 100); len(got) != 0 {
		t.Fatalf("CoveringSatellites(10, 100) = %v, want empty", got)
	}
}

func TestCoveringSatellitesAntimeridianSplit(t *testing.T) {
	ds := writeDataset(t, testGeoJSON)

	// POR is split into two rings around the antimeridian; both sides count.
	if got := ds.CoveringSatellites(0, 170); len(got) != 1 || got[0] != "POR" {
		t.Fatalf("CoveringSatellites(0, 170) = %v, want [POR]", got)
	}
	if got := ds.CoveringSatellites(0, -160); len(got) != 1 || got[0] != "POR" {
		t.Fatalf("CoveringSatellites(0, -160) = %v, want [POR]", got)
	}
}

func TestMalformedDatasetDegradesToNoCoverage(t *testing.T) {
	ds := writeDataset(t, `{"type": "FeatureCollection", "features": [`)

	if got := ds.CoveringSatellites(10, -30); len(got) != 0 {
		t.Fatalf("CoveringSatellites over broken dataset = %v, want empty", got)
	}
	if ds.LoadError() == nil {
		t.Fatal("LoadError() = nil, want recorded error")
	}
}

func TestMissingDatasetDegradesToNoCoverage(t *testing.T) {
	ds := NewDataset(filepath.Join(t.TempDir(), "absent.geojson"), logger.NewNop())
	if got := ds.CoveringSatellites(0, 0); got != nil {
		t.Fatalf("CoveringSatellites with missing file = %v, want nil", got)
	}
}

func samplesAt(start time.Time, covering ...[]string) []route.Sample {
	samples := make([]route.Sample, len(covering))
	for i, c := range covering {
		samples[i] = route.Sample{
			Time:     start.Add(time.Duration(i) * time.Minute),
			Lat:      float64(i),
			Lon:      float64(-30 + i),
			Covering: c,
		}
	}
	return samples
}

func TestSampleRouteCoverageEntryThenExit(t *testing.T) {
	start := time.Date(2025, time.June, 1, 12, 0, 0, 0, time.UTC)
	samples := samplesAt(start, nil, []string{"AOR"}, []string{"AOR"}, nil, nil)

	events := SampleRouteCoverage(samples)
	if len(events) != 2 {
		t.Fatalf("got %d events, want 2: %+v", len(events), events)
	}
	if events[0].Type != EventEntry || events[0].SatelliteID != "AOR" {
		t.Errorf("first event = %+v, want AOR entry", events[0])
	}
	if events[1].Type != EventExit || events[1].SatelliteID != "AOR" {
		t.Errorf("second event = %+v, want AOR exit", events[1])
	}
	if !events[0].Time.Before(events[1].Time) {
		t.Error("entry not before exit")
	}
}

func TestAnalyzeKaCoverageGap(t *testing.T) {
	start := time.Date(2025, time.June, 1, 12, 0, 0, 0, time.UTC)
	samples := samplesAt(start,
		[]string{"KA-1"}, []string{"KA-1"}, nil, nil, []string{"KA-1"})

	analysis := AnalyzeKaCoverage(samples)
	if len(analysis.Gaps) != 1 {
		t.Fatalf("got %d gaps, want 1: %+v", len(analysis.Gaps), analysis.Gaps)
	}
	gap := analysis.Gaps[0]
	if !gap.Start.Equal(start.Add(2 * time.Minute)) {
		t.Errorf("gap start = %v, want %v", gap.Start, start.Add(2*time.Minute))
	}
	if !gap.End.Equal(start.Add(4 * time.Minute)) {
		t.Errorf("gap end = %v, want %v", gap.End, start.Add(4*time.Minute))
	}
	if len(analysis.Swaps) != 0 {
		t.Errorf("got %d swaps, want 0 (gap breaks continuity)", len(analysis.Swaps))
	}
}

func TestAnalyzeKaCoverageSwap(t *testing.T) {
	start := time.Date(2025, time.June, 1, 12, 0, 0, 0, time.UTC)
	samples := samplesAt(start,
		[]string{"KA-1"}, []string{"KA-1"}, []string{"KA-2"}, []string{"KA-2"})

	analysis := AnalyzeKaCoverage(samples)
	if len(analysis.Gaps) != 0 {
		t.Fatalf("got %d gaps, want 0", len(analysis.Gaps))
	}
	if len(analysis.Swaps) != 1 {
		t.Fatalf("got %d swaps, want 1: %+v", len(analysis.Swaps), analysis.Swaps)
	}
	swap := analysis.Swaps[0]
	if swap.FromSat != "KA-1" || swap.ToSat != "KA-2" {
		t.Errorf("swap = %s -> %s, want KA-1 -> KA-2", swap.FromSat, swap.ToSat)
	}
	wantMid := start.Add(90 * time.Second)
	if !swap.Midpoint.Equal(wantMid) {
		t.Errorf("swap midpoint = %v, want %v", swap.Midpoint, wantMid)
	}
}

func TestAnalyzeKaCoverageOverlapIsNotASwap(t *testing.T) {
	start := time.Date(2025, time.June, 1, 12, 0, 0, 0, time.UTC)
	// KA-1 stays covering throughout; KA-2 appears alongside it.
	samples := samplesAt(start,
		[]string{"KA-1"}, []string{"KA-2", "KA-1"}, []string{"KA-1"})

	analysis := AnalyzeKaCoverage(samples)
	if len(analysis.Swaps) != 0 {
		t.Fatalf("got %d swaps, want 0: %+v", len(analysis.Swaps), analysis.Swaps)
	}
}
