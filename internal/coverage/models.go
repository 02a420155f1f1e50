package coverage

import (
	"encoding/json"
	"time"
)

// Ring is a closed polygon ring of [lon, lat] vertices, GeoJSON order.
type Ring [][2]float64

// Footprint is the ground coverage area of one satellite. Footprints that
// cross the antimeridian are stored pre-split into multiple rings; a point is
// inside the footprint if ANY ring contains it.
type Footprint struct {
	SatelliteID string
	Rings       []Ring
}

// EventType classifies a coverage boundary crossing.
type EventType string

const (
	EventEntry EventType = "coverage_entry"
	EventExit  EventType = "coverage_exit"
)

// Event records the route entering or leaving a satellite footprint.
type Event struct {
	Time        time.Time `json:"time"`
	Type        EventType `json:"type"`
	SatelliteID string    `json:"satellite_id"`
	Lat         float64   `json:"lat"`
	Lon         float64   `json:"lon"`
}

// Gap is a maximal run of consecutive samples with no covering satellite.
type Gap struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Swap is a direct satellite-to-satellite coverage change with no empty
// interval between. Midpoint is where a handoff buffer should be centered.
type Swap struct {
	Midpoint time.Time `json:"midpoint"`
	FromSat  string    `json:"from_satellite"`
	ToSat    string    `json:"to_satellite"`
}

// Analysis summarizes constellation coverage across a sample sequence.
type Analysis struct {
	Gaps  []Gap  `json:"gaps"`
	Swaps []Swap `json:"swaps"`
}

// geojsonFile mirrors the on-disk FeatureCollection layout.
type geojsonFile struct {
	Type     string           `json:"type"`
	Features []geojsonFeature `json:"features"`
}

type geojsonFeature struct {
	Type       string          `json:"type"`
	Properties map[string]any  `json:"properties"`
	Geometry   geojsonGeometry `json:"geometry"`
}

type geojsonGeometry struct {
	Type        string          `json:"type"`
	Coordinates json.RawMessage `json:"coordinates"`
}
