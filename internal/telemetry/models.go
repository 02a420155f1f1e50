package telemetry

import (
	"math"
	"time"
)

// Tick is one aircraft telemetry reading from the source endpoint.
type Tick struct {
	Time       time.Time `json:"time"`
	Lat        float64   `json:"lat"`
	Lon        float64   `json:"lon"`
	AltitudeFt float64   `json:"altitude_ft"`
	HeadingDeg float64   `json:"heading_deg"`
	SpeedKts   float64   `json:"speed_kts"`
}

// Valid reports whether the tick carries a usable position and speed.
func (t *Tick) Valid() bool {
	for _, v := range []float64{t.Lat, t.Lon, t.SpeedKts} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return t.Lat >= -90 && t.Lat <= 90 && t.Lon >= -180 && t.Lon <= 180
}
