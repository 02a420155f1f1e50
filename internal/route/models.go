package route

import (
	"time"
)

// RoutePoint is a single point of a loaded route. Points are immutable once
// the route is loaded; the ordered sequence defines the route geometry.
type RoutePoint struct {
	Lat             float64    `json:"lat"`
	Lon             float64    `json:"lon"`
	AltitudeFt      float64    `json:"altitude_ft"`
	Sequence        int        `json:"sequence"`
	ArrivalTime     *time.Time `json:"arrival_time,omitempty"`
	PlannedSpeedKts *float64   `json:"planned_speed_kts,omitempty"`
}

// Waypoint is a named point of interest along the route with a role tag
// (e.g. "refuel_start", "refuel_end", "destination").
type Waypoint struct {
	Name        string     `json:"name"`
	Role        string     `json:"role,omitempty"`
	Lat         float64    `json:"lat"`
	Lon         float64    `json:"lon"`
	ArrivalTime *time.Time `json:"arrival_time,omitempty"`
}

// TimingProfile carries explicit departure/arrival times when the route's
// points don't have their own timestamps.
type TimingProfile struct {
	DepartureTime *time.Time `json:"departure_time,omitempty"`
	ArrivalTime   *time.Time `json:"arrival_time,omitempty"`
}

// Route is an ordered point sequence plus optional named waypoints and timing.
type Route struct {
	ID        string        `json:"id"`
	Name      string        `json:"name"`
	Points    []RoutePoint  `json:"points"`
	Waypoints []Waypoint    `json:"waypoints,omitempty"`
	Timing    TimingProfile `json:"timing"`
}

// WaypointByName returns the first waypoint with the given name.
func (r *Route) WaypointByName(name string) (Waypoint, bool) {
	for _, wp := range r.Waypoints {
		if wp.Name == name {
			return wp, true
		}
	}
	return Waypoint{}, false
}

// Sample is one uniformly spaced point on the mission time axis. Generated
// per mission build, never stored.
type Sample struct {
	Time         time.Time `json:"time"`
	Lat          float64   `json:"lat"`
	Lon          float64   `json:"lon"`
	AltitudeFt   float64   `json:"altitude_ft"`
	Heading      float64   `json:"heading"`
	HeadingValid bool      `json:"heading_valid"`
	Covering     []string  `json:"covering,omitempty"`
}

// Projection is a precomputed nearest-route-point projection for an off-route
// point of interest.
type Projection struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// POI is a point of interest, optionally associated with a route.
type POI struct {
	ID         string      `json:"id"`
	Name       string      `json:"name"`
	Lat        float64     `json:"lat"`
	Lon        float64     `json:"lon"`
	RouteID    string      `json:"route_id,omitempty"`
	Projection *Projection `json:"projection,omitempty"`
}

// CoverageLookup answers which satellites cover a position. Implemented by
// the coverage dataset; kept as an interface so the projector doesn't depend
// on polygon storage.
type CoverageLookup interface {
	CoveringSatellites(lat, lon float64) []string
}
