package geometry

import (
	"fmt"
	"math"
)

// Constants
const (
	EarthRadiusM = 6371000.0  // Mean Earth radius (m)
	GEOAltitudeM = 35786000.0 // Geostationary orbit altitude above the equator (m)

	DegToRad = math.Pi / 180.0
	RadToDeg = 180.0 / math.Pi

	KnotsToMs = 0.514444 // Conversion factor from Knots to m/s
	MsToKnots = 1.94384  // Conversion factor from m/s to Knots
	FeetToM   = 0.3048   // Conversion factor from feet to meters
)

// InputError indicates a non-finite coordinate or altitude was supplied.
type InputError struct {
	Field string
	Value float64
}

func (e *InputError) Error() string {
	return fmt.Sprintf("non-finite geometry input: %s = %v", e.Field, e.Value)
}

func checkFinite(field string, v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return &InputError{Field: field, Value: v}
	}
	return nil
}

// Haversine returns the great-circle distance in meters between two points.
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	phi1 := lat1 * DegToRad
	phi2 := lat2 * DegToRad
	dPhi := (lat2 - lat1) * DegToRad
	dLambda := (lon2 - lon1) * DegToRad

	a := math.Sin(dPhi/2)*math.Sin(dPhi/2) +
		math.Cos(phi1)*math.Cos(phi2)*math.Sin(dLambda/2)*math.Sin(dLambda/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return EarthRadiusM * c
}

// Bearing returns the initial great-circle bearing in degrees [0, 360)
// from point 1 towards point 2.
func Bearing(lat1, lon1, lat2, lon2 float64) float64 {
	phi1 := lat1 * DegToRad
	phi2 := lat2 * DegToRad
	dLambda := (lon2 - lon1) * DegToRad

	y := math.Sin(dLambda) * math.Cos(phi2)
	x := math.Cos(phi1)*math.Sin(phi2) - math.Sin(phi1)*math.Cos(phi2)*math.Cos(dLambda)

	bearing := math.Atan2(y, x) * RadToDeg
	return NormalizeAngle(bearing)
}

// NormalizeAngle wraps an angle in degrees into [0, 360).
func NormalizeAngle(deg float64) float64 {
	deg = math.Mod(deg, 360)
	if deg < 0 {
		deg += 360
	}
	return deg
}

// NormalizeLon wraps a longitude in degrees into [-180, 180].
func NormalizeLon(lon float64) float64 {
	for lon > 180 {
		lon -= 360
	}
	for lon < -180 {
		lon += 360
	}
	return lon
}

// Interpolate returns the point at the given fraction between two positions.
// Longitude deltas wider than 180 degrees are interpolated in a 0-360 shifted
// space and renormalized, so segments crossing the antimeridian never sweep
// the long way around the globe.
func Interpolate(lat1, lon1, lat2, lon2, frac float64) (lat, lon float64) {
	lat = lat1 + (lat2-lat1)*frac

	if math.Abs(lon2-lon1) > 180 {
		l1, l2 := lon1, lon2
		if l1 < 0 {
			l1 += 360
		}
		if l2 < 0 {
			l2 += 360
		}
		lon = NormalizeLon(l1 + (l2-l1)*frac)
		return lat, lon
	}

	lon = lon1 + (lon2-lon1)*frac
	return lat, lon
}

// InAzimuthRange reports whether an azimuth falls inside [min, max] degrees.
// If min > max the range wraps through 0/360 (e.g. 315..45 covers the nose
// sector crossing north).
func InAzimuthRange(az, min, max float64) bool {
	az = NormalizeAngle(az)
	if min > max {
		return az >= min || az <= max
	}
	return az >= min && az <= max
}

// RelativeAngle returns the angle of an absolute azimuth measured from the
// given heading, wrapped into [0, 360).
func RelativeAngle(absoluteAz, heading float64) float64 {
	return NormalizeAngle(absoluteAz - heading)
}
