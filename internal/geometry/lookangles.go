package geometry

import (
	"math"
	"time"

	"github.com/westphae/geomag/pkg/egm96"
	"github.com/westphae/geomag/pkg/wmm"
)

// LookAngles computes the azimuth and elevation from an aircraft position to a
// geostationary satellite parked at satLon. Spherical Earth, satellite on the
// equatorial plane at GEO altitude. Azimuth is true, 0 = North, clockwise, in
// [0, 360). Elevation is degrees above the local horizon (negative when the
// satellite is below it).
func LookAngles(lat, lon, altM, satLon float64) (azimuth, elevation float64, err error) {
	for _, in := range []struct {
		name string
		v    float64
	}{
		{"latitude", lat},
		{"longitude", lon},
		{"altitude", altM},
		{"satellite_longitude", satLon},
	} {
		if ferr := checkFinite(in.name, in.v); ferr != nil {
			return 0, 0, ferr
		}
	}

	phi := lat * DegToRad
	dLambda := (satLon - lon) * DegToRad

	// Central angle between the observer and the sub-satellite point.
	cosPsi := math.Cos(phi) * math.Cos(dLambda)
	sinPsi := math.Sqrt(1 - cosPsi*cosPsi)

	// Elevation from the geometry of the GEO triangle; the observer radius
	// includes aircraft altitude.
	ratio := (EarthRadiusM + altM) / (EarthRadiusM + GEOAltitudeM)
	if sinPsi < 1e-9 {
		// Directly under the satellite.
		return 0, 90, nil
	}
	elevation = math.Atan2(cosPsi-ratio, sinPsi) * RadToDeg

	// Azimuth is the bearing to the sub-satellite point (lat 0, lon satLon).
	azimuth = Bearing(lat, lon, 0, satLon)

	return azimuth, elevation, nil
}

// ViolationReason identifies which pointing constraint fired.
type ViolationReason int

const (
	ViolationNone ViolationReason = iota
	ViolationElevation
	ViolationAzimuth
)

func (r ViolationReason) String() string {
	switch r {
	case ViolationElevation:
		return "elevation_below_minimum"
	case ViolationAzimuth:
		return "azimuth_in_exclusion_zone"
	default:
		return "none"
	}
}

// Evaluation is the structured result of a single look-angle constraint check.
type Evaluation struct {
	AbsoluteAzimuth   float64
	RelativeAzimuth   float64 // relative to aircraft heading when known, else == absolute
	MagneticAzimuth   float64
	Elevation         float64
	ElevationBelowMin bool
	Reason            ViolationReason
}

// Violated reports whether any constraint fired.
func (e Evaluation) Violated() bool { return e.Reason != ViolationNone }

// Evaluate checks a single aircraft sample against a satellite's pointing
// constraints. heading may be NaN when unknown; the azimuth test then uses
// the absolute azimuth. Elevation violations take priority over azimuth ones.
func Evaluate(lat, lon, altM, heading, satLon, minElevation, azMin, azMax float64, at time.Time) (Evaluation, error) {
	az, el, err := LookAngles(lat, lon, altM, satLon)
	if err != nil {
		return Evaluation{}, err
	}

	eval := Evaluation{
		AbsoluteAzimuth: az,
		RelativeAzimuth: az,
		Elevation:       el,
	}

	decl := MagneticDeclination(lat, lon, altM, at)
	eval.MagneticAzimuth = NormalizeAngle(az - decl)

	testAz := az
	if !math.IsNaN(heading) {
		eval.RelativeAzimuth = RelativeAngle(az, heading)
		testAz = eval.RelativeAzimuth
	}

	if el < minElevation {
		eval.ElevationBelowMin = true
		eval.Reason = ViolationElevation
		return eval, nil
	}
	if InAzimuthRange(testAz, azMin, azMax) {
		eval.Reason = ViolationAzimuth
	}
	return eval, nil
}

// MagneticDeclination returns the magnetic declination in degrees
// (+East, -West) for a given position and time. Returns 0 if the world
// magnetic model fails for the location.
func MagneticDeclination(lat, lon, altM float64, date time.Time) float64 {
	loc := egm96.NewLocationGeodetic(lat, lon, altM)
	mag, err := wmm.CalculateWMMMagneticField(loc, date)
	if err != nil {
		return 0.0
	}
	return mag.D()
}
