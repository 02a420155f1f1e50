package geometry

import (
	"math"
	"testing"
	"time"
)

func testTime() time.Time {
	return time.Date(2025, time.March, 1, 12, 0, 0, 0, time.UTC)
}

func TestInAzimuthRangeWrapAround(t *testing.T) {
	// 315..45 wraps through north.
	for _, az := range []float64{350, 0, 30} {
		if !InAzimuthRange(az, 315, 45) {
			t.Errorf("InAzimuthRange(%v, 315, 45) = false, want true", az)
		}
	}
	for _, az := range []float64{100, 200} {
		if InAzimuthRange(az, 315, 45) {
			t.Errorf("InAzimuthRange(%v, 315, 45) = true, want false", az)
		}
	}
}

func TestInAzimuthRangeSimple(t *testing.T) {
	if !InAzimuthRange(120, 90, 180) {
		t.Errorf("InAzimuthRange(120, 90, 180) = false, want true")
	}
	if InAzimuthRange(200, 90, 180) {
		t.Errorf("InAzimuthRange(200, 90, 180) = true, want false")
	}
}

func TestHaversineSymmetry(t *testing.T) {
	aLat, aLon := 43.6777, -79.6248 // CYYZ
	bLat, bLon := 51.4775, -0.4614  // EGLL

	ab := Haversine(aLat, aLon, bLat, bLon)
	ba := Haversine(bLat, bLon, aLat, aLon)
	if math.Abs(ab-ba) > 1e-6 {
		t.Errorf("Haversine not symmetric: %v vs %v", ab, ba)
	}
	if d := Haversine(aLat, aLon, aLat, aLon); d != 0 {
		t.Errorf("Haversine(A, A) = %v, want 0", d)
	}
	// CYYZ-EGLL is roughly 5,700 km.
	if ab < 5.5e6 || ab > 6.0e6 {
		t.Errorf("Haversine(CYYZ, EGLL) = %v m, want ~5.7e6", ab)
	}
}

func TestInterpolateAntimeridian(t *testing.T) {
	_, lon := Interpolate(10, 170, 10, -170, 0.5)
	if math.Abs(math.Abs(lon)-180) > 1e-9 {
		t.Errorf("Interpolate midpoint lon = %v, want +/-180", lon)
	}

	// A non-crossing segment interpolates linearly.
	_, lon = Interpolate(0, 10, 0, 20, 0.5)
	if math.Abs(lon-15) > 1e-9 {
		t.Errorf("Interpolate midpoint lon = %v, want 15", lon)
	}
}

func TestLookAnglesSubSatellitePoint(t *testing.T) {
	_, el, err := LookAngles(0, -101, 0, -101)
	if err != nil {
		t.Fatalf("LookAngles: %v", err)
	}
	if math.Abs(el-90) > 1e-6 {
		t.Errorf("elevation under satellite = %v, want 90", el)
	}
}

func TestLookAnglesNorthernObserver(t *testing.T) {
	// Observer due north of the sub-satellite point looks due south.
	az, el, err := LookAngles(45, -101, 10000, -101)
	if err != nil {
		t.Fatalf("LookAngles: %v", err)
	}
	if math.Abs(az-180) > 0.5 {
		t.Errorf("azimuth = %v, want ~180", az)
	}
	if el < 30 || el > 45 {
		t.Errorf("elevation = %v, want within (30, 45)", el)
	}
}

func TestLookAnglesBelowHorizon(t *testing.T) {
	// Opposite side of the planet: satellite well below the horizon.
	_, el, err := LookAngles(0, 79, 0, -101)
	if err != nil {
		t.Fatalf("LookAngles: %v", err)
	}
	if el >= 0 {
		t.Errorf("elevation = %v, want negative", el)
	}
}

func TestLookAnglesRejectsNonFinite(t *testing.T) {
	if _, _, err := LookAngles(math.NaN(), 0, 0, -101); err == nil {
		t.Error("LookAngles accepted NaN latitude")
	}
	if _, _, err := LookAngles(0, 0, math.Inf(1), -101); err == nil {
		t.Error("LookAngles accepted infinite altitude")
	}
}

func TestEvaluateElevationBeatsAzimuth(t *testing.T) {
	// Observer far from the satellite so elevation is below any sane floor,
	// with an azimuth exclusion that would also match.
	eval, err := Evaluate(70, 170, 10000, math.NaN(), -101, 5, 0, 360, testTime())
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if eval.Reason != ViolationElevation {
		t.Errorf("Reason = %v, want elevation violation", eval.Reason)
	}
	if !eval.ElevationBelowMin {
		t.Error("ElevationBelowMin = false, want true")
	}
}

func TestEvaluateRelativeAzimuth(t *testing.T) {
	// Heading 90 turns an absolute ~180 azimuth into a relative ~90.
	eval, err := Evaluate(45, -101, 10000, 90, -101, 5, 85, 95, testTime())
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if math.Abs(eval.RelativeAzimuth-90) > 1 {
		t.Errorf("RelativeAzimuth = %v, want ~90", eval.RelativeAzimuth)
	}
	if eval.Reason != ViolationAzimuth {
		t.Errorf("Reason = %v, want azimuth violation", eval.Reason)
	}
}
