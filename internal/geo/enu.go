package geo

import (
	"math"

	"github.com/golang/geo/r3"
)

// MetersPerDegree returns the length of one degree of latitude and of
// longitude at the given latitude (degrees) on the WGS84 ellipsoid.
func MetersPerDegree(lat float64) (perLat, perLon float64) {
	phi := lat * math.Pi / 180
	perLat = 111132.92 - 559.82*math.Cos(2*phi) + 1.175*math.Cos(4*phi) - 0.0023*math.Cos(6*phi)
	perLon = 111412.84*math.Cos(phi) - 93.5*math.Cos(3*phi) + 0.118*math.Cos(5*phi)
	return perLat, perLon
}

// GeodeticToENU returns the East-North-Up offset of a point relative to a
// reference point, seen from an observer refHeight above the reference.
// X is east, Y is north, Z is up.
//
// This is a flat tangent-plane approximation scaled by the metric factors at
// the reference latitude. It drifts over long ranges and is only used for
// neighbors a few hundred meters away at most.
func GeodeticToENU(lon, lat, elevDelta, refLon, refLat, refHeight float64) r3.Vector {
	perLat, perLon := MetersPerDegree(refLat)
	return r3.Vector{
		X: (lon - refLon) * perLon,
		Y: (lat - refLat) * perLat,
		Z: elevDelta - refHeight,
	}
}
