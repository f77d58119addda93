package geo

import (
	"math"

	"github.com/golang/geo/r3"
	"github.com/golang/geo/s1"
	"github.com/golang/geo/s2"

	"github.com/lookaround-map/viewer/pkg/core"
)

// NormalizeYaw wraps an angle in radians into [0, 2π).
func NormalizeYaw(yaw float64) float64 {
	yaw = math.Mod(yaw, 2*math.Pi)
	if yaw < 0 {
		yaw += 2 * math.Pi
	}
	return yaw
}

// ENUToPhotoSphere converts an ENU offset into a position relative to a
// panorama camera whose yaw 0 points lonOffset radians clockwise from north.
// Points at the observer's own elevation come out slightly below the horizon
// because the ENU up component already includes the observer height.
func ENUToPhotoSphere(enu r3.Vector, lonOffset float64) core.Spherical {
	horizontal := math.Hypot(enu.X, enu.Y)
	return core.Spherical{
		Yaw:      NormalizeYaw(math.Atan2(enu.X, enu.Y) - lonOffset),
		Pitch:    math.Atan2(enu.Z, horizontal),
		Distance: enu.Norm(),
	}
}

// DistanceBetween returns the angle between two positions on a sphere of the
// given radius. Latitudes and longitudes are in radians. This is used for
// screen-space hit testing with lat=pitch and lon=yaw, not for distances on
// the globe.
func DistanceBetween(lat1, lon1, lat2, lon2, scale float64) float64 {
	a := s2.LatLng{Lat: s1.Angle(lat1), Lng: s1.Angle(lon1)}
	b := s2.LatLng{Lat: s1.Angle(lat2), Lng: s1.Angle(lon2)}
	return a.Distance(b).Radians() * scale
}
