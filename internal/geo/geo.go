package geo

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	geom "github.com/peterstace/simplefeatures/geom"
	"github.com/wroge/wgs84"
)

// GEO POINTS
// Panorama locations are cached as EPSG:3857 so that radius lookups in the
// storage backends are plain box comparisons in projected meters.

// ErrInvalidCoordinates is returned when the coordinates are invalid
var ErrInvalidCoordinates = errors.New("invalid coordinates provided")

// Location is a WGS84 position with an optional raw elevation.
type Location struct {
	Lon       float64
	Lat       float64
	Elevation float64
}

// LocationFromString parses a string in the format "long,lat" or "long,lat,elev".
func LocationFromString(coords string) (Location, error) {
	coordsSplit := strings.Split(coords, ",")
	if len(coordsSplit) < 2 {
		return Location{}, ErrInvalidCoordinates
	}
	long, err := strconv.ParseFloat(strings.TrimSpace(coordsSplit[0]), 64)
	if err != nil {
		return Location{}, ErrInvalidCoordinates
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(coordsSplit[1]), 64)
	if err != nil {
		return Location{}, ErrInvalidCoordinates
	}
	if lat < -90 || lat > 90 || long < -180 || long > 180 {
		return Location{}, ErrInvalidCoordinates
	}
	var elev float64
	if len(coordsSplit) > 2 {
		elev, err = strconv.ParseFloat(strings.TrimSpace(coordsSplit[2]), 64)
		if err != nil {
			return Location{}, ErrInvalidCoordinates
		}
	}
	return Location{Lon: long, Lat: lat, Elevation: elev}, nil
}

// Coords3857From4326 creates a web mercator point from a longitude and latitude
func Coords3857From4326(longitude, latitude float64) (geom.Point, error) {
	if math.IsNaN(longitude) || math.IsNaN(latitude) ||
		latitude < -90 || latitude > 90 || longitude < -180 || longitude > 180 {
		return geom.Point{}, ErrInvalidCoordinates
	}
	point, err := geom.NewPoint(geom.Coordinates{
		XY:   MercatorXY(longitude, latitude),
		Type: geom.DimXY,
	})
	if err != nil {
		return geom.Point{}, fmt.Errorf("%w: %v", ErrInvalidCoordinates, err)
	}
	return point, nil
}

// MercatorXY returns the EPSG:3857 coordinates of a longitude and latitude.
func MercatorXY(longitude, latitude float64) geom.XY {
	x, y, _ := toMercator(longitude, latitude, 0)
	return geom.XY{X: x, Y: y}
}

var toMercator = wgs84.EPSG().Transform(4326, 3857)

// MercatorBounds returns the corners of a box around a location that covers
// at least radius meters on the ground in every direction. Mercator stretches
// distances by 1/cos(lat), so the box is widened accordingly.
func MercatorBounds(longitude, latitude, radius float64) (lo, hi geom.XY) {
	center := MercatorXY(longitude, latitude)
	stretched := radius / math.Max(math.Cos(latitude*math.Pi/180), 1e-6)
	lo = geom.XY{X: center.X - stretched, Y: center.Y - stretched}
	hi = geom.XY{X: center.X + stretched, Y: center.Y + stretched}
	return lo, hi
}

// MercatorEnvelope is MercatorBounds as a geom.Envelope.
func MercatorEnvelope(longitude, latitude, radius float64) (geom.Envelope, error) {
	lo, hi := MercatorBounds(longitude, latitude, radius)
	env, err := geom.NewEnvelope([]geom.XY{lo, hi})
	if err != nil {
		return geom.Envelope{}, fmt.Errorf("%w: %v", ErrInvalidCoordinates, err)
	}
	return env, nil
}
