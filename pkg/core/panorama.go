// pkg/core/panorama.go
package core

import (
	"errors"
	"time"
)

// ErrNotFound is returned when no panorama matches a lookup.
var ErrNotFound = errors.New("panorama not found")

// CoverageType distinguishes the capture rig a panorama was taken with.
type CoverageType int

const (
	CoverageUnknown CoverageType = iota
	CoverageCar
	CoverageTrekker
)

// String returns the provider's name for the coverage type.
func (c CoverageType) String() string {
	switch c {
	case CoverageCar:
		return "car"
	case CoverageTrekker:
		return "trekker"
	default:
		return "unknown"
	}
}

// SideFaceCount is the number of directional captures that make up a panorama.
const SideFaceCount = 4

// FaceSlotCount includes the two reserved pole slots (top, bottom).
const FaceSlotCount = 6

// FaceIndex identifies one face of a panorama. 0-3 are the side faces.
type FaceIndex int

const (
	FaceTop    FaceIndex = 4
	FaceBottom FaceIndex = 5
)

// IsSide reports whether f is one of the four captured side faces.
func (f FaceIndex) IsSide() bool {
	return f >= 0 && f < SideFaceCount
}

// Quality is a face resolution level. Smaller is better; 0 is the highest.
type Quality int

// Projection holds the per-panorama capture geometry.
// FaceExtents are the vertical (latitude) spans of the side faces in radians.
type Projection struct {
	FaceExtents [SideFaceCount]float64
}

// Panorama is a single captured position. It is immutable once retrieved.
type Panorama struct {
	ID           string
	RegionID     string
	Lat          float64
	Lon          float64
	RawElevation float64 // empirical units, not meters
	Date         time.Time
	Heading      float64 // radians, the provider's "north" value
	CoverageType CoverageType
	Projection   Projection
}

// SameLocation reports whether both panoramas share exact coordinates.
func (p Panorama) SameLocation(other Panorama) bool {
	return p.Lat == other.Lat && p.Lon == other.Lon
}

// IsZero reports whether p is the zero panorama.
func (p Panorama) IsZero() bool {
	return p.ID == ""
}
