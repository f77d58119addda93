// internal/storage/storage.go
package storage

import (
	"context"

	"github.com/lookaround-map/viewer/pkg/core"
)

// ErrNotFound is returned when no cached panorama lies within the radius.
var ErrNotFound = core.ErrNotFound

// Backend is the interface all panorama metadata caches must satisfy.
// Radii are ground distances in meters.
type Backend interface {
	// Lifecycle
	Init() error
	Close() error

	// SavePanoramas inserts or replaces panoramas by ID.
	SavePanoramas(ctx context.Context, panos []core.Panorama) error

	// Closest returns the panoramas within radius of a location, nearest
	// first. It returns ErrNotFound when there are none.
	Closest(ctx context.Context, lat, lon, radius float64) ([]core.Panorama, error)

	// Neighbors returns every panorama within radius of a location, in no
	// particular order. An empty result is not an error.
	Neighbors(ctx context.Context, lat, lon, radius float64) ([]core.Panorama, error)
}
