// internal/storage/memory/memory.go
package memory

import (
	"context"
	"sort"
	"sync"

	geom "github.com/peterstace/simplefeatures/geom"

	"github.com/lookaround-map/viewer/internal/geo"
	"github.com/lookaround-map/viewer/pkg/core"
)

// record keeps a panorama with its projected location.
type record struct {
	pano core.Panorama
	xy   geom.XY
}

// Backend keeps panorama metadata in memory, keyed by panorama ID.
type Backend struct {
	panos map[string]record
	mu    sync.RWMutex
}

// New creates a new memory backend
func New() *Backend {
	return &Backend{
		panos: make(map[string]record),
	}
}

// Init initializes the backend
func (b *Backend) Init() error {
	return nil
}

// Close cleans up resources
func (b *Backend) Close() error {
	return nil
}

// Len returns the number of cached panoramas.
func (b *Backend) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.panos)
}

// SavePanoramas inserts or replaces panoramas by ID.
func (b *Backend) SavePanoramas(_ context.Context, panos []core.Panorama) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, p := range panos {
		b.panos[p.ID] = record{pano: p, xy: geo.MercatorXY(p.Lon, p.Lat)}
	}
	return nil
}

// Closest returns the panoramas within radius, nearest first.
func (b *Backend) Closest(_ context.Context, lat, lon, radius float64) ([]core.Panorama, error) {
	center := geo.MercatorXY(lon, lat)
	found, err := b.within(lat, lon, radius)
	if err != nil {
		return nil, err
	}
	if len(found) == 0 {
		return nil, core.ErrNotFound
	}

	sort.SliceStable(found, func(i, j int) bool {
		return found[i].xy.Sub(center).Length() < found[j].xy.Sub(center).Length()
	})
	return panoramas(found), nil
}

// Neighbors returns every panorama within radius.
func (b *Backend) Neighbors(_ context.Context, lat, lon, radius float64) ([]core.Panorama, error) {
	found, err := b.within(lat, lon, radius)
	if err != nil {
		return nil, err
	}
	return panoramas(found), nil
}

func (b *Backend) within(lat, lon, radius float64) ([]record, error) {
	env, err := geo.MercatorEnvelope(lon, lat, radius)
	if err != nil {
		return nil, err
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	var out []record
	for _, r := range b.panos {
		if env.Contains(r.xy) {
			out = append(out, r)
		}
	}
	return out, nil
}

func panoramas(records []record) []core.Panorama {
	out := make([]core.Panorama, len(records))
	for i, r := range records {
		out[i] = r.pano
	}
	return out
}
