// internal/storage/memory/memory_test.go
package memory_test

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lookaround-map/viewer/internal/geo"
	"github.com/lookaround-map/viewer/internal/storage"
	"github.com/lookaround-map/viewer/internal/storage/memory"
	"github.com/lookaround-map/viewer/pkg/core"
)

// Verify Backend implements storage.Backend interface
var _ storage.Backend = (*memory.Backend)(nil)

// roughly 11 m and 1.1 km per step in latitude
const (
	nearStep = 0.0001
	farStep  = 0.01
)

func fixtures() []core.Panorama {
	return []core.Panorama{
		{ID: "far", Lat: 48 + farStep, Lon: 11},
		{ID: "origin", Lat: 48, Lon: 11},
		{ID: "near", Lat: 48 + nearStep, Lon: 11},
	}
}

func TestClosest_SortedByDistance(t *testing.T) {
	b := memory.New()
	require.NoError(t, b.Init())
	require.NoError(t, b.SavePanoramas(context.Background(), fixtures()))

	got, err := b.Closest(context.Background(), 48, 11, 5000)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "origin", got[0].ID)
	assert.Equal(t, "near", got[1].ID)
	assert.Equal(t, "far", got[2].ID)
}

func TestClosest_RadiusExcludes(t *testing.T) {
	b := memory.New()
	require.NoError(t, b.SavePanoramas(context.Background(), fixtures()))

	got, err := b.Closest(context.Background(), 48, 11, 50)
	require.NoError(t, err)
	ids := []string{}
	for _, p := range got {
		ids = append(ids, p.ID)
	}
	assert.ElementsMatch(t, []string{"origin", "near"}, ids)
}

func TestClosest_NotFound(t *testing.T) {
	b := memory.New()
	_, err := b.Closest(context.Background(), 48, 11, 100)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestNeighbors_EmptyIsNotError(t *testing.T) {
	b := memory.New()
	got, err := b.Neighbors(context.Background(), 0, 0, 100)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestSavePanoramas_ReplacesByID(t *testing.T) {
	b := memory.New()
	ctx := context.Background()
	require.NoError(t, b.SavePanoramas(ctx, []core.Panorama{{ID: "a", Lat: 48, Lon: 11, Heading: 1}}))
	require.NoError(t, b.SavePanoramas(ctx, []core.Panorama{{ID: "a", Lat: 48, Lon: 11, Heading: 2}}))

	assert.Equal(t, 1, b.Len())
	got, err := b.Closest(ctx, 48, 11, 10)
	require.NoError(t, err)
	assert.Equal(t, 2.0, got[0].Heading)
	require.NoError(t, b.Close())
}

func TestNeighbors_InvalidLocation(t *testing.T) {
	b := memory.New()
	_, err := b.Neighbors(context.Background(), math.NaN(), 11, 100)
	assert.ErrorIs(t, err, geo.ErrInvalidCoordinates)
}
