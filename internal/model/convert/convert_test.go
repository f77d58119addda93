package convert

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lookaround-map/viewer/internal/geo"
	"github.com/lookaround-map/viewer/internal/model"
	"github.com/lookaround-map/viewer/pkg/core"
)

func TestCoreToPanorama(t *testing.T) {
	date := time.Date(2023, 6, 14, 9, 30, 0, 0, time.FixedZone("CEST", 2*3600))
	p := core.Panorama{
		ID:           "1234567890",
		RegionID:     "42",
		Lat:          48.0,
		Lon:          11.0,
		RawElevation: 1000,
		Date:         date,
		Heading:      1.25,
		CoverageType: core.CoverageTrekker,
		Projection:   core.Projection{FaceExtents: [4]float64{1.8, 1.7, 1.8, 1.7}},
	}

	m, err := CoreToPanorama(p)
	require.NoError(t, err)

	assert.Equal(t, "1234567890", m.PanoID)
	assert.Equal(t, "42", m.RegionID)
	assert.Equal(t, uint8(core.CoverageTrekker), m.CoverageType)
	assert.Equal(t, []float64{1.8, 1.7, 1.8, 1.7}, []float64(m.FaceExtents))
	assert.Equal(t, time.UTC, m.Date.Location())
	assert.True(t, m.Date.Equal(date))

	// Web mercator: x = R·λ, roughly 1.2245e6 m at 11°E.
	assert.InDelta(t, 1224514.4, m.X, 1)
	assert.Greater(t, m.Y, 6e6)
	xy, ok := m.Location.XY()
	require.True(t, ok)
	assert.Equal(t, m.X, xy.X)
	assert.Equal(t, m.Y, xy.Y)
}

func TestPanoramaRoundTrip(t *testing.T) {
	p := core.Panorama{
		ID:           "a",
		Lat:          52.52,
		Lon:          13.405,
		Date:         time.Unix(1_600_000_000, 0).UTC(),
		CoverageType: core.CoverageCar,
		Projection:   core.Projection{FaceExtents: [4]float64{1, 2, 3, 4}},
	}

	m, err := CoreToPanorama(p)
	require.NoError(t, err)
	assert.Equal(t, p, PanoramaToCore(m))
}

func TestCoreToPanorama_InvalidLocation(t *testing.T) {
	_, err := CoreToPanorama(core.Panorama{ID: "bad", Lat: 95, Lon: 11})

	assert.ErrorIs(t, err, geo.ErrInvalidCoordinates)
	assert.ErrorContains(t, err, "bad")
}

func TestPanoramaToCore_ShortExtents(t *testing.T) {
	got := PanoramaToCore(model.Panorama{PanoID: "x", FaceExtents: []float64{1.5}})

	assert.Equal(t, [4]float64{1.5, 0, 0, 0}, got.Projection.FaceExtents)
}

func TestPanoramasToCore(t *testing.T) {
	got := PanoramasToCore([]model.Panorama{{PanoID: "a"}, {PanoID: "b"}})

	require.Len(t, got, 2)
	assert.Equal(t, "b", got[1].ID)
}
