// Package convert provides functions to convert between GORM models and core models
package convert

import (
	"fmt"
	"time"

	"github.com/lookaround-map/viewer/internal/geo"
	"github.com/lookaround-map/viewer/internal/model"
	"github.com/lookaround-map/viewer/pkg/core"
)

// CoreToPanorama converts a core.Panorama to its GORM model, projecting the
// location to EPSG:3857.
func CoreToPanorama(p core.Panorama) (model.Panorama, error) {
	location, err := geo.Coords3857From4326(p.Lon, p.Lat)
	if err != nil {
		return model.Panorama{}, fmt.Errorf("panorama %s: %w", p.ID, err)
	}
	xy, _ := location.XY()

	extents := make([]float64, core.SideFaceCount)
	copy(extents, p.Projection.FaceExtents[:])

	return model.Panorama{
		PanoID:       p.ID,
		RegionID:     p.RegionID,
		Lat:          p.Lat,
		Lon:          p.Lon,
		X:            xy.X,
		Y:            xy.Y,
		Location:     location,
		RawElevation: p.RawElevation,
		Date:         p.Date.UTC(),
		Heading:      p.Heading,
		CoverageType: uint8(p.CoverageType),
		FaceExtents:  extents,
		UpdatedAt:    time.Now().UTC(),
	}, nil
}

// PanoramaToCore converts a GORM Panorama back to a core.Panorama. Missing
// face extents stay zero.
func PanoramaToCore(m model.Panorama) core.Panorama {
	var proj core.Projection
	copy(proj.FaceExtents[:], m.FaceExtents)

	return core.Panorama{
		ID:           m.PanoID,
		RegionID:     m.RegionID,
		Lat:          m.Lat,
		Lon:          m.Lon,
		RawElevation: m.RawElevation,
		Date:         m.Date,
		Heading:      m.Heading,
		CoverageType: core.CoverageType(m.CoverageType),
		Projection:   proj,
	}
}

// PanoramasToCore converts a slice of GORM Panoramas.
func PanoramasToCore(ms []model.Panorama) []core.Panorama {
	out := make([]core.Panorama, len(ms))
	for i, m := range ms {
		out[i] = PanoramaToCore(m)
	}
	return out
}
