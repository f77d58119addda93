package provider

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/lookaround-map/viewer/pkg/core"
)

// Provider coverage type codes.
const (
	coverageCar     = 2
	coverageTrekker = 3
)

// panoramaJSON is a panorama as the provider encodes it.
type panoramaJSON struct {
	PanoID       string     `json:"panoid"`
	RegionID     string     `json:"region_id"`
	Lat          float64    `json:"lat"`
	Lon          float64    `json:"lon"`
	Date         flexTime   `json:"date"`
	North        float64    `json:"north"`
	CoverageType int        `json:"coverageType"`
	RawElevation float64    `json:"rawElevation"`
	Projection   projection `json:"projection"`
}

type projection struct {
	LatitudeSize []float64 `json:"latitude_size"`
}

func (p panoramaJSON) toCore() core.Panorama {
	out := core.Panorama{
		ID:           p.PanoID,
		RegionID:     p.RegionID,
		Lat:          p.Lat,
		Lon:          p.Lon,
		RawElevation: p.RawElevation,
		Date:         time.Time(p.Date),
		Heading:      p.North,
	}
	switch p.CoverageType {
	case coverageCar:
		out.CoverageType = core.CoverageCar
	case coverageTrekker:
		out.CoverageType = core.CoverageTrekker
	}
	// extra entries belong to the pole slots, which carry no extent
	copy(out.Projection.FaceExtents[:], p.Projection.LatitudeSize)
	return out
}

// decodePanoramas decodes a provider panorama list.
func decodePanoramas(data []byte) ([]core.Panorama, error) {
	var raw []panoramaJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decoding panoramas: %w", err)
	}
	out := make([]core.Panorama, len(raw))
	for i, p := range raw {
		out[i] = p.toCore()
	}
	return out, nil
}

// flexTime accepts the capture date as epoch milliseconds or as an HTTP,
// RFC1123 or RFC3339 date string.
type flexTime time.Time

var dateLayouts = []string{http.TimeFormat, time.RFC1123, time.RFC1123Z, time.RFC3339Nano}

func (t *flexTime) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		*t = flexTime{}
		return nil
	}

	if len(data) > 0 && data[0] != '"' {
		ms, err := strconv.ParseFloat(string(data), 64)
		if err != nil {
			return fmt.Errorf("invalid date %s: %w", data, err)
		}
		*t = flexTime(time.UnixMilli(int64(ms)).UTC())
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == "" {
		*t = flexTime{}
		return nil
	}
	for _, layout := range dateLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			*t = flexTime(parsed.UTC())
			return nil
		}
	}
	return fmt.Errorf("invalid date %q", s)
}
