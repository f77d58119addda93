package influx

import (
	"strconv"
	"time"

	influxdb2_write "github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/lookaround-map/viewer/pkg/core"
)

// PointWriter accepts telemetry points; *Manager implements it.
type PointWriter interface {
	WritePoint(point *influxdb2_write.Point) error
}

// Recorder turns viewer activity into telemetry points. It implements the
// texture fetch observer.
type Recorder struct {
	w   PointWriter
	now func() time.Time
	// onError receives write failures; telemetry never fails the caller.
	onError func(error)
}

// NewRecorder creates a Recorder writing to w. onError may be nil.
func NewRecorder(w PointWriter, onError func(error)) *Recorder {
	return &Recorder{w: w, now: time.Now, onError: onError}
}

// FaceFetched records one face fetch.
func (r *Recorder) FaceFetched(panoID string, face core.FaceIndex, quality core.Quality, elapsed time.Duration, err error) {
	p := influxdb2_write.NewPointWithMeasurement("face_fetch").
		AddTag("face", strconv.Itoa(int(face))).
		AddTag("quality", strconv.Itoa(int(quality))).
		AddTag("ok", strconv.FormatBool(err == nil)).
		AddField("panoid", panoID).
		AddField("duration_ms", float64(elapsed.Microseconds())/1000).
		SetTime(r.now())
	r.write(p)
}

// Navigated records a displayed panorama.
func (r *Recorder) Navigated(pano core.Panorama) {
	p := influxdb2_write.NewPointWithMeasurement("navigation").
		AddTag("coverage", pano.CoverageType.String()).
		AddField("panoid", pano.ID).
		AddField("lat", pano.Lat).
		AddField("lon", pano.Lon).
		SetTime(r.now())
	r.write(p)
}

func (r *Recorder) write(p *influxdb2_write.Point) {
	if err := r.w.WritePoint(p); err != nil && r.onError != nil {
		r.onError(err)
	}
}

