package influx

import (
	"compress/gzip"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	influxdb2_write "github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lookaround-map/viewer/internal/config"
	"github.com/lookaround-map/viewer/pkg/core"
)

func unreachable() config.InfluxConfig {
	return config.InfluxConfig{
		Enabled:  true,
		Protocol: "http",
		Host:     "127.0.0.1",
		Port:     "1",
		Org:      "test",
		Bucket:   "viewer",
	}
}

func readBackup(t *testing.T, path string) string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	zr, err := gzip.NewReader(f)
	require.NoError(t, err)
	data, err := io.ReadAll(zr)
	require.NoError(t, err)
	return string(data)
}

func TestConnect_Disabled(t *testing.T) {
	m := NewManager(config.InfluxConfig{}, zerolog.Nop(), "")
	assert.Error(t, m.Connect(context.Background()))
}

func TestConnect_FallsBackToBackup(t *testing.T) {
	path := filepath.Join(t.TempDir(), "telemetry.lp.gz")
	m := NewManager(unreachable(), zerolog.Nop(), path)

	require.NoError(t, m.Connect(context.Background()))
	assert.False(t, m.IsValid)
	require.NotNil(t, m.BackupWriter)

	p := influxdb2_write.NewPointWithMeasurement("face_fetch").
		AddTag("face", "1").
		AddField("duration_ms", 12.5).
		SetTime(time.Unix(0, 42))
	require.NoError(t, m.WritePoint(p))
	require.NoError(t, m.Close())

	lines := strings.Split(strings.TrimSpace(readBackup(t, path)), "\n")
	require.Len(t, lines, 1)
	assert.Equal(t, "face_fetch,face=1 duration_ms=12.5 42", lines[0])
}

func TestConnect_NoBackupPath(t *testing.T) {
	m := NewManager(unreachable(), zerolog.Nop(), "")
	assert.Error(t, m.Connect(context.Background()))
}

func TestWritePoint_NotConnected(t *testing.T) {
	m := NewManager(unreachable(), zerolog.Nop(), "")
	assert.Error(t, m.WritePoint(influxdb2_write.NewPointWithMeasurement("x").AddField("v", 1)))
	assert.NoError(t, m.Close())
}

type pointLog struct {
	points []*influxdb2_write.Point
	err    error
}

func (l *pointLog) WritePoint(p *influxdb2_write.Point) error {
	l.points = append(l.points, p)
	return l.err
}

func TestRecorder_FaceFetched(t *testing.T) {
	log := &pointLog{}
	r := NewRecorder(log, nil)
	r.now = func() time.Time { return time.Unix(100, 0) }

	r.FaceFetched("123", 2, 5, 1500*time.Microsecond, nil)
	r.FaceFetched("123", 3, 0, time.Millisecond, errors.New("timeout"))

	require.Len(t, log.points, 2)
	lp := influxdb2_write.PointToLineProtocol(log.points[0], time.Second)
	assert.True(t, strings.HasPrefix(lp, "face_fetch,"), lp)
	assert.Contains(t, lp, "face=2")
	assert.Contains(t, lp, "quality=5")
	assert.Contains(t, lp, "ok=true")
	assert.Contains(t, lp, "duration_ms=1.5")
	assert.Contains(t, lp, `panoid="123"`)
	assert.Contains(t, influxdb2_write.PointToLineProtocol(log.points[1], time.Second), "ok=false")
}

func TestRecorder_Navigated(t *testing.T) {
	log := &pointLog{}
	NewRecorder(log, nil).Navigated(core.Panorama{ID: "a", Lat: 48, Lon: 11, CoverageType: core.CoverageCar})

	require.Len(t, log.points, 1)
	lp := influxdb2_write.PointToLineProtocol(log.points[0], time.Second)
	assert.Contains(t, lp, "navigation,coverage=car")
	assert.Contains(t, lp, "lat=48")
}

func TestRecorder_ReportsWriteErrors(t *testing.T) {
	var got error
	log := &pointLog{err: errors.New("disk full")}
	NewRecorder(log, func(err error) { got = err }).Navigated(core.Panorama{ID: "a"})
	assert.EqualError(t, got, "disk full")
}
