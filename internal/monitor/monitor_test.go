package monitor

import (
	"context"
	"encoding/json"
	"image"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lookaround-map/viewer/internal/texture"
	"github.com/lookaround-map/viewer/pkg/core"
)

type solidFetcher struct{}

func (solidFetcher) FetchFace(context.Context, core.Panorama, core.FaceIndex, core.Quality, func(float64)) (image.Image, error) {
	return image.NewRGBA(image.Rect(0, 0, 2, 2)), nil
}

type nopSink struct{}

func (nopSink) SetFaceTexture(core.FaceIndex, core.Quality, image.Image) {}

type fakeViewer struct {
	pano     core.Panorama
	streamer *texture.Streamer
}

func (f *fakeViewer) Current() core.Panorama { return f.pano }
func (f *fakeViewer) Streamer() *texture.Streamer { return f.streamer }

func loadedViewer(t *testing.T) *fakeViewer {
	t.Helper()
	s, err := texture.New(texture.DefaultConfig(), solidFetcher{}, nopSink{}, nil)
	require.NoError(t, err)

	pano := core.Panorama{ID: "p1"}
	require.NoError(t, s.InitialLoad(context.Background(), pano, nil))
	return &fakeViewer{pano: pano, streamer: s}
}

func TestGetStatus(t *testing.T) {
	svc := NewService(Dependencies{
		Viewer:     loadedViewer(t),
		Candidates: func() int { return 3 },
		Pending:    func() int { return 7 },
	})

	st := svc.GetStatus()
	assert.Equal(t, "p1", st.Panorama)
	assert.Equal(t, 3, st.Candidates)
	assert.Equal(t, 7, st.PendingWrites)
	require.Len(t, st.Faces, core.SideFaceCount)
	for i, f := range st.Faces {
		assert.Equal(t, i, f.Face)
		assert.Equal(t, "loaded", f.State)
		assert.Equal(t, int(texture.DefaultConfig().InitialQuality), f.Quality)
	}
}

func TestGetStatus_NoViewer(t *testing.T) {
	st := NewService(Dependencies{}).GetStatus()
	assert.Empty(t, st.Panorama)
	assert.Empty(t, st.Faces)
	assert.Zero(t, st.PendingWrites)
}

func TestWriteStatus(t *testing.T) {
	path := filepath.Join(t.TempDir(), "status.json")
	svc := NewService(Dependencies{Viewer: loadedViewer(t), Path: path})

	require.NoError(t, svc.WriteStatus())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var st Status
	require.NoError(t, json.Unmarshal(data, &st))
	assert.Equal(t, "p1", st.Panorama)
	assert.Len(t, st.Faces, core.SideFaceCount)
}

func TestStartStop(t *testing.T) {
	path := filepath.Join(t.TempDir(), "status.json")
	svc := NewService(Dependencies{
		Viewer:   loadedViewer(t),
		Path:     path,
		Interval: 10 * time.Millisecond,
	})

	require.NoError(t, svc.Start())
	assert.True(t, svc.IsRunning())
	require.NoError(t, svc.Start(), "second start is a no-op")

	assert.Eventually(t, func() bool {
		_, err := os.Stat(path)
		return err == nil
	}, time.Second, 10*time.Millisecond)

	svc.Stop()
	assert.False(t, svc.IsRunning())
	svc.Stop()
}

func TestStart_NoPath(t *testing.T) {
	assert.Error(t, NewService(Dependencies{}).Start())
}
