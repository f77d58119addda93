package viewer

import (
	"context"
	"errors"
	"image"
	"image/color"
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lookaround-map/viewer/internal/mesh"
	"github.com/lookaround-map/viewer/internal/navigation"
	"github.com/lookaround-map/viewer/pkg/core"
)

type fakeProvider struct {
	panos   []core.Panorama
	failing map[string]bool

	mu      sync.Mutex
	fetches int
}

func (p *fakeProvider) FetchFace(_ context.Context, pano core.Panorama, _ core.FaceIndex, q core.Quality, progress func(float64)) (image.Image, error) {
	p.mu.Lock()
	p.fetches++
	p.mu.Unlock()
	if p.failing[pano.ID] {
		return nil, errors.New("face unavailable")
	}
	if progress != nil {
		progress(0.5)
	}
	return image.NewUniform(color.Gray{Y: uint8(q)}), nil
}

func (p *fakeProvider) Closest(_ context.Context, lat, lon float64) ([]core.Panorama, error) {
	var out []core.Panorama
	for _, pano := range p.panos {
		if pano.Lat == lat && pano.Lon == lon {
			out = append(out, pano)
		}
	}
	return out, nil
}

func (p *fakeProvider) Neighbors(context.Context, float64, float64) ([]core.Panorama, error) {
	return p.panos, nil
}

type fakeRenderer struct {
	mu       sync.Mutex
	meshes   []*mesh.Mesh
	textures map[core.FaceIndex]core.Quality
}

func (r *fakeRenderer) SetMesh(m *mesh.Mesh) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.meshes = append(r.meshes, m)
}

func (r *fakeRenderer) SetFaceTexture(face core.FaceIndex, q core.Quality, _ image.Image) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.textures == nil {
		r.textures = make(map[core.FaceIndex]core.Quality)
	}
	r.textures[face] = q
}

func (r *fakeRenderer) Quality(face core.FaceIndex) core.Quality {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.textures[face]
}

type recorder struct {
	mu        sync.Mutex
	navigated []string
	progress  []float64
	markers   []core.MarkerState
}

func (r *recorder) Navigated(p core.Panorama) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.navigated = append(r.navigated, p.ID)
}

func (r *recorder) LoadProgress(v float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.progress = append(r.progress, v)
}

func (r *recorder) MarkerChanged(m core.MarkerState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.markers = append(r.markers, m)
}

func extents(v float64) core.Projection {
	return core.Projection{FaceExtents: [4]float64{v, v, v, v}}
}

var (
	home  = core.Panorama{ID: "home", Lat: 48.0, Lon: 11.0, RawElevation: 1000, Projection: extents(1.8)}
	north = core.Panorama{ID: "north", Lat: 48.0001, Lon: 11.0, RawElevation: 1000, Projection: extents(1.8)}
	hike  = core.Panorama{ID: "hike", Lat: 48.0, Lon: 11.0001, RawElevation: 1000, Projection: extents(1.6), CoverageType: core.CoverageTrekker}
	far   = core.Panorama{ID: "far", Lat: 48.01, Lon: 11.0, RawElevation: 1000, Projection: extents(1.8)}
)

func newTestViewer(t *testing.T, p *fakeProvider) (*Viewer, *fakeRenderer, *recorder) {
	t.Helper()
	r := &fakeRenderer{}
	ev := &recorder{}
	v, err := New(DefaultConfig(), p, r, ev)
	require.NoError(t, err)
	t.Cleanup(v.Close)
	return v, r, ev
}

func TestDisplay(t *testing.T) {
	p := &fakeProvider{panos: []core.Panorama{home, north, far}}
	v, r, ev := newTestViewer(t, p)

	require.NoError(t, v.Display(context.Background(), home))
	v.Close()

	assert.Equal(t, "home", v.Current().ID)
	assert.Len(t, r.meshes, 1)
	assert.Equal(t, []string{"home"}, ev.navigated)
	require.NotEmpty(t, ev.progress)
	assert.InDelta(t, 1.0, ev.progress[len(ev.progress)-1], 1e-12)

	candidates := v.Resolver().Candidates()
	require.Len(t, candidates, 1)
	assert.Equal(t, "north", candidates[0].Panorama.ID)

	// Looking north at the default field of view shows faces 1 and 2.
	assert.Equal(t, core.Quality(2), r.Quality(1))
	assert.Equal(t, core.Quality(2), r.Quality(2))
	assert.Equal(t, core.Quality(5), r.Quality(0))
	assert.Equal(t, core.Quality(5), r.Quality(3))
}

func TestDisplay_MeshReuse(t *testing.T) {
	p := &fakeProvider{panos: []core.Panorama{home, north, hike}}
	v, r, _ := newTestViewer(t, p)

	require.NoError(t, v.Display(context.Background(), home))
	first := v.Mesh()
	require.NoError(t, v.Display(context.Background(), north))
	assert.Same(t, first, v.Mesh())
	assert.Len(t, r.meshes, 1)

	require.NoError(t, v.Display(context.Background(), hike))
	assert.NotSame(t, first, v.Mesh())
	assert.Len(t, r.meshes, 2)
}

func TestDisplay_FaceFailure(t *testing.T) {
	failing := hike
	failing.ID = "broken"
	p := &fakeProvider{panos: []core.Panorama{home, north}, failing: map[string]bool{"broken": true}}
	v, r, ev := newTestViewer(t, p)
	require.NoError(t, v.Display(context.Background(), home))
	v.Close()
	homeMesh := v.Mesh()

	err := v.Display(context.Background(), failing)

	require.Error(t, err)
	assert.Equal(t, "home", v.Current().ID)
	assert.Equal(t, []string{"home"}, ev.navigated)
	assert.Equal(t, "home", v.Streamer().Panorama().ID)
	assert.Same(t, homeMesh, v.Mesh())
	assert.Len(t, r.meshes, 1, "the renderer keeps the home mesh")

	pose := v.Pose()
	pose.Yaw = math.Pi / 6
	pose.FOV = 0.5
	v.OnPoseChanged(context.Background(), pose)
	v.Close()
	assert.Equal(t, core.Quality(0), r.Quality(1), "home still upgrades")
}

func TestDisplay_ClearsMarkerOfPreviousSet(t *testing.T) {
	p := &fakeProvider{panos: []core.Panorama{home, north}}
	v, _, ev := newTestViewer(t, p)
	require.NoError(t, v.Display(context.Background(), home))

	pose := v.Pose()
	require.True(t, v.OnPointerMove(core.ScreenPoint{X: pose.Width / 2, Y: pose.Height / 2}))
	require.True(t, v.Resolver().Marker().Bound())
	require.Equal(t, "north", v.Resolver().Marker().Candidate.Panorama.ID)

	p.panos = []core.Panorama{north}
	require.NoError(t, v.Display(context.Background(), north))

	assert.Empty(t, v.Resolver().Candidates())
	assert.False(t, v.Resolver().Marker().Bound())
	ev.mu.Lock()
	last := ev.markers[len(ev.markers)-1]
	ev.mu.Unlock()
	assert.False(t, last.Visible)
}

func TestDisplay_RejectedDuringNavigation(t *testing.T) {
	p := &fakeProvider{panos: []core.Panorama{home, north, hike}}
	v, _, ev := newTestViewer(t, p)
	require.NoError(t, v.Display(context.Background(), home))

	err := v.Resolver().Exclusive(func() error {
		assert.ErrorIs(t, v.Display(context.Background(), hike), navigation.ErrNavigating)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, "home", v.Current().ID)
	assert.Equal(t, []string{"home"}, ev.navigated)
}

func TestLookup(t *testing.T) {
	p := &fakeProvider{panos: []core.Panorama{home, north}}
	v, _, _ := newTestViewer(t, p)

	got, err := v.Lookup(context.Background(), 48.0001, 11.0)
	require.NoError(t, err)
	assert.Equal(t, "north", got.ID)

	_, err = v.Lookup(context.Background(), 1, 1)
	assert.ErrorIs(t, err, ErrNoPanorama)

	got, err = v.DisplayAt(context.Background(), 48.0, 11.0)
	require.NoError(t, err)
	assert.Equal(t, "home", got.ID)
	assert.Equal(t, "home", v.Current().ID)
}

func TestOnActivate_NavigatesToTappedNeighbor(t *testing.T) {
	p := &fakeProvider{panos: []core.Panorama{home, north}}
	v, _, ev := newTestViewer(t, p)
	require.NoError(t, v.Display(context.Background(), home))

	pose := v.Pose()
	center := core.ScreenPoint{X: pose.Width / 2, Y: pose.Height / 2}
	ok, err := v.OnActivate(context.Background(), &center)

	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "north", v.Current().ID)
	assert.Equal(t, []string{"home", "north"}, ev.navigated)
}

func TestOnPoseChanged_ZoomUpgrades(t *testing.T) {
	p := &fakeProvider{panos: []core.Panorama{home}}
	v, r, _ := newTestViewer(t, p)
	require.NoError(t, v.Display(context.Background(), home))
	v.Close()

	pose := v.Pose()
	pose.Yaw = math.Pi / 6
	pose.FOV = 0.5
	v.OnPoseChanged(context.Background(), pose)
	v.Close()

	// A narrow view at the center of face 1 sees nothing else.
	assert.Equal(t, core.Quality(0), r.Quality(1))
	assert.Equal(t, core.Quality(2), r.Quality(2))
	assert.Equal(t, core.Quality(5), r.Quality(0))
}

func TestOnRotatePending_UsesPendingYaw(t *testing.T) {
	p := &fakeProvider{panos: []core.Panorama{home}}
	v, r, _ := newTestViewer(t, p)
	require.NoError(t, v.Display(context.Background(), home))
	v.Close()
	require.Equal(t, core.Quality(5), r.Quality(3))

	v.OnRotatePending(context.Background(), 3.66) // about 210°, the center of face 3
	v.Close()

	assert.Equal(t, core.Quality(2), r.Quality(3))
	assert.Zero(t, v.Pose().Yaw, "pending rotation does not commit the pose")
}

func TestLogAttrs(t *testing.T) {
	p := &fakeProvider{panos: []core.Panorama{home}}
	v, _, _ := newTestViewer(t, p)
	assert.Empty(t, v.LogAttrs())

	require.NoError(t, v.Display(context.Background(), home))
	attrs := v.LogAttrs()
	require.Len(t, attrs, 1)
	assert.Equal(t, "home", attrs[0].Value.String())
}
