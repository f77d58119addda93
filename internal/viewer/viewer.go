// Package viewer wires mesh building, texture streaming and navigation into
// the display cycle of one panorama view.
package viewer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/lookaround-map/viewer/internal/camera"
	"github.com/lookaround-map/viewer/internal/frustum"
	"github.com/lookaround-map/viewer/internal/mesh"
	"github.com/lookaround-map/viewer/internal/navigation"
	"github.com/lookaround-map/viewer/internal/texture"
	"github.com/lookaround-map/viewer/pkg/core"
)

// ErrNoPanorama is returned by Lookup when the provider has no coverage at
// the requested location.
var ErrNoPanorama = errors.New("no panorama at location")

// Provider supplies panorama metadata and face imagery.
type Provider interface {
	texture.Fetcher
	Closest(ctx context.Context, lat, lon float64) ([]core.Panorama, error)
	Neighbors(ctx context.Context, lat, lon float64) ([]core.Panorama, error)
}

// Renderer is the rendering integration: it draws the mesh and receives
// face textures.
type Renderer interface {
	texture.Sink
	SetMesh(m *mesh.Mesh)
}

// Events receives notifications for map, info panel and marker layers.
type Events interface {
	Navigated(p core.Panorama)
	LoadProgress(v float64)
	MarkerChanged(m core.MarkerState)
}

// Config groups the settings of the viewer's components.
type Config struct {
	Viewport   core.CameraPose
	Mesh       mesh.Config
	Texture    texture.Config
	Navigation navigation.Config
}

func DefaultConfig() Config {
	return Config{
		Viewport:   core.CameraPose{FOV: 1.3, Width: 1280, Height: 720},
		Mesh:       mesh.DefaultConfig(),
		Texture:    texture.DefaultConfig(),
		Navigation: navigation.DefaultConfig(),
	}
}

// Option configures a Viewer.
type Option func(*options)

type options struct {
	logger   *slog.Logger
	observer texture.Observer
}

func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithFetchObserver forwards face fetch timings, e.g. to telemetry.
func WithFetchObserver(obs texture.Observer) Option {
	return func(o *options) {
		o.observer = obs
	}
}

// Viewer drives one panorama view.
type Viewer struct {
	provider Provider
	renderer Renderer
	events   Events
	logger   *slog.Logger

	camera   *camera.State
	frustum  *frustum.Frustum
	meshes   *mesh.Builder
	streamer *texture.Streamer
	resolver *navigation.Resolver

	mu      sync.RWMutex
	current core.Panorama
}

// New creates a Viewer with the camera at cfg.Viewport.
func New(cfg Config, provider Provider, renderer Renderer, events Events, opts ...Option) (*Viewer, error) {
	o := options{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}

	v := &Viewer{
		provider: provider,
		renderer: renderer,
		events:   events,
		logger:   o.logger,
		camera:   camera.NewState(cfg.Viewport),
	}
	v.frustum = frustum.New(v.camera)
	v.meshes = mesh.NewBuilder(cfg.Mesh, o.logger)

	texOpts := []texture.Option{texture.WithLogger(o.logger)}
	if o.observer != nil {
		texOpts = append(texOpts, texture.WithObserver(o.observer))
	}
	var err error
	v.streamer, err = texture.New(cfg.Texture, provider, renderer, v.frustum, texOpts...)
	if err != nil {
		return nil, fmt.Errorf("creating texture streamer: %w", err)
	}

	v.resolver, err = navigation.New(cfg.Navigation, v.camera, v.frustum, v,
		navigation.WithLogger(o.logger),
		navigation.WithMarkerListener(events.MarkerChanged))
	if err != nil {
		return nil, fmt.Errorf("creating navigation resolver: %w", err)
	}

	v.frustum.Update(nil)
	return v, nil
}

// Current returns the displayed panorama, or the zero value.
func (v *Viewer) Current() core.Panorama {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.current
}

// Pose returns the camera pose last reported by the host.
func (v *Viewer) Pose() core.CameraPose {
	return v.camera.Pose()
}

// Mesh returns the mesh currently drawn.
func (v *Viewer) Mesh() *mesh.Mesh {
	return v.meshes.Current()
}

// Streamer exposes face slot state.
func (v *Viewer) Streamer() *texture.Streamer {
	return v.streamer
}

// Resolver exposes the candidate set and marker.
func (v *Viewer) Resolver() *navigation.Resolver {
	return v.resolver
}

// LogAttrs returns attributes describing the view for log records.
func (v *Viewer) LogAttrs() []slog.Attr {
	p := v.Current()
	if p.IsZero() {
		return nil
	}
	return []slog.Attr{slog.String("panorama", p.ID)}
}

// Lookup returns the first panorama the provider has near a location.
func (v *Viewer) Lookup(ctx context.Context, lat, lon float64) (core.Panorama, error) {
	panos, err := v.provider.Closest(ctx, lat, lon)
	if err != nil {
		return core.Panorama{}, fmt.Errorf("looking up %f,%f: %w", lat, lon, err)
	}
	if len(panos) == 0 {
		return core.Panorama{}, ErrNoPanorama
	}
	return panos[0], nil
}

// Display shows pano: the four faces are loaded, the mesh is replaced if its
// capture geometry differs, and the neighbors around pano become the
// navigation candidates. A failed face load fails Display and the previous
// panorama stays current with its mesh and textures. Display returns
// navigation.ErrNavigating while another navigation is in flight.
func (v *Viewer) Display(ctx context.Context, pano core.Panorama) error {
	return v.resolver.Exclusive(func() error {
		return v.display(ctx, pano)
	})
}

func (v *Viewer) display(ctx context.Context, pano core.Panorama) error {
	m, rebuilt := v.meshes.Prepare(pano)
	commit := func() {
		v.meshes.Use(m)
		if rebuilt {
			v.renderer.SetMesh(m)
		}
	}

	err := v.streamer.InitialLoad(ctx, pano, v.events.LoadProgress,
		texture.WithGeometry(m), texture.OnCommit(commit))
	if err != nil {
		return fmt.Errorf("displaying %s: %w", pano.ID, err)
	}

	neighbors, err := v.provider.Neighbors(ctx, pano.Lat, pano.Lon)
	if err != nil {
		v.logger.Warn("neighbor query failed", "panorama", pano.ID, "error", err)
		neighbors = nil
	}
	v.resolver.UpdateCandidates(pano, neighbors)

	v.mu.Lock()
	v.current = pano
	v.mu.Unlock()

	v.streamer.OnFrustumOrZoomChange(ctx, v.camera.Pose().FOV)

	v.logger.Info("panorama displayed", "panorama", pano.ID, "date", pano.Date, "coverage", pano.CoverageType)
	v.events.Navigated(pano)
	return nil
}

// DisplayAt looks up the panorama closest to a location and displays it.
func (v *Viewer) DisplayAt(ctx context.Context, lat, lon float64) (core.Panorama, error) {
	pano, err := v.Lookup(ctx, lat, lon)
	if err != nil {
		return core.Panorama{}, err
	}
	return pano, v.Display(ctx, pano)
}

// Navigate implements navigation.Navigator. The resolver holds the
// navigation gate while it runs.
func (v *Viewer) Navigate(ctx context.Context, to core.Panorama) error {
	return v.display(ctx, to)
}

// OnPoseChanged takes a new camera pose from the host, requests upgrades for
// faces now in view and re-resolves the marker under the pointer.
func (v *Viewer) OnPoseChanged(ctx context.Context, pose core.CameraPose) {
	v.camera.Set(pose)
	v.frustum.Update(nil)
	v.streamer.OnFrustumOrZoomChange(ctx, pose.FOV)
	v.resolver.Refresh()
}

// OnRotatePending handles a rotation announced before the pose is committed.
func (v *Viewer) OnRotatePending(ctx context.Context, yaw float64) {
	v.frustum.Update(&yaw)
	v.streamer.OnFrustumOrZoomChange(ctx, v.camera.Pose().FOV)
}

// OnPointerMove forwards a pointer sample; false means it was rate dropped.
func (v *Viewer) OnPointerMove(pt core.ScreenPoint) bool {
	return v.resolver.OnPointerMove(pt)
}

// OnActivate navigates to the marked or tapped neighbor.
func (v *Viewer) OnActivate(ctx context.Context, tap *core.ScreenPoint) (bool, error) {
	return v.resolver.OnActivate(ctx, tap)
}

// Close waits for in-flight upgrades.
func (v *Viewer) Close() {
	v.streamer.Wait()
}
