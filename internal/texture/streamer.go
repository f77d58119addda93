// Package texture owns the per-face texture slots of the displayed panorama
// and streams higher quality imagery for the faces in view.
package texture

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/golang/geo/r3"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/errgroup"

	"github.com/lookaround-map/viewer/internal/camera"
	"github.com/lookaround-map/viewer/internal/frustum"
	"github.com/lookaround-map/viewer/pkg/core"
)

// ErrSuperseded is returned by InitialLoad when another panorama was
// displayed before this one finished loading.
var ErrSuperseded = errors.New("initial load superseded")

// Fetcher retrieves one face image at a quality level.
type Fetcher interface {
	FetchFace(ctx context.Context, pano core.Panorama, face core.FaceIndex, quality core.Quality, progress func(float64)) (image.Image, error)
}

// Sink receives textures as they become displayable. It is implemented by the
// rendering integration.
type Sink interface {
	SetFaceTexture(face core.FaceIndex, quality core.Quality, img image.Image)
}

// Visibility is the camera's visible volume.
type Visibility interface {
	ContainsPoint(p r3.Vector) bool
	Bounds() frustum.AngularBounds
}

// Geometry exposes the face vertices of the current mesh.
type Geometry interface {
	FaceVertices(face core.FaceIndex) []r3.Vector
	FaceAt(dir r3.Vector) (core.FaceIndex, bool)
}

// Observer is notified of every completed face fetch.
type Observer interface {
	FaceFetched(panoID string, face core.FaceIndex, quality core.Quality, elapsed time.Duration, err error)
}

// Config controls quality selection.
type Config struct {
	InitialQuality core.Quality
	ZoomedQuality  core.Quality
	WideQuality    core.Quality
	// ZoomThreshold is the vertical FOV in radians below which ZoomedQuality
	// is requested.
	ZoomThreshold float64
	// SampleStride is the step between vertices tested against the frustum.
	SampleStride int
}

func DefaultConfig() Config {
	return Config{
		InitialQuality: 5,
		ZoomedQuality:  0,
		WideQuality:    2,
		ZoomThreshold:  55 * math.Pi / 180,
		SampleStride:   4,
	}
}

// Option configures a Streamer.
type Option func(*Streamer)

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Streamer) {
		s.logger = l
	}
}

// WithObserver registers a fetch observer.
func WithObserver(o Observer) Option {
	return func(s *Streamer) {
		s.observer = o
	}
}

// Streamer drives the slot state machine
//
//	empty -> loading -> loaded <-> upgrading
//
// for the four side faces. Slot 4 and 5 stay empty.
type Streamer struct {
	cfg      Config
	fetcher  Fetcher
	sink     Sink
	vis      Visibility
	logger   *slog.Logger
	observer Observer
	metrics  *metrics

	// deliverMu orders slot commits with sink deliveries, so a texture only
	// reaches the sink while its source is still current. Taken before mu.
	deliverMu sync.Mutex

	mu         sync.Mutex
	slots      [core.FaceSlotCount]Slot
	pano       core.Panorama
	geometry   Geometry
	generation uint64

	wg sync.WaitGroup
}

// New creates a Streamer. Zero config fields take their defaults.
func New(cfg Config, fetcher Fetcher, sink Sink, vis Visibility, opts ...Option) (*Streamer, error) {
	def := DefaultConfig()
	if cfg.ZoomThreshold <= 0 {
		cfg.ZoomThreshold = def.ZoomThreshold
	}
	if cfg.SampleStride < 1 {
		cfg.SampleStride = def.SampleStride
	}

	m, err := newMetrics()
	if err != nil {
		return nil, err
	}

	s := &Streamer{
		cfg:     cfg,
		fetcher: fetcher,
		sink:    sink,
		vis:     vis,
		logger:  slog.Default(),
		metrics: m,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// SetGeometry replaces the mesh used for visibility sampling.
func (s *Streamer) SetGeometry(g Geometry) {
	s.mu.Lock()
	s.geometry = g
	s.mu.Unlock()
}

// Slot returns a copy of one face slot.
func (s *Streamer) Slot(face core.FaceIndex) Slot {
	s.mu.Lock()
	defer s.mu.Unlock()
	if face < 0 || int(face) >= len(s.slots) {
		return Slot{}
	}
	return s.slots[face]
}

// Panorama returns the panorama the slots currently belong to.
func (s *Streamer) Panorama() core.Panorama {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pano
}

// Wait blocks until all upgrade fetches issued so far have completed.
func (s *Streamer) Wait() {
	s.wg.Wait()
}

// LoadOption configures one InitialLoad.
type LoadOption func(*loadOptions)

type loadOptions struct {
	geometry Geometry
	onCommit func()
}

// WithGeometry replaces the visibility geometry when the load commits.
func WithGeometry(g Geometry) LoadOption {
	return func(o *loadOptions) {
		o.geometry = g
	}
}

// OnCommit runs fn after the slots switch to the new panorama and before its
// textures reach the sink. It is not called for failed or superseded loads.
func OnCommit(fn func()) LoadOption {
	return func(o *loadOptions) {
		o.onCommit = fn
	}
}

// InitialLoad fetches the four side faces of pano concurrently at the initial
// quality into staged slots. Progress is the mean of the per-face progress and
// never decreases. Any failed face fails the whole load. The current slots are
// replaced only when every face loaded and no later InitialLoad started;
// otherwise they keep serving the previous panorama.
func (s *Streamer) InitialLoad(ctx context.Context, pano core.Panorama, onProgress func(float64), opts ...LoadOption) error {
	var lo loadOptions
	for _, opt := range opts {
		opt(&lo)
	}

	s.mu.Lock()
	s.generation++
	generation := s.generation
	s.mu.Unlock()

	source := sourceID(pano.ID, generation)
	var staged [core.FaceSlotCount]Slot
	for i := range staged {
		staged[i] = Slot{Source: source, State: StateEmpty}
		if core.FaceIndex(i).IsSide() {
			staged[i].State = StateLoading
			staged[i].Quality = s.cfg.InitialQuality
		}
	}

	s.logger.Debug("initial load", "panorama", pano.ID, "source", source, "quality", s.cfg.InitialQuality)

	prog := newProgress(core.SideFaceCount, onProgress)
	g, gctx := errgroup.WithContext(ctx)
	for i := range core.SideFaceCount {
		face := core.FaceIndex(i)
		g.Go(func() error {
			img, err := s.fetch(gctx, pano, face, s.cfg.InitialQuality, func(v float64) {
				prog.set(i, v)
			})
			if err != nil {
				return fmt.Errorf("face %d: %w", face, err)
			}
			prog.set(i, 1)
			staged[i].Image = img
			staged[i].State = StateLoaded
			return nil
		})
	}
	err := g.Wait()

	s.deliverMu.Lock()
	defer s.deliverMu.Unlock()

	s.mu.Lock()
	if s.generation != generation {
		s.mu.Unlock()
		return ErrSuperseded
	}
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("loading panorama %s: %w", pano.ID, err)
	}
	s.slots = staged
	s.pano = pano
	if lo.geometry != nil {
		s.geometry = lo.geometry
	}
	s.mu.Unlock()

	if lo.onCommit != nil {
		lo.onCommit()
	}
	for i := range core.SideFaceCount {
		s.sink.SetFaceTexture(core.FaceIndex(i), s.cfg.InitialQuality, staged[i].Image)
	}
	return nil
}

// TargetQuality is the quality level wanted for a vertical field of view.
func (s *Streamer) TargetQuality(fov float64) core.Quality {
	if fov < s.cfg.ZoomThreshold {
		return s.cfg.ZoomedQuality
	}
	return s.cfg.WideQuality
}

// VisibleFaces returns the side faces with at least one sampled vertex
// inside the frustum. The face under the view direction is always included
// so that a deep zoom between two sampled vertices still counts.
func (s *Streamer) VisibleFaces() []core.FaceIndex {
	s.mu.Lock()
	g := s.geometry
	s.mu.Unlock()
	if g == nil {
		return nil
	}

	var center core.FaceIndex = -1
	b := s.vis.Bounds()
	if f, ok := g.FaceAt(camera.Direction(b.Yaw, b.Pitch)); ok {
		center = f
	}

	var visible []core.FaceIndex
	for i := range core.SideFaceCount {
		face := core.FaceIndex(i)
		if face == center || s.anyVisible(g.FaceVertices(face)) {
			visible = append(visible, face)
		}
	}
	return visible
}

func (s *Streamer) anyVisible(vertices []r3.Vector) bool {
	for i := 0; i < len(vertices); i += s.cfg.SampleStride {
		if s.vis.ContainsPoint(vertices[i]) {
			return true
		}
	}
	return false
}

// OnFrustumOrZoomChange requests upgrades for visible faces that are coarser
// than the quality wanted at fov. It returns the number of upgrades started.
// The frustum must already reflect the new pose.
func (s *Streamer) OnFrustumOrZoomChange(ctx context.Context, fov float64) int {
	target := s.TargetQuality(fov)
	started := 0
	for _, face := range s.VisibleFaces() {
		if s.RequestUpgrade(ctx, face, target) {
			started++
		}
	}
	return started
}

// RequestUpgrade starts an asynchronous fetch of face at quality. It is a
// no-op, returning false, unless the slot is loaded and coarser than
// quality. Upgrades outlive ctx's cancellation; results for a panorama that
// is no longer displayed are discarded.
func (s *Streamer) RequestUpgrade(ctx context.Context, face core.FaceIndex, quality core.Quality) bool {
	if !face.IsSide() {
		return false
	}

	s.mu.Lock()
	slot := &s.slots[face]
	if slot.State != StateLoaded || slot.Quality <= quality {
		s.mu.Unlock()
		return false
	}
	slot.State = StateUpgrading
	source := slot.Source
	pano := s.pano
	s.wg.Add(1)
	s.mu.Unlock()

	attrs := metric.WithAttributes(attribute.Int("face", int(face)), attribute.Int("quality", int(quality)))
	s.metrics.started.Add(ctx, 1, attrs)

	ctx = context.WithoutCancel(ctx)
	go func() {
		defer s.wg.Done()
		img, err := s.fetch(ctx, pano, face, quality, nil)
		s.finishUpgrade(ctx, face, quality, source, img, err, attrs)
	}()
	return true
}

func (s *Streamer) finishUpgrade(ctx context.Context, face core.FaceIndex, quality core.Quality, source string, img image.Image, err error, attrs metric.MeasurementOption) {
	s.deliverMu.Lock()
	defer s.deliverMu.Unlock()

	s.mu.Lock()
	slot := &s.slots[face]

	if slot.Source != source {
		s.mu.Unlock()
		s.metrics.stale.Add(ctx, 1, attrs)
		s.logger.Debug("discarding stale upgrade", "face", face, "source", source)
		return
	}

	slot.State = StateLoaded
	if err != nil {
		s.mu.Unlock()
		s.metrics.failed.Add(ctx, 1, attrs)
		s.logger.Warn("face upgrade failed", "face", face, "quality", quality, "error", err)
		return
	}
	if quality >= slot.Quality {
		s.mu.Unlock()
		return
	}
	slot.Quality = quality
	slot.Image = img
	s.mu.Unlock()

	s.metrics.applied.Add(ctx, 1, attrs)
	s.sink.SetFaceTexture(face, quality, img)
}

func (s *Streamer) fetch(ctx context.Context, pano core.Panorama, face core.FaceIndex, quality core.Quality, progress func(float64)) (image.Image, error) {
	start := time.Now()
	img, err := s.fetcher.FetchFace(ctx, pano, face, quality, progress)
	elapsed := time.Since(start)

	s.metrics.duration.Record(ctx, elapsed.Seconds(),
		metric.WithAttributes(attribute.Int("quality", int(quality)), attribute.Bool("error", err != nil)))
	if s.observer != nil {
		s.observer.FaceFetched(pano.ID, face, quality, elapsed, err)
	}
	return img, err
}

func sourceID(panoID string, generation uint64) string {
	return fmt.Sprintf("%s@%d", panoID, generation)
}
