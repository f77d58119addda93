// Package navigation positions neighboring panoramas around the current one
// and resolves pointer input to a navigation target.
package navigation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/golang/geo/r3"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/time/rate"

	"github.com/lookaround-map/viewer/internal/camera"
	"github.com/lookaround-map/viewer/internal/geo"
	"github.com/lookaround-map/viewer/internal/mesh"
	"github.com/lookaround-map/viewer/pkg/core"
)

// ErrNavigating is returned by Exclusive while another navigation is in
// flight.
var ErrNavigating = errors.New("navigation in flight")

// Projector converts viewport pixels into camera-relative directions.
type Projector interface {
	ScreenToSpherical(pt core.ScreenPoint) (core.Spherical, error)
}

// Visibility is the camera's visible volume.
type Visibility interface {
	ContainsPoint(p r3.Vector) bool
}

// Navigator performs the transition to another panorama. It returns once the
// destination is displayed.
type Navigator interface {
	Navigate(ctx context.Context, to core.Panorama) error
}

// MarkerListener receives every marker update.
type MarkerListener func(core.MarkerState)

type Config struct {
	// MaxDistance is the navigable range in ENU units.
	MaxDistance float64
	// ElevationScale divides the provider's raw elevation difference. The
	// value is empirical.
	ElevationScale float64
	CameraHeight   float64
	NearScale      float64
	FarScale       float64
	// PointerRate is the maximum number of pointer samples processed per
	// second.
	PointerRate float64
	// ApplyFace0Offset adds the center of face 0 to the heading offset.
	ApplyFace0Offset bool
}

func DefaultConfig() Config {
	return Config{
		MaxDistance:    100,
		ElevationScale: 80,
		CameraHeight:   2,
		NearScale:      1,
		FarScale:       0.3,
		PointerRate:    60,
	}
}

// Option configures a Resolver.
type Option func(*Resolver)

func WithLogger(l *slog.Logger) Option {
	return func(r *Resolver) {
		r.logger = l
	}
}

// WithClock replaces time.Now for the pointer rate gate.
func WithClock(now func() time.Time) Option {
	return func(r *Resolver) {
		r.now = now
	}
}

func WithMarkerListener(fn MarkerListener) Option {
	return func(r *Resolver) {
		r.onMarker = fn
	}
}

// Resolver owns the candidate set and the marker.
type Resolver struct {
	cfg       Config
	projector Projector
	vis       Visibility
	navigator Navigator
	logger    *slog.Logger
	now       func() time.Time
	onMarker  MarkerListener
	metrics   *metrics

	limiter    *rate.Limiter
	navigating atomic.Bool

	mu           sync.Mutex
	ref          core.Panorama
	candidates   []core.NeighborCandidate
	marker       core.MarkerState
	pointer      core.ScreenPoint
	hasPointer   bool
	pointerMoved bool
}

// New creates a Resolver. Zero config fields take their defaults.
func New(cfg Config, projector Projector, vis Visibility, navigator Navigator, opts ...Option) (*Resolver, error) {
	def := DefaultConfig()
	if cfg.MaxDistance <= 0 {
		cfg.MaxDistance = def.MaxDistance
	}
	if cfg.ElevationScale == 0 {
		cfg.ElevationScale = def.ElevationScale
	}
	if cfg.PointerRate <= 0 {
		cfg.PointerRate = def.PointerRate
	}
	if cfg.NearScale == 0 && cfg.FarScale == 0 {
		cfg.NearScale, cfg.FarScale = def.NearScale, def.FarScale
	}

	m, err := newMetrics()
	if err != nil {
		return nil, err
	}

	r := &Resolver{
		cfg:       cfg,
		projector: projector,
		vis:       vis,
		navigator: navigator,
		logger:    slog.Default(),
		now:       time.Now,
		metrics:   m,
		limiter:   rate.NewLimiter(rate.Limit(cfg.PointerRate), 1),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// UpdateCandidates replaces the candidate set with the neighbors of ref that
// lie within range. Neighbors at ref's exact coordinates are skipped. A marker
// bound to the old set is re-resolved at the last pointer position, or
// cleared while a navigation is in flight.
func (r *Resolver) UpdateCandidates(ref core.Panorama, neighbors []core.Panorama) []core.NeighborCandidate {
	offset := ref.Heading
	if r.cfg.ApplyFace0Offset {
		offset += mesh.SideFaces[0].CenterYaw()
	}

	candidates := make([]core.NeighborCandidate, 0, len(neighbors))
	for _, n := range neighbors {
		if n.SameLocation(ref) {
			continue
		}
		elevDelta := (n.RawElevation - ref.RawElevation) / r.cfg.ElevationScale
		enu := geo.GeodeticToENU(n.Lon, n.Lat, elevDelta, ref.Lon, ref.Lat, r.cfg.CameraHeight)
		pos := geo.ENUToPhotoSphere(enu, offset)
		if pos.Distance > r.cfg.MaxDistance {
			continue
		}
		candidates = append(candidates, core.NeighborCandidate{
			Panorama: n,
			Position: pos,
			Scale:    r.scale(pos.Distance),
		})
	}

	r.mu.Lock()
	r.ref = ref
	r.candidates = candidates
	bound := r.marker.Bound()
	pt, hasPointer := r.pointer, r.hasPointer
	r.mu.Unlock()

	r.metrics.candidates.Record(context.Background(), int64(len(candidates)))
	r.logger.Debug("candidates updated", "panorama", ref.ID, "neighbors", len(neighbors), "candidates", len(candidates))

	if bound {
		if hasPointer && !r.navigating.Load() {
			r.resolveMarker(pt)
		} else {
			r.setMarker(core.MarkerState{})
		}
	}
	return slices.Clone(candidates)
}

// scale shrinks linearly from NearScale at distance 0 to FarScale at
// MaxDistance.
func (r *Resolver) scale(distance float64) float64 {
	t := math.Min(distance/r.cfg.MaxDistance, 1)
	return r.cfg.NearScale + (r.cfg.FarScale-r.cfg.NearScale)*t
}

// Candidates returns a copy of the current candidate set.
func (r *Resolver) Candidates() []core.NeighborCandidate {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.candidates)
}

// Marker returns the current marker state.
func (r *Resolver) Marker() core.MarkerState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.marker
}

// Navigating reports whether a navigation is in flight.
func (r *Resolver) Navigating() bool {
	return r.navigating.Load()
}

// Exclusive runs fn as a navigation that did not start from pointer input,
// such as a display requested by the host. Activations are ignored until fn
// returns.
func (r *Resolver) Exclusive(fn func() error) error {
	if !r.navigating.CompareAndSwap(false, true) {
		r.metrics.ignored.Add(context.Background(), 1)
		return ErrNavigating
	}
	defer r.navigating.Store(false)
	return fn()
}

// OnPointerMove processes a pointer sample. Samples arriving faster than
// PointerRate are dropped and reported as false; the marker is unchanged.
func (r *Resolver) OnPointerMove(pt core.ScreenPoint) bool {
	r.mu.Lock()
	r.pointer = pt
	r.hasPointer = true
	r.pointerMoved = true
	r.mu.Unlock()

	if !r.limiter.AllowN(r.now(), 1) {
		r.metrics.pointerDropped.Add(context.Background(), 1)
		return false
	}

	if r.navigating.Load() {
		r.setMarker(core.MarkerState{})
		return true
	}
	r.resolveMarker(pt)
	return true
}

// Refresh re-resolves the marker at the last pointer position, for example
// after the camera moved under a still pointer. It bypasses the rate gate.
func (r *Resolver) Refresh() {
	r.mu.Lock()
	pt, ok := r.pointer, r.hasPointer
	r.mu.Unlock()

	if !ok || r.navigating.Load() {
		return
	}
	r.resolveMarker(pt)
}

func (r *Resolver) resolveMarker(pt core.ScreenPoint) {
	c, ok := r.nearest(pt)
	if !ok {
		r.setMarker(core.MarkerState{})
		return
	}
	r.setMarker(core.MarkerState{Position: c.Position, Visible: true, Candidate: &c})
}

// nearest returns the on-screen candidate with the smallest angular distance
// to the direction under pt.
func (r *Resolver) nearest(pt core.ScreenPoint) (core.NeighborCandidate, bool) {
	target, err := r.projector.ScreenToSpherical(pt)
	if err != nil {
		r.logger.Debug("pointer outside viewport", "error", err)
		return core.NeighborCandidate{}, false
	}

	r.mu.Lock()
	candidates := r.candidates
	r.mu.Unlock()

	var (
		best  core.NeighborCandidate
		found bool
		bestD = math.Inf(1)
	)
	for _, c := range candidates {
		if !r.vis.ContainsPoint(camera.Direction(c.Position.Yaw, c.Position.Pitch)) {
			continue
		}
		d := geo.DistanceBetween(target.Pitch, target.Yaw, c.Position.Pitch, c.Position.Yaw, 1)
		if d < bestD {
			best, bestD, found = c, d, true
		}
	}
	return best, found
}

func (r *Resolver) setMarker(m core.MarkerState) {
	r.mu.Lock()
	r.marker = m
	r.mu.Unlock()

	if r.onMarker != nil {
		r.onMarker(m)
	}
}

// OnActivate navigates to the marker's candidate, or, with no bound marker,
// to the on-screen candidate nearest tap. It returns false without error when
// there is nothing to navigate to or a navigation is already in flight.
// Input is disabled until the navigator returns.
func (r *Resolver) OnActivate(ctx context.Context, tap *core.ScreenPoint) (bool, error) {
	if !r.navigating.CompareAndSwap(false, true) {
		r.metrics.ignored.Add(ctx, 1)
		r.logger.Debug("activation ignored, navigation in flight")
		return false, nil
	}

	r.mu.Lock()
	marker := r.marker
	r.mu.Unlock()

	var (
		target core.NeighborCandidate
		ok     bool
	)
	if marker.Bound() {
		target, ok = *marker.Candidate, true
	} else if tap != nil {
		target, ok = r.nearest(*tap)
	}
	if !ok {
		r.navigating.Store(false)
		return false, nil
	}

	r.mu.Lock()
	r.pointerMoved = false
	from := r.ref.ID
	r.mu.Unlock()
	r.setMarker(core.MarkerState{})

	r.logger.Info("navigating", "from", from, "to", target.Panorama.ID, "distance", target.Position.Distance)
	start := time.Now()
	err := r.navigator.Navigate(ctx, target.Panorama)
	r.navigating.Store(false)

	if err != nil {
		return false, fmt.Errorf("navigating to %s: %w", target.Panorama.ID, err)
	}
	r.metrics.navigations.Add(ctx, 1)
	r.metrics.duration.Record(ctx, time.Since(start).Seconds(),
		metric.WithAttributes(attribute.String("coverage", target.Panorama.CoverageType.String())))

	r.mu.Lock()
	pt, stillPointer := r.pointer, r.hasPointer && !r.pointerMoved
	r.mu.Unlock()
	if stillPointer {
		r.resolveMarker(pt)
	}
	return true, nil
}
