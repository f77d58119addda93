package mesh

import (
	"log/slog"
	"math"
	"sync"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"

	"github.com/lookaround-map/viewer/pkg/core"
)

// Config controls mesh resolution.
type Config struct {
	Radius            float64
	HeightSegments    int
	DegreesPerSegment float64
}

// DefaultConfig gives 24 columns on a wide face, 12 on a narrow one.
func DefaultConfig() Config {
	return Config{
		Radius:            10,
		HeightSegments:    16,
		DegreesPerSegment: 5,
	}
}

// Builder owns the current panorama mesh and rebuilds it only when the
// capture geometry changes.
type Builder struct {
	cfg    Config
	logger *slog.Logger

	mu      sync.Mutex
	current *Mesh
}

// NewBuilder creates a Builder. A nil logger uses slog.Default().
func NewBuilder(cfg Config, logger *slog.Logger) *Builder {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Radius <= 0 {
		cfg.Radius = DefaultConfig().Radius
	}
	if cfg.HeightSegments < 1 {
		cfg.HeightSegments = DefaultConfig().HeightSegments
	}
	if cfg.DegreesPerSegment <= 0 {
		cfg.DegreesPerSegment = DefaultConfig().DegreesPerSegment
	}
	return &Builder{cfg: cfg, logger: logger}
}

// Current returns the last built mesh, or nil.
func (b *Builder) Current() *Mesh {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.current
}

// Build constructs a new mesh for the panorama and makes it current.
func (b *Builder) Build(p core.Panorama) *Mesh {
	m := b.construct(p)
	b.Use(m)
	return m
}

// Use makes m the current mesh.
func (b *Builder) Use(m *Mesh) {
	b.mu.Lock()
	b.current = m
	b.mu.Unlock()
}

// Prepare returns the mesh p needs without making it current: the current
// mesh when the panorama's first face extent matches the one it was built
// for, otherwise a new one. rebuilt reports which happened.
func (b *Builder) Prepare(p core.Panorama) (m *Mesh, rebuilt bool) {
	b.mu.Lock()
	current := b.current
	b.mu.Unlock()

	if current != nil && current.Extent == p.Projection.FaceExtents[0] {
		return current, false
	}
	return b.construct(p), true
}

// RebuildIfNecessary is Prepare followed by Use.
func (b *Builder) RebuildIfNecessary(p core.Panorama) (m *Mesh, rebuilt bool) {
	m, rebuilt = b.Prepare(p)
	if rebuilt {
		b.Use(m)
	}
	return m, rebuilt
}

func (b *Builder) construct(p core.Panorama) *Mesh {
	m := build(b.cfg, p.Projection)
	b.logger.Debug("built panorama mesh",
		"panorama", p.ID,
		"vertices", len(m.Positions),
		"triangles", len(m.Indices)/3,
		"extent", m.Extent)
	return m
}

func build(cfg Config, proj core.Projection) *Mesh {
	m := &Mesh{
		Radius: cfg.Radius,
		Extent: proj.FaceExtents[0],
	}

	for i, layout := range SideFaces {
		span := proj.FaceExtents[i]
		face := Face{
			Index:       core.FaceIndex(i),
			Layout:      layout,
			ThetaStart:  (math.Pi - span) / 2,
			ThetaLength: span,
			FirstVertex: len(m.Positions),
		}

		widthSegments := int(math.Round(layout.PhiLength * 180 / math.Pi / cfg.DegreesPerSegment))
		if widthSegments < 1 {
			widthSegments = 1
		}

		start := len(m.Indices)
		appendSegment(m, cfg.Radius, face, widthSegments, cfg.HeightSegments)
		face.VertexCount = len(m.Positions) - face.FirstVertex

		trimUVs(m.UVs[face.FirstVertex:], layout.TrimFactor())

		m.Faces = append(m.Faces, face)
		m.Groups = append(m.Groups, Group{
			Start:         start,
			Count:         len(m.Indices) - start,
			MaterialIndex: i,
		})
	}
	return m
}

// appendSegment emits a partial sphere the way three.js SphereGeometry does,
// so renderers can reuse the buffers directly.
func appendSegment(m *Mesh, radius float64, f Face, widthSegments, heightSegments int) {
	base := uint32(len(m.Positions))
	thetaEnd := math.Min(f.ThetaStart+f.ThetaLength, math.Pi)
	row := uint32(widthSegments + 1)

	for iy := 0; iy <= heightSegments; iy++ {
		v := float64(iy) / float64(heightSegments)
		theta := f.ThetaStart + v*f.ThetaLength
		for ix := 0; ix <= widthSegments; ix++ {
			u := float64(ix) / float64(widthSegments)
			phi := f.Layout.PhiStart + u*f.Layout.PhiLength
			m.Positions = append(m.Positions, r3.Vector{
				X: -radius * math.Cos(phi) * math.Sin(theta),
				Y: radius * math.Cos(theta),
				Z: radius * math.Sin(phi) * math.Sin(theta),
			})
			m.UVs = append(m.UVs, r2.Point{X: u, Y: 1 - v})
		}
	}

	for iy := 0; iy < heightSegments; iy++ {
		for ix := 0; ix < widthSegments; ix++ {
			a := base + uint32(iy)*row + uint32(ix) + 1
			b := base + uint32(iy)*row + uint32(ix)
			c := base + uint32(iy+1)*row + uint32(ix)
			d := base + uint32(iy+1)*row + uint32(ix) + 1

			if iy != 0 || f.ThetaStart > 0 {
				m.Indices = append(m.Indices, a, b, d)
			}
			if iy != heightSegments-1 || thetaEnd < math.Pi {
				m.Indices = append(m.Indices, b, c, d)
			}
		}
	}
}

// trimUVs scales U so the overlapping right edge of the capture is cropped.
func trimUVs(uvs []r2.Point, factor float64) {
	for i := range uvs {
		uvs[i].X *= factor
	}
}
