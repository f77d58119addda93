// Package frustum tracks the camera's visible volume and answers point
// visibility queries for texture streaming and navigation hit testing.
package frustum

import (
	"math"
	"sync"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/golang/geo/r3"

	"github.com/lookaround-map/viewer/internal/camera"
	"github.com/lookaround-map/viewer/pkg/core"
)

// PoseSource provides the rendering engine's current camera pose.
type PoseSource interface {
	Pose() core.CameraPose
}

// AngularBounds is the visible region as yaw/pitch extents around the view
// direction, in radians.
type AngularBounds struct {
	Yaw        float64
	Pitch      float64
	HalfWidth  float64
	HalfHeight float64
}

// Frustum is the camera's visible volume as six planes a·x+b·y+c·z+d >= 0.
type Frustum struct {
	src PoseSource

	mu     sync.RWMutex
	planes [6]mgl64.Vec4
	bounds AngularBounds
	valid  bool
}

// New creates a frustum over the given pose source. It contains nothing until
// the first Update.
func New(src PoseSource) *Frustum {
	return &Frustum{src: src}
}

// Update recomputes the frustum from the current pose. A non-nil pendingYaw
// replaces the pose yaw; rotation events fire before the pose is committed.
func (f *Frustum) Update(pendingYaw *float64) {
	pose := f.src.Pose()
	if pendingYaw != nil {
		pose.Yaw = *pendingYaw
	}

	m := camera.Projection(pose).Mul4(camera.View(pose))
	x, y, z, w := m.Row(0), m.Row(1), m.Row(2), m.Row(3)

	planes := [6]mgl64.Vec4{
		w.Add(x), // left
		w.Sub(x), // right
		w.Add(y), // bottom
		w.Sub(y), // top
		w.Add(z), // near
		w.Sub(z), // far
	}

	halfHeight := pose.FOV / 2
	bounds := AngularBounds{
		Yaw:        pose.Yaw,
		Pitch:      pose.Pitch,
		HalfWidth:  math.Atan(math.Tan(halfHeight) * pose.Aspect()),
		HalfHeight: halfHeight,
	}

	f.mu.Lock()
	f.planes = planes
	f.bounds = bounds
	f.valid = true
	f.mu.Unlock()
}

// ContainsPoint reports whether p lies inside the visible volume.
func (f *Frustum) ContainsPoint(p r3.Vector) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if !f.valid {
		return false
	}
	v := mgl64.Vec4{p.X, p.Y, p.Z, 1}
	for _, plane := range f.planes {
		if plane.Dot(v) < 0 {
			return false
		}
	}
	return true
}

// Bounds returns the angular extents computed by the last Update.
func (f *Frustum) Bounds() AngularBounds {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.bounds
}
