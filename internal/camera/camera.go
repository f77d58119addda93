// Package camera holds the host renderer's camera pose and converts between
// screen pixels, camera-relative spherical angles and 3D directions.
//
// All packages share one frame: +Y is up and a direction at yaw y and pitch p
// is (-cos p·sin y, sin p, cos p·cos y). Yaw grows clockwise seen from above.
package camera

import (
	"errors"
	"math"
	"sync"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/golang/geo/r3"

	"github.com/lookaround-map/viewer/internal/geo"
	"github.com/lookaround-map/viewer/pkg/core"
)

const (
	// Near and Far clip planes. Directions are tested at unit length and the
	// panorama mesh sits well inside Far.
	Near = 0.01
	Far  = 1000.0

	maxPitch = math.Pi/2 - 1e-4
)

// ErrEmptyViewport is returned when a conversion needs a viewport size.
var ErrEmptyViewport = errors.New("viewport has no size")

// Direction returns the unit vector for a camera-relative yaw and pitch.
func Direction(yaw, pitch float64) r3.Vector {
	return r3.Vector{
		X: -math.Cos(pitch) * math.Sin(yaw),
		Y: math.Sin(pitch),
		Z: math.Cos(pitch) * math.Cos(yaw),
	}
}

// ToSpherical is the inverse of Direction. Distance is the vector length.
func ToSpherical(v r3.Vector) core.Spherical {
	n := v.Norm()
	if n == 0 {
		return core.Spherical{}
	}
	return core.Spherical{
		Yaw:      geo.NormalizeYaw(math.Atan2(-v.X, v.Z)),
		Pitch:    math.Asin(math.Max(-1, math.Min(1, v.Y/n))),
		Distance: n,
	}
}

// View returns the view matrix of a camera at the origin looking along the
// pose direction. Pitch is clamped just short of the poles to keep the up
// vector usable.
func View(pose core.CameraPose) mgl64.Mat4 {
	pitch := math.Max(-maxPitch, math.Min(maxPitch, pose.Pitch))
	d := Direction(pose.Yaw, pitch)
	return mgl64.LookAtV(
		mgl64.Vec3{0, 0, 0},
		mgl64.Vec3{d.X, d.Y, d.Z},
		mgl64.Vec3{0, 1, 0},
	)
}

// Projection returns the perspective matrix for the pose.
func Projection(pose core.CameraPose) mgl64.Mat4 {
	return mgl64.Perspective(pose.FOV, pose.Aspect(), Near, Far)
}

// State is the last pose reported by the host renderer.
type State struct {
	mu   sync.RWMutex
	pose core.CameraPose
}

// NewState creates a State with an initial pose.
func NewState(pose core.CameraPose) *State {
	return &State{pose: pose}
}

// Pose returns the current pose.
func (s *State) Pose() core.CameraPose {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pose
}

// Set replaces the current pose.
func (s *State) Set(pose core.CameraPose) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pose = pose
}

// ScreenToSpherical converts a pixel position into the camera-relative
// direction under it.
func (s *State) ScreenToSpherical(pt core.ScreenPoint) (core.Spherical, error) {
	pose := s.Pose()
	if pose.Width <= 0 || pose.Height <= 0 {
		return core.Spherical{}, ErrEmptyViewport
	}
	win := mgl64.Vec3{pt.X, pose.Height - pt.Y, 0.5}
	obj, err := mgl64.UnProject(win, View(pose), Projection(pose), 0, 0, int(pose.Width), int(pose.Height))
	if err != nil {
		return core.Spherical{}, err
	}
	sp := ToSpherical(r3.Vector{X: obj.X(), Y: obj.Y(), Z: obj.Z()})
	sp.Distance = 1
	return sp, nil
}

// SphericalToScreen projects a direction onto the viewport. ok is false when
// the direction is behind the camera.
func (s *State) SphericalToScreen(pos core.Spherical) (pt core.ScreenPoint, ok bool) {
	pose := s.Pose()
	if pose.Width <= 0 || pose.Height <= 0 {
		return core.ScreenPoint{}, false
	}
	d := Direction(pos.Yaw, pos.Pitch)
	if d.Dot(Direction(pose.Yaw, pose.Pitch)) <= 0 {
		return core.ScreenPoint{}, false
	}
	win := mgl64.Project(mgl64.Vec3{d.X, d.Y, d.Z}, View(pose), Projection(pose), 0, 0, int(pose.Width), int(pose.Height))
	return core.ScreenPoint{X: win.X(), Y: pose.Height - win.Y()}, true
}
