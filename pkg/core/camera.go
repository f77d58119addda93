// pkg/core/camera.go
package core

// CameraPose is the rendering engine's current view. Angles are radians;
// FOV is the vertical field of view. Width and Height are in pixels.
type CameraPose struct {
	Yaw    float64
	Pitch  float64
	FOV    float64
	Width  float64
	Height float64
}

// Aspect returns width over height, or 1 for an empty viewport.
func (p CameraPose) Aspect() float64 {
	if p.Width <= 0 || p.Height <= 0 {
		return 1
	}
	return p.Width / p.Height
}

// Spherical is a camera-relative position: yaw (azimuth), pitch (elevation)
// in radians and straight-line distance.
type Spherical struct {
	Yaw      float64
	Pitch    float64
	Distance float64
}

// ScreenPoint is a viewport position in pixels with a top-left origin.
type ScreenPoint struct {
	X float64
	Y float64
}
