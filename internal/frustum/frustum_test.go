package frustum

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/lookaround-map/viewer/internal/camera"
	"github.com/lookaround-map/viewer/pkg/core"
)

type fixedPose core.CameraPose

func (p fixedPose) Pose() core.CameraPose { return core.CameraPose(p) }

func newTestFrustum(yaw, pitch, fov float64) *Frustum {
	return New(fixedPose{Yaw: yaw, Pitch: pitch, FOV: fov, Width: 1600, Height: 900})
}

func TestFrustum_EmptyBeforeUpdate(t *testing.T) {
	f := newTestFrustum(0, 0, math.Pi/3)
	assert.False(t, f.ContainsPoint(camera.Direction(0, 0)))
}

func TestFrustum_ContainsViewDirection(t *testing.T) {
	f := newTestFrustum(1.2, 0.1, math.Pi/3)
	f.Update(nil)

	assert.True(t, f.ContainsPoint(camera.Direction(1.2, 0.1)))
	assert.True(t, f.ContainsPoint(camera.Direction(1.2, 0.1).Mul(10)), "points along the ray at mesh radius")
	assert.False(t, f.ContainsPoint(camera.Direction(1.2+math.Pi, 0)), "behind the camera")
}

func TestFrustum_HorizontalExtent(t *testing.T) {
	// 60° vertical on 16:9 gives roughly 91.5° horizontal.
	f := newTestFrustum(0, 0, math.Pi/3)
	f.Update(nil)

	assert.True(t, f.ContainsPoint(camera.Direction(0.7, 0)))
	assert.True(t, f.ContainsPoint(camera.Direction(-0.7, 0)))
	assert.False(t, f.ContainsPoint(camera.Direction(0.9, 0)))
	assert.False(t, f.ContainsPoint(camera.Direction(-0.9, 0)))
}

func TestFrustum_VerticalExtent(t *testing.T) {
	f := newTestFrustum(0, 0, math.Pi/3)
	f.Update(nil)

	assert.True(t, f.ContainsPoint(camera.Direction(0, 0.5)))
	assert.False(t, f.ContainsPoint(camera.Direction(0, 0.55)))
}

func TestFrustum_PendingYawOverridesPose(t *testing.T) {
	f := newTestFrustum(0, 0, math.Pi/3)
	pending := math.Pi
	f.Update(&pending)

	assert.True(t, f.ContainsPoint(camera.Direction(math.Pi, 0)))
	assert.False(t, f.ContainsPoint(camera.Direction(0, 0)))
	assert.Equal(t, math.Pi, f.Bounds().Yaw)
}

func TestFrustum_Bounds(t *testing.T) {
	f := newTestFrustum(0.5, 0, math.Pi/3)
	f.Update(nil)

	b := f.Bounds()
	assert.InDelta(t, math.Pi/6, b.HalfHeight, 1e-12)
	assert.InDelta(t, math.Atan(math.Tan(math.Pi/6)*16/9), b.HalfWidth, 1e-12)
	assert.Equal(t, 0.5, b.Yaw)
}
