package camera

import (
	"math"
	"testing"

	"github.com/golang/geo/r3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lookaround-map/viewer/pkg/core"
)

func testPose(yaw, pitch float64) core.CameraPose {
	return core.CameraPose{Yaw: yaw, Pitch: pitch, FOV: math.Pi / 3, Width: 1600, Height: 900}
}

func TestDirection_RoundTrip(t *testing.T) {
	for _, yaw := range []float64{0, 0.5, math.Pi, 4.5} {
		for _, pitch := range []float64{-1.2, 0, 0.3} {
			sp := ToSpherical(Direction(yaw, pitch))
			assert.InDelta(t, yaw, sp.Yaw, 1e-9)
			assert.InDelta(t, pitch, sp.Pitch, 1e-9)
			assert.InDelta(t, 1, sp.Distance, 1e-9)
		}
	}
}

func TestToSpherical_ZeroVector(t *testing.T) {
	assert.Equal(t, core.Spherical{}, ToSpherical(r3.Vector{}))
}

func TestScreenToSpherical_CenterIsPoseDirection(t *testing.T) {
	s := NewState(testPose(1.0, 0.2))

	sp, err := s.ScreenToSpherical(core.ScreenPoint{X: 800, Y: 450})
	require.NoError(t, err)
	assert.InDelta(t, 1.0, sp.Yaw, 1e-6)
	assert.InDelta(t, 0.2, sp.Pitch, 1e-6)
}

func TestScreenToSpherical_RightOfCenterIncreasesYaw(t *testing.T) {
	s := NewState(testPose(1.0, 0))

	sp, err := s.ScreenToSpherical(core.ScreenPoint{X: 1200, Y: 450})
	require.NoError(t, err)
	assert.Greater(t, sp.Yaw, 1.0)

	sp, err = s.ScreenToSpherical(core.ScreenPoint{X: 800, Y: 100})
	require.NoError(t, err)
	assert.Greater(t, sp.Pitch, 0.0, "upper half of the screen looks up")
}

func TestScreenToSpherical_TopEdgeIsHalfFOV(t *testing.T) {
	s := NewState(testPose(0, 0))

	sp, err := s.ScreenToSpherical(core.ScreenPoint{X: 800, Y: 0})
	require.NoError(t, err)
	assert.InDelta(t, math.Pi/6, sp.Pitch, 1e-6)
}

func TestScreenToSpherical_EmptyViewport(t *testing.T) {
	s := NewState(core.CameraPose{FOV: 1})

	_, err := s.ScreenToSpherical(core.ScreenPoint{})
	assert.ErrorIs(t, err, ErrEmptyViewport)
}

func TestSphericalToScreen_RoundTrip(t *testing.T) {
	s := NewState(testPose(2.0, -0.1))

	in := core.ScreenPoint{X: 300, Y: 700}
	sp, err := s.ScreenToSpherical(in)
	require.NoError(t, err)

	out, ok := s.SphericalToScreen(sp)
	require.True(t, ok)
	assert.InDelta(t, in.X, out.X, 1e-3)
	assert.InDelta(t, in.Y, out.Y, 1e-3)
}

func TestSphericalToScreen_BehindCamera(t *testing.T) {
	s := NewState(testPose(0, 0))

	_, ok := s.SphericalToScreen(core.Spherical{Yaw: math.Pi})
	assert.False(t, ok)
}

func TestState_Set(t *testing.T) {
	s := NewState(core.CameraPose{})
	s.Set(testPose(0.3, 0.1))
	assert.Equal(t, 0.3, s.Pose().Yaw)
}
