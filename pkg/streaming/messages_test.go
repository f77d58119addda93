package streaming

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lookaround-map/viewer/pkg/core"
)

func TestNewMarkerStatePayload_Hidden(t *testing.T) {
	p := NewMarkerStatePayload(core.MarkerState{})
	assert.False(t, p.Visible)
	assert.Empty(t, p.Target)
	assert.Zero(t, p.Scale)

	data, err := json.Marshal(p)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "target")
}

func TestNewMarkerStatePayload_Bound(t *testing.T) {
	p := NewMarkerStatePayload(core.MarkerState{
		Visible:  true,
		Position: core.Spherical{Yaw: 1, Pitch: -0.1, Distance: 12},
		Candidate: &core.NeighborCandidate{
			Panorama: core.Panorama{ID: "n1"},
			Scale:    0.5,
		},
	})
	assert.Equal(t, MarkerStatePayload{
		Visible: true, Yaw: 1, Pitch: -0.1, Distance: 12, Scale: 0.5, Target: "n1",
	}, p)
}

func TestNewPanoramaMessage_CoverageName(t *testing.T) {
	m := NewPanoramaMessage(core.Panorama{ID: "p", CoverageType: core.CoverageTrekker})
	assert.Equal(t, "trekker", m.CoverageType)
}

func TestPosePayload_Pose(t *testing.T) {
	var p PosePayload
	require.NoError(t, json.Unmarshal([]byte(`{"yaw":0.5,"pitch":0.1,"fov":1.2,"width":640,"height":480}`), &p))
	assert.Equal(t, core.CameraPose{Yaw: 0.5, Pitch: 0.1, FOV: 1.2, Width: 640, Height: 480}, p.Pose())
}

func TestActivatePayload_TapOptional(t *testing.T) {
	var p ActivatePayload
	require.NoError(t, json.Unmarshal([]byte(`{}`), &p))
	assert.Nil(t, p.Tap)

	require.NoError(t, json.Unmarshal([]byte(`{"tap":{"x":3,"y":4}}`), &p))
	require.NotNil(t, p.Tap)
	assert.Equal(t, core.ScreenPoint{X: 3, Y: 4}, p.Tap.Point())
}
