// Package streaming defines the JSON messages exchanged with the host
// renderer over the WebSocket bridge.
package streaming

import (
	"encoding/json"
	"time"

	"github.com/lookaround-map/viewer/pkg/core"
)

// Inbound message types, sent by the host.
const (
	TypePose          = "pose"
	TypeRotatePending = "rotate_pending"
	TypePointerMove   = "pointer_move"
	TypeActivate      = "activate"
	TypeDisplay       = "display"
)

// Outbound message types, sent by the viewer.
const (
	TypeHello          = "hello"
	TypeNavigated      = "navigated"
	TypeLoadProgress   = "load_progress"
	TypeMarkerState    = "marker_state"
	TypeSetMesh        = "set_mesh"
	TypeSetFaceTexture = "set_face_texture"
)

// TypeAck marks an acknowledgement.
const TypeAck = "ack"

// Envelope wraps all messages sent over the WebSocket.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// AckMessage is the host's acknowledgement response.
type AckMessage struct {
	Type string `json:"type"` // always "ack"
	For  string `json:"for"`  // the message type being acknowledged
}

// HelloPayload opens a session. It is replayed after every reconnect.
type HelloPayload struct {
	Session string `json:"session"`
	Version string `json:"version"`
}

// PosePayload is the camera state after the host's controls moved it.
// Angles are radians.
type PosePayload struct {
	Yaw    float64 `json:"yaw"`
	Pitch  float64 `json:"pitch"`
	FOV    float64 `json:"fov"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Pose converts the payload to a camera pose.
func (p PosePayload) Pose() core.CameraPose {
	return core.CameraPose{Yaw: p.Yaw, Pitch: p.Pitch, FOV: p.FOV, Width: p.Width, Height: p.Height}
}

// RotatePendingPayload announces the yaw the camera is rotating towards.
type RotatePendingPayload struct {
	Yaw float64 `json:"yaw"`
}

// PointerPayload is a position in viewport pixels.
type PointerPayload struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Point converts the payload to a screen point.
func (p PointerPayload) Point() core.ScreenPoint {
	return core.ScreenPoint{X: p.X, Y: p.Y}
}

// ActivatePayload is a click or tap. Tap is set for touch input, where no
// hover marker exists.
type ActivatePayload struct {
	Tap *PointerPayload `json:"tap,omitempty"`
}

// DisplayPayload asks for the panorama closest to a location.
type DisplayPayload struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// PanoramaMessage describes a panorama to the host.
type PanoramaMessage struct {
	ID           string    `json:"panoid"`
	RegionID     string    `json:"regionId"`
	Lat          float64   `json:"lat"`
	Lon          float64   `json:"lon"`
	Date         time.Time `json:"date"`
	Heading      float64   `json:"heading"`
	CoverageType string    `json:"coverageType"`
}

// NewPanoramaMessage converts a core panorama.
func NewPanoramaMessage(p core.Panorama) PanoramaMessage {
	return PanoramaMessage{
		ID:           p.ID,
		RegionID:     p.RegionID,
		Lat:          p.Lat,
		Lon:          p.Lon,
		Date:         p.Date,
		Heading:      p.Heading,
		CoverageType: p.CoverageType.String(),
	}
}

// LoadProgressPayload is the initial load progress in [0, 1].
type LoadProgressPayload struct {
	Progress float64 `json:"progress"`
}

// MarkerStatePayload positions the navigation marker. Target is empty when
// the marker is not bound to a panorama.
type MarkerStatePayload struct {
	Visible  bool    `json:"visible"`
	Yaw      float64 `json:"yaw"`
	Pitch    float64 `json:"pitch"`
	Distance float64 `json:"distance"`
	Scale    float64 `json:"scale"`
	Target   string  `json:"target,omitempty"`
}

// NewMarkerStatePayload converts a marker state.
func NewMarkerStatePayload(m core.MarkerState) MarkerStatePayload {
	out := MarkerStatePayload{
		Visible:  m.Visible,
		Yaw:      m.Position.Yaw,
		Pitch:    m.Position.Pitch,
		Distance: m.Position.Distance,
	}
	if m.Candidate != nil {
		out.Scale = m.Candidate.Scale
		out.Target = m.Candidate.Panorama.ID
	}
	return out
}

// MeshGroup is an index range drawn with the texture of one face.
type MeshGroup struct {
	Start int `json:"start"`
	Count int `json:"count"`
	Face  int `json:"face"`
}

// SetMeshPayload is the merged panorama geometry. Positions hold x, y, z
// triples and UVs u, v pairs.
type SetMeshPayload struct {
	Positions []float32   `json:"positions"`
	UVs       []float32   `json:"uvs"`
	Indices   []uint32    `json:"indices"`
	Groups    []MeshGroup `json:"groups"`
}

// SetFaceTexturePayload tells the host which image to draw on a face. Path
// is relative to the provider's base URL.
type SetFaceTexturePayload struct {
	Panorama string `json:"panoid"`
	Face     int    `json:"face"`
	Quality  int    `json:"quality"`
	Path     string `json:"path"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
}
