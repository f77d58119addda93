// Package bridge connects the viewer to a host renderer over a WebSocket.
// Outbound, it implements the viewer's Renderer and Events; inbound, host
// messages are handed to a callback, normally a dispatcher.
package bridge

import (
	"encoding/json"
	"fmt"
	"image"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/lookaround-map/viewer/internal/config"
	"github.com/lookaround-map/viewer/internal/mesh"
	"github.com/lookaround-map/viewer/internal/provider"
	"github.com/lookaround-map/viewer/pkg/core"
	"github.com/lookaround-map/viewer/pkg/streaming"
)

// Version is reported to the host in the hello message.
const Version = "1"

// Bridge streams viewer output to the host renderer.
type Bridge struct {
	conn    *connection
	cfg     config.BridgeConfig
	session string
	logger  *slog.Logger

	mu       sync.RWMutex
	panorama func() core.Panorama
}

// New creates a bridge. inbound receives every host message that is not an
// ack; it is called from the read goroutine.
func New(cfg config.BridgeConfig, logger *slog.Logger, inbound func(streaming.Envelope)) *Bridge {
	if logger == nil {
		logger = slog.Default()
	}
	c := newConnection(logger, inbound)
	if cfg.ReconnectDelay > 0 {
		c.firstBackoff = cfg.ReconnectDelay
	}
	if cfg.MaxBackoff > 0 {
		c.maxBackoff = cfg.MaxBackoff
	}
	return &Bridge{
		conn:    c,
		cfg:     cfg,
		session: uuid.NewString(),
		logger:  logger,
	}
}

// Session returns the session id sent with the hello message.
func (b *Bridge) Session() string {
	return b.session
}

// SetPanoramaSource sets where SetFaceTexture reads the panorama a texture
// belongs to.
func (b *Bridge) SetPanoramaSource(fn func() core.Panorama) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.panorama = fn
}

// Init connects to the host and waits for it to acknowledge the hello.
func (b *Bridge) Init() error {
	if err := b.conn.dial(b.cfg.URL, b.session); err != nil {
		return err
	}

	data, err := marshalEnvelope(streaming.TypeHello, streaming.HelloPayload{
		Session: b.session,
		Version: Version,
	})
	if err != nil {
		return err
	}

	b.conn.mu.Lock()
	b.conn.cachedHello = data
	b.conn.mu.Unlock()

	return b.conn.sendAndWait(data, streaming.TypeHello, ackTimeout)
}

// Close disconnects from the host.
func (b *Bridge) Close() error {
	return b.conn.close()
}

// marshalEnvelope builds a JSON-encoded Envelope from a message type and payload.
func marshalEnvelope(msgType string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", msgType, err)
	}
	env := streaming.Envelope{Type: msgType, Payload: raw}
	data, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("marshal %s envelope: %w", msgType, err)
	}
	return data, nil
}

// sendEnvelope marshals the payload into an Envelope and pushes it
// to the write loop (fire-and-forget).
func (b *Bridge) sendEnvelope(msgType string, payload any) {
	data, err := marshalEnvelope(msgType, payload)
	if err != nil {
		b.logger.Error("Failed to encode message", "type", msgType, "error", err)
		return
	}
	b.conn.send(data)
}

// SetMesh sends the merged mesh geometry.
func (b *Bridge) SetMesh(m *mesh.Mesh) {
	b.sendEnvelope(streaming.TypeSetMesh, meshPayload(m))
}

// SetFaceTexture tells the host which provider image to draw on a face.
func (b *Bridge) SetFaceTexture(face core.FaceIndex, quality core.Quality, img image.Image) {
	b.mu.RLock()
	source := b.panorama
	b.mu.RUnlock()

	var pano core.Panorama
	if source != nil {
		pano = source()
	}
	if pano.IsZero() {
		b.logger.Warn("Texture without panorama", "face", face, "quality", quality)
		return
	}

	size := img.Bounds().Size()
	b.sendEnvelope(streaming.TypeSetFaceTexture, streaming.SetFaceTexturePayload{
		Panorama: pano.ID,
		Face:     int(face),
		Quality:  int(quality),
		Path:     provider.FacePath(pano, face, quality),
		Width:    size.X,
		Height:   size.Y,
	})
}

// Navigated reports the displayed panorama.
func (b *Bridge) Navigated(p core.Panorama) {
	b.sendEnvelope(streaming.TypeNavigated, streaming.NewPanoramaMessage(p))
}

// LoadProgress reports initial load progress.
func (b *Bridge) LoadProgress(v float64) {
	b.sendEnvelope(streaming.TypeLoadProgress, streaming.LoadProgressPayload{Progress: v})
}

// MarkerChanged reports the navigation marker.
func (b *Bridge) MarkerChanged(m core.MarkerState) {
	b.sendEnvelope(streaming.TypeMarkerState, streaming.NewMarkerStatePayload(m))
}

func meshPayload(m *mesh.Mesh) streaming.SetMeshPayload {
	out := streaming.SetMeshPayload{
		Positions: make([]float32, 0, len(m.Positions)*3),
		UVs:       make([]float32, 0, len(m.UVs)*2),
		Indices:   m.Indices,
		Groups:    make([]streaming.MeshGroup, len(m.Groups)),
	}
	for _, p := range m.Positions {
		out.Positions = append(out.Positions, float32(p.X), float32(p.Y), float32(p.Z))
	}
	for _, uv := range m.UVs {
		out.UVs = append(out.UVs, float32(uv.X), float32(uv.Y))
	}
	for i, g := range m.Groups {
		out.Groups[i] = streaming.MeshGroup{Start: g.Start, Count: g.Count, Face: g.MaterialIndex}
	}
	return out
}
