package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/lookaround-map/viewer/internal/dispatcher"
	"github.com/lookaround-map/viewer/pkg/core"
	"github.com/lookaround-map/viewer/pkg/streaming"
)

// Controller is the part of the viewer driven by host input.
type Controller interface {
	DisplayAt(ctx context.Context, lat, lon float64) (core.Panorama, error)
	OnPoseChanged(ctx context.Context, pose core.CameraPose)
	OnRotatePending(ctx context.Context, yaw float64)
	OnPointerMove(pt core.ScreenPoint) bool
	OnActivate(ctx context.Context, tap *core.ScreenPoint) (bool, error)
}

// Queue sizes for the pose-driven commands. Poses arrive every frame while
// the camera moves; older ones are worthless once a newer one is handled.
const (
	poseBuffer   = 64
	rotateBuffer = 16
)

// navigationGroup is the exclusive group of the commands that change the
// displayed panorama.
const navigationGroup = "navigation"

// RegisterHandlers registers a handler for every inbound message type.
// Pose and rotation updates run in order on their own queues. Activation and
// display run one at a time; input arriving meanwhile is dropped.
func RegisterHandlers(d *dispatcher.Dispatcher, c Controller) {
	d.Register(streaming.TypePose, func(ctx context.Context, e dispatcher.Event) error {
		var p streaming.PosePayload
		if err := decode(e, &p); err != nil {
			return err
		}
		c.OnPoseChanged(ctx, p.Pose())
		return nil
	}, dispatcher.Buffered(poseBuffer))

	d.Register(streaming.TypeRotatePending, func(ctx context.Context, e dispatcher.Event) error {
		var p streaming.RotatePendingPayload
		if err := decode(e, &p); err != nil {
			return err
		}
		c.OnRotatePending(ctx, p.Yaw)
		return nil
	}, dispatcher.Buffered(rotateBuffer))

	// pointer samples are rate limited by the resolver itself
	d.Register(streaming.TypePointerMove, func(_ context.Context, e dispatcher.Event) error {
		var p streaming.PointerPayload
		if err := decode(e, &p); err != nil {
			return err
		}
		c.OnPointerMove(p.Point())
		return nil
	})

	d.Register(streaming.TypeActivate, func(ctx context.Context, e dispatcher.Event) error {
		var p streaming.ActivatePayload
		if len(e.Payload) > 0 {
			if err := decode(e, &p); err != nil {
				return err
			}
		}
		var tap *core.ScreenPoint
		if p.Tap != nil {
			pt := p.Tap.Point()
			tap = &pt
		}
		_, err := c.OnActivate(ctx, tap)
		return err
	}, dispatcher.ExclusiveGroup(navigationGroup), dispatcher.Logged())

	d.Register(streaming.TypeDisplay, func(ctx context.Context, e dispatcher.Event) error {
		var p streaming.DisplayPayload
		if err := decode(e, &p); err != nil {
			return err
		}
		_, err := c.DisplayAt(ctx, p.Lat, p.Lon)
		return err
	}, dispatcher.ExclusiveGroup(navigationGroup), dispatcher.Logged())
}

// Inbound returns a bridge inbound callback that dispatches host messages
// under ctx.
func Inbound(ctx context.Context, d *dispatcher.Dispatcher, logger *slog.Logger) func(streaming.Envelope) {
	return func(env streaming.Envelope) {
		err := d.Dispatch(ctx, dispatcher.Event{
			Command:   env.Type,
			Payload:   env.Payload,
			Timestamp: time.Now(),
		})
		switch {
		case err == nil:
		case errors.Is(err, dispatcher.ErrQueueFull), errors.Is(err, dispatcher.ErrBusy):
			logger.Debug("Host message dropped", "type", env.Type, "error", err)
		default:
			logger.Warn("Host message not handled", "type", env.Type, "error", err)
		}
	}
}

func decode(e dispatcher.Event, v any) error {
	if err := json.Unmarshal(e.Payload, v); err != nil {
		return fmt.Errorf("decoding %s payload: %w", e.Command, err)
	}
	return nil
}
