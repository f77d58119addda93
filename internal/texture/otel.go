package texture

import (
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/lookaround-map/viewer/internal/texture"

func meter() metric.Meter {
	return otel.Meter(instrumentationName)
}

type metrics struct {
	started  metric.Int64Counter
	applied  metric.Int64Counter
	stale    metric.Int64Counter
	failed   metric.Int64Counter
	duration metric.Float64Histogram
}

func newMetrics() (*metrics, error) {
	m := meter()
	var (
		out metrics
		err error
	)

	out.started, err = m.Int64Counter("texture.upgrades.started",
		metric.WithDescription("Face resolution upgrades requested"))
	if err != nil {
		return nil, fmt.Errorf("creating started counter: %w", err)
	}
	out.applied, err = m.Int64Counter("texture.upgrades.applied",
		metric.WithDescription("Face resolution upgrades applied to a slot"))
	if err != nil {
		return nil, fmt.Errorf("creating applied counter: %w", err)
	}
	out.stale, err = m.Int64Counter("texture.upgrades.stale",
		metric.WithDescription("Upgrade results discarded after navigation"))
	if err != nil {
		return nil, fmt.Errorf("creating stale counter: %w", err)
	}
	out.failed, err = m.Int64Counter("texture.upgrades.failed",
		metric.WithDescription("Upgrade fetches that returned an error"))
	if err != nil {
		return nil, fmt.Errorf("creating failed counter: %w", err)
	}
	out.duration, err = m.Float64Histogram("texture.fetch.duration",
		metric.WithDescription("Face fetch duration"),
		metric.WithUnit("s"))
	if err != nil {
		return nil, fmt.Errorf("creating duration histogram: %w", err)
	}
	return &out, nil
}
