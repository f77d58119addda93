package navigation

import (
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/lookaround-map/viewer/internal/navigation"

func meter() metric.Meter {
	return otel.Meter(instrumentationName)
}

type metrics struct {
	pointerDropped metric.Int64Counter
	ignored        metric.Int64Counter
	navigations    metric.Int64Counter
	duration       metric.Float64Histogram
	candidates     metric.Int64Gauge
}

func newMetrics() (*metrics, error) {
	m := meter()
	var (
		out metrics
		err error
	)

	out.pointerDropped, err = m.Int64Counter("navigation.pointer.dropped",
		metric.WithDescription("Pointer samples dropped by the rate gate"))
	if err != nil {
		return nil, fmt.Errorf("creating pointer counter: %w", err)
	}
	out.ignored, err = m.Int64Counter("navigation.activations.ignored",
		metric.WithDescription("Activations ignored while a navigation was in flight"))
	if err != nil {
		return nil, fmt.Errorf("creating ignored counter: %w", err)
	}
	out.navigations, err = m.Int64Counter("navigation.completed",
		metric.WithDescription("Navigations performed"))
	if err != nil {
		return nil, fmt.Errorf("creating navigation counter: %w", err)
	}
	out.duration, err = m.Float64Histogram("navigation.duration",
		metric.WithDescription("Time from activation until the destination is displayed"),
		metric.WithUnit("s"))
	if err != nil {
		return nil, fmt.Errorf("creating duration histogram: %w", err)
	}
	out.candidates, err = m.Int64Gauge("navigation.candidates",
		metric.WithDescription("Navigable neighbors around the current panorama"))
	if err != nil {
		return nil, fmt.Errorf("creating candidates gauge: %w", err)
	}
	return &out, nil
}
