package provider

import (
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/lookaround-map/viewer/internal/provider"

func meter() metric.Meter {
	return otel.Meter(instrumentationName)
}

type metrics struct {
	imageHits   metric.Int64Counter
	imageMisses metric.Int64Counter
	offline     metric.Int64Counter
}

func newMetrics() (*metrics, error) {
	m := meter()
	var (
		out metrics
		err error
	)

	out.imageHits, err = m.Int64Counter("provider.images.hits",
		metric.WithDescription("Face images served from the image cache"))
	if err != nil {
		return nil, fmt.Errorf("creating image hits counter: %w", err)
	}
	out.imageMisses, err = m.Int64Counter("provider.images.misses",
		metric.WithDescription("Face images fetched from the provider"))
	if err != nil {
		return nil, fmt.Errorf("creating image misses counter: %w", err)
	}
	out.offline, err = m.Int64Counter("provider.offline.lookups",
		metric.WithDescription("Metadata lookups answered from storage after a provider error"))
	if err != nil {
		return nil, fmt.Errorf("creating offline counter: %w", err)
	}
	return &out, nil
}
