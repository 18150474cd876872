package meters

import (
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

const prefix = "github.com/royalcat/listingmap/"

func Meter(pkg string) metric.Meter {
	return otel.Meter(prefix + pkg)
}

// Counter never fails; an instrument that cannot be created is replaced by a noop.
func Counter(m metric.Meter, name, description string) metric.Int64Counter {
	c, err := m.Int64Counter(name, metric.WithDescription(description))
	if err != nil {
		slog.Error("failed to create counter", "name", name, "error", err)
		return noop.Int64Counter{}
	}
	return c
}
