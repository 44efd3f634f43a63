package sale

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

type serviceMetrics struct {
	ingested   metric.Int64Counter
	duplicates metric.Int64Counter
	shortfall  metric.Float64Counter
}

func newServiceMetrics() *serviceMetrics {
	meter := otel.Meter("tillpoint/sale")
	fallback := noop.NewMeterProvider().Meter("tillpoint/sale")

	m := &serviceMetrics{}
	var err error
	if m.ingested, err = meter.Int64Counter("sales.ingested",
		metric.WithDescription("Sales posted, duplicates excluded")); err != nil {
		m.ingested, _ = fallback.Int64Counter("sales.ingested")
	}
	if m.duplicates, err = meter.Int64Counter("sales.duplicates",
		metric.WithDescription("Submissions resolved to an existing invoice")); err != nil {
		m.duplicates, _ = fallback.Int64Counter("sales.duplicates")
	}
	if m.shortfall, err = meter.Float64Counter("costing.shortfall_units",
		metric.WithDescription("Units sold beyond available lot quantity")); err != nil {
		m.shortfall, _ = fallback.Float64Counter("costing.shortfall_units")
	}
	return m
}
