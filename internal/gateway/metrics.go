package gateway

import (
	"context"

	"github.com/samber/oops"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	outcomeSuccess   = "success"
	outcomeRetried   = "retried"
	outcomeError     = "error"
	outcomeLoggedOut = "logged_out"

	resultRefreshed    = "refreshed"
	resultReused       = "reused"
	resultNoCredential = "no_credential"
	resultNetwork      = "network_failure"
	resultRejected     = "rejected"
)

type metrics struct {
	fetches   metric.Int64Counter
	refreshes metric.Int64Counter
	shared    metric.Int64Counter
}

func newMetrics(meter metric.Meter) (*metrics, error) {
	fetches, err := meter.Int64Counter(
		"owner_session.fetch.count",
		metric.WithDescription("Authenticated requests by outcome"),
		metric.WithUnit("request"),
	)
	if err != nil {
		return nil, oops.In("Gateway").Wrapf(err, "creating fetch counter")
	}

	refreshes, err := meter.Int64Counter(
		"owner_session.refresh.count",
		metric.WithDescription("Token refresh flights by result"),
		metric.WithUnit("refresh"),
	)
	if err != nil {
		return nil, oops.In("Gateway").Wrapf(err, "creating refresh counter")
	}

	shared, err := meter.Int64Counter(
		"owner_session.refresh.shared",
		metric.WithDescription("Callers that joined a refresh flight started by another request"),
		metric.WithUnit("request"),
	)
	if err != nil {
		return nil, oops.In("Gateway").Wrapf(err, "creating shared refresh counter")
	}

	return &metrics{
		fetches:   fetches,
		refreshes: refreshes,
		shared:    shared,
	}, nil
}

func (m *metrics) fetch(ctx context.Context, outcome string) {
	m.fetches.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

func (m *metrics) refresh(ctx context.Context, result string) {
	m.refreshes.Add(ctx, 1, metric.WithAttributes(attribute.String("result", result)))
}

func (m *metrics) joined(ctx context.Context) {
	m.shared.Add(ctx, 1)
}
