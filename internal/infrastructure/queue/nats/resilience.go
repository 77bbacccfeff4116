package nats

import (
	"errors"

	"github.com/nats-io/nats.go"

	"github.com/kirillkom/bid-reconciler/internal/infrastructure/resilience"
)

// classifyPublishError retries a reconcile job publish only while the
// connection is down or reconnecting. A bad subject or an oversized payload
// will fail the same way on every attempt.
func classifyPublishError(err error) resilience.ErrorClassification {
	switch {
	case err == nil, resilience.IsCanceled(err):
		return resilience.ErrorClassification{}
	case errors.Is(err, nats.ErrNoServers),
		errors.Is(err, nats.ErrTimeout),
		errors.Is(err, nats.ErrConnectionClosed),
		errors.Is(err, nats.ErrConnectionReconnecting),
		errors.Is(err, nats.ErrDisconnected),
		errors.Is(err, nats.ErrReconnectBufExceeded),
		errors.Is(err, nats.ErrStaleConnection):
		return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
	default:
		return resilience.ErrorClassification{RecordFailure: true}
	}
}

func newPublishExecutor(policy resilience.Policy) *resilience.Executor {
	return resilience.NewExecutor("nats", policy.Or(resilience.BrokerPolicy()), classifyPublishError)
}
