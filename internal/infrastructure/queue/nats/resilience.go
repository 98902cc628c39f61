package nats

import (
	"errors"

	"github.com/nats-io/nats.go"

	"github.com/kirillkom/uniconnect/internal/infrastructure/resilience"
)

func classifyNATSError(err error) resilience.ErrorClassification {
	return resilience.Classify(err, func(err error) (resilience.ErrorClassification, bool) {
		if errors.Is(err, nats.ErrNoServers) ||
			errors.Is(err, nats.ErrTimeout) ||
			errors.Is(err, nats.ErrConnectionClosed) ||
			errors.Is(err, nats.ErrDisconnected) {
			return resilience.ErrorClassification{Retryable: true, RecordFailure: true}, true
		}
		return resilience.ErrorClassification{}, false
	})
}
