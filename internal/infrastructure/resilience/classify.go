package resilience

import (
	"context"
	"errors"
	"net"
	"net/http"

	"github.com/kirillkom/uniconnect/internal/core/domain"
)

// AdapterRule classifies errors only the calling adapter understands. It
// returns false to fall through to the shared rules.
type AdapterRule func(err error) (ErrorClassification, bool)

// Classify applies, in order: caller cancellation (never retried, not a
// breaker failure), open circuit, the adapter rule, network errors, and
// finally a non-retryable failure.
func Classify(err error, rule AdapterRule) ErrorClassification {
	if err == nil {
		return ErrorClassification{}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return ErrorClassification{
			Retryable:     false,
			RecordFailure: false,
		}
	}
	if IsCircuitOpen(err) {
		return ErrorClassification{
			Retryable:     true,
			RecordFailure: true,
		}
	}
	if rule != nil {
		if class, ok := rule(err); ok {
			return class
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return ErrorClassification{
			Retryable:     true,
			RecordFailure: true,
		}
	}
	return defaultClassifier(err)
}

// ClassifyHTTPStatus treats rate limits, timeouts and upstream 5xx as
// retryable. Other statuses are the caller's fault and do not trip the breaker.
func ClassifyHTTPStatus(statusCode int) ErrorClassification {
	if IsRetryableHTTPStatus(statusCode) {
		return ErrorClassification{
			Retryable:     true,
			RecordFailure: true,
		}
	}
	return ErrorClassification{
		Retryable:     false,
		RecordFailure: false,
	}
}

func IsRetryableHTTPStatus(statusCode int) bool {
	switch statusCode {
	case http.StatusRequestTimeout, http.StatusTooManyRequests, http.StatusInternalServerError, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}

// WrapTemporary tags err with domain.ErrTemporary when classifier deems it
// retryable or the circuit is open, so adapters surface it as a 503.
func WrapTemporary(operation string, err error, classifier ErrorClassifier) error {
	if err == nil {
		return nil
	}
	if domain.IsKind(err, domain.ErrTemporary) {
		return err
	}
	if classifier == nil {
		classifier = defaultClassifier
	}
	if classifier(err).Retryable || IsCircuitOpen(err) {
		return domain.WrapError(domain.ErrTemporary, operation, err)
	}
	return err
}
