package openai

import (
	"errors"

	openai "github.com/meguminnnnnnnnn/go-openai"

	"github.com/kirillkom/uniconnect/internal/infrastructure/resilience"
)

func classifyOpenAIError(err error) resilience.ErrorClassification {
	return resilience.Classify(err, func(err error) (resilience.ErrorClassification, bool) {
		if code, ok := statusCode(err); ok {
			return resilience.ClassifyHTTPStatus(code), true
		}
		return resilience.ErrorClassification{}, false
	})
}

func statusCode(err error) (int, bool) {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode, true
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode, true
	}
	return 0, false
}
