package httpadapter

import (
	"net/http"

	"github.com/kirillkom/uniconnect/internal/core/domain"
)

// mapError picks the status and a stable machine-readable code. Temporary
// provider failures win over the kind they are wrapped in so clients retry.
func mapError(err error) (int, string) {
	switch {
	case domain.IsKind(err, domain.ErrInvalidInput):
		return http.StatusBadRequest, "invalid_input"
	case domain.IsKind(err, domain.ErrIngestion):
		return http.StatusBadRequest, "ingestion_failed"
	case domain.IsKind(err, domain.ErrIndexUnavailable):
		return http.StatusServiceUnavailable, "index_not_ready"
	case domain.IsKind(err, domain.ErrTemporary):
		return http.StatusServiceUnavailable, "temporarily_unavailable"
	case domain.IsKind(err, domain.ErrIndexVersionMismatch):
		return http.StatusConflict, "index_version_mismatch"
	case domain.IsKind(err, domain.ErrEmbeddingService):
		return http.StatusBadGateway, "embedding_failed"
	case domain.IsKind(err, domain.ErrGeneration):
		return http.StatusBadGateway, "generation_failed"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}
