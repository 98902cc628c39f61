package domain

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrTemporary    = errors.New("temporary failure")

	// ErrIngestion marks a source document that could not be read or parsed.
	ErrIngestion = errors.New("ingestion failed")
	// ErrEmbeddingService marks a failed or malformed embedding call.
	ErrEmbeddingService = errors.New("embedding service failed")
	// ErrGeneration marks a failed ask: question embedding or answer generation.
	ErrGeneration = errors.New("generation failed")
	// ErrIndexUnavailable means no semantic index has been built or loaded yet.
	ErrIndexUnavailable = errors.New("index not ready")
	// ErrIndexVersionMismatch means the persisted index was built with a
	// different embedding model or vector dimension.
	ErrIndexVersionMismatch = errors.New("index version mismatch")
	ErrIndexCorrupt         = errors.New("index artifact corrupt")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}
