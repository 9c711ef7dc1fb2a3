package biometric

import (
	"context"
	"errors"

	"github.com/biogate/biogate/internal/extractor"
	"github.com/biogate/biogate/internal/identity"
	"github.com/biogate/biogate/internal/similarity"
)

var (
	// ErrInvalidInput rejects a request before any external call.
	ErrInvalidInput = errors.New("invalid input")
	// ErrUserNotFound is returned when the claimed username is unknown.
	ErrUserNotFound = identity.ErrNotFound
	// ErrModalityNotEnrolled is returned when the user has no reference for the modality.
	ErrModalityNotEnrolled = errors.New("modality not enrolled")
	// ErrUpstream wraps every failure of the embedding service.
	ErrUpstream = errors.New("embedding service failure")
	// ErrEmbeddingMismatch is returned when the live and enrolled embeddings have different lengths.
	ErrEmbeddingMismatch = errors.New("embedding does not match enrolled reference")
)

// Error categories surfaced to callers.
const (
	CodeInvalidInput        = "invalid_input"
	CodeNotFound            = "not_found"
	CodeModalityNotEnrolled = "modality_not_enrolled"
	CodeIdentityMismatch    = "identity_mismatch"
	CodeEmbeddingMismatch   = "embedding_mismatch"
	CodeUpstream            = "upstream"
	CodeInternal            = "internal"
)

// Category maps an error returned by Service to a stable code.
func Category(err error) string {
	switch {
	case errors.Is(err, ErrInvalidInput):
		return CodeInvalidInput
	case errors.Is(err, ErrUserNotFound):
		return CodeNotFound
	case errors.Is(err, ErrModalityNotEnrolled):
		return CodeModalityNotEnrolled
	case errors.Is(err, identity.ErrIdentityMismatch):
		return CodeIdentityMismatch
	case errors.Is(err, ErrEmbeddingMismatch), errors.Is(err, similarity.ErrLengthMismatch):
		return CodeEmbeddingMismatch
	case errors.Is(err, ErrUpstream), errors.Is(err, extractor.ErrExtraction),
		errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return CodeUpstream
	default:
		return CodeInternal
	}
}
