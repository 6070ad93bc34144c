package llm

import (
	"context"
	"encoding/json"
	"errors"
)

// ErrInvalidJSON signals an empty or non-JSON model response.
var ErrInvalidJSON = errors.New("invalid json from LLM")

// LLMClient is the single point of contact with the reasoning oracle.
// Cross-cutting concerns (rate limiting, retries, logging) are layered on
// top via Middleware.
type LLMClient interface {
	Name() string
	GenerateJSON(ctx context.Context, prompt string, input any) (json.RawMessage, error)
	Close() error
}

// PermanentError indicates a failure that will not resolve with retries
// (bad credentials, oversized payload, unsupported model).
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return e.Err.Error() }
func (e *PermanentError) Unwrap() error { return e.Err }

func NewPermanentError(err error) error {
	return &PermanentError{Err: err}
}
