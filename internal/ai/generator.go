package ai

import (
	"context"
)

// Request describes a single text-generation call. The pipeline always asks
// for JSON-only output at a low temperature; the provider may still ignore
// both, so callers must treat the returned text as untrusted.
type Request struct {
	// System is the system instruction framing the task.
	System string
	// Prompt is the user-facing prompt body.
	Prompt string
	// Temperature controls sampling randomness. Zero means provider default.
	Temperature float32
	// MaxTokens bounds the response length. Zero means provider default.
	MaxTokens int32
	// ForceJSON requests a JSON-only response from providers that support it.
	ForceJSON bool
}

// Generator abstracts the external text-generation model.
type Generator interface {
	Generate(ctx context.Context, req *Request) (string, error)
	Model() string
}
