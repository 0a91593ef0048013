package interfaces

import (
	"context"
)

// InvokeMode selects the decoding contract for a provider call.
type InvokeMode string

const (
	InvokeModeText InvokeMode = "text"
	InvokeModeJSON InvokeMode = "json"
)

// InvokeRequest is a provider-agnostic LLM invocation. Adapters must not
// mutate it and must never silently truncate the prompts.
type InvokeRequest struct {
	Model        string
	System       string
	User         string
	Mode         InvokeMode
	Temperature  float32
	MaxTokens    int
	OutputSchema map[string]interface{} // JSON schema for structured output (schema-capable providers)
	TaskType     string                 // task name, for telemetry
	Route        string                 // request-scoped route tag, for telemetry
}

// InvokeMetadata carries per-call accounting from the provider.
type InvokeMetadata struct {
	InputTokens  int
	OutputTokens int
	Model        string
	FinishReason string
}

// InvokeResponse is a provider-agnostic LLM response. JSON is populated when
// the provider enforced structured output; Text always carries the raw body.
type InvokeResponse struct {
	Text     string
	JSON     map[string]interface{}
	Metadata InvokeMetadata
}

// Provider is one LLM backend.
type Provider interface {
	Name() string
	// SupportsOutputSchema reports whether the provider can enforce a
	// structured-output schema server-side.
	SupportsOutputSchema() bool
	Invoke(ctx context.Context, req *InvokeRequest) (*InvokeResponse, error)
	Close() error
}

// ProviderSelector resolves a provider handle by name.
type ProviderSelector interface {
	Provider(name string) (Provider, error)
}
