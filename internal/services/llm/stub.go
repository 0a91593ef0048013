package llm

import (
	"context"
	"fmt"
	"sync"

	"github.com/botsonlabs/jobforge/internal/interfaces"
)

// StubResponse is one scripted reply for the stub provider.
type StubResponse struct {
	Text string
	Err  error
}

// StubProvider is a scripted in-memory provider used in tests and offline
// development. Responses are consumed per task name in FIFO order; when a
// task's script is exhausted the last entry repeats.
type StubProvider struct {
	name string

	mu      sync.Mutex
	scripts map[string][]StubResponse
	calls   map[string]int
	// Invocations records every request for assertions, in call order.
	Invocations []*interfaces.InvokeRequest
}

// NewStubProvider creates a stub provider with the given name.
func NewStubProvider(name string) *StubProvider {
	return &StubProvider{
		name:    name,
		scripts: make(map[string][]StubResponse),
		calls:   make(map[string]int),
	}
}

// Script appends scripted responses for a task name. The empty task name is
// the fallback script for tasks without a dedicated one.
func (p *StubProvider) Script(taskName string, responses ...StubResponse) *StubProvider {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.scripts[taskName] = append(p.scripts[taskName], responses...)
	return p
}

// CallCount returns the number of invocations recorded for a task.
func (p *StubProvider) CallCount(taskName string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls[taskName]
}

// Name returns the provider identifier.
func (p *StubProvider) Name() string {
	return p.name
}

// SupportsOutputSchema reports schema capability; the stub accepts schemas.
func (p *StubProvider) SupportsOutputSchema() bool {
	return true
}

// Invoke returns the next scripted response for the request's task.
func (p *StubProvider) Invoke(ctx context.Context, req *interfaces.InvokeRequest) (*interfaces.InvokeResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p.mu.Lock()
	reqCopy := *req
	p.Invocations = append(p.Invocations, &reqCopy)

	script, ok := p.scripts[req.TaskType]
	if !ok {
		script = p.scripts[""]
	}
	n := p.calls[req.TaskType]
	p.calls[req.TaskType] = n + 1
	p.mu.Unlock()

	if len(script) == 0 {
		return nil, fmt.Errorf("stub provider has no script for task %q", req.TaskType)
	}
	if n >= len(script) {
		n = len(script) - 1
	}
	resp := script[n]
	if resp.Err != nil {
		return nil, resp.Err
	}

	return &interfaces.InvokeResponse{
		Text: resp.Text,
		Metadata: interfaces.InvokeMetadata{
			Model:        "stub",
			FinishReason: "stop",
		},
	}, nil
}

// Close releases resources.
func (p *StubProvider) Close() error {
	return nil
}
