package llm

import (
	"github.com/botsonlabs/jobforge/internal/common"
)

// Route is a resolved (provider, model) pair for one task. An empty model
// defers to the provider's configured default.
type Route struct {
	Provider string
	Model    string
}

// latencySensitiveTasks are text-heavy conversational tasks routed to the
// lowest-latency configured provider.
var latencySensitiveTasks = map[string]bool{
	"copilot_agent": true,
	"suggest":       true,
}

// RoutingPolicy deterministically maps a task name to a provider and model.
// The policy is stateless and side-effect-free: it reads only the
// configuration captured at construction time.
type RoutingPolicy struct {
	lowLatency    string
	schemaCapable string
	overrides     map[string]common.TaskRoute
}

// NewRoutingPolicy builds the policy from config. Claude is treated as the
// low-latency chat provider and Gemini as the schema-capable provider,
// unless a per-task override says otherwise. The configured default provider
// is the factory's concern, not the router's.
func NewRoutingPolicy(llmConfig *common.LLMConfig) *RoutingPolicy {
	overrides := map[string]common.TaskRoute{}
	if llmConfig != nil {
		for name, route := range llmConfig.TaskRoutes {
			overrides[name] = route
		}
	}

	return &RoutingPolicy{
		lowLatency:    string(common.LLMProviderClaude),
		schemaCapable: string(common.LLMProviderGemini),
		overrides:     overrides,
	}
}

// Select resolves the provider and model for a task.
// Precedence: per-task override, then the low-latency provider for
// latency-sensitive tasks, then the schema-capable provider for everything
// else.
func (p *RoutingPolicy) Select(taskName string) Route {
	if route, ok := p.overrides[taskName]; ok && route.Provider != "" {
		return Route{Provider: route.Provider, Model: route.Model}
	}

	if latencySensitiveTasks[taskName] {
		return Route{Provider: p.lowLatency}
	}

	return Route{Provider: p.schemaCapable}
}
