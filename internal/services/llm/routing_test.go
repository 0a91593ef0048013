package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/botsonlabs/jobforge/internal/common"
)

func TestRoutingPolicy_CapabilityDefaults(t *testing.T) {
	policy := NewRoutingPolicy(nil)

	// Conversational tasks go to the low-latency provider.
	assert.Equal(t, "claude", policy.Select("copilot_agent").Provider)
	assert.Equal(t, "claude", policy.Select("suggest").Provider)

	// Everything else goes to the schema-capable provider.
	assert.Equal(t, "gemini", policy.Select("refine").Provider)
	assert.Equal(t, "gemini", policy.Select("channels").Provider)
	assert.Equal(t, "gemini", policy.Select("video_storyboard").Provider)
}

func TestRoutingPolicy_OverridesWinOverDefaults(t *testing.T) {
	policy := NewRoutingPolicy(&common.LLMConfig{
		DefaultProvider: common.LLMProviderClaude,
		TaskRoutes: map[string]common.TaskRoute{
			"suggest": {Provider: "gemini", Model: "gemini-3-flash-preview"},
		},
	})

	route := policy.Select("suggest")
	assert.Equal(t, "gemini", route.Provider)
	assert.Equal(t, "gemini-3-flash-preview", route.Model)

	// Overrides without a provider are ignored.
	policy = NewRoutingPolicy(&common.LLMConfig{
		TaskRoutes: map[string]common.TaskRoute{"suggest": {Model: "some-model"}},
	})
	assert.Equal(t, "claude", policy.Select("suggest").Provider)
}

func TestRoutingPolicy_EmptyModelDefersToProviderDefault(t *testing.T) {
	policy := NewRoutingPolicy(nil)
	assert.Empty(t, policy.Select("refine").Model)
}

func TestProviderFactory_RegisterAndDefault(t *testing.T) {
	factory := NewProviderFactory(nil, nil, &common.LLMConfig{DefaultProvider: common.LLMProviderClaude}, nil, common.GetLogger())

	stub := NewStubProvider("claude")
	factory.Register("claude", stub)

	p, err := factory.Provider("claude")
	assert.NoError(t, err)
	assert.Same(t, stub, p.(*StubProvider))

	assert.Equal(t, "claude", factory.DefaultProvider())

	_, err = factory.Provider("openai")
	assert.Error(t, err)
}
