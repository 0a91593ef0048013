package llm

import (
	"context"
	"fmt"
	"sync"

	"github.com/ternarybob/arbor"

	"github.com/botsonlabs/jobforge/internal/common"
	"github.com/botsonlabs/jobforge/internal/interfaces"
)

// ProviderFactory creates and caches AI providers. Clients are initialized
// lazily on first use so a missing API key for an unused provider is not a
// startup failure.
type ProviderFactory struct {
	claudeConfig *common.ClaudeConfig
	geminiConfig *common.GeminiConfig
	llmConfig    *common.LLMConfig
	kvStorage    interfaces.KeyValueStorage
	logger       arbor.ILogger

	mu        sync.Mutex
	providers map[string]interfaces.Provider
}

// NewProviderFactory creates a new provider factory
func NewProviderFactory(
	claudeConfig *common.ClaudeConfig,
	geminiConfig *common.GeminiConfig,
	llmConfig *common.LLMConfig,
	kvStorage interfaces.KeyValueStorage,
	logger arbor.ILogger,
) *ProviderFactory {
	return &ProviderFactory{
		claudeConfig: claudeConfig,
		geminiConfig: geminiConfig,
		llmConfig:    llmConfig,
		kvStorage:    kvStorage,
		logger:       logger,
		providers:    make(map[string]interfaces.Provider),
	}
}

// Register installs a pre-built provider under a name. Used by tests to
// inject stub providers and by development mode for the offline provider.
func (f *ProviderFactory) Register(name string, provider interfaces.Provider) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.providers[name] = provider
}

// Provider returns the provider registered under name, creating the real
// adapter on first use.
func (f *ProviderFactory) Provider(name string) (interfaces.Provider, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if p, ok := f.providers[name]; ok {
		return p, nil
	}

	var (
		p   interfaces.Provider
		err error
	)
	switch common.LLMProvider(name) {
	case common.LLMProviderClaude:
		p, err = NewClaudeProvider(f.claudeConfig, f.kvStorage, f.logger)
	case common.LLMProviderGemini:
		p, err = NewGeminiProvider(context.Background(), f.geminiConfig, f.kvStorage, f.logger)
	default:
		return nil, fmt.Errorf("unknown provider: %s", name)
	}
	if err != nil {
		return nil, err
	}

	f.providers[name] = p
	return p, nil
}

// DefaultProvider returns the configured default provider name.
func (f *ProviderFactory) DefaultProvider() string {
	if f.llmConfig != nil && f.llmConfig.DefaultProvider != "" {
		return string(f.llmConfig.DefaultProvider)
	}
	return string(common.LLMProviderGemini)
}

// Close closes all cached providers
func (f *ProviderFactory) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for name, p := range f.providers {
		if err := p.Close(); err != nil {
			f.logger.Warn().Err(err).Str("provider", name).Msg("Failed to close provider")
		}
	}
	f.providers = make(map[string]interfaces.Provider)
	return nil
}
