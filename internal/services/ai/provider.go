package ai

import (
	"context"
	"fmt"
	"sort"

	"github.com/benvon/thought-capture/internal/services/nlp"
	"go.uber.org/zap"
)

// CategorizationRequest is one thought's text sent to a model.
type CategorizationRequest struct {
	Text string
	// Hint is the user's standing guidance, e.g. "I teach; 'class' is always an event".
	Hint          string
	PreferredTags []string
	// Model overrides the provider's default model when set.
	Model string
}

// Usage is the token and cost accounting of one model call.
type Usage struct {
	Model            string  `json:"model,omitempty"`
	PromptTokens     int     `json:"prompt_tokens"`
	CompletionTokens int     `json:"completion_tokens"`
	CostUSD          float64 `json:"cost_usd"`
}

// Categorization is a model's structured reading of a thought.
type Categorization struct {
	Thought nlp.Thought
	Usage   Usage
}

// Categorizer turns raw thought text into a structured thought.
type Categorizer interface {
	CategorizeThought(ctx context.Context, req CategorizationRequest) (*Categorization, error)
}

// ProviderFactory creates a categorizer from string settings (api_key, model, base_url).
type ProviderFactory func(config map[string]string) (Categorizer, error)

// ProviderRegistry stores available AI providers
type ProviderRegistry struct {
	providers map[string]ProviderFactory
}

// NewProviderRegistry creates an empty provider registry
func NewProviderRegistry() *ProviderRegistry {
	return &ProviderRegistry{providers: make(map[string]ProviderFactory)}
}

// NewDefaultRegistry returns a registry with every built-in provider registered.
func NewDefaultRegistry(logger *zap.Logger) *ProviderRegistry {
	r := NewProviderRegistry()
	RegisterOpenAI(r, logger)
	return r
}

// Register registers a provider factory
func (r *ProviderRegistry) Register(name string, factory ProviderFactory) {
	r.providers[name] = factory
}

// Names lists registered providers in order.
func (r *ProviderRegistry) Names() []string {
	names := make([]string, 0, len(r.providers))
	for n := range r.providers {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// GetProvider builds the named provider
func (r *ProviderRegistry) GetProvider(name string, config map[string]string) (Categorizer, error) {
	factory, ok := r.providers[name]
	if !ok {
		return nil, &ErrProviderNotFound{Name: name}
	}
	c, err := factory(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s provider: %w", name, err)
	}
	return c, nil
}

// ErrProviderNotFound is returned when a provider is not registered
type ErrProviderNotFound struct {
	Name string
}

func (e *ErrProviderNotFound) Error() string {
	return "AI provider not found: " + e.Name
}
