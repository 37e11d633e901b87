package ai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/benvon/thought-capture/internal/telemetry"
	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

const (
	// DefaultOpenAIModel is the default model to use
	DefaultOpenAIModel = "gpt-4o-mini"
	// DefaultOpenAIBaseURL is the default OpenAI API base URL
	DefaultOpenAIBaseURL = "https://api.openai.com/v1"
	// DefaultTimeout is the default timeout for API calls
	DefaultTimeout = 30 * time.Second
)

// OpenAIProvider categorizes thoughts with OpenAI chat completions in JSON mode
type OpenAIProvider struct {
	client    openai.Client
	model     string
	logger    *zap.Logger
	debugMode bool
}

// NewOpenAIProvider creates a provider. SDK retries are disabled; the worker
// owns the retry policy.
func NewOpenAIProvider(apiKey, baseURL, model string, logger *zap.Logger, debugMode bool) *OpenAIProvider {
	if model == "" {
		model = DefaultOpenAIModel
	}
	if baseURL == "" {
		baseURL = DefaultOpenAIBaseURL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	client := openai.NewClient(
		option.WithAPIKey(apiKey),
		option.WithBaseURL(baseURL),
		option.WithHTTPClient(&http.Client{Timeout: DefaultTimeout}),
		option.WithMaxRetries(0),
	)
	return &OpenAIProvider{client: client, model: model, logger: logger, debugMode: debugMode}
}

// Model returns the default model name.
func (p *OpenAIProvider) Model() string {
	return p.model
}

// CategorizeThought asks the model for a structured thought
func (p *OpenAIProvider) CategorizeThought(ctx context.Context, req CategorizationRequest) (result *Categorization, err error) {
	model := p.model
	if req.Model != "" {
		model = req.Model
	}
	ctx, span := telemetry.StartSpan(ctx, "ai.categorize_thought", attribute.String("model", model))
	defer func() { telemetry.EndSpan(span, err) }()

	prompt := buildCategorizationPrompt(req)
	params := openai.ChatCompletionNewParams{
		Model: shared.ChatModel(model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(prompt),
		},
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		},
	}
	if p.debugMode {
		p.logger.Debug("llm_api_request",
			zap.String("operation", "categorize_thought"),
			zap.String("model", model),
			zap.Int("prompt_length", len(prompt)),
			zap.String("prompt_preview", SanitizePreview(prompt, true)),
		)
	}

	start := time.Now()
	resp, err := p.client.Chat.Completions.New(ctx, params)
	latency := time.Since(start)
	if err != nil {
		p.logger.Warn("llm_api_error",
			zap.String("model", model),
			zap.Duration("latency", latency),
			zap.Error(err),
		)
		return nil, fmt.Errorf("failed to categorize thought: %w", fromOpenAI(err))
	}
	if len(resp.Choices) == 0 {
		return nil, ErrNoChoices
	}
	content := resp.Choices[0].Message.Content
	if p.debugMode {
		p.logger.Debug("llm_api_response",
			zap.String("model", model),
			zap.Int("response_length", len(content)),
			zap.String("response_preview", SanitizePreview(content, true)),
			zap.Int64("latency_ms", latency.Milliseconds()),
		)
	}

	thought, err := parseCategorization(content, req.Text)
	if err != nil {
		return nil, err
	}
	usage := Usage{
		Model:            model,
		PromptTokens:     int(resp.Usage.PromptTokens),
		CompletionTokens: int(resp.Usage.CompletionTokens),
	}
	usage.CostUSD = estimateCost(model, usage.PromptTokens, usage.CompletionTokens)
	return &Categorization{Thought: thought, Usage: usage}, nil
}

// RegisterOpenAI registers the OpenAI provider with the registry. Config keys:
// api_key (required), base_url, model, debug ("true" logs prompt previews).
func RegisterOpenAI(registry *ProviderRegistry, logger *zap.Logger) {
	registry.Register("openai", func(config map[string]string) (Categorizer, error) {
		apiKey := config["api_key"]
		if apiKey == "" {
			return nil, errors.New("openai api_key is required")
		}
		return NewOpenAIProvider(apiKey, config["base_url"], config["model"], logger, config["debug"] == "true"), nil
	})
}

var _ Categorizer = (*OpenAIProvider)(nil)
