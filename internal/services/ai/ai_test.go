package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/benvon/thought-capture/internal/services/nlp"
	"go.uber.org/zap/zaptest"
)

type mockCategorizer struct {
	categorizeFunc func(ctx context.Context, req CategorizationRequest) (*Categorization, error)
}

var _ Categorizer = (*mockCategorizer)(nil)

func (m *mockCategorizer) CategorizeThought(ctx context.Context, req CategorizationRequest) (*Categorization, error) {
	return m.categorizeFunc(ctx, req)
}

func TestFallback(t *testing.T) {
	t.Parallel()

	got := Fallback("call the plumber about the thing")
	if got.Thought.Type() != nlp.TypeNote || got.Thought.Title() != "Unprocessed thought" {
		t.Errorf("Fallback thought = %s %q", got.Thought.Type(), got.Thought.Title())
	}
	note := got.Thought.Content.(nlp.NoteContent)
	if note.Details != "call the plumber about the thing" {
		t.Errorf("Details = %q, want raw text", note.Details)
	}
	if got.Usage != (Usage{}) {
		t.Errorf("Usage = %+v, want zero", got.Usage)
	}
	if err := got.Thought.Validate(); err != nil {
		t.Errorf("fallback thought invalid: %v", err)
	}
}

func TestCategorizeWithFallback(t *testing.T) {
	t.Parallel()

	ok := &Categorization{Thought: nlp.NewThought(nlp.TaskContent{Title: "Call plumber", Priority: nlp.PriorityMedium}, nlp.ConfidenceHigh)}
	tests := []struct {
		name      string
		result    *Categorization
		err       error
		wantTitle string
		wantErr   bool
	}{
		{"success", ok, nil, "Call plumber", false},
		{"provider error", nil, errors.New("boom"), FallbackTitle, true},
		{"malformed", nil, ErrMalformedResponse, FallbackTitle, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			c := &mockCategorizer{categorizeFunc: func(context.Context, CategorizationRequest) (*Categorization, error) {
				return tt.result, tt.err
			}}
			got, err := CategorizeWithFallback(context.Background(), c, CategorizationRequest{Text: "call plumber"})
			if (err != nil) != tt.wantErr {
				t.Errorf("error = %v, wantErr %v", err, tt.wantErr)
			}
			if got == nil || got.Thought.Title() != tt.wantTitle {
				t.Errorf("title = %v, want %q", got, tt.wantTitle)
			}
		})
	}
}

func TestParseCategorization(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		content   string
		wantType  nlp.ThoughtType
		wantTitle string
		wantErr   bool
	}{
		{
			name:      "task",
			content:   `{"thought_type":"task","confidence":"high","processed_content":{"title":"Call plumber","priority":"high"}}`,
			wantType:  nlp.TypeTask,
			wantTitle: "Call plumber",
		},
		{
			name:      "prose around json",
			content:   "Sure! {\"thought_type\":\"event\",\"confidence\":\"medium\",\"processed_content\":{\"title\":\"Dentist\",\"date\":\"2026-10-16\"}} Hope that helps.",
			wantType:  nlp.TypeEvent,
			wantTitle: "Dentist",
		},
		{
			name:      "uncertain without possible types",
			content:   `{"thought_type":"uncertain","confidence":"low","processed_content":{"title":"Maybe gym"}}`,
			wantType:  nlp.TypeUncertain,
			wantTitle: "Maybe gym",
		},
		{name: "not json", content: "I think this is a task", wantErr: true},
		{name: "unknown type", content: `{"thought_type":"poem","confidence":"high","processed_content":{"title":"x"}}`, wantErr: true},
		{name: "empty title", content: `{"thought_type":"note","confidence":"high","processed_content":{"title":""}}`, wantErr: true},
		{name: "bad confidence", content: `{"thought_type":"note","confidence":"sure","processed_content":{"title":"x"}}`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := parseCategorization(tt.content, "raw text")
			if tt.wantErr {
				if !errors.Is(err, ErrMalformedResponse) {
					t.Errorf("error = %v, want ErrMalformedResponse", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("parseCategorization() error = %v", err)
			}
			if got.Type() != tt.wantType || got.Title() != tt.wantTitle {
				t.Errorf("got %s %q, want %s %q", got.Type(), got.Title(), tt.wantType, tt.wantTitle)
			}
			if err := got.Validate(); err != nil {
				t.Errorf("parsed thought invalid: %v", err)
			}
		})
	}
}

func TestParseCategorization_FillsDetailsAndPriority(t *testing.T) {
	t.Parallel()

	got, err := parseCategorization(`{"thought_type":"task","confidence":"medium","processed_content":{"title":"Buy milk"}}`, "need to buy milk")
	if err != nil {
		t.Fatal(err)
	}
	task := got.Content.(nlp.TaskContent)
	if task.Details != "need to buy milk" || task.Priority != nlp.PriorityMedium {
		t.Errorf("task = %+v", task)
	}
}

func TestBuildCategorizationPrompt(t *testing.T) {
	t.Parallel()

	p := buildCategorizationPrompt(CategorizationRequest{Text: "class at 9", Hint: "I teach", PreferredTags: []string{"school", "home"}})
	for _, want := range []string{"User guidance: I teach", "school, home", "Thought: class at 9"} {
		if !strings.Contains(p, want) {
			t.Errorf("prompt missing %q:\n%s", want, p)
		}
	}
	bare := buildCategorizationPrompt(CategorizationRequest{Text: "x"})
	if strings.Contains(bare, "guidance") || strings.Contains(bare, "tags") {
		t.Errorf("bare prompt has optional sections: %q", bare)
	}
}

func TestEstimateCost(t *testing.T) {
	t.Parallel()

	if got := estimateCost("gpt-4o-mini", 1_000_000, 1_000_000); math.Abs(got-0.75) > 1e-9 {
		t.Errorf("estimateCost(gpt-4o-mini) = %v, want 0.75", got)
	}
	if got := estimateCost("local-llama", 1000, 1000); got != 0 {
		t.Errorf("estimateCost(unknown) = %v, want 0", got)
	}
}

func TestErrorClassifiers(t *testing.T) {
	t.Parallel()

	retryAfter := 10 * time.Minute
	rate := &APIError{StatusCode: 429, Type: "requests"}
	rateWithHeader := &APIError{StatusCode: 429, RetryAfter: &retryAfter}
	quota := &APIError{StatusCode: 429, Code: "insufficient_quota", IsPermanent: true}
	ctxLen := &APIError{StatusCode: 400, Code: "context_length_exceeded"}
	badReq := &APIError{StatusCode: 400}
	server := &APIError{StatusCode: 503}

	tests := []struct {
		name               string
		err                error
		rate, quota, retry bool
		wantDelay0         time.Duration
	}{
		{"rate limit", fmt.Errorf("wrapped: %w", rate), true, false, true, time.Minute},
		{"rate limit with retry-after", rateWithHeader, true, false, true, 10 * time.Minute},
		{"quota", quota, false, true, true, time.Hour},
		{"context length", ctxLen, false, false, false, 5 * time.Second},
		{"bad request", badReq, false, false, false, 5 * time.Second},
		{"server error", server, false, false, true, 5 * time.Second},
		{"malformed", fmt.Errorf("x: %w", ErrMalformedResponse), false, false, false, 5 * time.Second},
		{"plain rate limit text", errors.New("429 Too Many Requests"), true, false, true, time.Minute},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := IsRateLimitError(tt.err); got != tt.rate {
				t.Errorf("IsRateLimitError = %v, want %v", got, tt.rate)
			}
			if got := IsQuotaError(tt.err); got != tt.quota {
				t.Errorf("IsQuotaError = %v, want %v", got, tt.quota)
			}
			if got := IsRetryable(tt.err); got != tt.retry {
				t.Errorf("IsRetryable = %v, want %v", got, tt.retry)
			}
			if got := GetRetryDelay(tt.err, 0); got != tt.wantDelay0 {
				t.Errorf("GetRetryDelay(0) = %v, want %v", got, tt.wantDelay0)
			}
		})
	}
}

func TestGetRetryDelay_Backoff(t *testing.T) {
	t.Parallel()

	rate := &APIError{StatusCode: 429}
	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{-1, time.Minute},
		{1, 2 * time.Minute},
		{3, 8 * time.Minute},
		{4, 15 * time.Minute},
		{50, 15 * time.Minute},
	}
	for _, tt := range tests {
		if got := GetRetryDelay(rate, tt.attempt); got != tt.want {
			t.Errorf("GetRetryDelay(rate, %d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
	if got := GetRetryDelay(errors.New("eof"), 10); got != 5*time.Minute {
		t.Errorf("GetRetryDelay(other, 10) = %v, want 5m cap", got)
	}
	if got := GetRetryDelay(&APIError{IsPermanent: true}, 10); got != 24*time.Hour {
		t.Errorf("GetRetryDelay(quota, 10) = %v, want 24h cap", got)
	}
}

func TestProviderRegistry(t *testing.T) {
	t.Parallel()

	r := NewDefaultRegistry(zaptest.NewLogger(t))
	if names := r.Names(); len(names) != 1 || names[0] != "openai" {
		t.Errorf("Names() = %v", names)
	}
	if _, err := r.GetProvider("openai", map[string]string{}); err == nil {
		t.Error("GetProvider(openai) without key: error = nil")
	}
	if _, err := r.GetProvider("openai", map[string]string{"api_key": "sk-test"}); err != nil {
		t.Errorf("GetProvider(openai) error = %v", err)
	}
	var notFound *ErrProviderNotFound
	if _, err := r.GetProvider("anthropic", nil); !errors.As(err, &notFound) || notFound.Name != "anthropic" {
		t.Errorf("GetProvider(anthropic) error = %v, want ErrProviderNotFound", err)
	}
}

func TestSanitize(t *testing.T) {
	t.Parallel()

	if got := SanitizeAPIKey("sk-1234567890abcd"); got != "sk-1[REDACTED]abcd" {
		t.Errorf("SanitizeAPIKey = %q", got)
	}
	if got := SanitizeAPIKey("short"); got != RedactedValue {
		t.Errorf("SanitizeAPIKey(short) = %q", got)
	}
	if got := SanitizePreview("a\x1b[31mb", false); got != "a[31mb" {
		t.Errorf("SanitizePreview strips escape = %q", got)
	}
	long := strings.Repeat("é", MaxPreviewLength+5)
	if got := SanitizePreview(long, false); got != strings.Repeat("é", MaxPreviewLength)+"..." {
		t.Errorf("SanitizePreview truncation len = %d", len(got))
	}
}

func chatServer(t *testing.T, status int, header map[string]string, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var req struct {
			Model          string `json:"model"`
			ResponseFormat struct {
				Type string `json:"type"`
			} `json:"response_format"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.ResponseFormat.Type != "json_object" {
			t.Errorf("response_format = %q, want json_object", req.ResponseFormat.Type)
		}
		w.Header().Set("Content-Type", "application/json")
		for k, v := range header {
			w.Header().Set(k, v)
		}
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func completion(content string) string {
	b, _ := json.Marshal(content)
	return `{"id":"chatcmpl-1","object":"chat.completion","created":1760000000,"model":"gpt-4o-mini",
		"choices":[{"index":0,"finish_reason":"stop","message":{"role":"assistant","content":` + string(b) + `}}],
		"usage":{"prompt_tokens":120,"completion_tokens":40,"total_tokens":160}}`
}

func TestOpenAIProvider_CategorizeThought(t *testing.T) {
	t.Parallel()

	answer := `{"thought_type":"event","confidence":"high","processed_content":{"title":"Dentist","date":"2026-10-16","time":"04:00 PM"}}`
	srv := chatServer(t, http.StatusOK, nil, completion(answer))
	p := NewOpenAIProvider("sk-test", srv.URL, "", zaptest.NewLogger(t), true)

	got, err := p.CategorizeThought(context.Background(), CategorizationRequest{Text: "dentist friday 4pm"})
	if err != nil {
		t.Fatalf("CategorizeThought() error = %v", err)
	}
	if got.Thought.Type() != nlp.TypeEvent || got.Thought.Title() != "Dentist" {
		t.Errorf("thought = %s %q", got.Thought.Type(), got.Thought.Title())
	}
	if got.Usage.PromptTokens != 120 || got.Usage.CompletionTokens != 40 || got.Usage.Model != DefaultOpenAIModel {
		t.Errorf("usage = %+v", got.Usage)
	}
	if got.Usage.CostUSD <= 0 {
		t.Errorf("CostUSD = %v, want > 0", got.Usage.CostUSD)
	}
}

func TestOpenAIProvider_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		status    int
		header    map[string]string
		body      string
		check     func(error) bool
		wantDelay time.Duration
	}{
		{
			name:   "malformed answer",
			status: http.StatusOK,
			body:   completion("this is a task, I think"),
			check:  func(err error) bool { return errors.Is(err, ErrMalformedResponse) && !IsRetryable(err) },
		},
		{
			name:      "rate limited with retry-after",
			status:    http.StatusTooManyRequests,
			header:    map[string]string{"Retry-After": "1200"},
			body:      `{"error":{"message":"Rate limit reached","type":"requests","code":"rate_limit_exceeded"}}`,
			check:     IsRateLimitError,
			wantDelay: 20 * time.Minute,
		},
		{
			name:      "quota",
			status:    http.StatusTooManyRequests,
			body:      `{"error":{"message":"You exceeded your current quota","type":"insufficient_quota","code":"insufficient_quota"}}`,
			check:     IsQuotaError,
			wantDelay: time.Hour,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			srv := chatServer(t, tt.status, tt.header, tt.body)
			p := NewOpenAIProvider("sk-test", srv.URL, "gpt-4.1-mini", nil, false)
			_, err := p.CategorizeThought(context.Background(), CategorizationRequest{Text: "x"})
			if err == nil || !tt.check(err) {
				t.Fatalf("error = %v, classifier mismatch", err)
			}
			if tt.wantDelay != 0 {
				if got := GetRetryDelay(err, 0); got != tt.wantDelay {
					t.Errorf("GetRetryDelay = %v, want %v", got, tt.wantDelay)
				}
			}
		})
	}
}
