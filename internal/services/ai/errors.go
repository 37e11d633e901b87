package ai

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/openai/openai-go/v3"
)

var (
	// ErrMalformedResponse means the model answered with something that is not a valid thought.
	ErrMalformedResponse = errors.New("malformed categorization response")
	// ErrNoChoices means the API returned no completion.
	ErrNoChoices = errors.New("no choices in response")
)

// APIError represents an error from the AI provider API
type APIError struct {
	Message     string
	Type        string
	Code        string
	StatusCode  int
	RetryAfter  *time.Duration
	IsPermanent bool // quota exhaustion; rate limits are transient
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error (status %d, type %s): %s", e.StatusCode, e.Type, e.Message)
}

// IsRateLimitError checks if an error is a transient rate limit
func IsRateLimitError(err error) bool {
	if err == nil {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == http.StatusTooManyRequests && !apiErr.IsPermanent
	}
	s := strings.ToLower(err.Error())
	return strings.Contains(s, "429") || strings.Contains(s, "rate limit") || strings.Contains(s, "too many requests")
}

// IsQuotaError checks if an error is quota exhaustion
func IsQuotaError(err error) bool {
	if err == nil {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.IsPermanent || apiErr.Code == "insufficient_quota"
	}
	s := strings.ToLower(err.Error())
	return strings.Contains(s, "insufficient_quota") || strings.Contains(s, "billing")
}

// IsContextLengthError checks if the prompt was too long for the model
func IsContextLengthError(err error) bool {
	if err == nil {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code == "context_length_exceeded"
	}
	return strings.Contains(err.Error(), "context_length_exceeded")
}

// IsRetryable reports whether retrying the same request can succeed.
// Malformed answers and oversize prompts are final; so are 4xx other than 408/429.
func IsRetryable(err error) bool {
	if err == nil || errors.Is(err, ErrMalformedResponse) || IsContextLengthError(err) {
		return false
	}
	if IsRateLimitError(err) || IsQuotaError(err) {
		return true
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode >= 400 && apiErr.StatusCode < 500 {
		return apiErr.StatusCode == http.StatusRequestTimeout
	}
	return true
}

// fromOpenAI converts an SDK error into an *APIError, or returns err unchanged.
func fromOpenAI(err error) error {
	var sdkErr *openai.Error
	if !errors.As(err, &sdkErr) {
		return err
	}
	apiErr := &APIError{
		Message:    sdkErr.Message,
		Type:       sdkErr.Type,
		Code:       sdkErr.Code,
		StatusCode: sdkErr.StatusCode,
	}
	if apiErr.Message == "" {
		apiErr.Message = err.Error()
	}
	if apiErr.Code == "" && strings.Contains(err.Error(), "insufficient_quota") {
		apiErr.Code = "insufficient_quota"
	}
	if apiErr.Code == "insufficient_quota" {
		apiErr.IsPermanent = true
	}
	if sdkErr.Response != nil {
		apiErr.RetryAfter = parseRetryAfter(sdkErr.Response.Header.Get("Retry-After"))
	}
	return apiErr
}

func parseRetryAfter(v string) *time.Duration {
	secs, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || secs <= 0 {
		return nil
	}
	d := time.Duration(secs) * time.Second
	return &d
}

// GetRetryDelay returns the backoff before retry attempt (0-based) for err.
// Quota errors start at an hour, rate limits at a minute (or the server's
// Retry-After when longer), anything else at five seconds.
func GetRetryDelay(err error, attempt int) time.Duration {
	shift := min(max(attempt, 0), 10)
	backoff := func(base, ceiling time.Duration) time.Duration {
		return min(base*time.Duration(1<<shift), ceiling)
	}

	switch {
	case IsQuotaError(err):
		return backoff(time.Hour, 24*time.Hour)
	case IsRateLimitError(err):
		delay := backoff(time.Minute, 15*time.Minute)
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.RetryAfter != nil && *apiErr.RetryAfter > delay {
			delay = *apiErr.RetryAfter
		}
		return delay
	default:
		return backoff(5*time.Second, 5*time.Minute)
	}
}
