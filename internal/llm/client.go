package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

// Config holds the extraction client configuration
type Config struct {
	OllamaURL   string  // Default: http://localhost:11434
	Model       string  // Default: qwen2.5:7b
	ContextSize int     // Default: 8192
	Temperature float64 // Default: 0.2
	Timeout     time.Duration
	RateLimit   float64 // Requests per second, 0 disables the gate
	RateBurst   int
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		OllamaURL:   "http://localhost:11434",
		Model:       "qwen2.5:7b",
		ContextSize: 8192,
		Temperature: 0.2, // Extraction wants determinism, not creativity
		Timeout:     30 * time.Second,
		RateLimit:   5,
		RateBurst:   10,
	}
}

// FailureKind classifies extraction call failures so callers can branch
// without string matching.
type FailureKind string

const (
	FailureTimeout   FailureKind = "timeout"
	FailureBackend   FailureKind = "backend"
	FailureMalformed FailureKind = "malformed"
)

// Error is the typed failure returned for every extraction call problem.
// A timeout or malformed completion never surfaces as a panic or a raw
// transport error.
type Error struct {
	Kind FailureKind
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("extraction %s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// IsTimeout reports whether err is an extraction timeout.
func IsTimeout(err error) bool {
	var le *Error
	return errors.As(err, &le) && le.Kind == FailureTimeout
}

// Completer is the one-call contract consumers depend on. The concrete
// Client satisfies it; tests substitute stubs.
type Completer interface {
	Complete(ctx context.Context, prompt string) (*Result, error)
}

// Result holds the outcome of one completion call
type Result struct {
	Response     string
	TokensPerSec float64
	Latency      time.Duration
}

// Client is the extraction client for Ollama
type Client struct {
	config     *Config
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewClient creates a new extraction client
func NewClient(config *Config) *Client {
	if config == nil {
		config = DefaultConfig()
	}

	var limiter *rate.Limiter
	if config.RateLimit > 0 {
		burst := config.RateBurst
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(config.RateLimit), burst)
	}

	return &Client{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		limiter: limiter,
	}
}

// generateRequest is the Ollama /api/generate payload
type generateRequest struct {
	Model       string                 `json:"model"`
	Prompt      string                 `json:"prompt"`
	Stream      bool                   `json:"stream"`
	Temperature float64                `json:"temperature,omitempty"`
	Options     map[string]interface{} `json:"options,omitempty"`
}

// generateResponse is the Ollama /api/generate reply
type generateResponse struct {
	Model         string    `json:"model"`
	CreatedAt     time.Time `json:"created_at"`
	Response      string    `json:"response"`
	Done          bool      `json:"done"`
	TotalDuration int64     `json:"total_duration,omitempty"`
	EvalCount     int       `json:"eval_count,omitempty"`
	EvalDuration  int64     `json:"eval_duration,omitempty"`
}

// Complete performs a synchronous completion with the configured model.
// Timeouts and backend unavailability come back as a typed *Error.
func (c *Client) Complete(ctx context.Context, prompt string) (*Result, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, &Error{Kind: FailureTimeout, Err: err}
		}
	}

	startTime := time.Now()

	req := generateRequest{
		Model:       c.config.Model,
		Prompt:      prompt,
		Stream:      false,
		Temperature: c.config.Temperature,
		Options: map[string]interface{}{
			"num_ctx": c.config.ContextSize,
		},
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, &Error{Kind: FailureMalformed, Err: fmt.Errorf("failed to marshal request: %w", err)}
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", c.config.OllamaURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return nil, &Error{Kind: FailureBackend, Err: fmt.Errorf("failed to create request: %w", err)}
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		kind := FailureBackend
		if errors.Is(err, context.DeadlineExceeded) || isTimeoutErr(err) {
			kind = FailureTimeout
		}
		return nil, &Error{Kind: kind, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return nil, &Error{
			Kind: FailureBackend,
			Err:  fmt.Errorf("unexpected status code %d: %s", resp.StatusCode, string(bodyBytes)),
		}
	}

	var genResp generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&genResp); err != nil {
		return nil, &Error{Kind: FailureMalformed, Err: fmt.Errorf("failed to decode response: %w", err)}
	}

	latency := time.Since(startTime)
	tokensPerSec := 0.0
	if genResp.EvalDuration > 0 && genResp.EvalCount > 0 {
		tokensPerSec = float64(genResp.EvalCount) / (float64(genResp.EvalDuration) / 1e9)
	}

	return &Result{
		Response:     genResp.Response,
		TokensPerSec: tokensPerSec,
		Latency:      latency,
	}, nil
}

// ListModels lists available models
func (c *Client) ListModels(ctx context.Context) ([]string, error) {
	httpReq, err := http.NewRequestWithContext(ctx, "GET", c.config.OllamaURL+"/api/tags", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	var result struct {
		Models []struct {
			Name string `json:"name"`
		} `json:"models"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	names := make([]string, len(result.Models))
	for i, m := range result.Models {
		names[i] = m.Name
	}

	return names, nil
}

func isTimeoutErr(err error) bool {
	type timeout interface{ Timeout() bool }
	var t timeout
	return errors.As(err, &t) && t.Timeout()
}
