package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFakeOllama(t *testing.T, response string, delay time.Duration) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if delay > 0 {
			time.Sleep(delay)
		}
		if r.URL.Path != "/api/generate" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		json.NewEncoder(w).Encode(generateResponse{
			Model:        "test",
			Response:     response,
			Done:         true,
			EvalCount:    10,
			EvalDuration: int64(time.Second),
		})
	}))
}

func TestClientDefaults(t *testing.T) {
	client := NewClient(nil)
	require.NotNil(t, client)
	assert.Equal(t, "http://localhost:11434", client.config.OllamaURL)

	custom := &Config{
		OllamaURL:   "http://custom:11434",
		Model:       "qwen2.5:14b",
		ContextSize: 16384,
		Temperature: 0.5,
		Timeout:     time.Minute,
	}
	client = NewClient(custom)
	assert.Equal(t, "qwen2.5:14b", client.config.Model)
}

func TestComplete(t *testing.T) {
	srv := newFakeOllama(t, "hello there", 0)
	defer srv.Close()

	client := NewClient(&Config{
		OllamaURL: srv.URL,
		Model:     "test",
		Timeout:   5 * time.Second,
	})

	result, err := client.Complete(context.Background(), "say hello")
	require.NoError(t, err)
	assert.Equal(t, "hello there", result.Response)
	assert.Greater(t, result.TokensPerSec, 0.0)
}

func TestCompleteTimeoutIsTyped(t *testing.T) {
	srv := newFakeOllama(t, "too slow", 200*time.Millisecond)
	defer srv.Close()

	client := NewClient(&Config{
		OllamaURL: srv.URL,
		Model:     "test",
		Timeout:   20 * time.Millisecond,
	})

	_, err := client.Complete(context.Background(), "say hello")
	require.Error(t, err)
	assert.True(t, IsTimeout(err), "expected typed timeout, got %v", err)
}

func TestCompleteBackendErrorIsTyped(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := NewClient(&Config{OllamaURL: srv.URL, Model: "test", Timeout: time.Second})

	_, err := client.Complete(context.Background(), "anything")
	require.Error(t, err)

	var le *Error
	require.ErrorAs(t, err, &le)
	assert.Equal(t, FailureBackend, le.Kind)
}

func TestCleanJSON(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"bare object", `{"a":1}`, `{"a":1}`},
		{"fenced", "```json\n{\"a\":1}\n```", `{"a":1}`},
		{"fenced no lang", "```\n{\"a\":1}\n```", `{"a":1}`},
		{"prose around object", `Sure! {"a":1} Hope that helps.`, `{"a":1}`},
		{"array", `here you go: [1,2,3]`, `[1,2,3]`},
		{"array before object text", `[{"a":1}] trailing`, `[{"a":1}]`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, CleanJSON(tc.in))
		})
	}
}

func TestDecodeJSONMalformed(t *testing.T) {
	var out map[string]interface{}
	err := DecodeJSON("I could not produce JSON today", &out)
	require.Error(t, err)

	var le *Error
	require.ErrorAs(t, err, &le)
	assert.Equal(t, FailureMalformed, le.Kind)
}

func TestClampConfidence(t *testing.T) {
	assert.Equal(t, 0.0, ClampConfidence(-0.5))
	assert.Equal(t, 1.0, ClampConfidence(3))
	assert.Equal(t, 0.7, ClampConfidence(0.7))
}
