package intent

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/famulus-ai/famulus/internal/llm"
	"github.com/famulus-ai/famulus/internal/models"
)

type fakeCompleter struct {
	response string
	err      error
	calls    int
	prompts  []string
}

func (f *fakeCompleter) Complete(ctx context.Context, prompt string) (*llm.Result, error) {
	f.calls++
	f.prompts = append(f.prompts, prompt)
	if f.err != nil {
		return nil, f.err
	}
	return &llm.Result{Response: f.response, Latency: time.Millisecond}, nil
}

func TestClassify(t *testing.T) {
	fake := &fakeCompleter{response: `{"intent":"create_reminder","confidence":0.92,"reasoning":"asks for a reminder","entities":{"title":"call Alex"}}`}
	router := NewRouter(fake, &RouterConfig{ConfidenceThreshold: 0.55})

	c, err := router.Classify(context.Background(), "remind me to call Alex", nil)
	require.NoError(t, err)
	assert.Equal(t, models.IntentCreateReminder, c.Intent)
	assert.InDelta(t, 0.92, c.Confidence, 1e-9)
	assert.Equal(t, "call Alex", c.Entities["title"].Str)
}

func TestClassifyLowConfidenceBecomesConverse(t *testing.T) {
	fake := &fakeCompleter{response: `{"intent":"create_reminder","confidence":0.3,"reasoning":"maybe"}`}
	router := NewRouter(fake, &RouterConfig{ConfidenceThreshold: 0.55})

	c, err := router.Classify(context.Background(), "hmm not sure", nil)
	require.NoError(t, err)
	assert.Equal(t, models.IntentConverse, c.Intent)
}

func TestClassifyUnknownIntentFallsBack(t *testing.T) {
	fake := &fakeCompleter{response: `{"intent":"send_rocket","confidence":0.99}`}
	router := NewRouter(fake, &RouterConfig{ConfidenceThreshold: 0.55})

	c, err := router.Classify(context.Background(), "launch it", nil)
	require.NoError(t, err)
	assert.Equal(t, models.IntentConverse, c.Intent)
}

func TestClassifyMalformedOutputDowngrades(t *testing.T) {
	fake := &fakeCompleter{response: "I am unable to answer in JSON"}
	router := NewRouter(fake, &RouterConfig{ConfidenceThreshold: 0.55})

	c, err := router.Classify(context.Background(), "add milk", nil)
	require.NoError(t, err)
	assert.Equal(t, models.IntentConverse, c.Intent)
	assert.Equal(t, 0.0, c.Confidence)
}

func TestClassifyIncludesRecentIntents(t *testing.T) {
	fake := &fakeCompleter{response: `{"intent":"list_add","confidence":0.9}`}
	router := NewRouter(fake, &RouterConfig{ConfidenceThreshold: 0.55})

	_, err := router.Classify(context.Background(), "and eggs too", []models.Intent{models.IntentListAdd})
	require.NoError(t, err)
	require.Len(t, fake.prompts, 1)
	assert.Contains(t, fake.prompts[0], "list_add")
}

// The entity keys the prompt asks for must be the keys the enrichment
// rules and tools read, or inline values get re-asked.
func TestClassifyPromptUsesCanonicalEntityKeys(t *testing.T) {
	fake := &fakeCompleter{response: `{"intent":"create_reminder","confidence":0.9,"entities":{"title":"call Alex","due_at":"tomorrow 9am"}}`}
	router := NewRouter(fake, &RouterConfig{ConfidenceThreshold: 0.55})

	c, err := router.Classify(context.Background(), "remind me tomorrow 9am to call Alex", nil)
	require.NoError(t, err)
	require.Len(t, fake.prompts, 1)
	for _, key := range []string{"title", "due_at", "item", "list_name", "statement", "query"} {
		assert.Contains(t, fake.prompts[0], key)
	}
	assert.NotContains(t, fake.prompts[0], "due_phrase")
	assert.Equal(t, "tomorrow 9am", c.Entities["due_at"].Str)
}

func TestClassifyCacheHitSkipsModel(t *testing.T) {
	fake := &fakeCompleter{response: `{"intent":"list_add","confidence":0.9,"entities":{"item":"milk"}}`}
	router := NewRouter(fake, &RouterConfig{ConfidenceThreshold: 0.55, CacheTTL: 60})

	_, err := router.Classify(context.Background(), "add milk", nil)
	require.NoError(t, err)

	c, err := router.Classify(context.Background(), "Add Milk ", nil)
	require.NoError(t, err)

	assert.Equal(t, 1, fake.calls)
	assert.Equal(t, models.IntentListAdd, c.Intent)
}

func TestNormalizeIntent(t *testing.T) {
	assert.Equal(t, models.IntentStoreFact, normalizeIntent(" Store_Fact "))
	assert.Equal(t, models.IntentConverse, normalizeIntent("none"))
	assert.Equal(t, models.IntentConverse, normalizeIntent(""))
}
