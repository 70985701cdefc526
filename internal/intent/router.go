// Package intent classifies incoming messages into the assistant's closed
// set of operation categories. Classification is semantic, one extraction
// call per message; there is no keyword matching.
package intent

import (
	"context"
	"fmt"
	"strings"

	"github.com/famulus-ai/famulus/internal/llm"
	"github.com/famulus-ai/famulus/internal/models"
)

// Classification is the router's output for one message.
type Classification struct {
	Intent     models.Intent
	Confidence float64
	Entities   models.Fields
	Reasoning  string
}

// RouterConfig holds router configuration
type RouterConfig struct {
	// ConfidenceThreshold under which the result downgrades to converse.
	// A low-confidence guess must never trigger a storage action.
	ConfidenceThreshold float64
	CacheTTL            int // Seconds; 0 disables the routing cache
}

// DefaultRouterConfig returns the default router configuration
func DefaultRouterConfig() *RouterConfig {
	return &RouterConfig{
		ConfidenceThreshold: 0.55,
		CacheTTL:            120,
	}
}

// Router classifies messages using the extraction client.
type Router struct {
	client llm.Completer
	config *RouterConfig
	cache  *Cache
}

// NewRouter creates a new intent router
func NewRouter(client llm.Completer, config *RouterConfig) *Router {
	if config == nil {
		config = DefaultRouterConfig()
	}

	r := &Router{
		client: client,
		config: config,
	}
	if config.CacheTTL > 0 {
		r.cache = NewCache(config.CacheTTL)
	}
	return r
}

// routingDecision is the model's JSON reply shape
type routingDecision struct {
	Intent     string            `json:"intent"`
	Confidence float64           `json:"confidence"`
	Reasoning  string            `json:"reasoning"`
	Entities   map[string]string `json:"entities,omitempty"`
}

// Classify routes one message. Classification failures and low confidence
// both resolve to converse rather than an error the caller must handle;
// ambiguity must never block a conversation.
func (r *Router) Classify(ctx context.Context, message string, recent []models.Intent) (*Classification, error) {
	if r.cache != nil {
		if cached, ok := r.cache.Get(message); ok {
			return cached, nil
		}
	}

	prompt := r.buildPrompt(message, recent)

	result, err := r.client.Complete(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("classification failed: %w", err)
	}

	var decision routingDecision
	if err := llm.DecodeJSON(result.Response, &decision); err != nil {
		// Unparseable output downgrades to converse instead of failing.
		return &Classification{Intent: models.IntentConverse, Confidence: 0}, nil
	}

	classification := &Classification{
		Intent:     normalizeIntent(decision.Intent),
		Confidence: llm.ClampConfidence(decision.Confidence),
		Entities:   entitiesToFields(decision.Entities),
		Reasoning:  decision.Reasoning,
	}

	if classification.Confidence < r.config.ConfidenceThreshold {
		classification.Intent = models.IntentConverse
		classification.Entities = nil
	}

	if r.cache != nil {
		r.cache.Set(message, classification)
	}

	return classification, nil
}

// buildPrompt creates the classification prompt
func (r *Router) buildPrompt(message string, recent []models.Intent) string {
	recentStr := "none"
	if len(recent) > 0 {
		parts := make([]string, len(recent))
		for i, in := range recent {
			parts[i] = string(in)
		}
		recentStr = strings.Join(parts, ", ")
	}

	return fmt.Sprintf(`You are the intent router of a personal assistant.

Available intents:
- store_fact: the user states something to remember ("my sister's birthday is in June")
- query_fact: the user asks about something they told the assistant before
- create_reminder: the user wants a reminder or task created
- query_reminders: the user asks what is due or upcoming
- list_add: the user adds an item to a named list ("add milk")
- list_query: the user asks what is on a list
- converse: greetings, small talk, anything unclear

Recent intents in this conversation: %s

User message: %s

IMPORTANT RULES:
- For conversational or unclear messages use "converse" with low confidence
- NEVER invent an intent outside the list above
- Extract obvious entities into the entities object (title, due_at, people, location, item, list_name, quantity, statement, query)

Respond with ONLY a JSON object:
{
  "intent": "store_fact|query_fact|create_reminder|query_reminders|list_add|list_query|converse",
  "confidence": 0.0-1.0,
  "reasoning": "brief explanation",
  "entities": {"field": "value"}
}

JSON Response:`, recentStr, message)
}

// normalizeIntent converts model output to an intent constant, falling
// back to converse for anything unrecognized.
func normalizeIntent(s string) models.Intent {
	normalized := models.Intent(strings.ToLower(strings.TrimSpace(s)))
	for _, in := range models.AllIntents {
		if normalized == in {
			return in
		}
	}
	return models.IntentConverse
}

// entitiesToFields converts extracted entities to typed field values.
func entitiesToFields(entities map[string]string) models.Fields {
	if len(entities) == 0 {
		return nil
	}
	fields := make(models.Fields, len(entities))
	for k, v := range entities {
		fv := models.StringValue(v)
		if fv.IsNull() {
			continue
		}
		fields[strings.ToLower(strings.TrimSpace(k))] = fv
	}
	return fields
}
