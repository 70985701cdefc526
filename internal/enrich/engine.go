package enrich

import (
	"context"
	"fmt"
	"strings"

	"github.com/famulus-ai/famulus/internal/convo"
	"github.com/famulus-ai/famulus/internal/llm"
	"github.com/famulus-ai/famulus/internal/models"
)

// maxFieldFailures marks a field permanently skipped after this many
// consecutive extraction failures, so one stubborn field cannot loop a
// conversation forever.
const maxFieldFailures = 3

// skipTokens are recognized without a model call. Any of these as a
// whole answer means "no value for this field".
var skipTokens = map[string]bool{
	"no":          true,
	"none":        true,
	"nope":        true,
	"nah":         true,
	"skip":        true,
	"done":        true,
	"nothing":     true,
	"no thanks":   true,
	"that's all":  true,
	"that is all": true,
	"thats all":   true,
}

// Decision is the outcome of analyzing a pending operation.
type Decision struct {
	Complete bool
	Field    string
	Question string
	Examples []string
}

// Engine decides which follow-up question to ask next and parses the
// answers back into typed field values.
type Engine struct {
	client llm.Completer
	rules  *RuleSet
}

// NewEngine creates an enrichment engine
func NewEngine(client llm.Completer, rules *RuleSet) *Engine {
	if rules == nil {
		rules = DefaultRules()
	}
	return &Engine{client: client, rules: rules}
}

// Rules exposes the engine's rule set.
func (e *Engine) Rules() *RuleSet { return e.rules }

// Analyze selects the single highest-priority unanswered field for the
// pending operation, or reports the operation complete. Guarantees: at
// most one field per call, a field is never selected twice, and once the
// turn budget is spent the answer is always complete.
func (e *Engine) Analyze(op *convo.PendingOperation) Decision {
	if op.TurnCount >= op.MaxTurns {
		return Decision{Complete: true}
	}
	if op.Priority == convo.PrioritySkip {
		return Decision{Complete: true}
	}

	var best *Rule
	var bestPriority convo.Priority

	for _, rule := range e.rules.RulesFor(op.OperationType) {
		if op.Collected.Has(rule.Field) || op.Asked[rule.Field] {
			continue
		}
		if op.FailureCounts[rule.Field] >= maxFieldFailures {
			continue
		}

		priority := rule.Priority(op.Collected)
		if priority != convo.PriorityHigh && priority != convo.PriorityMedium {
			continue
		}
		if best == nil || (priority == convo.PriorityHigh && bestPriority == convo.PriorityMedium) {
			best = rule
			bestPriority = priority
		}
	}

	if best == nil {
		return Decision{Complete: true}
	}

	return Decision{
		Field:    best.Field,
		Question: best.Question,
		Examples: best.Examples,
	}
}

// answerPayload is the extraction reply shape for answers
type answerPayload struct {
	Value interface{} `json:"value"`
}

// ExtractAnswer coerces a free-text answer into the field's expected
// shape. Skip tokens and unparseable extractions both yield a null value;
// malformed input is a valid outcome, never an error the caller must
// special-case.
func (e *Engine) ExtractAnswer(ctx context.Context, op models.Intent, field, rawAnswer string) (models.FieldValue, error) {
	if IsSkip(rawAnswer) {
		return models.NullValue(), nil
	}

	trimmed := strings.TrimSpace(rawAnswer)
	if trimmed == "" {
		return models.NullValue(), nil
	}

	shape := ShapeString
	if rule, ok := e.rules.Find(op, field); ok {
		shape = rule.Shape
	}

	result, err := e.client.Complete(ctx, e.buildExtractionPrompt(field, shape, trimmed))
	if err != nil {
		return models.NullValue(), fmt.Errorf("answer extraction for %q: %w", field, err)
	}

	var payload answerPayload
	if err := llm.DecodeJSON(result.Response, &payload); err != nil {
		return models.NullValue(), nil
	}

	return coerceValue(payload.Value, shape), nil
}

// IsSkip reports whether an answer is a recognized skip/negative token.
// This is a pure string check, no model call.
func IsSkip(answer string) bool {
	normalized := strings.ToLower(strings.TrimSpace(answer))
	normalized = strings.TrimRight(normalized, ".!")
	return skipTokens[normalized]
}

func (e *Engine) buildExtractionPrompt(field string, shape Shape, answer string) string {
	var hint string
	switch shape {
	case ShapeStringList:
		hint = `a JSON array of short strings, e.g. {"value": ["Alex", "Sam"]}`
	case ShapeDatePhrase:
		hint = `the date/time phrase as a single string, e.g. {"value": "tomorrow 9am"}`
	default:
		hint = `a single short string, e.g. {"value": "groceries"}`
	}

	return fmt.Sprintf(`Extract the %s from the user's answer.

User's answer: %s

If the answer does not contain a usable value, respond {"value": null}.
Otherwise respond with ONLY a JSON object holding %s.

JSON Response:`, strings.ReplaceAll(field, "_", " "), answer, hint)
}

// coerceValue maps the loosely typed JSON value into the tagged union.
func coerceValue(v interface{}, shape Shape) models.FieldValue {
	switch val := v.(type) {
	case nil:
		return models.NullValue()
	case string:
		if shape == ShapeStringList {
			return splitList(val)
		}
		return models.StringValue(val)
	case float64:
		return models.NumberValue(val)
	case []interface{}:
		items := make([]string, 0, len(val))
		for _, item := range val {
			if s, ok := item.(string); ok && strings.TrimSpace(s) != "" {
				items = append(items, strings.TrimSpace(s))
			}
		}
		if shape == ShapeStringList {
			return models.ListValue(items)
		}
		return models.StringValue(strings.Join(items, ", "))
	}
	return models.NullValue()
}

func splitList(s string) models.FieldValue {
	parts := strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ';' })
	items := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(p), "and "))
		if p != "" {
			items = append(items, p)
		}
	}
	return models.ListValue(items)
}
