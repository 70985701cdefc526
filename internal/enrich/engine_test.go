package enrich

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/famulus-ai/famulus/internal/convo"
	"github.com/famulus-ai/famulus/internal/llm"
	"github.com/famulus-ai/famulus/internal/models"
)

type fakeCompleter struct {
	response string
	err      error
	calls    int
}

func (f *fakeCompleter) Complete(ctx context.Context, prompt string) (*llm.Result, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &llm.Result{Response: f.response, Latency: time.Millisecond}, nil
}

func newOp(intent models.Intent, collected models.Fields) *convo.PendingOperation {
	return convo.NewPendingOperation(intent, collected, 3)
}

func TestAnalyzeAsksHighestPriorityFirst(t *testing.T) {
	engine := NewEngine(&fakeCompleter{}, nil)

	op := newOp(models.IntentCreateReminder, models.Fields{
		"title": models.StringValue("call Alex"),
	})

	decision := engine.Analyze(op)
	require.False(t, decision.Complete)
	// due_at is high priority; people is only medium even with a call cue.
	assert.Equal(t, "due_at", decision.Field)
	assert.NotEmpty(t, decision.Question)
	assert.NotEmpty(t, decision.Examples)
}

func TestAnalyzeSingleQuestionPerTurn(t *testing.T) {
	engine := NewEngine(&fakeCompleter{}, nil)

	op := newOp(models.IntentCreateReminder, models.Fields{})
	decision := engine.Analyze(op)

	require.False(t, decision.Complete)
	assert.NotEmpty(t, decision.Field)
	// The decision names exactly one field; there is no multi-field form.
}

func TestAnalyzeNeverRepeatsAskedField(t *testing.T) {
	engine := NewEngine(&fakeCompleter{}, nil)

	op := newOp(models.IntentCreateReminder, models.Fields{
		"title": models.StringValue("call Alex"),
	})

	first := engine.Analyze(op)
	require.Equal(t, "due_at", first.Field)
	op.Asked[first.Field] = true

	second := engine.Analyze(op)
	if !second.Complete {
		assert.NotEqual(t, first.Field, second.Field)
	}
}

func TestAnalyzeCompleteWhenTurnsExhausted(t *testing.T) {
	engine := NewEngine(&fakeCompleter{}, nil)

	op := newOp(models.IntentCreateReminder, models.Fields{})
	op.TurnCount = op.MaxTurns

	assert.True(t, engine.Analyze(op).Complete)
}

func TestAnalyzeCompleteOnSkipPriority(t *testing.T) {
	engine := NewEngine(&fakeCompleter{}, nil)

	op := newOp(models.IntentCreateReminder, models.Fields{})
	op.Priority = convo.PrioritySkip

	assert.True(t, engine.Analyze(op).Complete)
}

func TestAnalyzeLowPriorityFieldsNeverAsked(t *testing.T) {
	engine := NewEngine(&fakeCompleter{}, nil)

	// Reminder with title lacking person cues: people is low, location is
	// low, due_at already present. Nothing left worth asking.
	op := newOp(models.IntentCreateReminder, models.Fields{
		"title":  models.StringValue("water the plants"),
		"due_at": models.StringValue("tomorrow"),
	})

	assert.True(t, engine.Analyze(op).Complete)
}

func TestAnalyzeSkipsPermanentlyFailedField(t *testing.T) {
	engine := NewEngine(&fakeCompleter{}, nil)

	op := newOp(models.IntentListAdd, models.Fields{
		"item": models.StringValue("milk"),
	})
	op.FailureCounts["list_name"] = maxFieldFailures

	decision := engine.Analyze(op)
	assert.True(t, decision.Complete)
}

func TestExtractAnswerSkipTokens(t *testing.T) {
	fake := &fakeCompleter{response: `{"value":"should never be called"}`}
	engine := NewEngine(fake, nil)

	for _, token := range []string{"no", "None", " skip ", "DONE", "that's all", "Nope!"} {
		v, err := engine.ExtractAnswer(context.Background(), models.IntentListAdd, "list_name", token)
		require.NoError(t, err, token)
		assert.True(t, v.IsNull(), "token %q should map to null", token)
	}
	assert.Equal(t, 0, fake.calls, "skip tokens must not reach the model")
}

func TestExtractAnswerString(t *testing.T) {
	fake := &fakeCompleter{response: `{"value":"groceries"}`}
	engine := NewEngine(fake, nil)

	v, err := engine.ExtractAnswer(context.Background(), models.IntentListAdd, "list_name", "put it on the groceries one")
	require.NoError(t, err)
	assert.Equal(t, "groceries", v.Str)
}

func TestExtractAnswerList(t *testing.T) {
	fake := &fakeCompleter{response: `{"value":["Alex","Sam"]}`}
	engine := NewEngine(fake, nil)

	v, err := engine.ExtractAnswer(context.Background(), models.IntentCreateReminder, "people", "alex and sam")
	require.NoError(t, err)
	assert.Equal(t, models.FieldStringList, v.Kind)
	assert.Equal(t, []string{"Alex", "Sam"}, v.List)
}

func TestExtractAnswerNullValue(t *testing.T) {
	fake := &fakeCompleter{response: `{"value":null}`}
	engine := NewEngine(fake, nil)

	v, err := engine.ExtractAnswer(context.Background(), models.IntentListAdd, "quantity", "whatever seems right")
	require.NoError(t, err)
	assert.True(t, v.IsNull())
}

func TestExtractAnswerMalformedIsNullNotError(t *testing.T) {
	fake := &fakeCompleter{response: "definitely not json"}
	engine := NewEngine(fake, nil)

	v, err := engine.ExtractAnswer(context.Background(), models.IntentListAdd, "list_name", "groceries")
	require.NoError(t, err)
	assert.True(t, v.IsNull())
}

func TestRuleSetRejectsDuplicates(t *testing.T) {
	_, err := NewRuleSet([]*Rule{
		{Field: "x", Ops: []models.Intent{models.IntentListAdd}, Priority: always(convo.PriorityLow)},
		{Field: "x", Ops: []models.Intent{models.IntentListAdd}, Priority: always(convo.PriorityLow)},
	})
	assert.Error(t, err)
}

func TestBoundedTurnsProperty(t *testing.T) {
	engine := NewEngine(&fakeCompleter{}, nil)

	op := newOp(models.IntentCreateReminder, models.Fields{})
	asked := 0
	for turn := 0; turn < 10; turn++ {
		decision := engine.Analyze(op)
		if decision.Complete {
			break
		}
		asked++
		op.Asked[decision.Field] = true
		op.TurnCount++
	}
	assert.LessOrEqual(t, asked, op.MaxTurns)
	assert.LessOrEqual(t, op.TurnCount, op.MaxTurns)
}
