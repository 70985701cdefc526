// Package assistant is the orchestration core: it serializes message
// handling per conversation, routes intents, drives the enrichment state
// machine and the tool validation-retry loop, and dispatches queries to
// the search coordinator. Nothing below this layer talks to the user;
// every internal failure is converted into a natural-language reply here.
package assistant

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/famulus-ai/famulus/internal/audit"
	"github.com/famulus-ai/famulus/internal/convo"
	"github.com/famulus-ai/famulus/internal/enrich"
	"github.com/famulus-ai/famulus/internal/intent"
	"github.com/famulus-ai/famulus/internal/llm"
	"github.com/famulus-ai/famulus/internal/models"
	"github.com/famulus-ai/famulus/internal/search"
	"github.com/famulus-ai/famulus/internal/tools"
)

const (
	defaultMaxToolRetries = 3

	apologyReply = "Sorry, something went wrong on my end. Please try again in a moment."
)

// cancelTokens abort the pending operation without a model call.
var cancelTokens = map[string]bool{
	"cancel":          true,
	"never mind":      true,
	"nevermind":       true,
	"forget it":       true,
	"stop":            true,
	"abort":           true,
	"drop it":         true,
	"actually no":     true,
	"cancel that":     true,
	"forget about it": true,
}

// toolForIntent maps store-type intents to their tool names.
var toolForIntent = map[models.Intent]string{
	models.IntentCreateReminder: "reminder.create",
	models.IntentListAdd:        "list.add",
	models.IntentStoreFact:      "memory.store",
}

// intentForTool is the reverse mapping, used when re-extracting a field
// for a pending tool call.
var intentForTool = func() map[string]models.Intent {
	m := make(map[string]models.Intent, len(toolForIntent))
	for in, tool := range toolForIntent {
		m[tool] = in
	}
	return m
}()

// Config holds orchestrator tunables
type Config struct {
	MaxToolRetries int
}

// DefaultConfig returns the default orchestrator configuration
func DefaultConfig() *Config {
	return &Config{MaxToolRetries: defaultMaxToolRetries}
}

// Orchestrator coordinates one turn of conversation end to end.
type Orchestrator struct {
	config      *Config
	contexts    *convo.Store
	router      *intent.Router
	engine      *enrich.Engine
	registry    *tools.Registry
	coordinator *search.Coordinator
	model       llm.Completer
	auditor     *audit.Log
	logger      *zap.Logger
}

// New creates an orchestrator. auditor may be nil.
func New(
	config *Config,
	contexts *convo.Store,
	router *intent.Router,
	engine *enrich.Engine,
	registry *tools.Registry,
	coordinator *search.Coordinator,
	model llm.Completer,
	auditor *audit.Log,
	logger *zap.Logger,
) *Orchestrator {
	if config == nil {
		config = DefaultConfig()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		config:      config,
		contexts:    contexts,
		router:      router,
		engine:      engine,
		registry:    registry,
		coordinator: coordinator,
		model:       model,
		auditor:     auditor,
		logger:      logger,
	}
}

// HandleMessage processes one inbound message and always produces a
// reply. Turns for the same conversation are serialized; different
// conversations proceed concurrently.
func (o *Orchestrator) HandleMessage(ctx context.Context, msg *models.InboundMessage) *models.OutboundMessage {
	release := o.contexts.Acquire(msg.ConversationID)
	defer release()

	text, ok := normalizeInbound(msg)
	if !ok {
		return o.reply(msg, "I can't do anything with that attachment yet, but text, voice and location all work.")
	}

	if cc, live := o.contexts.Get(msg.ConversationID); live {
		if isCancel(text) {
			o.contexts.Delete(msg.ConversationID)
			return o.reply(msg, "Okay, cancelled.")
		}
		if cc.PendingCall != nil {
			return o.resumeToolCall(ctx, msg, cc, text)
		}
		if cc.Pending != nil {
			return o.resumeEnrichment(ctx, msg, cc, text)
		}
		// A context without pending work should not exist; treat as fresh.
		o.contexts.Delete(msg.ConversationID)
	}

	return o.handleFresh(ctx, msg, text)
}

// handleFresh classifies a message with no live context and dispatches it.
func (o *Orchestrator) handleFresh(ctx context.Context, msg *models.InboundMessage, text string) *models.OutboundMessage {
	classification, err := o.router.Classify(ctx, text, o.contexts.RecentIntents(msg.ConversationID))
	if err != nil {
		o.logger.Error("classification failed",
			zap.String("conversation_id", msg.ConversationID),
			zap.Error(err))
		return o.reply(msg, apologyReply)
	}
	o.contexts.PushIntent(msg.ConversationID, classification.Intent)

	o.logger.Info("message classified",
		zap.String("conversation_id", msg.ConversationID),
		zap.String("intent", string(classification.Intent)),
		zap.Float64("confidence", classification.Confidence))

	switch classification.Intent {
	case models.IntentCreateReminder, models.IntentListAdd, models.IntentStoreFact:
		return o.startOperation(ctx, msg, classification)
	case models.IntentQueryReminders:
		return o.runQueryTool(ctx, msg, "reminder.query", classification.Entities)
	case models.IntentListQuery:
		return o.runQueryTool(ctx, msg, "list.query", classification.Entities)
	case models.IntentQueryFact:
		return o.runSearch(ctx, msg, text)
	default:
		return o.converse(ctx, msg, text)
	}
}

// startOperation begins a store-type operation: seed the collected
// fields from routing entities, ask at most one enrichment question, or
// go straight to the tool when nothing is worth asking.
func (o *Orchestrator) startOperation(ctx context.Context, msg *models.InboundMessage, c *intent.Classification) *models.OutboundMessage {
	op := convo.NewPendingOperation(c.Intent, c.Entities, o.contexts.MaxTurns())

	decision := o.engine.Analyze(op)
	if decision.Complete {
		return o.executeTool(ctx, msg, nil, op.OperationType, op.Collected)
	}

	op.Asked[decision.Field] = true
	op.AwaitingField = decision.Field

	cc := &convo.Context{
		ConversationID: msg.ConversationID,
		UserID:         msg.UserID,
		LastMessage:    msg.Text,
		Pending:        op,
	}
	question := renderQuestion(decision)
	cc.LastReply = question

	if err := o.contexts.Put(cc); err != nil {
		o.logger.Warn("context write superseded",
			zap.String("conversation_id", msg.ConversationID),
			zap.Error(err))
	}
	return o.reply(msg, question)
}

// resumeEnrichment consumes the user's answer to the outstanding
// question, merges the extracted value, and either asks the next
// question or hands off to the tool.
func (o *Orchestrator) resumeEnrichment(ctx context.Context, msg *models.InboundMessage, cc *convo.Context, text string) *models.OutboundMessage {
	op := cc.Pending
	op.TurnCount++
	field := op.AwaitingField

	value, err := o.engine.ExtractAnswer(ctx, op.OperationType, field, text)
	if err != nil {
		op.FailureCounts[field]++
		o.logger.Warn("answer extraction failed",
			zap.String("conversation_id", msg.ConversationID),
			zap.String("field", field),
			zap.Error(err))
	}
	if !value.IsNull() {
		op.Collected = op.Collected.Merge(models.Fields{field: value})
	}

	decision := o.engine.Analyze(op)
	if decision.Complete {
		o.contexts.Delete(msg.ConversationID)
		return o.executeTool(ctx, msg, cc, op.OperationType, op.Collected)
	}

	op.Asked[decision.Field] = true
	op.AwaitingField = decision.Field
	cc.LastMessage = msg.Text
	question := renderQuestion(decision)
	cc.LastReply = question

	if err := o.contexts.Put(cc); err != nil {
		o.logger.Warn("context write superseded",
			zap.String("conversation_id", msg.ConversationID),
			zap.Error(err))
	}
	return o.reply(msg, question)
}

// executeTool runs the tool for a completed operation. A validation
// rejection parks the call for a bounded retry; any other failure clears
// the conversation and apologizes.
func (o *Orchestrator) executeTool(ctx context.Context, msg *models.InboundMessage, cc *convo.Context, op models.Intent, args models.Fields) *models.OutboundMessage {
	toolName, ok := toolForIntent[op]
	if !ok {
		o.logger.Error("no tool for operation",
			zap.String("operation", string(op)))
		return o.reply(msg, apologyReply)
	}
	return o.invokeTool(ctx, msg, cc, toolName, args, 0)
}

// invokeTool performs one tool invocation attempt plus its audit record.
func (o *Orchestrator) invokeTool(ctx context.Context, msg *models.InboundMessage, cc *convo.Context, toolName string, args models.Fields, retryCount int) *models.OutboundMessage {
	tool, ok := o.registry.Get(toolName)
	if !ok {
		o.logger.Error("tool not registered", zap.String("tool", toolName))
		return o.reply(msg, apologyReply)
	}

	start := time.Now()
	result, err := tool.Execute(ctx, msg.UserID, args)
	o.auditToolCall(ctx, msg, toolName, args, err, time.Since(start))

	if err == nil {
		o.logWarnings(msg, toolName, result)
		o.contexts.Delete(msg.ConversationID)
		return o.reply(msg, result.Message)
	}

	ve, isValidation := tools.AsValidation(err)
	if !isValidation {
		o.logger.Error("tool execution failed",
			zap.String("conversation_id", msg.ConversationID),
			zap.String("tool", toolName),
			zap.Error(err))
		o.contexts.Delete(msg.ConversationID)
		return o.reply(msg, apologyReply)
	}

	if retryCount >= o.config.MaxToolRetries {
		o.logger.Warn("tool retries exhausted",
			zap.String("conversation_id", msg.ConversationID),
			zap.String("tool", toolName),
			zap.String("field", ve.Field))
		o.contexts.Delete(msg.ConversationID)
		return o.reply(msg, "I couldn't get that sorted after a few tries. Let's start over when you're ready.")
	}

	pending := &convo.Context{
		ConversationID: msg.ConversationID,
		UserID:         msg.UserID,
		LastMessage:    msg.Text,
		LastReply:      ve.Question,
		PendingCall: &convo.PendingToolCall{
			ToolName:     toolName,
			Args:         args,
			InvalidField: ve.Field,
			Question:     ve.Question,
			RetryCount:   retryCount,
		},
	}
	if cc != nil {
		pending.CreatedAt = cc.CreatedAt
		pending.Version = cc.Version
	}
	if err := o.contexts.Put(pending); err != nil {
		o.logger.Warn("context write superseded",
			zap.String("conversation_id", msg.ConversationID),
			zap.Error(err))
	}
	return o.reply(msg, ve.Question)
}

// resumeToolCall patches the rejected field from the user's new answer
// and re-invokes the tool.
func (o *Orchestrator) resumeToolCall(ctx context.Context, msg *models.InboundMessage, cc *convo.Context, text string) *models.OutboundMessage {
	pc := cc.PendingCall

	op := intentForTool[pc.ToolName]
	value, err := o.engine.ExtractAnswer(ctx, op, pc.InvalidField, text)
	if err != nil {
		o.logger.Warn("retry answer extraction failed",
			zap.String("conversation_id", msg.ConversationID),
			zap.String("field", pc.InvalidField),
			zap.Error(err))
	}
	if value.IsNull() {
		// Fall back to the raw text; the tool revalidates anyway.
		value = models.StringValue(strings.TrimSpace(text))
	}

	args := make(models.Fields, len(pc.Args)+1)
	for k, v := range pc.Args {
		args[k] = v
	}
	args[pc.InvalidField] = value

	return o.invokeTool(ctx, msg, cc, pc.ToolName, args, pc.RetryCount+1)
}

// runQueryTool executes a read-only tool directly; queries have no
// enrichment phase.
func (o *Orchestrator) runQueryTool(ctx context.Context, msg *models.InboundMessage, toolName string, args models.Fields) *models.OutboundMessage {
	tool, ok := o.registry.Get(toolName)
	if !ok {
		o.logger.Error("tool not registered", zap.String("tool", toolName))
		return o.reply(msg, apologyReply)
	}

	start := time.Now()
	result, err := tool.Execute(ctx, msg.UserID, args)
	o.auditToolCall(ctx, msg, toolName, args, err, time.Since(start))
	if err != nil {
		o.logger.Error("query tool failed",
			zap.String("conversation_id", msg.ConversationID),
			zap.String("tool", toolName),
			zap.Error(err))
		return o.reply(msg, apologyReply)
	}
	o.logWarnings(msg, toolName, result)
	return o.reply(msg, result.Message)
}

// logWarnings records a tool's non-fatal internal failures against the
// conversation.
func (o *Orchestrator) logWarnings(msg *models.InboundMessage, toolName string, result *tools.Result) {
	for _, w := range result.Warnings {
		o.logger.Warn("tool warning",
			zap.String("conversation_id", msg.ConversationID),
			zap.String("tool", toolName),
			zap.String("warning", w))
	}
}

// runSearch sends a query through the tiered search coordinator and
// renders the aggregated result.
func (o *Orchestrator) runSearch(ctx context.Context, msg *models.InboundMessage, query string) *models.OutboundMessage {
	agg, err := o.coordinator.Search(ctx, msg.ConversationID, msg.UserID, query)
	if err != nil {
		o.logger.Error("search failed",
			zap.String("conversation_id", msg.ConversationID),
			zap.Error(err))
		return o.reply(msg, apologyReply)
	}

	if agg.Fallback != nil {
		if agg.Fallback.Kind == search.FallbackGeneral {
			return o.reply(msg, agg.Fallback.Answer+" (This isn't from your stored data.)")
		}
		return o.reply(msg, agg.Fallback.Answer)
	}

	var b strings.Builder
	b.WriteString("Here's what I found:\n")
	for _, item := range agg.Items {
		fmt.Fprintf(&b, "- %s\n", item.Display)
	}
	return o.reply(msg, strings.TrimRight(b.String(), "\n"))
}

const conversePrompt = `You are a concise, friendly personal assistant. Reply to the user's
message in one or two sentences. Do not invent stored data.

User: %s

Reply:`

// converse produces a plain chat reply for messages with no actionable
// intent.
func (o *Orchestrator) converse(ctx context.Context, msg *models.InboundMessage, text string) *models.OutboundMessage {
	result, err := o.model.Complete(ctx, fmt.Sprintf(conversePrompt, text))
	if err != nil {
		o.logger.Warn("converse completion failed",
			zap.String("conversation_id", msg.ConversationID),
			zap.Error(err))
		return o.reply(msg, apologyReply)
	}
	return o.reply(msg, strings.TrimSpace(result.Response))
}

func (o *Orchestrator) auditToolCall(ctx context.Context, msg *models.InboundMessage, toolName string, args models.Fields, execErr error, duration time.Duration) {
	if o.auditor == nil {
		return
	}
	rec := &models.ToolCallRecord{
		Tool:           toolName,
		ConversationID: msg.ConversationID,
		UserID:         msg.UserID,
		Args:           args,
		Success:        execErr == nil,
		Duration:       duration,
		Timestamp:      time.Now(),
	}
	if execErr != nil {
		rec.Error = execErr.Error()
	}
	if err := o.auditor.ToolCall(ctx, rec); err != nil {
		o.logger.Warn("audit write failed", zap.Error(err))
	}
}

func (o *Orchestrator) reply(msg *models.InboundMessage, text string) *models.OutboundMessage {
	return &models.OutboundMessage{ConversationID: msg.ConversationID, Text: text}
}

// renderQuestion appends example answers to an enrichment question.
func renderQuestion(d enrich.Decision) string {
	if len(d.Examples) == 0 {
		return d.Question
	}
	return fmt.Sprintf("%s (e.g. %s)", d.Question, strings.Join(d.Examples, ", "))
}

// isCancel reports whether the message aborts the pending operation.
func isCancel(text string) bool {
	normalized := strings.ToLower(strings.TrimSpace(text))
	normalized = strings.TrimRight(normalized, ".!,")
	return cancelTokens[normalized]
}

// normalizeInbound resolves the working text for a message, folding in
// pre-normalized media. It reports false when the message carries
// nothing the assistant can work with.
func normalizeInbound(msg *models.InboundMessage) (string, bool) {
	text := strings.TrimSpace(msg.Text)
	if msg.Media == nil {
		return text, text != ""
	}

	switch msg.Media.Type {
	case models.MediaVoice:
		if text == "" {
			text = strings.TrimSpace(msg.Media.Transcript)
		}
		return text, text != ""
	case models.MediaLocation:
		coords := fmt.Sprintf("%.5f, %.5f", msg.Media.Latitude, msg.Media.Longitude)
		if text == "" {
			return "my current location is " + coords, true
		}
		return text + " (location: " + coords + ")", true
	default:
		return text, text != ""
	}
}
