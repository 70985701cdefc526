// Package convo holds the in-flight state of multi-turn exchanges. A
// context exists for a conversation only while an operation is waiting on
// the user; completed or cancelled operations delete it.
package convo

import (
	"time"

	"github.com/famulus-ai/famulus/internal/models"
)

// Priority ranks how much an enrichment question is worth asking.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
	PrioritySkip   Priority = "skip"
)

// PendingOperation is a partially specified operation gathering fields
// across turns.
type PendingOperation struct {
	OperationType models.Intent
	Collected     models.Fields
	Missing       []string
	Asked         map[string]bool
	AwaitingField string // Field the last question asked about
	FailureCounts map[string]int
	TurnCount     int
	MaxTurns      int
	Priority      Priority
}

// NewPendingOperation creates an empty pending operation for an intent.
func NewPendingOperation(intent models.Intent, collected models.Fields, maxTurns int) *PendingOperation {
	if collected == nil {
		collected = models.Fields{}
	}
	return &PendingOperation{
		OperationType: intent,
		Collected:     collected,
		Asked:         make(map[string]bool),
		FailureCounts: make(map[string]int),
		MaxTurns:      maxTurns,
	}
}

// PendingToolCall tracks a tool invocation that failed validation and is
// waiting on a corrected field from the user. RetryCount is bounded; the
// orchestrator abandons the call once the bound is exceeded.
type PendingToolCall struct {
	ToolName     string
	Args         models.Fields
	InvalidField string
	Question     string
	RetryCount   int
}

// Context is the per-conversation state record.
type Context struct {
	ConversationID string
	UserID         string
	LastMessage    string
	LastReply      string
	Pending        *PendingOperation
	PendingCall    *PendingToolCall
	CreatedAt      time.Time
	LastUpdated    time.Time

	// Version stamps each write; the store discards writes carrying a
	// version older than what it holds.
	Version uint64
}

// Expired reports whether the context is stale relative to ttl.
func (c *Context) Expired(ttl time.Duration, now time.Time) bool {
	return now.Sub(c.LastUpdated) > ttl
}

// TurnsExhausted reports whether the enrichment turn budget is spent.
func (c *Context) TurnsExhausted() bool {
	return c.Pending != nil && c.Pending.TurnCount >= c.Pending.MaxTurns
}
