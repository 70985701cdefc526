package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/famulus-ai/famulus/internal/models"
	"github.com/famulus-ai/famulus/internal/store"
)

const minStatementLength = 3

// memoryWriter and factWriter are the write surfaces the memory tool
// needs from its two stores.
type memoryWriter interface {
	Store(ctx context.Context, memory *models.Memory) error
}

type factWriter interface {
	Store(ctx context.Context, fact *models.Fact) error
}

// MemoryTool stores free-form facts. Every statement lands in the memory
// store; statements the extractor decomposed into subject/predicate/object
// triples are additionally written to the knowledge graph.
type MemoryTool struct {
	memories memoryWriter
	facts    factWriter
}

// NewMemoryTool creates a memory tool. facts may be nil when the
// knowledge graph is not configured.
func NewMemoryTool(memories *store.MemoryStore, facts *store.FactStore) *MemoryTool {
	t := &MemoryTool{}
	if memories != nil {
		t.memories = memories
	}
	if facts != nil {
		t.facts = facts
	}
	return t
}

func (t *MemoryTool) Name() string { return "memory.store" }

func (t *MemoryTool) Execute(ctx context.Context, userID string, args models.Fields) (*Result, error) {
	statement := strings.TrimSpace(args["statement"].AsString())
	if len(statement) < minStatementLength {
		return nil, &ValidationError{
			Tool:     t.Name(),
			Field:    "statement",
			Question: "What would you like me to remember?",
			Reason:   "statement too short",
		}
	}

	memory := &models.Memory{
		UserID:  userID,
		Content: statement,
		Tags:    listField(args, "tags"),
	}
	if err := t.memories.Store(ctx, memory); err != nil {
		return nil, fmt.Errorf("storing memory: %w", err)
	}

	result := &Result{Message: "Got it, I'll remember that.", Data: memory}

	if t.facts != nil && args.Has("subject") && args.Has("predicate") && args.Has("object") {
		fact := &models.Fact{
			UserID:    userID,
			Subject:   args["subject"].AsString(),
			Predicate: args["predicate"].AsString(),
			Object:    args["object"].AsString(),
			Statement: statement,
		}
		// The memory is already saved; a graph write failure does not
		// fail the turn, but it must not vanish either.
		if err := t.facts.Store(ctx, fact); err != nil {
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("fact graph write failed: %v", err))
		}
	}

	return result, nil
}
