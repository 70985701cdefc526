// Package tools implements the storage tools the orchestrator drives.
// Each tool owns the semantic validation of its own arguments: it either
// succeeds or returns a ValidationError naming exactly one offending
// field together with a ready-to-display clarifying question. A failed
// validation performs no persisted mutation.
package tools

import (
	"context"
	"fmt"
	"sync"

	"github.com/famulus-ai/famulus/internal/models"
)

// Result is a successful tool execution
type Result struct {
	Message string // User-facing confirmation
	Data    interface{}

	// Warnings are non-fatal internal failures the orchestrator should
	// log against the conversation.
	Warnings []string
}

// ValidationError rejects one specific argument. Question is shown to the
// user verbatim so the orchestrator can retry with a corrected value.
type ValidationError struct {
	Tool     string
	Field    string
	Question string
	Reason   string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("tool %s rejected field %q: %s", e.Tool, e.Field, e.Reason)
}

// AsValidation unwraps a tool error into a ValidationError if it is one.
func AsValidation(err error) (*ValidationError, bool) {
	ve, ok := err.(*ValidationError)
	return ve, ok
}

// Tool is the contract every storage tool implements.
type Tool interface {
	Name() string
	Execute(ctx context.Context, userID string, args models.Fields) (*Result, error)
}

// Registry holds the registered tools
type Registry struct {
	tools map[string]Tool
	mu    sync.RWMutex
}

// NewRegistry creates an empty tool registry
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

// Register adds a tool to the registry
func (r *Registry) Register(tool Tool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if tool == nil {
		return fmt.Errorf("cannot register nil tool")
	}
	name := tool.Name()
	if _, exists := r.tools[name]; exists {
		return fmt.Errorf("tool %q already registered", name)
	}
	r.tools[name] = tool
	return nil
}

// Get retrieves a tool by name
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tool, ok := r.tools[name]
	return tool, ok
}

// Names returns the registered tool names
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	return names
}
