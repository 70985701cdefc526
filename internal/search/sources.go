package search

import (
	"context"
	"fmt"
	"strings"

	"github.com/famulus-ai/famulus/internal/models"
	"github.com/famulus-ai/famulus/internal/store"
)

// Source is one searchable backing store.
type Source interface {
	Name() string
	Description() string
	Search(ctx context.Context, userID string, terms []string, limit int) ([]models.ScoredItem, error)
}

// MemorySource searches the vector memory store
type MemorySource struct {
	store *store.MemoryStore
}

func NewMemorySource(s *store.MemoryStore) *MemorySource { return &MemorySource{store: s} }

func (s *MemorySource) Name() string { return "memories" }

func (s *MemorySource) Description() string {
	return "free-form things the user asked to remember (notes, preferences, facts about their life)"
}

func (s *MemorySource) Search(ctx context.Context, userID string, terms []string, limit int) ([]models.ScoredItem, error) {
	memories, err := s.store.Search(ctx, strings.Join(terms, " "), limit)
	if err != nil {
		return nil, err
	}

	var items []models.ScoredItem
	for _, m := range memories {
		if m.UserID != "" && m.UserID != userID {
			continue
		}
		items = append(items, models.ScoredItem{
			Source:  s.Name(),
			ID:      m.ID,
			Score:   m.Score,
			Display: m.Content,
		})
	}
	return items, nil
}

// FactSource searches the knowledge graph
type FactSource struct {
	store *store.FactStore
}

func NewFactSource(s *store.FactStore) *FactSource { return &FactSource{store: s} }

func (s *FactSource) Name() string { return "facts" }

func (s *FactSource) Description() string {
	return "structured subject/predicate/object statements (relationships, attributes)"
}

func (s *FactSource) Search(ctx context.Context, userID string, terms []string, limit int) ([]models.ScoredItem, error) {
	facts, err := s.store.Query(ctx, userID, strings.Join(terms, " "), limit)
	if err != nil {
		return nil, err
	}

	var items []models.ScoredItem
	for _, f := range facts {
		items = append(items, models.ScoredItem{
			Source:  s.Name(),
			ID:      f.ID,
			Score:   f.Confidence,
			Display: f.Statement,
		})
	}
	return items, nil
}

// TaskSource searches reminders
type TaskSource struct {
	store *store.TaskStore
}

func NewTaskSource(s *store.TaskStore) *TaskSource { return &TaskSource{store: s} }

func (s *TaskSource) Name() string { return "tasks" }

func (s *TaskSource) Description() string {
	return "reminders and tasks with optional due dates"
}

func (s *TaskSource) Search(ctx context.Context, userID string, terms []string, limit int) ([]models.ScoredItem, error) {
	tasks, err := s.store.Search(ctx, userID, terms, limit)
	if err != nil {
		return nil, err
	}

	var items []models.ScoredItem
	for _, t := range tasks {
		display := t.Title
		if t.DueAt != nil {
			display = fmt.Sprintf("%s (due %s)", t.Title, t.DueAt.Format("Mon Jan 2 15:04"))
		}
		items = append(items, models.ScoredItem{
			Source:  s.Name(),
			ID:      fmt.Sprintf("task:%d", t.ID),
			Score:   1,
			Display: display,
		})
	}
	return items, nil
}

// ListSource searches named lists
type ListSource struct {
	store *store.ListStore
}

func NewListSource(s *store.ListStore) *ListSource { return &ListSource{store: s} }

func (s *ListSource) Name() string { return "lists" }

func (s *ListSource) Description() string {
	return "items on named lists (groceries, errands, packing)"
}

func (s *ListSource) Search(ctx context.Context, userID string, terms []string, limit int) ([]models.ScoredItem, error) {
	entries, err := s.store.Search(ctx, userID, terms, limit)
	if err != nil {
		return nil, err
	}

	var items []models.ScoredItem
	for _, e := range entries {
		items = append(items, models.ScoredItem{
			Source:  s.Name(),
			ID:      e.ID,
			Score:   1,
			Display: fmt.Sprintf("%s (on %s)", e.Item, e.ListName),
		})
	}
	return items, nil
}
