package tools

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/famulus-ai/famulus/internal/models"
	"github.com/famulus-ai/famulus/internal/store"
)

const minTitleLength = 3

// ReminderTool creates scheduled tasks. It validates the title and the
// due phrase before touching storage.
type ReminderTool struct {
	tasks *store.TaskStore
	now   func() time.Time
}

// NewReminderTool creates a reminder tool backed by the task store
func NewReminderTool(tasks *store.TaskStore) *ReminderTool {
	return &ReminderTool{tasks: tasks, now: time.Now}
}

func (t *ReminderTool) Name() string { return "reminder.create" }

func (t *ReminderTool) Execute(ctx context.Context, userID string, args models.Fields) (*Result, error) {
	title := strings.TrimSpace(args["title"].AsString())
	if len(title) < minTitleLength {
		return nil, &ValidationError{
			Tool:     t.Name(),
			Field:    "title",
			Question: "What should the reminder say?",
			Reason:   "title too short",
		}
	}

	var dueAt *time.Time
	if due, ok := args["due_at"]; ok && !due.IsNull() {
		now := t.now()
		parsed, err := ParseWhen(due.AsString(), now)
		if err != nil {
			return nil, &ValidationError{
				Tool:     t.Name(),
				Field:    "due_at",
				Question: "I couldn't work out that time. When should I remind you? (e.g. \"tomorrow 9am\", \"in 2 hours\")",
				Reason:   err.Error(),
			}
		}
		if !parsed.After(now) {
			return nil, &ValidationError{
				Tool:     t.Name(),
				Field:    "due_at",
				Question: "That time has already passed. When should I remind you?",
				Reason:   fmt.Sprintf("due time %s is not in the future", parsed.Format(time.RFC3339)),
			}
		}
		dueAt = &parsed
	}

	task := &models.Task{
		UserID: userID,
		Title:  title,
		People: listField(args, "people"),
		DueAt:  dueAt,
	}
	if loc, ok := args["location"]; ok && !loc.IsNull() {
		task.Location = loc.AsString()
	}

	id, err := t.tasks.Create(ctx, task)
	if err != nil {
		return nil, fmt.Errorf("creating reminder: %w", err)
	}
	task.ID = id

	msg := fmt.Sprintf("Reminder set: %s", title)
	if dueAt != nil {
		msg = fmt.Sprintf("%s (due %s)", msg, dueAt.Format("Mon Jan 2 15:04"))
	}
	return &Result{Message: msg, Data: task}, nil
}

// ReminderQueryTool lists upcoming reminders.
type ReminderQueryTool struct {
	tasks *store.TaskStore
}

func NewReminderQueryTool(tasks *store.TaskStore) *ReminderQueryTool {
	return &ReminderQueryTool{tasks: tasks}
}

func (t *ReminderQueryTool) Name() string { return "reminder.query" }

func (t *ReminderQueryTool) Execute(ctx context.Context, userID string, args models.Fields) (*Result, error) {
	limit := 10
	if n, ok := args["limit"]; ok && !n.IsNull() {
		if v := int(n.Num); v > 0 {
			limit = v
		}
	}

	until := time.Now().AddDate(0, 0, 7)
	if w, ok := args["window"]; ok && !w.IsNull() {
		if parsed, err := ParseWhen(w.AsString(), time.Now()); err == nil {
			until = parsed
		}
	}

	tasks, err := t.tasks.Upcoming(ctx, userID, until, limit)
	if err != nil {
		return nil, fmt.Errorf("listing reminders: %w", err)
	}
	if len(tasks) == 0 {
		return &Result{Message: "You have no upcoming reminders.", Data: tasks}, nil
	}

	var b strings.Builder
	b.WriteString("Upcoming reminders:\n")
	for _, task := range tasks {
		if task.DueAt != nil {
			fmt.Fprintf(&b, "- %s (due %s)\n", task.Title, task.DueAt.Format("Mon Jan 2 15:04"))
		} else {
			fmt.Fprintf(&b, "- %s\n", task.Title)
		}
	}
	return &Result{Message: strings.TrimRight(b.String(), "\n"), Data: tasks}, nil
}

func listField(args models.Fields, key string) []string {
	v, ok := args[key]
	if !ok || v.IsNull() {
		return nil
	}
	if v.Kind == models.FieldStringList {
		return v.List
	}
	return []string{v.AsString()}
}
