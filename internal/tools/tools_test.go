package tools

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/famulus-ai/famulus/internal/models"
	"github.com/famulus-ai/famulus/internal/store"
)

func newTestReminderTool(t *testing.T) (*ReminderTool, *store.TaskStore) {
	t.Helper()
	tasks, err := store.NewTaskStore(filepath.Join(t.TempDir(), "tasks.db"))
	require.NoError(t, err)
	t.Cleanup(func() { tasks.Close() })

	tool := NewReminderTool(tasks)
	tool.now = func() time.Time { return refTime }
	return tool, tasks
}

func TestReminderCreate(t *testing.T) {
	tool, tasks := newTestReminderTool(t)
	ctx := context.Background()

	res, err := tool.Execute(ctx, "u1", models.Fields{
		"title":  models.StringValue("call the dentist"),
		"due_at": models.StringValue("tomorrow 9am"),
		"people": models.ListValue([]string{"Dr. Kim"}),
	})
	require.NoError(t, err)
	assert.Contains(t, res.Message, "call the dentist")

	stored, err := tasks.Upcoming(ctx, "u1", refTime.AddDate(0, 0, 7), 10)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	require.NotNil(t, stored[0].DueAt)
	assert.Equal(t, []string{"Dr. Kim"}, stored[0].People)
}

func TestReminderRejectsShortTitle(t *testing.T) {
	tool, tasks := newTestReminderTool(t)
	ctx := context.Background()

	_, err := tool.Execute(ctx, "u1", models.Fields{
		"title": models.StringValue("x"),
	})
	ve, ok := AsValidation(err)
	require.True(t, ok)
	assert.Equal(t, "title", ve.Field)
	assert.NotEmpty(t, ve.Question)

	// Rejected calls must not persist anything.
	count, err := tasks.Count(ctx, "u1")
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestReminderRejectsPastDue(t *testing.T) {
	tool, tasks := newTestReminderTool(t)
	ctx := context.Background()

	_, err := tool.Execute(ctx, "u1", models.Fields{
		"title":  models.StringValue("water the plants"),
		"due_at": models.StringValue("2020-01-01 10:00"),
	})
	ve, ok := AsValidation(err)
	require.True(t, ok)
	assert.Equal(t, "due_at", ve.Field)

	count, err := tasks.Count(ctx, "u1")
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestReminderRejectsUnparseableDue(t *testing.T) {
	tool, _ := newTestReminderTool(t)

	_, err := tool.Execute(context.Background(), "u1", models.Fields{
		"title":  models.StringValue("water the plants"),
		"due_at": models.StringValue("whenever feels right"),
	})
	ve, ok := AsValidation(err)
	require.True(t, ok)
	assert.Equal(t, "due_at", ve.Field)
}

func TestReminderWithoutDueDate(t *testing.T) {
	tool, _ := newTestReminderTool(t)

	res, err := tool.Execute(context.Background(), "u1", models.Fields{
		"title": models.StringValue("sort out the garage"),
	})
	require.NoError(t, err)
	assert.NotContains(t, res.Message, "due")
}

func newTestListTools(t *testing.T) (*ListAddTool, *ListQueryTool) {
	t.Helper()
	lists, err := store.NewListStore(filepath.Join(t.TempDir(), "lists"))
	require.NoError(t, err)
	t.Cleanup(func() { lists.Close() })
	return NewListAddTool(lists), NewListQueryTool(lists)
}

func TestListAddAndQuery(t *testing.T) {
	add, query := newTestListTools(t)
	ctx := context.Background()

	_, err := add.Execute(ctx, "u1", models.Fields{
		"item":      models.StringValue("milk"),
		"list_name": models.StringValue("groceries"),
		"quantity":  models.StringValue("2 liters"),
	})
	require.NoError(t, err)

	res, err := query.Execute(ctx, "u1", models.Fields{
		"list_name": models.StringValue("groceries"),
	})
	require.NoError(t, err)
	assert.Contains(t, res.Message, "milk")
	assert.Contains(t, res.Message, "2 liters")
}

func TestListAddDefaultsListName(t *testing.T) {
	add, query := newTestListTools(t)
	ctx := context.Background()

	res, err := add.Execute(ctx, "u1", models.Fields{
		"item": models.StringValue("passport renewal"),
	})
	require.NoError(t, err)
	assert.Contains(t, res.Message, defaultListName)

	got, err := query.Execute(ctx, "u1", models.Fields{
		"list_name": models.StringValue(defaultListName),
	})
	require.NoError(t, err)
	assert.Contains(t, got.Message, "passport renewal")
}

func TestListAddRejectsEmptyItem(t *testing.T) {
	add, _ := newTestListTools(t)

	_, err := add.Execute(context.Background(), "u1", models.Fields{
		"item": models.NullValue(),
	})
	ve, ok := AsValidation(err)
	require.True(t, ok)
	assert.Equal(t, "item", ve.Field)
}

func TestListQueryWithoutNameEnumeratesLists(t *testing.T) {
	add, query := newTestListTools(t)
	ctx := context.Background()

	for _, name := range []string{"groceries", "hardware"} {
		_, err := add.Execute(ctx, "u1", models.Fields{
			"item":      models.StringValue("something"),
			"list_name": models.StringValue(name),
		})
		require.NoError(t, err)
	}

	res, err := query.Execute(ctx, "u1", models.Fields{})
	require.NoError(t, err)
	assert.Contains(t, res.Message, "groceries")
	assert.Contains(t, res.Message, "hardware")
}

func TestRegistry(t *testing.T) {
	reg := NewRegistry()
	tool, _ := newTestReminderTool(t)

	require.NoError(t, reg.Register(tool))
	assert.Error(t, reg.Register(tool))

	got, ok := reg.Get("reminder.create")
	require.True(t, ok)
	assert.Equal(t, tool, got)

	_, ok = reg.Get("missing")
	assert.False(t, ok)
	assert.Contains(t, reg.Names(), "reminder.create")
}
