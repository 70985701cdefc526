package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/famulus-ai/famulus/internal/models"
)

func newTestListStore(t *testing.T) *ListStore {
	t.Helper()
	s, err := NewListStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestListAddAndEntries(t *testing.T) {
	s := newTestListStore(t)
	ctx := context.Background()

	require.NoError(t, s.Add(ctx, &models.ListEntry{
		UserID:   "u1",
		ListName: "Groceries",
		Item:     "milk",
	}))
	require.NoError(t, s.Add(ctx, &models.ListEntry{
		UserID:   "u1",
		ListName: "groceries ",
		Item:     "eggs",
		Quantity: "12",
	}))

	entries, err := s.Entries(ctx, "u1", "groceries")
	require.NoError(t, err)
	require.Len(t, entries, 2, "list name casing and whitespace should collapse")
	assert.Equal(t, "milk", entries[0].Item)
	assert.Equal(t, "eggs", entries[1].Item)
}

func TestListNames(t *testing.T) {
	s := newTestListStore(t)
	ctx := context.Background()

	require.NoError(t, s.Add(ctx, &models.ListEntry{UserID: "u1", ListName: "groceries", Item: "milk"}))
	require.NoError(t, s.Add(ctx, &models.ListEntry{UserID: "u1", ListName: "hardware", Item: "screws"}))
	require.NoError(t, s.Add(ctx, &models.ListEntry{UserID: "u2", ListName: "books", Item: "dune"}))

	names, err := s.Names(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{"groceries", "hardware"}, names)
}

func TestListSearch(t *testing.T) {
	s := newTestListStore(t)
	ctx := context.Background()

	require.NoError(t, s.Add(ctx, &models.ListEntry{UserID: "u1", ListName: "groceries", Item: "oat milk"}))
	require.NoError(t, s.Add(ctx, &models.ListEntry{UserID: "u1", ListName: "hardware", Item: "screws"}))

	matches, err := s.Search(ctx, "u1", []string{"milk"}, 10)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "oat milk", matches[0].Item)

	none, err := s.Search(ctx, "u1", nil, 10)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestListRemove(t *testing.T) {
	s := newTestListStore(t)
	ctx := context.Background()

	entry := &models.ListEntry{UserID: "u1", ListName: "groceries", Item: "milk"}
	require.NoError(t, s.Add(ctx, entry))
	require.NoError(t, s.Remove(ctx, "u1", "groceries", entry.ID))

	entries, err := s.Entries(ctx, "u1", "groceries")
	require.NoError(t, err)
	assert.Empty(t, entries)
}
