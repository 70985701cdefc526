package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/famulus-ai/famulus/internal/models"
	"github.com/famulus-ai/famulus/internal/store"
)

// defaultListName receives items when the user never names a list.
const defaultListName = "inbox"

// ListAddTool appends items to named lists
type ListAddTool struct {
	lists *store.ListStore
}

func NewListAddTool(lists *store.ListStore) *ListAddTool {
	return &ListAddTool{lists: lists}
}

func (t *ListAddTool) Name() string { return "list.add" }

func (t *ListAddTool) Execute(ctx context.Context, userID string, args models.Fields) (*Result, error) {
	item := strings.TrimSpace(args["item"].AsString())
	if item == "" {
		return nil, &ValidationError{
			Tool:     t.Name(),
			Field:    "item",
			Question: "What should I add to the list?",
			Reason:   "item is empty",
		}
	}

	listName := defaultListName
	if v, ok := args["list_name"]; ok && !v.IsNull() {
		listName = v.AsString()
	}

	entry := &models.ListEntry{
		UserID:   userID,
		ListName: listName,
		Item:     item,
	}
	if q, ok := args["quantity"]; ok && !q.IsNull() {
		entry.Quantity = q.AsString()
	}

	if err := t.lists.Add(ctx, entry); err != nil {
		return nil, fmt.Errorf("adding list entry: %w", err)
	}

	msg := fmt.Sprintf("Added %q to your %s list.", item, entry.ListName)
	if entry.Quantity != "" {
		msg = fmt.Sprintf("Added %q (%s) to your %s list.", item, entry.Quantity, entry.ListName)
	}
	return &Result{Message: msg, Data: entry}, nil
}

// ListQueryTool reads lists back. Without a list name it enumerates the
// user's lists instead of failing.
type ListQueryTool struct {
	lists *store.ListStore
}

func NewListQueryTool(lists *store.ListStore) *ListQueryTool {
	return &ListQueryTool{lists: lists}
}

func (t *ListQueryTool) Name() string { return "list.query" }

func (t *ListQueryTool) Execute(ctx context.Context, userID string, args models.Fields) (*Result, error) {
	v, ok := args["list_name"]
	if !ok || v.IsNull() {
		names, err := t.lists.Names(ctx, userID)
		if err != nil {
			return nil, fmt.Errorf("listing lists: %w", err)
		}
		if len(names) == 0 {
			return &Result{Message: "You don't have any lists yet.", Data: names}, nil
		}
		return &Result{
			Message: fmt.Sprintf("Your lists: %s. Which one would you like to see?", strings.Join(names, ", ")),
			Data:    names,
		}, nil
	}

	listName := v.AsString()
	entries, err := t.lists.Entries(ctx, userID, listName)
	if err != nil {
		return nil, fmt.Errorf("reading list: %w", err)
	}
	if len(entries) == 0 {
		return &Result{Message: fmt.Sprintf("Your %s list is empty.", listName), Data: entries}, nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s:\n", listName)
	for _, e := range entries {
		if e.Quantity != "" {
			fmt.Fprintf(&b, "- %s (%s)\n", e.Item, e.Quantity)
		} else {
			fmt.Fprintf(&b, "- %s\n", e.Item)
		}
	}
	return &Result{Message: strings.TrimRight(b.String(), "\n"), Data: entries}, nil
}
