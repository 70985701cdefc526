package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"github.com/famulus-ai/famulus/internal/models"
)

// ListStore persists named lists in BadgerDB
type ListStore struct {
	db *badger.DB
}

// NewListStore opens the list database at path
func NewListStore(path string) (*ListStore, error) {
	opts := badger.DefaultOptions(expandPath(path)).
		WithLoggingLevel(badger.WARNING)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open BadgerDB: %w", err)
	}

	return &ListStore{db: db}, nil
}

// listKey builds the storage key for one entry.
// Layout: list:<user>:<list name>:<entry id>
func listKey(userID, listName, entryID string) []byte {
	return []byte(fmt.Sprintf("list:%s:%s:%s", userID, normalizeListName(listName), entryID))
}

func listPrefix(userID, listName string) []byte {
	return []byte(fmt.Sprintf("list:%s:%s:", userID, normalizeListName(listName)))
}

func userPrefix(userID string) []byte {
	return []byte(fmt.Sprintf("list:%s:", userID))
}

// normalizeListName lowercases and collapses whitespace so "Groceries"
// and "groceries " are the same list.
func normalizeListName(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(name)), " ")
}

// Add appends an item to a list, creating the list implicitly
func (s *ListStore) Add(ctx context.Context, entry *models.ListEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	entry.ListName = normalizeListName(entry.ListName)

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal entry: %w", err)
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(listKey(entry.UserID, entry.ListName, entry.ID), data)
	})
	if err != nil {
		return fmt.Errorf("failed to store entry: %w", err)
	}
	return nil
}

// Entries returns all items on a list, oldest first
func (s *ListStore) Entries(ctx context.Context, userID, listName string) ([]*models.ListEntry, error) {
	var entries []*models.ListEntry

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = listPrefix(userID, listName)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				var entry models.ListEntry
				if err := json.Unmarshal(val, &entry); err != nil {
					return err
				}
				entries = append(entries, &entry)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read list: %w", err)
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].CreatedAt.Before(entries[j].CreatedAt)
	})
	return entries, nil
}

// Names returns the distinct list names for a user
func (s *ListStore) Names(ctx context.Context, userID string) ([]string, error) {
	seen := make(map[string]bool)

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = userPrefix(userID)
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		prefixLen := len(userPrefix(userID))
		for it.Rewind(); it.Valid(); it.Next() {
			key := string(it.Item().Key())
			rest := key[prefixLen:]
			if idx := strings.LastIndex(rest, ":"); idx > 0 {
				seen[rest[:idx]] = true
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan lists: %w", err)
	}

	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// Search finds entries whose item or list name matches any term
func (s *ListStore) Search(ctx context.Context, userID string, terms []string, limit int) ([]*models.ListEntry, error) {
	if len(terms) == 0 {
		return nil, nil
	}

	lowered := make([]string, len(terms))
	for i, t := range terms {
		lowered[i] = strings.ToLower(t)
	}

	var matches []*models.ListEntry

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = userPrefix(userID)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid() && len(matches) < limit; it.Next() {
			err := it.Item().Value(func(val []byte) error {
				var entry models.ListEntry
				if err := json.Unmarshal(val, &entry); err != nil {
					return err
				}
				haystack := strings.ToLower(entry.Item + " " + entry.ListName)
				for _, term := range lowered {
					if strings.Contains(haystack, term) {
						matches = append(matches, &entry)
						return nil
					}
				}
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to search lists: %w", err)
	}

	return matches, nil
}

// Remove deletes one entry from a list
func (s *ListStore) Remove(ctx context.Context, userID, listName, entryID string) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(listKey(userID, listName, entryID))
	})
	if err != nil {
		return fmt.Errorf("failed to delete entry: %w", err)
	}
	return nil
}

// Close closes the database
func (s *ListStore) Close() error {
	return s.db.Close()
}
