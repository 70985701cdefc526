// Package store contains the backing data stores for the assistant's
// tools and search sources: tasks in SQLite, lists in BadgerDB, memories
// in Redis, facts in Dgraph. Every store does plain CRUD; the
// orchestration layers own all conversation logic.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/famulus-ai/famulus/internal/models"
)

// TaskStore persists reminders in SQLite
type TaskStore struct {
	db *sql.DB
}

// NewTaskStore opens (and if needed creates) the task database
func NewTaskStore(dbPath string) (*TaskStore, error) {
	dbPath = expandPath(dbPath)

	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s := &TaskStore{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return s, nil
}

// initSchema creates the tasks table
func (s *TaskStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS tasks (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id TEXT NOT NULL,
		title TEXT NOT NULL,
		due_at DATETIME,
		people TEXT,
		location TEXT,
		done BOOLEAN NOT NULL DEFAULT 0,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_tasks_user ON tasks(user_id);
	CREATE INDEX IF NOT EXISTS idx_tasks_due ON tasks(due_at);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Create inserts a task and returns its id
func (s *TaskStore) Create(ctx context.Context, task *models.Task) (int64, error) {
	query := `
		INSERT INTO tasks (user_id, title, due_at, people, location, done, created_at)
		VALUES (?, ?, ?, ?, ?, 0, ?)
	`

	var dueAt interface{}
	if task.DueAt != nil {
		dueAt = task.DueAt.UTC()
	}

	createdAt := task.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	result, err := s.db.ExecContext(ctx, query,
		task.UserID,
		task.Title,
		dueAt,
		strings.Join(task.People, ","),
		task.Location,
		createdAt,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert task: %w", err)
	}

	return result.LastInsertId()
}

// Upcoming returns open tasks for a user ordered by due date, tasks
// without a due date last.
func (s *TaskStore) Upcoming(ctx context.Context, userID string, until time.Time, limit int) ([]*models.Task, error) {
	query := `
		SELECT id, user_id, title, due_at, people, location, done, created_at
		FROM tasks
		WHERE user_id = ? AND done = 0 AND (due_at IS NULL OR due_at <= ?)
		ORDER BY due_at IS NULL, due_at ASC
		LIMIT ?
	`

	rows, err := s.db.QueryContext(ctx, query, userID, until.UTC(), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query tasks: %w", err)
	}
	defer rows.Close()

	return scanTasks(rows)
}

// Search finds open tasks whose title matches any of the given terms.
func (s *TaskStore) Search(ctx context.Context, userID string, terms []string, limit int) ([]*models.Task, error) {
	if len(terms) == 0 {
		return nil, nil
	}

	conditions := make([]string, len(terms))
	args := []interface{}{userID}
	for i, term := range terms {
		conditions[i] = "title LIKE ?"
		args = append(args, "%"+term+"%")
	}
	args = append(args, limit)

	query := fmt.Sprintf(`
		SELECT id, user_id, title, due_at, people, location, done, created_at
		FROM tasks
		WHERE user_id = ? AND done = 0 AND (%s)
		ORDER BY created_at DESC
		LIMIT ?
	`, strings.Join(conditions, " OR "))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to search tasks: %w", err)
	}
	defer rows.Close()

	return scanTasks(rows)
}

// Complete marks a task done
func (s *TaskStore) Complete(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, "UPDATE tasks SET done = 1 WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to complete task: %w", err)
	}
	affected, err := result.RowsAffected()
	if err == nil && affected == 0 {
		return fmt.Errorf("no task with id %d", id)
	}
	return nil
}

// Count returns the number of open tasks for a user
func (s *TaskStore) Count(ctx context.Context, userID string) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM tasks WHERE user_id = ? AND done = 0", userID).Scan(&count)
	return count, err
}

// Close closes the database
func (s *TaskStore) Close() error {
	return s.db.Close()
}

func scanTasks(rows *sql.Rows) ([]*models.Task, error) {
	var tasks []*models.Task
	for rows.Next() {
		var task models.Task
		var dueAt sql.NullTime
		var people string

		if err := rows.Scan(&task.ID, &task.UserID, &task.Title, &dueAt,
			&people, &task.Location, &task.Done, &task.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}

		if dueAt.Valid {
			t := dueAt.Time
			task.DueAt = &t
		}
		if people != "" {
			task.People = strings.Split(people, ",")
		}

		tasks = append(tasks, &task)
	}
	return tasks, rows.Err()
}

// expandPath expands a leading ~/ to the user's home directory
func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}
