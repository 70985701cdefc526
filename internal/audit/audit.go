// Package audit keeps a SQLite trail of tool executions and of search
// sources skipped by the conditional-tier gate.
package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/famulus-ai/famulus/internal/models"
)

// Log records assistant activity for later inspection
type Log struct {
	db *sql.DB
}

// NewLog opens (and if needed creates) the audit database
func NewLog(dbPath string) (*Log, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	l := &Log{db: db}
	if err := l.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return l, nil
}

func (l *Log) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS tool_calls (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		tool TEXT NOT NULL,
		conversation_id TEXT NOT NULL,
		user_id TEXT NOT NULL,
		args TEXT,
		success BOOLEAN NOT NULL,
		error TEXT,
		duration_ms INTEGER,
		timestamp DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS search_skips (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		conversation_id TEXT NOT NULL,
		source TEXT NOT NULL,
		tier TEXT NOT NULL,
		reason TEXT,
		timestamp DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_tool_calls_conv ON tool_calls(conversation_id);
	CREATE INDEX IF NOT EXISTS idx_search_skips_source ON search_skips(source);
	`

	_, err := l.db.Exec(schema)
	return err
}

// ToolCall records one tool invocation
func (l *Log) ToolCall(ctx context.Context, rec *models.ToolCallRecord) error {
	args, err := json.Marshal(rec.Args)
	if err != nil {
		return fmt.Errorf("failed to marshal args: %w", err)
	}

	ts := rec.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}

	_, err = l.db.ExecContext(ctx, `
		INSERT INTO tool_calls (tool, conversation_id, user_id, args, success, error, duration_ms, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.Tool, rec.ConversationID, rec.UserID, string(args),
		rec.Success, rec.Error, rec.Duration.Milliseconds(), ts,
	)
	if err != nil {
		return fmt.Errorf("failed to record tool call: %w", err)
	}
	return nil
}

// SearchSkip records a search source the conditional gate left unexecuted
func (l *Log) SearchSkip(ctx context.Context, conversationID, source, tier, reason string) error {
	_, err := l.db.ExecContext(ctx, `
		INSERT INTO search_skips (conversation_id, source, tier, reason, timestamp)
		VALUES (?, ?, ?, ?, ?)`,
		conversationID, source, tier, reason, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to record search skip: %w", err)
	}
	return nil
}

// SkipCounts returns how often each source was skipped, for gate telemetry
func (l *Log) SkipCounts(ctx context.Context) (map[string]int64, error) {
	rows, err := l.db.QueryContext(ctx,
		"SELECT source, COUNT(*) FROM search_skips GROUP BY source")
	if err != nil {
		return nil, fmt.Errorf("failed to query skips: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int64)
	for rows.Next() {
		var source string
		var n int64
		if err := rows.Scan(&source, &n); err != nil {
			return nil, fmt.Errorf("failed to scan skip row: %w", err)
		}
		counts[source] = n
	}
	return counts, rows.Err()
}

// RecentToolCalls returns the latest tool invocations for a conversation
func (l *Log) RecentToolCalls(ctx context.Context, conversationID string, limit int) ([]*models.ToolCallRecord, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT tool, conversation_id, user_id, args, success, error, duration_ms, timestamp
		FROM tool_calls WHERE conversation_id = ?
		ORDER BY id DESC LIMIT ?`, conversationID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query tool calls: %w", err)
	}
	defer rows.Close()

	var records []*models.ToolCallRecord
	for rows.Next() {
		var rec models.ToolCallRecord
		var args string
		var durationMs int64
		if err := rows.Scan(&rec.Tool, &rec.ConversationID, &rec.UserID, &args,
			&rec.Success, &rec.Error, &durationMs, &rec.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan tool call: %w", err)
		}
		if args != "" {
			if err := json.Unmarshal([]byte(args), &rec.Args); err != nil {
				return nil, fmt.Errorf("failed to decode args: %w", err)
			}
		}
		rec.Duration = time.Duration(durationMs) * time.Millisecond
		records = append(records, &rec)
	}
	return records, rows.Err()
}

// Close closes the database
func (l *Log) Close() error {
	return l.db.Close()
}
