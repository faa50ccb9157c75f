package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// ChatLog is one completed exchange persisted for later inspection.
type ChatLog struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	ConnectionID string    `json:"connectionId"`
	Kind         string    `json:"kind"`
	ModelID      string    `json:"modelId"`
	Request      string    `json:"request"`
	Response     string    `json:"response"`
	DurationMS   int64     `json:"durationMs"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Exchange kinds.
const (
	KindSingle  = "single"
	KindChained = "chained"
	KindStream  = "stream"
	KindFile    = "file"
)

// ChatLogStore persists completed exchanges. A nil store disables logging.
type ChatLogStore struct {
	db *sql.DB
}

func NewChatLogStore(db *sql.DB) *ChatLogStore {
	if db == nil {
		return nil
	}
	return &ChatLogStore{db: db}
}

// Insert writes one exchange. CreatedAt defaults to now when unset.
func (s *ChatLogStore) Insert(ctx context.Context, entry ChatLog) error {
	if s == nil {
		return nil
	}
	createdAt := entry.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO chat_logs (username, connection_id, kind, model_id, request, response, duration_ms, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.Username, entry.ConnectionID, entry.Kind, entry.ModelID,
		entry.Request, entry.Response, entry.DurationMS, createdAt,
	)
	if err != nil {
		return fmt.Errorf("insert chat log: %w", err)
	}
	return nil
}

// ListByUsername returns recent exchanges for one user, newest first.
func (s *ChatLogStore) ListByUsername(ctx context.Context, username string, limit int) ([]ChatLog, error) {
	if s == nil {
		return nil, nil
	}
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, username, connection_id, kind, model_id, request, response, duration_ms, created_at
		 FROM chat_logs WHERE username = ? ORDER BY created_at DESC LIMIT ?`,
		username, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query chat logs: %w", err)
	}
	defer rows.Close()

	var logs []ChatLog
	for rows.Next() {
		var entry ChatLog
		if err := rows.Scan(&entry.ID, &entry.Username, &entry.ConnectionID, &entry.Kind,
			&entry.ModelID, &entry.Request, &entry.Response, &entry.DurationMS, &entry.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan chat log: %w", err)
		}
		logs = append(logs, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chat logs: %w", err)
	}
	return logs, nil
}
