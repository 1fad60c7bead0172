// Package history keeps a log of finished inference requests in a SQL
// database.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/dieharders/ai-text-server-sub000/pkg/config"
	"github.com/dieharders/ai-text-server-sub000/pkg/inference"
)

// Entry is one row of the inference log.
type Entry struct {
	ID               int64     `json:"id"`
	RequestID        string    `json:"requestId"`
	Mode             string    `json:"mode"`
	Model            string    `json:"model"`
	Tool             string    `json:"tool,omitempty"`
	Collection       string    `json:"collection,omitempty"`
	PromptChars      int       `json:"promptChars"`
	ResponseChars    int       `json:"responseChars"`
	PromptTokens     int       `json:"promptTokens"`
	CompletionTokens int       `json:"completionTokens"`
	DurationMS       int64     `json:"durationMs"`
	Status           string    `json:"status"`
	Error            string    `json:"error,omitempty"`
	CreatedAt        time.Time `json:"createdAt"`
}

// DefaultLimit bounds List when the caller passes no limit.
const DefaultLimit = 50

const createTableSQL = `
CREATE TABLE IF NOT EXISTS inference_history (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    request_id VARCHAR(64) NOT NULL,
    mode VARCHAR(16) NOT NULL,
    model VARCHAR(255) NOT NULL,
    tool VARCHAR(255),
    collection VARCHAR(255),
    prompt_chars INTEGER NOT NULL,
    response_chars INTEGER NOT NULL,
    prompt_tokens INTEGER NOT NULL,
    completion_tokens INTEGER NOT NULL,
    duration_ms BIGINT NOT NULL,
    status VARCHAR(16) NOT NULL,
    error TEXT,
    created_at TIMESTAMP NOT NULL
)`

const insertColumns = `request_id, mode, model, tool, collection, prompt_chars, response_chars,
prompt_tokens, completion_tokens, duration_ms, status, error, created_at`

// SQLStore implements inference.Recorder.
type SQLStore struct {
	db      *sql.DB
	dialect string
}

var _ inference.Recorder = (*SQLStore)(nil)

func NewSQLStore(ctx context.Context, db *sql.DB, dialect string) (*SQLStore, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}
	switch dialect {
	case "postgres", "mysql", "sqlite":
	default:
		return nil, fmt.Errorf("unsupported dialect: %s (supported: postgres, mysql, sqlite)", dialect)
	}

	s := &SQLStore{db: db, dialect: dialect}
	if err := s.initSchema(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return s, nil
}

// NewSQLStoreFromConfig opens the database through the shared pool.
func NewSQLStoreFromConfig(ctx context.Context, pool *config.DBPool, cfg *config.DatabaseConfig) (*SQLStore, error) {
	db, err := pool.Get(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return NewSQLStore(ctx, db, cfg.Dialect())
}

func (s *SQLStore) initSchema(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	stmt := createTableSQL
	switch s.dialect {
	case "postgres":
		stmt = strings.Replace(stmt, "id INTEGER PRIMARY KEY AUTOINCREMENT", "id BIGSERIAL PRIMARY KEY", 1)
	case "mysql":
		stmt = strings.Replace(stmt, "id INTEGER PRIMARY KEY AUTOINCREMENT", "id BIGINT PRIMARY KEY AUTO_INCREMENT", 1)
	}
	if _, err := s.db.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("failed to create history table: %w", err)
	}
	return nil
}

// placeholders returns n bind parameters in the dialect's syntax.
func (s *SQLStore) placeholders(n int) string {
	parts := make([]string, n)
	for i := range parts {
		if s.dialect == "postgres" {
			parts[i] = fmt.Sprintf("$%d", i+1)
		} else {
			parts[i] = "?"
		}
	}
	return strings.Join(parts, ", ")
}

func (s *SQLStore) Record(ctx context.Context, rec inference.Record) error {
	created := rec.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	query := `INSERT INTO inference_history (` + insertColumns + `) VALUES (` + s.placeholders(13) + `)`
	_, err := s.db.ExecContext(ctx, query,
		rec.RequestID, string(rec.Kind), rec.Model, rec.Tool, rec.Collection,
		rec.PromptChars, rec.ResponseChars, rec.PromptTokens, rec.CompletionTokens,
		rec.Duration.Milliseconds(), string(rec.Status), rec.Error, created.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert history entry: %w", err)
	}
	return nil
}

// List returns the newest entries first.
func (s *SQLStore) List(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	query := `SELECT id, ` + insertColumns + ` FROM inference_history ORDER BY id DESC LIMIT ` + s.placeholders(1)

	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e               Entry
			tool, coll, msg sql.NullString
		)
		if err := rows.Scan(&e.ID, &e.RequestID, &e.Mode, &e.Model, &tool, &coll,
			&e.PromptChars, &e.ResponseChars, &e.PromptTokens, &e.CompletionTokens,
			&e.DurationMS, &e.Status, &msg, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan history entry: %w", err)
		}
		e.Tool, e.Collection, e.Error = tool.String, coll.String, msg.String
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
