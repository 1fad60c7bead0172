package history

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dieharders/ai-text-server-sub000/pkg/config"
	"github.com/dieharders/ai-text-server-sub000/pkg/inference"
)

func newTestStore(t *testing.T) *SQLStore {
	t.Helper()
	pool := config.NewDBPool()
	t.Cleanup(func() { pool.Close() })

	cfg := &config.DatabaseConfig{Driver: "sqlite", Database: filepath.Join(t.TempDir(), "db", "history.db")}
	cfg.SetDefaults()
	require.NoError(t, cfg.Validate())

	store, err := NewSQLStoreFromConfig(context.Background(), pool, cfg)
	require.NoError(t, err)
	return store
}

func TestSQLStore_RecordAndList(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Record(ctx, inference.Record{
		RequestID:     "req-1",
		Kind:          inference.KindInstruct,
		Model:         "llama3.2",
		PromptChars:   5,
		ResponseChars: 12,
		Duration:      1500 * time.Millisecond,
		Status:        inference.StateDone,
	}))
	require.NoError(t, store.Record(ctx, inference.Record{
		RequestID: "req-2",
		Kind:      inference.KindAgent,
		Model:     "llama3.2",
		Tool:      "calculator",
		Status:    inference.StateFailed,
		Error:     "tool failed",
	}))

	entries, err := store.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	assert.Equal(t, "req-2", entries[0].RequestID)
	assert.Equal(t, "agent", entries[0].Mode)
	assert.Equal(t, "calculator", entries[0].Tool)
	assert.Equal(t, "tool failed", entries[0].Error)
	assert.Equal(t, string(inference.StateFailed), entries[0].Status)

	assert.Equal(t, "req-1", entries[1].RequestID)
	assert.Equal(t, int64(1500), entries[1].DurationMS)
	assert.Equal(t, 12, entries[1].ResponseChars)
	assert.False(t, entries[1].CreatedAt.IsZero())

	limited, err := store.List(ctx, 1)
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, "req-2", limited[0].RequestID)
}

func TestNewSQLStore_Validation(t *testing.T) {
	_, err := NewSQLStore(context.Background(), nil, "sqlite")
	assert.Error(t, err)

	store := &SQLStore{dialect: "postgres"}
	assert.Equal(t, "$1, $2, $3", store.placeholders(3))
	store.dialect = "mysql"
	assert.Equal(t, "?, ?", store.placeholders(2))
}
