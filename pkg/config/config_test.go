package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dieharders/ai-text-server-sub000/pkg/config/provider"
)

func TestDefault(t *testing.T) {
	t.Setenv("OLLAMA_HOST", "")
	cfg := Default()

	assert.Equal(t, DefaultHost, cfg.Server.Host)
	assert.Equal(t, DefaultPort, cfg.Server.Port)
	assert.Equal(t, "info", cfg.Logger.Level)
	assert.Equal(t, EngineProviderOllama, cfg.Engine.Provider)
	assert.Equal(t, DefaultOllamaURL, cfg.Engine.BaseURL)
	assert.Equal(t, DefaultContextWindow, cfg.Engine.ContextWindow)
	assert.Equal(t, 30*time.Minute, cfg.Engine.KeepAlive.Duration())
	assert.Equal(t, "tools/functions", cfg.Tools.UserDir)
	assert.True(t, BoolValue(cfg.Tools.Watch, false))
	assert.Equal(t, VectorTypeChromem, cfg.RAG.Vector.Type)
	assert.Equal(t, 3, cfg.RAG.SimilarityTopK)
	assert.False(t, BoolValue(cfg.History.Enabled, true))
	assert.NoError(t, cfg.Validate())
}

func TestParse_YAML(t *testing.T) {
	t.Setenv("TEST_ENGINE_URL", "http://gpu-box:11434")

	data := []byte(`
server:
  port: 9000
  write_timeout: 2m
engine:
  base_url: ${TEST_ENGINE_URL}
  model: ${TEST_MODEL:-mistral}
  timeout: 15
tools:
  prebuilt: [calculator]
  command:
    allowed_commands: python3,node
rag:
  vector:
    type: qdrant
  response_mode: refine
`)

	cfg, err := Parse(data)
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, 2*time.Minute, cfg.Server.WriteTimeout.Duration())
	assert.Equal(t, "http://gpu-box:11434", cfg.Engine.BaseURL)
	assert.Equal(t, "mistral", cfg.Engine.Model)
	assert.Equal(t, 15*time.Second, cfg.Engine.Timeout.Duration())
	assert.Equal(t, []string{"calculator"}, cfg.Tools.Prebuilt)
	assert.Equal(t, []string{"python3", "node"}, cfg.Tools.Command.AllowedCommands)
	assert.Equal(t, "localhost", cfg.RAG.Vector.Qdrant.Host)
	assert.Equal(t, 6334, cfg.RAG.Vector.Qdrant.Port)
	assert.Equal(t, ResponseModeRefine, cfg.RAG.ResponseMode)
}

func TestParse_JSON(t *testing.T) {
	cfg, err := Parse([]byte(`{"server": {"host": "0.0.0.0"}, "logger": {"level": "debug"}}`))
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, "debug", cfg.Logger.Level)
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{"bad duration", "engine:\n  timeout: soon\n", "invalid duration"},
		{"bad log format", "logger:\n  format: xml\n", "logger: invalid log format"},
		{"bad provider", "engine:\n  provider: openai\n", "engine: invalid engine provider"},
		{"duplicate prebuilt", "tools:\n  prebuilt: [clock, clock]\n", "listed twice"},
		{"bad response mode", "rag:\n  response_mode: tree\n", "invalid response_mode"},
		{"history needs host", "history:\n  enabled: true\n  database:\n    driver: postgres\n    database: textserver\n", "host is required"},
		{"bad tracing exporter", "observability:\n  tracing:\n    enabled: true\n    exporter: jaeger\n", "observability: tracing"},
		{"not yaml or json", "server: [unclosed", "failed to parse config"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestDatabaseConfig_DSN(t *testing.T) {
	tests := []struct {
		name   string
		cfg    DatabaseConfig
		dsn    string
		driver string
	}{
		{
			name:   "sqlite default path",
			cfg:    DatabaseConfig{},
			dsn:    ".textserver/history.db",
			driver: "sqlite3",
		},
		{
			name:   "postgres",
			cfg:    DatabaseConfig{Driver: "postgres", Host: "db", Database: "ts", Username: "u", Password: "p"},
			dsn:    "host=db port=5432 dbname=ts user=u password=p sslmode=disable",
			driver: "postgres",
		},
		{
			name:   "mysql",
			cfg:    DatabaseConfig{Driver: "mysql", Host: "db", Database: "ts", Username: "u", Password: "p"},
			dsn:    "u:p@tcp(db:3306)/ts?parseTime=true",
			driver: "mysql",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := tt.cfg
			cfg.SetDefaults()
			require.NoError(t, cfg.Validate())
			assert.Equal(t, tt.dsn, cfg.DSN())
			assert.Equal(t, tt.driver, cfg.DriverName())
		})
	}
}

func TestDBPool_SQLite(t *testing.T) {
	cfg := DatabaseConfig{Database: filepath.Join(t.TempDir(), "nested", "history.db")}
	cfg.SetDefaults()

	pool := NewDBPool()
	defer pool.Close()

	db1, err := pool.Get(context.Background(), &cfg)
	require.NoError(t, err)
	db2, err := pool.Get(context.Background(), &cfg)
	require.NoError(t, err)
	assert.Same(t, db1, db2)

	_, err = os.Stat(cfg.Database)
	assert.NoError(t, err)
}

func TestLoadConfigFile(t *testing.T) {
	t.Run("empty path gives defaults", func(t *testing.T) {
		cfg, loader, err := LoadConfigFile(context.Background(), "")
		require.NoError(t, err)
		assert.Nil(t, loader)
		assert.Equal(t, DefaultPort, cfg.Server.Port)
	})

	t.Run("missing file", func(t *testing.T) {
		_, _, err := LoadConfigFile(context.Background(), filepath.Join(t.TempDir(), "nope.yaml"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to read config file")
	})

	t.Run("reads file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "textserver.yaml")
		require.NoError(t, os.WriteFile(path, []byte("server:\n  port: 8123\n"), 0o644))

		cfg, loader, err := LoadConfigFile(context.Background(), path)
		require.NoError(t, err)
		defer loader.Close()
		assert.Equal(t, 8123, cfg.Server.Port)
	})
}

func TestLoader_WatchStatic(t *testing.T) {
	p := provider.NewStaticProvider([]byte("server:\n  port: 8100\n"))

	reloaded := make(chan *Config, 8)
	loader := NewLoader(p, WithOnChange(func(cfg *Config) { reloaded <- cfg }))

	cfg, err := loader.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 8100, cfg.Server.Port)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- loader.Watch(ctx) }()

	// Watch registers asynchronously; keep nudging until the reload lands.
	var got *Config
	require.Eventually(t, func() bool {
		p.Update([]byte("server:\n  port: 8200\n"))
		select {
		case got = <-reloaded:
			return true
		default:
			return false
		}
	}, 2*time.Second, 20*time.Millisecond)
	assert.Equal(t, 8200, got.Server.Port)

	cancel()
	assert.NoError(t, <-done)
}

func TestLoader_WatchFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "textserver.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: 8100\n"), 0o644))

	p, err := provider.NewFileProvider(path)
	require.NoError(t, err)

	reloaded := make(chan *Config, 4)
	loader := NewLoader(p)
	loader.SetOnChange(func(cfg *Config) { reloaded <- cfg })
	defer loader.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = loader.Watch(ctx) }()

	// Give the watcher a moment to attach before writing.
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: 8300\n"), 0o644))

	select {
	case cfg := <-reloaded:
		assert.Equal(t, 8300, cfg.Server.Port)
	case <-time.After(3 * time.Second):
		t.Fatal("config was not reloaded")
	}
}

func TestExpandEnvString(t *testing.T) {
	t.Setenv("TS_SET", "value")
	t.Setenv("TS_EMPTY", "")

	assert.Equal(t, "value", expandEnvString("${TS_SET}"))
	assert.Equal(t, "value", expandEnvString("$TS_SET"))
	assert.Equal(t, "fallback", expandEnvString("${TS_EMPTY:-fallback}"))
	assert.Equal(t, "x-value-y", expandEnvString("x-${TS_SET}-y"))
	assert.Equal(t, "", expandEnvString("${TS_UNSET_VAR}"))
}

func TestLoadDotEnvForConfig(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("TS_DOTENV_TEST=from-file\n"), 0o644))
	t.Setenv("TS_DOTENV_TEST", "")
	os.Unsetenv("TS_DOTENV_TEST")

	LoadDotEnvForConfig(filepath.Join(dir, "textserver.yaml"))
	assert.Equal(t, "from-file", os.Getenv("TS_DOTENV_TEST"))

	t.Setenv("TS_DOTENV_TEST", "preset")
	LoadDotEnvForConfig(filepath.Join(dir, "textserver.yaml"))
	assert.Equal(t, "preset", os.Getenv("TS_DOTENV_TEST"))
}
