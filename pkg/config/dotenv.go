package config

import (
	"log/slog"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
)

// LoadDotEnv loads .env files without overwriting variables already set.
// Explicit paths are tried first, then ./.env, then ~/.env.
func LoadDotEnv(paths ...string) {
	for _, path := range paths {
		if path != "" {
			loadIfExists(path)
		}
	}
	loadIfExists(".env")
	if home, err := os.UserHomeDir(); err == nil {
		loadIfExists(filepath.Join(home, ".env"))
	}
}

// LoadDotEnvForConfig also looks for .env beside the config file.
func LoadDotEnvForConfig(configPath string) {
	if configPath == "" {
		LoadDotEnv()
		return
	}
	absPath, err := filepath.Abs(configPath)
	if err != nil {
		LoadDotEnv()
		return
	}
	LoadDotEnv(filepath.Join(filepath.Dir(absPath), ".env"))
}

func loadIfExists(path string) {
	if _, err := os.Stat(path); err != nil {
		return
	}
	if err := godotenv.Load(path); err != nil {
		slog.Debug("Failed to load .env file", "path", path, "error", err)
		return
	}
	slog.Debug("Loaded environment from .env", "path", path)
}
