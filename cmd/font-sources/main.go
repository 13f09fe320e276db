// Package main is the entry point for font-sources.
package main

import (
	"log/slog"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/stacklok/font-sources/cmd/font-sources/app"
	"github.com/stacklok/font-sources/internal/config"
	"github.com/stacklok/font-sources/internal/logging"
)

// getLogLevel reads FONT_SOURCES_LOG_LEVEL, falling back to LOG_LEVEL.
// Defaults to slog.LevelInfo if neither is set or if the value is invalid.
func getLogLevel() slog.Level {
	v := viper.New()
	v.SetEnvPrefix(config.EnvPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	levelStr := v.GetString("LOG_LEVEL")
	if levelStr == "" {
		levelStr = os.Getenv("LOG_LEVEL")
	}

	level, err := logging.ParseLevel(levelStr)
	if err != nil {
		slog.Warn("Invalid LOG_LEVEL, using INFO", "value", levelStr)
	}
	return level
}

func main() {
	// A missing .env file is fine; it only supplies GH_TOKEN and friends.
	_ = godotenv.Load()

	level := new(slog.LevelVar)
	level.Set(getLogLevel())

	// stdout is reserved for the report
	handler := logging.NewHandler(logging.WithLevel(level))
	slog.SetDefault(slog.New(handler).With("run_id", uuid.NewString()))

	if err := app.NewRootCmd(level).Execute(); err != nil {
		slog.Error("font-sources failed", "error", err)
		os.Exit(1)
	}
}
