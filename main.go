// Copyright (C) 2025 Kanban Lab (dev@kanbanlab.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Command boardsync starts the collaborative kanban board server.
//
// It reads configuration from environment variables and runs until
// SIGINT/SIGTERM.
//
// # Environment Variables
//
//   - BOARD_PORT: HTTP server port (default: 12400)
//   - BOARD_DATA_DIR: embedded store directory (default: ./data/board)
//   - BOARD_IN_MEMORY: "true" runs the store without persistence;
//     meant for demos and end-to-end tests
//   - BOARD_SESSION: board session name clients join (default: board)
//   - BOARD_LOG_LEVEL: minimum log level: debug, info, warn, error
//     (default: info)
//   - BOARD_LOG_DIR: when set, also write JSON logs to daily files in
//     this directory
//   - ACTIVITY_RETENTION_DAYS: activity retention window (default: 30)
//   - RETENTION_INTERVAL: background purge interval, Go duration
//     syntax, e.g. "1h"; empty or "0" disables the scheduler
//   - OTEL_EXPORTER_OTLP_ENDPOINT: OTLP collector address (optional;
//     tracing is off when unset)
//
// # Usage
//
//	go build -o boardsync .
//	BOARD_PORT=8080 ./boardsync
package main

import (
	"log"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/kanbanlab/boardsync/pkg/logging"
	"github.com/kanbanlab/boardsync/services/board"
)

func main() {
	logger, err := logging.New(logging.Config{
		Level:   logging.ParseLevel(getEnvString("BOARD_LOG_LEVEL", "info")),
		LogDir:  os.Getenv("BOARD_LOG_DIR"),
		Service: "board",
		JSON:    true,
	})
	if err != nil {
		log.Fatalf("Failed to initialize logging: %v", err)
	}
	defer logger.Close()
	slog.SetDefault(logger.Slog())

	cfg := board.Config{
		Port:              getEnvInt("BOARD_PORT", 12400),
		DataDir:           getEnvString("BOARD_DATA_DIR", "./data/board"),
		InMemory:          getEnvBool("BOARD_IN_MEMORY", false),
		Session:           getEnvString("BOARD_SESSION", "board"),
		RetentionDays:     getEnvInt("ACTIVITY_RETENTION_DAYS", 30),
		RetentionInterval: getEnvDuration("RETENTION_INTERVAL", 0),
		OTelEndpoint:      os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		EnableMetrics:     true,
	}

	slog.Info("Starting boardsync",
		"port", cfg.Port,
		"data_dir", cfg.DataDir,
		"session", cfg.Session,
		"retention_days", cfg.RetentionDays,
	)

	// Enterprise builds pass custom ServiceOptions here.
	svc, err := board.New(cfg, nil)
	if err != nil {
		logger.Close()
		log.Fatalf("Failed to create board service: %v", err)
	}

	if err := svc.Run(); err != nil {
		logger.Close()
		log.Fatalf("Board service error: %v", err)
	}
}

// getEnvString returns the environment variable value or a default.
func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt returns the environment variable as int or a default.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvBool returns the environment variable as bool or a default.
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

// getEnvDuration returns the environment variable as a duration or a
// default. Malformed values fall back to the default.
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
