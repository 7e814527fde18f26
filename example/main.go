// This is an example program demonstrating mcpbridge usage: it loads the
// conventional .mcp.json configuration, verifies every enabled server,
// fetches tool catalogs from the reachable ones and persists the results.
// Run with: go run ./example [path/to/.mcp.json]
package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"log"
	"os"

	"cdr.dev/slog"
	"cdr.dev/slog/sloggers/sloghuman"
	"github.com/mcpbridge/mcpbridge"
	"github.com/mcpbridge/mcpbridge/config"

	_ "modernc.org/sqlite"
)

func main() {
	ctx := context.Background()
	logger := slog.Make(sloghuman.Sink(os.Stderr)).Leveled(slog.LevelDebug)

	configPath := ""
	if len(os.Args) > 1 {
		configPath = os.Args[1]
	}
	cwd, err := os.Getwd()
	if err != nil {
		log.Fatalf("getwd: %v", err)
	}

	result := config.Load(ctx, logger, configPath, cwd)
	if result == nil {
		log.Fatalf("no %s found relative to %s", config.DefaultFileName, cwd)
	}
	enabled, disabled, invalid := result.Partition(ctx, logger)
	for _, s := range disabled {
		logger.Info(ctx, "skipping disabled server", slog.F("server", s.Name))
	}
	for _, s := range invalid {
		logger.Warn(ctx, "skipping invalid server", slog.F("server", s.Name))
	}
	if len(enabled) == 0 {
		log.Fatal("no enabled servers in configuration")
	}

	// SQLite with WAL mode for better concurrency.
	db, err := sql.Open("sqlite", "mcpbridge.db?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	defer db.Close()
	db.SetMaxOpenConns(1) // SQLite only supports one writer at a time.

	if err := initSchema(db); err != nil {
		log.Fatalf("init schema: %v", err)
	}
	recorder := &SQLiteRecorder{db: db, logger: logger}

	bridge := mcpbridge.New(mcpbridge.SettingsFromEnv(), logger.Named("mcpbridge"))

	statuses := bridge.CheckServers(ctx, enabled)
	var reachable []config.Server
	for i, status := range statuses {
		_ = recorder.RecordCheck(ctx, status)
		if status.Status == mcpbridge.StatusConnected {
			reachable = append(reachable, enabled[i])
		}
	}

	records := bridge.FetchTools(ctx, reachable)
	for _, rec := range records {
		_ = recorder.RecordCatalog(ctx, rec)
	}

	out := json.NewEncoder(os.Stdout)
	out.SetIndent("", "  ")
	if err := out.Encode(map[string]any{
		"statuses": statuses,
		"tools":    records,
	}); err != nil {
		log.Fatalf("encode results: %v", err)
	}
}
