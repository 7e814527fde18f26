package main

import (
	"context"
	"database/sql"
	"time"

	"cdr.dev/slog"
	"github.com/google/uuid"
	"github.com/mcpbridge/mcpbridge"
)

// SQLiteRecorder persists verification outcomes and tool catalogs so
// successive runs can be compared.
type SQLiteRecorder struct {
	db     *sql.DB
	logger slog.Logger
}

func (r *SQLiteRecorder) RecordCheck(ctx context.Context, status mcpbridge.ServerStatus) error {
	var serverName, serverVersion string
	if status.ServerInfo != nil {
		serverName = status.ServerInfo.Name
		serverVersion = status.ServerInfo.Version
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO mcpbridge_checks (id, server, status, server_name, server_version, error, checked_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		uuid.NewString(), status.Name, string(status.Status), serverName, serverVersion, status.Error, time.Now().UTC(),
	)
	if err != nil {
		r.logger.Warn(ctx, "failed to record check", slog.Error(err))
	}
	return err
}

func (r *SQLiteRecorder) RecordCatalog(ctx context.Context, rec mcpbridge.ToolsRecord) error {
	fetchedAt := time.Now().UTC()
	catalogID := uuid.NewString()
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO mcpbridge_catalogs (id, server, tool_count, error, fetched_at)
		VALUES (?, ?, ?, ?, ?)`,
		catalogID, rec.Name, len(rec.Tools), rec.Error, fetchedAt,
	)
	if err != nil {
		r.logger.Warn(ctx, "failed to record catalog", slog.Error(err))
		return err
	}
	for _, tool := range rec.Tools {
		_, err := r.db.ExecContext(ctx, `
			INSERT INTO mcpbridge_tools (id, catalog_id, server, tool, description, input_schema)
			VALUES (?, ?, ?, ?, ?, ?)`,
			uuid.NewString(), catalogID, rec.Name, tool.Name, tool.Description, string(tool.InputSchema),
		)
		if err != nil {
			r.logger.Warn(ctx, "failed to record tool", slog.F("tool", tool.Name), slog.Error(err))
			return err
		}
	}
	return nil
}
