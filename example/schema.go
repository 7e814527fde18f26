package main

import "database/sql"

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS mcpbridge_checks (
		id TEXT PRIMARY KEY,
		server TEXT NOT NULL,
		status TEXT NOT NULL,
		server_name TEXT,
		server_version TEXT,
		error TEXT,
		checked_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS mcpbridge_catalogs (
		id TEXT PRIMARY KEY,
		server TEXT NOT NULL,
		tool_count INTEGER NOT NULL,
		error TEXT,
		fetched_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS mcpbridge_tools (
		id TEXT PRIMARY KEY,
		catalog_id TEXT NOT NULL,
		server TEXT NOT NULL,
		tool TEXT NOT NULL,
		description TEXT,
		input_schema TEXT,
		FOREIGN KEY (catalog_id) REFERENCES mcpbridge_catalogs(id)
	);

	CREATE INDEX IF NOT EXISTS idx_checks_server ON mcpbridge_checks(server);
	CREATE INDEX IF NOT EXISTS idx_tools_catalog ON mcpbridge_tools(catalog_id);
	`
	_, err := db.Exec(schema)
	return err
}
