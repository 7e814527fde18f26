package mcpbridge

import (
	"context"
	"net/http"

	"cdr.dev/slog"
	"github.com/google/uuid"

	"github.com/mcpbridge/mcpbridge/config"
	"github.com/mcpbridge/mcpbridge/utils"
)

// Bridge runs verification and tool-discovery calls against configured MCP
// servers. It holds no per-server state: every call is independent, so any
// number of checks may be in flight concurrently.
type Bridge struct {
	settings Settings
	logger   slog.Logger
	client   *http.Client
}

// New constructs a Bridge. The zero Settings value is replaced by
// DefaultSettings.
func New(settings Settings, logger slog.Logger) *Bridge {
	if settings == (Settings{}) {
		settings = DefaultSettings()
	}
	return &Bridge{
		settings: settings,
		logger:   logger,
		// Per-call deadlines come from contexts; the client itself must not
		// impose a second, hidden timeout.
		client: &http.Client{},
	}
}

// VerifyServer checks that one configured server is reachable and completes
// the MCP initialize handshake, dispatching on the configured transport.
func (b *Bridge) VerifyServer(ctx context.Context, srv config.Server) ServerStatus {
	if srv.Config.URL != "" {
		return b.verifyHTTP(ctx, srv.Name, srv.Config)
	}
	return b.verifyStdio(ctx, srv.Name, srv.Config)
}

// FetchServerTools retrieves the tool catalog of one configured server,
// dispatching on the configured transport.
func (b *Bridge) FetchServerTools(ctx context.Context, srv config.Server) ToolsRecord {
	if srv.Config.URL != "" {
		return b.fetchToolsHTTP(ctx, srv.Name, srv.Config)
	}
	return b.fetchToolsStdio(ctx, srv.Name, srv.Config)
}

// CheckServers verifies all servers concurrently and returns one status per
// server, in input order. Checks share no state and do not affect each other.
func (b *Bridge) CheckServers(ctx context.Context, servers []config.Server) []ServerStatus {
	statuses := make([]ServerStatus, len(servers))
	cg := utils.NewConcurrentGroup()
	for i, srv := range servers {
		i, srv := i, srv
		cg.Go(func() error {
			statuses[i] = b.VerifyServer(ctx, srv)
			return nil
		})
	}
	_ = cg.Wait()
	return statuses
}

// FetchTools retrieves tool catalogs for all servers concurrently, one
// record per server in input order.
func (b *Bridge) FetchTools(ctx context.Context, servers []config.Server) []ToolsRecord {
	records := make([]ToolsRecord, len(servers))
	cg := utils.NewConcurrentGroup()
	for i, srv := range servers {
		i, srv := i, srv
		cg.Go(func() error {
			records[i] = b.FetchServerTools(ctx, srv)
			return nil
		})
	}
	_ = cg.Wait()
	return records
}

// callLogger scopes the logger to one call with a fresh correlation ID, so
// interleaved concurrent checks can be told apart in the log stream.
func (b *Bridge) callLogger(scope, server string) slog.Logger {
	return b.logger.Named(scope).With(
		slog.F("server", server),
		slog.F("call_id", uuid.NewString()),
	)
}
