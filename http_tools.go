package mcpbridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"cdr.dev/slog"

	"github.com/mcpbridge/mcpbridge/config"
	"github.com/mcpbridge/mcpbridge/wire"
)

// Retry policy for the HTTP tools conversation. Retries are bounded so a
// misbehaving server cannot hold the host in a backoff chain.
const (
	toolsMaxRetries     = 2
	sessionRetryBackoff = 500 * time.Millisecond
	networkRetryBackoff = time.Second
	attemptTimeoutBase  = 10 * time.Second
	attemptTimeoutStep  = 5 * time.Second
)

// fetchToolsHTTP runs initialize then tools/list against the endpoint,
// echoing a captured Mcp-Session-Id on every request after the one that
// produced it. Failed attempts are retried up to toolsMaxRetries times with
// backoff chosen by failure class; the last error wins after exhaustion.
func (b *Bridge) fetchToolsHTTP(ctx context.Context, name string, cfg config.ServerConfig) ToolsRecord {
	rec := ToolsRecord{Name: name, Tools: []ToolDescriptor{}}
	call := b.newHTTPCall("http-tools", name, cfg)

	var lastErr error
	for attempt := 0; attempt <= toolsMaxRetries; attempt++ {
		if attempt > 0 {
			delay := retryDelay(lastErr, attempt)
			call.logger.Debug(ctx, "retrying tools fetch",
				slog.F("attempt", attempt),
				slog.F("delay", delay),
				slog.Error(lastErr))
			if delay > 0 {
				select {
				case <-time.After(delay):
				case <-ctx.Done():
					rec.Error = ctx.Err().Error()
					return rec
				}
			}
		}
		tools, err := call.fetchOnce(ctx, attempt)
		if err == nil {
			rec.Tools = tools
			call.logger.Debug(ctx, "fetched tool catalog", slog.F("count", len(tools)))
			return rec
		}
		lastErr = err
	}
	rec.Error = lastErr.Error()
	return rec
}

// fetchOnce is a single attempt at the full conversation under its own
// deadline, which grows with the attempt number to tolerate slow cold starts.
func (c *httpCall) fetchOnce(ctx context.Context, attempt int) ([]wire.Tool, error) {
	ctx, cancel := context.WithTimeout(ctx, attemptTimeoutBase+attemptTimeoutStep*time.Duration(attempt))
	defer cancel()

	resp, err := c.post(ctx, wire.NewInitializeRequest(1))
	if err != nil {
		return nil, fmt.Errorf("initialize: %w", err)
	}
	if resp.Error != nil {
		return nil, fmt.Errorf("initialize: %w", error(resp.Error))
	}

	// Notification only. Some servers answer 202 with an empty body, so the
	// outcome is not load-bearing.
	c.notify(ctx, wire.NewInitializedNotification())

	resp, err = c.post(ctx, wire.NewToolsListRequest(2))
	if err != nil {
		return nil, fmt.Errorf("tools/list: %w", err)
	}
	if resp.Error != nil {
		return nil, fmt.Errorf("tools/list: %w", error(resp.Error))
	}

	var result wire.ToolsListResult
	if err := json.Unmarshal(resp.Result, &result); err != nil {
		return nil, fmt.Errorf("decode tools/list result: %w", err)
	}
	if result.Tools == nil {
		return []wire.Tool{}, nil
	}
	return result.Tools, nil
}

// retryDelay classifies the previous failure. Session negotiation errors and
// network failures sleep with linear backoff; a timed-out attempt retries
// immediately since the next attempt already runs under a longer deadline.
func retryDelay(err error, attempt int) time.Duration {
	var rpcErr *wire.RPCError
	switch {
	case errors.As(err, &rpcErr) && sessionError(rpcErr):
		return sessionRetryBackoff * time.Duration(attempt)
	case errors.Is(err, context.DeadlineExceeded):
		return 0
	default:
		return networkRetryBackoff * time.Duration(attempt)
	}
}

func sessionError(rpcErr *wire.RPCError) bool {
	return rpcErr.Code == wire.ErrCodeInvalidRequest ||
		strings.Contains(strings.ToLower(rpcErr.Message), "session")
}
