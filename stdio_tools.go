package mcpbridge

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"cdr.dev/slog"

	"github.com/mcpbridge/mcpbridge/config"
	"github.com/mcpbridge/mcpbridge/proc"
	"github.com/mcpbridge/mcpbridge/security"
	"github.com/mcpbridge/mcpbridge/wire"
)

// maxLineBytes caps a single demuxed stdout line. Anything longer is
// discarded wholesale rather than delivered truncated.
const maxLineBytes = 1 << 20

var errNoAnswer = errors.New("process closed without answering")

// fetchToolsStdio runs the full stdio conversation: initialize, initialized
// notification, tools/list. The whole exchange shares one deadline.
func (b *Bridge) fetchToolsStdio(ctx context.Context, name string, cfg config.ServerConfig) ToolsRecord {
	logger := b.callLogger("stdio-tools", name)
	rec := ToolsRecord{Name: name, Tools: []ToolDescriptor{}}

	if ok, reason := security.ValidateCommand(cfg.Command); !ok {
		logger.Warn(ctx, "command is not allow-listed, proceeding anyway",
			slog.F("command", cfg.Command), slog.F("reason", reason))
	}

	p, err := proc.Start(ctx, logger, name, cfg.Command, cfg.Args, security.SafeEnv(cfg.Env))
	if err != nil {
		rec.Error = err.Error()
		return rec
	}
	defer reap(p)

	timer := time.NewTimer(b.settings.ToolsTimeout)
	defer timer.Stop()

	conv := &stdioConversation{bridge: b, logger: logger, proc: p, timer: timer}

	if _, err := conv.roundTrip(ctx, wire.NewInitializeRequest(1), 1); err != nil {
		rec.Error = stageError("Initialize", err)
		return rec
	}
	if err := b.sendRequest(ctx, logger, p, wire.NewInitializedNotification()); err != nil {
		rec.Error = stageError("Initialize", err)
		return rec
	}
	resp, err := conv.roundTrip(ctx, wire.NewToolsListRequest(2), 2)
	if err != nil {
		rec.Error = stageError("Tools/list", err)
		return rec
	}

	var result wire.ToolsListResult
	if err := json.Unmarshal(resp.Result, &result); err != nil {
		rec.Error = stageError("Tools/list", fmt.Errorf("decode result: %w", err))
		return rec
	}
	if result.Tools != nil {
		rec.Tools = result.Tools
	}
	logger.Debug(ctx, "fetched tool catalog", slog.F("count", len(rec.Tools)))
	return rec
}

// stdioConversation demuxes the child's stdout into newline-delimited
// messages and matches responses to request ids. Non-JSON lines are skipped
// so servers that log to stdout still work.
type stdioConversation struct {
	bridge *Bridge
	logger slog.Logger
	proc   *proc.Process
	timer  *time.Timer

	lines lineSplitter
}

// roundTrip writes req and blocks until the response carrying id arrives,
// the process dies, or the shared deadline passes.
func (c *stdioConversation) roundTrip(ctx context.Context, req wire.Request, id int64) (*wire.Response, error) {
	if err := c.bridge.sendRequest(ctx, c.logger, c.proc, req); err != nil {
		return nil, err
	}
	for {
		// Lines buffered from a previous chunk are served first.
		for {
			line, ok := c.lines.Next()
			if !ok {
				break
			}
			resp, err := c.match(ctx, line, id)
			if err != nil {
				return nil, err
			}
			if resp != nil {
				return resp, nil
			}
		}
		select {
		case ev, open := <-c.proc.Events():
			if !open {
				return nil, errNoAnswer
			}
			switch ev.Kind {
			case proc.EventStdout:
				c.lines.Feed(ev.Chunk)
			case proc.EventStderr:
				// Diagnostics only.
			case proc.EventExit:
				if ev.Code == 0 {
					return nil, errNoAnswer
				}
				return nil, fmt.Errorf("process exited with code %d: %s", ev.Code, processTail(c.proc))
			}
		case <-c.timer.C:
			return nil, errors.New("timed out waiting for response")
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// match decodes one line. An error field on any well-formed response aborts
// the conversation, not only on the awaited id.
func (c *stdioConversation) match(ctx context.Context, line []byte, id int64) (*wire.Response, error) {
	var resp wire.Response
	if err := json.Unmarshal(line, &resp); err != nil || resp.JSONRPC != "2.0" {
		return nil, nil
	}
	if resp.Error != nil {
		return nil, resp.Error
	}
	if resp.ID != id {
		if c.bridge.settings.Debug {
			c.logger.Debug(ctx, "skipping message with unexpected id", slog.F("id", resp.ID))
		}
		return nil, nil
	}
	return &resp, nil
}

// stageError renders a conversation failure for the record. JSON-RPC errors
// from the server keep the "<stage> error:" form.
func stageError(stage string, err error) string {
	var rpcErr *wire.RPCError
	if errors.As(err, &rpcErr) {
		return stage + " error: " + rpcErr.Error()
	}
	return stage + ": " + err.Error()
}

// lineSplitter reassembles newline-delimited messages from arbitrary chunk
// boundaries. Oversized lines are dropped in full, including the part that
// arrives in later chunks.
type lineSplitter struct {
	pending     [][]byte
	partial     []byte
	overflowing bool
}

func (s *lineSplitter) Feed(chunk []byte) {
	for len(chunk) > 0 {
		nl := bytes.IndexByte(chunk, '\n')
		if nl < 0 {
			if s.overflowing {
				return
			}
			s.partial = append(s.partial, chunk...)
			if len(s.partial) > maxLineBytes {
				s.partial = nil
				s.overflowing = true
			}
			return
		}
		if s.overflowing {
			s.overflowing = false
		} else {
			line := append(s.partial, chunk[:nl]...)
			s.partial = nil
			line = bytes.TrimSuffix(line, []byte("\r"))
			if len(line) > 0 {
				s.pending = append(s.pending, line)
			}
		}
		chunk = chunk[nl+1:]
	}
}

// Next pops the oldest complete line, if any.
func (s *lineSplitter) Next() ([]byte, bool) {
	if len(s.pending) == 0 {
		return nil, false
	}
	line := s.pending[0]
	s.pending = s.pending[1:]
	return line, true
}
