package mcpbridge

import (
	"context"
	"fmt"
	"strings"
	"time"

	"cdr.dev/slog"

	"github.com/mcpbridge/mcpbridge/config"
	"github.com/mcpbridge/mcpbridge/proc"
	"github.com/mcpbridge/mcpbridge/security"
	"github.com/mcpbridge/mcpbridge/wire"
)

// diagnosticTailBytes bounds the amount of process output attached to a
// failure message.
const diagnosticTailBytes = 1024

// verifyStdio spawns the configured command, sends an initialize request and
// watches stdout for the handshake. All completion signals race: handshake
// seen, process error, process exit, deadline. The first one wins and the
// child is dead before this function returns.
func (b *Bridge) verifyStdio(ctx context.Context, name string, cfg config.ServerConfig) ServerStatus {
	logger := b.callLogger("stdio-verify", name)
	status := ServerStatus{Name: name, Status: StatusPending}

	if ok, reason := security.ValidateCommand(cfg.Command); !ok {
		// Advisory only: warn and proceed.
		logger.Warn(ctx, "command is not allow-listed, proceeding anyway",
			slog.F("command", cfg.Command), slog.F("reason", reason))
	}

	p, err := proc.Start(ctx, logger, name, cfg.Command, cfg.Args, security.SafeEnv(cfg.Env))
	if err != nil {
		status.Status = StatusFailed
		status.Error = err.Error()
		return status
	}
	defer reap(p)

	if err := b.sendRequest(ctx, logger, p, wire.NewInitializeRequest(1)); err != nil {
		status.Status = StatusFailed
		status.Error = err.Error()
		return status
	}

	timer := time.NewTimer(b.settings.StdioVerifyTimeout)
	defer timer.Stop()

	for {
		select {
		case ev, ok := <-p.Events():
			if !ok {
				return status
			}
			switch ev.Kind {
			case proc.EventStdout:
				if info := wire.ExtractServerInfo(p.Stdout()); info != nil {
					if b.settings.Debug {
						logger.Debug(ctx, "handshake completed",
							slog.F("server_info", info))
					}
					status.Status = StatusConnected
					status.ServerInfo = info
					return status
				}
			case proc.EventStderr:
				// Accumulated for diagnostics only.
			case proc.EventExit:
				return stdioExitStatus(status, p, ev)
			}
		case <-timer.C:
			// Inconclusive, not a hard failure: some servers are merely
			// slow to start.
			logger.Debug(ctx, "verification timed out, reporting pending")
			return status
		case <-ctx.Done():
			return status
		}
	}
}

// stdioExitStatus interprets a process exit observed before a live handshake
// match. A handshake anywhere in the accumulated output still counts as
// success regardless of exit code.
func stdioExitStatus(status ServerStatus, p *proc.Process, ev proc.Event) ServerStatus {
	if info := wire.ExtractServerInfo(p.Stdout()); info != nil {
		status.Status = StatusConnected
		status.ServerInfo = info
		return status
	}
	if ev.Code == 0 {
		status.Status = StatusPending
		status.Error = "process closed without answering"
		return status
	}
	status.Status = StatusFailed
	status.Error = fmt.Sprintf("process exited with code %d: %s", ev.Code, processTail(p))
	return status
}

// sendRequest writes one message to the child's stdin, logging the payload
// when debug logging is on.
func (b *Bridge) sendRequest(ctx context.Context, logger slog.Logger, p *proc.Process, req wire.Request) error {
	data, err := req.Encode()
	if err != nil {
		return err
	}
	if b.settings.Debug {
		logger.Debug(ctx, "sending request", slog.F("payload", string(data)))
	}
	return p.Write(data)
}

// reap terminates the child and drains its event stream to closure. Called
// on every exit path so a call never returns while its process lives.
func reap(p *proc.Process) {
	p.Terminate()
	for range p.Events() {
	}
}

// processTail summarizes the trailing process output for an error message.
func processTail(p *proc.Process) string {
	stdout := strings.TrimSpace(p.TailStdout(diagnosticTailBytes))
	stderr := strings.TrimSpace(p.TailStderr(diagnosticTailBytes))
	switch {
	case stdout == "" && stderr == "":
		return "(no output)"
	case stderr == "":
		return stdout
	case stdout == "":
		return stderr
	default:
		return stdout + " | " + stderr
	}
}
