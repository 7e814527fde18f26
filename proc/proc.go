// Package proc spawns and supervises MCP server child processes. Each
// Process is exclusively owned by the verification or tools-fetch call that
// started it and is guaranteed dead before that call returns: Terminate
// sends a graceful signal and escalates to a forceful kill when the child
// does not exit within the escalation delay.
package proc

import (
	"context"
	"fmt"
	"io"
	"os/exec"
	"runtime"
	"strings"
	"sync"
	"syscall"
	"time"

	"cdr.dev/slog"
)

const (
	// killEscalationDelay is how long Terminate waits for a graceful exit
	// before sending SIGKILL.
	killEscalationDelay = 500 * time.Millisecond

	// outputLimit bounds each accumulated stdio buffer. Older output is
	// discarded from the front once the limit is reached.
	outputLimit = 256 * 1024

	readChunkSize = 32 * 1024
)

// EventKind discriminates Process events.
type EventKind int

const (
	// EventStdout carries a chunk of standard output.
	EventStdout EventKind = iota
	// EventStderr carries a chunk of standard error.
	EventStderr
	// EventExit is the final event before the channel closes.
	EventExit
)

// Event is one occurrence on a supervised process. Chunk is only set for
// stdout/stderr events; Code and Err only for the exit event. Code is -1
// when the process was killed by a signal.
type Event struct {
	Kind  EventKind
	Chunk []byte
	Code  int
	Err   error
}

// Process is one spawned MCP server. The Events channel MUST be drained
// until it closes; it closes shortly after the exit event, and Terminate
// guarantees an exit.
type Process struct {
	name   string
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	logger slog.Logger
	logCtx context.Context

	events chan Event
	done   chan struct{}

	stdout *tailBuffer
	stderr *tailBuffer

	terminateOnce sync.Once

	writeMu sync.Mutex
}

// Start spawns command with the given argument list and environment, wiring
// stdio and the supervision goroutines. On Windows, script-type launchers
// are run through the command interpreter; everything else is executed
// directly without shell interpretation.
func Start(ctx context.Context, logger slog.Logger, name, command string, args []string, env []string) (*Process, error) {
	var cmd *exec.Cmd
	if needsShell(command) {
		shellArgs := append([]string{"/c", command}, args...)
		cmd = exec.Command("cmd.exe", shellArgs...)
	} else {
		cmd = exec.Command(command, args...)
	}
	cmd.Env = env

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("spawn %q: %w", command, err)
	}

	p := &Process{
		name:   name,
		cmd:    cmd,
		stdin:  stdin,
		logger: logger,
		logCtx: context.WithoutCancel(ctx),
		events: make(chan Event, 64),
		done:   make(chan struct{}),
		stdout: newTailBuffer(outputLimit),
		stderr: newTailBuffer(outputLimit),
	}

	logger.Debug(ctx, "spawned server process",
		slog.F("server", name), slog.F("command", command), slog.F("pid", cmd.Process.Pid))

	var readers sync.WaitGroup
	readers.Add(2)
	go p.readLoop(&readers, stdout, EventStdout, p.stdout)
	go p.readLoop(&readers, stderr, EventStderr, p.stderr)
	go p.supervise(&readers)

	return p, nil
}

// Events returns the event stream. The caller owns draining it to closure.
func (p *Process) Events() <-chan Event {
	return p.events
}

// Write sends one newline-terminated JSON-RPC message to the child's stdin.
func (p *Process) Write(line []byte) error {
	p.writeMu.Lock()
	defer p.writeMu.Unlock()
	if _, err := p.stdin.Write(line); err != nil {
		return fmt.Errorf("write to %q stdin: %w", p.name, err)
	}
	return nil
}

// Stdout returns a copy of the accumulated (bounded) standard output.
func (p *Process) Stdout() []byte {
	return p.stdout.Bytes()
}

// TailStdout returns up to n trailing bytes of standard output.
func (p *Process) TailStdout(n int) string {
	return p.stdout.Tail(n)
}

// TailStderr returns up to n trailing bytes of standard error.
func (p *Process) TailStderr(n int) string {
	return p.stderr.Tail(n)
}

// Terminate is idempotent and a no-op once the process exited. It asks the
// child to exit gracefully, then kills it after killEscalationDelay. The
// escalation timer is dropped as soon as the child exits on its own, and it
// never pins host shutdown.
func (p *Process) Terminate() {
	p.terminateOnce.Do(func() {
		select {
		case <-p.done:
			return
		default:
		}

		if err := p.cmd.Process.Signal(syscall.SIGTERM); err != nil {
			// Signalling is unsupported or the process is in teardown;
			// go straight to the hard kill.
			_ = p.cmd.Process.Kill()
			return
		}
		timer := time.AfterFunc(killEscalationDelay, func() {
			_ = p.cmd.Process.Kill()
		})
		go func() {
			<-p.done
			timer.Stop()
		}()
	})
}

func (p *Process) readLoop(readers *sync.WaitGroup, r io.Reader, kind EventKind, buf *tailBuffer) {
	defer readers.Done()
	chunk := make([]byte, readChunkSize)
	for {
		n, err := r.Read(chunk)
		if n > 0 {
			data := make([]byte, n)
			copy(data, chunk[:n])
			buf.Write(data)
			p.events <- Event{Kind: kind, Chunk: data}
		}
		if err != nil {
			return
		}
	}
}

func (p *Process) supervise(readers *sync.WaitGroup) {
	// Pipes must be fully read before Wait reaps the child.
	readers.Wait()
	err := p.cmd.Wait()
	code := p.cmd.ProcessState.ExitCode()
	close(p.done)

	p.logger.Debug(p.logCtx, "server process exited",
		slog.F("server", p.name), slog.F("code", code))

	p.events <- Event{Kind: EventExit, Code: code, Err: err}
	close(p.events)
}

// scriptLaunchers cannot be exec'd directly on Windows because npm and
// friends install them as .cmd shims.
var scriptLaunchers = map[string]struct{}{
	"npx":  {},
	"npm":  {},
	"pnpm": {},
	"yarn": {},
	"bunx": {},
}

func needsShell(command string) bool {
	if runtime.GOOS != "windows" {
		return false
	}
	base := strings.ToLower(command)
	if i := strings.LastIndexAny(base, `/\`); i >= 0 {
		base = base[i+1:]
	}
	if strings.HasSuffix(base, ".cmd") || strings.HasSuffix(base, ".bat") {
		return true
	}
	base = strings.TrimSuffix(base, ".exe")
	_, ok := scriptLaunchers[base]
	return ok
}
