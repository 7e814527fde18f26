package proc_test

import (
	"context"
	"runtime"
	"testing"
	"time"

	"cdr.dev/slog/sloggers/slogtest"
	"go.uber.org/goleak"

	"github.com/mcpbridge/mcpbridge/proc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func startShell(t *testing.T, script string) *proc.Process {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("tests drive /bin/sh scripts")
	}
	logger := slogtest.Make(t, nil)
	p, err := proc.Start(context.Background(), logger, "test-server", "/bin/sh", []string{"-c", script}, nil)
	require.NoError(t, err)
	return p
}

// drain consumes the event stream until closure, returning accumulated
// output and the exit code.
func drain(p *proc.Process) (stdout, stderr []byte, code int) {
	for ev := range p.Events() {
		switch ev.Kind {
		case proc.EventStdout:
			stdout = append(stdout, ev.Chunk...)
		case proc.EventStderr:
			stderr = append(stderr, ev.Chunk...)
		case proc.EventExit:
			code = ev.Code
		}
	}
	return stdout, stderr, code
}

func TestStartCapturesOutputAndExit(t *testing.T) {
	t.Parallel()

	p := startShell(t, `echo out; echo err >&2; exit 3`)
	stdout, stderr, code := drain(p)
	assert.Equal(t, "out\n", string(stdout))
	assert.Equal(t, "err\n", string(stderr))
	assert.Equal(t, 3, code)
	assert.Equal(t, "out\n", string(p.Stdout()))
}

func TestStartUnknownExecutable(t *testing.T) {
	t.Parallel()

	logger := slogtest.Make(t, nil)
	_, err := proc.Start(context.Background(), logger, "x", "/definitely/not/a/binary", nil, nil)
	require.Error(t, err)
}

func TestWriteReachesStdin(t *testing.T) {
	t.Parallel()

	p := startShell(t, `read line; echo "got $line"`)
	require.NoError(t, p.Write([]byte("hello\n")))
	stdout, _, code := drain(p)
	assert.Equal(t, "got hello\n", string(stdout))
	assert.Equal(t, 0, code)
}

func TestTerminateGraceful(t *testing.T) {
	t.Parallel()

	p := startShell(t, `exec sleep 30`)
	start := time.Now()
	p.Terminate()
	_, _, code := drain(p)
	assert.Less(t, time.Since(start), 3*time.Second)
	assert.Equal(t, -1, code, "killed by signal")
}

func TestTerminateEscalatesToKill(t *testing.T) {
	t.Parallel()

	// The child ignores SIGTERM, forcing the 500ms kill escalation.
	p := startShell(t, `trap '' TERM; while :; do sleep 1; done`)

	// Give the shell a moment to install the trap.
	time.Sleep(200 * time.Millisecond)

	start := time.Now()
	p.Terminate()
	_, _, code := drain(p)
	elapsed := time.Since(start)
	assert.GreaterOrEqual(t, elapsed, 400*time.Millisecond, "should have waited for escalation")
	assert.Less(t, elapsed, 5*time.Second)
	assert.Equal(t, -1, code)
}

func TestTerminateIdempotent(t *testing.T) {
	t.Parallel()

	p := startShell(t, `exec sleep 30`)
	p.Terminate()
	p.Terminate()
	drain(p)
	// Terminating an already-dead process must not panic or block.
	p.Terminate()
}

func TestTailBounded(t *testing.T) {
	t.Parallel()

	p := startShell(t, `i=0; while [ $i -lt 1000 ]; do echo "line $i"; i=$((i+1)); done`)
	drain(p)
	tail := p.TailStdout(64)
	assert.LessOrEqual(t, len(tail), 64)
	assert.Contains(t, tail, "line 999")
}
