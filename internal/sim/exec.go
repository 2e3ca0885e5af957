package sim

import (
	"bytes"
	"context"
	"io"
	"os/exec"
	"time"
)

// maxOutputBytes caps captured stdout and stderr per stream. Runaway
// $display loops can produce gigabytes before the deadline fires.
const maxOutputBytes = 1 << 20

// Command describes one toolchain invocation.
type Command struct {
	Binary  string
	Args    []string
	Dir     string
	Timeout time.Duration
}

// ExecResult is the raw result of one subprocess run.
type ExecResult struct {
	ExitCode  int
	Stdout    string
	Stderr    string
	Killed    bool
	Truncated bool
	Duration  time.Duration
}

// Combined returns stdout followed by stderr, newline-separated when
// both are present.
func (r *ExecResult) Combined() string {
	if r.Stderr == "" {
		return r.Stdout
	}
	if r.Stdout == "" {
		return r.Stderr
	}
	return r.Stdout + "\n" + r.Stderr
}

// Executor runs external toolchain commands. The host implementation
// shells out; tests substitute a fake.
type Executor interface {
	Run(ctx context.Context, cmd Command) (*ExecResult, error)
}

// hostExecutor runs commands directly on the host with a per-command
// deadline and bounded output capture.
type hostExecutor struct{}

func (hostExecutor) Run(ctx context.Context, cmd Command) (*ExecResult, error) {
	execCtx := ctx
	if cmd.Timeout > 0 {
		var cancel context.CancelFunc
		execCtx, cancel = context.WithTimeout(ctx, cmd.Timeout)
		defer cancel()
	}

	c := exec.CommandContext(execCtx, cmd.Binary, cmd.Args...)
	c.Dir = cmd.Dir

	var stdoutBuf, stderrBuf bytes.Buffer
	stdout := &limitedWriter{w: &stdoutBuf, max: maxOutputBytes}
	stderr := &limitedWriter{w: &stderrBuf, max: maxOutputBytes}
	c.Stdout = stdout
	c.Stderr = stderr

	started := time.Now()
	err := c.Run()

	result := &ExecResult{
		Stdout:    stdoutBuf.String(),
		Stderr:    stderrBuf.String(),
		Truncated: stdout.truncated || stderr.truncated,
		Duration:  time.Since(started),
	}

	if err != nil {
		switch {
		case execCtx.Err() == context.DeadlineExceeded && ctx.Err() == nil:
			// The per-command deadline fired, not the caller's context.
			result.Killed = true
			result.ExitCode = -1
			return result, nil
		case ctx.Err() != nil:
			return result, ctx.Err()
		default:
			if exitErr, ok := err.(*exec.ExitError); ok {
				result.ExitCode = exitErr.ExitCode()
				return result, nil
			}
			return result, err
		}
	}

	result.ExitCode = 0
	return result, nil
}

// limitedWriter caps total bytes written, silently discarding the
// excess so the child process never sees a write error.
type limitedWriter struct {
	w         io.Writer
	max       int64
	written   int64
	truncated bool
}

func (lw *limitedWriter) Write(p []byte) (int, error) {
	n := len(p)
	if lw.written >= lw.max {
		lw.truncated = true
		return n, nil
	}
	if remaining := lw.max - lw.written; int64(n) > remaining {
		lw.truncated = true
		written, err := lw.w.Write(p[:remaining])
		lw.written += int64(written)
		return n, err
	}
	written, err := lw.w.Write(p)
	lw.written += int64(written)
	return written, err
}
