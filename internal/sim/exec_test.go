package sim

import (
	"bytes"
	"context"
	"runtime"
	"strings"
	"testing"
	"time"
)

func TestHostExecutor_Run(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("relies on unix coreutils")
	}

	ex := hostExecutor{}
	result, err := ex.Run(context.Background(), Command{
		Binary:  "echo",
		Args:    []string{"hello"},
		Timeout: 5 * time.Second,
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if result.ExitCode != 0 {
		t.Errorf("ExitCode = %d, want 0", result.ExitCode)
	}
	if !strings.Contains(result.Stdout, "hello") {
		t.Errorf("Stdout = %q, want it to contain hello", result.Stdout)
	}
	if result.Killed {
		t.Error("Killed = true for a fast command")
	}
}

func TestHostExecutor_NonZeroExit(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("relies on sh")
	}

	ex := hostExecutor{}
	result, err := ex.Run(context.Background(), Command{
		Binary:  "sh",
		Args:    []string{"-c", "echo oops >&2; exit 3"},
		Timeout: 5 * time.Second,
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if result.ExitCode != 3 {
		t.Errorf("ExitCode = %d, want 3", result.ExitCode)
	}
	if !strings.Contains(result.Stderr, "oops") {
		t.Errorf("Stderr = %q, want it to contain oops", result.Stderr)
	}
}

func TestHostExecutor_DeadlineKills(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("relies on sleep")
	}

	ex := hostExecutor{}
	start := time.Now()
	result, err := ex.Run(context.Background(), Command{
		Binary:  "sleep",
		Args:    []string{"10"},
		Timeout: 200 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if !result.Killed {
		t.Error("Killed = false, want the deadline to kill the process")
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("deadline did not fire promptly: %s", elapsed)
	}
}

func TestHostExecutor_CallerCancelIsAnError(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("relies on sleep")
	}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(100 * time.Millisecond)
		cancel()
	}()

	ex := hostExecutor{}
	_, err := ex.Run(ctx, Command{
		Binary:  "sleep",
		Args:    []string{"10"},
		Timeout: 30 * time.Second,
	})
	if err == nil {
		t.Fatal("expected caller cancellation to surface as an error")
	}
}

func TestCombined(t *testing.T) {
	tests := []struct {
		name   string
		result ExecResult
		want   string
	}{
		{"stdout only", ExecResult{Stdout: "out"}, "out"},
		{"stderr only", ExecResult{Stderr: "err"}, "err"},
		{"both", ExecResult{Stdout: "out", Stderr: "err"}, "out\nerr"},
		{"empty", ExecResult{}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.result.Combined(); got != tt.want {
				t.Errorf("Combined() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestLimitedWriter(t *testing.T) {
	var buf bytes.Buffer
	lw := &limitedWriter{w: &buf, max: 10}

	n, err := lw.Write([]byte("0123456789abcdef"))
	if err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if n != 16 {
		t.Errorf("n = %d, want the full input length 16", n)
	}
	if buf.String() != "0123456789" {
		t.Errorf("buffer = %q, want the first 10 bytes", buf.String())
	}
	if !lw.truncated {
		t.Error("truncated = false after overflow")
	}

	// Further writes are swallowed entirely.
	if n, _ := lw.Write([]byte("more")); n != 4 {
		t.Errorf("post-overflow n = %d, want 4", n)
	}
	if buf.Len() != 10 {
		t.Errorf("buffer grew after overflow: %d bytes", buf.Len())
	}
}
