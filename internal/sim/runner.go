package sim

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	iverilogBin = "iverilog"
	vvpBin      = "vvp"
)

// RunnerConfig holds the verification toolchain settings.
type RunnerConfig struct {
	// WorkDir is the root under which per-attempt directories are
	// created. Each Verify call gets a fresh directory, never reused.
	WorkDir string

	// CompileTimeout bounds the iverilog phase.
	CompileTimeout time.Duration

	// SimTimeout bounds the vvp phase.
	SimTimeout time.Duration
}

func (c RunnerConfig) withDefaults() RunnerConfig {
	if c.WorkDir == "" {
		c.WorkDir = "build"
	}
	if c.CompileTimeout <= 0 {
		c.CompileTimeout = 30 * time.Second
	}
	if c.SimTimeout <= 0 {
		c.SimTimeout = 10 * time.Second
	}
	return c
}

// Runner compiles and simulates one design+testbench pair per call.
type Runner struct {
	cfg    RunnerConfig
	exec   Executor
	logger *zap.Logger
}

// NewRunner returns a Runner that shells out to iverilog and vvp.
func NewRunner(cfg RunnerConfig, logger *zap.Logger) *Runner {
	return newRunnerWithExecutor(cfg, hostExecutor{}, logger)
}

func newRunnerWithExecutor(cfg RunnerConfig, ex Executor, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{cfg: cfg.withDefaults(), exec: ex, logger: logger}
}

// Probe reports whether the Icarus toolchain is installed.
func Probe() error {
	for _, bin := range []string{iverilogBin, vvpBin} {
		if _, err := exec.LookPath(bin); err != nil {
			return fmt.Errorf("%s not found in PATH (install Icarus Verilog): %w", bin, err)
		}
	}
	return nil
}

// Verify writes the sources into a fresh directory, compiles them, runs
// the simulation, and classifies the result. The returned error is
// non-nil only for faults outside the outcome taxonomy: context
// cancellation or a filesystem failure before the toolchain ran.
func (r *Runner) Verify(ctx context.Context, design, bench, moduleName string) (Outcome, error) {
	started := time.Now()

	dir := filepath.Join(r.cfg.WorkDir, moduleName+"_"+uuid.NewString()[:8])
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Outcome{}, fmt.Errorf("creating attempt directory: %w", err)
	}

	designFile := moduleName + ".v"
	benchFile := moduleName + "_tb.v"
	outFile := moduleName + ".out"

	if err := os.WriteFile(filepath.Join(dir, designFile), []byte(design), 0o644); err != nil {
		return Outcome{}, fmt.Errorf("writing design: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, benchFile), []byte(bench), 0o644); err != nil {
		return Outcome{}, fmt.Errorf("writing testbench: %w", err)
	}

	r.logger.Debug("compiling",
		zap.String("module", moduleName),
		zap.String("dir", dir))

	compile, err := r.exec.Run(ctx, Command{
		Binary:  iverilogBin,
		Args:    []string{"-o", outFile, designFile, benchFile},
		Dir:     dir,
		Timeout: r.cfg.CompileTimeout,
	})
	if err != nil {
		return r.execFailure(ctx, iverilogBin, err)
	}

	if compile.Killed {
		return r.finish(moduleName, started, Outcome{
			Status: StatusTimeout,
			Diagnostic: fmt.Sprintf("TIMEOUT ERROR: Compilation exceeded %s.",
				r.cfg.CompileTimeout),
			Evidence: compile.Combined(),
		}), nil
	}
	if compile.ExitCode != 0 {
		evidence := compile.Stderr
		if evidence == "" {
			evidence = compile.Combined()
		}
		return r.finish(moduleName, started, Outcome{
			Status:     StatusCompileError,
			Diagnostic: "COMPILATION ERROR:\n" + evidence,
			Evidence:   evidence,
		}), nil
	}

	r.logger.Debug("simulating",
		zap.String("module", moduleName),
		zap.Duration("timeout", r.cfg.SimTimeout))

	sim, err := r.exec.Run(ctx, Command{
		Binary:  vvpBin,
		Args:    []string{outFile},
		Dir:     dir,
		Timeout: r.cfg.SimTimeout,
	})
	if err != nil {
		return r.execFailure(ctx, vvpBin, err)
	}

	outcome := r.classify(sim)
	return r.finish(moduleName, started, outcome), nil
}

// classify maps a completed vvp run onto the outcome taxonomy. Order
// matters: a killed process beats everything, a runtime failure beats
// marker scanning, and the completion marker is required for a pass.
func (r *Runner) classify(sim *ExecResult) Outcome {
	if sim.Killed {
		return Outcome{
			Status: StatusTimeout,
			Diagnostic: fmt.Sprintf(
				"TIMEOUT ERROR: Simulation exceeded %s. Likely infinite loop (missing $finish) or clock logic error.",
				r.cfg.SimTimeout),
			Evidence: sim.Combined(),
		}
	}
	if sim.ExitCode != 0 {
		return Outcome{
			Status:     StatusLogicError,
			Diagnostic: "RUNTIME ERROR:\n" + sim.Stderr + "\nSTDOUT:\n" + sim.Stdout,
			Evidence:   sim.Combined(),
		}
	}

	complete, failures := scanMarkers(sim.Stdout)
	switch {
	case len(failures) > 0:
		return Outcome{
			Status:     StatusLogicError,
			Diagnostic: "TESTBENCH FAILURE:\n" + sim.Stdout,
			Evidence:   strings.Join(failures, "\n"),
		}
	case complete:
		return Outcome{
			Status:     StatusPassed,
			Diagnostic: "SIMULATION SUCCESS:\n" + sim.Stdout,
			Evidence:   sim.Stdout,
		}
	default:
		return Outcome{
			Status: StatusTimeout,
			Diagnostic: fmt.Sprintf(
				"TIMEOUT ERROR: Simulation finished without printing %s. The testbench must $display(\"%s\") after all checks and before $finish.",
				CompletionMarker, CompletionMarker),
			Evidence: sim.Stdout,
		}
	}
}

// execFailure maps a subprocess launch error. A missing binary is a
// reportable outcome; cancellation and filesystem faults propagate.
func (r *Runner) execFailure(ctx context.Context, binary string, err error) (Outcome, error) {
	if ctx.Err() != nil {
		return Outcome{}, ctx.Err()
	}
	if errors.Is(err, exec.ErrNotFound) {
		return Outcome{
			Status: StatusToolUnavailable,
			Diagnostic: fmt.Sprintf(
				"TOOL ERROR: %s not found in PATH. Install Icarus Verilog to run verification.",
				binary),
			Evidence: err.Error(),
		}, nil
	}
	return Outcome{}, fmt.Errorf("running %s: %w", binary, err)
}

func (r *Runner) finish(moduleName string, started time.Time, o Outcome) Outcome {
	o.Duration = time.Since(started)
	r.logger.Info("verification complete",
		zap.String("module", moduleName),
		zap.String("status", string(o.Status)),
		zap.Duration("duration", o.Duration))
	return o
}
