// Package sim runs candidate Verilog through the Icarus toolchain and
// reduces the result to a single structured outcome. Compilation and
// simulation are separate subprocess phases with independent timeouts;
// a simulation only counts as passed when the testbench prints its
// completion marker.
package sim

import "time"

// Status is the terminal classification of one verification call.
type Status string

const (
	// StatusPassed means the design compiled, the simulation ran to
	// completion, and the testbench printed the completion marker with
	// no failure markers.
	StatusPassed Status = "passed"

	// StatusCompileError means iverilog rejected the sources.
	StatusCompileError Status = "compile_error"

	// StatusLogicError means the simulation ran but the testbench
	// reported a failure or the runtime exited non-zero.
	StatusLogicError Status = "logic_error"

	// StatusTimeout means the simulation was killed at its deadline or
	// exited without ever printing the completion marker.
	StatusTimeout Status = "timeout"

	// StatusToolUnavailable means iverilog or vvp is not installed.
	StatusToolUnavailable Status = "tool_unavailable"
)

// Outcome is the result of one Verify call. Exactly one Outcome is
// produced per call that reaches the toolchain.
type Outcome struct {
	Status Status

	// Diagnostic is the full human-readable report, prefixed with the
	// failing phase (COMPILATION ERROR, RUNTIME ERROR, TESTBENCH
	// FAILURE, TIMEOUT ERROR). It is what repair prompts quote back to
	// the model.
	Diagnostic string

	// Evidence is the raw tool output that justified the status:
	// compiler stderr for compile errors, the failing marker lines for
	// testbench failures, combined output otherwise.
	Evidence string

	// Duration covers both phases, including process startup.
	Duration time.Duration
}

// Passed reports whether the outcome is a verified success.
func (o Outcome) Passed() bool {
	return o.Status == StatusPassed
}
