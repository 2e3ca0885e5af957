package orchestrate

import (
	"time"

	"chipwright/internal/verify"
)

// Status is the terminal classification of a whole run.
type Status string

const (
	// StatusVerified means every module verified and the integrated
	// design was composed.
	StatusVerified Status = "verified"

	// StatusPartiallyFailed means at least one module exhausted its
	// budget; its dependents were skipped, independent branches ran.
	StatusPartiallyFailed Status = "partially_failed"

	// StatusAborted means the run budget expired or the run was
	// cancelled before every module reached a verdict.
	StatusAborted Status = "aborted"
)

// DesignResult is the write-once terminal value of one run.
type DesignResult struct {
	RunID  string
	Status Status

	// Prompt is the request the run was built from.
	Prompt string

	// Top names the plan's single sink module.
	Top string

	// TopLevel is the integrated design text (verified runs only).
	TopLevel string

	// Modules holds the terminal result for every module that was
	// attempted or aborted, in topological order. Skipped modules have
	// no entry; their names are in Skipped.
	Modules []verify.ModuleResult

	// Failed lists modules that exhausted their attempt budget.
	Failed []string

	// Skipped lists modules never attempted because a dependency
	// failed, each one a consequence of an entry in Failed.
	Skipped []string

	Duration time.Duration
}

// Module looks up a module's terminal result by name.
func (r *DesignResult) Module(name string) (verify.ModuleResult, bool) {
	for _, m := range r.Modules {
		if m.Node.Name == name {
			return m, true
		}
	}
	return verify.ModuleResult{}, false
}

// Verified reports whether the whole run verified.
func (r *DesignResult) Verified() bool {
	return r.Status == StatusVerified
}
