package verify

import (
	"time"

	"chipwright/internal/diagnose"
	"chipwright/internal/plan"
	"chipwright/internal/sim"
)

// Attempt is one generate-then-verify cycle for a module. Attempts form
// an append-only ordered log; they are never mutated after creation and
// never reused as compilation input.
type Attempt struct {
	// Index is 1-based; the budget is exhausted when Index reaches the
	// configured maximum.
	Index int

	// Design and Bench are the texts verified in this attempt.
	Design string
	Bench  string

	// Outcome is the toolchain's verdict.
	Outcome sim.Outcome

	// Category and Evidence are the classifier's reading of the
	// diagnostic, carried into the next attempt's repair prompt.
	Category diagnose.Category
	Evidence string

	// Target names the artifact the diagnostic implicated, i.e. what
	// the next attempt regenerates.
	Target diagnose.Target

	// Duration covers generation plus verification.
	Duration time.Duration
}

// State is the terminal classification of one module.
type State string

const (
	// StateVerified means an attempt passed; Design and Bench on the
	// result are that attempt's artifacts.
	StateVerified State = "verified"

	// StateExhausted means every attempt in the budget failed.
	StateExhausted State = "exhausted"

	// StateAborted means the run was cancelled before the module could
	// reach a verdict.
	StateAborted State = "aborted"
)

// ModuleResult is the write-once terminal value for one module.
type ModuleResult struct {
	Node  plan.Node
	State State

	// Design and Bench are the verified artifacts (verified modules
	// only; the last generated texts otherwise).
	Design string
	Bench  string

	// Attempts is the full ordered log, kept for audit and diffs.
	Attempts []Attempt

	// Diagnostic is the last failure report (empty when verified).
	Diagnostic string
}

// Verified reports whether the module reached a passing attempt.
func (r ModuleResult) Verified() bool {
	return r.State == StateVerified
}

// Dependency is one already-verified module visible to the module under
// generation: its interface plus implementation text. A snapshot of the
// orchestrator's accumulated context, read-only here.
type Dependency struct {
	Node   plan.Node
	Design string
}

// Observer receives progress events from the retry loop. All methods
// are called from the goroutine running the module; implementations
// must be safe for concurrent use across modules.
type Observer interface {
	AttemptStarted(module string, attempt, maxAttempts int)
	AttemptFinished(module string, attempt Attempt)

	// ArtifactRegenerated fires when a repair attempt replaced an
	// artifact, with both texts so the caller can render a diff.
	ArtifactRegenerated(module string, target diagnose.Target, attempt int, before, after string)
}

// NopObserver ignores every event.
type NopObserver struct{}

func (NopObserver) AttemptStarted(string, int, int)                                  {}
func (NopObserver) AttemptFinished(string, Attempt)                                  {}
func (NopObserver) ArtifactRegenerated(string, diagnose.Target, int, string, string) {}
