// Package verify drives the bounded generate-verify-repair loop for a
// single module: Init → Generating → Verifying → {Passed, Diagnosing →
// Generating, Exhausted}. Repair evidence is loop-local state carried
// across transitions, so concurrent modules never share it.
package verify

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"chipwright/internal/diagnose"
	"chipwright/internal/hdl"
	"chipwright/internal/llm"
	"chipwright/internal/plan"
	"chipwright/internal/sim"
)

// Runner is the verification toolchain boundary. sim.Runner is the
// host implementation; tests substitute fakes.
type Runner interface {
	Verify(ctx context.Context, design, bench, moduleName string) (sim.Outcome, error)
}

// Verifier runs the retry loop for one module at a time. Safe for
// concurrent use across modules: all loop state is per-call.
type Verifier struct {
	client   llm.Client
	runner   Runner
	max      int
	observer Observer
	logger   *zap.Logger
}

// NewVerifier creates a module verifier with a total attempt budget of
// maxRetries per module.
func NewVerifier(client llm.Client, runner Runner, maxRetries int, logger *zap.Logger) *Verifier {
	if maxRetries < 1 {
		maxRetries = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Verifier{
		client:   client,
		runner:   runner,
		max:      maxRetries,
		observer: NopObserver{},
		logger:   logger,
	}
}

// SetObserver installs a progress observer. Must be called before the
// first VerifyModule call.
func (v *Verifier) SetObserver(o Observer) {
	if o != nil {
		v.observer = o
	}
}

// loopState is the mutable state carried between attempts: the current
// artifacts and the diagnosis steering the next repair.
type loopState struct {
	design string
	bench  string

	repairing bool
	target    diagnose.Target
	category  diagnose.Category
	evidence  string
}

// VerifyModule runs the retry loop for node with the given verified
// dependencies and returns its write-once terminal result. Every failed
// generation or verification consumes an attempt; exhaustion is purely
// attempt-count-driven.
func (v *Verifier) VerifyModule(ctx context.Context, node plan.Node, deps []Dependency) ModuleResult {
	log := v.logger.With(zap.String("module", node.Name))
	log.Info("verifying module",
		zap.Int("dependencies", len(deps)),
		zap.Int("max_attempts", v.max))

	state := &loopState{}
	attempts := make([]Attempt, 0, v.max)

	for index := 1; index <= v.max; index++ {
		if ctx.Err() != nil {
			return v.aborted(node, attempts, ctx.Err())
		}

		v.observer.AttemptStarted(node.Name, index, v.max)
		started := time.Now()

		attempt, genErr := v.generate(ctx, node, deps, state, index)
		if genErr == nil {
			outcome, err := v.runner.Verify(ctx, state.design, state.bench, node.Name)
			if err != nil {
				if ctx.Err() != nil {
					return v.aborted(node, attempts, ctx.Err())
				}
				// Toolchain faults outside the outcome taxonomy still
				// consume the attempt.
				outcome = sim.Outcome{
					Status:     sim.StatusToolUnavailable,
					Diagnostic: "TOOL ERROR: " + err.Error(),
					Evidence:   err.Error(),
				}
			}
			attempt.Outcome = outcome
		} else {
			if ctx.Err() != nil {
				return v.aborted(node, attempts, ctx.Err())
			}
		}
		attempt.Duration = time.Since(started)

		if attempt.Outcome.Passed() {
			attempt.Category = ""
			attempt.Evidence = ""
			attempts = append(attempts, attempt)
			v.observer.AttemptFinished(node.Name, attempt)

			log.Info("module verified", zap.Int("attempts", index))
			return ModuleResult{
				Node:     node,
				State:    StateVerified,
				Design:   state.design,
				Bench:    state.bench,
				Attempts: attempts,
			}
		}

		// Diagnosing. Analysis only: no attempt is consumed here.
		v.diagnose(node, state, &attempt)
		attempts = append(attempts, attempt)
		v.observer.AttemptFinished(node.Name, attempt)

		log.Warn("attempt failed",
			zap.Int("attempt", index),
			zap.String("status", string(attempt.Outcome.Status)),
			zap.String("category", string(attempt.Category)),
			zap.String("repair_target", string(state.target)))
	}

	last := attempts[len(attempts)-1]
	log.Error("attempt budget exhausted",
		zap.Int("attempts", len(attempts)),
		zap.String("last_status", string(last.Outcome.Status)))

	return ModuleResult{
		Node:       node,
		State:      StateExhausted,
		Design:     state.design,
		Bench:      state.bench,
		Attempts:   attempts,
		Diagnostic: last.Outcome.Diagnostic,
	}
}

// generate produces or repairs the artifacts for one attempt. A backend
// failure returns the error alongside an Attempt already marked
// tool_unavailable, so the caller records it as consumed.
func (v *Verifier) generate(ctx context.Context, node plan.Node, deps []Dependency, state *loopState, index int) (Attempt, error) {
	attempt := Attempt{Index: index}

	needDesign := state.design == "" || (state.repairing && state.target == diagnose.TargetDesign)
	needBench := state.bench == "" || (state.repairing && state.target == diagnose.TargetBench)

	if needDesign {
		prompt := designPrompt(node, deps)
		if state.repairing && state.design != "" {
			prompt = repairPrompt(node, diagnose.TargetDesign, state.design, state.category, state.evidence)
		}
		reply, err := v.client.CompleteWithSystem(ctx, designSystem, prompt)
		if err != nil {
			return v.generationFailure(attempt, state, diagnose.TargetDesign, err), err
		}
		before := state.design
		state.design = hdl.ExtractCode(reply)
		if before != "" {
			v.observer.ArtifactRegenerated(node.Name, diagnose.TargetDesign, index, before, state.design)
		}
	}

	if needBench {
		prompt := benchPrompt(node, state.design)
		if state.repairing && state.bench != "" && state.target == diagnose.TargetBench {
			prompt = repairPrompt(node, diagnose.TargetBench, state.bench, state.category, state.evidence)
		}
		reply, err := v.client.CompleteWithSystem(ctx, benchSystem, prompt)
		if err != nil {
			return v.generationFailure(attempt, state, diagnose.TargetBench, err), err
		}
		before := state.bench
		state.bench = hdl.ExtractCode(reply)
		if before != "" {
			v.observer.ArtifactRegenerated(node.Name, diagnose.TargetBench, index, before, state.bench)
		}
	}

	attempt.Design = state.design
	attempt.Bench = state.bench
	return attempt, nil
}

// generationFailure marks an attempt consumed by a backend fault. The
// failed artifact stays the repair target so the next attempt retries
// the same generation.
func (v *Verifier) generationFailure(attempt Attempt, state *loopState, target diagnose.Target, err error) Attempt {
	attempt.Design = state.design
	attempt.Bench = state.bench
	attempt.Target = target
	attempt.Outcome = sim.Outcome{
		Status:     sim.StatusToolUnavailable,
		Diagnostic: fmt.Sprintf("GENERATION ERROR: backend failed while producing the %s: %v", target, err),
		Evidence:   err.Error(),
	}
	return attempt
}

// diagnose classifies the failed attempt and arms the next repair.
func (v *Verifier) diagnose(node plan.Node, state *loopState, attempt *Attempt) {
	switch attempt.Outcome.Status {
	case sim.StatusToolUnavailable:
		// Nothing to classify: the artifacts never reached the
		// toolchain (or the toolchain never ran). Retry as-is.
		attempt.Category = diagnose.CategoryUnknown
		attempt.Evidence = attempt.Outcome.Evidence
		if attempt.Target == "" {
			attempt.Target = state.target
		}
		if attempt.Target == "" {
			attempt.Target = diagnose.TargetDesign
		}
	default:
		phase := diagnose.PhaseSimulate
		if attempt.Outcome.Status == sim.StatusCompileError {
			phase = diagnose.PhaseCompile
		}
		attempt.Category, attempt.Evidence = diagnose.Classify(attempt.Outcome.Diagnostic, phase)
		attempt.Target = diagnose.Attribute(attempt.Outcome.Diagnostic, node.Name)
	}

	state.repairing = true
	state.target = attempt.Target
	state.category = attempt.Category
	state.evidence = attempt.Evidence
}

func (v *Verifier) aborted(node plan.Node, attempts []Attempt, cause error) ModuleResult {
	v.logger.Warn("module aborted",
		zap.String("module", node.Name),
		zap.Error(cause))
	return ModuleResult{
		Node:       node,
		State:      StateAborted,
		Attempts:   attempts,
		Diagnostic: fmt.Sprintf("aborted: %v", cause),
	}
}
