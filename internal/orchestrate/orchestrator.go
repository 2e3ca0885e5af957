// Package orchestrate walks the validated module graph dependency-first,
// drives the per-module verification loop, accumulates verified modules
// as generation context, and reduces the run to one DesignResult.
// Exhaustion of one module skips its dependents; independent branches
// still complete.
package orchestrate

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"chipwright/internal/plan"
	"chipwright/internal/verify"
)

// Planner builds the module graph. plan.Builder is the real one.
type Planner interface {
	Build(ctx context.Context, req plan.Request) (*plan.Graph, error)
}

// ModuleVerifier runs the retry loop for one module. verify.Verifier
// is the real one.
type ModuleVerifier interface {
	VerifyModule(ctx context.Context, node plan.Node, deps []verify.Dependency) verify.ModuleResult
}

// Observer receives run-level progress events. Implementations must be
// safe for concurrent use when parallel verification is enabled.
type Observer interface {
	ModuleStarted(name string, position, total int)
	ModuleFinished(res verify.ModuleResult)

	// ModuleSkipped fires for modules never attempted because the
	// named dependency exhausted its budget.
	ModuleSkipped(name, failedDependency string)
}

// NopObserver ignores every event.
type NopObserver struct{}

func (NopObserver) ModuleStarted(string, int, int)     {}
func (NopObserver) ModuleFinished(verify.ModuleResult) {}
func (NopObserver) ModuleSkipped(string, string)       {}

// Options tunes a run.
type Options struct {
	// RunID identifies the run in logs and the journal. Empty gets a
	// fresh UUID.
	RunID string

	// Parallel bounds concurrent sibling verification. 1 keeps the
	// walk strictly sequential.
	Parallel int

	// RunTimeout is the whole-run wall budget. Zero disables it.
	RunTimeout time.Duration
}

// Orchestrator coordinates one run end to end.
type Orchestrator struct {
	planner  Planner
	verifier ModuleVerifier
	opts     Options
	observer Observer
	logger   *zap.Logger
}

// NewOrchestrator wires the run coordinator.
func NewOrchestrator(planner Planner, verifier ModuleVerifier, opts Options, logger *zap.Logger) *Orchestrator {
	if opts.Parallel < 1 {
		opts.Parallel = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		planner:  planner,
		verifier: verifier,
		opts:     opts,
		observer: NopObserver{},
		logger:   logger,
	}
}

// SetObserver installs a progress observer. Must be called before Run.
func (o *Orchestrator) SetObserver(obs Observer) {
	if obs != nil {
		o.observer = obs
	}
}

// Run executes the full pipeline. Planning errors are fatal and
// returned as-is (plan.PlanningError for invalid decompositions); once
// a plan exists every path yields a typed DesignResult.
func (o *Orchestrator) Run(ctx context.Context, req plan.Request) (*DesignResult, error) {
	started := time.Now()

	if o.opts.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.opts.RunTimeout)
		defer cancel()
	}

	graph, err := o.planner.Build(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("building plan: %w", err)
	}

	runID := o.opts.RunID
	if runID == "" {
		runID = uuid.NewString()
	}
	res := &DesignResult{
		RunID:  runID,
		Prompt: req.Prompt,
		Top:    graph.Top(),
	}
	mc := NewModuleContext()

	o.logger.Info("run started",
		zap.String("run_id", res.RunID),
		zap.Int("modules", graph.Len()),
		zap.String("top", graph.Top()),
		zap.Int("parallel", o.opts.Parallel))

	if o.opts.Parallel > 1 {
		o.runParallel(ctx, graph, mc, res)
	} else {
		o.runSequential(ctx, graph, mc, res)
	}

	switch {
	case o.anyAborted(res):
		res.Status = StatusAborted
	case len(res.Failed) > 0:
		res.Status = StatusPartiallyFailed
	default:
		res.Status = StatusVerified
		res.TopLevel = Compose(graph, mc)
	}
	res.Duration = time.Since(started)

	o.logger.Info("run finished",
		zap.String("run_id", res.RunID),
		zap.String("status", string(res.Status)),
		zap.Strings("failed", res.Failed),
		zap.Strings("skipped", res.Skipped),
		zap.Duration("duration", res.Duration))
	return res, nil
}

func (o *Orchestrator) anyAborted(res *DesignResult) bool {
	for _, m := range res.Modules {
		if m.State == verify.StateAborted {
			return true
		}
	}
	return false
}

// runSequential walks the topological order one module at a time.
func (o *Orchestrator) runSequential(ctx context.Context, graph *plan.Graph, mc *ModuleContext, res *DesignResult) {
	order := graph.TopologicalOrder()
	skipCause := make(map[string]string)

	for i, name := range order {
		if cause, skip := skipCause[name]; skip {
			res.Skipped = append(res.Skipped, name)
			o.observer.ModuleSkipped(name, cause)
			continue
		}

		node, _ := graph.Node(name)

		if ctx.Err() != nil {
			res.Modules = append(res.Modules, verify.ModuleResult{
				Node:       node,
				State:      verify.StateAborted,
				Diagnostic: fmt.Sprintf("aborted before start: %v", ctx.Err()),
			})
			continue
		}

		o.observer.ModuleStarted(name, i+1, len(order))
		mres := o.verifier.VerifyModule(ctx, node, mc.DependenciesFor(node))
		res.Modules = append(res.Modules, mres)
		o.observer.ModuleFinished(mres)

		switch mres.State {
		case verify.StateVerified:
			mc.Add(Entry{Node: node, Design: mres.Design, Bench: mres.Bench})
		case verify.StateExhausted:
			res.Failed = append(res.Failed, name)
			for _, dep := range graph.TransitiveDependents(name) {
				if _, already := skipCause[dep]; !already {
					skipCause[dep] = name
				}
			}
		}
	}
}

// nodeState is one module's slot in the parallel walk. done closes when
// the module reaches a decision; dependents wait on it.
type nodeState struct {
	done chan struct{}

	// Exactly one of these holds after done closes.
	result    verify.ModuleResult
	skipped   bool
	skipCause string
}

// runParallel verifies independent branches concurrently. Every module
// gets a goroutine that first waits for its dependencies' decisions;
// actual verification is bounded by the parallel limit. The ordering
// invariant is preserved: a module starts generating only after all
// its dependencies are verified and in the context.
func (o *Orchestrator) runParallel(ctx context.Context, graph *plan.Graph, mc *ModuleContext, res *DesignResult) {
	order := graph.TopologicalOrder()
	states := make(map[string]*nodeState, len(order))
	for _, name := range order {
		states[name] = &nodeState{done: make(chan struct{})}
	}

	sem := make(chan struct{}, o.opts.Parallel)
	var g errgroup.Group

	for i, name := range order {
		node, _ := graph.Node(name)
		st := states[name]
		position := i + 1

		g.Go(func() error {
			defer close(st.done)

			for _, dep := range node.DependsOn {
				ds := states[dep]
				select {
				case <-ds.done:
				case <-ctx.Done():
					st.result = verify.ModuleResult{
						Node:       node,
						State:      verify.StateAborted,
						Diagnostic: fmt.Sprintf("aborted before start: %v", ctx.Err()),
					}
					return nil
				}

				if ds.skipped || ds.result.State == verify.StateExhausted {
					cause := ds.skipCause
					if cause == "" {
						cause = dep
					}
					st.skipped = true
					st.skipCause = cause
					o.observer.ModuleSkipped(node.Name, cause)
					return nil
				}
				if ds.result.State == verify.StateAborted {
					st.result = verify.ModuleResult{
						Node:       node,
						State:      verify.StateAborted,
						Diagnostic: "aborted: dependency " + dep + " aborted",
					}
					return nil
				}
			}

			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				st.result = verify.ModuleResult{
					Node:       node,
					State:      verify.StateAborted,
					Diagnostic: fmt.Sprintf("aborted before start: %v", ctx.Err()),
				}
				return nil
			}
			defer func() { <-sem }()

			o.observer.ModuleStarted(node.Name, position, len(order))
			mres := o.verifier.VerifyModule(ctx, node, mc.DependenciesFor(node))
			if mres.State == verify.StateVerified {
				mc.Add(Entry{Node: node, Design: mres.Design, Bench: mres.Bench})
			}
			st.result = mres
			o.observer.ModuleFinished(mres)
			return nil
		})
	}
	_ = g.Wait()

	for _, name := range order {
		st := states[name]
		if st.skipped {
			res.Skipped = append(res.Skipped, name)
			continue
		}
		res.Modules = append(res.Modules, st.result)
		if st.result.State == verify.StateExhausted {
			res.Failed = append(res.Failed, name)
		}
	}
}
