package verify

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"chipwright/internal/diagnose"
	"chipwright/internal/hdl"
	"chipwright/internal/llm"
	"chipwright/internal/plan"
	"chipwright/internal/sim"
)

// fakeRunner returns scripted outcomes in order and records the texts
// it was asked to verify.
type fakeRunner struct {
	outcomes []sim.Outcome
	calls    []struct{ design, bench, module string }
}

func (f *fakeRunner) Verify(ctx context.Context, design, bench, moduleName string) (sim.Outcome, error) {
	if err := ctx.Err(); err != nil {
		return sim.Outcome{}, err
	}
	f.calls = append(f.calls, struct{ design, bench, module string }{design, bench, moduleName})
	if len(f.calls) > len(f.outcomes) {
		return sim.Outcome{}, errors.New("fake runner: no outcome scripted")
	}
	return f.outcomes[len(f.calls)-1], nil
}

// recordingObserver captures loop events for assertions.
type recordingObserver struct {
	mu          sync.Mutex
	started     int
	finished    []Attempt
	regenerated []diagnose.Target
}

func (o *recordingObserver) AttemptStarted(module string, attempt, max int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.started++
}

func (o *recordingObserver) AttemptFinished(module string, a Attempt) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.finished = append(o.finished, a)
}

func (o *recordingObserver) ArtifactRegenerated(module string, target diagnose.Target, attempt int, before, after string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.regenerated = append(o.regenerated, target)
}

func adderNode() plan.Node {
	return plan.Node{
		Name:        "half_adder",
		Description: "Combinational half adder.",
		Ports: []hdl.Port{
			{Name: "a", Width: 1, Direction: hdl.Input},
			{Name: "b", Width: 1, Direction: hdl.Input},
			{Name: "sum", Width: 1, Direction: hdl.Output},
			{Name: "carry", Width: 1, Direction: hdl.Output},
		},
	}
}

func passedOutcome() sim.Outcome {
	return sim.Outcome{Status: sim.StatusPassed, Diagnostic: "SIMULATION SUCCESS:\nALL_TESTS_PASSED"}
}

func compileErrorOutcome(file string) sim.Outcome {
	diag := "COMPILATION ERROR:\n" + file + ":3: syntax error"
	return sim.Outcome{Status: sim.StatusCompileError, Diagnostic: diag, Evidence: diag}
}

func TestVerifyModule_PassFirstAttempt(t *testing.T) {
	client := llm.NewFakeClient("module half_adder;\nendmodule", "module half_adder_tb;\nendmodule")
	runner := &fakeRunner{outcomes: []sim.Outcome{passedOutcome()}}

	v := NewVerifier(client, runner, 5, nil)
	res := v.VerifyModule(context.Background(), adderNode(), nil)

	if res.State != StateVerified {
		t.Fatalf("State = %s, want %s (diagnostic: %s)", res.State, StateVerified, res.Diagnostic)
	}
	if len(res.Attempts) != 1 {
		t.Fatalf("attempts = %d, want 1", len(res.Attempts))
	}
	if client.CallCount() != 2 {
		t.Errorf("LLM calls = %d, want 2 (design + testbench)", client.CallCount())
	}
	if res.Design == "" || res.Bench == "" {
		t.Error("verified result missing artifacts")
	}
	if !strings.Contains(res.Bench, "half_adder_tb") {
		t.Errorf("Bench = %q, want the extracted testbench text", res.Bench)
	}
}

func TestVerifyModule_RepairsDesignOnCompileError(t *testing.T) {
	client := llm.NewFakeClient(
		"module half_adder;\nbroken\nendmodule",
		"module half_adder_tb;\nendmodule",
		"module half_adder;\nendmodule",
	)
	runner := &fakeRunner{outcomes: []sim.Outcome{
		compileErrorOutcome("half_adder.v"),
		passedOutcome(),
	}}
	obs := &recordingObserver{}

	v := NewVerifier(client, runner, 5, nil)
	v.SetObserver(obs)
	res := v.VerifyModule(context.Background(), adderNode(), nil)

	if res.State != StateVerified {
		t.Fatalf("State = %s, want %s", res.State, StateVerified)
	}
	if len(res.Attempts) != 2 {
		t.Fatalf("attempts = %d, want 2", len(res.Attempts))
	}

	first := res.Attempts[0]
	if first.Outcome.Status != sim.StatusCompileError {
		t.Errorf("attempt 1 status = %s, want compile_error", first.Outcome.Status)
	}
	if first.Category != diagnose.CategorySyntax {
		t.Errorf("attempt 1 category = %s, want %s", first.Category, diagnose.CategorySyntax)
	}
	if first.Target != diagnose.TargetDesign {
		t.Errorf("attempt 1 target = %s, want design", first.Target)
	}

	// Repair regenerated only the design; the testbench carried over.
	if client.CallCount() != 3 {
		t.Errorf("LLM calls = %d, want 3", client.CallCount())
	}
	if len(obs.regenerated) != 1 || obs.regenerated[0] != diagnose.TargetDesign {
		t.Errorf("regenerated = %v, want [design]", obs.regenerated)
	}
	if runner.calls[1].bench != runner.calls[0].bench {
		t.Error("testbench was regenerated on a design repair")
	}
	if runner.calls[1].design == runner.calls[0].design {
		t.Error("design was not regenerated on a design repair")
	}

	// The repair prompt quoted the evidence and the broken code.
	repairCall := client.Calls()[2]
	if !strings.Contains(repairCall.User, "syntax error") {
		t.Error("repair prompt missing diagnostic evidence")
	}
	if !strings.Contains(repairCall.User, "broken") {
		t.Error("repair prompt missing the failing code")
	}
}

func TestVerifyModule_RepairsBenchWhenImplicated(t *testing.T) {
	client := llm.NewFakeClient(
		"module half_adder;\nendmodule",
		"module half_adder_tb;\nbad\nendmodule",
		"module half_adder_tb;\nendmodule",
	)
	runner := &fakeRunner{outcomes: []sim.Outcome{
		compileErrorOutcome("half_adder_tb.v"),
		passedOutcome(),
	}}

	v := NewVerifier(client, runner, 5, nil)
	res := v.VerifyModule(context.Background(), adderNode(), nil)

	if res.State != StateVerified {
		t.Fatalf("State = %s, want %s", res.State, StateVerified)
	}
	if res.Attempts[0].Target != diagnose.TargetBench {
		t.Fatalf("attempt 1 target = %s, want testbench", res.Attempts[0].Target)
	}
	if runner.calls[1].design != runner.calls[0].design {
		t.Error("design was regenerated on a testbench repair")
	}
	if runner.calls[1].bench == runner.calls[0].bench {
		t.Error("testbench was not regenerated on a testbench repair")
	}
}

func TestVerifyModule_ExhaustsOnExactBudget(t *testing.T) {
	client := llm.FakeClient{Handler: func(call int, system, user string) (string, error) {
		return "module half_adder;\nendmodule", nil
	}}
	runner := &fakeRunner{outcomes: []sim.Outcome{
		compileErrorOutcome("half_adder.v"),
		compileErrorOutcome("half_adder.v"),
	}}

	v := NewVerifier(&client, runner, 2, nil)
	res := v.VerifyModule(context.Background(), adderNode(), nil)

	if res.State != StateExhausted {
		t.Fatalf("State = %s, want %s", res.State, StateExhausted)
	}
	// Exhaustion happens on exactly the max_retries-th consumed attempt.
	if len(res.Attempts) != 2 {
		t.Fatalf("attempts = %d, want exactly 2", len(res.Attempts))
	}
	if len(runner.calls) != 2 {
		t.Fatalf("verification calls = %d, want 2", len(runner.calls))
	}
	if res.Diagnostic == "" || !strings.Contains(res.Diagnostic, "COMPILATION ERROR") {
		t.Errorf("Diagnostic = %q, want the last compile diagnostic", res.Diagnostic)
	}
}

func TestVerifyModule_IdenticalDiagnosticsStillConsumeAttempts(t *testing.T) {
	// The repair changes nothing; exhaustion stays attempt-count-driven
	// with no early abort.
	client := llm.FakeClient{Handler: func(call int, system, user string) (string, error) {
		return "module half_adder;\nsame\nendmodule", nil
	}}
	runner := &fakeRunner{outcomes: []sim.Outcome{
		compileErrorOutcome("half_adder.v"),
		compileErrorOutcome("half_adder.v"),
		compileErrorOutcome("half_adder.v"),
	}}

	v := NewVerifier(&client, runner, 3, nil)
	res := v.VerifyModule(context.Background(), adderNode(), nil)

	if res.State != StateExhausted {
		t.Fatalf("State = %s, want %s", res.State, StateExhausted)
	}
	if len(res.Attempts) != 3 {
		t.Fatalf("attempts = %d, want 3", len(res.Attempts))
	}
}

func TestVerifyModule_BackendFailureConsumesAttempt(t *testing.T) {
	calls := 0
	client := llm.FakeClient{Handler: func(call int, system, user string) (string, error) {
		calls++
		if call == 0 {
			return "", errors.New("connection refused")
		}
		if strings.Contains(system, "testbench") {
			return "module half_adder_tb;\nendmodule", nil
		}
		return "module half_adder;\nendmodule", nil
	}}
	runner := &fakeRunner{outcomes: []sim.Outcome{passedOutcome()}}

	v := NewVerifier(&client, runner, 3, nil)
	res := v.VerifyModule(context.Background(), adderNode(), nil)

	if res.State != StateVerified {
		t.Fatalf("State = %s, want %s", res.State, StateVerified)
	}
	if len(res.Attempts) != 2 {
		t.Fatalf("attempts = %d, want 2 (backend failure consumed one)", len(res.Attempts))
	}
	if res.Attempts[0].Outcome.Status != sim.StatusToolUnavailable {
		t.Errorf("attempt 1 status = %s, want tool_unavailable", res.Attempts[0].Outcome.Status)
	}
	// The failed attempt never reached the toolchain.
	if len(runner.calls) != 1 {
		t.Errorf("verification calls = %d, want 1", len(runner.calls))
	}
}

func TestVerifyModule_LogicErrorsThenPass(t *testing.T) {
	logicError := sim.Outcome{
		Status:     sim.StatusLogicError,
		Diagnostic: "TESTBENCH FAILURE:\nERROR: sum mismatch a=1 b=1",
		Evidence:   "ERROR: sum mismatch a=1 b=1",
	}
	client := llm.FakeClient{Handler: func(call int, system, user string) (string, error) {
		if strings.Contains(system, "testbench") {
			return "module half_adder_tb;\nendmodule", nil
		}
		return "module half_adder;\nendmodule", nil
	}}
	runner := &fakeRunner{outcomes: []sim.Outcome{logicError, logicError, passedOutcome()}}

	v := NewVerifier(&client, runner, 5, nil)
	res := v.VerifyModule(context.Background(), adderNode(), nil)

	if res.State != StateVerified {
		t.Fatalf("State = %s, want %s", res.State, StateVerified)
	}
	if len(res.Attempts) != 3 {
		t.Fatalf("attempts = %d, want 3", len(res.Attempts))
	}
	for i := 0; i < 2; i++ {
		if res.Attempts[i].Category != diagnose.CategoryAssertion {
			t.Errorf("attempt %d category = %s, want %s", i+1, res.Attempts[i].Category, diagnose.CategoryAssertion)
		}
	}
}

func TestVerifyModule_DependenciesAppearInPrompt(t *testing.T) {
	client := llm.NewFakeClient("module full_adder;\nendmodule", "module full_adder_tb;\nendmodule")
	runner := &fakeRunner{outcomes: []sim.Outcome{passedOutcome()}}

	dep := Dependency{
		Node: plan.Node{
			Name: "half_adder",
			Ports: []hdl.Port{
				{Name: "a", Width: 1, Direction: hdl.Input},
				{Name: "b", Width: 1, Direction: hdl.Input},
				{Name: "sum", Width: 1, Direction: hdl.Output},
				{Name: "carry", Width: 1, Direction: hdl.Output},
			},
		},
		Design: "module half_adder;\nendmodule",
	}
	node := plan.Node{
		Name:        "full_adder",
		Description: "Full adder from two half adders.",
		Ports: []hdl.Port{
			{Name: "a", Width: 1, Direction: hdl.Input},
			{Name: "b", Width: 1, Direction: hdl.Input},
			{Name: "cin", Width: 1, Direction: hdl.Input},
			{Name: "sum", Width: 1, Direction: hdl.Output},
			{Name: "cout", Width: 1, Direction: hdl.Output},
		},
		DependsOn: []string{"half_adder"},
	}

	v := NewVerifier(client, runner, 5, nil)
	res := v.VerifyModule(context.Background(), node, []Dependency{dep})

	if res.State != StateVerified {
		t.Fatalf("State = %s, want %s", res.State, StateVerified)
	}
	designCall := client.Calls()[0]
	if !strings.Contains(designCall.User, "module half_adder (") {
		t.Error("design prompt missing the verified dependency declaration")
	}
	if !strings.Contains(designCall.User, "do NOT re-implement") {
		t.Error("design prompt missing the instantiation instruction")
	}
}

func TestVerifyModule_CancelledContextAborts(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	client := llm.NewFakeClient()
	runner := &fakeRunner{}

	v := NewVerifier(client, runner, 5, nil)
	res := v.VerifyModule(ctx, adderNode(), nil)

	if res.State != StateAborted {
		t.Fatalf("State = %s, want %s", res.State, StateAborted)
	}
	if len(res.Attempts) != 0 {
		t.Errorf("attempts = %d, want 0", len(res.Attempts))
	}
}
