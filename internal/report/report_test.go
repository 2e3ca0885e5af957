package report

import (
	"strings"
	"testing"
	"time"

	"chipwright/internal/store"
)

func TestDiff_CountsChanges(t *testing.T) {
	before := "module adder;\nassign sum = a & b;\nendmodule\n"
	after := "module adder;\nassign sum = a ^ b;\nendmodule\n"

	out := Diff("adder.v", before, after)
	if !strings.HasPrefix(out, "adder.v: ") {
		t.Fatalf("missing stats header: %q", out)
	}
	if !strings.Contains(out, "^") {
		t.Error("diff body missing the changed text")
	}
}

func TestChanged(t *testing.T) {
	cases := []struct {
		name   string
		before string
		after  string
		want   bool
	}{
		{"identical", "module m;", "module m;", false},
		{"whitespace only", "module m;\n", "  module m;  ", false},
		{"real change", "assign y = a;", "assign y = b;", true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Changed(tc.before, tc.after); got != tc.want {
				t.Errorf("Changed = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestRunMarkdown(t *testing.T) {
	rec := &store.RunRecord{
		RunSummary: store.RunSummary{
			ID:        "run-1",
			Prompt:    "4-bit ripple carry adder",
			Status:    "partially_failed",
			TopModule: "adder_4bit",
			Duration:  90 * time.Second,
			CreatedAt: "2026-08-30 10:00:00",
		},
		Failed:  []string{"full_adder"},
		Skipped: []string{"adder_4bit"},
		Modules: []store.ModuleRecord{
			{Name: "half_adder", Position: 1, State: "verified", Attempts: 1},
			{Name: "full_adder", Position: 2, State: "exhausted", Attempts: 5,
				Diagnostic: "TESTBENCH FAILURE:\nERROR: cout mismatch"},
		},
		Attempts: []store.AttemptRecord{
			{Module: "half_adder", Index: 1, Status: "passed", Duration: 9 * time.Second},
			{Module: "full_adder", Index: 1, Status: "logic_error", Category: "assertion_failure", Duration: 12 * time.Second},
		},
	}

	md := RunMarkdown(rec)
	for _, want := range []string{
		"# Run run-1",
		"partially_failed",
		"`adder_4bit`",
		"| `half_adder` | verified | 1 |",
		"| `full_adder` | exhausted | 5 |",
		"full_adder — last diagnostic",
		"ERROR: cout mismatch",
		"assertion_failure",
	} {
		if !strings.Contains(md, want) {
			t.Errorf("markdown missing %q", want)
		}
	}
}

func TestRunListMarkdown_Empty(t *testing.T) {
	md := RunListMarkdown(nil)
	if !strings.Contains(md, "No runs recorded") {
		t.Errorf("empty listing = %q", md)
	}
}

func TestStatusStyle(t *testing.T) {
	if StatusStyle("verified").GetBold() != true {
		t.Error("verified style should be bold")
	}
	// Unknown states fall back to the info style without panicking.
	_ = StatusStyle("whatever")
}
