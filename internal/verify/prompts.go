package verify

import (
	"fmt"
	"strings"

	"chipwright/internal/diagnose"
	"chipwright/internal/hdl"
	"chipwright/internal/plan"
	"chipwright/internal/sim"
)

// designSystem frames every design generation call. The rules are
// aimed at a synthesizable Verilog-2001 subset that Icarus accepts.
const designSystem = "You are acting as an expert Computer Hardware Engineer specializing in Verilog " +
	"(hardware description language). Your goal is to write Synthesizable Verilog 2001 code. " +
	"Follow these explicit rules:\n" +
	"1. Use `module` and `endmodule` explicitly.\n" +
	"2. Use `parameter` for configurable widths.\n" +
	"3. Use synchronous active-high reset unless specified otherwise.\n" +
	"4. Always use non-blocking assignments (`<=`) in sequential logic and blocking (`=`) in combinational logic.\n" +
	"5. Do NOT output markdown backticks (```verilog) if possible, or ensure they are easily parseable.\n" +
	"6. Output ONLY the code when requested. All code must be contained within a single code block, not multiple code blocks or files.\n" +
	"7. You are to avoid using SystemVerilog at all times, including making common mistakes such as declaring variables in initial blocks."

// benchSystem adds the marker protocol the simulator's classifier
// depends on: a pass is only a pass when the completion marker prints.
var benchSystem = designSystem + "\n\nADDITIONAL INSTRUCTIONS:\n" +
	"You are writing a self-checking testbench.\n" +
	"- Use `$display(\"ERROR: ...\")` to report every failing test vector with its inputs and expected vs actual outputs.\n" +
	"- After ALL checks pass, print exactly `" + sim.CompletionMarker + "` with $display, then call $finish.\n" +
	"- Never print the words ERROR or FAIL on a passing vector."

// designPrompt builds the generation request for a module
// implementation. Verified dependency interfaces are included as
// declarations with the instruction to instantiate, not re-implement.
func designPrompt(node plan.Node, deps []Dependency) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Write a Verilog module named `%s` for the following requirement: %s\n\n",
		node.Name, node.Description)

	b.WriteString("The module must have exactly this interface:\n\n")
	b.WriteString(hdl.Declaration(node.Name, node.Ports))
	b.WriteString("\n")

	if len(deps) > 0 {
		b.WriteString("\nThe following modules are already implemented and verified. ")
		b.WriteString("Instantiate them by name; do NOT re-implement them and do NOT include their code in your output:\n")
		for _, d := range deps {
			b.WriteString("\n")
			b.WriteString(hdl.Declaration(d.Node.Name, d.Node.Ports))
			b.WriteString("\n")
		}
	}

	b.WriteString("\nEnsure the interface signals are exactly as declared. Output ONLY the module code.")
	return b.String()
}

// benchPrompt builds the testbench generation request for a verified
// interface and its candidate implementation.
func benchPrompt(node plan.Node, design string) string {
	var b strings.Builder

	b.WriteString("Write a self-checking Verilog testbench for the following module.\n")
	fmt.Fprintf(&b, "1. The testbench module name must be `%s_tb`.\n", node.Name)
	b.WriteString("2. Instantiate the Unit Under Test (UUT).\n")
	b.WriteString("3. Generate a clock if the design is sequential.\n")
	b.WriteString("4. Apply test vectors covering corner cases.\n")
	b.WriteString("5. $display(\"ERROR: ...\") for every failing vector; print `" + sim.CompletionMarker + "` then $finish when all pass.\n")
	b.WriteString("6. DO NOT include the design module code in your response. Only the testbench.\n\n")
	b.WriteString("--- Design Under Test ---\n")
	b.WriteString(design)
	return b.String()
}

// repairPrompt builds the fix request for the implicated artifact,
// quoting the classified diagnostic evidence from the failed attempt.
func repairPrompt(node plan.Node, target diagnose.Target, code string, category diagnose.Category, evidence string) string {
	var b strings.Builder

	kind := "module"
	if target == diagnose.TargetBench {
		kind = "testbench"
	}

	fmt.Fprintf(&b, "The following Verilog %s for `%s` failed verification (%s).\n",
		kind, node.Name, category)
	b.WriteString("Fix the code. Return ONLY the full corrected code.\n")
	if target == diagnose.TargetBench {
		b.WriteString("DO NOT include the design module code. Output ONLY the testbench module, named `" + node.Name + "_tb`, ")
		b.WriteString("printing `" + sim.CompletionMarker + "` before $finish when all checks pass.\n")
	} else {
		b.WriteString("Keep the module interface exactly as declared:\n")
		b.WriteString(hdl.Declaration(node.Name, node.Ports))
		b.WriteString("\n")
	}

	b.WriteString("\n--- Verification Output ---\n")
	b.WriteString(evidence)
	b.WriteString("\n\n--- Current Code ---\n")
	b.WriteString(code)
	return b.String()
}
