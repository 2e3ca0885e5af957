// Package diagnose classifies raw toolchain diagnostics into failure
// categories and extracts the smallest excerpt worth quoting back into
// a repair prompt.
package diagnose

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// Category is the coarse failure class used to steer repair prompts.
type Category string

const (
	CategorySyntax       Category = "syntax_error"
	CategoryUnresolved   Category = "unresolved_reference"
	CategoryPortMismatch Category = "port_mismatch"
	CategoryAssertion    Category = "assertion_failure"
	CategoryTimeout      Category = "timeout"
	CategoryUnknown      Category = "unknown"
)

// Phase selects the pattern table. Compiler and simulator speak
// different dialects.
type Phase string

const (
	PhaseCompile  Phase = "compile"
	PhaseSimulate Phase = "simulate"
)

// Target names the artifact a diagnostic implicates.
type Target string

const (
	TargetDesign Target = "design"
	TargetBench  Target = "testbench"
)

const (
	// evidenceWindow is how many lines of context follow the anchor.
	evidenceWindow = 12

	// maxEvidenceRunes caps evidence so repair prompts stay bounded
	// across iterations.
	maxEvidenceRunes = 2000
)

// rule maps diagnostic text onto a category. Tables are ordered; the
// first rule with a matching pattern wins.
type rule struct {
	category Category
	patterns []*regexp.Regexp
}

var compileRules = []rule{
	{CategoryPortMismatch, []*regexp.Regexp{
		regexp.MustCompile(`(?i)is not a port`),
		regexp.MustCompile(`(?i)unknown port`),
		regexp.MustCompile(`(?i)expects\s+\d+\s+bits`),
		regexp.MustCompile(`(?i)too many module ports`),
	}},
	{CategoryUnresolved, []*regexp.Regexp{
		regexp.MustCompile(`(?i)unable to bind`),
		regexp.MustCompile(`(?i)unknown module type`),
		regexp.MustCompile(`(?i)has not been declared`),
		regexp.MustCompile(`(?i)\bundeclared\b`),
		regexp.MustCompile(`(?i)is not defined`),
	}},
	{CategorySyntax, []*regexp.Regexp{
		regexp.MustCompile(`(?i)syntax error`),
		regexp.MustCompile(`(?i)parse error`),
		regexp.MustCompile(`(?i)malformed statement`),
		regexp.MustCompile(`(?i)invalid module item`),
		regexp.MustCompile(`(?i)i give up`),
	}},
	{CategoryTimeout, []*regexp.Regexp{
		regexp.MustCompile(`(?m)^TIMEOUT ERROR:`),
		regexp.MustCompile(`(?i)compilation exceeded`),
	}},
}

var simulateRules = []rule{
	{CategoryTimeout, []*regexp.Regexp{
		regexp.MustCompile(`(?m)^TIMEOUT ERROR:`),
		regexp.MustCompile(`(?i)simulation (exceeded|finished without)`),
	}},
	{CategoryAssertion, []*regexp.Regexp{
		regexp.MustCompile(`(?m)^TESTBENCH FAILURE:`),
		regexp.MustCompile(`(?i)\bassert(ion)?\b`),
		regexp.MustCompile(`(?m)^\s*(ERROR|FAIL)\b`),
		regexp.MustCompile(`\$(error|fatal|stop)\b`),
	}},
	{CategoryUnresolved, []*regexp.Regexp{
		regexp.MustCompile(`(?i)unable to bind`),
		regexp.MustCompile(`(?i)unknown module`),
	}},
}

// Classify maps raw diagnostic text onto a category with a bounded
// evidence excerpt. Unknown is a valid answer; its evidence is the
// verbatim text, capped.
func Classify(raw string, phase Phase) (Category, string) {
	rules := simulateRules
	if phase == PhaseCompile {
		rules = compileRules
	}
	for _, r := range rules {
		for _, p := range r.patterns {
			if p.MatchString(raw) {
				return r.category, excerpt(raw)
			}
		}
	}
	return CategoryUnknown, capRunes(strings.TrimSpace(raw), maxEvidenceRunes)
}

// Attribute decides which artifact to repair by scanning the diagnostic
// for source file names. Only a diagnostic that mentions the testbench
// file and never the design file targets the testbench; everything
// else, including file-free output such as assertion logs, targets the
// design.
func Attribute(raw, moduleName string) Target {
	benchHits := strings.Count(raw, moduleName+"_tb.v")
	designHits := strings.Count(raw, moduleName+".v")
	if benchHits > 0 && designHits == 0 {
		return TargetBench
	}
	return TargetDesign
}

// anchorRe locates the first line worth quoting.
var anchorRe = regexp.MustCompile(`(?i)error|fail|assert|timeout|unable|syntax`)

// excerpt returns the first error-looking line plus a bounded window of
// following context, capped.
func excerpt(raw string) string {
	lines := strings.Split(strings.TrimSpace(raw), "\n")
	anchor := 0
	for i, line := range lines {
		if anchorRe.MatchString(line) {
			anchor = i
			break
		}
	}
	end := anchor + 1 + evidenceWindow
	if end > len(lines) {
		end = len(lines)
	}
	return capRunes(strings.Join(lines[anchor:end], "\n"), maxEvidenceRunes)
}

func capRunes(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	return string([]rune(s)[:max]) + "\n... [truncated]"
}
