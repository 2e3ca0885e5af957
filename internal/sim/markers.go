package sim

import "strings"

// CompletionMarker is the exact string a testbench must print before
// $finish for the run to count as passed. Absence of the marker after
// a clean exit is classified as a timeout, never as success.
const CompletionMarker = "ALL_TESTS_PASSED"

// failureMarkers flag a failing test vector anywhere in simulation
// stdout. Substring match, same as the keywords testbenches are
// prompted to emit via $display and $error.
var failureMarkers = []string{"ERROR", "FAIL", "ASSERTION"}

// scanMarkers walks simulation stdout line by line and reports whether
// the completion marker appeared and which lines carried a failure
// marker, in order of appearance.
func scanMarkers(stdout string) (complete bool, failures []string) {
	for _, line := range strings.Split(stdout, "\n") {
		if strings.Contains(line, CompletionMarker) {
			complete = true
		}
		for _, marker := range failureMarkers {
			if strings.Contains(line, marker) {
				failures = append(failures, strings.TrimRight(line, "\r"))
				break
			}
		}
	}
	return complete, failures
}
