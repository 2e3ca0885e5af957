package plan

import "fmt"

// ErrorKind tags the fatal planning failures. Planning errors abort the
// whole run; they are never retried by the verification loop.
type ErrorKind string

const (
	// CyclicDependency: the proposed module graph contains a cycle.
	CyclicDependency ErrorKind = "cyclic_dependency"

	// AmbiguousTop: the graph does not have exactly one sink module.
	AmbiguousTop ErrorKind = "ambiguous_top"

	// UnparsableDecomposition: the model reply could not be turned into a
	// well-formed module list.
	UnparsableDecomposition ErrorKind = "unparsable_decomposition"
)

// PlanningError is the typed failure of the plan builder.
type PlanningError struct {
	Kind   ErrorKind
	Detail string
}

func (e *PlanningError) Error() string {
	return fmt.Sprintf("planning failed (%s): %s", e.Kind, e.Detail)
}

func planErrorf(kind ErrorKind, format string, args ...interface{}) *PlanningError {
	return &PlanningError{Kind: kind, Detail: fmt.Sprintf(format, args...)}
}
