// Package pipeline provides a generic, phase-ordered interception pipeline
// with a suspendable execution engine. Steps are registered into named phases,
// phases are materialized into a deterministic total order, and an Execution
// runs the flattened step sequence against a subject with support for
// pausing, early completion, failure unwinding, and forking child executions.
package pipeline

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownPhase is returned when a phase is inserted relative to a
	// reference phase that was never registered.
	ErrUnknownPhase = errors.New("pipeline: unknown reference phase")

	// ErrDuplicatePhase is returned when a phase that already exists in the
	// pipeline is registered a second time.
	ErrDuplicatePhase = errors.New("pipeline: duplicate phase")

	// ErrPhaseCycle is returned when phase ordering relations form a cycle
	// and no total order can be materialized.
	ErrPhaseCycle = errors.New("pipeline: phase ordering cycle")

	// ErrExecutionEnded is returned when a control operation is invoked on an
	// execution that has already reached its terminal state. Observing the
	// state of a finished execution remains valid.
	ErrExecutionEnded = errors.New("pipeline: execution already finished")
)

// phaseError annotates a registry error with the offending phase name.
func phaseError(err error, phase Phase) error {
	return fmt.Errorf("%w: %q", err, string(phase))
}
