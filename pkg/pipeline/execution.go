package pipeline

// ExecutionState describes the overall state of an Execution, and doubles as
// the per-step tri-state marker used to detect suspension, early completion,
// and re-entrant resumption after a fork.
type ExecutionState int

const (
	// StatePaused means the execution is suspended and waiting to be driven
	// forward with Proceed. A fresh execution starts paused: it only runs
	// when explicitly driven.
	StatePaused ExecutionState = iota

	// StateExecuting means steps are currently being consumed.
	StateExecuting

	// StateFinished is terminal. No further control operations are valid on
	// a finished execution; observing its state and error remains valid.
	StateFinished
)

// String returns a human-readable name for the state.
func (s ExecutionState) String() string {
	switch s {
	case StatePaused:
		return "paused"
	case StateExecuting:
		return "executing"
	case StateFinished:
		return "finished"
	default:
		return "unknown"
	}
}

// Execution is one run of a flattened step sequence against one subject.
// The step sequence is captured at creation; later pipeline mutations do not
// affect an in-flight execution.
//
// An Execution assumes single-threaded cooperative use: it holds no locks.
// Steps may suspend via Context.Pause while asynchronous work happens
// elsewhere, but only one resumption (Proceed or Fail) may be in flight at
// any moment. The caller driving the execution is responsible for
// serializing calls into it; calling Proceed concurrently from two
// goroutines is undefined behavior.
type Execution[S any] struct {
	subject S
	steps   []Step[S]
	// cursor counts how many steps have started.
	cursor int
	// stack holds the context of every step entered so far, in execution
	// order. Unwinds traverse it in reverse.
	stack []*Context[S]
	state ExecutionState
	err   error
}

// NewExecution creates an execution over the subject and step sequence. The
// execution starts paused; drive it forward with Proceed.
func NewExecution[S any](subject S, steps []Step[S]) *Execution[S] {
	return &Execution[S]{subject: subject, steps: steps, state: StatePaused}
}

// State returns the overall state of the execution.
func (e *Execution[S]) State() ExecutionState {
	return e.state
}

// Err returns the error that failed the execution, or nil if the execution
// has not failed.
func (e *Execution[S]) Err() error {
	return e.err
}

// Subject returns the value currently threaded through the steps.
func (e *Execution[S]) Subject() S {
	return e.subject
}

// Proceed runs steps from the current cursor position forward. It returns
// when the execution suspends (a step paused), completes (all steps consumed
// or a step finished early), or fails (a step returned an error). After a
// pause the caller resumes exactly after the paused step by calling Proceed
// again. Proceed on a finished execution returns ErrExecutionEnded.
func (e *Execution[S]) Proceed() error {
	if e.state == StateFinished {
		return ErrExecutionEnded
	}
	e.state = StateExecuting
	for e.cursor < len(e.steps) {
		step := e.steps[e.cursor]
		c := &Context[S]{exec: e, state: StateExecuting}
		e.stack = append(e.stack, c)
		e.cursor++

		err := step(c, e.subject)

		if e.state == StateFinished {
			// A nested drive completed this execution while the step was
			// running (a forked child resumed us to completion, or the step
			// finished/failed the execution directly). The unwind has
			// already run; surface the recorded outcome without repeating
			// it.
			return e.err
		}
		if err != nil {
			e.fail(err)
			return err
		}
		switch c.state {
		case StatePaused:
			// Suspension point: return control to the caller. The next
			// Proceed resumes at the step after this one.
			e.state = StatePaused
			return nil
		case StateFinished:
			// Early completion: stop consuming steps.
			e.finish()
			return nil
		}
	}
	e.finish()
	return nil
}

// Fail fails the execution with the given error: the fail unwind runs and
// the execution ends in the finished state with the error retained. It is
// called by fork wiring and by external drivers, e.g. to cancel an execution
// that is paused on asynchronous work. Fail on a finished execution returns
// ErrExecutionEnded.
func (e *Execution[S]) Fail(err error) error {
	if e.state == StateFinished {
		return ErrExecutionEnded
	}
	e.fail(err)
	return nil
}

// Finish completes the execution early: the finish unwind runs and no
// further steps are consumed. Finish on a finished execution returns
// ErrExecutionEnded.
func (e *Execution[S]) Finish() error {
	if e.state == StateFinished {
		return ErrExecutionEnded
	}
	e.finish()
	return nil
}

// finish runs the finish unwind: every entered step's OnFinish callbacks, in
// reverse order of step execution, reverse order of registration within a
// step. Panics from callbacks are not caught and propagate to the driver.
func (e *Execution[S]) finish() {
	e.state = StateFinished
	stack := e.stack
	e.stack = nil
	for i := len(stack) - 1; i >= 0; i-- {
		cbs := stack[i].onFinish
		for j := len(cbs) - 1; j >= 0; j-- {
			cbs[j]()
		}
	}
}

// fail runs the fail unwind: every entered step's OnFail callbacks, in
// reverse order of step execution. Panics from callbacks are not caught and
// propagate to the driver.
func (e *Execution[S]) fail(err error) {
	e.state = StateFinished
	e.err = err
	stack := e.stack
	e.stack = nil
	for i := len(stack) - 1; i >= 0; i-- {
		cbs := stack[i].onFail
		for j := len(cbs) - 1; j >= 0; j-- {
			cbs[j](err)
		}
	}
}
