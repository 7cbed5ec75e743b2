package pipeline

// Fork starts a nested execution of a child pipeline over a new subject,
// from within a currently executing step of a parent execution. The child's
// completion is wired back into the parent: when the child finishes the
// parent proceeds from the step after the fork point, and when the child
// fails the parent fails with the child's error. The child runs to
// completion (or suspension) before any step after the fork point runs.
//
// Fork is a standalone function rather than a method because the child
// subject type is independent of the parent's and Go methods cannot
// introduce type parameters.
//
// The child error is returned for observability; if the child failed, the
// parent has already been failed through the wiring regardless of what the
// forking step does with the returned error.
func Fork[S any, C any](parent *Context[S], subject C, p *Pipeline[C]) error {
	parentExec := parent.exec

	// A synthetic first step wires the child's terminal transitions back
	// into the parent. It sits at the bottom of the child's context stack,
	// so during the child's unwind it fires last: the child's own cleanup
	// completes before the parent resumes.
	wire := func(c *Context[C], _ C) error {
		c.OnFinish(func() {
			_ = parentExec.Proceed()
		})
		c.OnFail(func(err error) {
			_ = parentExec.Fail(err)
		})
		return nil
	}
	steps := append([]Step[C]{wire}, p.Steps()...)

	// The parent resumes through the child's wiring, so the forking step is
	// marked paused before the child is driven.
	parent.state = StatePaused

	child := NewExecution(subject, steps)
	err := child.Proceed()

	if parentExec.state == StateFinished {
		// The child completed synchronously and its wiring already drove
		// the parent to its terminal state during this call. Mark the
		// forking step finished so the drive loop above us does not treat
		// the fork as a suspension point and resume a second time.
		parent.state = StateFinished
	}
	return err
}
