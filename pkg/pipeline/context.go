package pipeline

// Context is the control surface available to a step while it runs. Each
// step receives a fresh context; the execution keeps every entered context
// on an explicit stack so that finish/fail callbacks can be unwound in
// reverse order without relying on the call stack.
type Context[S any] struct {
	exec     *Execution[S]
	state    ExecutionState
	onFinish []func()
	onFail   []func(error)
}

// Subject returns the value currently threaded through the execution.
func (c *Context[S]) Subject() S {
	return c.exec.subject
}

// SetSubject replaces the subject for all subsequent steps.
func (c *Context[S]) SetSubject(subject S) {
	c.exec.subject = subject
}

// Execution returns the execution this context belongs to. Steps hand it to
// asynchronous work so the external driver can later resume or fail the
// execution.
func (c *Context[S]) Execution() *Execution[S] {
	return c.exec
}

// Pause suspends the whole execution at this step. The caller that invoked
// Proceed regains control and must call Proceed again later to resume
// exactly after this step. Pause is only meaningful while the step body is
// running.
func (c *Context[S]) Pause() {
	c.state = StatePaused
}

// Finish completes the execution early: no step after this one runs and the
// finish unwind fires once this step's body returns.
func (c *Context[S]) Finish() {
	c.state = StateFinished
}

// OnFinish registers a callback fired during the finish unwind, in reverse
// order of step execution. Callbacks registered by a step fire only if the
// execution completes successfully.
func (c *Context[S]) OnFinish(fn func()) {
	c.onFinish = append(c.onFinish, fn)
}

// OnFail registers a callback fired with the failing error during the fail
// unwind, in reverse order of step execution.
func (c *Context[S]) OnFail(fn func(error)) {
	c.onFail = append(c.onFail, fn)
}
