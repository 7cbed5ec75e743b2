package pipeline

import (
	"errors"
	"testing"
)

// recordStep returns a step that appends its name to the order slice.
func recordStep(order *[]string, name string) Step[*[]string] {
	return func(c *Context[*[]string], subject *[]string) error {
		*order = append(*order, name)
		return nil
	}
}

func TestEmptyPipelineFinishesImmediately(t *testing.T) {
	p := NewPipeline[string]("call")

	e, err := p.Execute("subject")
	if err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}
	if e.State() != StateFinished {
		t.Errorf("Expected state %v, got %v", StateFinished, e.State())
	}
	if e.Err() != nil {
		t.Errorf("Expected no error, got %v", e.Err())
	}
}

func TestStepsRunInRegistrationOrder(t *testing.T) {
	var order []string
	p := NewPipeline[*[]string]("first", "second")
	p.Intercept("second", recordStep(&order, "c"))
	p.Intercept("first", recordStep(&order, "a"))
	p.Intercept("first", recordStep(&order, "b"))

	e, err := p.Execute(&order)
	if err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}
	if e.State() != StateFinished {
		t.Fatalf("Expected state %v, got %v", StateFinished, e.State())
	}

	expected := []string{"a", "b", "c"}
	if len(order) != len(expected) {
		t.Fatalf("Expected %d steps to run, got %d: %v", len(expected), len(order), order)
	}
	for i, v := range expected {
		if order[i] != v {
			t.Errorf("Expected %q at position %d, got %q", v, i, order[i])
		}
	}
}

func TestOnFinishCallbacksFireInReverseOrder(t *testing.T) {
	var unwound []string
	p := NewPipeline[string]("call")
	for _, name := range []string{"a", "b", "c"} {
		name := name
		p.Intercept("call", func(c *Context[string], subject string) error {
			c.OnFinish(func() {
				unwound = append(unwound, name)
			})
			return nil
		})
	}

	if _, err := p.Execute("subject"); err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}

	expected := []string{"c", "b", "a"}
	if len(unwound) != len(expected) {
		t.Fatalf("Expected %d callbacks, got %d: %v", len(expected), len(unwound), unwound)
	}
	for i, v := range expected {
		if unwound[i] != v {
			t.Errorf("Expected callback %q at position %d, got %q", v, i, unwound[i])
		}
	}
}

func TestStepFailureUnwindsOnFailInReverseOrder(t *testing.T) {
	var failed []string
	var finished []string
	boom := errors.New("boom")

	p := NewPipeline[string]("call")
	for _, name := range []string{"a", "b"} {
		name := name
		p.Intercept("call", func(c *Context[string], subject string) error {
			c.OnFail(func(err error) {
				failed = append(failed, name)
			})
			c.OnFinish(func() {
				finished = append(finished, name)
			})
			return nil
		})
	}
	p.Intercept("call", func(c *Context[string], subject string) error {
		c.OnFail(func(err error) {
			failed = append(failed, "c")
		})
		return boom
	})
	p.Intercept("call", recordStepString(&finished, "never"))

	e, err := p.Execute("subject")
	if !errors.Is(err, boom) {
		t.Fatalf("Expected boom error from Execute, got %v", err)
	}
	if e.State() != StateFinished {
		t.Errorf("Expected state %v, got %v", StateFinished, e.State())
	}
	if !errors.Is(e.Err(), boom) {
		t.Errorf("Expected execution error boom, got %v", e.Err())
	}

	expectedFailed := []string{"c", "b", "a"}
	if len(failed) != len(expectedFailed) {
		t.Fatalf("Expected %d fail callbacks, got %d: %v", len(expectedFailed), len(failed), failed)
	}
	for i, v := range expectedFailed {
		if failed[i] != v {
			t.Errorf("Expected fail callback %q at position %d, got %q", v, i, failed[i])
		}
	}
	if len(finished) != 0 {
		t.Errorf("Expected no finish callbacks after failure, got %v", finished)
	}
}

func recordStepString(order *[]string, name string) Step[string] {
	return func(c *Context[string], subject string) error {
		*order = append(*order, name)
		return nil
	}
}

func TestPauseSuspendsAndProceedResumesAfterPausedStep(t *testing.T) {
	var order []string
	p := NewPipeline[string]("call")
	p.Intercept("call", recordStepString(&order, "A"))
	p.Intercept("call", func(c *Context[string], subject string) error {
		order = append(order, "B")
		c.Pause()
		return nil
	})
	p.Intercept("call", recordStepString(&order, "C"))

	e, err := p.Execute("subject")
	if err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}
	if e.State() != StatePaused {
		t.Fatalf("Expected state %v after pause, got %v", StatePaused, e.State())
	}
	if len(order) != 2 || order[0] != "A" || order[1] != "B" {
		t.Fatalf("Expected [A B] before resume, got %v", order)
	}

	if err := e.Proceed(); err != nil {
		t.Fatalf("Proceed returned error: %v", err)
	}
	if e.State() != StateFinished {
		t.Errorf("Expected state %v after resume, got %v", StateFinished, e.State())
	}

	expected := []string{"A", "B", "C"}
	if len(order) != len(expected) {
		t.Fatalf("Expected %v, got %v", expected, order)
	}
	for i, v := range expected {
		if order[i] != v {
			t.Errorf("Expected %q at position %d, got %q", v, i, order[i])
		}
	}
}

func TestEarlyFinishSkipsRemainingSteps(t *testing.T) {
	var order []string
	var unwound []string
	p := NewPipeline[string]("call")
	p.Intercept("call", func(c *Context[string], subject string) error {
		order = append(order, "A")
		c.OnFinish(func() { unwound = append(unwound, "A") })
		return nil
	})
	p.Intercept("call", func(c *Context[string], subject string) error {
		order = append(order, "B")
		c.Finish()
		return nil
	})
	p.Intercept("call", recordStepString(&order, "C"))

	e, err := p.Execute("subject")
	if err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}
	if e.State() != StateFinished {
		t.Errorf("Expected state %v, got %v", StateFinished, e.State())
	}
	if len(order) != 2 || order[1] != "B" {
		t.Errorf("Expected only [A B] to run, got %v", order)
	}
	if len(unwound) != 1 || unwound[0] != "A" {
		t.Errorf("Expected finish unwind to fire, got %v", unwound)
	}
}

func TestSubjectReplacementVisibleToLaterSteps(t *testing.T) {
	p := NewPipeline[string]("call")
	p.Intercept("call", func(c *Context[string], subject string) error {
		c.SetSubject(subject + "-transformed")
		return nil
	})
	var seen string
	p.Intercept("call", func(c *Context[string], subject string) error {
		seen = subject
		return nil
	})

	e, err := p.Execute("input")
	if err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}
	if seen != "input-transformed" {
		t.Errorf("Expected later step to see replaced subject, got %q", seen)
	}
	if e.Subject() != "input-transformed" {
		t.Errorf("Expected final subject %q, got %q", "input-transformed", e.Subject())
	}
}

func TestControlOperationsOnFinishedExecution(t *testing.T) {
	p := NewPipeline[string]("call")
	e, err := p.Execute("subject")
	if err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}

	if err := e.Proceed(); !errors.Is(err, ErrExecutionEnded) {
		t.Errorf("Expected ErrExecutionEnded from Proceed, got %v", err)
	}
	if err := e.Fail(errors.New("late")); !errors.Is(err, ErrExecutionEnded) {
		t.Errorf("Expected ErrExecutionEnded from Fail, got %v", err)
	}
	if err := e.Finish(); !errors.Is(err, ErrExecutionEnded) {
		t.Errorf("Expected ErrExecutionEnded from Finish, got %v", err)
	}
	if e.State() != StateFinished {
		t.Errorf("Observing state of a finished execution must remain valid")
	}
}

func TestExternalFailWhilePaused(t *testing.T) {
	var failedWith error
	canceled := errors.New("canceled")

	p := NewPipeline[string]("call")
	p.Intercept("call", func(c *Context[string], subject string) error {
		c.OnFail(func(err error) { failedWith = err })
		c.Pause()
		return nil
	})
	var ran bool
	p.Intercept("call", func(c *Context[string], subject string) error {
		ran = true
		return nil
	})

	e, err := p.Execute("subject")
	if err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}
	if e.State() != StatePaused {
		t.Fatalf("Expected paused execution, got %v", e.State())
	}

	if err := e.Fail(canceled); err != nil {
		t.Fatalf("Fail returned error: %v", err)
	}
	if e.State() != StateFinished {
		t.Errorf("Expected state %v after Fail, got %v", StateFinished, e.State())
	}
	if !errors.Is(failedWith, canceled) {
		t.Errorf("Expected fail callback to receive cancellation error, got %v", failedWith)
	}
	if ran {
		t.Errorf("Expected no further steps to run after external Fail")
	}
}

func TestSnapshotUnaffectedByLaterIntercepts(t *testing.T) {
	var order []string
	p := NewPipeline[string]("call")
	p.Intercept("call", func(c *Context[string], subject string) error {
		order = append(order, "A")
		c.Pause()
		return nil
	})

	e := NewExecution("subject", p.Steps())
	if err := e.Proceed(); err != nil {
		t.Fatalf("Proceed returned error: %v", err)
	}

	// Registered after the snapshot was taken: must not run in this
	// execution, but must be visible to a fresh snapshot.
	p.Intercept("call", recordStepString(&order, "late"))

	if err := e.Proceed(); err != nil {
		t.Fatalf("Proceed returned error: %v", err)
	}
	if e.State() != StateFinished {
		t.Fatalf("Expected finished execution, got %v", e.State())
	}
	if len(order) != 1 || order[0] != "A" {
		t.Errorf("Expected in-flight execution to ignore later intercepts, got %v", order)
	}

	if got := len(p.Steps()); got != 2 {
		t.Errorf("Expected fresh snapshot to contain 2 steps, got %d", got)
	}
}

func TestPanicInFinishCallbackReachesDriver(t *testing.T) {
	p := NewPipeline[string]("call")
	p.Intercept("call", func(c *Context[string], subject string) error {
		c.OnFinish(func() { panic("cleanup exploded") })
		return nil
	})

	defer func() {
		rec := recover()
		if rec == nil {
			// The Fatalf below already failed the test.
			return
		}
		if rec != "cleanup exploded" {
			t.Errorf("Expected panic value %q, got %v", "cleanup exploded", rec)
		}
	}()
	_, _ = p.Execute("subject")
	t.Fatalf("Expected panic from finish callback to reach the caller")
}

func TestPanicInFailCallbackReachesDriver(t *testing.T) {
	boom := errors.New("boom")
	p := NewPipeline[string]("call")
	p.Intercept("call", func(c *Context[string], subject string) error {
		c.OnFail(func(error) { panic("fail cleanup exploded") })
		return boom
	})

	defer func() {
		// Recovering here keeps the panic from failing the whole package;
		// the Fatalf below fires only when no panic happened.
		_ = recover()
	}()
	_, _ = p.Execute("subject")
	t.Fatalf("Expected panic from fail callback to reach the caller")
}

func TestMultipleCallbacksWithinStepFireInReverseRegistrationOrder(t *testing.T) {
	var unwound []string
	p := NewPipeline[string]("call")
	p.Intercept("call", func(c *Context[string], subject string) error {
		c.OnFinish(func() { unwound = append(unwound, "first") })
		c.OnFinish(func() { unwound = append(unwound, "second") })
		return nil
	})

	if _, err := p.Execute("subject"); err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}
	if len(unwound) != 2 || unwound[0] != "second" || unwound[1] != "first" {
		t.Errorf("Expected [second first], got %v", unwound)
	}
}
