package pipeline

import (
	"errors"
	"testing"
)

func TestForkChildRunsBeforeParentResumes(t *testing.T) {
	var order []string

	child := NewPipeline[int]("call")
	child.Intercept("call", func(c *Context[int], subject int) error {
		order = append(order, "child1")
		return nil
	})
	child.Intercept("call", func(c *Context[int], subject int) error {
		order = append(order, "child2")
		return nil
	})

	parent := NewPipeline[string]("call")
	parent.Intercept("call", recordStepString(&order, "parent1"))
	parent.Intercept("call", func(c *Context[string], subject string) error {
		order = append(order, "fork")
		return Fork(c, 42, child)
	})
	parent.Intercept("call", recordStepString(&order, "parent2"))

	e, err := parent.Execute("subject")
	if err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}
	if e.State() != StateFinished {
		t.Fatalf("Expected finished parent, got %v", e.State())
	}

	expected := []string{"parent1", "fork", "child1", "child2", "parent2"}
	if len(order) != len(expected) {
		t.Fatalf("Expected %v, got %v", expected, order)
	}
	for i, v := range expected {
		if order[i] != v {
			t.Errorf("Expected %q at position %d, got %q", v, i, order[i])
		}
	}
}

func TestForkSynchronousCompletionRunsParentTailExactlyOnce(t *testing.T) {
	tailRuns := 0
	finishUnwinds := 0

	child := NewPipeline[int]("call")
	child.Intercept("call", func(c *Context[int], subject int) error {
		return nil
	})

	parent := NewPipeline[string]("call")
	parent.Intercept("call", func(c *Context[string], subject string) error {
		c.OnFinish(func() { finishUnwinds++ })
		return Fork(c, 1, child)
	})
	parent.Intercept("call", func(c *Context[string], subject string) error {
		tailRuns++
		return nil
	})

	e, err := parent.Execute("subject")
	if err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}
	if e.State() != StateFinished {
		t.Fatalf("Expected finished parent, got %v", e.State())
	}
	if tailRuns != 1 {
		t.Errorf("Expected the step after the fork to run exactly once, got %d", tailRuns)
	}
	if finishUnwinds != 1 {
		t.Errorf("Expected the parent finish unwind to fire exactly once, got %d", finishUnwinds)
	}
}

func TestForkChildFailureFailsParent(t *testing.T) {
	boom := errors.New("child boom")
	var parentFail error
	tailRan := false

	child := NewPipeline[int]("call")
	child.Intercept("call", func(c *Context[int], subject int) error {
		return boom
	})

	parent := NewPipeline[string]("call")
	parent.Intercept("call", func(c *Context[string], subject string) error {
		c.OnFail(func(err error) { parentFail = err })
		return Fork(c, 1, child)
	})
	parent.Intercept("call", func(c *Context[string], subject string) error {
		tailRan = true
		return nil
	})

	e, err := parent.Execute("subject")
	if !errors.Is(err, boom) {
		t.Fatalf("Expected child error from Execute, got %v", err)
	}
	if e.State() != StateFinished {
		t.Errorf("Expected finished parent, got %v", e.State())
	}
	if !errors.Is(e.Err(), boom) {
		t.Errorf("Expected parent error to be the child error, got %v", e.Err())
	}
	if !errors.Is(parentFail, boom) {
		t.Errorf("Expected parent fail unwind with child error, got %v", parentFail)
	}
	if tailRan {
		t.Errorf("Expected the step after the fork not to run when the child fails")
	}
}

func TestForkChildUnwindsBeforeParentResumes(t *testing.T) {
	var order []string

	child := NewPipeline[int]("call")
	child.Intercept("call", func(c *Context[int], subject int) error {
		c.OnFinish(func() { order = append(order, "child-cleanup") })
		return nil
	})

	parent := NewPipeline[string]("call")
	parent.Intercept("call", func(c *Context[string], subject string) error {
		return Fork(c, 1, child)
	})
	parent.Intercept("call", recordStepString(&order, "parent-tail"))

	if _, err := parent.Execute("subject"); err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}

	expected := []string{"child-cleanup", "parent-tail"}
	if len(order) != len(expected) {
		t.Fatalf("Expected %v, got %v", expected, order)
	}
	for i, v := range expected {
		if order[i] != v {
			t.Errorf("Expected %q at position %d, got %q", v, i, order[i])
		}
	}
}

func TestForkAsynchronousChildSuspendsParent(t *testing.T) {
	var order []string
	var childCtx *Context[int]

	child := NewPipeline[int]("call")
	child.Intercept("call", func(c *Context[int], subject int) error {
		order = append(order, "child-pause")
		childCtx = c
		c.Pause()
		return nil
	})
	child.Intercept("call", func(c *Context[int], subject int) error {
		order = append(order, "child-resume")
		return nil
	})

	parent := NewPipeline[string]("call")
	parent.Intercept("call", func(c *Context[string], subject string) error {
		return Fork(c, 1, child)
	})
	parent.Intercept("call", recordStepString(&order, "parent-tail"))

	e, err := parent.Execute("subject")
	if err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}
	if e.State() != StatePaused {
		t.Fatalf("Expected parent paused while child is pending, got %v", e.State())
	}
	if len(order) != 1 || order[0] != "child-pause" {
		t.Fatalf("Expected only the child to have started, got %v", order)
	}

	// Simulate the asynchronous completion: the external driver resumes the
	// child, whose completion wiring resumes the parent.
	if err := childCtx.Execution().Proceed(); err != nil {
		t.Fatalf("Child Proceed returned error: %v", err)
	}

	if e.State() != StateFinished {
		t.Errorf("Expected finished parent after child completion, got %v", e.State())
	}
	expected := []string{"child-pause", "child-resume", "parent-tail"}
	if len(order) != len(expected) {
		t.Fatalf("Expected %v, got %v", expected, order)
	}
	for i, v := range expected {
		if order[i] != v {
			t.Errorf("Expected %q at position %d, got %q", v, i, order[i])
		}
	}
}

func TestForkChildSubjectIndependent(t *testing.T) {
	var childSubject int

	child := NewPipeline[int]("call")
	child.Intercept("call", func(c *Context[int], subject int) error {
		childSubject = subject
		c.SetSubject(subject * 2)
		return nil
	})

	parent := NewPipeline[string]("call")
	parent.Intercept("call", func(c *Context[string], subject string) error {
		return Fork(c, 21, child)
	})

	e, err := parent.Execute("unchanged")
	if err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}
	if childSubject != 21 {
		t.Errorf("Expected child subject 21, got %d", childSubject)
	}
	if e.Subject() != "unchanged" {
		t.Errorf("Expected parent subject untouched, got %q", e.Subject())
	}
}
