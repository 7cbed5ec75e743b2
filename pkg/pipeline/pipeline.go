package pipeline

// Step is a single unit of processing registered into a phase. It receives
// the per-step execution context and the current subject. A step may mutate
// or replace the subject, register finish/fail callbacks on its context, or
// influence control flow via Pause, Finish, or Fork. Returning a non-nil
// error fails the whole execution: the fail unwind runs and the error is
// surfaced to the caller of Proceed.
type Step[S any] func(c *Context[S], subject S) error

// Pipeline holds, per phase, an ordered list of steps to run against a
// subject of type S. Steps execute in materialized phase order, then in
// registration order within a phase.
//
// A Pipeline is built up-front and is effectively immutable once executions
// snapshot it; it must not be mutated concurrently with execution.
type Pipeline[S any] struct {
	phases *PhaseList
	steps  map[Phase][]Step[S]
}

// NewPipeline creates a pipeline with the given phases registered in order.
func NewPipeline[S any](phases ...Phase) *Pipeline[S] {
	return &Pipeline[S]{
		phases: NewPhaseList(phases...),
		steps:  make(map[Phase][]Step[S]),
	}
}

// AddPhase registers a phase after all phases registered so far.
func (p *Pipeline[S]) AddPhase(phase Phase) error {
	return p.phases.Add(phase)
}

// InsertPhaseBefore registers a phase constrained to run before the
// reference phase.
func (p *Pipeline[S]) InsertPhaseBefore(reference, phase Phase) error {
	return p.phases.InsertBefore(reference, phase)
}

// InsertPhaseAfter registers a phase constrained to run after the reference
// phase.
func (p *Pipeline[S]) InsertPhaseAfter(reference, phase Phase) error {
	return p.phases.InsertAfter(reference, phase)
}

// HasPhase reports whether the phase has been registered.
func (p *Pipeline[S]) HasPhase(phase Phase) bool {
	return p.phases.Has(phase)
}

// Intercept appends a step to the phase's step list. If the phase has not
// been registered yet it is auto-registered at the end of the current order.
func (p *Pipeline[S]) Intercept(phase Phase, step Step[S]) {
	if !p.phases.Has(phase) {
		_ = p.phases.Add(phase)
	}
	p.steps[phase] = append(p.steps[phase], step)
}

// Merge appends another pipeline's phases and steps into this one. For
// phases both pipelines share, the other pipeline's steps are appended after
// this pipeline's steps for that phase. Phases unique to the other pipeline
// are appended after all of this pipeline's phases, in the other pipeline's
// relative order. Merging performs no deduplication: merging the same
// pipeline twice duplicates its steps.
func (p *Pipeline[S]) Merge(other *Pipeline[S]) {
	order, _ := other.phases.Materialize()
	for _, phase := range order {
		if !p.phases.Has(phase) {
			_ = p.phases.Add(phase)
		}
		p.steps[phase] = append(p.steps[phase], other.steps[phase]...)
	}
}

// Steps returns the flattened, phase-ordered step sequence used to build an
// Execution. The result is a snapshot: later Intercept calls are reflected
// by re-reading Steps, but an Execution already built from an earlier
// snapshot is unaffected.
func (p *Pipeline[S]) Steps() []Step[S] {
	// Relations are validated when phases are inserted, so the phase graph
	// is acyclic by construction and materialization cannot fail here.
	order, _ := p.phases.Materialize()
	n := 0
	for _, phase := range order {
		n += len(p.steps[phase])
	}
	steps := make([]Step[S], 0, n)
	for _, phase := range order {
		steps = append(steps, p.steps[phase]...)
	}
	return steps
}

// Execute creates an execution over the subject with the pipeline's current
// step snapshot and drives it forward once. The returned execution may be in
// the paused state if a step suspended; the caller resumes it with Proceed.
func (p *Pipeline[S]) Execute(subject S) (*Execution[S], error) {
	e := NewExecution(subject, p.Steps())
	err := e.Proceed()
	return e, err
}
