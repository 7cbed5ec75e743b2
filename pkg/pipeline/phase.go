package pipeline

// Phase is a named ordering bucket for steps. Phases are partially ordered
// via before/after relations and materialized into a single total order when
// the pipeline's step sequence is built.
type Phase string

// phaseRelation describes how a phase was positioned relative to the rest of
// the list when it was registered.
type phaseRelation int

const (
	// relationLast places the phase after all phases registered so far.
	relationLast phaseRelation = iota
	// relationBefore places the phase before its reference phase.
	relationBefore
	// relationAfter places the phase after its reference phase.
	relationAfter
)

// phaseEntry is one registered phase together with its ordering constraint.
type phaseEntry struct {
	phase    Phase
	relation phaseRelation
	ref      Phase
}

// PhaseList is an ordered registry of phases. Registration order is preserved
// for phases that are not constrained relative to each other, and explicit
// before/after relations are resolved by a stable topological sort.
type PhaseList struct {
	entries []phaseEntry
}

// NewPhaseList creates a PhaseList pre-populated with the given phases in
// registration order. Duplicate phases in the argument list are ignored after
// their first occurrence.
func NewPhaseList(phases ...Phase) *PhaseList {
	l := &PhaseList{}
	for _, p := range phases {
		_ = l.Add(p)
	}
	return l
}

// Add registers a phase after all phases registered so far.
// It returns ErrDuplicatePhase if the phase is already present.
func (l *PhaseList) Add(phase Phase) error {
	if l.Has(phase) {
		return phaseError(ErrDuplicatePhase, phase)
	}
	l.entries = append(l.entries, phaseEntry{phase: phase, relation: relationLast})
	return nil
}

// InsertBefore registers a phase constrained to run before the reference
// phase. It returns ErrUnknownPhase if the reference was never registered and
// ErrDuplicatePhase if the phase is already present.
func (l *PhaseList) InsertBefore(reference, phase Phase) error {
	return l.insert(reference, phase, relationBefore)
}

// InsertAfter registers a phase constrained to run after the reference phase.
// It returns ErrUnknownPhase if the reference was never registered and
// ErrDuplicatePhase if the phase is already present.
func (l *PhaseList) InsertAfter(reference, phase Phase) error {
	return l.insert(reference, phase, relationAfter)
}

func (l *PhaseList) insert(reference, phase Phase, relation phaseRelation) error {
	if !l.Has(reference) {
		return phaseError(ErrUnknownPhase, reference)
	}
	if l.Has(phase) {
		return phaseError(ErrDuplicatePhase, phase)
	}
	l.entries = append(l.entries, phaseEntry{phase: phase, relation: relation, ref: reference})
	return nil
}

// Has reports whether the phase has been registered.
func (l *PhaseList) Has(phase Phase) bool {
	for _, e := range l.entries {
		if e.phase == phase {
			return true
		}
	}
	return false
}

// Len returns the number of registered phases.
func (l *PhaseList) Len() int {
	return len(l.entries)
}

// Materialize resolves the before/after relations into a single total order
// using Kahn's algorithm. Phases with no relative constraint retain their
// registration order, so the result is deterministic for a fixed sequence of
// registration calls. It returns ErrPhaseCycle if the relations are cyclic.
func (l *PhaseList) Materialize() ([]Phase, error) {
	n := len(l.entries)
	index := make(map[Phase]int, n)
	for i, e := range l.entries {
		index[e.phase] = i
	}

	// Build the dependency edges: an edge from a to b means a must run
	// before b, contributing to b's in-degree.
	inDegree := make([]int, n)
	dependents := make([][]int, n)
	for i, e := range l.entries {
		switch e.relation {
		case relationBefore:
			ref := index[e.ref]
			inDegree[ref]++
			dependents[i] = append(dependents[i], ref)
		case relationAfter:
			ref := index[e.ref]
			inDegree[i]++
			dependents[ref] = append(dependents[ref], i)
		}
	}

	order := make([]Phase, 0, n)
	placed := make([]bool, n)
	for len(order) < n {
		// Pick the earliest-registered phase whose constraints are
		// satisfied. This is what keeps the sort stable.
		next := -1
		for i := range l.entries {
			if !placed[i] && inDegree[i] == 0 {
				next = i
				break
			}
		}
		if next == -1 {
			return nil, ErrPhaseCycle
		}
		placed[next] = true
		order = append(order, l.entries[next].phase)
		for _, d := range dependents[next] {
			inDegree[d]--
		}
	}
	return order, nil
}
