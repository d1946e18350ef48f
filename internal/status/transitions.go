package status

import "fmt"

type transitionTable map[Status]map[Status]struct{}

func newTable(edges map[Status][]Status) transitionTable {
	t := make(transitionTable, len(edges))
	for from, tos := range edges {
		set := make(map[Status]struct{}, len(tos))
		for _, to := range tos {
			set[to] = struct{}{}
		}
		t[from] = set
	}
	return t
}

var applicationTransitions = newTable(map[Status][]Status{
	Pending:     {Reviewed, Shortlisted, Interview, Rejected, Withdrawn},
	Reviewed:    {Shortlisted, Interview, Rejected, Withdrawn},
	Shortlisted: {Interview, Offered, Rejected, Withdrawn},
	Interview:   {Shortlisted, Offered, Rejected, Withdrawn},
	Offered:     {Hired, Rejected, Withdrawn},
})

var poolTransitions = newTable(map[Status][]Status{
	Pending:     {Contacted, Interested, Shortlisted, Rejected, Withdrawn},
	Contacted:   {Interested, Shortlisted, Rejected, Withdrawn},
	Interested:  {Shortlisted, Interview, Rejected, Withdrawn},
	Shortlisted: {Interview, Offered, Rejected, Withdrawn},
	Interview:   {Offered, Rejected, Withdrawn},
	Offered:     {Hired, Rejected, Withdrawn},
})

// CanTransition reports whether the table allows from -> to. Re-applying the
// current status is always allowed.
func CanTransition(kind Kind, from, to Status) bool {
	if from == to {
		return true
	}
	var table transitionTable
	switch kind {
	case KindApplication:
		table = applicationTransitions
	case KindJobPool:
		table = poolTransitions
	default:
		return false
	}
	_, ok := table[from][to]
	return ok
}

// Policy decides whether a transition is checked against the table. The zero
// value accepts every move between enumeration members.
type Policy struct {
	Enforce bool
}

func (p Policy) Check(kind Kind, from, to Status) error {
	if !p.Enforce || CanTransition(kind, from, to) {
		return nil
	}
	return fmt.Errorf("%w: %s -> %s", ErrTransitionNotAllowed, from, to)
}
