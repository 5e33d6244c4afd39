package fsm

import (
	"context"
	"errors"

	loopfsm "github.com/looplab/fsm"

	"github.com/neomorfeo/onboardiq/internal/domain"
)

// Compile-time checks: Validator implements domain.TransitionValidator for
// both workflow machines.
var (
	_ domain.TransitionValidator[domain.Step, domain.SessionEvent]  = (*Validator[domain.Step, domain.SessionEvent])(nil)
	_ domain.TransitionValidator[domain.KYCStatus, domain.KYCEvent] = (*Validator[domain.KYCStatus, domain.KYCEvent])(nil)
)

// Validator implements domain.TransitionValidator using looplab/fsm. It is
// built once from a transition table and creates a short-lived FSM instance
// per Apply call, initialized with the entity's current state. This is
// necessary because looplab/fsm is stateful (it tracks the current state
// internally), while validation here must stay a side-effect-free value.
type Validator[S ~string, E ~string] struct {
	events      []loopfsm.EventDesc
	transitions []domain.Transition[S, E]
}

// New creates an FSM-backed validator from a transition table. It
// consolidates transitions with the same event+destination into a single
// EventDesc with multiple source states (e.g., cancel from several steps
// all going to "cancelled").
func New[S ~string, E ~string](transitions []domain.Transition[S, E]) *Validator[S, E] {
	type key struct {
		event string
		dst   string
	}
	grouped := make(map[key][]string)
	order := make([]key, 0)

	for _, t := range transitions {
		k := key{event: string(t.Event), dst: string(t.Dst)}
		if _, exists := grouped[k]; !exists {
			order = append(order, k)
		}
		grouped[k] = append(grouped[k], string(t.Src))
	}

	events := make([]loopfsm.EventDesc, 0, len(order))
	for _, k := range order {
		events = append(events, loopfsm.EventDesc{
			Name: k.event,
			Src:  grouped[k],
			Dst:  k.dst,
		})
	}

	return &Validator[S, E]{events: events, transitions: transitions}
}

// Apply checks if the given event is valid from the current state and
// returns the destination state. Returns a *domain.TransitionError if the
// transition is not allowed.
func (v *Validator[S, E]) Apply(ctx context.Context, current S, event E) (S, error) {
	machine := loopfsm.NewFSM(string(current), v.events, nil)

	if err := machine.Event(ctx, string(event)); err != nil {
		var invalidEvent loopfsm.InvalidEventError
		var noTransition loopfsm.NoTransitionError
		if errors.As(err, &invalidEvent) || errors.As(err, &noTransition) {
			return "", &domain.TransitionError{
				Event:   string(event),
				Current: string(current),
			}
		}
		return "", err
	}

	return S(machine.Current()), nil
}

// CanTransition reports whether from can reach to directly. A state can
// always reach itself; a state absent from the table has no other edges.
func (v *Validator[S, E]) CanTransition(from, to S) bool {
	if from == to {
		return true
	}
	for _, t := range v.transitions {
		if t.Src == from && t.Dst == to {
			return true
		}
	}
	return false
}

// Possible returns the distinct destination states reachable from current.
func (v *Validator[S, E]) Possible(current S) []S {
	seen := make(map[S]bool)
	var out []S
	for _, t := range v.transitions {
		if t.Src == current && !seen[t.Dst] {
			seen[t.Dst] = true
			out = append(out, t.Dst)
		}
	}
	return out
}
