package billing

import (
	"errors"
	"fmt"
	"slices"
)

// State is a conceptual subscription lifecycle state derived from record timestamps.
type State string

const (
	StateNone          State = "none"
	StateTrialing      State = "trialing"
	StateActive        State = "active"
	StateCancelPending State = "cancel_pending"
	StateEnded         State = "ended"
)

func (s State) String() string { return string(s) }

// Event is a coordinator operation that moves a subscription between states.
type Event string

const (
	EventSubscribe Event = "subscribe"
	EventCancel    Event = "cancel"
	EventCancelNow Event = "cancel_now"
	EventResume    Event = "resume"
	EventSwap      Event = "swap"
	EventEnd       Event = "end"
	EventSync      Event = "sync"
)

func (e Event) String() string { return string(e) }

var (
	live = []State{StateTrialing, StateActive}
	all  = []State{StateTrialing, StateActive, StateCancelPending, StateEnded}
)

// transitions lists, per source state and event, every state the record may land in.
// Trialing lapses into active with the passage of time, so both count as live.
var transitions = map[State]map[Event][]State{
	StateNone: {
		EventSubscribe: live,
		EventSync:      all,
	},
	StateTrialing: {
		EventSubscribe: live,
		EventCancel:    {StateCancelPending},
		EventCancelNow: {StateEnded},
		EventSwap:      live,
		EventResume:    live,
		EventEnd:       {StateEnded},
		EventSync:      all,
	},
	StateActive: {
		EventSubscribe: live,
		EventCancel:    {StateCancelPending},
		EventCancelNow: {StateEnded},
		EventSwap:      live,
		EventResume:    live,
		EventEnd:       {StateEnded},
		EventSync:      all,
	},
	StateCancelPending: {
		EventSubscribe: live,
		EventCancel:    {StateCancelPending},
		EventCancelNow: {StateEnded},
		EventResume:    live,
		EventSwap:      live,
		EventEnd:       {StateEnded},
		EventSync:      all,
	},
	StateEnded: {
		EventSubscribe: live,
		EventCancelNow: {StateEnded},
		EventEnd:       {StateEnded},
		EventSync:      all,
	},
}

// TransitionError reports a lifecycle move that the transition table does not allow.
type TransitionError struct {
	From  State
	To    State
	Event Event
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("unexpected subscription transition from '%s' to '%s' on '%s'", e.From, e.To, e.Event)
}

func IsTransitionError(err error) bool {
	var e *TransitionError
	return errors.As(err, &e)
}

// CanFire reports whether the event has any transition out of the given state.
func CanFire(from State, ev Event) bool {
	_, ok := transitions[from][ev]
	return ok
}

// CheckTransition validates an observed move against the transition table.
func CheckTransition(from State, ev Event, to State) error {
	targets, ok := transitions[from][ev]
	if !ok || !slices.Contains(targets, to) {
		return &TransitionError{From: from, To: to, Event: ev}
	}
	return nil
}
