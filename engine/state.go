package engine

import (
	"fmt"
	"slices"
)

// State is a stage of the query lifecycle.
type State int

const (
	Received State = iota
	Classified
	Planned
	Retrieved
	Fused
	Budgeted
	Prompted
	Generated
	Validated
	Retried
	Delivered
	Refused
)

var stateNames = [...]string{
	Received:   "RECEIVED",
	Classified: "CLASSIFIED",
	Planned:    "PLANNED",
	Retrieved:  "RETRIEVED",
	Fused:      "FUSED",
	Budgeted:   "BUDGETED",
	Prompted:   "PROMPTED",
	Generated:  "GENERATED",
	Validated:  "VALIDATED",
	Retried:    "RETRIED",
	Delivered:  "DELIVERED",
	Refused:    "REFUSED",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("State(%d)", int(s))
	}
	return stateNames[s]
}

// Terminal reports whether no transition leaves s.
func (s State) Terminal() bool {
	return s == Delivered || s == Refused
}

// Fused may go straight to Delivered when retrieval found nothing.
var transitions = map[State][]State{
	Received:   {Classified},
	Classified: {Planned},
	Planned:    {Retrieved},
	Retrieved:  {Fused},
	Fused:      {Budgeted, Delivered},
	Budgeted:   {Prompted},
	Prompted:   {Generated},
	Generated:  {Validated},
	Validated:  {Delivered, Retried, Refused},
	Retried:    {Generated},
}

// lifecycle tracks one query through the state table.
type lifecycle struct {
	state   State
	retried bool
	history []State
}

func newLifecycle() *lifecycle {
	return &lifecycle{state: Received, history: []State{Received}}
}

// advance moves to next, failing with ErrIllegalTransition when the table
// has no such edge or Retried would be entered twice.
func (l *lifecycle) advance(next State) error {
	if !slices.Contains(transitions[l.state], next) || (next == Retried && l.retried) {
		return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, l.state, next)
	}
	if next == Retried {
		l.retried = true
	}
	l.state = next
	l.history = append(l.history, next)
	return nil
}

// move advances through each state in order.
func (l *lifecycle) move(states ...State) error {
	for _, s := range states {
		if err := l.advance(s); err != nil {
			return err
		}
	}
	return nil
}
