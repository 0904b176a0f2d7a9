// Package workflow holds the application status state machine.
package workflow

import (
	"errors"
	"fmt"
)

type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected:
		return true
	}
	return false
}

// Terminal reports whether no event can move the application any further.
func (s Status) Terminal() bool {
	return s == StatusApproved || s == StatusRejected
}

type Event string

const (
	EventApprove Event = "approve"
	EventReject  Event = "reject"
)

var ErrInvalidTransition = errors.New("invalid application status transition")

var transitions = map[Status]map[Event]Status{
	StatusPending: {
		EventApprove: StatusApproved,
		EventReject:  StatusRejected,
	},
}

// InitialStatus is evaluated once, when the application is created.
func InitialStatus(autoApprove bool) Status {
	if autoApprove {
		return StatusApproved
	}
	return StatusPending
}

func Transition(from Status, event Event) (Status, error) {
	to, ok := transitions[from][event]
	if !ok {
		return from, fmt.Errorf("%w: cannot %s an application that is %s", ErrInvalidTransition, event, from)
	}
	return to, nil
}

// Parse maps stored text to a Status, treating unknown values as pending.
func Parse(s string) Status {
	st := Status(s)
	if !st.Valid() {
		return StatusPending
	}
	return st
}
