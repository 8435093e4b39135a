package domain

import "fmt"

// allowedTransitions is the fixed lifecycle matrix. A status missing a target
// here cannot be reached from that status; an empty target list marks a final
// status.
var allowedTransitions = map[Status][]Status{
	StatusPendingApproval: {StatusActive, StatusAutoApproved, StatusRejected},
	StatusRejected:        {StatusPendingApproval},
	StatusAutoApproved:    {StatusActive, StatusSuspended, StatusTerminated, StatusCancelled, StatusExpired},
	StatusActive:          {StatusSuspended, StatusTerminated, StatusCancelled, StatusExpired},
	StatusSuspended:       {StatusActive, StatusTerminated, StatusCancelled, StatusExpired},
	StatusCancelled:       {},
	StatusExpired:         {StatusPendingApproval},
	StatusTerminated:      {},
	StatusTrial:           {StatusPendingApproval, StatusActive, StatusExpired, StatusCancelled},
}

// IsKnownStatus reports whether s is one of the nine lifecycle states.
func IsKnownStatus(s Status) bool {
	_, ok := allowedTransitions[s]
	return ok
}

// IsValidTransition reports whether from may move to to. Self-transitions are
// always rejected.
func IsValidTransition(from, to Status) bool {
	if from == to {
		return false
	}
	for _, target := range allowedTransitions[from] {
		if target == to {
			return true
		}
	}
	return false
}

// ValidateTransition returns ErrInvalidTransition when from may not move to to.
func ValidateTransition(from, to Status) error {
	if !IsValidTransition(from, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	return nil
}

// IsFinalState reports whether no transition leaves s.
func IsFinalState(s Status) bool {
	return len(allowedTransitions[s]) == 0
}

// AllowedTransitions returns the targets reachable from s.
func AllowedTransitions(s Status) []Status {
	targets := allowedTransitions[s]
	out := make([]Status, len(targets))
	copy(out, targets)
	return out
}
