package domain

import (
	"errors"
	"testing"
)

func TestAllowedTransitionMatrix(t *testing.T) {
	allowed := map[Status][]Status{
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

	statuses := []Status{
		StatusPendingApproval, StatusRejected, StatusAutoApproved,
		StatusActive, StatusSuspended, StatusCancelled,
		StatusExpired, StatusTerminated, StatusTrial,
	}

	for from, targets := range allowed {
		want := make(map[Status]bool, len(targets))
		for _, to := range targets {
			want[to] = true
		}
		for _, to := range statuses {
			got := IsValidTransition(from, to)
			if got != want[to] {
				t.Errorf("IsValidTransition(%s, %s) = %v, want %v", from, to, got, want[to])
			}
		}
	}
}

func TestSelfTransitionNeverValid(t *testing.T) {
	for status := range allowedTransitions {
		if IsValidTransition(status, status) {
			t.Errorf("self transition allowed for %s", status)
		}
	}
}

func TestValidateTransitionError(t *testing.T) {
	if err := ValidateTransition(StatusPendingApproval, StatusActive); err != nil {
		t.Fatalf("expected valid transition, got %v", err)
	}

	err := ValidateTransition(StatusActive, StatusPendingApproval)
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}

	err = ValidateTransition(StatusTerminated, StatusActive)
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition out of terminal state, got %v", err)
	}
}

func TestIsFinalState(t *testing.T) {
	finals := map[Status]bool{
		StatusCancelled:  true,
		StatusTerminated: true,
	}

	for status := range allowedTransitions {
		if got := IsFinalState(status); got != finals[status] {
			t.Errorf("IsFinalState(%s) = %v, want %v", status, got, finals[status])
		}
	}
}

func TestIsKnownStatus(t *testing.T) {
	if !IsKnownStatus(StatusTrial) {
		t.Fatal("TRIAL should be a known status")
	}
	if IsKnownStatus(Status("PAUSED")) {
		t.Fatal("PAUSED should not be a known status")
	}
}

func TestAllowedTransitionsReturnsCopy(t *testing.T) {
	first := AllowedTransitions(StatusSuspended)
	if len(first) == 0 {
		t.Fatal("expected transitions out of SUSPENDED")
	}
	first[0] = Status("MUTATED")

	second := AllowedTransitions(StatusSuspended)
	for _, status := range second {
		if status == Status("MUTATED") {
			t.Fatal("AllowedTransitions leaked internal state")
		}
	}
}
