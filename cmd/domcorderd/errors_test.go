package main

import (
	"errors"
	"testing"
)

func TestErrSessionNotFound_Error(t *testing.T) {
	err := &ErrSessionNotFound{SessionID: "sess_1"}
	if got := err.Error(); got == "" {
		t.Fatal("expected non-empty error message")
	}
	var target *ErrSessionNotFound
	if !errors.As(err, &target) {
		t.Fatal("expected errors.As to match *ErrSessionNotFound")
	}
	if target.SessionID != "sess_1" {
		t.Errorf("SessionID = %q, want sess_1", target.SessionID)
	}
}

func TestErrMaxSessionsReached_Error(t *testing.T) {
	err := &ErrMaxSessionsReached{Max: 8}
	var target *ErrMaxSessionsReached
	if !errors.As(err, &target) {
		t.Fatal("expected errors.As to match *ErrMaxSessionsReached")
	}
	if target.Max != 8 {
		t.Errorf("Max = %d, want 8", target.Max)
	}
}

func TestErrStreamAlreadyAttached_Error(t *testing.T) {
	err := &ErrStreamAlreadyAttached{SessionID: "sess_2"}
	var target *ErrStreamAlreadyAttached
	if !errors.As(err, &target) {
		t.Fatal("expected errors.As to match *ErrStreamAlreadyAttached")
	}
	if target.SessionID != "sess_2" {
		t.Errorf("SessionID = %q, want sess_2", target.SessionID)
	}
}
