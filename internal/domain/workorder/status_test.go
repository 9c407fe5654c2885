package workorder

import (
	"errors"
	"testing"
)

func TestParseStatus(t *testing.T) {
	got, err := ParseStatus(" In_Progress ")
	if err != nil {
		t.Fatalf("ParseStatus() error = %v", err)
	}
	if got != StatusInProgress {
		t.Fatalf("ParseStatus() = %q", got)
	}

	_, err = ParseStatus("on_hold")
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("ParseStatus() error = %v, want ErrValidation", err)
	}
}

func TestTerminalStatusesHaveNoExits(t *testing.T) {
	for _, s := range Statuses() {
		if s.IsTerminal() && len(s.NextStatuses()) != 0 {
			t.Fatalf("terminal status %s has exits %v", s, s.NextStatuses())
		}
	}
	if !StatusClosed.IsTerminal() || !StatusRejected.IsTerminal() || !StatusCancelled.IsTerminal() {
		t.Fatalf("closed/rejected/cancelled must be terminal")
	}
	if StatusVerified.IsTerminal() {
		t.Fatalf("verified must not be terminal")
	}
}

func TestCancelReachability(t *testing.T) {
	cancellable := []Status{
		StatusRequested, StatusApproved, StatusPlanned, StatusScheduled,
		StatusInProgress, StatusPaused, StatusCompleted,
	}
	for _, s := range cancellable {
		if !CanTransition(s, StatusCancelled) {
			t.Fatalf("CanTransition(%s, cancelled) = false", s)
		}
	}
	if CanTransition(StatusVerified, StatusCancelled) {
		t.Fatalf("verified must not be cancellable")
	}
	if CanTransition(StatusClosed, StatusCancelled) {
		t.Fatalf("closed must not be cancellable")
	}
}

func TestCheckTransition(t *testing.T) {
	if err := CheckTransition(StatusRequested, StatusApproved); err != nil {
		t.Fatalf("CheckTransition(requested, approved) error = %v", err)
	}

	err := CheckTransition(StatusApproved, StatusApproved)
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("CheckTransition(approved, approved) error = %v, want ErrInvalidTransition", err)
	}
	var typed *Error
	if !errors.As(err, &typed) || typed.Current != StatusApproved || typed.Target != StatusApproved {
		t.Fatalf("typed error = %#v", typed)
	}

	if err := CheckTransition(StatusPaused, StatusCompleted); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("CheckTransition(paused, completed) error = %v, want ErrInvalidTransition", err)
	}
}

func TestWithContextFillsMissingFields(t *testing.T) {
	wo := &WorkOrder{ID: 7, Number: "MNT-000007", Status: StatusPlanned}
	err := WithContext(Validationf("missing hours"), wo, StatusScheduled, "planner-1")

	var typed *Error
	if !errors.As(err, &typed) {
		t.Fatalf("WithContext() lost typed error: %v", err)
	}
	if typed.Number != "MNT-000007" || typed.Current != StatusPlanned || typed.Target != StatusScheduled || typed.Actor != "planner-1" {
		t.Fatalf("typed = %#v", typed)
	}
	if KindOf(err) != KindValidation {
		t.Fatalf("KindOf() = %q", KindOf(err))
	}
	if msg := err.Error(); msg != "validation_error on MNT-000007 (planned -> scheduled) by planner-1: missing hours" {
		t.Fatalf("Error() = %q", msg)
	}
}
