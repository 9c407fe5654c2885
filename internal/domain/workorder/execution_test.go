package workorder

import (
	"errors"
	"testing"
	"time"
)

func fullChecklist() Checklist {
	return Checklist{WorkPerformed: true, SafetyVerified: true, AreaCleaned: true, ToolsReturned: true}
}

func TestExecutionPauseResumeScenario(t *testing.T) {
	t0 := time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC)
	e := NewExecution(1, "tech-1", t0)

	if err := e.Start(t0); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := e.Pause(t0.Add(30 * time.Minute)); err != nil {
		t.Fatalf("Pause() error = %v", err)
	}
	if err := e.Resume(t0.Add(45 * time.Minute)); err != nil {
		t.Fatalf("Resume() error = %v", err)
	}
	if err := e.Complete(t0.Add(90*time.Minute), fullChecklist()); err != nil {
		t.Fatalf("Complete() error = %v", err)
	}

	if e.TotalPause != 15*time.Minute {
		t.Fatalf("TotalPause = %v, want 15m", e.TotalPause)
	}
	if e.ActualDuration != 75*time.Minute {
		t.Fatalf("ActualDuration = %v, want 75m", e.ActualDuration)
	}
	if e.DurationAnomaly {
		t.Fatalf("DurationAnomaly = true")
	}
	if !e.IsImmutable() {
		t.Fatalf("completed execution must be immutable")
	}
}

func TestExecutionStartIsIdempotent(t *testing.T) {
	t0 := time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC)
	e := NewExecution(1, "tech-1", t0)
	if err := e.Start(t0); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := e.Start(t0.Add(time.Hour)); err != nil {
		t.Fatalf("second Start() error = %v", err)
	}
	if !e.StartedAt.Equal(t0) {
		t.Fatalf("StartedAt = %v, want %v", e.StartedAt, t0)
	}

	if err := e.Pause(t0.Add(time.Minute)); err != nil {
		t.Fatalf("Pause() error = %v", err)
	}
	if err := e.Start(t0.Add(2 * time.Minute)); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("Start() from paused error = %v, want ErrInvalidTransition", err)
	}
}

func TestExecutionCompleteFromPausedRejected(t *testing.T) {
	t0 := time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC)
	e := NewExecution(1, "tech-1", t0)
	_ = e.Start(t0)
	_ = e.Pause(t0.Add(10 * time.Minute))

	if err := e.Complete(t0.Add(20*time.Minute), fullChecklist()); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("Complete() from paused error = %v, want ErrInvalidTransition", err)
	}
	if e.Status != ExecutionPaused {
		t.Fatalf("status = %s, want paused", e.Status)
	}
}

func TestExecutionCompleteRequiresChecklist(t *testing.T) {
	t0 := time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC)
	e := NewExecution(1, "tech-1", t0)
	_ = e.Start(t0)

	err := e.Complete(t0.Add(time.Hour), Checklist{WorkPerformed: true})
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("Complete() error = %v, want ErrValidation", err)
	}
	if e.CompletedAt != nil {
		t.Fatalf("CompletedAt set on failed completion")
	}
}

func TestExecutionResumeBeforePauseIsInvariantViolation(t *testing.T) {
	t0 := time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC)
	e := NewExecution(1, "tech-1", t0)
	_ = e.Start(t0)
	_ = e.Pause(t0.Add(30 * time.Minute))

	if err := e.Resume(t0.Add(10 * time.Minute)); !errors.Is(err, ErrInvariantViolation) {
		t.Fatalf("Resume() error = %v, want ErrInvariantViolation", err)
	}
	if e.TotalPause != 0 {
		t.Fatalf("TotalPause = %v, want 0", e.TotalPause)
	}
}

func TestPauseDurationMonotonicAcrossCycles(t *testing.T) {
	t0 := time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC)
	e := NewExecution(1, "tech-1", t0)
	_ = e.Start(t0)

	now := t0
	prev := time.Duration(0)
	gaps := []time.Duration{0, time.Minute, 7 * time.Minute, 0, 45 * time.Second}
	for i, gap := range gaps {
		now = now.Add(5 * time.Minute)
		if err := e.Pause(now); err != nil {
			t.Fatalf("cycle %d Pause() error = %v", i, err)
		}
		now = now.Add(gap)
		if err := e.Resume(now); err != nil {
			t.Fatalf("cycle %d Resume() error = %v", i, err)
		}
		if e.TotalPause < prev {
			t.Fatalf("cycle %d TotalPause decreased: %v < %v", i, e.TotalPause, prev)
		}
		prev = e.TotalPause
	}

	now = now.Add(time.Minute)
	if err := e.Complete(now, fullChecklist()); err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if e.ActualDuration < 0 || e.ActualDuration != now.Sub(t0)-e.TotalPause {
		t.Fatalf("ActualDuration = %v", e.ActualDuration)
	}
	if e.PauseCount != len(gaps) {
		t.Fatalf("PauseCount = %d", e.PauseCount)
	}
}

func TestActiveDurationFloorsNegative(t *testing.T) {
	t0 := time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC)
	d, anomaly := ActiveDuration(t0, t0.Add(10*time.Minute), 20*time.Minute)
	if d != 0 || !anomaly {
		t.Fatalf("ActiveDuration() = %v, %v; want 0, true", d, anomaly)
	}
}
