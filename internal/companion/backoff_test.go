package companion

import (
	"testing"
	"time"
)

func TestReconnector_DelaySchedule(t *testing.T) {
	r := newReconnector(1000*time.Millisecond, 30000*time.Millisecond, 6)

	want := []time.Duration{
		1000 * time.Millisecond,
		2000 * time.Millisecond,
		4000 * time.Millisecond,
		8000 * time.Millisecond,
		16000 * time.Millisecond,
		30000 * time.Millisecond, // capped
		30000 * time.Millisecond,
	}
	for i, expected := range want {
		attempt := i + 1
		if got := r.delayFor(attempt); got != expected {
			t.Errorf("Attempt %d: expected delay %v, got %v", attempt, expected, got)
		}
	}
}

func TestReconnector_RetryCeiling(t *testing.T) {
	r := newReconnector(time.Millisecond, 4*time.Millisecond, 2)

	fired := make(chan struct{}, 4)
	attempt := func() { fired <- struct{}{} }

	for i := 0; i < 2; i++ {
		if !r.Schedule(attempt) {
			t.Fatalf("Schedule %d should arm a timer", i+1)
		}
		select {
		case <-fired:
		case <-time.After(time.Second):
			t.Fatal("Scheduled attempt never fired")
		}
		r.Settle(false)
	}

	if r.Schedule(attempt) {
		t.Error("Schedule beyond the retry ceiling should refuse")
	}
	if r.Phase() != reconnectExhausted {
		t.Errorf("Expected exhausted phase, got %s", r.Phase())
	}
}

func TestReconnector_SuccessResetsCounter(t *testing.T) {
	r := newReconnector(time.Millisecond, 4*time.Millisecond, 3)

	fired := make(chan struct{}, 1)
	if !r.Schedule(func() { fired <- struct{}{} }) {
		t.Fatal("Schedule should arm a timer")
	}
	<-fired

	r.Settle(true)

	if got := r.Attempts(); got != 0 {
		t.Errorf("Expected attempt counter reset on success, got %d", got)
	}
	if r.Phase() != reconnectConnected {
		t.Errorf("Expected connected phase, got %s", r.Phase())
	}
}

func TestReconnector_CancelStopsPending(t *testing.T) {
	r := newReconnector(30*time.Millisecond, 100*time.Millisecond, 3)

	fired := make(chan struct{}, 1)
	if !r.Schedule(func() { fired <- struct{}{} }) {
		t.Fatal("Schedule should arm a timer")
	}

	r.Cancel()

	select {
	case <-fired:
		t.Error("Cancelled attempt still fired")
	case <-time.After(80 * time.Millisecond):
	}

	if r.Phase() != reconnectIdle || r.Attempts() != 0 {
		t.Errorf("Expected idle machine after cancel, got %s with %d attempts", r.Phase(), r.Attempts())
	}
}

func TestReconnector_NoDoubleSchedule(t *testing.T) {
	r := newReconnector(50*time.Millisecond, 100*time.Millisecond, 5)

	if !r.Schedule(func() {}) {
		t.Fatal("First schedule should succeed")
	}
	if r.Schedule(func() {}) {
		t.Error("Second schedule while one is pending should refuse")
	}
}
