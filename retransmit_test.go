package stun

import (
	"testing"
	"time"
)

// TestRetransmitState_Schedule reproduces the reference implementation's
// retransmit timing (stun_client_udp.cpp's RetransmitAlgo) for Rc=3,
// initial_rto=100ms, Rm=16: wakeups double after the first, then the
// final attempt waits initial_rto*Rm instead of doubling again.
func TestRetransmitState_Schedule(t *testing.T) {
	settings := RetransmitSettings{RequestCount: 3, RetransmissionMultiplier: 16}
	r := newRetransmitState(settings, 100*time.Millisecond)
	start := time.Unix(0, 0)

	w1 := r.Init(start)
	if got := w1.Sub(start); got != 100*time.Millisecond {
		t.Fatalf("first wakeup at +%s, want +100ms", got)
	}

	w2, ok := r.Next(w1)
	if !ok {
		t.Fatal("expected a second wakeup")
	}
	if got := w2.Sub(start); got != 300*time.Millisecond {
		t.Fatalf("second wakeup at +%s, want +300ms", got)
	}

	w3, ok := r.Next(w2)
	if !ok {
		t.Fatal("expected a third (final-wait) wakeup")
	}
	// initial_rto*Rm = 1600ms added to the second wakeup (t=300ms)
	// lands the final wait at t=1900ms.
	if got := w3.Sub(start); got != 1900*time.Millisecond {
		t.Fatalf("third wakeup at +%s, want +1900ms", got)
	}

	if _, ok := r.Next(w3); ok {
		t.Fatal("budget should be exhausted after 3 requests")
	}
}

// TestRetransmitState_RequestCountProperty is the "for all N >= 1,
// Rc=N produces exactly N SendData emissions followed by
// TransactionFailed{Timeout}" property, checked directly against
// retransmitState: Init plus (N-1) successful Next calls, then
// exhaustion.
func TestRetransmitState_RequestCountProperty(t *testing.T) {
	for n := uint(1); n <= 8; n++ {
		settings := RetransmitSettings{RequestCount: n, RetransmissionMultiplier: 16}
		r := newRetransmitState(settings, 10*time.Millisecond)
		now := r.Init(time.Unix(0, 0))

		sends := uint(1) // Init's wakeup corresponds to the first retransmit.
		for {
			next, ok := r.Next(now)
			if !ok {
				break
			}
			sends++
			now = next
		}
		if sends != n {
			t.Errorf("RequestCount=%d: got %d scheduled retransmits, want %d", n, sends, n)
		}
	}
}

func TestRetransmitState_MaxRTOFloor(t *testing.T) {
	settings := RetransmitSettings{RequestCount: 5, RetransmissionMultiplier: 16, MaxRTO: 500 * time.Millisecond}
	r := newRetransmitState(settings, 100*time.Millisecond)
	now := r.Init(time.Unix(0, 0))

	next, ok := r.Next(now)
	if !ok {
		t.Fatal("expected a wakeup")
	}
	if got := next.Sub(now); got != 500*time.Millisecond {
		t.Fatalf("got +%s, want the configured 500ms floor (doubling alone gives 200ms)", got)
	}
}

func TestRetransmitState_Process5xxExtendsBudget(t *testing.T) {
	settings := RetransmitSettings{
		RequestCount:              1,
		RetransmissionMultiplier:  16,
		ServerErrorTimeout:        50 * time.Millisecond,
		ServerErrorMaxRetransmits: 2,
	}
	r := newRetransmitState(settings, 100*time.Millisecond)
	now := r.Init(time.Unix(0, 0))

	for i := 0; i < 2; i++ {
		wakeup, result := r.Process5xx(now)
		if result != retransmitScheduled {
			t.Fatalf("iteration %d: expected RetransmitScheduled", i)
		}
		if got := wakeup.Sub(now); got != 50*time.Millisecond {
			t.Errorf("iteration %d: got +%s, want +50ms", i, got)
		}
		now = wakeup
	}

	if _, result := r.Process5xx(now); result != retransmitFailed {
		t.Fatal("expected TransactionFailed after ServerErrorMaxRetransmits 5xx retries")
	}
}

func TestRetransmitState_Process5xxWithoutTimeoutFailsImmediately(t *testing.T) {
	settings := RetransmitSettings{RequestCount: 3, RetransmissionMultiplier: 16}
	r := newRetransmitState(settings, 100*time.Millisecond)
	now := r.Init(time.Unix(0, 0))

	if _, result := r.Process5xx(now); result != retransmitFailed {
		t.Fatal("ServerErrorTimeout unset should fail immediately")
	}
}
