package stun

import (
	"testing"
	"time"
)

func TestRTOTable_InitialValue(t *testing.T) {
	table := NewRTOTable(200 * time.Millisecond)
	path := Path{Source: "192.168.0.1", Target: "192.168.0.2"}

	if got := table.RTO(path); got != 200*time.Millisecond {
		t.Errorf("got %s, want 200ms", got)
	}
}

func TestRTOTable_NewRTT_FirstSampleAndSmoothing(t *testing.T) {
	table := NewRTOTable(time.Second)
	path := Path{Source: "a", Target: "b"}
	now := time.Unix(0, 0)

	r := 100 * time.Millisecond
	table.NewRTT(now, path, r)
	if got := table.RTO(path); got != r+4*(r/2) {
		t.Errorf("got %s, want %s", got, r+4*(r/2))
	}

	rPrime := 140 * time.Millisecond
	table.NewRTT(now, path, rPrime)

	wantRTTVAR := (3*(r/2) + absDuration(r-rPrime)) / 4
	wantSRTT := (7*r + rPrime) / 8
	if got := table.RTO(path); got != wantSRTT+4*wantRTTVAR {
		t.Errorf("got %s, want %s", got, wantSRTT+4*wantRTTVAR)
	}
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}

func TestRTOTable_Backoff_OverridesSmoothing(t *testing.T) {
	table := NewRTOTable(time.Second)
	path := Path{Source: "a", Target: "b"}
	now := time.Unix(0, 0)

	table.NewRTT(now, path, 50*time.Millisecond)
	table.Backoff(now, path, 800*time.Millisecond)

	if got := table.RTO(path); got != 800*time.Millisecond {
		t.Errorf("got %s, want 800ms (Karn backoff should win over smoothing)", got)
	}

	// A fresh, non-retransmitted sample clears the backoff again.
	table.NewRTT(now, path, 60*time.Millisecond)
	if got := table.RTO(path); got == 800*time.Millisecond {
		t.Errorf("NewRTT should clear the Karn backoff, got %s", got)
	}
}

func TestRTOTable_SetInitialRTO(t *testing.T) {
	table := NewRTOTable(time.Second)
	seen := Path{Source: "a", Target: "b"}
	unseen := Path{Source: "a", Target: "c"}
	now := time.Unix(0, 0)

	table.NewRTT(now, seen, 50*time.Millisecond)
	table.SetInitialRTO(2 * time.Second)

	if got := table.RTO(unseen); got != 2*time.Second {
		t.Errorf("unseen path got %s, want the new initial 2s", got)
	}
	if got := table.RTO(seen); got == 2*time.Second {
		t.Error("SetInitialRTO should not disturb a path with a real sample")
	}
}

func TestRTOTable_IndependentPaths(t *testing.T) {
	table := NewRTOTable(time.Second)
	a := Path{Source: "x", Target: "1"}
	b := Path{Source: "x", Target: "2"}
	now := time.Unix(0, 0)

	table.Backoff(now, a, 2*time.Second)
	if got := table.RTO(b); got != time.Second {
		t.Errorf("path b got %s, want untouched initial 1s", got)
	}
}
