package clock

import (
	"testing"
	"time"
)

func TestFake_AdvanceRunsDueTimersInOrder(t *testing.T) {
	f := NewFake(time.Unix(0, 0))

	var got []string
	f.AfterFunc(20*time.Millisecond, func() { got = append(got, "b") })
	f.AfterFunc(10*time.Millisecond, func() { got = append(got, "a") })
	f.AfterFunc(30*time.Millisecond, func() { got = append(got, "c") })

	f.Advance(25 * time.Millisecond)
	if len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Fatalf("fired: got %v, want [a b]", got)
	}
	if f.Pending() != 1 {
		t.Fatalf("Pending: got %d, want 1", f.Pending())
	}
	if want := time.Unix(0, 0).Add(25 * time.Millisecond); !f.Now().Equal(want) {
		t.Fatalf("Now: got %v, want %v", f.Now(), want)
	}
}

func TestFake_ZeroDelayWaitsForAdvance(t *testing.T) {
	f := NewFake(time.Unix(0, 0))

	fired := false
	f.AfterFunc(0, func() { fired = true })
	if fired {
		t.Fatal("zero-delay timer fired before Advance")
	}
	f.Advance(0)
	if !fired {
		t.Fatal("zero-delay timer did not fire on Advance(0)")
	}
}

func TestFake_NestedTimersWithinWindow(t *testing.T) {
	f := NewFake(time.Unix(0, 0))

	var at time.Time
	f.AfterFunc(0, func() {
		f.AfterFunc(15*time.Millisecond, func() { at = f.Now() })
	})
	f.Advance(20 * time.Millisecond)

	if want := time.Unix(0, 0).Add(15 * time.Millisecond); !at.Equal(want) {
		t.Fatalf("nested timer ran at %v, want %v", at, want)
	}
}

func TestFake_Stop(t *testing.T) {
	f := NewFake(time.Unix(0, 0))

	fired := false
	timer := f.AfterFunc(time.Millisecond, func() { fired = true })
	if !timer.Stop() {
		t.Fatal("Stop: got false, want true")
	}
	if timer.Stop() {
		t.Fatal("second Stop: got true, want false")
	}
	f.Advance(time.Second)
	if fired {
		t.Fatal("stopped timer fired")
	}
}

func TestReal_AfterFunc(t *testing.T) {
	done := make(chan struct{})
	Real().AfterFunc(time.Millisecond, func() { close(done) })
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("real timer did not fire")
	}
}
