package fakeclock

import (
	"testing"
	"time"
)

func TestClock_Now(t *testing.T) {
	initial := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c := New(initial)

	if got := c.Now(); !got.Equal(initial) {
		t.Errorf("Now() = %v, want %v", got, initial)
	}
}

func TestClock_Advance(t *testing.T) {
	initial := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c := New(initial)

	c.Advance(5 * time.Minute)

	expected := initial.Add(5 * time.Minute)
	if got := c.Now(); !got.Equal(expected) {
		t.Errorf("Now() after Advance = %v, want %v", got, expected)
	}
	if got := c.Since(initial); got != 5*time.Minute {
		t.Errorf("Since() = %v, want %v", got, 5*time.Minute)
	}
}

func TestClock_Sleep(t *testing.T) {
	initial := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c := New(initial)

	// Sleep should return immediately and move fake time forward
	start := time.Now()
	c.Sleep(1 * time.Hour)
	if time.Since(start) > 100*time.Millisecond {
		t.Error("Sleep() blocked instead of returning immediately")
	}
	if got := c.Since(initial); got != time.Hour {
		t.Errorf("Since() after Sleep = %v, want %v", got, time.Hour)
	}

	c.Sleep(100 * time.Millisecond)
	slept := c.Slept()
	if len(slept) != 2 || slept[1] != 100*time.Millisecond {
		t.Errorf("Slept() = %v, want [1h 100ms]", slept)
	}
}

func TestClock_Set(t *testing.T) {
	c := New(time.Time{})
	target := time.Date(2030, 6, 1, 12, 0, 0, 0, time.UTC)
	c.Set(target)
	if !c.Now().Equal(target) {
		t.Errorf("Now() after Set = %v, want %v", c.Now(), target)
	}
}
