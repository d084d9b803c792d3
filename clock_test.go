package sluice

import (
	"testing"
	"time"
)

func TestSystemClock(t *testing.T) {
	before := time.Now()
	got := SystemClock().Now()
	after := time.Now()

	if got.Before(before) || got.After(after) {
		t.Errorf("SystemClock().Now() = %v, outside [%v, %v]", got, before, after)
	}
}

func TestManualClock(t *testing.T) {
	start := time.Unix(1700000000, 0)
	clock := NewManualClock(start)

	if !clock.Now().Equal(start) {
		t.Errorf("Now() = %v, want %v", clock.Now(), start)
	}

	clock.Advance(time.Minute)
	if !clock.Now().Equal(start.Add(time.Minute)) {
		t.Errorf("Now() after Advance = %v, want %v", clock.Now(), start.Add(time.Minute))
	}

	// Time does not move on its own.
	if !clock.Now().Equal(start.Add(time.Minute)) {
		t.Error("manual clock advanced without being told to")
	}

	later := start.Add(time.Hour)
	clock.Set(later)
	if !clock.Now().Equal(later) {
		t.Errorf("Now() after Set = %v, want %v", clock.Now(), later)
	}
}
