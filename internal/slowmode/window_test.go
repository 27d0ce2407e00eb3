package slowmode

import (
	"testing"
	"time"
)

func TestActivityWindowObserve(t *testing.T) {
	var w ActivityWindow
	now := time.Unix(1000, 0)
	if count := w.Observe(now, 10*time.Second); count != 1 {
		t.Fatalf("expected 1, got %d", count)
	}
	if count := w.Observe(now.Add(2*time.Second), 10*time.Second); count != 2 {
		t.Fatalf("expected 2, got %d", count)
	}
	if count := w.Observe(now.Add(15*time.Second), 10*time.Second); count != 2 {
		t.Fatalf("expected first entry trimmed, got %d", count)
	}
}

func TestActivityWindowCount(t *testing.T) {
	var w ActivityWindow
	now := time.Unix(1000, 0)
	w.Observe(now, 5*time.Second)
	w.Observe(now.Add(time.Second), 5*time.Second)
	if count := w.Count(now.Add(2*time.Second), 5*time.Second); count != 2 {
		t.Fatalf("expected 2, got %d", count)
	}
	if count := w.Count(now.Add(10*time.Second), 5*time.Second); count != 0 {
		t.Fatalf("expected 0, got %d", count)
	}
}

func TestActivityWindowOutOfOrder(t *testing.T) {
	var w ActivityWindow
	now := time.Unix(1000, 0)
	w.Observe(now.Add(2*time.Second), 10*time.Second)
	// An older arrival delivered late trims the newer entry, since the
	// window is anchored on the arrival being observed.
	if count := w.Observe(now, 10*time.Second); count != 1 {
		t.Fatalf("expected later entry outside [now-window, now] dropped, got %d", count)
	}
	w.Reset()
	w.Observe(now, 10*time.Second)
	if count := w.Observe(now.Add(time.Second), 10*time.Second); count != 2 {
		t.Fatalf("expected 2 after reset and re-observe, got %d", count)
	}
}
