package slowmode

import "time"

// ActivityWindow tracks recent message arrival times for one channel. It is
// not safe for concurrent use; the owning channel state serializes access.
//
// Arrival times come from the gateway and are only approximately ordered, so
// trimming scans the whole slice instead of assuming a sorted prefix.
type ActivityWindow struct {
	hits []time.Time
}

// Observe trims entries outside [now-window, now], records the new arrival
// and returns the resulting count.
func (w *ActivityWindow) Observe(now time.Time, window time.Duration) int {
	cutoff := now.Add(-window)
	kept := w.hits[:0]
	for _, hit := range w.hits {
		if hit.Before(cutoff) || hit.After(now) {
			continue
		}
		kept = append(kept, hit)
	}
	w.hits = append(kept, now)
	return len(w.hits)
}

// Count trims against now and returns the in-window count without recording
// an arrival.
func (w *ActivityWindow) Count(now time.Time, window time.Duration) int {
	cutoff := now.Add(-window)
	kept := w.hits[:0]
	for _, hit := range w.hits {
		if hit.Before(cutoff) || hit.After(now) {
			continue
		}
		kept = append(kept, hit)
	}
	w.hits = kept
	return len(w.hits)
}

func (w *ActivityWindow) Reset() {
	w.hits = nil
}
