// Package slot holds the pure calendar logic of the booking window: a bounded
// half-open interval carved into fixed one-hour slots.  It has no I/O and no
// dependency on the store; every booking request passes its bounds check
// before any database work is attempted.
package slot

import (
	"fmt"
	"iter"
	"time"
)

// Length is the fixed duration of every bookable slot.
const Length = time.Hour

// Window is the configured bookable interval [Start, End).  End must lie on a
// whole number of slot lengths after Start.
type Window struct {
	Start time.Time
	End   time.Time
}

// NewWindow validates and returns a booking window.  It rejects empty or
// inverted intervals and intervals that do not divide evenly into slots.
func NewWindow(start, end time.Time) (Window, error) {
	if !end.After(start) {
		return Window{}, fmt.Errorf("window end %s not after start %s", end, start)
	}
	if end.Sub(start)%Length != 0 {
		return Window{}, fmt.Errorf("window %s..%s is not a whole number of %s slots", start, end, Length)
	}
	return Window{Start: start, End: end}, nil
}

// Slots returns the lazy, finite, restartable sequence of slot-start instants
// inside the window, in ascending order.  Each yielded instant t denotes the
// slot [t, t+Length).
func (w Window) Slots() iter.Seq[time.Time] {
	return func(yield func(time.Time) bool) {
		for t := w.Start; t.Before(w.End); t = t.Add(Length) {
			if !yield(t) {
				return
			}
		}
	}
}

// Contains reports whether start is the start of a valid slot: it must equal
// one of the instants produced by Slots, i.e. align to a slot boundary and
// have its whole interval [start, start+Length) inside the window.
func (w Window) Contains(start time.Time) bool {
	if start.Before(w.Start) {
		return false
	}
	if start.Sub(w.Start)%Length != 0 {
		return false
	}
	return !start.Add(Length).After(w.End)
}

// SlotEnd returns the exclusive end of the slot starting at start.
func SlotEnd(start time.Time) time.Time { return start.Add(Length) }

// Count returns the number of slots in the window.
func (w Window) Count() int { return int(w.End.Sub(w.Start) / Length) }
