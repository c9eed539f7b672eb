// SPDX-FileCopyrightText: 2026 bpcore contributors
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Package dtimer implements a shared timer scheduler for delayed callbacks,
// so a subsystem schedules a Timer here instead of spawning its own
// goroutine-and-sleep. In this module its user is the aggregate custody
// signal engine (pkg/acs), whose expiration timers run here.
//
// A Scheduler keeps live timers in a binary min-heap ordered by (when,
// seqno) and never removes a cancelled timer from the heap directly;
// cancellation only flips a flag, and the timer is discarded the next time
// it bubbles to the top or is swept by the reaper. This mirrors the
// original timer system's heap-plus-lazy-cancellation design, which avoids
// an O(n) heap search on every cancel at the cost of letting cancelled
// entries linger until they're popped or reaped.
package dtimer

import "time"

// CancelPolicy governs what happens to a Timer's resources once it is
// cancelled while pending.
type CancelPolicy int

const (
	// Retain leaves the Timer's lifetime to its owner; the scheduler does
	// nothing further with it once cancelled.
	Retain CancelPolicy = iota

	// DeleteOnCancel tells the scheduler it owns the Timer once
	// cancelled and may drop all references to it immediately.
	DeleteOnCancel
)

// Timer is anything that can be scheduled. Timeout is invoked by the
// scheduler's run loop with no lock held; it must not block for long or it
// will delay every other pending timer.
type Timer interface {
	Timeout(now time.Time)
}

// entry is the heap-resident wrapper around a user Timer. All field access
// happens only while the owning Scheduler's systemMu or cancelMu is held.
type entry struct {
	timer Timer
	when  time.Time
	seqno uint64

	pending   bool
	cancelled bool
	policy    CancelPolicy

	index int // heap index, maintained by container/heap
}

// Entry is an opaque handle to a scheduled Timer, returned by the
// Scheduler's schedule methods and passed back to Cancel.
type Entry struct {
	e *entry
}

// Valid reports whether this Entry refers to a scheduled Timer. The zero
// Entry is invalid, useful for a caller that wants to distinguish "never
// scheduled" from "scheduled, possibly already fired or cancelled".
func (en Entry) Valid() bool {
	return en.e != nil
}
