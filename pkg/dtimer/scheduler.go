// SPDX-FileCopyrightText: 2026 bpcore contributors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package dtimer

import (
	"container/heap"
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// cancelledCompactThreshold is the absolute cancelled-count above which the
// live heap is swapped out for reaping regardless of how it compares to
// the number of still-active timers.
const cancelledCompactThreshold = 1000

// defaultReapInterval matches the roughly-every-60-seconds cadence the
// original reaper thread used.
const defaultReapInterval = 60 * time.Second

// Scheduler is the process-wide timer system: a live heap of pending
// timers, a lazily-populated "old" heap drained by the reaper, and a
// notifier channel that wakes the run loop whenever a new timer is
// scheduled or a signal is posted.
//
// Two locks guard disjoint state exactly as the concurrency model
// describes: systemMu protects both heaps plus the notifier, cancelMu
// protects the cancelled counters and the transient "examining top of
// heap" window. The run loop holds systemMu only while popping; Timeout
// callbacks run with no lock held. A third lock, sigMu, guards the posted
// signal flags and handlers; signal handlers also run with no lock held.
type Scheduler struct {
	systemMu sync.Mutex
	cancelMu sync.Mutex

	timerQ1, timerQ2 timerHeap
	timers, oldTimers *timerHeap

	seqno           uint64
	numCancelled    int
	oldNumCancelled int

	wake      chan struct{}
	shouldStop bool

	sigMu       sync.Mutex
	sigPending  [64]bool
	sigFired    bool
	sigHandlers [64]func(int)

	log *logrus.Entry
}

// NewScheduler creates an idle Scheduler. Run must be called (typically in
// its own goroutine) to actually fire timers.
func NewScheduler(log *logrus.Entry) *Scheduler {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}

	s := &Scheduler{
		wake: make(chan struct{}, 1),
		log:  log.WithField("component", "dtimer"),
	}
	s.timers = &s.timerQ1
	s.oldTimers = &s.timerQ2
	return s
}

func (s *Scheduler) signalWake() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// ScheduleAt schedules t to fire at when under the given cancel policy.
func (s *Scheduler) ScheduleAt(when time.Time, t Timer, policy CancelPolicy) Entry {
	e := &entry{timer: t, when: when, policy: policy, pending: true}

	s.systemMu.Lock()
	if s.shouldStop {
		s.systemMu.Unlock()
		return Entry{e: e}
	}
	e.seqno = s.seqno
	s.seqno++
	heap.Push(s.timers, e)
	s.systemMu.Unlock()

	s.log.WithFields(logrus.Fields{"when": when, "seqno": e.seqno}).Debug("scheduled timer")
	s.signalWake()

	return Entry{e: e}
}

// ScheduleIn schedules t to fire after d elapses.
func (s *Scheduler) ScheduleIn(d time.Duration, t Timer, policy CancelPolicy) Entry {
	return s.ScheduleAt(time.Now().Add(d), t, policy)
}

// ScheduleImmediate schedules t to fire on the scheduler's next pass.
func (s *Scheduler) ScheduleImmediate(t Timer, policy CancelPolicy) Entry {
	return s.ScheduleAt(time.Now(), t, policy)
}

// Cancel marks en's timer cancelled. It returns true iff the timer was
// still pending and had not already been cancelled; in that case the
// caller is guaranteed Timeout will never run for it. The entry itself
// stays in the heap until it bubbles to the top or is swept by the
// reaper - there is no efficient way to remove an arbitrary element from a
// binary heap, so cancellation is a flag, not a removal.
func (s *Scheduler) Cancel(en Entry) bool {
	if en.e == nil {
		return false
	}

	s.cancelMu.Lock()
	defer s.cancelMu.Unlock()

	result := en.e.pending && !en.e.cancelled
	en.e.cancelled = true
	if result {
		s.numCancelled++
	}
	return result
}

// NumPendingTimers reports the number of timers that are scheduled and not
// yet cancelled, across both the live and old heaps.
func (s *Scheduler) NumPendingTimers() int {
	s.systemMu.Lock()
	s.cancelMu.Lock()
	n := s.timers.Len() + s.oldTimers.Len() - s.numCancelled - s.oldNumCancelled
	s.cancelMu.Unlock()
	s.systemMu.Unlock()
	return n
}

// PostSignal records that signal sig fired and wakes the run loop. It is
// cheap enough to call from contexts that can't block, mirroring the
// original signal-safe post_signal.
func (s *Scheduler) PostSignal(sig int) {
	if sig < 0 || sig >= len(s.sigPending) {
		return
	}
	s.sigMu.Lock()
	s.sigFired = true
	s.sigPending[sig] = true
	s.sigMu.Unlock()

	s.signalWake()
}

// AddSignalHandler registers fn to run on the scheduler's goroutine each
// time sig is posted; it stays registered until replaced. Handlers fire at
// most once per posted batch.
func (s *Scheduler) AddSignalHandler(sig int, fn func(int)) {
	if sig < 0 || sig >= len(s.sigHandlers) {
		return
	}
	s.sigMu.Lock()
	s.sigHandlers[sig] = fn
	s.sigMu.Unlock()
}

func (s *Scheduler) handleSignals() {
	s.sigMu.Lock()
	if !s.sigFired {
		s.sigMu.Unlock()
		return
	}
	s.sigFired = false

	var fired []func(int)
	var args []int
	for sig, pending := range s.sigPending {
		if pending {
			s.sigPending[sig] = false
			if h := s.sigHandlers[sig]; h != nil {
				fired = append(fired, h)
				args = append(args, sig)
			}
		}
	}
	s.sigMu.Unlock()

	for i, h := range fired {
		h(args[i])
	}
}

// runExpiredTimers pops and runs every timer whose time has come, and
// returns the duration until the next pending expiration. ok is false when
// the live heap is empty, meaning the caller should wait until explicitly
// woken rather than on a timeout.
func (s *Scheduler) runExpiredTimers() (wait time.Duration, ok bool) {
	s.handleSignals()
	s.systemMu.Lock()

	for {
		if s.shouldStop || s.timers.Len() == 0 {
			s.systemMu.Unlock()
			return 0, false
		}

		s.cancelMu.Lock()
		next := (*s.timers)[0]

		if !next.cancelled {
			now := time.Now()
			if next.when.After(now) {
				s.cancelMu.Unlock()
				s.systemMu.Unlock()
				return next.when.Sub(now), true
			}
		}

		heap.Pop(s.timers)
		next.pending = false
		s.cancelMu.Unlock()

		// Run the popped timer with no lock held so a Timeout callback
		// scheduling another timer does not deadlock.
		s.systemMu.Unlock()
		s.processPopped(next)
		s.systemMu.Lock()
	}
}

func (s *Scheduler) processPopped(e *entry) {
	if !e.cancelled {
		now := time.Now()
		if late := now.Sub(e.when); late > 2*time.Second {
			s.log.WithField("late", late).Warn("timer thread running slow")
		}
		e.timer.Timeout(now)
		return
	}

	s.cancelMu.Lock()
	if s.numCancelled > 0 {
		s.numCancelled--
	}
	s.cancelMu.Unlock()
}

// Run is the scheduler's main loop. It blocks until ctx is cancelled or
// Shutdown is called, firing due timers and sleeping in between. Callers
// typically run this in its own goroutine.
func (s *Scheduler) Run(ctx context.Context) {
	for {
		wait, ok := s.runExpiredTimers()

		s.systemMu.Lock()
		stop := s.shouldStop
		s.systemMu.Unlock()
		if stop {
			return
		}

		if !ok {
			select {
			case <-ctx.Done():
				return
			case <-s.wake:
			}
			continue
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-s.wake:
			timer.Stop()
		case <-timer.C:
		}
	}
}

// checkCancelledTimers implements the reaper pass: if the cancelled count
// in the live heap has grown large relative to the active count (or past
// an absolute ceiling), the live and old heaps are swapped under a short
// critical section, and whatever lands in the old heap is drained here at
// leisure - un-cancelled timers are reinserted into the live heap,
// DeleteOnCancel timers are simply dropped.
func (s *Scheduler) checkCancelledTimers() {
	if s.oldTimers.Len() == 0 {
		s.cancelMu.Lock()
		active := s.timers.Len() - s.numCancelled
		cancelled := s.numCancelled
		s.cancelMu.Unlock()

		if cancelled >= active || cancelled >= cancelledCompactThreshold {
			s.systemMu.Lock()
			s.cancelMu.Lock()

			if s.timers == &s.timerQ1 {
				s.timers, s.oldTimers = &s.timerQ2, &s.timerQ1
			} else {
				s.timers, s.oldTimers = &s.timerQ1, &s.timerQ2
			}
			s.oldNumCancelled = s.numCancelled
			s.numCancelled = 0

			s.cancelMu.Unlock()
			s.systemMu.Unlock()
		}
	}

	for s.oldTimers.Len() > 0 {
		s.systemMu.Lock()
		if s.oldTimers.Len() == 0 {
			s.systemMu.Unlock()
			break
		}
		e := heap.Pop(s.oldTimers).(*entry)
		s.systemMu.Unlock()

		if !e.cancelled {
			s.systemMu.Lock()
			heap.Push(s.timers, e)
			s.systemMu.Unlock()
			s.signalWake()
		} else {
			e.pending = false
			s.log.WithField("seqno", e.seqno).Debug("reaping cancelled timer")
		}
	}

	s.oldNumCancelled = 0
}

// RunReaper periodically drains cancelled entries out of the old heap
// until ctx is cancelled. The default period matches the original
// roughly-every-60-seconds cadence; pass 0 to use it.
func (s *Scheduler) RunReaper(ctx context.Context, period time.Duration) {
	if period <= 0 {
		period = defaultReapInterval
	}

	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.systemMu.Lock()
			stop := s.shouldStop
			s.systemMu.Unlock()
			if stop {
				return
			}
			s.checkCancelledTimers()
		}
	}
}

// Shutdown marks every pending timer cancelled and stops the run loop. It
// does not wait for Run/RunReaper to return; callers should cancel the
// context they were started with for that.
func (s *Scheduler) Shutdown() {
	s.systemMu.Lock()
	s.cancelMu.Lock()

	s.shouldStop = true

	for _, h := range [...]*timerHeap{&s.timerQ1, &s.timerQ2} {
		for _, e := range *h {
			e.cancelled = true
			e.pending = false
		}
		*h = nil
	}
	s.numCancelled = 0
	s.oldNumCancelled = 0

	s.cancelMu.Unlock()
	s.systemMu.Unlock()

	s.signalWake()
}
