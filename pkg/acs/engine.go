// SPDX-FileCopyrightText: 2026 bpcore contributors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package acs

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/dtn7/bpcore/pkg/bpv7"
	"github.com/dtn7/bpcore/pkg/dtimer"
)

// ReadyFunc receives a copy of a pending signal once it has been flushed
// (by size threshold or by its accumulation timer expiring); the engine's
// own bucket for that key has already been reset for the next window.
type ReadyFunc func(*PendingACS)

// Engine accumulates acknowledged custody IDs into PendingACS buckets
// keyed by (custodian, succeeded, reason), flushing each bucket once its
// encoded payload (header bytes included) reaches maxSize bytes or once
// delay elapses since its first entry, whichever comes first - the same two triggers
// the original's acs_size_/acs_delay_ parameters describe.
type Engine struct {
	mu      sync.Mutex
	pending map[string]*pendingSlot

	scheduler *dtimer.Scheduler
	delay     time.Duration
	maxSize   int

	nextPacsID uint32

	onReady   ReadyFunc
	persister Persister
	log       *logrus.Entry
}

type pendingSlot struct {
	pacs  *PendingACS
	timer dtimer.Entry
}

// NewEngine creates an Engine driven by scheduler. delay is the maximum
// time a pending signal accumulates before being flushed; maxSize is the
// payload byte threshold that forces an earlier flush. onReady is called,
// without the engine's lock held, whenever a signal is ready to send.
// persister may be nil, in which case pending signals do not survive a
// restart.
func NewEngine(scheduler *dtimer.Scheduler, delay time.Duration, maxSize int, onReady ReadyFunc, persister Persister, log *logrus.Entry) *Engine {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	e := &Engine{
		pending:   make(map[string]*pendingSlot),
		scheduler: scheduler,
		delay:     delay,
		maxSize:   maxSize,
		onReady:   onReady,
		persister: persister,
		log:       log.WithField("component", "acs"),
	}
	e.restore()
	return e
}

// restore reloads every checkpointed pending signal and reschedules its
// expiration timer from now - the time already elapsed before the crash is
// not recoverable, so a restored signal gets a fresh full delay window
// rather than risking it never firing at all.
func (e *Engine) restore() {
	if e.persister == nil {
		return
	}

	snapshots, err := e.persister.LoadAllACS()
	if err != nil {
		e.log.WithError(err).Warn("failed to load checkpointed aggregate custody signals")
		return
	}

	for _, snap := range snapshots {
		pacs, err := restoreFromSnapshot(snap)
		if err != nil {
			e.log.WithError(err).WithField("key", snap.Key).Warn("discarding unreadable checkpointed signal")
			continue
		}
		if pacs.PacsID >= e.nextPacsID {
			e.nextPacsID = pacs.PacsID + 1
		}

		slot := &pendingSlot{pacs: pacs}
		if !pacs.Empty() && e.delay > 0 {
			slot.timer = e.scheduler.ScheduleIn(e.delay, &expirationTimer{engine: e, key: snap.Key, pacsID: pacs.PacsID}, dtimer.DeleteOnCancel)
		}
		e.pending[snap.Key] = slot
	}
}

// checkpoint persists (or, once empty, deletes) key's current state.
func (e *Engine) checkpoint(key string, pacs *PendingACS) {
	if e.persister == nil {
		return
	}

	if pacs.Empty() {
		if err := e.persister.DeleteACS(key); err != nil {
			e.log.WithError(err).WithField("key", key).Warn("failed to delete checkpointed signal")
		}
		return
	}

	if err := e.persister.SaveACS(pacs.Snapshot()); err != nil {
		e.log.WithError(err).WithField("key", key).Warn("failed to checkpoint signal")
	}
}

// AcknowledgeCustody records that custodyID was acknowledged for bundles
// bound to custodian with the given outcome and reason, coalescing it
// into that key's pending signal. A duplicate acknowledgement of an
// already-recorded custody ID is a no-op.
func (e *Engine) AcknowledgeCustody(custodian bpv7.EndpointID, succeeded bool, reason ReasonCode, custodyID uint64) {
	key := Key(custodian, succeeded, reason)

	e.mu.Lock()
	slot, ok := e.pending[key]
	if !ok {
		slot = &pendingSlot{pacs: newPendingACS(custodian, succeeded, reason)}
		slot.pacs.PacsID = e.nextPacsID
		e.nextPacsID++
		e.pending[key] = slot
	}
	e.mu.Unlock()

	added := slot.pacs.AddCustodyID(custodyID)
	if !added {
		return
	}

	e.mu.Lock()
	firstEntry := !slot.timer.Valid()
	if firstEntry && e.delay > 0 {
		slot.timer = e.scheduler.ScheduleIn(e.delay, &expirationTimer{engine: e, key: key, pacsID: slot.pacs.PacsID}, dtimer.DeleteOnCancel)
	}
	e.mu.Unlock()

	e.checkpoint(key, slot.pacs)

	// The threshold applies to the whole encoded payload: the two fixed
	// header bytes plus the SDNV entries PayloadLength counts.
	if e.maxSize > 0 && 2+slot.pacs.PayloadLength() >= e.maxSize {
		e.flush(key)
	}
}

// flush cancels key's expiration timer, resets its pending signal in place
// under a fresh pacs ID, and hands a copy of the accumulated entries to
// onReady. It is a
// no-op if key is unknown or its signal is currently empty.
func (e *Engine) flush(key string) {
	e.mu.Lock()
	slot, ok := e.pending[key]
	if !ok {
		e.mu.Unlock()
		return
	}
	if slot.pacs.Empty() {
		e.mu.Unlock()
		return
	}

	e.scheduler.Cancel(slot.timer)
	slot.timer = dtimer.Entry{}

	ready := slot.pacs.snapshotForEncode()
	slot.pacs.reset(e.nextPacsID)
	e.nextPacsID++
	e.mu.Unlock()

	e.checkpoint(key, slot.pacs)

	e.log.WithFields(logrus.Fields{
		"custodian": ready.CustodyEID.String(),
		"succeeded": ready.Succeeded,
		"reason":    ready.Reason,
		"count":     ready.NumCustodyIDs(),
	}).Debug("flushing aggregate custody signal")

	if e.onReady != nil {
		e.onReady(ready)
	}
}

// expirationTimer flushes one pending signal when its accumulation window
// elapses, verifying pacsID still matches the signal currently in that
// bucket so a flush already triggered by the size threshold (which
// assigns a fresh pacs ID on reset) cannot be double-sent by a stale timer
// racing against it.
type expirationTimer struct {
	engine *Engine
	key    string
	pacsID uint32
}

func (t *expirationTimer) Timeout(_ time.Time) {
	t.engine.mu.Lock()
	slot, ok := t.engine.pending[t.key]
	stale := !ok || slot.pacs.PacsID != t.pacsID
	t.engine.mu.Unlock()

	if stale {
		return
	}
	t.engine.flush(t.key)
}

// Flush forces every currently non-empty pending signal out immediately,
// for use at shutdown.
func (e *Engine) Flush() {
	e.mu.Lock()
	keys := make([]string, 0, len(e.pending))
	for k := range e.pending {
		keys = append(keys, k)
	}
	e.mu.Unlock()

	for _, k := range keys {
		e.flush(k)
	}
}
