// SPDX-FileCopyrightText: 2026 bpcore contributors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package acs

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/dtn7/bpcore/pkg/dtimer"
)

func newRunningEngine(t *testing.T, delay time.Duration, maxSize int, onReady ReadyFunc) (*Engine, context.CancelFunc) {
	t.Helper()

	sched := dtimer.NewScheduler(nil)
	ctx, cancel := context.WithCancel(context.Background())
	go sched.Run(ctx)

	return NewEngine(sched, delay, maxSize, onReady, nil, nil), cancel
}

func TestEngineFlushesOnSizeThreshold(t *testing.T) {
	var mu sync.Mutex
	var flushed []*PendingACS

	e, cancel := newRunningEngine(t, time.Hour, 4, func(p *PendingACS) {
		mu.Lock()
		flushed = append(flushed, p)
		mu.Unlock()
	})
	defer cancel()

	custodian := mustEndpoint(t, "dtn://custodian/")
	for id := uint64(1); id <= 10; id++ {
		e.AcknowledgeCustody(custodian, true, NoAdditionalInfo, id)
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		mu.Lock()
		n := len(flushed)
		mu.Unlock()
		if n > 0 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("timed out waiting for size-triggered flush")
		}
		time.Sleep(time.Millisecond)
	}
}

func TestEngineFlushesOnTimerExpiration(t *testing.T) {
	var mu sync.Mutex
	var flushed *PendingACS

	e, cancel := newRunningEngine(t, 20*time.Millisecond, 0, func(p *PendingACS) {
		mu.Lock()
		flushed = p
		mu.Unlock()
	})
	defer cancel()

	custodian := mustEndpoint(t, "dtn://custodian/")
	e.AcknowledgeCustody(custodian, true, NoAdditionalInfo, 1)
	e.AcknowledgeCustody(custodian, true, NoAdditionalInfo, 2)

	deadline := time.Now().Add(2 * time.Second)
	for {
		mu.Lock()
		got := flushed
		mu.Unlock()
		if got != nil {
			if got.NumCustodyIDs() != 2 {
				t.Fatalf("flushed signal has %d custody ids, want 2", got.NumCustodyIDs())
			}
			return
		}
		if time.Now().After(deadline) {
			t.Fatal("timed out waiting for timer-triggered flush")
		}
		time.Sleep(time.Millisecond)
	}
}

func TestEngineSeparatesKeysByReasonAndOutcome(t *testing.T) {
	e, cancel := newRunningEngine(t, time.Hour, 0, nil)
	defer cancel()

	custodian := mustEndpoint(t, "dtn://custodian/")
	e.AcknowledgeCustody(custodian, true, NoAdditionalInfo, 1)
	e.AcknowledgeCustody(custodian, false, DepletedStorage, 1)

	e.mu.Lock()
	n := len(e.pending)
	e.mu.Unlock()

	if n != 2 {
		t.Fatalf("expected two distinct pending buckets, got %d", n)
	}
}

func TestEngineDuplicateAcknowledgementDoesNotRestartTimer(t *testing.T) {
	e, cancel := newRunningEngine(t, time.Hour, 0, nil)
	defer cancel()

	custodian := mustEndpoint(t, "dtn://custodian/")
	e.AcknowledgeCustody(custodian, true, NoAdditionalInfo, 1)

	key := Key(custodian, true, NoAdditionalInfo)
	e.mu.Lock()
	firstTimer := e.pending[key].timer
	e.mu.Unlock()

	e.AcknowledgeCustody(custodian, true, NoAdditionalInfo, 1) // duplicate

	e.mu.Lock()
	secondTimer := e.pending[key].timer
	e.mu.Unlock()

	if firstTimer != secondTimer {
		t.Fatal("duplicate acknowledgement should not reschedule the expiration timer")
	}
}
