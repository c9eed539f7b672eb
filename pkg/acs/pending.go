// SPDX-FileCopyrightText: 2026 bpcore contributors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package acs

import (
	"fmt"
	"sync"

	"github.com/dtn7/bpcore/pkg/bpv7"
)

// PendingACS accumulates custody IDs bound for one aggregate custody
// signal: one per distinct (custodian, succeeded, reason) combination.
// It is kept and reused across signals, emptied rather than discarded
// once a signal is generated, exactly as the original's creation routine
// zeroes out a PendingAcs for its next accumulation window instead of
// allocating a fresh one.
type PendingACS struct {
	mu sync.Mutex

	key        string
	CustodyEID bpv7.EndpointID
	Succeeded  bool
	Reason     ReasonCode

	PacsID uint32

	entries entrySet
}

// Key uniquely identifies a pending signal's accumulation bucket.
func Key(custodian bpv7.EndpointID, succeeded bool, reason ReasonCode) string {
	return fmt.Sprintf("%s|%t|%d", custodian.String(), succeeded, reason)
}

func newPendingACS(custodian bpv7.EndpointID, succeeded bool, reason ReasonCode) *PendingACS {
	return &PendingACS{
		key:        Key(custodian, succeeded, reason),
		CustodyEID: custodian,
		Succeeded:  succeeded,
		Reason:     reason,
	}
}

// AddCustodyID folds id into the accumulated fill ranges. Returns false
// if id was already covered by a previous acknowledgement.
func (p *PendingACS) AddCustodyID(id uint64) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.entries.add(id)
}

// NumCustodyIDs reports how many distinct custody IDs are currently
// accumulated.
func (p *PendingACS) NumCustodyIDs() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.entries.numCustodyIDs()
}

// PayloadLength reports the current SDNV-encoded payload size, excluding
// the two fixed header bytes; used to decide when a pending signal has
// grown large enough to flush early.
func (p *PendingACS) PayloadLength() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.entries.payloadLen()
}

// Empty reports whether no custody IDs are currently accumulated.
func (p *PendingACS) Empty() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.entries.len() == 0
}

// reset empties the accumulated entries for reuse and assigns a fresh
// pacs ID, so a subsequently scheduled expiration timer can tell whether
// it still refers to the signal it was scheduled for.
func (p *PendingACS) reset(nextPacsID uint32) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.entries.clear()
	p.PacsID = nextPacsID
}

// snapshotForEncode copies out the state needed to build a wire signal
// without holding the lock across encoding.
func (p *PendingACS) snapshotForEncode() *PendingACS {
	p.mu.Lock()
	defer p.mu.Unlock()
	cp := &PendingACS{
		key:        p.key,
		CustodyEID: p.CustodyEID,
		Succeeded:  p.Succeeded,
		Reason:     p.Reason,
		PacsID:     p.PacsID,
	}
	cp.entries.entries = append([]*Entry(nil), p.entries.entries...)
	return cp
}
