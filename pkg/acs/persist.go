// SPDX-FileCopyrightText: 2026 bpcore contributors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package acs

import (
	"fmt"

	"github.com/dtn7/bpcore/pkg/bpv7"
)

// SnapshotEntry is the persisted form of one fill range.
type SnapshotEntry struct {
	LeftEdge            uint64
	DiffToPrevRightEdge uint64
	LengthOfFill        uint64
}

// Snapshot is the persisted form of a PendingACS, durable enough to survive
// a restart without losing accumulated custody acknowledgements still
// waiting to be folded into a signal.
type Snapshot struct {
	Key          string
	CustodianURI string
	Succeeded    bool
	Reason       ReasonCode
	PacsID       uint32
	Entries      []SnapshotEntry
}

// Persister is the storage contract an Engine uses to checkpoint pending
// signals across restarts. It is satisfied structurally (no import of the
// storage package is needed here) by pkg/bundlestore's Store.
type Persister interface {
	SaveACS(Snapshot) error
	DeleteACS(key string) error
	LoadAllACS() ([]Snapshot, error)
}

// Snapshot captures p's current state for persistence.
func (p *PendingACS) Snapshot() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()

	entries := make([]SnapshotEntry, len(p.entries.entries))
	for i, e := range p.entries.entries {
		entries[i] = SnapshotEntry{
			LeftEdge:            e.LeftEdge,
			DiffToPrevRightEdge: e.DiffToPrevRightEdge,
			LengthOfFill:        e.LengthOfFill,
		}
	}

	return Snapshot{
		Key:          p.key,
		CustodianURI: p.CustodyEID.String(),
		Succeeded:    p.Succeeded,
		Reason:       p.Reason,
		PacsID:       p.PacsID,
		Entries:      entries,
	}
}

// restoreFromSnapshot rebuilds a PendingACS from a persisted Snapshot,
// restoring its fill ranges directly rather than replaying AddCustodyID
// for each covered ID.
func restoreFromSnapshot(s Snapshot) (*PendingACS, error) {
	eid, err := bpv7.NewEndpointID(s.CustodianURI)
	if err != nil {
		return nil, fmt.Errorf("acs: restoring snapshot %q: %w", s.Key, err)
	}

	p := newPendingACS(eid, s.Succeeded, s.Reason)
	p.PacsID = s.PacsID
	p.entries.entries = make([]*Entry, len(s.Entries))
	for i, e := range s.Entries {
		p.entries.entries[i] = &Entry{
			LeftEdge:            e.LeftEdge,
			DiffToPrevRightEdge: e.DiffToPrevRightEdge,
			LengthOfFill:        e.LengthOfFill,
		}
	}
	return p, nil
}
