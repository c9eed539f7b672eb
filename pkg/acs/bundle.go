// SPDX-FileCopyrightText: 2026 bpcore contributors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package acs

import (
	"fmt"

	"github.com/dtn7/bpcore/pkg/bpv7"
)

// BuildSignalBundle wraps a flushed PendingACS's encoded payload in an
// administrative-record bundle addressed to its custodian, mirroring
// create_aggregate_custody_signal: source/destination/admin-flag set on
// the primary block, report-to left at NewPrimaryBlock's default (the
// source), no status report requests, and the signal bytes as the sole
// payload block.
func BuildSignalBundle(pacs *PendingACS, source bpv7.EndpointID, lifetimeMs uint64) (bpv7.Bundle, error) {
	if pacs.CustodyEID.IsZero() {
		return bpv7.Bundle{}, fmt.Errorf("acs: cannot build signal to the null endpoint")
	}

	primary := bpv7.NewPrimaryBlock(
		bpv7.AdministrativeRecordPayload,
		pacs.CustodyEID,
		source,
		bpv7.NewCreationTimestamp(bpv7.DtnTimeNow(), 0),
		lifetimeMs,
	)

	payload := encodeSignal(pacs)
	canonical := bpv7.NewCanonicalPayloadBlock(0, payload)

	return bpv7.NewBundle(primary, []bpv7.CanonicalBlock{canonical})
}
