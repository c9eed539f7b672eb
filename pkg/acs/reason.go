// SPDX-FileCopyrightText: 2026 bpcore contributors
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Package acs implements the aggregate custody signal engine: accumulating
// acknowledged custody IDs per (custodian, outcome, reason) key, coalescing
// them into run-length-encoded fill ranges, and emitting one administrative
// record bundle per accumulation window instead of one signal per bundle.
package acs

import "fmt"

// ReasonCode mirrors the custody signal reason codes carried in the low 7
// bits of an aggregate custody signal's second payload byte.
type ReasonCode uint8

const (
	NoAdditionalInfo           ReasonCode = 0x00
	RedundantReception         ReasonCode = 0x03
	DepletedStorage            ReasonCode = 0x04
	EndpointIDUnintelligible   ReasonCode = 0x05
	NoRouteToDest              ReasonCode = 0x06
	NoTimelyContact            ReasonCode = 0x07
	BlockUnintelligible        ReasonCode = 0x08
)

func (r ReasonCode) String() string {
	switch r {
	case NoAdditionalInfo:
		return "no additional info"
	case RedundantReception:
		return "redundant reception"
	case DepletedStorage:
		return "depleted storage"
	case EndpointIDUnintelligible:
		return "eid unintelligible"
	case NoRouteToDest:
		return "no route to dest"
	case NoTimelyContact:
		return "no timely contact"
	case BlockUnintelligible:
		return "block unintelligible"
	default:
		return fmt.Sprintf("unknown reason %d", uint8(r))
	}
}

// adminTypeAggregateCustodySignal is the administrative record type code
// carried in the high nibble of an aggregate custody signal's first byte.
const adminTypeAggregateCustodySignal = 0x4
