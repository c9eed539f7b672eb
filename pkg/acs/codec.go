// SPDX-FileCopyrightText: 2026 bpcore contributors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package acs

import (
	"fmt"
	"math"
)

// Signal is a decoded aggregate custody signal: whether the referenced
// custody IDs were accepted or refused, the reason code, and the fill
// ranges acknowledged.
type Signal struct {
	Succeeded bool
	Reason    ReasonCode
	Entries   []Entry
}

// encodeSignal lays out a pending signal's administrative record payload:
//
//	1 byte  admin type (high nibble) and flags (low nibble, unused here)
//	1 byte  succeeded flag (high bit) and reason code (low 7 bits)
//	SDNV    diff from previous right edge, SDNV length of fill - per entry
func encodeSignal(pacs *PendingACS) []byte {
	out := make([]byte, 0, 2+pacs.entries.payloadLen())
	out = append(out, adminTypeAggregateCustodySignal<<4)

	var statusByte byte
	if pacs.Succeeded {
		statusByte |= 0x80
	}
	statusByte |= byte(pacs.Reason) & 0x7f
	out = append(out, statusByte)

	for _, e := range pacs.entries.entries {
		out = append(out, encodeSDNV(e.DiffToPrevRightEdge)...)
		out = append(out, encodeSDNV(e.LengthOfFill)...)
	}
	return out
}

// DecodeSignal parses an aggregate custody signal's administrative record
// payload. lastCustodyID bounds the sanity check the original performs to
// reject a signal that claims to acknowledge custody IDs never issued;
// pass 0 to skip that check (for example, when decoding in isolation from
// test data).
func DecodeSignal(data []byte, lastCustodyID uint64) (*Signal, error) {
	if len(data) < 1 {
		return nil, fmt.Errorf("acs: signal too short")
	}
	adminType := data[0] >> 4
	if adminType != adminTypeAggregateCustodySignal {
		return nil, fmt.Errorf("acs: not an aggregate custody signal (admin type %d)", adminType)
	}
	if len(data) < 2 {
		return nil, fmt.Errorf("acs: signal missing status byte")
	}

	succeeded := data[1]>>7 != 0
	reason := ReasonCode(data[1] & 0x7f)

	buf := data[2:]
	var entries []Entry
	var rightEdge uint64

	for len(buf) > 0 {
		diff, n, err := decodeSDNV(buf)
		if err != nil {
			return nil, fmt.Errorf("acs: decoding diff: %w", err)
		}
		buf = buf[n:]

		fillLen, n, err := decodeSDNV(buf)
		if err != nil {
			return nil, fmt.Errorf("acs: decoding fill length: %w", err)
		}
		buf = buf[n:]

		leftEdge := rightEdge + diff
		if leftEdge == 0 {
			return nil, fmt.Errorf("acs: signal acknowledges custody ID zero, which is never issued")
		}
		if fillLen == 0 {
			return nil, fmt.Errorf("acs: signal has a zero-length fill")
		}
		if fillLen > math.MaxUint64-leftEdge+1 {
			return nil, fmt.Errorf("acs: signal's fill length overflows 64 bits")
		}
		if lastCustodyID > 0 && (leftEdge > lastCustodyID || fillLen > lastCustodyID-leftEdge+1) {
			return nil, fmt.Errorf("acs: signal acknowledges custody IDs beyond those issued")
		}

		entries = append(entries, Entry{LeftEdge: leftEdge, DiffToPrevRightEdge: diff, LengthOfFill: fillLen})
		rightEdge = leftEdge + (fillLen - 1)
	}

	if len(entries) == 0 {
		return nil, fmt.Errorf("acs: signal has no custody ID entries")
	}

	return &Signal{Succeeded: succeeded, Reason: reason, Entries: entries}, nil
}
