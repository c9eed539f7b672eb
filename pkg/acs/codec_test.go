// SPDX-FileCopyrightText: 2026 bpcore contributors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package acs

import (
	"testing"

	"github.com/dtn7/bpcore/pkg/bpv7"
)

func mustEndpoint(t *testing.T, uri string) bpv7.EndpointID {
	t.Helper()
	eid, err := bpv7.NewEndpointID(uri)
	if err != nil {
		t.Fatalf("NewEndpointID(%s): %v", uri, err)
	}
	return eid
}

func TestEncodeDecodeSignalRoundTrip(t *testing.T) {
	custodian := mustEndpoint(t, "dtn://custodian/")
	pacs := newPendingACS(custodian, true, RedundantReception)

	for _, id := range []uint64{1, 2, 3, 10, 11, 50} {
		pacs.AddCustodyID(id)
	}

	encoded := encodeSignal(pacs)

	sig, err := DecodeSignal(encoded, 0)
	if err != nil {
		t.Fatalf("DecodeSignal: %v", err)
	}
	if !sig.Succeeded {
		t.Error("expected succeeded=true")
	}
	if sig.Reason != RedundantReception {
		t.Errorf("reason = %v, want RedundantReception", sig.Reason)
	}

	var got []uint64
	for _, e := range sig.Entries {
		for id := e.LeftEdge; id <= e.RightEdge(); id++ {
			got = append(got, id)
		}
	}
	want := []uint64{1, 2, 3, 10, 11, 50}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestDecodeSignalRejectsWrongAdminType(t *testing.T) {
	data := []byte{0x01 << 4, 0x80}
	if _, err := DecodeSignal(data, 0); err == nil {
		t.Fatal("expected error for non-ACS admin type")
	}
}

func TestDecodeSignalRejectsZeroCustodyID(t *testing.T) {
	// admin type + status byte, then a single entry with diff=0 (left edge 0).
	data := append([]byte{adminTypeAggregateCustodySignal << 4, 0x80}, encodeSDNV(0)...)
	data = append(data, encodeSDNV(1)...)

	if _, err := DecodeSignal(data, 0); err == nil {
		t.Fatal("expected error for custody ID zero")
	}
}

func TestDecodeSignalRejectsBeyondLastIssued(t *testing.T) {
	custodian := mustEndpoint(t, "dtn://custodian/")
	pacs := newPendingACS(custodian, true, NoAdditionalInfo)
	pacs.AddCustodyID(100)

	encoded := encodeSignal(pacs)

	if _, err := DecodeSignal(encoded, 50); err == nil {
		t.Fatal("expected error acknowledging custody IDs beyond those issued")
	}
	if _, err := DecodeSignal(encoded, 200); err != nil {
		t.Fatalf("DecodeSignal with sufficient lastCustodyID: %v", err)
	}
}

func TestDecodeSignalTooShort(t *testing.T) {
	if _, err := DecodeSignal(nil, 0); err == nil {
		t.Fatal("expected error for empty signal")
	}
	if _, err := DecodeSignal([]byte{adminTypeAggregateCustodySignal << 4}, 0); err == nil {
		t.Fatal("expected error for missing status byte")
	}
}
