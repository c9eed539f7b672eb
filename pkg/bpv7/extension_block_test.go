// SPDX-FileCopyrightText: 2026 bpcore contributors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package bpv7

import "testing"

func TestBundleAgeBlockRoundTrip(t *testing.T) {
	cb, err := NewCanonicalBundleAgeBlock(2, 0, 4200)
	if err != nil {
		t.Fatalf("building block errored: %v", err)
	}

	bab, err := ParseBundleAgeBlock(cb)
	if err != nil {
		t.Fatalf("parsing block errored: %v", err)
	}
	if bab.Age() != 4200 {
		t.Errorf("Age() = %d, want 4200", bab.Age())
	}

	if bab.Increment(100) != 4300 {
		t.Errorf("Increment did not return the updated age")
	}
}

func TestHopCountBlockExceeded(t *testing.T) {
	hcb := NewHopCountBlock(2)
	if hcb.IsExceeded() {
		t.Fatal("fresh hop count block must not be exceeded")
	}

	hcb.Increment()
	hcb.Increment()
	if hcb.IsExceeded() {
		t.Fatal("count == limit must not be exceeded")
	}

	hcb.Increment()
	if !hcb.IsExceeded() {
		t.Fatal("count > limit must be exceeded")
	}
}

func TestHopCountBlockProcessorRejectsExceeded(t *testing.T) {
	hcb := &HopCountBlock{Limit: 1, Count: 2}
	data, err := encodeBlockValue(hcb)
	if err != nil {
		t.Fatalf("encoding errored: %v", err)
	}

	if err := (hopCountBlockProcessor{}).ValidateData(data); err == nil {
		t.Fatal("expected validation error for exceeded hop count")
	}
}

func TestPreviousNodeBlockRoundTrip(t *testing.T) {
	relay := MustNewEndpointID("dtn://relay/")
	cb, err := NewCanonicalPreviousNodeBlock(3, 0, relay)
	if err != nil {
		t.Fatalf("building block errored: %v", err)
	}

	pnb, err := ParsePreviousNodeBlock(cb)
	if err != nil {
		t.Fatalf("parsing block errored: %v", err)
	}
	if pnb.Endpoint() != relay {
		t.Errorf("Endpoint() = %v, want %v", pnb.Endpoint(), relay)
	}
}

func TestPayloadBlockHoldsRawBytes(t *testing.T) {
	cb := NewCanonicalPayloadBlock(0, []byte("payload data"))
	if cb.BlockNumber != 1 {
		t.Fatalf("payload block must have block number 1, got %d", cb.BlockNumber)
	}

	pb, err := ParsePayloadBlock(cb)
	if err != nil {
		t.Fatalf("parsing block errored: %v", err)
	}
	if string(pb.Data()) != "payload data" {
		t.Errorf("Data() = %q, want %q", pb.Data(), "payload data")
	}
}

func TestImcBlockRegularRoundTrip(t *testing.T) {
	nodeA := MustNewEndpointID("ipn:1.0")
	nodeB := MustNewEndpointID("ipn:2.0")

	ib := NewRegularImcBlock([]uint64{1, 2}, []EndpointID{nodeA})
	cb, err := NewCanonicalImcDestinationsBlock(2, 0, ib)
	if err != nil {
		t.Fatalf("building block errored: %v", err)
	}

	decoded, err := ParseImcBlock(cb)
	if err != nil {
		t.Fatalf("parsing block errored: %v", err)
	}
	if len(decoded.ProcessedRegions) != 2 || len(decoded.ProcessedByNodes) != 1 {
		t.Fatalf("unexpected decoded shape: %+v", decoded)
	}

	decoded.Merge(&ImcBlock{ProcessedRegions: []uint64{2, 3}, ProcessedByNodes: []EndpointID{nodeA, nodeB}})
	if len(decoded.ProcessedRegions) != 3 {
		t.Errorf("expected 3 deduplicated regions after merge, got %d", len(decoded.ProcessedRegions))
	}
	if len(decoded.ProcessedByNodes) != 2 {
		t.Errorf("expected 2 deduplicated nodes after merge, got %d", len(decoded.ProcessedByNodes))
	}
}

func TestImcBlockGroupPetitionRoundTrip(t *testing.T) {
	proxy := MustNewEndpointID("ipn:9.0")
	ib := NewGroupPetitionImcBlock(nil, nil, true, true, []EndpointID{proxy})

	cb, err := NewCanonicalImcStateBlock(2, 0, ib)
	if err != nil {
		t.Fatalf("building block errored: %v", err)
	}

	decoded, err := ParseImcBlock(cb)
	if err != nil {
		t.Fatalf("parsing block errored: %v", err)
	}
	if !decoded.SyncRequest || !decoded.IsProxy {
		t.Errorf("flags not preserved: %+v", decoded)
	}
	if len(decoded.ProxyProcessedByNodes) != 1 || decoded.ProxyProcessedByNodes[0] != proxy {
		t.Errorf("proxy node set not preserved: %+v", decoded.ProxyProcessedByNodes)
	}
}

func TestImcBlockBriefingRoundTrip(t *testing.T) {
	ib := NewBriefingImcBlock(true, false, true)
	cb, err := NewCanonicalImcStateBlock(2, 0, ib)
	if err != nil {
		t.Fatalf("building block errored: %v", err)
	}

	decoded, err := ParseImcBlock(cb)
	if err != nil {
		t.Fatalf("parsing block errored: %v", err)
	}
	if !decoded.SyncRequest || decoded.SyncReply || !decoded.IsRouter {
		t.Errorf("flags not preserved: %+v", decoded)
	}
}
