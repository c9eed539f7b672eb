// SPDX-FileCopyrightText: 2026 bpcore contributors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package bpv7

import (
	"bytes"
	"testing"
)

func buildTestBundle(t *testing.T) Bundle {
	t.Helper()

	dest := MustNewEndpointID("dtn://dest/")
	src := MustNewEndpointID("dtn://src/")
	ts := NewCreationTimestamp(DtnTimeNow(), 0)

	primary := NewPrimaryBlock(0, dest, src, ts, 3600000)
	payload := NewCanonicalPayloadBlock(0, []byte("hello world"))
	hopCount, err := NewCanonicalHopCountBlock(2, 0, 32)
	if err != nil {
		t.Fatalf("building hop count block errored: %v", err)
	}

	b, err := NewBundle(primary, []CanonicalBlock{payload, hopCount})
	if err != nil {
		t.Fatalf("NewBundle errored: %v", err)
	}
	return b
}

func TestBundleRoundTrip(t *testing.T) {
	b := buildTestBundle(t)

	buf := new(bytes.Buffer)
	if err := b.WriteBundle(buf); err != nil {
		t.Fatalf("WriteBundle errored: %v", err)
	}

	decoded, err := ParseBundle(buf)
	if err != nil {
		t.Fatalf("ParseBundle errored: %v", err)
	}

	payload, err := decoded.PayloadBlock()
	if err != nil {
		t.Fatalf("PayloadBlock errored: %v", err)
	}
	pb, err := ParsePayloadBlock(*payload)
	if err != nil {
		t.Fatalf("ParsePayloadBlock errored: %v", err)
	}
	if string(pb.Data()) != "hello world" {
		t.Errorf("payload mismatch: got %q", pb.Data())
	}
}

func TestBundlePayloadBlockMustBeLast(t *testing.T) {
	b := buildTestBundle(t)

	// sortBlocks (run by NewBundle/AddExtensionBlock) must always keep the
	// payload block, block number 1, in the final position regardless of
	// insertion order.
	if last := b.CanonicalBlocks[len(b.CanonicalBlocks)-1]; last.TypeCode != ExtBlockTypePayloadBlock {
		t.Fatalf("expected payload block last, got type %d", last.TypeCode)
	}
}

func TestBundleAddExtensionBlockAssignsFreeNumber(t *testing.T) {
	b := buildTestBundle(t)

	pnb, err := NewCanonicalPreviousNodeBlock(0, 0, MustNewEndpointID("dtn://relay/"))
	if err != nil {
		t.Fatalf("building previous node block errored: %v", err)
	}
	if err := b.AddExtensionBlock(pnb); err != nil {
		t.Fatalf("AddExtensionBlock errored: %v", err)
	}

	seen := make(map[uint64]bool)
	for _, cb := range b.CanonicalBlocks {
		if seen[cb.BlockNumber] {
			t.Fatalf("duplicate block number %d after AddExtensionBlock", cb.BlockNumber)
		}
		seen[cb.BlockNumber] = true
	}
}

func TestBundleCheckValidRejectsDuplicateBlockNumbers(t *testing.T) {
	b := buildTestBundle(t)
	dup := b.CanonicalBlocks[1]
	dup.BlockNumber = b.CanonicalBlocks[0].BlockNumber
	b.CanonicalBlocks = append(b.CanonicalBlocks, dup)

	if err := b.CheckValid(); err == nil {
		t.Fatal("expected error for duplicate block numbers")
	}
}

func TestBundleIsLifetimeExceeded(t *testing.T) {
	dest := MustNewEndpointID("dtn://dest/")
	src := MustNewEndpointID("dtn://src/")
	past := NewCreationTimestamp(DtnTime(1), 0)

	primary := NewPrimaryBlock(0, dest, src, past, 1)
	payload := NewCanonicalPayloadBlock(0, []byte("x"))
	b := MustNewBundle(primary, []CanonicalBlock{payload})

	if !b.IsLifetimeExceeded() {
		t.Fatal("expected lifetime to be exceeded for an ancient creation timestamp")
	}
}
