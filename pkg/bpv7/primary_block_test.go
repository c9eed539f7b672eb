// SPDX-FileCopyrightText: 2026 bpcore contributors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package bpv7

import (
	"bytes"
	"testing"

	"github.com/dtn7/cboring"
)

func TestPrimaryBlockRoundTrip(t *testing.T) {
	dest := MustNewEndpointID("dtn://dest/")
	src := MustNewEndpointID("dtn://src/")
	ts := NewCreationTimestamp(DtnTimeNow(), 0)

	pb := NewPrimaryBlock(0, dest, src, ts, 3600000)

	buf := new(bytes.Buffer)
	if err := cboring.Marshal(&pb, buf); err != nil {
		t.Fatalf("marshal errored: %v", err)
	}

	var decoded PrimaryBlock
	if err := cboring.Unmarshal(&decoded, buf); err != nil {
		t.Fatalf("unmarshal errored: %v", err)
	}

	if decoded.Destination != pb.Destination || decoded.SourceNode != pb.SourceNode || decoded.Lifetime != pb.Lifetime {
		t.Errorf("round-trip mismatch: got %+v, want %+v", decoded, pb)
	}
	if !bytes.Equal(decoded.CRC, pb.CRC) {
		t.Errorf("CRC mismatch: got %x, want %x", decoded.CRC, pb.CRC)
	}
}

func TestPrimaryBlockFragmentationShape(t *testing.T) {
	dest := MustNewEndpointID("dtn://dest/")
	src := MustNewEndpointID("dtn://src/")
	ts := NewCreationTimestamp(DtnTimeNow(), 0)

	pb := NewPrimaryBlock(IsFragment, dest, src, ts, 1000)
	pb.FragmentOffset = 10
	pb.TotalDataLength = 100
	if err := pb.calculateCRC(); err != nil {
		t.Fatalf("recalculating CRC errored: %v", err)
	}

	if pb.arrayLength() != 11 {
		t.Fatalf("expected array length 11 for fragmented+CRC block, got %d", pb.arrayLength())
	}

	buf := new(bytes.Buffer)
	if err := cboring.Marshal(&pb, buf); err != nil {
		t.Fatalf("marshal errored: %v", err)
	}

	var decoded PrimaryBlock
	if err := cboring.Unmarshal(&decoded, buf); err != nil {
		t.Fatalf("unmarshal errored: %v", err)
	}
	if decoded.FragmentOffset != 10 || decoded.TotalDataLength != 100 {
		t.Errorf("fragmentation fields not preserved: %+v", decoded)
	}
}

func TestPrimaryBlockCheckValidSourceNoneConstraints(t *testing.T) {
	dest := MustNewEndpointID("dtn://dest/")
	ts := NewCreationTimestamp(DtnTimeNow(), 0)

	pb := NewPrimaryBlock(0, dest, DtnNone(), ts, 1000)
	if err := pb.CheckValid(); err == nil {
		t.Fatal("expected error: dtn:none source without MustNotFragmented")
	}

	pb2 := NewPrimaryBlock(MustNotFragmented, dest, DtnNone(), ts, 1000)
	if err := pb2.CheckValid(); err != nil {
		t.Errorf("unexpected error for valid dtn:none source bundle: %v", err)
	}
}
