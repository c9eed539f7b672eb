// SPDX-FileCopyrightText: 2026 bpcore contributors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package bpv7

import (
	"bytes"
	"encoding/hex"
	"testing"

	"github.com/dtn7/bpcore/pkg/crc"
)

// goldenMinimalBundleHex is the pinned wire encoding of the minimal bundle:
// source ipn:1.1, destination ipn:2.1, report-to dtn:none, creation
// timestamp (1000, 0), lifetime 86400000 ms, payload "hi" (2 bytes), CRC-32C
// on the primary block, no CRC on the payload block. 42 bytes.
const goldenMinimalBundleHex = "9f8907000282028202018202820101820100821903e8001a05265c00441dc570d48501010000426869ff"

func buildGoldenMinimalBundle(t *testing.T) Bundle {
	t.Helper()

	primary := PrimaryBlock{
		Version:            dtnVersion,
		BundleControlFlags: 0,
		Destination:        EndpointID{Scheme: SchemeIPN, Node: 2, Service: 1},
		SourceNode:         EndpointID{Scheme: SchemeIPN, Node: 1, Service: 1},
		ReportTo:           DtnNone(),
		CreationTimestamp:  NewCreationTimestamp(DtnTime(1000), 0),
		Lifetime:           86400000,
	}
	primary.SetCRCType(crc.CRC32)

	payload := NewCanonicalPayloadBlock(0, []byte("hi"))

	b, err := NewBundle(primary, []CanonicalBlock{payload})
	if err != nil {
		t.Fatalf("NewBundle errored: %v", err)
	}
	return b
}

func TestBundleCodecGoldenMinimalBundle(t *testing.T) {
	want, err := hex.DecodeString(goldenMinimalBundleHex)
	if err != nil {
		t.Fatalf("decoding golden hex failed: %v", err)
	}
	if len(want) != 42 {
		t.Fatalf("golden fixture length = %d, want 42", len(want))
	}

	b := buildGoldenMinimalBundle(t)

	var buf bytes.Buffer
	if err := b.WriteBundle(&buf); err != nil {
		t.Fatalf("WriteBundle errored: %v", err)
	}
	if !bytes.Equal(buf.Bytes(), want) {
		t.Fatalf("encoded bundle mismatch:\n got  %x\n want %x", buf.Bytes(), want)
	}

	decoded, err := ParseBundle(bytes.NewReader(want))
	if err != nil {
		t.Fatalf("ParseBundle errored: %v", err)
	}
	if decoded.PrimaryBlock.SourceNode.String() != "ipn:1.1" {
		t.Errorf("source mismatch: got %v", decoded.PrimaryBlock.SourceNode)
	}
	if decoded.PrimaryBlock.Destination.String() != "ipn:2.1" {
		t.Errorf("destination mismatch: got %v", decoded.PrimaryBlock.Destination)
	}
	payload, err := decoded.PayloadBlock()
	if err != nil {
		t.Fatalf("PayloadBlock errored: %v", err)
	}
	pb, err := ParsePayloadBlock(*payload)
	if err != nil {
		t.Fatalf("ParsePayloadBlock errored: %v", err)
	}
	if string(pb.Data()) != "hi" {
		t.Errorf("payload mismatch: got %q", pb.Data())
	}
}

func TestBundleCodecGoldenDecodeEncodeRoundTrip(t *testing.T) {
	want, err := hex.DecodeString(goldenMinimalBundleHex)
	if err != nil {
		t.Fatalf("decoding golden hex failed: %v", err)
	}

	b := buildGoldenMinimalBundle(t)
	var buf bytes.Buffer
	if err := b.WriteBundle(&buf); err != nil {
		t.Fatalf("WriteBundle errored: %v", err)
	}
	if !bytes.Equal(buf.Bytes(), want) {
		t.Fatalf("encoded bundle mismatch:\n got  %x\n want %x", buf.Bytes(), want)
	}

	decoded, err := ParseBundle(bytes.NewReader(want))
	if err != nil {
		t.Fatalf("ParseBundle errored: %v", err)
	}

	var reassembled bytes.Buffer
	if err := decoded.WriteBundle(&reassembled); err != nil {
		t.Fatalf("re-encoding decoded bundle errored: %v", err)
	}
	if !bytes.Equal(reassembled.Bytes(), want) {
		t.Fatalf("decode(encode(b)) round trip mismatch:\n got  %x\n want %x", reassembled.Bytes(), want)
	}
}
