// SPDX-FileCopyrightText: 2026 bpcore contributors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package bpv7

import (
	"bytes"
	"testing"

	"github.com/dtn7/cboring"

	"github.com/dtn7/bpcore/pkg/crc"
)

func TestCanonicalBlockRoundTripNoCRC(t *testing.T) {
	cb := NewCanonicalBlock(ExtBlockTypePayloadBlock, 1, 0, []byte("hello"))

	buf := new(bytes.Buffer)
	if err := cboring.Marshal(&cb, buf); err != nil {
		t.Fatalf("marshal errored: %v", err)
	}

	var decoded CanonicalBlock
	if err := cboring.Unmarshal(&decoded, buf); err != nil {
		t.Fatalf("unmarshal errored: %v", err)
	}

	if decoded.TypeCode != cb.TypeCode || decoded.BlockNumber != cb.BlockNumber || !bytes.Equal(decoded.Data, cb.Data) {
		t.Errorf("round-trip mismatch: got %+v, want %+v", decoded, cb)
	}
}

func TestCanonicalBlockRoundTripWithCRC(t *testing.T) {
	cb := NewCanonicalBlock(ExtBlockTypeHopCountBlock, 2, ReplicateBlock, []byte{0x82, 0x18, 0x20, 0x00})
	cb.SetCRCType(crc.CRC16)

	buf := new(bytes.Buffer)
	if err := cboring.Marshal(&cb, buf); err != nil {
		t.Fatalf("marshal errored: %v", err)
	}

	var decoded CanonicalBlock
	if err := cboring.Unmarshal(&decoded, buf); err != nil {
		t.Fatalf("unmarshal with valid CRC errored: %v", err)
	}
	if !bytes.Equal(decoded.CRC, cb.CRC) {
		t.Errorf("CRC mismatch: got %x, want %x", decoded.CRC, cb.CRC)
	}
}

func TestCanonicalBlockInvalidCRCRejected(t *testing.T) {
	cb := NewCanonicalBlock(ExtBlockTypePayloadBlock, 1, 0, []byte("hello"))
	cb.SetCRCType(crc.CRC32)

	buf := new(bytes.Buffer)
	if err := cboring.Marshal(&cb, buf); err != nil {
		t.Fatalf("marshal errored: %v", err)
	}

	corrupted := buf.Bytes()
	corrupted[len(corrupted)-1] ^= 0xff

	var decoded CanonicalBlock
	if err := cboring.Unmarshal(&decoded, bytes.NewReader(corrupted)); err == nil {
		t.Fatal("expected CRC mismatch error, got nil")
	}
}

func TestCanonicalBlockCheckValidRejectsPayloadNumber(t *testing.T) {
	cb := NewCanonicalBlock(ExtBlockTypePayloadBlock, 2, 0, []byte("hello"))
	if err := cb.CheckValid(); err == nil {
		t.Fatal("expected error for payload block with number != 1")
	}
}

func TestCanonicalBlockCheckValidRejectsBlockNumberZero(t *testing.T) {
	cb := NewCanonicalBlock(ExtBlockTypeHopCountBlock, 0, 0, nil)
	if err := cb.CheckValid(); err == nil {
		t.Fatal("expected error for block number 0")
	}
}
