// SPDX-FileCopyrightText: 2026 bpcore contributors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package cborio

import (
	"io"
	"testing"

	"github.com/dtn7/cboring"
)

func TestTrySuccess(t *testing.T) {
	buf := []byte{0x05, 0xff} // uint 5, then an extra byte
	var got uint64
	consumed, outcome := Try(buf, func(r io.Reader) (err error) {
		got, err = cboring.ReadUInt(r)
		return
	})

	if outcome != Success {
		t.Fatalf("outcome = %v, want Success", outcome)
	}
	if consumed != 1 {
		t.Fatalf("consumed = %d, want 1", consumed)
	}
	if got != 5 {
		t.Fatalf("got = %d, want 5", got)
	}
}

func TestTryUnexpectedEOF(t *testing.T) {
	buf := []byte{0x19, 0x01} // uint16 header, but only one of two length bytes present
	_, outcome := Try(buf, func(r io.Reader) error {
		_, err := cboring.ReadUInt(r)
		return err
	})

	if outcome != UnexpectedEOF {
		t.Fatalf("outcome = %v, want UnexpectedEOF", outcome)
	}
}

func TestTryFail(t *testing.T) {
	buf := []byte{0xff} // a lone break byte is not a valid uint
	_, outcome := Try(buf, func(r io.Reader) error {
		_, err := cboring.ReadUInt(r)
		return err
	})

	if outcome != Fail {
		t.Fatalf("outcome = %v, want Fail", outcome)
	}
}

func TestReadBreak(t *testing.T) {
	if c, o := ReadBreak([]byte{0xff}); o != Success || c != 1 {
		t.Fatalf("ReadBreak = (%d, %v), want (1, Success)", c, o)
	}
	if _, o := ReadBreak(nil); o != UnexpectedEOF {
		t.Fatalf("ReadBreak(nil) outcome = %v, want UnexpectedEOF", o)
	}
	if _, o := ReadBreak([]byte{0x00}); o != Fail {
		t.Fatalf("ReadBreak(0x00) outcome = %v, want Fail", o)
	}
}
