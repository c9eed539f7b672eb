// SPDX-FileCopyrightText: 2026 bpcore contributors
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Package cborio provides bounded, chunk-tolerant CBOR decoding on top of
// github.com/dtn7/cboring's definite-encoding primitives.
//
// cboring's ReadUInt/ReadByteString/ReadArrayLength already accept any
// io.Reader, but they treat running out of bytes mid-value the same as any
// other read error. Block processors need to tell the two apart: a short
// read because the convergence layer has not yet delivered the rest of the
// value is not a protocol violation, it's a signal to buffer more bytes and
// retry from the start of the value. Try supplies that distinction.
package cborio

import (
	"bytes"
	"errors"
	"io"
)

// Outcome classifies the result of attempting to decode one CBOR primitive
// or block from a bounded byte buffer.
type Outcome int

const (
	// Success means the value decoded completely; the cursor advanced.
	Success Outcome = iota

	// Fail means the bytes are not valid CBOR for the expected shape, or
	// violate a protocol constraint (e.g. an indefinite-length string). This
	// is non-recoverable; the caller must abort the bundle.
	Fail

	// UnexpectedEOF means the buffer ended before the value could be fully
	// read. The caller must buffer more bytes and retry decoding from the
	// start of the value.
	UnexpectedEOF
)

func (o Outcome) String() string {
	switch o {
	case Success:
		return "success"
	case Fail:
		return "fail"
	case UnexpectedEOF:
		return "unexpected-eof"
	default:
		return "unknown"
	}
}

// Try runs decode against buf through a bytes.Reader and classifies the
// result. On Success it returns the number of bytes decode consumed from
// buf. On Fail or UnexpectedEOF, consumed is always 0 — the caller is
// expected to retry with more bytes from the same starting offset, never to
// partially commit a failed or incomplete decode.
func Try(buf []byte, decode func(io.Reader) error) (consumed int, outcome Outcome) {
	r := bytes.NewReader(buf)

	err := decode(r)
	if err == nil {
		return len(buf) - r.Len(), Success
	}

	if isEOF(err) {
		return 0, UnexpectedEOF
	}

	return 0, Fail
}

// isEOF reports whether err signals that the reader ran out of bytes before
// a value was fully decoded, as opposed to encountering malformed data.
func isEOF(err error) bool {
	return errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF)
}

// ReadIndefiniteArrayHeader consumes the single byte 0x9f that opens BPv7's
// outer indefinite-length bundle array.
func ReadIndefiniteArrayHeader(buf []byte) (consumed int, outcome Outcome) {
	if len(buf) == 0 {
		return 0, UnexpectedEOF
	}
	if buf[0] != 0x9f {
		return 0, Fail
	}
	return 1, Success
}

// BreakByte is the CBOR "break" stop code (major type 7, value 31) that
// terminates an indefinite-length array.
const BreakByte byte = 0xff

// ReadBreak consumes the single trailing break byte of the outer bundle
// array.
func ReadBreak(buf []byte) (consumed int, outcome Outcome) {
	if len(buf) == 0 {
		return 0, UnexpectedEOF
	}
	if buf[0] != BreakByte {
		return 0, Fail
	}
	return 1, Success
}
