// SPDX-FileCopyrightText: 2026 bpcore contributors
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Package assembler implements the bundle reception state machine: bytes
// arriving from a convergence layer, in whatever chunk sizes the
// convergence layer happens to deliver them, are fed to Consume and turned
// into a validated bpv7.Bundle once the trailing break byte is seen.
//
// State machine:
//
//	START           -> expect 0x9f                  -> PRIMARY_PENDING
//	PRIMARY_PENDING -> decode primary block          -> BLOCK_PENDING
//	BLOCK_PENDING   -> decode one canonical block    -> BLOCK_PENDING,
//	                   or AWAIT_TRAILER if the block was the payload
//	AWAIT_TRAILER   -> expect 0xff                   -> DONE
//
// A canonical block's CBOR shape carries no information about which
// processor owns it until CheckValid runs, so unlike a byte-by-byte
// protocol parser this assembler does not need to peek the block type to
// dispatch decoding - bpv7.CanonicalBlock.UnmarshalCbor is already
// type-agnostic. Peeking only matters for the validate/generate/finalize
// side of a processor's pipeline, which runs once per completed bundle via
// bpv7.Bundle.CheckValid's registry lookup, not per incoming byte.
package assembler

import (
	"fmt"
	"io"

	"github.com/sirupsen/logrus"

	"github.com/dtn7/bpcore/pkg/bpv7"
	"github.com/dtn7/bpcore/pkg/cborio"
)

// State names a position in the reception state machine.
type State int

const (
	StateStart State = iota
	StatePrimaryPending
	StateBlockPending
	StateAwaitTrailer
	StateDone
)

func (s State) String() string {
	switch s {
	case StateStart:
		return "start"
	case StatePrimaryPending:
		return "primary-pending"
	case StateBlockPending:
		return "block-pending"
	case StateAwaitTrailer:
		return "await-trailer"
	case StateDone:
		return "done"
	default:
		return "unknown"
	}
}

// Assembler holds the partial-reception state of a single bundle. It is
// not safe for concurrent use - per the concurrency model, a bundle's
// in-progress block list is not shared across threads during assembly.
type Assembler struct {
	state State

	primary    bpv7.PrimaryBlock
	canonicals []bpv7.CanonicalBlock

	// buf holds whatever bytes have been accumulated for the primitive
	// currently in progress (the primary block, or the canonical block
	// presently being decoded) across Consume calls that ended in
	// UnexpectedEOF. It is cleared every time that primitive completes.
	buf []byte

	log *logrus.Entry
}

// New creates an Assembler ready to receive bytes starting with the outer
// indefinite-array header.
func New(log *logrus.Entry) *Assembler {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Assembler{log: log.WithField("component", "assembler")}
}

// State reports the assembler's current position in the state machine.
func (a *Assembler) State() State { return a.state }

// Done reports whether a complete bundle is available via Bundle.
func (a *Assembler) Done() bool { return a.state == StateDone }

// tryStep attempts decode against whatever bytes are buffered plus chunk.
// On Success, consumed is the number of bytes of chunk (not of the
// combined buffer) the value needed, and the internal buffer is cleared.
// On UnexpectedEOF, all of chunk is absorbed into the internal buffer and
// consumed reports that full length so the caller can charge the entire
// chunk as used. On Fail, the internal buffer is left untouched; the
// caller aborts the bundle.
func (a *Assembler) tryStep(chunk []byte, decode func(io.Reader) error) (consumed int, outcome cborio.Outcome) {
	prevLen := len(a.buf)

	combined := a.buf
	if len(chunk) > 0 {
		combined = make([]byte, 0, prevLen+len(chunk))
		combined = append(combined, a.buf...)
		combined = append(combined, chunk...)
	}

	n, outcome := cborio.Try(combined, decode)
	switch outcome {
	case cborio.Success:
		a.buf = nil
		return n - prevLen, outcome
	case cborio.UnexpectedEOF:
		a.buf = combined
		return len(chunk), outcome
	default:
		return 0, outcome
	}
}

// Consume feeds chunk to the state machine, advancing as far as possible.
// It returns the number of bytes of chunk that were consumed (either
// committed to a decoded value or buffered awaiting more data) and any
// protocol error encountered. A protocol error aborts the bundle; the
// Assembler must not be reused afterwards.
func (a *Assembler) Consume(chunk []byte) (consumed int, err error) {
	remaining := chunk

	for a.state != StateDone && len(remaining) > 0 {
		switch a.state {
		case StateStart:
			n, outcome := cborio.ReadIndefiniteArrayHeader(remaining)
			switch outcome {
			case cborio.Success:
				remaining = remaining[n:]
				consumed += n
				a.state = StatePrimaryPending
			case cborio.Fail:
				return consumed, fmt.Errorf("assembler: expected indefinite-array header, got 0x%02x", remaining[0])
			case cborio.UnexpectedEOF:
				return consumed, nil
			}

		case StatePrimaryPending:
			n, outcome := a.tryStep(remaining, a.primary.UnmarshalCbor)
			switch outcome {
			case cborio.Success:
				remaining = remaining[n:]
				consumed += n
				a.state = StateBlockPending
				a.log.Debug("primary block complete")
			case cborio.UnexpectedEOF:
				consumed += n
				return consumed, nil
			case cborio.Fail:
				return consumed, fmt.Errorf("assembler: malformed primary block")
			}

		case StateBlockPending:
			var cb bpv7.CanonicalBlock
			n, outcome := a.tryStep(remaining, cb.UnmarshalCbor)
			switch outcome {
			case cborio.Success:
				remaining = remaining[n:]
				consumed += n
				a.canonicals = append(a.canonicals, cb)
				a.log.WithFields(logrus.Fields{
					"type":   cb.TypeCode,
					"number": cb.BlockNumber,
				}).Debug("canonical block complete")

				if cb.TypeCode == bpv7.ExtBlockTypePayloadBlock {
					a.state = StateAwaitTrailer
				}
			case cborio.UnexpectedEOF:
				consumed += n
				return consumed, nil
			case cborio.Fail:
				return consumed, fmt.Errorf("assembler: malformed canonical block")
			}

		case StateAwaitTrailer:
			n, outcome := cborio.ReadBreak(remaining)
			switch outcome {
			case cborio.Success:
				remaining = remaining[n:]
				consumed += n
				a.state = StateDone
			case cborio.Fail:
				return consumed, fmt.Errorf("assembler: expected trailing break byte, got 0x%02x", remaining[0])
			case cborio.UnexpectedEOF:
				return consumed, nil
			}
		}
	}

	return consumed, nil
}

// Bundle returns the assembled and validated bundle. It is an error to
// call this before Done reports true.
func (a *Assembler) Bundle() (bpv7.Bundle, error) {
	if a.state != StateDone {
		return bpv7.Bundle{}, fmt.Errorf("assembler: bundle not yet complete (state %s)", a.state)
	}
	return bpv7.NewBundle(a.primary, a.canonicals)
}

// Reset discards all partial-reception state so the Assembler can be
// reused for the next bundle on the same link.
func (a *Assembler) Reset() {
	a.state = StateStart
	a.primary = bpv7.PrimaryBlock{}
	a.canonicals = nil
	a.buf = nil
}
