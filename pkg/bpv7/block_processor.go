// SPDX-FileCopyrightText: 2026 bpcore contributors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package bpv7

import (
	"bytes"
	"fmt"

	"github.com/dtn7/cboring"
)

// Block type codes, as assigned to the registry described in section 4.3.
// Primary is implicit and carries no type code of its own.
const (
	ExtBlockTypePayloadBlock      uint64 = 1
	ExtBlockTypePreviousNodeBlock uint64 = 6
	ExtBlockTypeBundleAgeBlock    uint64 = 7
	ExtBlockTypeHopCountBlock     uint64 = 10

	// ExtBlockTypeImcDestinations and ExtBlockTypeImcState are the two
	// experimental multicast block types from section 4.6. They sit in the
	// private/experimental range, away from the registered codes above.
	ExtBlockTypeImcDestinations uint64 = 200
	ExtBlockTypeImcState        uint64 = 201
)

// BlockProcessor is the behavior a registry entry binds to a block type
// code across the full transmission/reception pipeline of section 4.4.
// The reception-side "consume" stage is handled directly by the assembler
// (pkg/assembler) walking bpv7.CanonicalBlock's own chunk-tolerant
// UnmarshalCbor rather than by a per-processor method, since the CBOR
// array framing already tells a reader how much of a block remains
// without a processor needing to track contents-buffer state itself.
type BlockProcessor interface {
	// Name returns a human-readable label for log lines and String().
	Name() string

	// ValidateData decodes and validates a block's raw Data field without
	// requiring the caller to know the concrete Go type behind it.
	ValidateData(data []byte) error

	// Prepare adds a block to the outgoing transmission plan at the
	// correct position. source is a block as received (API-injected blocks
	// are appended by PrepareBlocks without a Prepare call);
	// it is nil exactly once per PrepareBlocks call, the "last-chance"
	// invocation that lets a processor inject a fresh block of its own
	// type instead of propagating a received one (Previous Node's case).
	Prepare(plan *XmitPlan, source *CanonicalBlock, fragment bool) error

	// Generate lays out cb's wire bytes: CBOR array framing, block-type-
	// specific data, and CRC trailer (computed over the full encoding
	// with the CRC field placeholder, then overwritten), per section
	// 4.3's two-pass emission. CanonicalBlock.MarshalCbor already performs
	// both passes in one traversal via a tee buffer, so Generate is a
	// thin wrapper around it for every registered type.
	Generate(cb *CanonicalBlock) ([]byte, error)

	// Produce copies up to length bytes from cb's already-generated wire
	// encoding starting at offset. The payload producer described in
	// section 4.3 (streaming from a backing payload store with a bounded
	// work buffer) does not apply here: the payload store is an external
	// collaborator, so this core holds the payload block's bytes already
	// laid out like any other block's.
	Produce(wire []byte, offset, length int) (data []byte, lastOut bool, err error)

	// Finalize runs once per block, back-to-front across the plan, after
	// every block has been generated. It lets a processor amend bytes
	// that depend on blocks generated after it in list order (BPsec
	// signing earlier blocks' contents is the motivating case from
	// section 4.4; BPsec itself is an external collaborator, so every
	// processor here is a no-op, preserving the hook without the suite).
	Finalize(plan *XmitPlan, index int) error
}

// blockProcessors is the registry mapping a type code to its processor.
// Unknown type codes fall through to unknownBlockProcessor, which accepts
// anything and preserves the bytes verbatim.
var blockProcessors = map[uint64]BlockProcessor{
	ExtBlockTypePayloadBlock:      payloadBlockProcessor{},
	ExtBlockTypePreviousNodeBlock: previousNodeBlockProcessor{},
	ExtBlockTypeBundleAgeBlock:    bundleAgeBlockProcessor{},
	ExtBlockTypeHopCountBlock:     hopCountBlockProcessor{},
	ExtBlockTypeImcDestinations:   imcDestinationsBlockProcessor{},
	ExtBlockTypeImcState:          imcStateBlockProcessor{},
}

// processorFor returns the registered BlockProcessor for a type code, or
// the generic Unknown processor if none is registered.
func processorFor(typeCode uint64) BlockProcessor {
	if p, ok := blockProcessors[typeCode]; ok {
		return p
	}
	return unknownBlockProcessor{typeCode: typeCode}
}

// encodeBlockValue CBOR-encodes v into the bytes that belong in a
// CanonicalBlock's Data field. Used by block types whose block-type-
// specific-data field is itself a CBOR value (bundle age, hop count,
// previous node), as opposed to payload/generic blocks, which store raw
// bytes directly.
func encodeBlockValue(v cboring.CborMarshaler) ([]byte, error) {
	buf := new(bytes.Buffer)
	if err := cboring.Marshal(v, buf); err != nil {
		return nil, fmt.Errorf("encoding block data: %w", err)
	}
	return buf.Bytes(), nil
}

// decodeBlockValue is the inverse of encodeBlockValue.
func decodeBlockValue(data []byte, v cboring.CborMarshaler) error {
	if err := cboring.Unmarshal(v, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("decoding block data: %w", err)
	}
	return nil
}

// appendReceived is the Prepare behavior shared by every processor that
// simply propagates a received block unchanged: append it
// to the plan in list order, and do nothing on the nil "last-chance" call.
func appendReceived(plan *XmitPlan, source *CanonicalBlock) error {
	if source != nil {
		plan.Blocks = append(plan.Blocks, *source)
	}
	return nil
}

// genericGenerate lays out cb's wire bytes via CanonicalBlock's own
// two-pass-equivalent MarshalCbor. Every registered processor but Payload
// (which must additionally force CRCType to None first) uses this as-is.
func genericGenerate(cb *CanonicalBlock) ([]byte, error) {
	var buf bytes.Buffer
	if err := cb.MarshalCbor(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// genericProduce slices wire[offset:offset+length], reporting lastOut once
// the slice reaches the end. Shared by every registered processor.
func genericProduce(wire []byte, offset, length int) (data []byte, lastOut bool, err error) {
	if offset < 0 || offset > len(wire) {
		return nil, false, fmt.Errorf("produce offset %d out of range [0,%d]", offset, len(wire))
	}
	if length < 0 {
		return nil, false, fmt.Errorf("negative produce length %d", length)
	}

	end := offset + length
	if end >= len(wire) {
		end = len(wire)
		lastOut = true
	}
	return wire[offset:end], lastOut, nil
}

// noopFinalize is the Finalize behavior for every processor that has no
// later-block-dependent bytes to amend.
func noopFinalize(*XmitPlan, int) error { return nil }

type unknownBlockProcessor struct{ typeCode uint64 }

func (p unknownBlockProcessor) Name() string { return fmt.Sprintf("Unknown(%d)", p.typeCode) }

// ValidateData never rejects; an Unknown processor has zero knowledge of
// the block's shape and must preserve whatever bytes it was given.
func (p unknownBlockProcessor) ValidateData([]byte) error { return nil }

func (p unknownBlockProcessor) Prepare(plan *XmitPlan, source *CanonicalBlock, _ bool) error {
	return appendReceived(plan, source)
}

func (p unknownBlockProcessor) Generate(cb *CanonicalBlock) ([]byte, error) { return genericGenerate(cb) }

func (p unknownBlockProcessor) Produce(wire []byte, offset, length int) ([]byte, bool, error) {
	return genericProduce(wire, offset, length)
}

func (p unknownBlockProcessor) Finalize(plan *XmitPlan, index int) error { return noopFinalize(plan, index) }
