// SPDX-FileCopyrightText: 2019, 2020, 2022 Alvar Penning
// SPDX-FileCopyrightText: 2026 bpcore contributors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package bpv7

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/dtn7/cboring"
)

// HopCountBlock implements the Bundle Protocol's Hop Count Block, defined in
// section 4.3.5. Its block-type-specific data is a fixed 2-element CBOR
// array: the configured hop limit and the current hop count.
type HopCountBlock struct {
	Limit uint8
	Count uint8
}

// NewHopCountBlock creates a new HopCountBlock with a given hop limit.
func NewHopCountBlock(limit uint8) *HopCountBlock {
	return &HopCountBlock{Limit: limit}
}

// NewCanonicalHopCountBlock builds a ready-to-send CanonicalBlock carrying a
// Hop Count Block.
func NewCanonicalHopCountBlock(blockNumber uint64, flags BlockControlFlags, limit uint8) (CanonicalBlock, error) {
	hcb := NewHopCountBlock(limit)
	data, err := encodeBlockValue(hcb)
	if err != nil {
		return CanonicalBlock{}, err
	}
	return NewCanonicalBlock(ExtBlockTypeHopCountBlock, blockNumber, flags, data), nil
}

// ParseHopCountBlock decodes a Hop Count Block out of a CanonicalBlock's
// Data field.
func ParseHopCountBlock(cb CanonicalBlock) (*HopCountBlock, error) {
	if cb.TypeCode != ExtBlockTypeHopCountBlock {
		return nil, fmt.Errorf("CanonicalBlock has type %d, not a Hop Count Block", cb.TypeCode)
	}
	var hcb HopCountBlock
	if err := decodeBlockValue(cb.Data, &hcb); err != nil {
		return nil, err
	}
	return &hcb, nil
}

// IsExceeded returns true if the hop limit exceeded.
func (hcb HopCountBlock) IsExceeded() bool {
	return hcb.Count > hcb.Limit
}

// Increment the hop counter and returns if the hop limit is exceeded afterwards.
func (hcb *HopCountBlock) Increment() bool {
	hcb.Count++
	return hcb.IsExceeded()
}

// Decrement the hop counter.
func (hcb *HopCountBlock) Decrement() {
	hcb.Count--
}

// MarshalCbor writes a CBOR representation of this Hop Count Block.
func (hcb *HopCountBlock) MarshalCbor(w io.Writer) error {
	if err := cboring.WriteArrayLength(2, w); err != nil {
		return err
	}

	for _, f := range []uint8{hcb.Limit, hcb.Count} {
		if err := cboring.WriteUInt(uint64(f), w); err != nil {
			return err
		}
	}

	return nil
}

// UnmarshalCbor reads a CBOR representation of a Hop Count Block.
func (hcb *HopCountBlock) UnmarshalCbor(r io.Reader) error {
	l, err := cboring.ReadArrayLength(r)
	if err != nil {
		return err
	}
	if l != 2 {
		return fmt.Errorf("expected array with length 2, got %d", l)
	}

	for _, f := range []*uint8{&hcb.Limit, &hcb.Count} {
		x, err := cboring.ReadUInt(r)
		if err != nil {
			return err
		}
		if x > 255 {
			return fmt.Errorf("hop count fields must be within a range to 255, not %d", x)
		}
		*f = uint8(x)
	}

	return nil
}

// MarshalJSON writes a JSON representation of this Hop Count Block.
func (hcb *HopCountBlock) MarshalJSON() ([]byte, error) {
	return json.Marshal(&struct {
		Limit uint8 `json:"limit"`
		Count uint8 `json:"count"`
	}{hcb.Limit, hcb.Count})
}

type hopCountBlockProcessor struct{}

func (hopCountBlockProcessor) Name() string { return "Hop Count Block" }

func (hopCountBlockProcessor) ValidateData(data []byte) error {
	var hcb HopCountBlock
	if err := decodeBlockValue(data, &hcb); err != nil {
		return err
	}
	if hcb.IsExceeded() {
		return fmt.Errorf("hop count block is exceeded")
	}
	return nil
}

// Prepare increments a received Hop Count block's counter before
// propagating it, since forwarding a bundle is exactly the event section
// 4.3.5 ties the increment to. API-injected blocks (Bundle.AddAPIBlock) are
// appended by PrepareBlocks without passing through here, so they keep
// their encoded count.
func (hopCountBlockProcessor) Prepare(plan *XmitPlan, source *CanonicalBlock, _ bool) error {
	if source == nil {
		return appendReceived(plan, source)
	}
	var hcb HopCountBlock
	if err := decodeBlockValue(source.Data, &hcb); err != nil {
		return err
	}
	hcb.Increment()
	data, err := encodeBlockValue(&hcb)
	if err != nil {
		return err
	}
	cb := *source
	cb.Data = data
	return appendReceived(plan, &cb)
}

func (hopCountBlockProcessor) Generate(cb *CanonicalBlock) ([]byte, error) { return genericGenerate(cb) }

func (hopCountBlockProcessor) Produce(wire []byte, offset, length int) ([]byte, bool, error) {
	return genericProduce(wire, offset, length)
}

func (hopCountBlockProcessor) Finalize(plan *XmitPlan, index int) error { return noopFinalize(plan, index) }
