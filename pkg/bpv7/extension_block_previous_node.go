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

// PreviousNodeBlock implements the Bundle Protocol's Previous Node Block,
// defined in section 4.3.3. Its block-type-specific data is a single
// Endpoint ID: the node that forwarded this bundle most recently.
type PreviousNodeBlock EndpointID

// NewPreviousNodeBlock creates a new Previous Node Block for an Endpoint ID.
func NewPreviousNodeBlock(prev EndpointID) *PreviousNodeBlock {
	pnb := PreviousNodeBlock(prev)
	return &pnb
}

// NewCanonicalPreviousNodeBlock builds a ready-to-send CanonicalBlock
// carrying a Previous Node Block.
func NewCanonicalPreviousNodeBlock(blockNumber uint64, flags BlockControlFlags, prev EndpointID) (CanonicalBlock, error) {
	pnb := NewPreviousNodeBlock(prev)
	data, err := encodeBlockValue(pnb)
	if err != nil {
		return CanonicalBlock{}, err
	}
	return NewCanonicalBlock(ExtBlockTypePreviousNodeBlock, blockNumber, flags, data), nil
}

// ParsePreviousNodeBlock decodes a Previous Node Block out of a
// CanonicalBlock's Data field.
func ParsePreviousNodeBlock(cb CanonicalBlock) (*PreviousNodeBlock, error) {
	if cb.TypeCode != ExtBlockTypePreviousNodeBlock {
		return nil, fmt.Errorf("CanonicalBlock has type %d, not a Previous Node Block", cb.TypeCode)
	}
	var pnb PreviousNodeBlock
	if err := decodeBlockValue(cb.Data, &pnb); err != nil {
		return nil, err
	}
	return &pnb, nil
}

// Endpoint returns this Previous Node Block's Endpoint ID.
func (pnb *PreviousNodeBlock) Endpoint() EndpointID {
	return EndpointID(*pnb)
}

// MarshalCbor writes the CBOR representation of a PreviousNodeBlock.
func (pnb *PreviousNodeBlock) MarshalCbor(w io.Writer) error {
	endpoint := EndpointID(*pnb)
	return cboring.Marshal(&endpoint, w)
}

// UnmarshalCbor reads a CBOR representation of a PreviousNodeBlock.
func (pnb *PreviousNodeBlock) UnmarshalCbor(r io.Reader) error {
	var endpoint EndpointID
	if err := cboring.Unmarshal(&endpoint, r); err != nil {
		return err
	}
	*pnb = PreviousNodeBlock(endpoint)
	return nil
}

// MarshalJSON writes the JSON representation of a PreviousNodeBlock.
func (pnb *PreviousNodeBlock) MarshalJSON() ([]byte, error) {
	return json.Marshal(pnb.Endpoint())
}

type previousNodeBlockProcessor struct{}

func (previousNodeBlockProcessor) Name() string { return "Previous Node Block" }

func (previousNodeBlockProcessor) ValidateData(data []byte) error {
	var pnb PreviousNodeBlock
	if err := decodeBlockValue(data, &pnb); err != nil {
		return err
	}
	return pnb.Endpoint().CheckValid()
}

// Prepare never propagates a received Previous Node block: per section
// 4.3, a fresh one is inserted only when the outgoing link requests it,
// which is link-specific information this processor does not have access
// to. A caller that wants a fresh Previous Node block on a given link adds
// one via Bundle.AddAPIBlock before calling PrepareBlocks; it then reaches
// the plan through the API-blocks pass in PrepareBlocks, not through here.
func (previousNodeBlockProcessor) Prepare(*XmitPlan, *CanonicalBlock, bool) error { return nil }

func (previousNodeBlockProcessor) Generate(cb *CanonicalBlock) ([]byte, error) { return genericGenerate(cb) }

func (previousNodeBlockProcessor) Produce(wire []byte, offset, length int) ([]byte, bool, error) {
	return genericProduce(wire, offset, length)
}

func (previousNodeBlockProcessor) Finalize(plan *XmitPlan, index int) error {
	return noopFinalize(plan, index)
}
