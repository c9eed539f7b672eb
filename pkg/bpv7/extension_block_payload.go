// SPDX-FileCopyrightText: 2019, 2020 Alvar Penning
// SPDX-FileCopyrightText: 2026 bpcore contributors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package bpv7

import (
	"encoding/json"
	"fmt"

	"github.com/dtn7/bpcore/pkg/crc"
)

// PayloadBlock implements the Bundle Protocol's Payload Block, defined in
// section 4.3.2. Unlike Bundle Age, Hop Count or Previous Node, its
// block-type-specific data is raw bytes, not a further CBOR encoding: this
// is exactly the content already held in CanonicalBlock.Data.
type PayloadBlock []byte

// NewPayloadBlock creates a new PayloadBlock with the given payload.
func NewPayloadBlock(data []byte) *PayloadBlock {
	pb := PayloadBlock(data)
	return &pb
}

// NewCanonicalPayloadBlock builds a ready-to-send CanonicalBlock carrying a
// payload. Per section 4.2.1 the payload block always occupies block
// number 1.
func NewCanonicalPayloadBlock(flags BlockControlFlags, data []byte) CanonicalBlock {
	return NewCanonicalBlock(ExtBlockTypePayloadBlock, 1, flags, data)
}

// ParsePayloadBlock returns the payload bytes held in a CanonicalBlock.
func ParsePayloadBlock(cb CanonicalBlock) (*PayloadBlock, error) {
	if cb.TypeCode != ExtBlockTypePayloadBlock {
		return nil, fmt.Errorf("CanonicalBlock has type %d, not a Payload Block", cb.TypeCode)
	}
	return NewPayloadBlock(cb.Data), nil
}

// Data returns this PayloadBlock's payload.
func (pb *PayloadBlock) Data() []byte {
	return *pb
}

// MarshalJSON creates a json formatted representation of the payload.
//
// Since you probably don't want megabytes of encoded data ending up in your
// logs, large payloads will be truncated.
func (pb *PayloadBlock) MarshalJSON() ([]byte, error) {
	payload := pb.Data()
	if len(payload) > 100 {
		payload = payload[:100]
	}
	return json.Marshal(payload)
}

type payloadBlockProcessor struct{}

func (payloadBlockProcessor) Name() string { return "Payload Block" }

// ValidateData never rejects; any byte sequence is a valid payload.
func (payloadBlockProcessor) ValidateData([]byte) error { return nil }

// Prepare places the payload block into the plan; sortPayloadLast restores
// the "payload is always last" invariant once every processor has run.
func (payloadBlockProcessor) Prepare(plan *XmitPlan, source *CanonicalBlock, _ bool) error {
	return appendReceived(plan, source)
}

// Generate forces CRCType to None before laying out the wire bytes,
// since the payload is not memory-resident in the original design this
// core is modeled on and its CRC is not computed on emit.
func (payloadBlockProcessor) Generate(cb *CanonicalBlock) ([]byte, error) {
	cb.CRCType = crc.None
	return genericGenerate(cb)
}

func (payloadBlockProcessor) Produce(wire []byte, offset, length int) ([]byte, bool, error) {
	return genericProduce(wire, offset, length)
}

func (payloadBlockProcessor) Finalize(plan *XmitPlan, index int) error { return noopFinalize(plan, index) }
