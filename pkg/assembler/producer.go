// SPDX-FileCopyrightText: 2026 bpcore contributors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package assembler

import (
	"bytes"
	"fmt"

	"github.com/dtn7/cboring"

	"github.com/dtn7/bpcore/pkg/bpv7"
)

// Producer serves one outgoing link's fully-assembled bundle wire bytes in
// arbitrary-sized chunks, mirroring the transmission-side produce(offset,
// len) contract of section 4.4. Building the plan runs PrepareBlocks
// (per-link transmission block list) and GenerateBlocks (list-order
// generate, reverse-order finalize) once up front; Produce only ever
// slices the laid-out result.
type Producer struct {
	wire []byte
}

// NewProducer prepares and generates b's transmission plan for link, then
// lays out the full bundle wire encoding: indefinite-array opener, primary
// block, every plan block in list order, trailing break byte. The
// returned Producer can then be drained via repeated Produce calls of
// whatever size the caller's link prefers.
func NewProducer(b *bpv7.Bundle, link bpv7.LinkID) (*Producer, error) {
	plan, err := b.PrepareBlocks(link)
	if err != nil {
		return nil, fmt.Errorf("assembler: preparing blocks for link %s: %w", link, err)
	}
	if err := b.GenerateBlocks(plan); err != nil {
		return nil, fmt.Errorf("assembler: generating blocks for link %s: %w", link, err)
	}

	var buf bytes.Buffer
	if _, err := buf.Write([]byte{cboring.IndefiniteArray}); err != nil {
		return nil, err
	}
	if err := cboring.Marshal(&b.PrimaryBlock, &buf); err != nil {
		return nil, fmt.Errorf("assembler: primary block: %w", err)
	}
	for i := range plan.Generated {
		if _, err := buf.Write(plan.Generated[i]); err != nil {
			return nil, err
		}
	}
	if _, err := buf.Write([]byte{cboring.BreakCode}); err != nil {
		return nil, err
	}

	return &Producer{wire: buf.Bytes()}, nil
}

// Len reports the total size of the laid-out bundle.
func (p *Producer) Len() int { return len(p.wire) }

// Produce copies up to length bytes starting at offset. lastOut is true
// once the returned slice reaches the end of the wire encoding.
func (p *Producer) Produce(offset, length int) (data []byte, lastOut bool, err error) {
	if offset < 0 || offset > len(p.wire) {
		return nil, false, fmt.Errorf("assembler: produce offset %d out of range [0,%d]", offset, len(p.wire))
	}
	if length < 0 {
		return nil, false, fmt.Errorf("assembler: negative produce length %d", length)
	}

	end := offset + length
	if end >= len(p.wire) {
		end = len(p.wire)
		lastOut = true
	}

	return p.wire[offset:end], lastOut, nil
}
