// SPDX-FileCopyrightText: 2026 bpcore contributors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package bpv7

import (
	"bytes"
	"testing"

	"github.com/dtn7/cboring"
)

func TestBundleIDRoundTripNonFragment(t *testing.T) {
	bid := BundleID{
		SourceNode: MustNewEndpointID("dtn://src/"),
		Timestamp:  NewCreationTimestamp(DtnTimeNow(), 3),
	}

	buf := new(bytes.Buffer)
	if err := cboring.Marshal(&bid, buf); err != nil {
		t.Fatalf("marshal errored: %v", err)
	}

	decoded := BundleID{}
	if err := cboring.Unmarshal(&decoded, buf); err != nil {
		t.Fatalf("unmarshal errored: %v", err)
	}
	if decoded.SourceNode != bid.SourceNode || decoded.Timestamp != bid.Timestamp {
		t.Errorf("round-trip mismatch: got %+v, want %+v", decoded, bid)
	}
}

func TestBundleIDRoundTripFragment(t *testing.T) {
	bid := BundleID{
		SourceNode:      MustNewEndpointID("dtn://src/"),
		Timestamp:       NewCreationTimestamp(DtnTimeNow(), 0),
		IsFragment:      true,
		FragmentOffset:  10,
		TotalDataLength: 100,
	}

	buf := new(bytes.Buffer)
	if err := cboring.Marshal(&bid, buf); err != nil {
		t.Fatalf("marshal errored: %v", err)
	}

	decoded := BundleID{IsFragment: true}
	if err := cboring.Unmarshal(&decoded, buf); err != nil {
		t.Fatalf("unmarshal errored: %v", err)
	}
	if decoded.FragmentOffset != 10 || decoded.TotalDataLength != 100 {
		t.Errorf("fragmentation fields not preserved: %+v", decoded)
	}
}

func TestBundleIDScrub(t *testing.T) {
	bid := BundleID{
		SourceNode:      MustNewEndpointID("dtn://src/"),
		Timestamp:       NewCreationTimestamp(DtnTimeNow(), 0),
		IsFragment:      true,
		FragmentOffset:  10,
		TotalDataLength: 100,
	}
	scrubbed := bid.Scrub()
	if scrubbed.IsFragment || scrubbed.FragmentOffset != 0 || scrubbed.TotalDataLength != 0 {
		t.Errorf("Scrub did not clear fragmentation fields: %+v", scrubbed)
	}
}
