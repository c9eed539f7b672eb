// SPDX-FileCopyrightText: 2026 bpcore contributors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package acs

import (
	"bytes"
	"testing"

	"github.com/dtn7/bpcore/pkg/bpv7"
)

func TestBuildSignalBundleRoundTrip(t *testing.T) {
	custodian := mustEndpoint(t, "dtn://custodian/")
	source := mustEndpoint(t, "dtn://reporter/")

	pacs := newPendingACS(custodian, true, NoAdditionalInfo)
	pacs.AddCustodyID(1)
	pacs.AddCustodyID(2)
	pacs.AddCustodyID(3)

	b, err := BuildSignalBundle(pacs, source, 86400*1000)
	if err != nil {
		t.Fatalf("BuildSignalBundle: %v", err)
	}

	if !b.PrimaryBlock.BundleControlFlags.Has(bpv7.AdministrativeRecordPayload) {
		t.Error("expected AdministrativeRecordPayload flag set")
	}
	if b.PrimaryBlock.Destination != custodian {
		t.Errorf("destination = %v, want %v", b.PrimaryBlock.Destination, custodian)
	}
	if b.PrimaryBlock.SourceNode != source {
		t.Errorf("source = %v, want %v", b.PrimaryBlock.SourceNode, source)
	}

	payloadBlock, err := b.PayloadBlock()
	if err != nil {
		t.Fatalf("PayloadBlock: %v", err)
	}

	sig, err := DecodeSignal(payloadBlock.Data, 0)
	if err != nil {
		t.Fatalf("DecodeSignal: %v", err)
	}
	if !sig.Succeeded {
		t.Error("expected succeeded=true")
	}

	var wire bytes.Buffer
	if err := b.WriteBundle(&wire); err != nil {
		t.Fatalf("WriteBundle: %v", err)
	}
	if wire.Len() == 0 {
		t.Error("expected non-empty serialized bundle")
	}
}

func TestBuildSignalBundleRejectsNullCustodian(t *testing.T) {
	pacs := newPendingACS(bpv7.DtnNone(), true, NoAdditionalInfo)
	if _, err := BuildSignalBundle(pacs, bpv7.DtnNone(), 1000); err == nil {
		t.Fatal("expected error building a signal to the null endpoint")
	}
}
