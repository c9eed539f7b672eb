// SPDX-FileCopyrightText: 2019, 2020, 2021 Alvar Penning
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Package bpv7 provides a library for interaction with Bundles as defined
// in the Bundle Protocol Version 7 (draft-ietf-dtn-bpbis-31.txt). This
// includes Bundle creation, modification, serialization and
// deserialization.
//
// A Bundle is assembled from a PrimaryBlock plus the canonical blocks
// built by each block type's New*Block / NewCanonical*Block pair
// (NewCanonicalPayloadBlock, NewCanonicalHopCountBlock, ...).
//
//	primary := bpv7.NewPrimaryBlock(0, dest, src, bpv7.NewCreationTimestamp(bpv7.DtnTimeNow(), 0), uint64(time.Hour/time.Millisecond))
//	payload := bpv7.NewCanonicalPayloadBlock(0, []byte("hello world!"))
//	bundle, err := bpv7.NewBundle(primary, []bpv7.CanonicalBlock{payload})
//
// Both serializing and deserializing bundles into the CBOR is supported.
//
//	// An existing Bundle b1 is serialized. The new bundle b2 is created
//	// from this. A common bytes.Buffer will be used.
//	buff := new(bytes.Buffer)
//	err1 := b1.WriteBundle(buff)
//	b2, err2 := bpv7.ParseBundle(buff)
package bpv7
