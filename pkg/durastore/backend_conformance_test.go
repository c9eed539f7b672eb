// SPDX-FileCopyrightText: 2026 bpcore contributors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package durastore

import (
	"testing"
)

func TestBackendGetPutDel(t *testing.T) {
	for _, kind := range backendKinds() {
		kind := kind
		t.Run(kind, func(t *testing.T) {
			b := newTestBackend(t, kind)
			defer b.Close()

			tbl, err := b.GetTable("bundles", Create)
			if err != nil {
				t.Fatalf("GetTable: %v", err)
			}
			defer tbl.Close()

			if _, status, err := tbl.Get([]byte("missing")); err != nil || status != NotFound {
				t.Fatalf("Get(missing) = %v, %v", status, err)
			}

			if status, err := tbl.Put([]byte("k1"), 0, []byte("hello"), 0); err != nil || status != OK {
				t.Fatalf("Put = %v, %v", status, err)
			}

			v, status, err := tbl.Get([]byte("k1"))
			if err != nil || status != OK || string(v) != "hello" {
				t.Fatalf("Get(k1) = %q, %v, %v", v, status, err)
			}

			if ok, err := tbl.KeyExists([]byte("k1")); err != nil || !ok {
				t.Fatalf("KeyExists(k1) = %v, %v", ok, err)
			}

			if n, err := tbl.Size(); err != nil || n != 1 {
				t.Fatalf("Size() = %d, %v", n, err)
			}

			if status, err := tbl.Del([]byte("k1")); err != nil || status != OK {
				t.Fatalf("Del(k1) = %v, %v", status, err)
			}
			if status, err := tbl.Del([]byte("k1")); err != nil || status != NotFound {
				t.Fatalf("Del(k1) again = %v, %v", status, err)
			}
		})
	}
}

func TestBackendMultiTypeRoundTrip(t *testing.T) {
	for _, kind := range backendKinds() {
		kind := kind
		t.Run(kind, func(t *testing.T) {
			b := newTestBackend(t, kind)
			defer b.Close()

			tbl, err := b.GetTable("typed", Create|MultiType)
			if err != nil {
				t.Fatalf("GetTable: %v", err)
			}
			defer tbl.Close()

			if _, err := tbl.Put([]byte("k"), 2, []byte("payload"), MultiType); err != nil {
				t.Fatalf("Put: %v", err)
			}

			tc, val, status, err := tbl.GetTyped([]byte("k"), stringAllocator)
			if err != nil || status != OK {
				t.Fatalf("GetTyped = %v, %v", status, err)
			}
			if tc != 2 {
				t.Errorf("typeCode = %d, want 2", tc)
			}
			sv := val.(*stringValue)
			if sv.s != "payload" {
				t.Errorf("value = %q, want payload", sv.s)
			}
		})
	}
}

func TestBackendExclusiveAndMissing(t *testing.T) {
	for _, kind := range backendKinds() {
		kind := kind
		t.Run(kind, func(t *testing.T) {
			b := newTestBackend(t, kind)
			defer b.Close()

			if _, err := b.GetTable("t", 0); err != NotFound {
				t.Fatalf("GetTable(no Create) = %v, want NotFound", err)
			}

			tbl, err := b.GetTable("t", Create)
			if err != nil {
				t.Fatalf("GetTable(Create): %v", err)
			}

			if _, err := b.GetTable("t", Create|Exclusive); err != Exists {
				t.Fatalf("GetTable(Exclusive) = %v, want Exists", err)
			}

			tbl.Close()
		})
	}
}

func TestBackendDelTableBusyWhileRefHeld(t *testing.T) {
	for _, kind := range backendKinds() {
		kind := kind
		t.Run(kind, func(t *testing.T) {
			b := newTestBackend(t, kind)
			defer b.Close()

			tbl, err := b.GetTable("held", Create)
			if err != nil {
				t.Fatalf("GetTable: %v", err)
			}

			if err := b.DelTable("held"); err != Busy {
				t.Fatalf("DelTable while held = %v, want Busy", err)
			}

			tbl.Close()

			if err := b.DelTable("held"); err != nil {
				t.Fatalf("DelTable after release: %v", err)
			}
		})
	}
}

func TestBackendIterateSortedOrder(t *testing.T) {
	for _, kind := range backendKinds() {
		kind := kind
		t.Run(kind, func(t *testing.T) {
			b := newTestBackend(t, kind)
			defer b.Close()

			tbl, err := b.GetTable("iter", Create)
			if err != nil {
				t.Fatalf("GetTable: %v", err)
			}
			defer tbl.Close()

			keys := []string{"c", "a", "b"}
			for _, k := range keys {
				if _, err := tbl.Put([]byte(k), 0, []byte(k), 0); err != nil {
					t.Fatalf("Put(%s): %v", k, err)
				}
			}

			it, err := tbl.Iterate()
			if err != nil {
				t.Fatalf("Iterate: %v", err)
			}
			defer it.Close()

			var got []string
			for it.Next() {
				got = append(got, string(it.Key()))
			}
			if err := it.Err(); err != nil {
				t.Fatalf("iterator error: %v", err)
			}

			want := []string{"a", "b", "c"}
			if len(got) != len(want) {
				t.Fatalf("got %v, want %v", got, want)
			}
			for i := range want {
				if got[i] != want[i] {
					t.Fatalf("got %v, want %v", got, want)
				}
			}
		})
	}
}

func TestBackendGetTableNames(t *testing.T) {
	for _, kind := range backendKinds() {
		kind := kind
		t.Run(kind, func(t *testing.T) {
			b := newTestBackend(t, kind)
			defer b.Close()

			for _, name := range []string{"z", "a", "m"} {
				tbl, err := b.GetTable(name, Create)
				if err != nil {
					t.Fatalf("GetTable(%s): %v", name, err)
				}
				tbl.Close()
			}

			names, err := b.GetTableNames()
			if err != nil {
				t.Fatalf("GetTableNames: %v", err)
			}
			want := []string{"a", "m", "z"}
			if len(names) != len(want) {
				t.Fatalf("got %v, want %v", names, want)
			}
			for i := range want {
				if names[i] != want[i] {
					t.Fatalf("got %v, want %v", names, want)
				}
			}
		})
	}
}

func TestValidateTableNameRejectsReserved(t *testing.T) {
	if err := validateTableName(MetatableNameSQL); err == nil {
		t.Fatal("expected error for reserved SQL metatable name")
	}
	if err := validateTableName(MetatableNameBTree); err == nil {
		t.Fatal("expected error for reserved B-tree metatable name")
	}
	if err := validateTableName(""); err == nil {
		t.Fatal("expected error for empty table name")
	}
}
