// SPDX-FileCopyrightText: 2026 bpcore contributors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package durastore

import "testing"

func TestDefaultConfigMatchesKnownDefaults(t *testing.T) {
	cfg := DefaultConfig(TypeBerkeleyDB, "bundles.db", "/var/db")

	if !cfg.AutoCommit {
		t.Error("AutoCommit should default true")
	}
	if !cfg.LeaveCleanFile {
		t.Error("LeaveCleanFile should default true")
	}
	if cfg.TidyWait != 3 {
		t.Errorf("TidyWait = %d, want 3", cfg.TidyWait)
	}
	if cfg.DBLockDetectMs != 5000 {
		t.Errorf("DBLockDetectMs = %d, want 5000", cfg.DBLockDetectMs)
	}
	if cfg.ODBCMySQLKeepAliveInterval != 10 {
		t.Errorf("ODBCMySQLKeepAliveInterval = %d, want 10", cfg.ODBCMySQLKeepAliveInterval)
	}
}

func TestLoadConfigOverridesDefaults(t *testing.T) {
	doc := `
type = "berkeleydb"
dbname = "store.db"
dbdir = "/tmp/store"
tidy = true
auto_commit = false
max_nondurable_transactions = 50
`
	cfg, err := LoadConfig([]byte(doc), TypeBerkeleyDB)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	if cfg.DBName != "store.db" || cfg.DBDir != "/tmp/store" {
		t.Errorf("unexpected dbname/dbdir: %+v", cfg)
	}
	if !cfg.Tidy {
		t.Error("Tidy should be true")
	}
	if cfg.AutoCommit {
		t.Error("AutoCommit should be false")
	}
	if cfg.MaxNondurableTransactions != 50 {
		t.Errorf("MaxNondurableTransactions = %d, want 50", cfg.MaxNondurableTransactions)
	}
	// Unset fields keep their defaults.
	if cfg.DBLockDetectMs != 5000 {
		t.Errorf("DBLockDetectMs = %d, want default 5000", cfg.DBLockDetectMs)
	}
}

func TestConfigValidateRejectsUnknownType(t *testing.T) {
	cfg := Config{Type: "bogus"}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for unknown backend type")
	}
}

func TestConfigValidateRequiresDBName(t *testing.T) {
	cfg := Config{Type: TypeBerkeleyDB}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for missing dbname")
	}

	cfg.DBName = "bundles.db"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestConfigValidateAllowsMemoryDBWithoutDBName(t *testing.T) {
	cfg := Config{Type: TypeMemoryDB}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestConfigValidateRejectsNegativeNondurable(t *testing.T) {
	cfg := DefaultConfig(TypeMemoryDB, "", "")
	cfg.MaxNondurableTransactions = -1
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for negative max_nondurable_transactions")
	}
}
