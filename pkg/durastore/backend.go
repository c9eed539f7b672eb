// SPDX-FileCopyrightText: 2026 bpcore contributors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package durastore

// Backend is the abstract interface every concrete storage implementation
// satisfies: embedded B-tree (bbolt), SQL (database/sql), in-memory, and
// filesystem back-ends all implement this and nothing else needs to know
// which one is in play.
type Backend interface {
	// Init prepares the store for use: creating its directory/files if
	// Config.Init is set, honoring Config.Tidy by wiping any prior
	// contents first.
	Init(cfg Config) error

	// GetTable opens (creating if flags.has(Create)) the named table.
	GetTable(name string, flags OpenFlags) (Table, error)

	// DelTable removes a table. It fails with Busy if the table's
	// refcount is nonzero.
	DelTable(name string) error

	// GetTableNames lists every table known to the metatable.
	GetTableNames() ([]string, error)

	// BeginTransaction starts (or, for an already-open transaction,
	// no-ops) a batch of writes. AutoCommit backends treat this as a
	// no-op.
	BeginTransaction() error

	// EndTransaction closes the current transaction. beDurable forces an
	// fsync-equivalent commit regardless of the nondurable-transaction
	// counter.
	EndTransaction(beDurable bool) error

	// AuxTablesAvailable reports whether this back-end supports
	// auxiliary-column SQL projection (only sqlstore does).
	AuxTablesAvailable() bool

	// Close releases all resources. Any tables still open are logged as
	// leaked but Close still completes.
	Close() error
}

// NewBackend is the factory selector keyed on cfg.Type, matching the
// pluggable-extension contract: a storage back-end is a class
// implementing this package's abstract interface plus a factory selector
// keyed on config.type.
func NewBackend(cfg Config) (Backend, error) {
	switch cfg.Type {
	case TypeMemoryDB:
		return newMemBackend(), nil
	case TypeBerkeleyDB:
		return newBTreeBackend(), nil
	case TypeODBCSQLite:
		return newSQLBackend("sqlite3"), nil
	case TypeODBCMySQL:
		return newSQLBackend("mysql"), nil
	case TypeFilesysDB:
		return newFSBackend(), nil
	default:
		return nil, ERR
	}
}
