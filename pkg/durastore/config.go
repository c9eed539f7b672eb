// SPDX-FileCopyrightText: 2026 bpcore contributors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package durastore

import (
	"fmt"

	"github.com/BurntSushi/toml"
)

// BackendType selects which concrete back-end a Config binds to.
type BackendType string

const (
	TypeBerkeleyDB BackendType = "berkeleydb" // embedded B-tree (bbolt)
	TypeFilesysDB  BackendType = "filesysdb"
	TypeMemoryDB   BackendType = "memorydb"
	TypeODBCSQLite BackendType = "odbc-sqlite"
	TypeODBCMySQL  BackendType = "odbc-mysql"
	TypeExternal   BackendType = "external"
)

// Config mirrors the enumerated storage configuration: general options
// required of every back-end, plus the B-tree-specific and ODBC-specific
// groups that only apply to their respective back-ends.
type Config struct {
	Type   BackendType `toml:"type"`
	DBName string      `toml:"dbname"`
	DBDir  string      `toml:"dbdir"`

	Init                      bool `toml:"init"`
	Tidy                      bool `toml:"tidy"`
	TidyWait                  int  `toml:"tidy_wait"`
	LeaveCleanFile            bool `toml:"leave_clean_file"`
	AutoCommit                bool `toml:"auto_commit"`
	MaxNondurableTransactions int  `toml:"max_nondurable_transactions"`

	// B-tree-specific (TypeBerkeleyDB).
	DBMpool        bool `toml:"db_mpool"`
	DBLog          bool `toml:"db_log"`
	DBTxn          bool `toml:"db_txn"`
	DBMaxTx        int  `toml:"db_max_tx"`
	DBMaxLocks     int  `toml:"db_max_locks"`
	DBMaxLockers   int  `toml:"db_max_lockers"`
	DBMaxLockedObj int  `toml:"db_max_lockedobjs"`
	DBMaxLogRegion int  `toml:"db_max_logregion"`
	DBLockDetectMs int  `toml:"db_lockdetect"`
	DBShareFile    bool `toml:"db_sharefile"`

	// ODBC-specific (TypeODBCSQLite / TypeODBCMySQL).
	ODBCUseAuxTables            bool   `toml:"odbc_use_aux_tables"`
	ODBCSchemaPreCreation       string `toml:"odbc_schema_pre_creation"`
	ODBCSchemaPostCreation      string `toml:"odbc_schema_post_creation"`
	ODBCMySQLKeepAliveInterval  int    `toml:"odbc_mysql_keep_alive_interval"`
}

// DefaultConfig mirrors the original storage config constructor's
// defaults: auto-commit on, a 3-second tidy wait, a clean-file left on
// shutdown, deadlock detection checked every 5 seconds.
func DefaultConfig(backendType BackendType, dbName, dbDir string) Config {
	return Config{
		Type:   backendType,
		DBName: dbName,
		DBDir:  dbDir,

		TidyWait:       3,
		LeaveCleanFile: true,
		AutoCommit:     true,

		DBMpool:        true,
		DBLog:          true,
		DBTxn:          true,
		DBLockDetectMs: 5000,

		ODBCMySQLKeepAliveInterval: 10,
	}
}

// LoadConfig parses a TOML document into a Config seeded with
// DefaultConfig(backendType, "", "") so unset keys keep their defaults.
func LoadConfig(data []byte, backendType BackendType) (Config, error) {
	cfg := DefaultConfig(backendType, "", "")
	if _, err := toml.Decode(string(data), &cfg); err != nil {
		return Config{}, fmt.Errorf("durastore: parsing config: %w", err)
	}
	return cfg, nil
}

// Validate checks that Config carries the minimum fields every back-end
// needs before Init is called.
func (c Config) Validate() error {
	switch c.Type {
	case TypeBerkeleyDB, TypeFilesysDB, TypeMemoryDB, TypeODBCSQLite, TypeODBCMySQL, TypeExternal:
	default:
		return fmt.Errorf("durastore: unknown backend type %q", c.Type)
	}

	if c.Type != TypeMemoryDB && c.Type != TypeExternal && c.DBName == "" {
		return fmt.Errorf("durastore: dbname is required for backend type %q", c.Type)
	}
	if c.MaxNondurableTransactions < 0 {
		return fmt.Errorf("durastore: max_nondurable_transactions must be >= 0")
	}
	return nil
}
