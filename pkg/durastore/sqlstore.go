// SPDX-FileCopyrightText: 2026 bpcore contributors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package durastore

import (
	"database/sql"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/mattn/go-sqlite3"

	"github.com/sirupsen/logrus"
)

// sqlBackend is the SQL back-end reached through database/sql, standing
// in for the ODBC-bridged back-end described in the component design: an
// ODBC DSN resolved from odbc.ini has no portable Go equivalent, so the
// driver and its DSN are selected directly instead (sqlite3 for
// odbc-sqlite, mysql for odbc-mysql). It is the only back-end for which
// AuxTablesAvailable reports true.
type sqlBackend struct {
	driver string
	db     *sql.DB

	mu          sync.Mutex
	auxFlags    map[string]bool
	refs        *refCounter
	autoCommit  bool
	nondurable  int
	maxNondurable int
	tx          *sql.Tx

	log *logrus.Entry
}

func newSQLBackend(driver string) *sqlBackend {
	return &sqlBackend{
		driver:   driver,
		auxFlags: make(map[string]bool),
		refs:     newRefCounter(),
		log:      logrus.WithField("component", "durastore-sql").WithField("driver", driver),
	}
}

func (b *sqlBackend) dsn(cfg Config) string {
	if b.driver == "sqlite3" {
		if cfg.DBDir == "" {
			return cfg.DBName
		}
		return filepath.Join(cfg.DBDir, cfg.DBName)
	}
	// mysql: cfg.DBName is expected to already be a full driver DSN
	// ("user:pass@tcp(host:port)/dbname"), since there is no odbc.ini to
	// resolve a DSN alias from.
	return cfg.DBName
}

func (b *sqlBackend) Init(cfg Config) error {
	db, err := sql.Open(b.driver, b.dsn(cfg))
	if err != nil {
		return fmt.Errorf("durastore: opening sql store: %w", err)
	}
	if err := db.Ping(); err != nil {
		return fmt.Errorf("durastore: connecting to sql store: %w", err)
	}
	b.db = db
	b.autoCommit = cfg.AutoCommit
	b.maxNondurable = cfg.MaxNondurableTransactions

	if _, err := db.Exec(fmt.Sprintf(
		"CREATE TABLE IF NOT EXISTS %s (name VARCHAR(255) PRIMARY KEY)", MetatableNameSQL)); err != nil {
		return fmt.Errorf("durastore: creating metatable: %w", err)
	}

	if cfg.ODBCSchemaPreCreation != "" {
		b.log.WithField("path", cfg.ODBCSchemaPreCreation).Debug("schema pre-creation script configured but not executed by this backend")
	}
	if cfg.ODBCSchemaPostCreation != "" {
		b.log.WithField("path", cfg.ODBCSchemaPostCreation).Debug("schema post-creation script configured but not executed by this backend")
	}

	return nil
}

func sanitizeIdent(name string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			return r
		default:
			return '_'
		}
	}, name)
}

func (b *sqlBackend) GetTable(name string, flags OpenFlags) (Table, error) {
	if err := validateTableName(name); err != nil {
		return nil, err
	}
	ident := sanitizeIdent(name)

	var exists bool
	row := b.db.QueryRow(fmt.Sprintf("SELECT 1 FROM %s WHERE name = ?", MetatableNameSQL), name)
	if err := row.Scan(new(int)); err == nil {
		exists = true
	} else if err != sql.ErrNoRows {
		return nil, fmt.Errorf("durastore: checking metatable: %w", err)
	}

	if exists && flags.has(Exclusive) {
		return nil, Exists
	}
	if !exists {
		if !flags.has(Create) {
			return nil, NotFound
		}
		// Standard table layout: (the_key VARBINARY(255), the_data BLOB),
		// per the persistent store layout's default schema.
		ddl := fmt.Sprintf(
			"CREATE TABLE IF NOT EXISTS %s (the_key VARBINARY(255) PRIMARY KEY, the_data BLOB)", ident)
		if _, err := b.db.Exec(ddl); err != nil {
			return nil, fmt.Errorf("durastore: creating table %s: %w", ident, err)
		}
		if _, err := b.db.Exec(fmt.Sprintf("INSERT INTO %s (name) VALUES (?)", MetatableNameSQL), name); err != nil {
			return nil, fmt.Errorf("durastore: registering table in metatable: %w", err)
		}
	}

	b.mu.Lock()
	if flags.has(AuxTable) {
		b.auxFlags[ident] = true
	}
	b.mu.Unlock()

	b.refs.acquire(name)
	return &sqlTable{name: name, ident: ident, backend: b}, nil
}

func (b *sqlBackend) DelTable(name string) error {
	if b.refs.count(name) > 0 {
		return Busy
	}
	ident := sanitizeIdent(name)

	if _, err := b.db.Exec(fmt.Sprintf("DROP TABLE IF EXISTS %s", ident)); err != nil {
		return fmt.Errorf("durastore: dropping table %s: %w", ident, err)
	}
	if _, err := b.db.Exec(fmt.Sprintf("DELETE FROM %s WHERE name = ?", MetatableNameSQL), name); err != nil {
		return fmt.Errorf("durastore: unregistering table: %w", err)
	}
	return nil
}

func (b *sqlBackend) GetTableNames() ([]string, error) {
	rows, err := b.db.Query(fmt.Sprintf("SELECT name FROM %s", MetatableNameSQL))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, err
		}
		names = append(names, n)
	}
	sort.Strings(names)
	return names, rows.Err()
}

// BeginTransaction is idempotent within a single open transaction, a
// no-op when AutoCommit is on.
func (b *sqlBackend) BeginTransaction() error {
	if b.autoCommit {
		return nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.tx != nil {
		return nil
	}
	tx, err := b.db.Begin()
	if err != nil {
		return err
	}
	b.tx = tx
	return nil
}

// EndTransaction increments the nondurable-commit counter; once it
// crosses MaxNondurableTransactions the commit is forced durable and the
// counter resets, mirroring the façade's transaction batching policy at
// the back-end level for callers that drive it directly.
func (b *sqlBackend) EndTransaction(beDurable bool) error {
	if b.autoCommit {
		return nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.tx == nil {
		return nil
	}

	b.nondurable++
	durable := beDurable
	if b.maxNondurable > 0 && b.nondurable >= b.maxNondurable {
		durable = true
	}
	if !durable {
		return nil
	}

	err := b.tx.Commit()
	b.tx = nil
	b.nondurable = 0
	return err
}

func (b *sqlBackend) AuxTablesAvailable() bool { return true }

func (b *sqlBackend) Close() error {
	if leaks := b.refs.leaks(); len(leaks) > 0 {
		b.log.WithField("tables", leaks).Warn("closing durastore with open table references")
	}
	if b.db == nil {
		return nil
	}
	return b.db.Close()
}

// execer abstracts over *sql.DB and *sql.Tx so sqlTable's statements run
// inside the backend's current transaction when one is open.
type execer interface {
	Exec(query string, args ...interface{}) (sql.Result, error)
	Query(query string, args ...interface{}) (*sql.Rows, error)
	QueryRow(query string, args ...interface{}) *sql.Row
}

func (b *sqlBackend) conn() execer {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.tx != nil {
		return b.tx
	}
	return b.db
}

type sqlTable struct {
	name    string
	ident   string
	backend *sqlBackend
	closed  bool
}

func (t *sqlTable) Name() string { return t.name }

func (t *sqlTable) Get(key []byte) ([]byte, Status, error) {
	row := t.backend.conn().QueryRow(fmt.Sprintf("SELECT the_data FROM %s WHERE the_key = ?", t.ident), key)
	var data []byte
	if err := row.Scan(&data); err == sql.ErrNoRows {
		return nil, NotFound, nil
	} else if err != nil {
		return nil, ERR, err
	}
	return data, OK, nil
}

func (t *sqlTable) GetTyped(key []byte, alloc Allocator) (uint64, interface{ UnmarshalBinary([]byte) error }, Status, error) {
	raw, status, err := t.Get(key)
	if err != nil || status != OK {
		return 0, nil, status, err
	}
	tc, n, derr := decodeSDNV(raw)
	if derr != nil {
		return 0, nil, ERR, derr
	}
	v, aerr := alloc(tc)
	if aerr != nil {
		return 0, nil, ERR, aerr
	}
	if uerr := v.UnmarshalBinary(raw[n:]); uerr != nil {
		return 0, nil, ERR, uerr
	}
	return tc, v, OK, nil
}

func (t *sqlTable) Put(key []byte, typeCode uint64, value []byte, flags OpenFlags) (Status, error) {
	if len(key) > 255 {
		return ERR, fmt.Errorf("durastore: key longer than 255 bytes")
	}

	payload := value
	if flags.has(MultiType) {
		payload = append(encodeSDNV(typeCode), value...)
	}

	var stmt string
	if t.backend.driver == "mysql" {
		stmt = fmt.Sprintf(
			"INSERT INTO %s (the_key, the_data) VALUES (?, ?) ON DUPLICATE KEY UPDATE the_data = VALUES(the_data)", t.ident)
	} else {
		stmt = fmt.Sprintf("INSERT OR REPLACE INTO %s (the_key, the_data) VALUES (?, ?)", t.ident)
	}

	if _, err := t.backend.conn().Exec(stmt, key, payload); err != nil {
		return ERR, err
	}
	return OK, nil
}

func (t *sqlTable) Del(key []byte) (Status, error) {
	res, err := t.backend.conn().Exec(fmt.Sprintf("DELETE FROM %s WHERE the_key = ?", t.ident), key)
	if err != nil {
		return ERR, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return NotFound, nil
	}
	return OK, nil
}

func (t *sqlTable) Size() (int, error) {
	row := t.backend.conn().QueryRow(fmt.Sprintf("SELECT COUNT(*) FROM %s", t.ident))
	var n int
	err := row.Scan(&n)
	return n, err
}

func (t *sqlTable) KeyExists(key []byte) (bool, error) {
	row := t.backend.conn().QueryRow(fmt.Sprintf("SELECT 1 FROM %s WHERE the_key = ?", t.ident), key)
	var discard int
	err := row.Scan(&discard)
	if err == sql.ErrNoRows {
		return false, nil
	}
	return err == nil, err
}

func (t *sqlTable) Iterate() (Iterator, error) {
	rows, err := t.backend.conn().Query(fmt.Sprintf("SELECT the_key, the_data FROM %s ORDER BY the_key", t.ident))
	if err != nil {
		return nil, err
	}
	return &sqlIterator{rows: rows}, nil
}

func (t *sqlTable) Close() error {
	if t.closed {
		return nil
	}
	t.closed = true
	t.backend.refs.release(t.name)
	return nil
}

type sqlIterator struct {
	rows    *sql.Rows
	k, v    []byte
	err     error
}

func (it *sqlIterator) Next() bool {
	if !it.rows.Next() {
		it.err = it.rows.Err()
		return false
	}
	if err := it.rows.Scan(&it.k, &it.v); err != nil {
		it.err = err
		return false
	}
	return true
}

func (it *sqlIterator) Key() []byte   { return it.k }
func (it *sqlIterator) Value() []byte { return it.v }
func (it *sqlIterator) Err() error    { return it.err }
func (it *sqlIterator) Close() error  { return it.rows.Close() }

// ColumnType names the SQL column types the auxiliary-table projection
// supports, per the data model's enumerated set.
type ColumnType int

const (
	ColChar ColumnType = iota
	ColSmallIntSigned
	ColSmallIntUnsigned
	ColIntSigned
	ColIntUnsigned
	ColBigIntSigned
	ColBigIntUnsigned
	ColFloat
	ColDouble
	ColDate
	ColVarChar
	ColBlob
)

// ColumnDescriptor binds one auxiliary column to a Go value: Value must
// be a pointer, used as the destination on GetAux and the source (via
// reflection-free type switch) on PutAux.
type ColumnDescriptor struct {
	Name  string
	Type  ColumnType
	Value interface{}
}

// AuxTable is implemented by tables opened with the AuxTable flag on a
// back-end whose AuxTablesAvailable returns true.
type AuxTable interface {
	PutAux(key []byte, cols []ColumnDescriptor) error
	GetAux(key []byte, cols []ColumnDescriptor) error
}

// PutAux generates "UPDATE <t> SET c1=?,...,cn=? WHERE the_key=?" and
// binds one parameter per descriptor. Per the component design, auxiliary
// tables are never written into when empty - row creation is left to
// database triggers installed by an optional post-creation SQL script -
// so PutAux reports an error if it affects zero rows.
func (t *sqlTable) PutAux(key []byte, cols []ColumnDescriptor) error {
	if len(cols) == 0 {
		return fmt.Errorf("durastore: PutAux requires at least one column")
	}

	setClauses := make([]string, len(cols))
	args := make([]interface{}, 0, len(cols)+1)
	for i, c := range cols {
		setClauses[i] = fmt.Sprintf("%s = ?", sanitizeIdent(c.Name))
		args = append(args, c.Value)
	}
	args = append(args, key)

	stmt := fmt.Sprintf("UPDATE %s SET %s WHERE the_key = ?", t.ident, strings.Join(setClauses, ", "))
	res, err := t.backend.conn().Exec(stmt, args...)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("durastore: PutAux on %s: no row for key (rows are not auto-created)", t.ident)
	}
	return nil
}

// GetAux generates "SELECT c1,...,cn FROM <t> WHERE the_key=?" and scans
// each column into its descriptor's Value pointer.
func (t *sqlTable) GetAux(key []byte, cols []ColumnDescriptor) error {
	if len(cols) == 0 {
		return fmt.Errorf("durastore: GetAux requires at least one column")
	}

	names := make([]string, len(cols))
	dest := make([]interface{}, len(cols))
	for i, c := range cols {
		names[i] = sanitizeIdent(c.Name)
		dest[i] = c.Value
	}

	stmt := fmt.Sprintf("SELECT %s FROM %s WHERE the_key = ?", strings.Join(names, ", "), t.ident)
	row := t.backend.conn().QueryRow(stmt, key)
	return row.Scan(dest...)
}
