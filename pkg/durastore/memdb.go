// SPDX-FileCopyrightText: 2026 bpcore contributors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package durastore

import (
	"fmt"
	"sort"
	"sync"

	"github.com/sirupsen/logrus"
)

// memBackend is the in-memory back-end: a map of table name to table
// contents, with no persistence at all. It exists primarily as a simple
// collaborator for tests and for callers that don't need durability, and
// as the reference implementation the other back-ends' Table contracts
// are checked against.
type memBackend struct {
	mu     sync.Mutex
	tables map[string]*memTable
	refs   *refCounter

	log *logrus.Entry
}

func newMemBackend() *memBackend {
	return &memBackend{
		tables: make(map[string]*memTable),
		refs:   newRefCounter(),
		log:    logrus.WithField("component", "durastore-memdb"),
	}
}

func (b *memBackend) Init(cfg Config) error {
	if cfg.Tidy {
		b.mu.Lock()
		b.tables = make(map[string]*memTable)
		b.mu.Unlock()
	}
	return nil
}

func (b *memBackend) GetTable(name string, flags OpenFlags) (Table, error) {
	if err := validateTableName(name); err != nil {
		return nil, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	t, ok := b.tables[name]
	if !ok {
		if !flags.has(Create) {
			return nil, NotFound
		}
		t = &memTable{name: name, flags: flags, rows: make(map[string]memRow)}
		b.tables[name] = t
	} else if flags.has(Exclusive) {
		return nil, Exists
	}

	b.refs.acquire(name)
	return &refCountedMemTable{memTable: t, backend: b}, nil
}

func (b *memBackend) DelTable(name string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.refs.count(name) > 0 {
		return Busy
	}
	if _, ok := b.tables[name]; !ok {
		return NotFound
	}
	delete(b.tables, name)
	return nil
}

func (b *memBackend) GetTableNames() ([]string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	names := make([]string, 0, len(b.tables))
	for name := range b.tables {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (b *memBackend) BeginTransaction() error     { return nil }
func (b *memBackend) EndTransaction(_ bool) error { return nil }
func (b *memBackend) AuxTablesAvailable() bool    { return false }

func (b *memBackend) Close() error {
	if leaks := b.refs.leaks(); len(leaks) > 0 {
		b.log.WithField("tables", leaks).Warn("closing durastore with open table references")
	}
	return nil
}

type memRow struct {
	typeCode uint64
	value    []byte
}

type memTable struct {
	mu    sync.RWMutex
	name  string
	flags OpenFlags
	rows  map[string]memRow
}

func (t *memTable) Name() string { return t.name }

func (t *memTable) Get(key []byte) ([]byte, Status, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	row, ok := t.rows[string(key)]
	if !ok {
		return nil, NotFound, nil
	}
	return row.value, OK, nil
}

func (t *memTable) GetTyped(key []byte, alloc Allocator) (uint64, interface{ UnmarshalBinary([]byte) error }, Status, error) {
	t.mu.RLock()
	row, ok := t.rows[string(key)]
	t.mu.RUnlock()
	if !ok {
		return 0, nil, NotFound, nil
	}

	v, err := alloc(row.typeCode)
	if err != nil {
		return 0, nil, ERR, err
	}
	if err := v.UnmarshalBinary(row.value); err != nil {
		return 0, nil, ERR, err
	}
	return row.typeCode, v, OK, nil
}

func (t *memTable) Put(key []byte, typeCode uint64, value []byte, _ OpenFlags) (Status, error) {
	if len(key) > 255 {
		return ERR, fmt.Errorf("durastore: key longer than 255 bytes")
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	cp := make([]byte, len(value))
	copy(cp, value)
	t.rows[string(key)] = memRow{typeCode: typeCode, value: cp}
	return OK, nil
}

func (t *memTable) Del(key []byte) (Status, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.rows[string(key)]; !ok {
		return NotFound, nil
	}
	delete(t.rows, string(key))
	return OK, nil
}

func (t *memTable) Size() (int, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.rows), nil
}

func (t *memTable) KeyExists(key []byte) (bool, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.rows[string(key)]
	return ok, nil
}

func (t *memTable) Iterate() (Iterator, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	keys := make([]string, 0, len(t.rows))
	for k := range t.rows {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	return &memIterator{table: t, keys: keys, pos: -1}, nil
}

func (t *memTable) Close() error { return nil }

// refCountedMemTable decrements the backend's refcount for this table's
// name when closed, so DelTable can observe a Busy table correctly.
type refCountedMemTable struct {
	*memTable
	backend *memBackend
	closed  bool
}

func (t *refCountedMemTable) Close() error {
	if t.closed {
		return nil
	}
	t.closed = true
	t.backend.refs.release(t.name)
	return nil
}

type memIterator struct {
	table *memTable
	keys  []string
	pos   int
}

func (it *memIterator) Next() bool {
	it.pos++
	return it.pos < len(it.keys)
}

func (it *memIterator) Key() []byte {
	if it.pos < 0 || it.pos >= len(it.keys) {
		return nil
	}
	return []byte(it.keys[it.pos])
}

func (it *memIterator) Value() []byte {
	if it.pos < 0 || it.pos >= len(it.keys) {
		return nil
	}
	it.table.mu.RLock()
	defer it.table.mu.RUnlock()
	return it.table.rows[it.keys[it.pos]].value
}

func (it *memIterator) Err() error   { return nil }
func (it *memIterator) Close() error { return nil }
