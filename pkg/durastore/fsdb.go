// SPDX-FileCopyrightText: 2026 bpcore contributors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package durastore

import (
	"encoding/hex"
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"
	"sort"

	"github.com/sirupsen/logrus"
)

// fsBackend is the filesystem back-end: one directory per table, one file
// per key, named by the key's hex encoding. It exists as a simple
// collaborator alongside the in-memory back-end, useful when a durable
// store is wanted without pulling in a database driver.
type fsBackend struct {
	root string
	refs *refCounter
	log  *logrus.Entry
}

func newFSBackend() *fsBackend {
	return &fsBackend{
		refs: newRefCounter(),
		log:  logrus.WithField("component", "durastore-fsdb"),
	}
}

func (b *fsBackend) Init(cfg Config) error {
	if cfg.DBDir == "" || cfg.DBName == "" {
		return fmt.Errorf("durastore: filesysdb backend requires dbdir and dbname")
	}
	b.root = filepath.Join(cfg.DBDir, cfg.DBName)

	if cfg.Tidy {
		if err := os.RemoveAll(b.root); err != nil {
			return fmt.Errorf("durastore: tidying store directory: %w", err)
		}
	}
	if cfg.Init {
		if err := os.MkdirAll(b.root, 0o700); err != nil {
			return fmt.Errorf("durastore: creating store directory: %w", err)
		}
	}
	if _, err := os.Stat(b.root); err != nil {
		return fmt.Errorf("durastore: store directory %s unavailable: %w", b.root, err)
	}
	return nil
}

func (b *fsBackend) tableDir(name string) string {
	return filepath.Join(b.root, sanitizeIdent(name))
}

func (b *fsBackend) GetTable(name string, flags OpenFlags) (Table, error) {
	if err := validateTableName(name); err != nil {
		return nil, err
	}
	dir := b.tableDir(name)

	_, err := os.Stat(dir)
	switch {
	case err == nil:
		if flags.has(Exclusive) {
			return nil, Exists
		}
	case os.IsNotExist(err):
		if !flags.has(Create) {
			return nil, NotFound
		}
		if mkErr := os.MkdirAll(dir, 0o700); mkErr != nil {
			return nil, fmt.Errorf("durastore: creating table directory: %w", mkErr)
		}
	default:
		return nil, err
	}

	b.refs.acquire(name)
	return &fsTable{name: name, dir: dir, backend: b}, nil
}

func (b *fsBackend) DelTable(name string) error {
	if b.refs.count(name) > 0 {
		return Busy
	}
	dir := b.tableDir(name)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return NotFound
	}
	return os.RemoveAll(dir)
}

func (b *fsBackend) GetTableNames() ([]string, error) {
	entries, err := ioutil.ReadDir(b.root)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

func (b *fsBackend) BeginTransaction() error     { return nil }
func (b *fsBackend) EndTransaction(_ bool) error { return nil }
func (b *fsBackend) AuxTablesAvailable() bool    { return false }

func (b *fsBackend) Close() error {
	if leaks := b.refs.leaks(); len(leaks) > 0 {
		b.log.WithField("tables", leaks).Warn("closing durastore with open table references")
	}
	return nil
}

// fsTable addresses one table's directory; each key is stored as a file
// named by the key's hex encoding, written via a temp-file-then-rename to
// avoid torn writes on crash.
type fsTable struct {
	name    string
	dir     string
	backend *fsBackend
	closed  bool
}

func (t *fsTable) Name() string { return t.name }

func (t *fsTable) keyPath(key []byte) string {
	return filepath.Join(t.dir, hex.EncodeToString(key))
}

func (t *fsTable) Get(key []byte) ([]byte, Status, error) {
	data, err := ioutil.ReadFile(t.keyPath(key))
	if os.IsNotExist(err) {
		return nil, NotFound, nil
	}
	if err != nil {
		return nil, ERR, err
	}
	return data, OK, nil
}

func (t *fsTable) GetTyped(key []byte, alloc Allocator) (uint64, interface{ UnmarshalBinary([]byte) error }, Status, error) {
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

func (t *fsTable) Put(key []byte, typeCode uint64, value []byte, flags OpenFlags) (Status, error) {
	if len(key) > 255 {
		return ERR, fmt.Errorf("durastore: key longer than 255 bytes")
	}

	payload := value
	if flags.has(MultiType) {
		payload = append(encodeSDNV(typeCode), value...)
	}

	path := t.keyPath(key)
	tmp := path + ".tmp"
	if err := ioutil.WriteFile(tmp, payload, 0o600); err != nil {
		return ERR, err
	}
	if err := os.Rename(tmp, path); err != nil {
		return ERR, err
	}
	return OK, nil
}

func (t *fsTable) Del(key []byte) (Status, error) {
	err := os.Remove(t.keyPath(key))
	if os.IsNotExist(err) {
		return NotFound, nil
	}
	if err != nil {
		return ERR, err
	}
	return OK, nil
}

func (t *fsTable) Size() (int, error) {
	entries, err := ioutil.ReadDir(t.dir)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, e := range entries {
		if !e.IsDir() {
			n++
		}
	}
	return n, nil
}

func (t *fsTable) KeyExists(key []byte) (bool, error) {
	_, err := os.Stat(t.keyPath(key))
	if os.IsNotExist(err) {
		return false, nil
	}
	return err == nil, err
}

func (t *fsTable) Iterate() (Iterator, error) {
	entries, err := ioutil.ReadDir(t.dir)
	if err != nil {
		return nil, err
	}

	var keys [][]byte
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		k, derr := hex.DecodeString(e.Name())
		if derr != nil {
			continue
		}
		keys = append(keys, k)
	}
	return &fsIterator{table: t, keys: keys, pos: -1}, nil
}

func (t *fsTable) Close() error {
	if t.closed {
		return nil
	}
	t.closed = true
	t.backend.refs.release(t.name)
	return nil
}

type fsIterator struct {
	table *fsTable
	keys  [][]byte
	pos   int
	err   error
}

func (it *fsIterator) Next() bool {
	it.pos++
	return it.pos < len(it.keys)
}

func (it *fsIterator) Key() []byte {
	if it.pos < 0 || it.pos >= len(it.keys) {
		return nil
	}
	return it.keys[it.pos]
}

func (it *fsIterator) Value() []byte {
	if it.pos < 0 || it.pos >= len(it.keys) {
		return nil
	}
	data, err := ioutil.ReadFile(it.table.keyPath(it.keys[it.pos]))
	if err != nil {
		it.err = err
		return nil
	}
	return data
}

func (it *fsIterator) Err() error   { return it.err }
func (it *fsIterator) Close() error { return nil }
