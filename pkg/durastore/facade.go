// SPDX-FileCopyrightText: 2026 bpcore contributors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package durastore

import (
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"
	"sync"

	"github.com/sirupsen/logrus"
)

const cleanFileName = ".ds_clean"

// Facade is the process-wide entry point to a single configured back-end.
// It owns the transaction batching policy (open/commit tracking, the
// nondurable-transaction counter and its threshold) on top of whichever
// Backend Config.Type selects, and the clean-shutdown marker file that
// lets the next startup tell a clean close from a crash.
type Facade struct {
	mu      sync.Mutex
	cfg     Config
	backend Backend
	log     *logrus.Entry

	txOpen     bool
	nondurable int

	cleanPath string
}

// Open initializes the configured back-end and reports, via crashed,
// whether the previous run exited uncleanly: LeaveCleanFile writes a
// marker file on a clean Close and removes it immediately on Open, so its
// absence here means the prior process never got to Close.
func Open(cfg Config) (facade *Facade, crashed bool, err error) {
	if err := cfg.Validate(); err != nil {
		return nil, false, err
	}

	backend, err := NewBackend(cfg)
	if err != nil {
		return nil, false, fmt.Errorf("durastore: selecting backend: %w", err)
	}
	if err := backend.Init(cfg); err != nil {
		return nil, false, fmt.Errorf("durastore: initializing backend: %w", err)
	}

	f := &Facade{
		cfg:     cfg,
		backend: backend,
		log:     logrus.WithField("component", "durastore-facade"),
	}

	if cfg.LeaveCleanFile && cfg.DBDir != "" {
		f.cleanPath = filepath.Join(cfg.DBDir, cleanFileName)
		if _, statErr := os.Stat(f.cleanPath); statErr == nil {
			crashed = false
			_ = os.Remove(f.cleanPath)
		} else if os.IsNotExist(statErr) {
			crashed = true
		}
	}

	if crashed {
		f.log.Warn("no clean-shutdown marker found, previous run may have crashed")
	}

	return f, crashed, nil
}

// GetTable opens a table through the underlying backend.
func (f *Facade) GetTable(name string, flags OpenFlags) (Table, error) {
	return f.backend.GetTable(name, flags)
}

// DelTable removes a table through the underlying backend.
func (f *Facade) DelTable(name string) error {
	return f.backend.DelTable(name)
}

// GetTableNames lists every table known to the underlying backend.
func (f *Facade) GetTableNames() ([]string, error) {
	return f.backend.GetTableNames()
}

// AuxTablesAvailable reports whether the configured backend supports
// auxiliary-column SQL projection.
func (f *Facade) AuxTablesAvailable() bool {
	return f.backend.AuxTablesAvailable()
}

// BeginTransaction starts a batch of writes, a no-op if one is already
// open. Calls are not counted: the first EndTransaction after any number
// of BeginTransaction calls closes the batch.
func (f *Facade) BeginTransaction() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.txOpen {
		return nil
	}
	if err := f.backend.BeginTransaction(); err != nil {
		return err
	}
	f.txOpen = true
	return nil
}

// EndTransaction closes the current transaction batch. Once the number of
// nondurable commits since the last durable one reaches
// Config.MaxNondurableTransactions, the commit is forced durable and the
// counter resets; a MaxNondurableTransactions of 0 makes every commit
// durable.
func (f *Facade) EndTransaction() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.txOpen {
		return nil
	}

	f.nondurable++
	durable := f.cfg.MaxNondurableTransactions <= 0 || f.nondurable >= f.cfg.MaxNondurableTransactions

	if err := f.backend.EndTransaction(durable); err != nil {
		return err
	}

	f.txOpen = false
	if durable {
		f.nondurable = 0
	}
	return nil
}

// Close ends any open transaction durably, closes the backend, and writes
// the clean-shutdown marker if configured.
func (f *Facade) Close() error {
	f.mu.Lock()
	if f.txOpen {
		if err := f.backend.EndTransaction(true); err != nil {
			f.mu.Unlock()
			return err
		}
		f.txOpen = false
	}
	f.mu.Unlock()

	if err := f.backend.Close(); err != nil {
		return err
	}

	if f.cleanPath != "" {
		if err := ioutil.WriteFile(f.cleanPath, []byte{}, 0o600); err != nil {
			f.log.WithError(err).Warn("failed to write clean-shutdown marker")
		}
	}
	return nil
}
