// SPDX-FileCopyrightText: 2026 bpcore contributors
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Package bundlestore persists aggregate custody signal checkpoints across
// restarts in a badgerhold-backed store, narrowed to the one record kind the custody
// signal engine needs durable: a PendingACS snapshot keyed by its
// accumulation bucket key.
package bundlestore

import (
	"os"
	"path"

	log "github.com/sirupsen/logrus"

	"github.com/timshannon/badgerhold"

	"github.com/dtn7/bpcore/pkg/acs"
)

const dirBadger = "acsdb"

// Store is a badgerhold-backed checkpoint table for pending aggregate
// custody signals. It satisfies acs.Persister.
type Store struct {
	bh *badgerhold.Store
}

// NewStore opens or creates a Store rooted at dir.
func NewStore(dir string) (*Store, error) {
	badgerDir := path.Join(dir, dirBadger)

	opts := badgerhold.DefaultOptions
	opts.Dir = badgerDir
	opts.ValueDir = badgerDir
	opts.Logger = log.StandardLogger()
	opts.Options.ValueLogFileSize = 1<<28 - 1

	if err := os.MkdirAll(badgerDir, 0o700); err != nil {
		return nil, err
	}

	bh, err := badgerhold.Open(opts)
	if err != nil {
		return nil, err
	}

	return &Store{bh: bh}, nil
}

// Close the Store. It must not be used afterwards.
func (s *Store) Close() error {
	return s.bh.Close()
}

// acsRecord is the badgerhold-persisted form of an acs.Snapshot; badgerhold
// needs an exported, taggable key field distinct from the snapshot type
// acs.Snapshot exposes to its own callers.
type acsRecord struct {
	Key string `badgerhold:"key"`
	acs.Snapshot
}

// SaveACS persists (inserting or overwriting) one pending signal's state.
func (s *Store) SaveACS(snap acs.Snapshot) error {
	rec := acsRecord{Key: snap.Key, Snapshot: snap}

	if err := s.bh.Upsert(rec.Key, rec); err != nil {
		log.WithFields(log.Fields{
			"key":   rec.Key,
			"error": err,
		}).Warn("failed to checkpoint aggregate custody signal")
		return err
	}
	return nil
}

// DeleteACS removes a checkpointed pending signal, called once its
// accumulated entries have been flushed into a sent bundle.
func (s *Store) DeleteACS(key string) error {
	err := s.bh.Delete(key, acsRecord{})
	if err == badgerhold.ErrNotFound {
		return nil
	}
	return err
}

// LoadAllACS returns every checkpointed pending signal, for the engine to
// restore on startup.
func (s *Store) LoadAllACS() ([]acs.Snapshot, error) {
	var recs []acsRecord
	if err := s.bh.Find(&recs, nil); err != nil {
		return nil, err
	}

	snaps := make([]acs.Snapshot, len(recs))
	for i, r := range recs {
		snaps[i] = r.Snapshot
	}
	return snaps, nil
}
