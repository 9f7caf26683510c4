// Copyright 2023 The go-larpix Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package daq

import (
	"encoding/json"

	"go.etcd.io/bbolt"
	"golang.org/x/xerrors"

	"github.com/go-larpix/larpix/cfg"
)

const stateBucket = "larpix-cfg"

// State persists the last configuration written to each chip, keyed by
// chip ID, so rewrites only carry the registers that changed.
type State struct {
	db *bbolt.DB
}

// OpenState opens (or creates) the register cache at path.
func OpenState(path string) (*State, error) {
	db, err := bbolt.Open(path, 0644, nil)
	if err != nil {
		return nil, xerrors.Errorf("daq: could not open state db %q: %w", path, err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(stateBucket))
		return err
	})
	if err != nil {
		db.Close()
		return nil, xerrors.Errorf("daq: could not create state bucket: %w", err)
	}
	return &State{db: db}, nil
}

func (st *State) Close() error {
	return st.db.Close()
}

// Store records c as the last configuration written to chip.
func (st *State) Store(chip uint8, c cfg.Config) error {
	raw, err := json.Marshal(c)
	if err != nil {
		return xerrors.Errorf("daq: could not marshal state for chip %d: %w", chip, err)
	}
	err = st.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(stateBucket)).Put([]byte{chip}, raw)
	})
	if err != nil {
		return xerrors.Errorf("daq: could not store state for chip %d: %w", chip, err)
	}
	return nil
}

// Load returns the last configuration stored for chip, or nil if the
// chip was never written to.
func (st *State) Load(chip uint8) (*cfg.Config, error) {
	var c *cfg.Config
	err := st.db.View(func(tx *bbolt.Tx) error {
		raw := tx.Bucket([]byte(stateBucket)).Get([]byte{chip})
		if raw == nil {
			return nil
		}
		c = new(cfg.Config)
		return json.Unmarshal(raw, c)
	})
	if err != nil {
		return nil, xerrors.Errorf("daq: could not load state for chip %d: %w", chip, err)
	}
	return c, nil
}
