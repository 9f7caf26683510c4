// Copyright 2023 The go-larpix Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package conddb holds types to retrieve conditions and chip
// configuration data from the LArPix bench database.
package conddb // import "github.com/go-larpix/larpix/conddb"

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"

	"github.com/go-larpix/larpix/cfg"
)

const (
	host = "localhost"
)

var (
	usr = "username"
	pwd = "s3cr3t"

	drvName = "mysql"
)

// DB exposes convenience methods to easily retrieve conditions data
// and chip configuration data from the LArPix database.
type DB struct {
	db   *sql.DB
	name string // name of the LArPix database
}

// Open opens a connection to the LArPix database dbname.
func Open(dbname string) (*DB, error) {
	db, err := sql.Open(drvName, dsn(dbname))
	if err != nil {
		return nil, fmt.Errorf("conddb: could not open %q db: %w", dbname, err)
	}

	err = ping(db, dbname)
	if err != nil {
		return nil, fmt.Errorf("conddb: could not ping %q db: %w", dbname, err)
	}

	return &DB{db: db, name: dbname}, nil
}

func dsn(db string) string {
	return fmt.Sprintf("%s:%s@tcp(%s)/%s", usr, pwd, host, db)
}

func ping(db *sql.DB, dbname string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := db.PingContext(ctx)
	if err != nil {
		return fmt.Errorf("conddb: could not ping %q db: %w", dbname, err)
	}

	return nil
}

func (db *DB) Close() error {
	return db.db.Close()
}

func (db *DB) QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error) {
	return db.db.QueryContext(ctx, query, args...)
}

// LastSetup returns the name of the most recent bench setup.
func (db *DB) LastSetup(ctx context.Context) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	setup := ""
	rows, err := db.db.QueryContext(
		ctx,
		"SELECT name FROM setups ORDER BY datetime DESC LIMIT 1",
	)
	if err != nil {
		return setup, fmt.Errorf("conddb: could not query last setup: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		err = rows.Scan(&setup)
		if err != nil {
			return setup, fmt.Errorf("conddb: could not get last setup value: %w", err)
		}
	}

	if err := rows.Err(); err != nil {
		return setup, fmt.Errorf("conddb: could not scan db for last setup: %w", err)
	}

	if err := ctx.Err(); err != nil {
		return setup, fmt.Errorf("conddb: context error while retrieving last setup: %w", err)
	}

	return setup, nil
}

// LastRunNumber returns the number of the most recent acquisition run.
func (db *DB) LastRunNumber(ctx context.Context) (uint32, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var run uint32
	rows, err := db.db.QueryContext(
		ctx,
		"SELECT number FROM runs ORDER BY datetime DESC LIMIT 1",
	)
	if err != nil {
		return run, fmt.Errorf("conddb: could not query run number: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		err = rows.Scan(&run)
		if err != nil {
			return run, fmt.Errorf("conddb: could not get run number value: %w", err)
		}
	}

	if err := rows.Err(); err != nil {
		return run, fmt.Errorf("conddb: could not scan db for run number: %w", err)
	}

	if err := ctx.Err(); err != nil {
		return run, fmt.Errorf("conddb: context error while retrieving run number: %w", err)
	}

	return run, nil
}

// ChipConfig is one chip configuration record of a bench setup.
type ChipConfig struct {
	ID     uint8  // chip ID on the daisy chain
	Config []byte // JSON configuration record
}

// Decode unmarshals the JSON configuration record.
func (c ChipConfig) Decode() (cfg.Config, error) {
	var out cfg.Config
	err := json.Unmarshal(c.Config, &out)
	if err != nil {
		return out, fmt.Errorf("conddb: could not decode config of chip %d: %w", c.ID, err)
	}
	return out, nil
}

// ChipConfigs returns the chip configuration records of the given
// setup, one per chip on the chain.
func (db *DB) ChipConfigs(ctx context.Context, setup string) ([]ChipConfig, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var (
		out []ChipConfig
		err error
	)

	rows, err := db.db.QueryContext(
		ctx,
		`
SELECT chips.chip_id, chips.config FROM chips
JOIN setup_chips ON chips.identifier=setup_chips.chip
JOIN setups      ON setups.identifier=setup_chips.setup
WHERE (
	setups.name=?
)
`,
		setup,
	)
	if err != nil {
		return out, fmt.Errorf("conddb: could not run chip cfg query: %w", err)
	}
	defer rows.Close()

	i := 0
	for rows.Next() {
		var chip ChipConfig
		err = rows.Scan(&chip.ID, &chip.Config)
		if err != nil {
			return out, fmt.Errorf("conddb: could not scan row %d for chip cfg: %w", i, err)
		}
		i++

		out = append(out, chip)
	}

	if err := rows.Err(); err != nil {
		return out, fmt.Errorf("conddb: could not scan db for chip cfg: %w", err)
	}

	if err := ctx.Err(); err != nil {
		return out, fmt.Errorf("conddb: context error while retrieving chip cfg: %w", err)
	}

	return out, nil
}
