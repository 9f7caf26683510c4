// Copyright 2023 The go-larpix Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// larpix-daq runs a one-shot LArPix acquisition: it opens the FTDI
// adapter, configures the chips and records the raw byte stream.
//
// Chip configurations come either from JSON files (-cfg, repeatable as
// chip=file pairs) or from the conditions database (-setup).
//
// Usage: larpix-daq [OPTIONS]
//
// Example:
//
//	$> larpix-daq -chips 5,6 -t 10s -o run_0042.raw
//	$> larpix-daq -chips 5 -cfg 5=chip5.json -t 1m -o run_0043.raw
//	$> larpix-daq -setup BENCH2023_0 -db larpix -t 1m -o run_0044.raw
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"time"

	"github.com/go-larpix/larpix/cfg"
	"github.com/go-larpix/larpix/conddb"
	"github.com/go-larpix/larpix/daq"
)

func main() {
	log.SetPrefix("larpix-daq: ")
	log.SetFlags(0)

	var (
		chips = flag.String("chips", "", "comma-separated chip IDs to configure")
		cfgs  chipFiles
		setup = flag.String("setup", "", "bench setup name in the conditions db")
		dbnm  = flag.String("db", "larpix", "conditions database name")
		state = flag.String("state", "", "path to the register cache db")
		out   = flag.String("o", "out.raw", "path to output raw file")
		dur   = flag.Duration("t", 10*time.Second, "acquisition duration")
	)
	flag.Var(&cfgs, "cfg", "chip=file JSON configuration (may be repeated)")

	flag.Usage = func() {
		fmt.Printf(`larpix-daq runs a one-shot LArPix acquisition.

Usage: larpix-daq [OPTIONS]

Example:

 $> larpix-daq -chips 5,6 -t 10s -o run_0042.raw
 $> larpix-daq -chips 5 -cfg 5=chip5.json -t 1m -o run_0043.raw
 $> larpix-daq -setup BENCH2023_0 -db larpix -t 1m -o run_0044.raw

`)
		flag.PrintDefaults()
	}

	flag.Parse()

	err := run(*chips, cfgs, *setup, *dbnm, *state, *out, *dur)
	if err != nil {
		log.Fatalf("%+v", err)
	}
}

// chipFiles collects repeated chip=file flags.
type chipFiles map[uint8]string

func (cf *chipFiles) String() string {
	if cf == nil || *cf == nil {
		return ""
	}
	var elems []string
	for chip, fname := range *cf {
		elems = append(elems, fmt.Sprintf("%d=%s", chip, fname))
	}
	return strings.Join(elems, ",")
}

func (cf *chipFiles) Set(v string) error {
	if *cf == nil {
		*cf = make(map[uint8]string)
	}
	i := strings.Index(v, "=")
	if i < 0 {
		return fmt.Errorf("invalid chip=file value %q", v)
	}
	chip, err := strconv.ParseUint(v[:i], 10, 8)
	if err != nil {
		return fmt.Errorf("invalid chip ID in %q: %w", v, err)
	}
	(*cf)[uint8(chip)] = v[i+1:]
	return nil
}

func run(chips string, cfgs chipFiles, setup, dbname, state, out string, dur time.Duration) error {
	configs, err := assemble(chips, cfgs, setup, dbname)
	if err != nil {
		return err
	}
	if len(configs) == 0 {
		return fmt.Errorf("no chip to configure (use -chips, -cfg or -setup)")
	}

	ctl, err := daq.NewController(daq.VendorID, daq.ProductID, nil)
	if err != nil {
		return fmt.Errorf("could not open controller: %w", err)
	}
	defer ctl.Close()

	if state != "" {
		st, err := daq.OpenState(state)
		if err != nil {
			return fmt.Errorf("could not open register cache: %w", err)
		}
		ctl.UseState(st)
	}

	for chip, c := range configs {
		err = ctl.WriteConfig(chip, c)
		if err != nil {
			return fmt.Errorf("could not configure chip %d: %w", chip, err)
		}
	}

	f, err := os.Create(out)
	if err != nil {
		return fmt.Errorf("could not create %q: %w", out, err)
	}
	defer f.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	log.Printf("acquiring to %q for %v...", out, dur)
	n, err := ctl.Run(ctx, f, dur)
	if err != nil {
		return fmt.Errorf("could not acquire: %w", err)
	}
	log.Printf("acquired %d bytes", n)

	err = f.Close()
	if err != nil {
		return fmt.Errorf("could not close %q: %w", out, err)
	}
	return nil
}

// assemble builds the chip->configuration table from the command line.
func assemble(chips string, cfgs chipFiles, setup, dbname string) (map[uint8]cfg.Config, error) {
	configs := make(map[uint8]cfg.Config)

	if setup != "" {
		db, err := conddb.Open(dbname)
		if err != nil {
			return nil, fmt.Errorf("could not open conditions db: %w", err)
		}
		defer db.Close()

		recs, err := db.ChipConfigs(context.Background(), setup)
		if err != nil {
			return nil, fmt.Errorf("could not retrieve configs for setup %q: %w", setup, err)
		}
		for _, rec := range recs {
			c, err := rec.Decode()
			if err != nil {
				return nil, err
			}
			configs[rec.ID] = c
		}
	}

	if chips != "" {
		for _, tok := range strings.Split(chips, ",") {
			chip, err := strconv.ParseUint(strings.TrimSpace(tok), 10, 8)
			if err != nil {
				return nil, fmt.Errorf("invalid chip ID %q: %w", tok, err)
			}
			if _, ok := configs[uint8(chip)]; !ok {
				configs[uint8(chip)] = cfg.Default()
			}
		}
	}

	for chip, fname := range cfgs {
		c, err := load(fname)
		if err != nil {
			return nil, err
		}
		configs[chip] = c
	}

	return configs, nil
}

func load(fname string) (cfg.Config, error) {
	var c cfg.Config

	f, err := os.Open(fname)
	if err != nil {
		return c, fmt.Errorf("could not open %q: %w", fname, err)
	}
	defer f.Close()

	err = json.NewDecoder(f).Decode(&c)
	if err != nil {
		return c, fmt.Errorf("could not decode %q: %w", fname, err)
	}
	return c, nil
}
