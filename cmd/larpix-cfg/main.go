// Copyright 2023 The go-larpix Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// larpix-cfg generates and inspects LArPix chip configuration files.
//
// Usage: larpix-cfg [OPTIONS] [FILE1 [FILE2 ...]]
//
// Example:
//
//	$> larpix-cfg -gen -o chip.json
//	$> larpix-cfg chip.json
//	larpix-cfg: chip.json: OK (63 registers)
//	$> larpix-cfg -regs -chip 5 chip.json
//	config write{chip=5, reg=0, value=16, parity=1}
//	config write{chip=5, reg=1, value=16, parity=0}
//	[...]
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/go-larpix/larpix/cfg"
)

func main() {
	log.SetPrefix("larpix-cfg: ")
	log.SetFlags(0)

	var (
		gen  = flag.Bool("gen", false, "generate a default configuration file")
		out  = flag.String("o", "", "path to output file (default stdout)")
		regs = flag.Bool("regs", false, "display the register packets a configuration encodes to")
		chip = flag.Uint("chip", 0, "chip ID used with -regs")
	)

	flag.Usage = func() {
		fmt.Printf(`larpix-cfg generates and inspects LArPix chip configuration files.

Usage: larpix-cfg [OPTIONS] [FILE1 [FILE2 ...]]

Example:

 $> larpix-cfg -gen -o chip.json
 $> larpix-cfg chip.json
 larpix-cfg: chip.json: OK (63 registers)
 $> larpix-cfg -regs -chip 5 chip.json

`)
		flag.PrintDefaults()
	}

	flag.Parse()

	if *gen {
		err := generate(*out)
		if err != nil {
			log.Fatalf("could not generate configuration: %+v", err)
		}
		return
	}

	if flag.NArg() == 0 {
		flag.Usage()
		log.Fatalf("missing path to input configuration file")
	}

	for _, fname := range flag.Args() {
		err := process(fname, *regs, uint8(*chip))
		if err != nil {
			log.Fatalf("could not process %q: %+v", fname, err)
		}
	}
}

func generate(out string) error {
	w := os.Stdout
	if out != "" {
		f, err := os.Create(out)
		if err != nil {
			return fmt.Errorf("could not create %q: %w", out, err)
		}
		defer f.Close()
		w = f
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	err := enc.Encode(cfg.Default())
	if err != nil {
		return fmt.Errorf("could not encode configuration: %w", err)
	}

	if out != "" {
		log.Printf("wrote default configuration to %q", out)
	}
	return nil
}

func process(fname string, regs bool, chip uint8) error {
	c, err := load(fname)
	if err != nil {
		return err
	}

	pkts := c.RegPackets(chip)

	// the register image must survive a read back.
	var chk cfg.Config
	err = chk.FromRegPackets(pkts)
	if err != nil {
		return fmt.Errorf("configuration does not round trip: %w", err)
	}

	if !regs {
		log.Printf("%s: OK (%d registers)", fname, len(pkts))
		return nil
	}

	for _, p := range pkts {
		fmt.Printf("%v\n", p)
	}
	return nil
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
