// Copyright 2023 The go-larpix Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command larpix-sh is an interactive shell to inspect and edit LArPix
// chip configurations at the register level.
//
// Example:
//
//	$> larpix-sh
//	larpix> load chip.json
//	larpix> get 32
//	reg[32] = 16
//	larpix> set 32 28
//	larpix> packets 5
//	config write{chip=5, reg=0, value=16, parity=1}
//	[...]
//	larpix> save chip.json
//	larpix> quit
package main // import "github.com/go-larpix/larpix/cmd/larpix-sh"

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/peterh/liner"

	"github.com/go-larpix/larpix/cfg"
)

func main() {
	log.SetPrefix("larpix-sh: ")
	log.SetFlags(0)

	err := run(os.Stdout)
	if err != nil {
		log.Fatalf("%+v", err)
	}
}

func historyFile() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "larpix-sh.history")
}

func run(w io.Writer) error {
	term := liner.NewLiner()
	defer term.Close()

	term.SetCtrlCAborts(true)

	hist := historyFile()
	if hist != "" {
		if f, err := os.Open(hist); err == nil {
			_, _ = term.ReadHistory(f)
			f.Close()
		}
	}
	defer func() {
		if hist == "" {
			return
		}
		f, err := os.Create(hist)
		if err != nil {
			return
		}
		defer f.Close()
		_, _ = term.WriteHistory(f)
	}()

	sh := shell{cfg: cfg.Default(), w: w}
	for {
		line, err := term.Prompt("larpix> ")
		switch {
		case errors.Is(err, io.EOF), errors.Is(err, liner.ErrPromptAborted):
			fmt.Fprintf(w, "\n")
			return nil
		case err != nil:
			return fmt.Errorf("could not read line: %w", err)
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		term.AppendHistory(line)

		quit, err := sh.exec(line)
		if err != nil {
			log.Printf("%+v", err)
			continue
		}
		if quit {
			return nil
		}
	}
}

type shell struct {
	cfg cfg.Config
	w   io.Writer
}

func (sh *shell) exec(line string) (bool, error) {
	args := strings.Fields(line)
	switch cmd := args[0]; cmd {
	case "quit", "exit":
		return true, nil

	case "help":
		sh.help()
		return false, nil

	case "load":
		if len(args) != 2 {
			return false, fmt.Errorf("usage: load FILE")
		}
		return false, sh.load(args[1])

	case "save":
		if len(args) != 2 {
			return false, fmt.Errorf("usage: save FILE")
		}
		return false, sh.save(args[1])

	case "reset":
		sh.cfg = cfg.Default()
		return false, nil

	case "get":
		if len(args) != 2 {
			return false, fmt.Errorf("usage: get ADDR")
		}
		return false, sh.get(args[1])

	case "set":
		if len(args) != 3 {
			return false, fmt.Errorf("usage: set ADDR VALUE")
		}
		return false, sh.set(args[1], args[2])

	case "regs":
		for addr := 0; addr < cfg.NumRegisters; addr++ {
			v, err := sh.cfg.RegData(uint8(addr))
			if err != nil {
				return false, err
			}
			fmt.Fprintf(sh.w, "reg[%2d] = %d\n", addr, v)
		}
		return false, nil

	case "packets":
		if len(args) != 2 {
			return false, fmt.Errorf("usage: packets CHIP")
		}
		chip, err := strconv.ParseUint(args[1], 10, 8)
		if err != nil {
			return false, fmt.Errorf("invalid chip ID %q: %w", args[1], err)
		}
		for _, p := range sh.cfg.RegPackets(uint8(chip)) {
			fmt.Fprintf(sh.w, "%v\n", p)
		}
		return false, nil

	default:
		return false, fmt.Errorf("unknown command %q (try \"help\")", cmd)
	}
}

func (sh *shell) help() {
	fmt.Fprintf(sh.w, `commands:
  help           display this help
  load FILE      load a JSON configuration
  save FILE      save the configuration as JSON
  reset          reset to the default configuration
  get ADDR       display one configuration register
  set ADDR VALUE set one configuration register
  regs           display all configuration registers
  packets CHIP   display the register packets for chip CHIP
  quit           quit larpix-sh
`)
}

func (sh *shell) load(fname string) error {
	f, err := os.Open(fname)
	if err != nil {
		return fmt.Errorf("could not open %q: %w", fname, err)
	}
	defer f.Close()

	var c cfg.Config
	err = json.NewDecoder(f).Decode(&c)
	if err != nil {
		return fmt.Errorf("could not decode %q: %w", fname, err)
	}
	sh.cfg = c
	return nil
}

func (sh *shell) save(fname string) error {
	f, err := os.Create(fname)
	if err != nil {
		return fmt.Errorf("could not create %q: %w", fname, err)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	err = enc.Encode(sh.cfg)
	if err != nil {
		return fmt.Errorf("could not encode %q: %w", fname, err)
	}
	return f.Close()
}

func (sh *shell) get(addr string) error {
	a, err := strconv.ParseUint(addr, 10, 8)
	if err != nil {
		return fmt.Errorf("invalid register address %q: %w", addr, err)
	}
	v, err := sh.cfg.RegData(uint8(a))
	if err != nil {
		return err
	}
	fmt.Fprintf(sh.w, "reg[%d] = %d\n", a, v)
	return nil
}

func (sh *shell) set(addr, val string) error {
	a, err := strconv.ParseUint(addr, 10, 8)
	if err != nil {
		return fmt.Errorf("invalid register address %q: %w", addr, err)
	}
	v, err := strconv.ParseUint(val, 10, 8)
	if err != nil {
		return fmt.Errorf("invalid register value %q: %w", val, err)
	}
	return sh.cfg.SetRegData(uint8(a), uint8(v))
}
