// Copyright 2023 The go-larpix Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// larpix-hist histograms the data packets of raw LArPix acquisition
// files and saves the distributions to a YODA file.
//
// Usage: larpix-hist [OPTIONS] FILE1 [FILE2 [FILE3 ...]]
//
// Example:
//
//	$> larpix-hist -o hist.yoda ./testdata/run_0042.raw
//	larpix-hist: processed 12342 packets (11980 data)
//	larpix-hist: wrote hist.yoda
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"go-hep.org/x/hep/hbook"
	"go-hep.org/x/hep/hbook/yodacnv"

	"github.com/go-larpix/larpix/cfg"
	"github.com/go-larpix/larpix/uart"
)

func main() {
	log.SetPrefix("larpix-hist: ")
	log.SetFlags(0)

	var (
		out  = flag.String("o", "hist.yoda", "path to output YODA file")
		ch   = flag.Int("ch", 1, "adapter pin to decode")
		baud = flag.Int("baud", uart.BitsPerBaud, "samples per logical bit")
	)

	flag.Usage = func() {
		fmt.Printf(`larpix-hist histograms the data packets of raw LArPix acquisition files.

Usage: larpix-hist [OPTIONS] FILE1 [FILE2 [FILE3 ...]]

Example:

 $> larpix-hist -o hist.yoda ./testdata/run_0042.raw

`)
		flag.PrintDefaults()
	}

	flag.Parse()

	if flag.NArg() == 0 {
		flag.Usage()
		log.Fatalf("missing path to input raw file")
	}

	err := process(*out, *ch, *baud, flag.Args())
	if err != nil {
		log.Fatalf("%+v", err)
	}
}

func process(out string, ch, baud int, fnames []string) error {
	if ch < 0 || ch > 7 {
		return fmt.Errorf("invalid channel %d", ch)
	}

	var (
		hADC  = hbook.NewH1D(256, 0, 1024)
		hChan = hbook.NewH1D(cfg.NumChannels, 0, cfg.NumChannels)
		hTS   = hbook.NewH1D(256, 0, 1<<24)

		npkts int
		ndata int
	)
	hADC.Annotation()["name"] = "/larpix/adc"
	hChan.Annotation()["name"] = "/larpix/channel"
	hTS.Annotation()["name"] = "/larpix/timestamp"

	for _, fname := range fnames {
		raw, err := os.ReadFile(fname)
		if err != nil {
			return fmt.Errorf("could not read %q: %w", fname, err)
		}

		bits := make([]uint8, len(raw))
		for i, v := range raw {
			bits[i] = v >> uint(ch) & 1
		}

		pkts, err := uart.ScanBits(bits, baud)
		if err != nil {
			return fmt.Errorf("could not scan %q: %w", fname, err)
		}

		for _, p := range pkts {
			npkts++
			if p.Type() != uart.DataPacket || !p.CheckParity() {
				continue
			}
			ndata++
			hADC.Fill(float64(p.Dataword()), 1)
			hChan.Fill(float64(p.Channel()), 1)
			hTS.Fill(float64(p.Timestamp()), 1)
		}
	}

	f, err := os.Create(out)
	if err != nil {
		return fmt.Errorf("could not create %q: %w", out, err)
	}
	defer f.Close()

	err = yodacnv.Write(f, hADC, hChan, hTS)
	if err != nil {
		return fmt.Errorf("could not write YODA file %q: %w", out, err)
	}

	err = f.Close()
	if err != nil {
		return fmt.Errorf("could not close %q: %w", out, err)
	}

	log.Printf("processed %d packets (%d data)", npkts, ndata)
	log.Printf("wrote %s", out)
	return nil
}
