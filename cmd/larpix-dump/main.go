// Copyright 2023 The go-larpix Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// larpix-dump decodes and displays raw LArPix acquisition files.
//
// Usage: larpix-dump [OPTIONS] FILE1 [FILE2 [FILE3 ...]]
//
// Example:
//
//	$> larpix-dump ./testdata/run_0042.raw
//	=== ./testdata/run_0042.raw (channel 1) ===
//	data{chip=5, channel=12, timestamp=1048833, adc=417, fifo-half=false, fifo-full=false, parity=1}
//	data{chip=5, channel=3, timestamp=1049102, adc=388, fifo-half=false, fifo-full=false, parity=0} INVALID
//	config read{chip=5, reg=32, value=16, parity=1}
//	[...]
//	packets: 3 (1 invalid)
package main

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/go-larpix/larpix/uart"
)

func main() {
	log.SetPrefix("larpix-dump: ")
	log.SetFlags(0)

	var (
		ch   = flag.Int("ch", 1, "adapter pin to decode")
		baud = flag.Int("baud", uart.BitsPerBaud, "samples per logical bit")
	)

	flag.Usage = func() {
		fmt.Printf(`larpix-dump decodes and displays raw LArPix acquisition files.

Usage: larpix-dump [OPTIONS] FILE1 [FILE2 [FILE3 ...]]

Example:

 $> larpix-dump ./testdata/run_0042.raw
 === ./testdata/run_0042.raw (channel 1) ===
 data{chip=5, channel=12, timestamp=1048833, adc=417, fifo-half=false, fifo-full=false, parity=1}
 data{chip=5, channel=3, timestamp=1049102, adc=388, fifo-half=false, fifo-full=false, parity=0} INVALID
 config read{chip=5, reg=32, value=16, parity=1}
 [...]
 packets: 3 (1 invalid)

`)
		flag.PrintDefaults()
	}

	flag.Parse()

	if flag.NArg() == 0 {
		flag.Usage()
		log.Fatalf("missing path to input raw file")
	}

	for _, fname := range flag.Args() {
		err := process(os.Stdout, fname, *ch, *baud)
		if err != nil {
			log.Fatalf("could not dump file %q: %+v", fname, err)
		}
	}
}

func process(w io.Writer, fname string, ch, baud int) error {
	wbuf := bufio.NewWriter(w)
	defer wbuf.Flush()

	raw, err := os.ReadFile(fname)
	if err != nil {
		return fmt.Errorf("could not read %q: %w", fname, err)
	}

	if ch < 0 || ch > 7 {
		return fmt.Errorf("invalid channel %d", ch)
	}

	bits := make([]uint8, len(raw))
	for i, v := range raw {
		bits[i] = v >> uint(ch) & 1
	}

	pkts, err := uart.ScanBits(bits, baud)
	if err != nil {
		return fmt.Errorf("could not scan %q: %w", fname, err)
	}

	fmt.Fprintf(wbuf, "=== %s (channel %d) ===\n", fname, ch)
	bad := 0
	for _, p := range pkts {
		if p.CheckParity() {
			fmt.Fprintf(wbuf, "%v\n", p)
			continue
		}
		bad++
		fmt.Fprintf(wbuf, "%v INVALID\n", p)
	}
	fmt.Fprintf(wbuf, "packets: %d (%d invalid)\n", len(pkts), bad)

	return nil
}
