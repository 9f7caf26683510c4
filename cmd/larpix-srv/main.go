// Copyright 2023 The go-larpix Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command larpix-srv starts a TDAQ server driving a LArPix chain.
//
// The trailing arguments are the chip IDs on the chain:
//
//	$> larpix-srv [tdaq flags] 5 6 7
package main // import "github.com/go-larpix/larpix/cmd/larpix-srv"

import (
	"context"
	"log"
	"os"
	"strconv"

	"github.com/go-daq/tdaq"
	"github.com/go-daq/tdaq/flags"

	"github.com/go-larpix/larpix/daq"
)

func main() {
	cmd := flags.New()

	var chips []uint8
	for _, arg := range cmd.Args {
		chip, err := strconv.ParseUint(arg, 10, 8)
		if err != nil {
			log.Fatalf("invalid chip ID %q: %+v", arg, err)
		}
		chips = append(chips, uint8(chip))
	}
	if len(chips) == 0 {
		chips = []uint8{0}
	}

	dev := daq.NewServer(cmd.Name, chips...)
	if path, ok := os.LookupEnv("LARPIX_STATE"); ok {
		dev.UseState(path)
	}

	srv := tdaq.New(cmd, os.Stdout)
	srv.CmdHandle("/config", dev.OnConfig)
	srv.CmdHandle("/init", dev.OnInit)
	srv.CmdHandle("/reset", dev.OnReset)
	srv.CmdHandle("/start", dev.OnStart)
	srv.CmdHandle("/stop", dev.OnStop)
	srv.CmdHandle("/quit", dev.OnQuit)

	srv.OutputHandle("/adc", dev.ADC)

	srv.RunHandle(dev.Run)

	err := srv.Run(context.Background())
	if err != nil {
		log.Panicf("error: %+v", err)
	}
}
