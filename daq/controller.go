// Copyright 2023 The go-larpix Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package daq

import (
	"context"
	"errors"
	"io"
	"log"
	"os"
	"time"

	"golang.org/x/xerrors"

	"github.com/go-larpix/larpix/cfg"
	"github.com/go-larpix/larpix/uart"
	"github.com/go-larpix/larpix/wave"
)

// Pin assignment on the bit-bang adapter.
const (
	mosiPin = 0 // host to chip
	misoPin = 1 // chip to host
)

// Controller drives one chain of LArPix chips through a bit-bang
// adapter.
type Controller struct {
	dev *device
	msg *log.Logger

	state *State // last-written register cache, may be nil
}

// NewController opens the adapter with the given USB identity.
// A nil msg logs to stdout.
func NewController(vid, pid uint16, msg *log.Logger) (*Controller, error) {
	if msg == nil {
		msg = log.New(os.Stdout, "larpix: ", 0)
	}
	dev, err := newDevice(vid, pid)
	if err != nil {
		return nil, xerrors.Errorf("daq: could not open adapter: %w", err)
	}
	return &Controller{dev: dev, msg: msg}, nil
}

// UseState attaches a persistent register cache. Subsequent
// configuration writes only carry the registers that changed since the
// last write to that chip.
func (ctl *Controller) UseState(st *State) {
	ctl.state = st
}

// Close releases the adapter and the register cache, if any.
func (ctl *Controller) Close() error {
	var err error
	if ctl.state != nil {
		err = ctl.state.Close()
		ctl.state = nil
	}
	if e := ctl.dev.close(); e != nil && err == nil {
		err = e
	}
	return err
}

// WriteConfig sends the configuration c to chip, one framed
// register-write packet at a time.
func (ctl *Controller) WriteConfig(chip uint8, c cfg.Config) error {
	pkts := c.RegPackets(chip)

	if ctl.state != nil {
		last, err := ctl.state.Load(chip)
		if err != nil {
			return xerrors.Errorf("daq: could not load cached state for chip %d: %w", chip, err)
		}
		if last != nil {
			pkts = diffPackets(last, pkts)
		}
	}

	for i := range pkts {
		err := ctl.send(&pkts[i])
		if err != nil {
			return xerrors.Errorf("daq: could not write register %d of chip %d: %w",
				pkts[i].Register(), chip, err,
			)
		}
	}
	ctl.msg.Printf("wrote %d register(s) to chip %d", len(pkts), chip)

	if ctl.state != nil {
		err := ctl.state.Store(chip, c)
		if err != nil {
			return xerrors.Errorf("daq: could not cache state for chip %d: %w", chip, err)
		}
	}
	return nil
}

// ReadConfig queries every configuration register of chip and decodes
// the replies. It blocks until all registers answered or ctx is done.
func (ctl *Controller) ReadConfig(ctx context.Context, chip uint8) (cfg.Config, error) {
	var c cfg.Config

	for _, pkt := range cfg.ReadRequests(chip) {
		err := ctl.send(&pkt)
		if err != nil {
			return c, xerrors.Errorf("daq: could not request register %d of chip %d: %w",
				pkt.Register(), chip, err,
			)
		}
	}

	var (
		got  = make(map[uint8]uart.Packet, cfg.NumRegisters)
		data wave.Data
		raw  = make([]byte, wave.Depth)
		tail []byte // partial frame carried across reads
	)
	for len(got) < cfg.NumRegisters {
		select {
		case <-ctx.Done():
			return c, xerrors.Errorf("daq: configuration read of chip %d interrupted: %w",
				chip, ctx.Err(),
			)
		default:
		}

		err := ctl.dev.read(raw[len(tail):])
		if err != nil {
			return c, xerrors.Errorf("daq: could not read adapter: %w", err)
		}
		copy(raw, tail)

		data.InitHigh()
		data.SetBytes(raw)
		pkts, err := uart.Scan(&data, misoPin, uart.BitsPerBaud)
		if err != nil {
			return c, xerrors.Errorf("daq: could not scan replies: %w", err)
		}
		for _, p := range pkts {
			if p.Type() != uart.ConfigReadPacket || p.ChipID() != chip || !p.CheckParity() {
				continue
			}
			if p.Register() < cfg.NumRegisters {
				got[p.Register()] = p
			}
		}

		// a frame straddling the chunk boundary is rescanned next turn.
		n := uart.Footprint(uart.BitsPerBaud) - 1
		tail = append(tail[:0], raw[len(raw)-n:]...)
	}

	seq := make([]uart.Packet, cfg.NumRegisters)
	for i := range seq {
		seq[i] = got[uint8(i)]
	}
	err := c.FromRegPackets(seq)
	if err != nil {
		return c, xerrors.Errorf("daq: could not decode configuration of chip %d: %w", chip, err)
	}
	return c, nil
}

// Run records the raw bit-banged byte stream to w until ctx is done or
// dur has elapsed (dur <= 0 means no time limit). It returns the number
// of bytes recorded.
func (ctl *Controller) Run(ctx context.Context, w io.Writer, dur time.Duration) (int64, error) {
	if dur > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, dur)
		defer cancel()
	}

	var (
		n   int64
		buf = make([]byte, wave.Depth)
	)
	for {
		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return n, nil
			}
			return n, xerrors.Errorf("daq: acquisition interrupted: %w", ctx.Err())
		default:
		}

		err := ctl.dev.read(buf)
		if err != nil {
			return n, xerrors.Errorf("daq: could not read adapter: %w", err)
		}
		nn, err := w.Write(buf)
		n += int64(nn)
		if err != nil {
			return n, xerrors.Errorf("daq: could not record stream: %w", err)
		}
	}
}

// send frames one packet on the command pin, idle-high elsewhere, and
// pushes the footprint to the adapter.
func (ctl *Controller) send(pkt *uart.Packet) error {
	var data wave.Data
	data.InitHigh()

	err := uart.Embed(pkt, &data, mosiPin, 0, uart.BitsPerBaud)
	if err != nil {
		return err
	}
	return ctl.dev.write(data.Bytes(uart.Footprint(uart.BitsPerBaud)))
}

// diffPackets filters the full register-write sequence down to the
// packets whose register data differs from the cached configuration.
func diffPackets(last *cfg.Config, pkts []uart.Packet) []uart.Packet {
	out := pkts[:0]
	for i := range pkts {
		v, err := last.RegData(uint8(i))
		if err != nil || v != pkts[i].RegisterData() {
			out = append(out, pkts[i])
		}
	}
	return out
}
