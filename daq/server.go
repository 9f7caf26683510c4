// Copyright 2023 The go-larpix Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package daq

import (
	"sync/atomic"
	"time"

	"github.com/go-daq/tdaq"
	"github.com/ziutek/ftdi"
	"golang.org/x/xerrors"

	"github.com/go-larpix/larpix/cfg"
	"github.com/go-larpix/larpix/wave"
)

// DeviceInfo describes one connected FTDI adapter.
type DeviceInfo struct {
	VendorID uint32
	ProdID   uint32
	Name     string
}

// Server exposes a LArPix controller as a TDAQ process: /config scans
// for adapters, /init opens the controller and configures the chips,
// /start streams the raw readout on the output port.
type Server struct {
	name string

	devs  []DeviceInfo
	ctl   *Controller
	chips []uint8
	cfgs  map[uint8]cfg.Config
	state string // path of the register cache, may be empty

	running atomic.Bool
	data    chan []byte
	n       int
}

// NewServer creates a server driving the given chips.
func NewServer(name string, chips ...uint8) *Server {
	return &Server{
		name:  name,
		chips: chips,
		cfgs:  make(map[uint8]cfg.Config),
	}
}

// SetConfig selects the configuration written to chip on /init.
// Chips without an explicit configuration get cfg.Default.
func (srv *Server) SetConfig(chip uint8, c cfg.Config) {
	srv.cfgs[chip] = c
}

// UseState makes /init attach a register cache at path.
func (srv *Server) UseState(path string) {
	srv.state = path
}

func (srv *Server) scanDevices(ctx tdaq.Context) error {
	srv.devs = srv.devs[:0]

	devs, err := ftdiListDevices(VendorID)
	if err != nil {
		return xerrors.Errorf("could not build list of connected FTDI devices: %w", err)
	}

	for _, dev := range devs {
		ctx.Msg.Infof("found adapter %q (vid=0x%x, pid=0x%x)", dev.Name, dev.VendorID, dev.ProdID)
		srv.devs = append(srv.devs, dev)
	}

	return nil
}

func (srv *Server) configure(ctx tdaq.Context, chip uint8) error {
	c, ok := srv.cfgs[chip]
	if !ok {
		c = cfg.Default()
	}
	err := srv.ctl.WriteConfig(chip, c)
	if err != nil {
		ctx.Msg.Errorf("could not configure chip %d: %+v", chip, err)
		return xerrors.Errorf("could not configure chip %d: %w", chip, err)
	}
	return nil
}

func (srv *Server) OnConfig(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	ctx.Msg.Debugf("received /config command...")
	err := srv.scanDevices(ctx)
	if err != nil {
		ctx.Msg.Errorf("could not scan devices: %+v", err)
		return xerrors.Errorf("could not scan devices: %w", err)
	}

	return nil
}

func (srv *Server) OnInit(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	ctx.Msg.Debugf("received /init command...")
	if srv.ctl != nil {
		return xerrors.Errorf("controller already initialized")
	}

	ctl, err := NewController(VendorID, ProductID, nil)
	if err != nil {
		ctx.Msg.Errorf("could not open controller: %+v", err)
		return xerrors.Errorf("could not open controller: %w", err)
	}
	if srv.state != "" {
		st, err := OpenState(srv.state)
		if err != nil {
			ctl.Close()
			return xerrors.Errorf("could not open register cache: %w", err)
		}
		ctl.UseState(st)
	}
	srv.ctl = ctl
	srv.data = make(chan []byte, 1024)
	srv.n = 0

	for _, chip := range srv.chips {
		err := srv.configure(ctx, chip)
		if err != nil {
			return err
		}
	}
	return nil
}

func (srv *Server) OnReset(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	ctx.Msg.Debugf("received /reset command...")
	srv.running.Store(false)
	srv.n = 0
	if srv.ctl != nil {
		err := srv.ctl.dev.purge()
		if err != nil {
			return xerrors.Errorf("could not purge adapter buffers: %w", err)
		}
	}
	return nil
}

func (srv *Server) OnStart(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	ctx.Msg.Debugf("received /start command...")
	if srv.ctl == nil {
		return xerrors.Errorf("controller not initialized")
	}
	srv.running.Store(true)
	return nil
}

func (srv *Server) OnStop(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	srv.running.Store(false)
	ctx.Msg.Debugf("received /stop command... -> n=%d", srv.n)
	return nil
}

func (srv *Server) OnQuit(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	ctx.Msg.Debugf("received /quit command...")
	if srv.ctl != nil {
		err := srv.ctl.Close()
		srv.ctl = nil
		if err != nil {
			return xerrors.Errorf("could not close controller: %w", err)
		}
	}
	return nil
}

// ADC streams acquired waveform chunks on the output port.
func (srv *Server) ADC(ctx tdaq.Context, dst *tdaq.Frame) error {
	select {
	case <-ctx.Ctx.Done():
		dst.Body = nil
		return nil
	case data := <-srv.data:
		dst.Body = data
	}
	return nil
}

// Run is the acquisition loop: it drains the adapter into the data
// channel while the run is on.
func (srv *Server) Run(ctx tdaq.Context) error {
	for {
		select {
		case <-ctx.Ctx.Done():
			return nil
		default:
			if !srv.running.Load() || srv.ctl == nil {
				time.Sleep(10 * time.Millisecond)
				continue
			}
			raw := make([]byte, wave.Depth)
			err := srv.ctl.dev.read(raw)
			if err != nil {
				ctx.Msg.Errorf("could not read adapter: %+v", err)
				continue
			}
			select {
			case srv.data <- raw:
				srv.n++
			default:
			}
		}
	}
}

func ftdiListDevices(vid uint16) ([]DeviceInfo, error) {
	var devs []DeviceInfo

	add := func(vid, pid uint16) {
		lst, err := ftdi.FindAll(int(vid), int(pid))
		if err != nil {
			return
		}
		for _, dev := range lst {
			devs = append(devs, DeviceInfo{
				VendorID: uint32(vid),
				ProdID:   uint32(pid),
				Name:     dev.Serial,
			})
			dev.Close()
		}
	}

	add(vid, 0x6001) // FT232R
	add(vid, 0x6014) // FT232H

	return devs, nil
}
