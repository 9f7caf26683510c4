// Copyright 2023 The go-larpix Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package daq

import (
	"fmt"
	"io"

	"github.com/ziutek/ftdi"
)

// Adapter identity and link parameters.
const (
	VendorID  = 0x0403 // FTDI
	ProductID = 0x6001 // FT232R, the bench adapter

	baudrate  = 1000000 // bit-bang sample rate
	pinOutput = 0xff    // all 8 pins driven by the host
)

type ftdiDevice interface {
	Reset() error

	SetBitmode(iomask byte, mode ftdi.Mode) error
	SetBaudrate(rate int) error
	SetFlowControl(flowctrl ftdi.FlowCtrl) error
	SetLatencyTimer(lt int) error
	SetWriteChunkSize(cs int) error
	SetReadChunkSize(cs int) error
	PurgeBuffers() error

	io.Writer
	io.Reader
	io.Closer
}

type device struct {
	vid uint16     // vendor ID
	pid uint16     // product ID
	ft  ftdiDevice // handle to the FTDI device
}

var (
	ftdiOpen = ftdiOpenImpl
)

func ftdiOpenImpl(vid, pid uint16) (ftdiDevice, error) {
	dev, err := ftdi.OpenFirst(int(vid), int(pid), ftdi.ChannelAny)
	return dev, err
}

func newDevice(vid, pid uint16) (*device, error) {
	ft, err := ftdiOpen(vid, pid)
	if err != nil {
		return nil, fmt.Errorf("could not open FTDI device (vid=0x%x, pid=0x%x): %w", vid, pid, err)
	}

	dev := &device{vid: vid, pid: pid, ft: ft}
	err = dev.init()
	if err != nil {
		ft.Close()
		return nil, fmt.Errorf("could not initialize FTDI device (vid=0x%x, pid=0x%x): %w", vid, pid, err)
	}

	return dev, nil
}

func (dev *device) init() error {
	var err error

	err = dev.ft.Reset()
	if err != nil {
		return fmt.Errorf("could not reset USB: %w", err)
	}

	err = dev.ft.SetBitmode(pinOutput, ftdi.ModeBitbang)
	if err != nil {
		return fmt.Errorf("could not enable bit-bang mode: %w", err)
	}

	err = dev.ft.SetBaudrate(baudrate)
	if err != nil {
		return fmt.Errorf("could not set baudrate to %d: %w", baudrate, err)
	}

	err = dev.ft.SetFlowControl(ftdi.FlowCtrlDisable)
	if err != nil {
		return fmt.Errorf("could not disable flow control: %w", err)
	}

	err = dev.ft.SetLatencyTimer(2)
	if err != nil {
		return fmt.Errorf("could not set latency timer to 2: %w", err)
	}

	err = dev.ft.SetWriteChunkSize(0xffff)
	if err != nil {
		return fmt.Errorf("could not set write chunk-size to 0xffff: %w", err)
	}

	err = dev.ft.SetReadChunkSize(0xffff)
	if err != nil {
		return fmt.Errorf("could not set read chunk-size to 0xffff: %w", err)
	}

	err = dev.ft.PurgeBuffers()
	if err != nil {
		return fmt.Errorf("could not purge USB buffers: %w", err)
	}

	return err
}

func (dev *device) close() error {
	return dev.ft.Close()
}

func (dev *device) write(p []byte) error {
	n, err := dev.ft.Write(p)
	switch {
	case err != nil:
		return fmt.Errorf("could not write %d bytes to adapter: %w", len(p), err)
	case n != len(p):
		return fmt.Errorf("could not write %d bytes to adapter: %w", len(p), io.ErrShortWrite)
	}
	return nil
}

func (dev *device) read(p []byte) error {
	_, err := io.ReadFull(dev.ft, p)
	if err != nil {
		return fmt.Errorf("could not read %d bytes from adapter: %w", len(p), err)
	}
	return nil
}

func (dev *device) purge() error {
	return dev.ft.PurgeBuffers()
}
