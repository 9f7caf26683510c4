// Copyright 2023 The go-larpix Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package daq

import (
	"bytes"
	"context"
	"io"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/ziutek/ftdi"

	"github.com/go-larpix/larpix/cfg"
	"github.com/go-larpix/larpix/uart"
	"github.com/go-larpix/larpix/wave"
)

func TestFTDIOpen(t *testing.T) {
	dev, err := ftdiOpenImpl(0, 0)
	if err == nil {
		_ = dev.Close()
	}
}

type fakeDevice struct {
	r io.Reader
	w bytes.Buffer
}

func (dev *fakeDevice) Reset() error                                 { return nil }
func (dev *fakeDevice) SetBitmode(iomask byte, mode ftdi.Mode) error { return nil }
func (dev *fakeDevice) SetBaudrate(rate int) error                   { return nil }
func (dev *fakeDevice) SetFlowControl(fc ftdi.FlowCtrl) error        { return nil }
func (dev *fakeDevice) SetLatencyTimer(lt int) error                 { return nil }
func (dev *fakeDevice) SetWriteChunkSize(cs int) error               { return nil }
func (dev *fakeDevice) SetReadChunkSize(cs int) error                { return nil }
func (dev *fakeDevice) PurgeBuffers() error                          { return nil }
func (dev *fakeDevice) Close() error                                 { return nil }

func (dev *fakeDevice) Write(p []byte) (int, error) {
	return dev.w.Write(p)
}

func (dev *fakeDevice) Read(p []byte) (int, error) {
	if dev.r == nil {
		return 0, io.EOF
	}
	return dev.r.Read(p)
}

func withFakeDevice(t *testing.T, ft *fakeDevice) *Controller {
	t.Helper()
	ftdiOpen = func(vid, pid uint16) (ftdiDevice, error) {
		return ft, nil
	}
	t.Cleanup(func() {
		ftdiOpen = ftdiOpenImpl
	})

	ctl, err := NewController(VendorID, ProductID, nil)
	if err != nil {
		t.Fatalf("could not create controller: %+v", err)
	}
	t.Cleanup(func() { _ = ctl.Close() })
	return ctl
}

// decodeWritten unpacks the byte stream pushed to the adapter back into
// the framed packets it carries.
func decodeWritten(t *testing.T, raw []byte) []uart.Packet {
	t.Helper()
	foot := uart.Footprint(uart.BitsPerBaud)
	if len(raw)%foot != 0 {
		t.Fatalf("stream length %d is not a multiple of the frame footprint %d", len(raw), foot)
	}

	var pkts []uart.Packet
	for off := 0; off < len(raw); off += foot {
		var data wave.Data
		data.InitHigh()
		data.SetBytes(raw[off : off+foot])
		p, err := uart.Extract(&data, mosiPin, 0, uart.BitsPerBaud)
		if err != nil {
			t.Fatalf("could not extract packet at %d: %+v", off, err)
		}
		pkts = append(pkts, p)
	}
	return pkts
}

func TestWriteConfig(t *testing.T) {
	var ft fakeDevice
	ctl := withFakeDevice(t, &ft)

	src := cfg.Default()
	src.GlobalThreshold = 42
	src.EnableTestpulse(3)

	if err := ctl.WriteConfig(7, src); err != nil {
		t.Fatalf("could not write config: %+v", err)
	}

	pkts := decodeWritten(t, ft.w.Bytes())
	if got, want := len(pkts), cfg.NumRegisters; got != want {
		t.Fatalf("got=%d packets, want=%d", got, want)
	}
	for i, p := range pkts {
		if got, want := p.Type(), uart.ConfigWritePacket; got != want {
			t.Fatalf("packet %d: type: got=%v, want=%v", i, got, want)
		}
		if got, want := p.ChipID(), uint8(7); got != want {
			t.Fatalf("packet %d: chip: got=%d, want=%d", i, got, want)
		}
		if !p.CheckParity() {
			t.Fatalf("packet %d: bad parity", i)
		}
	}

	var got cfg.Config
	if err := got.FromRegPackets(pkts); err != nil {
		t.Fatalf("could not decode written stream: %+v", err)
	}
	if !reflect.DeepEqual(got, src) {
		t.Fatalf("written configuration:\ngot= %#v\nwant=%#v", got, src)
	}
}

func TestWriteConfigWithState(t *testing.T) {
	var ft fakeDevice
	ctl := withFakeDevice(t, &ft)

	st, err := OpenState(filepath.Join(t.TempDir(), "state.db"))
	if err != nil {
		t.Fatalf("could not open state: %+v", err)
	}
	ctl.UseState(st)

	foot := uart.Footprint(uart.BitsPerBaud)
	src := cfg.Default()

	if err := ctl.WriteConfig(2, src); err != nil {
		t.Fatalf("could not write config: %+v", err)
	}
	if got, want := ft.w.Len(), cfg.NumRegisters*foot; got != want {
		t.Fatalf("first write: got=%d bytes, want=%d", got, want)
	}

	// unchanged config: nothing to send.
	ft.w.Reset()
	if err := ctl.WriteConfig(2, src); err != nil {
		t.Fatalf("could not rewrite config: %+v", err)
	}
	if got, want := ft.w.Len(), 0; got != want {
		t.Fatalf("rewrite: got=%d bytes, want=%d", got, want)
	}

	// single-register change: single packet.
	ft.w.Reset()
	src.GlobalThreshold = 99
	if err := ctl.WriteConfig(2, src); err != nil {
		t.Fatalf("could not update config: %+v", err)
	}
	pkts := decodeWritten(t, ft.w.Bytes())
	if got, want := len(pkts), 1; got != want {
		t.Fatalf("update: got=%d packets, want=%d", got, want)
	}
	if got, want := pkts[0].Register(), uint8(cfg.RegGlobalThreshold); got != want {
		t.Fatalf("update: register: got=%d, want=%d", got, want)
	}
	if got, want := pkts[0].RegisterData(), uint8(99); got != want {
		t.Fatalf("update: data: got=%d, want=%d", got, want)
	}

	// a different chip is written in full.
	ft.w.Reset()
	if err := ctl.WriteConfig(3, src); err != nil {
		t.Fatalf("could not write config to chip 3: %+v", err)
	}
	if got, want := ft.w.Len(), cfg.NumRegisters*foot; got != want {
		t.Fatalf("chip 3: got=%d bytes, want=%d", got, want)
	}
}

func TestReadConfig(t *testing.T) {
	src := cfg.Default()
	src.GlobalThreshold = 30
	src.ResetCycles = 0x123456
	src.DisableChannels(12)

	// replies: one wave buffer per register, idle-high elsewhere.
	var stream bytes.Buffer
	for i, p := range src.RegPackets(5) {
		var reply uart.Packet
		reply.SetType(uart.ConfigReadPacket)
		reply.SetChipID(5)
		reply.SetRegister(uint8(i))
		reply.SetRegisterData(p.RegisterData())
		reply.SetParity()

		var data wave.Data
		data.InitHigh()
		if err := uart.Embed(&reply, &data, misoPin, 0, uart.BitsPerBaud); err != nil {
			t.Fatalf("could not embed reply %d: %+v", i, err)
		}
		stream.Write(data.Bytes(wave.Depth))
	}

	ft := fakeDevice{r: bytes.NewReader(stream.Bytes())}
	ctl := withFakeDevice(t, &ft)

	got, err := ctl.ReadConfig(context.Background(), 5)
	if err != nil {
		t.Fatalf("could not read config: %+v", err)
	}
	if !reflect.DeepEqual(got, src) {
		t.Fatalf("configuration read back:\ngot= %#v\nwant=%#v", got, src)
	}
}

type idleReader struct{}

func (idleReader) Read(p []byte) (int, error) {
	for i := range p {
		p[i] = 0xff
	}
	return len(p), nil
}

func TestRun(t *testing.T) {
	ft := fakeDevice{r: idleReader{}}
	ctl := withFakeDevice(t, &ft)

	var out bytes.Buffer
	n, err := ctl.Run(context.Background(), &out, 50*time.Millisecond)
	if err != nil {
		t.Fatalf("could not run acquisition: %+v", err)
	}
	if n == 0 {
		t.Fatalf("no data recorded")
	}
	if got, want := int64(out.Len()), n; got != want {
		t.Fatalf("recorded bytes: got=%d, want=%d", got, want)
	}
	if n%wave.Depth != 0 {
		t.Fatalf("recorded %d bytes, not a multiple of %d", n, wave.Depth)
	}
}

func TestRunCanceled(t *testing.T) {
	ft := fakeDevice{r: idleReader{}}
	ctl := withFakeDevice(t, &ft)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := ctl.Run(ctx, io.Discard, 0)
	if err == nil {
		t.Fatalf("expected a cancellation error")
	}
}

func TestState(t *testing.T) {
	st, err := OpenState(filepath.Join(t.TempDir(), "state.db"))
	if err != nil {
		t.Fatalf("could not open state: %+v", err)
	}
	defer st.Close()

	got, err := st.Load(1)
	if err != nil {
		t.Fatalf("could not load state: %+v", err)
	}
	if got != nil {
		t.Fatalf("unexpected state for a chip never written to: %#v", got)
	}

	src := cfg.Default()
	src.SampleCycles = 8
	if err := st.Store(1, src); err != nil {
		t.Fatalf("could not store state: %+v", err)
	}

	got, err = st.Load(1)
	if err != nil {
		t.Fatalf("could not load state: %+v", err)
	}
	if got == nil || !reflect.DeepEqual(*got, src) {
		t.Fatalf("state round trip:\ngot= %#v\nwant=%#v", got, src)
	}
}
