// Copyright 2023 The go-larpix Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cfg

import (
	"reflect"
	"testing"

	"github.com/go-larpix/larpix/uart"
)

func testConfig() Config {
	c := Default()
	for i := range c.PixelTrimThresholds {
		c.PixelTrimThresholds[i] = uint8(i)
	}
	c.GlobalThreshold = 0x2a
	c.CSAGain = 0
	c.CSABypass = 1
	c.InternalBypass = 0
	c.CSABypassSelect[3] = 1
	c.CSABypassSelect[17] = 1
	c.CSAMonitorSelect[8] = 1
	c.CSATestpulseEnable[0] = 1
	c.CSATestpulseEnable[31] = 1
	c.CSATestpulseDACAmplitude = 200
	c.TestMode = TestFIFO
	c.CrossTriggerMode = 1
	c.PeriodicReset = 1
	c.FIFODiagnostic = 1
	c.SampleCycles = 12
	c.TestBurstLength = 0x1234
	c.ADCBurstLength = 7
	c.ChannelMask[5] = 1
	c.ChannelMask[30] = 1
	c.ExternalTriggerMask[9] = 1
	c.ResetCycles = 0xabcdef
	return c
}

func TestRegDataRoundTrip(t *testing.T) {
	src := testConfig()

	var dst Config
	for addr := 0; addr < NumRegisters; addr++ {
		v, err := src.RegData(uint8(addr))
		if err != nil {
			t.Fatalf("register %d: could not encode: %+v", addr, err)
		}
		if err := dst.SetRegData(uint8(addr), v); err != nil {
			t.Fatalf("register %d: could not decode: %+v", addr, err)
		}
	}
	if !reflect.DeepEqual(dst, src) {
		t.Fatalf("register round trip:\ngot= %#v\nwant=%#v", dst, src)
	}
}

func TestRegDataInvalid(t *testing.T) {
	src := testConfig()
	if _, err := src.RegData(NumRegisters); err == nil {
		t.Fatalf("expected an invalid-address error")
	}

	cp := src
	if err := cp.SetRegData(NumRegisters, 0xff); err == nil {
		t.Fatalf("expected an invalid-address error")
	}
	if !reflect.DeepEqual(cp, src) {
		t.Fatalf("invalid decode modified the configuration")
	}
}

func TestRegPackets(t *testing.T) {
	c := testConfig()
	pkts := c.RegPackets(42)
	if got, want := len(pkts), NumRegisters; got != want {
		t.Fatalf("got=%d packets, want=%d", got, want)
	}
	for i, p := range pkts {
		if got, want := p.Type(), uart.ConfigWritePacket; got != want {
			t.Fatalf("packet %d: type: got=%v, want=%v", i, got, want)
		}
		if got, want := p.ChipID(), uint8(42); got != want {
			t.Fatalf("packet %d: chip: got=%d, want=%d", i, got, want)
		}
		if got, want := p.Register(), uint8(i); got != want {
			t.Fatalf("packet %d: register: got=%d, want=%d", i, got, want)
		}
		want, err := c.RegData(uint8(i))
		if err != nil {
			t.Fatalf("register %d: could not encode: %+v", i, err)
		}
		if got := p.RegisterData(); got != want {
			t.Fatalf("packet %d: data: got=%d, want=%d", i, got, want)
		}
		if !p.CheckParity() {
			t.Fatalf("packet %d: bad parity", i)
		}
	}
}

func TestReadRequests(t *testing.T) {
	pkts := ReadRequests(3)
	if got, want := len(pkts), NumRegisters; got != want {
		t.Fatalf("got=%d packets, want=%d", got, want)
	}
	for i, p := range pkts {
		if got, want := p.Type(), uart.ConfigReadPacket; got != want {
			t.Fatalf("packet %d: type: got=%v, want=%v", i, got, want)
		}
		if got, want := p.ChipID(), uint8(3); got != want {
			t.Fatalf("packet %d: chip: got=%d, want=%d", i, got, want)
		}
		if got, want := p.Register(), uint8(i); got != want {
			t.Fatalf("packet %d: register: got=%d, want=%d", i, got, want)
		}
		if !p.CheckParity() {
			t.Fatalf("packet %d: bad parity", i)
		}
	}
}

func TestFromRegPackets(t *testing.T) {
	src := testConfig()
	pkts := src.RegPackets(1)

	var dst Config
	if err := dst.FromRegPackets(pkts); err != nil {
		t.Fatalf("could not decode packets: %+v", err)
	}
	if !reflect.DeepEqual(dst, src) {
		t.Fatalf("packet round trip:\ngot= %#v\nwant=%#v", dst, src)
	}
}

func TestResetCyclesIndependent(t *testing.T) {
	// decoding the reset-cycles registers must not leak into the
	// test-burst-length field (or vice versa).
	var c Config
	c.TestBurstLength = 0x1234

	if err := c.SetRegData(RegResetCycles, 0xef); err != nil {
		t.Fatalf("could not decode: %+v", err)
	}
	if err := c.SetRegData(RegResetCycles+1, 0xcd); err != nil {
		t.Fatalf("could not decode: %+v", err)
	}
	if err := c.SetRegData(RegResetCycles+2, 0xab); err != nil {
		t.Fatalf("could not decode: %+v", err)
	}

	if got, want := c.ResetCycles, uint32(0xabcdef); got != want {
		t.Fatalf("reset cycles: got=%#x, want=%#x", got, want)
	}
	if got, want := c.TestBurstLength, uint16(0x1234); got != want {
		t.Fatalf("test burst length clobbered: got=%#x, want=%#x", got, want)
	}

	c.ResetCycles = 0xabcdef
	if err := c.SetRegData(RegTestBurstLength, 0x78); err != nil {
		t.Fatalf("could not decode: %+v", err)
	}
	if err := c.SetRegData(RegTestBurstLength+1, 0x56); err != nil {
		t.Fatalf("could not decode: %+v", err)
	}
	if got, want := c.TestBurstLength, uint16(0x5678); got != want {
		t.Fatalf("test burst length: got=%#x, want=%#x", got, want)
	}
	if got, want := c.ResetCycles, uint32(0xabcdef); got != want {
		t.Fatalf("reset cycles clobbered: got=%#x, want=%#x", got, want)
	}
}

func TestFromRegPacketsMismatch(t *testing.T) {
	src := testConfig()

	t.Run("reordered", func(t *testing.T) {
		pkts := src.RegPackets(1)
		pkts[10], pkts[20] = pkts[20], pkts[10]

		var dst Config
		err := dst.FromRegPackets(pkts)
		derr, ok := err.(*DecodeError)
		if !ok {
			t.Fatalf("got err=%v, want a *DecodeError", err)
		}
		want := []Mismatch{
			{Pos: 10, Want: 10, Got: 20},
			{Pos: 20, Want: 20, Got: 10},
		}
		if !reflect.DeepEqual(derr.Mismatches, want) {
			t.Fatalf("mismatches:\ngot= %v\nwant=%v", derr.Mismatches, want)
		}
		if derr.Missing != 0 || derr.Extra != 0 {
			t.Fatalf("got missing=%d extra=%d, want 0, 0", derr.Missing, derr.Extra)
		}
		// every register was still present, so the decode is complete.
		if !reflect.DeepEqual(dst, src) {
			t.Fatalf("reordered decode:\ngot= %#v\nwant=%#v", dst, src)
		}
	})

	t.Run("truncated", func(t *testing.T) {
		pkts := src.RegPackets(1)

		var dst Config
		err := dst.FromRegPackets(pkts[:40])
		derr, ok := err.(*DecodeError)
		if !ok {
			t.Fatalf("got err=%v, want a *DecodeError", err)
		}
		if got, want := derr.Missing, 23; got != want {
			t.Fatalf("missing: got=%d, want=%d", got, want)
		}
		if len(derr.Mismatches) != 0 {
			t.Fatalf("unexpected mismatches: %v", derr.Mismatches)
		}
		if got, want := dst.GlobalThreshold, src.GlobalThreshold; got != want {
			t.Fatalf("register 32 not decoded: got=%d, want=%d", got, want)
		}
	})

	t.Run("extra", func(t *testing.T) {
		pkts := src.RegPackets(1)
		pkts = append(pkts, pkts[0])

		var dst Config
		err := dst.FromRegPackets(pkts)
		derr, ok := err.(*DecodeError)
		if !ok {
			t.Fatalf("got err=%v, want a *DecodeError", err)
		}
		if got, want := derr.Extra, 1; got != want {
			t.Fatalf("extra: got=%d, want=%d", got, want)
		}
	})

	t.Run("wrong-type", func(t *testing.T) {
		pkts := src.RegPackets(1)
		pkts[5] = uart.Packet{} // zero value decodes as a data packet
		pkts[5].SetType(uart.DataPacket)

		var dst Config
		err := dst.FromRegPackets(pkts)
		derr, ok := err.(*DecodeError)
		if !ok {
			t.Fatalf("got err=%v, want a *DecodeError", err)
		}
		if got, want := len(derr.Mismatches), 1; got != want {
			t.Fatalf("mismatches: got=%d, want=%d", got, want)
		}
		if got, want := derr.Mismatches[0].Pos, 5; got != want {
			t.Fatalf("mismatch pos: got=%d, want=%d", got, want)
		}
	})
}

func TestChannelHelpers(t *testing.T) {
	var c Config
	c.DisableChannels()
	for i, v := range c.ChannelMask {
		if v != 1 {
			t.Fatalf("channel %d not masked", i)
		}
	}
	c.EnableChannels(3, 7)
	if c.ChannelMask[3] != 0 || c.ChannelMask[7] != 0 {
		t.Fatalf("channels 3, 7 still masked")
	}
	if c.ChannelMask[4] != 1 {
		t.Fatalf("channel 4 unexpectedly enabled")
	}

	c.DisableTestpulse()
	c.EnableTestpulse(0)
	if c.CSATestpulseEnable[0] != 0 {
		t.Fatalf("testpulse channel 0 not enabled")
	}
	if c.CSATestpulseEnable[1] != 1 {
		t.Fatalf("testpulse channel 1 unexpectedly enabled")
	}

	// out-of-range channels are ignored.
	c.EnableChannels(-1, NumChannels)
}

func TestConfigDefault(t *testing.T) {
	c := Default()
	if got, want := c.PixelTrimThresholds[0], uint8(16); got != want {
		t.Fatalf("trim: got=%d, want=%d", got, want)
	}
	if got, want := c.GlobalThreshold, uint8(16); got != want {
		t.Fatalf("global threshold: got=%d, want=%d", got, want)
	}
	if got, want := c.ResetCycles, uint32(4096); got != want {
		t.Fatalf("reset cycles: got=%d, want=%d", got, want)
	}
	if c.TestMode != TestOff {
		t.Fatalf("default test mode: got=%d, want=%d", c.TestMode, TestOff)
	}
}
