// Copyright 2023 The go-larpix Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cfg

import (
	"fmt"

	"github.com/go-larpix/larpix/uart"
)

// NumRegisters is the size of the configuration register address space.
// Every register holds one byte.
const NumRegisters = 63

// Register addresses. Multi-register fields occupy consecutive
// addresses; 32-channel arrays pack 8 channels per register, channel i
// of a chunk at bit i%8.
const (
	RegPixelTrim              = 0  // 0-31, one register per channel
	RegGlobalThreshold        = 32 //
	RegCSAGainBypasses        = 33 // bit0 gain, bit1 csa bypass, bit3 internal bypass
	RegCSABypassSelect        = 34 // 34-37
	RegCSAMonitorSelect       = 38 // 38-41
	RegCSATestpulseEnable     = 42 // 42-45
	RegCSATestpulseDAC        = 46 //
	RegTestModeXTrigResetDiag = 47 // bits0-1 mode, bit2 xtrig, bit3 periodic reset, bit4 fifo diag
	RegSampleCycles           = 48 //
	RegTestBurstLength        = 49 // 49-50, little-endian
	RegADCBurstLength         = 51 //
	RegChannelMask            = 52 // 52-55
	RegExternalTriggerMask    = 56 // 56-59
	RegResetCycles            = 60 // 60-62, little-endian
)

// RegData returns the byte stored at register address addr for this
// configuration.
func (c *Config) RegData(addr uint8) (uint8, error) {
	switch {
	case addr < RegGlobalThreshold:
		return c.PixelTrimThresholds[addr], nil
	case addr == RegGlobalThreshold:
		return c.GlobalThreshold, nil
	case addr == RegCSAGainBypasses:
		return c.CSAGain&1 | c.CSABypass&1<<1 | c.InternalBypass&1<<3, nil
	case addr >= RegCSABypassSelect && addr < RegCSABypassSelect+4:
		return packChans(&c.CSABypassSelect, int(addr-RegCSABypassSelect)), nil
	case addr >= RegCSAMonitorSelect && addr < RegCSAMonitorSelect+4:
		return packChans(&c.CSAMonitorSelect, int(addr-RegCSAMonitorSelect)), nil
	case addr >= RegCSATestpulseEnable && addr < RegCSATestpulseEnable+4:
		return packChans(&c.CSATestpulseEnable, int(addr-RegCSATestpulseEnable)), nil
	case addr == RegCSATestpulseDAC:
		return c.CSATestpulseDACAmplitude, nil
	case addr == RegTestModeXTrigResetDiag:
		return c.TestMode&3 |
			c.CrossTriggerMode&1<<2 |
			c.PeriodicReset&1<<3 |
			c.FIFODiagnostic&1<<4, nil
	case addr == RegSampleCycles:
		return c.SampleCycles, nil
	case addr == RegTestBurstLength:
		return uint8(c.TestBurstLength), nil
	case addr == RegTestBurstLength+1:
		return uint8(c.TestBurstLength >> 8), nil
	case addr == RegADCBurstLength:
		return c.ADCBurstLength, nil
	case addr >= RegChannelMask && addr < RegChannelMask+4:
		return packChans(&c.ChannelMask, int(addr-RegChannelMask)), nil
	case addr >= RegExternalTriggerMask && addr < RegExternalTriggerMask+4:
		return packChans(&c.ExternalTriggerMask, int(addr-RegExternalTriggerMask)), nil
	case addr == RegResetCycles:
		return uint8(c.ResetCycles), nil
	case addr == RegResetCycles+1:
		return uint8(c.ResetCycles >> 8), nil
	case addr == RegResetCycles+2:
		return uint8(c.ResetCycles >> 16), nil
	}
	return 0, fmt.Errorf("cfg: invalid register address %d", addr)
}

// SetRegData decodes the byte v stored at register address addr into
// the matching configuration field(s). An invalid address is an error
// and leaves the configuration untouched.
func (c *Config) SetRegData(addr, v uint8) error {
	switch {
	case addr < RegGlobalThreshold:
		c.PixelTrimThresholds[addr] = v
	case addr == RegGlobalThreshold:
		c.GlobalThreshold = v
	case addr == RegCSAGainBypasses:
		c.CSAGain = v & 1
		c.CSABypass = v >> 1 & 1
		c.InternalBypass = v >> 3 & 1
	case addr >= RegCSABypassSelect && addr < RegCSABypassSelect+4:
		unpackChans(&c.CSABypassSelect, int(addr-RegCSABypassSelect), v)
	case addr >= RegCSAMonitorSelect && addr < RegCSAMonitorSelect+4:
		unpackChans(&c.CSAMonitorSelect, int(addr-RegCSAMonitorSelect), v)
	case addr >= RegCSATestpulseEnable && addr < RegCSATestpulseEnable+4:
		unpackChans(&c.CSATestpulseEnable, int(addr-RegCSATestpulseEnable), v)
	case addr == RegCSATestpulseDAC:
		c.CSATestpulseDACAmplitude = v
	case addr == RegTestModeXTrigResetDiag:
		c.TestMode = v & 3
		c.CrossTriggerMode = v >> 2 & 1
		c.PeriodicReset = v >> 3 & 1
		c.FIFODiagnostic = v >> 4 & 1
	case addr == RegSampleCycles:
		c.SampleCycles = v
	case addr == RegTestBurstLength:
		c.TestBurstLength = c.TestBurstLength&0xff00 | uint16(v)
	case addr == RegTestBurstLength+1:
		c.TestBurstLength = c.TestBurstLength&0x00ff | uint16(v)<<8
	case addr == RegADCBurstLength:
		c.ADCBurstLength = v
	case addr >= RegChannelMask && addr < RegChannelMask+4:
		unpackChans(&c.ChannelMask, int(addr-RegChannelMask), v)
	case addr >= RegExternalTriggerMask && addr < RegExternalTriggerMask+4:
		unpackChans(&c.ExternalTriggerMask, int(addr-RegExternalTriggerMask), v)
	case addr == RegResetCycles:
		c.ResetCycles = c.ResetCycles&0xffff00 | uint32(v)
	case addr == RegResetCycles+1:
		c.ResetCycles = c.ResetCycles&0xff00ff | uint32(v)<<8
	case addr == RegResetCycles+2:
		c.ResetCycles = c.ResetCycles&0x00ffff | uint32(v)<<16
	default:
		return fmt.Errorf("cfg: invalid register address %d", addr)
	}
	return nil
}

// RegPackets serializes the configuration into its 63 register-write
// packets, in register address order, parity set.
func (c *Config) RegPackets(chip uint8) []uart.Packet {
	pkts := make([]uart.Packet, NumRegisters)
	for i := range pkts {
		v, err := c.RegData(uint8(i))
		if err != nil {
			panic(err) // all 63 addresses are valid. can not happen.
		}
		p := &pkts[i]
		p.SetType(uart.ConfigWritePacket)
		p.SetChipID(chip)
		p.SetRegister(uint8(i))
		p.SetRegisterData(v)
		p.SetParity()
	}
	return pkts
}

// ReadRequests returns the 63 register-read request packets for chip,
// in register address order.
func ReadRequests(chip uint8) []uart.Packet {
	pkts := make([]uart.Packet, NumRegisters)
	for i := range pkts {
		p := &pkts[i]
		p.SetType(uart.ConfigReadPacket)
		p.SetChipID(chip)
		p.SetRegister(uint8(i))
		p.SetParity()
	}
	return pkts
}

// Mismatch records one register packet whose declared address did not
// match the address expected for its position in the sequence.
type Mismatch struct {
	Pos  int   // position in the packet sequence
	Want uint8 // register address expected at that position
	Got  uint8 // register address the packet declares
}

// DecodeError enumerates what went wrong while decoding a register
// packet sequence. The configuration still holds every register that
// decoded cleanly.
type DecodeError struct {
	Missing    int // registers not covered by the sequence
	Extra      int // packets beyond the register address space
	Mismatches []Mismatch
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("cfg: register decode: %d mismatch(es), %d missing, %d extra",
		len(e.Mismatches), e.Missing, e.Extra,
	)
}

// FromRegPackets decodes a register packet sequence into the
// configuration. Packets are decoded by their declared register
// address; positional mismatches (reordering, corruption) are
// enumerated in a *DecodeError without aborting the rest of the
// decode.
func (c *Config) FromRegPackets(pkts []uart.Packet) error {
	var derr DecodeError

	n := len(pkts)
	if n > NumRegisters {
		derr.Extra = n - NumRegisters
		n = NumRegisters
	}
	derr.Missing = NumRegisters - n

	for i := 0; i < n; i++ {
		p := &pkts[i]
		switch p.Type() {
		case uart.ConfigWritePacket, uart.ConfigReadPacket:
			// ok
		default:
			derr.Mismatches = append(derr.Mismatches, Mismatch{
				Pos: i, Want: uint8(i), Got: p.Register(),
			})
			continue
		}

		addr := p.Register()
		if addr != uint8(i) {
			derr.Mismatches = append(derr.Mismatches, Mismatch{
				Pos: i, Want: uint8(i), Got: addr,
			})
		}
		if err := c.SetRegData(addr, p.RegisterData()); err != nil {
			continue // out-of-range address, field left untouched
		}
	}

	if derr.Missing == 0 && derr.Extra == 0 && len(derr.Mismatches) == 0 {
		return nil
	}
	return &derr
}

func packChans(v *[NumChannels]uint8, chunk int) uint8 {
	var out uint8
	for i := 0; i < 8; i++ {
		if v[chunk*8+i] != 0 {
			out |= 1 << uint(i)
		}
	}
	return out
}

func unpackChans(v *[NumChannels]uint8, chunk int, data uint8) {
	for i := 0; i < 8; i++ {
		v[chunk*8+i] = data >> uint(i) & 1
	}
}
