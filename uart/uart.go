// Copyright 2023 The go-larpix Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package uart implements the fixed-width UART frame format spoken by
// LArPix chips on the shared serial bus.
package uart // import "github.com/go-larpix/larpix/uart"

import (
	"fmt"

	"github.com/go-larpix/larpix/internal/bits"
)

// Size is the number of binary samples in one UART frame.
const Size = 54

// PacketType discriminates the four frame layouts, encoded in bits 0-1.
type PacketType uint8

const (
	DataPacket PacketType = iota
	TestPacket
	ConfigWritePacket
	ConfigReadPacket
)

func (pt PacketType) String() string {
	switch pt {
	case DataPacket:
		return "data"
	case TestPacket:
		return "test"
	case ConfigWritePacket:
		return "config write"
	case ConfigReadPacket:
		return "config read"
	}
	return fmt.Sprintf("PacketType(%d)", uint8(pt))
}

// span is an inclusive bit range inside a frame. The same spans drive
// both the setters and the getters, so encode and decode can not drift.
type span struct {
	lo, hi int
}

// Frame layout. packet-type, chip-id and parity apply to all packet
// types; the 10-52 window is re-interpreted per type.
var (
	fldType   = span{0, 1}
	fldChipID = span{2, 9}

	// data packets
	fldChannel   = span{10, 16}
	fldTimestamp = span{17, 40}
	fldDataword  = span{41, 50}
	fldFIFOHalf  = span{51, 51}
	fldFIFOFull  = span{52, 52}

	// config read/write packets
	fldRegAddr = span{10, 17}
	fldRegData = span{18, 25}

	// test packets: one 16-bit counter split over two windows,
	// value = low | high<<12.
	fldTestLow  = span{41, 52}
	fldTestHigh = span{10, 13}

	fldParity = span{53, 53}
)

// Packet is one 54-sample UART frame, stored one byte per sample.
// The zero value is a valid all-zeros frame.
type Packet struct {
	bits [Size]uint8
}

func (p *Packet) get(s span) uint64 { return bits.Uint(p.bits[s.lo : s.hi+1]) }
func (p *Packet) set(s span, v uint64) { bits.PutUint(p.bits[s.lo:s.hi+1], v) }

// Bits returns the frame samples, in offset order.
func (p *Packet) Bits() []uint8 {
	out := make([]uint8, Size)
	copy(out, p.bits[:])
	return out
}

// SetBits loads the frame from a 54-sample stream. Non-zero samples are
// normalized to 1.
func (p *Packet) SetBits(v []uint8) error {
	if len(v) != Size {
		return fmt.Errorf("uart: invalid frame length (got=%d, want=%d)", len(v), Size)
	}
	for i, b := range v {
		if b != 0 {
			p.bits[i] = 1
		} else {
			p.bits[i] = 0
		}
	}
	return nil
}

func (p *Packet) Type() PacketType { return PacketType(p.get(fldType)) }
func (p *Packet) SetType(pt PacketType) { p.set(fldType, uint64(pt)) }

func (p *Packet) ChipID() uint8 { return uint8(p.get(fldChipID)) }
func (p *Packet) SetChipID(id uint8) { p.set(fldChipID, uint64(id)) }

func (p *Packet) Channel() uint8 { return uint8(p.get(fldChannel)) }
func (p *Packet) SetChannel(ch uint8) { p.set(fldChannel, uint64(ch)) }

func (p *Packet) Timestamp() uint32 { return uint32(p.get(fldTimestamp)) }
func (p *Packet) SetTimestamp(ts uint32) { p.set(fldTimestamp, uint64(ts)) }

func (p *Packet) Dataword() uint16 { return uint16(p.get(fldDataword)) }
func (p *Packet) SetDataword(adc uint16) { p.set(fldDataword, uint64(adc)) }

func (p *Packet) FIFOHalf() bool { return p.get(fldFIFOHalf) != 0 }
func (p *Packet) SetFIFOHalf(v bool) { p.set(fldFIFOHalf, b2u(v)) }

func (p *Packet) FIFOFull() bool { return p.get(fldFIFOFull) != 0 }
func (p *Packet) SetFIFOFull(v bool) { p.set(fldFIFOFull, b2u(v)) }

func (p *Packet) Register() uint8 { return uint8(p.get(fldRegAddr)) }
func (p *Packet) SetRegister(addr uint8) { p.set(fldRegAddr, uint64(addr)) }

func (p *Packet) RegisterData() uint8 { return uint8(p.get(fldRegData)) }
func (p *Packet) SetRegisterData(v uint8) { p.set(fldRegData, uint64(v)) }

// TestCounter reconstructs the 16-bit test counter from its two
// non-adjacent windows.
func (p *Packet) TestCounter() uint16 {
	return uint16(p.get(fldTestLow) | p.get(fldTestHigh)<<12)
}

func (p *Packet) SetTestCounter(v uint16) {
	p.set(fldTestLow, uint64(v)&0xfff)
	p.set(fldTestHigh, uint64(v)>>12)
}

// ComputeParity returns the parity value that makes the total count of
// 1-samples among bits 0-53 odd.
func (p *Packet) ComputeParity() uint8 {
	var n int
	for _, b := range p.bits[:fldParity.lo] {
		if b != 0 {
			n++
		}
	}
	return uint8(1 - n%2)
}

// SetParity stores the correct odd-parity bit.
func (p *Packet) SetParity() { p.set(fldParity, uint64(p.ComputeParity())) }

// ForceParity stores an arbitrary parity bit, bypassing the parity
// computation. Used for fault injection.
func (p *Packet) ForceParity(v uint8) { p.set(fldParity, uint64(v)) }

// Parity returns the stored parity bit.
func (p *Packet) Parity() uint8 { return uint8(p.get(fldParity)) }

// CheckParity reports whether the stored parity bit matches a freshly
// computed one.
func (p *Packet) CheckParity() bool { return p.Parity() == p.ComputeParity() }

func (p Packet) String() string {
	switch p.Type() {
	case DataPacket:
		return fmt.Sprintf(
			"data{chip=%d, channel=%d, timestamp=%d, adc=%d, fifo-half=%v, fifo-full=%v, parity=%d}",
			p.ChipID(), p.Channel(), p.Timestamp(), p.Dataword(),
			p.FIFOHalf(), p.FIFOFull(), p.Parity(),
		)
	case TestPacket:
		return fmt.Sprintf(
			"test{chip=%d, counter=%d, parity=%d}",
			p.ChipID(), p.TestCounter(), p.Parity(),
		)
	case ConfigWritePacket, ConfigReadPacket:
		return fmt.Sprintf(
			"%s{chip=%d, reg=%d, value=%d, parity=%d}",
			p.Type(), p.ChipID(), p.Register(), p.RegisterData(), p.Parity(),
		)
	}
	return fmt.Sprintf("uart.Packet{bits=%v}", p.bits)
}

func b2u(v bool) uint64 {
	if v {
		return 1
	}
	return 0
}
