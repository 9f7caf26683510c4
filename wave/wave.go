// Copyright 2023 The go-larpix Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package wave holds the multiplexed waveform buffer exchanged with the
// bit-banged USB adapter: 8 digital lines sampled at a fixed clock.
//
// Samples are stored one per byte, not packed, so a channel waveform can
// be fed to (or diffed against) logic-analyzer tooling as-is. This is the
// wire/debug format, not an implementation detail.
package wave // import "github.com/go-larpix/larpix/wave"

import "fmt"

const (
	// NumChannels is the number of digital lines multiplexed on the link.
	NumChannels = 8
	// Depth is the number of samples stored per channel.
	Depth = 1024
)

// Data is a fixed-capacity buffer of NumChannels binary waveforms,
// Depth samples each. Every stored sample is 0 or 1.
//
// Data is owned by the caller and mutated in place. Concurrent use of
// the same buffer needs caller-side exclusion.
type Data struct {
	bits [NumChannels][Depth]uint8
}

// InitHigh sets all samples of all channels to 1.
func (d *Data) InitHigh() {
	for ch := range d.bits {
		for i := range d.bits[ch] {
			d.bits[ch][i] = 1
		}
	}
}

// InitLow sets all samples of all channels to 0.
func (d *Data) InitLow() {
	for ch := range d.bits {
		for i := range d.bits[ch] {
			d.bits[ch][i] = 0
		}
	}
}

// SetClock writes the alternating 0,1,0,1,... clock pattern into channel ch.
func (d *Data) SetClock(ch int) error {
	if ch < 0 || ch >= NumChannels {
		return fmt.Errorf("wave: invalid channel %d", ch)
	}
	for i := range d.bits[ch] {
		d.bits[ch][i] = uint8(i & 1)
	}
	return nil
}

// Bytes packs the first n samples into one byte per sample, bit k of each
// byte carrying channel k (LSB = channel 0). n is clamped to Depth.
func (d *Data) Bytes(n int) []byte {
	if n > Depth {
		n = Depth
	}
	if n < 0 {
		n = 0
	}
	out := make([]byte, n)
	for i := range out {
		var v byte
		for ch := 0; ch < NumChannels; ch++ {
			if d.bits[ch][i] != 0 {
				v |= 1 << uint(ch)
			}
		}
		out[i] = v
	}
	return out
}

// SetBytes unpacks p, one byte per sample, into the channel waveforms:
// bit k of p[i] becomes sample i of channel k. len(p) is clamped to Depth.
func (d *Data) SetBytes(p []byte) {
	n := len(p)
	if n > Depth {
		n = Depth
	}
	for i := 0; i < n; i++ {
		for ch := 0; ch < NumChannels; ch++ {
			d.bits[ch][i] = uint8(p[i] >> uint(ch) & 1)
		}
	}
}

// SetBitstream copies the binary values v into channel ch, starting at
// sample 0. len(v) is clamped to Depth. Non-zero values are stored as 1.
func (d *Data) SetBitstream(ch int, v []uint8) error {
	if ch < 0 || ch >= NumChannels {
		return fmt.Errorf("wave: invalid channel %d", ch)
	}
	n := len(v)
	if n > Depth {
		n = Depth
	}
	for i := 0; i < n; i++ {
		d.bits[ch][i] = norm(v[i])
	}
	return nil
}

// Bitstream copies samples of channel ch into dst, starting at sample 0.
// len(dst) is clamped to Depth.
func (d *Data) Bitstream(ch int, dst []uint8) error {
	if ch < 0 || ch >= NumChannels {
		return fmt.Errorf("wave: invalid channel %d", ch)
	}
	n := len(dst)
	if n > Depth {
		n = Depth
	}
	copy(dst[:n], d.bits[ch][:n])
	return nil
}

// WriteBits copies p into channel ch starting at sample offset.
// Unlike SetBitstream, an out-of-range span is an error and leaves the
// buffer untouched.
func (d *Data) WriteBits(ch, offset int, p []uint8) error {
	if ch < 0 || ch >= NumChannels {
		return fmt.Errorf("wave: invalid channel %d", ch)
	}
	if offset < 0 || offset+len(p) > Depth {
		return fmt.Errorf("wave: bit range [%d, %d) exceeds channel depth %d",
			offset, offset+len(p), Depth,
		)
	}
	for i, v := range p {
		d.bits[ch][offset+i] = norm(v)
	}
	return nil
}

// ReadBits copies len(dst) samples of channel ch, starting at sample
// offset, into dst.
func (d *Data) ReadBits(ch, offset int, dst []uint8) error {
	if ch < 0 || ch >= NumChannels {
		return fmt.Errorf("wave: invalid channel %d", ch)
	}
	if offset < 0 || offset+len(dst) > Depth {
		return fmt.Errorf("wave: bit range [%d, %d) exceeds channel depth %d",
			offset, offset+len(dst), Depth,
		)
	}
	copy(dst, d.bits[ch][offset:offset+len(dst)])
	return nil
}

func norm(v uint8) uint8 {
	if v != 0 {
		return 1
	}
	return 0
}
