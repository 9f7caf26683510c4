// Copyright 2023 The go-larpix Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package uart

import (
	"fmt"

	"github.com/go-larpix/larpix/wave"
)

// Oversampling factors in use: the production link samples each logical
// bit 4 times, the simplified bench layout once.
const (
	BitsPerBaud       = 4
	SimpleBitsPerBaud = 1
)

const (
	startBit = 0
	stopBit  = 1
)

// Footprint returns the number of waveform samples one framed packet
// occupies at the given oversampling factor: start bit + 54 frame bits +
// stop bit, each repeated bitsPerBaud times.
func Footprint(bitsPerBaud int) int {
	return (Size + 2) * bitsPerBaud
}

// Embed writes p into channel ch of data, framed with a start bit (0)
// and a stop bit (1), starting at sample offset. Each logical bit is
// repeated bitsPerBaud times. The buffer is left untouched if the
// footprint does not fit.
func Embed(p *Packet, data *wave.Data, ch, offset, bitsPerBaud int) error {
	if bitsPerBaud < 1 {
		return fmt.Errorf("uart: invalid bits-per-baud %d", bitsPerBaud)
	}

	frame := make([]uint8, 0, Footprint(bitsPerBaud))
	put := func(bit uint8) {
		for i := 0; i < bitsPerBaud; i++ {
			frame = append(frame, bit)
		}
	}
	put(startBit)
	for _, bit := range p.bits {
		put(bit)
	}
	put(stopBit)

	err := data.WriteBits(ch, offset, frame)
	if err != nil {
		return fmt.Errorf("uart: could not embed packet: %w", err)
	}
	return nil
}

// Scan walks channel ch of data and extracts every framed packet it
// finds. The line idles high; any low sample within reach of a full
// footprint is taken as a start bit. Parity is not checked, corrupted
// packets are returned as-is.
func Scan(data *wave.Data, ch, bitsPerBaud int) ([]Packet, error) {
	bits := make([]uint8, wave.Depth)
	err := data.Bitstream(ch, bits)
	if err != nil {
		return nil, fmt.Errorf("uart: could not scan channel %d: %w", ch, err)
	}
	pkts, err := ScanBits(bits, bitsPerBaud)
	if err != nil {
		return nil, fmt.Errorf("uart: could not scan channel %d: %w", ch, err)
	}
	return pkts, nil
}

// ScanBits is Scan over a raw sample stream, one byte per sample.
func ScanBits(bits []uint8, bitsPerBaud int) ([]Packet, error) {
	if bitsPerBaud < 1 {
		return nil, fmt.Errorf("uart: invalid bits-per-baud %d", bitsPerBaud)
	}

	var pkts []Packet
	for off := 0; off+Footprint(bitsPerBaud) <= len(bits); {
		if bits[off] != startBit {
			off++
			continue
		}
		var p Packet
		for i := range p.bits {
			if bits[off+(i+1)*bitsPerBaud] != 0 {
				p.bits[i] = 1
			}
		}
		pkts = append(pkts, p)
		off += Footprint(bitsPerBaud)
	}
	return pkts, nil
}

// Extract reads a packet embedded at sample offset of channel ch,
// skipping the start/stop framing bits: the 54 frame bits are sampled
// one logical-bit position after offset, one sample per logical bit.
func Extract(data *wave.Data, ch, offset, bitsPerBaud int) (Packet, error) {
	var p Packet
	if bitsPerBaud < 1 {
		return p, fmt.Errorf("uart: invalid bits-per-baud %d", bitsPerBaud)
	}

	raw := make([]uint8, (Size-1)*bitsPerBaud+1)
	err := data.ReadBits(ch, offset+bitsPerBaud, raw)
	if err != nil {
		return p, fmt.Errorf("uart: could not extract packet: %w", err)
	}
	for i := range p.bits {
		if raw[i*bitsPerBaud] != 0 {
			p.bits[i] = 1
		}
	}
	return p, nil
}
