// Copyright 2023 The go-larpix Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package wave

import (
	"bytes"
	"reflect"
	"strings"
	"testing"
)

func TestInit(t *testing.T) {
	var d Data
	d.InitHigh()
	for ch := 0; ch < NumChannels; ch++ {
		for i := 0; i < Depth; i++ {
			if d.bits[ch][i] != 1 {
				t.Fatalf("init-high: channel %d sample %d: got=%d, want=1", ch, i, d.bits[ch][i])
			}
		}
	}
	d.InitLow()
	for ch := 0; ch < NumChannels; ch++ {
		for i := 0; i < Depth; i++ {
			if d.bits[ch][i] != 0 {
				t.Fatalf("init-low: channel %d sample %d: got=%d, want=0", ch, i, d.bits[ch][i])
			}
		}
	}
}

func TestBytes(t *testing.T) {
	var d Data
	d.InitLow()
	if err := d.SetBitstream(0, []uint8{1, 0, 1}); err != nil {
		t.Fatalf("could not set channel 0: %+v", err)
	}
	if err := d.SetBitstream(3, []uint8{0, 1, 1}); err != nil {
		t.Fatalf("could not set channel 3: %+v", err)
	}

	if got, want := d.Bytes(3), []byte{0x01, 0x08, 0x09}; !bytes.Equal(got, want) {
		t.Fatalf("invalid packed bytes:\ngot= %v\nwant=%v", got, want)
	}

	if got, want := len(d.Bytes(Depth+100)), Depth; got != want {
		t.Fatalf("invalid clamped length: got=%d, want=%d", got, want)
	}
}

func TestBytesRoundTrip(t *testing.T) {
	var (
		src Data
		dst Data
	)
	src.InitHigh()
	_ = src.SetClock(7)
	_ = src.SetBitstream(2, []uint8{1, 0, 0, 1, 1, 0, 1})

	dst.SetBytes(src.Bytes(Depth))
	if got, want := dst.Bytes(Depth), src.Bytes(Depth); !bytes.Equal(got, want) {
		t.Fatalf("bytes round-trip mismatch")
	}
}

func TestBitstream(t *testing.T) {
	var d Data
	// non-zero values normalize to 1.
	if err := d.SetBitstream(1, []uint8{42, 0, 0xff, 1}); err != nil {
		t.Fatalf("could not set bitstream: %+v", err)
	}
	got := make([]uint8, 4)
	if err := d.Bitstream(1, got); err != nil {
		t.Fatalf("could not get bitstream: %+v", err)
	}
	if want := []uint8{1, 0, 1, 1}; !reflect.DeepEqual(got, want) {
		t.Fatalf("invalid bitstream:\ngot= %v\nwant=%v", got, want)
	}

	// oversized input is clamped, not an error.
	if err := d.SetBitstream(1, make([]uint8, Depth+10)); err != nil {
		t.Fatalf("clamped set failed: %+v", err)
	}

	if err := d.SetBitstream(NumChannels, nil); err == nil {
		t.Fatalf("expected an error for channel %d", NumChannels)
	}
	if err := d.Bitstream(-1, nil); err == nil {
		t.Fatalf("expected an error for channel -1")
	}
}

func TestSetClock(t *testing.T) {
	var d Data
	if err := d.SetClock(4); err != nil {
		t.Fatalf("could not set clock pattern: %+v", err)
	}
	for i := 0; i < Depth; i++ {
		if got, want := d.bits[4][i], uint8(i%2); got != want {
			t.Fatalf("sample %d: got=%d, want=%d", i, got, want)
		}
	}
	if err := d.SetClock(8); err == nil {
		t.Fatalf("expected an error for channel 8")
	}
}

func TestWriteBits(t *testing.T) {
	var d Data
	if err := d.WriteBits(0, 1020, []uint8{1, 1, 1, 1}); err != nil {
		t.Fatalf("in-range write failed: %+v", err)
	}

	err := d.WriteBits(0, 1021, []uint8{1, 1, 1, 1})
	if err == nil {
		t.Fatalf("expected an out-of-range error")
	}
	if got, want := err.Error(), "exceeds channel depth"; !strings.Contains(got, want) {
		t.Fatalf("invalid error: got=%q, want substring %q", got, want)
	}

	dst := make([]uint8, 4)
	if err := d.ReadBits(0, 1020, dst); err != nil {
		t.Fatalf("in-range read failed: %+v", err)
	}
	if want := []uint8{1, 1, 1, 1}; !reflect.DeepEqual(dst, want) {
		t.Fatalf("invalid read-back:\ngot= %v\nwant=%v", dst, want)
	}
	if err := d.ReadBits(0, 1021, dst); err == nil {
		t.Fatalf("expected an out-of-range error")
	}
}
