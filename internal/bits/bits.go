// Copyright 2023 The go-larpix Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package bits converts between unsigned integers and streams of
// byte-per-sample binary values, little-endian bit order.
package bits // import "github.com/go-larpix/larpix/internal/bits"

// Uint converts the stream of 0/1 samples p into an unsigned integer,
// with p[0] the least-significant bit. Any non-zero sample counts as 1.
func Uint(p []uint8) uint64 {
	var v uint64
	for i, b := range p {
		if b != 0 {
			v |= 1 << uint(i)
		}
	}
	return v
}

// PutUint writes the len(dst) low bits of v into dst, one sample per
// bit, with dst[0] the least-significant bit. Higher bits of v are
// dropped: the stream width is fixed by the wire format.
func PutUint(dst []uint8, v uint64) {
	for i := range dst {
		dst[i] = uint8(v >> uint(i) & 1)
	}
}
