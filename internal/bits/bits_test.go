// Copyright 2023 The go-larpix Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package bits

import (
	"reflect"
	"testing"
)

func TestUint(t *testing.T) {
	for _, tc := range []struct {
		name string
		p    []uint8
		want uint64
	}{
		{
			name: "empty",
			p:    nil,
			want: 0,
		},
		{
			name: "one-bit",
			p:    []uint8{1},
			want: 1,
		},
		{
			name: "chipid-120",
			p:    []uint8{0, 0, 0, 1, 1, 1, 1, 0},
			want: 120,
		},
		{
			name: "normalize-non-zero",
			p:    []uint8{2, 0, 0xff, 0},
			want: 5,
		},
		{
			name: "timestamp-24b",
			p: []uint8{
				1, 1, 1, 1, 1, 1, 1, 1,
				1, 1, 1, 1, 1, 1, 1, 1,
				1, 1, 1, 1, 1, 1, 1, 1,
			},
			want: 0xffffff,
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			if got, want := Uint(tc.p), tc.want; got != want {
				t.Fatalf("got=%d, want=%d", got, want)
			}
		})
	}
}

func TestPutUint(t *testing.T) {
	for _, tc := range []struct {
		name string
		v    uint64
		n    int
		want []uint8
	}{
		{
			name: "chipid-120",
			v:    120,
			n:    8,
			want: []uint8{0, 0, 0, 1, 1, 1, 1, 0},
		},
		{
			name: "truncate",
			v:    0x1ff,
			n:    8,
			want: []uint8{1, 1, 1, 1, 1, 1, 1, 1},
		},
		{
			name: "timestamp-24b",
			v:    0x800001,
			n:    24,
			want: []uint8{
				1, 0, 0, 0, 0, 0, 0, 0,
				0, 0, 0, 0, 0, 0, 0, 0,
				0, 0, 0, 0, 0, 0, 0, 1,
			},
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			dst := make([]uint8, tc.n)
			PutUint(dst, tc.v)
			if got, want := dst, tc.want; !reflect.DeepEqual(got, want) {
				t.Fatalf("got= %v\nwant=%v", got, want)
			}
		})
	}
}

func TestRoundTrip(t *testing.T) {
	for _, v := range []uint64{0, 1, 42, 120, 0xff, 0xdead, 0xffffff, 0xcafebabe} {
		dst := make([]uint8, 32)
		PutUint(dst, v)
		if got, want := Uint(dst), v; got != want {
			t.Fatalf("round-trip failed for %d: got=%d", v, got)
		}
	}
}
