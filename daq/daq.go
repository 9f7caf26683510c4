// Copyright 2023 The go-larpix Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package daq drives LArPix chips through an FTDI bit-bang adapter:
// configuration writes and read-backs, and raw waveform acquisition.
package daq // import "github.com/go-larpix/larpix/daq"
