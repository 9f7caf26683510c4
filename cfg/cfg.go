// Copyright 2023 The go-larpix Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package cfg describes the configuration state of one LArPix chip and
// its serialization to and from configuration-register UART packets.
package cfg // import "github.com/go-larpix/larpix/cfg"

// NumChannels is the number of pixel channels per chip.
const NumChannels = 32

// Test modes (register 47, bits 0-1).
const (
	TestOff  = 0x0
	TestUART = 0x1
	TestFIFO = 0x2
)

// Config is the desired configuration state of one chip. Fields are
// plain values owned by the caller; the register codec in this package
// maps them onto the 63-register address space.
type Config struct {
	PixelTrimThresholds [NumChannels]uint8 `json:"pixel_trim_thresholds"`
	GlobalThreshold     uint8              `json:"global_threshold"`

	CSAGain        uint8 `json:"csa_gain"`
	CSABypass      uint8 `json:"csa_bypass"`
	InternalBypass uint8 `json:"internal_bypass"`

	CSABypassSelect    [NumChannels]uint8 `json:"csa_bypass_select"`
	CSAMonitorSelect   [NumChannels]uint8 `json:"csa_monitor_select"`
	CSATestpulseEnable [NumChannels]uint8 `json:"csa_testpulse_enable"`

	CSATestpulseDACAmplitude uint8 `json:"csa_testpulse_dac_amplitude"`

	TestMode         uint8 `json:"test_mode"`
	CrossTriggerMode uint8 `json:"cross_trigger_mode"`
	PeriodicReset    uint8 `json:"periodic_reset"`
	FIFODiagnostic   uint8 `json:"fifo_diagnostic"`

	SampleCycles    uint8  `json:"sample_cycles"`
	TestBurstLength uint16 `json:"test_burst_length"`
	ADCBurstLength  uint8  `json:"adc_burst_length"`

	ChannelMask         [NumChannels]uint8 `json:"channel_mask"`
	ExternalTriggerMask [NumChannels]uint8 `json:"external_trigger_mask"`

	ResetCycles uint32 `json:"reset_cycles"`
}

// Default returns the configuration chips boot with on the bench:
// moderate thresholds, CSA powered, all channels enabled.
func Default() Config {
	var c Config
	for i := range c.PixelTrimThresholds {
		c.PixelTrimThresholds[i] = 16
	}
	c.GlobalThreshold = 16
	c.CSAGain = 1
	c.InternalBypass = 1
	c.SampleCycles = 1
	c.ResetCycles = 4096
	return c
}

// EnableChannels clears the channel mask for the given channels
// (all of them if none are given).
func (c *Config) EnableChannels(chans ...int) {
	c.setMask(&c.ChannelMask, 0, chans)
}

// DisableChannels sets the channel mask for the given channels
// (all of them if none are given).
func (c *Config) DisableChannels(chans ...int) {
	c.setMask(&c.ChannelMask, 1, chans)
}

// EnableTestpulse enables the test pulser on the given channels
// (all of them if none are given). The enable line is active low.
func (c *Config) EnableTestpulse(chans ...int) {
	c.setMask(&c.CSATestpulseEnable, 0, chans)
}

// DisableTestpulse disables the test pulser on the given channels
// (all of them if none are given).
func (c *Config) DisableTestpulse(chans ...int) {
	c.setMask(&c.CSATestpulseEnable, 1, chans)
}

func (c *Config) setMask(mask *[NumChannels]uint8, v uint8, chans []int) {
	if len(chans) == 0 {
		for i := range mask {
			mask[i] = v
		}
		return
	}
	for _, ch := range chans {
		if ch < 0 || ch >= NumChannels {
			continue
		}
		mask[ch] = v
	}
}
