// Copyright (c) The TamaGo Authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package hostfake provides in-memory implementations of the host
// interfaces, used by this module's tests in place of a real PCI bus,
// MMIO window or interrupt controller.
package hostfake

import "github.com/kneto/netkernel/host"

// ConfigSpace simulates a single PCI bus's configuration space. Devices are
// addressed by (bus, device); function is ignored, as this module never
// probes multi-function devices.
type ConfigSpace struct {
	devices map[[2]uint32][64]uint32
}

// NewConfigSpace returns an empty simulated configuration space.
func NewConfigSpace() *ConfigSpace {
	return &ConfigSpace{devices: make(map[[2]uint32][64]uint32)}
}

// AddDevice installs a device at (bus, slot) whose vendor/device IDs occupy
// configuration offset 0, and whose BAR0 is set to barZero.
func (c *ConfigSpace) AddDevice(bus, slot uint32, vendor, device uint16, barZero uint32) {
	var words [64]uint32
	words[0] = uint32(device)<<16 | uint32(vendor)
	words[0x10/4] = barZero
	c.devices[[2]uint32{bus, slot}] = words
}

func (c *ConfigSpace) ReadConfigDWord(bus, device, fn, offset uint32) uint32 {
	words, ok := c.devices[[2]uint32{bus, device}]
	if !ok {
		return 0xffffffff
	}
	idx := offset / 4
	if int(idx) >= len(words) {
		return 0
	}
	return words[idx]
}

func (c *ConfigSpace) WriteConfigDWord(bus, device, fn, offset, val uint32) {
	words, ok := c.devices[[2]uint32{bus, device}]
	if !ok {
		return
	}
	idx := offset / 4
	if int(idx) >= len(words) {
		return
	}
	words[idx] = val
	c.devices[[2]uint32{bus, device}] = words
}

// MMIO simulates a memory-mapped register window as a flat array of 32-bit
// words.
type MMIO struct {
	words []uint32
}

// NewMMIO returns a zeroed register window sized for at least size bytes.
func NewMMIO(size int) *MMIO {
	return &MMIO{words: make([]uint32, (size+3)/4)}
}

func (m *MMIO) Load32(offset uint32) uint32 {
	return m.words[offset/4]
}

func (m *MMIO) Store32(offset uint32, val uint32) {
	m.words[offset/4] = val
}

// InterruptController records every EnableIRQ call it receives.
type InterruptController struct {
	Enabled []struct{ Line, CPU int }
}

func (i *InterruptController) EnableIRQ(line int, cpu int) {
	i.Enabled = append(i.Enabled, struct{ Line, CPU int }{line, cpu})
}

var _ host.ConfigSpace = (*ConfigSpace)(nil)
var _ host.MMIO = (*MMIO)(nil)
var _ host.InterruptController = (*InterruptController)(nil)
