// Intel Peripheral Component Interconnect (PCI) driver
// Copyright (c) The TamaGo Authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package pci implements a driver for Intel Peripheral Component
// Interconnect (PCI) controllers adopting the following reference
// specification:
//   - PCI Local Bus Specification, revision 3.0, PCI Special Interest Group
//
// Configuration space access is delegated to a host.ConfigSpace, the
// software face of the host bus's CONFIG_ADDRESS/CONFIG_DATA port pair —
// real port I/O is architecture-specific and out of this module's scope.
package pci

import (
	"github.com/kneto/netkernel/bits"
	"github.com/kneto/netkernel/host"
)

const maxDevices = 32

// Header Type 0x0 offsets
const (
	VendorID = 0x00
	Command  = 0x04
	Bar0     = 0x10
)

// Command register bits
const BusMaster = 2

// Bus probes configuration space through a host.ConfigSpace.
type Bus struct {
	Ports host.ConfigSpace
}

// NewBus returns a Bus backed by ports.
func NewBus(ports host.ConfigSpace) *Bus {
	return &Bus{Ports: ports}
}

// Device represents a probed PCI device.
type Device struct {
	bus *Bus

	// Bus number
	Bus uint32
	// PCI Slot
	Slot uint32
	// Vendor ID
	Vendor uint16
	// Device ID
	Device uint16
}

// Read reads the device configuration space at a given function and
// register offset.
func (d *Device) Read(fn uint32, off uint32) uint32 {
	return d.bus.Ports.ReadConfigDWord(d.Bus, d.Slot, fn, off)
}

// Write writes the device configuration space at a given function and
// register offset, the offset must be 32-bit aligned.
func (d *Device) Write(fn uint32, off uint32, val uint32) {
	d.bus.Ports.WriteConfigDWord(d.Bus, d.Slot, fn, off, val)
}

// SetBusMaster sets the bus-master bit in the command register, allowing
// the device to initiate DMA.
func (d *Device) SetBusMaster() {
	cmd := d.Read(0, Command)
	bits.Set(&cmd, BusMaster)
	d.Write(0, Command, cmd)
}

// BaseAddress returns a device's nth Base Address Register (BAR), decoding
// 32-bit and 64-bit memory BAR types.
func (d *Device) BaseAddress(n int) uint {
	if n > 5 {
		return 0
	}

	off := uint32(Bar0) + uint32(n)*4
	bar := d.Read(0, off)

	switch bits.GetN(&bar, 1, 0b11) {
	case 0:
		return uint(bar &^ 0xf)
	case 2:
		hi := d.Read(0, off+4)
		return uint(hi)<<32 | uint(bar&0xfffffff0)
	}

	return 0
}

func (d *Device) probe() bool {
	val := d.Read(0, VendorID)

	if d.Vendor = uint16(val); d.Vendor == 0xffff {
		return false
	}

	d.Device = uint16(val >> 16)

	return true
}

// Probe scans devices 0..maxDevices-1 on bus for the first one matching
// vendor/device, returning nil if none is found.
func (b *Bus) Probe(bus int, vendor uint16, device uint16) *Device {
	d := &Device{bus: b, Bus: uint32(bus)}

	for slot := uint32(0); slot < maxDevices; slot++ {
		d.Slot = slot

		if d.probe() && d.Vendor == vendor && d.Device == device {
			return d
		}
	}

	return nil
}

// ProbeRange scans devices [0, limit) on bus for the first one matching
// vendor/device. The E1000 driver uses this with limit=4, per spec.
func (b *Bus) ProbeRange(bus int, limit int, vendor uint16, device uint16) *Device {
	d := &Device{bus: b, Bus: uint32(bus)}

	for slot := uint32(0); slot < uint32(limit); slot++ {
		d.Slot = slot

		if d.probe() && d.Vendor == vendor && d.Device == device {
			return d
		}
	}

	return nil
}
