// Intel Advanced Programmable Interrupt Controller (APIC) driver
// Copyright (c) The TamaGo Authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package ioapic implements a driver for the Intel I/O (IOAPIC) Advanced
// Programmable Interrupt Controller adopting the following reference
// specification:
//   - 82093AA I/O Advanced Programmable Interrupt Controller (IOAPIC)
//
// IOAPIC implements host.InterruptController, the interface the E1000
// driver uses to route its IRQ line to a CPU without depending on a
// specific interrupt controller.
package ioapic

import (
	"github.com/kneto/netkernel/bits"
	"github.com/kneto/netkernel/host"
	"github.com/kneto/netkernel/internal/reg"
)

// Supported vectors
const (
	MinVector = 16
	MaxVector = 255
)

// I/O APIC registers, accessed through the index/window pair at IOREGSEL/IOWIN.
const (
	IOREGSEL = 0x00
	IOWIN    = 0x10

	IOAPICID = 0x00

	IOAPICVER   = 0x01
	VER_ENTRIES = 16

	IOAPICREDTBLn  = 0x10
	REDTBL_DEST    = 56
	REDTBL_MASK    = 16
	REDTBL_DESTMOD = 11
	REDTBL_INTVEC  = 0
)

// baseVector is the interrupt vector assigned to every redirected line;
// this stack dispatches a single NIC IRQ, so one fixed vector suffices.
const baseVector = MinVector

// IOAPIC represents an I/O APIC instance reachable through an MMIO window.
type IOAPIC struct {
	MMIO host.MMIO

	// Controller index
	Index int
	// Global System Interrupt Base
	GSIBase int
}

// Init initializes the I/O APIC, assigning it Index as its arbitration ID.
func (io *IOAPIC) Init() {
	reg.Write(io.MMIO, IOREGSEL, IOAPICID)
	reg.SetN(io.MMIO, IOWIN, 24, 0xf, uint32(io.Index))
}

// ID returns the IOAPIC identification.
func (io *IOAPIC) ID() uint32 {
	reg.Write(io.MMIO, IOREGSEL, IOAPICID)
	return reg.Get(io.MMIO, IOWIN, 24, 0xf)
}

// Version returns the IOAPIC version register.
func (io *IOAPIC) Version() uint32 {
	reg.Write(io.MMIO, IOREGSEL, IOAPICVER)
	return reg.Read(io.MMIO, IOWIN)
}

// Entries returns the size of the IOAPIC redirection table.
func (io *IOAPIC) Entries() int {
	reg.Write(io.MMIO, IOREGSEL, IOAPICVER)
	maxIndex := reg.Get(io.MMIO, IOWIN, VER_ENTRIES, 0xff)
	return int(maxIndex) + 1
}

// EnableIRQ activates the IOAPIC redirection table entry for line,
// delivering it to cpu at the fixed base vector. It implements
// host.InterruptController.
func (io *IOAPIC) EnableIRQ(line int, cpu int) {
	var val uint32

	index := line - io.GSIBase

	if index < 0 || index > io.Entries()-1 {
		return
	}

	// set destination field for physical mode; REDTBL_DEST is a bit of the
	// 64-bit entry, so the field lives in the entry's high dword
	var hi uint32
	bits.Clear(&val, REDTBL_DESTMOD)
	bits.SetN(&hi, REDTBL_DEST-32, 0xf, uint32(cpu))

	// set interrupt vector
	bits.Clear(&val, REDTBL_MASK)
	bits.SetN(&val, REDTBL_INTVEC, 0xff, uint32(baseVector))

	// set redirection table entry, high dword first so the low dword
	// (which unmasks the line) is written last
	reg.Write(io.MMIO, IOREGSEL, IOAPICREDTBLn+uint32(index*2)+1)
	reg.Write(io.MMIO, IOWIN, hi)
	reg.Write(io.MMIO, IOREGSEL, IOAPICREDTBLn+uint32(index*2))
	reg.Write(io.MMIO, IOWIN, val)
}

var _ host.InterruptController = (*IOAPIC)(nil)
