// Intel 8254x ("E1000") Gigabit Ethernet controller driver
// Copyright (c) The TamaGo Authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package e1000 implements a driver for the Intel 8254x family of Gigabit
// Ethernet controllers, adopting the following reference specification:
//   - Intel 8254x Family of Gigabit Ethernet Controllers Software Developer's Manual
//
// The driver discovers the card over a PCI bus, drives it through a BAR0
// register window mapped by the caller, reads its factory MAC address from the attached EEPROM, and
// exposes two operations to the network stack above it: RxPoll, which
// drains completed receive descriptors into a caller-supplied handler, and
// TxEnqueue, which copies a payload into a fresh page and installs a
// transmit descriptor. Physical memory and interrupt routing are obtained
// through the host package's interfaces rather than assumed to be
// available as raw pointers or port instructions.
package e1000

import (
	"errors"

	"github.com/kneto/netkernel/host"
	"github.com/kneto/netkernel/internal/reg"
	"github.com/kneto/netkernel/soc/intel/pci"
)

// VendorID and DeviceID identify the emulated 82540EM-class controller
// this driver targets.
const (
	VendorID = 0x8086
	DeviceID = 0x100e
)

// probeLimit restricts discovery to the first few PCI device slots, per
// this stack's deliberately narrow discovery sweep.
const probeLimit = 4

// General registers
const (
	CTRL   = 0x0000
	STATUS = 0x0008
	EERD   = 0x0014
	ICR    = 0x00c0
	IMS    = 0x00d0
	IMC    = 0x00d8
)

// EERD fields
const (
	eerdStart = 0
	eerdDone  = 4
	eerdAddr  = 8
	eerdData  = 16
)

// RCTL fields
const (
	RCTL      = 0x0100
	rctlEN    = 1
	rctlSBP   = 2
	rctlUPE   = 3
	rctlMPE   = 4
	rctlLPE   = 5
	rctlBAM   = 15
	rctlBSIZE = 16
	rctlBSEX  = 25
)

// TCTL/TIPG fields
const (
	TCTL     = 0x0400
	TIPG     = 0x0410
	tctlEN   = 1
	tctlPSP  = 3
	tctlCT   = 4
	tctlCOLD = 12
	tctlRTLC = 24
)

// Ring base registers
const (
	RDBAL = 0x2800
	RDBAH = 0x2804
	RDLEN = 0x2808
	RDH   = 0x2810
	RDT   = 0x2818

	TDBAL = 0x3800
	TDBAH = 0x3804
	TDLEN = 0x3808
	TDH   = 0x3810
	TDT   = 0x3818
)

// Interrupt causes, as programmed into IMS
const (
	icrTXDW = 1 << 0
	icrRXT0 = 1 << 7
	icrRXO  = 1 << 6
	icrRXDMT0 = 1 << 4
	icrRXSEQ  = 1 << 3
)

var (
	ErrNoDevice = errors.New("e1000: no matching PCI device found")
	ErrNoBuffer = errors.New("e1000: page allocation failed")
)

// Controller is a singleton E1000 instance, initialised once at boot.
type Controller struct {
	MMIO  host.MMIO
	Alloc host.PageAllocator
	Xlate host.Translator
	IRQ   host.InterruptController

	// IRQLine and CPU identify where the device's interrupt is routed.
	IRQLine int
	CPU     int

	MAC [6]byte

	rx     ring
	rxHead int

	tx             ring
	txCtxInstalled bool
}

// Probe scans devices 0..probeLimit-1 on bus 0 for the controller's
// vendor/device pair, returning nil if none matches.
func Probe(bus *pci.Bus) *pci.Device {
	return bus.ProbeRange(0, probeLimit, VendorID, DeviceID)
}

// Init discovers the device on bus, uses mmio as its already-mapped BAR0
// register window (BAR0 itself is not read here), reads its MAC address and sets up both descriptor rings. It panics if no matching
// device is found or if ring page allocation fails, matching this stack's
// policy that driver initialisation failures are fatal to boot.
func Init(bus *pci.Bus, mmio host.MMIO, alloc host.PageAllocator, xlate host.Translator, irq host.InterruptController, irqLine int) *Controller {
	dev := Probe(bus)
	if dev == nil {
		panic(ErrNoDevice)
	}

	dev.SetBusMaster()

	c := &Controller{
		MMIO:    mmio,
		Alloc:   alloc,
		Xlate:   xlate,
		IRQ:     irq,
		IRQLine: irqLine,
	}

	c.MAC = readMAC(mmio)

	if err := c.setupRxRing(); err != nil {
		panic(err)
	}
	if err := c.setupTxRing(); err != nil {
		panic(err)
	}

	c.enableInterrupts()

	return c
}

func (c *Controller) enableInterrupts() {
	reg.Write(c.MMIO, IMS, icrTXDW|icrRXT0|icrRXO|icrRXDMT0|icrRXSEQ)

	if c.IRQ != nil {
		c.IRQ.EnableIRQ(c.IRQLine, c.CPU)
	}
}

// HardwareAddr returns the controller's factory MAC address, satisfying the
// network stack's NIC interface.
func (c *Controller) HardwareAddr() [6]byte {
	return c.MAC
}

// HandleInterrupt reads and clears ICR, dispatching rx to onRx when RXT0 or
// RXDMT0 is set. TXDW is acknowledged but never reclaims a transmit page — see
// TxEnqueue's documentation for why that leak is intentional.
func (c *Controller) HandleInterrupt(onRx func(buf []byte, length int, eop bool)) {
	cause := reg.Read(c.MMIO, ICR)

	if cause&icrRXT0 != 0 || cause&icrRXDMT0 != 0 {
		c.RxPoll(onRx)
	}

	// TXDW: acknowledged by the ICR read above, intentionally unhandled.
}
