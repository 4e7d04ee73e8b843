// Copyright (c) The TamaGo Authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package netstack implements the connection table and packet
// demultiplexer sitting between an Ethernet NIC and the syscall surface:
// a fixed-capacity array of UDP "connections" indexed by their own local
// port, an ARP responder and resolver, and a single stack-wide lock
// serialising every operation on both the table and the driver's
// descriptor rings.
//
// A NetStack is an ordinary value owned by its caller and passed by
// reference to every entry point, rather than a package-level singleton —
// this is what makes the stack constructible against a fake NIC in tests.
package netstack

import (
	"errors"
	"sync"

	"github.com/kneto/netkernel/host"
	"github.com/kneto/netkernel/wire/arp"
	"github.com/kneto/netkernel/wire/ethernet"
	"github.com/kneto/netkernel/wire/ipv4"
	"github.com/kneto/netkernel/wire/udp"
)

// NCONN is the fixed capacity of the connection table.
const NCONN = 100

// PortOffset is added to a slot index to obtain its local UDP port.
const PortOffset = 3000

// LocalIP is the stack's sole local IPv4 address: 10.0.0.2.
var LocalIP = [4]byte{10, 0, 0, 2}

var (
	ErrTableFull    = errors.New("netstack: connection table full")
	ErrOutOfMemory  = errors.New("netstack: receive buffer allocation failed")
	ErrNoBuffer     = errors.New("netstack: transmit buffer allocation failed")
	ErrBadFD        = errors.New("netstack: invalid connection descriptor")
	ErrNotOpen      = errors.New("netstack: connection not open")
)

// NIC is the subset of the E1000 driver the stack depends on. Kept narrow
// so tests can substitute a fake without dragging in PCI or MMIO.
type NIC interface {
	TxEnqueue(payload []byte, wantOffload bool) error
	HardwareAddr() [6]byte
}

// connection is one slot of the fixed-capacity table.
type connection struct {
	inUse          bool
	localPort      uint16
	remoteAddr     [4]byte
	remotePort     uint16
	remoteMAC      [6]byte
	remoteMACValid bool
	rxBuf          []byte
	rxLen          int
	cond           *sync.Cond
}

// NetStack owns the connection table, the NIC it drives, and the single
// lock protecting both. It is the sole shared mutable state of this
// module; the E1000 driver's descriptor-ring state is protected by the
// same lock, since the driver's interrupt handler reaches it indirectly
// through HandlePacket.
type NetStack struct {
	lock sync.Mutex

	nic   NIC
	alloc host.PageAllocator

	table [NCONN]connection

	stats Stats
}

// New returns a NetStack driving nic, using alloc for per-connection
// receive buffers and outbound frame scratch pages.
func New(nic NIC, alloc host.PageAllocator) *NetStack {
	ns := &NetStack{nic: nic, alloc: alloc}

	for i := range ns.table {
		ns.table[i].cond = sync.NewCond(&ns.lock)
	}

	return ns
}

// Open finds the lowest free slot, binds it to (remoteAddr, remotePort),
// issues an ARP request for remoteAddr, and blocks until a matching reply
// arrives. typ is retained only for source compatibility with the
// syscall's type argument; this stack speaks UDP exclusively.
func (ns *NetStack) Open(remoteAddr [4]byte, remotePort uint16, typ uint8) (int, error) {
	ns.lock.Lock()
	defer ns.lock.Unlock()

	slot := -1
	for i := range ns.table {
		if !ns.table[i].inUse {
			slot = i
			break
		}
	}
	if slot == -1 {
		return -1, ErrTableFull
	}

	buf, _, err := ns.alloc.AllocPage()
	if err != nil {
		return -1, ErrOutOfMemory
	}

	c := &ns.table[slot]
	c.inUse = true
	c.localPort = PortOffset + uint16(slot)
	c.remoteAddr = remoteAddr
	c.remotePort = remotePort
	c.remoteMACValid = false
	c.rxBuf = buf
	c.rxLen = 0

	ns.sendARPRequest(remoteAddr)

	for !c.remoteMACValid {
		c.cond.Wait()
	}

	return slot, nil
}

// Close idempotently frees the slot's receive page and clears it.
// Outstanding sleepers are not cancelled: none should exist when the
// caller observes the spec's calling discipline (a connection is only
// closed by the goroutine that opened it, after any blocking Read
// returns).
func (ns *NetStack) Close(netfd int) error {
	ns.lock.Lock()
	defer ns.lock.Unlock()

	if netfd < 0 || netfd >= NCONN {
		return ErrBadFD
	}

	c := &ns.table[netfd]
	if !c.inUse {
		return nil
	}

	if c.rxBuf != nil {
		ns.alloc.FreePage(c.rxBuf)
	}

	*c = connection{cond: c.cond}

	return nil
}

// Write builds an Ethernet/IPv4/UDP frame around data into a scratch page
// and hands it to the driver. The scratch page is freed immediately after
// handoff: the driver's own TxEnqueue copies the bytes into the page that
// actually rides the TX ring, so this one never needs to outlive the call.
func (ns *NetStack) Write(netfd int, data []byte) (int, error) {
	ns.lock.Lock()
	defer ns.lock.Unlock()

	if netfd < 0 || netfd >= NCONN {
		return -1, ErrBadFD
	}

	c := &ns.table[netfd]
	if !c.inUse {
		return -1, ErrNotOpen
	}

	scratch, _, err := ns.alloc.AllocPage()
	if err != nil {
		return -1, ErrNoBuffer
	}
	defer ns.alloc.FreePage(scratch)

	n, err := ns.buildUDPFrame(scratch, c, data)
	if err != nil {
		return -1, err
	}

	if err := ns.nic.TxEnqueue(scratch[:n], true); err != nil {
		return -1, ErrNoBuffer
	}

	ns.stats.TxDatagrams++

	return len(data), nil
}

// buildUDPFrame serialises Ethernet+IPv4+UDP headers and the payload into
// out, returning the total frame length.
func (ns *NetStack) buildUDPFrame(out []byte, c *connection, data []byte) (int, error) {
	udpLen := udp.HeaderLen + len(data)
	ipLen := ipv4.HeaderLen + udpLen

	eth := ethernet.Header{
		Destination: c.remoteMAC,
		Source:      ns.nic.HardwareAddr(),
		Type:        ethernet.TypeIPv4,
	}
	ip := ipv4.Header{
		TotalLength: uint16(ipLen),
		TTL:         64,
		Protocol:    ipv4.ProtocolUDP,
		Source:      LocalIP,
		Destination: c.remoteAddr,
	}
	u := udp.Header{
		SourcePort:      c.localPort,
		DestinationPort: c.remotePort,
		Length:          uint16(udpLen),
	}

	off := 0
	n, err := ethernet.Serialise(eth, out[off:])
	if err != nil {
		return 0, err
	}
	off += n

	n, err = ipv4.Serialise(ip, out[off:])
	if err != nil {
		return 0, err
	}
	off += n

	n, err = udp.Serialise(u, out[off:])
	if err != nil {
		return 0, err
	}
	off += n

	off += copy(out[off:], data)

	return off, nil
}

// Read sleeps while the connection's receive buffer is empty, then copies
// min(rxLen, len(dst)) bytes and slides any remainder to the front of the
// buffer so a subsequent Read never re-observes already-copied bytes.
func (ns *NetStack) Read(netfd int, dst []byte) (int, error) {
	ns.lock.Lock()
	defer ns.lock.Unlock()

	if netfd < 0 || netfd >= NCONN {
		return -1, ErrBadFD
	}

	c := &ns.table[netfd]
	if !c.inUse {
		return -1, ErrNotOpen
	}

	for c.rxLen == 0 {
		c.cond.Wait()

		if !c.inUse {
			return -1, ErrNotOpen
		}
	}

	n := c.rxLen
	if len(dst) < n {
		n = len(dst)
	}

	copy(dst, c.rxBuf[:n])

	remaining := c.rxLen - n
	copy(c.rxBuf[0:remaining], c.rxBuf[n:c.rxLen])
	c.rxLen = remaining

	return n, nil
}

func (ns *NetStack) sendARPRequest(target [4]byte) {
	pkt := arp.Packet{
		Operation:      arp.OpRequest,
		SenderHardware: ns.nic.HardwareAddr(),
		SenderProtocol: LocalIP,
		TargetHardware: [6]byte{},
		TargetProtocol: target,
	}

	frame := make([]byte, ethernet.HeaderLen+arp.HeaderLen)
	ns.writeARPFrame(frame, ethernet.Broadcast, pkt)
	_ = ns.nic.TxEnqueue(frame, false)
}

func (ns *NetStack) writeARPFrame(out []byte, dst [6]byte, pkt arp.Packet) {
	eth := ethernet.Header{
		Destination: dst,
		Source:      ns.nic.HardwareAddr(),
		Type:        ethernet.TypeARP,
	}
	n, _ := ethernet.Serialise(eth, out)
	arp.Serialise(pkt, out[n:])
}
