// Copyright (c) The TamaGo Authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package netstack

import (
	"github.com/kneto/netkernel/wire/arp"
	"github.com/kneto/netkernel/wire/ethernet"
	"github.com/kneto/netkernel/wire/ipv4"
	"github.com/kneto/netkernel/wire/udp"
)

// HandlePacket is the driver's upcall for each completed receive
// descriptor. It acquires the stack's lock for its entire body; the driver
// calls it synchronously from RxPoll, which does not hold the lock itself,
// so the caller that triggered the poll (an interrupt handler or a test)
// must not hold it either.
func (ns *NetStack) HandlePacket(buf []byte, length int, eop bool) {
	ns.lock.Lock()
	defer ns.lock.Unlock()

	if length > len(buf) {
		length = len(buf)
	}
	frame := buf[:length]

	eth, err := ethernet.Parse(frame)
	if err != nil {
		ns.stats.Dropped++
		return
	}
	ns.stats.RxPackets++

	rest := frame[ethernet.HeaderLen:]

	switch eth.Type {
	case ethernet.TypeARP:
		ns.handleARP(rest)
	case ethernet.TypeIPv4:
		ns.handleIPv4(rest)
	default:
		ns.stats.Dropped++
	}
}

func (ns *NetStack) handleARP(buf []byte) {
	pkt, err := arp.Parse(buf)
	if err != nil {
		ns.stats.Dropped++
		return
	}

	if pkt.TargetProtocol != LocalIP {
		ns.stats.Dropped++
		return
	}

	switch pkt.Operation {
	case arp.OpReply:
		for i := range ns.table {
			c := &ns.table[i]
			if c.inUse && c.remoteAddr == pkt.SenderProtocol {
				c.remoteMAC = pkt.SenderHardware
				c.remoteMACValid = true
				c.cond.Broadcast()
				ns.stats.ARPRepliesSeen++
			}
		}

	case arp.OpRequest:
		reply := arp.Packet{
			Operation:      arp.OpReply,
			SenderHardware: ns.nic.HardwareAddr(),
			SenderProtocol: LocalIP,
			TargetHardware: pkt.SenderHardware,
			TargetProtocol: pkt.SenderProtocol,
		}
		frame := make([]byte, ethernet.HeaderLen+arp.HeaderLen)
		ns.writeARPFrame(frame, pkt.SenderHardware, reply)
		if err := ns.nic.TxEnqueue(frame, false); err == nil {
			ns.stats.ARPRepliesSent++
		}

	default:
		ns.stats.Dropped++
	}
}

func (ns *NetStack) handleIPv4(buf []byte) {
	hdr, err := ipv4.Parse(buf)
	if err != nil {
		ns.stats.Dropped++
		return
	}

	if hdr.Destination != LocalIP {
		ns.stats.Dropped++
		return
	}

	if hdr.Protocol != ipv4.ProtocolUDP {
		ns.stats.Dropped++
		return
	}

	udpBuf := buf[ipv4.HeaderLen:]
	uh, err := udp.Parse(udpBuf)
	if err != nil {
		ns.stats.Dropped++
		return
	}

	if int(uh.Length) < udp.HeaderLen {
		ns.stats.Dropped++
		return
	}

	payloadLen := int(uh.Length) - udp.HeaderLen
	available := len(udpBuf) - udp.HeaderLen
	if payloadLen > available {
		// header claims more than was received: truncated, drop silently.
		ns.stats.Dropped++
		return
	}
	payload := udpBuf[udp.HeaderLen : udp.HeaderLen+payloadLen]

	for i := range ns.table {
		c := &ns.table[i]
		if c.inUse && c.localPort == uh.DestinationPort {
			ns.appendPayload(c, payload)
			ns.stats.UDPDelivered++
			return
		}
	}

	ns.stats.Dropped++
}

// appendPayload copies as much of payload as fits in the connection's
// remaining receive buffer capacity, silently discarding the rest: an
// overflowing datagram is protocol-correct UDP loss, not an error.
func (ns *NetStack) appendPayload(c *connection, payload []byte) {
	room := len(c.rxBuf) - c.rxLen
	n := len(payload)
	if n > room {
		n = room
	}

	copy(c.rxBuf[c.rxLen:c.rxLen+n], payload[:n])
	c.rxLen += n

	c.cond.Broadcast()
}
