// Copyright (c) The TamaGo Authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package arp implements a symmetric parse/serialise codec for ARP packets
// (RFC 826) specialised to Ethernet/IPv4, the only hardware/protocol type
// pair this module ever sends or accepts.
package arp

import (
	"encoding/binary"
	"errors"
)

// HeaderLen is the fixed size of an ARP packet for 6-byte hardware
// addresses and 4-byte protocol addresses (Ethernet/IPv4).
const HeaderLen = 28

// Operation distinguishes an ARP request from a reply.
type Operation uint16

const (
	OpRequest Operation = 1
	OpReply   Operation = 2
)

const (
	hardwareTypeEthernet = 1
	protocolTypeIPv4     = 0x0800
	hardwareLenEthernet  = 6
	protocolLenIPv4      = 4
)

var errShort = errors.New("arp: buffer shorter than header")

// Packet is the host-byte-order, struct form of an ARP packet.
type Packet struct {
	Operation      Operation
	SenderHardware [6]byte
	SenderProtocol [4]byte
	TargetHardware [6]byte
	TargetProtocol [4]byte
}

// Parse decodes an ARP packet from the front of buf. buf must be at least
// HeaderLen bytes. Hardware/protocol type and length fields are validated
// against the Ethernet/IPv4 constants this module exclusively speaks;
// anything else is reported as an error rather than silently misparsed.
func Parse(buf []byte) (Packet, error) {
	if len(buf) < HeaderLen {
		return Packet{}, errShort
	}

	htype := binary.BigEndian.Uint16(buf[0:2])
	ptype := binary.BigEndian.Uint16(buf[2:4])
	hlen := buf[4]
	plen := buf[5]

	if htype != hardwareTypeEthernet || ptype != protocolTypeIPv4 ||
		hlen != hardwareLenEthernet || plen != protocolLenIPv4 {
		return Packet{}, errors.New("arp: unsupported hardware/protocol type or length")
	}

	var p Packet
	p.Operation = Operation(binary.BigEndian.Uint16(buf[6:8]))
	copy(p.SenderHardware[:], buf[8:14])
	copy(p.SenderProtocol[:], buf[14:18])
	copy(p.TargetHardware[:], buf[18:24])
	copy(p.TargetProtocol[:], buf[24:28])

	return p, nil
}

// Serialise encodes p into the front of out, returning the number of bytes
// written. out must be at least HeaderLen bytes. The hardware/protocol
// type and length fields are always the Ethernet/IPv4 constants.
func Serialise(p Packet, out []byte) (int, error) {
	if len(out) < HeaderLen {
		return 0, errShort
	}

	binary.BigEndian.PutUint16(out[0:2], hardwareTypeEthernet)
	binary.BigEndian.PutUint16(out[2:4], protocolTypeIPv4)
	out[4] = hardwareLenEthernet
	out[5] = protocolLenIPv4
	binary.BigEndian.PutUint16(out[6:8], uint16(p.Operation))
	copy(out[8:14], p.SenderHardware[:])
	copy(out[14:18], p.SenderProtocol[:])
	copy(out[18:24], p.TargetHardware[:])
	copy(out[24:28], p.TargetProtocol[:])

	return HeaderLen, nil
}
