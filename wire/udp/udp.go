// Copyright (c) The TamaGo Authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package udp implements a symmetric parse/serialise codec for UDP headers
// (RFC 768). This module is the only transport this kernel subsystem
// speaks; TCP is an explicit Non-goal.
package udp

import (
	"encoding/binary"
	"errors"
)

// HeaderLen is the fixed size of a UDP header.
const HeaderLen = 8

var errShort = errors.New("udp: buffer shorter than header")

// Header is the host-byte-order, struct form of a UDP header. Checksum is
// always zero on output, matching an outbound frame whose checksum is
// filled in by the NIC's offload engine; inbound checksums are parsed but
// never verified.
type Header struct {
	SourcePort      uint16
	DestinationPort uint16
	Length          uint16
	Checksum        uint16
}

// Parse decodes a UDP header from the front of buf. buf must be at least
// HeaderLen bytes.
func Parse(buf []byte) (Header, error) {
	if len(buf) < HeaderLen {
		return Header{}, errShort
	}

	var h Header
	h.SourcePort = binary.BigEndian.Uint16(buf[0:2])
	h.DestinationPort = binary.BigEndian.Uint16(buf[2:4])
	h.Length = binary.BigEndian.Uint16(buf[4:6])
	h.Checksum = binary.BigEndian.Uint16(buf[6:8])

	return h, nil
}

// Serialise encodes h into the front of out, returning the number of bytes
// written. out must be at least HeaderLen bytes. The checksum field is
// always emitted as zero.
func Serialise(h Header, out []byte) (int, error) {
	if len(out) < HeaderLen {
		return 0, errShort
	}

	binary.BigEndian.PutUint16(out[0:2], h.SourcePort)
	binary.BigEndian.PutUint16(out[2:4], h.DestinationPort)
	binary.BigEndian.PutUint16(out[4:6], h.Length)
	binary.BigEndian.PutUint16(out[6:8], 0)

	return HeaderLen, nil
}
