// Copyright (c) The TamaGo Authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package ipv4 implements a symmetric parse/serialise codec for the fixed
// 20-byte IPv4 header (RFC 791, no options). This module never emits
// options or fragments, and Parse rejects any IHL other than 5; the
// fragment offset field is parsed but not checked.
package ipv4

import (
	"encoding/binary"
	"errors"

	"github.com/kneto/netkernel/bits"
)

// HeaderLen is the size of an IPv4 header with no options (IHL=5).
const HeaderLen = 20

// ProtocolUDP is the protocol field value for UDP (RFC 768).
const ProtocolUDP = 0x11

var (
	errShort      = errors.New("ipv4: buffer shorter than header")
	errIHL        = errors.New("ipv4: options not supported (ihl != 5)")
	errNotVersion = errors.New("ipv4: version field is not 4")
)

// Header is the host-byte-order, struct form of a fixed-size IPv4 header.
// The Checksum field is always zero on output: checksum computation is
// delegated to the NIC's offload engine and never verified on input by
// this codec (the demultiplexer does not re-verify it either, per spec).
type Header struct {
	TOS         uint8
	TotalLength uint16
	ID          uint16
	FragOffset  uint16
	TTL         uint8
	Protocol    uint8
	Checksum    uint16
	Source      [4]byte
	Destination [4]byte
}

// Parse decodes a fixed-size IPv4 header from the front of buf. buf must be
// at least HeaderLen bytes. A header whose version is not 4 or whose IHL
// is not 5 (i.e. carries options) is reported as an error: this module's
// Non-goals explicitly exclude IP options.
func Parse(buf []byte) (Header, error) {
	if len(buf) < HeaderLen {
		return Header{}, errShort
	}

	verIHL := uint32(buf[0])
	version := bits.GetN(&verIHL, 4, 0xf)
	ihl := bits.GetN(&verIHL, 0, 0xf)

	if version != 4 {
		return Header{}, errNotVersion
	}
	if ihl != 5 {
		return Header{}, errIHL
	}

	var h Header
	h.TOS = buf[1]
	h.TotalLength = binary.BigEndian.Uint16(buf[2:4])
	h.ID = binary.BigEndian.Uint16(buf[4:6])
	h.FragOffset = binary.BigEndian.Uint16(buf[6:8])
	h.TTL = buf[8]
	h.Protocol = buf[9]
	h.Checksum = binary.BigEndian.Uint16(buf[10:12])
	copy(h.Source[:], buf[12:16])
	copy(h.Destination[:], buf[16:20])

	return h, nil
}

// Serialise encodes h into the front of out, returning the number of bytes
// written. out must be at least HeaderLen bytes. Version/IHL are always
// 4/5; the checksum field is always emitted as zero, for the NIC's
// checksum-offload engine to fill in.
func Serialise(h Header, out []byte) (int, error) {
	if len(out) < HeaderLen {
		return 0, errShort
	}

	var verIHL uint32
	bits.SetN(&verIHL, 4, 0xf, 4)
	bits.SetN(&verIHL, 0, 0xf, 5)
	out[0] = byte(verIHL)
	out[1] = h.TOS
	binary.BigEndian.PutUint16(out[2:4], h.TotalLength)
	binary.BigEndian.PutUint16(out[4:6], h.ID)
	binary.BigEndian.PutUint16(out[6:8], h.FragOffset)
	out[8] = h.TTL
	out[9] = h.Protocol
	binary.BigEndian.PutUint16(out[10:12], 0)
	copy(out[12:16], h.Source[:])
	copy(out[16:20], h.Destination[:])

	return HeaderLen, nil
}
