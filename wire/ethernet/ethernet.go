// Copyright (c) The TamaGo Authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package ethernet implements a symmetric parse/serialise codec for
// Ethernet II frame headers (IEEE 802.3), with no VLAN tagging support —
// this module never emits or expects an 802.1Q tag.
package ethernet

import (
	"encoding/binary"
	"errors"
)

// HeaderLen is the fixed size of an Ethernet II header on the wire.
const HeaderLen = 14

// EtherType identifies the payload protocol carried by a frame.
type EtherType uint16

const (
	TypeIPv4 EtherType = 0x0800
	TypeARP  EtherType = 0x0806
	TypeIPv6 EtherType = 0x86DD
)

// Broadcast is the link-layer all-stations address.
var Broadcast = [6]byte{0xff, 0xff, 0xff, 0xff, 0xff, 0xff}

var errShort = errors.New("ethernet: buffer shorter than header")

// Header is the host-byte-order, struct form of an Ethernet II header.
// Byte order conversion happens only in Parse and Serialise.
type Header struct {
	Destination [6]byte
	Source      [6]byte
	Type        EtherType
}

// Parse decodes an Ethernet header from the front of buf. buf must be at
// least HeaderLen bytes; Parse never allocates and never looks past
// HeaderLen bytes.
func Parse(buf []byte) (Header, error) {
	if len(buf) < HeaderLen {
		return Header{}, errShort
	}

	var h Header
	copy(h.Destination[:], buf[0:6])
	copy(h.Source[:], buf[6:12])
	h.Type = EtherType(binary.BigEndian.Uint16(buf[12:14]))

	return h, nil
}

// Serialise encodes h into the front of out, returning the number of bytes
// written. out must be at least HeaderLen bytes.
func Serialise(h Header, out []byte) (int, error) {
	if len(out) < HeaderLen {
		return 0, errShort
	}

	copy(out[0:6], h.Destination[:])
	copy(out[6:12], h.Source[:])
	binary.BigEndian.PutUint16(out[12:14], uint16(h.Type))

	return HeaderLen, nil
}
