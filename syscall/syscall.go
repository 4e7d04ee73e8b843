// Copyright (c) The TamaGo Authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package syscall implements the four network system calls and their BSD
// socket-style aliases, marshaling caller arguments into netstack.NetStack
// operations and collapsing every error into the negative-integer
// convention this kernel's syscall ABI uses.
//
// Argument marshaling from an actual userspace address space — copying
// words out of registers, validating that a pointer lies in the caller's
// mapped memory — is the host kernel's job and is not reproduced here;
// Go's own memory safety already guarantees a []byte handed to NetWrite or
// NetRead is valid for its full length, which is the property the source
// kernel's validation step exists to establish.
package syscall

import (
	"encoding/binary"

	"github.com/kneto/netkernel/netstack"
)

// Calls wraps a NetStack with the syscall ABI's argument and return
// conventions.
type Calls struct {
	ns *netstack.NetStack
}

// New returns a Calls dispatching onto ns.
func New(ns *netstack.NetStack) *Calls {
	return &Calls{ns: ns}
}

// NetOpen opens a connection to (remoteAddr, remotePort), blocking until
// the peer's hardware address is resolved. remoteAddr is a big-endian
// packed IPv4 address, matching the wire representation and this call's
// documented uint32 argument type. typ is accepted and ignored — UDP is
// the only supported variant — and kept only for source compatibility
// with the syscall's type argument; Connect always passes 0.
func (c *Calls) NetOpen(remoteAddr uint32, remotePort uint16, typ uint8) int {
	var addr [4]byte
	binary.BigEndian.PutUint32(addr[:], remoteAddr)

	fd, err := c.ns.Open(addr, remotePort, typ)
	if err != nil {
		return -1
	}
	return fd
}

// NetClose closes netfd. Closing an already-closed or never-opened
// descriptor is not an error.
func (c *Calls) NetClose(netfd int) int {
	if err := c.ns.Close(netfd); err != nil {
		return -1
	}
	return 0
}

// NetWrite sends data over netfd, returning the number of bytes written.
func (c *Calls) NetWrite(netfd int, data []byte) int {
	n, err := c.ns.Write(netfd, data)
	if err != nil {
		return -1
	}
	return n
}

// NetRead blocks until at least one byte is available on netfd, then
// copies up to len(dst) bytes into it.
func (c *Calls) NetRead(netfd int, dst []byte) int {
	n, err := c.ns.Read(netfd, dst)
	if err != nil {
		return -1
	}
	return n
}
