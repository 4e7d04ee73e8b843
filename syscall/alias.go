// Copyright (c) The TamaGo Authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package syscall

// Socket returns a placeholder descriptor for source compatibility with
// BSD-style callers; this stack has no notion of an unconnected socket, so
// the real endpoint is only created once Connect supplies a remote
// address.
func (c *Calls) Socket(typ uint8) int {
	return 0
}

// Bind is a no-op: local ports are assigned deterministically from a
// connection's slot index, so there is nothing for a kernel-level bind to
// do. Retained for source compatibility.
func (c *Calls) Bind(netfd int, localPort uint16) int {
	return 0
}

// Connect is Socket's counterpart: it performs the actual netopen against
// a remote endpoint and returns the resulting descriptor.
func (c *Calls) Connect(remoteAddr uint32, remotePort uint16) int {
	return c.NetOpen(remoteAddr, remotePort, 0)
}

// Listen is a no-op: this stack never queues incoming connections, since
// UDP has no connection-establishment handshake to queue. Retained for
// source compatibility.
func (c *Calls) Listen(netfd int) int {
	return 0
}

// Accept is a no-op returning netfd unchanged: there is no backlog to
// drain from. Retained for source compatibility.
func (c *Calls) Accept(netfd int) int {
	return netfd
}

// Send aliases NetWrite.
func (c *Calls) Send(netfd int, data []byte) int {
	return c.NetWrite(netfd, data)
}

// Recv aliases NetRead.
func (c *Calls) Recv(netfd int, dst []byte) int {
	return c.NetRead(netfd, dst)
}
