// Copyright (c) The TamaGo Authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package reg provides primitives for retrieving and modifying 32-bit
// hardware registers exposed through a host.MMIO window.
package reg

import (
	"runtime"
	"time"

	"github.com/kneto/netkernel/host"
)

// Get returns the register value at offset, shifted and masked.
func Get(m host.MMIO, offset uint32, pos int, mask int) uint32 {
	return uint32((int(m.Load32(offset)) >> pos) & mask)
}

// Set sets an individual bit at offset.
func Set(m host.MMIO, offset uint32, pos int) {
	m.Store32(offset, m.Load32(offset)|(1<<uint(pos)))
}

// Clear clears an individual bit at offset.
func Clear(m host.MMIO, offset uint32, pos int) {
	m.Store32(offset, m.Load32(offset)&^(1<<uint(pos)))
}

// SetN sets a multi-bit field at offset.
func SetN(m host.MMIO, offset uint32, pos int, mask int, val uint32) {
	r := m.Load32(offset)
	r = (r &^ (uint32(mask) << uint(pos))) | (val << uint(pos))
	m.Store32(offset, r)
}

// ClearN clears a multi-bit field at offset.
func ClearN(m host.MMIO, offset uint32, pos int, mask int) {
	m.Store32(offset, m.Load32(offset)&^(uint32(mask)<<uint(pos)))
}

// Read returns the raw register value at offset.
func Read(m host.MMIO, offset uint32) uint32 {
	return m.Load32(offset)
}

// Write stores a raw register value at offset.
func Write(m host.MMIO, offset uint32, val uint32) {
	m.Store32(offset, val)
}

// Wait polls a register bit field until it matches val. This module runs on
// a cooperatively scheduled kernel, so every spin yields with
// runtime.Gosched rather than busy-looping the CPU.
func Wait(m host.MMIO, offset uint32, pos int, mask int, val uint32) {
	for Get(m, offset, pos, mask) != val {
		runtime.Gosched()
	}
}

// WaitFor polls a register bit field until it matches val or timeout
// elapses, returning false on timeout.
func WaitFor(m host.MMIO, timeout time.Duration, offset uint32, pos int, mask int, val uint32) bool {
	start := time.Now()

	for Get(m, offset, pos, mask) != val {
		runtime.Gosched()

		if time.Since(start) >= timeout {
			return false
		}
	}

	return true
}
