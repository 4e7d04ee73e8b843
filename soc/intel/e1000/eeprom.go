// Copyright (c) The TamaGo Authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package e1000

import (
	"github.com/kneto/netkernel/host"
	"github.com/kneto/netkernel/internal/reg"
)

// eepromWords is the number of 16-bit EEPROM words making up the MAC.
const eepromWords = 3

// readEEPROM issues a serial EEPROM read at word offset addr, polling the
// DONE bit, and returns the 16-bit word found in the high half of EERD.
func readEEPROM(m host.MMIO, addr uint32) uint16 {
	var val uint32
	val = 1 << eerdStart
	val |= addr << eerdAddr
	m.Store32(EERD, val)

	reg.Wait(m, EERD, eerdDone, 1, 1)

	return uint16(reg.Get(m, EERD, eerdData, 0xffff))
}

// readMAC issues three serial EEPROM reads (words 0, 1, 2) and concatenates
// their high 16 bits into the six-byte hardware address.
func readMAC(m host.MMIO) (mac [6]byte) {
	for word := uint32(0); word < eepromWords; word++ {
		v := readEEPROM(m, word)
		mac[word*2] = byte(v)
		mac[word*2+1] = byte(v >> 8)
	}

	return mac
}
