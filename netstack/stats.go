// Copyright (c) The TamaGo Authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package netstack

// Stats accumulates diagnostic counters across the stack's lifetime. The
// source this module is built on exposes none of this; it's a pure
// diagnostic addition, never consulted by any protocol decision.
type Stats struct {
	RxPackets       uint64
	TxDatagrams     uint64
	ARPRepliesSeen  uint64
	ARPRepliesSent  uint64
	UDPDelivered    uint64
	Dropped         uint64
}

// Stats returns a snapshot of the stack's counters.
func (ns *NetStack) Stats() Stats {
	ns.lock.Lock()
	defer ns.lock.Unlock()

	return ns.stats
}
