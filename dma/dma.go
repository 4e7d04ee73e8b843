// First-fit memory allocator for DMA buffers
// Copyright (c) The TamaGo Authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package dma implements a page-granular allocator for DMA-visible buffers,
// the concrete stand-in for the host kernel's alloc_page/free_page/v2p/p2v
// quartet (host.PageAllocator / host.Translator) used by this module's
// tests and by any boot path that has not yet wired a real physical-page
// allocator.
//
// Every buffer handed out is exactly host.PageSize bytes, matching the
// E1000 driver's descriptor data pages, the connection table's receive
// buffers, and the scratch page each outbound frame is built in.
package dma

import (
	"container/list"
	"errors"
	"sync"
	"unsafe"

	"github.com/kneto/netkernel/host"
)

// ErrOutOfMemory is returned by AllocPage when the pool has no free page.
var ErrOutOfMemory = errors.New("dma: out of memory")

type block struct {
	index int
}

// Pool is a fixed-size arena of host.PageSize pages, tracked with a
// first-fit free list over page indices.
type Pool struct {
	mu    sync.Mutex
	arena []byte
	// physBase is the simulated physical base address of the arena: real
	// physical addresses are a host-OS concept this module never
	// observes directly, so the pool manufactures a stable numeric base
	// and reports offsets from it, exactly as v2p/p2v are specified to
	// behave from the driver's point of view.
	physBase uintptr
	npages   int
	free     *list.List
}

// NewPool reserves an arena of n pages and returns a Pool backed by it.
func NewPool(n int) *Pool {
	p := &Pool{
		arena:    make([]byte, n*host.PageSize),
		physBase: 0x10000000,
		npages:   n,
		free:     list.New(),
	}

	for i := 0; i < n; i++ {
		p.free.PushBack(&block{index: i})
	}

	return p
}

// AllocPage implements host.PageAllocator.
func (p *Pool) AllocPage() ([]byte, uintptr, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	e := p.free.Front()
	if e == nil {
		return nil, 0, ErrOutOfMemory
	}
	p.free.Remove(e)

	b := e.Value.(*block)
	off := b.index * host.PageSize
	page := p.arena[off : off+host.PageSize]

	for i := range page {
		page[i] = 0
	}

	return page, p.physBase + uintptr(off), nil
}

// FreePage implements host.PageAllocator. Freeing a page not obtained from
// this pool, or double-freeing one, is a caller bug and panics rather than
// silently corrupting the free list.
func (p *Pool) FreePage(page []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()

	off := p.offsetOf(page)
	if off < 0 || off >= len(p.arena) || off%host.PageSize != 0 {
		panic("dma: page not from pool")
	}
	index := off / host.PageSize

	for e := p.free.Front(); e != nil; e = e.Next() {
		if e.Value.(*block).index == index {
			panic("dma: double free")
		}
	}

	p.free.PushBack(&block{index: index})
}

// V2P implements host.Translator.
func (p *Pool) V2P(virt []byte) uintptr {
	return p.physBase + uintptr(p.offsetOf(virt))
}

// P2V implements host.Translator.
func (p *Pool) P2V(phys uintptr) []byte {
	off := int(phys - p.physBase)
	return p.arena[off : off+host.PageSize]
}

func (p *Pool) offsetOf(buf []byte) int {
	base := uintptr(unsafe.Pointer(&p.arena[0]))
	ptr := uintptr(unsafe.Pointer(&buf[0]))
	return int(ptr - base)
}

var (
	_ host.PageAllocator = (*Pool)(nil)
	_ host.Translator    = (*Pool)(nil)
)
