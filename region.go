// Copyright 2017 The Memory Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package eflmem

import "unsafe"

const (
	// pageRatio (K) is the multiplier applied to a page-aligned request in
	// extend, amortising PageProvider.Map calls. Any positive integer works;
	// larger values trade memory headroom for fewer syscalls.
	pageRatio = 10

	// regionOverhead is the per-region bookkeeping cost: leading
	// alignment padding, the prologue's header+footer, and the epilogue
	// word. This equals 4*wordSize because alignment == 2*wordSize for
	// the fixed A=16, 64-bit-word target this package builds for.
	regionOverhead = uintptr(alignment/2) + overhead + wordSize
)

// extend requests a fresh region from the page provider large enough to
// host a free block of at least minSize bytes, installs the region's
// sentinels, and pushes the resulting free block onto the EFL. It returns
// the new free block's payload address.
func (a *Allocator) extend(minSize uintptr) (unsafe.Pointer, error) {
	pageSize := uintptr(a.provider.PageSize())
	bytes := alignUp(minSize, pageSize) * pageRatio

	base, err := a.provider.Map(int(bytes))
	if err != nil {
		return nil, err
	}

	pad := uintptr(alignment / 2)
	prologue := addPtr(base, pad+wordSize)
	writeBlock(prologue, overhead, true)

	interior := nextBlock(prologue)
	interiorSize := bytes - regionOverhead
	writeBlock(interior, interiorSize, false)

	epilogue := nextBlock(interior)
	storeWord(headerOf(epilogue), pack(0, true))

	a.free.pushFront(interior)

	if a.regions == nil {
		a.regions = make(map[unsafe.Pointer]uintptr)
	}
	a.regions[base] = bytes

	if a.primordial == nil {
		a.primordial = base
	}

	return interior, nil
}

// regionBaseOf returns the mapped base address of the region containing the
// free block bp, valid only when bp's immediate neighbours are the
// prologue and epilogue sentinels (i.e. the region holds exactly one
// interior block): base = bp - 2*overhead (leading alignment/2 padding,
// prologue header+footer, then the payload's own header).
func regionBaseOf(bp unsafe.Pointer) unsafe.Pointer {
	return subPtr(bp, 2*overhead)
}

// regionIsEmpty reports whether bp's only neighbours are the prologue and
// epilogue sentinels, meaning the enclosing region holds no other blocks.
func regionIsEmpty(bp unsafe.Pointer) bool {
	prevSize := sizeOf(loadWord(headerOf(prevBlock(bp))))
	nextSize := sizeOf(loadWord(headerOf(nextBlock(bp))))
	return prevSize == overhead && nextSize == 0
}

// unmapRegion returns the region based at base back to the page provider.
// It asserts the recorded mapped length matches blockSize+regionOverhead,
// an assumption that only holds when the region contains exactly one
// interior block at the moment of unmap, which regionIsEmpty already
// establishes.
func (a *Allocator) unmapRegion(base unsafe.Pointer, interiorSize uintptr) error {
	want := interiorSize + regionOverhead
	if got, ok := a.regions[base]; ok {
		assert(got == want, "unmap length mismatch")
	}
	delete(a.regions, base)
	return a.provider.Unmap(base, int(want))
}
