// Copyright 2017 The Memory Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package eflmem

import "unsafe"

// Every block in a region is bounded by a header word and a footer word,
// both packing (size, allocated) the same way. Reading the footer that
// immediately precedes a block's header gives its predecessor's size in
// O(1), which is what lets release() find neighbours without a parent
// pointer.

const (
	// wordSize is the platform pointer width; header and footer words are
	// one wordSize wide each.
	wordSize = unsafe.Sizeof(uintptr(0))

	// alignment every payload address must satisfy. Must stay >= 2*wordSize
	// so the allocated bit has room in the low bits of a packed word.
	alignment = 16

	// overhead is the header+footer cost of a single block.
	overhead = 2 * wordSize

	// minPayload is the smallest payload a block can carry: just enough
	// room for a free-list node's prev/next pair.
	minPayload = 2 * wordSize
)

// addPtr returns p advanced by off bytes. Centralizing the uintptr
// round-trip here keeps every other call site free of unsafe.Pointer
// arithmetic.
func addPtr(p unsafe.Pointer, off uintptr) unsafe.Pointer {
	return unsafe.Pointer(uintptr(p) + off)
}

func subPtr(p unsafe.Pointer, off uintptr) unsafe.Pointer {
	return unsafe.Pointer(uintptr(p) - off)
}

func loadWord(p unsafe.Pointer) uintptr {
	return *(*uintptr)(p)
}

func storeWord(p unsafe.Pointer, v uintptr) {
	*(*uintptr)(p) = v
}

// pack combines a block size and its allocated flag into one header/footer
// word. size must already be alignment-aligned.
func pack(size uintptr, allocated bool) uintptr {
	if allocated {
		return size | 1
	}
	return size
}

func sizeOf(word uintptr) uintptr {
	return word &^ uintptr(alignment-1)
}

func allocOf(word uintptr) bool {
	return word&1 != 0
}

// headerOf returns the address of bp's header word.
func headerOf(bp unsafe.Pointer) unsafe.Pointer {
	return subPtr(bp, wordSize)
}

// footerOf returns the address of bp's footer word, derived from the size
// recorded in its header.
func footerOf(bp unsafe.Pointer) unsafe.Pointer {
	size := sizeOf(loadWord(headerOf(bp)))
	return addPtr(bp, size-2*wordSize)
}

// nextBlock returns the payload address of the block immediately following
// bp. Always safe to call: every region ends in an epilogue word that
// reports size 0, so traversal never runs past the region's end.
func nextBlock(bp unsafe.Pointer) unsafe.Pointer {
	size := sizeOf(loadWord(headerOf(bp)))
	return addPtr(bp, size)
}

// prevBlock returns the payload address of the block immediately preceding
// bp, read from the footer word that sits just before bp's header.
func prevBlock(bp unsafe.Pointer) unsafe.Pointer {
	predFooter := subPtr(bp, 2*wordSize)
	size := sizeOf(loadWord(predFooter))
	return subPtr(bp, size)
}

// writeBlock stamps both the header and the footer of the block at bp with
// (size, allocated). Callers are responsible for size already reflecting
// the block's final extent before calling this: the footer is written at
// bp+size-2*wordSize, computed from size itself.
func writeBlock(bp unsafe.Pointer, size uintptr, allocated bool) {
	word := pack(size, allocated)
	storeWord(headerOf(bp), word)
	storeWord(addPtr(bp, size-2*wordSize), word)
}

func blockSize(bp unsafe.Pointer) uintptr {
	return sizeOf(loadWord(headerOf(bp)))
}

func blockAllocated(bp unsafe.Pointer) bool {
	return allocOf(loadWord(headerOf(bp)))
}

// alignUp rounds n up to the next multiple of m. m must be a power of 2.
func alignUp(n, m uintptr) uintptr {
	return (n + m - 1) &^ (m - 1)
}
