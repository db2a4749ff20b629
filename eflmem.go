// Copyright 2017 The Memory Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package eflmem implements a dynamic memory allocator over a
// page-granular mapping primitive (PageProvider).
//
// The allocator keeps an explicit free list (EFL) of free blocks threaded
// through their own payload bytes, and boundary tags (a header and a
// mirrored footer on every block) so any block's neighbours can be found
// in O(1) without walking the whole region. allocate/release run a
// first-fit search, split-on-allocate, and coalesce-on-release protocol;
// regions that become entirely empty are returned to the PageProvider,
// except for the first ("primordial") region, which is kept for the
// allocator's lifetime.
//
// Every public method, Close included, may be called only from one
// goroutine at a time for a given *Allocator; there is no internal locking.
package eflmem

import (
	"errors"
	"fmt"
	"unsafe"
)

// ErrOutOfMemory is returned, wrapped around the PageProvider's own error,
// when allocate needed to extend the heap but the provider's Map call
// failed.
var ErrOutOfMemory = errors.New("eflmem: out of memory")

// Allocator allocates and releases memory obtained in bulk from a
// PageProvider. Use New or NewWithProvider to construct one; the zero
// value is not ready for use, since establishing the primordial region
// can itself fail.
type Allocator struct {
	provider   PageProvider
	free       freeList
	primordial unsafe.Pointer
	regions    map[unsafe.Pointer]uintptr // region base -> mapped length
}

// New establishes a fresh Allocator backed by the host OS's page mapping
// primitive, requesting one page-sized (times the page ratio) primordial
// region up front.
func New() (*Allocator, error) {
	return NewWithProvider(osPageProvider{})
}

// NewWithProvider is like New but lets the caller supply the PageProvider,
// primarily so tests can inject a fake one to simulate OOM or avoid
// touching real OS memory mappings.
func NewWithProvider(p PageProvider) (*Allocator, error) {
	a := &Allocator{provider: p}
	if _, err := a.extend(uintptr(p.PageSize())); err != nil {
		return nil, fmt.Errorf("eflmem: initialize: %w", err)
	}
	return a, nil
}

// Close unmaps every region the Allocator still holds, including the
// primordial one, and resets the Allocator to its zero value. It is not
// part of the allocate/release contract: callers that simply let an
// Allocator go out of scope leave its OS mappings in place.
func (a *Allocator) Close() error {
	var first error
	for base, size := range a.regions {
		if err := a.provider.Unmap(base, int(size)); err != nil && first == nil {
			first = err
		}
	}
	*a = Allocator{}
	return first
}

// Allocate reserves n bytes and returns them as a slice backed by the
// allocator's memory. It returns (nil, nil) for n == 0: a zero-size
// request is ignored, not an error. It panics if n is negative.
func (a *Allocator) Allocate(n int) ([]byte, error) {
	p, err := a.UnsafeAllocate(n)
	if err != nil || p == nil {
		return nil, err
	}
	return unsafe.Slice((*byte)(p), n), nil
}

// Release returns the memory backing b, previously returned by Allocate,
// to the allocator. b must be exactly the slice Allocate returned (same
// backing array, not a sub-slice); releasing anything else is out of
// contract, as is double-releasing.
func (a *Allocator) Release(b []byte) error {
	if len(b) == 0 {
		return nil
	}
	return a.UnsafeRelease(unsafe.Pointer(&b[0]))
}

// UnsafeAllocate is like Allocate but returns the raw payload address
// instead of a slice. It panics for n < 0 and returns (nil, nil) for n == 0.
func (a *Allocator) UnsafeAllocate(n int) (unsafe.Pointer, error) {
	if n < 0 {
		panic("eflmem: invalid allocation size")
	}
	if n == 0 {
		return nil, nil
	}

	m := uintptr(n)
	if m < minPayload {
		m = minPayload
	}
	want := alignUp(m+overhead, alignment)

	for {
		if bp := a.free.firstFit(want); bp != nil {
			a.setAllocated(bp, want)
			return bp, nil
		}
		if _, err := a.extend(want); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrOutOfMemory, err)
		}
		// extend always installs a free block of size >= want, so the
		// next iteration's firstFit is guaranteed to succeed; the loop
		// runs at most twice.
	}
}

// UnsafeRelease is like Release but takes the raw payload address
// UnsafeAllocate returned.
func (a *Allocator) UnsafeRelease(p unsafe.Pointer) error {
	if p == nil {
		return nil
	}

	size := blockSize(p)
	writeBlock(p, size, false)

	merged := a.coalesce(p)

	if !regionIsEmpty(merged) {
		return nil
	}

	base := regionBaseOf(merged)
	if base == a.primordial {
		return nil
	}

	a.free.remove(merged)
	return a.unmapRegion(base, blockSize(merged))
}

// setAllocated marks the free block bp, of size avail, allocated at size
// want (want <= avail), splitting off and re-inserting a trailing free
// remainder when the remainder would itself be large enough to host a
// future block plus its own boundary tags.
func (a *Allocator) setAllocated(bp unsafe.Pointer, want uintptr) {
	avail := blockSize(bp)
	if avail-want >= regionOverhead {
		a.free.remove(bp)
		writeBlock(bp, want, true)

		remainder := nextBlock(bp)
		writeBlock(remainder, avail-want, false)
		a.free.pushFront(remainder)
		return
	}

	a.free.remove(bp)
	writeBlock(bp, avail, true)
}

// coalesce merges the just-freed block bp with any free neighbours and
// returns the payload address of the resulting (possibly larger, possibly
// moved backward into its predecessor) block. bp's header/footer must
// already show allocated=false on entry.
func (a *Allocator) coalesce(bp unsafe.Pointer) unsafe.Pointer {
	prev := prevBlock(bp)
	next := nextBlock(bp)
	prevFree := !blockAllocated(prev)
	nextFree := !blockAllocated(next)
	size := blockSize(bp)

	switch {
	case !prevFree && !nextFree:
		a.free.pushFront(bp)
		return bp

	case !prevFree && nextFree:
		size += blockSize(next)
		a.free.remove(next)
		writeBlock(bp, size, false)
		a.free.pushFront(bp)
		return bp

	case prevFree && !nextFree:
		size += blockSize(prev)
		writeBlock(prev, size, false)
		return prev

	default: // prevFree && nextFree
		size += blockSize(prev) + blockSize(next)
		a.free.remove(next)
		writeBlock(prev, size, false)
		return prev
	}
}
