// Copyright 2017 The Memory Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package eflmem

import "unsafe"

// node is the free-list link pair threaded through the payload of a free
// block. It aliases the very bytes an allocated block's caller would see as
// user data — the transition between the two views happens only in
// setAllocated and in release, never anywhere else.
type node struct {
	prev, next *node
}

// nodeAt views the payload at bp as a free-list node. bp must be the
// payload address of a free block with size >= minPayload.
func nodeAt(bp unsafe.Pointer) *node {
	return (*node)(bp)
}

// payloadOf returns the payload address backing n.
func payloadOf(n *node) unsafe.Pointer {
	return unsafe.Pointer(n)
}

// freeList is the process-wide (per-Allocator) LIFO doubly-linked list of
// free blocks, threaded through their own payloads. It carries no notion of
// region or address ordering — order is purely insertion history.
type freeList struct {
	head *node
}

// pushFront inserts the free block at bp at the head of the list.
func (l *freeList) pushFront(bp unsafe.Pointer) {
	n := nodeAt(bp)
	n.prev = nil
	n.next = l.head
	if l.head != nil {
		l.head.prev = n
	}
	l.head = n
}

// remove splices the free block at bp out of the list. bp must currently be
// a member of the list.
func (l *freeList) remove(bp unsafe.Pointer) {
	n := nodeAt(bp)
	switch {
	case n.prev != nil && n.next != nil:
		n.prev.next = n.next
		n.next.prev = n.prev
	case n.prev != nil:
		n.prev.next = nil
	case n.next != nil:
		l.head = n.next
		n.next.prev = nil
	default:
		l.head = nil
	}
	n.prev, n.next = nil, nil
}

// firstFit walks the list from head and returns the payload address of the
// first block whose size is >= want, or nil if none fits.
func (l *freeList) firstFit(want uintptr) unsafe.Pointer {
	for n := l.head; n != nil; n = n.next {
		bp := payloadOf(n)
		if blockSize(bp) >= want {
			return bp
		}
	}
	return nil
}
