// Copyright 2017 The Memory Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package eflmem

import "unsafe"

// PageProvider is the host collaborator the allocator maps and unmaps
// memory through. It is treated as opaque: the allocator never inspects
// the bytes it returns beyond what it itself writes there.
//
// Map must return a zero-initialized, page-aligned region of at least the
// requested size, or an error. Unmap returns a previously-mapped region;
// its (addr, size) pair always matches a prior successful Map call exactly.
// PageSize reports the fixed page granularity and must not change across
// the lifetime of a PageProvider.
type PageProvider interface {
	Map(size int) (unsafe.Pointer, error)
	Unmap(addr unsafe.Pointer, size int) error
	PageSize() int
}

// osPageProvider is the default PageProvider, backed by the host OS's page
// mapping primitive (mmap/munmap on unix, CreateFileMapping/MapViewOfFile
// on Windows; see mmap_unix.go and mmap_windows.go).
type osPageProvider struct{}

func (osPageProvider) Map(size int) (unsafe.Pointer, error) {
	b, err := mmap0(size)
	if err != nil {
		return nil, err
	}
	return unsafe.Pointer(&b[0]), nil
}

func (osPageProvider) Unmap(addr unsafe.Pointer, size int) error {
	return munmap0(addr, size)
}

func (osPageProvider) PageSize() int {
	return pageSize
}
