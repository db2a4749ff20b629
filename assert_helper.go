// Copyright 2017 The Memory Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package eflmem

// assert panics with msg when debugAssertions is compiled in (build with
// -tags eflmemdebug) and cond is false. Layout invariants that are too
// costly to check on every call - header/footer agreement, unmap length
// bookkeeping - are wired through this instead of checked unconditionally.
func assert(cond bool, msg string) {
	if debugAssertions && !cond {
		panic("eflmem: invariant violated: " + msg)
	}
}
