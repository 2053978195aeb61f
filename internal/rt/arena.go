// Copyright 2020-2025 Buf Technologies, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package rt holds the runtime support shared by compiled code and the
// host-facing surface: frame arenas, slice headers and trap values.
package rt

import (
	"unsafe"

	"buf.build/go/sarus/internal/debug"
	"buf.build/go/sarus/internal/xunsafe"
)

// Align is the alignment of all objects on the arena.
const Align = 8

// Arena is a bump allocator over chunked memory.
//
// Function frames switched onto the deep stack are carved out of an Arena;
// Mark/Reset give the prologue/epilogue pairing that makes the region behave
// like a second call stack. A zero Arena is empty and ready to use.
type Arena struct {
	_ xunsafe.NoCopy

	next, end xunsafe.Addr[byte]
	chunk     int // Index into chunks of the active chunk.
	chunks    [][]byte
}

// Mark is a snapshot of an arena's allocation cursor.
type Mark struct {
	next  xunsafe.Addr[byte]
	chunk int
}

// Alloc allocates size bytes, zeroed, aligned to [Align].
func (a *Arena) Alloc(size int) *byte {
	size = xunsafe.RoundUp(size, Align)
	if a.next.ByteAdd(size) > a.end {
		a.grow(size)
	}

	p := a.next.AssertValid()
	a.next = a.next.ByteAdd(size)

	b := xunsafe.Slice(p, size)
	clear(b)
	return p
}

// Mark records the current allocation cursor.
func (a *Arena) Mark() Mark {
	return Mark{next: a.next, chunk: a.chunk}
}

// Reset rewinds the arena to a previously recorded mark.
//
// All memory allocated since the mark is reusable afterwards; the chunks
// themselves are retained.
func (a *Arena) Reset(m Mark) {
	debug.Assert(m.chunk <= a.chunk, "reset to a mark from the future")
	a.chunk = m.chunk
	a.next = m.next
	if a.chunk < len(a.chunks) {
		c := a.chunks[a.chunk]
		start := xunsafe.AddrOf(unsafe.SliceData(c))
		if a.next == 0 {
			// The mark was taken before the first chunk existed.
			a.next = start
		}
		a.end = start.ByteAdd(len(c))
	}
}

// Free releases every allocation but keeps the chunks for reuse.
func (a *Arena) Free() {
	a.chunk = 0
	if len(a.chunks) == 0 {
		a.next, a.end = 0, 0
		return
	}
	c := a.chunks[0]
	a.next = xunsafe.AddrOf(unsafe.SliceData(c))
	a.end = a.next.ByteAdd(len(c))
}

const minChunk = 64 << 10

func (a *Arena) grow(size int) {
	// Advance into an existing chunk if one is large enough, otherwise
	// allocate a fresh chunk at least double the previous one.
	for a.chunk+1 < len(a.chunks) {
		a.chunk++
		c := a.chunks[a.chunk]
		a.next = xunsafe.AddrOf(unsafe.SliceData(c))
		a.end = a.next.ByteAdd(len(c))
		if int(a.end-a.next) >= size {
			return
		}
	}

	n := minChunk
	if len(a.chunks) > 0 {
		n = len(a.chunks[len(a.chunks)-1]) * 2
	}
	for n < size {
		n *= 2
	}

	debug.Log(nil, "grow", "%d bytes, %d chunks", n, len(a.chunks)+1)
	c := make([]byte, n)
	a.chunks = append(a.chunks, c)
	a.chunk = len(a.chunks) - 1
	a.next = xunsafe.AddrOf(unsafe.SliceData(c))
	a.end = a.next.ByteAdd(n)
}
