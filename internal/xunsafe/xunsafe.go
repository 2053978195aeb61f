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

// Package xunsafe provides a more convenient interface for performing unsafe
// operations than Go's built-in package unsafe.
//
// Compiled code operates on raw, C-layout memory: stack slots, published
// data symbols and host-provided aggregates. Everything that touches that
// memory goes through this package.
package xunsafe

import (
	"sync"
	"unsafe"
)

// NoCopy is a type that go vet will complain about having been moved.
//
// It does so by being an array of [sync.Mutex], which vet's copylocks
// check treats as a lock.
type NoCopy [0]sync.Mutex

// Addr is a typed raw address.
type Addr[T any] uintptr

// AddrOf gets the address of a pointer.
func AddrOf[P ~*E, E any](p P) Addr[E] {
	return Addr[E](uintptr(unsafe.Pointer(p)))
}

// AssertValid asserts that this address is a valid pointer.
func (a Addr[T]) AssertValid() *T {
	return (*T)(unsafe.Pointer(uintptr(a))) // Don't worry about it.
}

// Add adds the given offset to this address, scaled by the size of T.
func (a Addr[T]) Add(n int) Addr[T] {
	return a + Addr[T](n*Size[T]())
}

// ByteAdd adds the given unscaled offset to this address.
func (a Addr[T]) ByteAdd(n int) Addr[T] {
	return a + Addr[T](n)
}

// Sub computes the difference between two addresses, in units of T.
func (a Addr[T]) Sub(b Addr[T]) int {
	return int(a-b) / Size[T]()
}

// BitCast performs an unsafe bitcast from one type to another.
func BitCast[To, From any](v From) To {
	return *(*To)(unsafe.Pointer(&v))
}

// Size returns the size of T.
func Size[T any]() int {
	var v T
	return int(unsafe.Sizeof(v))
}

// Align returns the alignment of T.
func Align[T any]() int {
	var v T
	return int(unsafe.Alignof(v))
}

// Cast casts one pointer type to another.
func Cast[To, From any](p *From) *To {
	return (*To)(unsafe.Pointer(p))
}

// ByteAdd adds an unscaled offset to p.
func ByteAdd[T any](p *T, n int) *T {
	return (*T)(unsafe.Add(unsafe.Pointer(p), n))
}

// ByteLoad loads a value of type T at an unscaled offset from p.
func ByteLoad[T, E any](p *E, n int) T {
	return *(*T)(unsafe.Add(unsafe.Pointer(p), n))
}

// ByteStore stores a value of type T at an unscaled offset from p.
func ByteStore[T, E any](p *E, n int, v T) {
	*(*T)(unsafe.Add(unsafe.Pointer(p), n)) = v
}

// Slice constructs a slice of length n over p.
func Slice[T any](p *T, n int) []T {
	return unsafe.Slice(p, n)
}

// String constructs a string of length n over p without copying.
func String(p *byte, n int) string {
	return unsafe.String(p, n)
}

// RoundUp rounds n up to the next multiple of align, which must be a power
// of two.
func RoundUp(n, align int) int {
	return (n + align - 1) &^ (align - 1)
}

// Padding returns the number of bytes between n and the next multiple of
// align, which must be a power of two.
func Padding(n, align int) int {
	return RoundUp(n, align) - n
}
