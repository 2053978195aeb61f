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

package sarus

import (
	"fmt"
	"math"
	"reflect"
	"unsafe"

	"buf.build/go/sarus/internal/backend"
	"buf.build/go/sarus/internal/sema"
	"buf.build/go/sarus/internal/types"
)

// Func is an emitted entry point.
//
// The calling convention is the platform C ABI: scalars by value,
// structs and fixed arrays by pointer to caller-owned memory, sized
// slices as {ptr, len, cap}, with aggregate returns filled through a
// caller-allocated out-pointer.
type Func struct {
	name string
	raw  backend.Func
	decl *sema.Func
}

// Pointer returns the native entry point for backends that publish one.
// The reference backend executes in-process and reports 0; use [Call] or
// [Func.Call] instead.
func (f *Func) Pointer() uintptr { return f.raw.Pointer() }

// Call invokes a function with no results. Arguments marshal like
// [WithSymbols] host functions, with structs and fixed arrays passed as
// pointers. Traps in emitted code propagate as panics.
func (f *Func) Call(args ...any) {
	f.raw.Call(f.words(args))
}

// Call invokes fn and decodes its single result into R: a scalar Go
// type, a [Slice], or a struct (filled through the hidden out-pointer,
// exactly as a C caller would allocate it).
func Call[R any](fn *Func, args ...any) R {
	var r R
	rv := reflect.ValueOf(&r).Elem()

	if fn.retsAggregate() {
		words := append([]uint64{uint64(uintptr(unsafe.Pointer(&r)))}, fn.words(args)...)
		fn.raw.Call(words)
		return r
	}

	out := fn.raw.Call(fn.words(args))
	decode(rv, out)
	return r
}

func (f *Func) retsAggregate() bool {
	return f.decl != nil && len(f.decl.Rets) == 1 && types.IsAggregate(f.decl.Rets[0])
}

func (f *Func) words(args []any) []uint64 {
	var out []uint64
	for _, a := range args {
		switch v := a.(type) {
		case float32:
			out = append(out, uint64(math.Float32bits(v)))
		case float64:
			out = append(out, math.Float64bits(v))
		case int64:
			out = append(out, uint64(v))
		case int:
			out = append(out, uint64(int64(v)))
		case bool:
			if v {
				out = append(out, 1)
			} else {
				out = append(out, 0)
			}
		case uint8:
			out = append(out, uint64(v))
		case uintptr:
			out = append(out, uint64(v))
		case unsafe.Pointer:
			out = append(out, uint64(uintptr(v)))
		default:
			rv := reflect.ValueOf(a)
			switch {
			case rv.Kind() == reflect.Pointer:
				out = append(out, uint64(uintptr(rv.UnsafePointer())))
			case isHeaderShaped(rv.Type()):
				out = append(out,
					uint64(uintptr(rv.Field(0).UnsafePointer())),
					uint64(rv.Field(1).Int()),
					uint64(rv.Field(2).Int()))
			default:
				panic(fmt.Sprintf("sarus: cannot pass %T to %s", a, f.name))
			}
		}
	}
	return out
}

func decode(rv reflect.Value, words []uint64) {
	switch {
	case rv.Kind() == reflect.Float32:
		rv.SetFloat(float64(math.Float32frombits(uint32(words[0]))))
	case rv.Kind() == reflect.Float64:
		rv.SetFloat(math.Float64frombits(words[0]))
	case rv.Kind() == reflect.Int64 || rv.Kind() == reflect.Int:
		rv.SetInt(int64(words[0]))
	case rv.Kind() == reflect.Bool:
		rv.SetBool(words[0] != 0)
	case rv.Kind() == reflect.Uint8:
		rv.SetUint(words[0] & 0xFF)
	case rv.Kind() == reflect.UnsafePointer:
		rv.SetPointer(unsafe.Pointer(uintptr(words[0])))
	case isHeaderShaped(rv.Type()):
		rv.Field(0).SetPointer(unsafe.Pointer(uintptr(words[0])))
		rv.Field(1).SetInt(int64(words[1]))
		rv.Field(2).SetInt(int64(words[2]))
	default:
		panic(fmt.Sprintf("sarus: cannot decode a result into %s", rv.Type()))
	}
}

// isHeaderShaped reports whether t has the slice-header ABI layout:
// {unsafe.Pointer, int64, int64}.
func isHeaderShaped(t reflect.Type) bool {
	return t.Kind() == reflect.Struct && t.NumField() == 3 &&
		t.Field(0).Type.Kind() == reflect.UnsafePointer &&
		t.Field(1).Type.Kind() == reflect.Int64 &&
		t.Field(2).Type.Kind() == reflect.Int64
}

// Slice is the host-side shadow of a sized slice `[T]`: three 8-byte
// words {base, len, cap}, bit-identical to what emitted code stores.
// Fields are exported because the layout is the ABI.
type Slice[T any] struct {
	Data unsafe.Pointer
	Len  int64
	Cap  int64
}

// SliceOf builds a Slice over backing with the given initial length.
// The backing array must outlive every use of the slice; the compiler
// does not verify temporal safety.
func SliceOf[T any](backing []T, length int) Slice[T] {
	return Slice[T]{
		Data: unsafe.Pointer(unsafe.SliceData(backing)),
		Len:  int64(length),
		Cap:  int64(len(backing)),
	}
}

// Slice views the live elements.
func (s Slice[T]) Slice() []T {
	if s.Len == 0 {
		return nil
	}
	return unsafe.Slice((*T)(s.Data), int(s.Len))
}
