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

package interp

import (
	"fmt"
	"reflect"
	"unsafe"
)

// headerShaped reports whether t has the slice-header ABI layout
// {unsafe.Pointer, int64, int64} with settable fields; [rt.Header] and
// the public Slice type both qualify.
func headerShaped(t reflect.Type) bool {
	return t.Kind() == reflect.Struct && t.NumField() == 3 &&
		t.Field(0).Type.Kind() == reflect.UnsafePointer &&
		t.Field(1).Type.Kind() == reflect.Int64 &&
		t.Field(2).Type.Kind() == reflect.Int64 &&
		t.Field(0).IsExported()
}

// host is an injected host symbol: a Go function called with the same
// word-level convention compiled code uses. Scalars map to their Go
// counterparts, aggregates and opaque references to unsafe.Pointer, and
// sized slices to any header-shaped struct (three words).
type host struct {
	name string
	fv   reflect.Value
	ft   reflect.Type
}

func newHost(name string, v any) *host {
	fv := reflect.ValueOf(v)
	if fv.Kind() != reflect.Func {
		panic(fmt.Sprintf("sarus: host symbol %q is not a function", name))
	}
	ft := fv.Type()
	for i := range ft.NumIn() {
		checkHostType(name, ft.In(i))
	}
	for i := range ft.NumOut() {
		checkHostType(name, ft.Out(i))
	}
	return &host{name: name, fv: fv, ft: ft}
}

func checkHostType(name string, t reflect.Type) {
	switch t.Kind() {
	case reflect.Float32, reflect.Float64, reflect.Int64, reflect.Bool,
		reflect.Uint8, reflect.UnsafePointer:
		return
	}
	if headerShaped(t) {
		return
	}
	panic(fmt.Sprintf("sarus: host symbol %q has unsupported type %s", name, t))
}

// words reports how many argument words a host type consumes.
func words(t reflect.Type) int {
	if headerShaped(t) {
		return 3
	}
	return 1
}

func (h *host) invoke(args []uint64) []uint64 {
	in := make([]reflect.Value, h.ft.NumIn())
	w := 0
	for i := range in {
		t := h.ft.In(i)
		switch {
		case headerShaped(t):
			hv := reflect.New(t).Elem()
			hv.Field(0).SetPointer(unsafe.Pointer(uintptr(args[w])))
			hv.Field(1).SetInt(int64(args[w+1]))
			hv.Field(2).SetInt(int64(args[w+2]))
			in[i] = hv
		case t.Kind() == reflect.Float32:
			in[i] = reflect.ValueOf(f32from(args[w]))
		case t.Kind() == reflect.Float64:
			in[i] = reflect.ValueOf(f64from(args[w]))
		case t.Kind() == reflect.Int64:
			in[i] = reflect.ValueOf(int64(args[w]))
		case t.Kind() == reflect.Bool:
			in[i] = reflect.ValueOf(args[w] != 0)
		case t.Kind() == reflect.Uint8:
			in[i] = reflect.ValueOf(uint8(args[w]))
		default: // unsafe.Pointer
			in[i] = reflect.ValueOf(unsafe.Pointer(uintptr(args[w])))
		}
		w += words(t)
	}

	out := h.fv.Call(in)

	var rets []uint64
	for _, v := range out {
		switch {
		case headerShaped(v.Type()):
			rets = append(rets,
				uint64(uintptr(v.Field(0).UnsafePointer())),
				uint64(v.Field(1).Int()),
				uint64(v.Field(2).Int()))
		case v.Kind() == reflect.Float32:
			rets = append(rets, uint64(f32bits(float32(v.Float()))))
		case v.Kind() == reflect.Float64:
			rets = append(rets, f64bits(v.Float()))
		case v.Kind() == reflect.Int64:
			rets = append(rets, uint64(v.Int()))
		case v.Kind() == reflect.Bool:
			rets = append(rets, boolWord(v.Bool()))
		case v.Kind() == reflect.Uint8:
			rets = append(rets, v.Uint()&0xFF)
		default:
			rets = append(rets, uint64(uintptr(v.UnsafePointer())))
		}
	}
	return rets
}
