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

// Package interp is the reference backend: it records the IR built
// through [backend.Builder] and executes it over raw process memory.
//
// Stack slots, published data and aggregate arguments are real memory, so
// everything that crosses the boundary (struct layout, slice headers,
// extern calls) is bit-identical to what a native backend would see. What
// interp does not do is emit machine code: entry points report a zero
// Pointer and are invoked through [backend.Func.Call].
package interp

import (
	"fmt"
	"unsafe"

	"buf.build/go/sarus/internal/backend"
	"buf.build/go/sarus/internal/dbg"
	"buf.build/go/sarus/internal/debug"
	"buf.build/go/sarus/internal/rt"
	"buf.build/go/sarus/internal/xunsafe"
)

// Machine implements [backend.Backend].
type Machine struct {
	funcs   map[string]*fn
	data    map[string]*datum
	symbols map[string]*host

	deep      *rt.DeepStack
	finalized bool
}

type datum struct {
	buf   []byte
	align int
}

// New returns an empty machine.
func New() *Machine {
	return &Machine{
		funcs:   map[string]*fn{},
		data:    map[string]*datum{},
		symbols: map[string]*host{},
		deep:    rt.NewDeepStack(),
	}
}

// NewFunc implements [backend.Backend].
func (m *Machine) NewFunc(name string, sig backend.Signature) backend.Builder {
	f := &fn{m: m, name: name, sig: sig}
	f.nvals = len(sig.Params) // Parameters take the first value numbers.
	f.blocks = append(f.blocks, nil) // entry block
	m.funcs[name] = f
	return f
}

// DefineData implements [backend.Backend].
func (m *Machine) DefineData(name string, data []byte, align int) error {
	if _, dup := m.data[name]; dup {
		return fmt.Errorf("duplicate data symbol %q", name)
	}
	// Copy onto storage aligned to align that the machine keeps alive.
	buf := make([]byte, len(data)+align)
	off := xunsafe.Padding(int(xunsafe.AddrOf(unsafe.SliceData(buf))), align)
	copy(buf[off:], data)
	m.data[name] = &datum{buf: buf[off : off+len(data)], align: align}
	return nil
}

// DefineSymbol implements [backend.Backend].
func (m *Machine) DefineSymbol(name string, v any) {
	m.symbols[name] = newHost(name, v)
}

// Finalize implements [backend.Backend]: it resolves every call and data
// reference. A call with no compiled target and no host symbol is a
// linkage failure.
func (m *Machine) Finalize() error {
	for _, f := range m.funcs {
		for bi := range f.blocks {
			for ii := range f.blocks[bi] {
				in := &f.blocks[bi][ii]
				switch in.op {
				case opCall:
					if callee, ok := m.funcs[in.sym]; ok {
						in.target = callee
					} else if h, ok := m.symbols[in.sym]; ok {
						in.target = h
					} else {
						return &LinkError{Symbol: in.sym}
					}
				case opSymbolAddr:
					d, ok := m.data[in.sym]
					if !ok {
						return &LinkError{Symbol: in.sym}
					}
					in.imm = uint64(xunsafe.AddrOf(unsafe.SliceData(d.buf)))
				}
			}
		}
		debug.Log([]any{"fn %s", f.name}, "finalize", "%v", dbg.Dict(nil,
			"blocks", len(f.blocks),
			"values", f.nvals,
			"frame", f.frameSize,
			"deep", f.deep,
		))
	}
	m.finalized = true
	return nil
}

// LinkError reports an unresolvable symbol.
type LinkError struct{ Symbol string }

func (e *LinkError) Error() string {
	return fmt.Sprintf("symbol %q is not supplied", e.Symbol)
}

// Func implements [backend.Backend].
func (m *Machine) Func(name string) (backend.Func, bool) {
	f, ok := m.funcs[name]
	if !ok || !m.finalized {
		return nil, false
	}
	return entry{f}, true
}

// Data implements [backend.Backend].
func (m *Machine) Data(name string) (unsafe.Pointer, int, bool) {
	d, ok := m.data[name]
	if !ok || !m.finalized {
		return nil, 0, false
	}
	return unsafe.Pointer(unsafe.SliceData(d.buf)), len(d.buf), true
}

// Close implements [backend.Backend].
func (m *Machine) Close() error {
	m.funcs, m.data, m.symbols = nil, nil, nil
	return nil
}

// entry adapts *fn to [backend.Func].
type entry struct{ f *fn }

func (e entry) Pointer() uintptr { return 0 }

func (e entry) Call(args []uint64) []uint64 {
	return e.f.call(args)
}
