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
	"unsafe"

	"github.com/google/uuid"

	"buf.build/go/sarus/internal/backend"
	"buf.build/go/sarus/internal/sema"
)

// Module is a compiled program: emitted function bodies plus published
// read-only data. It is immutable after compilation; emitted functions
// may be called from any thread, subject to the user code's own
// data-race discipline.
//
// Closing the module invalidates every pointer obtained from [Module.Func]
// and [Module.Data]; the host must keep it alive for the duration of any
// call into emitted code.
type Module struct {
	id   uuid.UUID
	prog *Program
	res  *sema.Result
	be   backend.Backend

	closed bool
}

// ID identifies this module instance in logs.
func (m *Module) ID() uuid.UUID { return m.id }

// Metadata returns the program's metadata blocks, for host-side parsing.
func (m *Module) Metadata() []Metadata { return m.prog.Metadata() }

// Func looks up an emitted entry point by name. Methods are published as
// "Recv.name", e.g. "f32.square".
func (m *Module) Func(name string) (*Func, error) {
	if m.closed {
		return nil, &Error{Kind: ErrResolution, Msg: "module is closed"}
	}
	raw, ok := m.be.Func(name)
	if !ok {
		return nil, &Error{Kind: ErrResolution, Msg: fmt.Sprintf("no function %q", name)}
	}
	var decl *sema.Func
	for fn := range m.res.Table.Funcs() {
		if fn.Symbol == name {
			decl = fn
			break
		}
	}
	return &Func{name: name, raw: raw, decl: decl}, nil
}

// Data looks up a published read-only datum, such as `Misc::size`,
// returning its address and size.
func (m *Module) Data(name string) (unsafe.Pointer, int, error) {
	if m.closed {
		return nil, 0, &Error{Kind: ErrResolution, Msg: "module is closed"}
	}
	p, n, ok := m.be.Data(name)
	if !ok {
		return nil, 0, &Error{Kind: ErrResolution, Msg: fmt.Sprintf("no data %q", name)}
	}
	return p, n, nil
}

// DataI64 reads a published i64 datum; the common case for `T::size`.
func (m *Module) DataI64(name string) (int64, error) {
	p, n, err := m.Data(name)
	if err != nil {
		return 0, err
	}
	if n != 8 {
		return 0, &Error{Kind: ErrResolution, Msg: fmt.Sprintf("data %q is %d bytes, not i64", name, n)}
	}
	return *(*int64)(p), nil
}

// Close releases code memory and symbol tables.
func (m *Module) Close() error {
	if m.closed {
		return nil
	}
	m.closed = true
	return m.be.Close()
}
