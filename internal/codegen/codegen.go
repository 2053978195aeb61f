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

// Package codegen lowers the analyzed AST onto the backend intrinsics:
// one backend function per compiled source function, plus the published
// read-only data (`T::size` constants and string literals).
package codegen

import (
	"encoding/binary"
	"fmt"

	"buf.build/go/sarus/internal/backend"
	"buf.build/go/sarus/internal/debug"
	"buf.build/go/sarus/internal/rt"
	"buf.build/go/sarus/internal/sema"
	"buf.build/go/sarus/internal/types"
)

// Options configures code generation.
type Options struct {
	// DeepStack enables the alternate linear stack region for functions
	// whose frame exceeds Threshold bytes.
	DeepStack bool
	Threshold int
}

// Generate emits every compiled function of res into be and publishes the
// module's data symbols. It does not finalize the backend; the module
// does that after injecting host symbols.
func Generate(res *sema.Result, be backend.Backend, opts Options) error {
	if opts.Threshold <= 0 {
		opts.Threshold = rt.DeepStackThreshold
	}
	g := &generator{res: res, be: be, opts: opts}

	if err := g.sizes(); err != nil {
		return err
	}
	for fn := range res.Table.Funcs() {
		if fn.Extern || !fn.Compile {
			continue
		}
		if err := g.fn(fn); err != nil {
			return err
		}
	}
	return nil
}

type generator struct {
	res  *sema.Result
	be   backend.Backend
	opts Options

	nstr int // String literal data counter.
}

// sizes publishes `T::size` for every scalar and every declared struct
// and enum, as host-readable i64 data.
func (g *generator) sizes() error {
	publish := func(name string, size int) error {
		var buf [8]byte
		binary.NativeEndian.PutUint64(buf[:], uint64(size))
		return g.be.DefineData(name+"::size", buf[:], 8)
	}
	for name, s := range types.Scalars {
		if err := publish(name, s.Size()); err != nil {
			return err
		}
	}
	for name, s := range g.res.Table.Structs {
		if err := publish(name, s.Size()); err != nil {
			return err
		}
	}
	for name, e := range g.res.Table.Enums {
		if err := publish(name, e.Size()); err != nil {
			return err
		}
	}
	return nil
}

// str publishes a string literal and returns its symbol.
func (g *generator) str(s string) (string, error) {
	name := fmt.Sprintf("str.%d", g.nstr)
	g.nstr++
	return name, g.be.DefineData(name, []byte(s), 1)
}

func (g *generator) fn(fn *sema.Func) error {
	debug.Log([]any{"fn %s", fn.Symbol}, "codegen", "emitting")
	sig, sret := lowerSig(fn)
	b := g.be.NewFunc(fn.Symbol, sig)

	f := &fngen{
		g:    g,
		fn:   fn,
		b:    b,
		sret: sret,
	}
	f.merge = b.NewBlock()

	// Bind parameters and named returns.
	f.push()
	defer f.pop()

	argIdx := len(sret) // Hidden out-pointers come first.
	for i, p := range fn.Decl.Params {
		t := fn.Params[i]
		l := f.declare(p.Name, t)
		words := wordTypes(t)
		vals := make([]backend.Value, len(words))
		for w := range words {
			vals[w] = b.Param(argIdx)
			argIdx++
		}
		f.storeLocal(l, value{t: t, ws: vals})
	}
	for i, r := range fn.Decl.Returns {
		t := fn.Rets[i]
		l := f.declare(r.Name, t)
		if types.IsAggregate(t) {
			// Aggregate returns fill the caller's buffer in place.
			f.storeLocal(l, value{t: t, ws: []backend.Value{b.Param(sretIndex(sret, i))}})
		} else {
			f.zeroLocal(l)
		}
		f.rets = append(f.rets, l)
	}

	if err := f.block(fn.Body); err != nil {
		return err
	}
	f.b.Jump(f.merge)

	// The merge block is the single exit: read the named returns and
	// hand the scalar and slice ones back by value. Aggregates were
	// written through the hidden out-pointers already.
	f.b.Switch(f.merge)
	var out []backend.Value
	for i, l := range f.rets {
		if types.IsAggregate(fn.Rets[i]) {
			continue
		}
		out = append(out, f.loadLocal(l).ws...)
	}
	f.b.Return(out)

	if g.opts.DeepStack && f.frameSize > g.opts.Threshold {
		b.UseDeepStack(true)
	}
	return b.Finish()
}

// sretIndex returns the parameter index of the hidden out-pointer for
// return i.
func sretIndex(sret []int, ret int) int {
	for idx, r := range sret {
		if r == ret {
			return idx
		}
	}
	panic(fmt.Sprintf("sarus: return %d has no out-pointer", ret))
}

// lowerSig lowers a function signature to the backend ABI: scalars in
// their register class, aggregates by pointer, sized slices as three
// words, aggregate returns as hidden out-pointer parameters (which come
// first). sret lists which return indexes became out-pointers.
func lowerSig(fn *sema.Func) (backend.Signature, []int) {
	var sig backend.Signature
	var sret []int
	for i, r := range fn.Rets {
		if types.IsAggregate(r) {
			sret = append(sret, i)
			sig.Params = append(sig.Params, backend.Ptr)
		}
	}
	for _, p := range fn.Params {
		sig.Params = append(sig.Params, wordTypes(p)...)
	}
	for _, r := range fn.Rets {
		if !types.IsAggregate(r) {
			sig.Results = append(sig.Results, wordTypes(r)...)
		}
	}
	return sig, sret
}

// wordTypes maps a source type to its backend word classes.
func wordTypes(t types.Type) []backend.Type {
	switch t.Kind() {
	case types.KindBool, types.KindU8:
		return []backend.Type{backend.I8}
	case types.KindI64:
		return []backend.Type{backend.I64}
	case types.KindF32:
		return []backend.Type{backend.F32}
	case types.KindF64:
		return []backend.Type{backend.F64}
	case types.KindSlice:
		return []backend.Type{backend.Ptr, backend.I64, backend.I64}
	case types.KindStruct, types.KindFixedArray, types.KindEnum,
		types.KindUnsized, types.KindRef:
		return []backend.Type{backend.Ptr}
	case types.KindUnit:
		return nil
	}
	panic(fmt.Sprintf("sarus: type %s has no ABI class", t))
}

// scalarClass returns the register class of a scalar type.
func scalarClass(t types.Type) backend.Type {
	return wordTypes(t)[0]
}

// value is a typed bundle of backend words: one word for scalars and
// references, the address for aggregates, {ptr, len, cap} for slices.
type value struct {
	t  types.Type
	ws []backend.Value
}

func (v value) word() backend.Value { return v.ws[0] }

// local is a named variable: a stack slot holding the value words (for
// aggregates, the address of the storage the name is bound to).
type local struct {
	t    types.Type
	slot backend.StackSlot
}

// loopFrame is an enclosing while: where continue and break go.
type loopFrame struct {
	cont, exit backend.Block
}

// inlineFrame is an enclosing inline or closure expansion: where return
// goes.
type inlineFrame struct {
	merge backend.Block
}

// fngen emits one function.
type fngen struct {
	g  *generator
	fn *sema.Func
	b  backend.Builder

	sret  []int
	merge backend.Block
	rets  []*local

	scopes  []map[string]*local
	loops   []loopFrame
	inlines []inlineFrame

	frameSize int
}

func (f *fngen) push() { f.scopes = append(f.scopes, map[string]*local{}) }
func (f *fngen) pop()  { f.scopes = f.scopes[:len(f.scopes)-1] }

// declare creates a fresh local in the innermost scope.
func (f *fngen) declare(name string, t types.Type) *local {
	size := localSize(t)
	l := &local{t: t, slot: f.b.StackSlot(size)}
	f.frameSize += size
	f.scopes[len(f.scopes)-1][name] = l
	return l
}

func (f *fngen) lookup(name string) *local {
	for i := len(f.scopes) - 1; i >= 0; i-- {
		if l, ok := f.scopes[i][name]; ok {
			return l
		}
	}
	return nil
}

// localSize is the slot size of a variable of type t. Aggregates bind by
// reference, so their slot holds a pointer.
func localSize(t types.Type) int {
	if types.IsAggregate(t) {
		return 8
	}
	return max(t.Size(), 8)
}

func (f *fngen) loadLocal(l *local) value {
	addr := f.b.SlotAddr(l.slot)
	words := wordTypes(l.t)
	vals := make([]backend.Value, len(words))
	for i, w := range words {
		vals[i] = f.b.Load(w, addr, int32(i*8))
	}
	return value{t: l.t, ws: vals}
}

func (f *fngen) storeLocal(l *local, v value) {
	addr := f.b.SlotAddr(l.slot)
	for i, w := range wordTypes(l.t) {
		f.b.Store(w, addr, int32(i*8), v.ws[i])
	}
}

func (f *fngen) zeroLocal(l *local) {
	addr := f.b.SlotAddr(l.slot)
	for i, w := range wordTypes(l.t) {
		var zero backend.Value
		switch w {
		case backend.F32:
			zero = f.b.F32const(0)
		case backend.F64:
			zero = f.b.F64const(0)
		default:
			zero = f.b.Iconst(w, 0)
		}
		f.b.Store(w, addr, int32(i*8), zero)
	}
}

// alloc reserves anonymous zeroed storage of the given byte size and
// returns its address.
func (f *fngen) alloc(size int) backend.Value {
	slot := f.b.StackSlot(size)
	f.frameSize += size
	return f.b.SlotAddr(slot)
}
