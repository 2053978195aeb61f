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

	"buf.build/go/sarus/internal/backend"
	"buf.build/go/sarus/internal/rt"
	"buf.build/go/sarus/internal/sync2"
	"buf.build/go/sarus/internal/xunsafe"
)

type op uint8

const (
	opIconst op = iota
	opF32const
	opF64const

	opIadd
	opIsub
	opImul
	opSdiv
	opSrem
	opUdiv
	opUrem
	opIneg
	opBand
	opBor
	opBxor

	opFadd
	opFsub
	opFmul
	opFdiv
	opFneg

	opIcmp
	opFcmp

	opFcvtToSint
	opFcvtFromSint
	opFpromote
	opFdemote
	opIreduce
	opUextend

	opSlotAddr
	opLoad
	opStore
	opMemCopy
	opSymbolAddr

	opCall
	opJump
	opBrif
	opReturn
	opTrap
)

// instr is one recorded instruction. One fat struct keeps the interpreter
// loop a single switch.
type instr struct {
	op     op
	t, t2  backend.Type
	cc     backend.Cond
	signed bool

	a, b, c backend.Value
	dst     backend.Value

	imm  uint64
	off  int32
	n    int64
	slot backend.StackSlot
	sym  string
	code rt.TrapCode

	args []backend.Value
	rets []backend.Value

	blk, blk2 backend.Block

	// Resolved callee (*fn or *host), filled in by Finalize.
	target any
}

// fn implements [backend.Builder] and holds the finalized function.
type fn struct {
	m    *Machine
	name string
	sig  backend.Signature

	blocks [][]instr
	cur    backend.Block
	nvals  int

	slotOffs  []int
	frameSize int
	deep      bool

	// framePool recycles zeroed frame memory across invocations.
	framePool sync2.FramePool

	finished bool
}

func (f *fn) emit(in instr) {
	f.blocks[f.cur] = append(f.blocks[f.cur], in)
}

func (f *fn) value() backend.Value {
	v := backend.Value(int32(f.nvals))
	f.nvals++
	return v
}

func (f *fn) emitValue(in instr) backend.Value {
	in.dst = f.value()
	f.emit(in)
	return in.dst
}

// NewBlock implements [backend.Builder].
func (f *fn) NewBlock() backend.Block {
	f.blocks = append(f.blocks, nil)
	return backend.Block(int32(len(f.blocks) - 1))
}

// Switch implements [backend.Builder].
func (f *fn) Switch(b backend.Block) { f.cur = b }

// Param implements [backend.Builder]. Parameters occupy the first value
// numbers, in order.
func (f *fn) Param(i int) backend.Value {
	if i >= len(f.sig.Params) {
		panic(fmt.Sprintf("interp: no parameter %d in %s", i, f.name))
	}
	return backend.Value(int32(i))
}

func (f *fn) Iconst(t backend.Type, v int64) backend.Value {
	return f.emitValue(instr{op: opIconst, t: t, imm: uint64(v)})
}

func (f *fn) F32const(v float32) backend.Value {
	return f.emitValue(instr{op: opF32const, imm: uint64(f32bits(v))})
}

func (f *fn) F64const(v float64) backend.Value {
	return f.emitValue(instr{op: opF64const, imm: f64bits(v)})
}

func (f *fn) binop(o op, t backend.Type, a, b backend.Value) backend.Value {
	return f.emitValue(instr{op: o, t: t, a: a, b: b})
}

func (f *fn) Iadd(t backend.Type, a, b backend.Value) backend.Value { return f.binop(opIadd, t, a, b) }
func (f *fn) Isub(t backend.Type, a, b backend.Value) backend.Value { return f.binop(opIsub, t, a, b) }
func (f *fn) Imul(t backend.Type, a, b backend.Value) backend.Value { return f.binop(opImul, t, a, b) }
func (f *fn) Sdiv(t backend.Type, a, b backend.Value) backend.Value { return f.binop(opSdiv, t, a, b) }
func (f *fn) Srem(t backend.Type, a, b backend.Value) backend.Value { return f.binop(opSrem, t, a, b) }
func (f *fn) Udiv(t backend.Type, a, b backend.Value) backend.Value { return f.binop(opUdiv, t, a, b) }
func (f *fn) Urem(t backend.Type, a, b backend.Value) backend.Value { return f.binop(opUrem, t, a, b) }
func (f *fn) Ineg(t backend.Type, a backend.Value) backend.Value {
	return f.emitValue(instr{op: opIneg, t: t, a: a})
}
func (f *fn) Band(t backend.Type, a, b backend.Value) backend.Value { return f.binop(opBand, t, a, b) }
func (f *fn) Bor(t backend.Type, a, b backend.Value) backend.Value  { return f.binop(opBor, t, a, b) }
func (f *fn) Bxor(t backend.Type, a, b backend.Value) backend.Value { return f.binop(opBxor, t, a, b) }

func (f *fn) Fadd(t backend.Type, a, b backend.Value) backend.Value { return f.binop(opFadd, t, a, b) }
func (f *fn) Fsub(t backend.Type, a, b backend.Value) backend.Value { return f.binop(opFsub, t, a, b) }
func (f *fn) Fmul(t backend.Type, a, b backend.Value) backend.Value { return f.binop(opFmul, t, a, b) }
func (f *fn) Fdiv(t backend.Type, a, b backend.Value) backend.Value { return f.binop(opFdiv, t, a, b) }

func (f *fn) Fneg(t backend.Type, a backend.Value) backend.Value {
	return f.emitValue(instr{op: opFneg, t: t, a: a})
}

func (f *fn) Icmp(t backend.Type, cc backend.Cond, signed bool, a, b backend.Value) backend.Value {
	return f.emitValue(instr{op: opIcmp, t: t, cc: cc, signed: signed, a: a, b: b})
}

func (f *fn) Fcmp(t backend.Type, cc backend.Cond, a, b backend.Value) backend.Value {
	return f.emitValue(instr{op: opFcmp, t: t, cc: cc, a: a, b: b})
}

func (f *fn) FcvtToSint(from, to backend.Type, v backend.Value) backend.Value {
	return f.emitValue(instr{op: opFcvtToSint, t: from, t2: to, a: v})
}

func (f *fn) FcvtFromSint(from, to backend.Type, v backend.Value) backend.Value {
	return f.emitValue(instr{op: opFcvtFromSint, t: from, t2: to, a: v})
}

func (f *fn) Fpromote(v backend.Value) backend.Value {
	return f.emitValue(instr{op: opFpromote, a: v})
}

func (f *fn) Fdemote(v backend.Value) backend.Value {
	return f.emitValue(instr{op: opFdemote, a: v})
}

func (f *fn) Ireduce(to backend.Type, v backend.Value) backend.Value {
	return f.emitValue(instr{op: opIreduce, t: to, a: v})
}

func (f *fn) Uextend(from backend.Type, v backend.Value) backend.Value {
	return f.emitValue(instr{op: opUextend, t: from, a: v})
}

// StackSlot implements [backend.Builder]. Slots are 8-aligned and zeroed
// on function entry.
func (f *fn) StackSlot(size int) backend.StackSlot {
	off := f.frameSize
	f.slotOffs = append(f.slotOffs, off)
	f.frameSize += xunsafe.RoundUp(size, rt.Align)
	return backend.StackSlot(int32(len(f.slotOffs) - 1))
}

func (f *fn) SlotAddr(s backend.StackSlot) backend.Value {
	return f.emitValue(instr{op: opSlotAddr, slot: s})
}

func (f *fn) Load(t backend.Type, p backend.Value, off int32) backend.Value {
	return f.emitValue(instr{op: opLoad, t: t, a: p, off: off})
}

func (f *fn) Store(t backend.Type, p backend.Value, off int32, v backend.Value) {
	f.emit(instr{op: opStore, t: t, a: p, off: off, b: v})
}

func (f *fn) MemCopy(dst, src, n backend.Value) {
	f.emit(instr{op: opMemCopy, a: dst, b: src, c: n})
}

func (f *fn) SymbolAddr(name string) backend.Value {
	return f.emitValue(instr{op: opSymbolAddr, sym: name})
}

func (f *fn) Call(callee string, args []backend.Value, results int) []backend.Value {
	in := instr{op: opCall, sym: callee, args: args}
	for range results {
		in.rets = append(in.rets, f.value())
	}
	f.emit(in)
	return in.rets
}

func (f *fn) Jump(b backend.Block) {
	f.emit(instr{op: opJump, blk: b})
}

func (f *fn) Brif(c backend.Value, then, els backend.Block) {
	f.emit(instr{op: opBrif, a: c, blk: then, blk2: els})
}

func (f *fn) Return(vals []backend.Value) {
	f.emit(instr{op: opReturn, args: vals})
}

func (f *fn) Trap(code rt.TrapCode) {
	f.emit(instr{op: opTrap, code: code})
}

func (f *fn) UseDeepStack(on bool) { f.deep = on }

// Finish implements [backend.Builder].
func (f *fn) Finish() error {
	if f.finished {
		return fmt.Errorf("function %q finished twice", f.name)
	}
	f.finished = true
	f.framePool.Size = f.frameSize
	return nil
}
