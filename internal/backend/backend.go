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

// Package backend is the contract between the code generator and the
// native code-generation backend.
//
// The backend is an external collaborator: it owns register allocation,
// instruction selection and code memory, and exposes a function builder
// over a small intrinsic set (blocks, branches, calls, loads and stores,
// arithmetic over fixed-width integer and floating-point values, stack
// slots) plus symbol publication. The code generator lowers the analyzed
// AST onto this interface and never looks behind it.
//
// The reference implementation in backend/interp executes the built IR
// over raw process memory; a native JIT drops in through the same
// interface.
package backend

import (
	"unsafe"

	"buf.build/go/sarus/internal/rt"
)

// Type is a backend value class.
type Type uint8

const (
	I8 Type = iota // Also carries bool and u8.
	I64
	F32
	F64
	Ptr
)

// Size returns the byte width of the value class.
func (t Type) Size() int {
	switch t {
	case I8:
		return 1
	case F32:
		return 4
	default:
		return 8
	}
}

// Signature is a function's backend-level signature, after ABI lowering:
// aggregates are pointers, sized slices are three words, and aggregate
// returns have become hidden out-pointer parameters.
type Signature struct {
	Params  []Type
	Results []Type
}

// Value is an SSA-style handle to a computed value within one function.
type Value int32

// NoValue is the absent value.
const NoValue Value = -1

// Block is a handle to a basic block within one function.
type Block int32

// StackSlot is a handle to a fixed-size slot in the function frame.
type StackSlot int32

// Cond is a comparison condition. Signedness and the int/float distinction
// are selected by the emitting call, per the operand type.
type Cond uint8

const (
	Eq Cond = iota
	Ne
	Lt
	Le
	Gt
	Ge
)

// Builder builds one function. Instructions are appended at the current
// insertion point, set with Switch. Every builder starts in its entry
// block.
type Builder interface {
	// NewBlock creates a new, empty basic block.
	NewBlock() Block
	// Switch moves the insertion point to the end of b.
	Switch(b Block)
	// Param returns the i'th function parameter as a value.
	Param(i int) Value

	Iconst(t Type, v int64) Value
	F32const(v float32) Value
	F64const(v float64) Value

	// Integer arithmetic. The type selects the operand width: I8 results
	// wrap modulo 256. Sdiv and Srem trap on a zero divisor.
	Iadd(t Type, a, b Value) Value
	Isub(t Type, a, b Value) Value
	Imul(t Type, a, b Value) Value
	Sdiv(t Type, a, b Value) Value
	Srem(t Type, a, b Value) Value
	Udiv(t Type, a, b Value) Value
	Urem(t Type, a, b Value) Value
	Ineg(t Type, a Value) Value
	Band(t Type, a, b Value) Value
	Bor(t Type, a, b Value) Value
	Bxor(t Type, a, b Value) Value

	Fadd(t Type, a, b Value) Value
	Fsub(t Type, a, b Value) Value
	Fmul(t Type, a, b Value) Value
	Fdiv(t Type, a, b Value) Value
	Fneg(t Type, a Value) Value

	// Icmp compares integers, signed or unsigned; Fcmp compares floats.
	// Both yield an I8 of 0 or 1.
	Icmp(t Type, cc Cond, signed bool, a, b Value) Value
	Fcmp(t Type, cc Cond, a, b Value) Value

	// Conversions. FcvtToSint truncates toward zero.
	FcvtToSint(from, to Type, v Value) Value
	FcvtFromSint(from, to Type, v Value) Value
	Fpromote(v Value) Value
	Fdemote(v Value) Value
	Ireduce(to Type, v Value) Value
	Uextend(from Type, v Value) Value

	// StackSlot reserves size bytes of frame memory, 8-byte aligned.
	StackSlot(size int) StackSlot
	// SlotAddr materializes the address of a stack slot.
	SlotAddr(s StackSlot) Value

	Load(t Type, p Value, off int32) Value
	Store(t Type, p Value, off int32, v Value)
	// MemCopy copies n bytes between possibly-overlapping regions. n is
	// an I64 value; constant-size copies pass an Iconst.
	MemCopy(dst, src, n Value)

	// SymbolAddr materializes the address of a published data symbol.
	SymbolAddr(name string) Value

	// Call calls a function by symbol: a compiled function, or a host
	// symbol for externs. Resolution happens at Finalize; results is the
	// callee's result count per its lowered signature.
	Call(callee string, args []Value, results int) []Value

	Jump(b Block)
	Brif(c Value, then, els Block)
	Return(vals []Value)
	Trap(code rt.TrapCode)

	// UseDeepStack moves this function's frame onto the module's deep
	// stack region: the prologue switches, the epilogue restores.
	UseDeepStack(on bool)

	// Finish declares the function complete.
	Finish() error
}

// Func is a finalized entry point.
type Func interface {
	// Pointer is the native entry point, for backends that publish one.
	// Backends that execute in-process report 0.
	Pointer() uintptr
	// Call invokes the function with raw argument words (floats
	// bit-packed, pointers as uintptr words).
	Call(args []uint64) []uint64
}

// Backend builds and owns a module's worth of code and data.
type Backend interface {
	// NewFunc starts a function with the given symbol name and lowered
	// signature.
	NewFunc(name string, sig Signature) Builder

	// DefineData publishes a read-only datum under name.
	DefineData(name string, data []byte, align int) error

	// DefineSymbol injects a host symbol, used to resolve extern calls.
	DefineSymbol(name string, fn any)

	// Finalize resolves every call site and data reference. After it
	// returns, Func and Data work and nothing may be added.
	Finalize() error

	Func(name string) (Func, bool)
	Data(name string) (unsafe.Pointer, int, bool)

	// Close releases code memory and symbol tables. Every pointer
	// returned by Func or Data is invalid afterwards.
	Close() error
}
