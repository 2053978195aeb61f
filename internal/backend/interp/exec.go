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
	"math"
	"unsafe"

	"buf.build/go/sarus/internal/backend"
	"buf.build/go/sarus/internal/rt"
	"buf.build/go/sarus/internal/xunsafe"
)

func f32bits(v float32) uint32   { return math.Float32bits(v) }
func f64bits(v float64) uint64   { return math.Float64bits(v) }
func f32from(w uint64) float32   { return math.Float32frombits(uint32(w)) }
func f64from(w uint64) float64   { return math.Float64frombits(w) }
func boolWord(b bool) uint64 {
	if b {
		return 1
	}
	return 0
}

// call executes the function with raw argument words.
func (f *fn) call(args []uint64) []uint64 {
	regs := make([]uint64, f.nvals)
	copy(regs, args)

	var frame *byte
	if f.frameSize > 0 {
		if f.deep {
			p, mark := f.m.deep.Enter(f.frameSize)
			defer f.m.deep.Leave(mark)
			frame = p
		} else {
			buf, drop := f.framePool.Get()
			defer drop()
			frame = unsafe.SliceData(buf)
		}
	}
	base := uintptr(unsafe.Pointer(frame))

	bi, pc := backend.Block(0), 0
	for {
		in := &f.blocks[bi][pc]
		pc++

		switch in.op {
		case opIconst:
			regs[in.dst] = mask(in.t, in.imm)
		case opF32const, opF64const, opSymbolAddr:
			regs[in.dst] = in.imm

		case opIadd:
			regs[in.dst] = mask(in.t, regs[in.a]+regs[in.b])
		case opIsub:
			regs[in.dst] = mask(in.t, regs[in.a]-regs[in.b])
		case opImul:
			regs[in.dst] = mask(in.t, regs[in.a]*regs[in.b])
		case opSdiv:
			if regs[in.b] == 0 {
				rt.Raise(rt.TrapDivByZero, "in %s", f.name)
			}
			regs[in.dst] = uint64(int64(regs[in.a]) / int64(regs[in.b]))
		case opSrem:
			if regs[in.b] == 0 {
				rt.Raise(rt.TrapDivByZero, "in %s", f.name)
			}
			regs[in.dst] = uint64(int64(regs[in.a]) % int64(regs[in.b]))
		case opUdiv:
			if regs[in.b] == 0 {
				rt.Raise(rt.TrapDivByZero, "in %s", f.name)
			}
			regs[in.dst] = mask(in.t, regs[in.a]/regs[in.b])
		case opUrem:
			if regs[in.b] == 0 {
				rt.Raise(rt.TrapDivByZero, "in %s", f.name)
			}
			regs[in.dst] = mask(in.t, regs[in.a]%regs[in.b])
		case opIneg:
			regs[in.dst] = mask(in.t, -regs[in.a])
		case opBand:
			regs[in.dst] = regs[in.a] & regs[in.b]
		case opBor:
			regs[in.dst] = regs[in.a] | regs[in.b]
		case opBxor:
			regs[in.dst] = mask(in.t, regs[in.a]^regs[in.b])

		case opFadd:
			regs[in.dst] = fop(in.t, regs[in.a], regs[in.b], func(a, b float64) float64 { return a + b })
		case opFsub:
			regs[in.dst] = fop(in.t, regs[in.a], regs[in.b], func(a, b float64) float64 { return a - b })
		case opFmul:
			regs[in.dst] = fop(in.t, regs[in.a], regs[in.b], func(a, b float64) float64 { return a * b })
		case opFdiv:
			regs[in.dst] = fop(in.t, regs[in.a], regs[in.b], func(a, b float64) float64 { return a / b })
		case opFneg:
			if in.t == backend.F32 {
				regs[in.dst] = uint64(f32bits(-f32from(regs[in.a])))
			} else {
				regs[in.dst] = f64bits(-f64from(regs[in.a]))
			}

		case opIcmp:
			var r bool
			if in.signed {
				r = icmp(in.cc, int64(regs[in.a]), int64(regs[in.b]))
			} else {
				r = ucmp(in.cc, regs[in.a], regs[in.b])
			}
			regs[in.dst] = boolWord(r)
		case opFcmp:
			var a, b float64
			if in.t == backend.F32 {
				a, b = float64(f32from(regs[in.a])), float64(f32from(regs[in.b]))
			} else {
				a, b = f64from(regs[in.a]), f64from(regs[in.b])
			}
			regs[in.dst] = boolWord(fcmp(in.cc, a, b))

		case opFcvtToSint:
			var v int64
			if in.t == backend.F32 {
				v = int64(f32from(regs[in.a]))
			} else {
				v = int64(f64from(regs[in.a]))
			}
			regs[in.dst] = mask(in.t2, uint64(v))
		case opFcvtFromSint:
			v := int64(regs[in.a])
			if in.t2 == backend.F32 {
				regs[in.dst] = uint64(f32bits(float32(v)))
			} else {
				regs[in.dst] = f64bits(float64(v))
			}
		case opFpromote:
			regs[in.dst] = f64bits(float64(f32from(regs[in.a])))
		case opFdemote:
			regs[in.dst] = uint64(f32bits(float32(f64from(regs[in.a]))))
		case opIreduce:
			regs[in.dst] = mask(in.t, regs[in.a])
		case opUextend:
			regs[in.dst] = regs[in.a] // Values stay zero-extended.

		case opSlotAddr:
			regs[in.dst] = uint64(base) + uint64(f.slotOffs[in.slot])

		case opLoad:
			p := unsafe.Pointer(uintptr(regs[in.a]) + uintptr(in.off))
			switch in.t {
			case backend.I8:
				regs[in.dst] = uint64(*(*uint8)(p))
			case backend.F32:
				regs[in.dst] = uint64(*(*uint32)(p))
			default:
				regs[in.dst] = *(*uint64)(p)
			}
		case opStore:
			p := unsafe.Pointer(uintptr(regs[in.a]) + uintptr(in.off))
			switch in.t {
			case backend.I8:
				*(*uint8)(p) = uint8(regs[in.b])
			case backend.F32:
				*(*uint32)(p) = uint32(regs[in.b])
			default:
				*(*uint64)(p) = regs[in.b]
			}
		case opMemCopy:
			n := int(regs[in.c])
			if n > 0 {
				dst := xunsafe.Slice((*byte)(unsafe.Pointer(uintptr(regs[in.a]))), n)
				src := xunsafe.Slice((*byte)(unsafe.Pointer(uintptr(regs[in.b]))), n)
				copy(dst, src)
			}

		case opCall:
			cargs := make([]uint64, len(in.args))
			for i, a := range in.args {
				cargs[i] = regs[a]
			}
			var rets []uint64
			switch target := in.target.(type) {
			case *fn:
				rets = target.call(cargs)
			case *host:
				rets = target.invoke(cargs)
			}
			for i, r := range in.rets {
				regs[r] = rets[i]
			}

		case opJump:
			bi, pc = in.blk, 0
		case opBrif:
			if regs[in.a] != 0 {
				bi, pc = in.blk, 0
			} else {
				bi, pc = in.blk2, 0
			}

		case opReturn:
			out := make([]uint64, len(in.args))
			for i, a := range in.args {
				out[i] = regs[a]
			}
			return out

		case opTrap:
			rt.Raise(in.code, "in %s", f.name)
		}
	}
}

func mask(t backend.Type, v uint64) uint64 {
	if t == backend.I8 {
		return v & 0xFF
	}
	return v
}

func fop(t backend.Type, a, b uint64, f func(a, b float64) float64) uint64 {
	if t == backend.F32 {
		return uint64(f32bits(float32(f(float64(f32from(a)), float64(f32from(b))))))
	}
	return f64bits(f(f64from(a), f64from(b)))
}

func icmp(cc backend.Cond, a, b int64) bool {
	switch cc {
	case backend.Eq:
		return a == b
	case backend.Ne:
		return a != b
	case backend.Lt:
		return a < b
	case backend.Le:
		return a <= b
	case backend.Gt:
		return a > b
	default:
		return a >= b
	}
}

func ucmp(cc backend.Cond, a, b uint64) bool {
	switch cc {
	case backend.Eq:
		return a == b
	case backend.Ne:
		return a != b
	case backend.Lt:
		return a < b
	case backend.Le:
		return a <= b
	case backend.Gt:
		return a > b
	default:
		return a >= b
	}
}

func fcmp(cc backend.Cond, a, b float64) bool {
	switch cc {
	case backend.Eq:
		return a == b
	case backend.Ne:
		return a != b
	case backend.Lt:
		return a < b
	case backend.Le:
		return a <= b
	case backend.Gt:
		return a > b
	default:
		return a >= b
	}
}
