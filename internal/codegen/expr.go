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

package codegen

import (
	"fmt"

	"buf.build/go/sarus/internal/ast"
	"buf.build/go/sarus/internal/backend"
	"buf.build/go/sarus/internal/rt"
	"buf.build/go/sarus/internal/sema"
	"buf.build/go/sarus/internal/types"
)

// single unwraps the value of a single-valued expression.
func single(vs []value) value {
	if len(vs) != 1 {
		panic(fmt.Sprintf("sarus: expected one value, found %d", len(vs)))
	}
	return vs[0]
}

// expr emits an expression, returning its values: none for unit, several
// for multi-return calls, one otherwise.
func (f *fngen) expr(e ast.Expr) ([]value, error) {
	t := e.Info().T
	switch e := e.(type) {
	case *ast.BasicLit:
		return f.lit(e, t)

	case *ast.Ident:
		if l := f.lookup(e.Name); l != nil {
			return []value{f.loadLocal(l)}, nil
		}
		// A registered constant, typed like a float literal.
		c := f.g.res.Table.Consts[e.Name]
		if t.Kind() == types.KindF64 {
			return []value{{t: t, ws: []backend.Value{f.b.F64const(c)}}}, nil
		}
		return []value{{t: t, ws: []backend.Value{f.b.F32const(float32(c))}}}, nil

	case *ast.UnaryExpr:
		x, err := f.expr(e.X)
		if err != nil {
			return nil, err
		}
		w := single(x).word()
		var out backend.Value
		if e.Op == ast.OpNot {
			out = f.b.Bxor(backend.I8, w, f.b.Iconst(backend.I8, 1))
		} else if types.IsFloat(t) {
			out = f.b.Fneg(scalarClass(t), w)
		} else {
			out = f.b.Ineg(scalarClass(t), w)
		}
		return []value{{t: t, ws: []backend.Value{out}}}, nil

	case *ast.BinaryExpr:
		return f.binary(e, t)

	case *ast.CallExpr:
		return f.call(e, t)

	case *ast.DotCallExpr:
		return f.dotCall(e, t)

	case *ast.FieldExpr:
		x, err := f.expr(e.X)
		if err != nil {
			return nil, err
		}
		base := single(x).word()
		if e.EnumTag {
			return []value{{t: t, ws: []backend.Value{f.b.Load(backend.I64, base, 0)}}}, nil
		}
		return []value{f.loadAt(t, base, int32(e.Offset))}, nil

	case *ast.PathExpr:
		return []value{{t: t, ws: []backend.Value{f.b.Iconst(backend.I64, e.Const)}}}, nil

	case *ast.IndexExpr:
		addr, err := f.elemAddr(e)
		if err != nil {
			return nil, err
		}
		return []value{f.loadAt(t, addr, 0)}, nil

	case *ast.SliceExpr:
		return f.sliceExpr(e, t)

	case *ast.IfExpr:
		return f.ifExpr(e, t)

	case *ast.ArrayLit:
		return f.arrayLit(e, t)

	case *ast.StructLit:
		return f.structLit(e, t)
	}
	return nil, fmt.Errorf("sarus: cannot lower expression %T", e)
}

func (f *fngen) lit(e *ast.BasicLit, t types.Type) ([]value, error) {
	switch e.Kind {
	case ast.LitInt:
		switch t.Kind() {
		case types.KindU8:
			return []value{{t: t, ws: []backend.Value{f.b.Iconst(backend.I8, e.IntVal)}}}, nil
		case types.KindF32:
			return []value{{t: t, ws: []backend.Value{f.b.F32const(float32(e.IntVal))}}}, nil
		case types.KindF64:
			return []value{{t: t, ws: []backend.Value{f.b.F64const(float64(e.IntVal))}}}, nil
		}
		return []value{{t: t, ws: []backend.Value{f.b.Iconst(backend.I64, e.IntVal)}}}, nil
	case ast.LitFloat:
		if t.Kind() == types.KindF64 {
			return []value{{t: t, ws: []backend.Value{f.b.F64const(e.FloatVal)}}}, nil
		}
		return []value{{t: t, ws: []backend.Value{f.b.F32const(float32(e.FloatVal))}}}, nil
	case ast.LitBool:
		v := int64(0)
		if e.BoolVal {
			v = 1
		}
		return []value{{t: t, ws: []backend.Value{f.b.Iconst(backend.I8, v)}}}, nil
	default: // LitStr: read-only data plus a slice descriptor at the use site.
		sym, err := f.g.str(e.StrVal)
		if err != nil {
			return nil, err
		}
		addr := f.b.SymbolAddr(sym)
		n := f.b.Iconst(backend.I64, int64(len(e.StrVal)))
		return []value{{t: t, ws: []backend.Value{addr, n, n}}}, nil
	}
}

func (f *fngen) binary(e *ast.BinaryExpr, t types.Type) ([]value, error) {
	xs, err := f.expr(e.X)
	if err != nil {
		return nil, err
	}
	ys, err := f.expr(e.Y)
	if err != nil {
		return nil, err
	}
	x, y := single(xs).word(), single(ys).word()
	ot := e.X.Info().T // operand type

	var out backend.Value
	switch e.Op {
	case ast.OpAnd:
		out = f.b.Band(backend.I8, x, y)
	case ast.OpOr:
		out = f.b.Bor(backend.I8, x, y)
	case ast.OpEq, ast.OpNe, ast.OpLt, ast.OpLe, ast.OpGt, ast.OpGe:
		cc := conds[e.Op]
		if types.IsFloat(ot) {
			out = f.b.Fcmp(scalarClass(ot), cc, x, y)
		} else {
			signed := ot.Kind() == types.KindI64
			out = f.b.Icmp(scalarClass(ot), cc, signed, x, y)
		}
	default:
		out = f.arith(e.Op, ot, x, y)
	}
	return []value{{t: t, ws: []backend.Value{out}}}, nil
}

var conds = map[ast.BinOp]backend.Cond{
	ast.OpEq: backend.Eq, ast.OpNe: backend.Ne,
	ast.OpLt: backend.Lt, ast.OpLe: backend.Le,
	ast.OpGt: backend.Gt, ast.OpGe: backend.Ge,
}

// arith emits arithmetic on two operands of scalar type t.
func (f *fngen) arith(op ast.BinOp, t types.Type, x, y backend.Value) backend.Value {
	cls := scalarClass(t)
	if types.IsFloat(t) {
		switch op {
		case ast.OpAdd:
			return f.b.Fadd(cls, x, y)
		case ast.OpSub:
			return f.b.Fsub(cls, x, y)
		case ast.OpMul:
			return f.b.Fmul(cls, x, y)
		default:
			return f.b.Fdiv(cls, x, y)
		}
	}
	unsigned := t.Kind() == types.KindU8
	switch op {
	case ast.OpAdd:
		return f.b.Iadd(cls, x, y)
	case ast.OpSub:
		return f.b.Isub(cls, x, y)
	case ast.OpMul:
		return f.b.Imul(cls, x, y)
	case ast.OpDiv:
		if unsigned {
			return f.b.Udiv(cls, x, y)
		}
		return f.b.Sdiv(cls, x, y)
	default: // OpRem
		if unsigned {
			return f.b.Urem(cls, x, y)
		}
		return f.b.Srem(cls, x, y)
	}
}

// elemAddr computes the address of x[i].
func (f *fngen) elemAddr(e *ast.IndexExpr) (backend.Value, error) {
	xs, err := f.expr(e.X)
	if err != nil {
		return backend.NoValue, err
	}
	x := single(xs)
	base := x.ws[0] // Fixed arrays are addresses, slices lead with one.

	stride := int64(e.Info().T.Size())
	is, err := f.expr(e.Index)
	if err != nil {
		return backend.NoValue, err
	}
	off := f.b.Imul(backend.I64, single(is).word(), f.b.Iconst(backend.I64, stride))
	return f.b.Iadd(backend.I64, base, off), nil
}

func (f *fngen) sliceExpr(e *ast.SliceExpr, t types.Type) ([]value, error) {
	xs, err := f.expr(e.X)
	if err != nil {
		return nil, err
	}
	x := single(xs)
	elem := t.(*types.Slice).Elem
	stride := int64(elem.Size())

	// An unsized receiver has no length or capacity of its own; the
	// analyzer already required an explicit upper bound.
	unsized := x.t.Kind() == types.KindUnsized
	var base0, len0, cap0 backend.Value
	switch xt := x.t.(type) {
	case *types.FixedArray:
		base0 = x.word()
		len0 = f.b.Iconst(backend.I64, xt.Len)
		cap0 = len0
	case *types.Slice:
		base0, len0, cap0 = x.ws[0], x.ws[1], x.ws[2]
	case *types.Unsized:
		base0 = x.word()
	}

	lo := f.b.Iconst(backend.I64, 0)
	if e.Lo != nil {
		ls, err := f.expr(e.Lo)
		if err != nil {
			return nil, err
		}
		lo = single(ls).word()
	}
	hi := len0
	if e.Hi != nil {
		hs, err := f.expr(e.Hi)
		if err != nil {
			return nil, err
		}
		hi = single(hs).word()
	}

	base := f.b.Iadd(backend.I64, base0,
		f.b.Imul(backend.I64, lo, f.b.Iconst(backend.I64, stride)))
	length := f.b.Isub(backend.I64, hi, lo)
	capacity := length
	if !unsized {
		// Capacity reaches to the end of the backing storage.
		capacity = f.b.Isub(backend.I64, cap0, lo)
	}
	return []value{{t: t, ws: []backend.Value{base, length, capacity}}}, nil
}

func (f *fngen) ifExpr(e *ast.IfExpr, t types.Type) ([]value, error) {
	conds, err := f.expr(e.Cond)
	if err != nil {
		return nil, err
	}

	then := f.b.NewBlock()
	merge := f.b.NewBlock()
	els := merge
	if e.Else != nil {
		els = f.b.NewBlock()
	}
	f.b.Brif(single(conds).word(), then, els)

	// Non-unit branch values flow through temporaries.
	var tmps []*local
	for _, et := range tupleTypes(t) {
		l := &local{t: et, slot: f.b.StackSlot(localSize(et))}
		f.frameSize += localSize(et)
		tmps = append(tmps, l)
	}

	emitBranch := func(b *ast.Block, blk backend.Block) error {
		f.b.Switch(blk)
		f.push()
		defer f.pop()

		n := len(b.Stmts)
		for i, s := range b.Stmts {
			if i == n-1 && len(tmps) > 0 {
				tail := s.(*ast.ExprStmt)
				vs, err := f.expr(tail.X)
				if err != nil {
					return err
				}
				for j, tmp := range tmps {
					f.storeLocal(tmp, vs[j])
				}
				break
			}
			term, err := f.stmt(s)
			if err != nil {
				return err
			}
			if term {
				return nil
			}
		}
		f.b.Jump(merge)
		return nil
	}

	if err := emitBranch(e.Then, then); err != nil {
		return nil, err
	}
	if e.Else != nil {
		if err := emitBranch(e.Else, els); err != nil {
			return nil, err
		}
	}

	f.b.Switch(merge)
	var out []value
	for _, tmp := range tmps {
		out = append(out, f.loadLocal(tmp))
	}
	return out, nil
}

// tupleTypes flattens a possibly-tuple type into its element list; unit
// flattens to nothing.
func tupleTypes(t types.Type) []types.Type {
	switch t := t.(type) {
	case *types.Tuple:
		return t.Elems
	}
	if t.Kind() == types.KindUnit {
		return nil
	}
	return []types.Type{t}
}

func (f *fngen) arrayLit(e *ast.ArrayLit, t types.Type) ([]value, error) {
	arr := t.(*types.FixedArray)
	stride := int64(arr.Elem.Size())
	addr := f.alloc(arr.Size())

	if e.Repeat == nil {
		for i, el := range e.Elems {
			vs, err := f.expr(el)
			if err != nil {
				return nil, err
			}
			f.storeAt(addr, int32(int64(i)*stride), single(vs))
		}
		return []value{{t: t, ws: []backend.Value{addr}}}, nil
	}

	vs, err := f.expr(e.Repeat)
	if err != nil {
		return nil, err
	}
	v := single(vs)

	// Small arrays initialize flat; large ones loop.
	const unroll = 16
	if arr.Len <= unroll {
		for i := range arr.Len {
			f.storeAt(addr, int32(i*stride), v)
		}
		return []value{{t: t, ws: []backend.Value{addr}}}, nil
	}

	idx := &local{t: types.I64, slot: f.b.StackSlot(8)}
	f.frameSize += 8
	f.storeLocal(idx, value{t: types.I64, ws: []backend.Value{f.b.Iconst(backend.I64, 0)}})

	header := f.b.NewBlock()
	body := f.b.NewBlock()
	exit := f.b.NewBlock()
	f.b.Jump(header)

	f.b.Switch(header)
	i := f.loadLocal(idx).word()
	done := f.b.Icmp(backend.I64, backend.Lt, true, i, f.b.Iconst(backend.I64, arr.Len))
	f.b.Brif(done, body, exit)

	f.b.Switch(body)
	i = f.loadLocal(idx).word()
	off := f.b.Imul(backend.I64, i, f.b.Iconst(backend.I64, stride))
	f.storeAt(f.b.Iadd(backend.I64, addr, off), 0, v)
	next := f.b.Iadd(backend.I64, i, f.b.Iconst(backend.I64, 1))
	f.storeLocal(idx, value{t: types.I64, ws: []backend.Value{next}})
	f.b.Jump(header)

	f.b.Switch(exit)
	return []value{{t: t, ws: []backend.Value{addr}}}, nil
}

func (f *fngen) structLit(e *ast.StructLit, t types.Type) ([]value, error) {
	st := t.(*types.Struct)
	addr := f.alloc(st.Size())
	for _, init := range e.Inits {
		field := st.Field(init.Name)
		vs, err := f.expr(init.Value)
		if err != nil {
			return nil, err
		}
		f.storeAt(addr, int32(field.Offset), single(vs))
	}
	return []value{{t: t, ws: []backend.Value{addr}}}, nil
}

func (f *fngen) call(e *ast.CallExpr, t types.Type) ([]value, error) {
	switch {
	case e.SrcLine:
		return []value{{t: t, ws: []backend.Value{f.b.Iconst(backend.I64, int64(e.Pos.Line))}}}, nil

	case e.Variant >= 0:
		en := e.EnumType.(*types.Enum)
		addr := f.alloc(en.Size())
		f.b.Store(backend.I64, addr, 0, f.b.Iconst(backend.I64, int64(e.Variant)))
		if len(e.Args) == 1 {
			vs, err := f.expr(e.Args[0])
			if err != nil {
				return nil, err
			}
			f.storeAt(addr, types.PayloadOffset, single(vs))
		}
		return []value{{t: en, ws: []backend.Value{addr}}}, nil

	case e.Expand != nil:
		return f.expand(e.Expand, e.Args)

	default:
		return f.directCall(e.Target.(*sema.Func), e.Args)
	}
}

// expand emits an inlined call: bind arguments to the expansion's fresh
// locals, run the body with its own merge block (the target of any return
// inside it), then read the result locals.
func (f *fngen) expand(exp *ast.Expansion, args []ast.Expr) ([]value, error) {
	f.push()
	defer f.pop()

	for i, name := range exp.Params {
		if name == "" {
			continue // Closure argument, expanded at its own call sites.
		}
		vs, err := f.expr(args[i])
		if err != nil {
			return nil, err
		}
		v := single(vs)
		l := f.declare(name, v.t)
		f.storeLocal(l, v)
	}

	var rets []*local
	for i, name := range exp.Returns {
		t := exp.RetTypes[i]
		l := f.declare(name, t)
		if types.IsAggregate(t) {
			backing := f.alloc(t.Size())
			f.storeLocal(l, value{t: t, ws: []backend.Value{backing}})
		} else {
			f.zeroLocal(l)
		}
		rets = append(rets, l)
	}

	merge := f.b.NewBlock()
	f.inlines = append(f.inlines, inlineFrame{merge: merge})
	term, err := f.stmts(exp.Body)
	f.inlines = f.inlines[:len(f.inlines)-1]
	if err != nil {
		return nil, err
	}
	if !term {
		f.b.Jump(merge)
	}
	f.b.Switch(merge)

	var out []value
	for _, l := range rets {
		out = append(out, f.loadLocal(l))
	}
	return out, nil
}

// directCall emits a call to a compiled function or an extern symbol.
func (f *fngen) directCall(callee *sema.Func, args []ast.Expr) ([]value, error) {
	sig, sret := lowerSig(callee)

	// Hidden out-pointers for aggregate returns come first.
	var words []backend.Value
	srets := map[int]backend.Value{}
	for _, ri := range sret {
		addr := f.alloc(callee.Rets[ri].Size())
		srets[ri] = addr
		words = append(words, addr)
	}
	for _, a := range args {
		vs, err := f.expr(a)
		if err != nil {
			return nil, err
		}
		words = append(words, single(vs).ws...)
	}

	results := f.b.Call(callee.Symbol, words, len(sig.Results))

	var out []value
	for i, rt := range callee.Rets {
		if addr, ok := srets[i]; ok {
			out = append(out, value{t: rt, ws: []backend.Value{addr}})
			continue
		}
		n := len(wordTypes(rt))
		out = append(out, value{t: rt, ws: results[:n]})
		results = results[n:]
	}
	return out, nil
}

func (f *fngen) dotCall(e *ast.DotCallExpr, t types.Type) ([]value, error) {
	switch {
	case e.Expand != nil:
		return f.expand(e.Expand, append([]ast.Expr{e.Recv}, e.Args...))
	case e.Target != nil:
		return f.directCall(e.Target.(*sema.Func), append([]ast.Expr{e.Recv}, e.Args...))
	case e.Conv != ast.ConvNone:
		return f.conv(e, t)
	}
	return f.sliceOp(e, t)
}

func (f *fngen) conv(e *ast.DotCallExpr, t types.Type) ([]value, error) {
	xs, err := f.expr(e.Recv)
	if err != nil {
		return nil, err
	}
	x := single(xs)
	from, to := x.t, t
	w := x.word()

	// Widen u8 operands first so every integer source is an i64.
	if from.Kind() == types.KindU8 {
		w = f.b.Uextend(backend.I8, w)
	}

	var out backend.Value
	switch to.Kind() {
	case types.KindF32:
		switch from.Kind() {
		case types.KindF32:
			out = w
		case types.KindF64:
			out = f.b.Fdemote(w)
		default:
			out = f.b.FcvtFromSint(backend.I64, backend.F32, w)
		}
	case types.KindF64:
		switch from.Kind() {
		case types.KindF64:
			out = w
		case types.KindF32:
			out = f.b.Fpromote(w)
		default:
			out = f.b.FcvtFromSint(backend.I64, backend.F64, w)
		}
	case types.KindI64:
		switch from.Kind() {
		case types.KindF32, types.KindF64:
			out = f.b.FcvtToSint(scalarClass(from), backend.I64, w)
		default:
			out = w
		}
	default: // u8 wraps
		switch from.Kind() {
		case types.KindF32, types.KindF64:
			out = f.b.FcvtToSint(scalarClass(from), backend.I8, w)
		default:
			out = f.b.Ireduce(backend.I8, w)
		}
	}
	return []value{{t: t, ws: []backend.Value{out}}}, nil
}

// sliceHeaderAddr computes the address of a slice's {ptr, len, cap}
// header, so push/pop/append can update the length in place. An rvalue
// slice gets a temporary header; mutations to it are lost, which matches
// mutating an unnamed view.
func (f *fngen) sliceHeaderAddr(e ast.Expr) (backend.Value, error) {
	switch e := e.(type) {
	case *ast.Ident:
		if l := f.lookup(e.Name); l != nil {
			return f.b.SlotAddr(l.slot), nil
		}
	case *ast.FieldExpr:
		base, off, err := f.lvalue(e)
		if err != nil {
			return backend.NoValue, err
		}
		return f.addAddr(base, off), nil
	case *ast.IndexExpr:
		return f.elemAddr(e)
	}
	vs, err := f.expr(e)
	if err != nil {
		return backend.NoValue, err
	}
	tmp := f.alloc(24)
	f.storeAt(tmp, 0, single(vs))
	return tmp, nil
}

func (f *fngen) sliceOp(e *ast.DotCallExpr, t types.Type) ([]value, error) {
	recvT := e.Recv.Info().T

	// len and cap of a fixed array are compile-time constants.
	if arr, ok := recvT.(*types.FixedArray); ok {
		// Still evaluate the receiver for effect.
		if _, err := f.expr(e.Recv); err != nil {
			return nil, err
		}
		return []value{{t: t, ws: []backend.Value{f.b.Iconst(backend.I64, arr.Len)}}}, nil
	}

	sl := recvT.(*types.Slice)
	stride := int64(sl.Elem.Size())

	switch e.SliceOp {
	case ast.SliceOpLen, ast.SliceOpCap, ast.SliceOpUnsized:
		vs, err := f.expr(e.Recv)
		if err != nil {
			return nil, err
		}
		v := single(vs)
		switch e.SliceOp {
		case ast.SliceOpLen:
			return []value{{t: t, ws: []backend.Value{v.ws[1]}}}, nil
		case ast.SliceOpCap:
			return []value{{t: t, ws: []backend.Value{v.ws[2]}}}, nil
		default:
			return []value{{t: t, ws: []backend.Value{v.ws[0]}}}, nil
		}
	}

	hdr, err := f.sliceHeaderAddr(e.Recv)
	if err != nil {
		return nil, err
	}
	length := f.b.Load(backend.I64, hdr, 8)
	capacity := f.b.Load(backend.I64, hdr, 16)

	guard := func(ok backend.Value, code rt.TrapCode) {
		okB := f.b.NewBlock()
		trapB := f.b.NewBlock()
		f.b.Brif(ok, okB, trapB)
		f.b.Switch(trapB)
		f.b.Trap(code)
		f.b.Switch(okB)
	}

	switch e.SliceOp {
	case ast.SliceOpPush:
		vs, err := f.expr(e.Args[0])
		if err != nil {
			return nil, err
		}
		guard(f.b.Icmp(backend.I64, backend.Lt, true, length, capacity), rt.TrapSliceOverflow)
		ptr := f.b.Load(backend.Ptr, hdr, 0)
		off := f.b.Imul(backend.I64, length, f.b.Iconst(backend.I64, stride))
		f.storeAt(f.b.Iadd(backend.I64, ptr, off), 0, single(vs))
		one := f.b.Iconst(backend.I64, 1)
		f.b.Store(backend.I64, hdr, 8, f.b.Iadd(backend.I64, length, one))
		return nil, nil

	case ast.SliceOpPop:
		zero := f.b.Iconst(backend.I64, 0)
		guard(f.b.Icmp(backend.I64, backend.Gt, true, length, zero), rt.TrapSliceUnderflow)
		last := f.b.Isub(backend.I64, length, f.b.Iconst(backend.I64, 1))
		ptr := f.b.Load(backend.Ptr, hdr, 0)
		off := f.b.Imul(backend.I64, last, f.b.Iconst(backend.I64, stride))
		v := f.loadAt(t, f.b.Iadd(backend.I64, ptr, off), 0)
		f.b.Store(backend.I64, hdr, 8, last)
		return []value{v}, nil

	case ast.SliceOpAppend:
		vs, err := f.expr(e.Args[0])
		if err != nil {
			return nil, err
		}
		other := single(vs)
		var src, n backend.Value
		if arr, ok := other.t.(*types.FixedArray); ok {
			src = other.word()
			n = f.b.Iconst(backend.I64, arr.Len)
		} else {
			src, n = other.ws[0], other.ws[1]
		}
		newLen := f.b.Iadd(backend.I64, length, n)
		guard(f.b.Icmp(backend.I64, backend.Le, true, newLen, capacity), rt.TrapSliceOverflow)
		ptr := f.b.Load(backend.Ptr, hdr, 0)
		off := f.b.Imul(backend.I64, length, f.b.Iconst(backend.I64, stride))
		dst := f.b.Iadd(backend.I64, ptr, off)
		f.b.MemCopy(dst, src, f.b.Imul(backend.I64, n, f.b.Iconst(backend.I64, stride)))
		f.b.Store(backend.I64, hdr, 8, newLen)
		return nil, nil
	}
	return nil, fmt.Errorf("sarus: cannot lower method %q", e.Name)
}
