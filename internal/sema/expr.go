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

package sema

import (
	"buf.build/go/sarus/internal/ast"
	"buf.build/go/sarus/internal/types"
)

// check types an expression. want is a hint, not a demand: literals and
// registered constants adopt a compatible wanted scalar type, everything
// else types on its own and the caller enforces agreement. The resolved
// type is recorded on the node and returned.
//
// No implicit conversions exist anywhere in the language: a hint never
// changes the type of a non-literal expression.
func (c *checker) check(e ast.Expr, want types.Type) (types.Type, error) {
	t, err := c.checkRaw(e, want)
	if err != nil {
		return nil, err
	}
	e.Info().T = t
	return t, nil
}

func (c *checker) checkRaw(e ast.Expr, want types.Type) (types.Type, error) {
	switch e := e.(type) {
	case *ast.BasicLit:
		return c.lit(e, want), nil

	case *ast.Ident:
		if t, ok := c.lookup(e.Name); ok {
			return t, nil
		}
		if c.lookupClosure(e.Name) != nil {
			return nil, errf(ErrType, e.Pos,
				"closure %q can only be called or passed to an always_inline function", e.Name)
		}
		if _, ok := c.table.Consts[e.Name]; ok {
			if want != nil && types.IsFloat(want) {
				return want, nil
			}
			return c.defaultFloat, nil
		}
		return nil, errf(ErrResolution, e.Pos, "unknown identifier %q", e.Name)

	case *ast.UnaryExpr:
		return c.unary(e, want)

	case *ast.BinaryExpr:
		return c.binary(e, want)

	case *ast.CallExpr:
		return c.call(e)

	case *ast.DotCallExpr:
		return c.dotCall(e)

	case *ast.FieldExpr:
		return c.field(e)

	case *ast.PathExpr:
		return c.path(e)

	case *ast.IndexExpr:
		return c.index(e)

	case *ast.SliceExpr:
		return c.sliceExpr(e)

	case *ast.IfExpr:
		return c.ifExpr(e, want)

	case *ast.ArrayLit:
		return c.arrayLit(e, want)

	case *ast.StructLit:
		return c.structLit(e)

	case *ast.ClosureLit:
		return nil, errf(ErrType, e.Pos,
			"a closure literal can only be passed to an always_inline function")
	}
	return nil, errf(ErrResolution, ast.Pos{}, "unknown expression")
}

func (c *checker) lit(e *ast.BasicLit, want types.Type) types.Type {
	switch e.Kind {
	case ast.LitInt:
		if e.IsU8 {
			return types.U8
		}
		if want != nil && (want.Kind() == types.KindI64 || want.Kind() == types.KindU8) {
			return want
		}
		return types.I64
	case ast.LitFloat:
		if want != nil && types.IsFloat(want) {
			return want
		}
		return c.defaultFloat
	case ast.LitStr:
		return &types.Slice{Elem: types.U8}
	default:
		return types.Bool
	}
}

// adaptable reports whether e is an untyped literal (or a negation of
// one, or a registered constant) that could adopt type t.
func (c *checker) adaptable(e ast.Expr, t types.Type) bool {
	switch e := e.(type) {
	case *ast.BasicLit:
		switch e.Kind {
		case ast.LitInt:
			return !e.IsU8 && (t.Kind() == types.KindI64 || t.Kind() == types.KindU8)
		case ast.LitFloat:
			return types.IsFloat(t)
		}
	case *ast.UnaryExpr:
		return e.Op == ast.OpNeg && c.adaptable(e.X, t)
	case *ast.Ident:
		if _, ok := c.lookup(e.Name); ok {
			return false
		}
		_, isConst := c.table.Consts[e.Name]
		return isConst && types.IsFloat(t)
	}
	return false
}

func (c *checker) unary(e *ast.UnaryExpr, want types.Type) (types.Type, error) {
	switch e.Op {
	case ast.OpNeg:
		if want != nil && !types.IsNumeric(want) {
			want = nil
		}
		t, err := c.check(e.X, want)
		if err != nil {
			return nil, err
		}
		if !types.IsNumeric(t) {
			return nil, errf(ErrType, e.Pos, "cannot negate %s", t)
		}
		return t, nil
	default: // OpNot
		t, err := c.check(e.X, types.Bool)
		if err != nil {
			return nil, err
		}
		if t.Kind() != types.KindBool {
			return nil, errf(ErrType, e.Pos, "! needs a bool, found %s", t)
		}
		return types.Bool, nil
	}
}

func (c *checker) binary(e *ast.BinaryExpr, want types.Type) (types.Type, error) {
	switch e.Op {
	case ast.OpAnd, ast.OpOr:
		for _, side := range []ast.Expr{e.X, e.Y} {
			t, err := c.check(side, types.Bool)
			if err != nil {
				return nil, err
			}
			if t.Kind() != types.KindBool {
				return nil, errf(ErrType, e.Pos, "%s needs bool operands, found %s", e.Op, t)
			}
		}
		return types.Bool, nil
	}

	hint := want
	if e.Op.IsComparison() || (hint != nil && !types.IsNumeric(hint)) {
		hint = nil
	}
	tx, err := c.check(e.X, hint)
	if err != nil {
		return nil, err
	}
	ty, err := c.check(e.Y, tx)
	if err != nil {
		return nil, err
	}
	if !types.Equal(tx, ty) && c.adaptable(e.X, ty) {
		// 1 + x with x: u8 retypes the literal side.
		tx, err = c.check(e.X, ty)
		if err != nil {
			return nil, err
		}
	}
	if !types.Equal(tx, ty) {
		return nil, errf(ErrType, e.Pos, "mismatched operand types %s and %s", tx, ty)
	}

	if e.Op.IsComparison() {
		switch {
		case types.IsNumeric(tx), tx.Kind() == types.KindBool:
			return types.Bool, nil
		}
		return nil, errf(ErrType, e.Pos, "cannot compare values of type %s", tx)
	}
	if !types.IsNumeric(tx) {
		return nil, errf(ErrType, e.Pos, "operator %s needs numeric operands, found %s", e.Op, tx)
	}
	return tx, nil
}

func (c *checker) retType(rets []types.Type) types.Type {
	switch len(rets) {
	case 0:
		return types.Unit
	case 1:
		return rets[0]
	}
	return &types.Tuple{Elems: rets}
}

func (c *checker) call(e *ast.CallExpr) (types.Type, error) {
	// Copies made for expansion can carry annotations from an earlier
	// analysis of the original; resolution always starts clean.
	e.Target, e.Expand, e.SrcLine = nil, nil, false
	e.Variant = -1

	if e.Path != "" {
		return c.enumCtor(e)
	}

	if e.Name == "src_line" {
		if len(e.Args) != 0 {
			return nil, errf(ErrType, e.Pos, "src_line() takes no arguments")
		}
		e.SrcLine = true
		return types.I64, nil
	}

	if cl := c.lookupClosure(e.Name); cl != nil {
		exp, rets, err := c.expandCall(cl, true, e.Args, e.Pos)
		if err != nil {
			return nil, err
		}
		if exp == nil {
			return nil, errf(ErrResolution, e.Pos, "closure %q cannot recurse", e.Name)
		}
		e.Expand = exp
		return c.retType(rets), nil
	}

	fn, err := c.resolveCall("", e.Name, e.Args, e.Pos)
	if err != nil {
		return nil, err
	}
	return c.finishCall(fn, e.Args, e.Pos, &e.Target, &e.Expand)
}

// finishCall routes a resolved callee: inline and always_inline bodies
// expand at the call site, everything else becomes a direct (or extern)
// call.
func (c *checker) finishCall(fn *Func, args []ast.Expr, pos ast.Pos, target *any, expand **ast.Expansion) (types.Type, error) {
	if !fn.Extern && fn.Decl.Inline != ast.InlineNone {
		exp, rets, err := c.expandCall(fn.Decl, false, args, pos)
		if err != nil {
			return nil, err
		}
		if exp != nil {
			*expand = exp
			return c.retType(rets), nil
		}
		// Recursive inline call: fall back to a real call to the
		// standalone copy.
		fn.Compile = true
	}
	*target = fn
	return c.retType(fn.Rets), nil
}

func (c *checker) enumCtor(e *ast.CallExpr) (types.Type, error) {
	en, ok := c.table.Enums[e.Path]
	if !ok {
		return nil, errf(ErrResolution, e.Pos, "unknown enum %q", e.Path)
	}
	v := en.Variant(e.Name)
	if v == nil {
		return nil, errf(ErrResolution, e.Pos, "enum %s has no variant %q", e.Path, e.Name)
	}
	e.Variant = int(v.Tag)
	e.EnumType = en
	if v.Payload == nil {
		if len(e.Args) != 0 {
			return nil, errf(ErrType, e.Pos, "variant %s::%s takes no payload", e.Path, e.Name)
		}
		return en, nil
	}
	if len(e.Args) != 1 {
		return nil, errf(ErrType, e.Pos, "variant %s::%s takes one payload argument", e.Path, e.Name)
	}
	t, err := c.check(e.Args[0], v.Payload)
	if err != nil {
		return nil, err
	}
	if !types.Equal(t, v.Payload) {
		return nil, errf(ErrType, e.Pos, "variant %s::%s payload is %s, found %s",
			e.Path, e.Name, v.Payload, t)
	}
	return en, nil
}

// resolveCall picks the first overload of (recv, name) whose parameter
// types match the arguments. Untyped literal arguments adapt to the
// parameter type of the selected overload.
func (c *checker) resolveCall(recv, name string, args []ast.Expr, pos ast.Pos) (*Func, error) {
	cands := c.table.Lookup(recv, name)
	if len(cands) == 0 {
		if recv != "" {
			return nil, errf(ErrResolution, pos, "type %s has no method %q", recv, name)
		}
		return nil, errf(ErrResolution, pos, "unknown function %q", name)
	}

	// Type the arguments once. Closure arguments are not expressions; they
	// only ever match closure-typed parameters.
	argT := make([]types.Type, len(args))
	for i, a := range args {
		if c.closureArg(a) != nil {
			continue
		}
		t, err := c.check(a, nil)
		if err != nil {
			return nil, err
		}
		argT[i] = t
	}

	for _, fn := range cands {
		if len(fn.Params) != len(args) {
			continue
		}
		ok := true
		for i, p := range fn.Params {
			switch {
			case argT[i] == nil: // closure argument
				if p.Kind() != types.KindClosure {
					ok = false
				}
			case types.Equal(argT[i], p):
			case c.adaptable(args[i], p):
			default:
				ok = false
			}
			if !ok {
				break
			}
		}
		if !ok {
			continue
		}
		// Settle adaptable literals on the selected parameter types.
		for i, p := range fn.Params {
			if argT[i] != nil && !types.Equal(argT[i], p) {
				if _, err := c.check(args[i], p); err != nil {
					return nil, err
				}
			}
		}
		return fn, nil
	}

	return nil, errf(ErrType, pos, "no overload of %q matches these argument types", name)
}

// closureArg returns the closure declaration an argument denotes, if any.
func (c *checker) closureArg(a ast.Expr) *ast.FuncDecl {
	switch a := a.(type) {
	case *ast.ClosureLit:
		return a.Fn
	case *ast.Ident:
		return c.lookupClosure(a.Name)
	}
	return nil
}

var convNames = map[string]struct {
	kind ast.ConvKind
	t    types.Type
}{
	"f32": {ast.ConvF32, types.F32},
	"f64": {ast.ConvF64, types.F64},
	"i64": {ast.ConvI64, types.I64},
	"u8":  {ast.ConvU8, types.U8},
}

func (c *checker) dotCall(e *ast.DotCallExpr) (types.Type, error) {
	e.Target, e.Expand, e.Conv, e.SliceOp = nil, nil, ast.ConvNone, ast.SliceOpNone
	rt, err := c.check(e.Recv, nil)
	if err != nil {
		return nil, err
	}

	// A declared field shadows everything, and fields are not callable.
	if st, ok := rt.(*types.Struct); ok && st.Field(e.Name) != nil {
		return nil, errf(ErrType, e.Pos, "%s.%s is a field, not a method", st.Name, e.Name)
	}

	// Methods, selected by receiver type.
	if cands := c.table.Lookup(rt.String(), e.Name); len(cands) > 0 {
		all := append([]ast.Expr{e.Recv}, e.Args...)
		fn, err := c.resolveCall(rt.String(), e.Name, all, e.Pos)
		if err != nil {
			return nil, err
		}
		return c.finishCall(fn, all, e.Pos, &e.Target, &e.Expand)
	}

	// Intrinsic conversions.
	if conv, ok := convNames[e.Name]; ok && types.IsNumeric(rt) {
		if len(e.Args) != 0 {
			return nil, errf(ErrType, e.Pos, ".%s() takes no arguments", e.Name)
		}
		e.Conv = conv.kind
		return conv.t, nil
	}

	// Intrinsic slice operations.
	if t, err := c.sliceOp(e, rt); t != nil || err != nil {
		return t, err
	}

	return nil, errf(ErrResolution, e.Pos, "type %s has no method %q", rt, e.Name)
}

func (c *checker) sliceOp(e *ast.DotCallExpr, rt types.Type) (types.Type, error) {
	var elem types.Type
	fixed := false
	switch t := rt.(type) {
	case *types.Slice:
		elem = t.Elem
	case *types.FixedArray:
		elem, fixed = t.Elem, true
	default:
		return nil, nil
	}

	wantArgs := func(n int) error {
		if len(e.Args) != n {
			return errf(ErrType, e.Pos, ".%s() takes %d argument(s)", e.Name, n)
		}
		return nil
	}

	switch e.Name {
	case "len":
		e.SliceOp = ast.SliceOpLen
		return types.I64, wantArgs(0)
	case "cap":
		e.SliceOp = ast.SliceOpCap
		return types.I64, wantArgs(0)
	}
	if fixed {
		return nil, nil // push/pop/append/unsized need a real slice
	}

	switch e.Name {
	case "push":
		if err := wantArgs(1); err != nil {
			return nil, err
		}
		t, err := c.check(e.Args[0], elem)
		if err != nil {
			return nil, err
		}
		if !types.Equal(t, elem) {
			return nil, errf(ErrType, e.Pos, "cannot push %s onto [%s]", t, elem)
		}
		e.SliceOp = ast.SliceOpPush
		return types.Unit, nil
	case "pop":
		e.SliceOp = ast.SliceOpPop
		return elem, wantArgs(0)
	case "append":
		if err := wantArgs(1); err != nil {
			return nil, err
		}
		t, err := c.check(e.Args[0], &types.Slice{Elem: elem})
		if err != nil {
			return nil, err
		}
		var other types.Type
		switch t := t.(type) {
		case *types.Slice:
			other = t.Elem
		case *types.FixedArray:
			other = t.Elem
		default:
			return nil, errf(ErrType, e.Pos, "cannot append %s to [%s]", t, elem)
		}
		if !types.Equal(other, elem) {
			return nil, errf(ErrType, e.Pos, "cannot append %s to [%s]", t, elem)
		}
		e.SliceOp = ast.SliceOpAppend
		return types.Unit, nil
	case "unsized":
		e.SliceOp = ast.SliceOpUnsized
		return &types.Unsized{Elem: elem}, wantArgs(0)
	}
	return nil, nil
}

func (c *checker) field(e *ast.FieldExpr) (types.Type, error) {
	t, err := c.check(e.X, nil)
	if err != nil {
		return nil, err
	}
	switch t := t.(type) {
	case *types.Struct:
		f := t.Field(e.Name)
		if f == nil {
			return nil, errf(ErrResolution, e.Pos, "struct %s has no field %q", t.Name, e.Name)
		}
		e.Offset = f.Offset
		return f.Type, nil
	case *types.Enum:
		if e.Name == "type" {
			e.EnumTag = true
			e.Offset = 0
			return types.I64, nil
		}
		v := t.Variant(e.Name)
		if v == nil {
			return nil, errf(ErrResolution, e.Pos, "enum %s has no variant %q", t.Name, e.Name)
		}
		if v.Payload == nil {
			return nil, errf(ErrType, e.Pos, "variant %s::%s has no payload", t.Name, e.Name)
		}
		e.Offset = types.PayloadOffset
		return v.Payload, nil
	}
	return nil, errf(ErrResolution, e.Pos, "type %s has no field %q", t, e.Name)
}

func (c *checker) path(e *ast.PathExpr) (types.Type, error) {
	if en, ok := c.table.Enums[e.Type]; ok {
		if v := en.Variant(e.Name); v != nil {
			e.Const = v.Tag
			return types.I64, nil
		}
	}
	if e.Name == "size" {
		if t := c.table.NamedType(e.Type); t != nil {
			e.Const = int64(t.Size())
			return types.I64, nil
		}
		return nil, errf(ErrResolution, e.Pos, "unknown type %q", e.Type)
	}
	return nil, errf(ErrResolution, e.Pos, "unknown constant %s::%s", e.Type, e.Name)
}

func (c *checker) index(e *ast.IndexExpr) (types.Type, error) {
	t, err := c.check(e.X, nil)
	if err != nil {
		return nil, err
	}
	var elem types.Type
	switch t := t.(type) {
	case *types.FixedArray:
		elem = t.Elem
	case *types.Slice:
		elem = t.Elem
	case *types.Unsized:
		elem = t.Elem
	default:
		return nil, errf(ErrType, e.Pos, "cannot index %s", t)
	}
	it, err := c.check(e.Index, types.I64)
	if err != nil {
		return nil, err
	}
	if it.Kind() != types.KindI64 {
		return nil, errf(ErrType, e.Pos, "index must be i64, found %s", it)
	}
	return elem, nil
}

func (c *checker) sliceExpr(e *ast.SliceExpr) (types.Type, error) {
	t, err := c.check(e.X, nil)
	if err != nil {
		return nil, err
	}
	var elem types.Type
	switch t := t.(type) {
	case *types.FixedArray:
		elem = t.Elem
	case *types.Slice:
		elem = t.Elem
	case *types.Unsized:
		elem = t.Elem
		if e.Hi == nil {
			return nil, errf(ErrType, e.Pos,
				"slicing &[%s] needs an explicit upper bound; its length is unknown", elem)
		}
	default:
		return nil, errf(ErrType, e.Pos, "cannot slice %s", t)
	}
	for _, bound := range []ast.Expr{e.Lo, e.Hi} {
		if bound == nil {
			continue
		}
		bt, err := c.check(bound, types.I64)
		if err != nil {
			return nil, err
		}
		if bt.Kind() != types.KindI64 {
			return nil, errf(ErrType, e.Pos, "slice bound must be i64, found %s", bt)
		}
	}
	return &types.Slice{Elem: elem}, nil
}

func (c *checker) ifExpr(e *ast.IfExpr, want types.Type) (types.Type, error) {
	ct, err := c.check(e.Cond, types.Bool)
	if err != nil {
		return nil, err
	}
	if ct.Kind() != types.KindBool {
		return nil, errf(ErrType, e.Pos, "if condition must be bool, found %s", ct)
	}

	tThen, err := c.blockValue(e.Then, want)
	if err != nil {
		return nil, err
	}
	if e.Else == nil {
		return types.Unit, nil
	}
	tElse, err := c.blockValue(e.Else, want)
	if err != nil {
		return nil, err
	}
	switch {
	case types.Equal(tThen, tElse):
		return tThen, nil
	case tThen.Kind() == types.KindUnit || tElse.Kind() == types.KindUnit:
		// Statement position: a valueless branch discards the other
		// branch's value.
		return types.Unit, nil
	}
	return nil, errf(ErrType, e.Pos, "if branches disagree: %s vs %s", tThen, tElse)
}

// blockValue checks a block in a nested scope; the value of the block is
// the value of its final expression statement, if any.
func (c *checker) blockValue(b *ast.Block, want types.Type) (types.Type, error) {
	c.push()
	defer c.pop()
	n := len(b.Stmts)
	for i, s := range b.Stmts {
		if i == n-1 {
			if tail, ok := s.(*ast.ExprStmt); ok {
				return c.check(tail.X, want)
			}
		}
		if err := c.stmt(s); err != nil {
			return nil, err
		}
	}
	return types.Unit, nil
}

func (c *checker) arrayLit(e *ast.ArrayLit, want types.Type) (types.Type, error) {
	var elemWant types.Type
	if arr, ok := want.(*types.FixedArray); ok {
		elemWant = arr.Elem
	}

	if e.Repeat != nil {
		t, err := c.check(e.Repeat, elemWant)
		if err != nil {
			return nil, err
		}
		if t.Kind() == types.KindUnit || t.Kind() == types.KindClosure {
			return nil, errf(ErrType, e.Pos, "array of %s is not a thing", t)
		}
		return &types.FixedArray{Elem: t, Len: e.Count}, nil
	}

	first, err := c.check(e.Elems[0], elemWant)
	if err != nil {
		return nil, err
	}
	for _, el := range e.Elems[1:] {
		t, err := c.check(el, first)
		if err != nil {
			return nil, err
		}
		if !types.Equal(t, first) {
			return nil, errf(ErrType, e.Pos, "array elements disagree: %s vs %s", first, t)
		}
	}
	return &types.FixedArray{Elem: first, Len: int64(len(e.Elems))}, nil
}

func (c *checker) structLit(e *ast.StructLit) (types.Type, error) {
	st, ok := c.table.Structs[e.Name]
	if !ok {
		return nil, errf(ErrResolution, e.Pos, "unknown struct %q", e.Name)
	}
	seen := map[string]bool{}
	for _, init := range e.Inits {
		f := st.Field(init.Name)
		if f == nil {
			return nil, errf(ErrResolution, e.Pos, "struct %s has no field %q", st.Name, init.Name)
		}
		if seen[init.Name] {
			return nil, errf(ErrType, e.Pos, "field %q initialized twice", init.Name)
		}
		seen[init.Name] = true
		t, err := c.check(init.Value, f.Type)
		if err != nil {
			return nil, err
		}
		if !types.Equal(t, f.Type) {
			return nil, errf(ErrType, e.Pos, "field %s.%s is %s, found %s",
				st.Name, init.Name, f.Type, t)
		}
	}
	if len(seen) != len(st.Fields) {
		for _, f := range st.Fields {
			if !seen[f.Name] {
				return nil, errf(ErrType, e.Pos, "missing initializer for field %s.%s", st.Name, f.Name)
			}
		}
	}
	return st, nil
}
