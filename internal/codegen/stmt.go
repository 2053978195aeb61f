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
	"buf.build/go/sarus/internal/types"
)

// block emits a function or expansion body in the current scope.
func (f *fngen) block(b *ast.Block) error {
	_, err := f.stmts(b)
	return err
}

// stmts emits a statement list. It reports whether control definitely
// left the block (return, break or continue).
func (f *fngen) stmts(b *ast.Block) (bool, error) {
	for _, s := range b.Stmts {
		term, err := f.stmt(s)
		if err != nil {
			return false, err
		}
		if term {
			return true, nil
		}
	}
	return false, nil
}

// scopeStmts is stmts in a fresh nested scope.
func (f *fngen) scopeStmts(b *ast.Block) (bool, error) {
	f.push()
	defer f.pop()
	return f.stmts(b)
}

func (f *fngen) stmt(s ast.Stmt) (bool, error) {
	switch s := s.(type) {
	case *ast.AssignStmt:
		return false, f.assign(s)

	case *ast.ExprStmt:
		_, err := f.expr(s.X)
		return false, err

	case *ast.WhileStmt:
		return false, f.while(s)

	case *ast.ReturnStmt:
		if n := len(f.inlines); n > 0 {
			f.b.Jump(f.inlines[n-1].merge)
		} else {
			f.b.Jump(f.merge)
		}
		return true, nil

	case *ast.BreakStmt:
		f.b.Jump(f.loops[len(f.loops)-1].exit)
		return true, nil

	case *ast.ContinueStmt:
		f.b.Jump(f.loops[len(f.loops)-1].cont)
		return true, nil

	case *ast.ClosureStmt:
		// Closures are expanded at their call sites; the declaration
		// itself emits nothing.
		return false, nil
	}
	return false, fmt.Errorf("sarus: cannot lower statement %T", s)
}

func (f *fngen) while(s *ast.WhileStmt) error {
	header := f.b.NewBlock()
	body := f.b.NewBlock()
	exit := f.b.NewBlock()

	// With an iter block the step runs after the body, including on
	// continue; break skips it. Without one, continue re-checks the
	// condition directly.
	cont := header
	if s.Step != nil {
		cont = f.b.NewBlock()
	}

	f.b.Jump(header)
	f.b.Switch(header)
	cond, err := f.expr(s.Cond)
	if err != nil {
		return err
	}
	f.b.Brif(single(cond).word(), body, exit)

	f.b.Switch(body)
	f.loops = append(f.loops, loopFrame{cont: cont, exit: exit})
	term, err := f.scopeStmts(s.Body)
	f.loops = f.loops[:len(f.loops)-1]
	if err != nil {
		return err
	}
	if !term {
		f.b.Jump(cont)
	}

	if s.Step != nil {
		f.b.Switch(cont)
		// break inside the step leaves the loop; continue goes straight
		// to the condition re-check.
		f.loops = append(f.loops, loopFrame{cont: header, exit: exit})
		term, err := f.scopeStmts(s.Step)
		f.loops = f.loops[:len(f.loops)-1]
		if err != nil {
			return err
		}
		if !term {
			f.b.Jump(header)
		}
	}

	f.b.Switch(exit)
	return nil
}

func (f *fngen) assign(s *ast.AssignStmt) error {
	if s.Op != ast.AssignEq {
		return f.augmented(s)
	}

	// Evaluate every value before any store, so that `c, d = d, c`
	// reads both before writing either.
	var vals []value
	if len(s.Values) == 1 && len(s.Targets) > 1 {
		vs, err := f.expr(s.Values[0])
		if err != nil {
			return err
		}
		vals = vs
	} else {
		for _, v := range s.Values {
			vs, err := f.expr(v)
			if err != nil {
				return err
			}
			vals = append(vals, single(vs))
		}
	}

	for i, target := range s.Targets {
		if err := f.assignOne(target, vals[i]); err != nil {
			return err
		}
	}
	return nil
}

func (f *fngen) assignOne(target ast.Expr, v value) error {
	if id, ok := target.(*ast.Ident); ok {
		l := f.lookup(id.Name)
		if l == nil {
			// Fresh binding. Aggregates bind by reference: the local
			// holds the address the value already lives at.
			l = f.declare(id.Name, v.t)
			f.storeLocal(l, v)
			return nil
		}
		if types.IsAggregate(l.t) {
			dst := f.loadLocal(l).word()
			f.b.MemCopy(dst, v.word(), f.b.Iconst(backend.I64, int64(l.t.Size())))
			return nil
		}
		f.storeLocal(l, v)
		return nil
	}

	base, off, err := f.lvalue(target)
	if err != nil {
		return err
	}
	f.storeAt(base, off, v)
	return nil
}

func (f *fngen) augmented(s *ast.AssignStmt) error {
	target := s.Targets[0]
	t := target.Info().T

	var load func() value
	var store func(value)
	if id, ok := target.(*ast.Ident); ok {
		l := f.lookup(id.Name)
		load = func() value { return f.loadLocal(l) }
		store = func(v value) { f.storeLocal(l, v) }
	} else {
		base, off, err := f.lvalue(target)
		if err != nil {
			return err
		}
		load = func() value { return f.loadAt(t, base, off) }
		store = func(v value) { f.storeAt(base, off, v) }
	}

	old := load()
	rhs, err := f.expr(s.Values[0])
	if err != nil {
		return err
	}

	var op ast.BinOp
	switch s.Op {
	case ast.AssignAdd:
		op = ast.OpAdd
	case ast.AssignSub:
		op = ast.OpSub
	case ast.AssignMul:
		op = ast.OpMul
	default:
		op = ast.OpDiv
	}
	store(value{t: t, ws: []backend.Value{f.arith(op, t, old.word(), single(rhs).word())}})
	return nil
}

// lvalue computes the storage address of a field or index target as a
// base value plus a static offset.
func (f *fngen) lvalue(e ast.Expr) (backend.Value, int32, error) {
	switch e := e.(type) {
	case *ast.FieldExpr:
		base, err := f.expr(e.X)
		if err != nil {
			return backend.NoValue, 0, err
		}
		return single(base).word(), int32(e.Offset), nil

	case *ast.IndexExpr:
		addr, err := f.elemAddr(e)
		return addr, 0, err

	case *ast.Ident:
		l := f.lookup(e.Name)
		return f.b.SlotAddr(l.slot), 0, nil
	}
	return backend.NoValue, 0, fmt.Errorf("sarus: cannot lower lvalue %T", e)
}

// loadAt reads a value of type t from base+off.
func (f *fngen) loadAt(t types.Type, base backend.Value, off int32) value {
	switch {
	case types.IsAggregate(t):
		return value{t: t, ws: []backend.Value{f.addAddr(base, off)}}
	case t.Kind() == types.KindSlice:
		return value{t: t, ws: []backend.Value{
			f.b.Load(backend.Ptr, base, off),
			f.b.Load(backend.I64, base, off+8),
			f.b.Load(backend.I64, base, off+16),
		}}
	default:
		return value{t: t, ws: []backend.Value{f.b.Load(scalarClass(t), base, off)}}
	}
}

// storeAt writes a value of its own type to base+off.
func (f *fngen) storeAt(base backend.Value, off int32, v value) {
	switch {
	case types.IsAggregate(v.t):
		dst := f.addAddr(base, off)
		f.b.MemCopy(dst, v.word(), f.b.Iconst(backend.I64, int64(v.t.Size())))
	case v.t.Kind() == types.KindSlice:
		f.b.Store(backend.Ptr, base, off, v.ws[0])
		f.b.Store(backend.I64, base, off+8, v.ws[1])
		f.b.Store(backend.I64, base, off+16, v.ws[2])
	default:
		f.b.Store(scalarClass(v.t), base, off, v.word())
	}
}

// addAddr materializes base+off.
func (f *fngen) addAddr(base backend.Value, off int32) backend.Value {
	if off == 0 {
		return base
	}
	return f.b.Iadd(backend.I64, base, f.b.Iconst(backend.I64, int64(off)))
}
