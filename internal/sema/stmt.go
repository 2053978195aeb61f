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

// stmts checks a statement list in the current scope (the caller pushes
// and pops).
func (c *checker) stmts(b *ast.Block) error {
	for _, s := range b.Stmts {
		if err := c.stmt(s); err != nil {
			return err
		}
	}
	return nil
}

// blockScope checks a block in a fresh nested scope.
func (c *checker) blockScope(b *ast.Block) error {
	c.push()
	defer c.pop()
	return c.stmts(b)
}

func (c *checker) stmt(s ast.Stmt) error {
	switch s := s.(type) {
	case *ast.AssignStmt:
		return c.assign(s)

	case *ast.ExprStmt:
		_, err := c.check(s.X, nil)
		return err

	case *ast.WhileStmt:
		cond, err := c.check(s.Cond, types.Bool)
		if err != nil {
			return err
		}
		if cond.Kind() != types.KindBool {
			return errf(ErrType, s.Pos, "while condition must be bool, found %s", cond)
		}
		c.loops++
		defer func() { c.loops-- }()
		if err := c.blockScope(s.Body); err != nil {
			return err
		}
		if s.Step != nil {
			if err := c.blockScope(s.Step); err != nil {
				return err
			}
		}
		return nil

	case *ast.ReturnStmt:
		return nil

	case *ast.BreakStmt:
		if c.loops == 0 {
			return errf(ErrResolution, s.Pos, "break outside of a while loop")
		}
		return nil

	case *ast.ContinueStmt:
		if c.loops == 0 {
			return errf(ErrResolution, s.Pos, "continue outside of a while loop")
		}
		return nil

	case *ast.ClosureStmt:
		c.bindClosure(s.Name, s.Fn)
		return nil
	}
	return errf(ErrResolution, ast.Pos{}, "unknown statement")
}

func (c *checker) assign(s *ast.AssignStmt) error {
	if s.Op != ast.AssignEq {
		return c.augmented(s)
	}

	// A single multi-valued RHS (call or if) distributes across the
	// targets; otherwise values pair with targets one to one.
	if len(s.Values) == 1 && len(s.Targets) > 1 {
		vt, err := c.check(s.Values[0], nil)
		if err != nil {
			return err
		}
		tup, ok := vt.(*types.Tuple)
		if !ok || len(tup.Elems) != len(s.Targets) {
			return errf(ErrType, s.Pos, "cannot assign %s to %d targets", vt, len(s.Targets))
		}
		for i, target := range s.Targets {
			if err := c.assignOne(target, tup.Elems[i], nil, s.Pos); err != nil {
				return err
			}
		}
		return nil
	}

	if len(s.Values) != len(s.Targets) {
		return errf(ErrType, s.Pos, "assignment arity mismatch: %d targets, %d values",
			len(s.Targets), len(s.Values))
	}
	for i, target := range s.Targets {
		if err := c.assignOne(target, nil, s.Values[i], s.Pos); err != nil {
			return err
		}
	}
	return nil
}

// assignOne checks a single target. Exactly one of vt (a pre-checked
// value type) and value is set.
func (c *checker) assignOne(target ast.Expr, vt types.Type, value ast.Expr, pos ast.Pos) error {
	if id, ok := target.(*ast.Ident); ok {
		existing, bound := c.lookup(id.Name)
		want := existing // nil if fresh
		if value != nil {
			t, err := c.check(value, want)
			if err != nil {
				return err
			}
			vt = t
		}
		if _, isTuple := vt.(*types.Tuple); isTuple {
			return errf(ErrType, pos, "multi-value expression in single assignment")
		}
		if vt.Kind() == types.KindUnit {
			return errf(ErrType, pos, "cannot assign an expression with no value")
		}
		if vt.Kind() == types.KindClosure {
			return errf(ErrType, pos, "closures cannot be stored in variables")
		}
		if bound {
			if !types.Equal(existing, vt) {
				return errf(ErrType, pos,
					"cannot assign %s to %q, which already has type %s", vt, id.Name, existing)
			}
		} else {
			c.bind(id.Name, vt)
		}
		id.T = vt
		return nil
	}

	// Field or index lvalue: the target must type-check and the value
	// must match it exactly.
	tt, err := c.check(target, nil)
	if err != nil {
		return err
	}
	if !c.isLvalue(target) {
		return errf(ErrType, pos, "cannot assign to this expression")
	}
	if value != nil {
		t, err := c.check(value, tt)
		if err != nil {
			return err
		}
		vt = t
	}
	if !types.Equal(tt, vt) {
		return errf(ErrType, pos, "cannot assign %s to target of type %s", vt, tt)
	}
	return nil
}

func (c *checker) augmented(s *ast.AssignStmt) error {
	target, value := s.Targets[0], s.Values[0]
	tt, err := c.check(target, nil)
	if err != nil {
		return err
	}
	if !c.isLvalue(target) {
		return errf(ErrType, s.Pos, "cannot assign to this expression")
	}
	if !types.IsNumeric(tt) {
		return errf(ErrType, s.Pos, "augmented assignment needs a numeric target, found %s", tt)
	}
	vt, err := c.check(value, tt)
	if err != nil {
		return err
	}
	if !types.Equal(tt, vt) {
		return errf(ErrType, s.Pos, "mismatched types %s and %s", tt, vt)
	}
	return nil
}

// isLvalue reports whether an already-checked expression designates
// storage.
func (c *checker) isLvalue(e ast.Expr) bool {
	switch e := e.(type) {
	case *ast.Ident:
		return true
	case *ast.FieldExpr:
		return !e.EnumTag && c.isLvalueBase(e.X)
	case *ast.IndexExpr:
		return c.isLvalueBase(e.X)
	}
	return false
}

// isLvalueBase allows writing through any expression that denotes memory:
// a variable, a field or element, a slice view, or a call result (which
// lives in a caller-owned temporary).
func (c *checker) isLvalueBase(e ast.Expr) bool {
	t := e.Info().T
	if t == nil {
		return false
	}
	switch t.Kind() {
	case types.KindStruct, types.KindFixedArray, types.KindEnum,
		types.KindSlice, types.KindUnsized:
		return true
	}
	return false
}
