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

import "buf.build/go/sarus/internal/ast"

// renamer applies an α-renaming substitution to a function body. Nested
// closure parameters and returns shadow the substitution within their body; everything
// else, including names inside nested closure bodies, is rewritten.
type renamer struct {
	m map[string]string
}

func (r *renamer) block(b *ast.Block) {
	for _, s := range b.Stmts {
		r.stmt(s)
	}
}

func (r *renamer) stmt(s ast.Stmt) {
	switch s := s.(type) {
	case *ast.AssignStmt:
		for _, t := range s.Targets {
			r.expr(t)
		}
		for _, v := range s.Values {
			r.expr(v)
		}
	case *ast.ExprStmt:
		r.expr(s.X)
	case *ast.WhileStmt:
		r.expr(s.Cond)
		r.block(s.Body)
		if s.Step != nil {
			r.block(s.Step)
		}
	case *ast.ClosureStmt:
		if to, ok := r.m[s.Name]; ok {
			s.Name = to
			s.Fn.Name = to
		}
		r.closure(s.Fn)
	}
}

func (r *renamer) expr(e ast.Expr) {
	switch e := e.(type) {
	case *ast.Ident:
		if to, ok := r.m[e.Name]; ok {
			e.Name = to
		}
	case *ast.UnaryExpr:
		r.expr(e.X)
	case *ast.BinaryExpr:
		r.expr(e.X)
		r.expr(e.Y)
	case *ast.CallExpr:
		// Closure bindings are called by name, so a renamed binding
		// renames its call sites; function and constructor names never
		// collide with fresh locals.
		if e.Path == "" {
			if to, ok := r.m[e.Name]; ok {
				e.Name = to
			}
		}
		for _, a := range e.Args {
			r.expr(a)
		}
	case *ast.DotCallExpr:
		r.expr(e.Recv)
		for _, a := range e.Args {
			r.expr(a)
		}
	case *ast.FieldExpr:
		r.expr(e.X)
	case *ast.IndexExpr:
		r.expr(e.X)
		r.expr(e.Index)
	case *ast.SliceExpr:
		r.expr(e.X)
		if e.Lo != nil {
			r.expr(e.Lo)
		}
		if e.Hi != nil {
			r.expr(e.Hi)
		}
	case *ast.IfExpr:
		r.expr(e.Cond)
		r.block(e.Then)
		if e.Else != nil {
			r.block(e.Else)
		}
	case *ast.ArrayLit:
		if e.Repeat != nil {
			r.expr(e.Repeat)
		}
		for _, el := range e.Elems {
			r.expr(el)
		}
	case *ast.StructLit:
		for _, init := range e.Inits {
			r.expr(init.Value)
		}
	case *ast.ClosureLit:
		r.closure(e.Fn)
	}
}

// closure descends into a nested closure body, shadowing substitutions
// its parameters and returns re-bind.
func (r *renamer) closure(fn *ast.FuncDecl) {
	var shadowed []struct {
		name, to string
	}
	shadow := func(name string) {
		if to, ok := r.m[name]; ok {
			shadowed = append(shadowed, struct{ name, to string }{name, to})
			delete(r.m, name)
		}
	}
	for _, p := range fn.Params {
		shadow(p.Name)
	}
	for _, ret := range fn.Returns {
		shadow(ret.Name)
	}
	r.block(fn.Body)
	for _, s := range shadowed {
		r.m[s.name] = s.to
	}
}

// assignedNamesWalk adds to out every name an assignment or closure declaration
// anywhere in the block could introduce, descending into if-expression
// branches and loop bodies but not into nested closure bodies (their
// assignments belong to the call-site scope of their own expansion).
func assignedNamesWalk(b *ast.Block, out map[string]bool) {
	var stmt func(ast.Stmt)
	var expr func(ast.Expr)

	stmt = func(s ast.Stmt) {
		switch s := s.(type) {
		case *ast.AssignStmt:
			for _, t := range s.Targets {
				if id, ok := t.(*ast.Ident); ok {
					out[id.Name] = true
				} else {
					expr(t)
				}
			}
			for _, v := range s.Values {
				expr(v)
			}
		case *ast.ExprStmt:
			expr(s.X)
		case *ast.WhileStmt:
			expr(s.Cond)
			for _, inner := range s.Body.Stmts {
				stmt(inner)
			}
			if s.Step != nil {
				for _, inner := range s.Step.Stmts {
					stmt(inner)
				}
			}
		case *ast.ClosureStmt:
			out[s.Name] = true
		}
	}

	expr = func(e ast.Expr) {
		switch e := e.(type) {
		case *ast.UnaryExpr:
			expr(e.X)
		case *ast.BinaryExpr:
			expr(e.X)
			expr(e.Y)
		case *ast.CallExpr:
			for _, a := range e.Args {
				expr(a)
			}
		case *ast.DotCallExpr:
			expr(e.Recv)
			for _, a := range e.Args {
				expr(a)
			}
		case *ast.FieldExpr:
			expr(e.X)
		case *ast.IndexExpr:
			expr(e.X)
			expr(e.Index)
		case *ast.SliceExpr:
			expr(e.X)
		case *ast.IfExpr:
			expr(e.Cond)
			for _, s := range e.Then.Stmts {
				stmt(s)
			}
			if e.Else != nil {
				for _, s := range e.Else.Stmts {
					stmt(s)
				}
			}
		case *ast.ArrayLit:
			if e.Repeat != nil {
				expr(e.Repeat)
			}
			for _, el := range e.Elems {
				expr(el)
			}
		case *ast.StructLit:
			for _, init := range e.Inits {
				expr(init.Value)
			}
		}
	}

	for _, s := range b.Stmts {
		stmt(s)
	}
}
