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
	"github.com/tiendc/go-deepcopy"

	"buf.build/go/sarus/internal/ast"
	"buf.build/go/sarus/internal/debug"
	"buf.build/go/sarus/internal/types"
)

// Options configures analysis.
type Options struct {
	// DefaultFloat is the type of unannotated parameters and of float
	// literals without context. Defaults to f32.
	DefaultFloat types.Type

	// Consts are named float constants (PI, E, …) registered by the
	// importer. They type like float literals.
	Consts map[string]float64
}

// Result is an analyzed program.
type Result struct {
	Prog  *ast.Program
	Table *Table
}

// Analyze checks prog plus any importer-provided declarations (the
// standard library's externs) and returns the analyzed program.
func Analyze(prog *ast.Program, extra []ast.Decl, opts Options) (*Result, error) {
	if opts.DefaultFloat == nil {
		opts.DefaultFloat = types.F32
	}
	c := &checker{
		table: &Table{
			Structs: map[string]*types.Struct{},
			Enums:   map[string]*types.Enum{},
			funcs:   map[funcKey][]*Func{},
			Consts:  opts.Consts,
		},
		defaultFloat: opts.DefaultFloat,
	}
	if c.table.Consts == nil {
		c.table.Consts = map[string]float64{}
	}

	decls := make([]ast.Decl, 0, len(prog.Decls)+len(extra))
	decls = append(decls, extra...)
	decls = append(decls, prog.Decls...)
	if err := c.build(decls); err != nil {
		return nil, err
	}

	// Closure-typed parameters need the body specialized per call site.
	for _, fn := range c.table.Order {
		for _, p := range fn.Params {
			if p.Kind() == types.KindClosure && fn.Decl.Inline != ast.InlineAlways {
				return nil, errf(ErrType, fn.Decl.Pos,
					"function %q takes a closure parameter and must be always_inline", fn.Decl.Name)
			}
		}
	}

	// Analyze standalone bodies. Expansion can mark inline functions as
	// needing a compiled copy (recursion), so iterate to a fixed point.
	for {
		progress := false
		for _, fn := range c.table.Order {
			if fn.Extern || !fn.Compile || fn.analyzed {
				continue
			}
			progress = true
			if err := c.analyzeFunc(fn); err != nil {
				return nil, err
			}
		}
		if !progress {
			break
		}
	}

	return &Result{Prog: prog, Table: c.table}, nil
}

// checker holds analysis state. It is reentrant across inline expansions:
// expanding a call analyzes the copied body against the current scope
// chain.
type checker struct {
	table        *Table
	defaultFloat types.Type

	fn     *Func
	scopes []*scope

	// expanding is the stack of functions currently being expanded (or
	// analyzed standalone); a call to one of these is recursion and falls
	// back to a real call.
	expanding []*ast.FuncDecl

	loops int // While-nesting depth, for break/continue.
	fresh int // Fresh-name counter for α-renaming.
}

func (c *checker) analyzeFunc(fn *Func) error {
	debug.Log([]any{"fn %s", fn.Symbol}, "analyze", "standalone body")
	fn.analyzed = true

	// Analysis annotates in place, so it runs over a copy and the
	// declared body stays pristine for inline expansion.
	body := new(ast.Block)
	if err := deepcopy.Copy(body, fn.Decl.Body); err != nil {
		return errf(ErrType, fn.Decl.Pos, "cannot analyze %q: %v", fn.Decl.Name, err)
	}
	fn.Body = body

	saved := c.scopes
	c.scopes = nil
	c.fn = fn
	c.push()
	defer func() {
		c.pop()
		c.scopes = saved
		c.fn = nil
	}()

	for i, p := range fn.Decl.Params {
		c.bind(p.Name, fn.Params[i])
	}
	for i, r := range fn.Decl.Returns {
		c.bind(r.Name, fn.Rets[i])
	}

	c.expanding = append(c.expanding, fn.Decl)
	err := c.stmts(body)
	c.expanding = c.expanding[:len(c.expanding)-1]
	return err
}

// scope is one level of the lexical scope chain.
type scope struct {
	vars     map[string]types.Type
	closures map[string]*ast.FuncDecl
}

func (c *checker) push() {
	c.scopes = append(c.scopes, &scope{vars: map[string]types.Type{}})
}

func (c *checker) pop() {
	c.scopes = c.scopes[:len(c.scopes)-1]
}

func (c *checker) bind(name string, t types.Type) {
	c.scopes[len(c.scopes)-1].vars[name] = t
}

func (c *checker) lookup(name string) (types.Type, bool) {
	for i := len(c.scopes) - 1; i >= 0; i-- {
		if t, ok := c.scopes[i].vars[name]; ok {
			return t, true
		}
	}
	return nil, false
}

func (c *checker) bindClosure(name string, fn *ast.FuncDecl) {
	s := c.scopes[len(c.scopes)-1]
	if s.closures == nil {
		s.closures = map[string]*ast.FuncDecl{}
	}
	s.closures[name] = fn
}

func (c *checker) lookupClosure(name string) *ast.FuncDecl {
	for i := len(c.scopes) - 1; i >= 0; i-- {
		if fn, ok := c.scopes[i].closures[name]; ok {
			return fn
		}
	}
	return nil
}
