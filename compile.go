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

package sarus

import (
	"errors"

	"github.com/google/uuid"

	"buf.build/go/sarus/internal/ast"
	"buf.build/go/sarus/internal/backend"
	"buf.build/go/sarus/internal/backend/interp"
	"buf.build/go/sarus/internal/codegen"
	"buf.build/go/sarus/internal/debug"
	"buf.build/go/sarus/internal/sema"
)

// Compile compiles source text into a callable [Module].
//
// The pipeline runs to completion single-threaded: parse, analyze, lay
// out, emit, link. Any failure aborts the whole module and is returned
// as an [*Error]; there is no partial success.
func Compile(src string, options ...CompileOption) (*Module, error) {
	p, err := Parse(src, options...)
	if err != nil {
		return nil, err
	}
	return CompileProgram(p)
}

// Linker registers host symbols while a module is being set up.
type Linker struct {
	be backend.Backend
}

// Symbol injects a host symbol. An `extern fn` with the same name
// resolves to it.
func (l *Linker) Symbol(name string, fn any) {
	l.be.DefineSymbol(name, fn)
}

// CompileProgram compiles an already-parsed program. Options here are
// merged over the ones given to [Parse].
func CompileProgram(p *Program, options ...CompileOption) (*Module, error) {
	cfg := p.cfg
	for _, opt := range options {
		if opt.apply != nil {
			opt.apply(&cfg)
		}
	}

	var semaOpts sema.Options
	var extraDecls []ast.Decl
	symbols := map[string]any{}
	if cfg.stdlib {
		std := newStdlib(cfg.writer)
		semaOpts.Consts = std.consts
		extraDecls = std.decls
		for name, fn := range std.symbols {
			symbols[name] = fn
		}
	}

	res, err := sema.Analyze(p.prog, extraDecls, semaOpts)
	if err != nil {
		return nil, wrap(err, p.prog.Files)
	}

	be := interp.New()
	if err := codegen.Generate(res, be, codegen.Options{
		DeepStack: cfg.deepStack,
		Threshold: cfg.threshold,
	}); err != nil {
		return nil, &Error{Kind: ErrCodegen, Msg: err.Error()}
	}

	for name, fn := range symbols {
		be.DefineSymbol(name, fn)
	}
	for name, fn := range cfg.symbols {
		be.DefineSymbol(name, fn)
	}
	if cfg.importer != nil {
		cfg.importer(p, &Linker{be: be})
	}

	if err := be.Finalize(); err != nil {
		var le *interp.LinkError
		if errors.As(err, &le) {
			return nil, &Error{Kind: ErrLinkage, Msg: err.Error()}
		}
		return nil, &Error{Kind: ErrCodegen, Msg: err.Error()}
	}

	m := &Module{
		id:   uuid.New(),
		prog: p,
		res:  res,
		be:   be,
	}
	debug.Log([]any{"module %s", m.id}, "compile", "ready")
	return m, nil
}
