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
	"buf.build/go/sarus/internal/ast"
	"buf.build/go/sarus/internal/parser"
)

// Program is a parsed compilation unit: the root source plus everything
// it transitively included, with the file-index table that positions
// refer to.
type Program struct {
	prog *ast.Program
	cfg  config
}

// Parse parses source text, resolving includes relative to the file
// named by [WithFile]. Already-loaded paths are skipped.
func Parse(src string, options ...CompileOption) (*Program, error) {
	cfg := defaultConfig()
	for _, opt := range options {
		if opt.apply != nil {
			opt.apply(&cfg)
		}
	}
	prog, err := parser.Parse(src, cfg.file, parser.Loader(cfg.loader))
	if err != nil {
		return nil, wrap(err, nil)
	}
	return &Program{prog: prog, cfg: cfg}, nil
}

// Files returns the file-index table: Files()[0] is the root source,
// included files follow in load order.
func (p *Program) Files() []string {
	return p.prog.Files
}

// Metadata is an opaque `@ head … @` block, attached to the declaration
// that follows it and surfaced for host-side parsing. The compiler never
// interprets the body.
type Metadata struct {
	Head []string
	Body string
}

// Metadata returns every metadata block of the program, in declaration
// order.
func (p *Program) Metadata() []Metadata {
	var out []Metadata
	for _, d := range p.prog.Decls {
		if md, ok := d.(*ast.MetadataDecl); ok {
			out = append(out, Metadata{Head: md.Head, Body: md.Body})
		}
	}
	return out
}
