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

// Package parser turns source text into an [ast.Program], resolving
// includes along the way.
package parser

import (
	"fmt"
	"path/filepath"
	"strconv"

	"buf.build/go/sarus/internal/ast"
	"buf.build/go/sarus/internal/debug"
	"buf.build/go/sarus/internal/lexer"
)

// Error is a syntax error.
type Error struct {
	Path string
	Line int
	Msg  string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s:%d: %s", e.Path, e.Line, e.Msg)
}

// Loader reads the contents of an included file. Paths are canonical.
type Loader func(path string) (string, error)

// Parse parses a root source file and everything it includes.
//
// path anchors relative includes and names Files[0] of the file-index
// table; it does not need to exist on disk. load is consulted for include
// files; a nil load makes any include a parse error.
func Parse(src, path string, load Loader) (*ast.Program, error) {
	prog := &ast.Program{}
	ps := &state{
		prog:   prog,
		load:   load,
		loaded: map[string]bool{},
	}
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	ps.loaded[filepath.Clean(path)] = true
	if err := ps.file(src, path); err != nil {
		return nil, err
	}
	return prog, nil
}

// state is include-resolution state shared by every file of a program.
type state struct {
	prog   *ast.Program
	load   Loader
	loaded map[string]bool // Canonicalized paths, for include dedup.
}

func (s *state) file(src, path string) error {
	file := int32(len(s.prog.Files))
	s.prog.Files = append(s.prog.Files, path)
	debug.Log(nil, "parse", "file %d: %s", file, path)

	p := &parser{state: s, lex: lexer.New(src), path: path, file: file}
	if err := p.next(); err != nil {
		return err
	}
	return p.program()
}

func (s *state) include(from string, rel string, line int, path string) error {
	target := rel
	if !filepath.IsAbs(target) {
		target = filepath.Join(filepath.Dir(from), rel)
	}
	if abs, err := filepath.Abs(target); err == nil {
		target = abs
	}
	target = filepath.Clean(target)

	if s.loaded[target] {
		debug.Log(nil, "include", "skipping %s, already loaded", target)
		return nil
	}
	if s.load == nil {
		return &Error{Path: path, Line: line, Msg: "includes are not available here"}
	}
	src, err := s.load(target)
	if err != nil {
		return &Error{Path: path, Line: line, Msg: fmt.Sprintf("include %q: %v", rel, err)}
	}
	s.loaded[target] = true
	return s.file(src, target)
}

// parser parses a single file.
type parser struct {
	*state
	lex  *lexer.Lexer
	path string
	file int32

	tok  lexer.Token
	peek *lexer.Token

	// noStructLit suppresses `Ident {` composite literals, so that
	// `while x { … }` does not parse x { … } as a literal.
	noStructLit bool
}

func (p *parser) next() error {
	if p.peek != nil {
		p.tok, p.peek = *p.peek, nil
		return nil
	}
	t, err := p.lex.Next()
	if err != nil {
		lerr := err.(*lexer.Error)
		return &Error{Path: p.path, Line: lerr.Line, Msg: lerr.Msg}
	}
	p.tok = t
	return nil
}

func (p *parser) peekTok() (lexer.Token, error) {
	if p.peek == nil {
		t, err := p.lex.Next()
		if err != nil {
			lerr := err.(*lexer.Error)
			return t, &Error{Path: p.path, Line: lerr.Line, Msg: lerr.Msg}
		}
		p.peek = &t
	}
	return *p.peek, nil
}

func (p *parser) pos() ast.Pos {
	return ast.Pos{File: p.file, Line: int32(p.tok.Line)}
}

func (p *parser) errf(format string, args ...any) error {
	return &Error{Path: p.path, Line: p.tok.Line, Msg: fmt.Sprintf(format, args...)}
}

func (p *parser) expect(k lexer.Kind) (lexer.Token, error) {
	if p.tok.Kind != k {
		return p.tok, p.errf("expected %s, found %s", k, p.tok)
	}
	t := p.tok
	return t, p.next()
}

// program := declaration*
func (p *parser) program() error {
	for p.tok.Kind != lexer.EOF {
		d, err := p.decl()
		if err != nil {
			return err
		}
		if d != nil {
			p.prog.Decls = append(p.prog.Decls, d)
		}
	}
	return nil
}

func (p *parser) decl() (ast.Decl, error) {
	switch p.tok.Kind {
	case lexer.KwInclude:
		line := p.tok.Line
		if err := p.next(); err != nil {
			return nil, err
		}
		t, err := p.expect(lexer.String)
		if err != nil {
			return nil, err
		}
		return nil, p.state.include(p.path, t.Text, line, p.path)

	case lexer.At:
		pos := p.pos()
		head, body, err := p.lex.Metadata()
		if err != nil {
			lerr := err.(*lexer.Error)
			return nil, &Error{Path: p.path, Line: lerr.Line, Msg: lerr.Msg}
		}
		if err := p.next(); err != nil {
			return nil, err
		}
		return &ast.MetadataDecl{Head: head, Body: body, Pos: pos}, nil

	case lexer.KwStruct:
		return p.structDecl()

	case lexer.KwEnum:
		return p.enumDecl()

	case lexer.KwFn, lexer.KwInline, lexer.KwAlwaysInline, lexer.KwExtern:
		return p.fnDecl()
	}
	return nil, p.errf("expected declaration, found %s", p.tok)
}

func (p *parser) structDecl() (ast.Decl, error) {
	d := &ast.StructDecl{Pos: p.pos()}
	if err := p.next(); err != nil {
		return nil, err
	}
	t, err := p.expect(lexer.Ident)
	if err != nil {
		return nil, err
	}
	d.Name = t.Text
	fields, err := p.fieldList(lexer.LBrace, lexer.RBrace)
	if err != nil {
		return nil, err
	}
	d.Fields = fields
	return d, nil
}

func (p *parser) enumDecl() (ast.Decl, error) {
	d := &ast.EnumDecl{Pos: p.pos()}
	if err := p.next(); err != nil {
		return nil, err
	}
	t, err := p.expect(lexer.Ident)
	if err != nil {
		return nil, err
	}
	d.Name = t.Text
	if _, err := p.expect(lexer.LBrace); err != nil {
		return nil, err
	}
	for p.tok.Kind != lexer.RBrace {
		name, err := p.expect(lexer.Ident)
		if err != nil {
			return nil, err
		}
		v := ast.Variant{Name: name.Text}
		if p.tok.Kind == lexer.Colon {
			if err := p.next(); err != nil {
				return nil, err
			}
			ty, err := p.typeExpr()
			if err != nil {
				return nil, err
			}
			v.Payload = ty
		}
		d.Variants = append(d.Variants, v)
		if p.tok.Kind == lexer.Comma {
			if err := p.next(); err != nil {
				return nil, err
			}
		}
	}
	return d, p.next()
}

// fn := ['inline'|'always_inline'|'extern'] 'fn' name '(' params ')' '->' '(' returns ')' block
func (p *parser) fnDecl() (ast.Decl, error) {
	d := &ast.FuncDecl{Pos: p.pos()}
	switch p.tok.Kind {
	case lexer.KwInline:
		d.Inline = ast.InlineHint
		if err := p.next(); err != nil {
			return nil, err
		}
	case lexer.KwAlwaysInline:
		d.Inline = ast.InlineAlways
		if err := p.next(); err != nil {
			return nil, err
		}
	case lexer.KwExtern:
		d.Extern = true
		if err := p.next(); err != nil {
			return nil, err
		}
	}
	if _, err := p.expect(lexer.KwFn); err != nil {
		return nil, err
	}
	t, err := p.expect(lexer.Ident)
	if err != nil {
		return nil, err
	}
	d.Name = t.Text

	if err := p.signature(d); err != nil {
		return nil, err
	}

	if d.Extern {
		// Externs carry an empty body by convention; tolerate both.
		if p.tok.Kind == lexer.LBrace {
			if err := p.next(); err != nil {
				return nil, err
			}
			if _, err := p.expect(lexer.RBrace); err != nil {
				return nil, err
			}
		}
		return d, nil
	}

	body, err := p.block()
	if err != nil {
		return nil, err
	}
	d.Body = body
	return d, nil
}

func (p *parser) signature(d *ast.FuncDecl) error {
	params, err := p.fieldList(lexer.LParen, lexer.RParen)
	if err != nil {
		return err
	}
	d.Params = params
	if _, err := p.expect(lexer.Arrow); err != nil {
		return err
	}
	rets, err := p.fieldList(lexer.LParen, lexer.RParen)
	if err != nil {
		return err
	}
	d.Returns = rets
	return nil
}

// fieldList := open (name [':' type] ',')* close
func (p *parser) fieldList(open, close lexer.Kind) ([]ast.Field, error) {
	if _, err := p.expect(open); err != nil {
		return nil, err
	}
	var out []ast.Field
	for p.tok.Kind != close {
		name, err := p.expect(lexer.Ident)
		if err != nil {
			return nil, err
		}
		f := ast.Field{Name: name.Text}
		if p.tok.Kind == lexer.Colon {
			if err := p.next(); err != nil {
				return nil, err
			}
			ty, err := p.typeExpr()
			if err != nil {
				return nil, err
			}
			f.Type = ty
		}
		out = append(out, f)
		if p.tok.Kind == lexer.Comma {
			if err := p.next(); err != nil {
				return nil, err
			}
		} else if p.tok.Kind != close {
			return nil, p.errf("expected , or %s, found %s", close, p.tok)
		}
	}
	return out, p.next()
}

// typeExpr := name | '[' type ';' INT ']' | '[' type ']' | '&' '[' type ']'
//           | '&' | '|' params '|' '->' '(' types ')'
func (p *parser) typeExpr() (*ast.TypeExpr, error) {
	switch p.tok.Kind {
	case lexer.Ident:
		te := &ast.TypeExpr{Kind: ast.TypeName, Name: p.tok.Text}
		return te, p.next()

	case lexer.LBracket:
		if err := p.next(); err != nil {
			return nil, err
		}
		elem, err := p.typeExpr()
		if err != nil {
			return nil, err
		}
		if p.tok.Kind == lexer.RBracket {
			return &ast.TypeExpr{Kind: ast.TypeSlice, Elem: elem}, p.next()
		}
		if _, err := p.expect(lexer.Semi); err != nil {
			return nil, err
		}
		n, err := p.arrayLen()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(lexer.RBracket); err != nil {
			return nil, err
		}
		return &ast.TypeExpr{Kind: ast.TypeFixed, Elem: elem, Len: n}, nil

	case lexer.Amp:
		if err := p.next(); err != nil {
			return nil, err
		}
		if p.tok.Kind != lexer.LBracket {
			return &ast.TypeExpr{Kind: ast.TypeRef}, nil
		}
		if err := p.next(); err != nil {
			return nil, err
		}
		elem, err := p.typeExpr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(lexer.RBracket); err != nil {
			return nil, err
		}
		return &ast.TypeExpr{Kind: ast.TypeUnsized, Elem: elem}, nil

	case lexer.Pipe, lexer.OrOr:
		return p.closureType()
	}
	return nil, p.errf("expected type, found %s", p.tok)
}

// closureType := '|' entry,* '|' '->' '(' type,* ')'
//
// A parameter entry is either a type, or a bare name standing for the
// default float: `|f32| -> ()` and `|e| -> ()` declare the same signature.
func (p *parser) closureType() (*ast.TypeExpr, error) {
	te := &ast.TypeExpr{Kind: ast.TypeClosure}
	if p.tok.Kind == lexer.OrOr {
		if err := p.next(); err != nil {
			return nil, err
		}
	} else {
		if err := p.next(); err != nil {
			return nil, err
		}
		for p.tok.Kind != lexer.Pipe {
			var param *ast.TypeExpr
			if p.tok.Kind == lexer.Ident && !isTypeName(p.tok.Text) {
				param = nil // Named param, default float.
				if err := p.next(); err != nil {
					return nil, err
				}
			} else {
				ty, err := p.typeExpr()
				if err != nil {
					return nil, err
				}
				param = ty
			}
			te.Params = append(te.Params, param)
			if p.tok.Kind == lexer.Comma {
				if err := p.next(); err != nil {
					return nil, err
				}
			}
		}
		if err := p.next(); err != nil {
			return nil, err
		}
	}
	if _, err := p.expect(lexer.Arrow); err != nil {
		return nil, err
	}
	if _, err := p.expect(lexer.LParen); err != nil {
		return nil, err
	}
	for p.tok.Kind != lexer.RParen {
		if p.tok.Kind == lexer.Ident && !isTypeName(p.tok.Text) {
			te.Returns = append(te.Returns, nil)
			if err := p.next(); err != nil {
				return nil, err
			}
		} else {
			ty, err := p.typeExpr()
			if err != nil {
				return nil, err
			}
			te.Returns = append(te.Returns, ty)
		}
		if p.tok.Kind == lexer.Comma {
			if err := p.next(); err != nil {
				return nil, err
			}
		}
	}
	return te, p.next()
}

func isTypeName(s string) bool {
	switch s {
	case "f32", "f64", "i64", "u8", "bool":
		return true
	}
	return false
}

func (p *parser) arrayLen() (int64, error) {
	neg := false
	if p.tok.Kind == lexer.Minus {
		neg = true
		if err := p.next(); err != nil {
			return 0, err
		}
	}
	t, err := p.expect(lexer.Int)
	if err != nil {
		return 0, err
	}
	n, err := strconv.ParseInt(t.Text, 10, 64)
	if err != nil || neg || n < 0 {
		return 0, p.errf("invalid array length %q", t.Text)
	}
	return n, nil
}
