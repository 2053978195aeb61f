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

package parser

import (
	"buf.build/go/sarus/internal/ast"
	"buf.build/go/sarus/internal/lexer"
)

// block := '{' stmt* '}'
func (p *parser) block() (*ast.Block, error) {
	if _, err := p.expect(lexer.LBrace); err != nil {
		return nil, err
	}
	b := &ast.Block{}
	for p.tok.Kind != lexer.RBrace {
		s, err := p.stmt()
		if err != nil {
			return nil, err
		}
		b.Stmts = append(b.Stmts, s)
	}
	return b, p.next()
}

func (p *parser) stmt() (ast.Stmt, error) {
	pos := p.pos()
	switch p.tok.Kind {
	case lexer.KwWhile:
		return p.whileStmt()

	case lexer.KwReturn:
		return &ast.ReturnStmt{Pos: pos}, p.next()

	case lexer.KwBreak:
		return &ast.BreakStmt{Pos: pos}, p.next()

	case lexer.KwContinue:
		return &ast.ContinueStmt{Pos: pos}, p.next()

	case lexer.Ident:
		// `name|…| -> (…) { … }` declares a closure.
		pk, err := p.peekTok()
		if err != nil {
			return nil, err
		}
		if pk.Kind == lexer.Pipe || pk.Kind == lexer.OrOr {
			return p.closureStmt()
		}
	}

	// Everything else starts with an expression: an assignment target
	// list, or an expression statement.
	lhs, err := p.exprList()
	if err != nil {
		return nil, err
	}

	var op ast.AssignOp
	switch p.tok.Kind {
	case lexer.Assign:
		op = ast.AssignEq
	case lexer.PlusAssign:
		op = ast.AssignAdd
	case lexer.MinusAssign:
		op = ast.AssignSub
	case lexer.StarAssign:
		op = ast.AssignMul
	case lexer.SlashAssign:
		op = ast.AssignDiv
	default:
		if len(lhs) != 1 {
			return nil, p.errf("expected assignment after expression list")
		}
		return &ast.ExprStmt{X: lhs[0], Pos: pos}, nil
	}
	if err := p.next(); err != nil {
		return nil, err
	}
	rhs, err := p.exprList()
	if err != nil {
		return nil, err
	}
	if op != ast.AssignEq && (len(lhs) != 1 || len(rhs) != 1) {
		return nil, p.errf("augmented assignment takes a single target")
	}
	return &ast.AssignStmt{Op: op, Targets: lhs, Values: rhs, Pos: pos}, nil
}

// whileStmt := 'while' cond block [':' block]
//
// With the iter block, the first block is the step and the second the body.
func (p *parser) whileStmt() (ast.Stmt, error) {
	w := &ast.WhileStmt{Pos: p.pos()}
	if err := p.next(); err != nil {
		return nil, err
	}
	cond, err := p.condExpr()
	if err != nil {
		return nil, err
	}
	w.Cond = cond
	first, err := p.block()
	if err != nil {
		return nil, err
	}
	if p.tok.Kind == lexer.Colon {
		if err := p.next(); err != nil {
			return nil, err
		}
		body, err := p.block()
		if err != nil {
			return nil, err
		}
		w.Step, w.Body = first, body
	} else {
		w.Body = first
	}
	return w, nil
}

// closureStmt := name '|' params '|' '->' '(' returns ')' block
func (p *parser) closureStmt() (ast.Stmt, error) {
	pos := p.pos()
	name := p.tok.Text
	if err := p.next(); err != nil {
		return nil, err
	}
	fn, err := p.closureTail(pos)
	if err != nil {
		return nil, err
	}
	fn.Name = name
	return &ast.ClosureStmt{Name: name, Fn: fn, Pos: pos}, nil
}

// closureTail parses `|params| -> (returns) block` with the leading token
// being Pipe or OrOr.
func (p *parser) closureTail(pos ast.Pos) (*ast.FuncDecl, error) {
	fn := &ast.FuncDecl{Inline: ast.InlineAlways, Pos: pos}
	if p.tok.Kind == lexer.OrOr {
		if err := p.next(); err != nil {
			return nil, err
		}
	} else {
		if err := p.next(); err != nil {
			return nil, err
		}
		for p.tok.Kind != lexer.Pipe {
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
			fn.Params = append(fn.Params, f)
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
	rets, err := p.fieldList(lexer.LParen, lexer.RParen)
	if err != nil {
		return nil, err
	}
	fn.Returns = rets
	body, err := p.block()
	if err != nil {
		return nil, err
	}
	fn.Body = body
	return fn, nil
}

func (p *parser) exprList() ([]ast.Expr, error) {
	var out []ast.Expr
	for {
		e, err := p.expr()
		if err != nil {
			return nil, err
		}
		out = append(out, e)
		if p.tok.Kind != lexer.Comma {
			return out, nil
		}
		if err := p.next(); err != nil {
			return nil, err
		}
	}
}
