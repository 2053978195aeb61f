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
	"strconv"

	"buf.build/go/sarus/internal/ast"
	"buf.build/go/sarus/internal/lexer"
)

// Binary precedence levels, loosest first.
var binPrec = map[lexer.Kind]int{
	lexer.OrOr:   1,
	lexer.AndAnd: 2,
	lexer.Eq:     3, lexer.Ne: 3, lexer.Lt: 3, lexer.Le: 3,
	lexer.Gt: 3, lexer.Ge: 3,
	lexer.Plus: 4, lexer.Minus: 4,
	lexer.Star: 5, lexer.Slash: 5, lexer.Percent: 5,
}

var binOps = map[lexer.Kind]ast.BinOp{
	lexer.OrOr: ast.OpOr, lexer.AndAnd: ast.OpAnd,
	lexer.Eq: ast.OpEq, lexer.Ne: ast.OpNe,
	lexer.Lt: ast.OpLt, lexer.Le: ast.OpLe,
	lexer.Gt: ast.OpGt, lexer.Ge: ast.OpGe,
	lexer.Plus: ast.OpAdd, lexer.Minus: ast.OpSub,
	lexer.Star: ast.OpMul, lexer.Slash: ast.OpDiv,
	lexer.Percent: ast.OpRem,
}

func (p *parser) expr() (ast.Expr, error) {
	return p.binary(1)
}

// condExpr parses an if/while condition, where `ident {` opens the block
// rather than a struct literal.
func (p *parser) condExpr() (ast.Expr, error) {
	save := p.noStructLit
	p.noStructLit = true
	e, err := p.expr()
	p.noStructLit = save
	return e, err
}

func (p *parser) binary(minPrec int) (ast.Expr, error) {
	x, err := p.unary()
	if err != nil {
		return nil, err
	}
	for {
		prec, ok := binPrec[p.tok.Kind]
		if !ok || prec < minPrec {
			return x, nil
		}
		// An operator on a fresh line starts a new statement instead of
		// continuing this expression.
		if p.tok.NewlineBefore {
			return x, nil
		}
		op := binOps[p.tok.Kind]
		pos := p.pos()
		if err := p.next(); err != nil {
			return nil, err
		}
		y, err := p.binary(prec + 1)
		if err != nil {
			return nil, err
		}
		x = &ast.BinaryExpr{Op: op, X: x, Y: y, Pos: pos}
	}
}

func (p *parser) unary() (ast.Expr, error) {
	switch p.tok.Kind {
	case lexer.Minus:
		pos := p.pos()
		if err := p.next(); err != nil {
			return nil, err
		}
		x, err := p.unary()
		if err != nil {
			return nil, err
		}
		return &ast.UnaryExpr{Op: ast.OpNeg, X: x, Pos: pos}, nil
	case lexer.Not:
		pos := p.pos()
		if err := p.next(); err != nil {
			return nil, err
		}
		x, err := p.unary()
		if err != nil {
			return nil, err
		}
		return &ast.UnaryExpr{Op: ast.OpNot, X: x, Pos: pos}, nil
	}
	return p.postfix()
}

func (p *parser) postfix() (ast.Expr, error) {
	x, err := p.primary()
	if err != nil {
		return nil, err
	}
	for {
		if p.tok.NewlineBefore {
			return x, nil
		}
		switch p.tok.Kind {
		case lexer.Dot:
			if err := p.next(); err != nil {
				return nil, err
			}
			name, err := p.expect(lexer.Ident)
			if err != nil {
				return nil, err
			}
			if p.tok.Kind == lexer.LParen && !p.tok.NewlineBefore {
				args, err := p.args()
				if err != nil {
					return nil, err
				}
				x = &ast.DotCallExpr{Recv: x, Name: name.Text, Args: args, Pos: p.pos()}
			} else {
				x = &ast.FieldExpr{X: x, Name: name.Text, Pos: p.pos()}
			}

		case lexer.LBracket:
			if err := p.next(); err != nil {
				return nil, err
			}
			e, err := p.indexOrSlice(x)
			if err != nil {
				return nil, err
			}
			x = e

		default:
			return x, nil
		}
	}
}

// indexOrSlice parses the remainder of `x[…]` after the bracket.
func (p *parser) indexOrSlice(x ast.Expr) (ast.Expr, error) {
	pos := p.pos()
	var lo ast.Expr
	if p.tok.Kind != lexer.DotDot {
		save := p.noStructLit
		p.noStructLit = false
		e, err := p.expr()
		p.noStructLit = save
		if err != nil {
			return nil, err
		}
		lo = e
		if p.tok.Kind == lexer.RBracket {
			return &ast.IndexExpr{X: x, Index: lo, Pos: pos}, p.next()
		}
	}
	if _, err := p.expect(lexer.DotDot); err != nil {
		return nil, err
	}
	var hi ast.Expr
	if p.tok.Kind != lexer.RBracket {
		save := p.noStructLit
		p.noStructLit = false
		e, err := p.expr()
		p.noStructLit = save
		if err != nil {
			return nil, err
		}
		hi = e
	}
	if _, err := p.expect(lexer.RBracket); err != nil {
		return nil, err
	}
	return &ast.SliceExpr{X: x, Lo: lo, Hi: hi, Pos: pos}, nil
}

func (p *parser) primary() (ast.Expr, error) {
	pos := p.pos()
	switch p.tok.Kind {
	case lexer.Int:
		v, err := strconv.ParseInt(p.tok.Text, 10, 64)
		if err != nil {
			return nil, p.errf("invalid integer literal %q", p.tok.Text)
		}
		lit := &ast.BasicLit{Kind: ast.LitInt, IntVal: v, IsU8: p.tok.U8, Pos: pos}
		return lit, p.next()

	case lexer.Float:
		v, err := strconv.ParseFloat(p.tok.Text, 64)
		if err != nil {
			return nil, p.errf("invalid float literal %q", p.tok.Text)
		}
		lit := &ast.BasicLit{Kind: ast.LitFloat, FloatVal: v, Pos: pos}
		return lit, p.next()

	case lexer.String:
		lit := &ast.BasicLit{Kind: ast.LitStr, StrVal: p.tok.Text, Pos: pos}
		return lit, p.next()

	case lexer.KwTrue, lexer.KwFalse:
		lit := &ast.BasicLit{Kind: ast.LitBool, BoolVal: p.tok.Kind == lexer.KwTrue, Pos: pos}
		return lit, p.next()

	case lexer.KwIf:
		return p.ifExpr()

	case lexer.LParen:
		if err := p.next(); err != nil {
			return nil, err
		}
		save := p.noStructLit
		p.noStructLit = false
		e, err := p.expr()
		p.noStructLit = save
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(lexer.RParen); err != nil {
			return nil, err
		}
		return e, nil

	case lexer.LBracket:
		return p.arrayLit()

	case lexer.Pipe, lexer.OrOr:
		fn, err := p.closureTail(pos)
		if err != nil {
			return nil, err
		}
		return &ast.ClosureLit{Fn: fn, Pos: pos}, nil

	case lexer.Ident:
		name := p.tok.Text
		if err := p.next(); err != nil {
			return nil, err
		}
		switch {
		case p.tok.Kind == lexer.ColonColon:
			if err := p.next(); err != nil {
				return nil, err
			}
			member, err := p.expect(lexer.Ident)
			if err != nil {
				return nil, err
			}
			if p.tok.Kind == lexer.LParen && !p.tok.NewlineBefore {
				args, err := p.args()
				if err != nil {
					return nil, err
				}
				return &ast.CallExpr{Path: name, Name: member.Text, Args: args, Pos: pos}, nil
			}
			return &ast.PathExpr{Type: name, Name: member.Text, Pos: pos}, nil

		case p.tok.Kind == lexer.LParen && !p.tok.NewlineBefore:
			args, err := p.args()
			if err != nil {
				return nil, err
			}
			return &ast.CallExpr{Name: name, Args: args, Pos: pos}, nil

		case p.tok.Kind == lexer.LBrace && !p.tok.NewlineBefore && !p.noStructLit:
			return p.structLit(name, pos)
		}
		return &ast.Ident{Name: name, Pos: pos}, nil
	}
	return nil, p.errf("expected expression, found %s", p.tok)
}

// ifExpr := 'if' cond block ['else' (ifExpr | block)]
func (p *parser) ifExpr() (ast.Expr, error) {
	e := &ast.IfExpr{Pos: p.pos()}
	if err := p.next(); err != nil {
		return nil, err
	}
	cond, err := p.condExpr()
	if err != nil {
		return nil, err
	}
	e.Cond = cond
	then, err := p.block()
	if err != nil {
		return nil, err
	}
	e.Then = then
	if p.tok.Kind != lexer.KwElse {
		return e, nil
	}
	if err := p.next(); err != nil {
		return nil, err
	}
	if p.tok.Kind == lexer.KwIf {
		// `else if` desugars to an else block holding a nested if.
		pos := p.pos()
		nested, err := p.ifExpr()
		if err != nil {
			return nil, err
		}
		e.Else = &ast.Block{Stmts: []ast.Stmt{&ast.ExprStmt{X: nested, Pos: pos}}}
		return e, nil
	}
	els, err := p.block()
	if err != nil {
		return nil, err
	}
	e.Else = els
	return e, nil
}

// arrayLit := '[' expr ';' INT ']' | '[' expr,* ']'
func (p *parser) arrayLit() (ast.Expr, error) {
	lit := &ast.ArrayLit{Pos: p.pos()}
	if err := p.next(); err != nil {
		return nil, err
	}
	save := p.noStructLit
	p.noStructLit = false
	defer func() { p.noStructLit = save }()

	first, err := p.expr()
	if err != nil {
		return nil, err
	}
	if p.tok.Kind == lexer.Semi {
		if err := p.next(); err != nil {
			return nil, err
		}
		n, err := p.arrayLen()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(lexer.RBracket); err != nil {
			return nil, err
		}
		lit.Repeat, lit.Count = first, n
		return lit, nil
	}
	lit.Elems = append(lit.Elems, first)
	for p.tok.Kind == lexer.Comma {
		if err := p.next(); err != nil {
			return nil, err
		}
		if p.tok.Kind == lexer.RBracket {
			break
		}
		e, err := p.expr()
		if err != nil {
			return nil, err
		}
		lit.Elems = append(lit.Elems, e)
	}
	if _, err := p.expect(lexer.RBracket); err != nil {
		return nil, err
	}
	return lit, nil
}

// structLit := name '{' (field ':' expr ',')* '}'
func (p *parser) structLit(name string, pos ast.Pos) (ast.Expr, error) {
	lit := &ast.StructLit{Name: name, Pos: pos}
	if err := p.next(); err != nil {
		return nil, err
	}
	save := p.noStructLit
	p.noStructLit = false
	defer func() { p.noStructLit = save }()

	for p.tok.Kind != lexer.RBrace {
		f, err := p.expect(lexer.Ident)
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(lexer.Colon); err != nil {
			return nil, err
		}
		v, err := p.expr()
		if err != nil {
			return nil, err
		}
		lit.Inits = append(lit.Inits, ast.FieldInit{Name: f.Text, Value: v})
		if p.tok.Kind == lexer.Comma {
			if err := p.next(); err != nil {
				return nil, err
			}
		}
	}
	return lit, p.next()
}

func (p *parser) args() ([]ast.Expr, error) {
	if _, err := p.expect(lexer.LParen); err != nil {
		return nil, err
	}
	save := p.noStructLit
	p.noStructLit = false
	defer func() { p.noStructLit = save }()

	var out []ast.Expr
	for p.tok.Kind != lexer.RParen {
		e, err := p.expr()
		if err != nil {
			return nil, err
		}
		out = append(out, e)
		if p.tok.Kind == lexer.Comma {
			if err := p.next(); err != nil {
				return nil, err
			}
		}
	}
	return out, p.next()
}
