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

// Package ast defines the syntax tree produced by the parser.
//
// The analyzer annotates nodes in place: after analysis every expression
// carries a resolved type and every call a resolved target. The annotation
// fields live on the nodes (rather than in a side table) so that inline
// expansion can deep-copy a function body and re-analyze the copy against a
// different scope.
package ast

// Pos locates a node in the file-index table of its [Program].
type Pos struct {
	File int32 // Index into Program.Files.
	Line int32 // 1-based.
}

// Program is a parsed compilation unit: the declarations of the root file
// and of everything it transitively included.
type Program struct {
	Decls []Decl

	// Files is the file-index table. Every Pos.File indexes into it.
	// Files[0] is the root source; included files follow in load order,
	// recorded by canonicalized path.
	Files []string
}

// Decl is a top-level declaration.
type Decl interface{ decl() }

// InlineKind says how calls to a function must be dispatched.
type InlineKind int

const (
	// InlineNone compiles the function standalone and calls it directly.
	InlineNone InlineKind = iota
	// InlineHint expands the body at each call site.
	InlineHint
	// InlineAlways expands at each call site and is required for functions
	// with closure-typed parameters.
	InlineAlways
)

// FuncDecl is a function declaration, including closures (which are
// FuncDecls without a top-level name registration) and externs (which have
// no body).
type FuncDecl struct {
	Name    string
	Inline  InlineKind
	Extern  bool
	Params  []Field
	Returns []Field
	Body    *Block // nil for extern fns
	Pos     Pos
}

// Receiver returns the declared type expression of the method receiver, or
// nil if the first parameter is not named "self".
func (f *FuncDecl) Receiver() *TypeExpr {
	if len(f.Params) > 0 && f.Params[0].Name == "self" {
		return f.Params[0].Type
	}
	return nil
}

// StructDecl is a struct declaration.
type StructDecl struct {
	Name   string
	Fields []Field
	Pos    Pos
}

// EnumDecl is a tagged-union declaration. Variants are numbered by
// declaration order starting at 0.
type EnumDecl struct {
	Name     string
	Variants []Variant
	Pos      Pos
}

// Variant is one enum variant, optionally carrying a payload.
type Variant struct {
	Name    string
	Payload *TypeExpr // nil for a nullary variant
}

// MetadataDecl is an opaque `@ head … @` block, surfaced to the host and
// otherwise ignored.
type MetadataDecl struct {
	Head []string
	Body string
	Pos  Pos
}

func (*FuncDecl) decl()     {}
func (*StructDecl) decl()   {}
func (*EnumDecl) decl()     {}
func (*MetadataDecl) decl() {}

// Field is a name/type pair: a parameter, return or struct field. A nil
// Type means "default float" and is resolved by the analyzer.
type Field struct {
	Name string
	Type *TypeExpr
}

// TypeExprKind discriminates [TypeExpr].
type TypeExprKind int

const (
	TypeName    TypeExprKind = iota // f32, i64, Point, …
	TypeFixed                       // [T; N]
	TypeSlice                       // [T]
	TypeUnsized                     // &[T]
	TypeRef                         // & (opaque pointer)
	TypeClosure                     // |P,…| -> (R,…)
)

// TypeExpr is a syntactic type.
type TypeExpr struct {
	Kind TypeExprKind
	Name string    // TypeName
	Elem *TypeExpr // TypeFixed, TypeSlice, TypeUnsized
	Len  int64     // TypeFixed

	Params  []*TypeExpr // TypeClosure
	Returns []*TypeExpr // TypeClosure
}

// Block is a brace-delimited statement list with its own scope.
type Block struct {
	Stmts []Stmt
}

// Stmt is a statement.
type Stmt interface{ stmt() }

// AssignOp is the operator of an [AssignStmt].
type AssignOp int

const (
	AssignEq AssignOp = iota
	AssignAdd
	AssignSub
	AssignMul
	AssignDiv
)

// AssignStmt is `lhs₁, … = rhs₁, …` or an augmented assignment.
type AssignStmt struct {
	Op      AssignOp
	Targets []Expr // Ident, FieldExpr or IndexExpr
	Values  []Expr // len 1 (possibly multi-valued call) or len(Targets)
	Pos     Pos
}

// ExprStmt evaluates an expression for effect. As the final statement of an
// if-expression branch it is also the branch's value.
type ExprStmt struct {
	X   Expr
	Pos Pos
}

// WhileStmt is `while cond { body }` or, with an iter block,
// `while cond { step } : { body }`. Body runs first; Step runs when Body
// finishes normally or via continue, before the condition re-check.
type WhileStmt struct {
	Cond Expr
	Step *Block // nil without an iter block
	Body *Block
	Pos  Pos
}

// ReturnStmt jumps to the function's merge block. Return values are the
// function's named return variables.
type ReturnStmt struct{ Pos Pos }

// BreakStmt exits the nearest enclosing while.
type BreakStmt struct{ Pos Pos }

// ContinueStmt re-enters the nearest enclosing while (running the iter
// block's step first, if any).
type ContinueStmt struct{ Pos Pos }

// ClosureStmt declares a named closure: `name|p,…| -> (r,…) { body }`.
// The binding is inline-expandable and captures the enclosing scope by
// reference.
type ClosureStmt struct {
	Name string
	Fn   *FuncDecl
	Pos  Pos
}

func (*AssignStmt) stmt()   {}
func (*ExprStmt) stmt()     {}
func (*WhileStmt) stmt()    {}
func (*ReturnStmt) stmt()   {}
func (*BreakStmt) stmt()    {}
func (*ContinueStmt) stmt() {}
func (*ClosureStmt) stmt()  {}
