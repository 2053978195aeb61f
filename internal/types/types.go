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

// Package types is the compiler's type universe.
//
// The set is closed: scalars, structs, fixed arrays, sized and unsized
// slices, tagged unions, closures, the opaque reference, and unit. Layout
// (size, alignment, field offsets) is fixed at construction using the C
// rule, so a value's bytes are bit-identical to what a host compiler would
// produce for the same declaration.
package types

import (
	"fmt"
	"strings"
)

// Kind discriminates [Type].
type Kind int

const (
	KindUnit Kind = iota
	KindBool
	KindU8
	KindI64
	KindF32
	KindF64
	KindStruct
	KindFixedArray
	KindSlice
	KindUnsized
	KindEnum
	KindClosure
	KindRef

	// KindTuple is analyzer-internal: the type of a multi-value expression.
	// It never has a layout and never reaches codegen as a value type.
	KindTuple
)

// Type is a resolved type.
type Type interface {
	Kind() Kind
	// Size is the value's size in bytes. Size of a sized slice is its
	// three-word header.
	Size() int
	// Align is the value's natural alignment, minimum 1.
	Align() int
	String() string
}

// Equal reports whether two types are the same: nominal for structs and
// enums (by declared name), structural for everything else.
func Equal(a, b Type) bool {
	if a == nil || b == nil {
		return a == b
	}
	if a.Kind() != b.Kind() {
		return false
	}
	switch a := a.(type) {
	case *Struct:
		return a.Name == b.(*Struct).Name
	case *Enum:
		return a.Name == b.(*Enum).Name
	case *FixedArray:
		b := b.(*FixedArray)
		return a.Len == b.Len && Equal(a.Elem, b.Elem)
	case *Slice:
		return Equal(a.Elem, b.(*Slice).Elem)
	case *Unsized:
		return Equal(a.Elem, b.(*Unsized).Elem)
	case *Closure:
		b := b.(*Closure)
		if len(a.Params) != len(b.Params) || len(a.Returns) != len(b.Returns) {
			return false
		}
		for i := range a.Params {
			if !Equal(a.Params[i], b.Params[i]) {
				return false
			}
		}
		for i := range a.Returns {
			if !Equal(a.Returns[i], b.Returns[i]) {
				return false
			}
		}
		return true
	case *Tuple:
		b := b.(*Tuple)
		if len(a.Elems) != len(b.Elems) {
			return false
		}
		for i := range a.Elems {
			if !Equal(a.Elems[i], b.Elems[i]) {
				return false
			}
		}
		return true
	default:
		return true // Scalars, unit and ref compare by kind.
	}
}

// Scalar is one of the fixed-width scalar types, unit, or the opaque
// reference.
type Scalar struct {
	kind  Kind
	size  int
	align int
	name  string
}

var (
	Unit = &Scalar{KindUnit, 0, 1, "()"}
	Bool = &Scalar{KindBool, 1, 1, "bool"}
	U8   = &Scalar{KindU8, 1, 1, "u8"}
	I64  = &Scalar{KindI64, 8, 8, "i64"}
	F32  = &Scalar{KindF32, 4, 4, "f32"}
	F64  = &Scalar{KindF64, 8, 8, "f64"}
	Ref  = &Scalar{KindRef, 8, 8, "&"}
)

func (s *Scalar) Kind() Kind     { return s.kind }
func (s *Scalar) Size() int      { return s.size }
func (s *Scalar) Align() int     { return s.align }
func (s *Scalar) String() string { return s.name }

// Scalars are the named scalar types, for `T::size` publication and
// name resolution.
var Scalars = map[string]*Scalar{
	"bool": Bool, "u8": U8, "i64": I64, "f32": F32, "f64": F64,
}

// IsScalar reports whether t is a scalar value type (not unit or ref).
func IsScalar(t Type) bool {
	switch t.Kind() {
	case KindBool, KindU8, KindI64, KindF32, KindF64:
		return true
	}
	return false
}

// IsNumeric reports whether t supports arithmetic.
func IsNumeric(t Type) bool {
	switch t.Kind() {
	case KindU8, KindI64, KindF32, KindF64:
		return true
	}
	return false
}

// IsFloat reports whether t is a floating-point scalar.
func IsFloat(t Type) bool {
	return t.Kind() == KindF32 || t.Kind() == KindF64
}

// IsAggregate reports whether values of t live in memory and travel by
// reference: structs, fixed arrays and enums.
func IsAggregate(t Type) bool {
	switch t.Kind() {
	case KindStruct, KindFixedArray, KindEnum:
		return true
	}
	return false
}

// Field is a struct field with its resolved offset.
type Field struct {
	Name   string
	Type   Type
	Offset int
}

// Struct is a declared struct with C layout.
type Struct struct {
	Name   string
	Fields []Field

	size  int
	align int
}

// NewStruct lays out a struct from its fields using the C rule: each field
// at the next multiple of its alignment, total size rounded up to the
// struct's alignment (the max field alignment, minimum 1).
func NewStruct(name string, fields []Field) *Struct {
	s := &Struct{Name: name, align: 1}
	off := 0
	for _, f := range fields {
		a := f.Type.Align()
		off += pad(off, a)
		f.Offset = off
		off += f.Type.Size()
		s.align = max(s.align, a)
		s.Fields = append(s.Fields, f)
	}
	s.size = off + pad(off, s.align)
	return s
}

func (s *Struct) Kind() Kind     { return KindStruct }
func (s *Struct) Size() int      { return s.size }
func (s *Struct) Align() int     { return s.align }
func (s *Struct) String() string { return s.Name }

// Field returns the named field, or nil.
func (s *Struct) Field(name string) *Field {
	for i := range s.Fields {
		if s.Fields[i].Name == name {
			return &s.Fields[i]
		}
	}
	return nil
}

// FixedArray is `[T; N]`.
type FixedArray struct {
	Elem Type
	Len  int64
}

func (a *FixedArray) Kind() Kind { return KindFixedArray }
func (a *FixedArray) Size() int  { return int(a.Len) * a.Elem.Size() }
func (a *FixedArray) Align() int { return a.Elem.Align() }
func (a *FixedArray) String() string {
	return fmt.Sprintf("[%s; %d]", a.Elem, a.Len)
}

// Slice is the sized slice `[T]`: a {base, len, cap} fat reference.
type Slice struct{ Elem Type }

func (s *Slice) Kind() Kind     { return KindSlice }
func (s *Slice) Size() int      { return 24 }
func (s *Slice) Align() int     { return 8 }
func (s *Slice) String() string { return fmt.Sprintf("[%s]", s.Elem) }

// Unsized is the thin reference `&[T]`.
type Unsized struct{ Elem Type }

func (u *Unsized) Kind() Kind     { return KindUnsized }
func (u *Unsized) Size() int      { return 8 }
func (u *Unsized) Align() int     { return 8 }
func (u *Unsized) String() string { return fmt.Sprintf("&[%s]", u.Elem) }

// EnumVariant is one variant of an [Enum]. Its Tag doubles as the value of
// the `E::variant` constant.
type EnumVariant struct {
	Name    string
	Tag     int64
	Payload Type // nil for a nullary variant
}

// Enum is a tagged union: {i64 tag, padding to 8, payload region sized to
// the max variant payload}.
type Enum struct {
	Name     string
	Variants []EnumVariant

	payloadSize  int
	payloadAlign int
}

// NewEnum lays out an enum from its variants.
func NewEnum(name string, variants []EnumVariant) *Enum {
	e := &Enum{Name: name, Variants: variants, payloadAlign: 1}
	for _, v := range variants {
		if v.Payload == nil {
			continue
		}
		e.payloadSize = max(e.payloadSize, v.Payload.Size())
		e.payloadAlign = max(e.payloadAlign, v.Payload.Align())
	}
	return e
}

// PayloadOffset is where every variant's payload begins.
const PayloadOffset = 8

func (e *Enum) Kind() Kind { return KindEnum }
func (e *Enum) Size() int {
	n := PayloadOffset + e.payloadSize
	return n + pad(n, e.Align())
}
func (e *Enum) Align() int     { return 8 }
func (e *Enum) String() string { return e.Name }

// Variant returns the named variant, or nil.
func (e *Enum) Variant(name string) *EnumVariant {
	for i := range e.Variants {
		if e.Variants[i].Name == name {
			return &e.Variants[i]
		}
	}
	return nil
}

// Closure is a closure signature `|P,…| -> (R,…)`. Closure-typed values
// exist only at analysis time; they are expanded away before codegen.
type Closure struct {
	Params  []Type
	Returns []Type
}

func (c *Closure) Kind() Kind { return KindClosure }
func (c *Closure) Size() int  { return 0 }
func (c *Closure) Align() int { return 1 }
func (c *Closure) String() string {
	var b strings.Builder
	b.WriteByte('|')
	for i, p := range c.Params {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(p.String())
	}
	b.WriteString("| -> (")
	for i, r := range c.Returns {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(r.String())
	}
	b.WriteByte(')')
	return b.String()
}

// Tuple is the analyzer-internal type of a multi-value expression.
type Tuple struct{ Elems []Type }

func (t *Tuple) Kind() Kind { return KindTuple }
func (t *Tuple) Size() int  { panic("sarus: tuple has no layout") }
func (t *Tuple) Align() int { panic("sarus: tuple has no layout") }
func (t *Tuple) String() string {
	var b strings.Builder
	b.WriteByte('(')
	for i, e := range t.Elems {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(e.String())
	}
	b.WriteByte(')')
	return b.String()
}

func pad(off, align int) int {
	return (align - off%align) % align
}
