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
	"bytes"
	"fmt"
	"io"
	"math"

	"buf.build/go/sarus/internal/ast"
	"buf.build/go/sarus/internal/rt"
)

// stdlib is the numeric standard library: method externs over the
// scalar types plus the registered float constants. It is declared
// through the same importer contract a host would use: extern
// declarations paired with host symbols.
type stdlib struct {
	decls   []ast.Decl
	symbols map[string]any
	consts  map[string]float64
}

var stdConsts = map[string]float64{
	"E": math.E, "PI": math.Pi, "TAU": 2 * math.Pi,
	"LN_2": math.Ln2, "LN_10": math.Log(10),
	"LOG2_10": math.Log2(10), "LOG2_E": math.Log2E,
	"LOG10_2": math.Log10(2), "LOG10_E": math.Log10E,
	"SQRT_2": math.Sqrt2,
	"FRAC_1_PI": 1 / math.Pi, "FRAC_1_SQRT_2": 1 / math.Sqrt2,
	"FRAC_2_SQRT_PI": 2 / math.Sqrt(math.Pi),
	"FRAC_PI_2":      math.Pi / 2, "FRAC_PI_3": math.Pi / 3,
	"FRAC_PI_4": math.Pi / 4, "FRAC_PI_6": math.Pi / 6,
	"FRAC_PI_8": math.Pi / 8,
}

func tyName(name string) *ast.TypeExpr {
	return &ast.TypeExpr{Kind: ast.TypeName, Name: name}
}

func tyStr() *ast.TypeExpr {
	return &ast.TypeExpr{Kind: ast.TypeSlice, Elem: tyName("u8")}
}

func newStdlib(w io.Writer) *stdlib {
	s := &stdlib{symbols: map[string]any{}, consts: stdConsts}

	// method registers `fn name(self: recv, extra…) -> (ret)` backed by fn.
	method := func(recv string, recvTy *ast.TypeExpr, name string, extra []ast.Field, ret *ast.TypeExpr, fn any) {
		d := &ast.FuncDecl{
			Name:   name,
			Extern: true,
			Params: append([]ast.Field{{Name: "self", Type: recvTy}}, extra...),
		}
		if ret != nil {
			d.Returns = []ast.Field{{Name: "r", Type: ret}}
		}
		s.decls = append(s.decls, d)
		s.symbols[recv+"."+name] = fn
	}

	s.mathFor32(method)
	s.mathFor64(method)

	// Integer min and max.
	i64 := tyName("i64")
	method("i64", tyName("i64"), "min", []ast.Field{{Name: "other", Type: i64}}, tyName("i64"),
		func(a, b int64) int64 { return min(a, b) })
	method("i64", tyName("i64"), "max", []ast.Field{{Name: "other", Type: i64}}, tyName("i64"),
		func(a, b int64) int64 { return max(a, b) })

	// Debug and test builtins.
	s.printing(method, w)

	// String operations over [u8].
	method("[u8]", tyStr(), "find", []ast.Field{{Name: "needle", Type: tyStr()}}, tyName("i64"),
		func(a, b Slice[byte]) int64 { return int64(bytes.Index(a.Slice(), b.Slice())) })
	method("[u8]", tyStr(), "rfind", []ast.Field{{Name: "needle", Type: tyStr()}}, tyName("i64"),
		func(a, b Slice[byte]) int64 { return int64(bytes.LastIndex(a.Slice(), b.Slice())) })
	method("[u8]", tyStr(), "starts_with", []ast.Field{{Name: "prefix", Type: tyStr()}}, tyName("bool"),
		func(a, b Slice[byte]) bool { return bytes.HasPrefix(a.Slice(), b.Slice()) })
	method("[u8]", tyStr(), "ends_with", []ast.Field{{Name: "suffix", Type: tyStr()}}, tyName("bool"),
		func(a, b Slice[byte]) bool { return bytes.HasSuffix(a.Slice(), b.Slice()) })

	return s
}

type methodFn func(recv string, recvTy *ast.TypeExpr, name string, extra []ast.Field, ret *ast.TypeExpr, fn any)

func (s *stdlib) mathFor32(method methodFn) {
	f32 := func() *ast.TypeExpr { return tyName("f32") }
	unary := func(name string, fn func(float64) float64) {
		method("f32", f32(), name, nil, f32(),
			func(x float32) float32 { return float32(fn(float64(x))) })
	}
	binary := func(name string, fn func(a, b float64) float64) {
		method("f32", f32(), name, []ast.Field{{Name: "other", Type: f32()}}, f32(),
			func(x, y float32) float32 { return float32(fn(float64(x), float64(y))) })
	}
	registerMath(unary, binary)
}

func (s *stdlib) mathFor64(method methodFn) {
	f64 := func() *ast.TypeExpr { return tyName("f64") }
	unary := func(name string, fn func(float64) float64) {
		method("f64", f64(), name, nil, f64(), fn)
	}
	binary := func(name string, fn func(a, b float64) float64) {
		method("f64", f64(), name, []ast.Field{{Name: "other", Type: f64()}}, f64(), fn)
	}
	registerMath(unary, binary)
}

func registerMath(unary func(string, func(float64) float64), binary func(string, func(a, b float64) float64)) {
	unary("sin", math.Sin)
	unary("cos", math.Cos)
	unary("tan", math.Tan)
	unary("asin", math.Asin)
	unary("acos", math.Acos)
	unary("atan", math.Atan)
	unary("sinh", math.Sinh)
	unary("cosh", math.Cosh)
	unary("tanh", math.Tanh)
	unary("exp", math.Exp)
	unary("log10", math.Log10)
	unary("sqrt", math.Sqrt)
	unary("floor", math.Floor)
	unary("ceil", math.Ceil)
	unary("trunc", math.Trunc)
	unary("round", math.Round)
	unary("fract", func(x float64) float64 { return x - math.Trunc(x) })

	binary("log", func(x, base float64) float64 { return math.Log(x) / math.Log(base) })
	binary("atan2", math.Atan2)
	binary("powf", math.Pow)
	binary("min", math.Min)
	binary("max", math.Max)
	binary("rem_euclid", func(x, y float64) float64 {
		r := math.Mod(x, y)
		if r < 0 {
			r += math.Abs(y)
		}
		return r
	})
}

func (s *stdlib) printing(method methodFn, w io.Writer) {
	assert := func(recv string, recvTy func() *ast.TypeExpr, fn any) {
		method(recv, recvTy(), "assert_eq",
			[]ast.Field{{Name: "other", Type: recvTy()}}, nil, fn)
	}
	printers := func(recv string, recvTy func() *ast.TypeExpr, fn func(v any) string) {
		method(recv, recvTy(), "println", nil, nil, printerFor(recv, w, fn, true))
		method(recv, recvTy(), "print", nil, nil, printerFor(recv, w, fn, false))
	}

	assertEq := func(a, b any) {
		if a != b {
			rt.Raise(rt.TrapAssert, "%v != %v", a, b)
		}
	}

	assert("f32", func() *ast.TypeExpr { return tyName("f32") }, func(a, b float32) { assertEq(a, b) })
	assert("f64", func() *ast.TypeExpr { return tyName("f64") }, func(a, b float64) { assertEq(a, b) })
	assert("i64", func() *ast.TypeExpr { return tyName("i64") }, func(a, b int64) { assertEq(a, b) })
	assert("u8", func() *ast.TypeExpr { return tyName("u8") }, func(a, b uint8) { assertEq(a, b) })
	assert("bool", func() *ast.TypeExpr { return tyName("bool") }, func(a, b bool) { assertEq(a, b) })
	assert("[u8]", tyStr, func(a, b Slice[byte]) {
		if !bytes.Equal(a.Slice(), b.Slice()) {
			rt.Raise(rt.TrapAssert, "%q != %q", a.Slice(), b.Slice())
		}
	})

	format := func(v any) string { return fmt.Sprint(v) }
	printers("f32", func() *ast.TypeExpr { return tyName("f32") }, format)
	printers("f64", func() *ast.TypeExpr { return tyName("f64") }, format)
	printers("i64", func() *ast.TypeExpr { return tyName("i64") }, format)
	printers("u8", func() *ast.TypeExpr { return tyName("u8") }, format)
	printers("bool", func() *ast.TypeExpr { return tyName("bool") }, format)
	printers("[u8]", tyStr, nil)
}

// printerFor builds the println/print host function for a receiver type.
func printerFor(recv string, w io.Writer, format func(any) string, newline bool) any {
	write := func(s string) {
		if newline {
			s += "\n"
		}
		_, _ = io.WriteString(w, s)
	}
	switch recv {
	case "f32":
		return func(v float32) { write(format(v)) }
	case "f64":
		return func(v float64) { write(format(v)) }
	case "i64":
		return func(v int64) { write(format(v)) }
	case "u8":
		return func(v uint8) { write(format(v)) }
	case "bool":
		return func(v bool) { write(format(v)) }
	default: // [u8]
		return func(v Slice[byte]) { write(string(v.Slice())) }
	}
}
