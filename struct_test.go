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

package sarus_test

import (
	"math"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/require"

	"buf.build/go/sarus"
)

type point struct {
	X, Y, Z float32
}

type line struct {
	A, B point
}

func (l line) length() float32 {
	return float32(math.Sqrt(
		math.Pow(float64(l.A.X-l.B.X), 2) +
			math.Pow(float64(l.A.Y-l.B.Y), 2) +
			math.Pow(float64(l.A.Z-l.B.Z), 2)))
}

func TestHostStruct(t *testing.T) {
	t.Parallel()
	mod := compile(t, `
struct Line {
    a: Point,
    b: Point,
}

struct Point {
    x: f32,
    y: f32,
    z: f32,
}

fn length(self: Line) -> (r: f32) {
    r = ((self.a.x - self.b.x).powf(2.0) +
         (self.a.y - self.b.y).powf(2.0) +
         (self.a.z - self.b.z).powf(2.0)).sqrt()
}

fn main(l1: Line) -> (c: f32) {
    c = l1.length()
}
`)
	l1 := line{
		A: point{X: 100, Y: 200, Z: 300},
		B: point{X: 400, Y: 500, Z: 600},
	}
	require.Equal(t, l1.length(), sarus.Call[float32](fn(t, mod, "main"), unsafe.Pointer(&l1)))
}

func TestPassByRef(t *testing.T) {
	t.Parallel()
	runMain(t, `
struct Point {
    x: f32,
    y: f32,
    z: f32,
}

fn set_to_0(point: Point) -> () {
    point.x = 0.0
    point.y = 0.0
    point.z = 0.0
}

fn main() -> () {
    p1 = Point {
        x: 100.0,
        y: 200.0,
        z: 300.0,
    }
    p1a = p1 //by reference

    set_to_0(p1) //passed by reference

    p1.x.assert_eq(0.0)
    p1.y.assert_eq(0.0)
    p1.z.assert_eq(0.0)

    p1a.x.assert_eq(0.0)
    p1a.y.assert_eq(0.0)
    p1a.z.assert_eq(0.0)
}
`)
}

type misc struct {
	B1 bool
	B2 bool
	F1 float64
	B3 bool
	I1 int64
	B4 bool
	B5 bool
}

func TestReprAlignment(t *testing.T) {
	t.Parallel()
	mod := compile(t, `
struct Misc {
    b1: bool,
    b2: bool,
    f1: f64,
    b3: bool,
    i1: i64,
    b4: bool,
    b5: bool,
}

fn main(m: Misc) -> () {
    m.b1.assert_eq(true)
    m.b2.assert_eq(false)
    m.f1.assert_eq(12345.0)
    m.b3.assert_eq(true)
    m.i1.assert_eq(6789)
    m.b4.assert_eq(false)
    m.b5.assert_eq(true)
}
`)
	m := misc{B1: true, B2: false, F1: 12345.0, B3: true, I1: 6789, B4: false, B5: true}
	fn(t, mod, "main").Call(unsafe.Pointer(&m))
}

func TestStructSize(t *testing.T) {
	t.Parallel()
	mod := compile(t, `
struct Misc {
    b1: bool,
    b2: bool,
    f1: f64,
    b3: bool,
    i1: i64,
    b4: bool,
    b5: bool,
}

struct Misc2 {
    b1: bool,
    m: Misc,
    b2: bool,
    b3: bool,
}

struct Misc3 {
    b1: bool,
    m2: Misc2,
    f1: f32,
    b3: bool,
}
`)
	type misc2 struct {
		B1     bool
		M      misc
		B2, B3 bool
	}
	type misc3 struct {
		B1 bool
		M2 misc2
		F1 float32
		B3 bool
	}

	for name, want := range map[string]int64{
		"Misc::size":  int64(unsafe.Sizeof(misc{})),
		"Misc2::size": int64(unsafe.Sizeof(misc2{})),
		"Misc3::size": int64(unsafe.Sizeof(misc3{})),
		"f32::size":   4,
		"i64::size":   8,
		"bool::size":  1,
	} {
		got, err := mod.DataI64(name)
		require.NoError(t, err, name)
		require.Equal(t, want, got, name)
	}
}

func TestConstSize(t *testing.T) {
	t.Parallel()
	runMain(t, `
struct Misc {
    b1: bool,
    i1: i64,
}

fn main() -> () {
    f32::size.assert_eq(4)
    f64::size.assert_eq(8)
    u8::size.assert_eq(1)
    bool::size.assert_eq(1)
    i64::size.assert_eq(8)
    Misc::size.assert_eq(16)
}
`)
}

func TestFixedArrays(t *testing.T) {
	t.Parallel()
	runMain(t, `
struct A {
    a: f32,
    b: f32,
    c: bool,
    d: i64,
}

fn main() -> () {
    s = A {
        a: 1.0,
        b: 2.0,
        c: true,
        d: 3,
    }
    n = [s; 10]
    n[5].a.assert_eq(1.0)
    n[5].b.assert_eq(2.0)
    n[5].c.assert_eq(true)
    n[5].d.assert_eq(3)
    n[9] = A {
        a: 9.0,
        b: 9.5,
        c: false,
        d: 81,
    }
    n[9].a.assert_eq(9.0)
    n[9].d.assert_eq(81)
    n[5].a.assert_eq(1.0)

    m = [1, 2, 3]
    m[0].assert_eq(1)
    m[1].assert_eq(2)
    m[2].assert_eq(3)
}
`)
}

type abiA struct {
	A float32
	B float32
	C bool
	D int64
}

type abiB struct {
	I   int64
	A   bool
	Arr [10]abiA
	B   bool
	F   float32
}

func TestReturnsFixedArrayInStruct(t *testing.T) {
	t.Parallel()
	code := `
struct B {
    i: i64,
    a: bool,
    arr: [A; 10],
    b: bool,
    f: f32,
}

fn returns_a_fixed_array_in_a_struct() -> (arr: B) {
    i = 0
    s = A {
        a: 1.0,
        b: 2.0,
        c: true,
        d: 3,
    }
    n = [s; 10]
    while i < 10 {
        n[i] = A {
            a: i.f32(),
            b: i.f32() + 0.5,
            c: i.f32().rem_euclid(2.0) == 0.0,
            d: i * i,
        }
        i += 1
    }
    arr = B {
        i: 123,
        a: true,
        arr: n,
        b: true,
        f: 123.123,
    }
}

struct A {
    a: f32,
    b: f32,
    c: bool,
    d: i64,
}

fn main() -> () {
    n = returns_a_fixed_array_in_a_struct().arr
    i = 0
    while i < 10 {
        n[i].a.assert_eq(i.f32())
        n[i].b.assert_eq(i.f32() + 0.5)
        n[i].c.assert_eq(i.f32().rem_euclid(2.0) == 0.0)
        n[i].d.assert_eq(i * i)
        i += 1
    }
    returns_a_fixed_array_in_a_struct().i.assert_eq(123)
    returns_a_fixed_array_in_a_struct().a.assert_eq(true)
    returns_a_fixed_array_in_a_struct().b.assert_eq(true)
    returns_a_fixed_array_in_a_struct().f.assert_eq(123.123)

    //Checking for over/under shoot on mem copy size
    f = returns_a_fixed_array_in_a_struct()
    f.arr[6].a.assert_eq(6.0)
    f.arr[5] = A {
        a: 0.1,
        b: 0.2,
        c: true,
        d: 55,
    }
    f.arr[5].a.assert_eq(0.1)
    f.arr[5].d.assert_eq(55)
    f.arr[5].a += 1.0
    f.arr[6].a.assert_eq(6.0)
    f.arr = [A {
                a: 0.1,
                b: 0.2,
                c: true,
                d: 55,
            }; 10]
    i = 0
    while i < 10 {
        f.arr[i].a.assert_eq(0.1)
        f.arr[i].b.assert_eq(0.2)
        f.arr[i].c.assert_eq(true)
        f.arr[i].d.assert_eq(55)
        i += 1
    }
}
`
	runMain(t, code)

	mod := compile(t, code)
	got := sarus.Call[abiB](fn(t, mod, "returns_a_fixed_array_in_a_struct"))
	want := abiB{I: 123, A: true, B: true, F: 123.123}
	for i := range want.Arr {
		want.Arr[i] = abiA{
			A: float32(i),
			B: float32(i) + 0.5,
			C: i%2 == 0,
			D: int64(i * i),
		}
	}
	require.Equal(t, want, got)
}

func TestModifyFixedArrayArg(t *testing.T) {
	t.Parallel()
	runMain(t, `
fn takes_arr(n: [f32; 5]) -> () {
    n = [1.0; 5]
}

fn main() -> () {
    a = [0.0; 5]
    a[1].assert_eq(0.0)
    takes_arr(a)
    a[1].assert_eq(1.0)
}
`)
}

func TestNestedFixedArray(t *testing.T) {
	t.Parallel()
	runMain(t, `
fn main() -> () {
    a = [[1.0; 3]; 2]
    a[0][2].assert_eq(1.0)
    a[1][0] = 5.0
    a[1][0].assert_eq(5.0)
    a[0][0].assert_eq(1.0)
}
`)
}

func TestInnerStructManipulate(t *testing.T) {
	t.Parallel()
	runMain(t, `
struct Inner {
    x: f32,
}
struct Outer {
    a: Inner,
    b: Inner,
}
fn main() -> () {
    o = Outer {
        a: Inner { x: 1.0 },
        b: Inner { x: 2.0 },
    }
    o.a.x.assert_eq(1.0)
    o.b.x.assert_eq(2.0)
    o.a.x = 3.0
    o.a.x.assert_eq(3.0)
    o.b.x.assert_eq(2.0)
    inner = o.b
    inner.x = 4.0
    o.b.x.assert_eq(4.0) //by reference
}
`)
}

func TestInitProcessState(t *testing.T) {
	t.Parallel()
	runMain(t, `
struct ProcessState {
    delay_l: [f32; 10000],
    delay_r: [f32; 10000],
}
fn main() -> () {
    state = ProcessState {
        delay_l: [1.234; 10000],
        delay_r: [1.234; 10000],
    }
    state.delay_r[0].assert_eq(1.234)
    state.delay_r[1].assert_eq(1.234)
    state.delay_r[9999].assert_eq(1.234)
    state.delay_l[0].assert_eq(1.234)
    state.delay_l[9999].assert_eq(1.234)

    a = [1.234; 15] //array init that does not use a loop
    a[0].assert_eq(1.234)
    a[14].assert_eq(1.234)
}
`)
}

func TestAssignToParamAddress(t *testing.T) {
	t.Parallel()
	runMain(t, `
struct Stuff {
    w: bool,
    x: f32,
    i: i64,
}
fn puts_a_stuff_there(there: Stuff) -> () {
    there = Stuff {
        w: true,
        x: 1.5,
        i: 77,
    }
}
fn main() -> () {
    s = Stuff {
        w: false,
        x: 0.0,
        i: 0,
    }
    puts_a_stuff_there(s)
    s.w.assert_eq(true)
    s.x.assert_eq(1.5)
    s.i.assert_eq(77)
}
`)
}
