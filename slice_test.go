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
	"testing"

	"github.com/stretchr/testify/require"

	"buf.build/go/sarus"
)

func TestBasicSlice(t *testing.T) {
	t.Parallel()
	runMain(t, `
fn main() -> () {
    a = [0.0; 100]
    a[0] = 0.0
    a[1] = 1.0
    a[2] = 2.0
    a[99] = 99.0
    slice_of_a = a[..]
    sub_slice_of_a1 = a[0..3]
    sub_slice_of_a2 = a[..3]
    sub_slice_of_a3 = a[2..]
    sub_slice_of_a4 = a[1..3]

    slice_of_a[0].assert_eq(0.0)
    slice_of_a[1].assert_eq(1.0)
    slice_of_a[2].assert_eq(2.0)
    slice_of_a[99].assert_eq(99.0)

    sub_slice_of_a1[0].assert_eq(0.0)
    sub_slice_of_a1[1].assert_eq(1.0)
    sub_slice_of_a1[2].assert_eq(2.0)

    sub_slice_of_a2[0].assert_eq(0.0)
    sub_slice_of_a2[2].assert_eq(2.0)

    sub_slice_of_a3[0].assert_eq(2.0)
    sub_slice_of_a3[99-2].assert_eq(99.0)

    sub_slice_of_a4[0].assert_eq(1.0)
    sub_slice_of_a4[1].assert_eq(2.0)

    a[1] = 10.0
    slice_of_a[1].assert_eq(10.0)

    slice_of_a[2] = 20.0
    a[2].assert_eq(20.0)

    sub_slice_of_a4[0] = 5.0
    sub_slice_of_a4[1] = 6.0

    a[1].assert_eq(5.0)
    a[2].assert_eq(6.0)
}
`)
}

func TestSliceContainsStruct(t *testing.T) {
	t.Parallel()
	runMain(t, `
struct Point {
    x, y, z,
}

fn main() -> () {
    a = [Point {
        x:0.0,
        y:0.0,
        z:0.0,
    }; 100]
    a[0].y = 0.0
    a[1].y = 1.0
    a[2].y = 2.0
    a[99].y = 99.0
    slice_of_a = a[..]
    a[1].y.assert_eq(1.0)
    sub_slice_of_a = a[1..3]

    slice_of_a[0].y.assert_eq(0.0)
    slice_of_a[1].y.assert_eq(1.0)
    slice_of_a[99].y.assert_eq(99.0)

    sub_slice_of_a[0].y.assert_eq(1.0)
    sub_slice_of_a[1].y.assert_eq(2.0)

    sub_slice_of_a[0].y = 5.0
    a[1].y.assert_eq(5.0)
}
`)
}

func TestPassSliceToFunc(t *testing.T) {
	t.Parallel()
	runMain(t, `
struct Point {
    x, y, z,
}

fn takes_slices(a: [Point], b: [Point]) -> () {
    a[0].y.assert_eq(0.0)
    a[1].y.assert_eq(1.0)
    a[2].y.assert_eq(2.0)
    a[99].y.assert_eq(99.0)

    b[0].y.assert_eq(1.0)
    b[1].y.assert_eq(2.0)

    a[3].y = 20.0
    b[1].y = 10.0
}

fn main() -> () {
    a = [Point {
        x:0.0,
        y:0.0,
        z:0.0,
    }; 100]
    a[0].y = 0.0
    a[1].y = 1.0
    a[2].y = 2.0
    a[99].y = 99.0
    slice_of_a = a[..]
    sub_slice_of_a1 = a[1..3]

    takes_slices(slice_of_a, sub_slice_of_a1)

    a[3].y.assert_eq(20.0)
    a[2].y.assert_eq(10.0)
}
`)
}

func TestReturnSliceFromFunc(t *testing.T) {
	t.Parallel()
	runMain(t, `
inline fn takes_slices(input: [f32]) -> (r: [f32]) {
    r = input
}

fn main() -> () {
    sl1 = [1.0; 100][..]
    sl = [1.0; 200][..]
    sl1 = takes_slices(sl)
    sl1[5].assert_eq(1.0)
    sl1.len().assert_eq(200)
}
`)
}

func TestUnsizedSlice(t *testing.T) {
	t.Parallel()
	mod := compile(t, `
fn modifies_an_array(arr: &[i64], len: i64) -> () {
    arr_slice = arr[..10]
    a = arr_slice[0]
    arr_slice[0] = 5
    arr_slice[9] = 5
    arr_slice.len().assert_eq(len)
}
`)
	arr := [10]int64{}
	fn(t, mod, "modifies_an_array").Call(&arr[0], int64(10))
	require.Equal(t, int64(5), arr[0])
	require.Equal(t, int64(5), arr[9])
	require.Equal(t, int64(0), arr[1])
}

func TestDirectArrayLiteral(t *testing.T) {
	t.Parallel()
	runMain(t, `
fn main() -> () {
    sl = [1.0, 2.0, 3.0][..]
    sl.len().assert_eq(3)
    sl[0].assert_eq(1.0)
    sl[1].assert_eq(2.0)
    sl[2].assert_eq(3.0)
}
`)
}

func TestPushOntoSlice(t *testing.T) {
	t.Parallel()
	runMain(t, `
fn main() -> () {
    arr = [0.0; 100]
    sl = arr[0..0]
    sl.cap().assert_eq(arr.len())
    sl.len().assert_eq(0)
    sl.push(1.0)
    sl.len().assert_eq(1)
    sl.push(2.0)
    sl.len().assert_eq(2)
    sl.pop().assert_eq(2.0)
    sl.len().assert_eq(1)
    sl.pop().assert_eq(1.0)
    sl.len().assert_eq(0)
    (sl.unsized())[0].assert_eq(arr[0])
    (sl.unsized())[1].assert_eq(arr[1])
}
`)
}

func TestPushPastCapacityTraps(t *testing.T) {
	t.Parallel()
	mod := compile(t, `
fn main() -> () {
    arr = [0.0; 2]
    sl = arr[0..0]
    sl.push(1.0)
    sl.push(2.0)
    sl.push(3.0)
}
`)
	main := fn(t, mod, "main")
	require.Panics(t, func() { main.Call() })
}

func TestPopEmptyTraps(t *testing.T) {
	t.Parallel()
	mod := compile(t, `
fn main() -> () {
    arr = [0.0; 2]
    sl = arr[0..0]
    sl.pop()
}
`)
	main := fn(t, mod, "main")
	require.Panics(t, func() { main.Call() })
}

func TestAppendToSlice(t *testing.T) {
	t.Parallel()
	runMain(t, `
fn main() -> () {
    arr = [2.0; 100]
    sl = arr[0..3]
    sl.append([1.0;3])
    sl.len().assert_eq(6)
    sl[2].assert_eq(2.0)
    sl[3].assert_eq(1.0)
    sl[4].assert_eq(1.0)
    sl[5].assert_eq(1.0)
    (sl[0..sl.len()+1])[6].assert_eq(2.0)
    sl.append([6.0,7.0,8.0][..])
    sl.len().assert_eq(9)
    sl[5].assert_eq(1.0)
    sl[6].assert_eq(6.0)
    sl[7].assert_eq(7.0)
    sl[8].assert_eq(8.0)
    (sl[0..sl.len()+1])[9].assert_eq(2.0)
}
`)
}

func TestAppendSliceOfStructs(t *testing.T) {
	t.Parallel()
	runMain(t, `
struct Point { x, y, z, }

fn main() -> () {
    arr = [Point { x: 0.0, y: 0.0, z: 0.0, }; 100]
    sl = arr[0..0]
    sl.len().assert_eq(0)
    to_append = [
        Point { x: 1.0, y: 2.0, z: 3.0, },
        Point { x: 4.0, y: 5.0, z: 6.0, },
        Point { x: 7.0, y: 8.0, z: 9.0, }
    ]
    sl.append(to_append)
    sl.len().assert_eq(3)
    sl[0].x.assert_eq(1.0)
    sl[0].y.assert_eq(2.0)
    sl[0].z.assert_eq(3.0)
    sl[1].x.assert_eq(4.0)
    sl[1].y.assert_eq(5.0)
    sl[1].z.assert_eq(6.0)
    sl[2].x.assert_eq(7.0)
    sl[2].y.assert_eq(8.0)
    sl[2].z.assert_eq(9.0)
}
`)
}

func TestReturnsASlice(t *testing.T) {
	t.Parallel()
	runMain(t, `
inline fn a_slice(a) -> (b: [f32]) {
    b = [a; 100][..]
}
fn main() -> () {
    b = a_slice(5.0)
    b[20].assert_eq(5.0)
}
`)
}

func TestSliceOfSlice(t *testing.T) {
	t.Parallel()
	runMain(t, `
fn main() -> () {
    arr = [0.0; 100]
    i = 0 while i < 100 {i += 1} : {
        arr[i] = i.f32()
    }
    sl = arr[10..20]
    sl2 = sl[5..]
    sl2[0].assert_eq(15.0)
    sl2.len().assert_eq(5)
    sl2.cap().assert_eq(85)
}
`)
}

func TestExternFuncSlice(t *testing.T) {
	t.Parallel()
	code := `
extern fn host_check_slice(a: [u8]) -> () {}

fn main() -> () {
    a = [0u8;1000][0..0]
    a.append("Hello")
    a.append(" ")
    a.append("World")
    i = 0u8
    while i < 32u8 {
        a.push(i + 32u8)
        i += 1u8
    }
    host_check_slice(a)
}
`
	called := false
	check := func(a sarus.Slice[byte]) {
		called = true
		require.Equal(t, int64(43), a.Len)
		require.Equal(t, int64(1000), a.Cap)
		require.Equal(t, "Hello World !\"#$%&'()*+,-./0123456789:;<=>?", string(a.Slice()))
	}

	mod := compile(t, code, sarus.WithSymbols(map[string]any{
		"host_check_slice": check,
	}))
	fn(t, mod, "main").Call()
	require.True(t, called)
}

func TestStrings(t *testing.T) {
	t.Parallel()
	runMain(t, `
fn main() -> () {
    "hello".find("l").assert_eq(2)
    "hello".find("x").assert_eq(-1)
    "ประเทศไทย中华Việt Nam".find("华").assert_eq(30)
    "hello".rfind("l").assert_eq(3)
    "hello".rfind("x").assert_eq(-1)
    "".starts_with("").assert_eq(true)
    "abc".starts_with("").assert_eq(true)
    "abc".starts_with("a").assert_eq(true)
    "a".starts_with("abc").assert_eq(false)
    "".starts_with("abc").assert_eq(false)
    "abc".ends_with("c").assert_eq(true)
    "a".ends_with("abc").assert_eq(false)
    "hello".len().assert_eq(5)
    "hello"[1..3].len().assert_eq(2)
    "hello".assert_eq("hello")
}
`)
}
