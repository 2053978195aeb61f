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

package types_test

import (
	"reflect"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"buf.build/go/sarus/internal/types"
)

// layout is the comparable shape of a struct layout.
type layout struct {
	Size, Align int
	Offsets     []int
}

func goLayout(t reflect.Type) layout {
	l := layout{Size: int(t.Size()), Align: t.Align()}
	for i := range t.NumField() {
		l.Offsets = append(l.Offsets, int(t.Field(i).Offset))
	}
	return l
}

func sarusLayout(s *types.Struct) layout {
	l := layout{Size: s.Size(), Align: s.Align()}
	for _, f := range s.Fields {
		l.Offsets = append(l.Offsets, f.Offset)
	}
	return l
}

// The layout identity invariant: a declared struct is laid out
// bit-identically to the C layout a host compiler produces. Go uses the
// same natural-alignment rule for these field types, so reflect is the
// oracle.
func TestStructLayoutMatchesHost(t *testing.T) {
	t.Parallel()

	misc := types.NewStruct("Misc", []types.Field{
		{Name: "b1", Type: types.Bool},
		{Name: "b2", Type: types.Bool},
		{Name: "f1", Type: types.F64},
		{Name: "b3", Type: types.Bool},
		{Name: "i1", Type: types.I64},
		{Name: "b4", Type: types.Bool},
		{Name: "b5", Type: types.Bool},
	})
	type goMisc struct {
		B1, B2 bool
		F1     float64
		B3     bool
		I1     int64
		B4, B5 bool
	}

	misc2 := types.NewStruct("Misc2", []types.Field{
		{Name: "b1", Type: types.Bool},
		{Name: "m", Type: misc},
		{Name: "b2", Type: types.Bool},
		{Name: "b3", Type: types.Bool},
	})
	type goMisc2 struct {
		B1     bool
		M      goMisc
		B2, B3 bool
	}

	misc3 := types.NewStruct("Misc3", []types.Field{
		{Name: "b1", Type: types.Bool},
		{Name: "m2", Type: misc2},
		{Name: "f1", Type: types.F32},
		{Name: "b3", Type: types.Bool},
	})
	type goMisc3 struct {
		B1 bool
		M2 goMisc2
		F1 float32
		B3 bool
	}

	mixed := types.NewStruct("Mixed", []types.Field{
		{Name: "a", Type: types.F32},
		{Name: "b", Type: types.F32},
		{Name: "c", Type: types.Bool},
		{Name: "d", Type: types.I64},
	})
	type goMixed struct {
		A, B float32
		C    bool
		D    int64
	}

	arr := types.NewStruct("WithArr", []types.Field{
		{Name: "i", Type: types.I64},
		{Name: "a", Type: types.Bool},
		{Name: "arr", Type: &types.FixedArray{Elem: mixed, Len: 10}},
		{Name: "b", Type: types.Bool},
		{Name: "f", Type: types.F32},
	})
	type goWithArr struct {
		I   int64
		A   bool
		Arr [10]goMixed
		B   bool
		F   float32
	}

	cases := []struct {
		s  *types.Struct
		g  reflect.Type
	}{
		{misc, reflect.TypeOf(goMisc{})},
		{misc2, reflect.TypeOf(goMisc2{})},
		{misc3, reflect.TypeOf(goMisc3{})},
		{mixed, reflect.TypeOf(goMixed{})},
		{arr, reflect.TypeOf(goWithArr{})},
	}
	for _, tt := range cases {
		if diff := cmp.Diff(goLayout(tt.g), sarusLayout(tt.s)); diff != "" {
			t.Errorf("%s layout mismatch (-host +sarus):\n%s", tt.s.Name, diff)
		}
	}
}

func TestEnumLayout(t *testing.T) {
	t.Parallel()
	en := types.NewEnum("E", []types.EnumVariant{
		{Name: "a", Tag: 0},
		{Name: "b", Tag: 1, Payload: types.U8},
		{Name: "c", Tag: 2, Payload: types.F64},
	})
	require.Equal(t, 16, en.Size())
	require.Equal(t, 8, en.Align())

	empty := types.NewEnum("N", []types.EnumVariant{{Name: "only"}})
	require.Equal(t, 8, empty.Size())
}

func TestSliceAndRefSizes(t *testing.T) {
	t.Parallel()
	sl := &types.Slice{Elem: types.F32}
	require.Equal(t, 24, sl.Size())
	require.Equal(t, 8, sl.Align())

	un := &types.Unsized{Elem: types.F32}
	require.Equal(t, 8, un.Size())
}

func TestEqual(t *testing.T) {
	t.Parallel()
	a := types.NewStruct("A", []types.Field{{Name: "x", Type: types.F32}})
	b := types.NewStruct("A", []types.Field{{Name: "x", Type: types.F32}})
	c := types.NewStruct("C", []types.Field{{Name: "x", Type: types.F32}})
	// Structs are nominal.
	require.True(t, types.Equal(a, b))
	require.False(t, types.Equal(a, c))
	// Everything else is structural.
	require.True(t, types.Equal(&types.Slice{Elem: a}, &types.Slice{Elem: b}))
	require.False(t, types.Equal(&types.Slice{Elem: a}, &types.Slice{Elem: c}))
	require.True(t, types.Equal(
		&types.FixedArray{Elem: types.F32, Len: 3},
		&types.FixedArray{Elem: types.F32, Len: 3},
	))
	require.False(t, types.Equal(
		&types.FixedArray{Elem: types.F32, Len: 3},
		&types.FixedArray{Elem: types.F32, Len: 4},
	))
	require.False(t, types.Equal(types.F32, types.F64))
}
