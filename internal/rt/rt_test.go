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

package rt_test

import (
	"sync"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/require"

	"buf.build/go/sarus/internal/rt"
	"buf.build/go/sarus/internal/xunsafe"
)

func TestArenaAllocZeroesAndAligns(t *testing.T) {
	t.Parallel()
	a := new(rt.Arena)
	p := a.Alloc(13)
	require.Zero(t, uintptr(unsafe.Pointer(p))%rt.Align)
	for _, b := range xunsafe.Slice(p, 13) {
		require.Zero(t, b)
	}

	q := a.Alloc(8)
	require.NotEqual(t, uintptr(unsafe.Pointer(p)), uintptr(unsafe.Pointer(q)))
}

func TestArenaMarkReset(t *testing.T) {
	t.Parallel()
	a := new(rt.Arena)
	_ = a.Alloc(64)

	m := a.Mark()
	p := a.Alloc(64)
	xunsafe.Slice(p, 64)[0] = 0xFF
	a.Reset(m)

	// The same memory comes back, zeroed on allocation.
	q := a.Alloc(64)
	require.Equal(t, uintptr(unsafe.Pointer(p)), uintptr(unsafe.Pointer(q)))
	require.Zero(t, xunsafe.Slice(q, 64)[0])
}

func TestArenaGrowsPastChunk(t *testing.T) {
	t.Parallel()
	a := new(rt.Arena)
	// Far more than one chunk's worth.
	var ptrs []uintptr
	for range 64 {
		p := a.Alloc(96 << 10)
		ptrs = append(ptrs, uintptr(unsafe.Pointer(p)))
	}
	seen := map[uintptr]bool{}
	for _, p := range ptrs {
		require.False(t, seen[p])
		seen[p] = true
	}
}

func TestDeepStackPerGoroutine(t *testing.T) {
	t.Parallel()
	d := rt.NewDeepStack()

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 100 {
				p, mark := d.Enter(4 << 10)
				buf := xunsafe.Slice(p, 4<<10)
				for i := range buf {
					buf[i] = 0xAB
				}
				d.Leave(mark)
			}
		}()
	}
	wg.Wait()
}

func TestTrapString(t *testing.T) {
	t.Parallel()
	require.Panics(t, func() { rt.Raise(rt.TrapSliceOverflow, "len %d", 3) })

	defer func() {
		r := recover()
		tr, ok := r.(rt.Trap)
		require.True(t, ok)
		require.Contains(t, tr.String(), "capacity")
	}()
	rt.Raise(rt.TrapSliceOverflow, "")
}
