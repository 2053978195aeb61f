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

package rt

import (
	"github.com/timandy/routine"
)

// DeepStackThreshold is the default frame size above which a function's
// prologue switches its frame onto the deep stack.
const DeepStackThreshold = 64 << 10

// DeepStack is the alternate linear stack region a module binds its
// large-frame functions to.
//
// Hosts may call into a module from several threads at once, so the region
// is goroutine-local: each calling goroutine lazily gets its own arena. The
// arenas live as long as the module.
type DeepStack struct {
	tls routine.ThreadLocal[*Arena]
}

// NewDeepStack returns an empty deep stack.
func NewDeepStack() *DeepStack {
	return &DeepStack{
		tls: routine.NewThreadLocalWithInitial(func() *Arena { return new(Arena) }),
	}
}

// Enter switches the calling goroutine onto the deep stack and allocates a
// frame of the given size. The returned mark must be handed to [Leave] in
// the epilogue, including on early returns and traps.
func (d *DeepStack) Enter(frame int) (*byte, Mark) {
	a := d.tls.Get()
	m := a.Mark()
	return a.Alloc(frame), m
}

// Leave restores the deep stack to its state before the matching [Enter].
func (d *DeepStack) Leave(m Mark) {
	d.tls.Get().Reset(m)
}
