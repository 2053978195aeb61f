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

// Package sync2 contains concurrency helpers.
package sync2

import "sync"

// FramePool recycles fixed-size, zeroed byte buffers across goroutines.
//
// The reference backend keeps one per compiled function: every
// invocation borrows its frame here instead of allocating, and emitted
// code relies on stack slots starting zeroed, so buffers are cleared on
// the way back in rather than on the hot path out.
type FramePool struct {
	// Size is the buffer size in bytes. It must be set before the first
	// Get and not change afterwards.
	Size int

	impl sync.Pool
}

// Get returns a zeroed buffer of p.Size bytes, and a function that
// recycles it once the frame is dead.
//
// Use like this:
//
//	frame, drop := pool.Get()
//	defer drop()
func (p *FramePool) Get() (frame []byte, drop func()) {
	buf, _ := p.impl.Get().(*[]byte)
	if buf == nil {
		b := make([]byte, p.Size)
		buf = &b
	}

	return *buf, func() {
		clear(*buf)
		p.impl.Put(buf)
	}
}
