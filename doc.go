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

// Package sarus is a just-in-time compiled, statically typed language for
// embedding numeric and DSP code into host applications.
//
// A host hands [Compile] source text and gets back a [Module] of callable
// entry points with the platform C calling convention:
//
//	mod, err := sarus.Compile(`
//	fn main(a, b) -> (c) {
//	    c = a * (a - b) * (a * (2.0 + b))
//	}`)
//	if err != nil { … }
//	defer mod.Close()
//
//	main, _ := mod.Func("main")
//	out := sarus.Call[float32](main, float32(100), float32(200))
//
// The language is ahead-of-parse: the whole program is parsed, analyzed
// and emitted before the first call. User structs have C-compatible
// layout and every type publishes its size as read-only data
// ([Module.Data] of "T::size"). Methods dispatch on the receiver's type
// at compile time, `inline` and closure calls expand at their call
// sites, and slices are {ptr, len, cap} fat references over
// caller-owned memory.
//
// Compilation is strictly single-threaded per module and either succeeds
// or fails with an [*Error]; a compiled module is immutable and may be
// called from any goroutine.
package sarus
