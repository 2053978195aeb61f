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
	"io"
	"os"

	"buf.build/go/sarus/internal/rt"
)

// CompileOption is a configuration setting for [Compile], [Parse] and
// [CompileProgram].
type CompileOption struct{ apply func(*config) }

type config struct {
	file      string
	deepStack bool
	threshold int
	stdlib    bool
	writer    io.Writer
	symbols   map[string]any
	importer  func(*Program, *Linker)
	loader    func(path string) (string, error)
}

func defaultConfig() config {
	return config{
		file:      "main.sarus",
		deepStack: true,
		threshold: rt.DeepStackThreshold,
		stdlib:    true,
		writer:    os.Stdout,
		loader: func(path string) (string, error) {
			b, err := os.ReadFile(path)
			return string(b), err
		},
	}
}

// WithFile names the root source file. It anchors relative include paths
// and appears in diagnostics and the file-index table.
func WithFile(path string) CompileOption {
	return CompileOption{func(c *config) { c.file = path }}
}

// WithDeepStack turns the deep stack on or off for the whole module.
//
// With it on (the default), any function whose static frame exceeds the
// threshold has its frame placed on a pre-reserved linear region instead
// of the OS stack, so loops that re-enter large prologues cannot
// overflow.
func WithDeepStack(on bool) CompileOption {
	return CompileOption{func(c *config) { c.deepStack = on }}
}

// WithDeepStackThreshold sets the frame size, in bytes, above which a
// function moves to the deep stack. The default is 64 KiB.
func WithDeepStackThreshold(bytes int) CompileOption {
	return CompileOption{func(c *config) { c.threshold = bytes }}
}

// WithoutStdlib compiles without registering the numeric standard
// library (math methods, constants, print and assert builtins).
func WithoutStdlib() CompileOption {
	return CompileOption{func(c *config) { c.stdlib = false }}
}

// WithWriter redirects the print and println builtins. The default is
// os.Stdout.
func WithWriter(w io.Writer) CompileOption {
	return CompileOption{func(c *config) { c.writer = w }}
}

// WithSymbols supplies host symbols for extern functions, by name.
//
// A symbol is a Go function taking and returning the Go shadows of the
// extern's signature: float32/float64/int64/bool/uint8 for scalars,
// [Slice] for sized slices, unsafe.Pointer for aggregates and opaque
// references.
func WithSymbols(symbols map[string]any) CompileOption {
	return CompileOption{func(c *config) {
		if c.symbols == nil {
			c.symbols = map[string]any{}
		}
		for k, v := range symbols {
			c.symbols[k] = v
		}
	}}
}

// WithImporter installs an importer hook, invoked during setup with the
// parsed program and the linker. The hook can inspect metadata and
// register host symbols; an extern fn with a matching name resolves to
// that symbol, and instantiation fails if any extern stays unresolved.
func WithImporter(hook func(*Program, *Linker)) CompileOption {
	return CompileOption{func(c *config) { c.importer = hook }}
}

// WithIncludeLoader overrides how `include` directives read files. The
// default reads from the filesystem. Paths are canonicalized before the
// loader runs and before deduplication.
func WithIncludeLoader(load func(path string) (string, error)) CompileOption {
	return CompileOption{func(c *config) { c.loader = load }}
}
