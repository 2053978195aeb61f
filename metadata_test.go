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
	"gopkg.in/yaml.v3"

	"buf.build/go/sarus"
)

// Metadata bodies are opaque to the compiler; this host chooses YAML.
type nodeMeta struct {
	Description string `yaml:"description"`
	Inputs      map[string]struct {
		Default     float32 `yaml:"default"`
		Description string  `yaml:"description"`
	} `yaml:"inputs"`
}

func TestMetadata(t *testing.T) {
	t.Parallel()
	code := `
@ add_node node
description: "add two numbers!"
inputs:
  a: {default: 0.0, description: "1st number"}
  b: {default: 0.0, description: "2nd number"}
@
fn add_node (a, b) -> (c) {
    c = a + b
}

fn main() -> () {
    add_node(1.0, 2.0).assert_eq(3.0)
}
`
	prog, err := sarus.Parse(code)
	require.NoError(t, err)

	mds := prog.Metadata()
	require.Len(t, mds, 1)
	require.Equal(t, []string{"add_node", "node"}, mds[0].Head)

	var meta nodeMeta
	require.NoError(t, yaml.Unmarshal([]byte(mds[0].Body), &meta))
	require.Equal(t, "add two numbers!", meta.Description)
	require.Equal(t, "1st number", meta.Inputs["a"].Description)

	// Metadata never affects semantics.
	mod, err := sarus.CompileProgram(prog)
	require.NoError(t, err)
	defer mod.Close()
	require.Len(t, mod.Metadata(), 1)

	main, err := mod.Func("main")
	require.NoError(t, err)
	main.Call()
}

func TestSrcLineAcrossMetadata(t *testing.T) {
	t.Parallel()
	runMain(t, `
@ head
body line
@
fn main() -> () {
    src_line().assert_eq(6)
}
`)
}
