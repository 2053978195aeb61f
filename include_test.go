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
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/tools/txtar"

	"buf.build/go/sarus"
)

// txtarLoader resolves includes against a txtar archive by base name.
func txtarLoader(t *testing.T, archive string) (sarus.CompileOption, *[]string) {
	t.Helper()
	ar := txtar.Parse([]byte(archive))
	files := map[string]string{}
	for _, f := range ar.Files {
		files[f.Name] = string(f.Data)
	}
	var loaded []string
	return sarus.WithIncludeLoader(func(path string) (string, error) {
		name := filepath.Base(path)
		src, ok := files[name]
		if !ok {
			return "", fmt.Errorf("no such file %q", name)
		}
		loaded = append(loaded, name)
		return src, nil
	}), &loaded
}

func TestInclude(t *testing.T) {
	t.Parallel()
	loader, loaded := txtarLoader(t, `
-- include_test.sarus --
fn add(a, b) -> (c) {
    c = a + b
}
`)
	runMain(t, `
include "./resources/include_test.sarus"

fn main() -> () {
    a = 5.0
    b = 6.0
    c = add(a, b)
    c.assert_eq(11.0)
}
`, loader, sarus.WithFile("test.sarus"))
	require.NotEmpty(t, *loaded)
}

func TestIncludeRedundant(t *testing.T) {
	t.Parallel()
	loader, _ := txtarLoader(t, `
-- include_test.sarus --
include "./include_test2.sarus"
fn add(a, b) -> (c) {
    c = mul(a, 1.0) + b
}
-- include_test2.sarus --
fn mul(a, b) -> (c) {
    c = a * b
}
`)
	// The second include of include_test2 is skipped; nothing is declared
	// twice.
	runMain(t, `
include "./resources/include_test.sarus"
include "./resources/include_test2.sarus" //Should be skipped

fn main() -> () {
    c = add(5.0, 6.0)
    c.assert_eq(11.0)
}
`, loader, sarus.WithFile("test.sarus"))
}

func TestIncludeFileTable(t *testing.T) {
	t.Parallel()
	loader, _ := txtarLoader(t, `
-- inc.sarus --
fn one() -> (r) {
    r = 1.0
}
`)
	prog, err := sarus.Parse(`
include "./inc.sarus"
fn main() -> () {
    one().assert_eq(1.0)
}
`, loader, sarus.WithFile("root.sarus"))
	require.NoError(t, err)
	require.Len(t, prog.Files(), 2)
	require.Equal(t, "root.sarus", filepath.Base(prog.Files()[0]))
	require.Equal(t, "inc.sarus", filepath.Base(prog.Files()[1]))
}
