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

package sema

import (
	"fmt"

	"github.com/tiendc/go-deepcopy"

	"buf.build/go/sarus/internal/ast"
	"buf.build/go/sarus/internal/debug"
	"buf.build/go/sarus/internal/types"
)

// expandCall expands an inline function or closure call at the call site:
// it deep-copies the body, α-renames the callee's locals, and re-analyzes
// the copy against the scope of the call site, so that free names resolve
// to (and write through to) the caller's bindings.
//
// A nil expansion with a nil error means the call is recursive and must be
// emitted as a real call instead.
func (c *checker) expandCall(decl *ast.FuncDecl, isClosure bool, args []ast.Expr, pos ast.Pos) (*ast.Expansion, []types.Type, error) {
	for _, f := range c.expanding {
		if f == decl {
			debug.Log(nil, "expand", "%s recurses, falling back to a call", decl.Name)
			return nil, nil, nil
		}
	}
	if len(args) != len(decl.Params) {
		return nil, nil, errf(ErrType, pos, "%q takes %d argument(s), found %d",
			decl.Name, len(decl.Params), len(args))
	}

	cp := new(ast.FuncDecl)
	if err := deepcopy.Copy(cp, decl); err != nil {
		return nil, nil, errf(ErrType, pos, "cannot expand %q: %v", decl.Name, err)
	}

	// α-rename the callee's own names. Parameters and returns always
	// belong to the callee. For inline functions every assigned name is a
	// local too; a closure's other names belong to the scope it was
	// written in, which is exactly the scope chain of this call site.
	rename := map[string]string{}
	for i := range cp.Params {
		rename[cp.Params[i].Name] = c.freshName(cp.Params[i].Name)
	}
	for i := range cp.Returns {
		if _, ok := rename[cp.Returns[i].Name]; !ok {
			rename[cp.Returns[i].Name] = c.freshName(cp.Returns[i].Name)
		}
	}
	if !isClosure {
		for name := range assignedNames(cp.Body) {
			if _, ok := rename[name]; !ok {
				rename[name] = c.freshName(name)
			}
		}
	}
	for i := range cp.Params {
		cp.Params[i].Name = rename[cp.Params[i].Name]
	}
	for i := range cp.Returns {
		cp.Returns[i].Name = rename[cp.Returns[i].Name]
	}
	(&renamer{m: rename}).block(cp.Body)

	exp := &ast.Expansion{Body: cp.Body}

	// Bind parameters and returns in a fresh scope nested in the caller's.
	c.push()
	defer c.pop()

	for i, p := range cp.Params {
		want, err := c.resolveType(p.Type, pos)
		if err != nil {
			return nil, nil, err
		}
		if want.Kind() == types.KindClosure {
			cl := c.closureArg(args[i])
			if cl == nil {
				return nil, nil, errf(ErrType, pos,
					"argument %d of %q must be a closure", i+1, decl.Name)
			}
			c.bindClosure(p.Name, cl)
			exp.Params = append(exp.Params, "")
			continue
		}
		t, err := c.check(args[i], want)
		if err != nil {
			return nil, nil, err
		}
		if !types.Equal(t, want) {
			return nil, nil, errf(ErrType, pos,
				"argument %d of %q is %s, found %s", i+1, decl.Name, want, t)
		}
		c.bind(p.Name, t)
		exp.Params = append(exp.Params, p.Name)
	}
	for _, r := range cp.Returns {
		rt, err := c.resolveType(r.Type, pos)
		if err != nil {
			return nil, nil, err
		}
		c.bind(r.Name, rt)
		exp.Returns = append(exp.Returns, r.Name)
		exp.RetTypes = append(exp.RetTypes, rt)
	}

	c.expanding = append(c.expanding, decl)
	err := c.stmts(cp.Body)
	c.expanding = c.expanding[:len(c.expanding)-1]
	if err != nil {
		return nil, nil, err
	}
	return exp, exp.RetTypes, nil
}

func (c *checker) freshName(base string) string {
	c.fresh++
	return fmt.Sprintf("%s·%d", base, c.fresh)
}

// assignedNames collects every name that an assignment or closure
// declaration in the body could introduce. See assignedNamesWalk.
func assignedNames(b *ast.Block) map[string]bool {
	out := map[string]bool{}
	assignedNamesWalk(b, out)
	return out
}
