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

package scc_test

import (
	"fmt"
	"iter"
	"slices"
	"testing"

	"github.com/stretchr/testify/require"

	"buf.build/go/sarus/internal/scc"
)

func graph(edges map[string][]string) scc.Graph[string] {
	return func(n string) iter.Seq[string] {
		return slices.Values(edges[n])
	}
}

func TestAcyclicChain(t *testing.T) {
	t.Parallel()
	order, cycle := scc.Sort("Misc3", graph(map[string][]string{
		"Misc3": {"Misc2"},
		"Misc2": {"Misc"},
		"Misc":  {},
	}))
	require.Nil(t, cycle)
	// Leaves first: a member's layout is fixed before its container's.
	require.Equal(t, []string{"Misc", "Misc2", "Misc3"}, order)
}

func TestDiamond(t *testing.T) {
	t.Parallel()
	order, cycle := scc.Sort("Top", graph(map[string][]string{
		"Top":   {"Left", "Right"},
		"Left":  {"Base"},
		"Right": {"Base"},
		"Base":  {},
	}))
	require.Nil(t, cycle)
	require.Len(t, order, 4)
	require.Equal(t, "Base", order[0])
	require.Equal(t, "Top", order[3])
}

func TestSelfCycle(t *testing.T) {
	t.Parallel()
	_, cycle := scc.Sort("S", graph(map[string][]string{"S": {"S"}}))
	require.Equal(t, []string{"S"}, cycle)
}

func TestMutualCycle(t *testing.T) {
	t.Parallel()
	order, cycle := scc.Sort("C", graph(map[string][]string{
		"C": {"A"},
		"A": {"B"},
		"B": {"A"},
	}))
	require.ElementsMatch(t, []string{"A", "B"}, cycle)
	// The cycle stops the walk before anything containing it lays out.
	require.NotContains(t, order, "C")
}

func TestDeepChain(t *testing.T) {
	t.Parallel()
	// A containment chain deep enough that the traversal must not
	// recurse per node.
	const n = 200_000
	edges := map[string][]string{}
	for i := range n {
		edges[fmt.Sprint(i)] = []string{fmt.Sprint(i + 1)}
	}
	edges[fmt.Sprint(n)] = nil

	order, cycle := scc.Sort("0", graph(edges))
	require.Nil(t, cycle)
	require.Len(t, order, n+1)
	require.Equal(t, fmt.Sprint(n), order[0])
	require.Equal(t, "0", order[n])
}
