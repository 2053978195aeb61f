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

// Package scc orders the strongly connected components of a directed
// graph, using an iterative formulation of Tarjan's algorithm.
//
// The analyzer runs it over the "contains" graph of declared aggregate
// types. Layout needs exactly two answers from that graph: the order in
// which types can be laid out (a member's size must be known before its
// container's), and whether any type contains itself without
// indirection, which has no finite layout and is a compile error. Both
// come out of a single traversal: components are emitted leaves-first,
// and a component that is a cycle stops the walk.
package scc

import (
	"iter"

	"buf.build/go/sarus/internal/debug"
)

// Graph exposes the outgoing edges (i.e., dependencies) of a node.
type Graph[Node comparable] func(Node) iter.Seq[Node]

// Sort visits every node reachable from root and returns them in
// dependency order, leaves first, so that each node appears after
// everything it depends on.
//
// If the walk finds a strongly connected component with more than one
// member, or a node with an edge to itself, that component is returned
// as cycle and order holds only the nodes laid out before it.
func Sort[Node comparable](root Node, graph Graph[Node]) (order, cycle []Node) {
	s := &sorter[Node]{
		graph: graph,
		nodes: map[Node]*state{},
	}
	return s.run(root)
}

// state is the per-node bookkeeping of Tarjan's algorithm.
type state struct {
	index, low int
	onStack    bool
}

// frame is one suspended visit on the explicit traversal stack. The
// graphs here are user type declarations, so recursion depth is
// attacker-chosen; iterating keeps deeply nested (or maliciously deep)
// programs off the Go stack.
type frame[Node comparable] struct {
	node Node
	deps func() (Node, bool) // Pull-style iterator over remaining edges.
	stop func()
}

type sorter[Node comparable] struct {
	graph Graph[Node]
	nodes map[Node]*state

	index int
	stack []Node // Tarjan's component stack.
	calls []frame[Node]
}

func (s *sorter[Node]) run(root Node) (order, cycle []Node) {
	s.visit(root)

	for len(s.calls) > 0 {
		call := &s.calls[len(s.calls)-1]
		dep, ok := call.deps()
		if ok {
			m := s.nodes[dep]
			switch {
			case m == nil:
				s.visit(dep)
			case m.onStack:
				// A back edge into the current component.
				me := s.nodes[call.node]
				me.low = min(me.low, m.index)
				debug.Log(nil, "back", "%v->%v, low: %d", call.node, dep, me.low)
			}
			continue
		}

		// All edges of call.node are done; pop the visit.
		call.stop()
		me := s.nodes[call.node]
		s.calls = s.calls[:len(s.calls)-1]
		if len(s.calls) > 0 {
			up := s.nodes[s.calls[len(s.calls)-1].node]
			up.low = min(up.low, me.low)
		}

		if me.index != me.low {
			continue // Still inside a larger component.
		}

		// call.node is the root of a component: everything above it on
		// the component stack belongs to it.
		var members []Node
		for {
			n := len(s.stack) - 1
			member := s.stack[n]
			s.stack = s.stack[:n]
			s.nodes[member].onStack = false
			members = append(members, member)
			if member == call.node {
				break
			}
		}
		debug.Log(nil, "scc", "%v", members)

		if len(members) > 1 || s.selfEdge(members[0]) {
			for i := range s.calls {
				s.calls[i].stop()
			}
			return order, members
		}
		order = append(order, members[0])
	}
	return order, nil
}

// visit pushes a fresh traversal frame for node.
func (s *sorter[Node]) visit(node Node) {
	s.nodes[node] = &state{index: s.index, low: s.index, onStack: true}
	debug.Log(nil, "visit", "%v, index: %d", node, s.index)
	s.index++
	s.stack = append(s.stack, node)

	next, stop := iter.Pull(s.graph(node))
	s.calls = append(s.calls, frame[Node]{node: node, deps: next, stop: stop})
}

func (s *sorter[Node]) selfEdge(node Node) bool {
	for dep := range s.graph(node) {
		if dep == node {
			return true
		}
	}
	return false
}
