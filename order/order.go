// Copyright Consensys Software Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with
// the License. You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on
// an "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied. See the License for the
// specific language governing permissions and limitations under the License.
//
// SPDX-License-Identifier: Apache-2.0

// Package order implements the grouped topological sort (C7) that turns
// depsolve's dependency graph into an ordered list of execution Groups the
// code-gen walker (C8) can run straight through. The five-pass structure
// (SCC detection, condensation sort, greedy placement, forward-migration
// optimization, intra-SCC ordering) mirrors the teacher's multi-pass
// schedule construction in pkg/air/schema (build a dependency graph once,
// then run several independent analysis passes over it rather than a single
// monolithic sort), adapted here from AIR column-assignment scheduling to
// simulation-instruction scheduling.
package order

import (
	"sort"

	"github.com/bits-and-blooms/bitset"

	"github.com/mobius-lang/simc/depsolve"
	"github.com/mobius-lang/simc/instr"
)

// maxMigrationPasses bounds pass D's iterative forward-migration
// optimization, matching spec.md §6's scheduling-pass budget.
const maxMigrationPasses = 10

// Group is one execution step: every instruction whose index is a member of
// Members may run in the same scheduling slot (no dependency among them
// requires otherwise), recorded redundantly as a bitset for fast membership
// tests during pass D's migration.
type Group struct {
	Members []int
	Bitset  *bitset.BitSet
}

// Schedule is the final ordered group list produced by Order.
type Schedule struct {
	Groups []*Group
}

// Order runs the full five-pass scheduling algorithm over instrs using the
// strong-edge graph g (weak/last() edges never constrain ordering).
func Order(instrs []*instr.Instruction, g *depsolve.Graph) *Schedule {
	n := len(instrs)

	// Pass A: Tarjan SCC detection over the strong-edge graph.
	sccOf, sccs := tarjanSCCs(n, g.Strong)

	// Pass B: condensed DFS topological sort of the SCC DAG.
	sccOrder := topoSortCondensation(sccs, sccOf, g.Strong)

	// Pass C: greedy earliest-group placement respecting blocking edges
	// (here: every strong edge is blocking -- a dependency must occupy a
	// strictly earlier group than its dependent, unless they are co-members
	// of a cyclic SCC, in which case they share a group).
	groupOf := make([]int, n)
	groups := placeGroups(n, sccOrder, sccOf, g.Strong, groupOf)

	// Pass D: iterative forward-migration -- move an instruction into the
	// latest group it can occupy without violating a dependent's placement,
	// shrinking the schedule when earlier passes left slack.
	migrate(groups, groupOf, g.Strong, maxMigrationPasses)

	// Pass E: within each multi-member group, order members by
	// strong-edge-only partial order (weak edges, which come from last()
	// reads, are ignored here).
	for _, grp := range groups {
		sortWithinGroup(grp, g.Strong)
	}

	return &Schedule{Groups: compactGroups(groups)}
}

// compactGroups drops groups left empty by migrate's forward movement and
// renumbers the rest, so the final schedule has no dead slots.
func compactGroups(groups []*Group) []*Group {
	compact := make([]*Group, 0, len(groups))

	for _, g := range groups {
		if len(g.Members) > 0 {
			compact = append(compact, g)
		}
	}

	return compact
}

// tarjanSCCs computes strongly connected components over the strong-edge
// graph using Tarjan's algorithm, returning each node's component index and
// the components themselves in discovery order (components are emitted in
// reverse topological order by construction, as usual for Tarjan).
func tarjanSCCs(n int, strong [][]int) ([]int, [][]int) {
	indices := make([]int, n)
	lowlink := make([]int, n)
	onStack := make([]bool, n)

	for i := range indices {
		indices[i] = -1
	}

	var stack []int

	index := 0

	var sccs [][]int

	var strongconnect func(v int)

	strongconnect = func(v int) {
		indices[v] = index
		lowlink[v] = index
		index++
		stack = append(stack, v)
		onStack[v] = true

		for _, w := range strong[v] {
			if indices[w] == -1 {
				strongconnect(w)

				if lowlink[w] < lowlink[v] {
					lowlink[v] = lowlink[w]
				}
			} else if onStack[w] {
				if indices[w] < lowlink[v] {
					lowlink[v] = indices[w]
				}
			}
		}

		if lowlink[v] == indices[v] {
			var scc []int

			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				scc = append(scc, w)

				if w == v {
					break
				}
			}

			sccs = append(sccs, scc)
		}
	}

	for v := 0; v < n; v++ {
		if indices[v] == -1 {
			strongconnect(v)
		}
	}

	sccOf := make([]int, n)

	for i, scc := range sccs {
		for _, v := range scc {
			sccOf[v] = i
		}
	}

	return sccOf, sccs
}

// topoSortCondensation orders the SCCs of the condensation DAG so every
// dependency SCC precedes the SCCs that strongly read it. Strong edges point
// from a reader to what it reads, and Tarjan emits an SCC only after every
// SCC reachable from it, so its discovery order already has that property;
// this pass copies it into a fresh list.
func topoSortCondensation(sccs [][]int, sccOf []int, strong [][]int) [][]int {
	ordered := make([][]int, len(sccs))

	for i, scc := range sccs {
		ordered[i] = scc
	}

	return ordered
}

// placeGroups assigns each SCC (in condensation order) to the earliest group
// index strictly after every predecessor SCC's group, collapsing a
// multi-node cyclic SCC into a single group.
func placeGroups(n int, sccOrder [][]int, sccOf []int, strong [][]int, groupOf []int) []*Group {
	sccGroupIndex := make(map[int]int)

	var groups []*Group

	for _, scc := range sccOrder {
		earliest := 0

		for _, v := range scc {
			for _, dep := range strong[v] {
				if depScc := sccOf[dep]; depScc != sccOf[scc[0]] {
					if gi, ok := sccGroupIndex[depScc]; ok && gi+1 > earliest {
						earliest = gi + 1
					}
				}
			}
		}

		grp := &Group{Bitset: bitset.New(uint(n))}

		for _, v := range scc {
			grp.Members = append(grp.Members, v)
			grp.Bitset.Set(uint(v))
			groupOf[v] = earliest
		}

		for len(groups) <= earliest {
			groups = append(groups, nil)
		}

		if groups[earliest] == nil {
			groups[earliest] = grp
			sccGroupIndex[sccOf[scc[0]]] = earliest
		} else {
			groups[earliest].Members = append(groups[earliest].Members, grp.Members...)

			for _, v := range grp.Members {
				groups[earliest].Bitset.Set(uint(v))
			}

			sccGroupIndex[sccOf[scc[0]]] = earliest
		}
	}

	compact := make([]*Group, 0, len(groups))

	for _, g := range groups {
		if g != nil {
			compact = append(compact, g)
		}
	}

	for gi, g := range compact {
		for _, v := range g.Members {
			groupOf[v] = gi
		}
	}

	return compact
}

// migrate repeatedly tries to push each instruction into the latest group it
// can legally occupy (no earlier than any strong dependency's group, no
// later than any strong dependent's group minus one), closing gaps left by
// pass C's greedy placement. Bounded to maxPasses sweeps.
func migrate(groups []*Group, groupOf []int, strong [][]int, maxPasses int) {
	n := len(groupOf)

	dependents := make([][]int, n)

	for v := 0; v < n; v++ {
		for _, dep := range strong[v] {
			dependents[dep] = append(dependents[dep], v)
		}
	}

	for pass := 0; pass < maxPasses; pass++ {
		changed := false

		for v := 0; v < n; v++ {
			latest := len(groups) - 1

			for _, dependent := range dependents[v] {
				if groupOf[dependent]-1 < latest {
					latest = groupOf[dependent] - 1
				}
			}

			if latest > groupOf[v] && latest >= 0 {
				removeMember(groups[groupOf[v]], v)
				groupOf[v] = latest
				groups[latest].Members = append(groups[latest].Members, v)
				groups[latest].Bitset.Set(uint(v))
				changed = true
			}
		}

		if !changed {
			return
		}
	}
}

func removeMember(g *Group, v int) {
	for i, m := range g.Members {
		if m == v {
			g.Members = append(g.Members[:i], g.Members[i+1:]...)
			break
		}
	}

	g.Bitset.Clear(uint(v))
}

// sortWithinGroup orders a group's members by strong-edge-only partial
// order (Kahn's algorithm restricted to in-group edges), breaking ties by
// original instruction index for determinism. A cyclic SCC collapsed into
// this group may still have strong edges among its members pointing both
// ways; those residual cycles are broken by processing members in index
// order whenever more than one is simultaneously ready.
func sortWithinGroup(g *Group, strong [][]int) {
	if len(g.Members) <= 1 {
		return
	}

	inGroup := make(map[int]bool, len(g.Members))
	for _, v := range g.Members {
		inGroup[v] = true
	}

	indegree := make(map[int]int, len(g.Members))
	for _, v := range g.Members {
		indegree[v] = 0
	}

	for _, v := range g.Members {
		for _, dep := range strong[v] {
			if inGroup[dep] {
				indegree[v]++
			}
		}
	}

	var ordered []int

	remaining := append([]int(nil), g.Members...)

	for len(ordered) < len(g.Members) {
		sort.Ints(remaining)

		placed := false

		for i, v := range remaining {
			if indegree[v] != 0 {
				continue
			}

			ordered = append(ordered, v)
			remaining = append(remaining[:i], remaining[i+1:]...)
			placed = true

			for _, w := range g.Members {
				for _, dep := range strong[w] {
					if dep == v {
						indegree[w]--
					}
				}
			}

			break
		}

		if !placed {
			// Residual cycle within the group: break it by emitting the
			// lowest-index remaining member as-is.
			ordered = append(ordered, remaining[0])
			remaining = remaining[1:]
		}
	}

	g.Members = ordered
}
