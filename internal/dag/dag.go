// SPDX-License-Identifier: MPL-2.0

// Package dag holds the project-wide dependency graph between source units
// and the ordering operations the build derives from it.
package dag

import (
	"fmt"
	"slices"
	"strings"
)

type (
	// CycleError indicates that the graph contains a cycle, preventing topological ordering.
	CycleError struct {
		// Cycle contains the nodes that form the cycle (not necessarily all of them,
		// but enough to identify the problem).
		Cycle []string
	}

	// Graph is a directed dependency graph between source units.
	// An edge from A to B means B requires A, so A must be compiled before B.
	// Adjacency is therefore keyed by dependency and lists its dependents.
	Graph struct {
		// adjacency maps each dependency to the products that require it.
		adjacency map[string][]string
		// edgeSet collapses relations reported more than once.
		edgeSet map[[2]string]bool
		// nodes tracks all nodes in insertion order for deterministic output.
		nodes []string
		// nodeSet provides O(1) lookup for node existence.
		nodeSet map[string]bool
	}
)

func (e *CycleError) Error() string {
	return fmt.Sprintf("dependency cycle detected: %s", strings.Join(e.Cycle, " -> "))
}

// New creates an empty Graph.
func New() *Graph {
	return &Graph{
		adjacency: make(map[string][]string),
		edgeSet:   make(map[[2]string]bool),
		nodeSet:   make(map[string]bool),
	}
}

// AddNode adds a node to the graph. If the node already exists, this is a no-op.
func (g *Graph) AddNode(name string) {
	if g.nodeSet[name] {
		return
	}
	g.nodeSet[name] = true
	g.nodes = append(g.nodes, name)
}

// AddEdge records that product requires dep. Both nodes are implicitly added.
// Self-loops and repeated relations are dropped.
func (g *Graph) AddEdge(dep, product string) {
	g.AddNode(dep)
	g.AddNode(product)
	if dep == product {
		return
	}
	key := [2]string{dep, product}
	if g.edgeSet[key] {
		return
	}
	g.edgeSet[key] = true
	g.adjacency[dep] = append(g.adjacency[dep], product)
}

// Merge appends every node and edge of other into g.
func (g *Graph) Merge(other *Graph) {
	for _, node := range other.nodes {
		g.AddNode(node)
	}
	for _, dep := range other.nodes {
		for _, product := range other.adjacency[dep] {
			g.AddEdge(dep, product)
		}
	}
}

// HasNode reports whether name is part of the graph.
func (g *Graph) HasNode(name string) bool { return g.nodeSet[name] }

// Nodes returns all nodes in insertion order.
func (g *Graph) Nodes() []string { return slices.Clone(g.nodes) }

// Dependents returns the products that directly require dep.
func (g *Graph) Dependents(dep string) []string { return slices.Clone(g.adjacency[dep]) }

// EdgeCount returns the number of distinct dependency relations.
func (g *Graph) EdgeCount() int { return len(g.edgeSet) }

// IsDependent reports whether product transitively requires dep, i.e. whether
// dep must be compiled before product. A unit never depends on itself.
func (g *Graph) IsDependent(product, dep string) bool {
	if product == dep {
		return false
	}
	return g.reachable(dep)[product]
}

// reachable returns every node reachable from start by following
// dependency -> dependent edges. start is only included when it lies on a cycle.
func (g *Graph) reachable(start string) map[string]bool {
	visited := make(map[string]bool)
	stack := slices.Clone(g.adjacency[start])
	for len(stack) > 0 {
		node := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if visited[node] {
			continue
		}
		visited[node] = true
		for _, next := range g.adjacency[node] {
			if !visited[next] {
				stack = append(stack, next)
			}
		}
	}
	return visited
}

// Order returns files arranged so that every file comes after all the files it
// transitively requires, following edges through units outside the set as well.
// Files with no relation between them keep their given order.
// Returns CycleError if the requirements among files are circular.
func (g *Graph) Order(files []string) ([]string, error) {
	sub := New()
	for _, f := range files {
		sub.AddNode(f)
	}
	for _, dep := range files {
		reach := g.reachable(dep)
		if reach[dep] {
			return nil, &CycleError{Cycle: g.cycleThrough(dep)}
		}
		for _, product := range files {
			if reach[product] {
				sub.AddEdge(dep, product)
			}
		}
	}
	return sub.TopologicalSort()
}

// cycleThrough returns one path start -> ... -> start, found by breadth-first search.
func (g *Graph) cycleThrough(start string) []string {
	parent := map[string]string{}
	queue := []string{start}
	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]
		for _, next := range g.adjacency[node] {
			if next == start {
				path := []string{start}
				for n := node; n != start; n = parent[n] {
					path = append(path, n)
				}
				slices.Reverse(path[1:])
				return append(path, start)
			}
			if _, seen := parent[next]; !seen {
				parent[next] = node
				queue = append(queue, next)
			}
		}
	}
	return []string{start}
}

// TopologicalSort returns a valid execution order using Kahn's algorithm.
// Returns CycleError if the graph contains a cycle.
// The returned order is deterministic: nodes at the same topological level
// appear in the order they were first added to the graph.
func (g *Graph) TopologicalSort() ([]string, error) {
	if len(g.nodes) == 0 {
		return nil, nil
	}

	// Compute in-degrees.
	inDegree := make(map[string]int, len(g.nodes))
	for _, node := range g.nodes {
		inDegree[node] = 0
	}
	for _, neighbors := range g.adjacency {
		for _, neighbor := range neighbors {
			inDegree[neighbor]++
		}
	}

	// Seed the queue with nodes that have no incoming edges, in insertion order.
	queue := make([]string, 0)
	for _, node := range g.nodes {
		if inDegree[node] == 0 {
			queue = append(queue, node)
		}
	}

	var result []string
	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]
		result = append(result, node)

		for _, neighbor := range g.adjacency[node] {
			inDegree[neighbor]--
			if inDegree[neighbor] == 0 {
				queue = append(queue, neighbor)
			}
		}
	}

	if len(result) != len(g.nodes) {
		// Remaining nodes with non-zero in-degree form the cycle.
		var cycleNodes []string
		for _, node := range g.nodes {
			if inDegree[node] > 0 {
				cycleNodes = append(cycleNodes, node)
			}
		}
		return nil, &CycleError{Cycle: cycleNodes}
	}

	return result, nil
}
