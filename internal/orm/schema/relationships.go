// Package schema provides reference graph analysis between document classes
package schema

import (
	"fmt"
	"sort"
	"strings"
)

// RefGraph is the graph of references between classes. Cycles are legal
// (self references, parent and child back references); the graph only
// reports them.
type RefGraph struct {
	nodes []string
	edges map[string][]string // class -> referenced classes
}

// NewRefGraph builds the reference graph of the given classes
func NewRefGraph(classes []*Class) *RefGraph {
	g := &RefGraph{edges: make(map[string][]string)}
	for _, c := range classes {
		g.nodes = append(g.nodes, c.Name())
		for _, f := range c.Metadata().Fields.Refs() {
			if !contains(g.edges[c.Name()], f.Target) {
				g.edges[c.Name()] = append(g.edges[c.Name()], f.Target)
			}
		}
	}
	return g
}

// References returns the classes referenced by name
func (g *RefGraph) References(name string) []string {
	return append([]string(nil), g.edges[name]...)
}

// ReferencedBy returns the classes that reference name, sorted
func (g *RefGraph) ReferencedBy(name string) []string {
	var out []string
	for from, targets := range g.edges {
		if contains(targets, name) {
			out = append(out, from)
		}
	}
	sort.Strings(out)
	return out
}

// DetectCycles returns every reference cycle found by a depth-first walk
func (g *RefGraph) DetectCycles() [][]string {
	var cycles [][]string
	visited := make(map[string]bool)
	onStack := make(map[string]bool)

	var dfs func(node string, path []string)
	dfs = func(node string, path []string) {
		visited[node] = true
		onStack[node] = true
		path = append(path, node)

		for _, next := range g.edges[node] {
			if !visited[next] {
				dfs(next, path)
				continue
			}
			if onStack[next] {
				for i, n := range path {
					if n == next {
						cycle := make([]string, len(path)-i)
						copy(cycle, path[i:])
						cycles = append(cycles, cycle)
						break
					}
				}
			}
		}

		onStack[node] = false
	}

	for _, node := range g.nodes {
		if !visited[node] {
			dfs(node, nil)
		}
	}
	return cycles
}

// FormatCycles formats cycles for display
func FormatCycles(cycles [][]string) string {
	var b strings.Builder
	for i, cycle := range cycles {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(fmt.Sprintf("  Cycle %d: %s -> %s", i+1, strings.Join(cycle, " -> "), cycle[0]))
	}
	return b.String()
}
