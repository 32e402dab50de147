// Package dag orders build tasks by their "runs after" edges.
package dag

import (
	"fmt"
	"strings"
)

type (
	// CycleError reports tasks that depend on each other in a loop.
	CycleError struct {
		Cycle []string
	}

	// UnknownNodeError is returned when a requested task was never added.
	UnknownNodeError struct {
		Name string
	}

	// Graph is a directed graph where an edge from A to B means A must
	// complete before B starts. Output order is deterministic and follows
	// insertion order among nodes at the same level.
	Graph struct {
		adjacency map[string][]string
		reverse   map[string][]string
		nodes     []string
		nodeSet   map[string]bool
	}
)

func (e *CycleError) Error() string {
	return fmt.Sprintf("dependency cycle detected: %s", strings.Join(e.Cycle, " -> "))
}

func (e *UnknownNodeError) Error() string {
	return fmt.Sprintf("unknown task %q", e.Name)
}

func New() *Graph {
	return &Graph{
		adjacency: make(map[string][]string),
		reverse:   make(map[string][]string),
		nodeSet:   make(map[string]bool),
	}
}

// AddNode adds a node; adding an existing node is a no-op.
func (g *Graph) AddNode(name string) {
	if g.nodeSet[name] {
		return
	}
	g.nodeSet[name] = true
	g.nodes = append(g.nodes, name)
}

// AddEdge records that from must run before to, adding both nodes if needed.
func (g *Graph) AddEdge(from, to string) {
	g.AddNode(from)
	g.AddNode(to)
	for _, n := range g.adjacency[from] {
		if n == to {
			return
		}
	}
	g.adjacency[from] = append(g.adjacency[from], to)
	g.reverse[to] = append(g.reverse[to], from)
}

func (g *Graph) Has(name string) bool { return g.nodeSet[name] }

// Nodes returns every node in insertion order.
func (g *Graph) Nodes() []string {
	return append([]string(nil), g.nodes...)
}

// Dependencies returns the direct prerequisites of name.
func (g *Graph) Dependencies(name string) []string {
	return append([]string(nil), g.reverse[name]...)
}

// TopologicalSort returns an execution order for the whole graph using
// Kahn's algorithm.
func (g *Graph) TopologicalSort() ([]string, error) {
	return g.sort(g.nodeSet)
}

// Plan returns the execution order needed to run target: target itself
// preceded by everything it transitively depends on.
func (g *Graph) Plan(target string) ([]string, error) {
	if !g.nodeSet[target] {
		return nil, &UnknownNodeError{Name: target}
	}
	needed := map[string]bool{}
	stack := []string{target}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if needed[n] {
			continue
		}
		needed[n] = true
		stack = append(stack, g.reverse[n]...)
	}
	return g.sort(needed)
}

func (g *Graph) sort(include map[string]bool) ([]string, error) {
	if len(include) == 0 {
		return nil, nil
	}

	inDegree := make(map[string]int, len(include))
	for node := range include {
		inDegree[node] = 0
	}
	for node := range include {
		for _, next := range g.adjacency[node] {
			if include[next] {
				inDegree[next]++
			}
		}
	}

	queue := make([]string, 0)
	for _, node := range g.nodes {
		if include[node] && inDegree[node] == 0 {
			queue = append(queue, node)
		}
	}

	var result []string
	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]
		result = append(result, node)

		for _, next := range g.adjacency[node] {
			if !include[next] {
				continue
			}
			inDegree[next]--
			if inDegree[next] == 0 {
				queue = append(queue, next)
			}
		}
	}

	if len(result) != len(inDegree) {
		var cycle []string
		for _, node := range g.nodes {
			if include[node] && inDegree[node] > 0 {
				cycle = append(cycle, node)
			}
		}
		return nil, &CycleError{Cycle: cycle}
	}
	return result, nil
}
