package resolver

import (
	"errors"
	"sort"

	"stac-validator/types/dataclasses"
)

var ErrCyclicGraph = errors.New("schema references form a cycle")

// Edge is a $ref from one document to another.
type Edge struct {
	From    string `json:"from"`
	To      string `json:"to"`
	Pointer string `json:"pointer"`
	Ref     string `json:"ref"`
}

// Graph is the document level reference graph below a root schema.
type Graph struct {
	Root  string                                 `json:"root"`
	Nodes map[string]*dataclasses.SchemaDocument `json:"-"`
	Edges []Edge                                 `json:"edges"`
	// Order lists the documents breadth first from Root
	Order []string `json:"order"`
}

func newGraph(root string) *Graph {
	return &Graph{
		Root:  root,
		Nodes: make(map[string]*dataclasses.SchemaDocument),
		Edges: make([]Edge, 0),
		Order: make([]string, 0),
	}
}

func (g *Graph) addNode(uri string, document *dataclasses.SchemaDocument) {
	if _, found := g.Nodes[uri]; found {
		return
	}
	g.Nodes[uri] = document
	g.Order = append(g.Order, uri)
}

func (g *Graph) addEdge(edge Edge) {
	g.Edges = append(g.Edges, edge)
}

// Adjacent returns the documents uri references, sorted and without repeats.
func (g *Graph) Adjacent(uri string) []string {
	seen := map[string]bool{}
	targets := []string{}
	for _, edge := range g.Edges {
		if edge.From == uri && !seen[edge.To] {
			seen[edge.To] = true
			targets = append(targets, edge.To)
		}
	}
	sort.Strings(targets)
	return targets
}

// Cycles returns each reference cycle once, as the path of documents from
// the first document of the cycle back to it.
func (g *Graph) Cycles() [][]string {
	const (
		unvisited = iota
		active
		done
	)

	state := map[string]int{}
	stack := []string{}
	cycles := [][]string{}

	var visit func(uri string)
	visit = func(uri string) {
		state[uri] = active
		stack = append(stack, uri)

		for _, next := range g.Adjacent(uri) {
			switch state[next] {
			case unvisited:
				visit(next)
			case active:
				for index := len(stack) - 1; index >= 0; index-- {
					if stack[index] == next {
						cycle := append([]string{}, stack[index:]...)
						cycles = append(cycles, append(cycle, next))
						break
					}
				}
			}
		}

		stack = stack[:len(stack)-1]
		state[uri] = done
	}

	for _, uri := range g.Order {
		if state[uri] == unvisited {
			visit(uri)
		}
	}

	return cycles
}

func (g *Graph) IsAcyclic() bool {
	return len(g.Cycles()) == 0
}

// TopologicalOrder lists every document after the documents it references.
func (g *Graph) TopologicalOrder() ([]string, error) {
	if !g.IsAcyclic() {
		return nil, ErrCyclicGraph
	}

	visited := map[string]bool{}
	order := make([]string, 0, len(g.Nodes))

	var visit func(uri string)
	visit = func(uri string) {
		visited[uri] = true
		for _, next := range g.Adjacent(uri) {
			if !visited[next] {
				visit(next)
			}
		}
		order = append(order, uri)
	}

	for _, uri := range g.Order {
		if !visited[uri] {
			visit(uri)
		}
	}

	return order, nil
}
