// Package social provides the organisational and friendship structures that gate
// information sharing. Both are static undirected graphs keyed by agent ID.
package social

import (
	"sort"

	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/traverse"

	"github.com/talgya/office-diffusion/internal/agents"
)

// Graph is a read-only undirected relation over agent IDs.
type Graph struct {
	g *simple.UndirectedGraph
}

// NewGraph returns an empty graph containing the given agents as nodes.
func NewGraph(ids ...agents.AgentID) *Graph {
	g := &Graph{g: simple.NewUndirectedGraph()}
	for _, id := range ids {
		g.addNode(id)
	}
	return g
}

func (g *Graph) addNode(id agents.AgentID) {
	if g.g.Node(int64(id)) == nil {
		g.g.AddNode(simple.Node(id))
	}
}

// AddEdge joins two agents. Self edges are ignored.
func (g *Graph) AddEdge(a, b agents.AgentID) {
	if a == b {
		return
	}
	g.g.SetEdge(simple.Edge{F: simple.Node(a), T: simple.Node(b)})
}

// HasEdge reports whether two agents are adjacent.
func (g *Graph) HasEdge(a, b agents.AgentID) bool {
	if g == nil {
		return false
	}
	return g.g.HasEdgeBetween(int64(a), int64(b))
}

// Neighbors returns the adjacent agents in ascending ID order.
func (g *Graph) Neighbors(id agents.AgentID) []agents.AgentID {
	if g.g.Node(int64(id)) == nil {
		return nil
	}
	var out []agents.AgentID
	for _, n := range graph.NodesOf(g.g.From(int64(id))) {
		out = append(out, agents.AgentID(n.ID()))
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Nodes returns every agent in the graph in ascending ID order.
func (g *Graph) Nodes() []agents.AgentID {
	var out []agents.AgentID
	for _, n := range graph.NodesOf(g.g.Nodes()) {
		out = append(out, agents.AgentID(n.ID()))
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// EdgeCount returns the number of undirected edges.
func (g *Graph) EdgeCount() int {
	return g.g.Edges().Len()
}

// Edges returns every edge once as an ordered pair (low, high), sorted.
func (g *Graph) Edges() [][2]agents.AgentID {
	var out [][2]agents.AgentID
	for _, e := range graph.EdgesOf(g.g.Edges()) {
		a, b := agents.AgentID(e.From().ID()), agents.AgentID(e.To().ID())
		if a > b {
			a, b = b, a
		}
		out = append(out, [2]agents.AgentID{a, b})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i][0] != out[j][0] {
			return out[i][0] < out[j][0]
		}
		return out[i][1] < out[j][1]
	})
	return out
}

// Undirected exposes the underlying gonum graph for analytics.
func (g *Graph) Undirected() graph.Undirected {
	return g.g
}

// Reachable returns the agents connected to id by any path, including id itself,
// in ascending order.
func (g *Graph) Reachable(id agents.AgentID) []agents.AgentID {
	start := g.g.Node(int64(id))
	if start == nil {
		return nil
	}
	var out []agents.AgentID
	bf := traverse.BreadthFirst{
		Visit: func(n graph.Node) { out = append(out, agents.AgentID(n.ID())) },
	}
	bf.Walk(g.g, start, nil)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Union returns a new graph holding every node and edge of the inputs.
func Union(graphs ...*Graph) *Graph {
	u := NewGraph()
	for _, g := range graphs {
		if g == nil {
			continue
		}
		for _, id := range g.Nodes() {
			u.addNode(id)
		}
		for _, e := range g.Edges() {
			u.AddEdge(e[0], e[1])
		}
	}
	return u
}
