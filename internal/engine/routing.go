package engine

import (
	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/iterator"
	"gonum.org/v1/gonum/graph/path"
	"gonum.org/v1/gonum/graph/simple"

	"github.com/talgya/office-diffusion/internal/office"
)

// floorGraph is the implicit complete graph over the floor's spaces, weighted by
// Euclidean distance. Node iteration follows SpaceID order so routing is
// reproducible.
type floorGraph struct {
	floor *office.Floor
	nodes []graph.Node
}

func newFloorGraph(f *office.Floor) *floorGraph {
	nodes := make([]graph.Node, f.Len())
	for i := range nodes {
		nodes[i] = simple.Node(i)
	}
	return &floorGraph{floor: f, nodes: nodes}
}

func (g *floorGraph) has(id int64) bool {
	return id >= 0 && id < int64(len(g.nodes))
}

func (g *floorGraph) Node(id int64) graph.Node {
	if !g.has(id) {
		return nil
	}
	return g.nodes[id]
}

func (g *floorGraph) Nodes() graph.Nodes {
	return iterator.NewOrderedNodes(g.nodes)
}

func (g *floorGraph) From(id int64) graph.Nodes {
	if !g.has(id) || len(g.nodes) < 2 {
		return graph.Empty
	}
	out := make([]graph.Node, 0, len(g.nodes)-1)
	for _, n := range g.nodes {
		if n.ID() != id {
			out = append(out, n)
		}
	}
	return iterator.NewOrderedNodes(out)
}

func (g *floorGraph) HasEdgeBetween(xid, yid int64) bool {
	return xid != yid && g.has(xid) && g.has(yid)
}

func (g *floorGraph) Edge(uid, vid int64) graph.Edge {
	return g.WeightedEdge(uid, vid)
}

func (g *floorGraph) WeightedEdge(uid, vid int64) graph.WeightedEdge {
	if !g.HasEdgeBetween(uid, vid) {
		return nil
	}
	w, _ := g.Weight(uid, vid)
	return simple.WeightedEdge{F: g.nodes[uid], T: g.nodes[vid], W: w}
}

func (g *floorGraph) Weight(xid, yid int64) (float64, bool) {
	if xid == yid {
		return 0, g.has(xid)
	}
	if !g.HasEdgeBetween(xid, yid) {
		return 0, false
	}
	a := g.floor.Spaces[xid].Position
	b := g.floor.Spaces[yid].Position
	return office.Distance(a, b), true
}

// Router plans distance-optimal routes between spaces. Shortest-path trees are
// cached per source since the floor never changes during a run.
type Router struct {
	g     *floorGraph
	trees map[office.SpaceID]path.Shortest
}

// NewRouter builds a router over the floor's complete distance graph.
func NewRouter(f *office.Floor) *Router {
	return &Router{g: newFloorGraph(f), trees: make(map[office.SpaceID]path.Shortest)}
}

// Route returns the hops from one space to another, excluding the start.
func (r *Router) Route(from, to office.SpaceID) []office.SpaceID {
	if from == to || !r.g.has(int64(from)) || !r.g.has(int64(to)) {
		return nil
	}
	tree, ok := r.trees[from]
	if !ok {
		tree = path.DijkstraFrom(r.g.nodes[from], r.g)
		r.trees[from] = tree
	}
	nodes, _ := tree.To(int64(to))
	if len(nodes) < 2 {
		return nil
	}
	hops := make([]office.SpaceID, 0, len(nodes)-1)
	for _, n := range nodes[1:] {
		hops = append(hops, office.SpaceID(n.ID()))
	}
	return hops
}

// RouteVia returns the hops from start through waypoint to target, excluding
// the start.
func (r *Router) RouteVia(start, waypoint, target office.SpaceID) []office.SpaceID {
	hops := r.Route(start, waypoint)
	if waypoint != target {
		hops = append(hops, r.Route(waypoint, target)...)
	}
	return hops
}
