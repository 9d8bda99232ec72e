package metrics

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/network"
	"gonum.org/v1/gonum/graph/path"
	"gonum.org/v1/gonum/graph/simple"

	"github.com/talgya/office-diffusion/internal/agents"
)

// PageRank parameters.
const (
	PageRankDamping   = 0.85
	PageRankTolerance = 1e-8
)

// CentralityRow holds the network measures of one agent in the interaction graph.
type CentralityRow struct {
	Agent        agents.AgentID `json:"agent" db:"agent_id"`
	Degree       float64        `json:"degree" db:"degree"`
	Closeness    float64        `json:"closeness" db:"closeness"`
	Betweenness  float64        `json:"betweenness" db:"betweenness"`
	PageRank     float64        `json:"pagerank" db:"pagerank"`
	Interactions int            `json:"interactions" db:"interactions"`
}

// InteractionGraph collapses the log into an undirected graph. Repeated pairs
// become one edge; participants with no interactions become isolated nodes.
func InteractionGraph(records []Interaction, participants []agents.AgentID) *simple.UndirectedGraph {
	g := simple.NewUndirectedGraph()
	add := func(id agents.AgentID) {
		if g.Node(int64(id)) == nil {
			g.AddNode(simple.Node(id))
		}
	}
	for _, id := range participants {
		add(id)
	}
	for _, r := range records {
		add(r.A)
		add(r.B)
		if r.A != r.B {
			g.SetEdge(simple.Edge{F: simple.Node(r.A), T: simple.Node(r.B)})
		}
	}
	return g
}

// Centrality computes degree, closeness, betweenness and PageRank for every node
// of the interaction graph, normalised so values are comparable across graph
// sizes. Rows are ordered by agent ID. An empty graph yields no rows.
//
// Closeness uses the Wasserman-Faust form so disconnected components do not
// dominate: ((r-1)/sum) * ((r-1)/(n-1)) where r counts nodes reachable from v.
func Centrality(records []Interaction, participants []agents.AgentID) []CentralityRow {
	g := InteractionGraph(records, participants)
	nodes := graph.NodesOf(g.Nodes())
	n := len(nodes)
	if n == 0 {
		return nil
	}

	counts := make(map[agents.AgentID]int, n)
	for _, r := range records {
		counts[r.A]++
		if r.B != r.A {
			counts[r.B]++
		}
	}

	paths := path.DijkstraAllPaths(g)
	farness := network.Farness(g, paths)
	between := network.Betweenness(g)
	ranks := pageRank(g)

	rows := make([]CentralityRow, 0, n)
	for _, u := range nodes {
		uid := u.ID()
		row := CentralityRow{
			Agent:        agents.AgentID(uid),
			PageRank:     ranks[uid],
			Interactions: counts[agents.AgentID(uid)],
		}
		if n > 1 {
			row.Degree = float64(g.From(uid).Len()) / float64(n-1)

			reach := 0
			for _, v := range nodes {
				if v.ID() != uid && !math.IsInf(paths.Weight(v.ID(), uid), 0) {
					reach++
				}
			}
			if sum := farness[uid]; sum > 0 {
				row.Closeness = float64(reach) / sum * float64(reach) / float64(n-1)
			}
		}
		if n > 2 {
			// Brandes counts each unordered pair twice on undirected graphs.
			row.Betweenness = between[uid] / float64((n-1)*(n-2))
		}
		rows = append(rows, row)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Agent < rows[j].Agent })
	return rows
}

// pageRank runs PageRank over the symmetric directed form of g.
func pageRank(g *simple.UndirectedGraph) map[int64]float64 {
	d := simple.NewDirectedGraph()
	for _, u := range graph.NodesOf(g.Nodes()) {
		d.AddNode(u)
	}
	for _, e := range graph.EdgesOf(g.Edges()) {
		d.SetEdge(simple.Edge{F: e.From(), T: e.To()})
		d.SetEdge(simple.Edge{F: e.To(), T: e.From()})
	}
	return network.PageRank(d, PageRankDamping, PageRankTolerance)
}

// TopBy returns the k rows with the highest value of the given measure,
// ties broken by agent ID.
func TopBy(rows []CentralityRow, k int, measure func(CentralityRow) float64) []CentralityRow {
	sorted := append([]CentralityRow(nil), rows...)
	sort.SliceStable(sorted, func(i, j int) bool {
		mi, mj := measure(sorted[i]), measure(sorted[j])
		if mi != mj {
			return mi > mj
		}
		return sorted[i].Agent < sorted[j].Agent
	})
	if k >= 0 && k < len(sorted) {
		sorted = sorted[:k]
	}
	return sorted
}
