// Friendship generation: a scale-free informal network grown by preferential
// attachment (Barabási–Albert).
package social

import (
	"errors"
	"fmt"
	"math/rand/v2"

	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/graphs/gen"
	"gonum.org/v1/gonum/graph/simple"

	"github.com/talgya/office-diffusion/internal/agents"
)

// ErrInvalidFriendships is returned for an unusable attachment parameter.
var ErrInvalidFriendships = errors.New("invalid friendship configuration")

// FriendshipGraph grows a preferential-attachment network over agents 1..population
// where each newcomer befriends m existing agents. m == 0 gives no friendships.
func FriendshipGraph(population, m int, rng *rand.Rand) (*Graph, error) {
	if m < 0 {
		return nil, fmt.Errorf("%w: new edges per node %d", ErrInvalidFriendships, m)
	}
	g := NewGraph(allIDs(population)...)
	if m == 0 {
		return g, nil
	}
	if population <= m {
		return nil, fmt.Errorf("%w: population %d must exceed new edges per node %d",
			ErrInvalidFriendships, population, m)
	}

	// gen numbers nodes from 0; shift onto agent IDs.
	ba := simple.NewUndirectedGraph()
	if err := gen.PreferentialAttachment(ba, population, m, rng); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFriendships, err)
	}
	for _, e := range graph.EdgesOf(ba.Edges()) {
		g.AddEdge(agents.AgentID(e.From().ID()+1), agents.AgentID(e.To().ID()+1))
	}
	return g, nil
}

// AssignFriends mirrors the friendship graph onto each agent's friend list.
func AssignFriends(g *Graph, ag []*agents.Agent) {
	index := make(map[agents.AgentID]*agents.Agent, len(ag))
	for _, a := range ag {
		index[a.ID] = a
	}
	for _, e := range g.Edges() {
		a, okA := index[e[0]]
		b, okB := index[e[1]]
		if okA && okB {
			agents.Befriend(a, b)
		}
	}
}
