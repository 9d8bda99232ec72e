// Team assignment: shuffles the workforce into balanced teams and builds the
// team graph (a clique per team).
package social

import (
	"errors"
	"fmt"
	"math/rand/v2"

	"gonum.org/v1/gonum/graph/graphs/gen"

	"github.com/talgya/office-diffusion/internal/agents"
)

// ErrInvalidTeams is returned when teams cannot be formed from the population.
var ErrInvalidTeams = errors.New("invalid team configuration")

// Team is a group of agents sharing a manager and goals.
type Team struct {
	ID      agents.TeamID    `json:"id"`
	Name    string           `json:"name"`
	Members []agents.AgentID `json:"members"`
}

// GenerateTeams assigns agents 1..population to teamCount teams. Every team gets
// minTeamSize members and the remainder is dealt round-robin, so sizes differ by at
// most one.
func GenerateTeams(population, teamCount, minTeamSize int, rng *rand.Rand) ([]Team, error) {
	switch {
	case teamCount < 1:
		return nil, fmt.Errorf("%w: team count %d", ErrInvalidTeams, teamCount)
	case minTeamSize < 1:
		return nil, fmt.Errorf("%w: minimum team size %d", ErrInvalidTeams, minTeamSize)
	case teamCount*minTeamSize > population:
		return nil, fmt.Errorf("%w: %d teams of at least %d exceed population %d",
			ErrInvalidTeams, teamCount, minTeamSize, population)
	}

	ids := make([]agents.AgentID, population)
	for i := range ids {
		ids[i] = agents.AgentID(i + 1)
	}
	rng.Shuffle(len(ids), func(i, j int) { ids[i], ids[j] = ids[j], ids[i] })

	sizes := make([]int, teamCount)
	for i := range sizes {
		sizes[i] = minTeamSize
	}
	for i := 0; i < population-teamCount*minTeamSize; i++ {
		sizes[i%teamCount]++
	}

	teams := make([]Team, teamCount)
	for i := range teams {
		members := append([]agents.AgentID(nil), ids[:sizes[i]]...)
		ids = ids[sizes[i]:]
		teams[i] = Team{
			ID:      agents.TeamID(i),
			Name:    fmt.Sprintf("Team%d", i+1),
			Members: members,
		}
	}
	return teams, nil
}

// TeamGraph links every pair of agents that share a team.
func TeamGraph(teams []Team, population int) *Graph {
	g := NewGraph(allIDs(population)...)
	for _, t := range teams {
		ids := make(gen.IDSet, len(t.Members))
		for i, m := range t.Members {
			ids[i] = int64(m)
		}
		gen.Complete(g.g, ids)
	}
	return g
}

// AssignTeams stamps team membership onto the agents.
func AssignTeams(teams []Team, ag []*agents.Agent) {
	index := make(map[agents.AgentID]*agents.Agent, len(ag))
	for _, a := range ag {
		index[a.ID] = a
	}
	for _, t := range teams {
		for _, m := range t.Members {
			if a, ok := index[m]; ok {
				a.TeamID = t.ID
			}
		}
	}
}

func allIDs(population int) []agents.AgentID {
	ids := make([]agents.AgentID, population)
	for i := range ids {
		ids[i] = agents.AgentID(i + 1)
	}
	return ids
}
