// Agent spawning: creates the initial workforce with hierarchy levels.
package agents

import (
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/distuv"
)

// Spawner creates agents for the simulation.
type Spawner struct {
	rng    *rand.Rand
	nextID AgentID
}

// NewSpawner creates an agent spawner with the given seed.
func NewSpawner(seed uint64) *Spawner {
	return &Spawner{
		rng:    rand.New(rand.NewPCG(seed, seed+300)),
		nextID: 1,
	}
}

// SpawnPopulation creates count agents with IDs continuing from the last batch.
// Levels follow an org-chart pyramid: each level up holds half as many people.
func (s *Spawner) SpawnPopulation(count, levels int, speed float64) ([]*Agent, error) {
	if count < 1 {
		return nil, fmt.Errorf("population must be positive, got %d", count)
	}
	if levels < 1 {
		return nil, fmt.Errorf("hierarchy levels must be positive, got %d", levels)
	}

	weights := make([]float64, levels)
	for k := range weights {
		weights[k] = math.Pow(2, float64(levels-1-k))
	}
	dist := distuv.NewCategorical(weights, s.rng)

	agents := make([]*Agent, 0, count)
	for i := 0; i < count; i++ {
		a := New(s.nextID, int(dist.Rand()))
		a.Speed = speed
		s.nextID++
		agents = append(agents, a)
	}
	return agents, nil
}
