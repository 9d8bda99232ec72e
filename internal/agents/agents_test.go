package agents

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/office-diffusion/internal/office"
)

func TestKnowledgeMergeIsMonotonic(t *testing.T) {
	a := NewKnowledge()
	a.Add("x")
	b := NewKnowledge()
	b.Add("y")

	before := a.Clone()
	assert.True(t, a.Merge(b))
	assert.True(t, before.SubsetOf(a))
	assert.Equal(t, []string{"x", "y"}, a.Items())

	// Merging again learns nothing.
	assert.False(t, a.Merge(b))
}

func TestShareIsSymmetric(t *testing.T) {
	x := New(1, 0)
	y := New(2, 0)
	x.Knowledge.Add(SeedMarker)
	y.Knowledge.Add("gossip")

	Share(x, y)
	assert.True(t, x.Knowledge.Equal(y.Knowledge))
	assert.Equal(t, 2, x.Knowledge.Len())

	// Identical sets: no-op.
	Share(x, y)
	assert.Equal(t, 2, y.Knowledge.Len())
}

func TestKnowledgeJSON(t *testing.T) {
	k := NewKnowledge()
	k.Add("b")
	k.Add("a")
	raw, err := json.Marshal(k)
	require.NoError(t, err)
	assert.JSONEq(t, `["a","b"]`, string(raw))

	var back Knowledge
	require.NoError(t, json.Unmarshal(raw, &back))
	assert.True(t, back.Equal(k))
}

func TestBefriend(t *testing.T) {
	a := New(1, 0)
	b := New(5, 0)
	c := New(3, 0)
	Befriend(a, b)
	Befriend(a, c)
	Befriend(b, a)
	Befriend(a, a)

	assert.Equal(t, []AgentID{3, 5}, a.Friends)
	assert.Equal(t, []AgentID{1}, b.Friends)
	assert.True(t, c.IsFriend(1))
}

func TestRoute(t *testing.T) {
	a := New(1, 0)
	assert.True(t, a.IsIdle())

	a.SetRoute([]office.SpaceID{4, 2, 7})
	assert.Equal(t, office.SpaceID(4), a.Target)
	a.PopHop()
	assert.Equal(t, office.SpaceID(2), a.Target)
	a.PopHop()
	a.PopHop()
	assert.True(t, a.IsIdle())

	a.SetRoute([]office.SpaceID{1})
	a.ClearRoute()
	assert.True(t, a.IsIdle())
	assert.Empty(t, a.Path)
}

func TestSpawnPopulation(t *testing.T) {
	s := NewSpawner(42)
	pop, err := s.SpawnPopulation(200, 3, 1.5)
	require.NoError(t, err)
	require.Len(t, pop, 200)

	perLevel := make([]int, 3)
	for i, a := range pop {
		assert.Equal(t, AgentID(i+1), a.ID)
		assert.False(t, a.HasLocation())
		assert.Equal(t, 1.5, a.Speed)
		require.GreaterOrEqual(t, a.Level, 0)
		require.Less(t, a.Level, 3)
		perLevel[a.Level]++
	}
	// Pyramid: juniors outnumber seniors.
	assert.Greater(t, perLevel[0], perLevel[2])

	more, err := s.SpawnPopulation(1, 1, 1)
	require.NoError(t, err)
	assert.Equal(t, AgentID(201), more[0].ID)
	assert.Zero(t, more[0].Level)

	_, err = s.SpawnPopulation(0, 1, 1)
	assert.Error(t, err)
	_, err = s.SpawnPopulation(1, 0, 1)
	assert.Error(t, err)
}
