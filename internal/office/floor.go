package office

import "fmt"

// Floor holds every space of the office, indexed by SpaceID.
type Floor struct {
	Spaces []*Space `json:"spaces"`
	Width  float64  `json:"width"`
	Height float64  `json:"height"`
}

// NewFloor wraps a set of spaces. Space IDs must match their slice index.
func NewFloor(spaces []*Space, width, height float64) (*Floor, error) {
	for i, s := range spaces {
		if s.ID != SpaceID(i) {
			return nil, fmt.Errorf("space at index %d has id %d", i, s.ID)
		}
		if s.Type >= NumSpaceTypes {
			return nil, fmt.Errorf("space %d has unknown type %d", s.ID, s.Type)
		}
		if s.Capacity < 1 {
			return nil, fmt.Errorf("space %d has non-positive capacity %d", s.ID, s.Capacity)
		}
	}
	return &Floor{Spaces: spaces, Width: width, Height: height}, nil
}

// Get returns the space with the given ID, or nil if out of range.
func (f *Floor) Get(id SpaceID) *Space {
	if id < 0 || int(id) >= len(f.Spaces) {
		return nil
	}
	return f.Spaces[id]
}

// Len returns the number of spaces.
func (f *Floor) Len() int {
	return len(f.Spaces)
}

// TotalCapacity sums the capacity of all spaces.
func (f *Floor) TotalCapacity() int {
	total := 0
	for _, s := range f.Spaces {
		total += s.Capacity
	}
	return total
}

// TypeCounts returns how many spaces exist of each type.
func (f *Floor) TypeCounts() [NumSpaceTypes]int {
	var counts [NumSpaceTypes]int
	for _, s := range f.Spaces {
		counts[s.Type]++
	}
	return counts
}

// String returns a summary of the floor.
func (f *Floor) String() string {
	return fmt.Sprintf("Floor(%.0fx%.0f, spaces=%d, capacity=%d)", f.Width, f.Height, f.Len(), f.TotalCapacity())
}
