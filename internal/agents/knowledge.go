package agents

import (
	"encoding/json"
	"sort"
)

// Knowledge is a grow-only set of opaque information markers.
// Markers are never removed.
type Knowledge struct {
	items map[string]struct{}
}

// NewKnowledge returns an empty knowledge set.
func NewKnowledge() Knowledge {
	return Knowledge{items: make(map[string]struct{})}
}

// Has reports whether the marker is known.
func (k Knowledge) Has(marker string) bool {
	_, ok := k.items[marker]
	return ok
}

// Add learns a marker. Returns true if it was new.
func (k *Knowledge) Add(marker string) bool {
	if k.items == nil {
		k.items = make(map[string]struct{})
	}
	if _, ok := k.items[marker]; ok {
		return false
	}
	k.items[marker] = struct{}{}
	return true
}

// Merge adds every marker of other. Returns true if anything was learned.
func (k *Knowledge) Merge(other Knowledge) bool {
	changed := false
	for m := range other.items {
		if k.Add(m) {
			changed = true
		}
	}
	return changed
}

// Len returns the number of known markers.
func (k Knowledge) Len() int {
	return len(k.items)
}

// Items returns the markers in sorted order.
func (k Knowledge) Items() []string {
	out := make([]string, 0, len(k.items))
	for m := range k.items {
		out = append(out, m)
	}
	sort.Strings(out)
	return out
}

// Equal reports whether both sets hold exactly the same markers.
func (k Knowledge) Equal(other Knowledge) bool {
	if len(k.items) != len(other.items) {
		return false
	}
	for m := range k.items {
		if !other.Has(m) {
			return false
		}
	}
	return true
}

// SubsetOf reports whether every marker of k is also in other.
func (k Knowledge) SubsetOf(other Knowledge) bool {
	for m := range k.items {
		if !other.Has(m) {
			return false
		}
	}
	return true
}

// Clone returns an independent copy.
func (k Knowledge) Clone() Knowledge {
	c := NewKnowledge()
	c.Merge(k)
	return c
}

// Share performs the symmetric merge of a diffusion event: both agents end up
// knowing the union of what either knew.
func Share(a, b *Agent) {
	a.Knowledge.Merge(b.Knowledge)
	b.Knowledge.Merge(a.Knowledge)
}

// MarshalJSON encodes the set as a sorted array.
func (k Knowledge) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.Items())
}

// UnmarshalJSON decodes a JSON array of markers.
func (k *Knowledge) UnmarshalJSON(b []byte) error {
	var items []string
	if err := json.Unmarshal(b, &items); err != nil {
		return err
	}
	*k = NewKnowledge()
	for _, m := range items {
		k.Add(m)
	}
	return nil
}
