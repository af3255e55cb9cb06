// internal/allocation/types.go
package allocation

import (
	"fmt"
	"strings"
)

// Allocation is one portfolio category and its target weight in percent.
type Allocation struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Percentage int    `json:"percentage"`
}

// Set is an ordered collection of allocations keyed by ID. Order is preserved
// for display; correctness depends only on the ID -> percentage mapping.
type Set []Allocation

// Total returns the sum of all percentages.
func (s Set) Total() int {
	total := 0
	for _, a := range s {
		total += a.Percentage
	}
	return total
}

// Clone returns a deep copy of the set.
func (s Set) Clone() Set {
	if s == nil {
		return nil
	}
	out := make(Set, len(s))
	copy(out, s)
	return out
}

// Get returns the allocation with the given ID.
func (s Set) Get(id string) (Allocation, bool) {
	for _, a := range s {
		if a.ID == id {
			return a, true
		}
	}
	return Allocation{}, false
}

// Categories returns the IDs in set order.
func (s Set) Categories() []string {
	ids := make([]string, len(s))
	for i, a := range s {
		ids[i] = a.ID
	}
	return ids
}

// String renders the set compactly, e.g. "ai:15 meme:10 defi:75".
func (s Set) String() string {
	parts := make([]string, len(s))
	for i, a := range s {
		parts[i] = fmt.Sprintf("%s:%d", a.ID, a.Percentage)
	}
	return strings.Join(parts, " ")
}

// Percentages returns the weights in set order, positionally paired with
// Categories. This is the wire shape the portfolio contract expects.
func (s Set) Percentages() []int64 {
	pcts := make([]int64, len(s))
	for i, a := range s {
		pcts[i] = int64(a.Percentage)
	}
	return pcts
}
