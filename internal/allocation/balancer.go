// internal/allocation/balancer.go
package allocation

import "math"

// Rebalance redistributes percentages so the set totals exactly 100 while
// leaving every locked entry untouched. Locked entries are typically the
// categories an advisor suggestion already pinned.
//
// A set that already totals 100 is returned unchanged. Otherwise the
// difference is spread evenly over the unlocked entries with a positive
// weight, rounded to the nearest percent and clamped to [0, 100]; any
// rounding residue lands on the largest adjustable entry. If nothing is
// adjustable the single largest entry absorbs the whole difference.
func Rebalance(set Set, locked map[string]bool) Set {
	currentTotal := set.Total()
	if currentTotal == 100 {
		return set
	}

	balanced := set.Clone()

	adjustable := make([]int, 0, len(balanced))
	for i, a := range balanced {
		if !locked[a.ID] && a.Percentage > 0 {
			adjustable = append(adjustable, i)
		}
	}

	diff := 100 - currentTotal

	if len(adjustable) == 0 {
		// Nothing adjustable: push the whole difference onto the largest
		// entry, never letting it go negative.
		largest := largestIndex(balanced)
		if largest >= 0 {
			balanced[largest].Percentage = max(0, balanced[largest].Percentage+diff)
		}
		return balanced
	}

	perEntry := float64(diff) / float64(len(adjustable))
	for _, i := range adjustable {
		next := int(math.Round(float64(balanced[i].Percentage) + perEntry))
		balanced[i].Percentage = clampPct(next)
	}

	// Rounding can leave the total off by a few percent; the largest
	// adjustable entries absorb the residue.
	if residual := 100 - balanced.Total(); residual != 0 {
		applyResidual(balanced, adjustable, residual)
	}

	return balanced
}

// applyResidual adds residual to the largest adjustable entry, spilling any
// part that would drive it negative onto the next largest.
func applyResidual(set Set, adjustable []int, residual int) {
	remaining := residual
	taken := make(map[int]bool, len(adjustable))
	for remaining != 0 {
		idx := -1
		for _, i := range adjustable {
			if taken[i] {
				continue
			}
			if idx < 0 || set[i].Percentage > set[idx].Percentage {
				idx = i
			}
		}
		if idx < 0 {
			return
		}
		taken[idx] = true

		next := set[idx].Percentage + remaining
		if next < 0 {
			remaining = next
			set[idx].Percentage = 0
			continue
		}
		set[idx].Percentage = next
		return
	}
}

// largestIndex returns the index of the entry with the highest percentage.
func largestIndex(set Set) int {
	best := -1
	for i := range set {
		if best < 0 || set[i].Percentage > set[best].Percentage {
			best = i
		}
	}
	return best
}

func clampPct(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
