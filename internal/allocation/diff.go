// internal/allocation/diff.go
package allocation

// HasChanges reports whether candidate and baseline describe different
// portfolios. Comparison is by ID, never by position: a shared ID with a
// different percentage is a change, and an ID present on one side only
// counts when its percentage is nonzero. Display metadata is ignored.
func HasChanges(candidate, baseline Set) bool {
	return changedAgainst(candidate, baseline) || changedAgainst(baseline, candidate)
}

func changedAgainst(a, b Set) bool {
	for _, entry := range a {
		other, ok := b.Get(entry.ID)
		if !ok {
			if entry.Percentage != 0 {
				return true
			}
			continue
		}
		if other.Percentage != entry.Percentage {
			return true
		}
	}
	return false
}
