package mapping

// MarkConflicts re-scans a record collection for duplicate source keys
// and sets the warning flag on every valid record whose non-empty source
// key is shared by at least one other valid record. Distinct keys driving
// the same output control are not conflicts: multiple inputs may legally
// feed one output, their values combine via maximum at evaluation time.
// Returns the identities of records whose warning flag changed.
func MarkConflicts(records []*Record) []int64 {
	counts := make(map[string]int, len(records))
	for _, r := range records {
		if r.IsValid() {
			counts[r.SourceKey]++
		}
	}

	var changed []int64
	for _, r := range records {
		warn := r.IsValid() && counts[r.SourceKey] > 1
		if warn != r.HasWarning {
			r.HasWarning = warn
			changed = append(changed, r.Identity())
		}
	}
	return changed
}
