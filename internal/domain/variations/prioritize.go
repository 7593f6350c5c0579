package variations

// addedLetterShare caps inserted-letter candidates at budget/addedLetterShare.
const addedLetterShare = 5

// Prioritize fills a budget with the priority domains first and then walks the
// type buckets in Priority order. Candidates keep their generation order inside
// a bucket. A budget <= 0 disables truncation.
func Prioritize(cands, priority []Candidate, budget int) []Candidate {
	out := make([]Candidate, 0, len(priority)+len(cands))
	seen := make(map[string]struct{}, len(priority)+len(cands))
	full := func() bool { return budget > 0 && len(out) >= budget }
	push := func(c Candidate) {
		if _, dup := seen[c.Domain]; dup {
			return
		}
		seen[c.Domain] = struct{}{}
		out = append(out, c)
	}

	for _, c := range priority {
		if full() {
			return out
		}
		push(c)
	}

	buckets := make(map[Type][]Candidate)
	for _, c := range cands {
		buckets[c.Type] = append(buckets[c.Type], c)
	}
	for _, t := range Priority {
		items := buckets[t]
		if t == AddedLetter && budget > 0 {
			limit := budget / addedLetterShare
			if limit < 1 {
				limit = 1
			}
			if len(items) > limit {
				items = items[:limit]
			}
		}
		for _, c := range items {
			if full() {
				return out
			}
			push(c)
		}
	}
	return out
}
