package keyword

import "strings"

// Suggest respells query term by term using the indexed vocabulary. Known terms are kept;
// unknown ones are replaced by the closest term within editBudget edits, preferring
// smaller distances and then more frequent terms. ok is false when nothing changed.
func (x *Index) Suggest(query string) (string, bool, error) {
	terms := tokenize(query)
	if len(terms) == 0 {
		return "", false, nil
	}
	vocab, err := x.terms()
	if err != nil {
		return "", false, err
	}
	out := make([]string, len(terms))
	changed := false
	for i, term := range terms {
		out[i] = term
		if _, ok := vocab[term]; ok {
			continue
		}
		if best, ok := closest(term, vocab); ok {
			out[i] = best
			changed = true
		}
	}
	if !changed {
		return "", false, nil
	}
	return strings.Join(out, " "), true, nil
}

// editBudget allows one edit for short terms and two otherwise.
func editBudget(term string) int {
	if len([]rune(term)) <= 4 {
		return 1
	}
	return 2
}

func closest(term string, vocab map[string]uint64) (string, bool) {
	budget := editBudget(term)
	n := len([]rune(term))
	var (
		best     string
		bestDist = budget + 1
		bestFreq uint64
	)
	for cand, freq := range vocab {
		if d := len([]rune(cand)) - n; d > budget || -d > budget {
			continue
		}
		dist := Distance(term, cand)
		if dist > budget {
			continue
		}
		if dist < bestDist || (dist == bestDist && (freq > bestFreq || (freq == bestFreq && cand < best))) {
			best, bestDist, bestFreq = cand, dist, freq
		}
	}
	return best, best != ""
}

// Distance is the optimal string alignment distance between a and b: the number of
// single-rune insertions, deletions, substitutions and adjacent transpositions.
func Distance(a, b string) int {
	if a == b {
		return 0
	}
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}
	// three rows: two back for transpositions
	prev2 := make([]int, len(rb)+1)
	prev := make([]int, len(rb)+1)
	cur := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		cur[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			cur[j] = min(prev[j]+1, cur[j-1]+1, prev[j-1]+cost)
			if i > 1 && j > 1 && ra[i-1] == rb[j-2] && ra[i-2] == rb[j-1] {
				cur[j] = min(cur[j], prev2[j-2]+1)
			}
		}
		prev2, prev, cur = prev, cur, prev2
	}
	return prev[len(rb)]
}
