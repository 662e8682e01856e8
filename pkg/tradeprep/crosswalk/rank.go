package crosswalk

import "sort"

// Candidate is a code reached by at least one matched keyword.
type Candidate struct {
	Entry IndustryEntry
	// Score is the number of distinct input keywords that resolve to the code.
	Score int
	// Keywords are the matched keywords behind Score, sorted.
	Keywords []string
}

// Compare orders candidates best first:
//
//	priority sector > higher score > longer code > code ascending
//
// The last key only breaks ties between distinct codes of equal length so
// the order is total.
func Compare(a, b Candidate) int {
	if a.Entry.IsPrioritySector != b.Entry.IsPrioritySector {
		if a.Entry.IsPrioritySector {
			return -1
		}
		return 1
	}
	if a.Score != b.Score {
		if a.Score > b.Score {
			return -1
		}
		return 1
	}
	if la, lb := len(a.Entry.Code), len(b.Entry.Code); la != lb {
		if la > lb {
			return -1
		}
		return 1
	}
	switch {
	case a.Entry.Code < b.Entry.Code:
		return -1
	case a.Entry.Code > b.Entry.Code:
		return 1
	}
	return 0
}

// Rank sorts candidates in place, best first.
func Rank(cands []Candidate) {
	sort.SliceStable(cands, func(i, j int) bool {
		return Compare(cands[i], cands[j]) < 0
	})
}
