package crosswalk

import (
	"sort"
)

const (
	// MaxAlternatives is the number of ranked candidates reported per match.
	MaxAlternatives = 3
	// MaxUnmatched caps the unmatched keyword diagnostics.
	MaxUnmatched = 10
)

// Alternative is a ranked candidate as reported in a MatchResult.
type Alternative struct {
	Code             string `json:"naics"`
	Title            string `json:"title"`
	IsPrioritySector bool   `json:"is_large"`
}

// MatchResult is the classification of one cleaned title. An empty Code
// means no keyword matched.
type MatchResult struct {
	Code              string        `json:"naics,omitempty"`
	Title             string        `json:"industry,omitempty"`
	Sector            string        `json:"sector,omitempty"`
	SectorName        string        `json:"sector_name,omitempty"`
	Confidence        float64       `json:"match_confidence"`
	IsPrioritySector  bool          `json:"is_large_industry"`
	Alternatives      []Alternative `json:"all_matches"`
	MatchedKeywords   []string      `json:"matched_keywords"`
	UnmatchedKeywords []string      `json:"unmatched_keywords"`
	TotalTokens       int           `json:"total_tokens"`
}

// Matched reports whether a best code was found.
func (r MatchResult) Matched() bool {
	return r.Code != ""
}

// Matcher scores titles against a shared read-only index.
type Matcher struct {
	idx *Index
}

// NewMatcher creates a matcher over idx.
func NewMatcher(idx *Index) *Matcher {
	return &Matcher{idx: idx}
}

// Index returns the underlying keyword index.
func (m *Matcher) Index() *Index {
	return m.idx
}

// Match classifies a cleaned title.
func (m *Matcher) Match(title string) MatchResult {
	tokens := m.idx.tokenizer.DistinctWords(title)
	cands, matched, unmatched := m.collect(tokens)

	res := MatchResult{
		MatchedKeywords:   matched,
		UnmatchedKeywords: capStrings(unmatched, MaxUnmatched),
		TotalTokens:       len(tokens),
		Alternatives:      []Alternative{},
	}
	if len(cands) == 0 {
		res.MatchedKeywords = []string{}
		return res
	}

	Rank(cands)
	best := cands[0]
	res.Code = best.Entry.Code
	res.Title = best.Entry.Title
	res.Sector = best.Entry.Sector
	res.SectorName = best.Entry.SectorName
	res.IsPrioritySector = best.Entry.IsPrioritySector
	res.Confidence = confidence(best.Score, len(tokens))

	for _, c := range cands[:min(MaxAlternatives, len(cands))] {
		res.Alternatives = append(res.Alternatives, Alternative{
			Code:             c.Entry.Code,
			Title:            c.Entry.Title,
			IsPrioritySector: c.Entry.IsPrioritySector,
		})
	}
	return res
}

// Candidates returns up to n ranked candidates for a cleaned title. A
// non-positive n returns all of them.
func (m *Matcher) Candidates(title string, n int) []Candidate {
	cands, _, _ := m.collect(m.idx.tokenizer.DistinctWords(title))
	Rank(cands)
	if n > 0 && len(cands) > n {
		cands = cands[:n]
	}
	return cands
}

// collect tallies candidates for a token set. Matched and unmatched tokens
// come back sorted.
func (m *Matcher) collect(tokens map[string]struct{}) ([]Candidate, []string, []string) {
	matched := make([]string, 0, len(tokens))
	unmatched := make([]string, 0, len(tokens))
	for tok := range tokens {
		if m.idx.Has(tok) {
			matched = append(matched, tok)
		} else {
			unmatched = append(unmatched, tok)
		}
	}
	sort.Strings(matched)
	sort.Strings(unmatched)

	byCode := make(map[string]*Candidate)
	var order []string
	for _, kw := range matched {
		for _, entry := range m.idx.buckets[kw] {
			c, ok := byCode[entry.Code]
			if !ok {
				c = &Candidate{Entry: entry}
				byCode[entry.Code] = c
				order = append(order, entry.Code)
			} else if entry.row < c.Entry.row {
				c.Entry = entry
			}
			c.Score++
			c.Keywords = append(c.Keywords, kw)
		}
	}

	cands := make([]Candidate, 0, len(order))
	for _, code := range order {
		cands = append(cands, *byCode[code])
	}
	return cands, matched, unmatched
}

func confidence(score, tokens int) float64 {
	if tokens == 0 {
		return 0
	}
	c := float64(score) / float64(tokens)
	if c > 1 {
		return 1
	}
	if c < 0 {
		return 0
	}
	return c
}

func capStrings(in []string, n int) []string {
	if len(in) > n {
		return in[:n]
	}
	return in
}
