// Package stoplist suggests crosswalk stopwords from taxonomy statistics:
// words that appear in many industry titles across many sectors say little
// about which industry a case title belongs to.
package stoplist

import (
	"math"
	"sort"
	"strings"

	"github.com/cognicore/tradeprep/pkg/tradeprep/crosswalk"
)

// Manager holds the current stoplist
type Manager struct {
	stops map[string]struct{}
}

// NewManager creates a manager seeded with the configured stopwords
func NewManager(initialStops []string) *Manager {
	stops := make(map[string]struct{}, len(initialStops))
	for _, s := range initialStops {
		stops[strings.ToLower(strings.TrimSpace(s))] = struct{}{}
	}
	return &Manager{stops: stops}
}

// IsStop checks if a token is a stopword
func (m *Manager) IsStop(token string) bool {
	_, ok := m.stops[token]
	return ok
}

// Add adds a token to the stoplist
func (m *Manager) Add(token string) {
	m.stops[token] = struct{}{}
}

// All returns all stopwords, sorted
func (m *Manager) All() []string {
	result := make([]string, 0, len(m.stops))
	for s := range m.stops {
		result = append(result, s)
	}
	sort.Strings(result)
	return result
}

// Stats describes how one keyword spreads over the taxonomy.
type Stats struct {
	Token string
	// DF is the number of industry codes whose title contains Token.
	DF        int
	DFPercent float64
	// SectorEntropy is the entropy of Token's codes over two-digit sectors,
	// normalized to [0,1] by the number of sectors in the taxonomy.
	SectorEntropy float64
}

// Collect computes keyword statistics over taxonomy rows. Each code counts
// once, with the title of its first row, as in crosswalk.Build.
func Collect(rows []crosswalk.Row) []Stats {
	tok := crosswalk.NewTokenizer(nil)

	seen := make(map[string]bool)
	sectors := make(map[string]bool)
	bySector := make(map[string]map[string]int)
	codes := 0
	for _, row := range rows {
		code := strings.TrimSpace(row.Code)
		title := strings.TrimSpace(row.Title)
		if code == "" || title == "" || seen[code] {
			continue
		}
		seen[code] = true
		codes++
		sector := code
		if len(code) >= 2 {
			sector = code[:2]
		}
		sectors[sector] = true

		words := make(map[string]bool)
		for _, kw := range tok.Keywords(title) {
			words[kw] = true
		}
		for kw := range words {
			if bySector[kw] == nil {
				bySector[kw] = make(map[string]int)
			}
			bySector[kw][sector]++
		}
	}

	out := make([]Stats, 0, len(bySector))
	for kw, counts := range bySector {
		df := 0
		for _, n := range counts {
			df += n
		}
		out = append(out, Stats{
			Token:         kw,
			DF:            df,
			DFPercent:     100 * float64(df) / float64(codes),
			SectorEntropy: entropy(counts, df, len(sectors)),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Token < out[j].Token })
	return out
}

func entropy(counts map[string]int, total, sectors int) float64 {
	if sectors <= 1 || total == 0 {
		return 0
	}
	var h float64
	for _, n := range counts {
		p := float64(n) / float64(total)
		h -= p * math.Log(p)
	}
	return h / math.Log(float64(sectors))
}

// Thresholds defines criteria for stopword identification
type Thresholds struct {
	MinDF         int     // appears under at least this many codes
	DFPercent     float64 // and in more than this share of codes
	SectorEntropy float64 // spread over sectors above this entropy
}

// DefaultThresholds returns the thresholds used for NAICS titles.
func DefaultThresholds() Thresholds {
	return Thresholds{
		MinDF:         3,
		DFPercent:     1.0,
		SectorEntropy: 0.5,
	}
}

// Candidate is a suggested stopword
type Candidate struct {
	Stats
	Score float64
}

// SuggestCandidates returns keywords meeting every threshold that are not
// already stopwords, best first.
func (m *Manager) SuggestCandidates(stats []Stats, th Thresholds) []Candidate {
	var candidates []Candidate
	for _, s := range stats {
		if m.IsStop(s.Token) {
			continue
		}
		if s.DF < th.MinDF || s.DFPercent <= th.DFPercent || s.SectorEntropy <= th.SectorEntropy {
			continue
		}
		candidates = append(candidates, Candidate{
			Stats: s,
			Score: (s.DFPercent/100.0 + s.SectorEntropy) / 2.0,
		})
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Score != candidates[j].Score {
			return candidates[i].Score > candidates[j].Score
		}
		return candidates[i].Token < candidates[j].Token
	})
	return candidates
}
