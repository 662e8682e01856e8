package crosswalk

import (
	"sort"
	"strings"
)

// Row is one line of the taxonomy source: a classification code and its title.
type Row struct {
	Code  string
	Title string
}

// IndustryEntry is an immutable taxonomy entry shared by every keyword
// bucket that references it.
type IndustryEntry struct {
	Code             string `json:"code"`
	Title            string `json:"title"`
	Sector           string `json:"sector,omitempty"`
	SectorName       string `json:"sector_name,omitempty"`
	IsPrioritySector bool   `json:"is_priority_sector"`

	// row is the ordinal of the taxonomy row the entry was built from.
	row int
}

// BuildStats describes what happened while building an index.
type BuildStats struct {
	Rows     int // rows offered to Build
	Skipped  int // rows dropped for a missing code or title
	Entries  int // distinct codes indexed
	Keywords int // distinct keywords indexed
}

// Index maps keywords to the industry entries whose titles contain them.
// It is built once and never mutated, so it is safe for concurrent readers.
type Index struct {
	tokenizer *Tokenizer
	buckets   map[string][]IndustryEntry
	// entries holds the first row of every code in taxonomy order.
	entries    []IndustryEntry
	similarity *similarityModel
	stats      BuildStats
}

// BuildOptions configures index construction.
type BuildOptions struct {
	Stopwords []string
	// PrioritySectors maps a two-character sector code to its display name.
	PrioritySectors map[string]string
}

// Build constructs a keyword index from taxonomy rows. Rows with an empty
// code or title are skipped and counted in the stats.
func Build(rows []Row, opts BuildOptions) *Index {
	idx := &Index{
		tokenizer: NewTokenizer(opts.Stopwords),
		buckets:   make(map[string][]IndustryEntry),
	}
	idx.stats.Rows = len(rows)

	codes := make(map[string]struct{})
	for i, row := range rows {
		code := strings.TrimSpace(row.Code)
		title := strings.ToLower(strings.TrimSpace(row.Title))
		if code == "" || title == "" {
			idx.stats.Skipped++
			continue
		}

		entry := IndustryEntry{Code: code, Title: title, row: i}
		if len(code) >= 2 {
			entry.Sector = code[:2]
			if name, ok := opts.PrioritySectors[entry.Sector]; ok {
				entry.SectorName = name
				entry.IsPrioritySector = true
			}
		}

		for _, kw := range idx.tokenizer.Keywords(title) {
			idx.add(kw, entry)
		}
		if _, seen := codes[code]; !seen {
			idx.entries = append(idx.entries, entry)
		}
		codes[code] = struct{}{}
	}
	idx.similarity = newSimilarityModel(idx.tokenizer, idx.entries)

	idx.stats.Entries = len(codes)
	idx.stats.Keywords = len(idx.buckets)
	return idx
}

// add registers entry under keyword unless the bucket already holds its code.
func (idx *Index) add(keyword string, entry IndustryEntry) {
	bucket := idx.buckets[keyword]
	for _, existing := range bucket {
		if existing.Code == entry.Code {
			return
		}
	}
	idx.buckets[keyword] = append(bucket, entry)
}

// Lookup returns a copy of the entries indexed under keyword.
func (idx *Index) Lookup(keyword string) []IndustryEntry {
	bucket, ok := idx.buckets[keyword]
	if !ok {
		return nil
	}
	out := make([]IndustryEntry, len(bucket))
	copy(out, bucket)
	return out
}

// Has reports whether keyword is indexed.
func (idx *Index) Has(keyword string) bool {
	_, ok := idx.buckets[keyword]
	return ok
}

// Keywords returns every indexed keyword in lexicographic order.
func (idx *Index) Keywords() []string {
	out := make([]string, 0, len(idx.buckets))
	for kw := range idx.buckets {
		out = append(out, kw)
	}
	sort.Strings(out)
	return out
}

// Entries returns a copy of the indexed entries, one per code, in taxonomy
// order.
func (idx *Index) Entries() []IndustryEntry {
	out := make([]IndustryEntry, len(idx.entries))
	copy(out, idx.entries)
	return out
}

// Stats returns the build statistics.
func (idx *Index) Stats() BuildStats {
	return idx.stats
}

// Tokenizer returns the tokenizer the index was built with.
func (idx *Index) Tokenizer() *Tokenizer {
	return idx.tokenizer
}
