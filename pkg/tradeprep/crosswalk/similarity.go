package crosswalk

import (
	"math"
	"sort"
)

// termVector is an L2-normalized TF-IDF vector.
type termVector map[string]float64

// similarityModel holds TF-IDF vectors of the taxonomy titles. It is fitted
// once at build time and read concurrently afterwards.
type similarityModel struct {
	idf     map[string]float64
	vectors []termVector // parallel to Index.entries
}

func newSimilarityModel(tok *Tokenizer, entries []IndustryEntry) *similarityModel {
	docs := make([][]string, len(entries))
	df := make(map[string]int)
	for i, e := range entries {
		docs[i] = tok.Terms(e.Title)
		seen := make(map[string]bool, len(docs[i]))
		for _, w := range docs[i] {
			if !seen[w] {
				seen[w] = true
				df[w]++
			}
		}
	}

	// Smoothed idf: ln((1+n)/(1+df)) + 1.
	n := float64(len(entries))
	m := &similarityModel{
		idf:     make(map[string]float64, len(df)),
		vectors: make([]termVector, len(entries)),
	}
	for w, d := range df {
		m.idf[w] = math.Log((1+n)/(1+float64(d))) + 1
	}
	for i, terms := range docs {
		m.vectors[i] = m.vector(terms)
	}
	return m
}

// vector weights raw term counts by idf. Terms outside the taxonomy
// vocabulary are dropped.
func (m *similarityModel) vector(terms []string) termVector {
	v := make(termVector, len(terms))
	for _, w := range terms {
		if idf, ok := m.idf[w]; ok {
			v[w] += idf
		}
	}
	var norm float64
	for _, x := range v {
		norm += x * x
	}
	if norm == 0 {
		return v
	}
	norm = math.Sqrt(norm)
	for w := range v {
		v[w] /= norm
	}
	return v
}

func (v termVector) dot(o termVector) float64 {
	keys := make([]string, 0, len(v))
	for w := range v {
		keys = append(keys, w)
	}
	sort.Strings(keys)
	var sum float64
	for _, w := range keys {
		sum += v[w] * o[w]
	}
	return sum
}

// SimilarEntry is a taxonomy entry scored by text similarity to a title.
type SimilarEntry struct {
	Entry      IndustryEntry
	Similarity float64
}

// Similar ranks every taxonomy entry by TF-IDF cosine similarity to title
// and returns the top n (all when n is non-positive). Ties keep taxonomy
// order, so entries sharing no term with the title still fill the result
// after those that do.
func (m *Matcher) Similar(title string, n int) []SimilarEntry {
	model := m.idx.similarity
	q := model.vector(m.idx.tokenizer.Terms(title))

	out := make([]SimilarEntry, len(m.idx.entries))
	for i, e := range m.idx.entries {
		sim := q.dot(model.vectors[i])
		out[i] = SimilarEntry{Entry: e, Similarity: math.Round(sim*1e9) / 1e9}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Similarity > out[j].Similarity
	})
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}
