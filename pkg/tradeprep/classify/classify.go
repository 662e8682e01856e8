// Package classify assigns industry codes to scraped publications in bulk
// and reports on the result.
package classify

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/cognicore/tradeprep/pkg/tradeprep/crosswalk"
	"github.com/cognicore/tradeprep/pkg/tradeprep/scrape"
	"github.com/cognicore/tradeprep/pkg/tradeprep/store"
)

// Classifier cleans and matches publication titles.
type Classifier struct {
	Cleaner *crosswalk.Cleaner
	Matcher *crosswalk.Matcher
	// Store receives the records when set.
	Store  store.Store
	Logger *zap.Logger
}

// Record classifies one publication.
func (c *Classifier) Record(pub scrape.Publication) store.Classification {
	cleaned := c.cleaner().Clean(pub.Title)
	m := c.Matcher.Match(cleaned)
	return store.Classification{
		PubNumber:         pub.PubNumber,
		Title:             pub.Title,
		CleanTitle:        cleaned,
		Date:              pub.Date,
		Subject:           pub.Subject,
		Type:              pub.Type,
		Link:              pub.Link,
		Code:              m.Code,
		IndustryTitle:     m.Title,
		Sector:            m.Sector,
		SectorName:        m.SectorName,
		Confidence:        m.Confidence,
		IsPrioritySector:  m.IsPrioritySector,
		Alternatives:      m.Alternatives,
		MatchedKeywords:   m.MatchedKeywords,
		UnmatchedKeywords: m.UnmatchedKeywords,
		TotalTokens:       m.TotalTokens,
	}
}

// Run classifies pubs in order and persists the records when a store is
// configured.
func (c *Classifier) Run(ctx context.Context, pubs []scrape.Publication) ([]store.Classification, error) {
	if c.Matcher == nil {
		return nil, fmt.Errorf("classify: matcher required")
	}
	logger := c.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	recs := make([]store.Classification, 0, len(pubs))
	for _, pub := range pubs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rec := c.Record(pub)
		if rec.Code == "" {
			logger.Debug("no industry match", zap.String("title", rec.CleanTitle))
		}
		recs = append(recs, rec)
	}

	if c.Store != nil {
		if err := c.Store.UpsertClassifications(ctx, recs); err != nil {
			return nil, fmt.Errorf("store classifications: %w", err)
		}
	}
	logger.Info("classified publications", zap.Int("records", len(recs)))
	return recs, nil
}

func (c *Classifier) cleaner() *crosswalk.Cleaner {
	if c.Cleaner == nil {
		return crosswalk.DefaultCleaner()
	}
	return c.Cleaner
}

// IndustryCount is the number of records assigned one industry.
type IndustryCount struct {
	Industry string
	Count    int
}

// Stats summarizes a batch.
type Stats struct {
	Total          int
	Matched        int
	Priority       int
	PriorityShare  float64
	MeanConfidence float64
	TopIndustries  []IndustryCount
}

// Summarize computes batch statistics. Unmatched records count toward the
// mean confidence with zero; TopIndustries lists at most top industries.
func Summarize(recs []store.Classification, top int) Stats {
	st := Stats{Total: len(recs)}
	if len(recs) == 0 {
		return st
	}

	var conf float64
	counts := make(map[string]int)
	for _, r := range recs {
		conf += r.Confidence
		if r.Code != "" {
			st.Matched++
			counts[r.IndustryTitle]++
		}
		if r.IsPrioritySector {
			st.Priority++
		}
	}
	st.MeanConfidence = conf / float64(len(recs))
	st.PriorityShare = float64(st.Priority) / float64(len(recs))

	for ind, n := range counts {
		st.TopIndustries = append(st.TopIndustries, IndustryCount{Industry: ind, Count: n})
	}
	sort.Slice(st.TopIndustries, func(i, j int) bool {
		a, b := st.TopIndustries[i], st.TopIndustries[j]
		if a.Count != b.Count {
			return a.Count > b.Count
		}
		return a.Industry < b.Industry
	})
	if top > 0 && len(st.TopIndustries) > top {
		st.TopIndustries = st.TopIndustries[:top]
	}
	return st
}

// Priority returns the records in a priority sector.
func Priority(recs []store.Classification) []store.Classification {
	out := make([]store.Classification, 0, len(recs))
	for _, r := range recs {
		if r.IsPrioritySector {
			out = append(out, r)
		}
	}
	return out
}
