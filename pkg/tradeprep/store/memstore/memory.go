package memstore

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/cognicore/tradeprep/pkg/tradeprep/internalerr"
	"github.com/cognicore/tradeprep/pkg/tradeprep/scrape"
	"github.com/cognicore/tradeprep/pkg/tradeprep/store"
)

// Store is an in-memory implementation of store.Store for tests and
// one-off runs.
type Store struct {
	mu sync.RWMutex

	pubs     []scrape.Publication
	pubIndex map[pubKey]int

	classes    []store.Classification
	classIndex map[pubKey]int

	adjudications []store.Adjudication
	summaries     map[string]store.Summary
	stages        map[string][]byte
}

type pubKey struct {
	number string
	title  string
}

// New creates a new in-memory store.
func New() *Store {
	return &Store{
		pubIndex:   make(map[pubKey]int),
		classIndex: make(map[pubKey]int),
		summaries:  make(map[string]store.Summary),
		stages:     make(map[string][]byte),
	}
}

// Close implements store.Store.
func (s *Store) Close() error { return nil }

// UpsertPublications implements store.Store.
func (s *Store) UpsertPublications(_ context.Context, pubs []scrape.Publication) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range pubs {
		k := pubKey{p.PubNumber, p.Title}
		if i, ok := s.pubIndex[k]; ok {
			s.pubs[i] = p
			continue
		}
		s.pubIndex[k] = len(s.pubs)
		s.pubs = append(s.pubs, p)
	}
	return nil
}

// ListPublications implements store.Store.
func (s *Store) ListPublications(context.Context) ([]scrape.Publication, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]scrape.Publication(nil), s.pubs...), nil
}

// UpsertClassifications implements store.Store.
func (s *Store) UpsertClassifications(_ context.Context, recs []store.Classification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range recs {
		r = copyClassification(r)
		k := pubKey{r.PubNumber, r.Title}
		if i, ok := s.classIndex[k]; ok {
			s.classes[i] = r
			continue
		}
		s.classIndex[k] = len(s.classes)
		s.classes = append(s.classes, r)
	}
	return nil
}

// ListClassifications implements store.Store.
func (s *Store) ListClassifications(_ context.Context, priorityOnly bool) ([]store.Classification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []store.Classification
	for _, r := range s.classes {
		if priorityOnly && !r.IsPrioritySector {
			continue
		}
		out = append(out, copyClassification(r))
	}
	return out, nil
}

// InsertAdjudication implements store.Store.
func (s *Store) InsertAdjudication(_ context.Context, a store.Adjudication) error {
	if a.ID == "" {
		return fmt.Errorf("%w: adjudication id required", internalerr.ErrInvalidInput)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	a.Candidates = append([]string(nil), a.Candidates...)
	s.adjudications = append(s.adjudications, a)
	return nil
}

// ListAdjudications implements store.Store.
func (s *Store) ListAdjudications(context.Context) ([]store.Adjudication, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := append([]store.Adjudication(nil), s.adjudications...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// UpsertSummary implements store.Store.
func (s *Store) UpsertSummary(_ context.Context, sum store.Summary) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.summaries[sum.Path] = sum
	return nil
}

// GetSummary implements store.Store.
func (s *Store) GetSummary(_ context.Context, path string) (store.Summary, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sum, ok := s.summaries[path]
	return sum, ok, nil
}

// Load implements the summarize stage cache.
func (s *Store) Load(_ context.Context, key, stage string, v any) (bool, error) {
	s.mu.RLock()
	data, ok := s.stages[key+"/"+stage]
	s.mu.RUnlock()
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, err
	}
	return true, nil
}

// Save implements the summarize stage cache.
func (s *Store) Save(_ context.Context, key, stage string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stages[key+"/"+stage] = data
	return nil
}

func copyClassification(r store.Classification) store.Classification {
	r.Alternatives = append(r.Alternatives[:0:0], r.Alternatives...)
	r.MatchedKeywords = append([]string(nil), r.MatchedKeywords...)
	r.UnmatchedKeywords = append([]string(nil), r.UnmatchedKeywords...)
	return r
}
