package store

import (
	"context"
	"time"

	"github.com/cognicore/tradeprep/pkg/tradeprep/crosswalk"
	"github.com/cognicore/tradeprep/pkg/tradeprep/scrape"
)

// Store persists scraped publications, classifications, adjudications,
// summaries and pipeline stage outputs.
type Store interface {
	Close() error

	// Publications, keyed by (pub number, title)
	UpsertPublications(ctx context.Context, pubs []scrape.Publication) error
	ListPublications(ctx context.Context) ([]scrape.Publication, error)

	// Classifications, keyed like publications
	UpsertClassifications(ctx context.Context, recs []Classification) error
	ListClassifications(ctx context.Context, priorityOnly bool) ([]Classification, error)

	// Adjudications
	InsertAdjudication(ctx context.Context, a Adjudication) error
	ListAdjudications(ctx context.Context) ([]Adjudication, error)

	// Summaries, keyed by document path
	UpsertSummary(ctx context.Context, s Summary) error
	GetSummary(ctx context.Context, path string) (Summary, bool, error)

	// Stage cache for the summarize pipeline
	Load(ctx context.Context, key, stage string, v any) (bool, error)
	Save(ctx context.Context, key, stage string, v any) error
}

// Classification is the keyword match of one publication title.
type Classification struct {
	PubNumber         string                  `json:"pub_number"`
	Title             string                  `json:"title"`
	CleanTitle        string                  `json:"clean_title"`
	Date              string                  `json:"date"`
	Subject           string                  `json:"subject"`
	Type              string                  `json:"type"`
	Link              string                  `json:"link"`
	Code              string                  `json:"naics"`
	IndustryTitle     string                  `json:"industry"`
	Sector            string                  `json:"sector"`
	SectorName        string                  `json:"sector_name"`
	Confidence        float64                 `json:"match_confidence"`
	IsPrioritySector  bool                    `json:"is_large_industry"`
	Alternatives      []crosswalk.Alternative `json:"all_matches"`
	MatchedKeywords   []string                `json:"matched_keywords"`
	UnmatchedKeywords []string                `json:"unmatched_keywords"`
	TotalTokens       int                     `json:"total_tokens"`
}

// Adjudication is an LLM choice among candidate industries.
type Adjudication struct {
	ID         string    `json:"id"`
	CaseTitle  string    `json:"case_title"`
	Code       string    `json:"best_match_code"`
	Reasoning  string    `json:"reasoning"`
	Candidates []string  `json:"candidates"`
	Model      string    `json:"model"`
	Err        string    `json:"error,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// Summary is the final research note of one document.
type Summary struct {
	Path         string    `json:"path"`
	Key          string    `json:"key"`
	RunID        string    `json:"run_id"`
	Model        string    `json:"model"`
	Text         string    `json:"text"`
	NotePath     string    `json:"note_path"`
	Direct       bool      `json:"direct"`
	Chunks       int       `json:"chunks"`
	FailedChunks int       `json:"failed_chunks"`
	CreatedAt    time.Time `json:"created_at"`
}
