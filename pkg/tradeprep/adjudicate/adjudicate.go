// Package adjudicate asks a language model to pick the best industry for
// titles the matcher is unsure about. Candidates are the keyword matches
// topped up with the taxonomy entries most similar to the title.
package adjudicate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"github.com/cognicore/tradeprep/internal/llm"
	"github.com/cognicore/tradeprep/pkg/tradeprep/crosswalk"
	"github.com/cognicore/tradeprep/pkg/tradeprep/internalerr"
	"github.com/cognicore/tradeprep/pkg/tradeprep/store"
)

// Defaults for Adjudicator.
const (
	DefaultTopN          = 10
	DefaultMinConfidence = 0.5
)

const promptTemplate = `You are an industry classifier. Match the case title to the best industry.

CASE TITLE: %q

CANDIDATE INDUSTRIES:
%s

INSTRUCTIONS:
1. Find the best matching industry for the case title
2. Look for keywords that match industry descriptions
3. Return ONLY a JSON response with no other text

JSON FORMAT (example):
{"case_title": "Footwear", "best_match_code": "316211", "reasoning": "Direct match to footwear manufacturing."}

Fields to include:
- case_title: The original case title
- best_match_code: One code from the candidate list
- reasoning: One sentence explaining the match

Return JSON ONLY:`

// Prompt renders the classification prompt for title and its candidates.
func Prompt(title string, cands []crosswalk.Candidate) string {
	lines := make([]string, len(cands))
	for i, c := range cands {
		lines[i] = fmt.Sprintf("CODE: %s | DESCRIPTION: %s", c.Entry.Code, c.Entry.Title)
	}
	return fmt.Sprintf(promptTemplate, title, strings.Join(lines, "\n"))
}

type response struct {
	CaseTitle string `json:"case_title"`
	Code      string `json:"best_match_code"`
	Reasoning string `json:"reasoning"`
}

// Adjudicator resolves titles with a generator.
type Adjudicator struct {
	Matcher   *crosswalk.Matcher
	Generator llm.Generator
	// Model is recorded on each result.
	Model   string
	TopN    int
	Options llm.Options
	// Store receives every result when set.
	Store  store.Store
	Logger *zap.Logger

	now func() time.Time
}

// Adjudicate classifies one cleaned title. Generation, decoding and
// validation failures are reported in the result's Err; only context
// cancellation and store failures are returned as errors.
func (a *Adjudicator) Adjudicate(ctx context.Context, title string) (store.Adjudication, error) {
	if a.Matcher == nil || a.Generator == nil {
		return store.Adjudication{}, fmt.Errorf("adjudicate: matcher and generator required: %w", internalerr.ErrInvalidConfig)
	}
	res := store.Adjudication{
		ID:        ulid.Make().String(),
		CaseTitle: title,
		Model:     a.Model,
		CreatedAt: a.clock(),
	}

	cands := a.candidates(title)
	allowed := make(map[string]bool, len(cands))
	for _, c := range cands {
		res.Candidates = append(res.Candidates, c.Entry.Code)
		allowed[c.Entry.Code] = true
	}

	switch {
	case len(cands) == 0:
		res.Err = "no candidates"
	default:
		content, err := a.Generator.Generate(ctx, Prompt(title, cands), a.Options)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return store.Adjudication{}, ctxErr
			}
			res.Err = fmt.Sprintf("generation failed: %v", err)
			break
		}
		resp, err := decode(content)
		if err != nil {
			res.Err = err.Error()
			break
		}
		res.Code = resp.Code
		res.Reasoning = resp.Reasoning
		if err := validate(resp, allowed); err != nil {
			res.Err = err.Error()
		}
	}

	if res.Err != "" {
		a.logger().Warn("adjudication failed", zap.String("title", title), zap.String("error", res.Err))
	}
	if a.Store != nil {
		if err := a.Store.InsertAdjudication(ctx, res); err != nil {
			return res, fmt.Errorf("store adjudication: %w", err)
		}
	}
	return res, nil
}

// candidates returns up to TopN codes: keyword matches in rank order, then
// the most similar remaining taxonomy entries.
func (a *Adjudicator) candidates(title string) []crosswalk.Candidate {
	n := a.topN()
	cands := a.Matcher.Candidates(title, n)
	if len(cands) >= n {
		return cands
	}
	seen := make(map[string]bool, len(cands))
	for _, c := range cands {
		seen[c.Entry.Code] = true
	}
	for _, s := range a.Matcher.Similar(title, 0) {
		if len(cands) == n {
			break
		}
		if seen[s.Entry.Code] {
			continue
		}
		seen[s.Entry.Code] = true
		cands = append(cands, crosswalk.Candidate{Entry: s.Entry})
	}
	return cands
}

// Run adjudicates titles in order. A failed title never stops the batch.
func (a *Adjudicator) Run(ctx context.Context, titles []string) ([]store.Adjudication, error) {
	out := make([]store.Adjudication, 0, len(titles))
	for _, t := range titles {
		res, err := a.Adjudicate(ctx, t)
		if err != nil {
			return out, err
		}
		out = append(out, res)
	}
	return out, nil
}

// Weak returns the distinct cleaned titles whose keyword match is missing
// or below minConfidence, in first-seen order.
func Weak(recs []store.Classification, minConfidence float64) []string {
	seen := make(map[string]bool)
	var out []string
	for _, r := range recs {
		if r.CleanTitle == "" || seen[r.CleanTitle] {
			continue
		}
		if r.Code != "" && r.Confidence >= minConfidence {
			continue
		}
		seen[r.CleanTitle] = true
		out = append(out, r.CleanTitle)
	}
	return out
}

// decode extracts the JSON object from a model reply. Code fences and text
// around the object are ignored.
func decode(content string) (response, error) {
	var resp response
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start < 0 || end < start {
		return resp, errors.New("JSON parse failed: no object in response")
	}
	if err := json.Unmarshal([]byte(content[start:end+1]), &resp); err != nil {
		return resp, fmt.Errorf("JSON parse failed: %v", err)
	}
	return resp, nil
}

func validate(resp response, allowed map[string]bool) error {
	var missing []string
	if strings.TrimSpace(resp.CaseTitle) == "" {
		missing = append(missing, "case_title")
	}
	if strings.TrimSpace(resp.Code) == "" {
		missing = append(missing, "best_match_code")
	}
	if strings.TrimSpace(resp.Reasoning) == "" {
		missing = append(missing, "reasoning")
	}
	if len(missing) > 0 {
		return fmt.Errorf("validation error: missing %s", strings.Join(missing, ", "))
	}
	if !allowed[resp.Code] {
		return fmt.Errorf("validation error: code %s is not a candidate", resp.Code)
	}
	return nil
}

func (a *Adjudicator) topN() int {
	if a.TopN <= 0 {
		return DefaultTopN
	}
	return a.TopN
}

func (a *Adjudicator) clock() time.Time {
	if a.now != nil {
		return a.now()
	}
	return time.Now().UTC()
}

func (a *Adjudicator) logger() *zap.Logger {
	if a.Logger == nil {
		return zap.NewNop()
	}
	return a.Logger
}
