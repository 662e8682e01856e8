package adjudicate

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/cognicore/tradeprep/internal/llm"
	"github.com/cognicore/tradeprep/pkg/tradeprep/crosswalk"
	"github.com/cognicore/tradeprep/pkg/tradeprep/internalerr"
	"github.com/cognicore/tradeprep/pkg/tradeprep/store"
	"github.com/cognicore/tradeprep/pkg/tradeprep/store/memstore"
)

type generatorFunc func(ctx context.Context, prompt string) (string, error)

func (f generatorFunc) Generate(ctx context.Context, prompt string, _ llm.Options) (string, error) {
	return f(ctx, prompt)
}

func reply(s string) generatorFunc {
	return func(context.Context, string) (string, error) { return s, nil }
}

var fixed = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func testAdjudicator(gen llm.Generator) *Adjudicator {
	idx := crosswalk.Build([]crosswalk.Row{
		{Code: "331221", Title: "Rolled Steel Shape Manufacturing, Steel Wire Drawing"},
		{Code: "331111", Title: "Iron and Steel Mills"},
		{Code: "316211", Title: "Rubber and Plastics Footwear Manufacturing"},
	}, crosswalk.BuildOptions{Stopwords: []string{"manufacturing", "and"}})
	return &Adjudicator{
		Matcher:   crosswalk.NewMatcher(idx),
		Generator: gen,
		Model:     "test-model",
		now:       func() time.Time { return fixed },
	}
}

func TestPromptListsCandidates(t *testing.T) {
	a := testAdjudicator(nil)
	p := Prompt("steel rod", a.Matcher.Candidates("steel rod", 10))

	for _, want := range []string{
		`CASE TITLE: "steel rod"`,
		"CODE: 331221 | DESCRIPTION: rolled steel shape manufacturing, steel wire drawing",
		"CODE: 331111 | DESCRIPTION: iron and steel mills",
		"best_match_code",
	} {
		if !strings.Contains(p, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
	if strings.Contains(p, "316211") {
		t.Error("prompt lists a code without keyword overlap")
	}
}

func TestAdjudicate(t *testing.T) {
	tests := []struct {
		name      string
		reply     string
		wantCode  string
		wantErr   string
		reasoning string
	}{
		{
			name:      "valid",
			reply:     `{"case_title": "steel rod", "best_match_code": "331111", "reasoning": "Steel mills make rod."}`,
			wantCode:  "331111",
			reasoning: "Steel mills make rod.",
		},
		{
			name:      "fenced json",
			reply:     "```json\n{\"case_title\": \"steel rod\", \"best_match_code\": \"331221\", \"reasoning\": \"Rolled shapes.\"}\n```",
			wantCode:  "331221",
			reasoning: "Rolled shapes.",
		},
		{
			name:    "not json",
			reply:   "I think it is steel.",
			wantErr: "JSON parse failed",
		},
		{
			name:    "broken json",
			reply:   `{"case_title": "steel rod", "best_match_code": }`,
			wantErr: "JSON parse failed",
		},
		{
			name:     "missing reasoning",
			reply:    `{"case_title": "steel rod", "best_match_code": "331111"}`,
			wantCode: "331111",
			wantErr:  "validation error: missing reasoning",
		},
		{
			name:      "code outside candidates",
			reply:     `{"case_title": "steel rod", "best_match_code": "999999", "reasoning": "Guess."}`,
			wantCode:  "999999",
			reasoning: "Guess.",
			wantErr:   "not a candidate",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := testAdjudicator(reply(tt.reply))

			got, err := a.Adjudicate(context.Background(), "steel rod")
			if err != nil {
				t.Fatalf("Adjudicate: %v", err)
			}
			if got.Code != tt.wantCode {
				t.Errorf("Code = %q, want %q", got.Code, tt.wantCode)
			}
			if got.Reasoning != tt.reasoning {
				t.Errorf("Reasoning = %q, want %q", got.Reasoning, tt.reasoning)
			}
			if tt.wantErr == "" && got.Err != "" {
				t.Errorf("Err = %q, want none", got.Err)
			}
			if tt.wantErr != "" && !strings.Contains(got.Err, tt.wantErr) {
				t.Errorf("Err = %q, want it to contain %q", got.Err, tt.wantErr)
			}
			if diff := cmp.Diff([]string{"331111", "331221", "316211"}, got.Candidates); diff != "" {
				t.Errorf("Candidates mismatch (-want +got):\n%s", diff)
			}
			if got.ID == "" || got.Model != "test-model" || !got.CreatedAt.Equal(fixed) {
				t.Errorf("metadata = %q/%q/%v", got.ID, got.Model, got.CreatedAt)
			}
		})
	}
}

func TestAdjudicateTopsUpWithSimilarEntries(t *testing.T) {
	a := testAdjudicator(nil)
	a.TopN = 2

	got := a.candidates("steel rod")
	if len(got) != 2 || got[0].Entry.Code != "331111" || got[1].Entry.Code != "331221" {
		t.Errorf("keyword candidates should fill TopN first: %+v", got)
	}

	got = a.candidates("plastic footwear")
	if len(got) != 2 || got[0].Entry.Code != "316211" {
		t.Errorf("candidates(plastic footwear) = %+v", got)
	}
}

func TestAdjudicateUnmatchedTitleReachesGenerator(t *testing.T) {
	idx := crosswalk.Build([]crosswalk.Row{
		{Code: "316211", Title: "Rubber and plastics footwear manufacturing"},
	}, crosswalk.BuildOptions{Stopwords: []string{"manufacturing", "and"}})
	var prompts []string
	a := &Adjudicator{
		Matcher: crosswalk.NewMatcher(idx),
		Generator: generatorFunc(func(_ context.Context, prompt string) (string, error) {
			prompts = append(prompts, prompt)
			return `{"case_title": "shoes", "best_match_code": "316211", "reasoning": "Shoes are footwear."}`, nil
		}),
	}

	weak := Weak([]store.Classification{{CleanTitle: "shoes"}}, DefaultMinConfidence)
	got, err := a.Run(context.Background(), weak)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(prompts) != 1 || !strings.Contains(prompts[0], "CODE: 316211") {
		t.Fatalf("generator prompts = %q", prompts)
	}
	if len(got) != 1 || got[0].Code != "316211" || got[0].Err != "" {
		t.Errorf("result = %+v", got)
	}
}

func TestAdjudicateEmptyTaxonomySkipsGenerator(t *testing.T) {
	called := false
	a := &Adjudicator{
		Matcher: crosswalk.NewMatcher(crosswalk.Build(nil, crosswalk.BuildOptions{})),
		Generator: generatorFunc(func(context.Context, string) (string, error) {
			called = true
			return "", nil
		}),
	}

	got, err := a.Adjudicate(context.Background(), "orange juice")
	if err != nil {
		t.Fatal(err)
	}
	if called {
		t.Error("generator called without candidates")
	}
	if got.Err != "no candidates" {
		t.Errorf("Err = %q", got.Err)
	}
}

func TestRunContinuesPastFailures(t *testing.T) {
	st := memstore.New()
	a := testAdjudicator(generatorFunc(func(_ context.Context, prompt string) (string, error) {
		if strings.Contains(prompt, `"iron"`) {
			return "", errors.New("boom")
		}
		return `{"case_title": "footwear", "best_match_code": "316211", "reasoning": "Footwear."}`, nil
	}))
	a.Store = st

	got, err := a.Run(context.Background(), []string{"iron", "rubber footwear"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d results, want 2", len(got))
	}
	if !strings.Contains(got[0].Err, "generation failed") {
		t.Errorf("first Err = %q", got[0].Err)
	}
	if got[1].Code != "316211" || got[1].Err != "" {
		t.Errorf("second = %+v", got[1])
	}

	stored, err := st.ListAdjudications(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(stored) != 2 {
		t.Errorf("stored %d adjudications, want 2", len(stored))
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	a := testAdjudicator(generatorFunc(func(ctx context.Context, _ string) (string, error) {
		cancel()
		return "", ctx.Err()
	}))

	got, err := a.Run(ctx, []string{"steel", "iron"})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
	if len(got) != 0 {
		t.Errorf("got %d results, want 0", len(got))
	}
}

func TestAdjudicateRequiresGenerator(t *testing.T) {
	a := testAdjudicator(nil)
	if _, err := a.Adjudicate(context.Background(), "steel"); !errors.Is(err, internalerr.ErrInvalidConfig) {
		t.Errorf("err = %v, want ErrInvalidConfig", err)
	}
}

func TestWeak(t *testing.T) {
	recs := []store.Classification{
		{CleanTitle: "steel wire", Code: "331221", Confidence: 1},
		{CleanTitle: "orange juice"},
		{CleanTitle: "steel rod things", Code: "331111", Confidence: 0.33},
		{CleanTitle: "orange juice"},
		{CleanTitle: ""},
	}

	got := Weak(recs, 0.5)
	want := []string{"orange juice", "steel rod things"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Weak mismatch (-want +got):\n%s", diff)
	}
}
