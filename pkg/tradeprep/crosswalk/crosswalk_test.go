package crosswalk

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

var testStopwords = []string{"products", "certain", "other", "manufacturing", "and", "from", "parts"}

var testPriority = map[string]string{
	"31": "Manufacturing",
	"42": "Wholesale Trade",
}

func testRows() []Row {
	return []Row{
		{Code: "331221", Title: "Rolled Steel Shape Manufacturing, Steel Wire Drawing"},
		{Code: "331111", Title: "Iron and Steel Mills"},
		{Code: "423510", Title: "Metal Service Centers and Offices"},
		{Code: "316211", Title: "Rubber and Plastics Footwear Manufacturing"},
		{Code: "", Title: "orphan title"},
		{Code: "111110", Title: ""},
		{Code: "331221", Title: "Steel Wire Drawing (duplicate row)"},
	}
}

func testIndex() *Index {
	return Build(testRows(), BuildOptions{Stopwords: testStopwords, PrioritySectors: testPriority})
}

func TestTokenizerWords(t *testing.T) {
	tok := NewTokenizer(nil)

	got := tok.Words("Steel-wire rod, 12mm (grade B2)")
	want := []string{"steel", "wire", "rod", "mm", "grade", "b"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Words mismatch (-want +got):\n%s", diff)
	}
}

func TestTokenizerKeywords(t *testing.T) {
	tok := NewTokenizer([]string{"Products"})

	got := tok.Keywords("steel products and rod wire")
	want := []string{"steel", "wire"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Keywords mismatch (-want +got):\n%s", diff)
	}
}

func TestBuildSkipsMalformedRows(t *testing.T) {
	idx := testIndex()
	stats := idx.Stats()

	if stats.Rows != 7 {
		t.Errorf("Rows = %d, want 7", stats.Rows)
	}
	if stats.Skipped != 2 {
		t.Errorf("Skipped = %d, want 2", stats.Skipped)
	}
	if stats.Entries != 4 {
		t.Errorf("Entries = %d, want 4", stats.Entries)
	}
}

func TestBuildKeywordsAreLongAndNotStopwords(t *testing.T) {
	idx := testIndex()
	stops := make(map[string]bool)
	for _, s := range testStopwords {
		stops[s] = true
	}

	for _, kw := range idx.Keywords() {
		if len(kw) <= 3 {
			t.Errorf("keyword %q is too short", kw)
		}
		if stops[kw] {
			t.Errorf("keyword %q is a stopword", kw)
		}
	}
	if idx.Has("and") || !idx.Has("iron") {
		t.Error("expected 'iron' indexed and 'and' excluded")
	}
}

func TestBuildBucketsHaveUniqueCodes(t *testing.T) {
	idx := testIndex()

	for _, kw := range idx.Keywords() {
		seen := make(map[string]bool)
		for _, e := range idx.Lookup(kw) {
			if seen[e.Code] {
				t.Errorf("keyword %q lists code %s twice", kw, e.Code)
			}
			seen[e.Code] = true
		}
	}

	// The duplicate 331221 row must not replace the first one.
	for _, e := range idx.Lookup("wire") {
		if e.Code == "331221" && !strings.HasPrefix(e.Title, "rolled steel") {
			t.Errorf("expected first occurrence to win, got title %q", e.Title)
		}
	}
}

func TestBuildSectors(t *testing.T) {
	idx := Build([]Row{
		{Code: "423510", Title: "metal service centers"},
		{Code: "7", Title: "single digit code"},
	}, BuildOptions{PrioritySectors: testPriority})

	metal := idx.Lookup("metal")
	if len(metal) != 1 {
		t.Fatalf("expected one entry for 'metal', got %d", len(metal))
	}
	if metal[0].Sector != "42" || metal[0].SectorName != "Wholesale Trade" || !metal[0].IsPrioritySector {
		t.Errorf("unexpected sector fields: %+v", metal[0])
	}

	single := idx.Lookup("single")
	if len(single) != 1 || single[0].Sector != "" || single[0].IsPrioritySector {
		t.Errorf("short code should have no sector: %+v", single)
	}
}

func TestCleanTitle(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "prefix and origin", input: "Certain Steel Wire Rod From China", want: "steel wire rod"},
		{name: "punctuation", input: "Carbon & Alloy Steel Wire Rod", want: "carbon  alloy steel wire rod"},
		{name: "no markers", input: "  Footwear ", want: "footwear"},
		{name: "prefix only as word", input: "Certainly Good Tomatoes", want: "certainly good tomatoes"},
		{name: "marker inside word", input: "Frozen Fromage", want: "frozen fromage"},
		{name: "digits kept", input: "Certain 1,1,1-Trichloroethane from Japan", want: "111trichloroethane"},
		{name: "empty", input: "", want: ""},
	}

	c := DefaultCleaner()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := c.Clean(tt.input); got != tt.want {
				t.Errorf("Clean(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestCleanerCustomMarkers(t *testing.T) {
	c := NewCleaner("imported", "originating")
	got := c.Clean("Imported Honey originating in Argentina")
	if got != "honey" {
		t.Errorf("Clean = %q, want %q", got, "honey")
	}

	none := NewCleaner("", "")
	if got := none.Clean("Certain Honey From Argentina"); got != "certain honey from argentina" {
		t.Errorf("disabled cleaner changed text: %q", got)
	}
}

func TestMatchSteelWireRod(t *testing.T) {
	m := NewMatcher(testIndex())
	title := DefaultCleaner().Clean("Certain Steel Wire Rod From China")

	res := m.Match(title)

	if res.Code != "331221" {
		t.Fatalf("Code = %q, want 331221 (alternatives %+v)", res.Code, res.Alternatives)
	}
	if diff := cmp.Diff([]string{"steel", "wire"}, res.MatchedKeywords); diff != "" {
		t.Errorf("matched keywords (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"rod"}, res.UnmatchedKeywords); diff != "" {
		t.Errorf("unmatched keywords (-want +got):\n%s", diff)
	}
	if res.TotalTokens != 3 {
		t.Errorf("TotalTokens = %d, want 3", res.TotalTokens)
	}
	if want := 2.0 / 3.0; res.Confidence != want {
		t.Errorf("Confidence = %v, want %v", res.Confidence, want)
	}
	if res.Sector != "33" || res.IsPrioritySector {
		t.Errorf("unexpected sector %q priority=%v", res.Sector, res.IsPrioritySector)
	}
}

func TestMatchNoOverlap(t *testing.T) {
	m := NewMatcher(testIndex())

	res := m.Match("fresh garlic honey")

	if res.Matched() || res.Code != "" {
		t.Errorf("expected no match, got %q", res.Code)
	}
	if res.Confidence != 0 {
		t.Errorf("Confidence = %v, want 0", res.Confidence)
	}
	if len(res.Alternatives) != 0 {
		t.Errorf("expected no alternatives, got %+v", res.Alternatives)
	}
	if diff := cmp.Diff([]string{"fresh", "garlic", "honey"}, res.UnmatchedKeywords); diff != "" {
		t.Errorf("unmatched keywords (-want +got):\n%s", diff)
	}
	if len(res.MatchedKeywords) != 0 {
		t.Errorf("expected no matched keywords, got %v", res.MatchedKeywords)
	}
}

func TestMatchUnmatchedCappedAtTen(t *testing.T) {
	m := NewMatcher(testIndex())

	res := m.Match("alpha bravo charlie delta echo foxtrot golf hotel india juliet kilo lima")

	if len(res.UnmatchedKeywords) != MaxUnmatched {
		t.Fatalf("expected %d unmatched, got %d", MaxUnmatched, len(res.UnmatchedKeywords))
	}
	if res.UnmatchedKeywords[0] != "alpha" || res.UnmatchedKeywords[9] != "juliet" {
		t.Errorf("expected the lexicographically first ten, got %v", res.UnmatchedKeywords)
	}
	if res.TotalTokens != 12 {
		t.Errorf("TotalTokens = %d, want 12", res.TotalTokens)
	}
}

func TestMatchEmptyTitle(t *testing.T) {
	m := NewMatcher(testIndex())

	res := m.Match("")
	if res.Matched() || res.Confidence != 0 || res.TotalTokens != 0 {
		t.Errorf("unexpected result for empty title: %+v", res)
	}
}

func TestMatchPriorityOutranksScore(t *testing.T) {
	m := NewMatcher(testIndex())

	// 331111 matches two keywords, 423510 only one but sits in a priority sector.
	res := m.Match("iron mills metal")

	if res.Code != "423510" {
		t.Fatalf("Code = %q, want 423510", res.Code)
	}
	if !res.IsPrioritySector || res.SectorName != "Wholesale Trade" {
		t.Errorf("expected priority sector result, got %+v", res)
	}
	if want := 1.0 / 3.0; res.Confidence != want {
		t.Errorf("Confidence = %v, want %v", res.Confidence, want)
	}
	want := []string{"423510", "331111"}
	var got []string
	for _, a := range res.Alternatives {
		got = append(got, a.Code)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("alternatives (-want +got):\n%s", diff)
	}
}

func TestMatchLongerCodeWinsTie(t *testing.T) {
	idx := Build([]Row{
		{Code: "3312", Title: "steel rolling"},
		{Code: "331221", Title: "steel drawing"},
	}, BuildOptions{})
	m := NewMatcher(idx)

	res := m.Match("steel")
	if res.Code != "331221" {
		t.Errorf("Code = %q, want the more specific 331221", res.Code)
	}
}

func TestMatchDeterministic(t *testing.T) {
	m := NewMatcher(testIndex())
	title := "steel wire iron mills footwear"

	first := m.Match(title)
	for i := 0; i < 50; i++ {
		if diff := cmp.Diff(first, m.Match(title), cmpopts.EquateEmpty()); diff != "" {
			t.Fatalf("run %d differs (-first +got):\n%s", i, diff)
		}
	}
}

func TestMatchConfidenceBounds(t *testing.T) {
	m := NewMatcher(testIndex())
	titles := []string{"", "steel", "steel steel steel", "wire drawing steel", "a b c", "iron steel mills rubber footwear"}

	for _, title := range titles {
		res := m.Match(title)
		if res.Confidence < 0 || res.Confidence > 1 {
			t.Errorf("confidence for %q out of range: %v", title, res.Confidence)
		}
	}
}

func TestMatchDuplicateTokensCollapse(t *testing.T) {
	m := NewMatcher(testIndex())

	res := m.Match("steel steel steel")
	if res.TotalTokens != 1 {
		t.Errorf("TotalTokens = %d, want 1", res.TotalTokens)
	}
	if res.Confidence != 1 {
		t.Errorf("Confidence = %v, want 1", res.Confidence)
	}
}

func TestCandidates(t *testing.T) {
	m := NewMatcher(testIndex())

	all := m.Candidates("steel wire mills metal", 0)
	if len(all) != 3 {
		t.Fatalf("expected 3 candidates, got %d", len(all))
	}
	top := m.Candidates("steel wire mills metal", 1)
	if len(top) != 1 || top[0].Entry.Code != all[0].Entry.Code {
		t.Errorf("top candidate mismatch: %+v vs %+v", top, all[0])
	}
	for _, c := range all {
		if c.Score != len(c.Keywords) {
			t.Errorf("score %d does not match keywords %v", c.Score, c.Keywords)
		}
	}
}

func TestEntriesKeepFirstRowPerCode(t *testing.T) {
	entries := testIndex().Entries()

	var codes []string
	for _, e := range entries {
		codes = append(codes, e.Code)
	}
	if diff := cmp.Diff([]string{"331221", "331111", "423510", "316211"}, codes); diff != "" {
		t.Errorf("entry codes mismatch (-want +got):\n%s", diff)
	}
	if entries[0].Title != "rolled steel shape manufacturing, steel wire drawing" {
		t.Errorf("first entry title = %q", entries[0].Title)
	}
}

func TestSimilarRanksByTermOverlap(t *testing.T) {
	m := NewMatcher(testIndex())

	got := m.Similar("steel wire", 0)
	if len(got) != 4 {
		t.Fatalf("expected every entry ranked, got %d", len(got))
	}
	var codes []string
	for _, s := range got {
		codes = append(codes, s.Entry.Code)
	}
	// Entries without a shared term keep taxonomy order at the end.
	if diff := cmp.Diff([]string{"331221", "331111", "423510", "316211"}, codes); diff != "" {
		t.Errorf("ranking mismatch (-want +got):\n%s", diff)
	}
	if got[0].Similarity <= got[1].Similarity || got[1].Similarity <= 0 {
		t.Errorf("similarities not strictly ordered: %v, %v", got[0].Similarity, got[1].Similarity)
	}
	if got[0].Similarity > 1 || got[2].Similarity != 0 {
		t.Errorf("similarity bounds: %v, %v", got[0].Similarity, got[2].Similarity)
	}

	top := m.Similar("plastic footwear", 1)
	if len(top) != 1 || top[0].Entry.Code != "316211" {
		t.Errorf("Similar(plastic footwear) = %+v", top)
	}
}

func TestSimilarWithoutSharedTerms(t *testing.T) {
	m := NewMatcher(Build([]Row{
		{Code: "316211", Title: "Rubber and Plastics Footwear Manufacturing"},
	}, BuildOptions{Stopwords: testStopwords}))

	if c := m.Candidates("shoes", 10); len(c) != 0 {
		t.Fatalf("keyword candidates = %+v, want none", c)
	}
	got := m.Similar("shoes", 10)
	if len(got) != 1 || got[0].Entry.Code != "316211" || got[0].Similarity != 0 {
		t.Errorf("Similar(shoes) = %+v", got)
	}
}
