package classify

import (
	"bytes"
	"context"
	"encoding/csv"
	"os"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/cognicore/tradeprep/pkg/tradeprep/crosswalk"
	"github.com/cognicore/tradeprep/pkg/tradeprep/scrape"
	"github.com/cognicore/tradeprep/pkg/tradeprep/store"
	"github.com/cognicore/tradeprep/pkg/tradeprep/store/memstore"
)

func testClassifier(st store.Store) *Classifier {
	idx := crosswalk.Build([]crosswalk.Row{
		{Code: "331221", Title: "Rolled Steel Shape Manufacturing, Steel Wire Drawing"},
		{Code: "316211", Title: "Rubber and Plastics Footwear Manufacturing"},
		{Code: "423510", Title: "Metal Service Centers and Offices"},
	}, crosswalk.BuildOptions{
		Stopwords:       []string{"manufacturing", "and", "certain", "from"},
		PrioritySectors: map[string]string{"42": "Wholesale Trade"},
	})
	return &Classifier{
		Cleaner: crosswalk.DefaultCleaner(),
		Matcher: crosswalk.NewMatcher(idx),
		Store:   st,
	}
}

func testPubs() []scrape.Publication {
	return []scrape.Publication{
		{PubNumber: "3001", Title: "Certain Steel Wire from Japan", Date: "01/02/1997", Subject: "Import Injury", Type: "Final", Link: "https://example.test/3001"},
		{PubNumber: "3002", Title: "Rubber Footwear", Date: "02/02/1997", Subject: "Import Injury", Type: "Final"},
		{PubNumber: "3003", Title: "Metal Service Centers", Date: "03/02/1997", Subject: "Import Injury", Type: "Prelim"},
		{PubNumber: "3004", Title: "Frozen Concentrated Orange Juice", Date: "04/02/1997", Subject: "Import Injury", Type: "Final"},
	}
}

func TestRecord(t *testing.T) {
	c := testClassifier(nil)

	got := c.Record(testPubs()[0])
	want := store.Classification{
		PubNumber:     "3001",
		Title:         "Certain Steel Wire from Japan",
		CleanTitle:    "steel wire",
		Date:          "01/02/1997",
		Subject:       "Import Injury",
		Type:          "Final",
		Link:          "https://example.test/3001",
		Code:          "331221",
		IndustryTitle: "rolled steel shape manufacturing, steel wire drawing",
		Sector:        "33",
		Confidence:    1,
		Alternatives: []crosswalk.Alternative{
			{Code: "331221", Title: "rolled steel shape manufacturing, steel wire drawing"},
		},
		MatchedKeywords:   []string{"steel", "wire"},
		UnmatchedKeywords: []string{},
		TotalTokens:       2,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Record mismatch (-want +got):\n%s", diff)
	}
}

func TestRunPersists(t *testing.T) {
	st := memstore.New()
	c := testClassifier(st)
	ctx := context.Background()

	recs, err := c.Run(ctx, testPubs())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(recs) != 4 {
		t.Fatalf("got %d records, want 4", len(recs))
	}
	if recs[3].Code != "" {
		t.Errorf("orange juice matched %q, want no match", recs[3].Code)
	}

	stored, err := st.ListClassifications(ctx, false)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(recs, stored, cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("stored mismatch (-want +got):\n%s", diff)
	}

	priority, err := st.ListClassifications(ctx, true)
	if err != nil {
		t.Fatal(err)
	}
	if len(priority) != 1 || priority[0].PubNumber != "3003" {
		t.Errorf("priority records = %+v, want only 3003", priority)
	}
}

func TestRunCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := testClassifier(nil).Run(ctx, testPubs()); err == nil {
		t.Error("expected error for canceled context")
	}
}

func TestSummarize(t *testing.T) {
	recs, err := testClassifier(nil).Run(context.Background(), testPubs())
	if err != nil {
		t.Fatal(err)
	}

	st := Summarize(recs, 2)
	if st.Total != 4 || st.Matched != 3 || st.Priority != 1 {
		t.Errorf("counts = %d/%d/%d, want 4/3/1", st.Total, st.Matched, st.Priority)
	}
	if st.PriorityShare != 0.25 {
		t.Errorf("PriorityShare = %v, want 0.25", st.PriorityShare)
	}
	if st.MeanConfidence != 0.75 {
		t.Errorf("MeanConfidence = %v, want 0.75", st.MeanConfidence)
	}
	if len(st.TopIndustries) != 2 {
		t.Errorf("TopIndustries = %v, want 2 entries", st.TopIndustries)
	}

	if empty := Summarize(nil, 5); empty.Total != 0 || empty.MeanConfidence != 0 {
		t.Errorf("empty stats = %+v", empty)
	}
}

func TestWriteCSV(t *testing.T) {
	recs, err := testClassifier(nil).Run(context.Background(), testPubs()[:1])
	if err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	if err := WriteCSV(&buf, recs); err != nil {
		t.Fatalf("WriteCSV: %v", err)
	}
	rows, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("got %d rows, want header + 1", len(rows))
	}
	if diff := cmp.Diff(header, rows[0]); diff != "" {
		t.Errorf("header mismatch (-want +got):\n%s", diff)
	}
	row := rows[1]
	if row[6] != "331221" || row[10] != "1.0000" || row[11] != "false" {
		t.Errorf("row = %v", row)
	}
	if !strings.Contains(row[12], `"naics":"331221"`) {
		t.Errorf("alternatives = %q, want JSON", row[12])
	}
	if row[13] != "steel,wire" {
		t.Errorf("matched keywords = %q", row[13])
	}
}

func TestExport(t *testing.T) {
	recs, err := testClassifier(nil).Run(context.Background(), testPubs())
	if err != nil {
		t.Fatal(err)
	}

	full, priority, err := Export(t.TempDir(), recs)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}

	for path, want := range map[string]int{full: 5, priority: 2} {
		f, err := os.Open(path)
		if err != nil {
			t.Fatal(err)
		}
		rows, err := csv.NewReader(f).ReadAll()
		f.Close()
		if err != nil {
			t.Fatal(err)
		}
		if len(rows) != want {
			t.Errorf("%s: %d rows, want %d", path, len(rows), want)
		}
	}
}
