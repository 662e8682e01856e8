package main

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap/zapcore"

	"github.com/cognicore/tradeprep/pkg/tradeprep/config"
	"github.com/cognicore/tradeprep/pkg/tradeprep/scrape"
	"github.com/cognicore/tradeprep/pkg/tradeprep/store/sqlite"
)

func TestCommandsRegistered(t *testing.T) {
	want := map[string]bool{"scrape": false, "classify": false, "adjudicate": false, "summarize": false, "serve": false, "stopwords": false}
	for _, c := range rootCmd.Commands() {
		if _, ok := want[c.Name()]; ok {
			want[c.Name()] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Errorf("command %q not registered", name)
		}
	}
}

func TestNewLogger(t *testing.T) {
	l, err := newLogger(config.LogConfig{Level: "warn"}, false)
	if err != nil {
		t.Fatalf("newLogger: %v", err)
	}
	if l.Core().Enabled(zapcore.InfoLevel) {
		t.Error("info enabled at warn level")
	}

	l, err = newLogger(config.LogConfig{Level: "warn", JSON: true}, true)
	if err != nil {
		t.Fatalf("newLogger: %v", err)
	}
	if !l.Core().Enabled(zapcore.DebugLevel) {
		t.Error("verbose should enable debug")
	}

	if _, err := newLogger(config.LogConfig{Level: "loud"}, false); err == nil {
		t.Error("expected error for unknown level")
	}
}

func TestClassifyCommand(t *testing.T) {
	dir := t.TempDir()
	taxonomy := filepath.Join(dir, "crosswalk.csv")
	csv := "1997 NAICS,1997 NAICS Titles and Part Indicators\n" +
		"331221,\"Rolled Steel Shape Manufacturing, Steel Wire Drawing\"\n" +
		"423510,Metal Service Centers and Offices\n"
	if err := os.WriteFile(taxonomy, []byte(csv), 0o644); err != nil {
		t.Fatal(err)
	}
	dbPath := filepath.Join(dir, "db", "tradeprep.db")
	cfgPath := filepath.Join(dir, "tradeprep.yaml")
	cfgYAML := "taxonomy:\n  path: " + taxonomy + "\nstore:\n  path: " + dbPath + "\nlog:\n  level: error\n"
	if err := os.WriteFile(cfgPath, []byte(cfgYAML), 0o644); err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		t.Fatal(err)
	}
	st, err := sqlite.OpenSQLite(ctx, dbPath)
	if err != nil {
		t.Fatal(err)
	}
	err = st.UpsertPublications(ctx, []scrape.Publication{
		{PubNumber: "3001", Title: "Certain Steel Wire from Japan"},
		{PubNumber: "3002", Title: "Metal Service Centers"},
	})
	st.Close()
	if err != nil {
		t.Fatal(err)
	}

	outDir := filepath.Join(dir, "out")
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"--config", cfgPath, "classify", "--out", outDir})
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		t.Fatalf("classify: %v", err)
	}

	for _, want := range []string{"Classified 2 publications (2 matched).", "Priority sector matches: 1 (50.0%)"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("output missing %q:\n%s", want, out.String())
		}
	}
	if _, err := os.Stat(filepath.Join(outDir, "crosswalk_full.csv")); err != nil {
		t.Errorf("full CSV not written: %v", err)
	}
}

func TestStopwordsCommand(t *testing.T) {
	dir := t.TempDir()
	taxonomy := filepath.Join(dir, "crosswalk.csv")
	csv := "1997 NAICS,1997 NAICS Titles and Part Indicators\n" +
		"311111,Dog Food Preparation\n" +
		"325211,Plastics Resin Preparation\n" +
		"423510,Metal Preparation Centers\n" +
		"541110,Legal Offices\n"
	if err := os.WriteFile(taxonomy, []byte(csv), 0o644); err != nil {
		t.Fatal(err)
	}
	cfgPath := filepath.Join(dir, "tradeprep.yaml")
	cfgYAML := "taxonomy:\n  path: " + taxonomy + "\nlog:\n  level: error\n"
	if err := os.WriteFile(cfgPath, []byte(cfgYAML), 0o644); err != nil {
		t.Fatal(err)
	}

	written := filepath.Join(dir, "stoplist.yaml")
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"--config", cfgPath, "stopwords", "--write", written})
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		t.Fatalf("stopwords: %v", err)
	}
	if !strings.Contains(out.String(), "preparation") {
		t.Errorf("output missing candidate:\n%s", out.String())
	}

	sl, err := config.LoadStoplist(written)
	if err != nil {
		t.Fatalf("LoadStoplist: %v", err)
	}
	if len(sl.Terms) != 1 || sl.Terms[0] != "preparation" {
		t.Errorf("terms = %v, want [preparation]", sl.Terms)
	}
}

func TestAdjudicateCommandExportsCSV(t *testing.T) {
	var prompts []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Messages []struct {
				Content string `json:"content"`
			} `json:"messages"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err == nil && len(req.Messages) > 0 {
			prompts = append(prompts, req.Messages[len(req.Messages)-1].Content)
		}
		reply := `{"case_title": "shoes", "best_match_code": "316211", "reasoning": "Shoes are footwear."}`
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{{"message": map[string]string{"role": "assistant", "content": reply}}},
		})
	}))
	defer srv.Close()

	dir := t.TempDir()
	taxonomy := filepath.Join(dir, "crosswalk.csv")
	csvText := "1997 NAICS,1997 NAICS Titles and Part Indicators\n" +
		"316211,Rubber and Plastics Footwear Manufacturing\n"
	if err := os.WriteFile(taxonomy, []byte(csvText), 0o644); err != nil {
		t.Fatal(err)
	}
	cfgPath := filepath.Join(dir, "tradeprep.yaml")
	cfgYAML := "taxonomy:\n  path: " + taxonomy +
		"\nstore:\n  path: " + filepath.Join(dir, "tradeprep.db") +
		"\nllm:\n  base_url: " + srv.URL + "\n  model: test\nlog:\n  level: error\n"
	if err := os.WriteFile(cfgPath, []byte(cfgYAML), 0o644); err != nil {
		t.Fatal(err)
	}

	outDir := filepath.Join(dir, "out")
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"--config", cfgPath, "adjudicate", "--out", outDir, "Certain Shoes from Brazil"})
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		t.Fatalf("adjudicate: %v", err)
	}

	if len(prompts) != 1 || !strings.Contains(prompts[0], "CODE: 316211") {
		t.Fatalf("prompts = %q", prompts)
	}
	f, err := os.Open(filepath.Join(outDir, "adjudications.csv"))
	if err != nil {
		t.Fatalf("export missing: %v", err)
	}
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 2 || rows[1][1] != "shoes" || rows[1][2] != "316211" || rows[1][6] != "" {
		t.Errorf("rows = %q", rows)
	}
}
