package classify

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/cognicore/tradeprep/pkg/tradeprep/store"
)

// Export file names.
const (
	FullCSV     = "crosswalk_full.csv"
	PriorityCSV = "crosswalk_priority_sectors.csv"
)

var header = []string{
	"pub_number", "title", "date", "subject", "type", "cleaned_title",
	"naics", "industry", "sector", "sector_name", "match_confidence",
	"is_large_industry", "alternative_matches", "matched_keywords",
	"unmatched_keywords", "total_keywords", "link",
}

// WriteCSV writes recs with a header row. Alternatives are encoded as JSON
// and keyword lists are comma-joined.
func WriteCSV(w io.Writer, recs []store.Classification) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, r := range recs {
		alts, err := json.Marshal(r.Alternatives)
		if err != nil {
			return fmt.Errorf("encode alternatives: %w", err)
		}
		row := []string{
			r.PubNumber, r.Title, r.Date, r.Subject, r.Type, r.CleanTitle,
			r.Code, r.IndustryTitle, r.Sector, r.SectorName,
			strconv.FormatFloat(r.Confidence, 'f', 4, 64),
			strconv.FormatBool(r.IsPrioritySector),
			string(alts),
			strings.Join(r.MatchedKeywords, ","),
			strings.Join(r.UnmatchedKeywords, ","),
			strconv.Itoa(r.TotalTokens),
			r.Link,
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// Export writes the full and priority-sector CSVs into dir and returns
// their paths.
func Export(dir string, recs []store.Classification) (full, priority string, err error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", "", fmt.Errorf("create output dir: %w", err)
	}
	full = filepath.Join(dir, FullCSV)
	if err := writeFile(full, recs); err != nil {
		return "", "", err
	}
	priority = filepath.Join(dir, PriorityCSV)
	if err := writeFile(priority, Priority(recs)); err != nil {
		return "", "", err
	}
	return full, priority, nil
}

func writeFile(path string, recs []store.Classification) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := WriteCSV(f, recs); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}
