package adjudicate

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cognicore/tradeprep/pkg/tradeprep/store"
)

// ExportCSV is the adjudication export file name.
const ExportCSV = "adjudications.csv"

var header = []string{
	"id", "case_title", "best_match_code", "reasoning", "candidates",
	"model", "error", "created_at",
}

// WriteCSV writes results with a header row. Candidate codes are
// comma-joined.
func WriteCSV(w io.Writer, results []store.Adjudication) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, r := range results {
		row := []string{
			r.ID, r.CaseTitle, r.Code, r.Reasoning,
			strings.Join(r.Candidates, ","),
			r.Model, r.Err,
			r.CreatedAt.UTC().Format(time.RFC3339),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// Export writes results to ExportCSV in dir and returns the path.
func Export(dir string, results []store.Adjudication) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}
	path := filepath.Join(dir, ExportCSV)
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", path, err)
	}
	if err := WriteCSV(f, results); err != nil {
		f.Close()
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	return path, f.Close()
}
