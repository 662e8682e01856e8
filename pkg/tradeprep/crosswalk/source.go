package crosswalk

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/cognicore/tradeprep/pkg/tradeprep/internalerr"
)

// Default column headers of the 1987 SIC to 1997 NAICS concordance.
const (
	DefaultCodeColumn  = "1997 NAICS"
	DefaultTitleColumn = "1997 NAICS Titles and Part Indicators"
)

// SourceOptions selects the code and title columns of a taxonomy table.
// Header matching is case-insensitive and ignores surrounding spaces.
type SourceOptions struct {
	CodeColumn  string
	TitleColumn string
}

// LoadCSV reads taxonomy rows from a CSV file.
func LoadCSV(path string, opts SourceOptions) ([]Row, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open taxonomy: %w", err)
	}
	defer f.Close()
	return ReadCSV(f, opts)
}

// ReadCSV reads taxonomy rows. Rows are returned as-is, including ones with
// empty fields; Build is responsible for skipping them.
func ReadCSV(r io.Reader, opts SourceOptions) ([]Row, error) {
	if opts.CodeColumn == "" {
		opts.CodeColumn = DefaultCodeColumn
	}
	if opts.TitleColumn == "" {
		opts.TitleColumn = DefaultTitleColumn
	}

	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("read taxonomy header: %w", err)
	}
	codeIdx := columnIndex(header, opts.CodeColumn)
	titleIdx := columnIndex(header, opts.TitleColumn)
	if codeIdx < 0 || titleIdx < 0 {
		return nil, fmt.Errorf("%w: taxonomy needs columns %q and %q", internalerr.ErrInvalidConfig, opts.CodeColumn, opts.TitleColumn)
	}

	var rows []Row
	for {
		rec, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read taxonomy: %w", err)
		}
		rows = append(rows, Row{
			Code:  normalizeCode(field(rec, codeIdx)),
			Title: field(rec, titleIdx),
		})
	}
	return rows, nil
}

func columnIndex(header []string, name string) int {
	name = strings.ToLower(strings.TrimSpace(name))
	for i, h := range header {
		if strings.ToLower(strings.TrimSpace(h)) == name {
			return i
		}
	}
	return -1
}

func field(rec []string, i int) string {
	if i >= len(rec) {
		return ""
	}
	return strings.TrimSpace(rec[i])
}

// normalizeCode undoes spreadsheet float formatting ("311111.0").
func normalizeCode(code string) string {
	if strings.HasSuffix(code, ".0") {
		return strings.TrimSuffix(code, ".0")
	}
	return code
}
