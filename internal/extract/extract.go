// Package extract reads the plain text of documents.
package extract

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"code.sajari.com/docconv/v2"

	"github.com/cognicore/tradeprep/pkg/tradeprep/internalerr"
)

var plainExts = map[string]bool{".txt": true, ".md": true}

var docconvExts = map[string]bool{".pdf": true, ".docx": true, ".odt": true, ".doc": true, ".rtf": true}

// FileExtractor reads text files directly and converts office documents and
// PDFs with docconv.
type FileExtractor struct{}

// CanRead reports whether path has a supported extension.
func (FileExtractor) CanRead(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return plainExts[ext] || docconvExts[ext]
}

// Extract returns the text of the document at path. Every failure wraps
// internalerr.ErrExtraction.
func (e FileExtractor) Extract(ctx context.Context, path string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	ext := strings.ToLower(filepath.Ext(path))
	switch {
	case plainExts[ext]:
		buf, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("%w: reading text file: %v", internalerr.ErrExtraction, err)
		}
		return string(buf), nil
	case docconvExts[ext]:
		res, err := docconv.ConvertPath(path)
		if err != nil {
			return "", fmt.Errorf("%w: converting %s: %v", internalerr.ErrExtraction, filepath.Base(path), err)
		}
		return res.Body, nil
	default:
		return "", fmt.Errorf("%w: unsupported file type %q", internalerr.ErrExtraction, ext)
	}
}
