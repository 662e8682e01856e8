package summarize

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"
)

// Note is a rendered research note.
type Note struct {
	Source  string
	Summary string
	Model   string
	Date    time.Time
}

type frontMatter struct {
	Title  string `yaml:"title"`
	Date   string `yaml:"date"`
	Model  string `yaml:"model"`
	Format string `yaml:"format"`
}

// NoteTitle derives a title from a document file name:
// "steel_wire_rod.pdf" becomes "Steel Wire Rod - Research Summary".
func NoteTitle(source string) string {
	stem := strings.TrimSuffix(filepath.Base(source), filepath.Ext(source))
	stem = strings.Join(strings.Fields(strings.ReplaceAll(stem, "_", " ")), " ")
	return cases.Title(language.English).String(stem) + " - Research Summary"
}

// RenderQuarto renders n as a Quarto document.
func RenderQuarto(n Note) ([]byte, error) {
	date := n.Date
	if date.IsZero() {
		date = time.Now()
	}
	fm, err := yaml.Marshal(frontMatter{
		Title:  NoteTitle(n.Source),
		Date:   date.Format("2006-01-02"),
		Model:  n.Model,
		Format: "html",
	})
	if err != nil {
		return nil, fmt.Errorf("encode front matter: %w", err)
	}

	var buf bytes.Buffer
	buf.WriteString("---\n")
	buf.Write(fm)
	buf.WriteString("---\n\n# Paper Summary\n\n")
	buf.WriteString(strings.TrimSpace(n.Summary))
	fmt.Fprintf(&buf, "\n\n---\nGenerated by tradeprep summarize (model: %s)\n", n.Model)
	return buf.Bytes(), nil
}

// WriteQuarto writes n to <outDir>/<stem>/<stem>_summary.qmd and returns
// the path.
func WriteQuarto(outDir string, n Note) (string, error) {
	stem := strings.TrimSuffix(filepath.Base(n.Source), filepath.Ext(n.Source))
	dir := filepath.Join(outDir, stem)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}
	data, err := RenderQuarto(n)
	if err != nil {
		return "", err
	}
	path := filepath.Join(dir, stem+"_summary.qmd")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write note: %w", err)
	}
	return path, nil
}
