package chunk

import (
	"regexp"
	"strings"
	"unicode"
)

// Defaults for Chunker. Budgets are in TokenCounter units.
const (
	DefaultMaxTokens     = 4000
	DefaultOverlap       = 200
	DefaultSkipThreshold = 4000
)

var (
	paragraphBreak = regexp.MustCompile(`\n\s*\n`)
	sentenceEnd    = regexp.MustCompile(`[.!?]\s+`)
)

const paragraphSep = "\n\n"

// TextChunk is a contiguous span of the source text. The first OverlapLen
// bytes of Text repeat the tail of the previous chunk.
type TextChunk struct {
	SequenceID int    `json:"sequence_id"`
	Text       string `json:"text"`
	TokenCount int    `json:"token_count"`
	OverlapLen int    `json:"overlap_len"`
}

// Body returns the part of the chunk that is not carried over from the
// previous chunk.
func (c TextChunk) Body() string {
	if c.OverlapLen <= 0 || c.OverlapLen > len(c.Text) {
		return strings.TrimSpace(c.Text)
	}
	return strings.TrimSpace(c.Text[c.OverlapLen:])
}

// Chunker splits text into token-bounded, overlapping chunks.
type Chunker struct {
	MaxTokens int
	Overlap   int
	// SkipThreshold is the size at or below which a document is summarized
	// whole. Zero disables skipping.
	SkipThreshold int
	Counter       TokenCounter
}

// New returns a chunker with the default budgets and a character estimator.
func New() *Chunker {
	return &Chunker{
		MaxTokens:     DefaultMaxTokens,
		Overlap:       DefaultOverlap,
		SkipThreshold: DefaultSkipThreshold,
		Counter:       CharEstimator{CharsPerToken: DefaultCharsPerToken},
	}
}

// Count returns the estimated token count of text.
func (c *Chunker) Count(text string) int {
	if c.Counter == nil {
		return CharEstimator{}.Count(text)
	}
	return c.Counter.Count(text)
}

// ShouldSkip reports whether text is small enough to bypass chunking.
func (c *Chunker) ShouldSkip(text string) bool {
	return c.SkipThreshold > 0 && c.Count(text) <= c.SkipThreshold
}

type unit struct {
	text string
	// sep joins the unit to whatever precedes it in a chunk.
	sep   string
	split bool
}

// Split cuts text into chunks. Paragraphs are kept whole where they fit;
// oversized paragraphs are cut at sentence ends. A single sentence larger
// than MaxTokens becomes a chunk of its own.
func (c *Chunker) Split(text string) []TextChunk {
	units := c.units(text)
	if len(units) == 0 {
		return []TextChunk{}
	}

	var (
		chunks     []TextChunk
		buf        string
		overlapLen int
		body       bool
	)
	for i := 0; i < len(units); i++ {
		u := units[i]
		if body && c.Count(buf+u.sep+u.text) > c.MaxTokens {
			chunks = append(chunks, c.chunk(len(chunks)+1, buf, overlapLen))

			seed := c.overlapTail(buf, overlapLen)
			if seed != "" && !u.split && c.Count(seed+u.sep+u.text) > c.MaxTokens {
				if parts := sentenceUnits(u.text, u.sep); len(parts) > 1 {
					units = append(units[:i], append(parts, units[i+1:]...)...)
					u = units[i]
				}
			}
			buf = c.fitOverlap(seed, u)
			overlapLen = len(buf)
			body = false
		}
		if buf == "" {
			buf = u.text
		} else {
			buf += u.sep + u.text
		}
		body = true
	}
	if body {
		chunks = append(chunks, c.chunk(len(chunks)+1, buf, overlapLen))
	}
	return chunks
}

func (c *Chunker) chunk(seq int, text string, overlapLen int) TextChunk {
	return TextChunk{
		SequenceID: seq,
		Text:       text,
		TokenCount: c.Count(text),
		OverlapLen: overlapLen,
	}
}

func (c *Chunker) units(text string) []unit {
	var units []unit
	for _, p := range paragraphBreak.Split(text, -1) {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		sep := paragraphSep
		if len(units) == 0 {
			sep = ""
		}
		if c.Count(p) > c.MaxTokens {
			units = append(units, sentenceUnits(p, sep)...)
			continue
		}
		units = append(units, unit{text: p, sep: sep})
	}
	return units
}

// sentenceUnits cuts a paragraph after every '.', '!' or '?' followed by
// whitespace. The first sentence keeps the paragraph separator.
func sentenceUnits(p, sep string) []unit {
	var out []unit
	start := 0
	for _, loc := range sentenceEnd.FindAllStringIndex(p, -1) {
		s := strings.TrimSpace(p[start : loc[0]+1])
		start = loc[1]
		if s == "" {
			continue
		}
		out = append(out, unit{text: s, sep: " ", split: true})
	}
	if rest := strings.TrimSpace(p[start:]); rest != "" {
		out = append(out, unit{text: rest, sep: " ", split: true})
	}
	if len(out) > 0 {
		out[0].sep = sep
	}
	return out
}

// overlapTail returns the trailing part of a closed chunk of about
// c.Overlap tokens. It starts on a word and, when the window contains one,
// on a sentence start. Text before bodyStart came from the chunk before and
// is never carried again.
func (c *Chunker) overlapTail(text string, bodyStart int) string {
	if c.Overlap <= 0 {
		return ""
	}
	starts := wordStarts(text, bodyStart)
	if len(starts) == 0 {
		return ""
	}

	// Widest word-aligned suffix within the overlap budget.
	from := len(starts) - 1
	for i := len(starts) - 1; i >= 0; i-- {
		if c.Count(text[starts[i]:]) > c.Overlap {
			break
		}
		from = i
	}
	for _, s := range starts[from:] {
		if isSentenceStart(text, s, bodyStart) {
			return text[s:]
		}
	}
	return text[starts[from]:]
}

// fitOverlap drops leading words from seed until seed plus u fits the
// budget, and drops it entirely when nothing fits.
func (c *Chunker) fitOverlap(seed string, u unit) string {
	for seed != "" && c.Count(seed+u.sep+u.text) > c.MaxTokens {
		starts := wordStarts(seed, 0)
		if len(starts) < 2 {
			return ""
		}
		seed = seed[starts[1]:]
	}
	return seed
}

// wordStarts lists byte offsets at or after from where a word begins.
func wordStarts(text string, from int) []int {
	var out []int
	prevSpace := true
	for i, r := range text {
		space := unicode.IsSpace(r)
		if !space && prevSpace && i >= from {
			out = append(out, i)
		}
		prevSpace = space
	}
	return out
}

func isSentenceStart(text string, at, bodyStart int) bool {
	if at <= bodyStart {
		return true
	}
	before := strings.TrimRightFunc(text[:at], unicode.IsSpace)
	if before == "" {
		return true
	}
	if strings.Contains(text[len(before):at], "\n") {
		return true
	}
	switch before[len(before)-1] {
	case '.', '!', '?':
		return true
	}
	return false
}
