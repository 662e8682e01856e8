package crosswalk

import (
	"regexp"
	"strings"
	"unicode"
)

// Default title cleaning markers used for USITC investigation titles.
const (
	DefaultStripPrefix    = "certain"
	DefaultTrailingMarker = "from"
)

// Cleaner normalizes raw case titles before matching.
type Cleaner struct {
	prefix  *regexp.Regexp
	trailer *regexp.Regexp
}

// NewCleaner builds a cleaner that drops a leading qualifier word and
// everything from the trailing marker word onward. Empty markers disable
// the corresponding step.
func NewCleaner(stripPrefix, trailingMarker string) *Cleaner {
	c := &Cleaner{}
	if p := strings.ToLower(strings.TrimSpace(stripPrefix)); p != "" {
		c.prefix = regexp.MustCompile(`^\s*` + regexp.QuoteMeta(p) + `\s+`)
	}
	if m := strings.ToLower(strings.TrimSpace(trailingMarker)); m != "" {
		c.trailer = regexp.MustCompile(`(?s)\s+` + regexp.QuoteMeta(m) + `\b.*$`)
	}
	return c
}

// DefaultCleaner returns a cleaner with the default markers.
func DefaultCleaner() *Cleaner {
	return NewCleaner(DefaultStripPrefix, DefaultTrailingMarker)
}

// Clean lowercases title, strips the qualifier prefix and trailing clause,
// removes everything that is not a letter, digit or whitespace and trims.
func (c *Cleaner) Clean(title string) string {
	t := strings.ToLower(title)
	if c.prefix != nil {
		t = c.prefix.ReplaceAllString(t, "")
	}
	if c.trailer != nil {
		t = c.trailer.ReplaceAllString(t, "")
	}
	t = strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) {
			return r
		}
		return -1
	}, t)
	return strings.TrimSpace(t)
}
