package chunk

import (
	"fmt"
	"sync"
	"unicode/utf8"

	"github.com/sugarme/tokenizer"
	"github.com/sugarme/tokenizer/pretrained"
)

// DefaultCharsPerToken is the ratio used by the default estimator.
const DefaultCharsPerToken = 4

// TokenCounter estimates the number of model tokens in a piece of text.
// Implementations must be deterministic.
type TokenCounter interface {
	Count(text string) int
}

// CounterFunc adapts a plain function to TokenCounter.
type CounterFunc func(text string) int

// Count implements TokenCounter.
func (f CounterFunc) Count(text string) int { return f(text) }

// CharEstimator counts one token per CharsPerToken runes, rounded up.
type CharEstimator struct {
	CharsPerToken int
}

// Count implements TokenCounter.
func (e CharEstimator) Count(text string) int {
	n := utf8.RuneCountInString(text)
	if n == 0 {
		return 0
	}
	per := e.CharsPerToken
	if per <= 0 {
		per = DefaultCharsPerToken
	}
	return (n + per - 1) / per
}

// TokenizerCounter counts tokens with a HuggingFace tokenizer.json.
type TokenizerCounter struct {
	mu       sync.Mutex
	tk       *tokenizer.Tokenizer
	fallback CharEstimator
}

// NewTokenizerCounter loads a tokenizer definition from path.
func NewTokenizerCounter(path string) (*TokenizerCounter, error) {
	tk, err := pretrained.FromFile(path)
	if err != nil {
		return nil, fmt.Errorf("load tokenizer %s: %w", path, err)
	}
	return &TokenizerCounter{tk: tk}, nil
}

// Count implements TokenCounter. Text the tokenizer rejects is estimated
// by character count instead.
func (c *TokenizerCounter) Count(text string) int {
	if text == "" {
		return 0
	}
	c.mu.Lock()
	enc, err := c.tk.EncodeSingle(text, false)
	c.mu.Unlock()
	if err != nil || enc == nil {
		return c.fallback.Count(text)
	}
	return len(enc.Ids)
}
