package config

import (
	"context"
	"fmt"
	"net/http"

	"github.com/cognicore/tradeprep/internal/llm"
	"github.com/cognicore/tradeprep/pkg/tradeprep/chunk"
	"github.com/cognicore/tradeprep/pkg/tradeprep/crosswalk"
	"github.com/cognicore/tradeprep/pkg/tradeprep/scrape"
	"github.com/cognicore/tradeprep/pkg/tradeprep/summarize"
)

// Loader constructs components from a configuration
type Loader struct {
	Config *Config
}

// Components holds the classification components built from the taxonomy
type Components struct {
	Index   *crosswalk.Index
	Matcher *crosswalk.Matcher
	Cleaner *crosswalk.Cleaner
}

// Load reads the taxonomy table and stoplist and returns the matcher and
// title cleaner
func (l *Loader) Load() (*Components, error) {
	cfg := l.config()
	stopwords, err := l.Stopwords()
	if err != nil {
		return nil, err
	}
	rows, err := l.Rows()
	if err != nil {
		return nil, err
	}

	idx := crosswalk.Build(rows, crosswalk.BuildOptions{
		Stopwords:       stopwords,
		PrioritySectors: cfg.Taxonomy.PrioritySectors,
	})
	return &Components{
		Index:   idx,
		Matcher: crosswalk.NewMatcher(idx),
		Cleaner: crosswalk.NewCleaner(cfg.Title.StripPrefix, cfg.Title.TrailingMarker),
	}, nil
}

// Stopwords returns the configured stopwords extended by the stoplist file.
func (l *Loader) Stopwords() ([]string, error) {
	cfg := l.config()
	stopwords := append([]string(nil), cfg.Taxonomy.Stopwords...)
	if cfg.Taxonomy.Stoplist != "" {
		sl, err := LoadStoplist(cfg.Taxonomy.Stoplist)
		if err != nil {
			return nil, fmt.Errorf("load stoplist: %w", err)
		}
		stopwords = append(stopwords, sl.Terms...)
	}
	return stopwords, nil
}

// Rows reads the taxonomy table.
func (l *Loader) Rows() ([]crosswalk.Row, error) {
	cfg := l.config()
	rows, err := crosswalk.LoadCSV(cfg.Taxonomy.Path, crosswalk.SourceOptions{
		CodeColumn:  cfg.Taxonomy.CodeColumn,
		TitleColumn: cfg.Taxonomy.TitleColumn,
	})
	if err != nil {
		return nil, fmt.Errorf("load taxonomy: %w", err)
	}
	return rows, nil
}

// Chunker returns the summarize chunker. A configured tokenizer file
// replaces the character estimate.
func (l *Loader) Chunker() (*chunk.Chunker, error) {
	cfg := l.config().Summarize
	c := &chunk.Chunker{
		MaxTokens:     cfg.MaxTokens,
		Overlap:       cfg.Overlap,
		SkipThreshold: cfg.SkipThreshold,
		Counter:       chunk.CharEstimator{CharsPerToken: cfg.CharsPerToken},
	}
	if cfg.TokenizerFile != "" {
		tc, err := chunk.NewTokenizerCounter(cfg.TokenizerFile)
		if err != nil {
			return nil, fmt.Errorf("load tokenizer: %w", err)
		}
		c.Counter = tc
	}
	return c, nil
}

// Generator returns the text generator of the configured provider.
func (l *Loader) Generator(ctx context.Context) (llm.Generator, error) {
	cfg := l.config().LLM
	switch cfg.Provider {
	case ProviderGemini:
		return llm.NewGeminiClient(ctx, cfg.APIKey, cfg.Model)
	default:
		return &llm.Client{
			BaseURL:    cfg.BaseURL,
			APIKey:     cfg.APIKey,
			Model:      cfg.Model,
			HTTPClient: &http.Client{Timeout: cfg.Timeout},
		}, nil
	}
}

// ScrapeConfig returns the listing client settings.
func (l *Loader) ScrapeConfig() scrape.Config {
	s := l.config().Scrape
	return scrape.Config{
		BaseURL:      s.BaseURL,
		Params:       s.Params,
		Headers:      s.Headers,
		CacheDir:     s.CacheDir,
		MaxAttempts:  s.MaxAttempts,
		RequestDelay: s.RequestDelay,
		RetryDelay:   s.RetryDelay,
		Timeout:      s.Timeout,
	}
}

// Prompts returns the summarize prompts, defaults filling unset templates.
func (l *Loader) Prompts() summarize.Prompts {
	p := l.config().Summarize.Prompts
	return summarize.Prompts{System: p.System, Map: p.Map, Reduce: p.Reduce, Direct: p.Direct}
}

func (l *Loader) config() *Config {
	if l.Config == nil {
		l.Config = Default()
	}
	return l.Config
}
