// Package summarize turns documents into structured research notes with a
// map-reduce over overlapping text chunks.
package summarize

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/cognicore/tradeprep/internal/llm"
	"github.com/cognicore/tradeprep/pkg/tradeprep/chunk"
	"github.com/cognicore/tradeprep/pkg/tradeprep/internalerr"
	"github.com/cognicore/tradeprep/pkg/tradeprep/stagecache"
)

// Defaults for Options.
const (
	DefaultWorkers     = 4
	DefaultMaxAttempts = 3
	DefaultRetryDelay  = 2 * time.Second
	DefaultTemperature = 0.02
	DefaultTopP        = 0.9
)

// ErrRetriesExhausted wraps the last transient failure of a generation
// call that ran out of attempts.
var ErrRetriesExhausted = errors.New("retries exhausted")

// Stage is the progress of one document through the pipeline.
type Stage int

const (
	StageNotStarted Stage = iota
	StageExtracted
	StageCleaned
	StageChunked
	StageMapped
	StageReduced
)

var stageNames = [...]string{"not_started", "extracted", "cleaned", "chunked", "mapped", "reduced"}

func (s Stage) String() string {
	if s < 0 || int(s) >= len(stageNames) {
		return fmt.Sprintf("stage(%d)", int(s))
	}
	return stageNames[s]
}

// Extractor returns the plain text of a document.
type Extractor interface {
	Extract(ctx context.Context, path string) (string, error)
}

// Cache stores stage outputs by document key.
type Cache interface {
	Load(ctx context.Context, key, stage string, v any) (bool, error)
	Save(ctx context.Context, key, stage string, v any) error
}

// ChunkSummary is the map output for one chunk. A chunk whose generation
// failed carries an error marker as Text and the failure in Err.
type ChunkSummary struct {
	SequenceID int    `json:"sequence_id"`
	Text       string `json:"text"`
	Err        string `json:"error,omitempty"`
}

// Failed reports whether the summary is an error marker.
func (s ChunkSummary) Failed() bool { return s.Err != "" }

// ChunkErrorMarker is the placeholder for a chunk that could not be
// summarized.
func ChunkErrorMarker(seq int, err error) string {
	return fmt.Sprintf("[ERROR: summary of excerpt %d unavailable: %v]", seq, err)
}

// SummaryErrorMarker is the placeholder for a failed reduce step.
func SummaryErrorMarker(err error) string {
	return fmt.Sprintf("[ERROR: summary unavailable: %v]", err)
}

// Result describes one processed document.
type Result struct {
	RunID     string
	Path      string
	Key       string
	Stage     Stage
	Direct    bool
	Chunks    []chunk.TextChunk
	Summaries []ChunkSummary
	Summary   string
	// FailedChunks counts map outputs replaced by error markers.
	FailedChunks int
	// ReduceFailed is set when Summary is an error marker.
	ReduceFailed bool
}

// Options configures a Pipeline.
type Options struct {
	Extractor   Extractor
	Generator   llm.Generator
	Chunker     *chunk.Chunker
	Cache       Cache
	Prompts     Prompts
	// Temperature and TopP default to DefaultTemperature and DefaultTopP
	// when nil. An explicit zero is sent as is.
	Temperature *float64
	TopP        *float64
	Workers     int
	MaxAttempts int
	RetryDelay  time.Duration
	// Force ignores cached stages. Fresh results are still written.
	Force  bool
	Logger *zap.Logger
}

// Pipeline runs documents through extraction, cleaning, chunking, map and
// reduce.
type Pipeline struct {
	opts    Options
	prompts Prompts
	logger  *zap.Logger
}

// New validates opts and fills defaults.
func New(opts Options) (*Pipeline, error) {
	if opts.Extractor == nil || opts.Generator == nil {
		return nil, fmt.Errorf("summarize: extractor and generator required: %w", internalerr.ErrInvalidConfig)
	}
	if opts.Chunker == nil {
		opts.Chunker = chunk.New()
	}
	if opts.Chunker.MaxTokens <= 0 || opts.Chunker.Overlap >= opts.Chunker.MaxTokens {
		return nil, fmt.Errorf("summarize: overlap %d must be below max tokens %d: %w",
			opts.Chunker.Overlap, opts.Chunker.MaxTokens, internalerr.ErrInvalidConfig)
	}
	if opts.Workers <= 0 {
		opts.Workers = DefaultWorkers
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = DefaultMaxAttempts
	}
	if opts.RetryDelay < 0 {
		opts.RetryDelay = 0
	}
	if opts.Temperature == nil {
		opts.Temperature = llm.Float(DefaultTemperature)
	}
	if opts.TopP == nil {
		opts.TopP = llm.Float(DefaultTopP)
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{opts: opts, prompts: opts.Prompts.withDefaults(), logger: logger}, nil
}

// Process summarizes the document at path. Extraction failures and fatal
// generation failures abort the document; transient generation failures
// that exhaust their attempts leave error markers in the result.
func (p *Pipeline) Process(ctx context.Context, path string) (*Result, error) {
	key, err := stagecache.Fingerprint(path)
	if err != nil {
		return nil, err
	}
	res := &Result{
		RunID: ulid.Make().String(),
		Path:  path,
		Key:   key,
		Stage: StageNotStarted,
	}
	log := p.logger.With(zap.String("doc", path), zap.String("run", res.RunID))

	var raw string
	if err := p.stage(ctx, key, StageExtracted, &raw, func() error {
		text, err := p.opts.Extractor.Extract(ctx, path)
		if err != nil {
			if errors.Is(err, internalerr.ErrExtraction) {
				return err
			}
			return fmt.Errorf("%w: %v", internalerr.ErrExtraction, err)
		}
		raw = text
		return nil
	}); err != nil {
		return res, err
	}
	res.Stage = StageExtracted

	var cleaned string
	if err := p.stage(ctx, key, StageCleaned, &cleaned, func() error {
		cleaned = chunk.Normalize(raw)
		return nil
	}); err != nil {
		return res, err
	}
	res.Stage = StageCleaned
	if cleaned == "" {
		return res, fmt.Errorf("%w: %s has no text", internalerr.ErrExtraction, path)
	}

	if p.opts.Chunker.ShouldSkip(cleaned) {
		log.Info("document below skip threshold, summarizing whole",
			zap.Int("tokens", p.opts.Chunker.Count(cleaned)))
		res.Direct = true
		res.Stage = StageMapped
		if err := p.reduce(ctx, key, res, fill(p.prompts.Direct, cleaned)); err != nil {
			return res, err
		}
		return res, nil
	}

	if err := p.stage(ctx, key, StageChunked, &res.Chunks, func() error {
		res.Chunks = p.opts.Chunker.Split(cleaned)
		return nil
	}); err != nil {
		return res, err
	}
	res.Stage = StageChunked
	log.Info("chunked", zap.Int("chunks", len(res.Chunks)))

	if err := p.mapStage(ctx, key, res); err != nil {
		return res, err
	}
	res.Stage = StageMapped

	if err := p.reduce(ctx, key, res, fill(p.prompts.Reduce, joinSummaries(res.Summaries))); err != nil {
		return res, err
	}
	log.Info("summarized",
		zap.Int("failed_chunks", res.FailedChunks),
		zap.Bool("reduce_failed", res.ReduceFailed))
	return res, nil
}

func (p *Pipeline) mapStage(ctx context.Context, key string, res *Result) error {
	if p.load(ctx, key, StageMapped, &res.Summaries) {
		return nil
	}
	summaries, err := p.mapChunks(ctx, res.Chunks)
	if err != nil {
		return err
	}
	res.Summaries = summaries
	for _, s := range summaries {
		if s.Failed() {
			res.FailedChunks++
		}
	}
	// Markers are not cached so a later run retries those chunks.
	if res.FailedChunks == 0 {
		p.save(ctx, key, StageMapped, summaries)
	}
	return nil
}

// mapChunks summarizes every chunk on a bounded worker pool. The result is
// ordered by sequence ID regardless of completion order.
func (p *Pipeline) mapChunks(ctx context.Context, chunks []chunk.TextChunk) ([]ChunkSummary, error) {
	summaries := make([]ChunkSummary, len(chunks))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.opts.Workers)

	for i, ch := range chunks {
		g.Go(func() error {
			out, err := p.generate(gctx, fill(p.prompts.Map, ch.Text))
			switch {
			case err == nil:
				summaries[i] = ChunkSummary{SequenceID: ch.SequenceID, Text: out}
			case errors.Is(err, ErrRetriesExhausted):
				p.logger.Warn("chunk summary failed", zap.Int("chunk", ch.SequenceID), zap.Error(err))
				summaries[i] = ChunkSummary{
					SequenceID: ch.SequenceID,
					Text:       ChunkErrorMarker(ch.SequenceID, err),
					Err:        err.Error(),
				}
			default:
				return fmt.Errorf("chunk %d: %w", ch.SequenceID, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].SequenceID < summaries[j].SequenceID
	})
	return summaries, nil
}

func (p *Pipeline) reduce(ctx context.Context, key string, res *Result, prompt string) error {
	if p.load(ctx, key, StageReduced, &res.Summary) {
		res.Stage = StageReduced
		return nil
	}
	out, err := p.generate(ctx, prompt)
	switch {
	case err == nil:
		res.Summary = out
		if res.FailedChunks == 0 {
			p.save(ctx, key, StageReduced, out)
		}
	case errors.Is(err, ErrRetriesExhausted):
		p.logger.Warn("reduce failed", zap.String("doc", res.Path), zap.Error(err))
		res.Summary = SummaryErrorMarker(err)
		res.ReduceFailed = true
	default:
		return fmt.Errorf("reduce: %w", err)
	}
	res.Stage = StageReduced
	return nil
}

// generate calls the generator with the fixed retry policy. Fatal errors
// and cancellation return at once.
func (p *Pipeline) generate(ctx context.Context, prompt string) (string, error) {
	opts := llm.Options{
		System:      p.prompts.System,
		Temperature: p.opts.Temperature,
		TopP:        p.opts.TopP,
	}
	var last error
	for attempt := 1; attempt <= p.opts.MaxAttempts; attempt++ {
		out, err := p.opts.Generator.Generate(ctx, prompt, opts)
		if err == nil && strings.TrimSpace(out) == "" {
			err = fmt.Errorf("empty generation: %w", internalerr.ErrTransient)
		}
		if err == nil {
			return strings.TrimSpace(out), nil
		}
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		if !internalerr.IsTransient(err) {
			return "", err
		}
		last = err
		p.logger.Debug("generation failed", zap.Int("attempt", attempt), zap.Error(err))

		if attempt < p.opts.MaxAttempts && p.opts.RetryDelay > 0 {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(p.opts.RetryDelay):
			}
		}
	}
	return "", fmt.Errorf("%w after %d attempts: %w", ErrRetriesExhausted, p.opts.MaxAttempts, last)
}

// stage loads a cached stage into v or runs compute and caches v.
func (p *Pipeline) stage(ctx context.Context, key string, s Stage, v any, compute func() error) error {
	if p.load(ctx, key, s, v) {
		return nil
	}
	if err := compute(); err != nil {
		return err
	}
	p.save(ctx, key, s, v)
	return nil
}

func (p *Pipeline) load(ctx context.Context, key string, s Stage, v any) bool {
	if p.opts.Cache == nil || p.opts.Force {
		return false
	}
	ok, err := p.opts.Cache.Load(ctx, key, s.String(), v)
	if err != nil {
		p.logger.Warn("cache load failed", zap.String("stage", s.String()), zap.Error(err))
		return false
	}
	return ok
}

func (p *Pipeline) save(ctx context.Context, key string, s Stage, v any) {
	if p.opts.Cache == nil {
		return
	}
	if err := p.opts.Cache.Save(ctx, key, s.String(), v); err != nil {
		p.logger.Warn("cache save failed", zap.String("stage", s.String()), zap.Error(err))
	}
}
