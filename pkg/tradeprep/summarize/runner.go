package summarize

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/cognicore/tradeprep/pkg/tradeprep/stagecache"
	"github.com/cognicore/tradeprep/pkg/tradeprep/store"
)

// Runner processes one document end to end: it locks the document's cache
// entry, runs the pipeline, writes the Quarto note and records the summary.
// A document whose stored summary matches its fingerprint, has no error
// markers and still has its note is skipped.
type Runner struct {
	Pipeline *Pipeline
	// Locks guards each document against concurrent runs when set.
	Locks *stagecache.Dir
	// Store receives the summary record when set.
	Store store.Store
	// OutputDir receives the Quarto note; empty skips the note.
	OutputDir string
	Model     string
	// Force reruns current documents and drops their cached stages first.
	Force  bool
	Logger *zap.Logger

	now func() time.Time
}

// Run summarizes path and returns its summary record.
func (r *Runner) Run(ctx context.Context, path string) (store.Summary, error) {
	logger := r.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	key, err := stagecache.Fingerprint(path)
	if err != nil {
		return store.Summary{}, err
	}
	if !r.Force {
		if prev, ok := r.current(ctx, path, key, logger); ok {
			logger.Info("research note up to date", zap.String("doc", path), zap.String("note", prev.NotePath))
			return prev, nil
		}
	}

	if r.Locks != nil {
		unlock, err := r.Locks.Lock(ctx, key)
		if err != nil {
			return store.Summary{}, err
		}
		defer unlock()
		if r.Force {
			if err := r.Locks.Invalidate(ctx, key); err != nil {
				return store.Summary{}, err
			}
		}
	}

	res, err := r.Pipeline.Process(ctx, path)
	if err != nil {
		return store.Summary{}, fmt.Errorf("summarize %s: %w", path, err)
	}

	now := time.Now().UTC()
	if r.now != nil {
		now = r.now()
	}
	sum := store.Summary{
		Path:         path,
		Key:          res.Key,
		RunID:        res.RunID,
		Model:        r.Model,
		Text:         res.Summary,
		Direct:       res.Direct,
		Chunks:       len(res.Chunks),
		FailedChunks: res.FailedChunks,
		CreatedAt:    now,
	}

	if r.OutputDir != "" {
		notePath, err := WriteQuarto(r.OutputDir, Note{Source: path, Summary: res.Summary, Model: r.Model, Date: now})
		if err != nil {
			return sum, err
		}
		sum.NotePath = notePath
	}
	if r.Store != nil {
		if err := r.Store.UpsertSummary(ctx, sum); err != nil {
			return sum, fmt.Errorf("store summary: %w", err)
		}
	}

	logger.Info("research note written",
		zap.String("doc", path),
		zap.String("note", sum.NotePath),
		zap.Int("chunks", sum.Chunks),
		zap.Int("failed_chunks", sum.FailedChunks))
	return sum, nil
}

// current returns the stored summary of path when it can be reused.
func (r *Runner) current(ctx context.Context, path, key string, logger *zap.Logger) (store.Summary, bool) {
	if r.Store == nil {
		return store.Summary{}, false
	}
	prev, ok, err := r.Store.GetSummary(ctx, path)
	if err != nil {
		logger.Warn("summary lookup failed", zap.String("doc", path), zap.Error(err))
		return store.Summary{}, false
	}
	if !ok || prev.Key != key || prev.FailedChunks > 0 || strings.HasPrefix(prev.Text, "[ERROR:") {
		return store.Summary{}, false
	}
	if r.OutputDir != "" {
		if prev.NotePath == "" {
			return store.Summary{}, false
		}
		if _, err := os.Stat(prev.NotePath); err != nil {
			return store.Summary{}, false
		}
	}
	return prev, true
}
