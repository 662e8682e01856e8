package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/cognicore/tradeprep/internal/extract"
	"github.com/cognicore/tradeprep/internal/watch"
	"github.com/cognicore/tradeprep/pkg/tradeprep/config"
	"github.com/cognicore/tradeprep/pkg/tradeprep/internalerr"
	"github.com/cognicore/tradeprep/pkg/tradeprep/stagecache"
	"github.com/cognicore/tradeprep/pkg/tradeprep/summarize"
)

var (
	summarizeWatch  string
	summarizeForce  bool
	summarizeOutDir string
)

var summarizeCmd = &cobra.Command{
	Use:   "summarize [document...]",
	Short: "Turn research papers into structured Quarto notes",
	Long: `Each document is extracted, cleaned, split into overlapping chunks,
summarized chunk by chunk and combined into one research note. Stage outputs
are cached per document so interrupted runs resume where they stopped.

With --watch DIR, PDFs created in DIR are summarized as they arrive.`,
	RunE: runSummarize,
}

func init() {
	summarizeCmd.Flags().StringVar(&summarizeWatch, "watch", "", "Watch a directory for new PDFs")
	summarizeCmd.Flags().BoolVar(&summarizeForce, "force", false, "Ignore cached stages and rerun documents that are up to date")
	summarizeCmd.Flags().StringVarP(&summarizeOutDir, "out", "o", "", "Directory for notes (overrides config)")
	rootCmd.AddCommand(summarizeCmd)
}

func runSummarize(cmd *cobra.Command, args []string) error {
	if len(args) == 0 && summarizeWatch == "" {
		return errors.New("give documents to summarize or --watch DIR")
	}
	ctx := cmd.Context()

	runner, closeStore, err := newRunner(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	var failed int
	for _, path := range args {
		sum, err := runner.Run(ctx, path)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, internalerr.ErrNotFound) {
				logger.Error("document not found", zap.String("doc", path))
				failed++
				continue
			}
			logger.Error("document failed", zap.String("doc", path), zap.Error(err))
			failed++
			continue
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s -> %s\n", path, sum.NotePath)
		if sum.FailedChunks > 0 {
			fmt.Fprintf(cmd.OutOrStdout(), "  %d excerpt(s) could not be summarized\n", sum.FailedChunks)
		}
	}

	if summarizeWatch != "" {
		w := &watch.Watcher{
			Dir:  summarizeWatch,
			Exts: []string{".pdf"},
			Handle: func(ctx context.Context, path string) error {
				_, err := runner.Run(ctx, path)
				return err
			},
			Logger: logger.Named("watch"),
		}
		if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d documents failed", failed, len(args))
	}
	return nil
}

func newRunner(ctx context.Context) (*summarize.Runner, func(), error) {
	loader := &config.Loader{Config: cfg}
	sc := cfg.Summarize

	chunker, err := loader.Chunker()
	if err != nil {
		return nil, nil, err
	}
	gen, err := loader.Generator(ctx)
	if err != nil {
		return nil, nil, err
	}
	locks, err := stagecache.Open(sc.CacheDir)
	if err != nil {
		return nil, nil, err
	}
	st, err := openStore(ctx)
	if err != nil {
		return nil, nil, err
	}
	var cache summarize.Cache = locks
	if sc.CacheBackend == config.CacheBackendStore {
		cache = st
	}

	p, err := summarize.New(summarize.Options{
		Extractor:   extract.FileExtractor{},
		Generator:   gen,
		Chunker:     chunker,
		Cache:       cache,
		Prompts:     loader.Prompts(),
		Temperature: cfg.LLM.Temperature,
		TopP:        cfg.LLM.TopP,
		Workers:     sc.Workers,
		MaxAttempts: sc.MaxAttempts,
		RetryDelay:  sc.RetryDelay,
		Force:       summarizeForce || sc.Force,
		Logger:      logger.Named("summarize"),
	})
	if err != nil {
		st.Close()
		return nil, nil, err
	}

	outDir := sc.OutputDir
	if summarizeOutDir != "" {
		outDir = summarizeOutDir
	}
	return &summarize.Runner{
		Pipeline:  p,
		Locks:     locks,
		Store:     st,
		OutputDir: outDir,
		Model:     cfg.LLM.Model,
		Force:     summarizeForce || sc.Force,
		Logger:    logger.Named("summarize"),
	}, func() { _ = st.Close() }, nil
}
