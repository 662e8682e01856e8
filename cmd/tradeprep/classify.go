package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/cognicore/tradeprep/pkg/tradeprep/classify"
	"github.com/cognicore/tradeprep/pkg/tradeprep/config"
)

var (
	classifyScrape bool
	classifyOut    string
)

var classifyCmd = &cobra.Command{
	Use:   "classify",
	Short: "Match stored publication titles to NAICS industries and export CSVs",
	RunE:  runClassify,
}

func init() {
	classifyCmd.Flags().BoolVar(&classifyScrape, "scrape", false, "Scrape the listing before classifying")
	classifyCmd.Flags().StringVarP(&classifyOut, "out", "o", "data", "Directory for the exported CSVs")
	rootCmd.AddCommand(classifyCmd)
}

func runClassify(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	comp, err := (&config.Loader{Config: cfg}).Load()
	if err != nil {
		return err
	}
	stats := comp.Index.Stats()
	logger.Info("crosswalk loaded",
		zap.Int("rows", stats.Rows),
		zap.Int("skipped", stats.Skipped),
		zap.Int("codes", stats.Entries),
		zap.Int("keywords", stats.Keywords))

	st, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer st.Close()

	if classifyScrape {
		if _, err := scrapeInto(ctx, st); err != nil {
			return err
		}
	}
	pubs, err := st.ListPublications(ctx)
	if err != nil {
		return err
	}
	if len(pubs) == 0 {
		return fmt.Errorf("no publications stored; run 'tradeprep scrape' first")
	}

	c := &classify.Classifier{Cleaner: comp.Cleaner, Matcher: comp.Matcher, Store: st, Logger: logger.Named("classify")}
	recs, err := c.Run(ctx, pubs)
	if err != nil {
		return err
	}
	full, priority, err := classify.Export(classifyOut, recs)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	s := classify.Summarize(recs, 10)
	fmt.Fprintf(out, "Classified %d publications (%d matched).\n", s.Total, s.Matched)
	fmt.Fprintf(out, "Priority sector matches: %d (%.1f%%)\n", s.Priority, 100*s.PriorityShare)
	fmt.Fprintf(out, "Average match confidence: %.2f\n", s.MeanConfidence)
	fmt.Fprintln(out, "\nTop industries by frequency:")
	for _, ind := range s.TopIndustries {
		fmt.Fprintf(out, "  %-60s %d\n", ind.Industry, ind.Count)
	}
	fmt.Fprintf(out, "\nSaved %s\nSaved %s\n", full, priority)
	return nil
}
