package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/cognicore/tradeprep/internal/llm"
	"github.com/cognicore/tradeprep/pkg/tradeprep/adjudicate"
	"github.com/cognicore/tradeprep/pkg/tradeprep/config"
)

var (
	adjudicateTopN          int
	adjudicateMinConfidence float64
	adjudicateOut           string
)

var adjudicateCmd = &cobra.Command{
	Use:   "adjudicate [title...]",
	Short: "Let the language model pick industries for weakly matched titles",
	Long: `With titles as arguments, each is cleaned and adjudicated. Without
arguments, stored classifications below --min-confidence are adjudicated.
Every stored adjudication is then exported to adjudications.csv in --out.`,
	RunE: runAdjudicate,
}

func init() {
	adjudicateCmd.Flags().IntVar(&adjudicateTopN, "top", adjudicate.DefaultTopN, "Candidate industries offered to the model")
	adjudicateCmd.Flags().Float64Var(&adjudicateMinConfidence, "min-confidence", adjudicate.DefaultMinConfidence, "Adjudicate stored matches below this confidence")
	adjudicateCmd.Flags().StringVarP(&adjudicateOut, "out", "o", "data", "Directory for the exported CSV")
	rootCmd.AddCommand(adjudicateCmd)
}

func runAdjudicate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	loader := &config.Loader{Config: cfg}
	comp, err := loader.Load()
	if err != nil {
		return err
	}
	gen, err := loader.Generator(ctx)
	if err != nil {
		return err
	}

	st, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer st.Close()

	var titles []string
	if len(args) > 0 {
		for _, a := range args {
			titles = append(titles, comp.Cleaner.Clean(a))
		}
	} else {
		recs, err := st.ListClassifications(ctx, false)
		if err != nil {
			return err
		}
		titles = adjudicate.Weak(recs, adjudicateMinConfidence)
	}
	if len(titles) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "Nothing to adjudicate.")
		return nil
	}

	a := &adjudicate.Adjudicator{
		Matcher:   comp.Matcher,
		Generator: gen,
		Model:     cfg.LLM.Model,
		TopN:      adjudicateTopN,
		Options:   llm.Options{Temperature: cfg.LLM.Temperature, TopP: cfg.LLM.TopP},
		Store:     st,
		Logger:    logger.Named("adjudicate"),
	}
	results, err := a.Run(ctx, titles)
	out := cmd.OutOrStdout()
	for _, r := range results {
		if r.Err != "" {
			fmt.Fprintf(out, "%-50s ERROR %s\n", r.CaseTitle, r.Err)
			continue
		}
		fmt.Fprintf(out, "%-50s %s  %s\n", r.CaseTitle, r.Code, r.Reasoning)
	}
	if err != nil {
		return err
	}

	stored, err := st.ListAdjudications(ctx)
	if err != nil {
		return err
	}
	path, err := adjudicate.Export(adjudicateOut, stored)
	if err != nil {
		return err
	}
	logger.Info("adjudications exported", zap.String("path", path), zap.Int("rows", len(stored)))
	fmt.Fprintf(out, "\nSaved %s\n", path)
	return nil
}
