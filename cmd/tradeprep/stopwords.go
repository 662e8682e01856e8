package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/cognicore/tradeprep/pkg/tradeprep/config"
	"github.com/cognicore/tradeprep/pkg/tradeprep/stoplist"
)

var (
	stopMinDF     int
	stopDFPercent float64
	stopEntropy   float64
	stopWrite     string
)

var stopwordsCmd = &cobra.Command{
	Use:   "stopwords",
	Short: "Suggest taxonomy words that spread across many sectors as stopwords",
	RunE:  runStopwords,
}

func init() {
	th := stoplist.DefaultThresholds()
	stopwordsCmd.Flags().IntVar(&stopMinDF, "min-df", th.MinDF, "Minimum number of industry codes containing the word")
	stopwordsCmd.Flags().Float64Var(&stopDFPercent, "df-percent", th.DFPercent, "Minimum percentage of industry codes containing the word")
	stopwordsCmd.Flags().Float64Var(&stopEntropy, "entropy", th.SectorEntropy, "Minimum normalized sector entropy")
	stopwordsCmd.Flags().StringVarP(&stopWrite, "write", "w", "", "Write the suggestions as a stoplist YAML file")
	rootCmd.AddCommand(stopwordsCmd)
}

func runStopwords(cmd *cobra.Command, args []string) error {
	loader := &config.Loader{Config: cfg}
	stops, err := loader.Stopwords()
	if err != nil {
		return err
	}
	rows, err := loader.Rows()
	if err != nil {
		return err
	}

	mgr := stoplist.NewManager(stops)
	cands := mgr.SuggestCandidates(stoplist.Collect(rows), stoplist.Thresholds{
		MinDF:         stopMinDF,
		DFPercent:     stopDFPercent,
		SectorEntropy: stopEntropy,
	})
	logger.Info("stopword candidates", zap.Int("rows", len(rows)), zap.Int("candidates", len(cands)))

	out := cmd.OutOrStdout()
	if len(cands) == 0 {
		fmt.Fprintln(out, "No stopword candidates.")
		return nil
	}
	fmt.Fprintf(out, "%-20s %6s %8s %8s %6s\n", "WORD", "DF", "DF%", "ENTROPY", "SCORE")
	terms := make([]string, 0, len(cands))
	for _, c := range cands {
		fmt.Fprintf(out, "%-20s %6d %8.2f %8.3f %6.3f\n", c.Token, c.DF, c.DFPercent, c.SectorEntropy, c.Score)
		terms = append(terms, c.Token)
	}

	if stopWrite == "" {
		return nil
	}
	data, err := yaml.Marshal(config.Stoplist{Terms: terms})
	if err != nil {
		return err
	}
	if err := os.WriteFile(stopWrite, data, 0o644); err != nil {
		return fmt.Errorf("write stoplist: %w", err)
	}
	fmt.Fprintf(out, "\nSaved %s (set taxonomy.stoplist to apply)\n", stopWrite)
	return nil
}
