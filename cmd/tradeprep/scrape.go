package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cognicore/tradeprep/pkg/tradeprep/config"
	"github.com/cognicore/tradeprep/pkg/tradeprep/scrape"
	"github.com/cognicore/tradeprep/pkg/tradeprep/store"
)

var scrapeMaxPages int

var scrapeCmd = &cobra.Command{
	Use:   "scrape",
	Short: "Download the publication listing into the store",
	RunE:  runScrape,
}

func init() {
	scrapeCmd.Flags().IntVar(&scrapeMaxPages, "max-pages", 0, "Read at most this many listing pages (0 reads all)")
	rootCmd.AddCommand(scrapeCmd)
}

func runScrape(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	st, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer st.Close()

	pubs, err := scrapeInto(ctx, st)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Scraped %d publications.\n", len(pubs))
	for _, s := range scrape.TopSubjects(pubs, 10) {
		fmt.Fprintf(cmd.OutOrStdout(), "  %-40s %d\n", s.Subject, s.Count)
	}
	return nil
}

// scrapeInto scrapes the listing and stores the publications.
func scrapeInto(ctx context.Context, st store.Store) ([]scrape.Publication, error) {
	loader := &config.Loader{Config: cfg}
	client, err := scrape.NewClient(loader.ScrapeConfig(), nil, logger.Named("scrape"))
	if err != nil {
		return nil, err
	}

	maxPages := scrapeMaxPages
	if maxPages == 0 {
		maxPages = cfg.Scrape.MaxPages
	}
	pubs, err := client.Scrape(ctx, maxPages)
	if err != nil {
		return nil, err
	}
	if err := st.UpsertPublications(ctx, pubs); err != nil {
		return nil, fmt.Errorf("store publications: %w", err)
	}
	return pubs, nil
}
