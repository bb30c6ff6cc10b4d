package main

import (
	"context"
	"encoding/json"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/leadgen-cli/internal/assemble"
	"github.com/sells-group/leadgen-cli/internal/browser"
	"github.com/sells-group/leadgen-cli/internal/flow"
	"github.com/sells-group/leadgen-cli/internal/insight"
	"github.com/sells-group/leadgen-cli/internal/model"
	"github.com/sells-group/leadgen-cli/internal/pipeline"
	"github.com/sells-group/leadgen-cli/internal/store"
	anthropicpkg "github.com/sells-group/leadgen-cli/pkg/anthropic"
)

var (
	scrapeMaxPages int
	scrapeOutput   string
	scrapeToStore  bool
)

var scrapeCmd = &cobra.Command{
	Use:   "scrape",
	Short: "Scrape the contractor directory and write assembled records",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("scrape"); err != nil {
			return err
		}
		if scrapeMaxPages > 0 {
			cfg.Scrape.MaxPages = scrapeMaxPages
		}
		if scrapeOutput != "" {
			cfg.Scrape.OutputFile = scrapeOutput
		}

		// Concurrent runs acquire all sessions upfront so a degraded pool is
		// visible before any page loads.
		factory := pipeline.BrowserSessions(cfg.Browser)
		if cfg.Scrape.Concurrency > 1 {
			pool, err := browser.NewPool(ctx, cfg.Browser, cfg.Scrape.Concurrency)
			if err != nil {
				return eris.Wrap(err, "acquire browser pool")
			}
			defer pool.Close()
			factory = pipeline.PoolSessions(pool)
		}

		p := pipeline.New(
			factory,
			newSummarizer(),
			pipeline.Config{
				BaseURL:      cfg.Directory.BaseURL,
				Query:        url.Values{"distance": []string{strconv.Itoa(cfg.Directory.Distance)}},
				LinkFilter:   cfg.Directory.LinkFilter,
				MaxPages:     cfg.Scrape.MaxPages,
				Concurrency:  cfg.Scrape.Concurrency,
				PageInterval: time.Duration(cfg.Scrape.PageIntervalSecs) * time.Second,
			},
			pipeline.WithFlowOptions(
				flow.WithStepTimeout(time.Duration(cfg.Scrape.StepTimeoutSecs)*time.Second),
			),
		)

		result, err := p.Run(ctx)
		if err != nil {
			return eris.Wrap(err, "scrape run")
		}

		zap.L().Info("scrape complete",
			zap.Int("attempted", result.Attempted),
			zap.Int("succeeded", result.Succeeded),
			zap.Int("records", len(result.Records)),
		)

		if err := writeRecords(cfg.Scrape.OutputFile, result.Records); err != nil {
			return err
		}
		zap.L().Info("records written", zap.String("file", cfg.Scrape.OutputFile))

		if scrapeToStore {
			if err := insertRecords(ctx, result.Records); err != nil {
				return err
			}
		}

		return nil
	},
}

// newSummarizer returns the Claude-backed summarizer, or a static fallback
// when no API key is configured so local runs still complete.
func newSummarizer() assemble.Summarizer {
	if cfg.Anthropic.Key == "" {
		zap.L().Warn("no anthropic key configured, insights will use placeholder text")
		return insight.Static{Text: assemble.Placeholder}
	}
	client := anthropicpkg.NewClient(cfg.Anthropic.Key)
	return insight.New(client, cfg.Anthropic.Model,
		insight.WithMaxTokens(cfg.Anthropic.MaxTokens),
	)
}

func writeRecords(path string, records []model.OutputRecord) error {
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "create output file %s", path)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(records); err != nil {
		return eris.Wrap(err, "encode records")
	}
	return nil
}

func insertRecords(ctx context.Context, records []model.OutputRecord) error {
	st, err := store.Open(ctx, cfg.Store.Driver, cfg.Store.DatabaseURL)
	if err != nil {
		return eris.Wrap(err, "open store")
	}
	defer st.Close()

	if err := st.Migrate(ctx); err != nil {
		return eris.Wrap(err, "migrate store")
	}

	contractors := make([]model.Contractor, len(records))
	for i, r := range records {
		contractors[i] = r.ToContractor()
	}

	n, err := st.InsertContractors(ctx, contractors)
	if err != nil {
		return eris.Wrap(err, "insert contractors")
	}
	zap.L().Info("records stored", zap.Int("count", n))
	return nil
}

func init() {
	scrapeCmd.Flags().IntVar(&scrapeMaxPages, "max-pages", 0, "listing pages to walk (default from config)")
	scrapeCmd.Flags().StringVar(&scrapeOutput, "output", "", "output JSON file (default from config)")
	scrapeCmd.Flags().BoolVar(&scrapeToStore, "store", false, "also insert records into the configured store")
	rootCmd.AddCommand(scrapeCmd)
}
