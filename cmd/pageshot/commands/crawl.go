package commands

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/pageshot/internal/crawler"
	"github.com/jmylchreest/pageshot/internal/logger"
	"github.com/jmylchreest/pageshot/internal/output"
)

var crawlCmd = &cobra.Command{
	Use:   "crawl",
	Short: "Capture a seed page and the pages it links to",
	Long: `Crawl from seed URLs and capture every page reached.

Links are discovered from the static HTML of each page, so links that
only appear after scripts run are not followed.

Examples:
  # Seed plus every same-site link on it
  pageshot crawl -u https://example.com --follow "a"

  # Product pages from a paginated listing
  pageshot crawl -u https://example.com/shop --follow "a.product" \
      --next "a.next" --max-pages 3 -c 2`,
	RunE: runCrawl,
}

func init() {
	rootCmd.AddCommand(crawlCmd)

	flags := crawlCmd.Flags()
	flags.StringSliceP("url", "u", nil, "seed URL(s) (can be repeated)")
	flags.StringP("output", "o", "", "output file (default: stdout)")
	flags.String("format", "jsonl", "output format: text, json, jsonl, yaml")
	flags.Int("max-retries", 3, "retries after a timeout or lost session")

	flags.String("follow", "", "CSS selector for links to follow")
	flags.String("follow-pattern", "", "regex pattern for URLs to follow")
	flags.Bool("cross-site", false, "follow links to other hosts")
	flags.String("next", "", "CSS selector for pagination next link")
	flags.Int("max-depth", 1, "max link depth (0=seed only)")
	flags.Int("max-pages", 0, "max pagination pages (0=unlimited)")
	flags.Int("max-urls", 0, "max total pages to capture (0=unlimited)")
	flags.Duration("delay", 200*time.Millisecond, "delay between captures")
	flags.IntP("concurrency", "c", 2, "concurrent captures")

	_ = crawlCmd.MarkFlagRequired("url")
}

func runCrawl(cmd *cobra.Command, _ []string) error {
	bindFlags(cmd.Flags(), map[string]string{"max-retries": "capture.max_retries"})

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	formatStr, _ := cmd.Flags().GetString("format")
	format, err := output.ParseFormat(formatStr)
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	seeds, _ := flags.GetStringSlice("url")
	ccfg := crawler.DefaultConfig()
	ccfg.FollowSelector, _ = flags.GetString("follow")
	ccfg.FollowPattern, _ = flags.GetString("follow-pattern")
	ccfg.NextSelector, _ = flags.GetString("next")
	ccfg.MaxDepth, _ = flags.GetInt("max-depth")
	ccfg.MaxPages, _ = flags.GetInt("max-pages")
	ccfg.MaxURLs, _ = flags.GetInt("max-urls")
	ccfg.Delay, _ = flags.GetDuration("delay")
	ccfg.Concurrency, _ = flags.GetInt("concurrency")
	crossSite, _ := flags.GetBool("cross-site")
	ccfg.SameSiteOnly = !crossSite

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	capturer, _, err := newCapturer(cfg)
	if err != nil {
		logger.Error("failed to initialize", "error", err)
		return err
	}

	outPath, _ := flags.GetString("output")
	out, err := openOutput(outPath)
	if err != nil {
		return err
	}
	defer func() { _ = out.Close() }()

	w, err := output.NewWriter(out, format)
	if err != nil {
		return err
	}

	logger.Info("starting crawl",
		"seeds", len(seeds),
		"following", ccfg.Following(),
		"concurrency", ccfg.Concurrency,
		"delay", ccfg.Delay)

	c := crawler.New(capturer, crawler.NewStaticFetcher(cfg.Browser.UserAgent), ccfg)
	total, failed := 0, 0
	for r := range c.Crawl(ctx, seeds) {
		total++
		rec := crawlRecord(r)
		if !rec.OK() {
			failed++
		}
		if err := w.Write(rec); err != nil {
			logger.Error("write failed", "url", r.URL, "error", err)
		}
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("write output: %w", err)
	}

	logInfo("crawled %d pages, %d failed", total, failed)
	if failed > 0 {
		return fmt.Errorf("%d of %d captures failed", failed, total)
	}
	return nil
}

func crawlRecord(r crawler.Result) output.Record {
	var rec output.Record
	if r.Error != nil || r.Capture == nil {
		err := r.Error
		if err == nil {
			err = fmt.Errorf("no result")
		}
		rec = output.FromError(r.URL, err, r.Duration)
	} else {
		rec = output.FromResult(r.Capture)
	}
	rec.Depth = r.Depth
	return rec
}
