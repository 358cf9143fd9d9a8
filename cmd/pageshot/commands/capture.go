package commands

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/pageshot/internal/logger"
	"github.com/jmylchreest/pageshot/internal/output"
	"github.com/jmylchreest/pageshot/pkg/capture"
)

var captureCmd = &cobra.Command{
	Use:   "capture [url...]",
	Short: "Capture pages directly",
	Long: `Capture one or more pages and print a record per page.

URLs may be given with -u or as arguments. A URL without a scheme is
loaded over http.

Examples:
  pageshot capture -u example.com
  pageshot capture https://go.dev https://pkg.go.dev --format jsonl -o runs.jsonl`,
	RunE: runCapture,
}

func init() {
	rootCmd.AddCommand(captureCmd)

	flags := captureCmd.Flags()
	flags.StringSliceP("url", "u", nil, "URL(s) to capture (can be repeated)")
	flags.StringP("output", "o", "", "output file (default: stdout)")
	flags.String("format", "text", "output format: text, json, jsonl, yaml")
	flags.Int("max-retries", 3, "retries after a timeout or lost session")
}

func runCapture(cmd *cobra.Command, args []string) error {
	bindFlags(cmd.Flags(), map[string]string{"max-retries": "capture.max_retries"})

	urls, _ := cmd.Flags().GetStringSlice("url")
	urls = append(urls, args...)
	if len(urls) == 0 {
		return cmd.Help()
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	formatStr, _ := cmd.Flags().GetString("format")
	format, err := output.ParseFormat(formatStr)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	capturer, _, err := newCapturer(cfg)
	if err != nil {
		logger.Error("failed to initialize", "error", err)
		return err
	}

	outPath, _ := cmd.Flags().GetString("output")
	out, err := openOutput(outPath)
	if err != nil {
		return err
	}
	defer func() { _ = out.Close() }()

	w, err := output.NewWriter(out, format)
	if err != nil {
		return err
	}

	failed := captureURLs(ctx, capturer, urls, w)
	if err := w.Close(); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d captures failed", failed, len(urls))
	}
	return nil
}

type pageCapturer interface {
	Capture(ctx context.Context, rawURL string) (*capture.Result, error)
}

// captureURLs captures each URL in turn and writes one record per URL.
// It stops early when ctx is cancelled and returns the number of failed
// or skipped URLs.
func captureURLs(ctx context.Context, c pageCapturer, urls []string, w output.Writer) int {
	failed := 0
	for i, u := range urls {
		if ctx.Err() != nil {
			return failed + len(urls) - i
		}
		logInfo("[%d/%d] %s", i+1, len(urls), u)

		start := time.Now()
		res, err := c.Capture(ctx, u)
		var rec output.Record
		if err != nil {
			failed++
			logger.Error("capture failed", "url", u, "error", err)
			rec = output.FromError(u, err, time.Since(start))
		} else {
			rec = output.FromResult(res)
		}
		if err := w.Write(rec); err != nil {
			logger.Error("write failed", "url", u, "error", err)
		}
	}
	return failed
}
