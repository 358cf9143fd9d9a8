// Package commands implements the CLI commands for pageshot.
package commands

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/jmylchreest/pageshot/internal/browser"
	"github.com/jmylchreest/pageshot/internal/config"
	"github.com/jmylchreest/pageshot/internal/logger"
	"github.com/jmylchreest/pageshot/internal/storage"
	"github.com/jmylchreest/pageshot/pkg/capture"
)

var rootCmd = &cobra.Command{
	Use:   "pageshot",
	Short: "Full-page screenshots with headless Chrome",
	Long: `Pageshot loads pages in headless Chrome, dismisses cookie banners and
saves the whole page as a series of viewport-sized PNG segments.

Examples:
  # Run the HTTP API on :5000
  pageshot serve

  # Capture a couple of pages directly
  pageshot capture -u example.com -u https://go.dev/doc/

  # Capture a site section, following article links one level deep
  pageshot crawl -u https://example.com/blog --follow "article a" --max-depth 1`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.String("config", "", "config file (default $HOME/.pageshot.yaml)")
	flags.Bool("debug", false, "enable debug logging")
	flags.BoolP("quiet", "q", false, "only log errors")
	flags.Bool("json-logs", false, "log as JSON")

	flags.String("assets-dir", "", "directory screenshots are written to (default ./assets)")
	flags.String("browser-path", "", "Chrome/Chromium executable (default: auto-detect)")
	flags.Bool("managed-browser", true, "download a browser when none is installed (--managed-browser=false to disable)")
	flags.Bool("stealth", false, "hide common headless fingerprints")

	_ = viper.BindPFlag("debug", flags.Lookup("debug"))
	_ = viper.BindPFlag("quiet", flags.Lookup("quiet"))
	_ = viper.BindPFlag("json_logs", flags.Lookup("json-logs"))
	_ = viper.BindPFlag("assets_dir", flags.Lookup("assets-dir"))
	_ = viper.BindPFlag("browser.path", flags.Lookup("browser-path"))
	_ = viper.BindPFlag("browser.managed", flags.Lookup("managed-browser"))
	_ = viper.BindPFlag("browser.stealth", flags.Lookup("stealth"))
}

// setup reads configuration and installs the process logger before any
// subcommand runs.
func setup(cmd *cobra.Command, _ []string) error {
	file, _ := cmd.Flags().GetString("config")
	config.Setup(viper.GetViper(), file)
	if err := config.ReadFile(viper.GetViper()); err != nil {
		return err
	}

	logger.Init(logger.Options{
		Debug: viper.GetBool("debug"),
		Quiet: viper.GetBool("quiet"),
		JSON:  viper.GetBool("json_logs"),
	})
	if used := viper.ConfigFileUsed(); used != "" {
		logger.Debug("config loaded", "file", used)
	}
	return nil
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// bindFlags binds command-local flags to config keys. Several commands
// share keys, so binding happens when the command runs rather than in
// init.
func bindFlags(flags *pflag.FlagSet, keys map[string]string) {
	for flag, key := range keys {
		if f := flags.Lookup(flag); f != nil {
			_ = viper.BindPFlag(key, f)
		}
	}
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		logger.Error("invalid configuration", "error", err)
		return nil, err
	}
	return cfg, nil
}

// newCapturer wires storage, the browser provisioner and the capturer
// from cfg.
func newCapturer(cfg *config.Config) (*capture.Capturer, *storage.Store, error) {
	store, err := storage.NewOS(cfg.AssetsDir)
	if err != nil {
		return nil, nil, fmt.Errorf("assets dir: %w", err)
	}
	prov := browser.New(cfg.BrowserOptions())
	return capture.New(prov, store, cfg.CaptureOptions()), store, nil
}

// openOutput returns stdout, or the named file created fresh.
func openOutput(path string) (io.WriteCloser, error) {
	if path == "" || path == "-" {
		return nopCloser{os.Stdout}, nil
	}
	f, err := os.Create(path) //#nosec G304 -- CLI writes to a user-specified file
	if err != nil {
		return nil, fmt.Errorf("create output file: %w", err)
	}
	return f, nil
}

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }

// logInfo prints a progress line to stderr unless quiet.
func logInfo(format string, args ...any) {
	if !viper.GetBool("quiet") {
		fmt.Fprintf(os.Stderr, format+"\n", args...)
	}
}
