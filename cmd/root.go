// Package cmd implements the CLI commands for bookpipe using Cobra.
package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/gaurav-prasanna/bookpipe/core/session"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "bookpipe",
	Short: "bookpipe — turn an online school e-book into one PDF",
	Long: `bookpipe downloads every page of an e-book from digi4school, hpthek or
scook with an existing browser session, converts each page into a PDF page
and merges them into a single document.

Usage:
  bookpipe list [flags]
  bookpipe convert [landing-url] [flags]`,
	SilenceUsage: true,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringArray("cookie", nil, `Session cookies as a Cookie header ("name=value; ..."), repeatable`)
	pf.Int("attempts", 5, "Attempts per request before a page is given up")
	pf.Duration("timeout", defaultTimeout, "Timeout of a single request attempt")
	pf.BoolP("verbose", "v", false, "Log debug output")
	pf.String("shelf_url", session.DefaultShelfURL, "Page that lists the account's books")
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// newLogger installs a text handler on w, at debug level when verbose.
func newLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return logger
}
