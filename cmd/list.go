package cmd

import (
	"github.com/gaurav-prasanna/bookpipe/core/session"
	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List the books of the session's account",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		logger := newLogger(cmd.ErrOrStderr(), cfg.Verbose)
		f, err := cfg.fetcher(logger)
		if err != nil {
			return err
		}
		entries, err := session.LoadCatalog(cmd.Context(), f, cfg.ShelfURL)
		if err != nil {
			return err
		}
		session.PrintCatalog(cmd.OutOrStdout(), entries)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(listCmd)
}
