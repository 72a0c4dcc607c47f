package cmd

import (
	"github.com/spf13/cobra"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "github-label-feed",
	Short: "Mirror GitHub issue labels into a local database and Atom feeds",
	Long: `github-label-feed synchronizes the labels and issues of GitHub
repositories into a local SQLite database, and generates per-label Atom
feeds from the mirrored data. Syncs are incremental: only issues updated
since the last successful run are re-fetched.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "path to config file")

	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(feedCmd)
}
