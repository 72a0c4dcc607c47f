package cmd

import (
	"github.com/spf13/cobra"

	"github.com/tilpner/github-label-feed/internal/config"
	"github.com/tilpner/github-label-feed/internal/db"
	"github.com/tilpner/github-label-feed/internal/feed"
	issuesync "github.com/tilpner/github-label-feed/internal/sync"
)

var onlyOpen bool

var feedCmd = &cobra.Command{
	Use:   "feed owner/name out-dir [label...]",
	Short: "Generate per-label Atom feeds from synced data",
	Long: `Generate writes one Atom feed per label to out-dir, as
out-dir/<label>/atom.xml. Without label arguments, feeds are generated
for every label stored for the repository.`,
	Args: cobra.MinimumNArgs(2),
	RunE: runFeed,
}

func init() {
	feedCmd.Flags().BoolVar(&onlyOpen, "only-open", false, "only include open issues")
}

func runFeed(cmd *cobra.Command, args []string) error {
	owner, name, err := issuesync.ParseRepositoryString(args[0])
	if err != nil {
		return err
	}

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}

	database, err := db.New(cfg.Database)
	if err != nil {
		return err
	}
	defer database.Close()

	if err := database.Initialize(); err != nil {
		return err
	}

	return feed.Generate(database, owner, name, args[1], feed.Options{
		Labels:   args[2:],
		OnlyOpen: onlyOpen,
	})
}
