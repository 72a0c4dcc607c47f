package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tilpner/github-label-feed/internal/config"
	"github.com/tilpner/github-label-feed/internal/db"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List synced repositories with their label and issue counts",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
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

		repos, err := database.ListRepositories()
		if err != nil {
			return err
		}

		for _, repo := range repos {
			fmt.Printf("%s (%d labels, %d issues)\n", repo.FullName, repo.LabelCount, repo.IssueCount)
		}
		return nil
	},
}
