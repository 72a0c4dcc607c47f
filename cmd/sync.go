package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tilpner/github-label-feed/internal/api"
	"github.com/tilpner/github-label-feed/internal/config"
	"github.com/tilpner/github-label-feed/internal/db"
	"github.com/tilpner/github-label-feed/internal/logging"
	"github.com/tilpner/github-label-feed/internal/retry"
	issuesync "github.com/tilpner/github-label-feed/internal/sync"
)

var syncAll bool

var syncCmd = &cobra.Command{
	Use:   "sync [owner/name]",
	Short: "Sync labels and issues for a repository",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runSync,
}

func init() {
	syncCmd.Flags().BoolVar(&syncAll, "all", false, "sync every repository listed in the config")
}

func runSync(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	if cfg.GitHub.Token == "" {
		return fmt.Errorf("a GitHub token is required for syncing, set GITHUB_TOKEN")
	}

	var repos []string
	switch {
	case syncAll:
		repos = cfg.Repositories
		if len(repos) == 0 {
			return fmt.Errorf("--all given but no repositories configured")
		}
	case len(args) == 1:
		repos = args
	default:
		return fmt.Errorf("expected a repository argument or --all")
	}

	database, err := db.New(cfg.Database)
	if err != nil {
		return err
	}
	defer database.Close()

	if err := database.Initialize(); err != nil {
		return err
	}

	pol := retry.DefaultPolicy()
	var client issuesync.Client
	switch cfg.API {
	case config.APIGraphQL:
		client = api.NewGraphQLClient(cfg.GitHub.Token, pol)
	default:
		client = api.NewGitHubClient(cfg.GitHub.Token, pol)
	}

	syncer := issuesync.New(database, client)

	ctx := cmd.Context()
	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}

	failed := 0
	for _, repoStr := range repos {
		owner, name, err := issuesync.ParseRepositoryString(repoStr)
		if err != nil {
			if !syncAll {
				return err
			}
			logging.Error("skipping invalid repository", "repo", repoStr, "error", err)
			failed++
			continue
		}

		if err := syncer.SyncRepository(ctx, owner, name); err != nil {
			if !syncAll {
				return err
			}
			// Keep going with the remaining repositories.
			logging.Error("sync failed", "repo", repoStr, "error", err)
			failed++
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d repositories failed to sync", failed, len(repos))
	}
	return nil
}
