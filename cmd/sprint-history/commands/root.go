package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"sprint-history/internal/config"
	"sprint-history/internal/devops"
	"sprint-history/internal/logging"
	"sprint-history/internal/mcp"
	"sprint-history/internal/revlog"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	// Version, Commit, and BuildDate are set at build time via ldflags.
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"

	verbose bool
	cfg     *config.AppConfig
)

var rootCmd = &cobra.Command{
	Use:   "sprint-history",
	Short: "Sprint History reconstructs the story point history of Azure DevOps sprints",
	Long: `An MCP server and CLI that rebuilds how a sprint's committed story points changed over time
from work item revisions: items added, removed, reopened, closed and re-estimated.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		logging.Init(verbose)

		var err error
		cfg, err = config.Load()
		if err != nil {
			return err
		}

		log.Info().
			Str("version", Version).
			Str("commit", Commit).
			Str("buildDate", BuildDate).
			Msg("Sprint History starting")
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate(); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		client := devops.NewClient(cfg.DevOps)
		server := mcp.NewServer(cfg, client, newProvider(client, cfg.CacheTTL), Version)
		return server.Serve(ctx)
	},
}

func newProvider(client devops.Client, ttl time.Duration) *revlog.Provider {
	return revlog.NewProvider(client, revlog.NewStore(), revlog.Options{
		CacheDir:    cfg.CacheDir,
		CacheTTL:    ttl,
		Concurrency: cfg.FetchConcurrency,
	})
}

func Execute() error {
	return rootCmd.ExecuteContext(context.Background())
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")
	rootCmd.Version = Version
	rootCmd.AddCommand(historyCmd)
}
