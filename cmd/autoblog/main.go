package main

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/teranos/autoblog/cmd/autoblog/commands"
	"github.com/teranos/autoblog/logger"
)

var rootCmd = &cobra.Command{
	Use:   "autoblog",
	Short: "autoblog - scheduled AI blog generation and WordPress publishing",
	Long: `autoblog - scheduled AI blog generation and WordPress publishing.

Approved topics are turned into posts by an AI provider and published to
WordPress, either on demand or by recurring per-site schedules.

Available commands:
  serve     - Run the API server, worker pool and schedule ticker
  sweep     - Run due schedules once
  publish   - Generate and publish one topic now
  job       - Inspect jobs
  reconcile - Report topics marked published without a post
  site      - Probe and validate WordPress sites
  schedule  - Inspect schedules and preview run times
  seed      - Load sites, topics and schedules from YAML/TOML
  db        - Manage the database
  am        - Manage configuration ("I am")
  usage     - Show AI model usage

Examples:
  autoblog seed sites.yaml
  autoblog serve
  autoblog publish --site blog-1 --topic t-42`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		verbosity, _ := cmd.Flags().GetCount("verbose")
		jsonLogs, _ := cmd.Flags().GetBool("log-json")
		commands.Verbosity = verbosity
		if err := logger.InitializeWithVerbosity(jsonLogs, verbosity); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logger.Cleanup()
	},
}

func init() {
	rootCmd.PersistentFlags().CountP("verbose", "v", "Increase output verbosity (repeat for more detail: -v, -vv, -vvv)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Emit JSON logs")
	rootCmd.PersistentFlags().StringVar(&commands.DBPath, "db", "", "Database path (overrides database.path)")

	rootCmd.AddCommand(commands.ServeCmd)
	rootCmd.AddCommand(commands.SweepCmd)
	rootCmd.AddCommand(commands.PublishCmd)
	rootCmd.AddCommand(commands.JobCmd)
	rootCmd.AddCommand(commands.ReconcileCmd)
	rootCmd.AddCommand(commands.SiteCmd)
	rootCmd.AddCommand(commands.ScheduleCmd)
	rootCmd.AddCommand(commands.SeedCmd)
	rootCmd.AddCommand(commands.DbCmd)
	rootCmd.AddCommand(commands.AmCmd)
	rootCmd.AddCommand(commands.UsageCmd)
	rootCmd.AddCommand(commands.VersionCmd)
}

func main() {
	// API keys may live in a local .env; a missing file is fine
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "Warning: failed to read .env: %v\n", err)
	}

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
