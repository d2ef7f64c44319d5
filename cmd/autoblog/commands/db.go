package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/teranos/autoblog/sym"
)

// DbCmd manages the database
var DbCmd = &cobra.Command{
	Use:   "db",
	Short: sym.DB + " Manage the autoblog database",
}

var dbMigrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, database, _, err := openStore()
		if err != nil {
			return err
		}
		defer database.Close()

		path := DBPath
		if path == "" {
			path = cfg.GetDatabasePath()
		}
		fmt.Printf("%s Database %s is up to date\n", sym.DB, path)
		return nil
	},
}

var dbStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show row counts per table",
	RunE:  runDbStats,
}

func init() {
	DbCmd.AddCommand(dbMigrateCmd, dbStatsCmd)
}

func runDbStats(cmd *cobra.Command, args []string) error {
	cfg, database, _, err := openStore()
	if err != nil {
		return err
	}
	defer database.Close()

	fmt.Printf("%s Database Statistics\n", sym.DB)
	fmt.Printf("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n\n")
	fmt.Printf("Database Path: %s\n", cfg.GetDatabasePath())
	for _, table := range []string{"sites", "topics", "schedules", "jobs", "content", "site_health", "schedule_runs", "ai_model_usage"} {
		var n int
		if err := database.QueryRowContext(cmd.Context(), "SELECT COUNT(*) FROM "+table).Scan(&n); err != nil {
			return fmt.Errorf("failed to count %s: %w", table, err)
		}
		fmt.Printf("  %-18s %d\n", table+":", n)
	}
	return nil
}
