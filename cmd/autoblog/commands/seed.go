package commands

import (
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/teranos/autoblog/internal/seed"
	"github.com/teranos/autoblog/logger"
	"github.com/teranos/autoblog/sym"
)

// SeedCmd loads sites, topics and schedules from a YAML or TOML file
var SeedCmd = &cobra.Command{
	Use:   "seed <file>",
	Short: sym.DB + " Load sites, topics and schedules from a file",
	Long: sym.DB + ` seed: create the sites, topics and schedules listed in a .yaml/.yml
or .toml file. Records whose id already exists are skipped, so the file can
be applied again after editing.`,
	Args: cobra.ExactArgs(1),
	RunE: runSeed,
}

func runSeed(cmd *cobra.Command, args []string) error {
	f, err := seed.Load(args[0])
	if err != nil {
		return err
	}
	_, database, store, err := openStore()
	if err != nil {
		return err
	}
	defer database.Close()

	res, err := seed.NewApplier(store, logger.Logger).Apply(cmd.Context(), f)
	if err != nil {
		return err
	}
	pterm.Success.Printfln("Seeded %d sites, %d topics, %d schedules (%d already present)",
		res.Sites, res.Topics, res.Schedules, res.Skipped)
	return nil
}
