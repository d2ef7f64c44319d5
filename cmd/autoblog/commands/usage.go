package commands

import (
	"fmt"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/teranos/autoblog/ai/tracker"
	"github.com/teranos/autoblog/sym"
)

// UsageCmd summarizes AI model usage
var UsageCmd = &cobra.Command{
	Use:   "usage",
	Short: sym.Publish + " Show AI model usage",
	RunE:  runUsage,
}

func init() {
	UsageCmd.Flags().Int("hours", 24, "Window to summarize")
	UsageCmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
}

func runUsage(cmd *cobra.Command, args []string) error {
	_, database, _, err := openStore()
	if err != nil {
		return err
	}
	defer database.Close()

	hours, _ := cmd.Flags().GetInt("hours")
	since := time.Now().Add(-time.Duration(hours) * time.Hour)
	ut := tracker.NewUsageTracker(database, Verbosity)

	stats, err := ut.GetUsageStats(cmd.Context(), since)
	if err != nil {
		return err
	}
	models, err := ut.GetModelBreakdown(cmd.Context(), since)
	if err != nil {
		return err
	}
	if jsonOutput {
		return printJSON(map[string]interface{}{"since": since.UTC(), "stats": stats, "models": models})
	}

	pterm.DefaultSection.Printfln("AI usage, last %dh", hours)
	pterm.Printfln("  Requests: %d (%.0f%% successful)", stats.TotalRequests, stats.SuccessRate*100)
	pterm.Printfln("  Tokens:   %d", stats.TotalTokens)
	pterm.Printfln("  Models:   %d", stats.UniqueModels)
	if len(models) == 0 {
		return nil
	}
	data := pterm.TableData{{"Model", "Provider", "Requests", "Succeeded", "Tokens", "Avg latency"}}
	for _, m := range models {
		latency := "-"
		if m.AvgResponseTimeMs != nil {
			latency = fmt.Sprintf("%.0fms", *m.AvgResponseTimeMs)
		}
		data = append(data, []string{m.ModelName, m.ModelProvider, itoa(m.RequestCount), itoa(m.SuccessCount), itoa(m.TotalTokens), latency})
	}
	return pterm.DefaultTable.WithHasHeader().WithData(data).Render()
}
