package commands

import (
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/teranos/autoblog/blog"
	"github.com/teranos/autoblog/pipeline"
	"github.com/teranos/autoblog/sym"
)

// ReconcileCmd lists topics marked published whose job never published them
var ReconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: sym.Publish + " Report topics marked published without a post",
	Long: sym.Publish + ` reconcile: the scheduler marks topics published when it dispatches
their job. This report lists topics whose job later failed or no longer
exists, so they can be re-approved.`,
	RunE: runReconcile,
}

func init() {
	ReconcileCmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
}

func runReconcile(cmd *cobra.Command, args []string) error {
	_, database, store, err := openStore()
	if err != nil {
		return err
	}
	defer database.Close()

	report, err := pipeline.New(store, nil, nil, nil, pipeline.DefaultConfig()).Reconcile(cmd.Context())
	if err != nil {
		return err
	}
	if jsonOutput {
		return printJSON(report)
	}
	if report.Clean() {
		pterm.Success.Println("Every published topic has a completed job")
		return nil
	}

	pterm.Warning.Printfln("%d divergent topics (%d failed jobs, %d missing jobs)",
		len(report.Divergences), report.Count(blog.ReasonJobFailed), report.Count(blog.ReasonJobMissing))
	data := pterm.TableData{{"Topic", "Site", "Title", "Job", "Reason", "Error"}}
	for _, d := range report.Divergences {
		msg := ""
		if d.JobError != nil {
			msg = string(d.JobError.Kind) + ": " + d.JobError.Message
		}
		data = append(data, []string{d.TopicID, d.SiteID, d.TopicTitle, d.JobID, string(d.Reason), msg})
	}
	return pterm.DefaultTable.WithHasHeader().WithData(data).Render()
}
