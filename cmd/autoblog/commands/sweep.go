package commands

import (
	"context"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/teranos/autoblog/errors"
	"github.com/teranos/autoblog/sym"
)

// SweepCmd runs one scheduler sweep and waits for the dispatched jobs
var SweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: sym.Pulse + " Run due schedules once",
	Long: sym.Pulse + ` sweep: run every due schedule once, as the ticker would.

Jobs are dispatched to an in-process worker pool; the command waits for
them to finish (bounded by --wait) before exiting.`,
	RunE: runSweep,
}

func init() {
	SweepCmd.Flags().Duration("wait", 10*time.Minute, "How long to wait for dispatched jobs")
}

func runSweep(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	ctx := cmd.Context()
	a.start()

	res, err := a.scheduler.RunDueSchedules(ctx, time.Now().UTC())
	if err != nil {
		return errors.Wrap(err, "sweep failed")
	}

	data := pterm.TableData{{"Schedule", "Site", "Status", "Selected", "Dispatched", "Next run", "Error"}}
	for _, o := range res.Outcomes {
		next := ""
		if !o.NextRunTime.IsZero() {
			next = o.NextRunTime.Format(time.RFC3339)
		}
		data = append(data, []string{
			o.ScheduleID, o.SiteID, o.Status,
			itoa(o.Selected), itoa(o.Dispatched), next, o.Error,
		})
	}
	pterm.DefaultSection.Printfln("%s Sweep: %d schedules, %d jobs dispatched, %d failed, %d skipped",
		sym.Pulse, res.Schedules, res.Dispatched, res.Failed, res.Skipped)
	if len(res.Outcomes) > 0 {
		if err := pterm.DefaultTable.WithHasHeader().WithData(data).Render(); err != nil {
			return err
		}
	}
	if res.Dispatched == 0 {
		return nil
	}

	wait, _ := cmd.Flags().GetDuration("wait")
	spinner, _ := pterm.DefaultSpinner.Start("Waiting for dispatched jobs...")
	wctx, cancel := context.WithTimeout(ctx, wait)
	defer cancel()
	if err := a.drain(wctx); err != nil {
		spinner.Fail(err.Error())
		return err
	}
	spinner.Success("All dispatched jobs finished")
	return nil
}
