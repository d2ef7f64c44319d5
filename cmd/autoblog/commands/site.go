package commands

import (
	"context"
	"strconv"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/teranos/autoblog/logger"
	"github.com/teranos/autoblog/pipeline"
	"github.com/teranos/autoblog/pulse/schedule"
	"github.com/teranos/autoblog/sym"
	"github.com/teranos/autoblog/wordpress"
)

// SiteCmd inspects WordPress sites
var SiteCmd = &cobra.Command{
	Use:   "site",
	Short: sym.Publish + " Inspect WordPress sites",
}

var siteHealthCmd = &cobra.Command{
	Use:   "health <site-id>",
	Short: "Probe a site's REST API and record the result",
	Args:  cobra.ExactArgs(1),
	RunE:  runSiteHealth,
}

var siteValidateCmd = &cobra.Command{
	Use:   "validate <site-id>",
	Short: "Check the site accepts the stored credentials",
	Args:  cobra.ExactArgs(1),
	RunE:  runSiteValidate,
}

// ScheduleCmd inspects schedules
var ScheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: sym.Pulse + " Inspect publication schedules",
}

var scheduleNextCmd = &cobra.Command{
	Use:   "next <schedule-id>",
	Short: "Preview the next run times of a schedule",
	Args:  cobra.ExactArgs(1),
	RunE:  runScheduleNext,
}

var scheduleListCmd = &cobra.Command{
	Use:   "ls",
	Short: "List schedules",
	RunE:  runScheduleList,
}

func init() {
	SiteCmd.AddCommand(siteHealthCmd, siteValidateCmd)
	scheduleNextCmd.Flags().IntP("count", "n", 5, "Number of runs to preview")
	ScheduleCmd.AddCommand(scheduleNextCmd, scheduleListCmd)
}

func siteClient(blockPrivate bool, timeout time.Duration) *wordpress.Client {
	return wordpress.NewClient(wordpress.Config{
		Timeout:        timeout,
		BlockPrivateIP: blockPrivate,
		Logger:         logger.Logger,
	})
}

func runSiteHealth(cmd *cobra.Command, args []string) error {
	cfg, database, store, err := openStore()
	if err != nil {
		return err
	}
	defer database.Close()

	site, err := store.GetSite(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	timeout := time.Duration(cfg.Timeouts.HealthSeconds) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	health := siteClient(cfg.HTTP.BlockPrivateIPs, timeout).CheckHealth(ctx, site)
	if err := store.RecordSiteHealth(cmd.Context(), health); err != nil {
		logger.Logger.Warnw("Failed to record site health", logger.FieldSiteID, site.ID, logger.FieldError, err)
	}

	status := strconv.Itoa(health.StatusCode)
	if health.StatusCode == 0 {
		status = "-"
	}
	if health.Healthy {
		pterm.Success.Printfln("%s is healthy (HTTP %s, %dms)", site.URL, status, health.ResponseTimeMS())
		return nil
	}
	pterm.Error.Printfln("%s is unhealthy (HTTP %s, %dms): %s", site.URL, status, health.ResponseTimeMS(), health.Error)
	return nil
}

func runSiteValidate(cmd *cobra.Command, args []string) error {
	cfg, database, store, err := openStore()
	if err != nil {
		return err
	}
	defer database.Close()

	site, err := store.GetSite(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	timeout := pipeline.ConfigFrom(cfg).ValidateTimeout
	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	if err := siteClient(cfg.HTTP.BlockPrivateIPs, timeout).Validate(ctx, site); err != nil {
		pterm.Error.Printfln("%s rejected the credentials: %v", site.URL, err)
		return err
	}
	pterm.Success.Printfln("%s accepts the credentials for %s", site.URL, site.Username)
	return nil
}

func runScheduleNext(cmd *cobra.Command, args []string) error {
	_, database, store, err := openStore()
	if err != nil {
		return err
	}
	defer database.Close()

	sched, err := store.GetSchedule(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	loc, err := sched.Location()
	if err != nil {
		return err
	}
	n, _ := cmd.Flags().GetInt("count")

	pterm.DefaultSection.Printfln("%s %s schedule %s (%s, %d posts per run)",
		sym.Pulse, sched.Frequency, sched.ID, sched.Timezone, sched.PostsPerInterval)
	pterm.Info.Printfln("Stored next run: %s", sched.NextRunTime.In(loc).Format(time.RFC1123))

	data := pterm.TableData{{"#", "Local", "UTC"}}
	for i, t := range schedule.PreviewNextRuns(sched, time.Now().UTC(), n, schedule.NewRand()) {
		data = append(data, []string{itoa(i + 1), t.In(loc).Format(time.RFC1123), t.UTC().Format(time.RFC3339)})
	}
	return pterm.DefaultTable.WithHasHeader().WithData(data).Render()
}

func runScheduleList(cmd *cobra.Command, args []string) error {
	_, database, store, err := openStore()
	if err != nil {
		return err
	}
	defer database.Close()

	schedules, err := store.ListSchedules(cmd.Context())
	if err != nil {
		return err
	}
	data := pterm.TableData{{"Schedule", "Site", "Frequency", "Posts", "Enabled", "Next run", "Last run"}}
	for _, s := range schedules {
		data = append(data, []string{
			s.ID, s.SiteID, string(s.Frequency), itoa(s.PostsPerInterval),
			strconv.FormatBool(s.Enabled), formatTime(&s.NextRunTime), formatTime(s.LastRunTime),
		})
	}
	return pterm.DefaultTable.WithHasHeader().WithData(data).Render()
}
