package commands

import (
	"context"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/teranos/autoblog/blog"
	"github.com/teranos/autoblog/errors"
	"github.com/teranos/autoblog/sym"
)

// PublishCmd generates and publishes one approved topic now
var PublishCmd = &cobra.Command{
	Use:   "publish",
	Short: sym.Publish + " Generate and publish a topic now",
	Long: sym.Publish + ` publish: create an on-demand job for an approved topic and run it.

The command waits for the job to finish and prints its final state.

Examples:
  autoblog publish --site site-1 --topic topic-42
  autoblog publish --site site-1 --topic topic-42 --json`,
	RunE: runPublish,
}

// JobCmd inspects jobs
var JobCmd = &cobra.Command{
	Use:   "job",
	Short: sym.Publish + " Inspect jobs",
}

var jobShowCmd = &cobra.Command{
	Use:   "show <job-id>",
	Short: "Show a job's current state",
	Args:  cobra.ExactArgs(1),
	RunE:  runJobShow,
}

var jobListCmd = &cobra.Command{
	Use:   "ls",
	Short: "List recent jobs",
	RunE:  runJobList,
}

func init() {
	PublishCmd.Flags().String("site", "", "Site id (required)")
	PublishCmd.Flags().String("topic", "", "Topic id (required)")
	PublishCmd.Flags().String("user", "", "User id (default: the topic owner)")
	PublishCmd.Flags().Duration("wait", 10*time.Minute, "How long to wait for the job")
	PublishCmd.Flags().BoolVar(&jsonOutput, "json", false, "Output the job as JSON")
	_ = PublishCmd.MarkFlagRequired("site")
	_ = PublishCmd.MarkFlagRequired("topic")

	jobShowCmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	jobListCmd.Flags().String("status", "", "Filter by status (queued, processing, completed, failed)")
	jobListCmd.Flags().String("site", "", "Filter by site id")
	jobListCmd.Flags().Int("limit", 20, "Maximum jobs to show")
	JobCmd.AddCommand(jobShowCmd, jobListCmd)
}

func runPublish(cmd *cobra.Command, args []string) error {
	siteID, _ := cmd.Flags().GetString("site")
	topicID, _ := cmd.Flags().GetString("topic")
	userID, _ := cmd.Flags().GetString("user")
	wait, _ := cmd.Flags().GetDuration("wait")

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	ctx, cancel := context.WithTimeout(context.Background(), wait)
	defer cancel()
	a.start()

	job, err := a.trigger.PublishNow(ctx, siteID, topicID, userID)
	if err != nil {
		return errors.Wrap(err, "publish failed")
	}
	spinner, _ := pterm.DefaultSpinner.Start("Job " + job.ID + " queued, generating...")

	job, err = waitForJob(ctx, a.store, job.ID)
	if err != nil {
		spinner.Fail(err.Error())
		return err
	}
	if job.Status == blog.JobFailed {
		spinner.Fail("Job failed")
	} else {
		spinner.Success("Job completed")
	}
	return printJob(job)
}

// waitForJob polls until the job reaches a terminal status
func waitForJob(ctx context.Context, store blog.JobStore, jobID string) (*blog.Job, error) {
	tick := time.NewTicker(500 * time.Millisecond)
	defer tick.Stop()
	for {
		job, err := store.GetJob(ctx, jobID)
		if err != nil {
			return nil, err
		}
		if job.Status.IsTerminal() {
			return job, nil
		}
		select {
		case <-ctx.Done():
			return job, errors.Wrapf(ctx.Err(), "job %s still %s", jobID, job.Status)
		case <-tick.C:
		}
	}
}

func runJobShow(cmd *cobra.Command, args []string) error {
	_, database, store, err := openStore()
	if err != nil {
		return err
	}
	defer database.Close()

	job, err := store.GetJob(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	return printJob(job)
}

func runJobList(cmd *cobra.Command, args []string) error {
	_, database, store, err := openStore()
	if err != nil {
		return err
	}
	defer database.Close()

	filter := blog.JobFilter{}
	filter.SiteID, _ = cmd.Flags().GetString("site")
	filter.Limit, _ = cmd.Flags().GetInt("limit")
	if raw, _ := cmd.Flags().GetString("status"); raw != "" {
		if filter.Status, err = blog.ParseJobStatus(raw); err != nil {
			return err
		}
	}

	jobs, err := store.ListJobs(cmd.Context(), filter)
	if err != nil {
		return err
	}
	if len(jobs) == 0 {
		pterm.Info.Println("No jobs")
		return nil
	}
	data := pterm.TableData{{"Job", "Status", "Source", "Site", "Topic", "Created"}}
	for _, j := range jobs {
		data = append(data, []string{j.ID, string(j.Status), string(j.Source), j.SiteID, j.TopicID, formatTime(&j.CreatedAt)})
	}
	return pterm.DefaultTable.WithHasHeader().WithData(data).Render()
}
