package commands

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/pterm/pterm"

	"github.com/teranos/autoblog/blog"
)

var jsonOutput bool

func itoa(n int) string {
	return strconv.Itoa(n)
}

func printJSON(v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}
	fmt.Println(string(data))
	return nil
}

func formatTime(t *time.Time) string {
	if t == nil || t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04:05")
}

// printJob renders a job as a key/value table
func printJob(job *blog.Job) error {
	if jsonOutput {
		return printJSON(job)
	}
	rows := pterm.TableData{
		{"Job", job.ID},
		{"Status", string(job.Status)},
		{"Source", string(job.Source)},
		{"Topic", job.TopicID},
		{"Site", job.SiteID},
		{"Created", formatTime(&job.CreatedAt)},
		{"Started", formatTime(job.StartedAt)},
	}
	if job.Title != "" {
		rows = append(rows, []string{"Title", job.Title})
	}
	switch job.Status {
	case blog.JobCompleted:
		rows = append(rows, []string{"Completed", formatTime(job.CompletedAt)})
		if job.WordPressPostID != nil {
			rows = append(rows, []string{"Post", strconv.FormatInt(*job.WordPressPostID, 10)})
		}
		if job.PublishedURL != "" {
			rows = append(rows, []string{"URL", job.PublishedURL})
		}
	case blog.JobFailed:
		rows = append(rows, []string{"Failed", formatTime(job.FailedAt)})
		if job.Error != nil {
			rows = append(rows, []string{"Error kind", string(job.Error.Kind)}, []string{"Error", job.Error.Message})
		}
	}
	return pterm.DefaultTable.WithData(rows).Render()
}
