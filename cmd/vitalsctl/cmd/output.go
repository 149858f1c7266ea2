package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/olekukonko/tablewriter"

	"github.com/psantana5/vitals-engine/pkg/api"
	"github.com/psantana5/vitals-engine/pkg/models"
)

func printJSON(w io.Writer, v interface{}) error {
	output, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}
	fmt.Fprintln(w, string(output))
	return nil
}

func formatRate(v *float64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%.1f bpm", *v)
}

func formatTimestamp(ms int64) string {
	return time.UnixMilli(ms).UTC().Format(time.RFC3339Nano)
}

func yesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}

func renderStatus(w io.Writer, st *api.StatusResponse) {
	table := tablewriter.NewWriter(w)
	table.Header("Field", "Value")

	table.Append("State", string(st.State))
	table.Append("Engine", st.Engine)
	table.Append("Engine Available", yesNo(st.SDKAvailable))
	table.Append("Engine Status", st.SDKStatus)
	table.Append("Readings", fmt.Sprintf("%d", st.ReadingsCount))
	table.Append("Video Uploaded", yesNo(st.VideoFileUploaded))
	if st.VideoFilePath != "" {
		table.Append("Video Path", st.VideoFilePath)
	}
	table.Append("Camera Available", yesNo(st.CameraAvailable))
	if st.JobID != "" {
		table.Append("Job ID", st.JobID)
	}
	if st.LastJobFinishedAt != nil {
		table.Append("Last Finished", st.LastJobFinishedAt.Format(time.RFC3339))
	}
	if st.LastError != "" {
		table.Append("Last Error", st.LastError)
	}

	table.Render()
}

func renderReadings(w io.Writer, readings ...models.Reading) {
	table := tablewriter.NewWriter(w)
	table.Header("Timestamp", "Heart Rate", "Breathing Rate", "Source")
	for _, r := range readings {
		table.Append(formatTimestamp(r.TimestampMs), formatRate(r.HeartRateBPM), formatRate(r.BreathingRateBPM), r.Source)
	}
	table.Render()
}

func renderSummary(w io.Writer, summary *models.Summary) {
	if summary == nil {
		fmt.Fprintln(w, "No summary available")
		return
	}

	table := tablewriter.NewWriter(w)
	table.Header("Metric", "Avg", "Min", "Max", "Count")
	appendStats := func(name string, s *models.MetricStats) {
		if s == nil {
			table.Append(name, "-", "-", "-", "0")
			return
		}
		table.Append(name,
			fmt.Sprintf("%.1f", s.Avg),
			fmt.Sprintf("%.1f", s.Min),
			fmt.Sprintf("%.1f", s.Max),
			fmt.Sprintf("%d", s.Count))
	}
	appendStats("Heart Rate", summary.HeartRate)
	appendStats("Breathing Rate", summary.BreathingRate)
	table.Render()

	fmt.Fprintf(w, "\nReadings: %d\n", summary.ReadingsCount)
}
