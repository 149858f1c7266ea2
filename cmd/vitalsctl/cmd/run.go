package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/psantana5/vitals-engine/pkg/api"
	"github.com/psantana5/vitals-engine/pkg/client"
	"github.com/psantana5/vitals-engine/pkg/models"
)

var (
	runWait         bool
	runPollInterval time.Duration
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start a background job on the stored video or camera",
	Long: `Start processing the last uploaded video, or the server's camera when no
video was uploaded. Returns immediately unless --wait is given.`,
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().BoolVar(&runWait, "wait", false, "poll until the job finishes")
	runCmd.Flags().DurationVar(&runPollInterval, "interval", 2*time.Second, "poll interval with --wait")
}

func runRun(cmd *cobra.Command, args []string) error {
	c, err := newClient()
	if err != nil {
		return err
	}

	res, err := c.Run(cmd.Context())
	if err != nil {
		return describeSubmitError(err)
	}

	if !runWait {
		if IsJSONOutput() {
			return printJSON(os.Stdout, res)
		}
		fmt.Printf("%s (job %s, source %s)\n", res.Message, res.JobID, res.VideoSource)
		return nil
	}

	if !IsJSONOutput() {
		fmt.Printf("%s, waiting for job %s...\n", res.Message, res.JobID)
	}
	st, err := waitForIdle(cmd.Context(), c, res.JobID, runPollInterval)
	if err != nil {
		return err
	}

	if IsJSONOutput() {
		return printJSON(os.Stdout, st)
	}
	renderStatus(os.Stdout, st)
	return nil
}

// waitForIdle polls status until the job is no longer running
func waitForIdle(ctx context.Context, c *client.Client, jobID string, interval time.Duration) (*api.StatusResponse, error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		st, err := c.Status(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to get status: %w", err)
		}
		if st.State == models.JobStateIdle || (st.JobID != "" && st.JobID != jobID) {
			return st, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}
