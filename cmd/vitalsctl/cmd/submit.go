package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/psantana5/vitals-engine/pkg/client"
)

var submitCmd = &cobra.Command{
	Use:   "submit <video-file>",
	Short: "Process a video and print its vitals summary",
	Long: `Upload a video to the server and wait until the sensing engine has finished
with it. The heart and breathing rate summary is printed on success.

Example:
  vitalsctl submit recording.mp4
  vitalsctl submit recording.mp4 -o json`,
	Args: cobra.ExactArgs(1),
	RunE: runSubmit,
}

var uploadCmd = &cobra.Command{
	Use:   "upload <video-file>",
	Short: "Store a video for a later run",
	Args:  cobra.ExactArgs(1),
	RunE:  runUpload,
}

func init() {
	rootCmd.AddCommand(submitCmd)
	rootCmd.AddCommand(uploadCmd)
}

func runSubmit(cmd *cobra.Command, args []string) error {
	c, err := newClient()
	if err != nil {
		return err
	}

	f, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("failed to open video: %w", err)
	}
	defer f.Close()

	if !IsJSONOutput() {
		fmt.Printf("Processing %s (this takes as long as the video)...\n", args[0])
	}

	res, err := c.Process(cmd.Context(), f)
	if err != nil {
		return describeSubmitError(err)
	}

	if IsJSONOutput() {
		return printJSON(os.Stdout, res)
	}
	renderSummary(os.Stdout, res.Vitals)
	fmt.Printf("Job: %s\n", res.JobID)
	return nil
}

func runUpload(cmd *cobra.Command, args []string) error {
	c, err := newClient()
	if err != nil {
		return err
	}

	f, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("failed to open video: %w", err)
	}
	defer f.Close()

	res, err := c.Upload(cmd.Context(), f)
	if err != nil {
		return describeSubmitError(err)
	}

	if IsJSONOutput() {
		return printJSON(os.Stdout, res)
	}
	fmt.Printf("Uploaded %s (%d bytes) as %s\n", args[0], res.SizeBytes, res.Path)
	fmt.Println("Start processing with: vitalsctl run")
	return nil
}

// describeSubmitError turns API errors into operator-facing messages
func describeSubmitError(err error) error {
	if client.IsBusy(err) {
		return errors.New("server is busy with another job, try again when `vitalsctl status` shows idle")
	}

	var apiErr *client.APIError
	if errors.As(err, &apiErr) && apiErr.Body.ReadingsCollected != nil {
		msg := apiErr.Body.Error
		if apiErr.Body.Message != "" {
			msg += ": " + apiErr.Body.Message
		}
		return fmt.Errorf("%s (readings collected: %d, job %s)", msg, *apiErr.Body.ReadingsCollected, apiErr.Body.JobID)
	}
	return err
}
