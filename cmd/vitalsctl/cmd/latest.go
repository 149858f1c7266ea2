package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var latestCmd = &cobra.Command{
	Use:   "latest",
	Short: "Show the most recent reading",
	RunE:  runLatest,
}

func init() {
	rootCmd.AddCommand(latestCmd)
}

func runLatest(cmd *cobra.Command, args []string) error {
	c, err := newClient()
	if err != nil {
		return err
	}

	reading, ok, err := c.Latest(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to get latest reading: %w", err)
	}
	if !ok {
		fmt.Println("No vitals data available yet")
		return nil
	}

	if IsJSONOutput() {
		return printJSON(os.Stdout, reading)
	}
	renderReadings(os.Stdout, *reading)
	return nil
}
