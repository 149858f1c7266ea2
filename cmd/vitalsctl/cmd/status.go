package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show job state and engine availability",
	Long:  `Retrieve the current job state, engine availability and stored video from the server.`,
	RunE:  runStatus,
}

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check that the server is up",
	RunE:  runHealth,
}

func init() {
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(healthCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	c, err := newClient()
	if err != nil {
		return err
	}

	st, err := c.Status(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to get status: %w", err)
	}

	if IsJSONOutput() {
		return printJSON(os.Stdout, st)
	}
	renderStatus(os.Stdout, st)
	return nil
}

func runHealth(cmd *cobra.Command, args []string) error {
	c, err := newClient()
	if err != nil {
		return err
	}
	if err := c.Health(cmd.Context()); err != nil {
		return fmt.Errorf("server unhealthy: %w", err)
	}
	fmt.Printf("%s is healthy\n", GetServerURL())
	return nil
}
