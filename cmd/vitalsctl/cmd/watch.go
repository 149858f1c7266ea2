package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/psantana5/vitals-engine/pkg/models"
)

var watchInterval time.Duration

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Stream new readings as they arrive",
	Long: `Poll the latest reading and print each new one until interrupted.

Example:
  vitalsctl watch
  vitalsctl watch --interval 500ms -o json`,
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)

	watchCmd.Flags().DurationVar(&watchInterval, "interval", time.Second, "poll interval")
}

func runWatch(cmd *cobra.Command, args []string) error {
	c, err := newClient()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Fprintf(os.Stderr, "Watching %s (press Ctrl+C to stop)...\n", GetServerURL())

	ticker := time.NewTicker(watchInterval)
	defer ticker.Stop()

	var last int64 = -1
	for {
		reading, ok, err := c.Latest(ctx)
		if err != nil && ctx.Err() == nil {
			fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
		}
		if ok {
			last = emitIfNew(os.Stdout, *reading, last)
		}

		select {
		case <-ctx.Done():
			if ctx.Err() == context.Canceled {
				return nil
			}
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// emitIfNew prints r when it differs from the previously printed timestamp
func emitIfNew(w io.Writer, r models.Reading, last int64) int64 {
	if r.TimestampMs == last {
		return last
	}
	if IsJSONOutput() {
		printJSON(w, r)
	} else {
		fmt.Fprintf(w, "%s  heart=%s  breathing=%s\n",
			formatTimestamp(r.TimestampMs), formatRate(r.HeartRateBPM), formatRate(r.BreathingRateBPM))
	}
	return r.TimestampMs
}
