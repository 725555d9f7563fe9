package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/spf13/cobra"

	"github.com/tidewatch/tidewatch/internal/scheduler"
)

var (
	onceTimeout  time.Duration
	onceSnapshot bool
)

var onceCmd = &cobra.Command{
	Use:   "once",
	Short: "Run one refresh cycle and print the dashboard as JSON",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runOnce(cmd.Context(), cmd.OutOrStdout(), clock.New())
	},
}

func init() {
	onceCmd.Flags().DurationVar(&onceTimeout, "timeout", 30*time.Second, "how long to wait for every source")
	onceCmd.Flags().BoolVar(&onceSnapshot, "snapshot", false, "print raw source results instead of the rendered view")
}

func runOnce(ctx context.Context, out io.Writer, clk clock.Clock) error {
	a, err := newApp(ctx, settings, clk, log)
	if err != nil {
		return err
	}
	defer a.close()

	ctx, cancel := context.WithTimeout(ctx, onceTimeout)
	defer cancel()

	a.scheduler.RefreshAll(scheduler.TriggerManual)
	if err := a.scheduler.WaitSettled(ctx); err != nil {
		return fmt.Errorf("waiting for sources: %w", err)
	}

	var v any = a.board.View()
	if onceSnapshot {
		v = a.scheduler.Snapshot()
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
