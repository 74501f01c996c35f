package cmd

import (
	"context"
	"encoding/json"
	"time"

	"github.com/spf13/cobra"

	"github.com/kilianp07/skyplan/app"
	"github.com/kilianp07/skyplan/core/runlog"
)

var (
	historySince     time.Duration
	historyTelescope string
	historyMinProb   float64
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List past planning runs from the run log",
	RunE:  runHistory,
}

func init() {
	historyCmd.Flags().DurationVar(&historySince, "since", 0, "only runs newer than this (0 for all)")
	historyCmd.Flags().StringVar(&historyTelescope, "telescope", "", "only runs involving this telescope")
	historyCmd.Flags().Float64Var(&historyMinProb, "min-prob", 0, "only runs capturing at least this probability")
	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, _ []string) error {
	q := runlog.Query{TelescopeID: historyTelescope, MinProbability: historyMinProb}
	if historySince > 0 {
		q.Start = time.Now().Add(-historySince)
	}
	return withService(func(ctx context.Context, svc *app.Service) error {
		recs, err := svc.History(ctx, q)
		if err != nil {
			return err
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		for _, r := range recs {
			if err := enc.Encode(r); err != nil {
				return err
			}
		}
		return nil
	})
}
