package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/kilianp07/skyplan/app"
	"github.com/kilianp07/skyplan/core/model"
	"github.com/kilianp07/skyplan/pkg/export"
)

var (
	planGrid string
	planOut  string
	planPlot string
)

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Tile, allocate and schedule a sky map",
	RunE:  runPlan,
}

func init() {
	planCmd.Flags().StringVar(&planGrid, "grid", "", "probability grid (JSON)")
	planCmd.Flags().StringVar(&planOut, "out", "", "output file, CSV for .csv and JSON otherwise (default stdout)")
	planCmd.Flags().StringVar(&planPlot, "plot", "", "coverage plot image, format from the extension")
	rootCmd.AddCommand(planCmd)
}

func runPlan(cmd *cobra.Command, _ []string) error {
	g, err := loadGrid(planGrid)
	if err != nil {
		return err
	}
	return withService(func(ctx context.Context, svc *app.Service) error {
		res, err := svc.Plan(ctx, g)
		if err != nil {
			return err
		}
		for id, ferr := range res.Failures {
			fmt.Fprintf(cmd.ErrOrStderr(), "%s excluded: %v\n", id, ferr)
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "run %s: %d exposures, %d missed, probability captured %.4f\n",
			res.RunID, res.Summary.Entries, res.Summary.Missed, res.Summary.ProbabilityCaptured)
		err = writeOutput(cmd.OutOrStdout(), planOut, func(w io.Writer, csv bool) error {
			if csv {
				return export.WriteCSV(w, res.Plan.Entries)
			}
			return export.WriteJSON(w, res.Plan, res.Summary)
		})
		if err != nil || planPlot == "" {
			return err
		}
		return writePlot(planPlot, g, res.Plan)
	})
}

func writePlot(path string, g *model.ProbabilityGrid, plan model.CoveragePlan) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := export.WritePlot(f, export.PlotFormat(path), g, plan); err != nil {
		f.Close()
		return fmt.Errorf("plot: %w", err)
	}
	return f.Close()
}
