package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/kilianp07/skyplan/app"
	"github.com/kilianp07/skyplan/pkg/export"
)

var (
	tilesGrid string
	tilesOut  string
)

var tilesCmd = &cobra.Command{
	Use:   "tiles",
	Short: "Tile and allocate a sky map without scheduling",
	RunE:  runTiles,
}

func init() {
	tilesCmd.Flags().StringVar(&tilesGrid, "grid", "", "probability grid (JSON)")
	tilesCmd.Flags().StringVar(&tilesOut, "out", "", "output file, CSV for .csv and JSON otherwise (default stdout)")
	rootCmd.AddCommand(tilesCmd)
}

func runTiles(cmd *cobra.Command, _ []string) error {
	g, err := loadGrid(tilesGrid)
	if err != nil {
		return err
	}
	return withService(func(ctx context.Context, svc *app.Service) error {
		res, err := svc.Tiles(ctx, g)
		if err != nil {
			return err
		}
		for id, ferr := range res.Failures {
			fmt.Fprintf(cmd.ErrOrStderr(), "%s: %v\n", id, ferr)
		}
		return writeOutput(cmd.OutOrStdout(), tilesOut, func(w io.Writer, csv bool) error {
			if csv {
				return export.WriteTilesCSV(w, res.Tiles)
			}
			return export.WriteTilesJSON(w, res.Tiles)
		})
	})
}
