// Package export renders coverage plans for observers and downstream tools.
package export

import (
	"encoding/csv"
	"encoding/json"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/kilianp07/skyplan/core/model"
)

// Document is the JSON layout of an exported plan.
type Document struct {
	Plan    model.CoveragePlan `json:"plan"`
	Summary model.Summary      `json:"summary"`
}

// WriteJSON writes the plan and its summary to w as indented JSON.
func WriteJSON(w io.Writer, plan model.CoveragePlan, summary model.Summary) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(Document{Plan: plan, Summary: summary})
}

// CSVHeader is the first row written by WriteCSV.
var CSVHeader = []string{"telescope_id", "tile_id", "start", "end", "filter", "slew_s", "ra", "dec"}

// WriteCSV writes one row per exposure. Times are RFC3339 in UTC.
func WriteCSV(w io.Writer, entries []model.ScheduleEntry) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(CSVHeader); err != nil {
		return err
	}
	for _, e := range entries {
		rec := []string{
			e.TelescopeID,
			e.TileID,
			e.Start.UTC().Format(time.RFC3339),
			e.End.UTC().Format(time.RFC3339),
			e.Filter,
			strconv.FormatFloat(e.Slew.Seconds(), 'f', -1, 64),
			strconv.FormatFloat(e.RA, 'f', 6, 64),
			strconv.FormatFloat(e.Dec, 'f', 6, 64),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// TilesHeader is the first row written by WriteTilesCSV.
var TilesHeader = []string{"telescope_id", "tile_id", "ra", "dec", "probability", "exposures", "exposure_s", "filters"}

// WriteTilesCSV writes one row per tile with its allocation. Tiles without
// an allocation report zero exposures.
func WriteTilesCSV(w io.Writer, tiles []model.Tile) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(TilesHeader); err != nil {
		return err
	}
	for _, t := range tiles {
		var a model.Allocation
		if t.Allocation != nil {
			a = *t.Allocation
		}
		rec := []string{
			t.Telescope,
			t.ID,
			strconv.FormatFloat(t.CenterRA, 'f', 6, 64),
			strconv.FormatFloat(t.CenterDec, 'f', 6, 64),
			strconv.FormatFloat(t.ProbabilityMass, 'g', 6, 64),
			strconv.Itoa(a.ExposureCount),
			strconv.FormatFloat(a.ExposureDuration.Seconds(), 'f', -1, 64),
			strings.Join(a.FilterSequence, ";"),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteTilesJSON writes the tiles to w as indented JSON.
func WriteTilesJSON(w io.Writer, tiles []model.Tile) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(tiles)
}
