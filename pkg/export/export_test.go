package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/skyplan/core/model"
)

func samplePlan() model.CoveragePlan {
	t0 := time.Date(2024, 3, 1, 22, 0, 0, 0, time.UTC)
	return model.CoveragePlan{
		RunID: "run-1",
		Entries: []model.ScheduleEntry{
			{TelescopeID: "ZTF", TileID: "12", Start: t0, End: t0.Add(30 * time.Second), Filter: "g", Slew: 1500 * time.Millisecond, RA: 45, Dec: 30},
			{TelescopeID: "ZTF", TileID: "13", Start: t0.Add(40 * time.Second), End: t0.Add(70 * time.Second), Filter: "r", RA: 46.5, Dec: -2.25},
		},
		Missed: []model.MissedTile{{TileID: "14", TelescopeID: "ZTF", Reason: model.ReasonWindowClosed, Remaining: 1}},
		States: map[string]model.State{"ZTF": model.StateDone},
	}
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, samplePlan().Entries))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, CSVHeader, rows[0])
	assert.Equal(t, []string{"ZTF", "12", "2024-03-01T22:00:00Z", "2024-03-01T22:00:30Z", "g", "1.5", "45.000000", "30.000000"}, rows[1])
	assert.Equal(t, "0", rows[2][5])
	assert.Equal(t, "-2.250000", rows[2][7])
}

func TestWriteCSVEmpty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, nil))
	assert.Equal(t, "telescope_id,tile_id,start,end,filter,slew_s,ra,dec\n", buf.String())
}

func TestWriteJSON(t *testing.T) {
	plan := samplePlan()
	sum := model.Summary{ProbabilityCaptured: 0.42, Entries: 2, Missed: 1}
	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, plan, sum))

	var doc Document
	require.NoError(t, json.Unmarshal(buf.Bytes(), &doc))
	assert.Equal(t, "run-1", doc.Plan.RunID)
	assert.Len(t, doc.Plan.Entries, 2)
	assert.True(t, doc.Plan.Entries[0].Start.Equal(plan.Entries[0].Start))
	assert.Equal(t, model.ReasonWindowClosed, doc.Plan.Missed[0].Reason)
	assert.InDelta(t, 0.42, doc.Summary.ProbabilityCaptured, 1e-12)
}

func TestWriteTilesCSV(t *testing.T) {
	tiles := []model.Tile{
		{ID: "7", Telescope: "ZTF", CenterRA: 10, CenterDec: -5, ProbabilityMass: 0.125,
			Allocation: &model.Allocation{ExposureCount: 2, ExposureDuration: 30 * time.Second, FilterSequence: []string{"g", "r"}}},
		{ID: "8", Telescope: "ZTF", CenterRA: 11, CenterDec: -5},
	}
	var buf bytes.Buffer
	require.NoError(t, WriteTilesCSV(&buf, tiles))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, TilesHeader, rows[0])
	assert.Equal(t, []string{"ZTF", "7", "10.000000", "-5.000000", "0.125", "2", "30", "g;r"}, rows[1])
	assert.Equal(t, []string{"0", "0", ""}, rows[2][5:])
}

func TestWriteTilesJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteTilesJSON(&buf, []model.Tile{{ID: "1", Telescope: "A", Cells: []int{3, 4}}}))

	var got []model.Tile
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	require.Len(t, got, 1)
	assert.Equal(t, []int{3, 4}, got[0].Cells)
}
