package export

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/skyplan/core/model"
	"github.com/kilianp07/skyplan/core/sky"
)

func plotGrid(t *testing.T) *model.ProbabilityGrid {
	t.Helper()
	hp, err := sky.NewHEALPix(4)
	require.NoError(t, err)
	prob := make([]float64, hp.NPix())
	prob[hp.Pixel(45, 30)] = 0.7
	prob[hp.Pixel(46, -2)] = 0.3
	g, err := model.NewGrid(4, prob, nil)
	require.NoError(t, err)
	return g
}

func TestPlotFormat(t *testing.T) {
	assert.Equal(t, "png", PlotFormat("coverage.PNG"))
	assert.Equal(t, "svg", PlotFormat("out/coverage.svg"))
	assert.Equal(t, "png", PlotFormat("coverage"))
}

func TestWritePlotPNG(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WritePlot(&buf, "png", plotGrid(t), samplePlan()))
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("\x89PNG")))
}

func TestWritePlotSVGWithoutGrid(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WritePlot(&buf, "svg", nil, samplePlan()))
	assert.Contains(t, buf.String(), "<svg")
	assert.Contains(t, buf.String(), "ZTF")
}

func TestWritePlotUnknownFormat(t *testing.T) {
	var buf bytes.Buffer
	assert.Error(t, WritePlot(&buf, "bmp", nil, model.CoveragePlan{}))
}
