package report_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nabbelbabbel/serenity/internal/lmp2"
	"github.com/nabbelbabbel/serenity/internal/report"
)

func TestRenderPlot_ComposesCharts(t *testing.T) {
	t.Parallel()

	rep, history := solvedReport(t)

	var out strings.Builder
	require.NoError(t, report.RenderPlot(&out, history.Cycles(), rep))

	html := out.String()

	assert.Contains(t, html, "Residual Convergence")
	assert.Contains(t, html, "Pair Contributions")
	assert.Contains(t, html, "max residual")
	assert.Contains(t, html, "energy change")
	assert.Contains(t, html, "pair energy")
	assert.Contains(t, html, `"type":"log"`)
}

func TestRenderPlot_EmptyTrace(t *testing.T) {
	t.Parallel()

	rep, _ := solvedReport(t)

	var out strings.Builder
	require.NoError(t, report.RenderPlot(&out, nil, rep))

	assert.Contains(t, out.String(), "No data")
}

func TestWritePlot_CreatesFile(t *testing.T) {
	t.Parallel()

	rep, history := solvedReport(t)

	path := filepath.Join(t.TempDir(), "convergence.html")
	require.NoError(t, report.WritePlot(path, history.Cycles(), rep))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	assert.Contains(t, string(data), "html")
	assert.Contains(t, string(data), "Residual Convergence")
}
