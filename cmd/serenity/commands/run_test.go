package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/nabbelbabbel/serenity/internal/checkpoint"
	"github.com/nabbelbabbel/serenity/internal/observability"
	"github.com/nabbelbabbel/serenity/internal/report"
)

// decoupledSystem converges in two cycles with default thresholds: the
// diagonal Fock matrix screens every coupling term away.
const decoupledSystem = `occupied: 3
fock: [-1.0, 0.0, -0.9, 0.0, 0.0, -0.8]
pairs:
  - i: 0
    j: 0
    class: close
    k: [[0.1]]
    uncoupled: [[-1.0]]
  - i: 0
    j: 1
    class: close
    k: [[0.05]]
    uncoupled: [[-1.0]]
  - i: 1
    j: 2
    class: very-distant
    k: [[0.0]]
    uncoupled: [[-1.0]]
    dipole_estimate: -1.0e-4
`

// runReport is the slice of the json output the tests assert on.
type runReport struct {
	Energies struct {
		Correlation float64 `json:"correlation"`
		Dipole      float64 `json:"dipole"`
		Total       float64 `json:"total"`
	} `json:"energies"`
	Cycles   int `json:"cycles"`
	Settings struct {
		Mode    string `json:"mode"`
		Workers int    `json:"workers"`
	} `json:"settings"`
	Pairs []struct {
		I int `json:"i"`
		J int `json:"j"`
	} `json:"pairs"`
}

func writeTempFile(t *testing.T, name, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return path
}

func executeRun(t *testing.T, args ...string) (string, error) {
	t.Helper()

	out, _, err := executeRunStreams(t, args...)

	return out, err
}

func executeRunStreams(t *testing.T, args ...string) (string, string, error) {
	t.Helper()

	command := newRunCommandWithDeps(noopObservabilityInit)

	var out, errOut bytes.Buffer

	command.SetOut(&out)
	command.SetErr(&errOut)
	command.SetArgs(args)

	err := command.Execute()

	return out.String(), errOut.String(), err
}

func decodeRunReport(t *testing.T, out string) runReport {
	t.Helper()

	var rep runReport
	require.NoError(t, json.Unmarshal([]byte(out), &rep))

	return rep
}

func TestRunCommand_RequiresSystem(t *testing.T) {
	t.Parallel()

	_, err := executeRun(t)
	require.ErrorIs(t, err, ErrNoSystem)
}

func TestRunCommand_SolvesSystemFile(t *testing.T) {
	t.Parallel()

	system := writeTempFile(t, "system.yaml", decoupledSystem)

	out, err := executeRun(t, system, "--format", "json")
	require.NoError(t, err)

	rep := decodeRunReport(t, out)
	require.InDelta(t, 0.015, rep.Energies.Correlation, 1e-12)
	require.InDelta(t, -1.0e-4, rep.Energies.Dipole, 1e-15)
	require.InDelta(t, 0.0149, rep.Energies.Total, 1e-12)
	require.Equal(t, 2, rep.Cycles)
	require.Equal(t, "exact", rep.Settings.Mode)
	require.Len(t, rep.Pairs, 3)
}

func TestRunCommand_SyntheticSystem(t *testing.T) {
	t.Parallel()

	out, err := executeRun(t, "--synthetic", "4", "--format", "json")
	require.NoError(t, err)

	rep := decodeRunReport(t, out)
	require.Negative(t, rep.Energies.Correlation)
	require.NotEmpty(t, rep.Pairs)
	require.Positive(t, rep.Cycles)
}

func TestRunCommand_TableOutput(t *testing.T) {
	t.Parallel()

	system := writeTempFile(t, "system.yaml", decoupledSystem)

	out, err := executeRun(t, system)
	require.NoError(t, err)
	require.Contains(t, out, "Correlation")
	require.Contains(t, out, "Dipole estimate")
}

func TestRunCommand_StreamsConvergenceTable(t *testing.T) {
	t.Parallel()

	system := writeTempFile(t, "system.yaml", decoupledSystem)

	out, errOut, err := executeRunStreams(t, system, "--format", "json")
	require.NoError(t, err)

	// Two cycles on stderr, the machine report alone on stdout.
	require.Contains(t, errOut, "cycle")
	require.Contains(t, errOut, "max residual")
	require.Equal(t, 2, strings.Count(errOut, "\n")-1)

	rep := decodeRunReport(t, out)
	require.Equal(t, 2, rep.Cycles)
}

func TestRunCommand_WorkersFlagEchoedInReport(t *testing.T) {
	t.Parallel()

	system := writeTempFile(t, "system.yaml", decoupledSystem)

	out, err := executeRun(t, system, "--workers", "3", "--format", "json")
	require.NoError(t, err)

	rep := decodeRunReport(t, out)
	require.Equal(t, 3, rep.Settings.Workers)
}

func TestRunCommand_UnknownFormatFailsBeforeSolve(t *testing.T) {
	t.Parallel()

	// The path does not exist. A format error must surface anyway,
	// which proves the format is checked before the solve starts.
	_, err := executeRun(t, filepath.Join(t.TempDir(), "missing.yaml"), "--format", "bogus")
	require.ErrorIs(t, err, report.ErrUnknownFormat)
}

func TestRunCommand_WritesPlot(t *testing.T) {
	t.Parallel()

	system := writeTempFile(t, "system.yaml", decoupledSystem)
	plot := filepath.Join(t.TempDir(), "convergence.html")

	_, err := executeRun(t, system, "--plot", plot)
	require.NoError(t, err)

	info, err := os.Stat(plot)
	require.NoError(t, err)
	require.Positive(t, info.Size())
}

func TestRunCommand_CheckpointWritesState(t *testing.T) {
	t.Parallel()

	system := writeTempFile(t, "system.yaml", decoupledSystem)
	settings := writeTempFile(t, "settings.yaml", "checkpoint:\n  every: 1\n")
	dir := t.TempDir()

	_, err := executeRun(t, system,
		"--settings", settings,
		"--checkpoint",
		"--checkpoint-dir", dir,
	)
	require.NoError(t, err)
	require.True(t, checkpoint.NewManager(dir).Exists())
}

func TestRunCommand_ResumeSkipsConvergedCycles(t *testing.T) {
	t.Parallel()

	system := writeTempFile(t, "system.yaml", decoupledSystem)
	settings := writeTempFile(t, "settings.yaml", "checkpoint:\n  every: 1\n")
	dir := t.TempDir()

	_, err := executeRun(t, system,
		"--settings", settings,
		"--checkpoint",
		"--checkpoint-dir", dir,
	)
	require.NoError(t, err)

	// The restored amplitudes are already converged, so the second run
	// stops after a single residual check.
	out, err := executeRun(t, system,
		"--settings", settings,
		"--checkpoint",
		"--checkpoint-dir", dir,
		"--format", "json",
	)
	require.NoError(t, err)

	rep := decodeRunReport(t, out)
	require.Equal(t, 1, rep.Cycles)
	require.InDelta(t, 0.015, rep.Energies.Correlation, 1e-12)
}

func TestRunCommand_ClearCheckpoint(t *testing.T) {
	t.Parallel()

	system := writeTempFile(t, "system.yaml", decoupledSystem)
	settings := writeTempFile(t, "settings.yaml", "checkpoint:\n  every: 1\n")
	dir := t.TempDir()

	_, err := executeRun(t, system,
		"--settings", settings,
		"--checkpoint",
		"--checkpoint-dir", dir,
	)
	require.NoError(t, err)
	require.True(t, checkpoint.NewManager(dir).Exists())

	_, err = executeRun(t, system,
		"--clear-checkpoint",
		"--checkpoint-dir", dir,
	)
	require.NoError(t, err)
	require.False(t, checkpoint.NewManager(dir).Exists())
}

func TestRunCommand_RootSpanAttributes(t *testing.T) {
	t.Parallel()

	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))

	t.Cleanup(func() { require.NoError(t, tp.Shutdown(context.Background())) })

	command := newRunCommandWithDeps(
		func(_ observability.Config) (observability.Providers, error) {
			return observability.Providers{
				Tracer:   tp.Tracer("serenity"),
				Shutdown: func(_ context.Context) error { return nil },
			}, nil
		},
	)

	system := writeTempFile(t, "system.yaml", decoupledSystem)

	command.SetOut(io.Discard)
	command.SetErr(io.Discard)
	command.SetArgs([]string{system})

	err := command.Execute()
	require.NoError(t, err)

	spans := exporter.GetSpans()
	require.NotEmpty(t, spans, "root span should be exported")

	var found bool

	for _, span := range spans {
		if span.Name != "serenity.run" {
			continue
		}

		found = true

		for _, attr := range span.Attributes {
			if attr.Key == "error" {
				require.False(t, attr.Value.AsBool())
			}
		}
	}

	require.True(t, found, "root span 'serenity.run' should exist")
}

func noopObservabilityInit(_ observability.Config) (observability.Providers, error) {
	return observability.Providers{
		Shutdown: func(_ context.Context) error { return nil },
	}, nil
}
