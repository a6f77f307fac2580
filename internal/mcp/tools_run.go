package mcp

import (
	"context"
	"fmt"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/nabbelbabbel/serenity/internal/config"
	"github.com/nabbelbabbel/serenity/internal/lmp2"
	"github.com/nabbelbabbel/serenity/internal/report"
	"github.com/nabbelbabbel/serenity/internal/sysio"
)

// handleRun processes lmp2_run tool calls: load settings and system,
// run the correction, return the report.
func handleRun(
	ctx context.Context,
	_ *mcpsdk.CallToolRequest,
	input RunInput,
) (*mcpsdk.CallToolResult, ToolOutput, error) {
	if input.SystemPath == "" {
		return errorResult(ErrEmptySystemPath)
	}

	if input.Workers < 0 {
		return errorResult(ErrNegativeWorkers)
	}

	cfg, err := config.Load(input.SettingsPath)
	if err != nil {
		return errorResult(fmt.Errorf("load settings: %w", err))
	}

	workers := cfg.Workers
	if input.Workers > 0 {
		workers = input.Workers
	}

	mode, err := lmp2.ParseMode(cfg.Solver.Mode)
	if err != nil {
		return errorResult(err)
	}

	ctrl, err := sysio.Load(input.SystemPath, cfg.Thresholds())
	if err != nil {
		return errorResult(fmt.Errorf("load system: %w", err))
	}

	history := &lmp2.History{}

	corr, err := lmp2.New(ctrl, lmp2.Options{
		Mode:    mode,
		Workers: workers,
		Trace:   history,
	})
	if err != nil {
		return errorResult(err)
	}

	start := time.Now()

	energies, err := corr.Run(ctx)
	if err != nil {
		return errorResult(fmt.Errorf("run correction: %w", err))
	}

	rep := report.Build(ctrl, energies, history, report.Options{
		Mode:     mode,
		Workers:  workers,
		Duration: time.Since(start),
	})

	return jsonResult(rep)
}
