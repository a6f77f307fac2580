package mcp

import (
	"context"
	"fmt"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/nabbelbabbel/serenity/internal/config"
	"github.com/nabbelbabbel/serenity/internal/localcorr"
	"github.com/nabbelbabbel/serenity/internal/sysio"
)

// PairEstimate is one pair's closed-form contribution.
type PairEstimate struct {
	I        int     `json:"i"`
	J        int     `json:"j"`
	Class    string  `json:"class"`
	Domain   int     `json:"domain"`
	Estimate float64 `json:"estimate"`
}

// EstimateReport lists the per-pair estimates and their sum.
type EstimateReport struct {
	Pairs []PairEstimate `json:"pairs"`
	Total float64        `json:"total"`
}

// handleEstimate processes lmp2_estimate tool calls: semicanonical
// energies for solvable pairs, stored estimates for very distant ones,
// no iteration anywhere.
func handleEstimate(
	_ context.Context,
	_ *mcpsdk.CallToolRequest,
	input EstimateInput,
) (*mcpsdk.CallToolResult, ToolOutput, error) {
	if input.SystemPath == "" {
		return errorResult(ErrEmptySystemPath)
	}

	cfg, err := config.Load("")
	if err != nil {
		return errorResult(fmt.Errorf("load settings: %w", err))
	}

	ctrl, err := sysio.Load(input.SystemPath, cfg.Thresholds())
	if err != nil {
		return errorResult(fmt.Errorf("load system: %w", err))
	}

	th := ctrl.Thresholds
	out := EstimateReport{Pairs: make([]PairEstimate, 0, ctrl.Pairs.Len())}

	for _, p := range ctrl.Pairs.All() {
		estimate := p.Estimate()
		if p.Class.Solvable() {
			estimate = localcorr.SemicanonicalEnergy(p, th.SameSpinScale, th.OppositeSpinScale)
		}

		out.Pairs = append(out.Pairs, PairEstimate{
			I:        p.I,
			J:        p.J,
			Class:    p.Class.String(),
			Domain:   p.Domain(),
			Estimate: estimate,
		})
		out.Total += estimate
	}

	return jsonResult(out)
}
