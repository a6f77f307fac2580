package report

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"gopkg.in/yaml.v3"
)

// Formats understood by Render.
const (
	FormatTable = "table"
	FormatYAML  = "yaml"
	FormatJSON  = "json"
)

// ErrUnknownFormat indicates a format that is none of table/yaml/json.
var ErrUnknownFormat = errors.New("report: unknown format")

// Render writes the report in the requested format.
func (r *Report) Render(w io.Writer, format string) error {
	switch format {
	case FormatTable:
		return r.renderTable(w)
	case FormatYAML:
		return r.renderYAML(w)
	case FormatJSON:
		return r.renderJSON(w)
	}

	return fmt.Errorf("%w: %q", ErrUnknownFormat, format)
}

func (r *Report) renderTable(w io.Writer) error {
	_, err := fmt.Fprintf(w, "%s\n\n%s\n\n%s\n", r.energyTable(), r.pairTable(), r.runSummary())

	return err
}

func (r *Report) energyTable() string {
	tbl := newPlainTable()

	tbl.AppendHeader(table.Row{"Component", "Hartree"})
	tbl.AppendRow(table.Row{"Correlation", formatEnergy(r.Energies.Correlation)})
	tbl.AppendRow(table.Row{"Dipole estimate", formatEnergy(r.Energies.Dipole)})
	tbl.AppendRow(table.Row{"Truncation", formatEnergy(r.Energies.Truncation)})
	tbl.AppendFooter(table.Row{"Total", formatEnergy(r.Energies.Total)})

	return tbl.Render()
}

func (r *Report) pairTable() string {
	shown := r.shownPairs()

	tbl := newPlainTable()

	tbl.AppendHeader(table.Row{"Pair", "Class", "Domain", "Energy", "Truncation"})

	for _, row := range shown {
		tbl.AppendRow(table.Row{
			fmt.Sprintf("(%d, %d)", row.I, row.J),
			row.Class,
			row.Domain,
			formatEnergy(row.Energy),
			formatEnergy(row.TruncationError),
		})
	}

	tbl.AppendFooter(table.Row{fmt.Sprintf("Top %d of %d pairs", len(shown), len(r.Pairs))})

	return tbl.Render()
}

func (r *Report) runSummary() string {
	decay := ""
	if r.ConvergenceRate > 0 {
		decay = fmt.Sprintf(", residual decay %.2f per cycle", r.ConvergenceRate)
	}

	return fmt.Sprintf(
		"mode %s, %d cycles in %s, residual rms %.3e%s\namplitudes: %s elements (%s), pairs: %d close, %d distant, %d very distant",
		r.Settings.Mode, r.Cycles, r.Duration, r.Stats.ResidualRMS, decay,
		humanize.Comma(int64(r.Stats.AmplitudeCount)), r.Stats.AmplitudeMemory,
		r.Stats.Close, r.Stats.Distant, r.Stats.VeryDistant,
	)
}

// shownPairs returns the leading TopPairs rows of the sorted pair list.
func (r *Report) shownPairs() []PairRow {
	limit := r.TopPairs
	if limit <= 0 || limit > len(r.Pairs) {
		limit = len(r.Pairs)
	}

	return r.Pairs[:limit]
}

func (r *Report) renderYAML(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	if err := enc.Encode(r); err != nil {
		return fmt.Errorf("encode report: %w", err)
	}

	return enc.Close()
}

func (r *Report) renderJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")

	if err := enc.Encode(r); err != nil {
		return fmt.Errorf("encode report: %w", err)
	}

	return nil
}

func newPlainTable() table.Writer {
	tbl := table.NewWriter()
	tbl.SetStyle(table.StyleLight)
	tbl.Style().Options.SeparateRows = false
	tbl.Style().Options.SeparateColumns = false
	tbl.Style().Options.DrawBorder = false
	tbl.Style().Options.SeparateHeader = false

	return tbl
}

func formatEnergy(v float64) string {
	return fmt.Sprintf("%.10f", v)
}
