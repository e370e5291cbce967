// Package report assembles and renders the end-of-run comparison: for each
// bond length, the exact ground energy against the Stage 1 approximation and
// the Stage 3 re-synthesized energy.
package report

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"cusp/internal/chem"
	"cusp/internal/logging"
	"cusp/internal/store"
)

// Row is one bond length's comparison line. PreparedOK is false when the
// run has no Stage 1 energy at this bond; Prepared is meaningless then.
type Row struct {
	Bond       float64
	Exact      float64
	Prepared   float64 // Stage 1 energy
	PreparedOK bool
	Compressed float64 // Stage 3 energy through the autoencoder
}

// PreparedError returns the Stage 1 deviation from the exact ground energy.
func (r Row) PreparedError() float64 { return r.Prepared - r.Exact }

// CompressedError returns the Stage 3 deviation from the exact ground energy.
func (r Row) CompressedError() float64 { return r.Compressed - r.Exact }

// Build assembles the comparison rows for a run from its persisted stages.
// Both Stage 1 and Stage 3 must have run; their store errors pass through.
func Build(st *store.RunStore, runID string) ([]Row, error) {
	log := logging.Get(logging.CategoryReport)

	prepared, err := st.StageOneEnergies(runID)
	if err != nil {
		return nil, fmt.Errorf("load stage 1 energies: %w", err)
	}
	finals, err := st.Finals(runID)
	if err != nil {
		return nil, fmt.Errorf("load stage 3 results: %w", err)
	}

	rows := make([]Row, 0, len(finals))
	for _, f := range finals {
		exact, err := chem.GroundEnergy(f.Bond)
		if err != nil {
			return nil, fmt.Errorf("exact energy at %.4f: %w", f.Bond, err)
		}
		row := Row{Bond: f.Bond, Exact: exact, Compressed: f.Energy}
		if p, ok := prepared[f.Bond]; ok {
			row.Prepared = p
			row.PreparedOK = true
		} else {
			log.Warn("run %s has no stage 1 energy at bond %.4f", runID, f.Bond)
		}
		rows = append(rows, row)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Bond < rows[j].Bond })
	return rows, nil
}

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("81"))
	headerStyle  = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle    = lipgloss.NewStyle().Padding(0, 1)
	dividerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
)

var headers = []string{"Bond (Å)", "Exact", "Prepared", "Compressed", "ΔPrep", "ΔComp"}

// Render formats the comparison rows as an aligned terminal table.
func Render(runID string, rows []Row) string {
	var sb strings.Builder
	sb.WriteString(titleStyle.Render(fmt.Sprintf("Compression summary for run %s", runID)))
	sb.WriteString("\n")

	cells := make([][]string, 0, len(rows))
	for _, r := range rows {
		preparedCol, deltaCol := "n/a", "n/a"
		if r.PreparedOK {
			preparedCol = fmt.Sprintf("%+.6f", r.Prepared)
			deltaCol = fmt.Sprintf("%+.6f", r.PreparedError())
		}
		cells = append(cells, []string{
			fmt.Sprintf("%.2f", r.Bond),
			fmt.Sprintf("%+.6f", r.Exact),
			preparedCol,
			fmt.Sprintf("%+.6f", r.Compressed),
			deltaCol,
			fmt.Sprintf("%+.6f", r.CompressedError()),
		})
	}

	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = lipgloss.Width(h)
	}
	for _, row := range cells {
		for i, c := range row {
			if w := lipgloss.Width(c); w > widths[i] {
				widths[i] = w
			}
		}
	}
	for i := range widths {
		widths[i] += 2 // cell padding
	}

	total := len(headers) - 1
	for i, h := range headers {
		sb.WriteString(headerStyle.Width(widths[i]).Render(h))
		if i < len(headers)-1 {
			sb.WriteString(dividerStyle.Render("|"))
		}
		total += widths[i]
	}
	sb.WriteString("\n")
	sb.WriteString(dividerStyle.Render(strings.Repeat("-", total)))
	sb.WriteString("\n")

	for _, row := range cells {
		for i, c := range row {
			sb.WriteString(cellStyle.Width(widths[i]).Render(c))
			if i < len(row)-1 {
				sb.WriteString(dividerStyle.Render("|"))
			}
		}
		sb.WriteString("\n")
	}
	return sb.String()
}
