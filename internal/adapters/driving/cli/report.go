package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"golang.org/x/term"
	"gopkg.in/yaml.v3"

	"github.com/meng-ma-biomedical-AI/MedCAT/internal/core/domain"
)

// Report colours follow the TUI palette.
var (
	colorPrimary = lipgloss.Color("#7C3AED")
	colorMuted   = lipgloss.Color("#6C7086")
	colorSuccess = lipgloss.Color("#A6E3A1")
	colorError   = lipgloss.Color("#F38BA8")
	colorBorder  = lipgloss.Color("#45475A")
)

// isTerminal reports whether w is an interactive terminal.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// terminalWidth returns the width of w, or 0 when unknown.
func terminalWidth(w io.Writer) int {
	f, ok := w.(*os.File)
	if !ok {
		return 0
	}
	width, _, err := term.GetSize(int(f.Fd()))
	if err != nil {
		return 0
	}
	return width
}

// writeReport prints a stats report: styled tables on a terminal, plain
// text otherwise.
func writeReport(w io.Writer, r *domain.StatsReport) error {
	if r == nil {
		_, err := fmt.Fprintln(w, "No statistics were collected.")
		return err
	}
	if isTerminal(w) {
		_, err := fmt.Fprintln(w, renderStyledReport(r, terminalWidth(w)))
		return err
	}
	_, err := io.WriteString(w, renderPlainReport(r))
	return err
}

func renderPlainReport(r *domain.StatsReport) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Epoch: %d\n", r.Epoch)
	fmt.Fprintf(&b, "Precision: %.3f  Recall: %.3f  F1: %.3f\n", r.Precision, r.Recall, r.F1)
	fmt.Fprintf(&b, "TP: %d  FP: %d  FN: %d\n", r.TP, r.FP, r.FN)
	writeRanked(&b, "Top false positives", r.TopFP)
	writeRanked(&b, "Top false negatives", r.TopFN)
	writeRanked(&b, "Top true positives", r.TopTP)
	if len(r.FPDocs) > 0 {
		fmt.Fprintf(&b, "\nDocuments with false positives: %s\n", strings.Join(r.FPDocs, ", "))
	}
	if len(r.FNDocs) > 0 {
		fmt.Fprintf(&b, "Documents with false negatives: %s\n", strings.Join(r.FNDocs, ", "))
	}
	return b.String()
}

func writeRanked(b *strings.Builder, title string, ranked []domain.RankedConcept) {
	if len(ranked) == 0 {
		return
	}
	fmt.Fprintf(b, "\n%s:\n", title)
	for i, rc := range ranked {
		fmt.Fprintf(b, "  %2d. %s (%s): %d\n", i+1, rc.Name, rc.CUI, rc.Count)
	}
}

func renderStyledReport(r *domain.StatsReport, width int) string {
	title := lipgloss.NewStyle().Bold(true).Foreground(colorPrimary)
	muted := lipgloss.NewStyle().Foreground(colorMuted)
	good := lipgloss.NewStyle().Foreground(colorSuccess).Bold(true)
	bad := lipgloss.NewStyle().Foreground(colorError).Bold(true)

	summary := lipgloss.JoinHorizontal(lipgloss.Top,
		metricBox("Precision", fmt.Sprintf("%.3f", r.Precision), good),
		metricBox("Recall", fmt.Sprintf("%.3f", r.Recall), good),
		metricBox("F1", fmt.Sprintf("%.3f", r.F1), good),
		metricBox("TP", strconv.Itoa(r.TP), good),
		metricBox("FP", strconv.Itoa(r.FP), bad),
		metricBox("FN", strconv.Itoa(r.FN), bad),
	)

	sections := []string{
		title.Render(fmt.Sprintf("Epoch %d", r.Epoch)),
		summary,
	}
	for _, sec := range []struct {
		name   string
		ranked []domain.RankedConcept
	}{
		{"Top false positives", r.TopFP},
		{"Top false negatives", r.TopFN},
		{"Top true positives", r.TopTP},
	} {
		if len(sec.ranked) == 0 {
			continue
		}
		sections = append(sections, "", title.Render(sec.name), rankedTable(sec.ranked, width))
	}
	if len(r.FPDocs)+len(r.FNDocs) > 0 {
		sections = append(sections, "", muted.Render(fmt.Sprintf(
			"%d documents with false positives, %d with false negatives", len(r.FPDocs), len(r.FNDocs))))
	}
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func metricBox(label, value string, valueStyle lipgloss.Style) string {
	box := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(colorBorder).
		Padding(0, 1).
		MarginRight(1)
	return box.Render(lipgloss.NewStyle().Foreground(colorMuted).Render(label) + "\n" + valueStyle.Render(value))
}

func rankedTable(ranked []domain.RankedConcept, width int) string {
	header := lipgloss.NewStyle().Bold(true).Foreground(colorPrimary).Padding(0, 1)
	cell := lipgloss.NewStyle().Padding(0, 1)

	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorBorder)).
		Headers("#", "Concept", "CUI", "Count").
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return header
			}
			return cell
		})
	if width > 0 {
		t = t.Width(width)
	}
	for i, rc := range ranked {
		t.Row(strconv.Itoa(i+1), rc.Name, rc.CUI, strconv.Itoa(rc.Count))
	}
	return t.String()
}

// writeEncoded writes v as JSON or YAML.
func writeEncoded(w io.Writer, format domain.OutputFormat, v any) error {
	switch format {
	case domain.OutputYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return fmt.Errorf("encoding yaml: %w", err)
		}
		return enc.Close()
	default:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(v); err != nil {
			return fmt.Errorf("encoding json: %w", err)
		}
		return nil
	}
}
