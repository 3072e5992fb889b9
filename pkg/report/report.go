// Package report renders leads and run results for the terminal.
package report

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/fatih/color"

	"github.com/codeGROOVE-dev/scout/pkg/archetype"
	"github.com/codeGROOVE-dev/scout/pkg/enrich"
	"github.com/codeGROOVE-dev/scout/pkg/lead"
)

const maxBarWidth = 30

// badgeColor returns the terminal color for a badge code.
func badgeColor(code string) *color.Color {
	switch code {
	case "CTRL", "D":
		return color.New(color.FgRed, color.Bold)
	case "STAR":
		return color.New(color.FgMagenta, color.Bold)
	case "I":
		return color.New(color.FgYellow, color.Bold)
	case "GRDN", "S":
		return color.New(color.FgGreen, color.Bold)
	case "ANLY", "C":
		return color.New(color.FgBlue, color.Bold)
	default:
		return color.New(color.FgHiBlack)
	}
}

// Leads renders one line per lead: initials, name and firm, archetype badge,
// and status labels.
func Leads(leads []*lead.Lead) string {
	var out strings.Builder
	if len(leads) == 0 {
		return "No leads found\n"
	}

	out.WriteString(color.New(color.Bold).Sprintf("%-4s %-28s %-24s %-6s %s\n", "", "NAME", "FIRM", "TYPE", "LABELS"))
	out.WriteString(strings.Repeat("─", 80) + "\n")

	for _, l := range leads {
		badge := archetype.BadgeFor(l.Archetype())
		labels := color.New(color.FgCyan).Sprint(strings.Join(l.Labels(), " · "))
		fmt.Fprintf(&out, "%-4s %-28s %-24s %s %s\n",
			l.Initials(),
			truncate(l.FullName(), 28),
			truncate(l.Firm, 24),
			badgeColor(badge.Code).Sprintf("%-6s", badge.Code),
			labels)
	}
	return out.String()
}

// Distribution renders a bar per archetype label, widest first.
func Distribution(leads []*lead.Lead) string {
	counts := make(map[string]int)
	for _, l := range leads {
		if l.DossierSummary == "" {
			continue
		}
		counts[l.Archetype()]++
	}
	if len(counts) == 0 {
		return "No dossiers yet\n"
	}

	labels := make([]string, 0, len(counts))
	maxCount := 0
	for label, n := range counts {
		labels = append(labels, label)
		maxCount = max(maxCount, n)
	}
	sort.Slice(labels, func(i, j int) bool {
		if counts[labels[i]] != counts[labels[j]] {
			return counts[labels[i]] > counts[labels[j]]
		}
		return labels[i] < labels[j]
	})

	var out strings.Builder
	out.WriteString("Archetype distribution\n")
	out.WriteString(strings.Repeat("─", 50) + "\n")
	for _, label := range labels {
		n := counts[label]
		width := max(1, n*maxBarWidth/maxCount)
		c := badgeColor(archetype.BadgeFor(label).Code)
		fmt.Fprintf(&out, "%-20s %s %d\n", truncate(label, 20), c.Sprint(strings.Repeat("█", width)), n)
	}
	return out.String()
}

// Summary renders the outcome of an enrichment run.
func Summary(s enrich.Summary) string {
	green := color.New(color.FgGreen).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()

	line := fmt.Sprintf("Enriched %s · skipped %s · failed %s",
		green(s.Processed), yellow(s.Skipped), red(s.Failed))
	if s.LimitReached {
		line += " · " + yellow("safety limit reached")
	}
	return line + "\n"
}

// Result renders one enrichment result as terminal markdown.
func Result(res *enrich.Result, style string) (string, error) {
	if style == "" {
		style = "dark"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "## Row %d\n\n### Dossier\n\n", res.Row)
	for _, line := range strings.Split(res.Dossier, "\n") {
		b.WriteString(line + "  \n")
	}
	if res.Guess != nil {
		fmt.Fprintf(&b, "\n### Email guess\n\n`%s`: %s\n", res.Guess.Guess, res.Guess.Reason)
	}
	draft := res.Draft
	if draft == "" {
		draft = "_No draft generated._"
	}
	fmt.Fprintf(&b, "\n### Draft email\n\n%s\n", draft)

	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(style),
		glamour.WithWordWrap(80),
	)
	if err != nil {
		return "", fmt.Errorf("creating markdown renderer: %w", err)
	}
	out, err := r.Render(b.String())
	if err != nil {
		return "", fmt.Errorf("rendering result: %w", err)
	}
	return out, nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
