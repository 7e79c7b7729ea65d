package presentation

import (
	"fmt"
	"strings"
	"text/tabwriter"
)

// RenderText produces the plain-text rendering used by the CLI.
func RenderText(v View) string {
	var b strings.Builder

	fmt.Fprintf(&b, "%s\n", v.Title)
	fmt.Fprintf(&b, "%s\n\n", strings.Repeat("=", len([]rune(v.Title))))
	fmt.Fprintf(&b, "%s\n\n", v.Summary)
	fmt.Fprintf(&b, "Total estimated cost: %s\n\n", v.Total.Text)

	tw := tabwriter.NewWriter(&b, 0, 0, 2, ' ', 0)
	for _, c := range v.Cards {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", c.Label, c.Value, c.Caption)
	}
	_ = tw.Flush()

	b.WriteString("\nBreakdown\n")
	tw = tabwriter.NewWriter(&b, 0, 0, 2, ' ', tabwriter.AlignRight)
	for i, row := range v.Table {
		pct := ""
		if i < len(v.Breakdown) {
			pct = fmt.Sprintf("%.1f%%", v.Breakdown[i].Percent)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t\n", row.Category, row.Cost.Text, pct)
	}
	_ = tw.Flush()
	for _, row := range v.Table {
		if row.Description != "" {
			fmt.Fprintf(&b, "  - %s: %s\n", row.Category, row.Description)
		}
	}
	if !v.Reconciliation.Consistent {
		fmt.Fprintf(&b, "  ! breakdown sums to %.2f, %.2f away from the total\n", v.Reconciliation.BreakdownSum, v.Reconciliation.Delta)
	}

	b.WriteString("\nMarket comparison\n")
	tw = tabwriter.NewWriter(&b, 0, 0, 2, ' ', 0)
	for _, bar := range v.Comparison.Bars {
		fmt.Fprintf(tw, "%s\t%s\n", bar.Label, bar.Amount.Text)
	}
	_ = tw.Flush()
	if v.Comparison.Note != "" {
		fmt.Fprintf(&b, "%s\n", v.Comparison.Note)
	}

	if len(v.Recommendations) > 0 {
		b.WriteString("\nTechnical recommendations\n")
		for _, r := range v.Recommendations {
			fmt.Fprintf(&b, "  * %s\n", r)
		}
	}

	if v.EmailDraft != "" {
		b.WriteString("\nClient email draft\n")
		b.WriteString(strings.Repeat("-", 18) + "\n")
		b.WriteString(v.EmailDraft)
		b.WriteString("\n")
	}

	return b.String()
}
