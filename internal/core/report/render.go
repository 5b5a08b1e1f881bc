package report

import (
	"fmt"
	"strings"

	"github.com/agorabot/agora/internal/styles"
)

// Markdown renders the document in the form published to report
// channels.
func Markdown(doc Document) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# %s\n\n", doc.Title)

	if doc.NoData {
		b.WriteString("_No channels found in this category._\n")
		return b.String()
	}

	fmt.Fprintf(&b, "Activity report for %d channels", len(doc.Entries)+doc.Omitted)
	if !doc.GeneratedAt.IsZero() {
		fmt.Fprintf(&b, " — generated %s", doc.GeneratedAt.UTC().Format("2006-01-02 15:04 UTC"))
	}
	b.WriteString("\n\n")

	fmt.Fprintf(&b, "**Total messages:** %d · **Recent (7d):** %d · **Avg score:** %.1f\n\n",
		doc.Summary.TotalCount, doc.Summary.RecentCount, doc.Summary.AverageScore)

	for _, e := range doc.Entries {
		switch doc.Mode {
		case ModeNewest:
			fmt.Fprintf(&b, "%d. **%s** — created %s (%d total, %d recent)\n",
				e.Rank, e.Entity.Name, e.Entity.CreatedAt.UTC().Format("2006-01-02"),
				e.Metrics.Total, e.Metrics.Recent)
		default:
			fmt.Fprintf(&b, "%d. **%s** — %.1f pts (%d total, %d recent)\n",
				e.Rank, e.Entity.Name, e.Metrics.Score, e.Metrics.Total, e.Metrics.Recent)
		}
	}

	if doc.Omitted > 0 {
		fmt.Fprintf(&b, "\n_%d more not shown_\n", doc.Omitted)
	}

	b.WriteString("\n")
	if doc.Mode == ModeNewest {
		b.WriteString("Ordering: creation date, newest first. Recent = messages in last 7 days.\n")
	} else {
		b.WriteString("Score formula: total × 0.4 + recent × 0.6. Recent = messages in last 7 days.\n")
	}

	return b.String()
}

// Terminal renders the document for the CLI.
func Terminal(doc Document) string {
	var b strings.Builder

	b.WriteString(styles.TitleStyle.Render(doc.Title) + "\n")

	if doc.NoData {
		b.WriteString(styles.MutedStyle.Render("no channels found in this category") + "\n")
		return b.String()
	}

	summary := fmt.Sprintf("total %d · recent (7d) %d · avg score %.1f",
		doc.Summary.TotalCount, doc.Summary.RecentCount, doc.Summary.AverageScore)
	b.WriteString(styles.MutedStyle.Render(summary) + "\n\n")

	for _, e := range doc.Entries {
		rank := styles.RankStyle.Render(fmt.Sprintf("%2d.", e.Rank))
		name := styles.NameStyle.Render(e.Entity.Name)

		var detail string
		if doc.Mode == ModeNewest {
			detail = fmt.Sprintf("created %s · %d total · %d recent",
				e.Entity.CreatedAt.UTC().Format("2006-01-02"), e.Metrics.Total, e.Metrics.Recent)
		} else {
			detail = fmt.Sprintf("%.1f pts · %d total · %d recent",
				e.Metrics.Score, e.Metrics.Total, e.Metrics.Recent)
		}

		fmt.Fprintf(&b, "%s %s  %s\n", rank, name, styles.MutedStyle.Render(detail))
	}

	if doc.Omitted > 0 {
		b.WriteString(styles.MutedStyle.Render(fmt.Sprintf("… %d more not shown", doc.Omitted)) + "\n")
	}

	return b.String()
}
