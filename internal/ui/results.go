package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/abelbrown/insight/internal/segment"
)

const maxBarWidth = 30

// RenderDisplay draws the results pane for dm within width columns.
// spin is prefixed to loading messages.
func RenderDisplay(dm segment.DisplayModel, width int, spin string) string {
	switch dm.Kind {
	case segment.DisplayLoading:
		return MessageStyle.Render(strings.TrimSpace(spin + " " + dm.Message))
	case segment.DisplayError:
		return ErrorStyle.Render(dm.Message)
	case segment.DisplayIdle, segment.DisplayEmpty:
		out := MessageStyle.Render(dm.Message)
		if box := renderBoxplot(dm.Boxplot, spin); box != "" {
			out += "\n\n" + box
		}
		return out
	}

	var b strings.Builder
	b.WriteString(SummaryStyle.Render(dm.Summary))
	b.WriteString("\n\n")
	b.WriteString(SectionHeader.Render("Cluster Distribution"))
	b.WriteString("\n")
	b.WriteString(renderDistribution(dm.Distribution))
	b.WriteString(fmt.Sprintf("\nTotal records: %d\n\n", dm.TotalRecords))
	b.WriteString(renderCards(dm.Clusters, width))
	if box := renderBoxplot(dm.Boxplot, spin); box != "" {
		b.WriteString("\n\n")
		b.WriteString(box)
	}
	return b.String()
}

// ClusterTitle is "Noise" for the noise cluster and "Cluster N" otherwise.
func ClusterTitle(label string) string {
	if label == "Noise" {
		return label
	}
	return "Cluster " + label
}

func renderDistribution(shares []segment.ClusterShare) string {
	var b strings.Builder
	for _, s := range shares {
		n := int(s.Percent / 100 * maxBarWidth)
		if n == 0 && s.Size > 0 {
			n = 1
		}
		n = max(0, min(n, maxBarWidth))
		style := BarStyle
		if s.ID == segment.NoiseClusterID {
			style = NoiseBarStyle
		}
		bar := style.Render(strings.Repeat("█", n)) + strings.Repeat(" ", maxBarWidth-n)
		fmt.Fprintf(&b, "  %-11s %s %6s (%d)\n", ClusterTitle(s.Label), bar, s.PercentText, s.Size)
	}
	return b.String()
}

func renderCards(cards []segment.ClusterCard, width int) string {
	if len(cards) == 0 {
		return ""
	}
	rendered := make([]string, len(cards))
	for i, c := range cards {
		rendered[i] = renderCard(c)
	}

	perRow := 1
	if cw := lipgloss.Width(rendered[0]); cw > 0 && width > cw {
		perRow = width / cw
	}

	var rows []string
	for i := 0; i < len(rendered); i += perRow {
		end := i + perRow
		if end > len(rendered) {
			end = len(rendered)
		}
		rows = append(rows, lipgloss.JoinHorizontal(lipgloss.Top, rendered[i:end]...))
	}
	return lipgloss.JoinVertical(lipgloss.Left, rows...)
}

func renderCard(c segment.ClusterCard) string {
	lines := []string{
		CardTitle.Render(ClusterTitle(c.Label)),
		fmt.Sprintf("Size: %d", c.Size),
		"",
		SectionHeader.Render("Averages"),
	}
	for _, m := range c.Averages {
		lines = append(lines, MetricName.Render(m.Name+": ")+m.Value)
	}
	lines = append(lines, "", SectionHeader.Render("Demographics"))
	for _, m := range c.Demographics {
		lines = append(lines, MetricName.Render(m.Name+": ")+m.Value)
	}

	style := Card
	if c.ID == segment.NoiseClusterID {
		style = NoiseCard
	}
	return style.Render(strings.Join(lines, "\n"))
}

func renderBoxplot(st segment.BoxplotState, spin string) string {
	if !st.Active {
		return ""
	}
	head := SectionHeader.Render("Boxplot: " + st.Feature)
	switch {
	case st.Loading:
		return head + "\n" + MessageStyle.Render(strings.TrimSpace(spin+" Loading boxplot..."))
	case st.Err != "":
		return head + "\n" + ErrorStyle.Render(st.Err)
	case st.Image != "":
		kb := float64(len(st.Image)) * 3 / 4 / 1024
		return head + "\n" + SuccessStyle.Render(fmt.Sprintf("PNG ready (%.1f KB), press e to export", kb))
	}
	return head
}
