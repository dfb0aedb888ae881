package monitor

import (
	"fmt"
	"strings"
	"time"

	"github.com/marcus/shopsync/internal/models"
	"github.com/marcus/shopsync/internal/output"
)

// View implements tea.Model
func (m Model) View() string {
	if m.Width > 0 && m.Width < MinWidth {
		return "terminal too narrow\n"
	}

	var b strings.Builder
	b.WriteString(m.renderHeader())
	b.WriteString("\n")
	b.WriteString(m.renderQueues())
	b.WriteString("\n")
	b.WriteString(m.renderRecent())
	b.WriteString("\n")
	if m.Err != nil {
		b.WriteString(errStyle.Render(fmt.Sprintf("error: %v", m.Err)))
		b.WriteString("\n")
	}
	b.WriteString(helpStyle.Render("r refresh · s sync now · q quit"))
	b.WriteString("\n")
	return b.String()
}

func (m Model) renderHeader() string {
	var parts []string
	parts = append(parts, titleStyle.Render("shopsync monitor"))

	if m.Online {
		parts = append(parts, onlineStyle.Render("● online"))
	} else {
		parts = append(parts, offlineStyle.Render("○ offline"))
	}

	if m.Draining {
		parts = append(parts, m.Spinner.View()+" replaying…")
	} else if m.LastDrain != nil {
		parts = append(parts, deliveredStyle.Render(fmt.Sprintf("last replay: %d delivered", m.LastDrain.Delivered())))
	}

	if !m.LastRefresh.IsZero() {
		parts = append(parts, subtleStyle.Render("refreshed "+m.LastRefresh.Format("15:04:05")))
	}
	return strings.Join(parts, "  ")
}

func (m Model) renderQueues() string {
	var b strings.Builder
	b.WriteString(panelTitleStyle.Render("QUEUES"))
	b.WriteString("\n")

	var total int64
	for _, category := range models.Categories() {
		n := m.Counts[category]
		total += n
		style := categoryStyles[category]
		bar := strings.Repeat("█", clamp(int(n), 0, 30))
		b.WriteString(fmt.Sprintf("  %s %4d %s\n",
			style.Render(fmt.Sprintf("%-18s", category)), n, style.Render(bar)))
	}

	b.WriteString(fmt.Sprintf("  %s %4d\n", subtleStyle.Render(fmt.Sprintf("%-18s", "total")), total))
	if m.DeadLetters > 0 {
		b.WriteString("  " + warnStyle.Render(fmt.Sprintf("%d dead-lettered", m.DeadLetters)) + "\n")
	}
	if len(m.Intents) > 0 {
		b.WriteString("  " + subtleStyle.Render(fmt.Sprintf("%d replay intent(s) pending", len(m.Intents))) + "\n")
	}
	return panelStyle.Render(strings.TrimRight(b.String(), "\n"))
}

func (m Model) renderRecent() string {
	var b strings.Builder
	b.WriteString(panelTitleStyle.Render("RECENT ITEMS"))
	b.WriteString("\n")

	if len(m.Recent) == 0 {
		b.WriteString(subtleStyle.Render("  nothing queued"))
	}
	for i := range m.Recent {
		it := &m.Recent[i]
		line := fmt.Sprintf("  %-20s %s", it.Kind,
			subtleStyle.Render(output.FormatTimeAgo(time.UnixMilli(it.Timestamp))))
		if it.RetryCount > 0 {
			line += " " + warnStyle.Render(fmt.Sprintf("(%d retries)", it.RetryCount))
		}
		b.WriteString(line + "\n")
	}
	return panelStyle.Render(strings.TrimRight(b.String(), "\n"))
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
