// Package output provides styled terminal output helpers (success, error,
// warning, queue item formatting) using lipgloss.
package output

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"github.com/marcus/shopsync/internal/dispatch"
	"github.com/marcus/shopsync/internal/models"
)

var (
	// Styles
	titleStyle     = lipgloss.NewStyle().Bold(true)
	subtleStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	successStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	errorStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	warningStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	categoryStyles = map[models.Category]lipgloss.Style{
		models.CategoryCart:          lipgloss.NewStyle().Foreground(lipgloss.Color("45")),
		models.CategoryAnalytics:     lipgloss.NewStyle().Foreground(lipgloss.Color("141")),
		models.CategoryForms:         lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
		models.CategoryNotifications: lipgloss.NewStyle().Foreground(lipgloss.Color("212")),
	}
)

// Success prints a success message
func Success(format string, args ...interface{}) {
	fmt.Println(successStyle.Render(fmt.Sprintf(format, args...)))
}

// Error prints an error message
func Error(format string, args ...interface{}) {
	fmt.Println(errorStyle.Render("ERROR: " + fmt.Sprintf(format, args...)))
}

// Warning prints a warning message
func Warning(format string, args ...interface{}) {
	fmt.Println(warningStyle.Render("Warning: " + fmt.Sprintf(format, args...)))
}

// Info prints an info message
func Info(format string, args ...interface{}) {
	fmt.Println(fmt.Sprintf(format, args...))
}

// JSON outputs data as JSON
func JSON(v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

// FormatCategory formats a queue category with color
func FormatCategory(c models.Category) string {
	style, ok := categoryStyles[c]
	if !ok {
		return string(c)
	}
	return style.Render(fmt.Sprintf("[%s]", c))
}

// FormatResult formats a dispatch result with the matching style:
// sent is a success, queued a warning, dropped an error.
func FormatResult(r dispatch.Result) string {
	switch r {
	case dispatch.ResultSent:
		return successStyle.Render("✓ sent")
	case dispatch.ResultQueued:
		return warningStyle.Render("◷ queued")
	default:
		return errorStyle.Render("✗ dropped")
	}
}

// FormatOnline formats a connectivity state
func FormatOnline(online bool) string {
	if online {
		return successStyle.Render("● online")
	}
	return errorStyle.Render("○ offline")
}

// FormatItemShort formats a queued item in short format:
// "  42  cart-update  [cart-updates]  2m ago  (3 retries)"
func FormatItemShort(item *models.QueuedItem) string {
	var parts []string
	parts = append(parts, titleStyle.Render(fmt.Sprintf("%4d", item.ID)))
	parts = append(parts, string(item.Kind))
	parts = append(parts, FormatCategory(item.Category))
	parts = append(parts, subtleStyle.Render(FormatTimeAgo(time.UnixMilli(item.Timestamp))))

	if item.RetryCount > 0 {
		parts = append(parts, warningStyle.Render(fmt.Sprintf("(%d retries)", item.RetryCount)))
	}
	if item.LastError != "" {
		parts = append(parts, errorStyle.Render(Truncate(item.LastError, 40)))
	}

	return strings.Join(parts, "  ")
}

// FormatItemLong formats a queued item with payload and retry state
func FormatItemLong(item *models.QueuedItem) string {
	var sb strings.Builder

	sb.WriteString(titleStyle.Render(fmt.Sprintf("#%d %s", item.ID, item.Kind)))
	sb.WriteString(fmt.Sprintf("  %s\n", FormatCategory(item.Category)))
	sb.WriteString(fmt.Sprintf("Key: %s\n", item.Key))
	sb.WriteString(fmt.Sprintf("Created: %s\n", time.UnixMilli(item.Timestamp).Format("2006-01-02 15:04:05")))

	if item.RetryCount > 0 {
		sb.WriteString(fmt.Sprintf("Retries: %d\n", item.RetryCount))
	}
	if item.NextAttemptAt != nil {
		sb.WriteString(fmt.Sprintf("Next attempt: %s\n", item.NextAttemptAt.Local().Format("2006-01-02 15:04:05")))
	}
	if item.LastError != "" {
		sb.WriteString(fmt.Sprintf("Last error: %s\n", errorStyle.Render(item.LastError)))
	}

	sb.WriteString(subtleStyle.Render("Payload:"))
	sb.WriteString("\n")
	sb.WriteString(IndentString(string(item.Payload), 2))
	sb.WriteString("\n")

	return sb.String()
}

// FormatTimeAgo formats a time as a human-readable "ago" string
func FormatTimeAgo(t time.Time) string {
	diff := time.Since(t)

	switch {
	case diff < time.Minute:
		return "just now"
	case diff < time.Hour:
		mins := int(diff.Minutes())
		if mins == 1 {
			return "1m ago"
		}
		return fmt.Sprintf("%dm ago", mins)
	case diff < 24*time.Hour:
		hours := int(diff.Hours())
		if hours == 1 {
			return "1h ago"
		}
		return fmt.Sprintf("%dh ago", hours)
	case diff < 7*24*time.Hour:
		days := int(diff.Hours() / 24)
		if days == 1 {
			return "1d ago"
		}
		return fmt.Sprintf("%dd ago", days)
	default:
		return t.Format("2006-01-02")
	}
}

// TerminalWidth returns the current terminal width, or a sane default when
// stdout is not a terminal.
func TerminalWidth() int {
	w, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || w <= 0 {
		return 80
	}
	return w
}

// Truncate shortens s to at most max runes, marking the cut with an ellipsis
func Truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	if max <= 1 {
		return "…"
	}
	return string(runes[:max-1]) + "…"
}

// SectionHeader returns a formatted section header for CLI output
// e.g., "\nDEAD LETTERS:\n"
func SectionHeader(title string) string {
	return fmt.Sprintf("\n%s:\n", strings.ToUpper(title))
}

// IndentString indents each line in a string by the specified number of spaces
func IndentString(s string, spaces int) string {
	if s == "" {
		return ""
	}
	indent := strings.Repeat(" ", spaces)
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = indent + line
	}
	return strings.Join(lines, "\n")
}
