package monitor

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/marcus/shopsync/internal/models"
)

var (
	// Base colors
	primaryColor = lipgloss.Color("212")
	mutedColor   = lipgloss.Color("241")
	successColor = lipgloss.Color("42")
	warningColor = lipgloss.Color("214")
	errorColor   = lipgloss.Color("196")

	// Panel styles
	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1)

	panelTitleStyle = lipgloss.NewStyle().
			Bold(true).
			Background(lipgloss.Color("237")).
			Foreground(lipgloss.Color("255")).
			Padding(0, 1)

	// Text styles
	titleStyle     = lipgloss.NewStyle().Bold(true).Foreground(primaryColor)
	subtleStyle    = lipgloss.NewStyle().Foreground(mutedColor)
	helpStyle      = lipgloss.NewStyle().Foreground(mutedColor)
	onlineStyle    = lipgloss.NewStyle().Foreground(successColor)
	offlineStyle   = lipgloss.NewStyle().Foreground(errorColor)
	warnStyle      = lipgloss.NewStyle().Foreground(warningColor)
	errStyle       = lipgloss.NewStyle().Foreground(errorColor)
	deliveredStyle = lipgloss.NewStyle().Foreground(successColor)
	spinnerStyle   = lipgloss.NewStyle().Foreground(primaryColor)

	// Category styles
	categoryStyles = map[models.Category]lipgloss.Style{
		models.CategoryCart:          lipgloss.NewStyle().Foreground(lipgloss.Color("45")),
		models.CategoryAnalytics:     lipgloss.NewStyle().Foreground(lipgloss.Color("141")),
		models.CategoryForms:         lipgloss.NewStyle().Foreground(warningColor),
		models.CategoryNotifications: lipgloss.NewStyle().Foreground(primaryColor),
	}
)
