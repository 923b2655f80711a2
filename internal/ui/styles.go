package ui

import "github.com/charmbracelet/lipgloss"

// Colors used in the application.
var (
	colorPrimary   = lipgloss.Color("62")  // Purple
	colorSecondary = lipgloss.Color("241") // Gray
	colorMuted     = lipgloss.Color("240") // Darker gray
	colorHighlight = lipgloss.Color("212") // Pink
	colorSuccess   = lipgloss.Color("78")  // Green
	colorError     = lipgloss.Color("196") // Red
	colorNoise     = lipgloss.Color("214") // Orange
)

// TitleStyle for the header line.
var TitleStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(lipgloss.Color("255")).
	Background(colorPrimary).
	Padding(0, 1)

// FormLabel style for form row labels.
var FormLabel = lipgloss.NewStyle().
	Foreground(colorSecondary).
	Width(14)

// FormLabelFocused style for the focused row's label.
var FormLabelFocused = lipgloss.NewStyle().
	Foreground(colorHighlight).
	Bold(true).
	Width(14)

// FormValue style for form row values.
var FormValue = lipgloss.NewStyle().
	Foreground(lipgloss.Color("255"))

// FeatureCursor style for the feature under the list cursor.
var FeatureCursor = lipgloss.NewStyle().
	Foreground(lipgloss.Color("255")).
	Background(colorPrimary)

// FeatureType style for the "(numeric)" / "(categorical)" suffix.
var FeatureType = lipgloss.NewStyle().
	Foreground(colorMuted)

// ValidationStyle for the inline form error.
var ValidationStyle = lipgloss.NewStyle().
	Foreground(colorError)

// Panel wraps the form and results panes.
var Panel = lipgloss.NewStyle().
	Border(lipgloss.RoundedBorder()).
	BorderForeground(colorMuted).
	Padding(0, 1)

// SectionHeader style for pane sub-headings.
var SectionHeader = lipgloss.NewStyle().
	Bold(true).
	Foreground(colorHighlight)

// MessageStyle for the idle/loading/empty messages.
var MessageStyle = lipgloss.NewStyle().
	Foreground(colorSecondary).
	Italic(true)

// ErrorStyle for displaying errors.
var ErrorStyle = lipgloss.NewStyle().
	Foreground(colorError).
	Bold(true)

// SummaryStyle for the "Algorithm: ... | Features: ..." line.
var SummaryStyle = lipgloss.NewStyle().
	Foreground(lipgloss.Color("255")).
	Bold(true)

// BarStyle fills the distribution bars.
var BarStyle = lipgloss.NewStyle().
	Foreground(colorPrimary)

// NoiseBarStyle fills the noise cluster's bar.
var NoiseBarStyle = lipgloss.NewStyle().
	Foreground(colorNoise)

// Card style for a cluster card.
var Card = lipgloss.NewStyle().
	Border(lipgloss.NormalBorder()).
	BorderForeground(colorPrimary).
	Padding(0, 1).
	Width(34)

// NoiseCard style for the noise cluster's card.
var NoiseCard = Card.
	BorderForeground(colorNoise)

// CardTitle style for a card heading.
var CardTitle = lipgloss.NewStyle().
	Bold(true).
	Foreground(colorHighlight)

// MetricName style for metric labels in cards.
var MetricName = lipgloss.NewStyle().
	Foreground(colorSecondary)

// SuccessStyle for confirmations such as a finished export.
var SuccessStyle = lipgloss.NewStyle().
	Foreground(colorSuccess)

// StatusBar style for the bottom status bar.
var StatusBar = lipgloss.NewStyle().
	Foreground(lipgloss.Color("255")).
	Background(lipgloss.Color("236")).
	Padding(0, 1)

// HelpStyle for help text.
var HelpStyle = lipgloss.NewStyle().
	Foreground(colorMuted).
	Padding(0, 1)
