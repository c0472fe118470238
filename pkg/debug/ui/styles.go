// Package ui holds the styles, key bindings and text formatters shared by
// the page inspector and the CLI dump commands.
package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/lipgloss"
)

// Color palette
var (
	PrimaryColor   = lipgloss.AdaptiveColor{Light: "#6D28D9", Dark: "#A78BFA"}
	SecondaryColor = lipgloss.AdaptiveColor{Light: "#0369A1", Dark: "#7DD3FC"}
	SuccessColor   = lipgloss.AdaptiveColor{Light: "#047857", Dark: "#6EE7B7"}
	WarningColor   = lipgloss.AdaptiveColor{Light: "#B45309", Dark: "#FCD34D"}
	ErrorColor     = lipgloss.AdaptiveColor{Light: "#B91C1C", Dark: "#FCA5A5"}
	MutedColor     = lipgloss.AdaptiveColor{Light: "#6B7280", Dark: "#9CA3AF"}
	FgColor        = lipgloss.AdaptiveColor{Light: "#1E1E2E", Dark: "#CDD6F4"}
)

var (
	TitleStyle = lipgloss.NewStyle().
			Foreground(PrimaryColor).
			Bold(true).
			Padding(0, 1).
			MarginBottom(1)

	HeaderStyle = lipgloss.NewStyle().
			Foreground(SecondaryColor).
			Bold(true).
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(PrimaryColor).
			Padding(0, 1)

	SelectedItemStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#FFFFFF")).
				Background(PrimaryColor).
				Bold(true).
				Padding(0, 1)

	TableHeaderStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#FFFFFF")).
				Background(SecondaryColor).
				Bold(true).
				Padding(0, 1)

	CellStyle = lipgloss.NewStyle().
			Foreground(FgColor).
			Padding(0, 1)

	DetailStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(PrimaryColor).
			Padding(0, 1)

	LabelStyle = lipgloss.NewStyle().
			Foreground(SecondaryColor).
			Bold(true)

	ValueStyle = lipgloss.NewStyle().
			Foreground(FgColor)

	HelpStyle = lipgloss.NewStyle().
			Foreground(MutedColor).
			MarginTop(1).
			Padding(0, 1)

	StatusBarStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFFFF")).
			Background(PrimaryColor).
			Padding(0, 1).
			MarginTop(1)

	ErrorStyle = lipgloss.NewStyle().
			Foreground(ErrorColor).
			Bold(true).
			Padding(1)

	// ForwardedStyle marks row copies that only point elsewhere.
	ForwardedStyle = lipgloss.NewStyle().
			Foreground(WarningColor)

	DeletedStyle = lipgloss.NewStyle().
			Foreground(MutedColor).
			Strikethrough(true)
)

// CommonKeyMap holds the bindings every view understands.
type CommonKeyMap struct {
	Up     key.Binding
	Down   key.Binding
	Select key.Binding
	Back   key.Binding
	Quit   key.Binding
}

var CommonKeys = CommonKeyMap{
	Up: key.NewBinding(
		key.WithKeys("up", "k"),
		key.WithHelp("↑/k", "move up"),
	),
	Down: key.NewBinding(
		key.WithKeys("down", "j"),
		key.WithHelp("↓/j", "move down"),
	),
	Select: key.NewBinding(
		key.WithKeys("enter", " "),
		key.WithHelp("enter", "show bytes"),
	),
	Back: key.NewBinding(
		key.WithKeys("esc", "backspace"),
		key.WithHelp("esc", "back"),
	),
	Quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c"),
		key.WithHelp("q", "quit"),
	),
}

// NavigationKeyMap moves between pages of a table.
type NavigationKeyMap struct {
	NextPage  key.Binding
	PrevPage  key.Binding
	FirstPage key.Binding
	LastPage  key.Binding
}

var NavigationKeys = NavigationKeyMap{
	NextPage: key.NewBinding(
		key.WithKeys("n", "pgdown"),
		key.WithHelp("n/pgdn", "next page"),
	),
	PrevPage: key.NewBinding(
		key.WithKeys("p", "pgup"),
		key.WithHelp("p/pgup", "prev page"),
	),
	FirstPage: key.NewBinding(
		key.WithKeys("g", "home"),
		key.WithHelp("g/home", "first page"),
	),
	LastPage: key.NewBinding(
		key.WithKeys("G", "end"),
		key.WithHelp("G/end", "last page"),
	),
}

// RenderError renders an error message with instructions to quit
func RenderError(err error) string {
	return ErrorStyle.Render(lipgloss.JoinVertical(
		lipgloss.Left,
		"Error: "+err.Error(),
		"",
		"Press q to quit.",
	))
}

func RenderStatusBar(text string) string {
	return StatusBarStyle.Render(text)
}

func RenderTitle(title string) string {
	return TitleStyle.Render(title)
}

// RenderHeaderWithCount renders a header, with the count when it is not
// negative.
func RenderHeaderWithCount(text string, count int) string {
	if count >= 0 {
		return HeaderStyle.Render(fmt.Sprintf(" %s (%d) ", text, count))
	}
	return HeaderStyle.Render(" " + text + " ")
}

// RenderFields renders label/value pairs one per line.
func RenderFields(fields []Field) string {
	width := 0
	for _, f := range fields {
		width = max(width, len(f.Label))
	}

	var b strings.Builder
	for _, f := range fields {
		b.WriteString(LabelStyle.Render(PadString(f.Label, width)))
		b.WriteString("  ")
		b.WriteString(ValueStyle.Render(f.Value))
		b.WriteString("\n")
	}
	return DetailStyle.Render(strings.TrimSuffix(b.String(), "\n"))
}

// RenderTable renders headers and cells with the selected row highlighted.
// A negative selectedRow highlights nothing.
func RenderTable(headers []string, data [][]string, selectedRow int) string {
	widths := ColumnWidths(headers, data, 30)

	var b strings.Builder
	cells := make([]string, len(headers))
	for i, header := range headers {
		cells[i] = TableHeaderStyle.Render(PadString(header, widths[i]))
	}
	b.WriteString(strings.Join(cells, " ") + "\n")

	separator := make([]string, len(widths))
	for i, width := range widths {
		separator[i] = strings.Repeat("─", width+2)
	}
	b.WriteString(lipgloss.NewStyle().Foreground(MutedColor).Render(strings.Join(separator, "┼")) + "\n")

	for rowIdx, row := range data {
		cells = cells[:0]
		for colIdx, cell := range row {
			content := PadString(TruncateString(cell, widths[colIdx]), widths[colIdx])
			if rowIdx == selectedRow {
				cells = append(cells, SelectedItemStyle.Render(content))
			} else {
				cells = append(cells, CellStyle.Render(content))
			}
		}
		b.WriteString(strings.Join(cells, " ") + "\n")
	}

	return b.String()
}
