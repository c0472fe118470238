// Package logreader is an interactive viewer for the transaction log. It
// lists entries grouped by batch and shows the fields of the selected one.
package logreader

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"pagedb/pkg/debug/ui"
	"pagedb/pkg/log/entry"
	"pagedb/pkg/log/wal"
)

var keys = ui.CommonKeys

// item is one line of the list: an entry and the batch it belongs to.
type item struct {
	batch *wal.Batch
	rec   wal.Record
}

// Model is the bubbletea model of the log reader.
type Model struct {
	path     string
	report   *wal.Report
	items    []item
	cursor   int
	detail   bool
	loaded   bool
	viewport viewport.Model
	err      error
}

// New creates a reader for the log at path.
func New(path string) Model {
	return Model{path: path, viewport: viewport.New(80, 20)}
}

// Run starts the reader on the alternate screen and blocks until the user
// quits.
func Run(path string) error {
	final, err := tea.NewProgram(New(path), tea.WithAltScreen()).Run()
	if err != nil {
		return err
	}
	if m, ok := final.(Model); ok && m.err != nil {
		return m.err
	}
	return nil
}

// Err returns the load failure, if any.
func (m Model) Err() error {
	return m.err
}

type reportLoadedMsg struct {
	report *wal.Report
	err    error
}

func loadReport(path string) tea.Cmd {
	return func() tea.Msg {
		report, err := wal.Recover(path)
		return reportLoadedMsg{report: report, err: err}
	}
}

func (m Model) Init() tea.Cmd {
	return loadReport(m.path)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case reportLoadedMsg:
		m.loaded = true
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.report = msg.report
		m.items = m.items[:0]
		for _, b := range msg.report.Batches {
			for _, rec := range b.Records {
				m.items = append(m.items, item{batch: b, rec: rec})
			}
		}
		return m, nil

	case tea.WindowSizeMsg:
		m.viewport.Width = max(msg.Width-4, 20)
		m.viewport.Height = max(msg.Height-10, 5)
		return m, nil

	case tea.KeyMsg:
		if key.Matches(msg, keys.Quit) {
			return m, tea.Quit
		}
		if m.detail {
			if key.Matches(msg, keys.Back) {
				m.detail = false
				return m, nil
			}
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}

		switch {
		case key.Matches(msg, keys.Up):
			if m.cursor > 0 {
				m.cursor--
			}
		case key.Matches(msg, keys.Down):
			if m.cursor < len(m.items)-1 {
				m.cursor++
			}
		case key.Matches(msg, keys.Select):
			if m.cursor < len(m.items) {
				m.viewport.SetContent(renderDetail(m.items[m.cursor]))
				m.viewport.GotoTop()
				m.detail = true
			}
		}
	}
	return m, nil
}

func (m Model) View() string {
	if m.err != nil {
		return ui.RenderError(m.err)
	}
	if !m.loaded {
		return "Loading log entries...\n"
	}

	var b strings.Builder
	b.WriteString(ui.RenderTitle("Transaction log "+m.path) + "\n")

	if m.detail {
		b.WriteString(m.viewport.View() + "\n")
		b.WriteString(ui.HelpStyle.Render("esc: back | q: quit"))
	} else {
		b.WriteString(m.renderList())
	}

	b.WriteString("\n" + m.renderStatusBar())
	return b.String()
}

func (m Model) renderList() string {
	var b strings.Builder
	b.WriteString(ui.RenderHeaderWithCount("Entries", len(m.items)) + "\n")
	if m.report.TornTail {
		b.WriteString(ui.ErrorStyle.Render(fmt.Sprintf("log ends inside the entry at lsn %d", m.report.TailLSN)) + "\n")
	}
	if len(m.items) == 0 {
		b.WriteString("The log is empty.\n")
	}

	start := max(0, m.cursor-10)
	end := min(len(m.items), start+20)
	for i := start; i < end; i++ {
		line := formatLine(m.items[i])
		if i == m.cursor {
			line = ui.SelectedItemStyle.Render("▶ " + line)
		} else {
			line = ui.CellStyle.Render("  " + line)
		}
		b.WriteString(line + "\n")
	}

	b.WriteString(ui.HelpStyle.Render("↑/↓: navigate | enter: details | q: quit"))
	return b.String()
}

func formatLine(it item) string {
	e := it.rec.Entry
	state := "open"
	switch {
	case e.IsDeleted:
		state = ui.DeletedStyle.Render("deleted")
	case e.IsCompleted:
		state = "done"
	}
	return fmt.Sprintf("%s #%-4d %s │ %s %d │ %s",
		shortID(it.batch.ID.String()), e.Sequence, colorizeOp(e.Action.Op),
		ui.LabelStyle.Render("LSN:"), uint64(it.rec.LSN), state)
}

func colorizeOp(op entry.OpType) string {
	var color lipgloss.AdaptiveColor
	var icon string

	switch op {
	case entry.InsertOp:
		color, icon = ui.PrimaryColor, "+"
	case entry.UpdateOp:
		color, icon = ui.WarningColor, "⟳"
	case entry.DeleteOp:
		color, icon = ui.ErrorColor, "−"
	case entry.SelectOp, entry.SelectTableOp:
		color, icon = ui.MutedColor, "?"
	case entry.CreateTableOp, entry.CreateDatabaseOp:
		color, icon = ui.SuccessColor, "◆"
	case entry.DropTableOp, entry.DropDatabaseOp:
		color, icon = ui.ErrorColor, "◇"
	default:
		color, icon = ui.MutedColor, "·"
	}
	return lipgloss.NewStyle().Foreground(color).Render(fmt.Sprintf("%s %-15s", icon, op))
}

func renderDetail(it item) string {
	e := it.rec.Entry
	a := e.Action

	fields := []ui.Field{
		{Label: "batch", Value: it.batch.ID.String()},
		{Label: "batch state", Value: batchState(it.batch)},
		{Label: "sequence", Value: fmt.Sprintf("%d", e.Sequence)},
		{Label: "lsn", Value: fmt.Sprintf("%d", uint64(it.rec.LSN))},
		{Label: "action", Value: fmt.Sprintf("%s (%s)", a.Op, e.ActionType())},
		{Label: "object", Value: e.AffectedObjectID.String()},
		{Label: "user", Value: e.UserName},
		{Label: "entered", Value: e.EntryTime.Format("2006-01-02 15:04:05.000")},
		{Label: "completed", Value: completedAt(e)},
		{Label: "deleted", Value: fmt.Sprintf("%t", e.IsDeleted)},
		{Label: "database", Value: a.Address.DatabaseID.String()},
		{Label: "table", Value: fmt.Sprintf("%d", a.Address.TableID)},
	}

	switch a.Op {
	case entry.InsertOp, entry.DeleteOp:
		fields = append(fields,
			ui.Field{Label: "row", Value: rowLocation(a)},
			ui.Field{Label: "row image", Value: fmt.Sprintf("%d bytes", len(a.Row))})
	case entry.UpdateOp:
		fields = append(fields,
			ui.Field{Label: "row", Value: rowLocation(a)},
			ui.Field{Label: "before image", Value: fmt.Sprintf("%d bytes", len(a.Before))},
			ui.Field{Label: "after image", Value: fmt.Sprintf("%d bytes", len(a.After))})
	case entry.SelectOp:
		fields = append(fields, ui.Field{Label: "row", Value: rowLocation(a)})
	case entry.CreateTableOp:
		if a.Table != nil {
			fields = append(fields,
				ui.Field{Label: "name", Value: a.Table.TableName},
				ui.Field{Label: "columns", Value: fmt.Sprintf("%d", len(a.Table.Columns))})
		}
	case entry.CreateDatabaseOp, entry.DropDatabaseOp, entry.DropTableOp:
		fields = append(fields, ui.Field{Label: "name", Value: a.Name})
	}

	return ui.DetailStyle.Render(ui.RenderFields(fields))
}

func rowLocation(a entry.Action) string {
	return fmt.Sprintf("page %d row %d offset %d", a.Address.PageID, a.Address.RowID, a.Address.RowOffset)
}

func completedAt(e *entry.TransactionEntry) string {
	if !e.IsCompleted {
		return "no"
	}
	return e.CompletedTime.Format("2006-01-02 15:04:05.000")
}

func batchState(b *wal.Batch) string {
	if len(b.Missing) > 0 {
		return fmt.Sprintf("missing %v", b.Missing)
	}
	if b.IsComplete() {
		return "complete"
	}
	return "incomplete"
}

func (m Model) renderStatusBar() string {
	incomplete := len(m.report.Incomplete())
	return ui.RenderStatusBar(fmt.Sprintf(" Entry %d/%d | %d batches, %d incomplete ",
		min(m.cursor+1, len(m.items)), len(m.items), len(m.report.Batches), incomplete))
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
