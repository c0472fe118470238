// Package pagereader is an interactive viewer for the pages of one table.
// It lists every row copy on a page, forwarded and deleted ones included,
// and shows the raw bytes of the selected copy.
package pagereader

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"pagedb/pkg/catalog/schema"
	"pagedb/pkg/debug/ui"
	"pagedb/pkg/primitives"
	"pagedb/pkg/storage"
	"pagedb/pkg/storage/page"
)

type view int

const (
	loadingView view = iota
	slotsView
	bytesView
)

type keyMap struct {
	ui.CommonKeyMap
	ui.NavigationKeyMap
}

var keys = keyMap{
	CommonKeyMap:     ui.CommonKeys,
	NavigationKeyMap: ui.NavigationKeys,
}

// Model is the bubbletea model of the page reader.
type Model struct {
	ctx      context.Context
	store    storage.PageStore
	schema   *schema.TableSchema
	pageID   primitives.PageID
	numPages uint32
	page     *page.Page
	slots    []ui.Slot
	cursor   int
	view     view
	viewport viewport.Model
	width    int
	height   int
	err      error
}

// New creates a reader for the pages of ts held in store.
func New(ctx context.Context, store storage.PageStore, ts *schema.TableSchema) Model {
	return Model{
		ctx:      ctx,
		store:    store,
		schema:   ts,
		view:     loadingView,
		viewport: viewport.New(80, 20),
	}
}

// Run starts the reader on the alternate screen and blocks until the user
// quits.
func Run(ctx context.Context, store storage.PageStore, ts *schema.TableSchema) error {
	p := tea.NewProgram(New(ctx, store, ts), tea.WithAltScreen(), tea.WithContext(ctx))
	final, err := p.Run()
	if err != nil {
		return err
	}
	if m, ok := final.(Model); ok && m.err != nil {
		return m.err
	}
	return nil
}

// PageID returns the page being shown.
func (m Model) PageID() primitives.PageID {
	return m.pageID
}

// Err returns the last load failure, if any.
func (m Model) Err() error {
	return m.err
}

type pageLoadedMsg struct {
	page     *page.Page
	slots    []ui.Slot
	numPages uint32
	err      error
}

func (m Model) loadPage(id primitives.PageID) tea.Cmd {
	return func() tea.Msg {
		n, err := m.store.NumPages(m.ctx, m.schema.DatabaseID, m.schema.TableID)
		if err != nil {
			return pageLoadedMsg{err: err}
		}
		if n == 0 {
			return pageLoadedMsg{numPages: 0}
		}

		p, err := storage.LoadPage(m.ctx, m.store, m.schema, id)
		if err != nil {
			return pageLoadedMsg{err: err}
		}
		slots, err := ui.Slots(p)
		if err != nil {
			return pageLoadedMsg{err: err}
		}
		return pageLoadedMsg{page: p, slots: slots, numPages: n}
	}
}

func (m Model) Init() tea.Cmd {
	return m.loadPage(0)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case pageLoadedMsg:
		m.err = msg.err
		if msg.err != nil {
			return m, nil
		}
		m.numPages = msg.numPages
		m.page = msg.page
		m.slots = msg.slots
		if msg.page != nil {
			m.pageID = msg.page.ID()
		}
		m.cursor = 0
		m.view = slotsView
		return m, nil

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.viewport.Width = max(msg.Width-4, 20)
		m.viewport.Height = max(msg.Height-12, 5)
		return m, nil

	case tea.KeyMsg:
		if key.Matches(msg, keys.Quit) {
			return m, tea.Quit
		}
		if m.view == bytesView {
			if key.Matches(msg, keys.Back) {
				m.view = slotsView
				return m, nil
			}
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}
		return m.updateSlots(msg)
	}
	return m, nil
}

func (m Model) updateSlots(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	last := primitives.PageID(0)
	if m.numPages > 0 {
		last = primitives.PageID(m.numPages - 1)
	}

	switch {
	case key.Matches(msg, keys.Up):
		if m.cursor > 0 {
			m.cursor--
		}
	case key.Matches(msg, keys.Down):
		if m.cursor < len(m.slots)-1 {
			m.cursor++
		}
	case key.Matches(msg, keys.Select):
		if m.cursor < len(m.slots) {
			slot := m.slots[m.cursor]
			m.viewport.SetContent(ui.HexDump(ui.SlotBytes(m.page, slot), int(slot.Offset)))
			m.viewport.GotoTop()
			m.view = bytesView
		}
	case key.Matches(msg, keys.NextPage):
		if m.pageID < last {
			return m, m.loadPage(m.pageID + 1)
		}
	case key.Matches(msg, keys.PrevPage):
		if m.pageID > 0 {
			return m, m.loadPage(m.pageID - 1)
		}
	case key.Matches(msg, keys.FirstPage):
		return m, m.loadPage(0)
	case key.Matches(msg, keys.LastPage):
		return m, m.loadPage(last)
	}
	return m, nil
}

func (m Model) View() string {
	if m.err != nil {
		return ui.RenderError(m.err)
	}

	var b strings.Builder
	b.WriteString(ui.RenderTitle(fmt.Sprintf("Pages of %s.%s", m.schema.DatabaseName, m.schema.TableName)) + "\n")

	switch {
	case m.view == loadingView:
		b.WriteString("Loading page...\n")
	case m.page == nil:
		b.WriteString("The table has no pages.\n")
		b.WriteString(ui.HelpStyle.Render("q: quit"))
	case m.view == bytesView:
		slot := m.slots[m.cursor]
		b.WriteString(ui.RenderHeaderWithCount(fmt.Sprintf("Row %d at offset %d", slot.Preamble.ID, slot.Offset), -1) + "\n")
		b.WriteString(m.viewport.View() + "\n")
		b.WriteString(ui.HelpStyle.Render("↑/↓: scroll | esc: back | q: quit"))
	default:
		b.WriteString(ui.RenderFields(ui.HeaderFields(m.page)) + "\n\n")
		b.WriteString(ui.RenderHeaderWithCount("Row copies", len(m.slots)) + "\n")
		b.WriteString(m.renderSlots())
		b.WriteString(ui.HelpStyle.Render("↑/↓: select | enter: bytes | n/p: page | g/G: first/last | q: quit"))
	}

	b.WriteString("\n" + ui.RenderStatusBar(fmt.Sprintf(" Page %d/%d ", m.pageID+1, m.numPages)))
	return b.String()
}

func (m Model) renderSlots() string {
	if len(m.slots) == 0 {
		return "No rows on this page.\n"
	}

	rows := make([][]string, len(m.slots))
	for i, s := range m.slots {
		rows[i] = s.Cells()
	}
	return ui.RenderTable(ui.SlotHeaders, rows, m.cursor)
}
