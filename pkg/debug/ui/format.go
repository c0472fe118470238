package ui

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"pagedb/pkg/primitives"
	"pagedb/pkg/resultset"
	"pagedb/pkg/storage/page"
	"pagedb/pkg/tuple"
)

// Field is one labelled line of a detail panel.
type Field struct {
	Label string
	Value string
}

// Slot describes one physical row copy on a page.
type Slot struct {
	Offset   primitives.Offset
	Preamble tuple.Preamble
}

// Status summarises the copy: live, deleted, or where it forwards to.
func (s Slot) Status() string {
	switch {
	case s.Preamble.IsForwarded:
		return fmt.Sprintf("-> page %d @%d", s.Preamble.ForwardedPageID, s.Preamble.ForwardOffset)
	case s.Preamble.IsLogicallyDeleted:
		return "deleted"
	default:
		return "live"
	}
}

// Cells returns the slot as table cells, in SlotHeaders order.
func (s Slot) Cells() []string {
	return []string{
		fmt.Sprintf("%d", s.Offset),
		fmt.Sprintf("%d", s.Preamble.ID),
		s.Preamble.Type.String(),
		fmt.Sprintf("%d", s.Preamble.TotalSize),
		s.Status(),
	}
}

// SlotHeaders are the column titles matching Slot.Cells.
var SlotHeaders = []string{"offset", "row", "type", "size", "status"}

// HeaderFields lists the page and data-page preamble of p.
func HeaderFields(p *page.Page) []Field {
	h := p.Header()
	return []Field{
		{"page", fmt.Sprintf("%d", h.PageID)},
		{"database", h.DatabaseID.String()},
		{"table", fmt.Sprintf("%d", h.TableID)},
		{"kind", h.DataPageType.String()},
		{"deleted", fmt.Sprintf("%t", h.IsDeleted)},
		{"rows", fmt.Sprintf("%d", h.TotalRows)},
		{"bytes used", fmt.Sprintf("%d", h.TotalBytesUsed)},
		{"free", fmt.Sprintf("%d", p.FreeBytes())},
	}
}

// Slots lists every row copy on p in the order they were written,
// forwarded and deleted copies included.
func Slots(p *page.Page) ([]Slot, error) {
	var slots []Slot
	err := p.ParsePageData(true, false, func(off primitives.Offset, pre tuple.Preamble) bool {
		slots = append(slots, Slot{Offset: off, Preamble: pre})
		return true
	})
	return slots, err
}

// SlotBytes returns the raw bytes of the copy at s.
func SlotBytes(p *page.Page, s Slot) []byte {
	data := p.Data()
	end := min(int(s.Offset)+int(s.Preamble.TotalSize), len(data))
	return data[s.Offset:end]
}

// ResultsetCells renders projected rows as text cells. NULL renders as
// "NULL".
func ResultsetCells(layout resultset.ResultsetLayout, rows [][]resultset.ResultsetValue) ([]string, [][]string) {
	cells := make([][]string, len(rows))
	for i, row := range rows {
		cells[i] = make([]string, len(row))
		for j, v := range row {
			if v.IsNull {
				cells[i][j] = "NULL"
			} else {
				cells[i][j] = v.Text
			}
		}
	}
	return layout.Names(), cells
}

// HexDump formats data sixteen bytes per line, each line prefixed with its
// offset from base.
//
//	000041  01 00 00 00 01 00 00 00  00 00 00 00 00 00 00 00  |................|
func HexDump(data []byte, base int) string {
	var b strings.Builder
	for line := 0; line < len(data); line += 16 {
		chunk := data[line:min(line+16, len(data))]
		fmt.Fprintf(&b, "%06d ", base+line)
		for i := 0; i < 16; i++ {
			if i == 8 {
				b.WriteByte(' ')
			}
			if i < len(chunk) {
				fmt.Fprintf(&b, " %02x", chunk[i])
			} else {
				b.WriteString("   ")
			}
		}
		b.WriteString("  |")
		for _, c := range chunk {
			if c >= 0x20 && c < 0x7f {
				b.WriteByte(c)
			} else {
				b.WriteByte('.')
			}
		}
		b.WriteString("|\n")
	}
	return b.String()
}

// ColumnWidths returns the display width of each column, capped at limit.
func ColumnWidths(headers []string, data [][]string, limit int) []int {
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = min(utf8.RuneCountInString(h), limit)
	}
	for _, row := range data {
		for i, cell := range row {
			if i < len(widths) {
				widths[i] = max(widths[i], min(utf8.RuneCountInString(cell), limit))
			}
		}
	}
	return widths
}

// PadString right-pads s with spaces to width runes.
func PadString(s string, width int) string {
	n := utf8.RuneCountInString(s)
	if n >= width {
		return s
	}
	return s + strings.Repeat(" ", width-n)
}

// TruncateString shortens s to maxWidth runes, ending in "..." when cut.
func TruncateString(s string, maxWidth int) string {
	runes := []rune(s)
	if len(runes) <= maxWidth {
		return s
	}
	if maxWidth <= 3 {
		return string(runes[:maxWidth])
	}
	return string(runes[:maxWidth-3]) + "..."
}
