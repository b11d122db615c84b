package term

import (
	"fmt"
	"strings"
)

// Run is a maximal horizontal span of cells on one row sharing a single
// style, the unit a styled snapshot is built from.
type Run struct {
	Row, Col int
	Text     string
	Style    Style
}

// Snapshot is a point-in-time view of the Terminal Model, covering both the
// plain and styled rendering styles: Text is always populated; Runs is the
// styled decomposition a caller asking for the styled form reads instead.
type Snapshot struct {
	Cols, Rows    int
	CursorRow     int
	CursorCol     int
	CursorVisible bool
	Text          string
	Runs          []Run
}

// Snapshot captures the grid's current content and cursor state. Rows are
// padded to Cols and joined with "\n" in Text, so Text always has exactly
// Rows lines, each exactly Cols columns wide in display width (plus any
// combining marks folded onto a preceding rune) — the invariant the resize
// round-trip property depends on. A wide rune's trailing continuation cell
// is skipped in both Text and Runs — the lead cell already accounts for
// both columns, so such a line holds one rune fewer than Cols. Runs (the styled
// decomposition) is only computed when styled is true, so plain-text
// automation doesn't pay for a style-run pass it never reads.
func (v *VT) Snapshot(styled bool) Snapshot {
	g := v.g
	s := Snapshot{
		Cols:          g.cols,
		Rows:          g.rows,
		CursorRow:     g.curRow,
		CursorCol:     g.curCol,
		CursorVisible: g.cursorVisible,
	}

	var text strings.Builder
	for r := 0; r < g.rows; r++ {
		if r > 0 {
			text.WriteByte('\n')
		}
		if styled {
			s.Runs = append(s.Runs, rowRuns(r, g.cells[r])...)
		}
		for _, cell := range g.cells[r] {
			if cell.Continuation {
				continue
			}
			text.WriteRune(cell.Rune)
			for _, c := range cell.Combining {
				text.WriteRune(c)
			}
		}
	}
	s.Text = text.String()
	return s
}

func rowRuns(row int, cells []Cell) []Run {
	var runs []Run
	var cur *Run
	flush := func() {
		if cur != nil {
			runs = append(runs, *cur)
			cur = nil
		}
	}
	for col, cell := range cells {
		if cell.Continuation {
			continue
		}
		if cur != nil && cur.Style == cell.Style {
			cur.Text += cellText(cell)
			continue
		}
		flush()
		cur = &Run{Row: row, Col: col, Text: cellText(cell), Style: cell.Style}
	}
	flush()
	return runs
}

func cellText(cell Cell) string {
	if len(cell.Combining) == 0 {
		return string(cell.Rune)
	}
	var b strings.Builder
	b.WriteRune(cell.Rune)
	for _, c := range cell.Combining {
		b.WriteRune(c)
	}
	return b.String()
}

// Encode renders a Snapshot's Runs back into an ANSI byte stream that, fed
// into a fresh VT of the same geometry, reproduces the same Text and
// per-cell Style — the round-trip law a styled snapshot must satisfy.
func Encode(s Snapshot) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "\x1b[2J")
	for _, run := range s.Runs {
		fmt.Fprintf(&b, "\x1b[%d;%dH", run.Row+1, run.Col+1)
		b.WriteString("\x1b[0m")
		b.WriteString(sgrSequence(run.Style))
		b.WriteString(run.Text)
	}
	fmt.Fprintf(&b, "\x1b[%d;%dH", s.CursorRow+1, s.CursorCol+1)
	if s.CursorVisible {
		b.WriteString("\x1b[?25h")
	} else {
		b.WriteString("\x1b[?25l")
	}
	return []byte(b.String())
}

// sgrSequence returns the CSI...m sequence that puts the pen into st,
// assuming the pen starts at Default.
func sgrSequence(st Style) string {
	if st == (Style{}) {
		return ""
	}
	var codes []string
	if st.Bold {
		codes = append(codes, "1")
	}
	if st.Faint {
		codes = append(codes, "2")
	}
	if st.Italic {
		codes = append(codes, "3")
	}
	if st.Underline {
		codes = append(codes, "4")
	}
	if st.Blink {
		codes = append(codes, "5")
	}
	if st.Inverse {
		codes = append(codes, "7")
	}
	if st.Strikethrough {
		codes = append(codes, "9")
	}
	codes = append(codes, colorCodes(st.FG, 38)...)
	codes = append(codes, colorCodes(st.BG, 48)...)
	if len(codes) == 0 {
		return ""
	}
	return "\x1b[" + strings.Join(codes, ";") + "m"
}

func colorCodes(c Color, base int) []string {
	switch c.Kind {
	case ColorIndexed:
		return []string{fmt.Sprintf("%d", base), "5", fmt.Sprintf("%d", c.Index)}
	case ColorRGB:
		return []string{fmt.Sprintf("%d", base), "2", fmt.Sprintf("%d", c.R), fmt.Sprintf("%d", c.G), fmt.Sprintf("%d", c.B)}
	default:
		return nil
	}
}
