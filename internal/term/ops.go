package term

// dispatchCSI interprets a completed CSI sequence (params, optional private
// prefix, final byte) and applies it to the grid. Unknown final bytes are
// ignored rather than treated as errors.
func (v *VT) dispatchCSI(final byte) {
	g := v.g

	if v.private == '?' {
		v.dispatchPrivateMode(final)
		return
	}

	switch final {
	case 'A': // CUU
		g.moveCursorAbs(g.curRow-v.param(0, 1), g.curCol)
	case 'B', 'e': // CUD, VPR
		g.moveCursorAbs(g.curRow+v.param(0, 1), g.curCol)
	case 'C', 'a': // CUF, HPR
		g.moveCursorAbs(g.curRow, g.curCol+v.param(0, 1))
	case 'D': // CUB
		g.moveCursorAbs(g.curRow, g.curCol-v.param(0, 1))
	case 'E': // CNL
		g.moveCursorAbs(g.curRow+v.param(0, 1), 0)
	case 'F': // CPL
		g.moveCursorAbs(g.curRow-v.param(0, 1), 0)
	case 'G', '`': // CHA, HPA
		g.moveCursorAbs(g.curRow, v.param(0, 1)-1)
	case 'H', 'f': // CUP, HVP
		g.moveCursorOrigin(v.param(0, 1)-1, v.param(1, 1)-1)
	case 'I': // CHT
		for i := 0; i < v.param(0, 1); i++ {
			g.curCol = g.nextTabstop()
		}
	case 'J': // ED
		g.eraseInDisplay(v.param(0, 0))
	case 'K': // EL
		g.eraseInLine(v.param(0, 0))
	case 'L': // IL
		g.insertLines(v.param(0, 1))
	case 'M': // DL
		g.deleteLines(v.param(0, 1))
	case 'P': // DCH
		g.deleteCellsAt(g.curRow, g.curCol, v.param(0, 1))
	case 'S': // SU
		g.scrollUp(g.top, g.bottom, v.param(0, 1))
	case 'T': // SD
		g.scrollDown(g.top, g.bottom, v.param(0, 1))
	case 'X': // ECH
		g.eraseCellsAt(g.curRow, g.curCol, v.param(0, 1))
	case 'Z': // CBT
		for i := 0; i < v.param(0, 1); i++ {
			g.curCol = g.prevTabstop()
		}
	case '@': // ICH
		g.insertCellsAt(g.curRow, g.curCol, v.param(0, 1))
	case 'b': // REP
		for i := 0; i < v.param(0, 1); i++ {
			g.putRune(v.lastRune, nil, false)
		}
	case 'd': // VPA
		g.moveCursorAbs(v.param(0, 1)-1, g.curCol)
	case 'g': // TBC
		v.tabClear(v.param(0, 0))
	case 'h': // SM (ANSI set mode)
		v.setAnsiMode(v.param(0, -1), true)
	case 'l': // RM (ANSI reset mode)
		v.setAnsiMode(v.param(0, -1), false)
	case 'm':
		v.applySGR()
	case 'r': // DECSTBM
		top := v.param(0, 1) - 1
		bottom := v.param(1, g.rows) - 1
		g.setScrollRegion(top, bottom)
	case 's': // SCOSC
		g.saveCursor()
	case 't': // window manipulation; we only honor the resize form some
		// embedders use to drive a VT instance directly: CSI 8 ; rows ; cols t
		if v.param(0, -1) == 8 {
			rows := v.param(1, g.rows)
			cols := v.param(2, g.cols)
			g.resize(cols, rows)
		}
	case 'u': // SCORC
		g.restoreCursor()
	}
}

func (v *VT) tabClear(mode int) {
	switch mode {
	case 0:
		delete(v.g.tabstops, v.g.curCol)
	case 3:
		v.g.tabstops = make(map[int]bool)
	}
}

func (v *VT) setAnsiMode(mode int, set bool) {
	switch mode {
	case 4: // IRM
		v.g.insertMode = set
	case 20: // LNM
		v.g.lnm = set
	}
}

func (v *VT) dispatchPrivateMode(final byte) {
	set := final == 'h'
	if final != 'h' && final != 'l' {
		return
	}
	for _, p := range v.params {
		switch p {
		case 1: // DECCKM
			v.g.cursorKeyAppMode = set
		case 6: // DECOM
			v.g.originMode = set
			v.g.moveCursorOrigin(0, 0)
		case 7: // DECAWM
			v.g.autowrap = set
		case 25: // DECTCEM
			v.g.cursorVisible = set
		case 47, 1047:
			v.g.setAltScreen(set)
		case 1049:
			if set {
				v.g.saveCursor()
				v.g.setAltScreen(true)
			} else {
				v.g.setAltScreen(false)
				v.g.restoreCursor()
			}
		}
	}
}

// applySGR interprets the accumulated CSI parameters as Select Graphic
// Rendition, updating the pen that new cells are written with.
func (v *VT) applySGR() {
	g := v.g
	params := v.params
	if len(params) == 0 {
		params = []int{0}
	}
	for i := 0; i < len(params); i++ {
		p := params[i]
		if p < 0 {
			p = 0
		}
		switch {
		case p == 0:
			g.pen = Style{}
		case p == 1:
			g.pen.Bold = true
		case p == 2:
			g.pen.Faint = true
		case p == 3:
			g.pen.Italic = true
		case p == 4:
			g.pen.Underline = true
		case p == 5 || p == 6:
			g.pen.Blink = true
		case p == 7:
			g.pen.Inverse = true
		case p == 9:
			g.pen.Strikethrough = true
		case p == 21 || p == 22:
			g.pen.Bold = false
			g.pen.Faint = false
		case p == 23:
			g.pen.Italic = false
		case p == 24:
			g.pen.Underline = false
		case p == 25:
			g.pen.Blink = false
		case p == 27:
			g.pen.Inverse = false
		case p == 29:
			g.pen.Strikethrough = false
		case p >= 30 && p <= 37:
			g.pen.FG = Color{Kind: ColorIndexed, Index: uint8(p - 30)}
		case p == 38:
			n := v.consumeExtendedColor(params, &i)
			if n != nil {
				g.pen.FG = *n
			}
		case p == 39:
			g.pen.FG = Color{}
		case p >= 40 && p <= 47:
			g.pen.BG = Color{Kind: ColorIndexed, Index: uint8(p - 40)}
		case p == 48:
			n := v.consumeExtendedColor(params, &i)
			if n != nil {
				g.pen.BG = *n
			}
		case p == 49:
			g.pen.BG = Color{}
		case p >= 90 && p <= 97:
			g.pen.FG = Color{Kind: ColorIndexed, Index: uint8(p - 90 + 8)}
		case p >= 100 && p <= 107:
			g.pen.BG = Color{Kind: ColorIndexed, Index: uint8(p - 100 + 8)}
		}
	}
}

// consumeExtendedColor parses the ";5;n" (256-color) or ";2;r;g;b" (24-bit)
// tail of an SGR 38/48 sequence, advancing *i past whatever it consumes.
func (v *VT) consumeExtendedColor(params []int, i *int) *Color {
	if *i+1 >= len(params) {
		return nil
	}
	mode := params[*i+1]
	switch mode {
	case 5:
		if *i+2 >= len(params) {
			return nil
		}
		idx := params[*i+2]
		*i += 2
		return &Color{Kind: ColorIndexed, Index: uint8(idx)}
	case 2:
		if *i+4 >= len(params) {
			return nil
		}
		r, g, b := params[*i+2], params[*i+3], params[*i+4]
		*i += 4
		return &Color{Kind: ColorRGB, R: uint8(r), G: uint8(g), B: uint8(b)}
	}
	return nil
}
